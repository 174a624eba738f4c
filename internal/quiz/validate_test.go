package quiz

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/victornm/quizhub/internal/errors"
)

func intPtr(v int) *int { return &v }

func validDraft() Draft {
	return Draft{
		Title:       "Go basics",
		Description: "Warm-up questions about the Go language",
		Category:    "programming",
		Questions: []QuestionDraft{
			{Question: "Which keyword starts a goroutine?", Options: []string{"go", "async", "spawn"}, CorrectAnswer: intPtr(0)},
			{Question: "Zero value of a map?", Options: []string{"empty map", "nil"}, CorrectAnswer: intPtr(1), Points: 2},
		},
	}
}

func TestDraft_Validate(t *testing.T) {
	tests := map[string]struct {
		arrange func() Draft
		assert  func(t *testing.T, d Draft, err error)
	}{
		"should apply defaults to a minimal draft": {
			arrange: validDraft,
			assert: func(t *testing.T, d Draft, err error) {
				require.NoError(t, err)
				require.Equal(t, "medium", d.Difficulty)
				require.Equal(t, 30, d.TimeLimit)
				require.Equal(t, 70, *d.PassingScore)
				require.True(t, *d.IsPublic)
				require.Equal(t, 1, d.Questions[0].Points)
				require.Equal(t, 2, d.Questions[1].Points)
			},
		},

		"should keep an explicit passing score of zero": {
			arrange: func() Draft {
				d := validDraft()
				d.PassingScore = intPtr(0)
				return d
			},
			assert: func(t *testing.T, d Draft, err error) {
				require.NoError(t, err)
				require.Equal(t, 0, *d.PassingScore)
			},
		},

		"should report every violation, not only the first": {
			arrange: func() Draft {
				d := validDraft()
				d.Title = ""
				d.Category = ""
				d.Difficulty = "extreme"
				d.Questions[0].Options = []string{"only one"}
				d.Questions[1].CorrectAnswer = intPtr(5)
				return d
			},
			assert: func(t *testing.T, _ Draft, err error) {
				require.True(t, errors.Is(err, errors.CodeInvalidArgument))
				require.ElementsMatch(t, []string{
					"title",
					"category",
					"difficulty",
					"questions[0].options",
					"questions[1].correctAnswer",
				}, fields(errors.Convert(err).Details))
			},
		},

		"should reject a quiz without questions": {
			arrange: func() Draft {
				d := validDraft()
				d.Questions = nil
				return d
			},
			assert: func(t *testing.T, _ Draft, err error) {
				require.Equal(t, []string{"questions"}, fields(errors.Convert(err).Details))
			},
		},

		"should reject a missing correct answer": {
			arrange: func() Draft {
				d := validDraft()
				d.Questions[0].CorrectAnswer = nil
				return d
			},
			assert: func(t *testing.T, _ Draft, err error) {
				require.Equal(t, []errors.FieldViolation{
					{Field: "questions[0].correctAnswer", Reason: "is required"},
				}, errors.Convert(err).Details)
			},
		},

		"should reject blank options and out-of-bounds limits": {
			arrange: func() Draft {
				d := validDraft()
				d.Questions[1].Options = []string{"a", ""}
				d.TimeLimit = 181
				d.PassingScore = intPtr(101)
				return d
			},
			assert: func(t *testing.T, _ Draft, err error) {
				require.ElementsMatch(t, []string{
					"questions[1].options[1]",
					"timeLimit",
					"passingScore",
				}, fields(errors.Convert(err).Details))
			},
		},

		"should reject overlong text": {
			arrange: func() Draft {
				d := validDraft()
				d.Title = string(make([]byte, 101))
				return d
			},
			assert: func(t *testing.T, _ Draft, err error) {
				require.Equal(t, []errors.FieldViolation{
					{Field: "title", Reason: "must be at most 100 characters"},
				}, errors.Convert(err).Details)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			d := tt.arrange()
			err := d.Validate()
			tt.assert(t, d, err)
		})
	}
}

func fields(vs []errors.FieldViolation) []string {
	res := make([]string, 0, len(vs))
	for _, v := range vs {
		res = append(res, v.Field)
	}
	return res
}
