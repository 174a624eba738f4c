package quiz

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/victornm/quizhub/internal/domain"
	"github.com/victornm/quizhub/internal/errors"
)

const (
	defaultDifficulty   = domain.DifficultyMedium
	defaultTimeLimit    = 30
	defaultPassingScore = 70
	defaultPoints       = 1
)

// Draft is an authored quiz definition before it is accepted.
type Draft struct {
	Title        string          `json:"title" yaml:"title" validate:"required,max=100"`
	Description  string          `json:"description" yaml:"description" validate:"required,max=500"`
	Category     string          `json:"category" yaml:"category" validate:"required,max=50"`
	Difficulty   string          `json:"difficulty" yaml:"difficulty" validate:"oneof=easy medium hard"`
	Tags         []string        `json:"tags" yaml:"tags" validate:"max=20,dive,max=30"`
	Questions    []QuestionDraft `json:"questions" yaml:"questions" validate:"min=1,dive"`
	TimeLimit    int             `json:"timeLimit" yaml:"timeLimit" validate:"min=1,max=180"`
	PassingScore *int            `json:"passingScore" yaml:"passingScore" validate:"omitempty,min=0,max=100"`
	IsPublic     *bool           `json:"isPublic" yaml:"isPublic"`
}

type QuestionDraft struct {
	Question      string   `json:"question" yaml:"question" validate:"required"`
	Options       []string `json:"options" yaml:"options" validate:"min=2,dive,required"`
	CorrectAnswer *int     `json:"correctAnswer" yaml:"correctAnswer" validate:"required,min=0"`
	Explanation   string   `json:"explanation" yaml:"explanation"`
	Points        int      `json:"points" yaml:"points" validate:"min=1"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		q := sl.Current().Interface().(QuestionDraft)
		if q.CorrectAnswer != nil && *q.CorrectAnswer >= len(q.Options) {
			sl.ReportError(q.CorrectAnswer, "correctAnswer", "CorrectAnswer", "answer_in_range", "")
		}
	}, QuestionDraft{})

	return v
}

func (d *Draft) applyDefaults() {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Category = strings.TrimSpace(d.Category)

	if d.Difficulty == "" {
		d.Difficulty = string(defaultDifficulty)
	}
	if d.TimeLimit == 0 {
		d.TimeLimit = defaultTimeLimit
	}
	if d.PassingScore == nil {
		p := defaultPassingScore
		d.PassingScore = &p
	}
	if d.IsPublic == nil {
		pub := true
		d.IsPublic = &pub
	}

	for i := range d.Questions {
		if d.Questions[i].Points == 0 {
			d.Questions[i].Points = defaultPoints
		}
	}
}

// Validate applies defaults and checks the draft. Every violation is reported, not only the first.
func (d *Draft) Validate() error {
	d.applyDefaults()

	err := validate.Struct(d)
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if !stderrors.As(err, &ves) {
		return fmt.Errorf("validate draft: %w", err)
	}

	violations := make([]errors.FieldViolation, 0, len(ves))
	for _, fe := range ves {
		violations = append(violations, errors.FieldViolation{
			Field:  fieldPath(fe.Namespace()),
			Reason: reason(fe),
		})
	}

	return errors.Validation(violations)
}

// fieldPath drops the root struct name, "Draft.questions[1].options" becomes "questions[1].options".
func fieldPath(ns string) string {
	_, path, ok := strings.Cut(ns, ".")
	if !ok {
		return ns
	}
	return path
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min":
		if isCollection(fe.Kind()) {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if isCollection(fe.Kind()) {
			return fmt.Sprintf("must contain at most %s item(s)", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "answer_in_range":
		return "must be the index of one of the options"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

func isCollection(k reflect.Kind) bool {
	return k == reflect.Slice || k == reflect.Array || k == reflect.Map
}

func (d Draft) questions() []domain.Question {
	qs := make([]domain.Question, 0, len(d.Questions))
	for _, q := range d.Questions {
		qs = append(qs, domain.Question{
			Text:          strings.TrimSpace(q.Question),
			Options:       q.Options,
			CorrectAnswer: *q.CorrectAnswer,
			Explanation:   q.Explanation,
			Points:        q.Points,
		})
	}
	return qs
}

// apply copies the definition fields of a validated draft onto q. Identity, ownership,
// activity and stats are left untouched.
func (d Draft) apply(q *domain.Quiz) {
	q.Title = d.Title
	q.Description = d.Description
	q.Category = d.Category
	q.Difficulty = domain.Difficulty(d.Difficulty)
	q.Tags = d.Tags
	q.Questions = d.questions()
	q.TimeLimit = d.TimeLimit
	q.PassingScore = *d.PassingScore
	q.IsPublic = *d.IsPublic
}
