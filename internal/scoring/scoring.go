// Package scoring turns a submitted answer set into a score result. It performs no I/O.
package scoring

import (
	"fmt"
	"math"
	"slices"

	"github.com/victornm/quizhub/internal/domain"
	"github.com/victornm/quizhub/internal/errors"
)

// TimePolicy decides what happens to a submission whose time taken falls outside
// [0, timeLimit*60] seconds.
type TimePolicy string

const (
	// TimePolicyClamp clamps the time taken into the allowed range.
	TimePolicyClamp TimePolicy = "clamp"
	// TimePolicyReject rejects the submission with a validation error.
	TimePolicyReject TimePolicy = "reject"
	// TimePolicyAccept keeps over-limit values as submitted. Negative values are still rejected.
	TimePolicyAccept TimePolicy = "accept"
)

func ParseTimePolicy(s string) (TimePolicy, error) {
	switch p := TimePolicy(s); p {
	case TimePolicyClamp, TimePolicyReject, TimePolicyAccept:
		return p, nil
	case "":
		return TimePolicyClamp, nil
	default:
		return "", fmt.Errorf("unknown time policy %q", s)
	}
}

// Answer is one submitted (questionIndex, selectedAnswer) pair.
type Answer struct {
	QuestionIndex  int
	SelectedAnswer int
}

// Result is the outcome of one evaluation. It can only be produced by Engine.Evaluate,
// so the derived fields always agree with each other.
type Result struct {
	score       int
	totalPoints int
	percentage  int
	passed      bool
	timeTaken   int
	answers     []domain.AnswerOutcome
	ignored     []int
}

func (r Result) Score() int       { return r.score }
func (r Result) TotalPoints() int { return r.totalPoints }
func (r Result) Percentage() int  { return r.percentage }
func (r Result) Passed() bool     { return r.passed }
func (r Result) TimeTaken() int   { return r.timeTaken }

// Answers returns the per-answer breakdown in submission order.
func (r Result) Answers() []domain.AnswerOutcome { return slices.Clone(r.answers) }

// Ignored returns the submission positions that were excluded from the tally, either
// because the question index is out of range or because the question was already answered.
func (r Result) Ignored() []int { return slices.Clone(r.ignored) }

type Engine struct {
	policy TimePolicy
}

func NewEngine(policy TimePolicy) *Engine {
	if policy == "" {
		policy = TimePolicyClamp
	}

	return &Engine{policy: policy}
}

// Evaluate scores answers against q. Availability of q is the caller's concern.
func (e *Engine) Evaluate(q domain.Quiz, answers []Answer, timeTaken int) (Result, error) {
	total := q.TotalPoints()
	if total <= 0 {
		return Result{}, errors.InvalidQuizDefinition("quiz %s has %d total points", q.QuizID, total)
	}

	t, err := e.normalizeTime(q, timeTaken)
	if err != nil {
		return Result{}, err
	}

	r := Result{
		totalPoints: total,
		timeTaken:   t,
		answers:     make([]domain.AnswerOutcome, 0, len(answers)),
	}

	seen := make(map[int]struct{}, len(answers))
	for pos, a := range answers {
		outcome := domain.AnswerOutcome{
			QuestionIndex:  a.QuestionIndex,
			SelectedAnswer: a.SelectedAnswer,
		}

		_, dup := seen[a.QuestionIndex]
		if a.QuestionIndex < 0 || a.QuestionIndex >= len(q.Questions) || dup {
			r.answers = append(r.answers, outcome)
			r.ignored = append(r.ignored, pos)
			continue
		}
		seen[a.QuestionIndex] = struct{}{}

		question := q.Questions[a.QuestionIndex]
		if a.SelectedAnswer == question.CorrectAnswer {
			outcome.IsCorrect = true
			outcome.PointsEarned = question.Points
			r.score += question.Points
		}

		r.answers = append(r.answers, outcome)
	}

	r.percentage = Percentage(r.score, total)
	r.passed = r.percentage >= q.PassingScore

	return r, nil
}

func (e *Engine) normalizeTime(q domain.Quiz, timeTaken int) (int, error) {
	limit := q.TimeLimitSeconds()

	switch e.policy {
	case TimePolicyClamp:
		return max(0, min(timeTaken, limit)), nil

	case TimePolicyReject:
		if timeTaken < 0 || timeTaken > limit {
			return 0, errors.Validation([]errors.FieldViolation{{
				Field:  "timeTaken",
				Reason: fmt.Sprintf("must be between 0 and %d seconds", limit),
			}})
		}
		return timeTaken, nil

	default:
		if timeTaken < 0 {
			return 0, errors.Validation([]errors.FieldViolation{{
				Field:  "timeTaken",
				Reason: "must not be negative",
			}})
		}
		return timeTaken, nil
	}
}

// Percentage rounds score/total*100 to the nearest integer, halves rounding up.
func Percentage(score, total int) int {
	return int(math.Round(float64(score) / float64(total) * 100))
}
