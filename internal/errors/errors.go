package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Code codes.Code

const (
	CodeInvalidArgument    = Code(codes.InvalidArgument)
	CodeNotFound           = Code(codes.NotFound)
	CodeAlreadyExists      = Code(codes.AlreadyExists)
	CodeFailedPrecondition = Code(codes.FailedPrecondition)
	CodePermissionDenied   = Code(codes.PermissionDenied)
	CodeUnavailable        = Code(codes.Unavailable)
	CodeInternal           = Code(codes.Internal)
	CodeUnauthenticated    = Code(codes.Unauthenticated)
)

var code2http = map[Code]int{
	CodeInvalidArgument:    http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeAlreadyExists:      http.StatusConflict,
	CodeFailedPrecondition: http.StatusUnprocessableEntity,
	CodePermissionDenied:   http.StatusForbidden,
	CodeUnavailable:        http.StatusServiceUnavailable,
	CodeInternal:           http.StatusInternalServerError,
	CodeUnauthenticated:    http.StatusUnauthorized,
}

// FieldViolation describes one offending input field.
type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type Error struct {
	Code    Code             `json:"code"`
	Message string           `json:"message"`
	Details []FieldViolation `json:"details,omitempty"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Message: codes.Code(code).String(),
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
	if len(e.Details) > 0 {
		s += fmt.Sprintf(", details: %v", e.Details)
	}
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) GRPCStatus() *status.Status {
	return status.New(codes.Code(e.Code), e.Message)
}

func (e *Error) HTTPStatusCode() int {
	if c, ok := code2http[e.Code]; ok {
		return c
	}

	return http.StatusInternalServerError
}

func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

// Validation reports malformed, user-correctable input. Every violation is kept.
func Validation(violations []FieldViolation) *Error {
	return New(CodeInvalidArgument,
		WithMessagef("validation failed: %d violation(s)", len(violations)),
		WithDetails(violations...),
	)
}

// QuizUnavailable covers missing, private and inactive quizzes alike so private quizzes stay hidden.
func QuizUnavailable(quizID string) *Error {
	return New(CodeNotFound, WithMessagef("quiz not available: quiz=%s", quizID))
}

func InvalidQuizDefinition(format string, args ...any) *Error {
	return New(CodeFailedPrecondition, WithMessagef("invalid quiz definition: "+format, args...))
}

func NotAuthorized(format string, args ...any) *Error {
	return New(CodePermissionDenied, WithMessagef(format, args...))
}

// Persistence wraps storage failures and timeouts. Callers may retry; nothing retries internally.
func Persistence(err error) *Error {
	return New(CodeUnavailable, WithMessagef("storage unavailable"), WithCause(err))
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}

func WithDetails(v ...FieldViolation) Option {
	return optionFunc(func(e *Error) {
		e.Details = append(e.Details, v...)
	})
}
