package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/victornm/quizhub/internal/errors"
)

func TestError_StatusMapping(t *testing.T) {
	tests := map[string]struct {
		err      *errors.Error
		wantHTTP int
		wantGRPC codes.Code
	}{
		"validation": {
			err:      errors.Validation([]errors.FieldViolation{{Field: "title", Reason: "required"}}),
			wantHTTP: http.StatusBadRequest,
			wantGRPC: codes.InvalidArgument,
		},
		"quiz unavailable": {
			err:      errors.QuizUnavailable("q1"),
			wantHTTP: http.StatusNotFound,
			wantGRPC: codes.NotFound,
		},
		"invalid quiz definition": {
			err:      errors.InvalidQuizDefinition("zero total points"),
			wantHTTP: http.StatusUnprocessableEntity,
			wantGRPC: codes.FailedPrecondition,
		},
		"not authorized": {
			err:      errors.NotAuthorized("not the owner"),
			wantHTTP: http.StatusForbidden,
			wantGRPC: codes.PermissionDenied,
		},
		"persistence": {
			err:      errors.Persistence(fmt.Errorf("connection refused")),
			wantHTTP: http.StatusServiceUnavailable,
			wantGRPC: codes.Unavailable,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.wantHTTP, tt.err.HTTPStatusCode())
			assert.Equal(t, tt.wantGRPC, status.Code(tt.err))
		})
	}
}

func TestConvert(t *testing.T) {
	cause := stderrors.New("boom")

	e := errors.Convert(fmt.Errorf("wrapped: %w", errors.QuizUnavailable("q1")))
	require.Equal(t, errors.CodeNotFound, e.Code)

	e = errors.Convert(cause)
	require.Equal(t, errors.CodeInternal, e.Code)
	require.ErrorIs(t, e, cause)
}

func TestValidation_KeepsEveryViolation(t *testing.T) {
	e := errors.Validation([]errors.FieldViolation{
		{Field: "title", Reason: "required"},
		{Field: "questions[1].options", Reason: "must have at least 2 items"},
	})

	require.Len(t, e.Details, 2)
	require.True(t, errors.Is(e, errors.CodeInvalidArgument))
}
