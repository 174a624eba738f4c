package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/victornm/quizhub/internal/errors"
)

func TestAuthenticator_IssueVerify(t *testing.T) {
	a := NewAuthenticator("secret", time.Hour)

	token, err := a.Issue("u1")
	require.NoError(t, err)

	sub, err := a.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "u1", sub)
}

func TestAuthenticator_Verify(t *testing.T) {
	issued := NewAuthenticator("secret", time.Minute)
	token, err := issued.Issue("u1")
	require.NoError(t, err)

	tests := map[string]struct {
		verifier *Authenticator
		token    string
	}{
		"wrong secret": {
			verifier: NewAuthenticator("other", time.Minute),
			token:    token,
		},
		"expired": {
			verifier: func() *Authenticator {
				a := NewAuthenticator("secret", time.Minute)
				a.now = func() time.Time { return time.Now().Add(time.Hour) }
				return a
			}(),
			token: token,
		},
		"garbage": {
			verifier: NewAuthenticator("secret", time.Minute),
			token:    "not-a-token",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tt.verifier.Verify(tt.token)
			require.Error(t, err)
			require.True(t, errors.Is(err, errors.CodeUnauthenticated))
		})
	}
}
