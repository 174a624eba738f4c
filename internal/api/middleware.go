package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quizhub/internal/domain"
	"github.com/victornm/quizhub/internal/errors"
)

const userKey = "quizhub.user"

// authenticate resolves the bearer token to a stored user. Role and stats always come from
// the store, never from the token.
func (a *API) authenticate(c *gin.Context) {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		renderError(c, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("bearer token required")))
		return
	}

	userID, err := a.auth.Verify(token)
	if err != nil {
		renderError(c, err)
		return
	}

	u, err := a.us.GetUser(c.Request.Context(), userID)
	if errors.Is(err, errors.CodeNotFound) {
		renderError(c, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("unknown user"), errors.WithCause(err)))
		return
	}
	if err != nil {
		renderError(c, err)
		return
	}

	c.Set(userKey, *u)
	c.Next()
}

func currentUser(c *gin.Context) domain.User {
	return c.MustGet(userKey).(domain.User)
}
