package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
http:
  port: 9090
auth:
  secret: s3cret
redis:
  cache:
    quizttl: 30s
`), 0o600))

	c, err := loadConfig(p)
	require.NoError(t, err)

	require.EqualValues(t, 9090, c.HTTP.Port)
	require.EqualValues(t, 8081, c.GRPC.Port, "unset values should keep their defaults")
	require.Equal(t, "s3cret", c.Auth.Secret)
	require.Equal(t, 30*time.Second, c.Redis.Cache.QuizTTL)
	require.Equal(t, time.Minute, c.Redis.Cache.LeaderboardTTL)
	require.Equal(t, "clamp", c.Scoring.TimePolicy)
	require.Empty(t, c.Reconcile.Schedule, "scheduled rebuild should be opt-in")
}

func TestRootCmd_Commands(t *testing.T) {
	cmd := newRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}

	require.Subset(t, names, []string{"serve", "migrate", "reconcile", "seed", "user", "token"})
}
