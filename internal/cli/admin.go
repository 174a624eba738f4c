package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/victornm/quizhub/internal/auth"
	"github.com/victornm/quizhub/internal/domain"
	"github.com/victornm/quizhub/internal/event"
	"github.com/victornm/quizhub/internal/quiz"
	"github.com/victornm/quizhub/internal/server"
	"github.com/victornm/quizhub/internal/stats"
	"github.com/victornm/quizhub/internal/storage/postgres"
	"github.com/victornm/quizhub/internal/user"
)

// withStore loads the config, connects to Postgres and hands the store to fn.
func withStore(configPath string, fn func(c server.Config, store *postgres.Store) error) error {
	c, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	db, err := server.ConnectPostgres(c)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer db.Close()

	return fn(c, postgres.New(db, c.Postgres.Timeout))
}

// NewReconcileCmd recomputes every stored aggregate from the score ledger.
func NewReconcileCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Rebuild quiz and user stats from recorded scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(*configPath, func(_ server.Config, store *postgres.Store) error {
				return stats.NewService(stats.Config{Store: store}).RebuildAll(cmd.Context())
			})
		},
	}
}

// NewSeedCmd creates the quizzes listed in a YAML file on behalf of an existing user.
func NewSeedCmd(configPath *string) *cobra.Command {
	var (
		file    string
		creator string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create quizzes from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			return withStore(*configPath, func(_ server.Config, store *postgres.Store) error {
				ctx := cmd.Context()

				u, err := user.NewService(user.Config{Store: store}).GetUser(ctx, creator)
				if err != nil {
					return fmt.Errorf("creator %s: %w", creator, err)
				}

				eb := event.NewBus()
				defer eb.Stop()

				st := stats.NewService(stats.Config{EventBus: eb, Store: store})
				qs := quiz.NewService(quiz.Config{EventBus: eb, Store: store, Stats: st})

				created, err := qs.Seed(ctx, f, *u)
				for _, q := range created {
					slog.InfoContext(ctx, "seed: quiz created", "quiz_id", q.QuizID, "title", q.Title)
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "YAML file listing the quizzes")
	cmd.Flags().StringVar(&creator, "creator", "", "ID of the user who owns the quizzes")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("creator")

	return cmd
}

// NewUserCmd manages users. Credentials are issued elsewhere; this only registers identities.
func NewUserCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var (
		username string
		role     string
	)

	create := &cobra.Command{
		Use:   "create",
		Short: "Register a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(*configPath, func(_ server.Config, store *postgres.Store) error {
				u, err := user.NewService(user.Config{Store: store}).CreateUser(cmd.Context(), user.CreateUserRequest{
					Username: username,
					Role:     domain.Role(role),
				})
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), u.UserID)
				return nil
			})
		},
	}

	create.Flags().StringVar(&username, "username", "", "unique username, 3 to 30 characters")
	create.Flags().StringVar(&role, "role", string(domain.RoleUser), "user or admin")
	_ = create.MarkFlagRequired("username")

	cmd.AddCommand(create)
	return cmd
}

// NewTokenCmd prints a bearer token for an existing user.
func NewTokenCmd(configPath *string) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(*configPath, func(c server.Config, store *postgres.Store) error {
				u, err := user.NewService(user.Config{Store: store}).GetUser(cmd.Context(), userID)
				if err != nil {
					return err
				}

				if c.Auth.Secret == "" {
					return fmt.Errorf("auth secret not set")
				}

				tok, err := auth.NewAuthenticator(c.Auth.Secret, c.Auth.TokenTTL).Issue(u.UserID)
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), tok)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "ID of the user")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
