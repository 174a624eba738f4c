package cli

import (
	"github.com/spf13/cobra"

	"github.com/victornm/quizhub/internal/storage/migrations"
	"github.com/victornm/quizhub/internal/storage/postgres"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			p := c.Postgres
			return migrations.Up(cmd.Context(), postgres.DSN(p.User, p.Pass, p.Addr, p.Name, p.SSLMode))
		},
	}
}
