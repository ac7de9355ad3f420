package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/vango-dev/uireg/internal/config"
	"github.com/vango-dev/uireg/internal/store"
)

func migrateCmd(load func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Manage the database schema.

"uireg serve" applies pending migrations on start; these commands are
for inspecting and rolling back.

Examples:
  uireg migrate up
  uireg migrate version
  uireg migrate down`,
	}

	open := func(ctx context.Context) (*store.Store, error) {
		cfg, err := load()
		if err != nil {
			return nil, err
		}
		return store.Open(ctx, cfg.DatabasePath(), store.WithoutMigrations())
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := open(cmd.Context())
				if err != nil {
					return err
				}
				defer db.Close()
				if err := db.Migrate(); err != nil {
					return err
				}
				v, _, err := db.SchemaVersion()
				if err != nil {
					return err
				}
				success("Schema at version %d", v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := open(cmd.Context())
				if err != nil {
					return err
				}
				defer db.Close()
				if err := db.MigrateDown(); err != nil {
					return err
				}
				warn("All migrations rolled back")
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := open(cmd.Context())
				if err != nil {
					return err
				}
				defer db.Close()
				v, dirty, err := db.SchemaVersion()
				if err != nil {
					return err
				}
				if dirty {
					warn("Schema version %d (dirty)", v)
					return nil
				}
				info("Schema version %d", v)
				return nil
			},
		},
	)
	return cmd
}
