package cli

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/database"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create any missing database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(config.Load())
			if err != nil {
				return err
			}
			defer db.Close()
			return runMigrate(cmd.Context(), db)
		},
	}
}

func runMigrate(ctx context.Context, db *sql.DB) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	log.Printf("migrate: schema up to date")
	return nil
}
