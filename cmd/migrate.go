package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"birdcatalog/internal/storage"
)

func migrateCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Run database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{storage.MigrateUp, storage.MigrateDown, storage.MigrateStatus},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := storage.NewStorage(cmd.Context(), cfg.DatabaseURL, cfg.StatusCacheTTL)
			if err != nil {
				return fmt.Errorf("failed to init storage: %w", err)
			}
			defer db.Close()

			return storage.Migrate(cmd.Context(), db.DB(), args[0], log)
		},
	}
}
