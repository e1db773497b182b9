package main

import (
	"fmt"

	"github.com/robertarktes/eventhub/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/eventhub/internal/adapters/mongo"
	"github.com/robertarktes/eventhub/internal/observability"
	"github.com/robertarktes/eventhub/internal/platform"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var skipMongo bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the SQL schema and create Mongo indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			pool, err := platform.OpenCRDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := crdb.Migrate(ctx, pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sql schema applied")

			if skipMongo {
				return nil
			}
			client, db, err := platform.OpenMongo(ctx, cfg)
			if err != nil {
				return err
			}
			defer client.Disconnect(ctx)
			if err := mongoadapter.NewCatalogRepository(db, observability.NewLogger(cfg.LogLevel)).EnsureIndexes(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "mongo indexes created")
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipMongo, "skip-mongo", false, "only apply the SQL schema")
	return cmd
}
