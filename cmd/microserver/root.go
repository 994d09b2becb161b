package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/tablerest/core/backend"
	"github.com/relabs-tech/tablerest/core/catalog"
	"github.com/relabs-tech/tablerest/core/csql"
	"github.com/relabs-tech/tablerest/core/logger"
)

// serviceKey is used to store the service configuration in the command context
type serviceKey struct{}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "microserver",
		Short: "Generic table REST api",
		Long: `microserver reflects the tables of a mysql, postgres or sqlite database and
serves create, read, update, delete and list routes for each of them.

The database and the server are configured with environment variables, DB_DRIVER,
DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SCHEMA, LISTEN_ADDR and LOG_LEVEL
being the most common ones.`,
		Version: backend.Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			service, err := LoadService()
			if err != nil {
				return err
			}
			level, err := service.Level()
			if err != nil {
				return err
			}
			logger.InitLogger(level)
			cmd.SetContext(context.WithValue(cmd.Context(), serviceKey{}, service))
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newTablesCommand())
	return rootCmd
}

func serviceFromCommand(cmd *cobra.Command) *Service {
	service, _ := cmd.Context().Value(serviceKey{}).(*Service)
	if service == nil {
		service = &Service{}
	}
	return service
}

// openCatalog opens the database and reflects it. The caller closes the database.
func openCatalog(ctx context.Context, service *Service) (*csql.DB, *catalog.Catalog, error) {
	config, err := service.Configuration()
	if err != nil {
		return nil, nil, err
	}
	db, err := csql.Open(ctx, config)
	if err != nil {
		return nil, nil, err
	}
	cat, err := catalog.Load(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, cat, nil
}
