package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/tablerest/core/backend"
	"github.com/relabs-tech/tablerest/core/logger"
	"github.com/relabs-tech/tablerest/core/notify"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the table REST api (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	ctx := cmd.Context()
	service := serviceFromCommand(cmd)
	rlog := logger.FromContext(ctx)

	db, cat, err := openCatalog(ctx, service)
	if err != nil {
		return err
	}
	defer db.Close()
	rlog.Infof("database connected, available tables: %v", cat.Names())

	builder := service.Builder()
	builder.DB = db
	builder.Router = mux.NewRouter()
	builder.Catalog = cat
	if brokers := service.Brokers(); len(brokers) > 0 {
		kafka := notify.NewKafka(brokers, service.KafkaTopic)
		defer kafka.Close()
		builder.Notifier = kafka
	}
	b, err := backend.New(ctx, &builder)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              service.ListenAddress,
		Handler:           b.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	failed := make(chan error, 1)
	go func() {
		rlog.Infoln("listen on", service.ListenAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
		close(failed)
	}()

	select {
	case err := <-failed:
		return err
	case <-ctx.Done():
	}

	rlog.Infoln("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
