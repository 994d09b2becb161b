// Command microserver serves a generic REST api for the tables of a relational database.
//
// The database is reflected once at startup. Configuration is read from the environment,
// see Service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/tablerest/core/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Default().WithError(err).Errorln("microserver failed")
		os.Exit(1)
	}
}
