// Command hello logs a greeting
package main

import (
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/tablerest/core/logger"
)

// Greeting is logged by hello
const Greeting = "Hello, World!"

func greet(log *logrus.Entry) {
	log.Infoln(Greeting)
}

func main() {
	logger.InitLogger(logrus.InfoLevel)
	greet(logger.Default())
}
