package main

import (
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-escrow/pkg/app"
)

func main() {
	if err := app.Run(&escrowApp{}); err != nil {
		logrus.WithError(err).Fatal("error running escrowd")
	}
}
