package main

import (
	"os"

	"github.com/Scalingo/sclng-language-stats/cmd"
	log "github.com/sirupsen/logrus"
)

// version can be overridden at build time with -ldflags "-X main.version=vX.Y.Z"
var version = "dev"

func main() {
	if err := cmd.Execute(version); err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
