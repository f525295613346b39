package main

import (
	"flag"
	"os"

	"github.com/bazasystems/madaris/internal/app"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	flag.Parse()

	if errRun := app.Run(*configPath); errRun != nil {
		log.WithError(errRun).Error("server exited")
		os.Exit(1)
	}
}
