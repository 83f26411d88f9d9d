package main

import (
	"os"
	"time"

	"github.com/odjezdy/odjezdy/pkg/api"
	"github.com/odjezdy/odjezdy/pkg/cachestore"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("ODJEZDY_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("ODJEZDY_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "odjezdy",
		Description: "Departure board aggregation for the Plzeň transit network",

		Commands: []*cli.Command{
			api.RegisterCLI(),
			cachestore.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
