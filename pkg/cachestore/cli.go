package cachestore

import (
	"github.com/odjezdy/odjezdy/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the departure board cache",
		Subcommands: []*cli.Command{
			{
				Name:  "sweep",
				Usage: "delete stale cache entries",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "config",
						Usage: "path to the config file",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "delete every cache entry regardless of age",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}

					deleted := NewStore(cfg.CacheDir).Sweep(c.Bool("all"))

					log.Info().Int("deleted", deleted).Str("dir", cfg.CacheDir).Msg("Swept departure board cache")

					return nil
				},
			},
		},
	}
}
