package api

import (
	"github.com/odjezdy/odjezdy/pkg/cachestore"
	"github.com/odjezdy/odjezdy/pkg/config"
	"github.com/odjezdy/odjezdy/pkg/dataaggregator"
	"github.com/odjezdy/odjezdy/pkg/pmdp"
	"github.com/odjezdy/odjezdy/pkg/stopdirectory"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "web-api",
		Usage: "Provides the departure board web API",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run web api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "listen target for the web server, defaults to the configured value",
					},
					&cli.StringFlag{
						Name:  "config",
						Usage: "path to the config file",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}

					listen := cfg.Listen
					if c.String("listen") != "" {
						listen = c.String("listen")
					}

					aggregator := dataaggregator.NewAggregator(
						pmdp.NewClient(cfg.UpstreamURL, cfg.UpstreamTimeout()),
						stopdirectory.Load(cfg.StopDirectoryPath),
						cachestore.NewStore(cfg.CacheDir),
					)

					return SetupServer(listen, aggregator)
				},
			},
		},
	}
}
