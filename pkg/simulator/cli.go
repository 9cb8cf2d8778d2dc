package simulator

import (
	"context"
	"time"

	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/travigo/transitlive/pkg/broadcast"
	"github.com/travigo/transitlive/pkg/catalog"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "simulator",
		Usage: "Inspect the live simulator",
		Subcommands: []*cli.Command{
			{
				Name:  "dump",
				Usage: "initialise a simulator from the catalog, let it run and print its state",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "run-for",
						Value: 0,
						Usage: "how long to let the simulator run before dumping",
					},
				},
				Action: func(c *cli.Context) error {
					config, err := GetConfig()
					if err != nil {
						return err
					}

					reader, err := catalog.NewReader()
					if err != nil {
						return err
					}

					hub := broadcast.NewHub(broadcast.DefaultBufferSize)
					defer hub.Close()

					engine, err := NewEngine(config, reader, hub)
					if err != nil {
						return err
					}
					engine.Start(c.Context)
					defer engine.Stop()

					if err := engine.Reinitialize(c.Context); err != nil {
						return err
					}

					if runFor := c.Duration("run-for"); runFor > 0 {
						log.Info().Dur("duration", runFor).Msg("Letting simulator run")
						time.Sleep(runFor)
					}

					ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
					defer cancel()

					snapshot, err := engine.Snapshot(ctx)
					if err != nil {
						return err
					}

					pretty.Println(snapshot)

					return nil
				},
			},
		},
	}
}
