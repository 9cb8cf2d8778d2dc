package api

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/transitlive/pkg/alertstore"
	"github.com/travigo/transitlive/pkg/broadcast"
	"github.com/travigo/transitlive/pkg/catalog"
	"github.com/travigo/transitlive/pkg/ctdf"
	"github.com/travigo/transitlive/pkg/database"
	"github.com/travigo/transitlive/pkg/dbwatch"
	"github.com/travigo/transitlive/pkg/events"
	"github.com/travigo/transitlive/pkg/gtfsrt"
	"github.com/travigo/transitlive/pkg/redis_client"
	"github.com/travigo/transitlive/pkg/simulator"
	"github.com/urfave/cli/v2"
)

const feedCacheExpiration = 10 * time.Second

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "web-api",
		Usage: "Runs the live simulator and the web API in front of it",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the simulator & web api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web server",
					},
					&cli.BoolFlag{
						Name:  "watch-catalog",
						Value: true,
						Usage: "reinitialise the simulator when the MongoDB catalog changes",
					},
				},
				Action: func(c *cli.Context) error {
					config, err := simulator.GetConfig()
					if err != nil {
						return err
					}

					reader, err := catalog.NewReader()
					if err != nil {
						return err
					}

					hub := broadcast.NewHub(broadcast.DefaultBufferSize)
					options := []simulator.Option{}

					if database.Connected() {
						store := alertstore.NewMongoStore()
						options = append(options, simulator.WithAlertLoader(store))

						go store.Run(hub.Connect("alertstore", ctdf.EventTypeServiceAlert))
					}

					var feedCache *gtfsrt.FeedCache
					if redis_client.Configured() {
						if err := redis_client.Connect(); err != nil {
							return err
						}

						publisher, err := events.NewPublisher(redis_client.QueueConnection)
						if err != nil {
							return err
						}
						go publisher.Run(hub.Connect("events-queue", ctdf.EventTypeArrivalUpdates, ctdf.EventTypeServiceAlert))

						feedCache = gtfsrt.NewFeedCache(redis_client.Client, feedCacheExpiration)
					}

					engine, err := simulator.NewEngine(config, reader, hub, options...)
					if err != nil {
						return err
					}
					ctx, cancel := context.WithCancel(context.Background())
					defer cancel()

					engine.Start(ctx)

					if _, ok := reader.(*catalog.MongoReader); ok && c.Bool("watch-catalog") {
						go dbwatch.NewCatalogWatch(engine).Run(ctx)
					}

					server := &Server{
						Engine:    engine,
						Hub:       hub,
						FeedCache: feedCache,
					}
					webApp := server.App()

					go func() {
						if err := webApp.Listen(c.String("listen")); err != nil {
							log.Fatal().Err(err).Msg("Web server stopped")
						}
					}()
					log.Info().Str("listen", c.String("listen")).Msg("Web API listening")

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					cancel()
					engine.Stop()
					hub.Close()

					if err := webApp.ShutdownWithTimeout(10 * time.Second); err != nil {
						log.Error().Err(err).Msg("Failed to shutdown web server")
					}

					return database.Disconnect()
				},
			},
		},
	}
}
