package events

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/transitlive/pkg/consumer"
	"github.com/travigo/transitlive/pkg/ctdf"
	"github.com/travigo/transitlive/pkg/elastic_client"
	"github.com/travigo/transitlive/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Provides the events indexer",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "index simulator events from the events queue into Elasticsearch",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "stats-listen",
						Value: ":3333",
						Usage: "listen target for the queue stats server",
					},
				},
				Action: func(c *cli.Context) error {
					if err := redis_client.Connect(); err != nil {
						return err
					}
					if err := elastic_client.Connect(true); err != nil {
						return err
					}

					redisConsumer := consumer.RedisConsumer{
						QueueName:       QueueName,
						NumberConsumers: 5,
						BatchSize:       20,
						Timeout:         2 * time.Second,
						Consumer:        NewIndexingBatchConsumer(),
						StatsListen:     c.String("stats-listen"),
					}
					if err := redisConsumer.Setup(); err != nil {
						return err
					}

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish
					elastic_client.WaitUntilQueueEmpty()

					return nil
				},
			},
			{
				Name:  "test-event",
				Usage: "publish a test service alert event",
				Action: func(c *cli.Context) error {
					if err := redis_client.Connect(); err != nil {
						return err
					}

					publisher, err := NewPublisher(redis_client.QueueConnection)
					if err != nil {
						log.Fatal().Err(err).Msg("Failed to open events queue")
					}

					now := time.Now()
					validUntil := now.Add(10 * time.Minute)

					return publisher.Publish(&ctdf.Event{
						Type:      ctdf.EventTypeServiceAlert,
						Timestamp: now,
						Body: ctdf.ServiceAlertEvent{
							Action: ctdf.ServiceAlertActionCreated,
							ServiceAlert: &ctdf.ServiceAlert{
								PrimaryIdentifier: "ALERT-TEST",
								CreationDateTime:  now,
								AlertType:         ctdf.ServiceAlertTypeDisruption,
								Severity:          ctdf.ServiceAlertSeverityWarning,
								Title:             ctdf.ServiceAlertTitle(ctdf.ServiceAlertTypeDisruption, "Metro Line 1"),
								Text:              ctdf.ServiceAlertDescription(ctdf.ServiceAlertSeverityWarning, ctdf.ServiceAlertTypeDisruption, "Metro Line 1"),
								AffectedRoutes:    []string{"M1"},
								ValidFrom:         now,
								ValidUntil:        &validUntil,
								Active:            true,
							},
						},
					})
				},
			},
		},
	}
}
