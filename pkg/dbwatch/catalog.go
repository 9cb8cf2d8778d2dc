// Package dbwatch watches the catalog collections and reinitialises the
// simulator when routes or stops change.
package dbwatch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/travigo/transitlive/pkg/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const DefaultSettleTime = 5 * time.Second

type Reinitializer interface {
	Reinitialize(ctx context.Context) error
}

type CatalogWatch struct {
	Collections []*mongo.Collection
	Target      Reinitializer
	// Changes arriving within SettleTime of each other cause a single reinitialisation
	SettleTime time.Duration
}

func NewCatalogWatch(target Reinitializer) *CatalogWatch {
	return &CatalogWatch{
		Collections: []*mongo.Collection{
			database.GetCollection(database.RoutesCollection),
			database.GetCollection(database.StopsCollection),
		},
		Target:     target,
		SettleTime: DefaultSettleTime,
	}
}

// Run blocks until ctx is cancelled
func (w *CatalogWatch) Run(ctx context.Context) {
	changes := make(chan string)

	var wg conc.WaitGroup
	for _, collection := range w.Collections {
		collection := collection
		wg.Go(func() {
			w.watchCollection(ctx, collection, changes)
		})
	}

	w.settle(ctx, changes)
	wg.Wait()
}

func (w *CatalogWatch) watchCollection(ctx context.Context, collection *mongo.Collection, changes chan<- string) {
	log.Info().Str("collection", collection.Name()).Msg("Starting dbwatch on collection")

	matchPipeline := bson.D{
		{
			Key: "$match", Value: bson.D{
				{Key: "operationType", Value: bson.D{{Key: "$in", Value: bson.A{"insert", "update", "replace", "delete"}}}},
			},
		},
	}
	stream, err := collection.Watch(ctx, mongo.Pipeline{matchPipeline})
	if err != nil {
		log.Error().Err(err).Str("collection", collection.Name()).Msg("Failed to watch collection")
		return
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var data struct {
			OperationType string `bson:"operationType"`
		}
		if err := stream.Decode(&data); err != nil {
			log.Error().Err(err).Msg("Failed to decode change event")
			continue
		}

		log.Debug().Str("collection", collection.Name()).Str("operation", data.OperationType).Msg("Catalog changed")

		select {
		case changes <- collection.Name():
		case <-ctx.Done():
			return
		}
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Str("collection", collection.Name()).Msg("Change stream closed")
	}
}

// settle waits for changes to go quiet before reinitialising the target
func (w *CatalogWatch) settle(ctx context.Context, changes <-chan string) {
	timer := time.NewTimer(w.SettleTime)
	timer.Stop()
	pending := 0

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-changes:
			pending++
			timer.Reset(w.SettleTime)
		case <-timer.C:
			log.Info().Int("changes", pending).Msg("Catalog changed, reinitialising simulator")
			pending = 0

			if err := w.Target.Reinitialize(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to reinitialise simulator after catalog change")
			}
		}
	}
}
