// Package alertstore mirrors the simulator's service alerts into MongoDB so they
// survive a restart, and loads them back when the simulator starts.
package alertstore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/transitlive/pkg/broadcast"
	"github.com/travigo/transitlive/pkg/ctdf"
	"github.com/travigo/transitlive/pkg/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const writeTimeout = 10 * time.Second

type MongoStore struct {
	Collection *mongo.Collection
}

func NewMongoStore() *MongoStore {
	return &MongoStore{
		Collection: database.GetCollection(database.ServiceAlertsCollection),
	}
}

func (s *MongoStore) LoadServiceAlerts(ctx context.Context) ([]*ctdf.ServiceAlert, error) {
	opts := options.Find().SetSort(bson.D{{Key: "creationdatetime", Value: 1}})
	cursor, err := s.Collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find service alerts: %w", err)
	}
	defer cursor.Close(ctx)

	var serviceAlerts []*ctdf.ServiceAlert
	for cursor.Next(ctx) {
		var serviceAlert *ctdf.ServiceAlert
		if err := cursor.Decode(&serviceAlert); err != nil {
			log.Error().Err(err).Msg("Failed to decode ServiceAlert")
			continue
		}

		serviceAlerts = append(serviceAlerts, serviceAlert)
	}

	return serviceAlerts, cursor.Err()
}

// Apply writes a single service alert event through to the collection
func (s *MongoStore) Apply(ctx context.Context, event *ctdf.Event) error {
	model, err := writeModel(event)
	if err != nil || model == nil {
		return err
	}

	_, err = s.Collection.BulkWrite(ctx, []mongo.WriteModel{model}, &options.BulkWriteOptions{})
	return err
}

// Run applies every event from the subscription until it is disconnected
func (s *MongoStore) Run(subscription *broadcast.Subscription) {
	subscription.Drain(func(event *ctdf.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		if err := s.Apply(ctx, event); err != nil {
			log.Error().Err(err).Msg("Failed to store service alert")
		}
	})
}

func writeModel(event *ctdf.Event) (mongo.WriteModel, error) {
	if event.Type != ctdf.EventTypeServiceAlert {
		return nil, nil
	}

	var body *ctdf.ServiceAlertEvent
	switch eventBody := event.Body.(type) {
	case *ctdf.ServiceAlertEvent:
		body = eventBody
	case ctdf.ServiceAlertEvent:
		body = &eventBody
	}
	if body == nil || body.ServiceAlert == nil {
		return nil, fmt.Errorf("unexpected service alert event body %T", event.Body)
	}

	filter := bson.M{"primaryidentifier": body.ServiceAlert.PrimaryIdentifier}

	if body.Action == ctdf.ServiceAlertActionDeleted {
		return mongo.NewDeleteOneModel().SetFilter(filter), nil
	}

	return mongo.NewReplaceOneModel().
		SetFilter(filter).
		SetReplacement(body.ServiceAlert).
		SetUpsert(true), nil
}
