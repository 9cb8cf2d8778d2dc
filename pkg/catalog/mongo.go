package catalog

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/travigo/transitlive/pkg/ctdf"
	"github.com/travigo/transitlive/pkg/database"
	"github.com/travigo/transitlive/pkg/util"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoReader struct {
	RoutesCollection *mongo.Collection
	StopsCollection  *mongo.Collection
}

func NewMongoReader() *MongoReader {
	return &MongoReader{
		RoutesCollection: database.GetCollection(database.RoutesCollection),
		StopsCollection:  database.GetCollection(database.StopsCollection),
	}
}

func (r *MongoReader) ListActiveRoutesWithStops(ctx context.Context) (*Catalog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "primaryidentifier", Value: 1}})
	cursor, err := r.RoutesCollection.Find(ctx, bson.M{"active": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("find routes: %w", err)
	}
	defer cursor.Close(ctx)

	catalog := &Catalog{
		Stops: map[string]*ctdf.Stop{},
	}
	stopIDs := map[string]struct{}{}

	for cursor.Next(ctx) {
		var route *ctdf.Route
		if err := cursor.Decode(&route); err != nil {
			log.Error().Err(err).Msg("Failed to decode Route")
			continue
		}

		catalog.Routes = append(catalog.Routes, route)
		for _, stopID := range route.Stops {
			stopIDs[stopID] = struct{}{}
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate routes: %w", err)
	}

	if len(stopIDs) > 0 {
		stopsCursor, err := r.StopsCollection.Find(ctx, bson.M{"primaryidentifier": bson.M{"$in": util.MapKeys(stopIDs)}})
		if err != nil {
			return nil, fmt.Errorf("find stops: %w", err)
		}
		defer stopsCursor.Close(ctx)

		for stopsCursor.Next(ctx) {
			var stop *ctdf.Stop
			if err := stopsCursor.Decode(&stop); err != nil {
				log.Error().Err(err).Msg("Failed to decode Stop")
				continue
			}

			catalog.Stops[stop.PrimaryIdentifier] = stop
		}
		if err := stopsCursor.Err(); err != nil {
			return nil, fmt.Errorf("iterate stops: %w", err)
		}
	}

	if err := catalog.filterUsable(); err != nil {
		return nil, err
	}

	return catalog, nil
}

// Import replaces the routes & stops collections with the contents of the catalog
func (r *MongoReader) Import(ctx context.Context, catalog *Catalog) error {
	var stopOperations []mongo.WriteModel
	for _, stop := range catalog.Stops {
		bsonRep, _ := bson.Marshal(bson.M{"$set": stop})
		updateModel := mongo.NewUpdateOneModel()
		updateModel.SetFilter(bson.M{"primaryidentifier": stop.PrimaryIdentifier})
		updateModel.SetUpdate(bsonRep)
		updateModel.SetUpsert(true)

		stopOperations = append(stopOperations, updateModel)
	}

	var routeOperations []mongo.WriteModel
	for _, route := range catalog.Routes {
		bsonRep, _ := bson.Marshal(bson.M{"$set": route})
		updateModel := mongo.NewUpdateOneModel()
		updateModel.SetFilter(bson.M{"primaryidentifier": route.PrimaryIdentifier})
		updateModel.SetUpdate(bsonRep)
		updateModel.SetUpsert(true)

		routeOperations = append(routeOperations, updateModel)
	}

	if len(stopOperations) > 0 {
		if _, err := r.StopsCollection.BulkWrite(ctx, stopOperations, &options.BulkWriteOptions{}); err != nil {
			return fmt.Errorf("write stops: %w", err)
		}
	}
	if len(routeOperations) > 0 {
		if _, err := r.RoutesCollection.BulkWrite(ctx, routeOperations, &options.BulkWriteOptions{}); err != nil {
			return fmt.Errorf("write routes: %w", err)
		}
	}

	log.Info().
		Int("routes", len(routeOperations)).
		Int("stops", len(stopOperations)).
		Msg("Imported catalog")

	return nil
}
