package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func createIndexes() {
	createCatalogIndexes()
	createServiceAlertsIndexes()
}

func createCatalogIndexes() {
	// Routes
	routesCollection := GetCollection(RoutesCollection)
	routesIndex := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "active", Value: 1}},
		},
	}

	opts := options.CreateIndexes()
	_, err := routesCollection.Indexes().CreateMany(context.Background(), routesIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}

	// Stops
	stopsCollection := GetCollection(StopsCollection)
	stopsIndex := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "location", Value: "2dsphere"}},
		},
	}

	opts = options.CreateIndexes()
	_, err = stopsCollection.Indexes().CreateMany(context.Background(), stopsIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createServiceAlertsIndexes() {
	serviceAlertsCollection := GetCollection(ServiceAlertsCollection)
	serviceAlertsIndex := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "primaryidentifier", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "active", Value: 1},
				{Key: "alerttype", Value: 1},
				{Key: "affectedroutes", Value: 1},
			},
		},
	}

	opts := options.CreateIndexes()
	_, err := serviceAlertsCollection.Indexes().CreateMany(context.Background(), serviceAlertsIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}
