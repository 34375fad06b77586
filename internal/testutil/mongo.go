// Package testutil connects integration tests to a live MongoDB. Tests that
// use it are skipped unless MONGO_URI is set.
package testutil

import (
	"context"
	"fmt"
	mongoMigration "noqbot/internal/migrations/mongo"
	"noqbot/pkg/client"
	"noqbot/pkg/config"
	"noqbot/pkg/logger"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ConnectionTimeout = 10 * time.Second

type MongoHelper struct {
	Client   *mongo.Client
	Database *mongo.Database
	Config   *config.Config
}

// NewMongoHelper connects to MONGO_URI, creates a throwaway database with the
// production collections and indexes, and drops it when the test ends.
func NewMongoHelper(t *testing.T) *MongoHelper {
	t.Helper()

	uri := os.Getenv(config.EnvMongoURI)
	if uri == "" {
		t.Skipf("%s not set, skipping Mongo integration test", config.EnvMongoURI)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ConnectionTimeout)
	defer cancel()

	mc, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}
	if err := mc.Ping(ctx, nil); err != nil {
		t.Fatalf("failed to ping MongoDB: %v", err)
	}

	dbName := fmt.Sprintf("noqbot_it_%s", primitive.NewObjectID().Hex())
	db := mc.Database(dbName)
	log := logger.Discard()

	if err := mongoMigration.RunMigration(ctx, db, log); err != nil {
		t.Fatalf("failed to migrate %s: %v", dbName, err)
	}

	h := &MongoHelper{
		Client:   mc,
		Database: db,
		Config: &config.Config{
			MongoDatabaseName: dbName,
			ReadTimeout:       5 * time.Second,
			WriteTimeout:      5 * time.Second,
			Log:               log,
			Client:            &client.Client{Mongo: mc},
		},
	}
	t.Cleanup(func() { h.close(t) })
	return h
}

func (h *MongoHelper) close(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.Database.Drop(ctx); err != nil {
		t.Logf("warning: failed to drop %s: %v", h.Database.Name(), err)
	}
	if err := h.Client.Disconnect(ctx); err != nil {
		t.Logf("warning: failed to disconnect from MongoDB: %v", err)
	}
}
