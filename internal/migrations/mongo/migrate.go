package mongo

import (
	"context"
	"fmt"
	bookingsrepo "noqbot/internal/bookings/repository"
	"noqbot/internal/migrations/mongo/validators"
	slotsrepo "noqbot/internal/slots/repository"
	"noqbot/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	SlotDaysIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "client_id", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("client_date_unique"),
		},
	}

	BookingsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "client_id", Value: 1},
				{Key: "date", Value: 1},
				{Key: "selected_time", Value: 1},
			},
			Options: options.Index().SetName("client_date_time"),
		},
		{
			Keys: bson.D{
				{Key: "slot_day_id", Value: 1},
				{Key: "selected_time", Value: 1},
			},
			Options: options.Index().SetName("slot_day_time"),
		},
	}
)

type CollectionDef struct {
	Name      string
	Indexes   []mongo.IndexModel
	Validator bson.M
}

// Collections lists every collection this core owns, in creation order.
func Collections() []CollectionDef {
	return []CollectionDef{
		{Name: slotsrepo.CollectionName, Indexes: SlotDaysIndexes, Validator: validators.SlotDayValidator},
		{Name: bookingsrepo.CollectionName, Indexes: BookingsIndexes, Validator: validators.BookingValidator},
	}
}

func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	for _, def := range Collections() {
		if err := ensureCollection(ctx, db, def.Name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	names, err := db.Collection(name).Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "indexes", names)
	return nil
}
