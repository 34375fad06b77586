package repository

import (
	"context"
	"errors"
	"fmt"
	slotserrors "noqbot/internal/slots/errors"
	"noqbot/pkg/config"
	"noqbot/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "slot_days"
)

type SlotDayRepository interface {
	FindByClientAndDate(ctx context.Context, clientID, date string) (*model.SlotDay, error)
	FindByID(ctx context.Context, clientID, id string) (*model.SlotDay, error)
	List(ctx context.Context, clientID, date string) ([]*model.SlotDay, error)
	ExistingDates(ctx context.Context, clientID string, dates []string) (map[string]bool, error)
	Create(ctx context.Context, slotDay *model.SlotDay) error
	LockTimeEntry(ctx context.Context, clientID, date, time string) (*model.SlotDay, error)
	UnlockTimeEntry(ctx context.Context, clientID, slotDayID, time string) error
	AttachBookingRef(ctx context.Context, slotDayID, time, bookingID string) error
	ReplaceTimes(ctx context.Context, clientID, id string, times []model.TimeEntry) (*model.SlotDay, error)
	Delete(ctx context.Context, clientID, id string) error
}

type mongoSlotDayRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSlotDayRepository(cfg *config.Config) SlotDayRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotDayRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// withTimeout never extends a deadline the caller already set.
func (r *mongoSlotDayRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}
	return oid, nil
}

func (r *mongoSlotDayRepository) FindByClientAndDate(ctx context.Context, clientID, date string) (*model.SlotDay, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"client_id": clientID, "date": date}

	var slotDay model.SlotDay
	if err := r.collection.FindOne(ctx, filter).Decode(&slotDay); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, slotserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find slot day: %w", err)
	}
	return &slotDay, nil
}

func (r *mongoSlotDayRepository) FindByID(ctx context.Context, clientID, id string) (*model.SlotDay, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var slotDay model.SlotDay
	err = r.collection.FindOne(ctx, bson.M{"_id": oid, "client_id": clientID}).Decode(&slotDay)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, slotserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find slot day: %w", err)
	}
	return &slotDay, nil
}

func (r *mongoSlotDayRepository) List(ctx context.Context, clientID, date string) ([]*model.SlotDay, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"client_id": clientID}
	if date != "" {
		filter["date"] = date
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list slot days: %w", err)
	}
	defer cursor.Close(ctx)

	slotDays := []*model.SlotDay{}
	if err = cursor.All(ctx, &slotDays); err != nil {
		return nil, fmt.Errorf("failed to decode slot days: %w", err)
	}
	return slotDays, nil
}

func (r *mongoSlotDayRepository) ExistingDates(ctx context.Context, clientID string, dates []string) (map[string]bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"client_id": clientID, "date": bson.M{"$in": dates}}
	opts := options.Find().SetProjection(bson.M{"date": 1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing dates: %w", err)
	}
	defer cursor.Close(ctx)

	existing := make(map[string]bool)
	for cursor.Next(ctx) {
		var doc struct {
			Date string `bson:"date"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode slot day date: %w", err)
		}
		existing[doc.Date] = true
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate slot days: %w", err)
	}
	return existing, nil
}

func (r *mongoSlotDayRepository) Create(ctx context.Context, slotDay *model.SlotDay) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	slotDay.CreatedAt = now
	slotDay.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, slotDay)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", slotserrors.ErrAlreadyExists, slotDay.Date)
		}
		return fmt.Errorf("failed to create slot day: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		slotDay.ID = oid.Hex()
	}
	return nil
}

// LockTimeEntry flips a free entry to booked in one conditional update. The
// $elemMatch filter and the positional $set are evaluated by the server as a
// single document write, so of two concurrent callers at most one matches.
func (r *mongoSlotDayRepository) LockTimeEntry(ctx context.Context, clientID, date, t string) (*model.SlotDay, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"client_id": clientID,
		"date":      date,
		"times": bson.M{"$elemMatch": bson.M{
			"time":      t,
			"is_booked": false,
		}},
	}
	update := bson.M{"$set": bson.M{
		"times.$.is_booked":  true,
		"times.$.booking_id": nil,
		"updated_at":         time.Now().UTC().Truncate(time.Millisecond),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var slotDay model.SlotDay
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&slotDay); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, slotserrors.ErrTimeUnavailable
		}
		return nil, fmt.Errorf("failed to lock time entry: %w", err)
	}
	return &slotDay, nil
}

func (r *mongoSlotDayRepository) UnlockTimeEntry(ctx context.Context, clientID, slotDayID, t string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := parseID(slotDayID)
	if err != nil {
		return err
	}

	filter := bson.M{"_id": oid, "client_id": clientID, "times.time": t}
	update := bson.M{"$set": bson.M{
		"times.$.is_booked":  false,
		"times.$.booking_id": nil,
		"updated_at":         time.Now().UTC().Truncate(time.Millisecond),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to unlock time entry: %w", err)
	}
	if result.MatchedCount == 0 {
		return slotserrors.ErrNotFound
	}
	return nil
}

func (r *mongoSlotDayRepository) AttachBookingRef(ctx context.Context, slotDayID, t, bookingID string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := parseID(slotDayID)
	if err != nil {
		return err
	}

	filter := bson.M{"_id": oid, "times": bson.M{"$elemMatch": bson.M{"time": t, "is_booked": true}}}
	update := bson.M{"$set": bson.M{"times.$.booking_id": bookingID}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to attach booking reference: %w", err)
	}
	if result.MatchedCount == 0 {
		return slotserrors.ErrNotFound
	}
	return nil
}

func (r *mongoSlotDayRepository) ReplaceTimes(ctx context.Context, clientID, id string, times []model.TimeEntry) (*model.SlotDay, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": oid, "client_id": clientID, "times.is_booked": bson.M{"$ne": true}}
	update := bson.M{"$set": bson.M{
		"times":      times,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var slotDay model.SlotDay
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&slotDay)
	if err == nil {
		return &slotDay, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to replace slot day times: %w", err)
	}
	return nil, r.missReason(ctx, oid, clientID)
}

func (r *mongoSlotDayRepository) Delete(ctx context.Context, clientID, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := parseID(id)
	if err != nil {
		return err
	}

	filter := bson.M{"_id": oid, "client_id": clientID, "times.is_booked": bson.M{"$ne": true}}
	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete slot day: %w", err)
	}
	if result.DeletedCount == 0 {
		return r.missReason(ctx, oid, clientID)
	}
	return nil
}

// missReason explains why a guarded write matched nothing.
func (r *mongoSlotDayRepository) missReason(ctx context.Context, oid primitive.ObjectID, clientID string) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": oid, "client_id": clientID})
	if err != nil {
		return fmt.Errorf("failed to check slot day: %w", err)
	}
	if count == 0 {
		return slotserrors.ErrNotFound
	}
	return slotserrors.ErrHasBookedEntries
}
