package repository

import (
	"context"
	"errors"
	"fmt"
	bookingserrors "noqbot/internal/bookings/errors"
	"noqbot/pkg/config"
	"noqbot/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "bookings"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, clientID, id string) (*model.Booking, error)
	// FindActive matches bookings that are not cancelled.
	FindActive(ctx context.Context, clientID, id string) (*model.Booking, error)
	FindConfirmed(ctx context.Context, clientID, id string) (*model.Booking, error)
	List(ctx context.Context, clientID string, filter model.BookingFilter) ([]*model.Booking, error)
	// UpdateStatus never touches a cancelled booking. A booking that is
	// already cancelled reads as ErrNotFound.
	UpdateStatus(ctx context.Context, clientID, id, status string) (*model.Booking, error)
	// UpdateForReschedule applies only while the booking is confirmed and
	// still on move.FromSlotDayID/move.FromTime, otherwise ErrNotFound.
	UpdateForReschedule(ctx context.Context, clientID, id string, move Move) (*model.Booking, error)
}

// Move describes a reschedule from the slot the caller read to a newly
// locked one.
type Move struct {
	FromSlotDayID string
	FromTime      string
	SlotDayID     string
	Date          string
	SelectedTime  string
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// withTimeout wraps the context with a timeout, keeping any earlier deadline
// the caller already set.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func scopedFilter(clientID, id string) (bson.M, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	return bson.M{"_id": objectID, "client_id": clientID}, nil
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.CreatedAt = now
	booking.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) findOne(ctx context.Context, filter bson.M) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	if err := r.collection.FindOne(ctx, filter).Decode(&booking); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, clientID, id string) (*model.Booking, error) {
	filter, err := scopedFilter(clientID, id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, filter)
}

func (r *mongoBookingRepository) FindActive(ctx context.Context, clientID, id string) (*model.Booking, error) {
	filter, err := scopedFilter(clientID, id)
	if err != nil {
		return nil, err
	}
	filter["status"] = bson.M{"$ne": config.Cancelled}
	return r.findOne(ctx, filter)
}

func (r *mongoBookingRepository) FindConfirmed(ctx context.Context, clientID, id string) (*model.Booking, error) {
	filter, err := scopedFilter(clientID, id)
	if err != nil {
		return nil, err
	}
	filter["status"] = config.Confirmed
	return r.findOne(ctx, filter)
}

func (r *mongoBookingRepository) List(ctx context.Context, clientID string, f model.BookingFilter) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"client_id": clientID}
	if f.Date != "" {
		filter["date"] = f.Date
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "date", Value: 1},
		{Key: "selected_time", Value: 1},
	})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.Booking{}
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) update(ctx context.Context, filter bson.M, set bson.M) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	set["updated_at"] = time.Now().UTC().Truncate(time.Millisecond)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking model.Booking
	if err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&booking); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, clientID, id, status string) (*model.Booking, error) {
	filter, err := scopedFilter(clientID, id)
	if err != nil {
		return nil, err
	}
	filter["status"] = bson.M{"$ne": config.Cancelled}
	return r.update(ctx, filter, bson.M{"status": status})
}

func (r *mongoBookingRepository) UpdateForReschedule(ctx context.Context, clientID, id string, move Move) (*model.Booking, error) {
	filter, err := scopedFilter(clientID, id)
	if err != nil {
		return nil, err
	}
	filter["status"] = config.Confirmed
	filter["slot_day_id"] = move.FromSlotDayID
	filter["selected_time"] = move.FromTime

	return r.update(ctx, filter, bson.M{
		"slot_day_id":   move.SlotDayID,
		"date":          move.Date,
		"selected_time": move.SelectedTime,
	})
}
