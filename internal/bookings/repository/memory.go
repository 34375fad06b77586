package repository

import (
	"context"
	"fmt"
	bookingserrors "noqbot/internal/bookings/errors"
	"noqbot/pkg/config"
	"noqbot/pkg/model"
	"slices"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryBookingRepository is an in-process booking store with the same
// lookup and ordering rules as the Mongo repository.
type MemoryBookingRepository struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking
}

func NewMemoryBookingRepository() *MemoryBookingRepository {
	return &MemoryBookingRepository{bookings: make(map[string]*model.Booking)}
}

func (m *MemoryBookingRepository) lookup(clientID, id string, match func(*model.Booking) bool) (*model.Booking, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	b, ok := m.bookings[id]
	if !ok || b.ClientID != clientID || (match != nil && !match(b)) {
		return nil, bookingserrors.ErrNotFound
	}
	return b, nil
}

func (m *MemoryBookingRepository) Create(_ context.Context, booking *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.ID = primitive.NewObjectID().Hex()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	stored := *booking
	m.bookings[booking.ID] = &stored
	return nil
}

func (m *MemoryBookingRepository) find(clientID, id string, match func(*model.Booking) bool) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.lookup(clientID, id, match)
	if err != nil {
		return nil, err
	}
	out := *b
	return &out, nil
}

func (m *MemoryBookingRepository) FindByID(_ context.Context, clientID, id string) (*model.Booking, error) {
	return m.find(clientID, id, nil)
}

func (m *MemoryBookingRepository) FindActive(_ context.Context, clientID, id string) (*model.Booking, error) {
	return m.find(clientID, id, func(b *model.Booking) bool { return b.Status != config.Cancelled })
}

func (m *MemoryBookingRepository) FindConfirmed(_ context.Context, clientID, id string) (*model.Booking, error) {
	return m.find(clientID, id, func(b *model.Booking) bool { return b.Status == config.Confirmed })
}

func (m *MemoryBookingRepository) List(_ context.Context, clientID string, f model.BookingFilter) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*model.Booking{}
	for _, b := range m.bookings {
		if b.ClientID != clientID {
			continue
		}
		if (f.Date != "" && b.Date != f.Date) || (f.Status != "" && b.Status != f.Status) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *model.Booking) int {
		if c := strings.Compare(a.Date, b.Date); c != 0 {
			return c
		}
		if c := strings.Compare(a.SelectedTime, b.SelectedTime); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *MemoryBookingRepository) UpdateStatus(_ context.Context, clientID, id, status string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.lookup(clientID, id, func(b *model.Booking) bool { return b.Status != config.Cancelled })
	if err != nil {
		return nil, err
	}
	b.Status = status
	b.UpdatedAt = time.Now().UTC()
	out := *b
	return &out, nil
}

func (m *MemoryBookingRepository) UpdateForReschedule(_ context.Context, clientID, id string, move Move) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.lookup(clientID, id, func(b *model.Booking) bool {
		return b.Status == config.Confirmed && b.SlotDayID == move.FromSlotDayID && b.SelectedTime == move.FromTime
	})
	if err != nil {
		return nil, err
	}
	b.SlotDayID = move.SlotDayID
	b.Date = move.Date
	b.SelectedTime = move.SelectedTime
	b.UpdatedAt = time.Now().UTC()
	out := *b
	return &out, nil
}

var _ BookingRepository = (*MemoryBookingRepository)(nil)
