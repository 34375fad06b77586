package repository

import (
	"context"
	"fmt"
	slotserrors "noqbot/internal/slots/errors"
	"noqbot/pkg/model"
	"slices"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemorySlotDayRepository keeps slot days in process memory. Every method
// holds the store mutex for its whole read-modify-write, which gives
// LockTimeEntry the same all-or-nothing behaviour as the Mongo conditional
// update. It backs tests and local runs without a database.
type MemorySlotDayRepository struct {
	mu    sync.Mutex
	days  map[string]*model.SlotDay
	order []string
}

func NewMemorySlotDayRepository() *MemorySlotDayRepository {
	return &MemorySlotDayRepository{days: make(map[string]*model.SlotDay)}
}

func cloneSlotDay(s *model.SlotDay) *model.SlotDay {
	out := *s
	out.Times = make([]model.TimeEntry, len(s.Times))
	for i, t := range s.Times {
		out.Times[i] = t
		if t.BookingID != nil {
			id := *t.BookingID
			out.Times[i].BookingID = &id
		}
	}
	return &out
}

func (m *MemorySlotDayRepository) get(clientID, id string) (*model.SlotDay, error) {
	if _, err := parseID(id); err != nil {
		return nil, err
	}
	s, ok := m.days[id]
	if !ok || (clientID != "" && s.ClientID != clientID) {
		return nil, slotserrors.ErrNotFound
	}
	return s, nil
}

func (m *MemorySlotDayRepository) byDate(clientID, date string) *model.SlotDay {
	for _, id := range m.order {
		if s := m.days[id]; s.ClientID == clientID && s.Date == date {
			return s
		}
	}
	return nil
}

func (m *MemorySlotDayRepository) FindByClientAndDate(_ context.Context, clientID, date string) (*model.SlotDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.byDate(clientID, date)
	if s == nil {
		return nil, slotserrors.ErrNotFound
	}
	return cloneSlotDay(s), nil
}

func (m *MemorySlotDayRepository) FindByID(_ context.Context, clientID, id string) (*model.SlotDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.get(clientID, id)
	if err != nil {
		return nil, err
	}
	return cloneSlotDay(s), nil
}

func (m *MemorySlotDayRepository) List(_ context.Context, clientID, date string) ([]*model.SlotDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*model.SlotDay{}
	for _, id := range m.order {
		s := m.days[id]
		if s.ClientID != clientID || (date != "" && s.Date != date) {
			continue
		}
		out = append(out, cloneSlotDay(s))
	}
	slices.SortStableFunc(out, func(a, b *model.SlotDay) int {
		switch {
		case a.Date < b.Date:
			return -1
		case a.Date > b.Date:
			return 1
		}
		return 0
	})
	return out, nil
}

func (m *MemorySlotDayRepository) ExistingDates(_ context.Context, clientID string, dates []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := make(map[string]bool)
	for _, d := range dates {
		if m.byDate(clientID, d) != nil {
			existing[d] = true
		}
	}
	return existing, nil
}

func (m *MemorySlotDayRepository) Create(_ context.Context, slotDay *model.SlotDay) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.byDate(slotDay.ClientID, slotDay.Date) != nil {
		return fmt.Errorf("%w: %s", slotserrors.ErrAlreadyExists, slotDay.Date)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	slotDay.ID = primitive.NewObjectID().Hex()
	slotDay.CreatedAt = now
	slotDay.UpdatedAt = now

	m.days[slotDay.ID] = cloneSlotDay(slotDay)
	m.order = append(m.order, slotDay.ID)
	return nil
}

func (m *MemorySlotDayRepository) LockTimeEntry(_ context.Context, clientID, date, t string) (*model.SlotDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.byDate(clientID, date)
	if s == nil {
		return nil, slotserrors.ErrTimeUnavailable
	}
	for i := range s.Times {
		if s.Times[i].Time == t && !s.Times[i].IsBooked {
			s.Times[i].IsBooked = true
			s.Times[i].BookingID = nil
			s.UpdatedAt = time.Now().UTC()
			return cloneSlotDay(s), nil
		}
	}
	return nil, slotserrors.ErrTimeUnavailable
}

func (m *MemorySlotDayRepository) UnlockTimeEntry(_ context.Context, clientID, slotDayID, t string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.get(clientID, slotDayID)
	if err != nil {
		return err
	}
	for i := range s.Times {
		if s.Times[i].Time == t {
			s.Times[i].IsBooked = false
			s.Times[i].BookingID = nil
			s.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return slotserrors.ErrNotFound
}

func (m *MemorySlotDayRepository) AttachBookingRef(_ context.Context, slotDayID, t, bookingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.get("", slotDayID)
	if err != nil {
		return err
	}
	for i := range s.Times {
		if s.Times[i].Time == t && s.Times[i].IsBooked {
			id := bookingID
			s.Times[i].BookingID = &id
			return nil
		}
	}
	return slotserrors.ErrNotFound
}

func (m *MemorySlotDayRepository) ReplaceTimes(_ context.Context, clientID, id string, times []model.TimeEntry) (*model.SlotDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.get(clientID, id)
	if err != nil {
		return nil, err
	}
	if s.HasBookedEntries() {
		return nil, slotserrors.ErrHasBookedEntries
	}
	s.Times = slices.Clone(times)
	s.UpdatedAt = time.Now().UTC()
	return cloneSlotDay(s), nil
}

func (m *MemorySlotDayRepository) Delete(_ context.Context, clientID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.get(clientID, id)
	if err != nil {
		return err
	}
	if s.HasBookedEntries() {
		return slotserrors.ErrHasBookedEntries
	}
	delete(m.days, id)
	m.order = slices.DeleteFunc(m.order, func(v string) bool { return v == id })
	return nil
}

var _ SlotDayRepository = (*MemorySlotDayRepository)(nil)
