package repository_test

import (
	"context"
	bookingserrors "noqbot/internal/bookings/errors"
	"noqbot/internal/bookings/repository"
	"noqbot/internal/testutil"
	"noqbot/pkg/config"
	"noqbot/pkg/model"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	tenantA = "65a1b2c3d4e5f60718293a4b"
	tenantB = "65a1b2c3d4e5f60718293aff"
)

type storeFactory func(t *testing.T) repository.BookingRepository

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(*testing.T) repository.BookingRepository {
			return repository.NewMemoryBookingRepository()
		},
		"mongo": func(t *testing.T) repository.BookingRepository {
			h := testutil.NewMongoHelper(t)
			return repository.NewMongoBookingRepository(h.Config)
		},
	}
}

// TestBookingRepository runs the same checks against every store. The Mongo
// run needs MONGO_URI and is skipped otherwise.
func TestBookingRepository(t *testing.T) {
	cases := []struct {
		name string
		run  func(t *testing.T, repo repository.BookingRepository)
	}{
		{"lookups are tenant scoped", testScopedLookups},
		{"cancel applies once", testCancelOnce},
		{"concurrent cancels have one winner", testConcurrentCancel},
		{"reschedule requires the slot that was read", testConditionalMove},
		{"list is ordered and filtered", testList},
	}

	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			for _, tc := range cases {
				t.Run(tc.name, func(t *testing.T) {
					tc.run(t, factory(t))
				})
			}
		})
	}
}

func seedBooking(t *testing.T, repo repository.BookingRepository, clientID, date, selected string) *model.Booking {
	t.Helper()
	b := &model.Booking{
		ClientID:     clientID,
		SlotDayID:    primitive.NewObjectID().Hex(),
		Date:         date,
		SelectedTime: selected,
		UserName:     "Dana",
		UserPhone:    "+15551234567",
		Status:       config.Confirmed,
		Source:       config.SourceWhatsApp,
	}
	require.NoError(t, repo.Create(context.Background(), b))
	require.NotEmpty(t, b.ID)
	return b
}

func testScopedLookups(t *testing.T, repo repository.BookingRepository) {
	ctx := context.Background()
	b := seedBooking(t, repo, tenantA, "2024-06-01", "10:00")

	got, err := repo.FindByID(ctx, tenantA, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.SlotDayID, got.SlotDayID)

	_, err = repo.FindByID(ctx, tenantB, b.ID)
	assert.ErrorIs(t, err, bookingserrors.ErrNotFound)

	_, err = repo.FindByID(ctx, tenantA, "bad-id")
	assert.ErrorIs(t, err, bookingserrors.ErrInvalidID)

	_, err = repo.UpdateStatus(ctx, tenantB, b.ID, config.Cancelled)
	assert.ErrorIs(t, err, bookingserrors.ErrNotFound)
}

func testCancelOnce(t *testing.T, repo repository.BookingRepository) {
	ctx := context.Background()
	b := seedBooking(t, repo, tenantA, "2024-06-01", "10:00")

	cancelled, err := repo.UpdateStatus(ctx, tenantA, b.ID, config.Cancelled)
	require.NoError(t, err)
	assert.Equal(t, config.Cancelled, cancelled.Status)

	_, err = repo.UpdateStatus(ctx, tenantA, b.ID, config.Cancelled)
	assert.ErrorIs(t, err, bookingserrors.ErrNotFound)

	_, err = repo.FindActive(ctx, tenantA, b.ID)
	assert.ErrorIs(t, err, bookingserrors.ErrNotFound)
	_, err = repo.FindConfirmed(ctx, tenantA, b.ID)
	assert.ErrorIs(t, err, bookingserrors.ErrNotFound)
}

func testConcurrentCancel(t *testing.T, repo repository.BookingRepository) {
	b := seedBooking(t, repo, tenantA, "2024-06-01", "10:00")

	const callers = 10
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.UpdateStatus(context.Background(), tenantA, b.ID, config.Cancelled)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, bookingserrors.ErrNotFound)
	}
	assert.Equal(t, 1, wins)
}

func testConditionalMove(t *testing.T, repo repository.BookingRepository) {
	ctx := context.Background()
	b := seedBooking(t, repo, tenantA, "2024-06-01", "10:00")
	target := primitive.NewObjectID().Hex()

	moveTo := func(selected string) repository.Move {
		return repository.Move{
			FromSlotDayID: b.SlotDayID,
			FromTime:      "10:00",
			SlotDayID:     target,
			Date:          "2024-06-02",
			SelectedTime:  selected,
		}
	}

	moved, err := repo.UpdateForReschedule(ctx, tenantA, b.ID, moveTo("11:00"))
	require.NoError(t, err)
	assert.Equal(t, target, moved.SlotDayID)
	assert.Equal(t, "2024-06-02", moved.Date)
	assert.Equal(t, "11:00", moved.SelectedTime)
	assert.Equal(t, config.Confirmed, moved.Status)

	_, err = repo.UpdateForReschedule(ctx, tenantA, b.ID, moveTo("12:00"))
	assert.ErrorIs(t, err, bookingserrors.ErrNotFound, "a move from a stale slot must not apply")

	got, err := repo.FindByID(ctx, tenantA, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "11:00", got.SelectedTime)

	_, err = repo.UpdateStatus(ctx, tenantA, b.ID, config.Cancelled)
	require.NoError(t, err)
	_, err = repo.UpdateForReschedule(ctx, tenantA, b.ID, repository.Move{
		FromSlotDayID: target,
		FromTime:      "11:00",
		SlotDayID:     b.SlotDayID,
		Date:          "2024-06-01",
		SelectedTime:  "10:00",
	})
	assert.ErrorIs(t, err, bookingserrors.ErrNotFound, "cancelled bookings do not move")
}

func testList(t *testing.T, repo repository.BookingRepository) {
	ctx := context.Background()
	late := seedBooking(t, repo, tenantA, "2024-06-02", "09:00")
	second := seedBooking(t, repo, tenantA, "2024-06-01", "11:00")
	first := seedBooking(t, repo, tenantA, "2024-06-01", "10:00")
	seedBooking(t, repo, tenantB, "2024-06-01", "08:00")

	_, err := repo.UpdateStatus(ctx, tenantA, second.ID, config.Cancelled)
	require.NoError(t, err)

	all, err := repo.List(ctx, tenantA, model.BookingFilter{})
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, b := range all {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{first.ID, second.ID, late.ID}, ids)

	confirmed, err := repo.List(ctx, tenantA, model.BookingFilter{Date: "2024-06-01", Status: config.Confirmed})
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, first.ID, confirmed[0].ID)
}
