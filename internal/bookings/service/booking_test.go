package service

import (
	"context"
	"errors"
	"noqbot/internal/bookings/events"
	"noqbot/internal/bookings/repository"
	"noqbot/internal/bookings/validator"
	clientsrepo "noqbot/internal/clients/repository"
	slotsrepo "noqbot/internal/slots/repository"
	"noqbot/pkg/clock"
	"noqbot/pkg/config"
	apperrors "noqbot/pkg/errors"
	"noqbot/pkg/logger"
	"noqbot/pkg/model"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clientID = "65a1b2c3d4e5f60718293a4b"

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// slotStoreHooks overrides selected slot store calls.
type slotStoreHooks struct {
	SlotStore
	lockFunc   func(ctx context.Context, clientID, date, t string) (*model.SlotDay, error)
	unlockFunc func(ctx context.Context, clientID, slotDayID, t string) error
	attachFunc func(ctx context.Context, slotDayID, t, bookingID string) error
}

func (h *slotStoreHooks) LockTimeEntry(ctx context.Context, clientID, date, t string) (*model.SlotDay, error) {
	if h.lockFunc != nil {
		return h.lockFunc(ctx, clientID, date, t)
	}
	return h.SlotStore.LockTimeEntry(ctx, clientID, date, t)
}

func (h *slotStoreHooks) UnlockTimeEntry(ctx context.Context, clientID, slotDayID, t string) error {
	if h.unlockFunc != nil {
		return h.unlockFunc(ctx, clientID, slotDayID, t)
	}
	return h.SlotStore.UnlockTimeEntry(ctx, clientID, slotDayID, t)
}

func (h *slotStoreHooks) AttachBookingRef(ctx context.Context, slotDayID, t, bookingID string) error {
	if h.attachFunc != nil {
		return h.attachFunc(ctx, slotDayID, t, bookingID)
	}
	return h.SlotStore.AttachBookingRef(ctx, slotDayID, t, bookingID)
}

type bookingRepoHooks struct {
	repository.BookingRepository
	createFunc     func(ctx context.Context, b *model.Booking) error
	findActiveFunc func(ctx context.Context, clientID, id string) (*model.Booking, error)
}

func (h *bookingRepoHooks) FindActive(ctx context.Context, clientID, id string) (*model.Booking, error) {
	if h.findActiveFunc != nil {
		return h.findActiveFunc(ctx, clientID, id)
	}
	return h.BookingRepository.FindActive(ctx, clientID, id)
}

func (h *bookingRepoHooks) Create(ctx context.Context, b *model.Booking) error {
	if h.createFunc != nil {
		return h.createFunc(ctx, b)
	}
	return h.BookingRepository.Create(ctx, b)
}

type fixture struct {
	svc       BookingService
	slots     *slotsrepo.MemorySlotDayRepository
	bookings  *repository.MemoryBookingRepository
	publisher *recordingPublisher
	cfg       *config.Config
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	slots    func(SlotStore) SlotStore
	bookings func(repository.BookingRepository) repository.BookingRepository
	clients  ClientDirectory
	now      time.Time
	loc      *time.Location
}

func withSlotStore(wrap func(SlotStore) SlotStore) fixtureOption {
	return func(c *fixtureConfig) { c.slots = wrap }
}

func withBookingRepo(wrap func(repository.BookingRepository) repository.BookingRepository) fixtureOption {
	return func(c *fixtureConfig) { c.bookings = wrap }
}

func withClients(clients ClientDirectory) fixtureOption {
	return func(c *fixtureConfig) { c.clients = clients }
}

func withNow(now time.Time, loc *time.Location) fixtureOption {
	return func(c *fixtureConfig) {
		c.now = now
		c.loc = loc
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	fc := &fixtureConfig{
		clients: clientsrepo.NewStaticClientRepository(&model.Client{ID: clientID, Name: "Clinic", IsActive: true}),
		now:     time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC),
		loc:     time.UTC,
	}
	for _, opt := range opts {
		opt(fc)
	}

	cfg := &config.Config{Log: logger.Discard(), Location: fc.loc, MaxProvisionDays: 60}
	slots := slotsrepo.NewMemorySlotDayRepository()
	bookings := repository.NewMemoryBookingRepository()
	publisher := &recordingPublisher{}

	var store SlotStore = slots
	if fc.slots != nil {
		store = fc.slots(slots)
	}
	var repo repository.BookingRepository = bookings
	if fc.bookings != nil {
		repo = fc.bookings(bookings)
	}

	svc := NewBookingService(repo, store, fc.clients, publisher, validator.NewBookingValidator(cfg.Log), clock.Fixed(fc.now), cfg)
	return &fixture{svc: svc, slots: slots, bookings: bookings, publisher: publisher, cfg: cfg}
}

func (f *fixture) seed(t *testing.T, date string, labels ...string) *model.SlotDay {
	t.Helper()
	day := &model.SlotDay{ClientID: clientID, Date: date, Times: model.FreeEntries(labels)}
	require.NoError(t, f.slots.Create(context.Background(), day))
	return day
}

func (f *fixture) entry(t *testing.T, date, label string) model.TimeEntry {
	t.Helper()
	day, err := f.slots.FindByClientAndDate(context.Background(), clientID, date)
	require.NoError(t, err)
	e, ok := day.Entry(label)
	require.True(t, ok, "entry %s %s missing", date, label)
	return e
}

func createReq(date, t string) *model.BookingCreate {
	return &model.BookingCreate{Date: date, Time: t, UserPhone: "5551234567", UserName: "Dana"}
}

func TestCreate_BooksFreeEntry(t *testing.T) {
	f := newFixture(t)
	day := f.seed(t, "2024-06-01", "10:00", "10:30")

	booking, err := f.svc.Create(context.Background(), clientID, createReq("2024-06-01", "10:00"))
	require.NoError(t, err)

	assert.Equal(t, config.Confirmed, booking.Status)
	assert.Equal(t, day.ID, booking.SlotDayID)
	assert.Equal(t, "10:00", booking.SelectedTime)
	assert.Equal(t, "5551234567", booking.UserPhone)
	assert.Equal(t, config.SourceWhatsApp, booking.Source)

	e := f.entry(t, "2024-06-01", "10:00")
	assert.True(t, e.IsBooked)
	require.NotNil(t, e.BookingID)
	assert.Equal(t, booking.ID, *e.BookingID)

	assert.False(t, f.entry(t, "2024-06-01", "10:30").IsBooked)
	assert.Equal(t, []string{events.EventCreated}, f.publisher.types())
}

func TestCreate_NormalizesInput(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "2024-06-01", "09:00")

	booking, err := f.svc.Create(context.Background(), clientID, &model.BookingCreate{
		Date:      " 2024-06-01 ",
		Time:      "9:00",
		UserPhone: "(212) 555-1234",
		UserName:  "  Dana   Levi ",
		Source:    config.SourceManual,
	})
	require.NoError(t, err)
	assert.Equal(t, "09:00", booking.SelectedTime)
	assert.Equal(t, "+12125551234", booking.UserPhone)
	assert.Equal(t, "Dana Levi", booking.UserName)
	assert.Equal(t, config.SourceManual, booking.Source)
}

func TestCreate_ConcurrentAttemptsBookOnce(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "2024-06-01", "10:00", "10:30")

	const callers = 25
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Create(context.Background(), clientID, createReq("2024-06-01", "10:30"))
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		lost := apperrors.HasCode(err, apperrors.CodeSlotRaceLost) || apperrors.HasCode(err, apperrors.CodeAlreadyBooked)
		assert.True(t, lost, "unexpected error: %v", err)
	}
	assert.Equal(t, 1, successes)

	confirmed, err := f.svc.List(context.Background(), clientID, &model.BookingFilter{Status: config.Confirmed})
	require.NoError(t, err)
	assert.Len(t, confirmed, 1)
}

func TestCreate_RaceLostAfterFastPath(t *testing.T) {
	f := newFixture(t, withSlotStore(func(s SlotStore) SlotStore {
		return &slotStoreHooks{
			SlotStore: s,
			lockFunc: func(ctx context.Context, clientID, date, t string) (*model.SlotDay, error) {
				// Another request wins between the read and the lock.
				if _, err := s.LockTimeEntry(ctx, clientID, date, t); err != nil {
					return nil, err
				}
				return s.LockTimeEntry(ctx, clientID, date, t)
			},
		}
	}))
	f.seed(t, "2024-06-01", "10:30")

	_, err := f.svc.Create(context.Background(), clientID, createReq("2024-06-01", "10:30"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSlotRaceLost), "got %v", err)
	assert.True(t, apperrors.IsBusinessRule(err))

	all, err := f.bookings.List(context.Background(), clientID, model.BookingFilter{})
	require.NoError(t, err)
	assert.Empty(t, all, "a lost race must not create a booking")
}

func TestCreate_Rejections(t *testing.T) {
	inactive := clientsrepo.NewStaticClientRepository(&model.Client{ID: clientID, IsActive: false})

	tests := []struct {
		name string
		opts []fixtureOption
		req  *model.BookingCreate
		code string
	}{
		{"no slots for date", nil, createReq("2024-06-05", "10:00"), apperrors.CodeNoSlotsForDate},
		{"time not offered", nil, createReq("2024-06-01", "11:15"), apperrors.CodeTimeNotOffered},
		{"already booked", nil, createReq("2024-06-01", "08:00"), apperrors.CodeAlreadyBooked},
		{"missing phone", nil, &model.BookingCreate{Date: "2024-06-01", Time: "10:00"}, apperrors.CodeValidation},
		{"bad date", nil, createReq("2024-06-31", "10:00"), apperrors.CodeValidation},
		{"past slot", nil, createReq("2024-05-31", "11:00"), apperrors.CodePastSlot},
		{"unknown client", []fixtureOption{withClients(clientsrepo.NewStaticClientRepository())}, createReq("2024-06-01", "10:00"), apperrors.CodeNotFound},
		{"inactive client", []fixtureOption{withClients(inactive)}, createReq("2024-06-01", "10:00"), apperrors.CodeClientInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.opts...)
			f.seed(t, "2024-06-01", "08:00", "10:00")
			_, err := f.slots.LockTimeEntry(context.Background(), clientID, "2024-06-01", "08:00")
			require.NoError(t, err)

			_, err = f.svc.Create(context.Background(), clientID, tt.req)
			assert.True(t, apperrors.HasCode(err, tt.code), "want %s, got %v", tt.code, err)
			assert.False(t, f.entry(t, "2024-06-01", "10:00").IsBooked)
		})
	}
}

func TestCreate_PastSlotUsesConfiguredZone(t *testing.T) {
	jerusalem := time.FixedZone("IDT", 3*60*60)
	// 08:30 UTC is 11:30 in the booking zone.
	now := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

	f := newFixture(t, withNow(now, jerusalem))
	f.seed(t, "2024-06-01", "10:00", "12:00")

	_, err := f.svc.Create(context.Background(), clientID, createReq("2024-06-01", "10:00"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodePastSlot))

	_, err = f.svc.Create(context.Background(), clientID, createReq("2024-06-01", "12:00"))
	assert.NoError(t, err)
}

func TestCreate_AttachFailureStillSucceeds(t *testing.T) {
	f := newFixture(t, withSlotStore(func(s SlotStore) SlotStore {
		return &slotStoreHooks{
			SlotStore: s,
			attachFunc: func(context.Context, string, string, string) error {
				return errors.New("write concern timeout")
			},
		}
	}))
	f.seed(t, "2024-06-01", "10:00")

	booking, err := f.svc.Create(context.Background(), clientID, createReq("2024-06-01", "10:00"))
	require.NoError(t, err)
	assert.Equal(t, config.Confirmed, booking.Status)

	e := f.entry(t, "2024-06-01", "10:00")
	assert.True(t, e.IsBooked)
	assert.Nil(t, e.BookingID)
}

func TestCreate_BookingStoreFailureReleasesSlot(t *testing.T) {
	f := newFixture(t, withBookingRepo(func(r repository.BookingRepository) repository.BookingRepository {
		return &bookingRepoHooks{
			BookingRepository: r,
			createFunc: func(context.Context, *model.Booking) error {
				return errors.New("no reachable servers")
			},
		}
	}))
	f.seed(t, "2024-06-01", "10:00")

	_, err := f.svc.Create(context.Background(), clientID, createReq("2024-06-01", "10:00"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))
	assert.False(t, apperrors.IsBusinessRule(err))
	assert.False(t, f.entry(t, "2024-06-01", "10:00").IsBooked)
}

func TestCreate_PublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker unavailable")
	f.seed(t, "2024-06-01", "10:00")

	_, err := f.svc.Create(context.Background(), clientID, createReq("2024-06-01", "10:00"))
	assert.NoError(t, err)
}

func TestCancel_FreesSlotForRebooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "2024-06-01", "10:00")

	booking, err := f.svc.Create(ctx, clientID, createReq("2024-06-01", "10:00"))
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, clientID, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, config.Cancelled, cancelled.Status)

	e := f.entry(t, "2024-06-01", "10:00")
	assert.False(t, e.IsBooked)
	assert.Nil(t, e.BookingID)

	again, err := f.svc.Create(ctx, clientID, createReq("2024-06-01", "10:00"))
	require.NoError(t, err)
	assert.NotEqual(t, booking.ID, again.ID)

	assert.Equal(t, []string{events.EventCreated, events.EventCancelled, events.EventCreated}, f.publisher.types())
}

func TestCancel_Twice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "2024-06-01", "10:00")

	booking, err := f.svc.Create(ctx, clientID, createReq("2024-06-01", "10:00"))
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, clientID, booking.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, clientID, booking.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestCancel_OtherTenantAndBadID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "2024-06-01", "10:00")

	booking, err := f.svc.Create(ctx, clientID, createReq("2024-06-01", "10:00"))
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, "65a1b2c3d4e5f60718293aff", booking.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.svc.Cancel(ctx, clientID, "not-hex")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))

	assert.True(t, f.entry(t, "2024-06-01", "10:00").IsBooked)
}

func TestCancel_UnlockFailureLeavesBookingConfirmed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withSlotStore(func(s SlotStore) SlotStore {
		return &slotStoreHooks{
			SlotStore: s,
			unlockFunc: func(context.Context, string, string, string) error {
				return errors.New("connection reset")
			},
		}
	}))
	f.seed(t, "2024-06-01", "10:00")

	booking, err := f.svc.Create(ctx, clientID, createReq("2024-06-01", "10:00"))
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, clientID, booking.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))

	got, err := f.svc.GetByID(ctx, clientID, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, config.Confirmed, got.Status)
}

func TestReschedule_MovesBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "2024-06-01", "10:00")
	newDay := f.seed(t, "2024-06-02", "09:00")

	booking, err := f.svc.Create(ctx, clientID, createReq("2024-06-01", "10:00"))
	require.NoError(t, err)

	moved, err := f.svc.Reschedule(ctx, clientID, booking.ID, &model.BookingReschedule{Date: "2024-06-02", Time: "09:00"})
	require.NoError(t, err)

	assert.Equal(t, booking.ID, moved.ID)
	assert.Equal(t, "2024-06-02", moved.Date)
	assert.Equal(t, "09:00", moved.SelectedTime)
	assert.Equal(t, newDay.ID, moved.SlotDayID)
	assert.Equal(t, config.Confirmed, moved.Status)

	assert.False(t, f.entry(t, "2024-06-01", "10:00").IsBooked)
	e := f.entry(t, "2024-06-02", "09:00")
	assert.True(t, e.IsBooked)
	require.NotNil(t, e.BookingID)
	assert.Equal(t, booking.ID, *e.BookingID)

	f.publisher.mu.Lock()
	last := f.publisher.events[len(f.publisher.events)-1]
	f.publisher.mu.Unlock()
	assert.Equal(t, events.EventRescheduled, last.Type)
	assert.Equal(t, "2024-06-01", last.PreviousDate)
	assert.Equal(t, "10:00", last.PreviousTime)
}

func TestReschedule_NewSlotTakenLeavesBookingUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "2024-06-01", "10:00")
	f.seed(t, "2024-06-02", "09:00")

	booking, err := f.svc.Create(ctx, clientID, createReq("2024-06-01", "10:00"))
	require.NoError(t, err)
	_, err = f.slots.LockTimeEntry(ctx, clientID, "2024-06-02", "09:00")
	require.NoError(t, err)

	_, err = f.svc.Reschedule(ctx, clientID, booking.ID, &model.BookingReschedule{Date: "2024-06-02", Time: "09:00"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNewSlotUnavailable), "got %v", err)

	got, err := f.svc.GetByID(ctx, clientID, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.SlotDayID, got.SlotDayID)
	assert.Equal(t, booking.Date, got.Date)
	assert.Equal(t, booking.SelectedTime, got.SelectedTime)
	assert.Equal(t, config.Confirmed, got.Status)
	assert.True(t, f.entry(t, "2024-06-01", "10:00").IsBooked)
}

func TestReschedule_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "2024-06-01", "10:00", "11:00")

	booking, err := f.svc.Create(ctx, clientID, createReq("2024-06-01", "10:00"))
	require.NoError(t, err)

	_, err = f.svc.Reschedule(ctx, clientID, booking.ID, &model.BookingReschedule{Date: "2024-06-09", Time: "11:00"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNewSlotUnavailable), "missing day")

	_, err = f.svc.Reschedule(ctx, clientID, booking.ID, &model.BookingReschedule{Date: "2024-05-30", Time: "11:00"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodePastSlot))

	_, err = f.svc.Reschedule(ctx, clientID, booking.ID, &model.BookingReschedule{Date: "2024-06-01"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.svc.Cancel(ctx, clientID, booking.ID)
	require.NoError(t, err)
	_, err = f.svc.Reschedule(ctx, clientID, booking.ID, &model.BookingReschedule{Date: "2024-06-01", Time: "11:00"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "cancelled bookings cannot move")

	assert.False(t, f.entry(t, "2024-06-01", "11:00").IsBooked)
}

func TestReschedule_OldUnlockFailureReleasesNewSlot(t *testing.T) {
	ctx := context.Background()
	fail := false
	f := newFixture(t, withSlotStore(func(s SlotStore) SlotStore {
		return &slotStoreHooks{
			SlotStore: s,
			unlockFunc: func(ctx context.Context, clientID, slotDayID, t string) error {
				if fail && t == "10:00" {
					return errors.New("connection reset")
				}
				return s.UnlockTimeEntry(ctx, clientID, slotDayID, t)
			},
		}
	}))
	f.seed(t, "2024-06-01", "10:00")
	f.seed(t, "2024-06-02", "09:00")

	booking, err := f.svc.Create(ctx, clientID, createReq("2024-06-01", "10:00"))
	require.NoError(t, err)

	fail = true
	_, err = f.svc.Reschedule(ctx, clientID, booking.ID, &model.BookingReschedule{Date: "2024-06-02", Time: "09:00"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))

	assert.True(t, f.entry(t, "2024-06-01", "10:00").IsBooked)
	assert.False(t, f.entry(t, "2024-06-02", "09:00").IsBooked)
}

func TestList_OrderedByDateThenTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "2024-06-01", "10:00", "09:00")
	f.seed(t, "2024-06-02", "08:00")

	for _, r := range []*model.BookingCreate{
		createReq("2024-06-02", "08:00"),
		createReq("2024-06-01", "10:00"),
		createReq("2024-06-01", "09:00"),
	} {
		_, err := f.svc.Create(ctx, clientID, r)
		require.NoError(t, err)
	}

	all, err := f.svc.List(ctx, clientID, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	got := make([]string, 0, len(all))
	for _, b := range all {
		got = append(got, b.Date+" "+b.SelectedTime)
	}
	assert.Equal(t, []string{"2024-06-01 09:00", "2024-06-01 10:00", "2024-06-02 08:00"}, got)

	day, err := f.svc.List(ctx, clientID, &model.BookingFilter{Date: "2024-06-02"})
	require.NoError(t, err)
	assert.Len(t, day, 1)

	_, err = f.svc.List(ctx, clientID, &model.BookingFilter{Status: "archived"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

// rendezvous blocks each of n callers until all n have arrived.
func rendezvous(n int) func() {
	var wg sync.WaitGroup
	wg.Add(n)
	return func() {
		wg.Done()
		wg.Wait()
	}
}

func TestCancel_ConcurrentCancelsSucceedOnce(t *testing.T) {
	ctx := context.Background()
	var armed atomic.Bool
	arrive := rendezvous(2)

	f := newFixture(t, withBookingRepo(func(r repository.BookingRepository) repository.BookingRepository {
		return &bookingRepoHooks{
			BookingRepository: r,
			findActiveFunc: func(ctx context.Context, clientID, id string) (*model.Booking, error) {
				b, err := r.FindActive(ctx, clientID, id)
				if armed.Load() {
					arrive()
				}
				return b, err
			},
		}
	}))
	f.seed(t, "2024-06-01", "10:00")

	booking, err := f.svc.Create(ctx, clientID, createReq("2024-06-01", "10:00"))
	require.NoError(t, err)
	armed.Store(true)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Cancel(ctx, clientID, booking.ID)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, successes)
	assert.False(t, f.entry(t, "2024-06-01", "10:00").IsBooked)

	cancelledEvents := 0
	for _, typ := range f.publisher.types() {
		if typ == events.EventCancelled {
			cancelledEvents++
		}
	}
	assert.Equal(t, 1, cancelledEvents)
}

func TestReschedule_ConcurrentMovesSucceedOnce(t *testing.T) {
	ctx := context.Background()
	var armed atomic.Bool
	arrive := rendezvous(2)

	f := newFixture(t, withSlotStore(func(s SlotStore) SlotStore {
		return &slotStoreHooks{
			SlotStore: s,
			lockFunc: func(ctx context.Context, clientID, date, t string) (*model.SlotDay, error) {
				day, err := s.LockTimeEntry(ctx, clientID, date, t)
				if armed.Load() {
					arrive()
				}
				return day, err
			},
		}
	}))
	f.seed(t, "2024-06-01", "10:00", "11:00", "12:00")

	booking, err := f.svc.Create(ctx, clientID, createReq("2024-06-01", "10:00"))
	require.NoError(t, err)
	armed.Store(true)

	targets := []string{"11:00", "12:00"}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target string) {
			defer wg.Done()
			_, errs[i] = f.svc.Reschedule(ctx, clientID, booking.ID, &model.BookingReschedule{Date: "2024-06-01", Time: target})
		}(i, target)
	}
	wg.Wait()

	winner, loser := -1, -1
	for i, err := range errs {
		if err == nil {
			winner = i
			continue
		}
		loser = i
		assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict), "unexpected error: %v", err)
	}
	require.NotEqual(t, -1, winner, "one reschedule must succeed")
	require.NotEqual(t, -1, loser, "one reschedule must fail")

	got, err := f.svc.GetByID(ctx, clientID, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, targets[winner], got.SelectedTime)

	won := f.entry(t, "2024-06-01", targets[winner])
	assert.True(t, won.IsBooked)
	require.NotNil(t, won.BookingID)
	assert.Equal(t, booking.ID, *won.BookingID)

	lost := f.entry(t, "2024-06-01", targets[loser])
	assert.False(t, lost.IsBooked, "the losing lock must be released")
	assert.Nil(t, lost.BookingID)

	assert.False(t, f.entry(t, "2024-06-01", "10:00").IsBooked)
}

func TestReschedule_CancelledDuringMoveReleasesNewSlot(t *testing.T) {
	ctx := context.Background()
	var f *fixture
	var bookingID string

	f = newFixture(t, withSlotStore(func(s SlotStore) SlotStore {
		return &slotStoreHooks{
			SlotStore: s,
			lockFunc: func(ctx context.Context, clientID, date, tm string) (*model.SlotDay, error) {
				day, err := s.LockTimeEntry(ctx, clientID, date, tm)
				if bookingID != "" && tm == "11:00" {
					_, cerr := f.bookings.UpdateStatus(ctx, clientID, bookingID, config.Cancelled)
					require.NoError(t, cerr)
				}
				return day, err
			},
		}
	}))
	f.seed(t, "2024-06-01", "10:00", "11:00")

	booking, err := f.svc.Create(ctx, clientID, createReq("2024-06-01", "10:00"))
	require.NoError(t, err)
	bookingID = booking.ID

	_, err = f.svc.Reschedule(ctx, clientID, booking.ID, &model.BookingReschedule{Date: "2024-06-01", Time: "11:00"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "got %v", err)
	assert.False(t, f.entry(t, "2024-06-01", "11:00").IsBooked)
}
