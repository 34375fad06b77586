package service

import (
	"context"
	"errors"
	"fmt"
	bookingserrors "noqbot/internal/bookings/errors"
	"noqbot/internal/bookings/events"
	"noqbot/internal/bookings/repository"
	"noqbot/internal/bookings/validator"
	clientsrepo "noqbot/internal/clients/repository"
	slotserrors "noqbot/internal/slots/errors"
	slotsvalidator "noqbot/internal/slots/validator"
	"noqbot/pkg/clock"
	"noqbot/pkg/config"
	apperrors "noqbot/pkg/errors"
	"noqbot/pkg/metrics"
	"noqbot/pkg/model"
	"noqbot/pkg/sanitizer"
	"time"
)

const (
	OpCreate     = "create"
	OpCancel     = "cancel"
	OpReschedule = "reschedule"
)

type BookingService interface {
	Create(ctx context.Context, clientID string, req *model.BookingCreate) (*model.Booking, error)
	GetByID(ctx context.Context, clientID, id string) (*model.Booking, error)
	List(ctx context.Context, clientID string, filter *model.BookingFilter) ([]*model.Booking, error)
	Cancel(ctx context.Context, clientID, id string) (*model.Booking, error)
	Reschedule(ctx context.Context, clientID, id string, req *model.BookingReschedule) (*model.Booking, error)
}

// SlotStore is the part of the slot repository the engine drives.
type SlotStore interface {
	FindByClientAndDate(ctx context.Context, clientID, date string) (*model.SlotDay, error)
	LockTimeEntry(ctx context.Context, clientID, date, time string) (*model.SlotDay, error)
	UnlockTimeEntry(ctx context.Context, clientID, slotDayID, time string) error
	AttachBookingRef(ctx context.Context, slotDayID, time, bookingID string) error
}

type ClientDirectory interface {
	FindByID(ctx context.Context, id string) (*model.Client, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	slots     SlotStore
	clients   ClientDirectory
	publisher events.Publisher
	validator *validator.BookingValidator
	clock     clock.Clock
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	slots SlotStore,
	clients ClientDirectory,
	publisher events.Publisher,
	validator *validator.BookingValidator,
	clk clock.Clock,
	cfg *config.Config,
) BookingService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if clk == nil {
		clk = clock.System()
	}
	return &bookingService{
		repo:      repo,
		slots:     slots,
		clients:   clients,
		publisher: publisher,
		validator: validator,
		clock:     clk,
		cfg:       cfg,
	}
}

// Create reserves one time entry. The slot is locked before the booking
// record exists, so a lost race never leaves a booking behind.
func (s *bookingService) Create(ctx context.Context, clientID string, req *model.BookingCreate) (booking *model.Booking, err error) {
	defer func() { s.recordOutcome(OpCreate, err) }()

	s.applyDefaults(req)
	s.sanitize(req)
	if err := s.validate(s.validator.ValidateCreate(req)); err != nil {
		return nil, err
	}

	if err := s.checkNotPast(req.Date, req.Time); err != nil {
		return nil, err
	}

	if err := s.checkClient(ctx, clientID); err != nil {
		return nil, err
	}

	slotDay, err := s.slots.FindByClientAndDate(ctx, clientID, req.Date)
	if err != nil {
		if errors.Is(err, slotserrors.ErrNotFound) {
			s.cfg.Log.Warn("No slots for date", "client_id", clientID, "date", req.Date)
			return nil, apperrors.NoSlotsForDate(req.Date)
		}
		s.cfg.Log.Error("Failed to load slot day", "client_id", clientID, "date", req.Date, "error", err)
		return nil, apperrors.Internal("Failed to load slots", err)
	}

	entry, ok := slotDay.Entry(req.Time)
	if !ok {
		s.cfg.Log.Warn("Time not offered", "client_id", clientID, "date", req.Date, "time", req.Time)
		return nil, apperrors.TimeNotOffered(req.Date, req.Time)
	}
	if entry.IsBooked {
		s.cfg.Log.Warn("Time already booked", "client_id", clientID, "date", req.Date, "time", req.Time)
		return nil, apperrors.AlreadyBooked(req.Date, req.Time)
	}

	locked, err := s.slots.LockTimeEntry(ctx, clientID, req.Date, req.Time)
	if err != nil {
		if errors.Is(err, slotserrors.ErrTimeUnavailable) {
			s.cfg.Log.Warn("Slot race lost", "client_id", clientID, "date", req.Date, "time", req.Time)
			return nil, apperrors.SlotRaceLost(req.Date, req.Time)
		}
		s.cfg.Log.Error("Failed to lock time entry", "client_id", clientID, "date", req.Date, "time", req.Time, "error", err)
		return nil, apperrors.Internal("Failed to reserve slot", err)
	}

	booking = &model.Booking{
		ClientID:     clientID,
		SlotDayID:    locked.ID,
		Date:         req.Date,
		SelectedTime: req.Time,
		UserName:     req.UserName,
		UserPhone:    req.UserPhone,
		Status:       config.Confirmed,
		Source:       req.Source,
	}
	if err := s.repo.Create(ctx, booking); err != nil {
		s.cfg.Log.Error("Failed to create booking", "client_id", clientID, "slot_day_id", locked.ID, "time", req.Time, "error", err)
		s.release(ctx, clientID, locked.ID, req.Time)
		return nil, apperrors.Internal("Failed to create booking", err)
	}

	s.attach(ctx, booking)
	s.publish(ctx, events.NewEvent(events.EventCreated, booking, s.clock.Now()))

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"client_id", clientID,
		"slot_day_id", booking.SlotDayID,
		"date", booking.Date,
		"time", booking.SelectedTime,
		"source", booking.Source,
	)
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, clientID, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, clientID, id)
	if err != nil {
		return nil, s.mapLookupError(err, id, "Failed to retrieve booking")
	}

	return booking, nil
}

func (s *bookingService) List(ctx context.Context, clientID string, filter *model.BookingFilter) ([]*model.Booking, error) {
	if filter == nil {
		filter = &model.BookingFilter{}
	}
	filter.Date = sanitizer.NormalizeDate(filter.Date)
	if err := s.validate(s.validator.ValidateFilter(filter)); err != nil {
		return nil, err
	}

	bookings, err := s.repo.List(ctx, clientID, *filter)
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings", "client_id", clientID, "error", err)
		return nil, apperrors.Internal("Failed to list bookings", err)
	}

	s.cfg.Log.Debug("Bookings listed",
		"client_id", clientID,
		"date", filter.Date,
		"status", filter.Status,
		"count", len(bookings),
	)
	return bookings, nil
}

// Cancel frees the slot first and marks the booking second.
func (s *bookingService) Cancel(ctx context.Context, clientID, id string) (booking *model.Booking, err error) {
	defer func() { s.recordOutcome(OpCancel, err) }()

	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	existing, err := s.repo.FindActive(ctx, clientID, id)
	if err != nil {
		return nil, s.mapLookupError(err, id, "Failed to retrieve booking")
	}

	if err := s.slots.UnlockTimeEntry(ctx, clientID, existing.SlotDayID, existing.SelectedTime); err != nil {
		if !errors.Is(err, slotserrors.ErrNotFound) {
			s.cfg.Log.Error("Failed to free slot", "booking_id", id, "slot_day_id", existing.SlotDayID, "error", err)
			return nil, apperrors.Internal("Failed to free slot", err)
		}
		s.cfg.Log.Warn("Slot entry missing on cancel", "booking_id", id, "slot_day_id", existing.SlotDayID, "time", existing.SelectedTime)
	}

	booking, err = s.repo.UpdateStatus(ctx, clientID, id, config.Cancelled)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			s.cfg.Log.Warn("Booking cancelled by a concurrent request", "booking_id", id, "client_id", clientID)
		} else {
			s.cfg.Log.Error("Slot freed but booking not marked cancelled", "booking_id", id, "error", err)
		}
		return nil, s.mapLookupError(err, id, "Failed to cancel booking")
	}

	s.publish(ctx, events.NewEvent(events.EventCancelled, booking, s.clock.Now()))

	s.cfg.Log.Info("Booking cancelled", "id", id, "client_id", clientID, "date", booking.Date, "time", booking.SelectedTime)
	return booking, nil
}

// Reschedule locks the new slot before releasing the old one. When the new
// lock fails the booking is left exactly as it was.
func (s *bookingService) Reschedule(ctx context.Context, clientID, id string, req *model.BookingReschedule) (booking *model.Booking, err error) {
	defer func() { s.recordOutcome(OpReschedule, err) }()

	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	req.Date = sanitizer.NormalizeDate(req.Date)
	req.Time = sanitizer.NormalizeTimeLabel(req.Time)
	if err := s.validate(s.validator.ValidateReschedule(req)); err != nil {
		return nil, err
	}

	if err := s.checkNotPast(req.Date, req.Time); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindConfirmed(ctx, clientID, id)
	if err != nil {
		return nil, s.mapLookupError(err, id, "Failed to retrieve booking")
	}

	locked, err := s.slots.LockTimeEntry(ctx, clientID, req.Date, req.Time)
	if err != nil {
		if errors.Is(err, slotserrors.ErrTimeUnavailable) {
			s.cfg.Log.Warn("New slot unavailable", "booking_id", id, "date", req.Date, "time", req.Time)
			return nil, apperrors.NewSlotUnavailable(req.Date, req.Time)
		}
		s.cfg.Log.Error("Failed to lock new slot", "booking_id", id, "date", req.Date, "time", req.Time, "error", err)
		return nil, apperrors.Internal("Failed to reserve new slot", err)
	}

	if err := s.slots.UnlockTimeEntry(ctx, clientID, existing.SlotDayID, existing.SelectedTime); err != nil {
		if !errors.Is(err, slotserrors.ErrNotFound) {
			s.cfg.Log.Error("Failed to free old slot", "booking_id", id, "slot_day_id", existing.SlotDayID, "error", err)
			s.release(ctx, clientID, locked.ID, req.Time)
			return nil, apperrors.Internal("Failed to free previous slot", err)
		}
		s.cfg.Log.Warn("Old slot entry missing on reschedule", "booking_id", id, "slot_day_id", existing.SlotDayID)
	}

	booking, err = s.repo.UpdateForReschedule(ctx, clientID, id, repository.Move{
		FromSlotDayID: existing.SlotDayID,
		FromTime:      existing.SelectedTime,
		SlotDayID:     locked.ID,
		Date:          req.Date,
		SelectedTime:  req.Time,
	})
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			s.release(ctx, clientID, locked.ID, req.Time)
			return nil, s.lostReschedule(ctx, clientID, id)
		}
		s.cfg.Log.Error("New slot locked but booking not moved",
			"booking_id", id,
			"slot_day_id", locked.ID,
			"time", req.Time,
			"error", err,
		)
		return nil, s.mapLookupError(err, id, "Failed to reschedule booking")
	}

	s.attach(ctx, booking)

	event := events.NewEvent(events.EventRescheduled, booking, s.clock.Now())
	event.PreviousDate = existing.Date
	event.PreviousTime = existing.SelectedTime
	s.publish(ctx, event)

	s.cfg.Log.Info("Booking rescheduled",
		"id", id,
		"client_id", clientID,
		"from_date", existing.Date,
		"from_time", existing.SelectedTime,
		"to_date", booking.Date,
		"to_time", booking.SelectedTime,
	)
	return booking, nil
}

// lostReschedule explains why the conditional move matched nothing: the
// booking was cancelled, or another request moved it first.
func (s *bookingService) lostReschedule(ctx context.Context, clientID, id string) error {
	current, err := s.repo.FindConfirmed(ctx, clientID, id)
	if err != nil {
		s.cfg.Log.Warn("Booking cancelled during reschedule", "booking_id", id, "client_id", clientID)
		return s.mapLookupError(err, id, "Failed to retrieve booking")
	}
	s.cfg.Log.Warn("Booking moved by a concurrent reschedule",
		"booking_id", id,
		"client_id", clientID,
		"date", current.Date,
		"time", current.SelectedTime,
	)
	return apperrors.Conflict("Booking was rescheduled by another request")
}

// attach writes the reverse pointer. The booking record stays the owner of
// the slot, so a failure here is logged and the operation still succeeds.
func (s *bookingService) attach(ctx context.Context, b *model.Booking) {
	if err := s.slots.AttachBookingRef(ctx, b.SlotDayID, b.SelectedTime, b.ID); err != nil {
		s.cfg.Log.Warn("Failed to attach booking reference",
			"booking_id", b.ID,
			"slot_day_id", b.SlotDayID,
			"time", b.SelectedTime,
			"error", err,
		)
	}
}

// release undoes a lock taken by this request. Best effort.
func (s *bookingService) release(ctx context.Context, clientID, slotDayID, t string) {
	if err := s.slots.UnlockTimeEntry(ctx, clientID, slotDayID, t); err != nil {
		s.cfg.Log.Error("Failed to release locked slot", "slot_day_id", slotDayID, "time", t, "error", err)
	}
}

func (s *bookingService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.Error("Failed to publish booking event",
			"event_type", event.Type,
			"booking_id", event.BookingID,
			"error", err,
		)
	}
}

func (s *bookingService) checkClient(ctx context.Context, clientID string) error {
	client, err := s.clients.FindByID(ctx, clientID)
	if err != nil {
		switch {
		case errors.Is(err, clientsrepo.ErrNotFound):
			return apperrors.NotFoundWithID("Client", clientID)
		case errors.Is(err, clientsrepo.ErrInvalidID):
			return apperrors.InvalidInput("Invalid client ID format")
		}
		s.cfg.Log.Error("Failed to look up client", "client_id", clientID, "error", err)
		return apperrors.Internal("Failed to look up client", err)
	}
	if !client.IsActive {
		s.cfg.Log.Warn("Booking attempted for inactive client", "client_id", clientID)
		return apperrors.ClientInactive(clientID)
	}
	return nil
}

// checkNotPast rejects slots whose start is not after the current wall clock
// in the configured booking time zone.
func (s *bookingService) checkNotPast(date, t string) error {
	loc := s.cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation(config.DateLayout+" "+config.TimeLayout, date+" "+t, loc)
	if err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("Invalid date or time: %s %s", date, t))
	}
	if !start.After(s.clock.Now()) {
		s.cfg.Log.Warn("Past slot requested", "date", date, "time", t)
		return apperrors.PastSlot(date, t)
	}
	return nil
}

func (s *bookingService) mapLookupError(err error, id, internalMsg string) error {
	if errors.Is(err, bookingserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Booking", id)
	}
	if errors.Is(err, bookingserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid booking ID format")
	}
	s.cfg.Log.Error(internalMsg, "id", id, "error", err)
	return apperrors.Internal(internalMsg, err)
}

func (s *bookingService) validate(err error) error {
	if err == nil {
		return nil
	}
	s.cfg.Log.Warn("Booking validation failed", "error", err)
	var verrs slotsvalidator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("Booking validation failed", verrs.Details())
	}
	return apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
}

func (s *bookingService) sanitize(req *model.BookingCreate) {
	req.Date = sanitizer.NormalizeDate(req.Date)
	req.Time = sanitizer.NormalizeTimeLabel(req.Time)
	req.UserName = sanitizer.NormalizeName(req.UserName)
	req.UserPhone = sanitizer.NormalizePhone(req.UserPhone)
}

func (s *bookingService) applyDefaults(req *model.BookingCreate) {
	if req.Source == "" {
		req.Source = config.SourceWhatsApp
	}
}

func (s *bookingService) recordOutcome(operation string, err error) {
	if err == nil {
		metrics.RecordReservation(operation, metrics.ResultSuccess)
		return
	}
	metrics.RecordReservation(operation, apperrors.AsAppError(err).Code)
}
