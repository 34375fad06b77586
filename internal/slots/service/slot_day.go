package service

import (
	"context"
	"errors"
	"fmt"
	slotserrors "noqbot/internal/slots/errors"
	"noqbot/internal/slots/repository"
	"noqbot/internal/slots/validator"
	"noqbot/pkg/config"
	apperrors "noqbot/pkg/errors"
	"noqbot/pkg/metrics"
	"noqbot/pkg/model"
	"noqbot/pkg/sanitizer"
	"slices"
	"time"
)

type SlotService interface {
	List(ctx context.Context, clientID, date string) ([]*model.SlotDay, error)
	GetByID(ctx context.Context, clientID, id string) (*model.SlotDay, error)
	Create(ctx context.Context, clientID string, req *model.SlotDayCreate) (*model.SlotDay, error)
	Provision(ctx context.Context, clientID string, req *model.SlotProvision) (*model.ProvisionResult, error)
	ReplaceTimes(ctx context.Context, clientID, id string, req *model.SlotDayUpdate) (*model.SlotDay, error)
	Delete(ctx context.Context, clientID, id string) error
}

type slotService struct {
	repo      repository.SlotDayRepository
	validator *validator.SlotValidator
	cfg       *config.Config
}

func NewSlotService(
	repo repository.SlotDayRepository,
	validator *validator.SlotValidator,
	cfg *config.Config,
) SlotService {
	return &slotService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *slotService) List(ctx context.Context, clientID, date string) ([]*model.SlotDay, error) {
	date = sanitizer.NormalizeDate(date)
	if date != "" && !validator.IsCalendarDate(date) {
		return nil, apperrors.InvalidInput("date must be in YYYY-MM-DD format")
	}

	slotDays, err := s.repo.List(ctx, clientID, date)
	if err != nil {
		s.cfg.Log.Error("Failed to list slot days", "client_id", clientID, "error", err)
		return nil, apperrors.Internal("Failed to list slot days", err)
	}

	s.cfg.Log.Debug("Slot days listed", "client_id", clientID, "date", date, "count", len(slotDays))
	return slotDays, nil
}

func (s *slotService) GetByID(ctx context.Context, clientID, id string) (*model.SlotDay, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Slot day ID cannot be empty")
	}

	slotDay, err := s.repo.FindByID(ctx, clientID, id)
	if err != nil {
		return nil, s.mapLookupError(err, id, "Failed to retrieve slot day")
	}
	return slotDay, nil
}

func (s *slotService) Create(ctx context.Context, clientID string, req *model.SlotDayCreate) (*model.SlotDay, error) {
	req.Date = sanitizer.NormalizeDate(req.Date)
	req.Times = sanitizer.NormalizeTimeLabels(req.Times)
	if err := s.validator.ValidateCreate(req); err != nil {
		return nil, s.validationError(err)
	}

	slotDay := &model.SlotDay{
		ClientID: clientID,
		Date:     req.Date,
		Times:    model.FreeEntries(sortedLabels(req.Times)),
	}

	if err := s.repo.Create(ctx, slotDay); err != nil {
		if errors.Is(err, slotserrors.ErrAlreadyExists) {
			s.cfg.Log.Warn("Slot day already exists", "client_id", clientID, "date", req.Date)
			return nil, apperrors.AlreadyExists(fmt.Sprintf("Slots already exist for %s", req.Date))
		}
		s.cfg.Log.Error("Failed to create slot day", "client_id", clientID, "date", req.Date, "error", err)
		return nil, apperrors.Internal("Failed to create slot day", err)
	}

	metrics.RecordProvisioned(1, 0)
	s.cfg.Log.Info("Slot day created",
		"id", slotDay.ID,
		"client_id", clientID,
		"date", slotDay.Date,
		"times", len(slotDay.Times),
	)
	return slotDay, nil
}

// Provision creates one slot day per date in [StartDate, StartDate+Days).
// Dates that already have a slot day are left alone and reported as skipped.
func (s *slotService) Provision(ctx context.Context, clientID string, req *model.SlotProvision) (*model.ProvisionResult, error) {
	req.StartDate = sanitizer.NormalizeDate(req.StartDate)
	req.Times = sanitizer.NormalizeTimeLabels(req.Times)
	if err := s.validator.ValidateProvision(req); err != nil {
		return nil, s.validationError(err)
	}

	dates, err := dateRange(req.StartDate, req.Days)
	if err != nil {
		return nil, apperrors.InvalidInput("startDate must be in YYYY-MM-DD format")
	}

	existing, err := s.repo.ExistingDates(ctx, clientID, dates)
	if err != nil {
		s.cfg.Log.Error("Failed to check existing slot days", "client_id", clientID, "error", err)
		return nil, apperrors.Internal("Failed to provision slots", err)
	}

	labels := sortedLabels(req.Times)
	result := &model.ProvisionResult{
		Created: []*model.SlotDay{},
		Skipped: []string{},
	}

	for _, date := range dates {
		if existing[date] {
			result.Skipped = append(result.Skipped, date)
			continue
		}

		slotDay := &model.SlotDay{
			ClientID: clientID,
			Date:     date,
			Times:    model.FreeEntries(labels),
		}
		if err := s.repo.Create(ctx, slotDay); err != nil {
			// A concurrent provision run may have created the date in between.
			if errors.Is(err, slotserrors.ErrAlreadyExists) {
				result.Skipped = append(result.Skipped, date)
				continue
			}
			s.cfg.Log.Error("Failed to provision slot day",
				"client_id", clientID,
				"date", date,
				"created_so_far", len(result.Created),
				"error", err,
			)
			return nil, apperrors.Internal("Failed to provision slots", err)
		}
		result.Created = append(result.Created, slotDay)
	}

	metrics.RecordProvisioned(len(result.Created), len(result.Skipped))
	s.cfg.Log.Info("Slots provisioned",
		"client_id", clientID,
		"start_date", req.StartDate,
		"days", req.Days,
		"created", len(result.Created),
		"skipped", len(result.Skipped),
	)
	return result, nil
}

func (s *slotService) ReplaceTimes(ctx context.Context, clientID, id string, req *model.SlotDayUpdate) (*model.SlotDay, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Slot day ID cannot be empty")
	}

	req.Times = sanitizer.NormalizeTimeLabels(req.Times)
	if err := s.validator.ValidateUpdate(req); err != nil {
		return nil, s.validationError(err)
	}

	slotDay, err := s.repo.ReplaceTimes(ctx, clientID, id, model.FreeEntries(sortedLabels(req.Times)))
	if err != nil {
		return nil, s.mapLookupError(err, id, "Failed to update slot day")
	}

	s.cfg.Log.Info("Slot day times replaced", "id", id, "client_id", clientID, "times", len(slotDay.Times))
	return slotDay, nil
}

func (s *slotService) Delete(ctx context.Context, clientID, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Slot day ID cannot be empty")
	}

	if err := s.repo.Delete(ctx, clientID, id); err != nil {
		return s.mapLookupError(err, id, "Failed to delete slot day")
	}

	s.cfg.Log.Info("Slot day deleted", "id", id, "client_id", clientID)
	return nil
}

func (s *slotService) mapLookupError(err error, id, internalMsg string) error {
	switch {
	case errors.Is(err, slotserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Slot day", id)
	case errors.Is(err, slotserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid slot day ID format")
	case errors.Is(err, slotserrors.ErrHasBookedEntries):
		s.cfg.Log.Warn("Slot day has booked entries", "id", id)
		return apperrors.Conflict("Slot day has booked time entries and cannot be changed")
	}
	s.cfg.Log.Error(internalMsg, "id", id, "error", err)
	return apperrors.Internal(internalMsg, err)
}

func (s *slotService) validationError(err error) error {
	s.cfg.Log.Warn("Slot validation failed", "error", err)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("Slot validation failed", verrs.Details())
	}
	return apperrors.Validation("Slot validation failed", map[string]any{"error": err.Error()})
}

// sortedLabels returns a sorted copy. HH:MM labels sort lexically in time order.
func sortedLabels(labels []string) []string {
	out := slices.Clone(labels)
	slices.Sort(out)
	return out
}

func dateRange(start string, days int) ([]string, error) {
	first, err := time.Parse(config.DateLayout, start)
	if err != nil {
		return nil, err
	}
	dates := make([]string, 0, days)
	for i := range days {
		dates = append(dates, first.AddDate(0, 0, i).Format(config.DateLayout))
	}
	return dates, nil
}
