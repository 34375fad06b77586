package validator

import (
	"errors"
	"fmt"
	"noqbot/pkg/config"
	"noqbot/pkg/logger"
	"noqbot/pkg/model"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	timeLabelRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
	dateRegex      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// IsTimeLabel reports whether s is a 24h HH:MM label between 00:00 and 23:59.
func IsTimeLabel(s string) bool {
	return timeLabelRegex.MatchString(s)
}

// IsCalendarDate reports whether s is a real YYYY-MM-DD date.
func IsCalendarDate(s string) bool {
	if !dateRegex.MatchString(s) {
		return false
	}
	_, err := time.Parse(config.DateLayout, s)
	return err == nil
}

func validateTimeLabel(fl validator.FieldLevel) bool {
	return IsTimeLabel(fl.Field().String())
}

func validateCalendarDate(fl validator.FieldLevel) bool {
	return IsCalendarDate(fl.Field().String())
}

// RegisterTags installs the hhmm and calendar_date tags on v.
func RegisterTags(v *validator.Validate, log *logger.Logger) {
	if err := v.RegisterValidation("hhmm", validateTimeLabel); err != nil {
		log.Fatal("Failed to register 'hhmm' validator", "error", err)
	}
	if err := v.RegisterValidation("calendar_date", validateCalendarDate); err != nil {
		log.Fatal("Failed to register 'calendar_date' validator", "error", err)
	}
}

type SlotValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
	maxDays  int
}

func NewSlotValidator(log *logger.Logger, maxDays int) *SlotValidator {
	v := validator.New()
	RegisterTags(v, log)

	log.Info("Slot validator initialized successfully", "max_provision_days", maxDays)

	return &SlotValidator{
		validate: v,
		logger:   log,
		maxDays:  maxDays,
	}
}

func (v *SlotValidator) ValidateCreate(req *model.SlotDayCreate) error {
	return v.validateStruct(req)
}

func (v *SlotValidator) ValidateUpdate(req *model.SlotDayUpdate) error {
	return v.validateStruct(req)
}

func (v *SlotValidator) ValidateProvision(req *model.SlotProvision) error {
	if err := v.validateStruct(req); err != nil {
		return err
	}

	if v.maxDays > 0 && req.Days > v.maxDays {
		return ValidationErrors{
			ValidationError{
				Field:   "Days",
				Message: fmt.Sprintf("days must be at most %d", v.maxDays),
			},
		}
	}

	return nil
}

func (v *SlotValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return TranslateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

// TranslateValidationErrors turns validator output into field messages.
func TranslateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "hhmm":
			message = fmt.Sprintf("%s must be a time in HH:MM format (e.g., 09:30)", err.Field())
		case "calendar_date":
			message = fmt.Sprintf("%s must be a date in YYYY-MM-DD format", err.Field())
		case "phone_number":
			message = fmt.Sprintf("%s must be a phone number of 7 to 15 digits", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}

// Details flattens validation errors into an AppError details map.
func (v ValidationErrors) Details() map[string]any {
	details := make(map[string]any, len(v))
	for _, e := range v {
		details[e.Field] = e.Message
	}
	return details
}
