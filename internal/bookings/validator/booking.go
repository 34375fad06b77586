package validator

import (
	"errors"
	slotsvalidator "noqbot/internal/slots/validator"
	"noqbot/pkg/logger"
	"noqbot/pkg/model"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	phoneRegex = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New()
	slotsvalidator.RegisterTags(v, log)

	if err := v.RegisterValidation("phone_number", validatePhoneNumber); err != nil {
		log.Fatal("Failed to register 'phone_number' validator",
			"error", err,
		)
	}

	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

// validatePhoneNumber accepts normalized numbers: optional leading '+' then
// 7 to 15 digits.
func validatePhoneNumber(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(fl.Field().String())
}

func (v *BookingValidator) ValidateCreate(req *model.BookingCreate) error {
	return v.validateStruct(req)
}

func (v *BookingValidator) ValidateReschedule(req *model.BookingReschedule) error {
	return v.validateStruct(req)
}

func (v *BookingValidator) ValidateFilter(f *model.BookingFilter) error {
	return v.validateStruct(f)
}

func (v *BookingValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return slotsvalidator.TranslateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}
