package validator

import (
	"errors"
	slotsvalidator "noqbot/internal/slots/validator"
	"noqbot/pkg/logger"
	"noqbot/pkg/model"
	"testing"
)

func TestValidateCreate(t *testing.T) {
	v := NewBookingValidator(logger.Discard())

	valid := func() model.BookingCreate {
		return model.BookingCreate{
			Date:      "2024-06-01",
			Time:      "10:00",
			UserPhone: "5551234567",
			UserName:  "Dana",
			Source:    "whatsapp",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*model.BookingCreate)
		field   string
		wantErr bool
	}{
		{"valid", func(*model.BookingCreate) {}, "", false},
		{"e164 phone", func(b *model.BookingCreate) { b.UserPhone = "+972501234567" }, "", false},
		{"no name", func(b *model.BookingCreate) { b.UserName = "" }, "", false},
		{"no source", func(b *model.BookingCreate) { b.Source = "" }, "", false},
		{"missing phone", func(b *model.BookingCreate) { b.UserPhone = "" }, "UserPhone", true},
		{"short phone", func(b *model.BookingCreate) { b.UserPhone = "12345" }, "UserPhone", true},
		{"letters in phone", func(b *model.BookingCreate) { b.UserPhone = "555-CALL-NOW" }, "UserPhone", true},
		{"bad date", func(b *model.BookingCreate) { b.Date = "2024-02-30" }, "Date", true},
		{"bad time", func(b *model.BookingCreate) { b.Time = "10h" }, "Time", true},
		{"bad source", func(b *model.BookingCreate) { b.Source = "email" }, "Source", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			err := v.ValidateCreate(&req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateCreate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			var verrs slotsvalidator.ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %T", err)
			}
			if verrs[0].Field != tt.field {
				t.Errorf("field = %s, want %s", verrs[0].Field, tt.field)
			}
		})
	}
}

func TestValidateFilter(t *testing.T) {
	v := NewBookingValidator(logger.Discard())

	if err := v.ValidateFilter(&model.BookingFilter{}); err != nil {
		t.Errorf("empty filter should be valid: %v", err)
	}
	if err := v.ValidateFilter(&model.BookingFilter{Status: "cancelled", Date: "2024-06-01"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := v.ValidateFilter(&model.BookingFilter{Status: "deleted"}); err == nil {
		t.Error("expected error for unknown status")
	}
}
