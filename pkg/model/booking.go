package model

import "time"

type Booking struct {
	ID           string    `json:"id,omitempty" bson:"_id,omitempty"`
	ClientID     string    `json:"clientId" bson:"client_id"`
	SlotDayID    string    `json:"slotDayId" bson:"slot_day_id"`
	Date         string    `json:"date" bson:"date"`
	SelectedTime string    `json:"selectedTime" bson:"selected_time"`
	UserName     string    `json:"userName" bson:"user_name"`
	UserPhone    string    `json:"userPhone" bson:"user_phone"`
	Status       string    `json:"status" bson:"status"`
	Source       string    `json:"source" bson:"source"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updated_at"`
}

type BookingCreate struct {
	Date      string `json:"date" validate:"required,calendar_date"`
	Time      string `json:"time" validate:"required,hhmm"`
	UserPhone string `json:"userPhone" validate:"required,phone_number"`
	UserName  string `json:"userName" validate:"omitempty,max=100"`
	Source    string `json:"source" validate:"omitempty,oneof=whatsapp manual"`
}

type BookingReschedule struct {
	Date string `json:"date" validate:"required,calendar_date"`
	Time string `json:"time" validate:"required,hhmm"`
}

type BookingFilter struct {
	Date   string `validate:"omitempty,calendar_date"`
	Status string `validate:"omitempty,oneof=pending confirmed cancelled completed"`
}
