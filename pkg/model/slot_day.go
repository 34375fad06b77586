package model

import "time"

// TimeEntry is one bookable time-of-day inside a SlotDay. BookingID is a
// reverse-lookup pointer only; IsBooked is what decides availability.
type TimeEntry struct {
	Time      string  `json:"time" bson:"time"`
	IsBooked  bool    `json:"isBooked" bson:"is_booked"`
	BookingID *string `json:"bookingId" bson:"booking_id"`
}

type SlotDay struct {
	ID        string      `json:"id,omitempty" bson:"_id,omitempty"`
	ClientID  string      `json:"clientId" bson:"client_id"`
	Date      string      `json:"date" bson:"date"`
	Times     []TimeEntry `json:"times" bson:"times"`
	CreatedAt time.Time   `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time   `json:"updatedAt" bson:"updated_at"`
}

// Entry returns the time entry with the given label.
func (s *SlotDay) Entry(label string) (TimeEntry, bool) {
	for _, t := range s.Times {
		if t.Time == label {
			return t, true
		}
	}
	return TimeEntry{}, false
}

func (s *SlotDay) HasBookedEntries() bool {
	for _, t := range s.Times {
		if t.IsBooked {
			return true
		}
	}
	return false
}

// FreeEntries builds unbooked entries for the given labels, in order.
func FreeEntries(labels []string) []TimeEntry {
	entries := make([]TimeEntry, 0, len(labels))
	for _, l := range labels {
		entries = append(entries, TimeEntry{Time: l})
	}
	return entries
}

type SlotDayCreate struct {
	Date  string   `json:"date" validate:"required,calendar_date"`
	Times []string `json:"times" validate:"required,min=1,max=96,dive,hhmm"`
}

type SlotProvision struct {
	StartDate string   `json:"startDate" validate:"required,calendar_date"`
	Days      int      `json:"days" validate:"required,min=1"`
	Times     []string `json:"times" validate:"required,min=1,max=96,dive,hhmm"`
}

type SlotDayUpdate struct {
	Times []string `json:"times" validate:"required,min=1,max=96,dive,hhmm"`
}

type ProvisionResult struct {
	Created []*SlotDay `json:"created"`
	Skipped []string   `json:"skipped"`
}
