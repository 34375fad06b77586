package model

import "testing"

func TestSlotDay_Entry(t *testing.T) {
	id := "b1"
	day := &SlotDay{Times: []TimeEntry{
		{Time: "10:00"},
		{Time: "10:30", IsBooked: true, BookingID: &id},
	}}

	entry, ok := day.Entry("10:30")
	if !ok || !entry.IsBooked || *entry.BookingID != "b1" {
		t.Errorf("Entry(10:30) = %+v, %v", entry, ok)
	}
	if _, ok := day.Entry("11:00"); ok {
		t.Errorf("Entry(11:00) should be absent")
	}
}

func TestSlotDay_HasBookedEntries(t *testing.T) {
	free := &SlotDay{Times: FreeEntries([]string{"09:00", "10:00"})}
	if free.HasBookedEntries() {
		t.Errorf("fresh slot day reported booked entries")
	}

	free.Times[1].IsBooked = true
	if !free.HasBookedEntries() {
		t.Errorf("booked entry not detected")
	}
}

func TestFreeEntries(t *testing.T) {
	entries := FreeEntries([]string{"09:00", "09:30"})
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.IsBooked || e.BookingID != nil {
			t.Errorf("entry %s should be free with no booking ref", e.Time)
		}
	}
}
