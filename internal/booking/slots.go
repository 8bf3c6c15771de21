package booking

import (
	"fmt"
	"time"

	"github.com/wolfman30/bloodlab-platform/internal/records"
)

// Lab opening hours. Each slot is one hour starting on the hour.
const (
	FirstSlotHour = 9
	LastSlotHour  = 17
)

// Slot is one bookable hour on a given day.
type Slot struct {
	Value     string `json:"value"`
	Label     string `json:"label"`
	Available bool   `json:"available"`
}

// AvailableSlots lists the day's slots. On today's date every slot whose hour
// has started is unavailable; past dates have no available slots.
func AvailableSlots(date, now time.Time) []Slot {
	dy, dm, dd := date.Date()
	ny, nm, nd := now.Date()
	today := dy == ny && dm == nm && dd == nd
	past := !today && date.Before(now)

	slots := make([]Slot, 0, LastSlotHour-FirstSlotHour+1)
	for h := FirstSlotHour; h <= LastSlotHour; h++ {
		slots = append(slots, Slot{
			Value:     fmt.Sprintf("%02d:00", h),
			Label:     fmt.Sprintf("%02d:00 - %02d:00", h, h+1),
			Available: !past && !(today && h <= now.Hour()),
		})
	}
	return slots
}

// checkSlot validates date and time against now in the lab's location.
func checkSlot(date, slot string, now time.Time) error {
	if date == "" {
		return invalid("date", MsgMissingDate)
	}
	day, err := time.ParseInLocation(records.DateLayout, date, now.Location())
	if err != nil {
		return invalid("date", MsgMissingDate)
	}
	ny, nm, nd := now.Date()
	if day.Before(time.Date(ny, nm, nd, 0, 0, 0, 0, now.Location())) {
		return invalid("date", MsgPastDate)
	}
	if slot == "" {
		return invalid("time", MsgMissingSlot)
	}
	for _, s := range AvailableSlots(day, now) {
		if s.Value == slot {
			if !s.Available {
				return invalid("time", MsgSlotTaken)
			}
			return nil
		}
	}
	return invalid("time", MsgMissingSlot)
}
