package scheduling

import "time"

// Slot is a discrete bookable time candidate for a doctor on a given day.
type Slot struct {
	Time    time.Time `json:"time"`
	Display string    `json:"display"`
}

// Grid describes the fixed working-hours slot grid.
type Grid struct {
	StartHour   int // first bookable hour, local time
	EndHour     int // candidates are generated strictly before this hour
	SlotMinutes int // grid step and implicit slot duration
}

// DefaultGrid is the 09:00-17:00, 30-minute grid used for consultations.
var DefaultGrid = Grid{StartHour: 9, EndHour: 17, SlotMinutes: 30}

// GenerateSlots produces the bookable slots for one calendar day. A candidate
// is dropped when its half-open interval overlaps any booked interval, or
// when its start is not strictly in the future relative to now. The result is
// ordered ascending; an empty result is valid. Pure function of
// (date, booked, now).
func GenerateSlots(grid Grid, date time.Time, booked []Interval, now time.Time) []Slot {
	step := time.Duration(grid.SlotMinutes) * time.Minute
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayStart := day.Add(time.Duration(grid.StartHour) * time.Hour)
	dayEnd := day.Add(time.Duration(grid.EndHour) * time.Hour)

	slots := []Slot{}
	for start := dayStart; start.Before(dayEnd); start = start.Add(step) {
		if !start.After(now) {
			continue
		}
		if (Interval{Start: start, End: start.Add(step)}).OverlapsAny(booked) {
			continue
		}
		slots = append(slots, Slot{
			Time:    start,
			Display: start.Format("3:04 PM"),
		})
	}
	return slots
}
