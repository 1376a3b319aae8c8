package service

import (
	"sort"
	"time"

	"dailyplan/internal/model"
)

// SlotItem is one committed selection awaiting a time slot.
type SlotItem struct {
	Index           int
	Priority        model.CandidatePriority
	EstimateMinutes int
}

// Slot is the assigned [Start, End) window of the item at Index.
type Slot struct {
	Index int
	Start time.Time
	End   time.Time
}

// LayoutSlots lays items back-to-back from dayStart, high priority first and
// selection order within a priority. Existing calendar events are not consulted.
func LayoutSlots(dayStart time.Time, items []SlotItem) []Slot {
	ordered := make([]SlotItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority.Rank() > ordered[j].Priority.Rank()
	})

	slots := make([]Slot, 0, len(ordered))
	cursor := dayStart
	for _, item := range ordered {
		minutes := item.EstimateMinutes
		if minutes <= 0 {
			minutes = model.DefaultCandidateEstimate
		}
		end := cursor.Add(time.Duration(minutes) * time.Minute)
		slots = append(slots, Slot{Index: item.Index, Start: cursor, End: end})
		cursor = end
	}
	return slots
}

// DayStartOn anchors the HH:MM offset on date in loc.
func DayStartOn(date time.Time, offset time.Duration, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Add(offset)
}
