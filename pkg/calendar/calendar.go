// Package calendar schedules appointments on behalf of the voice
// assistant. The Google-backed Service talks to the Calendar v3 REST API
// across multiple registered accounts; Memory is a self-contained
// implementation for tests and local development.
package calendar

import (
	"context"
	"errors"
	"sort"
	"time"
)

// Sentinel errors.
var (
	// ErrSlotUnavailable is returned when the requested window overlaps
	// an existing event.
	ErrSlotUnavailable = errors.New("calendar: slot unavailable")

	// ErrUnknownAccount is returned for account IDs never registered.
	ErrUnknownAccount = errors.New("calendar: unknown account")

	// ErrEventNotFound is returned when no account holds the event.
	ErrEventNotFound = errors.New("calendar: event not found")
)

// SlotLength is the granularity of availability slots.
const SlotLength = 30 * time.Minute

// Appointment is a booking request.
type Appointment struct {
	AccountID   string
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
}

// Event is a booked calendar entry.
type Event struct {
	ID        string
	AccountID string
	Title     string
	Start     time.Time
	End       time.Time
	Link      string
}

// Slot is a free window offered to the caller.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Provider is the scheduling capability set consumed by the tool
// dispatcher and the HTTP surface.
type Provider interface {
	// Schedule books an appointment. The window is availability-checked
	// first; an occupied window returns ErrSlotUnavailable.
	Schedule(ctx context.Context, appt Appointment) (*Event, error)

	// Cancel deletes an event by ID, trying every account.
	Cancel(ctx context.Context, eventID string) error

	// CheckAvailability reports whether the window is free.
	CheckAvailability(ctx context.Context, accountID string, start, end time.Time) (bool, error)

	// Slots lists free slots of SlotLength within the window.
	Slots(ctx context.Context, accountID string, start, end time.Time) ([]Slot, error)

	// Reschedule moves an existing event, trying every account.
	Reschedule(ctx context.Context, eventID string, start, end time.Time) (*Event, error)
}

// period is a busy interval.
type period struct {
	start time.Time
	end   time.Time
}

func (p period) overlaps(start, end time.Time) bool {
	return p.start.Before(end) && start.Before(p.end)
}

// freeSlots inverts the busy periods over [start, end) and cuts the free
// time into SlotLength blocks. Partial trailing blocks are dropped.
func freeSlots(start, end time.Time, busy []period) []Slot {
	sorted := make([]period, len(busy))
	copy(sorted, busy)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start.Before(sorted[j].start) })

	var slots []Slot
	cursor := start
	emit := func(from, to time.Time) {
		for !from.Add(SlotLength).After(to) {
			slots = append(slots, Slot{Start: from, End: from.Add(SlotLength)})
			from = from.Add(SlotLength)
		}
	}

	for _, p := range sorted {
		if !p.start.After(cursor) {
			if p.end.After(cursor) {
				cursor = p.end
			}
			continue
		}
		to := p.start
		if to.After(end) {
			to = end
		}
		emit(cursor, to)
		if p.end.After(cursor) {
			cursor = p.end
		}
	}
	if cursor.Before(end) {
		emit(cursor, end)
	}
	return slots
}
