package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Provider. Any account ID is accepted; events
// live only as long as the process.
type Memory struct {
	mu     sync.Mutex
	events map[string]*Event
}

// NewMemory creates an empty in-memory calendar.
func NewMemory() *Memory {
	return &Memory{events: make(map[string]*Event)}
}

func (m *Memory) busyLocked(accountID string, start, end time.Time) bool {
	for _, ev := range m.events {
		if ev.AccountID != accountID {
			continue
		}
		if (period{start: ev.Start, end: ev.End}).overlaps(start, end) {
			return true
		}
	}
	return false
}

// Schedule books the appointment unless the window overlaps an existing
// event on the same account.
func (m *Memory) Schedule(_ context.Context, appt Appointment) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busyLocked(appt.AccountID, appt.Start, appt.End) {
		return nil, fmt.Errorf("%w: %s to %s", ErrSlotUnavailable,
			appt.Start.Format(time.RFC3339), appt.End.Format(time.RFC3339))
	}

	ev := &Event{
		ID:        uuid.New().String(),
		AccountID: appt.AccountID,
		Title:     appt.Title,
		Start:     appt.Start,
		End:       appt.End,
	}
	m.events[ev.ID] = ev
	return ev, nil
}

// Cancel deletes the event.
func (m *Memory) Cancel(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[eventID]; !ok {
		return fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	delete(m.events, eventID)
	return nil
}

// CheckAvailability reports whether the window is free on the account.
func (m *Memory) CheckAvailability(_ context.Context, accountID string, start, end time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.busyLocked(accountID, start, end), nil
}

// Slots lists the free SlotLength windows on the account.
func (m *Memory) Slots(_ context.Context, accountID string, start, end time.Time) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var busy []period
	for _, ev := range m.events {
		if ev.AccountID == accountID {
			busy = append(busy, period{start: ev.Start, end: ev.End})
		}
	}
	return freeSlots(start, end, busy), nil
}

// Reschedule moves the event, re-checking availability at the new window.
func (m *Memory) Reschedule(_ context.Context, eventID string, start, end time.Time) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[eventID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}

	// The event being moved does not block its own new window.
	saved := *ev
	delete(m.events, eventID)
	if m.busyLocked(ev.AccountID, start, end) {
		m.events[eventID] = &saved
		return nil, fmt.Errorf("%w: %s to %s", ErrSlotUnavailable,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	ev.Start = start
	ev.End = end
	m.events[eventID] = ev
	return ev, nil
}

var _ Provider = (*Memory)(nil)
