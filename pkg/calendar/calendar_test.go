package calendar

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/solutionstwo/voicebridge/pkg/kv"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

func TestFreeSlots(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		busy []period
		want int
	}{
		{name: "empty calendar", busy: nil, want: 4},
		{
			name: "busy middle hour",
			busy: []period{{start: start.Add(30 * time.Minute), end: start.Add(90 * time.Minute)}},
			want: 2,
		},
		{
			name: "busy covers window",
			busy: []period{{start: start.Add(-time.Hour), end: end.Add(time.Hour)}},
			want: 0,
		},
		{
			name: "unsorted overlapping periods",
			busy: []period{
				{start: start.Add(60 * time.Minute), end: start.Add(90 * time.Minute)},
				{start: start.Add(45 * time.Minute), end: start.Add(75 * time.Minute)},
			},
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots := freeSlots(start, end, tt.busy)
			if len(slots) != tt.want {
				t.Fatalf("freeSlots = %d slots, want %d: %+v", len(slots), tt.want, slots)
			}
			for _, s := range slots {
				if s.End.Sub(s.Start) != SlotLength {
					t.Errorf("slot %+v is not %s long", s, SlotLength)
				}
			}
		})
	}
}

func TestMemoryScheduleConflict(t *testing.T) {
	ctx := t.Context()
	m := NewMemory()

	start := mustTime(t, "2026-03-02T10:00:00Z")
	end := start.Add(time.Hour)

	ev, err := m.Schedule(ctx, Appointment{AccountID: "main", Title: "Haircut", Start: start, End: end})
	if err != nil {
		t.Fatal(err)
	}
	if ev.ID == "" {
		t.Fatal("event has no ID")
	}

	_, err = m.Schedule(ctx, Appointment{AccountID: "main", Title: "Massage", Start: start.Add(30 * time.Minute), End: end.Add(30 * time.Minute)})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("overlapping Schedule error = %v, want ErrSlotUnavailable", err)
	}

	// Other accounts are independent.
	if _, err := m.Schedule(ctx, Appointment{AccountID: "other", Title: "Massage", Start: start, End: end}); err != nil {
		t.Errorf("other account Schedule: %v", err)
	}

	free, err := m.CheckAvailability(ctx, "main", start, end)
	if err != nil || free {
		t.Errorf("CheckAvailability = %v, %v, want false", free, err)
	}
}

func TestMemoryCancelAndReschedule(t *testing.T) {
	ctx := t.Context()
	m := NewMemory()

	start := mustTime(t, "2026-03-02T10:00:00Z")
	ev, err := m.Schedule(ctx, Appointment{AccountID: "main", Title: "Haircut", Start: start, End: start.Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}

	moved, err := m.Reschedule(ctx, ev.ID, start.Add(2*time.Hour), start.Add(3*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if !moved.Start.Equal(start.Add(2 * time.Hour)) {
		t.Errorf("moved start = %v", moved.Start)
	}

	// The vacated window is bookable again.
	if _, err := m.Schedule(ctx, Appointment{AccountID: "main", Title: "Massage", Start: start, End: start.Add(time.Hour)}); err != nil {
		t.Errorf("vacated window Schedule: %v", err)
	}

	if err := m.Cancel(ctx, moved.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.Cancel(ctx, moved.ID); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("second Cancel error = %v, want ErrEventNotFound", err)
	}
}

// fakeGoogle fakes the token endpoint and the Calendar API.
func newFakeGoogle(t *testing.T, busy []map[string]string) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Error(err)
		}
		if r.PostForm.Get("grant_type") != "refresh_token" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "at-1", "expires_in": 3600})
	})
	mux.HandleFunc("POST /freeBusy", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"calendars": map[string]any{"primary": map[string]any{"busy": busy}},
		})
	})
	mux.HandleFunc("POST /calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer at-1" {
			t.Errorf("Authorization = %q", got)
		}
		var ev map[string]any
		json.NewDecoder(r.Body).Decode(&ev)
		ev["id"] = "evt_google_1"
		json.NewEncoder(w).Encode(ev)
	})
	mux.HandleFunc("DELETE /calendars/primary/events/evt_google_1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testAccount(tokenURI string) Account {
	return Account{
		ID: "main",
		Credentials: Credentials{
			ClientID:     "cid",
			ClientSecret: "secret",
			RefreshToken: "rt",
			TokenURI:     tokenURI,
		},
	}
}

func TestServiceScheduleAgainstFake(t *testing.T) {
	ctx := t.Context()
	srv := newFakeGoogle(t, nil)

	svc, err := NewService(ctx, kv.NewMemory(), WithAPIBase(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.AddAccount(ctx, testAccount(srv.URL+"/token")); err != nil {
		t.Fatal(err)
	}

	start := mustTime(t, "2026-03-02T10:00:00Z")
	ev, err := svc.Schedule(ctx, Appointment{AccountID: "main", Title: "Haircut", Start: start, End: start.Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if ev.ID != "evt_google_1" {
		t.Errorf("event ID = %q", ev.ID)
	}
	if !ev.Start.Equal(start) {
		t.Errorf("event start = %v", ev.Start)
	}

	if err := svc.Cancel(ctx, "evt_google_1"); err != nil {
		t.Errorf("Cancel: %v", err)
	}
}

func TestServiceScheduleBusyWindow(t *testing.T) {
	ctx := t.Context()
	srv := newFakeGoogle(t, []map[string]string{
		{"start": "2026-03-02T10:00:00Z", "end": "2026-03-02T11:00:00Z"},
	})

	svc, err := NewService(ctx, kv.NewMemory(), WithAPIBase(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.AddAccount(ctx, testAccount(srv.URL+"/token")); err != nil {
		t.Fatal(err)
	}

	start := mustTime(t, "2026-03-02T10:30:00Z")
	_, err = svc.Schedule(ctx, Appointment{AccountID: "main", Title: "Haircut", Start: start, End: start.Add(time.Hour)})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("Schedule error = %v, want ErrSlotUnavailable", err)
	}
}

func TestServiceRejectsServiceAccount(t *testing.T) {
	ctx := t.Context()
	svc, err := NewService(ctx, kv.NewMemory())
	if err != nil {
		t.Fatal(err)
	}

	acc := testAccount(DefaultTokenURI)
	acc.Credentials.Type = "service_account"
	if err := svc.AddAccount(ctx, acc); err == nil {
		t.Fatal("expected service_account rejection")
	}
}

func TestServiceAccountsPersist(t *testing.T) {
	ctx := t.Context()
	backing := kv.NewMemory()

	svc, err := NewService(ctx, backing)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.AddAccount(ctx, testAccount(DefaultTokenURI)); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewService(ctx, backing)
	if err != nil {
		t.Fatal(err)
	}
	ids := reopened.Accounts()
	if len(ids) != 1 || ids[0] != "main" {
		t.Errorf("reopened accounts = %v", ids)
	}

	if _, err := reopened.Slots(ctx, "missing", time.Now(), time.Now().Add(time.Hour)); !errors.Is(err, ErrUnknownAccount) {
		t.Errorf("Slots error = %v, want ErrUnknownAccount", err)
	}
}
