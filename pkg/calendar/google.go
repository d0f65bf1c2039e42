package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/solutionstwo/voicebridge/pkg/kv"
)

// DefaultAPIBase is the Google Calendar v3 REST endpoint.
const DefaultAPIBase = "https://www.googleapis.com/calendar/v3"

// Service is the Google-backed Provider. It manages a registry of
// accounts whose credentials are persisted in the KV store and survive
// restarts.
type Service struct {
	store      kv.Store
	httpClient *http.Client
	baseURL    string

	mu       sync.RWMutex
	accounts []*registeredAccount
}

// registeredAccount pairs an account with its cached access token.
type registeredAccount struct {
	account Account

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithAPIBase overrides the Calendar API base URL.
func WithAPIBase(base string) ServiceOption {
	return func(s *Service) {
		s.baseURL = strings.TrimSuffix(base, "/")
	}
}

// WithHTTPClient overrides the HTTP client used for API and token
// requests.
func WithHTTPClient(hc *http.Client) ServiceOption {
	return func(s *Service) {
		s.httpClient = hc
	}
}

// NewService creates a Service and loads every account persisted in the
// store.
func NewService(ctx context.Context, store kv.Store, opts ...ServiceOption) (*Service, error) {
	s := &Service{
		store:      store,
		httpClient: http.DefaultClient,
		baseURL:    DefaultAPIBase,
	}
	for _, opt := range opts {
		opt(s)
	}

	for entry, err := range store.List(ctx, accountsPrefix) {
		if err != nil {
			return nil, fmt.Errorf("calendar: load accounts: %w", err)
		}
		account, err := decodeAccount(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("calendar: decode account %s: %w", entry.Key, err)
		}
		s.accounts = append(s.accounts, &registeredAccount{account: account})
	}
	return s, nil
}

// AddAccount validates, persists and registers an account. Registering
// an existing ID replaces its credentials.
func (s *Service) AddAccount(ctx context.Context, account Account) error {
	if err := (&account).validate(); err != nil {
		return err
	}

	data, err := encodeAccount(account)
	if err != nil {
		return fmt.Errorf("calendar: encode account: %w", err)
	}
	if err := s.store.Set(ctx, append(accountsPrefix, account.ID), data); err != nil {
		return fmt.Errorf("calendar: persist account: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ra := range s.accounts {
		if ra.account.ID == account.ID {
			ra.account = account
			ra.tokenMu.Lock()
			ra.accessToken = ""
			ra.tokenExpiry = time.Time{}
			ra.tokenMu.Unlock()
			return nil
		}
	}
	s.accounts = append(s.accounts, &registeredAccount{account: account})
	return nil
}

// Accounts lists the registered account IDs.
func (s *Service) Accounts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.accounts))
	for i, ra := range s.accounts {
		ids[i] = ra.account.ID
	}
	return ids
}

func (s *Service) lookup(accountID string) (*registeredAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ra := range s.accounts {
		if ra.account.ID == accountID {
			return ra, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAccount, accountID)
}

func (s *Service) all() []*registeredAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*registeredAccount, len(s.accounts))
	copy(out, s.accounts)
	return out
}

// Schedule books an appointment after a freebusy check.
func (s *Service) Schedule(ctx context.Context, appt Appointment) (*Event, error) {
	ra, err := s.lookup(appt.AccountID)
	if err != nil {
		return nil, err
	}

	busy, err := s.freeBusy(ctx, ra, appt.Start, appt.End)
	if err != nil {
		return nil, err
	}
	for _, p := range busy {
		if p.overlaps(appt.Start, appt.End) {
			return nil, fmt.Errorf("%w: %s to %s", ErrSlotUnavailable,
				appt.Start.Format(time.RFC3339), appt.End.Format(time.RFC3339))
		}
	}
	return s.insertEvent(ctx, ra, appt)
}

// Cancel deletes the event from whichever account holds it.
func (s *Service) Cancel(ctx context.Context, eventID string) error {
	accounts := s.all()
	if len(accounts) == 0 {
		return fmt.Errorf("calendar: no accounts registered")
	}
	var lastErr error
	for _, ra := range accounts {
		if err := s.deleteEvent(ctx, ra, eventID); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("calendar: cancel %s: %w", eventID, lastErr)
}

// CheckAvailability reports whether the window is free of busy periods.
func (s *Service) CheckAvailability(ctx context.Context, accountID string, start, end time.Time) (bool, error) {
	ra, err := s.lookup(accountID)
	if err != nil {
		return false, err
	}
	busy, err := s.freeBusy(ctx, ra, start, end)
	if err != nil {
		return false, err
	}
	for _, p := range busy {
		if p.overlaps(start, end) {
			return false, nil
		}
	}
	return true, nil
}

// Slots lists the free SlotLength windows between start and end.
func (s *Service) Slots(ctx context.Context, accountID string, start, end time.Time) ([]Slot, error) {
	ra, err := s.lookup(accountID)
	if err != nil {
		return nil, err
	}
	busy, err := s.freeBusy(ctx, ra, start, end)
	if err != nil {
		return nil, err
	}
	return freeSlots(start, end, busy), nil
}

// Reschedule moves the event on whichever account holds it.
func (s *Service) Reschedule(ctx context.Context, eventID string, start, end time.Time) (*Event, error) {
	accounts := s.all()
	if len(accounts) == 0 {
		return nil, fmt.Errorf("calendar: no accounts registered")
	}
	var lastErr error
	for _, ra := range accounts {
		event, err := s.patchEvent(ctx, ra, eventID, start, end)
		if err != nil {
			lastErr = err
			continue
		}
		return event, nil
	}
	return nil, fmt.Errorf("calendar: reschedule %s: %w", eventID, lastErr)
}

// === Google REST plumbing ===

type googleEventTime struct {
	DateTime string `json:"dateTime"`
}

type googleEvent struct {
	ID          string          `json:"id,omitzero"`
	Summary     string          `json:"summary,omitzero"`
	Description string          `json:"description,omitzero"`
	Location    string          `json:"location,omitzero"`
	Start       googleEventTime `json:"start"`
	End         googleEventTime `json:"end"`
	HTMLLink    string          `json:"htmlLink,omitzero"`
}

func (s *Service) insertEvent(ctx context.Context, ra *registeredAccount, appt Appointment) (*Event, error) {
	body := googleEvent{
		Summary:     appt.Title,
		Description: appt.Description,
		Location:    appt.Location,
		Start:       googleEventTime{DateTime: appt.Start.Format(time.RFC3339)},
		End:         googleEventTime{DateTime: appt.End.Format(time.RFC3339)},
	}

	var created googleEvent
	path := fmt.Sprintf("/calendars/%s/events", url.PathEscape(ra.account.CalendarID))
	if err := s.doJSON(ctx, ra, http.MethodPost, path, body, &created); err != nil {
		return nil, fmt.Errorf("calendar: insert event: %w", err)
	}
	return s.toEvent(ra, created), nil
}

func (s *Service) deleteEvent(ctx context.Context, ra *registeredAccount, eventID string) error {
	path := fmt.Sprintf("/calendars/%s/events/%s",
		url.PathEscape(ra.account.CalendarID), url.PathEscape(eventID))
	return s.doJSON(ctx, ra, http.MethodDelete, path, nil, nil)
}

func (s *Service) patchEvent(ctx context.Context, ra *registeredAccount, eventID string, start, end time.Time) (*Event, error) {
	body := map[string]any{
		"start": googleEventTime{DateTime: start.Format(time.RFC3339)},
		"end":   googleEventTime{DateTime: end.Format(time.RFC3339)},
	}

	var updated googleEvent
	path := fmt.Sprintf("/calendars/%s/events/%s",
		url.PathEscape(ra.account.CalendarID), url.PathEscape(eventID))
	if err := s.doJSON(ctx, ra, http.MethodPatch, path, body, &updated); err != nil {
		return nil, err
	}
	return s.toEvent(ra, updated), nil
}

func (s *Service) freeBusy(ctx context.Context, ra *registeredAccount, start, end time.Time) ([]period, error) {
	body := map[string]any{
		"timeMin": start.Format(time.RFC3339),
		"timeMax": end.Format(time.RFC3339),
		"items":   []map[string]string{{"id": ra.account.CalendarID}},
	}

	var resp struct {
		Calendars map[string]struct {
			Busy []struct {
				Start time.Time `json:"start"`
				End   time.Time `json:"end"`
			} `json:"busy"`
		} `json:"calendars"`
	}
	if err := s.doJSON(ctx, ra, http.MethodPost, "/freeBusy", body, &resp); err != nil {
		return nil, fmt.Errorf("calendar: freebusy: %w", err)
	}

	var busy []period
	for _, cal := range resp.Calendars {
		for _, b := range cal.Busy {
			busy = append(busy, period{start: b.Start, end: b.End})
		}
	}
	return busy, nil
}

func (s *Service) toEvent(ra *registeredAccount, ge googleEvent) *Event {
	start, _ := time.Parse(time.RFC3339, ge.Start.DateTime)
	end, _ := time.Parse(time.RFC3339, ge.End.DateTime)
	return &Event{
		ID:        ge.ID,
		AccountID: ra.account.ID,
		Title:     ge.Summary,
		Start:     start,
		End:       end,
		Link:      ge.HTMLLink,
	}
}

func (s *Service) doJSON(ctx context.Context, ra *registeredAccount, method, path string, body, out any) error {
	token, err := s.accessToken(ctx, ra)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: account %s", ErrEventNotFound, ra.account.ID)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("google calendar: %s %s: status %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (ra *registeredAccount) expired() bool {
	return ra.accessToken == "" || time.Until(ra.tokenExpiry) < time.Minute
}

// accessToken returns a cached access token, refreshing it via the
// OAuth2 refresh-token grant when missing or near expiry.
func (s *Service) accessToken(ctx context.Context, ra *registeredAccount) (string, error) {
	ra.tokenMu.Lock()
	defer ra.tokenMu.Unlock()

	if !ra.expired() {
		return ra.accessToken, nil
	}

	creds := ra.account.Credentials
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)
	form.Set("refresh_token", creds.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, creds.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("calendar: token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calendar: refresh token: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("calendar: refresh token for %s: status %d: %s",
			ra.account.ID, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(data, &token); err != nil {
		return "", fmt.Errorf("calendar: decode token: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("calendar: empty access token for %s", ra.account.ID)
	}

	ra.accessToken = token.AccessToken
	ra.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	slog.Debug("refreshed calendar token", "account", ra.account.ID, "expires_in", token.ExpiresIn)
	return ra.accessToken, nil
}

var _ Provider = (*Service)(nil)
