package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/solutionstwo/voicebridge/pkg/calendar"
	"github.com/solutionstwo/voicebridge/pkg/knowledge"
)

// handleDocumentsAdd ingests knowledge base documents.
func (s *Server) handleDocumentsAdd(w http.ResponseWriter, r *http.Request) {
	if s.opts.Knowledge == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("knowledge base is not configured"))
		return
	}

	var req struct {
		Category  string               `json:"category"`
		Documents []knowledge.Document `json:"documents"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Category == "" {
		req.Category = knowledge.CategoryServices
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("documents is required"))
		return
	}

	ids := make([]string, 0, len(req.Documents))
	for _, doc := range req.Documents {
		id, err := s.opts.Knowledge.AddDocument(r.Context(), req.Category, doc)
		if err != nil {
			if errors.Is(err, knowledge.ErrUnknownCategory) {
				writeError(w, http.StatusBadRequest, err)
			} else {
				writeError(w, http.StatusInternalServerError, err)
			}
			return
		}
		ids = append(ids, id)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ids": ids})
}

// handleOutgoingCall places an outbound call that connects back to the
// media stream when answered.
func (s *Server) handleOutgoingCall(w http.ResponseWriter, r *http.Request) {
	if s.opts.Twilio == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("twilio client is not configured"))
		return
	}

	var req struct {
		To string `json:"to"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.To == "" {
		writeError(w, http.StatusBadRequest, errors.New("to is required"))
		return
	}

	twimlURL := fmt.Sprintf("https://%s/incoming-call", s.publicHost(r))
	sid, err := s.opts.Twilio.PlaceCall(r.Context(), req.To, s.opts.Config.Twilio.PhoneNumber, twimlURL)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sid": sid})
}

// handleCalendarAccounts registers a calendar account.
func (s *Server) handleCalendarAccounts(w http.ResponseWriter, r *http.Request) {
	if s.opts.Accounts == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("calendar accounts are not configured"))
		return
	}

	var account calendar.Account
	if err := readJSON(r, &account); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.opts.Accounts.AddAccount(r.Context(), account); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": s.opts.Accounts.Accounts()})
}

type windowRequest struct {
	AccountID string    `json:"account_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

func (req *windowRequest) validate() error {
	if req.AccountID == "" {
		return errors.New("account_id is required")
	}
	if req.Start.IsZero() || req.End.IsZero() || !req.Start.Before(req.End) {
		return errors.New("start must precede end")
	}
	return nil
}

func (s *Server) calendarOr503(w http.ResponseWriter) calendar.Provider {
	if s.opts.Calendar == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("calendar is not configured"))
		return nil
	}
	return s.opts.Calendar
}

// handleCalendarAvailability checks a window on one account.
func (s *Server) handleCalendarAvailability(w http.ResponseWriter, r *http.Request) {
	provider := s.calendarOr503(w)
	if provider == nil {
		return
	}

	var req windowRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	available, err := provider.CheckAvailability(r.Context(), req.AccountID, req.Start, req.End)
	if err != nil {
		writeCalendarError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}

// handleCalendarSlots lists free slots in a window.
func (s *Server) handleCalendarSlots(w http.ResponseWriter, r *http.Request) {
	provider := s.calendarOr503(w)
	if provider == nil {
		return
	}

	var req windowRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	slots, err := provider.Slots(r.Context(), req.AccountID, req.Start, req.End)
	if err != nil {
		writeCalendarError(w, err)
		return
	}
	if slots == nil {
		slots = []calendar.Slot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

// handleAppointmentsCancel cancels an event across all accounts.
func (s *Server) handleAppointmentsCancel(w http.ResponseWriter, r *http.Request) {
	provider := s.calendarOr503(w)
	if provider == nil {
		return
	}

	var req struct {
		EventID string `json:"event_id"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.EventID == "" {
		writeError(w, http.StatusBadRequest, errors.New("event_id is required"))
		return
	}

	if err := provider.Cancel(r.Context(), req.EventID); err != nil {
		writeCalendarError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// handleAppointmentsReschedule moves an event to a new window.
func (s *Server) handleAppointmentsReschedule(w http.ResponseWriter, r *http.Request) {
	provider := s.calendarOr503(w)
	if provider == nil {
		return
	}

	var req struct {
		EventID string    `json:"event_id"`
		Start   time.Time `json:"start"`
		End     time.Time `json:"end"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.EventID == "" || req.Start.IsZero() || !req.Start.Before(req.End) {
		writeError(w, http.StatusBadRequest, errors.New("event_id and a valid start/end window are required"))
		return
	}

	event, err := provider.Reschedule(r.Context(), req.EventID, req.Start, req.End)
	if err != nil {
		writeCalendarError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":    event.ID,
		"start": event.Start,
		"end":   event.End,
	})
}

func writeCalendarError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, calendar.ErrUnknownAccount), errors.Is(err, calendar.ErrEventNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, calendar.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
