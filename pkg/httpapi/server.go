// Package httpapi is the HTTP surface of voicebridge: the Twilio
// webhook, the media-stream WebSocket endpoint and the management API
// for documents, calendars and outbound calls.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/solutionstwo/voicebridge/pkg/calendar"
	"github.com/solutionstwo/voicebridge/pkg/config"
	"github.com/solutionstwo/voicebridge/pkg/knowledge"
	"github.com/solutionstwo/voicebridge/pkg/openairt"
	"github.com/solutionstwo/voicebridge/pkg/relay"
	"github.com/solutionstwo/voicebridge/pkg/tools"
	"github.com/solutionstwo/voicebridge/pkg/twilio"
)

// AccountRegistrar persists calendar accounts, implemented by
// *calendar.Service.
type AccountRegistrar interface {
	AddAccount(ctx context.Context, account calendar.Account) error
	Accounts() []string
}

// Options wires the server's collaborators. Config, Realtime and Relay
// are required; the rest degrade the matching endpoints when nil.
type Options struct {
	Config    *config.Config
	Realtime  *openairt.Client
	Relay     *relay.Relay
	Registry  *tools.Registry
	Knowledge knowledge.Provider
	Calendar  calendar.Provider
	Accounts  AccountRegistrar
	Twilio    *twilio.RestClient
}

// Server serves the voicebridge HTTP API.
type Server struct {
	opts     Options
	upgrader websocket.Upgrader
}

// NewServer creates a Server from its collaborators.
func NewServer(opts Options) *Server {
	return &Server{
		opts: opts,
		// Twilio's media stream client sends no Origin header worth
		// checking.
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("/incoming-call", s.handleIncomingCall)
	mux.HandleFunc("GET /media-stream", s.handleMediaStream)
	mux.HandleFunc("POST /documents/add", s.handleDocumentsAdd)
	mux.HandleFunc("POST /outgoing-call", s.handleOutgoingCall)
	mux.HandleFunc("POST /calendar/accounts", s.handleCalendarAccounts)
	mux.HandleFunc("POST /calendar/availability", s.handleCalendarAvailability)
	mux.HandleFunc("POST /calendar/slots", s.handleCalendarSlots)
	mux.HandleFunc("POST /calendar/appointments/cancel", s.handleAppointmentsCancel)
	mux.HandleFunc("POST /calendar/appointments/reschedule", s.handleAppointmentsReschedule)
	return mux
}

// publicHost is the host Twilio dials back, falling back to the request
// host behind tunnels that preserve it.
func (s *Server) publicHost(r *http.Request) string {
	if h := s.opts.Config.Server.PublicHost; h != "" {
		return h
	}
	return r.Host
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Twilio media stream server is running",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
