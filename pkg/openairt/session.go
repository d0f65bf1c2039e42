package openairt

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Session is a live Realtime connection. Send methods are safe for
// concurrent use; Events must be consumed by a single goroutine.
type Session struct {
	conn      *websocket.Conn
	eventsCh  chan eventOrError
	closeCh   chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex

	sessionID string
	idMu      sync.Mutex
}

type eventOrError struct {
	event *ServerEvent
	err   error
}

func newSession(conn *websocket.Conn) *Session {
	s := &Session{
		conn:     conn,
		eventsCh: make(chan eventOrError, 100),
		closeCh:  make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// SessionOptions configures Bootstrap.
type SessionOptions struct {
	// Config is sent as session.update immediately after connecting.
	Config SessionConfig

	// Greeting, when non-empty, is seeded as a user message and answered
	// right away so the assistant speaks first.
	Greeting string
}

// Bootstrap initializes a fresh session: it pushes the session
// configuration and, if a greeting is set, seeds the conversation and
// requests the opening response.
func (s *Session) Bootstrap(opts SessionOptions) error {
	if err := s.UpdateSession(&opts.Config); err != nil {
		return err
	}
	if opts.Greeting == "" {
		return nil
	}
	if err := s.AddUserMessage(opts.Greeting); err != nil {
		return err
	}
	return s.CreateResponse()
}

// UpdateSession sends a session.update event.
func (s *Session) UpdateSession(config *SessionConfig) error {
	return s.sendEvent(map[string]any{
		"event_id": newEventID(),
		"type":     EventTypeSessionUpdate,
		"session":  config,
	})
}

// AppendAudioBase64 appends base64-encoded audio to the input buffer.
// The payload must already be in the session's input audio format.
func (s *Session) AppendAudioBase64(audioBase64 string) error {
	return s.sendEvent(map[string]any{
		"event_id": newEventID(),
		"type":     EventTypeInputAudioBufferAppend,
		"audio":    audioBase64,
	})
}

// AddUserMessage appends a user text message to the conversation.
func (s *Session) AddUserMessage(text string) error {
	return s.sendEvent(map[string]any{
		"event_id": newEventID(),
		"type":     EventTypeConversationItemCreate,
		"item": map[string]any{
			"type": "message",
			"role": "user",
			"content": []map[string]any{
				{"type": "input_text", "text": text},
			},
		},
	})
}

// AddFunctionCallOutput reports a tool result back to the model.
func (s *Session) AddFunctionCallOutput(callID, output string) error {
	return s.sendEvent(map[string]any{
		"event_id": newEventID(),
		"type":     EventTypeConversationItemCreate,
		"item": map[string]any{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  output,
		},
	})
}

// TruncateItem cuts an assistant item's audio at audioEndMs. Audio the
// server generated past that point is dropped from the conversation so
// the model does not believe the caller heard it.
func (s *Session) TruncateItem(itemID string, contentIndex, audioEndMs int) error {
	return s.sendEvent(map[string]any{
		"event_id":      newEventID(),
		"type":          EventTypeConversationItemTruncate,
		"item_id":       itemID,
		"content_index": contentIndex,
		"audio_end_ms":  audioEndMs,
	})
}

// CreateResponse asks the model to generate a response.
func (s *Session) CreateResponse() error {
	return s.sendEvent(map[string]any{
		"event_id": newEventID(),
		"type":     EventTypeResponseCreate,
	})
}

// CancelResponse cancels the in-progress response.
func (s *Session) CancelResponse() error {
	return s.sendEvent(map[string]any{
		"event_id": newEventID(),
		"type":     EventTypeResponseCancel,
	})
}

// SendRaw sends an event not covered by the helper methods.
func (s *Session) SendRaw(event map[string]any) error {
	return s.sendEvent(event)
}

// SessionID returns the server-assigned session ID, or "" before
// session.created has arrived.
func (s *Session) SessionID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return s.sessionID
}

// Events returns an iterator over server events. Iteration ends when the
// session closes or after an error is yielded.
func (s *Session) Events() iter.Seq2[*ServerEvent, error] {
	return func(yield func(*ServerEvent, error) bool) {
		for {
			select {
			case <-s.closeCh:
				return
			case item, ok := <-s.eventsCh:
				if !ok {
					return
				}
				if !yield(item.event, item.err) {
					return
				}
				if item.err != nil {
					return
				}
			}
		}
	}
}

// Close tears down the connection. Safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		err = s.conn.Close()
	})
	return err
}

func newEventID() string {
	return "evt_" + uuid.New().String()[:12]
}

func (s *Session) sendEvent(event map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		if b, err := json.Marshal(event); err == nil {
			str := string(b)
			if len(str) > 500 {
				str = str[:500] + "..."
			}
			slog.Debug("realtime send", "content", str)
		}
	}

	return s.conn.WriteJSON(event)
}

func (s *Session) readLoop() {
	defer close(s.eventsCh)

	for {
		select {
		case <-s.closeCh:
			return
		default:
		}

		_, message, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closeCh:
			case s.eventsCh <- eventOrError{err: fmt.Errorf("openairt: read: %w", err)}:
			}
			return
		}

		if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
			str := string(message)
			if len(str) > 1000 {
				str = str[:1000] + "..."
			}
			slog.Debug("realtime recv", "len", len(message), "content", str)
		}

		var event ServerEvent
		if err := json.Unmarshal(message, &event); err != nil {
			select {
			case <-s.closeCh:
				return
			case s.eventsCh <- eventOrError{err: fmt.Errorf("openairt: parse event: %w", err)}:
			}
			continue
		}
		event.Raw = message

		if event.Type == EventTypeSessionCreated && event.Session != nil {
			s.idMu.Lock()
			s.sessionID = event.Session.ID
			s.idMu.Unlock()
		}

		select {
		case <-s.closeCh:
			return
		case s.eventsCh <- eventOrError{event: &event}:
		}
	}
}
