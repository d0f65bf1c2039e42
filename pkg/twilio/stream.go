package twilio

import (
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// EventKind enumerates the Media Streams event types the relay handles.
// Raw wire JSON is converted to a tagged StreamEvent at the connection
// boundary so no stringly-typed switching leaks into the relay.
type EventKind int

const (
	// KindUnknown covers event types the relay only observes (e.g. the
	// initial "connected" notification).
	KindUnknown EventKind = iota
	KindStart
	KindMedia
	KindMark
	KindStop
)

func (k EventKind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindMedia:
		return "media"
	case KindMark:
		return "mark"
	case KindStop:
		return "stop"
	default:
		return "unknown"
	}
}

// StreamEvent is a decoded inbound Media Streams event.
type StreamEvent struct {
	Kind EventKind

	// StreamSID is set for start events.
	StreamSID string

	// Timestamp is the frame timestamp in milliseconds, set for media
	// events. Twilio sends it as a JSON string.
	Timestamp int

	// Payload is the base64-encoded μ-law audio, set for media events.
	Payload string

	// RawType preserves the wire event name for unknown kinds.
	RawType string
}

// wireMessage mirrors the inbound JSON envelope.
type wireMessage struct {
	Event string `json:"event"`
	Start *struct {
		StreamSID string `json:"streamSid"`
	} `json:"start"`
	Media *struct {
		Timestamp flexInt `json:"timestamp"`
		Payload   string  `json:"payload"`
	} `json:"media"`
}

// flexInt decodes a JSON number that may arrive quoted. Twilio quotes
// media timestamps.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// DecodeStreamEvent converts one wire message into a StreamEvent.
// A media event missing its payload is malformed and rejected.
func DecodeStreamEvent(data []byte) (*StreamEvent, error) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("twilio: decode stream event: %w", err)
	}

	switch msg.Event {
	case "start":
		if msg.Start == nil || msg.Start.StreamSID == "" {
			return nil, fmt.Errorf("twilio: start event missing streamSid")
		}
		return &StreamEvent{Kind: KindStart, StreamSID: msg.Start.StreamSID}, nil
	case "media":
		if msg.Media == nil || msg.Media.Payload == "" {
			return nil, fmt.Errorf("twilio: media event missing payload")
		}
		return &StreamEvent{
			Kind:      KindMedia,
			Timestamp: int(msg.Media.Timestamp),
			Payload:   msg.Media.Payload,
		}, nil
	case "mark":
		return &StreamEvent{Kind: KindMark}, nil
	case "stop":
		return &StreamEvent{Kind: KindStop}, nil
	default:
		return &StreamEvent{Kind: KindUnknown, RawType: msg.Event}, nil
	}
}

// StreamConn wraps a server-side Media Streams WebSocket connection with
// typed reads and writes. Writes are serialized; both relay pumps write
// concurrently.
type StreamConn struct {
	conn      *websocket.Conn
	wmu       sync.Mutex
	closeOnce sync.Once
}

// NewStreamConn wraps an upgraded WebSocket connection.
func NewStreamConn(conn *websocket.Conn) *StreamConn {
	return &StreamConn{conn: conn}
}

// Events returns an iterator over inbound stream events, terminating when
// the connection closes or fails. Malformed messages are logged and
// skipped; they never terminate the stream.
func (c *StreamConn) Events() iter.Seq2[*StreamEvent, error] {
	return func(yield func(*StreamEvent, error) bool) {
		for {
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				yield(nil, err)
				return
			}
			ev, err := DecodeStreamEvent(data)
			if err != nil {
				slog.Warn("dropping malformed stream event", "error", err)
				continue
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// SendMedia forwards a base64 μ-law payload for playback.
func (c *StreamConn) SendMedia(streamSID, payloadB64 string) error {
	return c.writeJSON(map[string]any{
		"event":     "media",
		"streamSid": streamSID,
		"media":     map[string]any{"payload": payloadB64},
	})
}

// SendMark emits a playback marker; Twilio echoes it back once the audio
// queued before it has been played.
func (c *StreamConn) SendMark(streamSID, name string) error {
	return c.writeJSON(map[string]any{
		"event":     "mark",
		"streamSid": streamSID,
		"mark":      map[string]any{"name": name},
	})
}

// SendClear tells Twilio to flush any audio buffered for playback.
func (c *StreamConn) SendClear(streamSID string) error {
	return c.writeJSON(map[string]any{
		"event":     "clear",
		"streamSid": streamSID,
	})
}

// Close closes the underlying connection. Safe to call from either pump;
// only the first call takes effect.
func (c *StreamConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

func (c *StreamConn) writeJSON(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.WriteJSON(v)
}
