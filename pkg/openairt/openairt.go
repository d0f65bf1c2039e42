// Package openairt is a WebSocket client for the OpenAI Realtime API.
//
// A Session carries one bidirectional event stream. Client events are sent
// through typed helper methods; server events arrive through the Events
// iterator as tagged ServerEvent values.
//
// Basic usage:
//
//	client := openairt.NewClient(apiKey)
//	sess, err := client.Connect(ctx, openairt.ModelGPT4oRealtimePreview)
//	if err != nil {
//		return err
//	}
//	defer sess.Close()
//
//	for ev, err := range sess.Events() {
//		if err != nil {
//			return err
//		}
//		switch ev.Type {
//		case openairt.EventTypeResponseAudioDelta:
//			play(ev.Delta)
//		}
//	}
package openairt

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// DefaultWebSocketURL is the production Realtime endpoint.
const DefaultWebSocketURL = "wss://api.openai.com/v1/realtime"

// Realtime model identifiers.
const (
	ModelGPT4oRealtimePreview     = "gpt-4o-realtime-preview"
	ModelGPT4oMiniRealtimePreview = "gpt-4o-mini-realtime-preview"
)

// Client dials Realtime sessions. It is safe for concurrent use; each
// Connect call produces an independent Session.
type Client struct {
	apiKey string
	wsURL  string
	dialer *websocket.Dialer
}

// Option configures a Client.
type Option func(*Client)

// WithWebSocketURL overrides the Realtime endpoint. Tests point this at a
// local server.
func WithWebSocketURL(url string) Option {
	return func(c *Client) {
		c.wsURL = url
	}
}

// WithDialer overrides the WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// NewClient creates a Realtime client. The API key is required.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey: apiKey,
		wsURL:  DefaultWebSocketURL,
		dialer: websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens a Realtime session for the given model.
func (c *Client) Connect(ctx context.Context, model string) (*Session, error) {
	if model == "" {
		model = ModelGPT4oRealtimePreview
	}

	url := fmt.Sprintf("%s?model=%s", c.wsURL, model)
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.apiKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	conn, resp, err := c.dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, &Error{
				Code:       "connection_failed",
				Message:    err.Error(),
				HTTPStatus: resp.StatusCode,
			}
		}
		return nil, fmt.Errorf("openairt: connect: %w", err)
	}

	return newSession(conn), nil
}
