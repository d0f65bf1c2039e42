package openairt

import "fmt"

// Error is a failure reported by the Realtime API, either during the
// WebSocket handshake or via an "error" server event.
type Error struct {
	Type    string `json:"type,omitzero"`
	Code    string `json:"code,omitzero"`
	Message string `json:"message,omitzero"`
	Param   string `json:"param,omitzero"`
	EventID string `json:"event_id,omitzero"`

	// HTTPStatus is set for handshake failures only.
	HTTPStatus int `json:"-"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("openairt: %s: %s", e.Code, e.Message)
	}
	if e.Type != "" {
		return fmt.Sprintf("openairt: %s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("openairt: %s", e.Message)
}
