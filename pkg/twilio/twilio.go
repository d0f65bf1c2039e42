// Package twilio implements the telephony leg of the relay: the Media
// Streams wire protocol spoken over the /media-stream WebSocket, the
// TwiML handshake returned to incoming calls, and a small REST client
// for placing outbound calls.
package twilio

// Media Streams audio is G.711 μ-law at 8kHz, base64-encoded on the wire.
const (
	AudioEncoding = "audio/x-mulaw"
	SampleRate    = 8000
)
