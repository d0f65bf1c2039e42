package twilio

import (
	"encoding/xml"
	"fmt"
)

// TwiMLConfig holds the spoken prompts for the incoming-call handshake.
type TwiMLConfig struct {
	// WelcomeMessage is spoken before the media stream is connected.
	WelcomeMessage string

	// ReadyMessage is spoken after the pause; empty skips the verb.
	ReadyMessage string

	// PauseSeconds is the pause between the two prompts. Zero means no
	// pause verb.
	PauseSeconds int
}

type sayVerb struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type pauseVerb struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

type streamNoun struct {
	XMLName xml.Name `xml:"Stream"`
	URL     string   `xml:"url,attr"`
}

type connectVerb struct {
	XMLName xml.Name `xml:"Connect"`
	Stream  streamNoun
}

type voiceResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// StreamTwiML builds the TwiML document returned from /incoming-call:
// spoken greeting, pause, then a Connect/Stream verb pointing the call's
// media at wss://<host>/media-stream.
func StreamTwiML(host string, cfg TwiMLConfig) (string, error) {
	resp := voiceResponse{}
	if cfg.WelcomeMessage != "" {
		resp.Verbs = append(resp.Verbs, sayVerb{Text: cfg.WelcomeMessage})
	}
	if cfg.PauseSeconds > 0 {
		resp.Verbs = append(resp.Verbs, pauseVerb{Length: cfg.PauseSeconds})
	}
	if cfg.ReadyMessage != "" {
		resp.Verbs = append(resp.Verbs, sayVerb{Text: cfg.ReadyMessage})
	}
	resp.Verbs = append(resp.Verbs, connectVerb{
		Stream: streamNoun{URL: fmt.Sprintf("wss://%s/media-stream", host)},
	})

	out, err := xml.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("twilio: marshal twiml: %w", err)
	}
	return xml.Header + string(out), nil
}
