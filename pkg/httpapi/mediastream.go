package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/solutionstwo/voicebridge/pkg/openairt"
	"github.com/solutionstwo/voicebridge/pkg/relay"
	"github.com/solutionstwo/voicebridge/pkg/twilio"
)

// handleIncomingCall answers Twilio's call webhook with TwiML that
// connects the call audio to /media-stream.
func (s *Server) handleIncomingCall(w http.ResponseWriter, r *http.Request) {
	cfg := s.opts.Config.Twilio
	doc, err := twilio.StreamTwiML(s.publicHost(r), twilio.TwiMLConfig{
		WelcomeMessage: cfg.WelcomeMessage,
		ReadyMessage:   cfg.ReadyMessage,
		PauseSeconds:   1,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprint(w, doc)
}

// handleMediaStream upgrades the Twilio connection, opens a model
// session and relays the call until either leg drops. Each call is
// independent; a failure here never affects other calls.
func (s *Server) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("media stream upgrade failed", "error", err)
		return
	}
	stream := twilio.NewStreamConn(conn)

	ctx := r.Context()
	session, err := s.opts.Realtime.Connect(ctx, s.opts.Config.OpenAI.Model)
	if err != nil {
		slog.Error("realtime connect failed", "error", err)
		stream.Close()
		return
	}

	if err := session.Bootstrap(s.sessionOptions()); err != nil {
		slog.Error("realtime bootstrap failed", "error", err)
		session.Close()
		stream.Close()
		return
	}

	call := relay.NewCallSession()
	if err := s.opts.Relay.Run(ctx, call, stream, session); err != nil {
		slog.Error("call ended with error", "stream_sid", call.StreamSID(), "error", err)
		return
	}
	slog.Info("call ended", "stream_sid", call.StreamSID())
}

// sessionOptions renders the configured assistant as Realtime session
// options: μ-law audio both ways, server VAD and the registered tools.
func (s *Server) sessionOptions() openairt.SessionOptions {
	cfg := s.opts.Config.OpenAI
	opts := openairt.SessionOptions{
		Config: openairt.SessionConfig{
			Modalities:        []string{openairt.ModalityText, openairt.ModalityAudio},
			Instructions:      cfg.Instructions,
			Voice:             cfg.Voice,
			InputAudioFormat:  openairt.AudioFormatG711ULaw,
			OutputAudioFormat: openairt.AudioFormatG711ULaw,
			TurnDetection:     &openairt.TurnDetection{Type: "server_vad"},
			Temperature:       cfg.Temperature,
		},
		Greeting: cfg.Greeting,
	}
	if s.opts.Registry != nil {
		opts.Config.Tools = s.opts.Registry.SessionTools()
		opts.Config.ToolChoice = "auto"
	}
	return opts
}
