// Package relay ties one telephony media stream to one model session.
//
// Run drives two pumps: the inbound pump forwards caller audio to the
// model, the outbound pump plays model audio back to the caller and
// implements barge-in truncation and tool dispatch. The pumps share a
// CallSession and stop together as soon as either leg drops.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/solutionstwo/voicebridge/pkg/openairt"
	"github.com/solutionstwo/voicebridge/pkg/tools"
	"github.com/solutionstwo/voicebridge/pkg/twilio"
)

// TelephonyStream is the telephony leg, implemented by
// *twilio.StreamConn.
type TelephonyStream interface {
	Events() iter.Seq2[*twilio.StreamEvent, error]
	SendMedia(streamSID, payloadB64 string) error
	SendMark(streamSID, name string) error
	SendClear(streamSID string) error
	Close() error
}

// ModelSession is the model leg, implemented by *openairt.Session.
type ModelSession interface {
	Events() iter.Seq2[*openairt.ServerEvent, error]
	AppendAudioBase64(audioBase64 string) error
	TruncateItem(itemID string, contentIndex, audioEndMs int) error
	AddFunctionCallOutput(callID, output string) error
	CreateResponse() error
	Close() error
}

// Relay runs calls. One Relay serves any number of concurrent calls;
// per-call state lives in the CallSession passed to Run.
type Relay struct {
	registry *tools.Registry
	recorder *RecorderFactory
}

// Option configures a Relay.
type Option func(*Relay)

// WithTools enables function-call dispatch through the registry.
func WithTools(registry *tools.Registry) Option {
	return func(r *Relay) {
		r.registry = registry
	}
}

// WithRecording tees call audio into the given file store.
func WithRecording(factory *RecorderFactory) Option {
	return func(r *Relay) {
		r.recorder = factory
	}
}

// New creates a Relay.
func New(opts ...Option) *Relay {
	r := &Relay{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays one call until either leg closes. The leg that survives is
// closed before Run returns. Normal call teardown (stop event, WebSocket
// close) returns nil.
func (r *Relay) Run(ctx context.Context, call *CallSession, telephony TelephonyStream, model ModelSession) error {
	var rec *recorder
	if r.recorder != nil {
		rec = r.recorder.newRecorder()
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- r.inboundPump(ctx, call, telephony, model, rec)
		model.Close()
	}()
	go func() {
		defer wg.Done()
		errs <- r.outboundPump(ctx, call, telephony, model, rec)
		telephony.Close()
	}()
	wg.Wait()
	close(errs)

	if rec != nil {
		rec.finalize(ctx, call.StreamSID())
	}

	var first error
	for err := range errs {
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

// inboundPump forwards caller audio and stream lifecycle events to the
// model leg.
func (r *Relay) inboundPump(ctx context.Context, call *CallSession, telephony TelephonyStream, model ModelSession, rec *recorder) error {
	for ev, err := range telephony.Events() {
		if err != nil {
			// Normal hangup closes the WebSocket; only unexpected
			// failures are reported.
			if isClosedConn(err) {
				return nil
			}
			return fmt.Errorf("relay: telephony leg: %w", err)
		}

		switch ev.Kind {
		case twilio.KindStart:
			call.BeginStream(ev.StreamSID)
			slog.Info("stream started", "stream_sid", ev.StreamSID)
		case twilio.KindMedia:
			call.ObserveMedia(ev.Timestamp)
			if rec != nil {
				rec.appendInbound(ev.Payload)
			}
			if err := model.AppendAudioBase64(ev.Payload); err != nil {
				// Model leg gone; frames are dropped, never buffered.
				slog.Debug("dropping caller audio", "error", err)
				return nil
			}
		case twilio.KindMark:
			call.MarkAcked()
		case twilio.KindStop:
			slog.Info("stream stopped", "stream_sid", call.StreamSID())
			return nil
		default:
			slog.Debug("ignoring stream event", "type", ev.RawType)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// outboundPump plays model audio to the caller, truncates on barge-in
// and dispatches function calls.
func (r *Relay) outboundPump(ctx context.Context, call *CallSession, telephony TelephonyStream, model ModelSession, rec *recorder) error {
	for ev, err := range model.Events() {
		if err != nil {
			if isClosedConn(err) {
				return nil
			}
			return fmt.Errorf("relay: model leg: %w", err)
		}

		switch ev.Type {
		case openairt.EventTypeResponseAudioDelta:
			if err := r.playDelta(call, telephony, ev, rec); err != nil {
				slog.Debug("dropping assistant audio", "error", err)
				return nil
			}

		case openairt.EventTypeInputAudioBufferSpeechStarted:
			r.interrupt(call, telephony, model)

		case openairt.EventTypeResponseDone:
			if fc, ok := ev.FunctionCall(); ok {
				// Dispatch blocks this pump only; caller audio keeps
				// flowing through the inbound pump.
				r.dispatch(ctx, fc, model)
			}

		case openairt.EventTypeError:
			slog.Warn("model error event", "error", ev.Err)

		default:
			slog.Debug("model event", "type", ev.Type)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// playDelta forwards one audio delta and tags it with a playback marker.
func (r *Relay) playDelta(call *CallSession, telephony TelephonyStream, ev *openairt.ServerEvent, rec *recorder) error {
	sid := call.StreamSID()
	if err := telephony.SendMedia(sid, ev.Delta); err != nil {
		return err
	}
	if rec != nil {
		rec.appendOutbound(ev.Delta)
	}
	call.BeginResponse(ev.ItemID)

	name := "mark_" + uuid.New().String()[:8]
	if err := telephony.SendMark(sid, name); err != nil {
		return err
	}
	call.MarkDelivered(name)
	return nil
}

// interrupt runs the barge-in protocol: truncate the assistant item at
// the audio the caller heard and flush Twilio's playback buffer.
func (r *Relay) interrupt(call *CallSession, telephony TelephonyStream, model ModelSession) {
	cut, ok := call.Interrupt()
	if !ok {
		return
	}

	if cut.ItemID != "" {
		if err := model.TruncateItem(cut.ItemID, 0, cut.ElapsedMs); err != nil {
			slog.Warn("truncate failed", "item_id", cut.ItemID, "error", err)
		}
	}
	if err := telephony.SendClear(cut.StreamSID); err != nil {
		slog.Warn("clear failed", "stream_sid", cut.StreamSID, "error", err)
	}
	slog.Debug("interrupted assistant", "item_id", cut.ItemID, "elapsed_ms", cut.ElapsedMs)
}

// dispatch runs one tool call and reports the result to the model. Tool
// failures become error strings in the function output so the model can
// recover verbally; they never end the call.
func (r *Relay) dispatch(ctx context.Context, fc *openairt.FunctionCall, model ModelSession) {
	var output string
	if r.registry == nil {
		output = fmt.Sprintf("Error: tool %q is not available.", fc.Name)
	} else {
		result, err := r.registry.Dispatch(ctx, fc.Name, fc.Arguments)
		if err != nil {
			slog.Warn("tool dispatch failed", "tool", fc.Name, "error", err)
			output = fmt.Sprintf("Error: %v", err)
		} else {
			output = result
		}
	}

	if err := model.AddFunctionCallOutput(fc.CallID, output); err != nil {
		slog.Warn("function output failed", "tool", fc.Name, "error", err)
		return
	}
	if err := model.CreateResponse(); err != nil {
		slog.Warn("response create failed", "tool", fc.Name, "error", err)
	}
}

// isClosedConn reports whether the error is ordinary connection
// teardown rather than a protocol failure.
func isClosedConn(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return true
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return true
		}
	}
	return false
}
