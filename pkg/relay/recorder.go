package relay

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"path"
	"sync"

	"github.com/solutionstwo/voicebridge/pkg/storage"
)

// RecorderFactory creates per-call recorders over a file store. Raw
// μ-law bytes land under <prefix>/<sid>.in.ulaw and .out.ulaw.
type RecorderFactory struct {
	store  storage.FileStore
	prefix string
}

// NewRecorderFactory builds a factory. An empty prefix defaults to
// "calls".
func NewRecorderFactory(store storage.FileStore, prefix string) *RecorderFactory {
	if prefix == "" {
		prefix = "calls"
	}
	return &RecorderFactory{store: store, prefix: prefix}
}

func (f *RecorderFactory) newRecorder() *recorder {
	return &recorder{factory: f}
}

// recorder buffers both directions of one call in memory until the call
// ends. Calls are bounded by Twilio to a few hours of 8kHz μ-law, a few
// MB per leg.
type recorder struct {
	factory *RecorderFactory

	mu       sync.Mutex
	inbound  bytes.Buffer
	outbound bytes.Buffer
}

func (r *recorder) appendInbound(payloadB64 string) {
	r.append(&r.inbound, payloadB64)
}

func (r *recorder) appendOutbound(payloadB64 string) {
	r.append(&r.outbound, payloadB64)
}

func (r *recorder) append(buf *bytes.Buffer, payloadB64 string) {
	data, err := base64.StdEncoding.DecodeString(payloadB64)
	if err != nil {
		slog.Debug("skipping unrecordable frame", "error", err)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	buf.Write(data)
}

// finalize writes both legs to the store. Failures are logged; a lost
// recording never fails the call.
func (r *recorder) finalize(ctx context.Context, streamSID string) {
	if streamSID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.write(ctx, fmt.Sprintf("%s.in.ulaw", streamSID), r.inbound.Bytes())
	r.write(ctx, fmt.Sprintf("%s.out.ulaw", streamSID), r.outbound.Bytes())
}

func (r *recorder) write(ctx context.Context, name string, data []byte) {
	if len(data) == 0 {
		return
	}
	full := path.Join(r.factory.prefix, name)
	w, err := r.factory.store.Write(ctx, full)
	if err != nil {
		slog.Warn("recording open failed", "path", full, "error", err)
		return
	}
	if _, err := w.Write(data); err != nil {
		slog.Warn("recording write failed", "path", full, "error", err)
		w.Close()
		return
	}
	if err := w.Close(); err != nil {
		slog.Warn("recording close failed", "path", full, "error", err)
		return
	}
	slog.Info("call recorded", "path", full, "bytes", len(data))
}
