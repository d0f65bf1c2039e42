package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/solutionstwo/voicebridge/pkg/calendar"
	"github.com/solutionstwo/voicebridge/pkg/config"
	"github.com/solutionstwo/voicebridge/pkg/knowledge"
	"github.com/solutionstwo/voicebridge/pkg/openairt"
	"github.com/solutionstwo/voicebridge/pkg/relay"
	"github.com/solutionstwo/voicebridge/pkg/tools"
	"github.com/solutionstwo/voicebridge/pkg/twilio"
)

type fakeKnowledge struct {
	added []string
}

func (f *fakeKnowledge) AddDocument(_ context.Context, category string, doc knowledge.Document) (string, error) {
	if category != knowledge.CategoryServices && category != knowledge.CategoryProducts {
		return "", knowledge.ErrUnknownCategory
	}
	f.added = append(f.added, doc.Name)
	return fmt.Sprintf("doc-%d", len(f.added)), nil
}

func (f *fakeKnowledge) RetrieveSimilar(context.Context, string, string, int) (string, error) {
	return "", nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.OpenAI.APIKey = "sk-test"
	cfg.Server.PublicHost = "voice.example.com"
	return cfg
}

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	if opts.Config == nil {
		opts.Config = testConfig()
	}
	if opts.Relay == nil {
		opts.Relay = relay.New()
	}
	srv := httptest.NewServer(NewServer(opts).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", strings.NewReader(string(data)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestIndex(t *testing.T) {
	srv := newTestServer(t, Options{})
	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if !strings.Contains(body["message"], "running") {
		t.Errorf("body = %v", body)
	}
}

func TestIncomingCallTwiML(t *testing.T) {
	srv := newTestServer(t, Options{})
	resp, err := http.Post(srv.URL+"/incoming-call", "application/x-www-form-urlencoded", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	var doc strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		doc.Write(buf[:n])
		if err != nil {
			break
		}
	}
	if !strings.Contains(doc.String(), `wss://voice.example.com/media-stream`) {
		t.Errorf("twiml = %s", doc.String())
	}
}

func TestDocumentsAdd(t *testing.T) {
	kb := &fakeKnowledge{}
	srv := newTestServer(t, Options{Knowledge: kb})

	resp, body := postJSON(t, srv.URL+"/documents/add", map[string]any{
		"category": "services",
		"documents": []map[string]string{
			{"name": "Haircut", "description": "Classic cut", "price": "$40"},
			{"name": "Massage", "description": "Deep tissue", "price": "$90"},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %v", resp.StatusCode, body)
	}
	if ids, _ := body["ids"].([]any); len(ids) != 2 {
		t.Errorf("ids = %v", body["ids"])
	}
	if len(kb.added) != 2 || kb.added[0] != "Haircut" {
		t.Errorf("added = %v", kb.added)
	}

	resp, _ = postJSON(t, srv.URL+"/documents/add", map[string]any{
		"category":  "recipes",
		"documents": []map[string]string{{"name": "X"}},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown category status = %d", resp.StatusCode)
	}
}

func TestCalendarEndpoints(t *testing.T) {
	cal := calendar.NewMemory()
	srv := newTestServer(t, Options{Calendar: cal})

	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	ev, err := cal.Schedule(context.Background(), calendar.Appointment{
		AccountID: "main", Title: "Haircut", Start: start, End: start.Add(time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, body := postJSON(t, srv.URL+"/calendar/availability", map[string]any{
		"account_id": "main", "start": start, "end": start.Add(time.Hour),
	})
	if resp.StatusCode != http.StatusOK || body["available"] != false {
		t.Errorf("availability = %d %v", resp.StatusCode, body)
	}

	resp, body = postJSON(t, srv.URL+"/calendar/slots", map[string]any{
		"account_id": "main", "start": start, "end": start.Add(2 * time.Hour),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("slots status = %d", resp.StatusCode)
	}
	if slots, _ := body["slots"].([]any); len(slots) != 2 {
		t.Errorf("slots = %v", body["slots"])
	}

	resp, body = postJSON(t, srv.URL+"/calendar/appointments/reschedule", map[string]any{
		"event_id": ev.ID, "start": start.Add(3 * time.Hour), "end": start.Add(4 * time.Hour),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reschedule = %d %v", resp.StatusCode, body)
	}

	resp, _ = postJSON(t, srv.URL+"/calendar/appointments/cancel", map[string]any{"event_id": ev.ID})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("cancel status = %d", resp.StatusCode)
	}
	resp, _ = postJSON(t, srv.URL+"/calendar/appointments/cancel", map[string]any{"event_id": ev.ID})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second cancel status = %d", resp.StatusCode)
	}

	resp, _ = postJSON(t, srv.URL+"/calendar/availability", map[string]any{"account_id": "main"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid window status = %d", resp.StatusCode)
	}
}

func TestOutgoingCall(t *testing.T) {
	twilioFake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if got := r.PostForm.Get("Url"); got != "https://voice.example.com/incoming-call" {
			t.Errorf("Url = %q", got)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"CA42"}`))
	}))
	defer twilioFake.Close()

	cfg := testConfig()
	cfg.Twilio.PhoneNumber = "+15550009999"
	srv := newTestServer(t, Options{
		Config: cfg,
		Twilio: twilio.NewRestClient("AC1", "tok", twilio.WithAPIBase(twilioFake.URL)),
	})

	resp, body := postJSON(t, srv.URL+"/outgoing-call", map[string]string{"to": "+15550001111"})
	if resp.StatusCode != http.StatusOK || body["sid"] != "CA42" {
		t.Errorf("outgoing call = %d %v", resp.StatusCode, body)
	}

	resp, _ = postJSON(t, srv.URL+"/outgoing-call", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing to status = %d", resp.StatusCode)
	}
}

// fakeRealtime upgrades Realtime connections, answers the bootstrap with
// one audio delta and echoes nothing else.
func fakeRealtime(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("rt upgrade: %v", err)
			return
		}
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			// The final bootstrap event triggers the assistant's reply.
			if msg["type"] == openairt.EventTypeResponseCreate {
				conn.WriteJSON(map[string]any{
					"type":    openairt.EventTypeResponseAudioDelta,
					"item_id": "item_1",
					"delta":   "QVNTVA==",
				})
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMediaStreamRelaysAudio(t *testing.T) {
	rt := fakeRealtime(t)
	rtURL := "ws" + strings.TrimPrefix(rt.URL, "http")

	reg := tools.NewRegistry()
	srv := newTestServer(t, Options{
		Realtime: openairt.NewClient("sk-test", openairt.WithWebSocketURL(rtURL)),
		Registry: reg,
	})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/media-stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.WriteJSON(map[string]any{
		"event": "start",
		"start": map[string]any{"streamSid": "SD1"},
	})
	conn.WriteJSON(map[string]any{
		"event": "media",
		"media": map[string]any{"timestamp": "120", "payload": "Q0FMTEVS"},
	})

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var sawMedia, sawMark bool
	for !(sawMedia && sawMark) {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("reading outbound events (media=%v mark=%v): %v", sawMedia, sawMark, err)
		}
		switch msg["event"] {
		case "media":
			sawMedia = true
			if msg["streamSid"] != "SD1" {
				t.Errorf("media streamSid = %v", msg["streamSid"])
			}
			media, _ := msg["media"].(map[string]any)
			if media["payload"] != "QVNTVA==" {
				t.Errorf("payload = %v", media["payload"])
			}
		case "mark":
			sawMark = true
		}
	}
}
