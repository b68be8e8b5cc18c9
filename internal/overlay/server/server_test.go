package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/msto63/overlay/internal/overlay/pipeline"
	"github.com/msto63/overlay/internal/overlay/qna"
	"github.com/msto63/overlay/pkg/core/errors"
	"github.com/msto63/overlay/pkg/core/health"
)

type fakeController struct {
	mu         sync.Mutex
	snapshot   pipeline.Snapshot
	captureErr error
	found      bool
	cleared    int
	language   string
	events     chan pipeline.Event
}

func newFakeController() *fakeController {
	return &fakeController{
		snapshot: pipeline.Snapshot{
			State:      pipeline.StateListening,
			Language:   "en-US",
			Transcript: "Why Go?",
			Items:      []qna.QnA{{ID: "1", Question: "Why Go?", Status: qna.StatusAnswered}},
		},
		found:  true,
		events: make(chan pipeline.Event, 4),
	}
}

func (c *fakeController) Snapshot() pipeline.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

func (c *fakeController) Start(context.Context) error { return nil }
func (c *fakeController) Stop() error                 { return nil }

func (c *fakeController) Capture(context.Context) (qna.QnA, bool, error) {
	if c.captureErr != nil {
		return qna.QnA{}, false, c.captureErr
	}
	if !c.found {
		return qna.QnA{}, false, nil
	}
	return qna.QnA{ID: "2", Question: "Why Go?", Source: qna.SourceCapture}, true, nil
}

func (c *fakeController) ClearTranscript() {
	c.mu.Lock()
	c.cleared++
	c.mu.Unlock()
}

func (c *fakeController) SetLanguage(_ context.Context, language string) error {
	if strings.TrimSpace(language) == "" {
		return errors.New("language cannot be empty").WithCode(errors.CodeInvalidInput)
	}
	c.mu.Lock()
	c.language = language
	c.mu.Unlock()
	return nil
}

func (c *fakeController) Subscribe() (<-chan pipeline.Event, func()) {
	return c.events, func() {}
}

func newTestServer(t *testing.T, ctrl Controller) *httptest.Server {
	t.Helper()
	reg := health.NewRegistry("overlay", "test")
	reg.Register(health.ConfiguredCheck("stt", "key", "missing"))
	srv := httptest.NewServer(New(DefaultConfig(), ctrl, reg).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestServer_State(t *testing.T) {
	srv := newTestServer(t, newFakeController())

	resp, err := http.Get(srv.URL + "/api/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var got map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got["state"] != "listening" || got["transcript"] != "Why Go?" {
		t.Errorf("state body = %v", got)
	}
}

func TestServer_QnA(t *testing.T) {
	srv := newTestServer(t, newFakeController())

	resp, err := http.Get(srv.URL + "/api/qna")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var items []qna.QnA
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Question != "Why Go?" {
		t.Errorf("items = %+v", items)
	}
}

func TestServer_Capture(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*fakeController)
		wantStatus int
		wantFound  bool
	}{
		{"found", func(*fakeController) {}, http.StatusOK, true},
		{"no question", func(c *fakeController) { c.found = false }, http.StatusOK, false},
		{"not ready", func(c *fakeController) {
			c.captureErr = errors.New("setup missing").WithCode(errors.CodeNotConfigured)
		}, http.StatusConflict, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newFakeController()
			tt.mutate(ctrl)
			srv := newTestServer(t, ctrl)

			resp, err := http.Post(srv.URL+"/api/capture", "application/json", nil)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if resp.StatusCode != http.StatusOK {
				var e ErrorResponse
				_ = json.NewDecoder(resp.Body).Decode(&e)
				if e.Code != string(errors.CodeNotConfigured) {
					t.Errorf("error body = %+v", e)
				}
				return
			}
			var body CaptureResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Found != tt.wantFound || (body.Found && body.Item == nil) {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestServer_ClearAndLanguage(t *testing.T) {
	ctrl := newFakeController()
	srv := newTestServer(t, ctrl)

	resp, err := http.Post(srv.URL+"/api/clear", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || ctrl.cleared != 1 {
		t.Errorf("clear status = %d, cleared = %d", resp.StatusCode, ctrl.cleared)
	}

	resp, err = http.Post(srv.URL+"/api/language", "application/json", strings.NewReader(`{"language":"es-ES"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || ctrl.language != "es-ES" {
		t.Errorf("language status = %d, language = %q", resp.StatusCode, ctrl.language)
	}

	resp, err = http.Post(srv.URL+"/api/language", "application/json", strings.NewReader(`{"language":""}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank language status = %d", resp.StatusCode)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, newFakeController())
	resp, err := http.Get(srv.URL + "/api/capture")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, newFakeController())
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var report health.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || report.Status != health.StatusHealthy || len(report.Checks) != 1 {
		t.Errorf("health = %d %+v", resp.StatusCode, report)
	}
}

func TestServer_Feed(t *testing.T) {
	ctrl := newFakeController()
	srv := newTestServer(t, ctrl)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var first struct {
		Type    string            `json:"type"`
		Payload pipeline.Snapshot `json:"payload"`
	}
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatal(err)
	}
	if first.Type != "snapshot" || first.Payload.Transcript != "Why Go?" {
		t.Errorf("first frame = %+v", first)
	}

	ctrl.events <- pipeline.Event{Kind: pipeline.EventPartial, Partial: "so"}

	var next struct {
		Type    string         `json:"type"`
		Payload pipeline.Event `json:"payload"`
	}
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatal(err)
	}
	if next.Type != "event" || next.Payload.Kind != pipeline.EventPartial || next.Payload.Partial != "so" {
		t.Errorf("event frame = %+v", next)
	}
}

func TestIsLocalOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"http://127.0.0.1:8765", true},
		{"http://[::1]:3000", true},
		{"https://localhost", true},
		{"http://evil.example", false},
		{"http://localhost.evil.example", false},
		{"null", false},
		{"file://", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			if got := isLocalOrigin(tt.origin); got != tt.want {
				t.Errorf("isLocalOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestServer_FeedRejectsForeignOrigin(t *testing.T) {
	srv := newTestServer(t, newFakeController())
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		conn.Close()
		t.Fatal("Dial() with foreign origin should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("handshake response = %+v", resp)
	}

	header.Set("Origin", "http://localhost:5173")
	conn, _, err = websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial() with loopback origin error = %v", err)
	}
	conn.Close()
}

func TestServer_ActionsRequireJSON(t *testing.T) {
	ctrl := newFakeController()
	srv := newTestServer(t, ctrl)

	tests := []struct {
		name        string
		origin      string
		contentType string
		want        int
	}{
		{"form post", "", "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"text post", "", "text/plain", http.StatusUnsupportedMediaType},
		{"no content type", "", "", http.StatusUnsupportedMediaType},
		{"foreign origin", "http://evil.example", "application/json", http.StatusForbidden},
		{"json from loopback page", "http://127.0.0.1:8765", "application/json; charset=utf-8", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/clear", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if ctrl.cleared != 1 {
		t.Errorf("cleared = %d, only the JSON request may clear", ctrl.cleared)
	}
}
