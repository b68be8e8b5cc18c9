package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/msto63/overlay/pkg/core/errors"
)

type fakeBackend struct {
	t        *testing.T
	gotAudio chan int
	query    chan string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Token test-key" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	b.query <- r.URL.RawQuery

	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.t.Errorf("upgrade: %v", err)
		return
	}
	defer conn.Close()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if kind == websocket.BinaryMessage {
			b.gotAudio <- len(data)
			conn.WriteMessage(websocket.TextMessage, []byte(
				`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"tell me"}]}}`))
			conn.WriteMessage(websocket.TextMessage, []byte(
				`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"  "}]}}`))
			conn.WriteMessage(websocket.TextMessage, []byte(
				`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"tell me about yourself","languages":["es"]}]}}`))
			continue
		}
		if strings.Contains(string(data), "CloseStream") {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func newTestRecognizer(t *testing.T, key string) (*StreamingRecognizer, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{t: t, gotAudio: make(chan int, 4), query: make(chan string, 4)}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	r := NewStreamingRecognizer(StreamingConfig{
		URL:       "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/listen",
		APIKey:    key,
		Model:     "nova-2",
		Languages: []string{"en-US", "es-ES"},
		Interim:   true,
	})
	return r, backend
}

func TestStreamingRecognizer_Session(t *testing.T) {
	r, backend := newTestRecognizer(t, "test-key")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := r.Start(ctx, "en-US")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	query := <-backend.query
	for _, want := range []string{"encoding=linear16", "sample_rate=16000", "language=multi", "interim_results=true", "model=nova-2"} {
		if !strings.Contains(query, want) {
			t.Errorf("query %q missing %q", query, want)
		}
	}

	if err := sess.Write(make([]byte, 3200)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n := <-backend.gotAudio; n != 3200 {
		t.Errorf("backend received %d bytes", n)
	}

	partial := <-sess.Events()
	if partial.Kind != Partial || partial.Text != "tell me" || partial.Language != "en-US" {
		t.Errorf("partial = %+v", partial)
	}
	final := <-sess.Events()
	if final.Kind != Final || final.Text != "tell me about yourself" || final.Language != "es" {
		t.Errorf("final = %+v (blank results must be skipped)", final)
	}

	if err := sess.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, ok := <-sess.Events(); ok {
		t.Error("events should be closed after Close")
	}
	if err := sess.Write([]byte{0, 0}); err == nil {
		t.Error("Write() after Close should fail")
	}
}

func TestStreamingRecognizer_AutoDetect(t *testing.T) {
	tests := []struct {
		name      string
		languages []string
		preferred string
		want      string
	}{
		{"two candidates with preferred", []string{"en-US", "es-ES"}, "en-US", "language=multi"},
		{"two candidates without preferred", []string{"en-US", "es-ES"}, "", "language=multi"},
		{"single candidate", []string{"es-ES"}, "es-ES", "language=es-ES"},
		{"single candidate without preferred", []string{"es-ES"}, "", "language=es-ES"},
		{"no candidates", nil, "de-DE", "language=de-DE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, backend := newTestRecognizer(t, "test-key")
			r.cfg.Languages = tt.languages

			sess, err := r.Start(context.Background(), tt.preferred)
			if err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			defer sess.Close()

			if q := <-backend.query; !strings.Contains(q, tt.want) {
				t.Errorf("query %q missing %q", q, tt.want)
			}
		})
	}
}

func TestStreamingRecognizer_Errors(t *testing.T) {
	r, _ := newTestRecognizer(t, "")
	_, err := r.Start(context.Background(), "en-US")
	if errors.CodeOf(err) != errors.CodeNotConfigured {
		t.Errorf("missing key code = %v", errors.CodeOf(err))
	}

	r, _ = newTestRecognizer(t, "wrong")
	_, err = r.Start(context.Background(), "en-US")
	if errors.CodeOf(err) != errors.CodeUnauthorized {
		t.Errorf("rejected key code = %v (%v)", errors.CodeOf(err), err)
	}
}
