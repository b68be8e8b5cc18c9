package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/msto63/overlay/pkg/core/errors"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"  ", ""},
		{"localhost:3000/api/", "http://localhost:3000/api"},
		{"https://docs.example.com//", "https://docs.example.com"},
		{"HTTP://x", "HTTP://x"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeURL(tt.in); got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSend_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		text string
		code errors.Code
	}{
		{"no url", Config{APIKey: "k"}, "hi", errors.CodeNotConfigured},
		{"no key", Config{URL: "http://x"}, "hi", errors.CodeNotConfigured},
		{"no text", Config{URL: "http://x", APIKey: "k"}, "  ", errors.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewClient(tt.cfg).Send(context.Background(), tt.text)
			if errors.CodeOf(err) != tt.code {
				t.Errorf("Send() error = %v, want code %v", err, tt.code)
			}
		})
	}
}

func TestSend_PostsJSON(t *testing.T) {
	var got request
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		key = r.Header.Get("x-api-key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL + "/", APIKey: "secret"})
	if err := c.Send(context.Background(), "Q: why Go?\nA: because"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if key != "secret" {
		t.Errorf("x-api-key = %q", key)
	}
	if got.SessionID != DefaultSessionID || got.Text == "" {
		t.Errorf("body = %+v", got)
	}
}

func TestSend_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewClient(Config{URL: srv.URL, APIKey: "k", SessionID: "s1"}).Send(context.Background(), "text")
	if errors.CodeOf(err) != errors.CodeExternalService {
		t.Errorf("Send() error = %v", err)
	}
}
