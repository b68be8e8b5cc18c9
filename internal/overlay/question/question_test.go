package question

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/msto63/overlay/pkg/core/cache"
)

func TestIsCandidate(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", false},
		{"ok so", false},
		{"a b c", false},             // three words but short
		{"supercalifragilistic", false}, // long but one word
		{"what is go?", true},
		{"  tell me more  ", true},
	}
	for _, tt := range tests {
		if got := IsCandidate(tt.text); got != tt.want {
			t.Errorf("IsCandidate(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestLastQuestion(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"trailing question", "Thanks for coming. How do you handle conflict?", "How do you handle conflict?"},
		{"last of several", "What is Go? Nice. Why Kubernetes? Okay then.", "Why Kubernetes?"},
		{"spanish opening mark", "Bueno. ¿Qué experiencia tienes con Go", "¿Qué experiencia tienes con Go?"},
		{"spanish full", "¿Cómo estás? Bien.", "¿Cómo estás?"},
		{"no question", "I worked at a bank. It was fine!", ""},
		{"bare marks", "So ¿ ? right.", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LastQuestion(tt.text); got != tt.want {
				t.Errorf("LastQuestion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHeuristic_Extract(t *testing.T) {
	ex, err := Heuristic{}.Extract(context.Background(), "So tell me, what is your biggest weakness?", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !ex.IsQuestion || ex.Source != SourceHeuristic || ex.Question != "So tell me, what is your biggest weakness?" {
		t.Errorf("Extract() = %+v", ex)
	}

	ex, _ = Heuristic{}.Extract(context.Background(), "hi", nil)
	if ex.IsQuestion || ex.Source != SourceFilter {
		t.Errorf("short text = %+v", ex)
	}
}

// seenRequest holds what the fake server received
type seenRequest struct {
	Prompt      string
	Temperature *float64
}

func newFakeOpenAI(t *testing.T, status int, content string, seen *seenRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		var req struct {
			Model          string   `json:"model"`
			Temperature    *float64 `json:"temperature"`
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "gpt-4o-mini" || req.ResponseFormat.Type != "json_object" {
			t.Errorf("request = %+v", req)
		}
		if seen != nil && len(req.Messages) == 2 {
			seen.Prompt = req.Messages[1].Content
			seen.Temperature = req.Temperature
		}

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   "gpt-4o-mini",
			"choices": []map[string]interface{}{{"index": 0, "message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIExtractor(t *testing.T) {
	var seen seenRequest
	srv := newFakeOpenAI(t, http.StatusOK, `{"isQuestion":true,"question":"¿Qué es un goroutine?"}`, &seen)

	ex, err := NewOpenAIExtractor(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewOpenAIExtractor() error = %v", err)
	}

	got, err := ex.Extract(context.Background(), "eh bueno ¿qué es un goroutine", []string{"golang"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !got.IsQuestion || got.Question != "¿Qué es un goroutine?" || got.Source != SourceRemote {
		t.Errorf("Extract() = %+v", got)
	}
	if !strings.Contains(seen.Prompt, "Contextual Keywords:\n- golang") {
		t.Errorf("prompt missing keywords: %q", seen.Prompt)
	}
}

func TestOpenAIExtractor_Temperature(t *testing.T) {
	tests := []struct {
		name        string
		temperature float32
		want        float64
	}{
		{"configured value", 0.2, 0.2},
		{"explicit zero", 0, 0},
		{"high", 0.9, 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen seenRequest
			srv := newFakeOpenAI(t, http.StatusOK, `{"isQuestion":true,"question":"Why Go?"}`, &seen)
			ex, err := NewOpenAIExtractor(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Temperature: tt.temperature})
			if err != nil {
				t.Fatal(err)
			}
			if _, err := ex.Extract(context.Background(), "So tell me, why Go?", nil); err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if seen.Temperature == nil {
				t.Fatal("request carried no temperature")
			}
			if math.Abs(*seen.Temperature-tt.want) > 1e-6 {
				t.Errorf("temperature = %v, want %v", *seen.Temperature, tt.want)
			}
		})
	}
}

func TestOpenAIExtractor_MissingKey(t *testing.T) {
	if _, err := NewOpenAIExtractor(OpenAIConfig{}); err == nil {
		t.Error("expected error without API key")
	}
}

type failingExtractor struct{}

func (failingExtractor) Extract(context.Context, string, []string) (Extraction, error) {
	return Extraction{}, errors.New("remote down")
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	chain := NewChain(failingExtractor{})
	if chain.Mode() != SourceRemote {
		t.Errorf("Mode() = %v", chain.Mode())
	}
	got, err := chain.Extract(ctx, "Okay. Why do you want this job?", nil)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.Source != SourceHeuristic || got.Question != "Why do you want this job?" {
		t.Errorf("fallback = %+v", got)
	}

	got, _ = chain.Extract(ctx, "hmm", nil)
	if got.Source != SourceFilter || got.IsQuestion {
		t.Errorf("filtered = %+v", got)
	}

	srv := newFakeOpenAI(t, http.StatusInternalServerError, "", nil)
	remote, _ := NewOpenAIExtractor(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	got, err = NewChain(remote).Extract(ctx, "Tell me, what motivates you?", nil)
	if err != nil || got.Source != SourceHeuristic {
		t.Errorf("http failure should fall back, got %+v, %v", got, err)
	}

	if NewChain(nil).Mode() != SourceHeuristic {
		t.Error("nil remote should run heuristic mode")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"¿Qué   tal?", "qué tal"},
		{"Tell me, about YOURSELF!", "tell me about yourself"},
		{"¡Hola!", "hola"},
		{"  ", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDeduper(t *testing.T) {
	d := NewDeduper(0.8, 3)

	if !d.Admit("What is your greatest strength?") {
		t.Fatal("first question should be admitted")
	}
	tests := []struct {
		name string
		q    string
		dup  bool
	}{
		{"exact after normalization", "what is your greatest strength", true},
		{"high overlap", "So what is your greatest strength?", true},
		{"different question", "What is your greatest weakness?", false},
		{"empty", "?!", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.IsDuplicate(tt.q); got != tt.dup {
				t.Errorf("IsDuplicate(%q) = %v, want %v", tt.q, got, tt.dup)
			}
		})
	}

	d.Remember("one two three")
	d.Remember("four five six")
	d.Remember("seven eight nine")
	if d.IsDuplicate("What is your greatest strength?") {
		t.Error("oldest entry should be evicted beyond the window")
	}

	d.Seed([]string{"alpha beta"})
	if !d.IsDuplicate("Alpha beta?") || d.IsDuplicate("seven eight nine") {
		t.Error("Seed() should replace memory")
	}
}

func TestJaccard(t *testing.T) {
	if got := Jaccard([]string{"a", "b"}, []string{"b", "c"}); got != 1.0/3 {
		t.Errorf("Jaccard = %v", got)
	}
	if Jaccard(nil, nil) != 1 {
		t.Error("two empty sets are identical")
	}
}

func TestRoute(t *testing.T) {
	tests := []struct {
		q       string
		project bool
		want    string
	}{
		{"So, tell me about yourself.", false, RoutePersonal},
		{"Háblame de ti, por favor", false, RoutePersonal},
		{"Do you have any questions for us?", true, RouteInterviewer},
		{"¿Tienes alguna pregunta?", false, RouteInterviewer},
		{"Describe the architecture of your last system", true, RouteProject},
		{"Describe the architecture of your last system", false, RouteDefault},
		{"What is a goroutine?", true, RouteDefault},
	}
	for _, tt := range tests {
		if got := Route(tt.q, tt.project); got != tt.want {
			t.Errorf("Route(%q, %v) = %q, want %q", tt.q, tt.project, got, tt.want)
		}
	}
}

type countingExtractor struct {
	calls int
	err   error
}

func (c *countingExtractor) Extract(_ context.Context, text string, _ []string) (Extraction, error) {
	c.calls++
	if c.err != nil {
		return Extraction{}, c.err
	}
	return Extraction{IsQuestion: true, Question: LastQuestion(text), Source: SourceRemote}, nil
}

func TestCached(t *testing.T) {
	ctx := context.Background()
	inner := &countingExtractor{}
	c := NewCached(inner, cache.New[Extraction](cache.Config{MaxItems: 8}))

	for _, text := range []string{"So, why Go?", "so why go", "SO WHY GO?!"} {
		got, err := c.Extract(ctx, text, nil)
		if err != nil || !got.IsQuestion {
			t.Fatalf("Extract(%q) = %+v, %v", text, got, err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("inner called %d times, want 1", inner.calls)
	}
	if s := c.Stats(); s.Hits != 2 {
		t.Errorf("Stats() = %+v, want 2 hits", s)
	}

	c.Extract(ctx, "So, why Go?", []string{"golang"})
	if inner.calls != 2 {
		t.Error("keywords must be part of the key")
	}

	failing := &countingExtractor{err: errors.New("remote down")}
	fc := NewCached(failing, cache.New[Extraction](cache.Config{}))
	fc.Extract(ctx, "what is your name", nil)
	fc.Extract(ctx, "what is your name", nil)
	if failing.calls != 2 {
		t.Errorf("failures were cached, calls = %d", failing.calls)
	}
}

func TestChain_CloseReleasesCache(t *testing.T) {
	results := cache.New[Extraction](cache.Config{CleanupInterval: time.Millisecond})
	chain := NewChain(NewCached(&countingExtractor{}, results))
	chain.Close()

	select {
	case <-results.Done():
	case <-time.After(time.Second):
		t.Fatal("cache sweep still running after Chain.Close")
	}

	// a heuristic-only chain has nothing to release
	NewChain(nil).Close()
}
