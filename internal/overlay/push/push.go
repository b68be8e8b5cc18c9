// Package push forwards answered questions to a documentation backend.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/msto63/overlay/pkg/core/errors"
)

// DefaultSessionID is sent when no session id is configured
const DefaultSessionID = "local-dev-session"

// Config holds backend settings
type Config struct {
	URL       string
	APIKey    string
	SessionID string
	Timeout   time.Duration
}

// Client posts text to the backend
type Client struct {
	url       string
	apiKey    string
	sessionID string
	http      *http.Client
}

type request struct {
	Text      string `json:"text"`
	SessionID string `json:"sessionId"`
}

// NewClient creates a backend client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sid := strings.TrimSpace(cfg.SessionID)
	if sid == "" {
		sid = DefaultSessionID
	}
	return &Client{
		url:       NormalizeURL(cfg.URL),
		apiKey:    strings.TrimSpace(cfg.APIKey),
		sessionID: sid,
		http:      &http.Client{Timeout: timeout},
	}
}

// NormalizeURL trims trailing slashes and defaults the scheme to http
func NormalizeURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if u == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(u), "http") {
		u = "http://" + u
	}
	return u
}

// Send posts text for the configured session
func (c *Client) Send(ctx context.Context, text string) error {
	const op = "push.Send"
	if c.url == "" {
		return errors.New("backend URL is not configured").WithCode(errors.CodeNotConfigured).WithOp(op)
	}
	if c.apiKey == "" {
		return errors.New("backend API key is not configured").WithCode(errors.CodeNotConfigured).WithOp(op)
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("text is empty").WithCode(errors.CodeInvalidInput).WithOp(op)
	}

	body, err := json.Marshal(request{Text: text, SessionID: c.sessionID})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "invalid backend URL").WithCode(errors.CodeInvalidInput).WithOp(op)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "backend request failed").WithCode(errors.CodeServiceUnavailable).WithOp(op)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Newf("backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))).
			WithCode(errors.CodeExternalService).
			WithOp(op)
	}
	return nil
}
