package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/msto63/overlay/pkg/core/errors"
	"github.com/msto63/overlay/pkg/core/logging"
)

// StreamingConfig configures the WebSocket recognizer
type StreamingConfig struct {
	URL           string
	APIKey        string
	Model         string
	Languages     []string
	EndpointingMs int
	Interim       bool
	KeepAlive     time.Duration
}

// StreamingRecognizer streams linear16 audio to a cloud recognizer over a
// WebSocket and reads JSON results back
type StreamingRecognizer struct {
	cfg    StreamingConfig
	dialer *websocket.Dialer
	logger *logging.Logger
}

// NewStreamingRecognizer creates a recognizer
func NewStreamingRecognizer(cfg StreamingConfig) *StreamingRecognizer {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 5 * time.Second
	}
	return &StreamingRecognizer{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: logging.New("stt"),
	}
}

// listenURL builds the streaming endpoint URL for a language
func (r *StreamingRecognizer) listenURL(language string) (string, error) {
	u, err := url.Parse(r.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid stt url: %w", err)
	}
	q := u.Query()
	q.Set("encoding", "linear16")
	q.Set("sample_rate", "16000")
	q.Set("channels", "1")
	if r.cfg.Model != "" {
		q.Set("model", r.cfg.Model)
	}
	// With several candidates the backend detects the language; the
	// preferred one only labels segments without a detection result
	switch {
	case len(r.cfg.Languages) > 1:
		q.Set("language", "multi")
	case language != "":
		q.Set("language", language)
	case len(r.cfg.Languages) == 1:
		q.Set("language", r.cfg.Languages[0])
	}
	q.Set("interim_results", strconv.FormatBool(r.cfg.Interim))
	if r.cfg.EndpointingMs > 0 {
		q.Set("endpointing", strconv.Itoa(r.cfg.EndpointingMs))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Start dials the backend. Auto-detection is requested whenever more than
// one candidate language is configured; language is the preferred label.
func (r *StreamingRecognizer) Start(ctx context.Context, language string) (Session, error) {
	if r.cfg.APIKey == "" {
		return nil, errors.New("speech API key not configured").
			WithCode(errors.CodeNotConfigured).WithOp("stt.Start")
	}
	endpoint, err := r.listenURL(language)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Token "+r.cfg.APIKey)

	conn, resp, err := r.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		code := errors.CodeServiceUnavailable
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			code = errors.CodeUnauthorized
		}
		return nil, errors.Wrap(err, "connect to speech service").WithCode(code).WithOp("stt.Start")
	}

	fallback := language
	if fallback == "" && len(r.cfg.Languages) > 0 {
		fallback = r.cfg.Languages[0]
	}

	s := &streamSession{
		conn:     conn,
		events:   make(chan Segment, 64),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		language: fallback,
		logger:   r.logger.With("language", fallback),
	}
	s.wg.Add(2)
	go s.readLoop()
	go s.keepAlive(r.cfg.KeepAlive)

	r.logger.Info("Recognition session started", "language", fallback, "model", r.cfg.Model)
	return s, nil
}

type controlMessage struct {
	Type string `json:"type"`
}

// resultMessage is the backend's JSON result frame
type resultMessage struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string   `json:"transcript"`
			Confidence float64  `json:"confidence"`
			Languages  []string `json:"languages"`
		} `json:"alternatives"`
		DetectedLanguage string `json:"detected_language"`
	} `json:"channel"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

type streamSession struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	events   chan Segment
	done     chan struct{}
	finished chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
	language string
	logger   *logging.Logger

	errMu sync.Mutex
	err   error
}

// Write sends one chunk of 16 kHz mono linear16 audio
func (s *streamSession) Write(pcm []byte) error {
	select {
	case <-s.done:
		return errors.New("recognition session closed").WithCode(errors.CodeInvalidState)
	default:
	}
	if len(pcm) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

// Events returns the recognition results
func (s *streamSession) Events() <-chan Segment {
	return s.events
}

func (s *streamSession) writeControl(kind string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(controlMessage{Type: kind})
}

func (s *streamSession) keepAlive(every time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.writeControl("KeepAlive"); err != nil {
				s.logger.Debug("Keep-alive failed", "error", err)
				return
			}
		}
	}
}

func (s *streamSession) readLoop() {
	defer s.wg.Done()
	defer close(s.finished)
	defer close(s.events)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				select {
				case <-s.done:
				default:
					s.setErr(err)
					s.logger.Warn("Recognition stream ended", "error", err)
				}
			}
			return
		}

		var msg resultMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("Ignoring malformed result", "error", err)
			continue
		}

		seg, ok := s.toSegment(msg)
		if !ok {
			continue
		}
		select {
		case s.events <- seg:
		case <-s.done:
			return
		}
	}
}

func (s *streamSession) toSegment(msg resultMessage) (Segment, bool) {
	switch msg.Type {
	case "", "Results":
	case "Error":
		s.setErr(fmt.Errorf("speech service error: %s %s", msg.Description, msg.Message))
		s.logger.Error("Speech service error", "description", msg.Description, "message", msg.Message)
		return Segment{}, false
	default:
		return Segment{}, false
	}
	if len(msg.Channel.Alternatives) == 0 {
		return Segment{}, false
	}

	alt := msg.Channel.Alternatives[0]
	text := strings.TrimSpace(alt.Transcript)
	if text == "" {
		return Segment{}, false
	}

	lang := s.language
	if msg.Channel.DetectedLanguage != "" {
		lang = msg.Channel.DetectedLanguage
	} else if len(alt.Languages) > 0 {
		lang = alt.Languages[0]
	}

	kind := Partial
	if msg.IsFinal {
		kind = Final
	}
	return Segment{Kind: kind, Text: text, Language: lang, At: time.Now()}, true
}

func (s *streamSession) setErr(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

// Err returns the first stream error, if any
func (s *streamSession) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close asks the backend to flush outstanding results, waits briefly for
// the stream to end and closes the connection
func (s *streamSession) Close() error {
	var closeErr error
	s.once.Do(func() {
		_ = s.writeControl("CloseStream")

		// the backend closes the socket after delivering outstanding results
		select {
		case <-s.finished:
		case <-time.After(2 * time.Second):
		}

		close(s.done)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		s.writeMu.Unlock()
		closeErr = s.conn.Close()
		s.wg.Wait()
		s.logger.Info("Recognition session closed")
	})
	return closeErr
}
