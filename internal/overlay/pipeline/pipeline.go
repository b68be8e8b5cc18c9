package pipeline

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atotto/clipboard"

	"github.com/msto63/overlay/internal/overlay/answer"
	"github.com/msto63/overlay/internal/overlay/audio"
	"github.com/msto63/overlay/internal/overlay/qna"
	"github.com/msto63/overlay/internal/overlay/question"
	"github.com/msto63/overlay/internal/overlay/resample"
	"github.com/msto63/overlay/internal/overlay/setup"
	"github.com/msto63/overlay/internal/overlay/stt"
	"github.com/msto63/overlay/internal/overlay/transcript"
	"github.com/msto63/overlay/internal/overlay/vad"
	"github.com/msto63/overlay/pkg/core/errors"
	"github.com/msto63/overlay/pkg/core/logging"
)

// Config tunes the pipeline
type Config struct {
	Language       string
	BufferDuration time.Duration
	Debounce       time.Duration
	AutoInterval   time.Duration
	MinChars       int
	WindowChars    int
	Keywords       []string
	HistoryPairs   int
	ProjectMode    bool
	ExtractTimeout time.Duration
	AnswerTimeout  time.Duration
	LevelInterval  time.Duration

	// VAD enables the WebRTC speech indicator
	VAD     bool
	VADMode int

	// RecordDir enables a WAV dump of the transcriber input when set
	RecordDir string
}

// DefaultConfig returns the standard interview settings
func DefaultConfig() Config {
	return Config{
		Language:       "en-US",
		BufferDuration: 5 * time.Second,
		Debounce:       stt.DefaultDebounceInterval,
		AutoInterval:   3 * time.Second,
		MinChars:       20,
		WindowChars:    600,
		HistoryPairs:   10,
		ExtractTimeout: 15 * time.Second,
		AnswerTimeout:  30 * time.Second,
		LevelInterval:  250 * time.Millisecond,
		VAD:            true,
		VADMode:        2,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if strings.TrimSpace(c.Language) == "" {
		c.Language = d.Language
	}
	if c.BufferDuration <= 0 {
		c.BufferDuration = d.BufferDuration
	}
	if c.Debounce <= 0 {
		c.Debounce = d.Debounce
	}
	if c.AutoInterval <= 0 {
		c.AutoInterval = d.AutoInterval
	}
	if c.MinChars <= 0 {
		c.MinChars = d.MinChars
	}
	if c.WindowChars <= 0 {
		c.WindowChars = d.WindowChars
	}
	if c.HistoryPairs <= 0 {
		c.HistoryPairs = d.HistoryPairs
	}
	if c.ExtractTimeout <= 0 {
		c.ExtractTimeout = d.ExtractTimeout
	}
	if c.AnswerTimeout <= 0 {
		c.AnswerTimeout = d.AnswerTimeout
	}
	if c.LevelInterval <= 0 {
		c.LevelInterval = d.LevelInterval
	}
}

// ContextLoader supplies the candidate setup context
type ContextLoader interface {
	Load() setup.Context
}

// Pusher forwards captured questions to a backend
type Pusher interface {
	Send(ctx context.Context, text string) error
}

// Deps are the pipeline collaborators. Source, Recognizer, Extractor,
// Generator and Store are required.
type Deps struct {
	// Source is transcribed
	Source audio.Source
	// Monitor only feeds the level meter (usually the microphone)
	Monitor audio.Source

	Recognizer stt.Recognizer
	Extractor  question.Extractor
	Generator  answer.Generator
	Store      *qna.Store
	Context    ContextLoader
	Dedup      *question.Deduper
	Pusher     Pusher

	// Clipboard reads clipboard text for captures; nil disables it
	Clipboard func() (string, error)
}

// run holds the resources of one Start/Stop cycle
type run struct {
	cancel   context.CancelFunc
	source   *audio.BufferedSource
	adapter  *resample.Adapter
	session  stt.Session
	gate     *vad.Gate
	recorder *audio.Recorder
	monitor  bool

	pumpStop context.CancelFunc
	pumpDone chan struct{}
	segDone  chan struct{}
	stopping atomic.Bool
	wg       sync.WaitGroup
}

// Pipeline turns system audio into answered interview questions
type Pipeline struct {
	cfg        Config
	deps       Deps
	logger     *logging.Logger
	state      *StateMachine
	transcript *transcript.Accumulator

	// opMu serializes Start and Stop
	opMu sync.Mutex

	mu             sync.Mutex
	run            *run
	language       string
	lastQuestion   string
	lastExtractLen int

	speaking atomic.Bool
	trigger  chan struct{}

	baseCtx    context.Context
	baseCancel context.CancelFunc
	answers    sync.WaitGroup

	subMu  sync.Mutex
	subs   map[int]chan Event
	nextID int
}

// New creates a pipeline
func New(cfg Config, deps Deps) (*Pipeline, error) {
	const op = "pipeline.New"
	switch {
	case deps.Source == nil:
		return nil, errors.New("audio source is required").WithCode(errors.CodeInvalidInput).WithOp(op)
	case deps.Recognizer == nil:
		return nil, errors.New("recognizer is required").WithCode(errors.CodeInvalidInput).WithOp(op)
	case deps.Extractor == nil:
		return nil, errors.New("extractor is required").WithCode(errors.CodeInvalidInput).WithOp(op)
	case deps.Generator == nil:
		return nil, errors.New("answer generator is required").WithCode(errors.CodeInvalidInput).WithOp(op)
	case deps.Store == nil:
		return nil, errors.New("qna store is required").WithCode(errors.CodeInvalidInput).WithOp(op)
	}
	cfg.applyDefaults()
	if deps.Dedup == nil {
		deps.Dedup = question.NewDeduper(0, 0)
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	p := &Pipeline{
		cfg:        cfg,
		deps:       deps,
		logger:     logging.New("pipeline"),
		state:      NewStateMachine(),
		transcript: transcript.New(),
		language:   cfg.Language,
		trigger:    make(chan struct{}, 1),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		subs:       make(map[int]chan Event),
	}

	p.state.AddListener(func(oldState, newState State) {
		p.logger.Debug("State changed", "from", oldState.String(), "to", newState.String())
		p.emit(Event{Kind: EventState, State: newState})
	})

	// Archived questions of the session count as already asked
	p.seedDedup()
	if last, ok := deps.Store.LastAnswered(); ok {
		p.lastQuestion = last.Question
	}
	return p, nil
}

// SystemClipboard reads text from the OS clipboard
func SystemClipboard() (string, error) {
	return clipboard.ReadAll()
}

// State returns the current state
func (p *Pipeline) State() State {
	return p.state.Current()
}

// Running reports whether audio is being transcribed
func (p *Pipeline) Running() bool {
	return p.state.Current() == StateListening
}

// Language returns the recognition language
func (p *Pipeline) Language() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.language
}

// LastQuestion returns the most recent detected question
func (p *Pipeline) LastQuestion() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastQuestion
}

// Transcript returns the live transcript
func (p *Pipeline) Transcript() *transcript.Accumulator {
	return p.transcript
}

// Store returns the QnA store
func (p *Pipeline) Store() *qna.Store {
	return p.deps.Store
}

// ExtractorMode names the extractor in use
func (p *Pipeline) ExtractorMode() string {
	if m, ok := p.deps.Extractor.(interface{ Mode() string }); ok {
		return m.Mode()
	}
	return "custom"
}

// Start opens the sources and the recognizer and begins transcription
func (p *Pipeline) Start(ctx context.Context) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if p.state.Current() == StateError {
		p.state.Reset()
	}
	if !p.state.Transition(StateStarting) {
		return errors.New("pipeline is already running").
			WithCode(errors.CodeInvalidState).
			WithOp("pipeline.Start")
	}

	r, err := p.open(ctx)
	if err != nil {
		p.logger.Error("Failed to start pipeline", "error", err)
		p.state.Transition(StateError)
		p.emit(Event{Kind: EventError, Err: err.Error()})
		return err
	}

	p.mu.Lock()
	p.run = r
	p.mu.Unlock()
	p.state.Transition(StateListening)
	p.logger.Info("Listening", "language", p.Language(), "format", p.deps.Source.Format().String())
	return nil
}

func (p *Pipeline) open(ctx context.Context) (*run, error) {
	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		cancel:   cancel,
		pumpDone: make(chan struct{}),
		segDone:  make(chan struct{}),
	}

	adapter, err := resample.New(p.deps.Source.Format())
	if err != nil {
		cancel()
		return nil, err
	}
	r.adapter = adapter

	closeOnErr := func() {
		cancel()
		_ = adapter.Close()
		if r.recorder != nil {
			_ = r.recorder.Close()
		}
	}

	if p.cfg.VAD {
		vcfg := vad.DefaultConfig()
		vcfg.Mode = p.cfg.VADMode
		gate, err := vad.NewGate(vcfg)
		if err != nil {
			p.logger.Warn("Speech indicator disabled", "error", err)
		} else {
			r.gate = gate
		}
	}

	if p.cfg.RecordDir != "" {
		rec, err := audio.NewRecorder(audio.RecordingPath(p.cfg.RecordDir, time.Now()), audio.Speech.SampleRate)
		if err != nil {
			p.logger.Warn("Recording disabled", "error", err)
		} else {
			r.recorder = rec
		}
	}

	session, err := p.deps.Recognizer.Start(runCtx, p.Language())
	if err != nil {
		closeOnErr()
		return nil, err
	}
	r.session = session

	r.source = audio.NewBufferedSource(p.deps.Source, p.cfg.BufferDuration)
	if err := r.source.Start(runCtx); err != nil {
		_ = session.Close()
		closeOnErr()
		return nil, errors.Wrap(err, "failed to start audio source").WithCode(errors.CodeDeviceError)
	}

	if p.deps.Monitor != nil {
		if err := p.deps.Monitor.Start(runCtx); err != nil {
			p.logger.Warn("Microphone monitor unavailable", "error", err)
		} else {
			r.monitor = true
		}
	}

	pumpCtx, pumpStop := context.WithCancel(runCtx)
	r.pumpStop = pumpStop
	go p.pump(pumpCtx, r)

	segs := stt.NewDebouncer(p.cfg.Debounce).Run(runCtx, session.Events())
	go p.consume(r, segs)

	r.wg.Add(3)
	go p.extractLoop(runCtx, r)
	go p.autoLoop(runCtx, r)
	go p.levelLoop(runCtx, r)
	return r, nil
}

// Stop tears the pipeline down in reverse order. Audio still buffered in
// the adapter is sent before the recognizer session closes.
func (p *Pipeline) Stop() error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.mu.Lock()
	r := p.run
	p.run = nil
	p.mu.Unlock()
	if r == nil {
		return nil
	}

	p.state.Transition(StateStopping)
	r.stopping.Store(true)

	var firstErr error
	if err := r.source.Stop(); err != nil {
		firstErr = err
	}
	r.pumpStop()
	<-r.pumpDone

	if tail, err := r.adapter.Flush(); err != nil {
		p.logger.Warn("Failed to flush audio", "error", err)
	} else {
		p.forward(r, tail)
	}
	_ = r.adapter.Close()

	if r.monitor {
		if err := p.deps.Monitor.Stop(); err != nil {
			p.logger.Warn("Failed to stop microphone monitor", "error", err)
		}
	}

	if err := r.session.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	select {
	case <-r.segDone:
	case <-time.After(3 * time.Second):
		p.logger.Warn("Recognizer did not finish in time")
	}

	r.cancel()
	r.wg.Wait()

	if r.recorder != nil {
		if err := r.recorder.Close(); err != nil {
			p.logger.Warn("Failed to finish recording", "error", err)
		} else {
			p.logger.Info("Recording saved", "path", r.recorder.Path(), "duration", r.recorder.Duration())
		}
	}

	if dropped := r.source.Dropped(); dropped > 0 {
		p.logger.Warn("Audio dropped on buffer overflow", "bytes", dropped)
	}

	p.transcript.SetPartial("")
	p.speaking.Store(false)
	p.state.Transition(StateIdle)
	p.logger.Info("Stopped")
	return firstErr
}

// Close stops the pipeline, waits for pending answers and releases the
// audio devices
func (p *Pipeline) Close() error {
	err := p.Stop()
	p.baseCancel()
	p.answers.Wait()

	if cerr := p.deps.Source.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if p.deps.Monitor != nil {
		if cerr := p.deps.Monitor.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	p.subMu.Lock()
	for id, ch := range p.subs {
		close(ch)
		delete(p.subs, id)
	}
	p.subMu.Unlock()
	return err
}

// SetLanguage changes the recognition language and restarts the
// recognizer session when running
func (p *Pipeline) SetLanguage(ctx context.Context, language string) error {
	language = strings.TrimSpace(language)
	if language == "" {
		return errors.New("language cannot be empty").
			WithCode(errors.CodeInvalidInput).
			WithOp("pipeline.SetLanguage")
	}

	p.mu.Lock()
	changed := p.language != language
	p.language = language
	p.mu.Unlock()

	if !changed || !p.Running() {
		return nil
	}
	p.logger.Info("Restarting recognition", "language", language)
	if err := p.Stop(); err != nil {
		p.logger.Warn("Stop before restart failed", "error", err)
	}
	return p.Start(ctx)
}

// ToggleLanguage switches between English and Spanish
func (p *Pipeline) ToggleLanguage(ctx context.Context) error {
	return p.SetLanguage(ctx, stt.Toggle(p.Language()))
}

func (p *Pipeline) pump(ctx context.Context, r *run) {
	defer close(r.pumpDone)
	out := r.source.Output()
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-out:
			chunks, err := r.adapter.Write(data)
			if err != nil {
				p.logger.Warn("Audio conversion failed", "error", err)
				continue
			}
			p.forward(r, chunks)
		}
	}
}

func (p *Pipeline) forward(r *run, chunks [][]byte) {
	for _, chunk := range chunks {
		if r.gate != nil {
			p.speaking.Store(r.gate.Feed(chunk))
		}
		if r.recorder != nil {
			if err := r.recorder.Write(chunk); err != nil {
				p.logger.Warn("Recording write failed", "error", err)
				r.recorder = nil
			}
		}
		if err := r.session.Write(chunk); err != nil {
			p.logger.Debug("Audio not delivered", "error", err)
		}
	}
}

func (p *Pipeline) consume(r *run, segs <-chan stt.Segment) {
	defer close(r.segDone)
	for seg := range segs {
		p.handleSegment(seg)
	}
	if r.stopping.Load() {
		return
	}

	var err error
	if e, ok := r.session.(interface{ Err() error }); ok {
		err = e.Err()
	}
	if err == nil {
		err = errors.New("recognition stream ended").WithCode(errors.CodeServiceUnavailable)
	}
	p.logger.Error("Recognition stream ended unexpectedly", "error", err)
	go p.abort(err)
}

func (p *Pipeline) abort(err error) {
	_ = p.Stop()
	p.state.Transition(StateError)
	p.emit(Event{Kind: EventError, Err: err.Error()})
}

func (p *Pipeline) handleSegment(seg stt.Segment) {
	switch seg.Kind {
	case stt.Partial:
		p.transcript.SetPartial(seg.Text)
		p.emit(Event{Kind: EventPartial, Partial: seg.Text})

	case stt.Final:
		if !p.transcript.AppendFinal(seg.Text) {
			return
		}
		if seg.Language != "" {
			p.logger.Debug("Final segment", "language", seg.Language, "forced", seg.Forced)
		}
		p.emit(Event{Kind: EventTranscript, Transcript: p.transcript.Text()})
		p.scheduleExtraction()
	}
}

func (p *Pipeline) levelLoop(ctx context.Context, r *run) {
	defer r.wg.Done()
	ticker := time.NewTicker(p.cfg.LevelInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lv := p.Levels()
			p.emit(Event{Kind: EventLevels, Levels: &lv})
		}
	}
}

// Levels returns the current meter readings
func (p *Pipeline) Levels() Levels {
	lv := Levels{Speaking: p.speaking.Load()}
	if !p.state.IsActive() {
		return lv
	}
	lv.System = p.deps.Source.Level()
	if p.deps.Monitor != nil {
		lv.Mic = p.deps.Monitor.Level()
	}
	return lv
}
