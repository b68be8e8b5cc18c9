package pipeline

import (
	"time"

	"github.com/msto63/overlay/internal/overlay/qna"
)

// EventKind identifies a pipeline event
type EventKind string

const (
	EventState      EventKind = "state"
	EventPartial    EventKind = "partial"
	EventTranscript EventKind = "transcript"
	EventQuestion   EventKind = "question"
	EventItem       EventKind = "item"
	EventLevels     EventKind = "levels"
	EventCleared    EventKind = "cleared"
	EventError      EventKind = "error"
)

// Levels are the audio meter readings in [0,1]
type Levels struct {
	System   float64 `json:"system"`
	Mic      float64 `json:"mic"`
	Speaking bool    `json:"speaking"`
}

// Event is published to subscribers for UI refresh
type Event struct {
	Kind       EventKind `json:"kind"`
	State      State     `json:"state"`
	Partial    string    `json:"partial,omitempty"`
	Transcript string    `json:"transcript,omitempty"`
	Question   string    `json:"question,omitempty"`
	Item       *qna.QnA  `json:"item,omitempty"`
	Levels     *Levels   `json:"levels,omitempty"`
	Err        string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// Subscribe returns a channel of events and a cancel function. Events are
// dropped for subscribers that do not keep up.
func (p *Pipeline) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	p.subMu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = ch
	p.subMu.Unlock()

	return ch, func() {
		p.subMu.Lock()
		if c, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(c)
		}
		p.subMu.Unlock()
	}
}

func (p *Pipeline) emit(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if e.Kind != EventState {
		e.State = p.state.Current()
	}
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Snapshot is the full view state for pull-based UIs
type Snapshot struct {
	State        State     `json:"state"`
	Language     string    `json:"language"`
	Transcript   string    `json:"transcript"`
	Partial      string    `json:"partial"`
	Display      string    `json:"display"`
	LastQuestion string    `json:"lastQuestion"`
	Extractor    string    `json:"extractor"`
	Levels       Levels    `json:"levels"`
	Dropped      int64     `json:"droppedBytes"`
	Items        []qna.QnA `json:"items"`
}

// Snapshot returns the current view state
func (p *Pipeline) Snapshot() Snapshot {
	state := p.state.Current()
	s := Snapshot{
		State:        state,
		Language:     p.Language(),
		Transcript:   p.transcript.Text(),
		Partial:      p.transcript.Partial(),
		Display:      p.transcript.Display(state == StateListening),
		LastQuestion: p.LastQuestion(),
		Extractor:    p.ExtractorMode(),
		Levels:       p.Levels(),
		Items:        p.deps.Store.History(),
	}
	p.mu.Lock()
	if p.run != nil {
		s.Dropped = p.run.source.Dropped()
	}
	p.mu.Unlock()
	return s
}
