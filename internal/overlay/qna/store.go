package qna

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/msto63/overlay/pkg/core/errors"
	"github.com/msto63/overlay/pkg/core/logging"
)

// ErrNotFound is returned for unknown item ids
var ErrNotFound = errors.New("qna item not found").WithCode(errors.CodeNotFound)

// ChangeKind identifies a store mutation
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeUpdated ChangeKind = "updated"
	ChangeRemoved ChangeKind = "removed"
	ChangeCleared ChangeKind = "cleared"
)

// Change is a store mutation delivered to subscribers
type Change struct {
	Kind ChangeKind
	Item QnA
}

// Mirror receives every mutation synchronously, outside the store lock and
// in the order the store applied them
type Mirror interface {
	Put(item QnA) error
	Remove(id string) error
	Clear() error
}

// Store keeps QnA items ordered newest first. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	items  []QnA
	subs   map[int]chan Change
	nextID int
	mirror Mirror
	logger *logging.Logger

	// mirrorMu is taken before mu is released and held until the mirror
	// call returns
	mirrorMu sync.Mutex
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		subs:   make(map[int]chan Change),
		logger: logging.New("qna"),
	}
}

// SetMirror attaches a persistence mirror; nil detaches
func (s *Store) SetMirror(m Mirror) {
	s.mu.Lock()
	s.mirror = m
	s.mu.Unlock()
}

// Add inserts item at the front. Missing id and timestamps are filled in.
func (s *Store) Add(item QnA) QnA {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	if item.Status == "" {
		item.Status = StatusPending
	}
	if item.DocPush == "" {
		item.DocPush = DocPushNone
	}

	s.mu.Lock()
	s.items = append([]QnA{item}, s.items...)
	mirror := s.lockMirror()
	s.mu.Unlock()

	if mirror != nil {
		if err := mirror.Put(item); err != nil {
			s.logger.Warn("Archive write failed", "id", item.ID, "error", err)
		}
	}
	s.mirrorMu.Unlock()
	s.publish(Change{Kind: ChangeAdded, Item: item})
	return item
}

// Restore replaces the content with items (any order) without notifying
// the mirror. Used to reload an archived session.
func (s *Store) Restore(items []QnA) {
	sorted := make([]QnA, len(items))
	copy(sorted, items)
	sortNewestFirst(sorted)

	s.mu.Lock()
	s.items = sorted
	s.mu.Unlock()
	s.publish(Change{Kind: ChangeCleared})
}

// Get returns a copy of the item with the given id
func (s *Store) Get(id string) (QnA, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items {
		if it.ID == id {
			return it, nil
		}
	}
	return QnA{}, ErrNotFound
}

// Update applies patch to the item and bumps UpdatedAt
func (s *Store) Update(id string, patch func(*QnA)) (QnA, error) {
	s.mu.Lock()
	idx := -1
	for i := range s.items {
		if s.items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return QnA{}, ErrNotFound
	}
	patch(&s.items[idx])
	s.items[idx].ID = id
	s.items[idx].UpdatedAt = time.Now().UTC()
	item := s.items[idx]
	mirror := s.lockMirror()
	s.mu.Unlock()

	if mirror != nil {
		if err := mirror.Put(item); err != nil {
			s.logger.Warn("Archive write failed", "id", id, "error", err)
		}
	}
	s.mirrorMu.Unlock()
	s.publish(Change{Kind: ChangeUpdated, Item: item})
	return item, nil
}

// History returns a copy of all items, newest first
func (s *Store) History() []QnA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]QnA, len(s.items))
	copy(out, s.items)
	return out
}

// AnsweredPairs returns up to max answered items, newest first
func (s *Store) AnsweredPairs(max int) []Pair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Pair
	for _, it := range s.items {
		if max > 0 && len(out) >= max {
			break
		}
		if it.Answered() {
			out = append(out, Pair{Question: it.Question, Answer: it.Answer, Context: it.Context})
		}
	}
	return out
}

// Questions returns up to max question texts, newest first
func (s *Store) Questions(max int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, it := range s.items {
		if max > 0 && len(out) >= max {
			break
		}
		out = append(out, it.Question)
	}
	return out
}

// LastAnswered returns the newest answered item
func (s *Store) LastAnswered() (QnA, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items {
		if it.Answered() {
			return it, true
		}
	}
	return QnA{}, false
}

// RemoveWhere deletes all items matching pred and returns how many
func (s *Store) RemoveWhere(pred func(QnA) bool) int {
	s.mu.Lock()
	kept := s.items[:0:0]
	var removed []QnA
	for _, it := range s.items {
		if pred(it) {
			removed = append(removed, it)
		} else {
			kept = append(kept, it)
		}
	}
	s.items = kept
	mirror := s.lockMirror()
	s.mu.Unlock()

	if mirror != nil {
		for _, it := range removed {
			if err := mirror.Remove(it.ID); err != nil {
				s.logger.Warn("Archive delete failed", "id", it.ID, "error", err)
			}
		}
	}
	s.mirrorMu.Unlock()
	for _, it := range removed {
		s.publish(Change{Kind: ChangeRemoved, Item: it})
	}
	return len(removed)
}

// Count returns the number of items
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Clear removes all items
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	mirror := s.lockMirror()
	s.mu.Unlock()

	if mirror != nil {
		if err := mirror.Clear(); err != nil {
			s.logger.Warn("Archive clear failed", "error", err)
		}
	}
	s.mirrorMu.Unlock()
	s.publish(Change{Kind: ChangeCleared})
}

// lockMirror must be called with mu held. The caller unlocks mirrorMu after
// the mirror call and before publishing.
func (s *Store) lockMirror() Mirror {
	s.mirrorMu.Lock()
	return s.mirror
}

// Subscribe returns a channel of changes and a cancel function. Changes
// are dropped for subscribers that do not keep up.
func (s *Store) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, 32)
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) publish(c Change) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

func sortNewestFirst(items []QnA) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
