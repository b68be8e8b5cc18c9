package qna

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	item := New("What is Go?", SourceAuto)
	if item.ID == "" || item.Status != StatusPending || item.Language != "en-US" ||
		item.Route != "default" || item.DocPush != DocPushNone {
		t.Errorf("New() defaults = %+v", item)
	}
	if item.Answered() {
		t.Error("new item should not be answered")
	}
	item.Answer = " \n "
	if item.Answered() {
		t.Error("blank answer is not an answer")
	}
}

func TestStore_AddNewestFirst(t *testing.T) {
	s := NewStore()
	first := s.Add(QnA{Question: "first"})
	second := s.Add(QnA{Question: "second"})

	if first.ID == "" || first.Status != StatusPending || first.DocPush != DocPushNone {
		t.Errorf("Add() did not fill defaults: %+v", first)
	}
	h := s.History()
	if len(h) != 2 || h[0].ID != second.ID || h[1].ID != first.ID {
		t.Errorf("History() order = %v", h)
	}
	h[0].Question = "mutated"
	if got, _ := s.Get(second.ID); got.Question != "second" {
		t.Error("History() must return a copy")
	}
	if s.Count() != 2 {
		t.Errorf("Count() = %d", s.Count())
	}
}

func TestStore_Update(t *testing.T) {
	s := NewStore()
	item := s.Add(QnA{Question: "q"})
	before := item.UpdatedAt
	time.Sleep(2 * time.Millisecond)

	got, err := s.Update(item.ID, func(q *QnA) {
		q.Answer = "a"
		q.Status = StatusAnswered
		q.ID = "hijack"
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.ID != item.ID || got.Status != StatusAnswered || !got.UpdatedAt.After(before) {
		t.Errorf("Update() = %+v", got)
	}

	_, err = s.Update("missing", func(*QnA) {})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id error = %v", err)
	}
	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v", err)
	}
}

func TestStore_AnsweredPairsAndQuestions(t *testing.T) {
	s := NewStore()
	for i, a := range []string{"a1", "", "a3", "a4"} {
		s.Add(QnA{Question: string(rune('1' + i)), Answer: a, Context: Context{ClipboardText: a}})
	}

	pairs := s.AnsweredPairs(2)
	if len(pairs) != 2 || pairs[0].Answer != "a4" || pairs[1].Answer != "a3" {
		t.Errorf("AnsweredPairs(2) = %+v", pairs)
	}
	if pairs[0].Context.ClipboardText != "a4" {
		t.Error("pairs should carry context")
	}
	if all := s.AnsweredPairs(0); len(all) != 3 {
		t.Errorf("AnsweredPairs(0) = %d, want 3", len(all))
	}

	qs := s.Questions(3)
	if len(qs) != 3 || qs[0] != "4" {
		t.Errorf("Questions(3) = %v", qs)
	}

	last, ok := s.LastAnswered()
	if !ok || last.Answer != "a4" {
		t.Errorf("LastAnswered() = %+v, %v", last, ok)
	}
}

func TestStore_RemoveWhereAndClear(t *testing.T) {
	s := NewStore()
	s.Add(QnA{Question: "done", Answer: "x", Status: StatusAnswered})
	s.Add(QnA{Question: "pending"})
	s.Add(QnA{Question: "failed", Status: StatusFailed})

	n := s.RemoveWhere(func(q QnA) bool { return !q.Answered() })
	if n != 2 || s.Count() != 1 {
		t.Errorf("RemoveWhere() = %d, count = %d", n, s.Count())
	}

	s.Clear()
	if s.Count() != 0 {
		t.Error("Clear() should empty the store")
	}
}

func TestStore_Subscribe(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe()

	item := s.Add(QnA{Question: "q"})
	s.Update(item.ID, func(q *QnA) { q.Answer = "a" })
	s.RemoveWhere(func(QnA) bool { return true })

	want := []ChangeKind{ChangeAdded, ChangeUpdated, ChangeRemoved}
	for _, kind := range want {
		select {
		case c := <-ch:
			if c.Kind != kind || c.Item.ID != item.ID {
				t.Errorf("change = %v/%s, want %v", c.Kind, c.Item.ID, kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing %v change", kind)
		}
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
	s.Add(QnA{Question: "after cancel"})
}

func TestStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	s := NewStore()
	_, cancel := s.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Add(QnA{Question: "q"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Add() blocked on a slow subscriber")
	}
}

type recordingMirror struct {
	mu      sync.Mutex
	puts    int
	removes int
	clears  int
}

func (m *recordingMirror) Put(QnA) error       { m.mu.Lock(); m.puts++; m.mu.Unlock(); return nil }
func (m *recordingMirror) Remove(string) error { m.mu.Lock(); m.removes++; m.mu.Unlock(); return nil }
func (m *recordingMirror) Clear() error        { m.mu.Lock(); m.clears++; m.mu.Unlock(); return nil }

func TestStore_MirrorAndRestore(t *testing.T) {
	s := NewStore()
	m := &recordingMirror{}
	s.SetMirror(m)

	item := s.Add(QnA{Question: "q"})
	s.Update(item.ID, func(q *QnA) { q.Answer = "a" })
	s.RemoveWhere(func(QnA) bool { return true })
	s.Clear()
	if m.puts != 2 || m.removes != 1 || m.clears != 1 {
		t.Errorf("mirror calls = %+v", m)
	}

	old := time.Now().Add(-time.Hour)
	s.Restore([]QnA{
		{ID: "old", Question: "old", CreatedAt: old},
		{ID: "new", Question: "new", CreatedAt: time.Now()},
	})
	if h := s.History(); h[0].ID != "new" || h[1].ID != "old" {
		t.Errorf("Restore() order = %v", h)
	}
	if m.puts != 2 {
		t.Error("Restore() must not write to the mirror")
	}
}

// orderedMirror logs mirror calls as they complete. Put blocks on gate
// when it is set.
type orderedMirror struct {
	mu      sync.Mutex
	log     []string
	gate    chan struct{}
	entered chan struct{}
}

func (m *orderedMirror) record(op string) {
	m.mu.Lock()
	m.log = append(m.log, op)
	m.mu.Unlock()
}

func (m *orderedMirror) Put(item QnA) error {
	if m.gate != nil {
		m.entered <- struct{}{}
		<-m.gate
	}
	m.record("put " + item.ID)
	return nil
}

func (m *orderedMirror) Remove(id string) error { m.record("remove " + id); return nil }
func (m *orderedMirror) Clear() error           { m.record("clear"); return nil }

func TestStore_MirrorKeepsMutationOrder(t *testing.T) {
	s := NewStore()
	item := s.Add(QnA{ID: "q1", Question: "Why Go?"})

	m := &orderedMirror{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	s.SetMirror(m)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.Update(item.ID, func(q *QnA) { q.Status = StatusFailed })
	}()
	<-m.entered

	// the item is already gone from memory once Update released the store
	go func() {
		defer wg.Done()
		s.RemoveWhere(func(q QnA) bool { return q.Status != StatusAnswered })
	}()
	time.Sleep(50 * time.Millisecond)
	if s.Count() != 0 {
		t.Fatalf("Count() = %d, want the item removed in memory", s.Count())
	}

	close(m.gate)
	wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	want := []string{"put q1", "remove q1"}
	if len(m.log) != len(want) || m.log[0] != want[0] || m.log[1] != want[1] {
		t.Errorf("mirror log = %v, want %v", m.log, want)
	}
}
