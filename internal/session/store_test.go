package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/samsaffron/seek-chat/internal/llm"
)

func TestStoreAppendAndOrder(t *testing.T) {
	s := NewStore()
	u := s.Append(llm.RoleUser, "hi", true)
	a := s.Append(llm.RoleAssistant, "", false)

	if u.ID == "" || a.ID == "" || u.ID == a.ID {
		t.Fatalf("ids not unique: %q %q", u.ID, a.ID)
	}
	msgs := s.Messages()
	if len(msgs) != 2 || msgs[0].ID != u.ID || msgs[1].ID != a.ID {
		t.Fatalf("Messages() = %+v", msgs)
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
}

func TestStoreAppendMessageRejectsDuplicate(t *testing.T) {
	s := NewStore()
	if _, err := s.AppendMessage(Message{ID: "m1", Role: llm.RoleUser, Content: "a", Final: true}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	_, err := s.AppendMessage(Message{ID: "m1", Role: llm.RoleUser, Content: "b"})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("AppendMessage(dup) error = %v, want ErrDuplicateID", err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestStoreTailUpdates(t *testing.T) {
	s := NewStore()
	first := s.Append(llm.RoleUser, "q", true)
	tail := s.Append(llm.RoleAssistant, "", false)

	if err := s.AppendTail(tail.ID, "Hel"); err != nil {
		t.Fatalf("AppendTail() error = %v", err)
	}
	if err := s.ReplaceTail(tail.ID, "Hello"); err != nil {
		t.Fatalf("ReplaceTail() error = %v", err)
	}
	if err := s.ReplaceTail(tail.ID, "Help"); !errors.Is(err, ErrShrink) {
		t.Fatalf("ReplaceTail(shrink) error = %v, want ErrShrink", err)
	}
	if err := s.AppendTail(first.ID, "x"); !errors.Is(err, ErrNotTail) {
		t.Fatalf("AppendTail(non-tail) error = %v, want ErrNotTail", err)
	}
	if err := s.Finalize(tail.ID); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if err := s.Finalize(tail.ID); err != nil {
		t.Fatalf("second Finalize() error = %v", err)
	}
	if err := s.AppendTail(tail.ID, "!"); !errors.Is(err, ErrFinal) {
		t.Fatalf("AppendTail(final) error = %v, want ErrFinal", err)
	}
	got, _ := s.Get(tail.ID)
	if got.Content != "Hello" || !got.Final {
		t.Fatalf("tail = %+v", got)
	}
}

func TestStoreDropTailAndClear(t *testing.T) {
	s := NewStore()
	s.Append(llm.RoleUser, "q", true)
	tail := s.Append(llm.RoleAssistant, "partial", false)

	if err := s.DropTail(tail.ID); err != nil {
		t.Fatalf("DropTail() error = %v", err)
	}
	if _, ok := s.Get(tail.ID); ok {
		t.Fatal("dropped message still present")
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}

	v := s.Version()
	s.Clear()
	if s.Len() != 0 || s.Version() <= v {
		t.Fatalf("Clear() left len=%d version=%d (was %d)", s.Len(), s.Version(), v)
	}
}

func TestStoreVersionBumpsOnlyOnChange(t *testing.T) {
	s := NewStore()
	tail := s.Append(llm.RoleAssistant, "a", false)
	v := s.Version()
	_ = s.AppendTail(tail.ID, "")
	_ = s.ReplaceTail(tail.ID, "a")
	if s.Version() != v {
		t.Fatalf("no-op updates changed version %d -> %d", v, s.Version())
	}
	_ = s.AppendTail(tail.ID, "b")
	if s.Version() != v+1 {
		t.Fatalf("Version() = %d, want %d", s.Version(), v+1)
	}
}

func TestStoreHistorySkipsEmpty(t *testing.T) {
	s := NewStore()
	s.Append(llm.RoleUser, "What is 2+2?", true)
	s.Append(llm.RoleAssistant, "", false)

	h := s.History()
	if len(h) != 1 || h[0].Role != llm.RoleUser || h[0].Text() != "What is 2+2?" {
		t.Fatalf("History() = %+v", h)
	}
}

// Render order must equal insertion order no matter how appends and
// streaming updates interleave.
func TestStoreOrderUnderConcurrentStreaming(t *testing.T) {
	s := NewStore()
	tail := s.Append(llm.RoleAssistant, "", false)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = s.AppendTail(tail.ID, "x")
		}
	}()
	for i := 0; i < 50; i++ {
		msgs := s.Messages()
		if msgs[0].ID != tail.ID {
			t.Fatalf("order changed: %+v", msgs[0])
		}
	}
	wg.Wait()

	if err := s.Finalize(tail.ID); err != nil {
		t.Fatal(err)
	}
	var want []string
	want = append(want, tail.ID)
	for i := 0; i < 5; i++ {
		m := s.Append(llm.RoleUser, fmt.Sprint(i), true)
		want = append(want, m.ID)
	}
	for i, m := range s.Messages() {
		if m.ID != want[i] {
			t.Fatalf("Messages()[%d] = %s, want %s", i, m.ID, want[i])
		}
	}
	if got, _ := s.Get(tail.ID); len(got.Content) != 200 {
		t.Fatalf("tail length = %d, want 200", len(got.Content))
	}
}
