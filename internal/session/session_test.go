package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(cfg Config) (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStore(cfg, nil)
	s.now = clock.Now
	return s, clock
}

func TestAppendAndMessages(t *testing.T) {
	s, _ := newTestStore(Config{})

	n, err := s.Append("s1", Message{Role: RoleUser, Content: "Show me hotels in Dhaka"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
	n, _ = s.Append("s1", Message{
		Role:    RoleToolObservation,
		Content: `{"success":true}`,
		Tool:    &ToolObservation{Name: "search_hotels", CallID: "call_0", Round: 1, Success: true},
	})
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}

	msgs := s.Messages("s1")
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[1].Tool.Name != "search_hotels" {
		t.Errorf("unexpected order: %+v", msgs)
	}
	if msgs[0].Timestamp.IsZero() {
		t.Error("timestamp should default to now")
	}

	// Snapshot is a copy.
	msgs[0].Content = "mutated"
	if got := s.Messages("s1")[0].Content; got != "Show me hotels in Dhaka" {
		t.Errorf("store mutated through snapshot: %q", got)
	}
}

func TestEmptyID(t *testing.T) {
	s, _ := newTestStore(Config{})
	if _, err := s.Append("", Message{Role: RoleUser}); !errors.Is(err, ErrEmptyID) {
		t.Errorf("Append err = %v, want ErrEmptyID", err)
	}
	if _, err := s.GetOrCreate(""); !errors.Is(err, ErrEmptyID) {
		t.Errorf("GetOrCreate err = %v, want ErrEmptyID", err)
	}
	if _, err := s.Acquire(context.Background(), ""); !errors.Is(err, ErrEmptyID) {
		t.Errorf("Acquire err = %v, want ErrEmptyID", err)
	}
}

func TestGetOrCreateIdempotent(t *testing.T) {
	s, clock := newTestStore(Config{})

	a, _ := s.GetOrCreate("s1")
	clock.Advance(time.Minute)
	s.Append("s1", Message{Role: RoleUser, Content: "hi"})
	b, _ := s.GetOrCreate("s1")

	if !a.CreatedAt.Equal(b.CreatedAt) {
		t.Error("second GetOrCreate should not reset CreatedAt")
	}
	if len(b.Messages) != 1 {
		t.Errorf("messages = %d, want 1", len(b.Messages))
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestClear(t *testing.T) {
	s, _ := newTestStore(Config{})

	ctx := context.Background()
	if ok, err := s.Clear(ctx, "missing"); ok || err != nil {
		t.Error("Clear on unknown session should return false")
	}
	if s.Info("missing").Exists || s.Len() != 0 {
		t.Error("Clear on unknown session must not create it")
	}

	s.Append("s1", Message{Role: RoleUser, Content: "a"})
	s.Append("s1", Message{Role: RoleAssistant, Content: "b"})
	if ok, err := s.Clear(ctx, "s1"); !ok || err != nil {
		t.Fatalf("Clear on existing session = %v, %v; want true", ok, err)
	}
	info := s.Info("s1")
	if !info.Exists || info.MessageCount != 0 {
		t.Errorf("info after clear = %+v, want exists with 0 messages", info)
	}
}

func TestClear_WaitsForTurn(t *testing.T) {
	s, _ := newTestStore(Config{})
	release, err := s.Acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	s.Append("s1", Message{Role: RoleUser, Content: "hotels?"})

	done := make(chan bool)
	go func() {
		ok, _ := s.Clear(context.Background(), "s1")
		done <- ok
	}()

	select {
	case <-done:
		t.Fatal("Clear returned while a turn held the session")
	case <-time.After(50 * time.Millisecond):
	}

	// The turn finishes its appends before the clear lands.
	s.Append("s1", Message{Role: RoleToolObservation, Content: "{}"})
	s.Append("s1", Message{Role: RoleAssistant, Content: "done"})
	release()

	if !<-done {
		t.Fatal("Clear should report the session existed")
	}
	if n := s.Info("s1").MessageCount; n != 0 {
		t.Errorf("MessageCount after clear = %d, want 0", n)
	}

	// The lease is free again.
	release, err = s.Acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Acquire after clear: %v", err)
	}
	release()
}

func TestClear_BusyTimeout(t *testing.T) {
	s, _ := newTestStore(Config{})
	s.Append("s1", Message{Role: RoleUser, Content: "a"})
	release, _ := s.Acquire(context.Background(), "s1")
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ok, err := s.Clear(ctx, "s1")
	if ok || !errors.Is(err, ErrSessionBusy) {
		t.Errorf("Clear = %v, %v; want ErrSessionBusy", ok, err)
	}
	if n := s.Info("s1").MessageCount; n != 1 {
		t.Errorf("MessageCount = %d, want 1", n)
	}
}

func TestInfo(t *testing.T) {
	s, _ := newTestStore(Config{})
	if got := s.Info("nope"); got.Exists || got.MessageCount != 0 {
		t.Errorf("unknown info = %+v", got)
	}
	s.Append("s1", Message{Role: RoleUser})
	if got := s.Info("s1"); !got.Exists || got.MessageCount != 1 || got.SessionID != "s1" {
		t.Errorf("info = %+v", got)
	}
}

func TestAcquireSerializesTurns(t *testing.T) {
	s, _ := newTestStore(Config{})

	release, err := s.Acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Acquire(ctx, "s1"); !errors.Is(err, ErrSessionBusy) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second Acquire err = %v, want ErrSessionBusy wrapping DeadlineExceeded", err)
	}

	// A different session is independent.
	other, err := s.Acquire(context.Background(), "s2")
	if err != nil {
		t.Fatalf("Acquire s2: %v", err)
	}
	other()

	release()
	release() // idempotent

	again, err := s.Acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	again()
}

func TestConcurrentTurnsKeepAllMessages(t *testing.T) {
	s, _ := newTestStore(Config{})
	const turns = 20

	var wg sync.WaitGroup
	for i := range turns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := s.Acquire(context.Background(), "shared")
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			defer release()
			s.Append("shared", Message{Role: RoleUser, Content: fmt.Sprintf("q%d", i)})
			s.Append("shared", Message{Role: RoleAssistant, Content: fmt.Sprintf("a%d", i)})
		}()
	}
	wg.Wait()

	msgs := s.Messages("shared")
	if len(msgs) != 2*turns {
		t.Fatalf("messages = %d, want %d", len(msgs), 2*turns)
	}
	// Serialized turns never interleave: every user message is followed
	// by its own answer.
	for i := 0; i < len(msgs); i += 2 {
		q, a := msgs[i].Content, msgs[i+1].Content
		if q[1:] != a[1:] {
			t.Errorf("interleaved turn at %d: %q then %q", i, q, a)
		}
	}
}

func TestSweepIdleTTL(t *testing.T) {
	s, clock := newTestStore(Config{IdleTTL: time.Hour})

	s.Append("old", Message{Role: RoleUser})
	s.Append("busy", Message{Role: RoleUser})
	release, _ := s.Acquire(context.Background(), "busy")
	clock.Advance(2 * time.Hour)
	s.Append("fresh", Message{Role: RoleUser})

	if n := s.Sweep(); n != 1 {
		t.Errorf("evicted = %d, want 1", n)
	}
	if s.Info("old").Exists {
		t.Error("idle session should be evicted")
	}
	if !s.Info("busy").Exists {
		t.Error("session with a turn in flight must not be evicted")
	}
	if !s.Info("fresh").Exists {
		t.Error("recent session should survive")
	}
	release()
}

func TestMaxSessionsEvictsLeastRecent(t *testing.T) {
	s, clock := newTestStore(Config{MaxSessions: 2})

	s.Append("a", Message{Role: RoleUser})
	clock.Advance(time.Second)
	s.Append("b", Message{Role: RoleUser})
	clock.Advance(time.Second)
	s.Append("a", Message{Role: RoleUser}) // a is now most recent
	clock.Advance(time.Second)
	s.Append("c", Message{Role: RoleUser})

	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if s.Info("b").Exists {
		t.Error("least recently active session b should be evicted")
	}
	if !s.Info("a").Exists || !s.Info("c").Exists {
		t.Error("a and c should remain")
	}
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore(Config{})
	s.Append("s1", Message{Role: RoleUser})

	release, _ := s.Acquire(context.Background(), "s1")
	if s.Delete("s1") {
		t.Error("Delete should refuse a busy session")
	}
	release()
	if !s.Delete("s1") {
		t.Error("Delete should remove an idle session")
	}
	if s.Delete("s1") {
		t.Error("second Delete should return false")
	}
}

func TestMessageCountProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("count equals appends since last clear", prop.ForAll(
		func(ops []int) bool {
			s := NewStore(Config{}, nil)
			want := 0
			for _, op := range ops {
				switch op {
				case 0:
					existed := s.Info("p").Exists
					if ok, _ := s.Clear(context.Background(), "p"); ok != existed {
						return false
					}
					want = 0
				default:
					n, err := s.Append("p", Message{Role: RoleUser})
					if err != nil {
						return false
					}
					want++
					if n != want {
						return false
					}
				}
			}
			return s.Info("p").MessageCount == want
		},
		gen.SliceOf(gen.IntRange(0, 3)),
	))

	properties.TestingRun(t)
}
