package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/okrdocs/docqa/internal/repository"
)

func newTurn(sessionID, question string) *repository.Turn {
	return &repository.Turn{
		ID:        uuid.New(),
		SessionID: sessionID,
		UserID:    "user-1",
		Question:  question,
		Answer:    "answer to " + question,
		CreatedAt: time.Now(),
	}
}

func TestAppendAndHistory(t *testing.T) {
	s := NewStore(10, time.Hour)
	ctx := context.Background()

	for _, q := range []string{"first", "second", "third"} {
		if err := s.Append(ctx, newTurn("sess", q)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	turns, err := s.History(ctx, "sess", 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	// Chronological order: oldest first.
	if turns[0].Question != "first" || turns[2].Question != "third" {
		t.Errorf("turns out of order: %q .. %q", turns[0].Question, turns[2].Question)
	}
}

func TestHistoryLimit(t *testing.T) {
	s := NewStore(10, time.Hour)
	ctx := context.Background()

	for _, q := range []string{"a", "b", "c", "d"} {
		s.Append(ctx, newTurn("sess", q))
	}

	turns, err := s.History(ctx, "sess", 2)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	// The most recent two, still chronological.
	if turns[0].Question != "c" || turns[1].Question != "d" {
		t.Errorf("expected most recent turns, got %q, %q", turns[0].Question, turns[1].Question)
	}
}

func TestHistoryUnknownSession(t *testing.T) {
	s := NewStore(10, time.Hour)

	turns, err := s.History(context.Background(), "nope", 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("expected no turns for unknown session, got %d", len(turns))
	}
}

func TestMaxTurnsTrimming(t *testing.T) {
	s := NewStore(2, time.Hour)
	ctx := context.Background()

	for _, q := range []string{"a", "b", "c"} {
		s.Append(ctx, newTurn("sess", q))
	}

	turns, _ := s.History(ctx, "sess", 10)
	if len(turns) != 2 {
		t.Fatalf("expected trim to 2 turns, got %d", len(turns))
	}
	if turns[0].Question != "b" {
		t.Errorf("expected oldest turn dropped, got %q first", turns[0].Question)
	}
}

func TestSessionIsolation(t *testing.T) {
	s := NewStore(10, time.Hour)
	ctx := context.Background()

	s.Append(ctx, newTurn("one", "q1"))
	s.Append(ctx, newTurn("two", "q2"))

	turns, _ := s.History(ctx, "one", 10)
	if len(turns) != 1 || turns[0].Question != "q1" {
		t.Errorf("session one leaked turns: %+v", turns)
	}
}

func TestHistoryReturnsCopies(t *testing.T) {
	s := NewStore(10, time.Hour)
	ctx := context.Background()
	s.Append(ctx, newTurn("sess", "original"))

	turns, _ := s.History(ctx, "sess", 10)
	turns[0].Question = "mutated"

	again, _ := s.History(ctx, "sess", 10)
	if again[0].Question != "original" {
		t.Error("mutating a History result leaked into the store")
	}
}

func TestClearSession(t *testing.T) {
	s := NewStore(10, time.Hour)
	ctx := context.Background()
	s.Append(ctx, newTurn("sess", "q"))

	s.ClearSession("sess")

	turns, _ := s.History(ctx, "sess", 10)
	if len(turns) != 0 {
		t.Errorf("expected cleared session, got %d turns", len(turns))
	}
}

func TestCleanupExpiresIdleSessions(t *testing.T) {
	s := NewStore(10, 10*time.Millisecond)
	ctx := context.Background()
	s.Append(ctx, newTurn("sess", "q"))

	time.Sleep(20 * time.Millisecond)
	s.cleanup()

	turns, _ := s.History(ctx, "sess", 10)
	if len(turns) != 0 {
		t.Errorf("expected expired session removed, got %d turns", len(turns))
	}
}
