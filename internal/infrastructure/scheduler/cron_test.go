package scheduler

import (
	"testing"
	"time"
)

func TestReplaceRejectsInvalidExpression(t *testing.T) {
	t.Parallel()

	s := New(time.UTC, nil)

	if err := s.Replace("0 2 * * *", func() {}); err != nil {
		t.Fatalf("valid expression rejected: %v", err)
	}
	if !s.active {
		t.Fatal("expected an active entry after Replace")
	}
	prev := s.entry

	if err := s.Replace("not a cron", func() {}); err == nil {
		t.Fatal("expected error for invalid expression")
	}
	if !s.active || s.entry != prev {
		t.Fatal("invalid expression must leave previous timer untouched")
	}
}

func TestReplaceSwapsEntry(t *testing.T) {
	t.Parallel()

	s := New(time.UTC, nil)

	if err := s.Replace("0 2 * * *", func() {}); err != nil {
		t.Fatalf("first Replace: %v", err)
	}
	first := s.entry

	if err := s.Replace("0 */6 * * *", func() {}); err != nil {
		t.Fatalf("second Replace: %v", err)
	}
	if s.entry == first {
		t.Fatal("expected a new entry id after reschedule")
	}
	if got := len(s.runner.Entries()); got != 1 {
		t.Fatalf("expected exactly one registered entry, got %d", got)
	}
}
