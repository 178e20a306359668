package logbook

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestTailReturnsRecentLinesAndTotal(t *testing.T) {
	dir := t.TempDir()
	book, err := ForSession(dir, "session-abc")
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	if filepath.Base(book.Path()) != "session-abc.log" {
		t.Fatalf("unexpected logbook path %s", book.Path())
	}
	for i := 0; i < 5; i++ {
		book.Info("entry-%d", i)
	}
	lines, total := book.Tail(3)
	if total != 5 {
		t.Fatalf("total lines = %d, want 5", total)
	}
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	for idx, want := range []string{"entry-2", "entry-3", "entry-4"} {
		if !strings.Contains(lines[idx], want) {
			t.Fatalf("line %d = %q, missing %s", idx, lines[idx], want)
		}
	}
}

func TestTurnSummaryLine(t *testing.T) {
	book, err := ForSession(t.TempDir(), "s1")
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	book.Turn(2, "agent", 3, "applied", 1)
	lines, total := book.Tail(1)
	if total != 1 || len(lines) != 1 {
		t.Fatalf("expected one line, got %d (total %d)", len(lines), total)
	}
	if !strings.Contains(lines[0], "turn 2 role=agent applied=3 status=applied remaining=1") {
		t.Fatalf("unexpected turn line: %q", lines[0])
	}
	if !strings.Contains(lines[0], "INFO") {
		t.Fatalf("turn line missing level: %q", lines[0])
	}
}
