package history

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func deletionEvent(id, category string, bytes uint64, success bool) Event {
	return Event{
		ID:       id,
		Kind:     EventDeletion,
		At:       time.Now(),
		Mount:    "/data",
		Path:     "/data/projects/x/target",
		Category: category,
		Bytes:    bytes,
		Success:  success,
	}
}

func TestJsonlAppendIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink, err := OpenJsonl(path)
	if err != nil {
		t.Fatal(err)
	}

	e := deletionEvent("evt-1", "rust_target", 1024, true)
	if err := sink.Append(e); err != nil {
		t.Fatal(err)
	}
	if err := sink.Append(e); err != nil {
		t.Fatal(err)
	}
	if err := sink.Append(deletionEvent("evt-2", "node_modules", 2048, true)); err != nil {
		t.Fatal(err)
	}
	sink.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
	}
	if lines != 2 {
		t.Fatalf("duplicate append must not duplicate lines, got %d", lines)
	}
}

func TestJsonlIdempotencySurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink, err := OpenJsonl(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.Append(deletionEvent("evt-1", "ccache", 10, true)); err != nil {
		t.Fatal(err)
	}
	sink.Close()

	reopened, err := OpenJsonl(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := reopened.Append(deletionEvent("evt-1", "ccache", 10, true)); err != nil {
		t.Fatal(err)
	}
	reopened.Close()

	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := countLines(body); n != 1 {
		t.Fatalf("reopen must keep idempotency, got %d lines", n)
	}
}

func countLines(body []byte) int {
	n := 0
	for _, b := range body {
		if b == '\n' {
			n++
		}
	}
	return n
}

func TestSqliteAppendIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	sink, err := OpenSqlite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	e := deletionEvent("evt-1", "rust_target", 4096, true)
	if err := sink.Append(e); err != nil {
		t.Fatal(err)
	}
	if err := sink.Append(e); err != nil {
		t.Fatal(err)
	}

	n, err := sink.EventCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("idempotent append must store one row, got %d", n)
	}
}

func TestSqliteWindowStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	sink, err := OpenSqlite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	events := []Event{
		deletionEvent("d1", "rust_target", 1000, true),
		deletionEvent("d2", "rust_target", 2000, true),
		deletionEvent("d3", "node_modules", 500, true),
		deletionEvent("d4", "python_cache", 0, false),
	}
	for _, e := range events {
		if err := sink.Append(e); err != nil {
			t.Fatal(err)
		}
	}
	// An unrelated kind must not count.
	if err := sink.Append(Event{ID: "p1", Kind: EventPressureChange, At: time.Now(), Mount: "/data"}); err != nil {
		t.Fatal(err)
	}

	stats, err := sink.WindowStats(time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Deletions.Count != 4 {
		t.Errorf("deletion count wrong: %d", stats.Deletions.Count)
	}
	if stats.Deletions.TotalBytesFreed != 3500 {
		t.Errorf("bytes freed should only count successes: %d", stats.Deletions.TotalBytesFreed)
	}
	if stats.Deletions.Failures != 1 {
		t.Errorf("failure count wrong: %d", stats.Deletions.Failures)
	}
	if stats.Deletions.MostCommonCategory != "rust_target" {
		t.Errorf("most common category wrong: %s", stats.Deletions.MostCommonCategory)
	}
}

func TestSqliteWindowExcludesOldEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	sink, err := OpenSqlite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	old := deletionEvent("old", "ccache", 999, true)
	old.At = time.Now().Add(-2 * time.Hour)
	if err := sink.Append(old); err != nil {
		t.Fatal(err)
	}
	if err := sink.Append(deletionEvent("new", "ccache", 100, true)); err != nil {
		t.Fatal(err)
	}

	stats, err := sink.WindowStats(time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Deletions.Count != 1 || stats.Deletions.TotalBytesFreed != 100 {
		t.Fatalf("window must exclude old events, got %+v", stats.Deletions)
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	dir := t.TempDir()
	jsonl, err := OpenJsonl(filepath.Join(dir, "e.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	sqlite, err := OpenSqlite(filepath.Join(dir, "e.db"))
	if err != nil {
		t.Fatal(err)
	}
	multi := NewMultiSink(jsonl, sqlite)
	defer multi.Close()

	if err := multi.Append(deletionEvent("evt-1", "rust_target", 64, true)); err != nil {
		t.Fatal(err)
	}
	n, err := sqlite.EventCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("sqlite should have the event, got %d", n)
	}
	body, err := os.ReadFile(filepath.Join(dir, "e.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if countLines(body) != 1 {
		t.Fatal("jsonl should have the event")
	}
}
