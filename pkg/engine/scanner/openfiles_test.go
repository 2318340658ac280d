package scanner

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSnapshotLookups(t *testing.T) {
	s := NewOpenFileSnapshot([]string{
		"/data/a/log.txt",
		"/data/b/core.sock",
		"/var/run/x",
	})

	if !s.IsOpen("/data/a/log.txt") {
		t.Error("exact path should be open")
	}
	if s.IsOpen("/data/a") {
		t.Error("directory itself is not an open path")
	}
	if !s.IsOpenUnder("/data/a") {
		t.Error("directory containing an open file is open-under")
	}
	if !s.IsOpenUnder("/data") {
		t.Error("ancestors of open files are open-under")
	}
	if s.IsOpenUnder("/data/c") {
		t.Error("unrelated directories are not open-under")
	}
	if s.IsOpenUnder("/data/ab") {
		t.Error("prefix collisions must not count as containment")
	}
}

func TestCollectOpenFilesFromFakeProc(t *testing.T) {
	proc := t.TempDir()
	target := filepath.Join(t.TempDir(), "held.log")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	fdDir := filepath.Join(proc, "1234", "fd")
	if err := os.MkdirAll(fdDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, filepath.Join(fdDir, "3")); err != nil {
		t.Fatal(err)
	}
	// Non-numeric entries are not processes.
	if err := os.MkdirAll(filepath.Join(proc, "self", "fd"), 0o755); err != nil {
		t.Fatal(err)
	}

	s := CollectOpenFiles(proc)
	if !s.IsOpen(target) {
		t.Fatalf("collector should find %s, snapshot has %d entries", target, s.Len())
	}
}
