package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStateFileAtomicWriteAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	state := &StateFile{
		Version:   "1.2.3",
		PID:       4242,
		StartedAt: time.UnixMilli(1_700_000_000_000).UTC(),
		Rates:     map[string]RateState{"/data": {BytesPerSec: 1024.5}},
	}
	state.Pressure.Overall = "yellow"
	state.Pressure.Mounts = []MountState{{Path: "/data", FreePct: 12.5, Level: "yellow", RateBps: 1024.5}}
	state.Ballast.Available = 3
	state.Ballast.Total = 4
	state.Ballast.Released = 1
	state.Counters.Scans = 10
	state.Counters.BytesFreed = 1 << 30

	if err := state.WriteAtomic(path); err != nil {
		t.Fatal(err)
	}

	read, err := ReadStateFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if read.Version != "1.2.3" || read.PID != 4242 {
		t.Fatalf("identity fields lost: %+v", read)
	}
	if read.Pressure.Overall != "yellow" || len(read.Pressure.Mounts) != 1 {
		t.Fatalf("pressure lost: %+v", read.Pressure)
	}
	if read.Rates["/data"].BytesPerSec != 1024.5 {
		t.Fatalf("rates lost: %+v", read.Rates)
	}
	if read.Counters.BytesFreed != 1<<30 {
		t.Fatalf("counters lost: %+v", read.Counters)
	}
}

func TestStateWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	state := &StateFile{Version: "x", Rates: map[string]RateState{}}
	for i := 0; i < 5; i++ {
		if err := state.WriteAtomic(path); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("only the state file should remain, found %d entries", len(entries))
	}
}

func TestReadStateFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{torn"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadStateFile(path); err == nil {
		t.Fatal("torn documents must be rejected")
	}
}

func TestDisabledNotificationManagerIsInert(t *testing.T) {
	m := DisabledNotificationManager()
	if m.IsEnabled() {
		t.Fatal("disabled manager reports disabled")
	}
	// Firing every event type must not panic.
	m.Notify(&NotificationEvent{Kind: NotifyPressureChanged, From: "green", To: "yellow", Mount: "/data", FreePct: 12})
	m.Notify(&NotificationEvent{Kind: NotifyCleanupCompleted, ItemsDeleted: 5, BytesFreed: 1_000_000, Mount: "/data"})
	m.Notify(&NotificationEvent{Kind: NotifyBallastReleased, Mount: "/data", FilesReleased: 2, BytesFreed: 2_000_000_000})
	m.Notify(&NotificationEvent{Kind: NotifyError, Code: "SBH-3900", Message: "test error"})
}
