package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DrSkyle/sbh/pkg/config"
	"github.com/DrSkyle/sbh/pkg/engine/monitor"
	"github.com/DrSkyle/sbh/pkg/platform"
)

func testDaemon(t *testing.T, freePct float64) (*Daemon, *platform.MockPlatform, string) {
	t.Helper()
	root := t.TempDir()
	stateDir := t.TempDir()

	cfg := config.Default()
	cfg.Scanner.RootPaths = []string{root}
	cfg.Scanner.Parallelism = 1
	cfg.Scanner.DryRun = true
	cfg.Ballast.FileCount = 2
	cfg.Ballast.FileSizeBytes = 4096
	cfg.Paths.StateFile = filepath.Join(stateDir, "state.json")
	cfg.Paths.BallastDir = filepath.Join(stateDir, "ballast")
	cfg.Paths.SqliteDB = filepath.Join(stateDir, "events.db")
	cfg.Paths.JsonlLog = filepath.Join(stateDir, "events.jsonl")
	cfg.Notify.Enabled = false

	mock := platform.NewMockPlatform()
	total := uint64(1_000_000)
	mock.SetMounts([]platform.MountPoint{{Path: root, Device: "/dev/mock", FsType: "ext4"}})
	mock.SetStats(root, total, uint64(float64(total)*freePct/100), "ext4")

	d, err := New(cfg, mock)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.ballast.Provision(nil); err != nil {
		t.Fatal(err)
	}
	return d, mock, root
}

func TestTickGreenSteadyState(t *testing.T) {
	d, _, root := testDaemon(t, 50)

	// A plausible project tree that must survive.
	src := filepath.Join(root, "project", "src")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "main.rs"), []byte("fn main() {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	d.Tick(context.Background(), now)

	state, err := ReadStateFile(d.cfg.Paths.StateFile)
	if err != nil {
		t.Fatal(err)
	}
	if state.Pressure.Overall != "green" {
		t.Fatalf("50%% free is green, got %s", state.Pressure.Overall)
	}
	if state.Counters.Scans != 1 {
		t.Fatalf("walker runs on schedule even in green, got %d scans", state.Counters.Scans)
	}
	if state.LastScan.Deleted != 0 {
		t.Fatal("green steady state deletes nothing")
	}
	if _, err := os.Stat(filepath.Join(src, "main.rs")); err != nil {
		t.Fatal("source files must survive")
	}
}

func TestTickSuddenDropEscalates(t *testing.T) {
	d, mock, root := testDaemon(t, 50)
	total := uint64(1_000_000)

	t0 := time.Now()
	d.Tick(context.Background(), t0)

	mock.SetStats(root, total, total/100, "ext4") // 1% free
	d.Tick(context.Background(), t0.Add(time.Second))

	state, err := ReadStateFile(d.cfg.Paths.StateFile)
	if err != nil {
		t.Fatal(err)
	}
	if state.Pressure.Overall != "critical" {
		t.Fatalf("1%% free must be critical immediately, got %s", state.Pressure.Overall)
	}
	// Red-or-worse pressure releases ballast.
	if state.Ballast.Available >= 2 {
		t.Fatalf("critical pressure should release ballast, still have %d", state.Ballast.Available)
	}
}

func TestTickSurvivesFsStatsFailure(t *testing.T) {
	d, mock, root := testDaemon(t, 50)

	// Add a second mount whose stats always fail.
	mock.SetMounts([]platform.MountPoint{
		{Path: root, Device: "/dev/mock", FsType: "ext4"},
		{Path: "/broken", Device: "/dev/gone", FsType: "ext4"},
	})

	d.Tick(context.Background(), time.Now())

	state, err := ReadStateFile(d.cfg.Paths.StateFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Pressure.Mounts) != 1 {
		t.Fatalf("healthy mount must still be reported, got %d", len(state.Pressure.Mounts))
	}
	if state.Counters.Errors == 0 {
		t.Fatal("the failure must be counted")
	}
	if state.Counters.Scans != 1 {
		t.Fatal("the tick must proceed despite one bad mount")
	}
}

func TestPolicyStartsInObserveAndApprovesNothing(t *testing.T) {
	d, _, root := testDaemon(t, 3) // deep pressure

	// An old, obvious artifact.
	target := filepath.Join(root, "proj", "target", "deps")
	if err := os.MkdirAll(target, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(target, "libx.rlib"), make([]byte, 4096), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-72 * time.Hour)
	if err := os.Chtimes(filepath.Join(root, "proj", "target"), old, old); err != nil {
		t.Fatal(err)
	}

	d.Tick(context.Background(), time.Now())

	if d.policy.Mode().String() != "observe" {
		t.Fatalf("default policy is observe, got %s", d.policy.Mode())
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatal("observe mode must not delete anything")
	}
}

func TestGuardStartsUnknownInDaemon(t *testing.T) {
	d, _, _ := testDaemon(t, 50)
	if got := d.guard.Diagnostics().Status; got != monitor.GuardUnknown {
		t.Fatalf("fresh daemon guard must be Unknown, got %v", got)
	}
}
