package ballast

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DrSkyle/sbh/pkg/config"
)

func testConfig() config.BallastConfig {
	return config.BallastConfig{
		FileCount:                3,
		FileSizeBytes:            4096,
		ReplenishCooldownMinutes: 0,
		AutoProvision:            true,
	}
}

func TestBallastLifecycle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ballast")
	m, err := NewManager(dir, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	prov, err := m.Provision(nil)
	if err != nil {
		t.Fatal(err)
	}
	if prov.FilesCreated != 3 {
		t.Fatalf("should create 3 ballast files, got %d", prov.FilesCreated)
	}
	if m.AvailableCount() != 3 {
		t.Fatalf("available should be 3, got %d", m.AvailableCount())
	}
	if m.ReleasableBytes() != 3*4096 {
		t.Fatalf("releasable bytes wrong: %d", m.ReleasableBytes())
	}

	verify := m.Verify()
	if verify.FilesOK != 3 || verify.FilesCorrupted != 0 {
		t.Fatalf("fresh pool must verify clean, got %+v", verify)
	}

	release, err := m.Release(2)
	if err != nil {
		t.Fatal(err)
	}
	if release.FilesReleased != 2 {
		t.Fatalf("should release 2 files, got %d", release.FilesReleased)
	}
	if release.BytesFreed != 8192 {
		t.Fatalf("releasing 2x4KiB frees 8192 bytes, got %d", release.BytesFreed)
	}
	if m.AvailableCount() != 1 {
		t.Fatalf("one file should remain, got %d", m.AvailableCount())
	}

	replenish, err := m.Replenish(nil)
	if err != nil {
		t.Fatal(err)
	}
	if replenish.FilesCreated != 2 {
		t.Fatalf("replenish should recreate 2 files, got %d", replenish.FilesCreated)
	}
	if m.AvailableCount() != 3 {
		t.Fatalf("pool should be back to 3, got %d", m.AvailableCount())
	}
}

func TestBallastFilesExistOnDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ballast")
	m, err := NewManager(dir, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Provision(nil); err != nil {
		t.Fatal(err)
	}
	for _, f := range m.Files() {
		info, err := os.Stat(f.Path)
		if err != nil {
			t.Fatalf("live ballast file must exist: %v", err)
		}
		if uint64(info.Size()) != f.SizeBytes {
			t.Fatalf("size mismatch: %d != %d", info.Size(), f.SizeBytes)
		}
	}
}

func TestVerifyDetectsCorruption(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ballast")
	m, err := NewManager(dir, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Provision(nil); err != nil {
		t.Fatal(err)
	}

	victim := m.Files()[1]
	f, err := os.OpenFile(victim.Path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteAt([]byte("corrupt"), 100); err != nil {
		t.Fatal(err)
	}
	f.Close()

	verify := m.Verify()
	if verify.FilesCorrupted != 1 {
		t.Fatalf("expected 1 corrupted file, got %+v", verify)
	}
	if verify.FilesOK != 2 {
		t.Fatalf("expected 2 intact files, got %+v", verify)
	}
	if len(verify.Corrupted) != 1 || verify.Corrupted[0] != victim.Path {
		t.Fatalf("corrupted path should be named, got %v", verify.Corrupted)
	}
}

func TestReplenishHonorsCooldown(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ballast")
	cfg := testConfig()
	cfg.ReplenishCooldownMinutes = 30
	m, err := NewManager(dir, cfg)
	if err != nil {
		t.Fatal(err)
	}

	clock := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return clock }

	if _, err := m.Provision(nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Release(1); err != nil {
		t.Fatal(err)
	}

	first, err := m.Replenish(nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.Skipped || first.FilesCreated != 1 {
		t.Fatalf("first replenish should run, got %+v", first)
	}

	if _, err := m.Release(1); err != nil {
		t.Fatal(err)
	}
	second, err := m.Replenish(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Skipped {
		t.Fatal("back-to-back replenish must be skipped inside the cooldown")
	}

	clock = clock.Add(31 * time.Minute)
	third, err := m.Replenish(nil)
	if err != nil {
		t.Fatal(err)
	}
	if third.Skipped || third.FilesCreated != 1 {
		t.Fatalf("replenish after cooldown should run, got %+v", third)
	}
}

func TestManagerAdoptsExistingPool(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ballast")
	m, err := NewManager(dir, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Provision(nil); err != nil {
		t.Fatal(err)
	}

	// A fresh manager over the same directory sees the pool.
	m2, err := NewManager(dir, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if m2.AvailableCount() != 3 {
		t.Fatalf("existing pool should be adopted, got %d", m2.AvailableCount())
	}
	verify := m2.Verify()
	if verify.FilesOK != 3 {
		t.Fatalf("adopted pool should verify, got %+v", verify)
	}

	// Provision over an intact pool creates nothing.
	prov, err := m2.Provision(nil)
	if err != nil {
		t.Fatal(err)
	}
	if prov.FilesCreated != 0 {
		t.Fatalf("intact pool needs no new files, got %d", prov.FilesCreated)
	}
}
