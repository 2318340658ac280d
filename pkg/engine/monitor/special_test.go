package monitor

import (
	"testing"
	"time"

	"github.com/DrSkyle/sbh/pkg/platform"
)

func TestDiscoverIncludesTmpfsAndCustomLocations(t *testing.T) {
	p := platform.NewMockPlatform()
	p.SetMounts([]platform.MountPoint{
		{Path: "/dev/shm", Device: "tmpfs", FsType: "tmpfs", IsRAMBacked: true},
		{Path: "/data", Device: "/dev/sdb1", FsType: "xfs"},
	})

	registry, err := DiscoverSpecialLocations(p, []string{"/data/tmp/custom"})
	if err != nil {
		t.Fatal(err)
	}

	var haveShm, haveCustom, haveTmp bool
	for _, l := range registry.All() {
		switch {
		case l.Path == "/dev/shm":
			haveShm = true
			if l.Kind != KindDevShm || l.Priority != 255 {
				t.Errorf("/dev/shm should be highest priority dev_shm, got %v/%d", l.Kind, l.Priority)
			}
		case l.Kind == KindCustom:
			haveCustom = true
		case l.Path == "/tmp":
			haveTmp = true
		}
	}
	if !haveShm || !haveCustom || !haveTmp {
		t.Fatalf("discovery missing entries: shm=%v custom=%v tmp=%v", haveShm, haveCustom, haveTmp)
	}

	// Priority ordering: /dev/shm first.
	if registry.All()[0].Path != "/dev/shm" {
		t.Errorf("registry must be priority-sorted, got %s first", registry.All()[0].Path)
	}
}

func TestRegistryDeduplicatesByPath(t *testing.T) {
	r := NewSpecialLocationRegistry([]SpecialLocation{
		{Path: "/tmp", Kind: KindUserTmp, Priority: 160},
		{Path: "/tmp", Kind: KindCustom, Priority: 140},
	})
	if len(r.All()) != 1 {
		t.Fatalf("duplicate paths must collapse, got %d entries", len(r.All()))
	}
	if r.All()[0].Kind != KindUserTmp {
		t.Error("first registration wins")
	}
}

func TestScanDue(t *testing.T) {
	l := SpecialLocation{Path: "/tmp", ScanInterval: 5 * time.Second}
	now := time.Now()
	if !l.ScanDue(time.Time{}, now) {
		t.Error("never-scanned location is always due")
	}
	if l.ScanDue(now.Add(-2*time.Second), now) {
		t.Error("recently scanned location is not due")
	}
	if !l.ScanDue(now.Add(-6*time.Second), now) {
		t.Error("stale location is due")
	}
}

func TestNeedsAttention(t *testing.T) {
	l := SpecialLocation{Path: "/dev/shm", BufferPct: 20}
	low := platform.FsStats{TotalBytes: 100, AvailableBytes: 10}
	if !l.NeedsAttention(low) {
		t.Error("10% free is below a 20% buffer target")
	}
	ok := platform.FsStats{TotalBytes: 100, AvailableBytes: 50}
	if l.NeedsAttention(ok) {
		t.Error("50% free is fine")
	}
}
