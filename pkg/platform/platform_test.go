package platform

import (
	"testing"
)

func TestFsStatsFreePct(t *testing.T) {
	s := FsStats{TotalBytes: 1000, AvailableBytes: 250}
	if got := s.FreePct(); got != 25.0 {
		t.Errorf("expected 25%%, got %f", got)
	}
	if got := s.FreeFraction(); got != 0.25 {
		t.Errorf("expected 0.25, got %f", got)
	}
	empty := FsStats{}
	if empty.FreePct() != 0 {
		t.Error("zero-total filesystems report 0% free")
	}
}

func TestMockPlatformPrefixLookup(t *testing.T) {
	m := NewMockPlatform()
	m.SetStats("/", 100, 50, "ext4")
	m.SetStats("/data", 1000, 100, "xfs")

	s, err := m.FsStats("/data/projects/x")
	if err != nil {
		t.Fatal(err)
	}
	if s.FsType != "xfs" {
		t.Errorf("longest mount prefix should win, got %s", s.FsType)
	}

	s, err = m.FsStats("/var/log")
	if err != nil {
		t.Fatal(err)
	}
	if s.FsType != "ext4" {
		t.Errorf("root mount should catch everything else, got %s", s.FsType)
	}
}

func TestMockPlatformRAMBacked(t *testing.T) {
	m := NewMockPlatform()
	m.SetMounts([]MountPoint{
		{Path: "/dev/shm", FsType: "tmpfs", IsRAMBacked: true},
		{Path: "/data", FsType: "xfs"},
	})
	ram, err := m.IsRAMBacked("/dev/shm")
	if err != nil || !ram {
		t.Errorf("expected /dev/shm RAM-backed, got %v/%v", ram, err)
	}
	ram, err = m.IsRAMBacked("/data")
	if err != nil || ram {
		t.Errorf("expected /data not RAM-backed, got %v/%v", ram, err)
	}
}
