// Package platform abstracts filesystem capacity queries and mount
// enumeration behind a capability interface so the decision plane never
// touches syscalls directly.
package platform

import (
	"runtime"
	"time"

	"github.com/DrSkyle/sbh/pkg/core"
)

// FsStats is a point-in-time capacity snapshot for one mount.
type FsStats struct {
	Path           string
	TotalBytes     uint64
	FreeBytes      uint64
	AvailableBytes uint64
	FsType         string
	ObservedAt     time.Time
}

// FreePct returns available space as a percentage of total, 0 for empty
// filesystems.
func (s FsStats) FreePct() float64 {
	if s.TotalBytes == 0 {
		return 0
	}
	return 100.0 * float64(s.AvailableBytes) / float64(s.TotalBytes)
}

// FreeFraction returns available/total in [0,1].
func (s FsStats) FreeFraction() float64 {
	if s.TotalBytes == 0 {
		return 0
	}
	return float64(s.AvailableBytes) / float64(s.TotalBytes)
}

// MountPoint describes one entry of the mount table.
type MountPoint struct {
	Path        string
	Device      string
	FsType      string
	IsRAMBacked bool
}

// MemoryInfo is the host memory snapshot used by the state file.
type MemoryInfo struct {
	TotalBytes     uint64
	AvailableBytes uint64
	SwapTotalBytes uint64
	SwapFreeBytes  uint64
}

// Platform is the capability set the core consumes. Implementations must be
// safe for concurrent use.
type Platform interface {
	// FsStats returns capacity numbers for the filesystem containing path.
	FsStats(path string) (FsStats, error)
	// MountPoints enumerates real, block- or RAM-backed mounts.
	MountPoints() ([]MountPoint, error)
	// IsRAMBacked reports whether path sits on tmpfs/ramfs or under /dev/shm.
	IsRAMBacked(path string) (bool, error)
	// MemoryInfo returns the host memory snapshot.
	MemoryInfo() (MemoryInfo, error)
}

// New returns the platform implementation for the current OS.
func New() (Platform, error) {
	if runtime.GOOS == "linux" {
		return NewLinuxPlatform(), nil
	}
	return nil, core.UnsupportedPlatform(runtime.GOOS)
}
