package monitor

import (
	"sort"
	"time"

	"github.com/DrSkyle/sbh/pkg/platform"
)

// SpecialKind classifies RAM-backed and user temp locations that get tighter
// buffer targets and faster scan cadence than ordinary mounts.
type SpecialKind int

const (
	KindTmpfs SpecialKind = iota
	KindDevShm
	KindRamfs
	KindUserTmp
	KindCustom
)

func (k SpecialKind) String() string {
	switch k {
	case KindDevShm:
		return "dev_shm"
	case KindRamfs:
		return "ramfs"
	case KindUserTmp:
		return "user_tmp"
	case KindCustom:
		return "custom"
	default:
		return "tmpfs"
	}
}

// SpecialLocation is one fast-scan location with its buffer target.
type SpecialLocation struct {
	Path         string
	Kind         SpecialKind
	BufferPct    float64
	ScanInterval time.Duration
	Priority     uint8
}

// NeedsAttention reports whether the location is below its buffer target.
func (l SpecialLocation) NeedsAttention(stats platform.FsStats) bool {
	return stats.FreePct() < l.BufferPct
}

// ScanDue reports whether the per-location cadence has elapsed.
func (l SpecialLocation) ScanDue(lastScan time.Time, now time.Time) bool {
	return lastScan.IsZero() || now.Sub(lastScan) >= l.ScanInterval
}

// SpecialLocationRegistry holds the deduplicated, priority-ordered set.
type SpecialLocationRegistry struct {
	locations []SpecialLocation
}

// NewSpecialLocationRegistry deduplicates by path (first wins) and sorts by
// descending priority.
func NewSpecialLocationRegistry(locations []SpecialLocation) *SpecialLocationRegistry {
	seen := make(map[string]bool, len(locations))
	unique := make([]SpecialLocation, 0, len(locations))
	for _, l := range locations {
		if !seen[l.Path] {
			seen[l.Path] = true
			unique = append(unique, l)
		}
	}
	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Priority > unique[j].Priority
	})
	return &SpecialLocationRegistry{locations: unique}
}

// DiscoverSpecialLocations builds the registry from the mount table plus any
// custom paths from configuration. /tmp is always present even when it is not
// its own mount.
func DiscoverSpecialLocations(p platform.Platform, customPaths []string) (*SpecialLocationRegistry, error) {
	mounts, err := p.MountPoints()
	if err != nil {
		return nil, err
	}

	var locations []SpecialLocation
	for _, mount := range mounts {
		if !mount.IsRAMBacked {
			continue
		}
		var kind SpecialKind
		switch {
		case mount.Path == "/dev/shm":
			kind = KindDevShm
		case mount.FsType == "ramfs":
			kind = KindRamfs
		default:
			kind = KindTmpfs
		}
		loc := SpecialLocation{Path: mount.Path, Kind: kind}
		switch kind {
		case KindDevShm:
			loc.BufferPct, loc.ScanInterval, loc.Priority = 20, 3*time.Second, 255
		case KindRamfs:
			loc.BufferPct, loc.ScanInterval, loc.Priority = 18, 4*time.Second, 220
		default:
			loc.BufferPct, loc.ScanInterval, loc.Priority = 15, 5*time.Second, 200
		}
		locations = append(locations, loc)
	}

	for _, path := range customPaths {
		locations = append(locations, SpecialLocation{
			Path:         path,
			Kind:         KindCustom,
			BufferPct:    15,
			ScanInterval: 5 * time.Second,
			Priority:     140,
		})
	}

	hasTmp := false
	for _, l := range locations {
		if l.Path == "/tmp" {
			hasTmp = true
			break
		}
	}
	if !hasTmp {
		locations = append(locations, SpecialLocation{
			Path:         "/tmp",
			Kind:         KindUserTmp,
			BufferPct:    15,
			ScanInterval: 5 * time.Second,
			Priority:     160,
		})
	}

	return NewSpecialLocationRegistry(locations), nil
}

// All returns the locations in priority order.
func (r *SpecialLocationRegistry) All() []SpecialLocation { return r.locations }
