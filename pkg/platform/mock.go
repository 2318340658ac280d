package platform

import (
	"sync"
	"time"

	"github.com/DrSkyle/sbh/pkg/core"
)

// MockPlatform is a scriptable Platform for tests and mock mode.
type MockPlatform struct {
	mu     sync.RWMutex
	stats  map[string]FsStats
	mounts []MountPoint
	memory MemoryInfo
}

// NewMockPlatform starts with no mounts; add them with SetStats/SetMounts.
func NewMockPlatform() *MockPlatform {
	return &MockPlatform{stats: make(map[string]FsStats)}
}

// SetStats scripts the response for FsStats(path).
func (m *MockPlatform) SetStats(path string, total, available uint64, fsType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[path] = FsStats{
		Path:           path,
		TotalBytes:     total,
		FreeBytes:      available,
		AvailableBytes: available,
		FsType:         fsType,
		ObservedAt:     time.Now(),
	}
}

// SetMounts scripts the mount table.
func (m *MockPlatform) SetMounts(mounts []MountPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mounts = append([]MountPoint(nil), mounts...)
}

// SetMemory scripts the memory snapshot.
func (m *MockPlatform) SetMemory(info MemoryInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memory = info
}

func (m *MockPlatform) FsStats(path string) (FsStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.stats[path]; ok {
		return s, nil
	}
	// Fall back to the longest mount prefix, mirroring statfs semantics.
	var best string
	for p := range m.stats {
		if core.IsPathWithin(path, p) && len(p) > len(best) {
			best = p
		}
	}
	if best != "" {
		return m.stats[best], nil
	}
	return FsStats{}, core.FsStats(path, nil)
}

func (m *MockPlatform) MountPoints() ([]MountPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]MountPoint(nil), m.mounts...), nil
}

func (m *MockPlatform) IsRAMBacked(path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mp := range m.mounts {
		if mp.Path == path {
			return mp.IsRAMBacked, nil
		}
	}
	if s, ok := m.stats[path]; ok {
		return s.FsType == "tmpfs" || s.FsType == "ramfs", nil
	}
	return false, nil
}

func (m *MockPlatform) MemoryInfo() (MemoryInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.memory, nil
}
