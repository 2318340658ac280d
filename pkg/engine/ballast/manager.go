// Package ballast manages the pool of reserved reclaimable files that buys
// the cleaner time when a filesystem fills faster than it can scan.
package ballast

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/DrSkyle/sbh/pkg/config"
	"github.com/DrSkyle/sbh/pkg/core"
)

const (
	filePrefix   = "ballast-"
	fileSuffix   = ".dat"
	checksumSize = sha256.Size
	chunkSize    = 1 << 20
)

// File is one reserved slack file.
type File struct {
	ID        int       `json:"id"`
	Path      string    `json:"path"`
	SizeBytes uint64    `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	Released  bool      `json:"released"`
	Checksum  string    `json:"checksum"`
}

// ProvisionResult reports a provision or replenish pass.
type ProvisionResult struct {
	FilesCreated  int
	BytesReserved uint64
	Skipped       bool // replenish inside the cooldown window
}

// ReleaseResult reports freed slack.
type ReleaseResult struct {
	FilesReleased int
	BytesFreed    uint64
}

// VerifyResult reports pool integrity.
type VerifyResult struct {
	FilesOK        int
	FilesCorrupted int
	Corrupted      []string
}

// Manager owns the ballast directory exclusively. It is not safe for
// concurrent use; the daemon serializes access on its main loop.
type Manager struct {
	dir           string
	cfg           config.BallastConfig
	files         map[int]*File
	lastReplenish time.Time
	now           func() time.Time
}

// NewManager opens (creating if needed) the ballast directory and adopts any
// files a previous run left behind.
func NewManager(dir string, cfg config.BallastConfig) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, core.Io(dir, err)
	}
	m := &Manager{dir: dir, cfg: cfg, files: make(map[int]*File), now: time.Now}
	if err := m.adoptExisting(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) adoptExisting() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return core.Io(m.dir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		var id int
		if _, err := fmt.Sscanf(name, filePrefix+"%04d"+fileSuffix, &id); err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		m.files[id] = &File{
			ID:        id,
			Path:      filepath.Join(m.dir, name),
			SizeBytes: uint64(info.Size()),
			CreatedAt: info.ModTime(),
			Checksum:  fmt.Sprintf("%x", expectedChecksum(id, uint64(info.Size()))),
		}
	}
	return nil
}

// Provision creates ballast files up to the configured count, or to an
// explicit override. Existing live files are kept.
func (m *Manager) Provision(count *int) (ProvisionResult, error) {
	target := m.cfg.FileCount
	if count != nil {
		target = *count
	}

	var result ProvisionResult
	for id := 0; id < target; id++ {
		if f, ok := m.files[id]; ok && !f.Released {
			continue
		}
		f, err := m.createFile(id)
		if err != nil {
			return result, err
		}
		m.files[id] = f
		result.FilesCreated++
		result.BytesReserved += f.SizeBytes
	}
	return result, nil
}

// Release deletes up to n live ballast files, highest id first, and returns
// the bytes handed back to the filesystem.
func (m *Manager) Release(n int) (ReleaseResult, error) {
	var result ReleaseResult
	for _, id := range m.liveIDsDescending() {
		if result.FilesReleased >= n {
			break
		}
		f := m.files[id]
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			return result, core.Io(f.Path, err)
		}
		f.Released = true
		result.FilesReleased++
		result.BytesFreed += f.SizeBytes
	}
	return result, nil
}

// Replenish recreates released files, honoring the cooldown between passes so
// a flapping filesystem does not trigger recreate storms.
func (m *Manager) Replenish(count *int) (ProvisionResult, error) {
	cooldown := time.Duration(m.cfg.ReplenishCooldownMinutes) * time.Minute
	if cooldown > 0 && !m.lastReplenish.IsZero() && m.now().Sub(m.lastReplenish) < cooldown {
		return ProvisionResult{Skipped: true}, nil
	}
	result, err := m.Provision(count)
	if err == nil {
		m.lastReplenish = m.now()
	}
	return result, err
}

// Verify recomputes every live file's checksum against the stored tail.
func (m *Manager) Verify() VerifyResult {
	var result VerifyResult
	for _, id := range m.liveIDsAscending() {
		f := m.files[id]
		if verifyFile(f.Path, f.ID) {
			result.FilesOK++
		} else {
			result.FilesCorrupted++
			result.Corrupted = append(result.Corrupted, f.Path)
		}
	}
	return result
}

// AvailableCount returns the number of live (unreleased) files.
func (m *Manager) AvailableCount() int {
	n := 0
	for _, f := range m.files {
		if !f.Released {
			n++
		}
	}
	return n
}

// ReleasableBytes returns the total size of live files.
func (m *Manager) ReleasableBytes() uint64 {
	var total uint64
	for _, f := range m.files {
		if !f.Released {
			total += f.SizeBytes
		}
	}
	return total
}

// Files returns a snapshot of the pool, id-ascending.
func (m *Manager) Files() []File {
	ids := make([]int, 0, len(m.files))
	for id := range m.files {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]File, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.files[id])
	}
	return out
}

func (m *Manager) liveIDsAscending() []int {
	var ids []int
	for id, f := range m.files {
		if !f.Released {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

func (m *Manager) liveIDsDescending() []int {
	ids := m.liveIDsAscending()
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids
}

// createFile writes the deterministic pattern with the checksum embedded in
// the final 32 bytes, fsyncs, and returns the record.
func (m *Manager) createFile(id int) (*File, error) {
	size := m.cfg.FileSizeBytes
	if size < checksumSize+8 {
		size = checksumSize + 8
	}
	path := filepath.Join(m.dir, fmt.Sprintf("%s%04d%s", filePrefix, id, fileSuffix))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, wrapBallastErr(path, err)
	}
	defer f.Close()

	if err := writePattern(f, id, size); err != nil {
		// A partial file is worse than none: remove the stub.
		_ = os.Remove(path)
		return nil, wrapBallastErr(path, err)
	}
	if err := f.Sync(); err != nil {
		return nil, wrapBallastErr(path, err)
	}

	return &File{
		ID:        id,
		Path:      path,
		SizeBytes: size,
		CreatedAt: m.now(),
		Checksum:  fmt.Sprintf("%x", expectedChecksum(id, size)),
	}, nil
}

// writePattern streams the seeded pattern and appends the checksum tail.
func writePattern(w io.Writer, id int, size uint64) error {
	body := size - checksumSize
	stream := newPatternStream(uint64(id))
	hasher := sha256.New()

	buf := make([]byte, chunkSize)
	var written uint64
	for written < body {
		n := uint64(len(buf))
		if body-written < n {
			n = body - written
		}
		stream.fill(buf[:n])
		hasher.Write(buf[:n])
		if _, err := w.Write(buf[:n]); err != nil {
			return err
		}
		written += n
	}
	_, err := w.Write(hasher.Sum(nil))
	return err
}

// verifyFile recomputes the body hash and compares it to the tail.
func verifyFile(path string, id int) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.Size() < checksumSize+8 {
		return false
	}
	body := info.Size() - checksumSize

	hasher := sha256.New()
	if _, err := io.CopyN(hasher, f, body); err != nil {
		return false
	}
	tail := make([]byte, checksumSize)
	if _, err := io.ReadFull(f, tail); err != nil {
		return false
	}
	return bytes.Equal(hasher.Sum(nil), tail)
}

// expectedChecksum computes the pattern hash a healthy file of this id and
// size carries in its tail.
func expectedChecksum(id int, size uint64) []byte {
	if size < checksumSize+8 {
		return nil
	}
	body := size - checksumSize
	stream := newPatternStream(uint64(id))
	hasher := sha256.New()
	buf := make([]byte, chunkSize)
	var written uint64
	for written < body {
		n := uint64(len(buf))
		if body-written < n {
			n = body - written
		}
		stream.fill(buf[:n])
		hasher.Write(buf[:n])
		written += n
	}
	return hasher.Sum(nil)
}

// patternStream is a 64-bit LCG keyed by the file id; cheap, reproducible,
// and incompressible enough that filesystems cannot dedup the pool away.
type patternStream struct {
	state uint64
}

func newPatternStream(seed uint64) *patternStream {
	return &patternStream{state: seed*2862933555777941757 + 3037000493}
}

func (s *patternStream) fill(buf []byte) {
	i := 0
	for ; i+8 <= len(buf); i += 8 {
		s.state = s.state*6364136223846793005 + 1442695040888963407
		binary.LittleEndian.PutUint64(buf[i:], s.state)
	}
	if i < len(buf) {
		s.state = s.state*6364136223846793005 + 1442695040888963407
		var tail [8]byte
		binary.LittleEndian.PutUint64(tail[:], s.state)
		copy(buf[i:], tail[:])
	}
}

// IsNoSpace reports whether err was caused by filesystem exhaustion, which
// the installer treats as non-fatal.
func IsNoSpace(err error) bool {
	return errors.Is(err, syscall.ENOSPC)
}

func wrapBallastErr(path string, err error) error {
	if errors.Is(err, os.ErrPermission) {
		return core.PermissionDenied(path)
	}
	return core.Io(path, err)
}
