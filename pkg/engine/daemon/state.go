package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/DrSkyle/sbh/pkg/core"
)

// MountState is the per-mount slice of the state file.
type MountState struct {
	Path    string  `json:"path"`
	FreePct float64 `json:"free_pct"`
	Level   string  `json:"level"`
	RateBps float64 `json:"rate_bps"`
}

// RateState is the per-mount estimator snapshot exposed to external readers.
type RateState struct {
	BytesPerSec float64 `json:"bytes_per_sec"`
}

// StateFile is the JSON document the daemon writes every tick. External
// observers (status command, dashboards) read it; the daemon never reads it
// back.
type StateFile struct {
	Version       string    `json:"version"`
	PID           int       `json:"pid"`
	StartedAt     time.Time `json:"started_at"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	LastUpdated   time.Time `json:"last_updated"`
	Pressure      struct {
		Overall string       `json:"overall"`
		Mounts  []MountState `json:"mounts"`
	} `json:"pressure"`
	Ballast struct {
		Available int `json:"available"`
		Total     int `json:"total"`
		Released  int `json:"released"`
	} `json:"ballast"`
	LastScan struct {
		At         time.Time `json:"at"`
		Candidates int       `json:"candidates"`
		Deleted    int       `json:"deleted"`
	} `json:"last_scan"`
	Counters struct {
		Scans            uint64 `json:"scans"`
		Deletions        uint64 `json:"deletions"`
		BytesFreed       uint64 `json:"bytes_freed"`
		Errors           uint64 `json:"errors"`
		DroppedLogEvents uint64 `json:"dropped_log_events"`
	} `json:"counters"`
	MemoryRSSBytes uint64               `json:"memory_rss_bytes"`
	Rates          map[string]RateState `json:"rates"`
}

// WriteAtomic persists the state with write-to-temp + rename so readers never
// observe a torn document.
func (s *StateFile) WriteAtomic(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return core.Io(path, err)
	}
	body, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return core.Serialization("state_file", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".state-*.tmp")
	if err != nil {
		return core.Io(path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return core.Io(tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return core.Io(tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return core.Io(tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return core.Io(path, err)
	}
	return nil
}

// ReadStateFile loads a state document written by a (possibly other) daemon
// process.
func ReadStateFile(path string) (*StateFile, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Io(path, err)
	}
	var state StateFile
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, core.Serialization("state_file", err)
	}
	return &state, nil
}

// currentRSSBytes reads the resident set from /proc/self/statm; zero when the
// platform does not expose it.
func currentRSSBytes() uint64 {
	body, err := os.ReadFile("/proc/self/statm")
	if err != nil {
		return 0
	}
	var size, rss uint64
	if n, _ := parseTwoFields(string(body), &size, &rss); n < 2 {
		return 0
	}
	return rss * uint64(os.Getpagesize())
}

func parseTwoFields(s string, a, b *uint64) (int, error) {
	n := 0
	cur := uint64(0)
	inNum := false
	targets := []*uint64{a, b}
	for _, c := range s {
		if c >= '0' && c <= '9' {
			cur = cur*10 + uint64(c-'0')
			inNum = true
			continue
		}
		if inNum {
			if n < len(targets) {
				*targets[n] = cur
			}
			n++
			cur = 0
			inNum = false
			if n >= len(targets) {
				break
			}
		}
	}
	return n, nil
}
