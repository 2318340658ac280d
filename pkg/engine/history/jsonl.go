package history

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/DrSkyle/sbh/pkg/core"
)

// JsonlSink appends one JSON object per line. Idempotency is enforced with a
// seen-set loaded from the existing file at open time, so restarts do not
// duplicate replayed events.
type JsonlSink struct {
	mu   sync.Mutex
	file *os.File
	seen map[string]bool
}

// OpenJsonl opens (creating if needed) the log and indexes existing ids.
func OpenJsonl(path string) (*JsonlSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, core.Io(path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, core.Io(path, err)
	}

	sink := &JsonlSink{file: f, seen: make(map[string]bool)}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err == nil && e.ID != "" {
			sink.seen[e.ID] = true
		}
	}
	if err := scanner.Err(); err != nil {
		f.Close()
		return nil, core.Io(path, err)
	}
	return sink, nil
}

func (s *JsonlSink) Append(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[event.ID] {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return core.Serialization("jsonl_event", err)
	}
	if _, err := s.file.Write(append(body, '\n')); err != nil {
		return core.Io(s.file.Name(), err)
	}
	s.seen[event.ID] = true
	return nil
}

func (s *JsonlSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
