package fleet

import (
	"encoding/json"
	"os"
	"sync"

	"crewcall-sim/internal/device"
)

// FileSink appends device events to a JSONL file. Devices emit
// concurrently, so writes are serialized.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileSink creates (or truncates) the event log file.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FileSink{file: f, enc: json.NewEncoder(f)}, nil
}

// WriteEvent logs a single event.
func (f *FileSink) WriteEvent(e device.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enc.Encode(e)
}

// Close closes the underlying file.
func (f *FileSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file.Close()
}

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	sinks []device.EventSink
}

// NewMultiSink creates a fan-out sink. Nil entries are skipped.
func NewMultiSink(sinks ...device.EventSink) *MultiSink {
	out := make([]device.EventSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &MultiSink{sinks: out}
}

// WriteEvent sends the event to every sink. The first error is
// returned after all sinks have been tried.
func (m *MultiSink) WriteEvent(e device.Event) error {
	var first error
	for _, s := range m.sinks {
		if err := s.WriteEvent(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
