package fleet

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"crewcall-sim/internal/device"
)

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	events := []device.Event{
		{DeviceID: "btn-1", Kind: device.KindPress, Priority: device.PriorityNormal, Timestamp: base},
		{DeviceID: "watch-1", Kind: device.KindSOS, Priority: device.PriorityCritical, Timestamp: base.Add(time.Second)},
	}
	for _, e := range events {
		if err := sink.WriteEvent(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var got []device.Event
	for scanner.Scan() {
		var e device.Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line not valid JSON: %v", err)
		}
		got = append(got, e)
	}
	if len(got) != 2 || got[0].DeviceID != "btn-1" || got[1].Kind != device.KindSOS {
		t.Errorf("replayed events = %+v", got)
	}
}

func TestFileSink_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.WriteEvent(device.Event{DeviceID: "d", Kind: device.KindPress})
		}()
	}
	wg.Wait()
	sink.Close()

	f, _ := os.Open(path)
	defer f.Close()
	scanner := bufio.NewScanner(f)
	lines := 0
	for scanner.Scan() {
		var e device.Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("interleaved write corrupted line %d: %v", lines, err)
		}
		lines++
	}
	if lines != 20 {
		t.Errorf("lines = %d, want 20", lines)
	}
}

type recordingSink struct {
	events []device.Event
	err    error
}

func (s *recordingSink) WriteEvent(e device.Event) error {
	s.events = append(s.events, e)
	return s.err
}

func TestMultiSink(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{err: errors.New("sink b down")}
	c := &recordingSink{}
	m := NewMultiSink(a, nil, b, c)

	err := m.WriteEvent(device.Event{DeviceID: "btn-1", Kind: device.KindPress})
	if err == nil || err.Error() != "sink b down" {
		t.Errorf("err = %v, want first failure", err)
	}
	// Every sink still saw the event.
	if len(a.events) != 1 || len(b.events) != 1 || len(c.events) != 1 {
		t.Errorf("fan-out incomplete: %d %d %d", len(a.events), len(b.events), len(c.events))
	}
}
