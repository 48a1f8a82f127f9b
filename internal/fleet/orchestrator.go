// Package fleet manages many device simulators: bulk start/stop with
// staggered timing, scripted load and lifecycle tests, and the device
// registry consumed by the control surface.
package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"crewcall-sim/internal/device"
	"crewcall-sim/internal/logging"
	"crewcall-sim/internal/transport"
)

// Spec asks the orchestrator for count devices of one type. Config
// fields override the type defaults; Template applies to generic
// devices.
type Spec struct {
	Type     device.Type   `json:"device_type" yaml:"device_type"`
	Count    int           `json:"count" yaml:"count"`
	Config   device.Config `json:"config" yaml:"config"`
	Template string        `json:"template,omitempty" yaml:"template"`
}

// Options tunes fleet-wide behavior.
type Options struct {
	// MaxDevices caps the number of tracked instances. Creation beyond
	// the ceiling is skipped with a warning.
	MaxDevices int
	// StartupDelay staggers the i-th start by i times this value.
	StartupDelay time.Duration
	// ShutdownDelay staggers stops the same way.
	ShutdownDelay time.Duration
	Topics        transport.Topics
}

func (o Options) withDefaults() Options {
	if o.MaxDevices <= 0 {
		o.MaxDevices = 1000
	}
	if o.StartupDelay <= 0 {
		o.StartupDelay = 100 * time.Millisecond
	}
	if o.ShutdownDelay <= 0 {
		o.ShutdownDelay = 50 * time.Millisecond
	}
	if o.Topics.Base == "" {
		o.Topics = transport.NewTopics("")
	}
	return o
}

// Instance is a point-in-time view of one tracked simulator.
type Instance struct {
	ID        string       `json:"id"`
	Type      device.Type  `json:"type"`
	State     device.State `json:"state"`
	StartTime time.Time    `json:"start_time,omitzero"`
	Error     string       `json:"error,omitempty"`
}

// tracked pairs a simulator with its creation error. sim is nil when
// construction itself failed; the entry stays visible in error state.
type tracked struct {
	id  string
	typ device.Type
	sim *device.Simulator
	err error
}

// Orchestrator owns the fleet of simulator instances.
type Orchestrator struct {
	opts   Options
	client transport.Client
	log    *slog.Logger
	sink   device.EventSink

	// opMu serializes fleet-wide start/stop sweeps; mu guards the map
	// for concurrent readers (metrics, control surface).
	opMu      sync.Mutex
	mu        sync.RWMutex
	instances map[string]*tracked

	seq   int
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// NewOrchestrator builds an empty fleet over the given transport.
func NewOrchestrator(client transport.Client, opts Options, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		opts:      opts.withDefaults(),
		client:    client,
		log:       logging.Component(logger, "orchestrator"),
		instances: make(map[string]*tracked),
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// SetEventSink attaches a sink passed to every simulator created later.
func (o *Orchestrator) SetEventSink(sink device.EventSink) {
	o.sink = sink
}

// StartSimulators creates and starts the requested devices. Starts are
// staggered by StartupDelay within the call; a per-instance failure is
// recorded and the batch continues. Returns the ids it attempted.
func (o *Orchestrator) StartSimulators(ctx context.Context, specs []Spec) []string {
	return o.startSimulators(ctx, specs, o.opts.StartupDelay)
}

func (o *Orchestrator) startSimulators(ctx context.Context, specs []Spec, stagger time.Duration) []string {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	var ids []string
	first := true
	for _, spec := range specs {
		for i := 0; i < spec.Count; i++ {
			if ctx.Err() != nil {
				o.log.Warn("start batch interrupted", "err", ctx.Err())
				return ids
			}
			if o.trackedCount() >= o.opts.MaxDevices {
				o.log.Warn("device ceiling reached, skipping remaining creations",
					"max_devices", o.opts.MaxDevices)
				return ids
			}
			if !first {
				o.sleep(ctx, stagger)
			}
			first = false
			id := o.nextID(spec.Type)
			ids = append(ids, id)
			o.createAndStart(id, spec)
		}
	}
	return ids
}

func (o *Orchestrator) trackedCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.instances)
}

// nextID builds a type-prefixed, time-based, zero-padded id.
func (o *Orchestrator) nextID(t device.Type) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seq++
	return fmt.Sprintf("%s-%d-%04d", t, o.now().UnixMilli(), o.seq)
}

func (o *Orchestrator) createAndStart(id string, spec Spec) {
	cfg := device.Merge(device.DefaultConfig(spec.Type), spec.Config)
	cfg.ID = id
	cfg.Type = spec.Type
	if spec.Template != "" {
		cfg.Template = spec.Template
	}

	entry := &tracked{id: id, typ: spec.Type}
	sim, err := device.New(cfg, o.client, o.opts.Topics, o.log)
	if err != nil {
		entry.err = err
		o.log.Error("device creation failed", "device_id", id, "err", err)
		o.track(entry)
		return
	}
	if o.sink != nil {
		sim.SetEventSink(o.sink)
	}
	entry.sim = sim
	o.track(entry)
	if err := sim.Start(); err != nil {
		entry.err = err
		o.log.Error("device start failed", "device_id", id, "err", err)
	}
}

func (o *Orchestrator) track(entry *tracked) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.instances[entry.id] = entry
}

// StopAll stops every tracked instance with the shutdown stagger, waits
// for all stops, and clears the fleet. Safe to call on an empty fleet.
func (o *Orchestrator) StopAll(ctx context.Context) {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	o.mu.RLock()
	entries := make([]*tracked, 0, len(o.instances))
	for _, e := range o.instances {
		entries = append(entries, e)
	}
	o.mu.RUnlock()
	if len(entries) == 0 {
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	var wg sync.WaitGroup
	for i, entry := range entries {
		if entry.sim == nil {
			continue
		}
		if i > 0 {
			o.sleep(ctx, o.opts.ShutdownDelay)
		}
		wg.Add(1)
		go func(sim *device.Simulator, id string) {
			defer wg.Done()
			if err := sim.Stop(); err != nil {
				o.log.Error("device stop failed", "device_id", id, "err", err)
			}
		}(entry.sim, entry.id)
	}
	wg.Wait()

	o.mu.Lock()
	o.instances = make(map[string]*tracked)
	o.mu.Unlock()
	o.log.Info("fleet stopped", "count", len(entries))
}

// Status returns a snapshot of every tracked instance, sorted by id.
func (o *Orchestrator) Status() []Instance {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Instance, 0, len(o.instances))
	for _, e := range o.instances {
		inst := Instance{ID: e.id, Type: e.typ}
		switch {
		case e.sim == nil:
			inst.State = device.StateError
			inst.Error = e.err.Error()
		default:
			inst.State = e.sim.State()
			inst.StartTime = e.sim.StartTime()
			if err := e.sim.Err(); err != nil {
				inst.Error = err.Error()
			}
		}
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Statistics aggregates instance counts by state and device type.
type Statistics struct {
	Total   int                  `json:"total"`
	ByState map[device.State]int `json:"by_state"`
	ByType  map[device.Type]int  `json:"by_type"`
}

// GetStatistics computes fleet-wide aggregates.
func (o *Orchestrator) GetStatistics() Statistics {
	stats := Statistics{
		ByState: make(map[device.State]int),
		ByType:  make(map[device.Type]int),
	}
	for _, inst := range o.Status() {
		stats.Total++
		stats.ByState[inst.State]++
		stats.ByType[inst.Type]++
	}
	return stats
}
