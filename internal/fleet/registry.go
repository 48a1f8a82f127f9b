package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"crewcall-sim/internal/device"
	"crewcall-sim/internal/logging"
	"crewcall-sim/internal/transport"
)

// ErrNotFound is returned when a device id is not registered.
var ErrNotFound = errors.New("device not found")

// Store persists device records in the external relational store.
// A failed upsert never blocks the in-memory device; the registry
// surfaces it as a partial-success warning instead.
type Store interface {
	UpsertDevice(ctx context.Context, cfg device.Config, status device.Status) error
}

// Registry is the authoritative map from device id to live simulator,
// backing the control surface.
type Registry struct {
	client transport.Client
	topics transport.Topics
	store  Store
	log    *slog.Logger
	sink   device.EventSink

	mu      sync.RWMutex
	devices map[string]*device.Simulator
}

// NewRegistry builds an empty registry. store may be nil when no
// durable persistence is configured.
func NewRegistry(client transport.Client, topics transport.Topics, store Store, logger *slog.Logger) *Registry {
	return &Registry{
		client:  client,
		topics:  topics,
		store:   store,
		log:     logging.Component(logger, "registry"),
		devices: make(map[string]*device.Simulator),
	}
}

// SetEventSink attaches a sink passed to devices created later.
func (r *Registry) SetEventSink(sink device.EventSink) {
	r.sink = sink
}

// CreateParams mirrors the control-surface create-device contract.
type CreateParams struct {
	Type           string        `json:"type"`
	Name           string        `json:"name"`
	Room           string        `json:"room"`
	Site           string        `json:"site,omitempty"`
	UID            string        `json:"uid,omitempty"`
	InitialBattery float64       `json:"initial_battery,omitempty"`
	InitialSignal  float64       `json:"initial_signal,omitempty"`
	Additional     device.Config `json:"additional_config,omitempty"`
	SaveToDatabase bool          `json:"save_to_database,omitempty"`
}

// Summary is the device view returned to the control surface.
type Summary struct {
	UID    string        `json:"uid"`
	Name   string        `json:"name"`
	Type   device.Type   `json:"type"`
	Room   string        `json:"room"`
	Site   string        `json:"site,omitempty"`
	State  device.State  `json:"state"`
	Status device.Status `json:"status"`
}

// CreateResult reports a created device plus an optional partial-success
// warning (e.g. the durable upsert failed).
type CreateResult struct {
	Device  Summary `json:"device"`
	Warning string  `json:"warning,omitempty"`
}

// Create validates, builds, starts, and registers a new device.
// Configuration errors (unknown type or template, duplicate id) are
// returned synchronously and nothing is registered.
func (r *Registry) Create(ctx context.Context, p CreateParams) (CreateResult, error) {
	typ, err := device.ParseType(strings.ToLower(p.Type))
	if err != nil {
		return CreateResult{}, err
	}
	uid := p.UID
	if uid == "" {
		uid = fmt.Sprintf("%s-%s", typ, uuid.New().String()[:8])
	}

	override := p.Additional
	override.ID = uid
	override.Type = typ
	if p.Name != "" {
		override.Name = p.Name
	}
	if p.Room != "" {
		override.Room = p.Room
	}
	if p.Site != "" {
		override.Site = p.Site
	}
	if p.InitialBattery > 0 {
		override.InitialBattery = p.InitialBattery
	}
	if p.InitialSignal > 0 {
		override.InitialSignal = p.InitialSignal
	}
	cfg := device.Merge(device.DefaultConfig(typ), override)

	sim, err := device.New(cfg, r.client, r.topics, r.log)
	if err != nil {
		return CreateResult{}, err
	}
	if r.sink != nil {
		sim.SetEventSink(r.sink)
	}

	r.mu.Lock()
	if _, exists := r.devices[uid]; exists {
		r.mu.Unlock()
		return CreateResult{}, fmt.Errorf("device %s already exists", uid)
	}
	r.devices[uid] = sim
	r.mu.Unlock()

	if err := sim.Start(); err != nil {
		r.mu.Lock()
		delete(r.devices, uid)
		r.mu.Unlock()
		return CreateResult{}, fmt.Errorf("start device %s: %w", uid, err)
	}

	result := CreateResult{Device: r.summary(sim)}
	if p.SaveToDatabase && r.store != nil {
		if err := r.store.UpsertDevice(ctx, cfg, sim.Status()); err != nil {
			r.log.Warn("durable upsert failed, device active in memory only",
				"device_id", uid, "err", err)
			result.Warning = fmt.Sprintf("device active but not persisted: %v", err)
		}
	}
	r.log.Info("device created", "device_id", uid, "device_type", typ)
	return result, nil
}

func (r *Registry) summary(sim *device.Simulator) Summary {
	cfg := sim.Config()
	return Summary{
		UID:    cfg.ID,
		Name:   cfg.Name,
		Type:   cfg.Type,
		Room:   cfg.Room,
		Site:   cfg.Site,
		State:  sim.State(),
		Status: sim.Status(),
	}
}

// Get returns the live simulator for uid.
func (r *Registry) Get(uid string) (*device.Simulator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sim, ok := r.devices[uid]
	return sim, ok
}

// List returns summaries for every registered device, sorted by uid.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	sims := make([]*device.Simulator, 0, len(r.devices))
	for _, sim := range r.devices {
		sims = append(sims, sim)
	}
	r.mu.RUnlock()

	out := make([]Summary, 0, len(sims))
	for _, sim := range sims {
		out = append(out, r.summary(sim))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// Perform routes a control-surface action to the device.
func (r *Registry) Perform(uid, action string, data map[string]any) (device.Status, error) {
	sim, ok := r.Get(uid)
	if !ok {
		return device.Status{}, ErrNotFound
	}
	if err := sim.Perform(action, data); err != nil {
		return device.Status{}, err
	}
	return sim.Status(), nil
}

// RecentEvents returns up to limit of the device's newest events.
func (r *Registry) RecentEvents(uid string, limit int) ([]device.Event, error) {
	sim, ok := r.Get(uid)
	if !ok {
		return nil, ErrNotFound
	}
	return sim.Events(limit), nil
}

// Remove stops and forgets one device.
func (r *Registry) Remove(uid string) error {
	r.mu.Lock()
	sim, ok := r.devices[uid]
	if ok {
		delete(r.devices, uid)
	}
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if err := sim.Stop(); err != nil {
		r.log.Warn("stop during remove failed", "device_id", uid, "err", err)
	}
	r.log.Info("device removed", "device_id", uid)
	return nil
}

// RemoveAll stops and forgets every device.
func (r *Registry) RemoveAll() int {
	r.mu.Lock()
	sims := r.devices
	r.devices = make(map[string]*device.Simulator)
	r.mu.Unlock()

	for uid, sim := range sims {
		if err := sim.Stop(); err != nil {
			r.log.Warn("stop during remove-all failed", "device_id", uid, "err", err)
		}
	}
	return len(sims)
}

// FleetStatistics summarizes the registered devices.
type FleetStatistics struct {
	Total      int                 `json:"total"`
	Online     int                 `json:"online"`
	ByType     map[device.Type]int `json:"by_type"`
	AvgBattery float64             `json:"avg_battery"`
	AvgSignal  float64             `json:"avg_signal"`
}

// Stats computes aggregate statistics across all registered devices.
func (r *Registry) Stats() FleetStatistics {
	summaries := r.List()
	stats := FleetStatistics{ByType: make(map[device.Type]int)}
	for _, s := range summaries {
		stats.Total++
		stats.ByType[s.Type]++
		if s.Status.Online {
			stats.Online++
		}
		stats.AvgBattery += s.Status.Battery
		stats.AvgSignal += s.Status.Signal
	}
	if stats.Total > 0 {
		stats.AvgBattery /= float64(stats.Total)
		stats.AvgSignal /= float64(stats.Total)
	}
	return stats
}

// Failure reports one device in an injected fault state.
type Failure struct {
	DeviceID string `json:"device_id"`
	Failure  string `json:"failure"`
}

// ActiveFailures lists devices currently holding an injected fault.
func (r *Registry) ActiveFailures() []Failure {
	var out []Failure
	for _, s := range r.List() {
		if f := s.Status.ActiveFailure; f != "" {
			out = append(out, Failure{DeviceID: s.UID, Failure: f})
		}
	}
	return out
}
