package device

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Mesh roles assigned by form_mesh.
const (
	MeshRoleCoordinator = "coordinator"
	MeshRoleRouter      = "router"
	MeshRoleEndDevice   = "end_device"
)

// repeaterBehavior drives a mesh repeater: a registry of child devices,
// relay forwarding, and simulated congestion, signal, and firmware
// faults.
type repeaterBehavior struct {
	mu       sync.Mutex
	children map[string]time.Time
	role     string
	hopCount int
	peers    []string
	firmware string
	busy     bool
}

func newRepeaterBehavior() *repeaterBehavior {
	return &repeaterBehavior{
		children: make(map[string]time.Time),
		role:     MeshRoleEndDevice,
		firmware: "1.0.0",
	}
}

func (r *repeaterBehavior) start(d *Simulator) {
	d.mutateStatus(func(s *Status) { s.Firmware = r.firmware })
	r.scheduleMeshTick(d)
}

func (r *repeaterBehavior) scheduleMeshTick(d *Simulator) {
	interval := d.cfg.MeshUpdateInterval
	if interval <= 0 {
		interval = time.Minute
	}
	d.schedule(interval, func() {
		r.meshTick(d)
		r.scheduleMeshTick(d)
	})
}

// meshTick jitters the repeater signal and publishes its mesh position.
func (r *repeaterBehavior) meshTick(d *Simulator) {
	d.mutateStatus(func(s *Status) {
		s.Signal += float64(d.randIntN(11) - 5)
	})
	r.mu.Lock()
	payload := MeshPayload{
		Role:     r.role,
		HopCount: r.hopCount,
		Peers:    append([]string(nil), r.peers...),
		Children: len(r.children),
	}
	r.mu.Unlock()
	d.emit(d.topics.Status(d.cfg.ID), KindMeshUpdate, PriorityLow, payload)
}

func (r *repeaterBehavior) handleCommand(d *Simulator, cmd string, params map[string]any) error {
	if r.isBusy() {
		return errors.New("firmware update in progress")
	}
	switch cmd {
	case "relay":
		return r.relay(d, params)
	case "register_child":
		return r.registerChild(d, params)
	case "unregister_child":
		return r.unregisterChild(params)
	case "purge_children":
		r.purgeChildren(d, durationParam(params, "max_age_ms"))
		return nil
	case "simulate_signal_change":
		return r.signalChange(d, params)
	case "simulate_congestion":
		return r.congestion(d, params)
	case "simulate_firmware_update":
		return r.firmwareUpdate(d, params)
	case "form_mesh":
		return r.formMesh(d, params)
	}
	return ErrUnknownCommand
}

func (r *repeaterBehavior) isBusy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy
}

// relay publishes a payload tagged with its from/to device ids on the
// repeater's relay topic.
func (r *repeaterBehavior) relay(d *Simulator, params map[string]any) error {
	from := stringParam(params, "from")
	to := stringParam(params, "to")
	if from == "" || to == "" {
		return errors.New("relay requires from and to")
	}
	r.touchChild(from, d.now())
	d.emit(d.topics.Relay(d.cfg.ID), KindRelay, PriorityNormal, RelayPayload{
		From: from,
		To:   to,
		Body: stringParam(params, "payload"),
	})
	return nil
}

func (r *repeaterBehavior) touchChild(id string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.children[id]; ok {
		r.children[id] = now
	}
}

func (r *repeaterBehavior) registerChild(d *Simulator, params map[string]any) error {
	id := stringParam(params, "device_id")
	if id == "" {
		return errors.New("register_child requires device_id")
	}
	r.mu.Lock()
	r.children[id] = d.now()
	r.mu.Unlock()
	return nil
}

func (r *repeaterBehavior) unregisterChild(params map[string]any) error {
	id := stringParam(params, "device_id")
	if id == "" {
		return errors.New("unregister_child requires device_id")
	}
	r.mu.Lock()
	delete(r.children, id)
	r.mu.Unlock()
	return nil
}

// purgeChildren drops children not seen within maxAge. maxAge <= 0
// defaults to one hour.
func (r *repeaterBehavior) purgeChildren(d *Simulator, maxAge time.Duration) {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	cutoff := d.now().Add(-maxAge)
	r.mu.Lock()
	for id, seen := range r.children {
		if seen.Before(cutoff) {
			delete(r.children, id)
		}
	}
	r.mu.Unlock()
}

func (r *repeaterBehavior) signalChange(d *Simulator, params map[string]any) error {
	signal, ok := floatParam(params, "signal")
	if !ok {
		return errors.New("simulate_signal_change requires signal")
	}
	var clamped float64
	d.mutateStatus(func(s *Status) {
		s.Signal = signal
	})
	clamped = clampPercent(signal)
	d.emit(d.topics.Status(d.cfg.ID), KindSignalChange, PriorityNormal, SignalPayload{Signal: clamped})
	return nil
}

// congestion bursts N relay messages spread evenly over the duration.
func (r *repeaterBehavior) congestion(d *Simulator, params map[string]any) error {
	messages, ok := intParam(params, "messages")
	if !ok || messages <= 0 {
		return errors.New("simulate_congestion requires messages")
	}
	duration := durationParam(params, "duration_ms")
	if duration <= 0 {
		duration = 10 * time.Second
	}
	step := duration / time.Duration(messages)
	for i := 0; i < messages; i++ {
		seq := i + 1
		d.schedule(step*time.Duration(i), func() {
			d.emit(d.topics.Relay(d.cfg.ID), KindCongestion, PriorityLow, CongestionPayload{
				Messages:   messages,
				DurationMS: duration.Milliseconds(),
				Sequence:   seq,
			})
		})
	}
	return nil
}

// firmwareUpdate enters a busy period, after which the firmware version
// changes and an event is published.
func (r *repeaterBehavior) firmwareUpdate(d *Simulator, params map[string]any) error {
	target := stringParam(params, "version")
	busyFor := durationParam(params, "duration_ms")
	if busyFor <= 0 {
		busyFor = 5 * time.Second
	}
	r.mu.Lock()
	if r.busy {
		r.mu.Unlock()
		return errors.New("firmware update in progress")
	}
	r.busy = true
	previous := r.firmware
	r.mu.Unlock()

	if target == "" {
		target = nextPatchVersion(previous)
	}
	d.schedule(busyFor, func() {
		r.mu.Lock()
		r.firmware = target
		r.busy = false
		r.mu.Unlock()
		d.mutateStatus(func(s *Status) { s.Firmware = target })
		d.emit(d.topics.Status(d.cfg.ID), KindFirmwareUpdate, PriorityNormal,
			FirmwarePayload{From: previous, To: target})
	})
	return nil
}

// nextPatchVersion bumps the last numeric component of a dotted version.
func nextPatchVersion(v string) string {
	var major, minor, patch int
	if _, err := fmt.Sscanf(v, "%d.%d.%d", &major, &minor, &patch); err != nil {
		return v + ".1"
	}
	return fmt.Sprintf("%d.%d.%d", major, minor, patch+1)
}

// formMesh assigns this repeater the coordinator role and its peers
// router/end-device roles with increasing hop counts.
func (r *repeaterBehavior) formMesh(d *Simulator, params map[string]any) error {
	raw, ok := params["peers"].([]any)
	if !ok || len(raw) == 0 {
		return errors.New("form_mesh requires peers")
	}
	peers := make([]string, 0, len(raw))
	for _, p := range raw {
		if s, ok := p.(string); ok && s != "" {
			peers = append(peers, s)
		}
	}
	if len(peers) == 0 {
		return errors.New("form_mesh requires peers")
	}
	sort.Strings(peers)

	r.mu.Lock()
	r.role = MeshRoleCoordinator
	r.hopCount = 0
	r.peers = peers
	payload := MeshPayload{
		Role:     r.role,
		HopCount: 0,
		Peers:    append([]string(nil), peers...),
		Children: len(r.children),
	}
	r.mu.Unlock()

	d.emit(d.topics.Status(d.cfg.ID), KindMeshUpdate, PriorityNormal, payload)

	// Announce assigned roles for each peer on the relay topic. The
	// first half of the sorted peers become routers, the rest
	// end-devices, hop count growing with distance from the coordinator.
	for i, peer := range peers {
		role := MeshRoleRouter
		if i >= (len(peers)+1)/2 {
			role = MeshRoleEndDevice
		}
		d.emit(d.topics.Relay(d.cfg.ID), KindMeshUpdate, PriorityLow, MeshPayload{
			Role:     role,
			HopCount: i + 1,
			Peers:    []string{peer},
		})
	}
	return nil
}

// MeshInfo exposes the repeater's mesh view for inspection.
type MeshInfo struct {
	Role     string
	HopCount int
	Peers    []string
	Children []string
	Firmware string
}

// Mesh returns a snapshot of the repeater mesh state, or false when the
// device is not a repeater.
func (d *Simulator) Mesh() (MeshInfo, bool) {
	r, ok := d.behavior.(*repeaterBehavior)
	if !ok {
		return MeshInfo{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	children := make([]string, 0, len(r.children))
	for id := range r.children {
		children = append(children, id)
	}
	sort.Strings(children)
	return MeshInfo{
		Role:     r.role,
		HopCount: r.hopCount,
		Peers:    append([]string(nil), r.peers...),
		Children: children,
		Firmware: r.firmware,
	}, true
}
