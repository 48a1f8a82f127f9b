package device

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"crewcall-sim/internal/transport"
)

// State is the lifecycle state of one simulator instance.
type State string

// Lifecycle states. Transitions follow
// stopped -> starting -> running -> stopping -> stopped, with error
// reachable from starting, running, and stopping.
const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateError    State = "error"
)

// ErrUnknownCommand is returned when a command name is not recognized
// by the device or its behavior.
var ErrUnknownCommand = errors.New("unknown command")

// ErrNotRunning is returned when a command reaches a device that is not
// in the running state.
var ErrNotRunning = errors.New("device is not running")

// EventSink observes every event a simulator records, e.g. for the TUI
// dashboard or a JSONL log file.
type EventSink interface {
	WriteEvent(e Event) error
}

// behavior is the per-type autonomous logic. Implementations schedule
// their timers in start and resolve type-specific commands.
type behavior interface {
	start(d *Simulator)
	handleCommand(d *Simulator, cmd string, params map[string]any) error
}

// Simulator models one device: lifecycle, status, command dispatch, and
// autonomous timers delegated to its behavior.
type Simulator struct {
	cfg    Config
	topics transport.Topics
	tr     transport.Client
	log    *slog.Logger
	events *EventLog
	sink   EventSink

	mu        sync.Mutex
	state     State
	startTime time.Time
	lastErr   error
	status    Status
	sched     *Scheduler
	behavior  behavior
	rand      *rand.Rand
	now       func() time.Time
}

// New validates the config and builds a simulator in the stopped state.
// Unknown device types and unknown generic templates are configuration
// errors: the instance is never created.
func New(cfg Config, client transport.Client, topics transport.Topics, logger *slog.Logger) (*Simulator, error) {
	if cfg.ID == "" {
		return nil, errors.New("device id is required")
	}
	if _, err := ParseType(string(cfg.Type)); err != nil {
		return nil, err
	}
	d := &Simulator{
		cfg:    cfg,
		topics: topics,
		tr:     client,
		log:    logger.With("device_id", cfg.ID, "device_type", cfg.Type),
		events: NewEventLog(cfg.EventLogSize),
		state:  StateStopped,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
		status: Status{
			Battery: clampPercent(orDefault(cfg.InitialBattery, 100)),
			Signal:  clampPercent(orDefault(cfg.InitialSignal, 100)),
		},
	}
	switch cfg.Type {
	case TypeButton:
		d.behavior = &buttonBehavior{}
	case TypeWatch:
		d.behavior = newWatchBehavior(cfg)
	case TypeRepeater:
		d.behavior = newRepeaterBehavior()
	case TypeGeneric:
		tpl, err := LookupTemplate(cfg.Template)
		if err != nil {
			return nil, err
		}
		d.behavior = &genericBehavior{template: tpl}
	}
	return d, nil
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

// SetEventSink attaches an observer for recorded events. Must be called
// before Start.
func (d *Simulator) SetEventSink(sink EventSink) {
	d.sink = sink
}

// Config returns the immutable device config.
func (d *Simulator) Config() Config {
	return d.cfg
}

// State returns the current lifecycle state.
func (d *Simulator) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// StartTime returns when the instance last entered starting.
func (d *Simulator) StartTime() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.startTime
}

// Err returns the last lifecycle error, if any.
func (d *Simulator) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// Status returns a copy of the runtime status snapshot.
func (d *Simulator) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Events returns up to limit of the newest recorded events.
func (d *Simulator) Events(limit int) []Event {
	return d.events.Recent(limit)
}

// Start subscribes to the command topic and arms the behavior timers.
// It only acts from the stopped (or error) state; any other state is a
// no-op with a logged warning.
func (d *Simulator) Start() error {
	d.mu.Lock()
	if d.state != StateStopped && d.state != StateError {
		state := d.state
		d.mu.Unlock()
		d.log.Warn("start ignored", "state", state)
		return nil
	}
	d.state = StateStarting
	d.lastErr = nil
	d.startTime = d.now()
	d.sched = NewScheduler()
	d.mu.Unlock()

	cmdTopic := d.topics.Command(d.cfg.ID)
	if err := d.tr.Subscribe(cmdTopic, d.onCommandMessage); err != nil {
		d.mu.Lock()
		d.state = StateError
		d.lastErr = err
		d.sched = nil
		d.mu.Unlock()
		return fmt.Errorf("subscribe %s: %w", cmdTopic, err)
	}

	d.mu.Lock()
	d.state = StateRunning
	d.status.Online = true
	d.status.LastSeen = d.now()
	d.mu.Unlock()

	d.behavior.start(d)
	d.scheduleStatusTick()
	d.log.Info("device started")
	return nil
}

// Stop cancels every pending timer synchronously, then unsubscribes.
// After Stop returns no event is recorded or published by this device.
func (d *Simulator) Stop() error {
	d.mu.Lock()
	switch d.state {
	case StateStopped, StateError:
		d.mu.Unlock()
		d.log.Warn("stop ignored: not running")
		return nil
	case StateStopping:
		d.mu.Unlock()
		return nil
	}
	d.state = StateStopping
	sched := d.sched
	d.sched = nil
	d.mu.Unlock()

	// Timers first: nothing may fire after this point.
	if sched != nil {
		sched.CancelAll()
	}

	err := d.tr.Unsubscribe(d.topics.Command(d.cfg.ID))

	d.mu.Lock()
	d.state = StateStopped
	d.status.Online = false
	if err != nil {
		d.lastErr = err
	}
	d.mu.Unlock()

	if err != nil {
		d.log.Warn("unsubscribe failed during stop", "err", err)
		return err
	}
	d.log.Info("device stopped")
	return nil
}

// Perform executes a named command, as the control surface does via the
// action endpoint. Unknown commands are rejected without side effects,
// and commands are only accepted while the device is running.
func (d *Simulator) Perform(cmd string, params map[string]any) error {
	if err := d.handleCommand(cmd, params); err != nil {
		if errors.Is(err, ErrUnknownCommand) {
			d.log.Warn("rejected unknown command", "command", cmd)
		}
		return err
	}
	return nil
}

// onCommandMessage parses {command, params} JSON from the command topic.
func (d *Simulator) onCommandMessage(_ string, payload []byte) {
	var msg struct {
		Command string         `json:"command"`
		Params  map[string]any `json:"params"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil || msg.Command == "" {
		d.log.Warn("malformed command payload", "err", err)
		return
	}
	if err := d.handleCommand(msg.Command, msg.Params); err != nil {
		d.log.Warn("command failed", "command", msg.Command, "err", err)
	}
}

func (d *Simulator) handleCommand(cmd string, params map[string]any) error {
	d.mu.Lock()
	state := d.state
	d.mu.Unlock()
	if state != StateRunning {
		d.log.Warn("command rejected: device not running", "command", cmd, "state", state)
		return fmt.Errorf("%w (state %s)", ErrNotRunning, state)
	}
	switch cmd {
	case "battery_drain":
		return d.cmdBatteryDrain(params)
	case "go_offline":
		return d.cmdGoOffline(params, "offline")
	case "go_online":
		return d.cmdGoOnline()
	case "network_failure":
		return d.cmdGoOffline(params, "network_failure")
	}
	return d.behavior.handleCommand(d, cmd, params)
}

// scheduleStatusTick arms the periodic status publication.
func (d *Simulator) scheduleStatusTick() {
	interval := d.cfg.StatusInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	d.schedule(interval, func() {
		d.statusTick()
		d.scheduleStatusTick()
	})
}

// statusTick drains a little battery, jitters signal, and publishes the
// current status snapshot.
func (d *Simulator) statusTick() {
	d.mu.Lock()
	d.status.Battery = clampPercent(d.status.Battery - 0.05 - d.rand.Float64()*0.1)
	d.status.Signal = clampPercent(d.status.Signal + d.rand.Float64()*6 - 3)
	d.status.LastSeen = d.now()
	snapshot := d.status
	online := d.status.Online
	d.mu.Unlock()

	if !online {
		return
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := d.tr.Publish(d.topics.Status(d.cfg.ID), data); err != nil {
		d.log.Warn("status publish failed", "err", err)
	}
}

// schedule arms fn on the current scheduler; a no-op once stopping.
func (d *Simulator) schedule(delay time.Duration, fn func()) *Task {
	d.mu.Lock()
	sched := d.sched
	d.mu.Unlock()
	if sched == nil {
		return &Task{}
	}
	return sched.After(delay, fn)
}

// emit records an event in the ring and publishes it to topic. Publish
// failures are logged; they never corrupt simulator state. Offline
// devices record but do not publish.
func (d *Simulator) emit(topic string, kind Kind, priority Priority, payload Payload) {
	e := Event{
		DeviceID:  d.cfg.ID,
		Kind:      kind,
		Timestamp: d.now().UTC(),
		Priority:  priority,
		Payload:   payload,
	}
	d.events.Append(e)
	if d.sink != nil {
		if err := d.sink.WriteEvent(e); err != nil {
			d.log.Warn("event sink write failed", "err", err)
		}
	}

	d.mu.Lock()
	online := d.status.Online
	d.status.LastSeen = e.Timestamp
	d.mu.Unlock()
	if !online {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		d.log.Warn("event marshal failed", "kind", kind, "err", err)
		return
	}
	if err := d.tr.Publish(topic, data); err != nil {
		d.log.Warn("event publish failed", "kind", kind, "topic", topic, "err", err)
	}
}

// mutateStatus applies fn under the lock and re-clamps bounded fields.
func (d *Simulator) mutateStatus(fn func(*Status)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.status)
	d.status.Battery = clampPercent(d.status.Battery)
	d.status.Signal = clampPercent(d.status.Signal)
}

// Random helpers; rand.Rand is not safe for concurrent timers.

func (d *Simulator) randFloat() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rand.Float64()
}

func (d *Simulator) randIntN(n int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n <= 0 {
		return 0
	}
	return d.rand.Intn(n)
}

func (d *Simulator) randDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return min + time.Duration(d.rand.Int63n(int64(max-min)))
}

// Common cross-type commands.

func (d *Simulator) cmdBatteryDrain(params map[string]any) error {
	level, ok := floatParam(params, "level")
	if !ok {
		return errors.New("battery_drain requires level")
	}
	continuous := boolParam(params, "continuous")
	d.mutateStatus(func(s *Status) {
		s.Battery = level
		if continuous {
			s.ActiveFailure = "battery_drain"
		}
	})
	d.emit(d.topics.Status(d.cfg.ID), KindBattery, PriorityNormal, BatteryPayload{Level: clampPercent(level)})
	if continuous {
		d.scheduleContinuousDrain()
	}
	return nil
}

func (d *Simulator) scheduleContinuousDrain() {
	d.schedule(time.Second, func() {
		var depleted bool
		d.mutateStatus(func(s *Status) {
			s.Battery -= 1
			depleted = s.Battery <= 0
		})
		if depleted {
			d.mutateStatus(func(s *Status) { s.ActiveFailure = "battery_dead" })
			d.emit(d.topics.Status(d.cfg.ID), KindBattery, PriorityCritical, BatteryPayload{Level: 0})
			return
		}
		d.scheduleContinuousDrain()
	})
}

func (d *Simulator) cmdGoOffline(params map[string]any, cause string) error {
	duration := durationParam(params, "duration_ms")
	d.emit(d.topics.Status(d.cfg.ID), KindConnectivity, PriorityHigh,
		ConnectivityPayload{Online: false, Cause: cause, UntilMS: duration.Milliseconds()})
	d.mutateStatus(func(s *Status) {
		s.Online = false
		s.ActiveFailure = cause
	})
	if duration > 0 {
		d.schedule(duration, func() { _ = d.cmdGoOnline() })
	}
	return nil
}

func (d *Simulator) cmdGoOnline() error {
	d.mutateStatus(func(s *Status) {
		s.Online = true
		s.ActiveFailure = ""
	})
	d.emit(d.topics.Status(d.cfg.ID), KindConnectivity, PriorityNormal, ConnectivityPayload{Online: true})
	return nil
}

// Param decoding helpers. JSON numbers arrive as float64.

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func floatParam(params map[string]any, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func intParam(params map[string]any, key string) (int, bool) {
	f, ok := floatParam(params, key)
	return int(f), ok
}

func boolParam(params map[string]any, key string) bool {
	v, _ := params[key].(bool)
	return v
}

func durationParam(params map[string]any, key string) time.Duration {
	f, ok := floatParam(params, key)
	if !ok || f <= 0 {
		return 0
	}
	return time.Duration(f) * time.Millisecond
}
