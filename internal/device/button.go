package device

import (
	"errors"
	"sync"
	"time"
)

// Press types emitted by call buttons.
const (
	PressSingle    = "single"
	PressDouble    = "double"
	PressLong      = "long"
	PressEmergency = "emergency"
)

// buttonBehavior drives a guest call button: autonomous presses on a
// random interval, optional voice-ready announcements, and explicit
// trigger/emergency commands.
type buttonBehavior struct {
	mu           sync.Mutex
	voiceEnabled bool
	voiceTask    *Task
}

func (b *buttonBehavior) start(d *Simulator) {
	b.scheduleNextPress(d)
}

func (b *buttonBehavior) scheduleNextPress(d *Simulator) {
	min, max := d.cfg.PressIntervalMin, d.cfg.PressIntervalMax
	if min <= 0 {
		min = 30 * time.Second
	}
	if max <= min {
		max = min + time.Minute
	}
	d.schedule(d.randDuration(min, max), func() {
		pressType := b.randomPressType(d)
		priority := b.randomPriority(d)
		if pressType == PressEmergency {
			priority = PriorityCritical
		}
		b.firePress(d, pressType, priority)
		b.scheduleNextPress(d)
	})
}

// randomPressType draws single 70%, double 15%, long 12%, emergency 3%.
func (b *buttonBehavior) randomPressType(d *Simulator) string {
	switch r := d.randFloat(); {
	case r < 0.70:
		return PressSingle
	case r < 0.85:
		return PressDouble
	case r < 0.97:
		return PressLong
	default:
		return PressEmergency
	}
}

// randomPriority draws normal 60%, low 20%, high 15%, critical 5%.
func (b *buttonBehavior) randomPriority(d *Simulator) Priority {
	switch r := d.randFloat(); {
	case r < 0.60:
		return PriorityNormal
	case r < 0.80:
		return PriorityLow
	case r < 0.95:
		return PriorityHigh
	default:
		return PriorityCritical
	}
}

// pressDuration draws a hold time from the per-type range. Long presses
// always meet the configured threshold.
func (b *buttonBehavior) pressDuration(d *Simulator, pressType string) time.Duration {
	threshold := d.cfg.LongPressThreshold
	if threshold <= 0 {
		threshold = 800 * time.Millisecond
	}
	switch pressType {
	case PressDouble:
		return d.randDuration(100*time.Millisecond, 400*time.Millisecond)
	case PressLong:
		return threshold + d.randDuration(0, 2*time.Second)
	case PressEmergency:
		return d.randDuration(time.Second, 3*time.Second)
	default:
		return d.randDuration(50*time.Millisecond, 500*time.Millisecond)
	}
}

func (b *buttonBehavior) firePress(d *Simulator, pressType string, priority Priority) {
	payload := PressPayload{
		PressType:  pressType,
		DurationMS: b.pressDuration(d, pressType).Milliseconds(),
	}
	d.emit(d.topics.Press(d.cfg.ID), KindPress, priority, payload)
	if pressType == PressEmergency {
		d.emit(d.topics.Emergency(d.cfg.ID), KindEmergency, PriorityCritical, payload)
	}
}

func (b *buttonBehavior) handleCommand(d *Simulator, cmd string, params map[string]any) error {
	switch cmd {
	case "trigger_press":
		pressType := stringParam(params, "type")
		if pressType == "" {
			pressType = PressSingle
		}
		priority := Priority(stringParam(params, "priority"))
		if priority == "" {
			priority = PriorityNormal
		}
		b.firePress(d, pressType, priority)
		return nil
	case "emergency":
		b.firePress(d, PressEmergency, PriorityCritical)
		return nil
	case "set_voice":
		if _, present := params["enabled"]; !present {
			return errors.New("set_voice requires enabled")
		}
		b.setVoice(d, boolParam(params, "enabled"))
		return nil
	}
	return ErrUnknownCommand
}

// setVoice toggles the independent voice-ready timer. Disabling cancels
// the pending timer immediately.
func (b *buttonBehavior) setVoice(d *Simulator, enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.voiceEnabled == enabled {
		return
	}
	b.voiceEnabled = enabled
	if !enabled {
		b.voiceTask.Cancel()
		b.voiceTask = nil
		return
	}
	b.scheduleVoiceLocked(d)
}

func (b *buttonBehavior) scheduleVoiceLocked(d *Simulator) {
	b.voiceTask = d.schedule(d.randDuration(time.Minute, 3*time.Minute), func() {
		b.mu.Lock()
		enabled := b.voiceEnabled
		if enabled {
			b.scheduleVoiceLocked(d)
		}
		b.mu.Unlock()
		if enabled {
			d.emit(d.topics.VoiceReady(d.cfg.ID), KindVoiceReady, PriorityNormal, nil)
		}
	})
}
