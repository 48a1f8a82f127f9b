package device

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// watchBehavior drives a crew smartwatch: request workflow commands,
// periodic health simulation, and one-shot fall/SOS triggers.
type watchBehavior struct {
	mu        sync.Mutex
	heartRate int
	steps     int
}

func newWatchBehavior(cfg Config) *watchBehavior {
	min, max := cfg.HeartRateMin, cfg.HeartRateMax
	if min <= 0 {
		min = 55
	}
	if max <= min {
		max = min + 100
	}
	return &watchBehavior{heartRate: (min + max) / 2}
}

func (w *watchBehavior) start(d *Simulator) {
	w.scheduleHealthTick(d)
}

func (w *watchBehavior) scheduleHealthTick(d *Simulator) {
	interval := d.cfg.HealthInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	d.schedule(interval, func() {
		w.healthTick(d)
		w.scheduleHealthTick(d)
	})
}

// healthTick advances the heart-rate random walk within the configured
// bounds, accrues steps, and publishes a health sample with the current
// location.
func (w *watchBehavior) healthTick(d *Simulator) {
	min, max := d.cfg.HeartRateMin, d.cfg.HeartRateMax
	if min <= 0 {
		min = 55
	}
	if max <= min {
		max = min + 100
	}

	w.mu.Lock()
	w.heartRate += d.randIntN(11) - 5
	if w.heartRate < min {
		w.heartRate = min
	}
	if w.heartRate > max {
		w.heartRate = max
	}
	w.steps += d.randIntN(40)
	hr, steps := w.heartRate, w.steps
	w.mu.Unlock()

	var location string
	d.mutateStatus(func(s *Status) {
		s.HeartRate = hr
		s.Steps = steps
		location = s.Location
	})
	d.emit(d.topics.Status(d.cfg.ID), KindHealth, PriorityLow,
		HealthPayload{HeartRate: hr, Steps: steps, Location: location})
}

func (w *watchBehavior) handleCommand(d *Simulator, cmd string, params map[string]any) error {
	switch cmd {
	case "assign":
		member := stringParam(params, "crew_member")
		if member == "" {
			return errors.New("assign requires crew_member")
		}
		d.mutateStatus(func(s *Status) { s.AssignedTo = member })
		return nil
	case "unassign":
		d.mutateStatus(func(s *Status) { s.AssignedTo = "" })
		return nil
	case "set_location":
		location := stringParam(params, "location")
		if location == "" {
			return errors.New("set_location requires location")
		}
		d.mutateStatus(func(s *Status) { s.Location = location })
		return nil
	case "accept_request":
		return w.requestEvent(d, params, KindRequestAccepted, PriorityNormal)
	case "decline_request":
		return w.requestEvent(d, params, KindRequestDeclined, PriorityHigh)
	case "complete_request":
		return w.requestEvent(d, params, KindRequestCompleted, PriorityNormal)
	case "fall_detection":
		d.emit(d.topics.Emergency(d.cfg.ID), KindFallDetected, PriorityCritical, nil)
		return nil
	case "sos":
		d.emit(d.topics.Emergency(d.cfg.ID), KindSOS, PriorityCritical, nil)
		return nil
	}
	return ErrUnknownCommand
}

// requestEvent records a request workflow transition in status and
// emits it to the response topic. The request id is required; notes and
// reason are optional. Accepting tracks the request as active; declining
// or completing it clears the tracked id.
func (w *watchBehavior) requestEvent(d *Simulator, params map[string]any, kind Kind, priority Priority) error {
	id := stringParam(params, "request_id")
	if id == "" {
		return fmt.Errorf("%s requires request_id", kind)
	}
	d.mutateStatus(func(s *Status) {
		switch kind {
		case KindRequestAccepted:
			s.ActiveRequest = id
		case KindRequestDeclined, KindRequestCompleted:
			if s.ActiveRequest == id {
				s.ActiveRequest = ""
			}
		}
	})
	d.emit(d.topics.Response(d.cfg.ID), kind, priority, RequestPayload{
		RequestID: id,
		Notes:     stringParam(params, "notes"),
		Reason:    stringParam(params, "reason"),
	})
	return nil
}
