package device

import (
	"sync"
)

// genericBehavior samples the signals declared by its template on a
// fixed interval. All archetype-specific behavior lives in the template
// data, not in code.
type genericBehavior struct {
	template Template

	mu   sync.Mutex
	last map[string]float64
}

func (g *genericBehavior) start(d *Simulator) {
	g.mu.Lock()
	if g.last == nil {
		g.last = make(map[string]float64, len(g.template.Signals))
		for _, s := range g.template.Signals {
			g.last[s.Name] = (s.Min + s.Max) / 2
		}
	}
	g.mu.Unlock()
	g.scheduleSample(d)
}

func (g *genericBehavior) scheduleSample(d *Simulator) {
	d.schedule(g.template.Interval, func() {
		g.sampleNow(d)
		g.scheduleSample(d)
	})
}

func (g *genericBehavior) sampleNow(d *Simulator) {
	elapsed := d.now().Sub(d.StartTime())
	values := make(map[string]float64, len(g.template.Signals))

	g.mu.Lock()
	for _, spec := range g.template.Signals {
		v := spec.sample(elapsed, g.last[spec.Name], d.randFloat)
		g.last[spec.Name] = v
		values[spec.Name] = v
	}
	g.mu.Unlock()

	d.emit(d.topics.Status(d.cfg.ID), KindTelemetry, PriorityLow, TelemetryPayload{Values: values})
}

func (g *genericBehavior) handleCommand(d *Simulator, cmd string, params map[string]any) error {
	switch cmd {
	case "trigger_sample":
		g.sampleNow(d)
		return nil
	}
	return ErrUnknownCommand
}
