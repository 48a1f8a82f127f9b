package device

import (
	"fmt"
	"math"
	"time"
)

// SignalKind selects how a generic-device signal evolves over time.
type SignalKind string

// Signal generator kinds.
const (
	SignalSine       SignalKind = "sine"
	SignalRandomWalk SignalKind = "random_walk"
	SignalConstant   SignalKind = "constant"
)

// SignalSpec declares one named signal of a generic device template.
type SignalSpec struct {
	Name   string     `json:"name" yaml:"name"`
	Kind   SignalKind `json:"kind" yaml:"kind"`
	Min    float64    `json:"min" yaml:"min"`
	Max    float64    `json:"max" yaml:"max"`
	Period float64    `json:"period_s,omitempty" yaml:"period_s"`
	Noise  float64    `json:"noise,omitempty" yaml:"noise"`
}

// Template declares a generic device archetype entirely as data, so new
// archetypes require no new behavior code.
type Template struct {
	Name     string        `json:"name" yaml:"name"`
	Interval time.Duration `json:"interval" yaml:"interval"`
	Signals  []SignalSpec  `json:"signals" yaml:"signals"`
}

// Built-in template library. RegisterTemplate extends it at startup.
var templates = map[string]Template{
	"temperature_sensor": {
		Name:     "temperature_sensor",
		Interval: 30 * time.Second,
		Signals: []SignalSpec{
			{Name: "temperature_c", Kind: SignalSine, Min: 18, Max: 28, Period: 3600, Noise: 0.3},
		},
	},
	"humidity_sensor": {
		Name:     "humidity_sensor",
		Interval: time.Minute,
		Signals: []SignalSpec{
			{Name: "humidity_pct", Kind: SignalRandomWalk, Min: 30, Max: 70, Noise: 1.5},
		},
	},
	"motion_sensor": {
		Name:     "motion_sensor",
		Interval: 15 * time.Second,
		Signals: []SignalSpec{
			{Name: "motion", Kind: SignalConstant, Min: 0, Max: 1, Noise: 1},
		},
	},
}

// LookupTemplate resolves a template name. Unknown names are a
// configuration error surfaced at device creation.
func LookupTemplate(name string) (Template, error) {
	if name == "" {
		return Template{}, fmt.Errorf("generic device requires a template name")
	}
	tpl, ok := templates[name]
	if !ok {
		return Template{}, fmt.Errorf("unknown device template %q", name)
	}
	return tpl, nil
}

// RegisterTemplate adds or replaces a template. Intended for
// configuration loading at process start, before simulators exist.
func RegisterTemplate(tpl Template) error {
	if tpl.Name == "" {
		return fmt.Errorf("template name is required")
	}
	if len(tpl.Signals) == 0 {
		return fmt.Errorf("template %q declares no signals", tpl.Name)
	}
	if tpl.Interval <= 0 {
		tpl.Interval = 30 * time.Second
	}
	templates[tpl.Name] = tpl
	return nil
}

// TemplateNames lists the registered template names.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	return names
}

// sample computes the signal value at elapsed time t with noise drawn
// from rnd in [-Noise, +Noise], clamped to [Min, Max].
func (s SignalSpec) sample(t time.Duration, last float64, rnd func() float64) float64 {
	var v float64
	switch s.Kind {
	case SignalSine:
		period := s.Period
		if period <= 0 {
			period = 3600
		}
		mid := (s.Min + s.Max) / 2
		amp := (s.Max - s.Min) / 2
		v = mid + amp*math.Sin(2*math.Pi*t.Seconds()/period)
	case SignalRandomWalk:
		v = last
	default: // constant
		v = s.Min
	}
	if s.Noise > 0 {
		v += (rnd()*2 - 1) * s.Noise
	}
	if v < s.Min {
		v = s.Min
	}
	if v > s.Max {
		v = s.Max
	}
	return v
}
