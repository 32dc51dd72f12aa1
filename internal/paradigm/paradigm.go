// Package paradigm loads a session description from YAML and builds the
// runnable pieces out of it: the experiment configuration, the trial
// types with their stimulus and reward channels, and the measurement
// loops. Events are declared once and referenced by name from trial
// types, so one physical channel can serve several types.
package paradigm

import (
	"errors"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"skinnerbox/internal/experiment"
	"skinnerbox/internal/sim"
	"skinnerbox/internal/timing"
	"skinnerbox/internal/trial"
)

// ErrBadParadigm marks a paradigm file that cannot describe a runnable
// session.
var ErrBadParadigm = errors.New("invalid paradigm")

// TimeSpecConfig is the YAML form of a timing spec. Seconds throughout.
type TimeSpecConfig struct {
	Kind  string  `yaml:"kind"`
	Value float64 `yaml:"value"`
	Mean  float64 `yaml:"mean"`
	SD    float64 `yaml:"sd"`
	Rate  float64 `yaml:"rate"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
}

func (c TimeSpecConfig) spec() timing.Spec {
	return timing.Spec{
		Kind:  timing.Kind(c.Kind),
		Value: c.Value,
		Mean:  c.Mean,
		SD:    c.SD,
		Rate:  c.Rate,
		Min:   c.Min,
		Max:   c.Max,
	}
}

type SessionConfig struct {
	Subject   string         `yaml:"subject"`
	Condition string         `yaml:"condition"`
	Operator  string         `yaml:"operator"`
	NTrials   int            `yaml:"n_trials"`
	Seed      int64          `yaml:"seed"`
	ITI       TimeSpecConfig `yaml:"iti"`
}

type EventConfig struct {
	Name  string         `yaml:"name"`
	Kind  string         `yaml:"kind"` // tone | reward | pulse
	Start TimeSpecConfig `yaml:"start"`

	// tone
	Freq     float64 `yaml:"freq"`
	Duration float64 `yaml:"duration"`
	// reward
	Volume float64 `yaml:"volume"`
	Rate   float64 `yaml:"rate"`
	// pulse
	Width float64 `yaml:"width"`
}

type MeasurementConfig struct {
	Name         string  `yaml:"name"`
	Kind         string  `yaml:"kind"` // lick | noise
	SamplingRate float64 `yaml:"sampling_rate"`
	Seed         int64   `yaml:"seed"`

	// lick
	LickRate float64 `yaml:"lick_rate"`
	// noise
	Baseline float64 `yaml:"baseline"`
	SD       float64 `yaml:"sd"`
}

type TrialTypeConfig struct {
	Name   string   `yaml:"name"`
	P      float64  `yaml:"p"`
	EndPad float64  `yaml:"end_pad"`
	Events []string `yaml:"events"`
}

type Paradigm struct {
	Session      SessionConfig       `yaml:"session"`
	Events       []EventConfig       `yaml:"events"`
	Measurements []MeasurementConfig `yaml:"measurements"`
	TrialTypes   []TrialTypeConfig   `yaml:"trial_types"`
	CameraPrefix string              `yaml:"camera_prefix"`
}

func Load(path string) (Paradigm, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Paradigm{}, fmt.Errorf("read paradigm %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (Paradigm, error) {
	var p Paradigm
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Paradigm{}, fmt.Errorf("%w: %v", ErrBadParadigm, err)
	}
	if err := p.validate(); err != nil {
		return Paradigm{}, err
	}
	return p, nil
}

func (p Paradigm) validate() error {
	if p.Session.Subject == "" {
		return fmt.Errorf("%w: session.subject is required", ErrBadParadigm)
	}
	if p.Session.NTrials <= 0 {
		return fmt.Errorf("%w: session.n_trials must be > 0, got %d", ErrBadParadigm, p.Session.NTrials)
	}
	if len(p.TrialTypes) == 0 {
		return fmt.Errorf("%w: at least one trial type is required", ErrBadParadigm)
	}

	eventNames := make(map[string]struct{})
	for _, event := range p.Events {
		if event.Name == "" {
			return fmt.Errorf("%w: every event needs a name", ErrBadParadigm)
		}
		if _, dup := eventNames[event.Name]; dup {
			return fmt.Errorf("%w: duplicate event %s", ErrBadParadigm, event.Name)
		}
		eventNames[event.Name] = struct{}{}
	}

	measurementNames := make(map[string]struct{})
	for _, m := range p.Measurements {
		if m.Name == "" {
			return fmt.Errorf("%w: every measurement needs a name", ErrBadParadigm)
		}
		if _, dup := measurementNames[m.Name]; dup {
			return fmt.Errorf("%w: duplicate measurement %s", ErrBadParadigm, m.Name)
		}
		measurementNames[m.Name] = struct{}{}
	}

	typeNames := make(map[string]struct{})
	for _, tt := range p.TrialTypes {
		if tt.Name == "" {
			return fmt.Errorf("%w: every trial type needs a name", ErrBadParadigm)
		}
		if _, dup := typeNames[tt.Name]; dup {
			return fmt.Errorf("%w: duplicate trial type %s", ErrBadParadigm, tt.Name)
		}
		typeNames[tt.Name] = struct{}{}
		for _, ref := range tt.Events {
			if _, ok := eventNames[ref]; !ok {
				return fmt.Errorf("%w: trial type %s references unknown event %s", ErrBadParadigm, tt.Name, ref)
			}
		}
	}
	return nil
}

// Build turns the paradigm into an experiment configuration plus the
// component list Run expects: trial types with their events attached,
// one sampling loop per measurement, and a camera when a clip prefix is
// configured.
func (p Paradigm) Build(logger *log.Logger) (experiment.Config, []any, error) {
	cfg := experiment.Config{
		NTrials:   p.Session.NTrials,
		ITI:       p.Session.ITI.spec(),
		Seed:      p.Session.Seed,
		SubjectID: p.Session.Subject,
		Condition: p.Session.Condition,
		Operator:  p.Session.Operator,
		Logger:    logger,
	}

	events := make(map[string]trial.Triggerable, len(p.Events))
	for _, ec := range p.Events {
		event, err := buildEvent(ec)
		if err != nil {
			return experiment.Config{}, nil, err
		}
		events[ec.Name] = event
	}

	var components []any
	for _, tc := range p.TrialTypes {
		tt, err := trial.New(tc.Name, tc.P)
		if err != nil {
			return experiment.Config{}, nil, fmt.Errorf("trial type %s: %w", tc.Name, err)
		}
		if tc.EndPad > 0 {
			if err := tt.SetEndPad(tc.EndPad); err != nil {
				return experiment.Config{}, nil, fmt.Errorf("trial type %s: %w", tc.Name, err)
			}
		}
		for _, ref := range tc.Events {
			if err := tt.AddEvent(events[ref]); err != nil {
				return experiment.Config{}, nil, fmt.Errorf("trial type %s: %w", tc.Name, err)
			}
		}
		components = append(components, tt)
	}

	for i, mc := range p.Measurements {
		loop, err := buildMeasurement(mc, p.Session.Seed+int64(i)+1)
		if err != nil {
			return experiment.Config{}, nil, err
		}
		components = append(components, loop)
	}

	if p.CameraPrefix != "" {
		components = append(components, sim.NewCamera(p.CameraPrefix))
	}

	return cfg, components, nil
}

func buildEvent(ec EventConfig) (trial.Triggerable, error) {
	switch ec.Kind {
	case "tone":
		return sim.NewTone(ec.Name, ec.Start.spec(), ec.Freq, ec.Duration)
	case "reward":
		return sim.NewReward(ec.Name, ec.Start.spec(), ec.Volume, ec.Rate)
	case "pulse":
		return sim.NewPulse(ec.Name, ec.Start.spec(), ec.Width)
	default:
		return nil, fmt.Errorf("%w: event %s has unrecognized kind %q", ErrBadParadigm, ec.Name, ec.Kind)
	}
}

func buildMeasurement(mc MeasurementConfig, fallbackSeed int64) (trial.Pollable, error) {
	seed := mc.Seed
	if seed == 0 {
		seed = fallbackSeed
	}
	switch mc.Kind {
	case "lick":
		return sim.NewLickSensor(mc.Name, mc.SamplingRate, mc.LickRate, seed)
	case "noise":
		return sim.NewNoiseSensor(mc.Name, mc.SamplingRate, mc.Baseline, mc.SD, seed)
	default:
		return nil, fmt.Errorf("%w: measurement %s has unrecognized kind %q", ErrBadParadigm, mc.Name, mc.Kind)
	}
}
