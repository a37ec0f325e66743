// Package scenario scripts operator actions against a running network:
// trains, rail breaks and repairs, and the battery debug button.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidScenario = errors.New("invalid scenario")

// Kind names an action.
type Kind string

const (
	Train           Kind = "train"
	Break           Kind = "break"
	Repair          Kind = "repair"
	BatteryOverride Kind = "battery_override"
)

// Scenario is an ordered list of timed actions.
type Scenario struct {
	Name        string   `yaml:"name,omitempty" json:"name,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Actions     []Action `yaml:"actions" json:"actions"`
}

// Action happens At after the scenario is applied.
type Action struct {
	At   time.Duration `yaml:"at" json:"at"`
	Kind Kind          `yaml:"action" json:"action"`
	// Mote is the train's starting mote (0 for the far end of the line) or
	// the mote whose debug button is pressed.
	Mote int `yaml:"mote,omitempty" json:"mote,omitempty"`
	// Section is the track section for break and repair, between motes
	// Section and Section+1.
	Section int `yaml:"section,omitempty" json:"section,omitempty"`
	// Speed in m/s; zero uses the configured train speed.
	Speed float64 `yaml:"speed,omitempty" json:"speed,omitempty"`
}

func (a Action) String() string {
	switch a.Kind {
	case Train:
		return fmt.Sprintf("%s train from mote %d", a.At, a.Mote)
	case Break, Repair:
		return fmt.Sprintf("%s %s section %d", a.At, a.Kind, a.Section)
	case BatteryOverride:
		return fmt.Sprintf("%s battery override on mote %d", a.At, a.Mote)
	}
	return fmt.Sprintf("%s %s", a.At, a.Kind)
}

// Validate checks every action and sorts them by time, keeping the file
// order for actions at the same instant.
func (s *Scenario) Validate() error {
	for i, a := range s.Actions {
		if a.At < 0 {
			return fmt.Errorf("%w: action %d at negative time %s", ErrInvalidScenario, i, a.At)
		}
		switch a.Kind {
		case Train:
			if a.Mote < 0 || a.Speed < 0 {
				return fmt.Errorf("%w: action %d: bad train start %d or speed %v", ErrInvalidScenario, i, a.Mote, a.Speed)
			}
		case Break, Repair:
			if a.Section < 1 {
				return fmt.Errorf("%w: action %d: %s needs a section", ErrInvalidScenario, i, a.Kind)
			}
		case BatteryOverride:
			if a.Mote < 1 {
				return fmt.Errorf("%w: action %d: battery_override needs a mote", ErrInvalidScenario, i)
			}
		default:
			return fmt.Errorf("%w: action %d: unknown action %q", ErrInvalidScenario, i, a.Kind)
		}
	}
	sort.SliceStable(s.Actions, func(i, j int) bool { return s.Actions[i].At < s.Actions[j].At })
	return nil
}

// Parse decodes and validates a YAML scenario.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Scenario
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads a YAML scenario definition from disk.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(b)
}

// Resolve returns the built-in scenario called name, or loads name as a file.
func Resolve(name string) (*Scenario, error) {
	if sc, ok := BuiltIn()[name]; ok {
		return &sc, nil
	}
	return Load(name)
}
