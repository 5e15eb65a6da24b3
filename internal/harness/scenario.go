package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultClock is where the fake clock starts when a scenario sets none.
const DefaultClock = "2026-03-02T09:00:00Z"

// Scenario is a workflow test: a facility, some setup steps, a flow of
// steps with expectations and a list of assertions on the outcome.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Facility is the CUE facility file, relative to the scenario file.
	Facility string `yaml:"facility"`

	// Clock is the RFC 3339 start time of the fake clock.
	Clock string `yaml:"clock,omitempty"`

	// Parameters override the facility's parameters.
	Parameters map[string]string `yaml:"parameters,omitempty"`

	// Setup steps must succeed; a failure aborts the run.
	Setup []Step `yaml:"setup,omitempty"`

	Flow       []Step      `yaml:"flow"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step invokes one action.
type Step struct {
	Invoke string         `yaml:"invoke"`
	Args   map[string]any `yaml:"args,omitempty"`
	// Expect is optional; without it any outcome is accepted.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is checked against a step's completion. Result is a subset match.
type Expect struct {
	Case   string         `yaml:"case"`
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates the trace, the store or the cache after the flow.
type Assertion struct {
	Type string `yaml:"type"`

	// trace_contains, trace_order, trace_count
	Action  string         `yaml:"action,omitempty"`
	Args    map[string]any `yaml:"args,omitempty"`
	Actions []string       `yaml:"actions,omitempty"`
	Count   int            `yaml:"count,omitempty"`

	// final_state
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`

	// cache_order
	QueueID      int64    `yaml:"queue_id,omitempty"`
	DisplayTexts []string `yaml:"display_texts,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertCacheOrder    = "cache_order"
)

// LoadScenario reads a scenario file and resolves its facility path
// relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(s.Facility) {
		s.Facility = filepath.Join(filepath.Dir(path), s.Facility)
	}
	return s, nil
}

// ParseScenario decodes a scenario, rejecting unknown fields.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if s.Facility == "" {
		return errors.New("facility is required")
	}
	if len(s.Flow) == 0 {
		return errors.New("flow list is required and must be non-empty")
	}
	if _, err := s.startTime(); err != nil {
		return err
	}
	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	if step.Invoke == "" {
		return errors.New("invoke is required")
	}
	if _, ok := actions[step.Invoke]; !ok {
		return fmt.Errorf("unknown action %q", step.Invoke)
	}
	if step.Expect != nil && step.Expect.Case == "" {
		return errors.New("expect.case is required")
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return errors.New("trace_contains requires action")
		}
	case AssertTraceOrder:
		if len(a.Actions) < 2 {
			return errors.New("trace_order requires at least two actions")
		}
	case AssertTraceCount:
		if a.Action == "" {
			return errors.New("trace_count requires action")
		}
	case AssertFinalState:
		if a.Table == "" || len(a.Expect) == 0 {
			return errors.New("final_state requires table and expect")
		}
	case AssertCacheOrder:
		if a.QueueID == 0 {
			return errors.New("cache_order requires queue_id")
		}
	case "":
		return errors.New("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func (s *Scenario) startTime() (time.Time, error) {
	raw := s.Clock
	if raw == "" {
		raw = DefaultClock
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("clock: %w", err)
	}
	return t, nil
}
