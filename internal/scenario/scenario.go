// Package scenario replays scripted widget interactions against a bus.
// A scenario is a YAML file listing publish, clear and dispose steps per
// dataset; the runner applies each step and reports the observable group
// state after it, which makes linking behavior inspectable without any
// rendered widgets.
package scenario

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JohnCoene/crosstalk/pkg/bus"
)

// Actions accepted in a scenario step.
const (
	ActionSelect         = "select"
	ActionClearSelection = "clear-selection"
	ActionFilter         = "filter"
	ActionClearFilter    = "clear-filter"
	ActionDispose        = "dispose"
)

// Scenario is a named sequence of steps.
type Scenario struct {
	Name  string `yaml:"name,omitempty"`
	Steps []Step `yaml:"steps"`
}

// Step is one scripted interaction on one dataset's handle.
type Step struct {
	Dataset string   `yaml:"dataset"`
	Action  string   `yaml:"action"`
	Keys    []string `yaml:"keys,omitempty"`
}

// Load reads, parses and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &s, nil
}

// Validate checks every step for a known action and a dataset name.
func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("no steps defined")
	}
	for i, step := range s.Steps {
		if step.Dataset == "" {
			return fmt.Errorf("step %d: dataset is required", i+1)
		}
		switch step.Action {
		case ActionSelect, ActionFilter:
			// keys optional: none means empty set
		case ActionClearSelection, ActionClearFilter, ActionDispose:
			if len(step.Keys) > 0 {
				return fmt.Errorf("step %d: action %q takes no keys", i+1, step.Action)
			}
		default:
			return fmt.Errorf("step %d: unknown action: %q", i+1, step.Action)
		}
	}
	return nil
}

// Runner applies scenario steps to handles bound by dataset name.
type Runner struct {
	handles map[string]*bus.Handle
	out     io.Writer
}

// NewRunner creates a runner writing its step reports to out.
func NewRunner(out io.Writer) *Runner {
	return &Runner{
		handles: make(map[string]*bus.Handle),
		out:     out,
	}
}

// Bind associates a dataset name with its handle.
func (r *Runner) Bind(name string, h *bus.Handle) {
	r.handles[name] = h
}

// Run applies every step in order, reporting the group's selection and
// effective filter after each one. It stops at the first step referencing
// an unbound dataset.
func (r *Runner) Run(s *Scenario) error {
	for i, step := range s.Steps {
		h, ok := r.handles[step.Dataset]
		if !ok {
			return fmt.Errorf("step %d: no dataset bound as %q", i+1, step.Dataset)
		}

		keys := make([]bus.Key, len(step.Keys))
		for j, k := range step.Keys {
			keys[j] = bus.Key(k)
		}

		switch step.Action {
		case ActionSelect:
			h.PublishSelection(bus.NewKeySet(keys...))
		case ActionClearSelection:
			h.ClearSelection()
		case ActionFilter:
			h.PublishFilter(bus.NewKeySet(keys...))
		case ActionClearFilter:
			h.ClearFilter()
		case ActionDispose:
			h.Dispose()
		}

		fmt.Fprintf(r.out, "%2d  %-12s %-15s %s\n", i+1, step.Dataset, step.Action, r.describe(h))
	}
	return nil
}

func (r *Runner) describe(h *bus.Handle) string {
	selection := h.Selection().Strings()

	filter := "unconstrained"
	if eff, active := h.Filter(); active {
		filter = "[" + strings.Join(eff.Strings(), " ") + "]"
	}

	return fmt.Sprintf("group=%s selection=[%s] filter=%s",
		h.GroupName(), strings.Join(selection, " "), filter)
}
