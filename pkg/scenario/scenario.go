package scenario

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/hooks/internal/errors"
)

// Scenario is a scripted run of one or more components.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario demonstrates.
	Description string `yaml:"description,omitempty"`

	// AutoFlush flushes renders as soon as they are requested outside a
	// batch. Without it only flush and render steps run renders.
	AutoFlush bool `yaml:"autoFlush,omitempty"`

	// MaxPasses bounds the passes of one flush. Zero uses the runner default.
	MaxPasses int `yaml:"maxPasses,omitempty"`

	// Trace selects the event kinds kept in the transcript. Empty keeps all.
	Trace []string `yaml:"trace,omitempty"`

	Components []Component `yaml:"components"`
	Steps      []Step      `yaml:"steps"`

	// Expect is checked against the result when present.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Component declares the hooks of a component body. State slots are declared
// first, then effects, each in list order.
type Component struct {
	Name    string   `yaml:"name"`
	State   []State  `yaml:"state,omitempty"`
	Effects []Effect `yaml:"effects,omitempty"`
}

// State is a state slot.
type State struct {
	Name    string `yaml:"name"`
	Initial any    `yaml:"initial"`
}

// Effect is an effect slot.
type Effect struct {
	Name string `yaml:"name"`

	// Deps names the state slots the effect depends on. nil means no list.
	Deps *[]string `yaml:"deps,omitempty"`

	// Log is appended to the run log when the body runs. "{state}"
	// placeholders expand to the rendered value of that state slot.
	Log string `yaml:"log,omitempty"`

	// Cleanup is appended to the run log when the cleanup runs. When empty
	// the effect returns no cleanup.
	Cleanup string `yaml:"cleanup,omitempty"`

	// Write is a state write performed by the body.
	Write *Write `yaml:"write,omitempty"`

	// Panic makes the body panic with this message.
	Panic string `yaml:"panic,omitempty"`
}

// Write is a state write. Exactly one of Value or Add is used: Add applies
// an updater that adds to an integer slot.
type Write struct {
	Instance string `yaml:"instance,omitempty"`
	State    string `yaml:"state"`
	Value    any    `yaml:"value,omitempty"`
	Add      int    `yaml:"add,omitempty"`
}

// Step is one scripted action. Exactly one field is set.
type Step struct {
	Mount    string `yaml:"mount,omitempty"`
	As       string `yaml:"as,omitempty"`
	Set      *Write `yaml:"set,omitempty"`
	Update   *Write `yaml:"update,omitempty"`
	Batch    []Step `yaml:"batch,omitempty"`
	Flush    bool   `yaml:"flush,omitempty"`
	Render   string `yaml:"render,omitempty"`
	Teardown string `yaml:"teardown,omitempty"`
}

// Step kinds.
const (
	StepMount    = "mount"
	StepSet      = "set"
	StepUpdate   = "update"
	StepBatch    = "batch"
	StepFlush    = "flush"
	StepRender   = "render"
	StepTeardown = "teardown"
)

// Kind returns the kind of the step, or "" when no kind or more than one is
// set.
func (s Step) Kind() string {
	var kinds []string
	if s.Mount != "" {
		kinds = append(kinds, StepMount)
	}
	if s.Set != nil {
		kinds = append(kinds, StepSet)
	}
	if s.Update != nil {
		kinds = append(kinds, StepUpdate)
	}
	if s.Batch != nil {
		kinds = append(kinds, StepBatch)
	}
	if s.Flush {
		kinds = append(kinds, StepFlush)
	}
	if s.Render != "" {
		kinds = append(kinds, StepRender)
	}
	if s.Teardown != "" {
		kinds = append(kinds, StepTeardown)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// Expect is the expected outcome of a run.
type Expect struct {
	// Log is the exact run log.
	Log []string `yaml:"log,omitempty"`

	// Transcript is the exact event transcript.
	Transcript []string `yaml:"transcript,omitempty"`

	// Errors lists the error codes reported, in order.
	Errors []string `yaml:"errors,omitempty"`

	// Commits maps instance names to their committed render count.
	Commits map[string]uint64 `yaml:"commits,omitempty"`
}

// LoadFile reads and parses a scenario YAML file.
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("H160").WithDetail("cannot read " + path).Wrap(err)
	}
	return Parse(data)
}

// Parse parses a scenario document. Unknown fields are rejected.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, errors.New("H160").Wrap(err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks names and references.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return invalid("name is required")
	}
	if len(s.Components) == 0 {
		return invalid("at least one component is required")
	}
	if s.MaxPasses < 0 {
		return invalid("maxPasses must not be negative")
	}

	components := make(map[string]*Component, len(s.Components))
	for i := range s.Components {
		c := &s.Components[i]
		if c.Name == "" {
			return invalid("components[%d]: name is required", i)
		}
		if _, dup := components[c.Name]; dup {
			return invalid("components[%d]: duplicate component %q", i, c.Name)
		}
		components[c.Name] = c

		states := make(map[string]bool, len(c.State))
		for j, st := range c.State {
			if st.Name == "" {
				return invalid("%s.state[%d]: name is required", c.Name, j)
			}
			if states[st.Name] {
				return invalid("%s.state[%d]: duplicate state %q", c.Name, j, st.Name)
			}
			states[st.Name] = true
		}
		for j, e := range c.Effects {
			if e.Deps != nil {
				for _, d := range *e.Deps {
					if !states[d] {
						return invalid("%s.effects[%d]: unknown dependency %q", c.Name, j, d)
					}
				}
			}
			if e.Write != nil && !states[e.Write.State] {
				return invalid("%s.effects[%d]: write to unknown state %q", c.Name, j, e.Write.State)
			}
		}
	}

	// Instances are named at mount time, so references are checked in
	// script order.
	mounted := make(map[string]string)
	var check func(path string, steps []Step) error
	check = func(path string, steps []Step) error {
		for i, step := range steps {
			where := fmt.Sprintf("%s[%d]", path, i)
			switch step.Kind() {
			case "":
				return invalid("%s: a step must set exactly one of mount, set, update, batch, flush, render, teardown", where)
			case StepMount:
				if components[step.Mount] == nil {
					return invalid("%s: unknown component %q", where, step.Mount)
				}
				name := step.InstanceName()
				if _, dup := mounted[name]; dup {
					return invalid("%s: instance %q already mounted", where, name)
				}
				mounted[name] = step.Mount
			case StepSet, StepUpdate:
				w := step.Set
				if w == nil {
					w = step.Update
				}
				c, ok := mounted[w.Instance]
				if !ok {
					return invalid("%s: unknown instance %q", where, w.Instance)
				}
				if !components[c].hasState(w.State) {
					return invalid("%s: component %q has no state %q", where, c, w.State)
				}
			case StepBatch:
				if err := check(where+".batch", step.Batch); err != nil {
					return err
				}
			case StepRender:
				if _, ok := mounted[step.Render]; !ok {
					return invalid("%s: unknown instance %q", where, step.Render)
				}
			case StepTeardown:
				if _, ok := mounted[step.Teardown]; !ok {
					return invalid("%s: unknown instance %q", where, step.Teardown)
				}
			}
		}
		return nil
	}
	return check("steps", s.Steps)
}

// InstanceName returns the name of the instance a mount step creates.
func (s Step) InstanceName() string {
	if s.As != "" {
		return s.As
	}
	return s.Mount
}

func (c *Component) hasState(name string) bool {
	for _, st := range c.State {
		if st.Name == name {
			return true
		}
	}
	return false
}

func (c *Component) stateIndex(name string) int {
	for i, st := range c.State {
		if st.Name == name {
			return i
		}
	}
	return -1
}

func invalid(format string, args ...any) error {
	return errors.New("H161").WithDetail(fmt.Sprintf(format, args...))
}
