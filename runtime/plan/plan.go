// Package plan defines the execution plan model: a DAG of named steps with
// optional compensations. Plans are produced by the planner and consumed by
// the orchestrator in topological order.
package plan

import (
	"fmt"
)

type (
	// Compensation is the inverse operation declared on a step. It is invoked
	// during recovery to undo the step's completed effect.
	Compensation struct {
		Tool   string         `json:"tool"`
		Params map[string]any `json:"params,omitempty"`
	}

	// Step is a named node in a plan.
	Step struct {
		// Name is unique within the plan.
		Name string `json:"name"`
		// Tool is the registry key of the handler to invoke.
		Tool string `json:"tool"`
		// Params is the tool invocation payload.
		Params map[string]any `json:"params,omitempty"`
		// DependsOn lists step names that must complete before this step runs.
		DependsOn []string `json:"depends_on,omitempty"`
		// Compensation, when set, is invoked on recovery after this step
		// completed.
		Compensation *Compensation `json:"compensation,omitempty"`
	}

	// Plan is a DAG of steps keyed by name. Insertion order is preserved so
	// topological ordering is deterministic for identical input.
	Plan struct {
		steps map[string]*Step
		order []string
	}
)

// New returns an empty plan.
func New() *Plan {
	return &Plan{steps: make(map[string]*Step)}
}

// AddStep inserts a step and returns the plan for chaining. Re-adding a name
// replaces the step but keeps its original position.
func (p *Plan) AddStep(name, tool string, params map[string]any, dependsOn ...string) *Plan {
	if _, ok := p.steps[name]; !ok {
		p.order = append(p.order, name)
	}
	p.steps[name] = &Step{Name: name, Tool: tool, Params: params, DependsOn: dependsOn}
	return p
}

// AddCompensation attaches a compensation to an existing step.
func (p *Plan) AddCompensation(stepName, tool string, params map[string]any) error {
	s, ok := p.steps[stepName]
	if !ok {
		return fmt.Errorf("plan: compensation for unknown step %q", stepName)
	}
	s.Compensation = &Compensation{Tool: tool, Params: params}
	return nil
}

// Step returns the named step, or nil when absent.
func (p *Plan) Step(name string) *Step {
	return p.steps[name]
}

// Has reports whether the plan contains the named step.
func (p *Plan) Has(name string) bool {
	_, ok := p.steps[name]
	return ok
}

// Len returns the number of steps.
func (p *Plan) Len() int {
	return len(p.steps)
}

// Steps returns the steps in insertion order.
func (p *Plan) Steps() []*Step {
	out := make([]*Step, 0, len(p.order))
	for _, n := range p.order {
		out = append(out, p.steps[n])
	}
	return out
}

// Validate checks that every DependsOn name resolves to a step in the plan.
func (p *Plan) Validate() error {
	for _, n := range p.order {
		for _, dep := range p.steps[n].DependsOn {
			if _, ok := p.steps[dep]; !ok {
				return fmt.Errorf("plan: step %q depends on unknown step %q", n, dep)
			}
		}
	}
	return nil
}

// TopoOrder returns the steps in topological order using Kahn's algorithm.
// Among steps whose remaining in-degree is zero, insertion order breaks ties,
// so identical plans always order identically. Returns an error when the plan
// contains a cycle or an unresolvable dependency.
func (p *Plan) TopoOrder() ([]*Step, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	incoming := make(map[string]map[string]struct{}, len(p.steps))
	for _, n := range p.order {
		deps := make(map[string]struct{}, len(p.steps[n].DependsOn))
		for _, d := range p.steps[n].DependsOn {
			deps[d] = struct{}{}
		}
		incoming[n] = deps
	}

	ordered := make([]*Step, 0, len(p.steps))
	for len(incoming) > 0 {
		var free []string
		for _, n := range p.order {
			if deps, ok := incoming[n]; ok && len(deps) == 0 {
				free = append(free, n)
			}
		}
		if len(free) == 0 {
			break
		}
		for _, n := range free {
			ordered = append(ordered, p.steps[n])
			delete(incoming, n)
			for _, deps := range incoming {
				delete(deps, n)
			}
		}
	}
	if len(incoming) > 0 {
		remaining := make([]string, 0, len(incoming))
		for _, n := range p.order {
			if _, ok := incoming[n]; ok {
				remaining = append(remaining, n)
			}
		}
		return nil, fmt.Errorf("plan: cyclic or unresolved dependencies among %v", remaining)
	}
	return ordered, nil
}
