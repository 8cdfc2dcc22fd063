// Package registry maps tool names to handlers and gates every dispatch
// behind the RBAC allow-list. The registry is populated once at startup and is
// read-only afterwards, so dispatch takes no locks.
package registry

import (
	"context"
	"fmt"

	"github.com/intermesh-io/intermesh/runtime/run"
	"github.com/intermesh-io/intermesh/runtime/toolerrors"
)

// Handler is the uniform tool capability. isCompensation is true when the
// invocation is part of saga recovery rather than forward execution.
type Handler func(ctx context.Context, rc *run.Context, params map[string]any, isCompensation bool) (map[string]any, error)

// Registry dispatches named tools.
type Registry struct {
	handlers map[string]Handler
	sealed   bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a tool handler. Registration happens during startup wiring;
// registering after Seal or re-registering a name panics, as both indicate a
// wiring bug.
func (r *Registry) Register(name string, h Handler) {
	if r.sealed {
		panic(fmt.Sprintf("registry: register %q after seal", name))
	}
	if _, ok := r.handlers[name]; ok {
		panic(fmt.Sprintf("registry: duplicate tool %q", name))
	}
	r.handlers[name] = h
}

// Seal marks the end of registration. Subsequent Register calls panic.
func (r *Registry) Seal() {
	r.sealed = true
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		out = append(out, n)
	}
	return out
}

// Dispatch authorizes and invokes the named tool. The RBAC check runs before
// the handler: a tool absent from the agent role's allow-list fails with a
// permission error and the handler is never invoked.
func (r *Registry) Dispatch(ctx context.Context, name string, rc *run.Context, params map[string]any, isCompensation bool) (map[string]any, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, toolerrors.Errorf(toolerrors.KindUnknownTool, "unknown tool %q", name)
	}
	if !rc.Policies.AllowsTool(name) {
		return nil, toolerrors.Errorf(toolerrors.KindPermissionDenied, "tool %q not allowed by RBAC", name)
	}
	return h(ctx, rc, params, isCompensation)
}
