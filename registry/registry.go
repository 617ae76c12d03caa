/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package registry is the module runtime that hot updates are applied to.
//
// A Registry holds evaluated modules: their factories, exports and
// dependency maps. Define evaluates a module right away; Apply re-runs it
// against remapped dependencies and gives it a new exports identity;
// Update does the same lazily, leaving the module stale until it is next
// required. The browser prelude served by the dev server implements the
// same contract in JavaScript.
//
// A Registry is not safe for concurrent use. Factories run on the calling
// goroutine and may call back into the registry through their Context.
package registry

import (
	"fmt"
	"maps"
	"slices"
)

// ModuleID identifies a module. It matches the id assigned by the build graph.
type ModuleID int

// Status tracks where a module is in its evaluation lifecycle.
type Status int

const (
	// StatusIdle modules are defined but were never evaluated.
	StatusIdle Status = iota
	// StatusStale modules were updated and wait for re-evaluation.
	StatusStale
	// StatusReady modules were evaluated successfully.
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusStale:
		return "stale"
	case StatusReady:
		return "ready"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Factory evaluates a module body.
type Factory func(ctx *Context) error

type module struct {
	id      ModuleID
	factory Factory
	deps    DependencyMap
	exports *Exports
	status  Status
	ctx     *Context
	hot     *Hot
}

// Registry is an explicitly owned module runtime.
type Registry struct {
	modules    map[ModuleID]*module
	evaluating map[ModuleID]bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		modules:    make(map[ModuleID]*module),
		evaluating: make(map[ModuleID]bool),
	}
}

// Define registers a module and evaluates it immediately. Defining an id
// again replaces its factory and dependency map.
func (r *Registry) Define(factory Factory, id ModuleID, deps DependencyMap) error {
	return r.evaluate(r.put(factory, id, deps))
}

// Register defines a module without evaluating it. It is evaluated on its
// first require, or by Evaluate or Flush.
func (r *Registry) Register(factory Factory, id ModuleID, deps DependencyMap) {
	r.put(factory, id, deps)
}

func (r *Registry) put(factory Factory, id ModuleID, deps DependencyMap) *module {
	m, ok := r.modules[id]
	if !ok {
		m = &module{id: id, exports: newESM(), hot: newHot(nil)}
		m.ctx = &Context{r: r, m: m}
		r.modules[id] = m
	}
	m.factory = factory
	m.deps = maps.Clone(deps)
	if m.deps == nil {
		m.deps = make(DependencyMap)
	}
	m.status = StatusIdle
	return m
}

// Apply points the given specifiers of a module at new module ids and
// re-evaluates it now, producing a new exports object.
func (r *Registry) Apply(id ModuleID, remap map[string]ModuleID) error {
	m, err := r.get(id)
	if err != nil {
		return err
	}
	remapDeps(m, remap)
	return r.evaluate(m)
}

// Update remaps like Apply but only marks the module stale. It is
// re-evaluated when next required, or by Evaluate or Flush, so several
// edge rewrites can be batched before a single re-run.
func (r *Registry) Update(id ModuleID, remap map[string]ModuleID) error {
	m, err := r.get(id)
	if err != nil {
		return err
	}
	remapDeps(m, remap)
	m.status = StatusStale
	return nil
}

func remapDeps(m *module, remap map[string]ModuleID) {
	for spec, target := range remap {
		m.deps[spec] = Redirect(target)
	}
}

// Evaluate runs a module that is idle or stale. Ready modules are left alone.
func (r *Registry) Evaluate(id ModuleID) error {
	m, err := r.get(id)
	if err != nil {
		return err
	}
	if m.status == StatusReady {
		return nil
	}
	return r.evaluate(m)
}

// Flush evaluates every idle or stale module in id order.
func (r *Registry) Flush() error {
	for _, id := range slices.Sorted(maps.Keys(r.modules)) {
		if err := r.Evaluate(id); err != nil {
			return err
		}
	}
	return nil
}

// Module returns the exports of a module as an importer observes them,
// evaluating it first if it is not ready.
func (r *Registry) Module(id ModuleID) (*Exports, error) {
	m, err := r.get(id)
	if err != nil {
		return nil, err
	}
	if m.status != StatusReady && !r.evaluating[id] {
		if err := r.evaluate(m); err != nil {
			return nil, err
		}
	}
	return interop(m.exports), nil
}

// Context returns the context a module's factory receives.
func (r *Registry) Context(id ModuleID) (*Context, error) {
	m, err := r.get(id)
	if err != nil {
		return nil, err
	}
	return m.ctx, nil
}

// Status returns the lifecycle state of a module.
func (r *Registry) Status(id ModuleID) (Status, error) {
	m, err := r.get(id)
	if err != nil {
		return 0, err
	}
	return m.status, nil
}

// Len returns the number of defined modules.
func (r *Registry) Len() int {
	return len(r.modules)
}

// Clear drops every module.
func (r *Registry) Clear() {
	clear(r.modules)
	clear(r.evaluating)
}

func (r *Registry) get(id ModuleID) (*module, error) {
	m, ok := r.modules[id]
	if !ok {
		return nil, &ModuleNotFoundError{ID: id}
	}
	return m, nil
}

// evaluate runs the factory against a fresh exports object. A module
// required while it is evaluating (an import cycle) exposes the bindings
// defined so far. When the factory fails, the previous exports object and
// hot callbacks are put back and the module is left for re-evaluation.
func (r *Registry) evaluate(m *module) (err error) {
	if r.evaluating[m.id] {
		return nil
	}
	r.evaluating[m.id] = true
	defer delete(r.evaluating, m.id)

	prevExports, prevStatus := m.exports, m.status
	prevAccepts, prevDispose := m.hot.accepts, m.hot.dispose
	m.exports = newESM()
	m.hot.reset()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		if err != nil {
			m.exports = prevExports
			m.hot.accepts, m.hot.dispose = prevAccepts, prevDispose
			if prevStatus == StatusIdle {
				m.status = StatusIdle
			} else {
				m.status = StatusStale
			}
			err = &EvaluationError{ID: m.id, Err: err}
			return
		}
		m.status = StatusReady
	}()

	return m.factory(m.ctx)
}

// resolve turns a dependency into the exports an importer observes.
func (r *Registry) resolve(dep Dependency) (*Exports, error) {
	switch dep.kind {
	case depValue:
		return interop(toExports(dep.value)), nil
	case depThunk:
		return interop(toExports(dep.thunk())), nil
	case depRedirect:
		return r.Module(dep.id)
	case depInvalid:
		return nil, ErrInvalidDependency
	}
	return nil, ErrInvalidDependency
}
