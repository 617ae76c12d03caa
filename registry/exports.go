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
package registry

import (
	"maps"
	"slices"
)

// Kind tags the shape of an exports container.
type Kind int

const (
	// KindESM exports expose named bindings read through definitions.
	KindESM Kind = iota
	// KindCommonJS exports hold the single value assigned to module.exports.
	KindCommonJS
)

func (k Kind) String() string {
	if k == KindCommonJS {
		return "commonjs"
	}
	return "esm"
}

// Definitions returns the current value of every binding it defines.
// It is called on each read, so closures over module variables behave as
// live bindings.
type Definitions func() map[string]any

// Slot provides the current value of a single export.
type Slot func() any

// Exports is a module's exports container. ESM containers resolve each read
// through their definitions; CommonJS containers wrap one plain value.
type Exports struct {
	kind  Kind
	defs  []Definitions
	slots map[string]Slot
	value any
	view  *Exports
}

// ESM returns ESM exports holding fixed values, as a bundler would
// precompute for a dependency map.
func ESM(values map[string]any) *Exports {
	values = maps.Clone(values)
	e := newESM()
	e.defs = []Definitions{func() map[string]any { return values }}
	return e
}

// CommonJS returns exports wrapping a module.exports value.
func CommonJS(value any) *Exports {
	return &Exports{kind: KindCommonJS, value: value}
}

func newESM() *Exports {
	return &Exports{kind: KindESM, slots: make(map[string]Slot)}
}

// Kind returns the container's shape.
func (e *Exports) Kind() Kind { return e.kind }

// IsESM reports whether e carries named ESM bindings.
func (e *Exports) IsESM() bool { return e.kind == KindESM }

// Value returns the module.exports value of CommonJS exports, or a
// snapshot of every binding for ESM exports.
func (e *Exports) Value() any {
	if e.kind == KindCommonJS {
		return e.value
	}
	return e.Snapshot()
}

// Read returns the current value of the named export.
func (e *Exports) Read(name string) (any, bool) {
	if e.kind == KindCommonJS {
		return interop(e).Read(name)
	}
	if slot, ok := e.slots[name]; ok {
		return slot(), true
	}
	for _, defs := range slices.Backward(e.defs) {
		if v, ok := defs()[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Get is Read without the presence flag.
func (e *Exports) Get(name string) any {
	v, _ := e.Read(name)
	return v
}

// Keys returns the names of every export, sorted.
func (e *Exports) Keys() []string {
	if e.kind == KindCommonJS {
		return interop(e).Keys()
	}
	keys := make(map[string]struct{}, len(e.slots))
	for name := range e.slots {
		keys[name] = struct{}{}
	}
	for _, defs := range e.defs {
		for name := range defs() {
			keys[name] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(keys))
}

// Snapshot reads every export once. Passing e.Snapshot as Definitions
// re-exports e live.
func (e *Exports) Snapshot() map[string]any {
	out := make(map[string]any)
	for _, name := range e.Keys() {
		out[name] = e.Get(name)
	}
	return out
}

// Define adds bindings. Later definitions shadow earlier ones for the same name.
func (e *Exports) Define(defs Definitions) {
	e.defs = append(e.defs, defs)
}

// Replace swaps every definition for defs. Reads that follow observe defs.
func (e *Exports) Replace(defs Definitions) {
	e.defs = []Definitions{defs}
	clear(e.slots)
}

// Set binds name to a fixed value, the equivalent of exports.name = value.
// On CommonJS exports it writes into the wrapped map, if there is one.
func (e *Exports) Set(name string, value any) {
	if e.kind == KindCommonJS {
		if obj, ok := e.value.(map[string]any); ok {
			obj[name] = value
		}
		return
	}
	e.slots[name] = func() any { return value }
}

// namespace builds the target of export * from src: every binding of src
// except default, each read through src.
func namespace(src *Exports) *Exports {
	src = interop(src)
	ns := newESM()
	for _, name := range src.Keys() {
		if name == "default" {
			continue
		}
		ns.slots[name] = func() any { return src.Get(name) }
	}
	return ns
}

// interop returns the view an importer observes. ESM exports are returned
// as they are. A CommonJS value x is seen as x's own keys, when x is a
// map[string]any, plus default bound to x itself. The view is built once
// per container.
func interop(e *Exports) *Exports {
	if e.kind == KindESM {
		return e
	}
	if e.view == nil {
		value := e.value
		view := newESM()
		view.defs = []Definitions{func() map[string]any {
			out := make(map[string]any)
			if obj, ok := value.(map[string]any); ok {
				maps.Copy(out, obj)
			}
			out["default"] = value
			return out
		}}
		e.view = view
	}
	return e.view
}

// toExports wraps a dependency value in an exports container.
func toExports(v any) *Exports {
	if e, ok := v.(*Exports); ok && e != nil {
		return e
	}
	return CommonJS(v)
}
