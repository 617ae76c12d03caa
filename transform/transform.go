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
// Package transform adapts the per-file source transform that turns a
// module into code for the module runtime.
//
// The transform itself is a black box: it receives a module's source, its
// id and the id of every import it makes, and returns standalone code that
// registers the module with the runtime (globalThis.__modules.register)
// without evaluating it. Imports become require calls against the id map
// and exports become runtime export definitions. PhaseBundle output goes
// into the initial development bundle; PhaseRuntime output is shipped in
// hot updates and may wire the module's hot handle.
package transform

import (
	"context"
	"errors"
	"fmt"

	"bennypowers.dev/hotswap/graph"
)

// ErrTransform matches every TransformError.
var ErrTransform = errors.New("transform failed")

// Phase selects the kind of code a transform produces.
type Phase int

const (
	// PhaseBundle keeps import and export syntax for the initial build.
	PhaseBundle Phase = iota
	// PhaseRuntime references dependencies only through the runtime API.
	PhaseRuntime
)

func (p Phase) String() string {
	switch p {
	case PhaseBundle:
		return "bundle"
	case PhaseRuntime:
		return "runtime"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	switch p {
	case PhaseBundle, PhaseRuntime:
		return []byte(p.String()), nil
	}
	return nil, fmt.Errorf("unknown phase %d", int(p))
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "bundle":
		*p = PhaseBundle
	case "runtime":
		*p = PhaseRuntime
	default:
		return fmt.Errorf("unknown phase %q", text)
	}
	return nil
}

// Options describe the module being transformed.
type Options struct {
	ID    graph.ModuleID `json:"id"`
	Phase Phase          `json:"phase"`
	// Paths maps each import specifier in the source to a module id.
	Paths map[string]graph.ModuleID `json:"paths,omitempty"`
}

// Result is the output of one transform.
type Result struct {
	Code string `json:"code"`
	// Requests lists the specifiers the transformed code requires, when the
	// transform reports them. The orchestrator checks them against the graph.
	Requests []string `json:"requests,omitempty"`
}

// Transformer transforms one module.
type Transformer interface {
	Transform(ctx context.Context, source []byte, filename string, opts Options) (*Result, error)
}

// Func adapts a function to the Transformer interface.
type Func func(ctx context.Context, source []byte, filename string, opts Options) (*Result, error)

// Transform calls f.
func (f Func) Transform(ctx context.Context, source []byte, filename string, opts Options) (*Result, error) {
	return f(ctx, source, filename, opts)
}

// TransformError reports a transform failure for one module.
type TransformError struct {
	Path string
	ID   graph.ModuleID
	Err  error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transforming %s (id %d): %v", e.Path, e.ID, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// Is matches ErrTransform.
func (e *TransformError) Is(target error) bool { return target == ErrTransform }
