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
package hmr

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"bennypowers.dev/hotswap/graph"
	"bennypowers.dev/hotswap/internal/ctxlog"
	"bennypowers.dev/hotswap/transform"
)

// transformAll runs the transformer over modules concurrently. The first
// failure cancels the rest and fails the whole call.
func (o *Orchestrator) transformAll(ctx context.Context, modules []*graph.Module, phase transform.Phase) (map[graph.ModuleID]*transform.Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Parallel)

	results := make([]*transform.Result, len(modules))
	for i, mod := range modules {
		g.Go(func() error {
			source, err := o.fs.ReadFile(mod.Path)
			if err != nil {
				return &transform.TransformError{Path: mod.Path, ID: mod.ID, Err: err}
			}
			res, err := o.transformer.Transform(gctx, source, mod.Path, transform.Options{
				ID:    mod.ID,
				Phase: phase,
				Paths: mod.Meta.Imports,
			})
			if err != nil {
				return &transform.TransformError{Path: mod.Path, ID: mod.ID, Err: err}
			}
			if res == nil {
				res = &transform.Result{}
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[graph.ModuleID]*transform.Result, len(modules))
	for i, mod := range modules {
		byID[mod.ID] = results[i]
	}
	return byID, nil
}

// validate checks that each module's forward edges, resolved imports and
// transform-reported requests describe the same dependencies.
func validate(modules []*graph.Module, results map[graph.ModuleID]*transform.Result) error {
	for _, mod := range modules {
		invalid := func(format string, args ...any) error {
			return &InvalidHmrStateError{ID: mod.ID, Path: mod.Path, Reason: fmt.Sprintf(format, args...)}
		}

		specifiers := make(map[string]graph.ModuleID, len(mod.Dependencies))
		for _, dep := range mod.Dependencies {
			specifiers[dep.Specifier] = dep.ID
		}
		if len(specifiers) != len(mod.Meta.Imports) {
			return invalid("%d dependencies but %d resolved imports", len(specifiers), len(mod.Meta.Imports))
		}
		for spec, id := range specifiers {
			if resolved, ok := mod.Meta.Imports[spec]; !ok || resolved != id {
				return invalid("dependency %q points at module %d but resolved to %d", spec, id, resolved)
			}
		}

		res := results[mod.ID]
		if res == nil || res.Requests == nil {
			continue
		}
		requested := make(map[string]bool, len(res.Requests))
		for _, spec := range res.Requests {
			if _, ok := mod.Meta.Imports[spec]; !ok {
				return invalid("transform requires unresolved specifier %q", spec)
			}
			requested[spec] = true
		}
		if len(requested) != len(mod.Meta.Imports) {
			return invalid("transform requires %d specifiers but %d were resolved", len(requested), len(mod.Meta.Imports))
		}
	}
	return nil
}

// Bundle assembles the initial development bundle: every module in the
// graph, dependencies first, registered with the runtime and then
// evaluated.
func (o *Orchestrator) Bundle(ctx context.Context) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, o.opts.BatchTimeout)
	defer cancel()

	all := o.graph.Modules()
	ids := make([]graph.ModuleID, 0, len(all))
	for _, mod := range all {
		ids = append(ids, mod.ID)
	}
	modules, err := o.snapshot(o.graph.SortByDependencies(ids))
	if err != nil {
		return nil, err
	}

	results, err := o.transformAll(ctx, modules, transform.PhaseBundle)
	if err != nil {
		return nil, err
	}
	if err := validate(modules, results); err != nil {
		return nil, err
	}

	var b strings.Builder
	for _, mod := range modules {
		wrapFragment(&b, mod.Path, results[mod.ID].Code)
	}
	writeFlush(&b)

	ctxlog.FromContext(ctx).Debug("bundle assembled", "modules", len(modules), "bytes", b.Len())
	return []byte(b.String()), nil
}
