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
package graph

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
)

// SyncResult describes what SyncModule changed.
type SyncResult struct {
	// Module is the synced module after its edges were reconciled.
	Module *Module
	// Created is true when the module itself was not registered before.
	Created bool
	// Registered lists dependency modules first seen during this sync.
	// They carry no edges until they are synced themselves.
	Registered []*Module
}

// SyncModule re-resolves the imports of path from disk and reconciles its
// forward edges, registering any dependency the graph has not seen yet.
// The resolved specifier map is recorded as the module's Meta.
func (g *Graph) SyncModule(ctx context.Context, path string) (*SyncResult, error) {
	if g.resolver == nil {
		return nil, ErrNoResolver
	}

	resolutions, err := g.resolver.ResolveFrom(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("syncing %s: %w", path, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	result := &SyncResult{}
	rec, ok := g.byPath[path]
	if !ok {
		rec = g.insertLocked(path)
		result.Created = true
	}

	deps := make([]Dependency, 0, len(resolutions))
	imports := make(map[string]ModuleID, len(resolutions))

	for _, res := range resolutions {
		target, ok := g.byPath[res.Path]
		if !ok {
			target = g.insertLocked(res.Path)
			result.Registered = append(result.Registered, target.snapshot())
		}
		deps = append(deps, Dependency{Specifier: res.Request, ID: target.id})
		imports[res.Request] = target.id
	}

	g.setDependenciesLocked(rec, deps)
	rec.meta = Meta{Imports: imports}

	result.Module = rec.snapshot()
	return result, nil
}

// Crawl syncs every module reachable from entries, building the initial
// graph. Modules that fail to resolve are reported in the joined error;
// everything else is still synced.
func (g *Graph) Crawl(ctx context.Context, entries ...string) ([]*Module, error) {
	visited := make(map[string]bool)
	queue := append([]string(nil), entries...)
	var errs []error

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := queue[0]
		queue = queue[1:]
		if visited[path] {
			continue
		}
		visited[path] = true

		res, err := g.SyncModule(ctx, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, dep := range res.Module.Dependencies {
			mod, err := g.ModuleByID(dep.ID)
			if err != nil {
				continue
			}
			if !visited[mod.Path] {
				queue = append(queue, mod.Path)
			}
		}
	}

	modules := make([]*Module, 0, len(visited))
	for path := range visited {
		if mod, err := g.Module(path); err == nil {
			modules = append(modules, mod)
		}
	}
	slices.SortFunc(modules, func(a, b *Module) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return modules, errors.Join(errs...)
}
