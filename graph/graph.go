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

// Package graph tracks the modules known to the build process and the
// import edges between them.
//
// Every edge is stored twice: forward in the importer's Dependencies and
// backward in the imported module's dependents. All mutations keep both
// sides in step, so a removed module never leaves a dangling reference.
package graph

import (
	"context"
	"maps"
	"slices"
	"sync"

	"bennypowers.dev/hotswap/resolve"
)

// ModuleID identifies a module for the lifetime of a Graph.
// IDs start at 1 and are never reused; a path that is removed and added
// again receives a fresh ID.
type ModuleID int

// Dependency is one forward edge, keyed by the literal specifier written at
// the import site.
type Dependency struct {
	Specifier string   `json:"specifier"`
	ID        ModuleID `json:"id"`
}

// Meta is transform-supplied metadata attached to a module.
type Meta struct {
	// Imports maps each import specifier to the id it resolved to.
	Imports map[string]ModuleID `json:"imports,omitempty"`
}

// Module is a snapshot of one module record. Mutating it does not affect the graph.
type Module struct {
	ID           ModuleID     `json:"id"`
	Path         string       `json:"path"`
	Dependencies []Dependency `json:"dependencies"`
	Dependents   []ModuleID   `json:"dependents"`
	Meta         Meta         `json:"meta"`
}

// Resolver resolves the imports of a module file.
type Resolver interface {
	ResolveFrom(ctx context.Context, path string) ([]resolve.Resolution, error)
}

type record struct {
	id           ModuleID
	path         string
	dependencies []Dependency
	dependents   map[ModuleID]struct{}
	meta         Meta
}

func (r *record) snapshot() *Module {
	dependents := make([]ModuleID, 0, len(r.dependents))
	for id := range r.dependents {
		dependents = append(dependents, id)
	}
	slices.Sort(dependents)

	return &Module{
		ID:           r.id,
		Path:         r.path,
		Dependencies: slices.Clone(r.dependencies),
		Dependents:   dependents,
		Meta:         Meta{Imports: maps.Clone(r.meta.Imports)},
	}
}

// targets returns the distinct ids this record imports.
func (r *record) targets() map[ModuleID]struct{} {
	set := make(map[ModuleID]struct{}, len(r.dependencies))
	for _, dep := range r.dependencies {
		set[dep.ID] = struct{}{}
	}
	return set
}

// Graph is the module record store plus the edge operations over it.
// It is safe for concurrent use, but callers that read a closure and then
// mutate must serialize those steps themselves.
type Graph struct {
	mu       sync.RWMutex
	resolver Resolver
	lastID   ModuleID
	byPath   map[string]*record
	byID     map[ModuleID]*record
}

// New creates an empty graph. The resolver is only needed by SyncModule
// and Crawl and may be nil.
func New(resolver Resolver) *Graph {
	return &Graph{
		resolver: resolver,
		byPath:   make(map[string]*record),
		byID:     make(map[ModuleID]*record),
	}
}

// Len returns the number of registered modules.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byID)
}

// HasModule reports whether path is registered.
func (g *Graph) HasModule(path string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.byPath[path]
	return ok
}

// Module returns the module registered at path.
func (g *Graph) Module(path string) (*Module, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rec, ok := g.byPath[path]
	if !ok {
		return nil, &ModuleNotFoundError{Path: path}
	}
	return rec.snapshot(), nil
}

// ModuleByID returns the module with the given id.
func (g *Graph) ModuleByID(id ModuleID) (*Module, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rec, ok := g.byID[id]
	if !ok {
		return nil, &ModuleNotFoundError{ID: id}
	}
	return rec.snapshot(), nil
}

// Modules returns every module ordered by id.
func (g *Graph) Modules() []*Module {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := slices.Sorted(maps.Keys(g.byID))
	modules := make([]*Module, 0, len(ids))
	for _, id := range ids {
		modules = append(modules, g.byID[id].snapshot())
	}
	return modules
}

// AddModule registers a new path with the given forward edges.
// It fails with DuplicateModuleError when path is already registered,
// and with ModuleNotFoundError when a dependency id is unknown.
func (g *Graph) AddModule(path string, deps []Dependency) (*Module, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rec, ok := g.byPath[path]; ok {
		return nil, &DuplicateModuleError{Path: path, ID: rec.id}
	}
	if err := g.checkDepsLocked(deps); err != nil {
		return nil, err
	}

	rec := g.insertLocked(path)
	g.setDependenciesLocked(rec, deps)
	return rec.snapshot(), nil
}

// Register returns the module at path, adding it without edges when absent.
func (g *Graph) Register(path string) *Module {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rec, ok := g.byPath[path]; ok {
		return rec.snapshot()
	}
	return g.insertLocked(path).snapshot()
}

// UpdateModule replaces the forward edges of path. Edges that disappear are
// dropped from the old targets' dependents, new edges are added to the new
// targets' dependents, and the module's own dependents are left alone.
func (g *Graph) UpdateModule(path string, deps []Dependency) (*Module, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.byPath[path]
	if !ok {
		return nil, &ModuleNotFoundError{Path: path}
	}
	if err := g.checkDepsLocked(deps); err != nil {
		return nil, err
	}

	g.setDependenciesLocked(rec, deps)
	return rec.snapshot(), nil
}

// RemoveModule deletes path and scrubs every edge that references it.
func (g *Graph) RemoveModule(path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.byPath[path]
	if !ok {
		return &ModuleNotFoundError{Path: path}
	}

	for target := range rec.targets() {
		if t, ok := g.byID[target]; ok {
			delete(t.dependents, rec.id)
		}
	}
	for dependent := range rec.dependents {
		d, ok := g.byID[dependent]
		if !ok || d == rec {
			continue
		}
		d.dependencies = slices.DeleteFunc(d.dependencies, func(dep Dependency) bool {
			return dep.ID == rec.id
		})
		maps.DeleteFunc(d.meta.Imports, func(_ string, id ModuleID) bool {
			return id == rec.id
		})
	}

	delete(g.byPath, path)
	delete(g.byID, rec.id)
	return nil
}

// SetMeta replaces the metadata of a module.
func (g *Graph) SetMeta(id ModuleID, meta Meta) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.byID[id]
	if !ok {
		return &ModuleNotFoundError{ID: id}
	}
	rec.meta = Meta{Imports: maps.Clone(meta.Imports)}
	return nil
}

// DependenciesOf returns the direct forward edges of a module.
func (g *Graph) DependenciesOf(id ModuleID) ([]Dependency, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rec, ok := g.byID[id]
	if !ok {
		return nil, &ModuleNotFoundError{ID: id}
	}
	return slices.Clone(rec.dependencies), nil
}

// DependentsOf returns the ids of the modules that directly import id, sorted.
func (g *Graph) DependentsOf(id ModuleID) ([]ModuleID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rec, ok := g.byID[id]
	if !ok {
		return nil, &ModuleNotFoundError{ID: id}
	}
	return slices.Sorted(maps.Keys(rec.dependents)), nil
}

// InverseDependenciesOf returns every module that imports id directly or
// transitively, nearest first. The module itself is never included, even
// when it sits on an import cycle.
func (g *Graph) InverseDependenciesOf(id ModuleID) ([]ModuleID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.byID[id]; !ok {
		return nil, &ModuleNotFoundError{ID: id}
	}

	visited := map[ModuleID]bool{id: true}
	queue := []ModuleID{id}
	var result []ModuleID

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, dependent := range slices.Sorted(maps.Keys(g.byID[current].dependents)) {
			if visited[dependent] {
				continue
			}
			visited[dependent] = true
			result = append(result, dependent)
			queue = append(queue, dependent)
		}
	}

	return result, nil
}

func (g *Graph) insertLocked(path string) *record {
	g.lastID++
	rec := &record{
		id:         g.lastID,
		path:       path,
		dependents: make(map[ModuleID]struct{}),
	}
	g.byPath[path] = rec
	g.byID[rec.id] = rec
	return rec
}

func (g *Graph) checkDepsLocked(deps []Dependency) error {
	for _, dep := range deps {
		if _, ok := g.byID[dep.ID]; !ok {
			return &ModuleNotFoundError{ID: dep.ID}
		}
	}
	return nil
}

// setDependenciesLocked swaps the forward edges of rec and reconciles the
// dependents of every old and new target.
func (g *Graph) setDependenciesLocked(rec *record, deps []Dependency) {
	before := rec.targets()
	rec.dependencies = slices.Clone(deps)
	after := rec.targets()

	for target := range before {
		if _, kept := after[target]; !kept {
			delete(g.byID[target].dependents, rec.id)
		}
	}
	for target := range after {
		g.byID[target].dependents[rec.id] = struct{}{}
	}
}
