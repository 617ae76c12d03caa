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
	"slices"
	"strings"

	"bennypowers.dev/hotswap/graph"
	"bennypowers.dev/hotswap/internal/ctxlog"
	"bennypowers.dev/hotswap/transform"
	"bennypowers.dev/hotswap/watch"
)

// plan is the outcome of resolving one batch.
type plan struct {
	reload bool
	// base is the first changed module; clients run its dispose and accept
	// callbacks around the update.
	base graph.ModuleID
	// registered modules entered the graph during this batch. They are
	// shipped first so the updated code can require them.
	registered []*graph.Module
	// affected modules changed on disk.
	affected []graph.ModuleID
	// closure holds every module importing an affected one, minus the affected.
	closure []graph.ModuleID
	// applied is affected plus closure, dependencies before dependents.
	applied []*graph.Module
}

// modules returns every module the batch ships, in body order.
func (p *plan) modules() []*graph.Module {
	out := make([]*graph.Module, 0, len(p.registered)+len(p.applied))
	out = append(out, p.registered...)
	return append(out, p.applied...)
}

// assemble builds the update body. New modules are registered; changed
// modules and their dependents are registered and then applied, so every
// apply observes the exports its dependencies just produced.
func (p *plan) assemble(results map[graph.ModuleID]*transform.Result) string {
	var b strings.Builder
	for _, mod := range p.registered {
		wrapFragment(&b, mod.Path, results[mod.ID].Code)
	}
	for _, mod := range p.applied {
		wrapFragment(&b, mod.Path, results[mod.ID].Code)
		writeApply(&b, mod.ID, mod.Meta.Imports)
	}
	return b.String()
}

func (o *Orchestrator) plan(ctx context.Context, events []watch.Event) (*plan, error) {
	logger := ctxlog.FromContext(ctx)
	p := &plan{}

	var changed, registered []graph.ModuleID
	seen := make(map[graph.ModuleID]bool)
	// fresh holds modules registered and synced earlier in this batch.
	fresh := make(map[graph.ModuleID]bool)

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch ev.Type {
		case watch.Delete:
			if !o.graph.HasModule(ev.Path) {
				continue
			}
			if err := o.graph.RemoveModule(ev.Path); err != nil {
				return nil, err
			}
			logger.Debug("module removed", "path", ev.Path)
			if o.opts.ReloadOnDelete {
				p.reload = true
			}

		case watch.Create, watch.Update:
			// Files nothing imports enter the graph when an importer is synced.
			if !o.graph.HasModule(ev.Path) {
				logger.Debug("ignoring change outside the graph", "path", ev.Path)
				continue
			}
			if mod, err := o.graph.Module(ev.Path); err == nil && fresh[mod.ID] {
				continue
			}
			res, err := o.graph.SyncModule(ctx, ev.Path)
			if err != nil {
				return nil, err
			}
			if !seen[res.Module.ID] {
				seen[res.Module.ID] = true
				changed = append(changed, res.Module.ID)
			}
			ids, err := o.syncRegistered(ctx, res.Registered)
			if err != nil {
				return nil, err
			}
			for _, id := range ids {
				fresh[id] = true
			}
			registered = append(registered, ids...)
		}
	}

	// A module changed earlier in the batch may have been deleted since.
	changed = o.present(changed)
	registered = o.present(registered)
	if p.reload || len(changed) == 0 {
		return p, nil
	}

	isNew := make(map[graph.ModuleID]bool, len(registered))
	for _, id := range registered {
		isNew[id] = true
	}

	for _, id := range changed {
		dependents, err := o.graph.InverseDependenciesOf(id)
		if err != nil {
			return nil, err
		}
		for _, dep := range dependents {
			if seen[dep] || isNew[dep] {
				continue
			}
			seen[dep] = true
			p.closure = append(p.closure, dep)
		}
	}

	p.base = changed[0]
	p.affected = changed

	var err error
	if p.registered, err = o.snapshot(o.graph.SortByDependencies(registered)); err != nil {
		return nil, err
	}
	order := append(append([]graph.ModuleID(nil), changed...), p.closure...)
	if p.applied, err = o.snapshot(o.graph.SortByDependencies(order)); err != nil {
		return nil, err
	}
	return p, nil
}

// syncRegistered syncs modules first seen during a sync, and whatever
// they pull in, returning their ids.
func (o *Orchestrator) syncRegistered(ctx context.Context, queue []*graph.Module) ([]graph.ModuleID, error) {
	var ids []graph.ModuleID
	for len(queue) > 0 {
		mod := queue[0]
		queue = queue[1:]

		res, err := o.graph.SyncModule(ctx, mod.Path)
		if err != nil {
			return nil, err
		}
		ids = append(ids, mod.ID)
		queue = append(queue, res.Registered...)
	}
	return ids, nil
}

func (o *Orchestrator) snapshot(ids []graph.ModuleID) ([]*graph.Module, error) {
	modules := make([]*graph.Module, 0, len(ids))
	for _, id := range ids {
		mod, err := o.graph.ModuleByID(id)
		if err != nil {
			return nil, err
		}
		modules = append(modules, mod)
	}
	return modules, nil
}

func (o *Orchestrator) present(ids []graph.ModuleID) []graph.ModuleID {
	return slices.DeleteFunc(ids, func(id graph.ModuleID) bool {
		_, err := o.graph.ModuleByID(id)
		return err != nil
	})
}
