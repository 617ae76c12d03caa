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
// Package hmr turns batches of file changes into hot updates.
//
// For each batch the Orchestrator re-resolves the changed modules, finds
// every module that imports them directly or transitively, transforms all
// of them concurrently and sends a single update message whose body
// registers the new code and re-applies each module in dependency order.
// Anything that cannot be applied in place becomes a reload message.
package hmr

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"bennypowers.dev/hotswap/fs"
	"bennypowers.dev/hotswap/graph"
	"bennypowers.dev/hotswap/internal/ctxlog"
	"bennypowers.dev/hotswap/transform"
	"bennypowers.dev/hotswap/watch"
)

// DefaultBatchTimeout bounds one batch, transforms included.
const DefaultBatchTimeout = 10 * time.Second

// State is the orchestrator's position in the batch pipeline.
type State int32

const (
	StateIdle State = iota
	StateResolving
	StateTransforming
	StateDispatching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateTransforming:
		return "transforming"
	case StateDispatching:
		return "dispatching"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Options tune batch handling.
type Options struct {
	// BatchTimeout defaults to DefaultBatchTimeout.
	BatchTimeout time.Duration
	// Parallel limits concurrent transforms. Defaults to GOMAXPROCS.
	Parallel int
	// ReloadOnDelete sends a reload after a module is deleted.
	ReloadOnDelete bool
	// ReloadOnError sends a reload when resolving or transforming fails.
	ReloadOnError bool
}

// DefaultOptions returns the options the dev server starts with.
func DefaultOptions() Options {
	return Options{
		BatchTimeout:   DefaultBatchTimeout,
		Parallel:       runtime.GOMAXPROCS(0),
		ReloadOnDelete: true,
	}
}

// Orchestrator processes batches one at a time.
type Orchestrator struct {
	graph       *graph.Graph
	fs          fs.FileSystem
	transformer transform.Transformer
	delegate    Delegate
	opts        Options

	mu    sync.Mutex
	state atomic.Int32
}

// New creates an Orchestrator. Zero BatchTimeout and Parallel take their defaults.
func New(g *graph.Graph, fsys fs.FileSystem, t transform.Transformer, d Delegate, opts Options) *Orchestrator {
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = DefaultBatchTimeout
	}
	if opts.Parallel <= 0 {
		opts.Parallel = runtime.GOMAXPROCS(0)
	}
	return &Orchestrator{
		graph:       g,
		fs:          fsys,
		transformer: t,
		delegate:    d,
		opts:        opts,
	}
}

// State returns the current pipeline state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
}

// Run handles batches in order until ctx is done or batches is closed.
// Batch failures are logged; the loop keeps going so a later change can
// recover.
func (o *Orchestrator) Run(ctx context.Context, batches <-chan []watch.Event) error {
	logger := ctxlog.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-batches:
			if !ok {
				return nil
			}
			if err := o.HandleBatch(ctx, batch); err != nil {
				logger.Error("hot update failed", "error", err)
			}
		}
	}
}

// HandleBatch applies one batch of file events. Only one batch is in
// flight at a time; concurrent callers wait their turn.
//
// Graph changes made before a failure are kept. A resolve or transform
// failure aborts the batch without dispatching anything unless
// ReloadOnError is set; an inconsistent batch always becomes a reload.
func (o *Orchestrator) HandleBatch(ctx context.Context, events []watch.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer o.setState(StateIdle)

	logger := ctxlog.FromContext(ctx)
	if o.graph.Len() == 0 {
		logger.Debug("ignoring changes before the initial build", "events", len(events))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.BatchTimeout)
	defer cancel()

	o.setState(StateResolving)
	p, err := o.plan(ctx, events)
	if err != nil {
		return o.fail(ctx, err)
	}
	if p.reload {
		o.setState(StateDispatching)
		logger.Info("module deleted, reloading")
		o.delegate.Send(ReloadMessage())
		return nil
	}
	if len(p.affected) == 0 {
		return nil
	}

	o.setState(StateTransforming)
	modules := p.modules()
	results, err := o.transformAll(ctx, modules, transform.PhaseRuntime)
	if err != nil {
		return o.fail(ctx, err)
	}

	o.setState(StateDispatching)
	if err := validate(modules, results); err != nil {
		logger.Warn("cannot apply update in place, reloading", "error", err)
		o.delegate.Send(ReloadMessage())
		return err
	}

	body := p.assemble(results)
	logger.Info("hot update",
		"id", p.base,
		"changed", len(p.affected),
		"dependents", len(p.closure),
		"registered", len(p.registered))
	o.delegate.Send(UpdateMessage(p.base, body))
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, err error) error {
	if o.opts.ReloadOnError {
		ctxlog.FromContext(ctx).Warn("hot update failed, reloading", "error", err)
		o.setState(StateDispatching)
		o.delegate.Send(ReloadMessage())
	}
	return err
}
