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
package registry_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"bennypowers.dev/hotswap/registry"
)

// constant returns a factory exporting one fixed binding.
func constant(name string, value any) registry.Factory {
	return func(ctx *registry.Context) error {
		ctx.Exports(func() map[string]any { return map[string]any{name: value} })
		return nil
	}
}

// derived returns a factory exporting name = dep[depName] + offset.
func derived(name, spec, depName string, offset int) registry.Factory {
	return func(ctx *registry.Context) error {
		dep, err := ctx.Require(spec)
		if err != nil {
			return err
		}
		value := dep.Get(depName).(int) + offset
		ctx.Exports(func() map[string]any { return map[string]any{name: value} })
		return nil
	}
}

// exportsOf is the thunk a bundler emits for an already-defined module.
func exportsOf(r *registry.Registry, id registry.ModuleID) registry.Dependency {
	return registry.Thunk(func() any {
		e, err := r.Module(id)
		if err != nil {
			panic(err)
		}
		return e
	})
}

func mustDefine(t *testing.T, r *registry.Registry, f registry.Factory, id registry.ModuleID, deps registry.DependencyMap) {
	t.Helper()
	if err := r.Define(f, id, deps); err != nil {
		t.Fatalf("Define(%d) failed: %v", id, err)
	}
}

func TestDefineEvaluatesImmediately(t *testing.T) {
	r := registry.New()
	calls := 0
	mustDefine(t, r, func(*registry.Context) error {
		calls++
		return nil
	}, 1, nil)

	if calls != 1 {
		t.Fatalf("Expected factory to run once, ran %d times", calls)
	}
	if status, _ := r.Status(1); status != registry.StatusReady {
		t.Errorf("Expected ready, got %s", status)
	}
}

// Entry (1) imports a (2) and b (3); b imports c (4); c imports d (5).
func TestHotUpdatePropagatesThroughChain(t *testing.T) {
	r := registry.New()
	var logged []string

	mustDefine(t, r, constant("d", 10), 5, nil)
	mustDefine(t, r, derived("c", "./d", "d", 20), 4, registry.DependencyMap{"./d": exportsOf(r, 5)})
	mustDefine(t, r, derived("b", "./c", "c", 60), 3, registry.DependencyMap{"./c": exportsOf(r, 4)})
	mustDefine(t, r, constant("a", 10), 2, nil)
	entry := func(ctx *registry.Context) error {
		a, err := ctx.Import("./a")
		if err != nil {
			return err
		}
		b, err := ctx.Import("./b")
		if err != nil {
			return err
		}
		logged = append(logged, fmt.Sprintf("(%v, %v)", a.Get("a"), b.Get("b")))
		return nil
	}
	mustDefine(t, r, entry, 1, registry.DependencyMap{
		"./a": exportsOf(r, 2),
		"./b": exportsOf(r, 3),
	})

	// d changes, then its inverse dependencies re-apply nearest first.
	mustDefine(t, r, constant("d", 70), 5, nil)
	for _, step := range []struct {
		id    registry.ModuleID
		remap map[string]registry.ModuleID
	}{
		{4, map[string]registry.ModuleID{"./d": 5}},
		{3, map[string]registry.ModuleID{"./c": 4}},
		{1, map[string]registry.ModuleID{"./b": 3}},
	} {
		if err := r.Apply(step.id, step.remap); err != nil {
			t.Fatalf("Apply(%d) failed: %v", step.id, err)
		}
	}

	if diff := cmp.Diff([]string{"(10, 90)", "(10, 150)"}, logged); diff != "" {
		t.Errorf("entry output mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateDefersEvaluation(t *testing.T) {
	r := registry.New()
	runs := 0
	mustDefine(t, r, constant("d", 10), 2, nil)
	mustDefine(t, r, func(ctx *registry.Context) error {
		runs++
		return derived("c", "./d", "d", 1)(ctx)
	}, 1, registry.DependencyMap{"./d": registry.Value(registry.ESM(map[string]any{"d": 0}))})

	mustDefine(t, r, constant("d", 100), 2, nil)
	if err := r.Update(1, map[string]registry.ModuleID{"./d": 2}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if status, _ := r.Status(1); status != registry.StatusStale {
		t.Fatalf("Expected stale after Update, got %s", status)
	}
	if runs != 1 {
		t.Fatalf("Expected no re-run before require, got %d runs", runs)
	}

	exports, err := r.Module(1)
	if err != nil {
		t.Fatalf("Module failed: %v", err)
	}
	if got := exports.Get("c"); got != 101 {
		t.Errorf("Expected c = 101 after lazy re-evaluation, got %v", got)
	}
	if status, _ := r.Status(1); status != registry.StatusReady {
		t.Errorf("Expected ready after require, got %s", status)
	}
}

func TestRegisterAndFlush(t *testing.T) {
	r := registry.New()
	r.Register(constant("x", 1), 1, nil)
	r.Register(constant("y", 2), 2, nil)

	for _, id := range []registry.ModuleID{1, 2} {
		if status, _ := r.Status(id); status != registry.StatusIdle {
			t.Fatalf("Expected module %d idle, got %s", id, status)
		}
	}
	if err := r.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	for _, id := range []registry.ModuleID{1, 2} {
		if status, _ := r.Status(id); status != registry.StatusReady {
			t.Errorf("Expected module %d ready after Flush, got %s", id, status)
		}
	}
}

func TestApplyChangesExportsIdentity(t *testing.T) {
	r := registry.New()
	mustDefine(t, r, constant("foo", 1), 1, nil)

	before, _ := r.Module(1)
	if err := r.Apply(1, nil); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	after, _ := r.Module(1)

	if before == after {
		t.Error("Expected Apply to produce a new exports object")
	}
}

func TestStalenessBoundary(t *testing.T) {
	r := registry.New()
	mustDefine(t, r, constant("d", 10), 1, nil)

	// reader copies the value at evaluation time.
	deps := registry.DependencyMap{"./foo": registry.Redirect(1)}
	mustDefine(t, r, derived("seen", "./foo", "d", 0), 2, deps)
	mustDefine(t, r, derived("seen", "./foo", "d", 0), 3, deps)

	mustDefine(t, r, constant("d", 100), 1, nil)
	if err := r.Apply(2, nil); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	reapplied, _ := r.Module(2)
	untouched, _ := r.Module(3)
	if got := reapplied.Get("seen"); got != 100 {
		t.Errorf("Expected re-applied module to observe 100, got %v", got)
	}
	if got := untouched.Get("seen"); got != 10 {
		t.Errorf("Expected module that never re-applied to keep 10, got %v", got)
	}
}

func TestLiveBindings(t *testing.T) {
	r := registry.New()
	var count int
	var ctx *registry.Context
	mustDefine(t, r, func(c *registry.Context) error {
		ctx = c
		c.Exports(func() map[string]any { return map[string]any{"count": count} })
		return nil
	}, 1, nil)

	exports, _ := r.Module(1)
	count = 5
	if got := exports.Get("count"); got != 5 {
		t.Errorf("Expected live read of 5, got %v", got)
	}

	// A later definition of the same name shadows the earlier one.
	ctx.Exports(func() map[string]any { return map[string]any{"count": "replaced"} })
	if got := exports.Get("count"); got != "replaced" {
		t.Errorf("Expected later definition to win, got %v", got)
	}

	exports.Replace(func() map[string]any { return map[string]any{"other": true} })
	if diff := cmp.Diff([]string{"other"}, exports.Keys()); diff != "" {
		t.Errorf("Keys after Replace mismatch (-want +got):\n%s", diff)
	}
}

func TestReinvokedExportsRebindOnlyNamedKeys(t *testing.T) {
	r := registry.New()
	mustDefine(t, r, func(ctx *registry.Context) error {
		ctx.Exports(func() map[string]any { return map[string]any{"a": 1, "b": 2} })
		return nil
	}, 1, nil)

	ctx, _ := r.Context(1)
	ctx.Exports(func() map[string]any { return map[string]any{"a": 10} })

	exports, _ := r.Module(1)
	if diff := cmp.Diff(map[string]any{"a": 10, "b": 2}, exports.Snapshot()); diff != "" {
		t.Errorf("exports mismatch (-want +got):\n%s", diff)
	}
}

func TestNamespaceExcludesDefault(t *testing.T) {
	r := registry.New()
	mustDefine(t, r, func(ctx *registry.Context) error {
		ctx.Exports(func() map[string]any {
			return map[string]any{"default": "dflt", "foo": 1, "bar": 2, "baz": 3}
		})
		return nil
	}, 1, nil)

	var ns *registry.Exports
	mustDefine(t, r, func(ctx *registry.Context) error {
		foo, err := ctx.Require("./foo")
		if err != nil {
			return err
		}
		ns = ctx.Namespace(foo)
		ctx.Exports(ns.Snapshot)
		return nil
	}, 2, registry.DependencyMap{"./foo": registry.Redirect(1)})

	if diff := cmp.Diff([]string{"bar", "baz", "foo"}, ns.Keys()); diff != "" {
		t.Errorf("namespace keys mismatch (-want +got):\n%s", diff)
	}
	bar2, _ := r.Module(2)
	if _, ok := bar2.Read("default"); ok {
		t.Error("Expected re-export all to carry no default")
	}
	if got := bar2.Get("baz"); got != 3 {
		t.Errorf("Expected baz = 3 through re-export, got %v", got)
	}
}

func TestInterop(t *testing.T) {
	r := registry.New()
	mustDefine(t, r, func(ctx *registry.Context) error {
		ctx.SetModuleExports(100)
		return nil
	}, 1, nil)
	mustDefine(t, r, func(ctx *registry.Context) error {
		ctx.SetModuleExports(map[string]any{"named": "n"})
		return nil
	}, 2, nil)
	mustDefine(t, r, func(ctx *registry.Context) error {
		ctx.Exports(func() map[string]any { return map[string]any{"default": 1, "foo": "foo"} })
		return nil
	}, 3, nil)
	mustDefine(t, r, func(ctx *registry.Context) error {
		ctx.SetModuleExports(map[string]any{"default": "inner", "named": 1})
		return nil
	}, 4, nil)

	tests := []struct {
		name string
		id   registry.ModuleID
		want map[string]any
	}{
		{"commonjs scalar", 1, map[string]any{"default": 100}},
		{"commonjs object", 2, map[string]any{"default": map[string]any{"named": "n"}, "named": "n"}},
		{"esm as-is", 3, map[string]any{"default": 1, "foo": "foo"}},
		{"commonjs object with own default", 4, map[string]any{
			"default": map[string]any{"default": "inner", "named": 1},
			"named":   1,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exports, err := r.Module(tt.id)
			if err != nil {
				t.Fatalf("Module failed: %v", err)
			}
			if !exports.IsESM() {
				t.Error("Expected importers to observe ESM-shaped exports")
			}
			if diff := cmp.Diff(tt.want, exports.Snapshot()); diff != "" {
				t.Errorf("exports mismatch (-want +got):\n%s", diff)
			}
		})
	}

	// The synthesized view is stable for one exports identity.
	first, _ := r.Module(1)
	second, _ := r.Module(1)
	if first != second {
		t.Error("Expected cached interop view")
	}

	// Values handed over by the bundler interoperate the same way.
	mustDefine(t, r, func(ctx *registry.Context) error {
		dep, err := ctx.Require("legacy")
		if err != nil {
			return err
		}
		if got := dep.Get("default"); got != "raw" {
			return fmt.Errorf("default = %v", got)
		}
		return nil
	}, 4, registry.DependencyMap{"legacy": registry.Value("raw")})
}

func TestErrors(t *testing.T) {
	r := registry.New()

	if _, err := r.Module(42); !errors.Is(err, registry.ErrModuleNotFound) {
		t.Errorf("Expected ErrModuleNotFound, got %v", err)
	}
	if err := r.Apply(42, nil); !errors.Is(err, registry.ErrModuleNotFound) {
		t.Errorf("Expected ErrModuleNotFound from Apply, got %v", err)
	}

	err := r.Define(func(ctx *registry.Context) error {
		_, err := ctx.Require("./missing")
		return err
	}, 1, nil)
	if !errors.Is(err, registry.ErrUnknownSpecifier) {
		t.Errorf("Expected ErrUnknownSpecifier, got %v", err)
	}

	err = r.Define(func(ctx *registry.Context) error {
		_, err := ctx.Require("./zero")
		return err
	}, 2, registry.DependencyMap{"./zero": {}})
	if !errors.Is(err, registry.ErrInvalidDependency) {
		t.Errorf("Expected ErrInvalidDependency, got %v", err)
	}

	err = r.Define(func(ctx *registry.Context) error {
		_, err := ctx.Require("./gone")
		return err
	}, 3, registry.DependencyMap{"./gone": registry.Redirect(99)})
	if !errors.Is(err, registry.ErrModuleNotFound) {
		t.Errorf("Expected ErrModuleNotFound through redirect, got %v", err)
	}
}

func TestFactoryFailureKeepsPreviousExports(t *testing.T) {
	r := registry.New()
	mustDefine(t, r, constant("v", 1), 1, nil)
	before, _ := r.Module(1)

	boom := errors.New("boom")
	err := r.Define(func(ctx *registry.Context) error {
		ctx.Exports(func() map[string]any { return map[string]any{"v": 2} })
		return boom
	}, 1, nil)

	var evalErr *registry.EvaluationError
	if !errors.As(err, &evalErr) || !errors.Is(err, boom) {
		t.Fatalf("Expected EvaluationError wrapping boom, got %v", err)
	}

	ctx, _ := r.Context(1)
	if got := ctx.ModuleExports(); got.Get("v") != 1 {
		t.Errorf("Expected previous exports to be restored, got v = %v", got.Get("v"))
	}
	if before.Get("v") != 1 {
		t.Error("Expected previously observed exports to be untouched")
	}

	err = r.Define(func(*registry.Context) error { panic("kaboom") }, 2, nil)
	if !errors.As(err, &evalErr) || evalErr.ID != 2 {
		t.Errorf("Expected panics to surface as EvaluationError, got %v", err)
	}
}

func TestImportCycle(t *testing.T) {
	r := registry.New()
	r.Register(func(ctx *registry.Context) error {
		ctx.Exports(func() map[string]any { return map[string]any{"a": "a"} })
		b, err := ctx.Require("./b")
		if err != nil {
			return err
		}
		ctx.Exports(func() map[string]any { return map[string]any{"fromB": b.Get("b")} })
		return nil
	}, 1, registry.DependencyMap{"./b": registry.Redirect(2)})
	r.Register(func(ctx *registry.Context) error {
		a, err := ctx.Require("./a")
		if err != nil {
			return err
		}
		seen := a.Get("a")
		ctx.Exports(func() map[string]any { return map[string]any{"b": fmt.Sprint("b saw ", seen)} })
		return nil
	}, 2, registry.DependencyMap{"./a": registry.Redirect(1)})

	a, err := r.Module(1)
	if err != nil {
		t.Fatalf("Module failed: %v", err)
	}
	if got := a.Get("fromB"); got != "b saw a" {
		t.Errorf("Expected partially initialized exports across the cycle, got %v", got)
	}
}

func TestHotUpdate(t *testing.T) {
	r := registry.New()
	var events []string

	version := func(v int) registry.Factory {
		return func(ctx *registry.Context) error {
			hot := ctx.Hot()
			prev, _ := hot.Data()["version"].(int)
			events = append(events, fmt.Sprintf("eval v%d (prev %d)", v, prev))
			hot.Dispose(func(data map[string]any) {
				events = append(events, fmt.Sprintf("dispose v%d", v))
				data["version"] = v
			})
			hot.Accept(func(e *registry.Exports) {
				events = append(events, fmt.Sprintf("accept %v", e.Get("v")))
			})
			ctx.Exports(func() map[string]any { return map[string]any{"v": v} })
			return nil
		}
	}

	mustDefine(t, r, version(1), 1, nil)
	err := r.HotUpdate(1, func() error { return r.Define(version(2), 1, nil) })
	if err != nil {
		t.Fatalf("HotUpdate failed: %v", err)
	}

	want := []string{
		"eval v1 (prev 0)",
		"dispose v1",
		"eval v2 (prev 1)",
		"accept 2",
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("hot update sequence mismatch (-want +got):\n%s", diff)
	}

	err = r.HotUpdate(1, func() error {
		return r.Define(func(*registry.Context) error { return errors.New("syntax error") }, 1, nil)
	})
	if !errors.Is(err, registry.ErrReloadRequired) {
		t.Errorf("Expected ErrReloadRequired, got %v", err)
	}
}

func TestFactoryFailureKeepsHotCallbacks(t *testing.T) {
	r := registry.New()
	var events []string
	mustDefine(t, r, func(ctx *registry.Context) error {
		ctx.Hot().Dispose(func(map[string]any) { events = append(events, "dispose v1") })
		ctx.Hot().Accept(func(*registry.Exports) { events = append(events, "accept v1") })
		return nil
	}, 1, nil)

	if err := r.Define(func(*registry.Context) error { return errors.New("syntax error") }, 1, nil); err == nil {
		t.Fatal("Expected failing factory to return an error")
	}

	// The callbacks of the version still running survive the failed attempt.
	err := r.HotUpdate(1, func() error {
		return r.Define(func(*registry.Context) error { return nil }, 1, nil)
	})
	if err != nil {
		t.Fatalf("HotUpdate failed: %v", err)
	}
	if diff := cmp.Diff([]string{"dispose v1"}, events); diff != "" {
		t.Errorf("callback sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestClear(t *testing.T) {
	r := registry.New()
	mustDefine(t, r, constant("x", 1), 1, nil)
	r.Clear()

	if r.Len() != 0 {
		t.Errorf("Expected empty registry, got %d modules", r.Len())
	}
	if _, err := r.Module(1); !errors.Is(err, registry.ErrModuleNotFound) {
		t.Errorf("Expected ErrModuleNotFound after Clear, got %v", err)
	}
}
