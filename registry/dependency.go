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

import "fmt"

type dependencyKind int

const (
	depInvalid dependencyKind = iota
	depValue
	depThunk
	depRedirect
)

// Dependency is one entry of a dependency map: a precomputed exports value,
// a thunk evaluated on each require, or a redirect to another module id.
// The zero Dependency is invalid.
type Dependency struct {
	kind  dependencyKind
	value any
	thunk func() any
	id    ModuleID
}

// Value is a dependency on a value computed ahead of time.
func Value(v any) Dependency {
	return Dependency{kind: depValue, value: v}
}

// Thunk is a dependency resolved by calling f on every require, used for
// CommonJS and deferred imports.
func Thunk(f func() any) Dependency {
	return Dependency{kind: depThunk, thunk: f}
}

// Redirect is a dependency on whatever module id currently exports.
func Redirect(id ModuleID) Dependency {
	return Dependency{kind: depRedirect, id: id}
}

// RedirectID returns the target of a Redirect dependency.
func (d Dependency) RedirectID() (ModuleID, bool) {
	return d.id, d.kind == depRedirect
}

func (d Dependency) String() string {
	switch d.kind {
	case depValue:
		return fmt.Sprintf("value(%T)", d.value)
	case depThunk:
		return "thunk"
	case depRedirect:
		return fmt.Sprintf("redirect(%d)", d.id)
	}
	return "invalid"
}

// DependencyMap maps import specifiers to dependencies.
type DependencyMap map[string]Dependency
