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

// Context is the runtime API a module factory sees.
type Context struct {
	r *Registry
	m *module
}

// ID returns the module's id.
func (c *Context) ID() ModuleID { return c.m.id }

// Require resolves a specifier through the module's dependency map.
// CommonJS values come back wrapped as {default: value, ...}.
func (c *Context) Require(specifier string) (*Exports, error) {
	dep, ok := c.m.deps[specifier]
	if !ok {
		return nil, fmt.Errorf("module %d: %w: %q", c.m.id, ErrUnknownSpecifier, specifier)
	}
	exports, err := c.r.resolve(dep)
	if err != nil {
		return nil, fmt.Errorf("module %d requiring %q: %w", c.m.id, specifier, err)
	}
	return exports, nil
}

// Import resolves a static or dynamic import. It observes the same exports
// as Require.
func (c *Context) Import(specifier string) (*Exports, error) {
	return c.Require(specifier)
}

// Exports defines ESM bindings on the module's exports. Each read calls
// defs again, so a later call with new definitions changes what importers
// observe without re-requiring.
func (c *Context) Exports(defs Definitions) {
	if !c.m.exports.IsESM() {
		c.m.exports = newESM()
	}
	c.m.exports.Define(defs)
}

// Namespace builds the exports of export * from src. It carries every
// binding of src except default.
func (c *Context) Namespace(src *Exports) *Exports {
	return namespace(src)
}

// ModuleExports returns the current exports object, the target of
// CommonJS-style exports.name assignments.
func (c *Context) ModuleExports() *Exports {
	return c.m.exports
}

// SetModuleExports replaces the exports outright, as module.exports = v
// does. Importers see v as {default: v, ...}.
func (c *Context) SetModuleExports(v any) {
	if e, ok := v.(*Exports); ok {
		c.m.exports = e
		return
	}
	c.m.exports = CommonJS(v)
}

// Hot returns the module's hot-update handle.
func (c *Context) Hot() *Hot {
	return c.m.hot
}
