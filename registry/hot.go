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
	"errors"
	"fmt"
)

// Hot lets a module take part in hot updates. Dispose callbacks run
// before the module is replaced; accept callbacks run with the new
// exports once the replacement evaluated.
type Hot struct {
	data    map[string]any
	accepts []func(*Exports)
	dispose []func(data map[string]any)
}

func newHot(data map[string]any) *Hot {
	if data == nil {
		data = make(map[string]any)
	}
	return &Hot{data: data}
}

func (h *Hot) reset() {
	h.accepts = nil
	h.dispose = nil
}

// Data is carried from one version of the module to the next.
func (h *Hot) Data() map[string]any { return h.data }

// Accept registers a callback for the module's next version.
func (h *Hot) Accept(cb func(*Exports)) {
	h.accepts = append(h.accepts, cb)
}

// Dispose registers cleanup to run before the module is replaced.
func (h *Hot) Dispose(cb func(data map[string]any)) {
	h.dispose = append(h.dispose, cb)
}

// HotUpdate applies an update the way the browser client does: it runs
// the module's dispose callbacks, calls apply (which evaluates the update
// body), then runs the accept callbacks registered by the new version.
// Any failure is reported as ErrReloadRequired, telling the host to fall
// back to a full reload.
func (r *Registry) HotUpdate(id ModuleID, apply func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		if err != nil && !errors.Is(err, ErrReloadRequired) {
			err = fmt.Errorf("%w: module %d: %w", ErrReloadRequired, id, err)
		}
	}()

	m, err := r.get(id)
	if err != nil {
		return err
	}

	for _, cb := range m.hot.dispose {
		cb(m.hot.data)
	}
	m.hot.reset()

	if err := apply(); err != nil {
		return err
	}

	exports, err := r.Module(id)
	if err != nil {
		return err
	}
	for _, cb := range m.hot.accepts {
		cb(exports)
	}
	return nil
}
