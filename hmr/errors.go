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
	"errors"
	"fmt"

	"bennypowers.dev/hotswap/graph"
)

// ErrInvalidHmrState matches every InvalidHmrStateError.
var ErrInvalidHmrState = errors.New("invalid hmr state")

// InvalidHmrStateError reports a module whose transform output or graph
// bookkeeping disagrees with its resolved imports. The batch it belongs to
// cannot be applied in place.
type InvalidHmrStateError struct {
	ID     graph.ModuleID
	Path   string
	Reason string
}

func (e *InvalidHmrStateError) Error() string {
	return fmt.Sprintf("invalid hmr state for %s (id %d): %s", e.Path, e.ID, e.Reason)
}

// Is matches ErrInvalidHmrState.
func (e *InvalidHmrStateError) Is(target error) bool {
	return target == ErrInvalidHmrState
}
