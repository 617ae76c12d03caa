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
	"errors"
	"fmt"
)

var (
	// ErrModuleNotFound matches every ModuleNotFoundError.
	ErrModuleNotFound = errors.New("module not found")
	// ErrDuplicateModule matches every DuplicateModuleError.
	ErrDuplicateModule = errors.New("module already registered")
	// ErrNoResolver is returned by SyncModule on a graph built without a resolver.
	ErrNoResolver = errors.New("graph has no resolver")
)

// ModuleNotFoundError reports an operation on a path or id the graph does not know.
// Orchestrators register before they update, so this always indicates a bug.
type ModuleNotFoundError struct {
	Path string
	ID   ModuleID
}

func (e *ModuleNotFoundError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("module not found: %s", e.Path)
	}
	return fmt.Sprintf("module not found: %d", e.ID)
}

// Is matches ErrModuleNotFound.
func (e *ModuleNotFoundError) Is(target error) bool {
	return target == ErrModuleNotFound
}

// DuplicateModuleError is returned by AddModule for a path that is already registered.
type DuplicateModuleError struct {
	Path string
	ID   ModuleID
}

func (e *DuplicateModuleError) Error() string {
	return fmt.Sprintf("module already registered: %s (id %d)", e.Path, e.ID)
}

// Is matches ErrDuplicateModule.
func (e *DuplicateModuleError) Is(target error) bool {
	return target == ErrDuplicateModule
}
