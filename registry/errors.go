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

var (
	// ErrModuleNotFound matches every ModuleNotFoundError.
	ErrModuleNotFound = errors.New("module not found")
	// ErrUnknownSpecifier is returned when a module requires a specifier
	// missing from its dependency map.
	ErrUnknownSpecifier = errors.New("specifier not in dependency map")
	// ErrInvalidDependency is returned for a zero Dependency.
	ErrInvalidDependency = errors.New("invalid dependency")
	// ErrReloadRequired is returned by HotUpdate when the update could not be
	// applied in place and the host must reload.
	ErrReloadRequired = errors.New("full reload required")
)

// ModuleNotFoundError reports a require of an id that was never defined.
type ModuleNotFoundError struct {
	ID ModuleID
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module not found: %d", e.ID)
}

// Is matches ErrModuleNotFound.
func (e *ModuleNotFoundError) Is(target error) bool {
	return target == ErrModuleNotFound
}

// EvaluationError wraps a failure raised by a module factory.
type EvaluationError struct {
	ID  ModuleID
	Err error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluating module %d: %v", e.ID, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }
