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
	"encoding/json"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
)

// Metafile is the subset of an esbuild metafile the graph reads.
type Metafile struct {
	Inputs map[string]MetafileInput `json:"inputs"`
}

// MetafileInput is one source file of the build.
type MetafileInput struct {
	Bytes   int              `json:"bytes"`
	Imports []MetafileImport `json:"imports"`
}

// MetafileImport is one import of an input. Path is relative to the build root;
// Original is the specifier as written.
type MetafileImport struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
	Original string `json:"original,omitempty"`
}

// LoadMetafile seeds the graph from the metafile of an initial build.
// Input paths are resolved against root. Modules already in the graph keep
// their ids and have their edges replaced.
func (g *Graph) LoadMetafile(data []byte, root string) error {
	var meta Metafile
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("parsing metafile: %w", err)
	}

	abs := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(root, p)
	}

	inputs := slices.Sorted(maps.Keys(meta.Inputs))
	for _, input := range inputs {
		g.Register(abs(input))
	}

	for _, input := range inputs {
		var deps []Dependency
		imports := make(map[string]ModuleID)

		for _, imp := range meta.Inputs[input].Imports {
			if imp.External {
				continue
			}
			target := g.Register(abs(imp.Path))
			specifier := imp.Original
			if specifier == "" {
				specifier = imp.Path
			}
			deps = append(deps, Dependency{Specifier: specifier, ID: target.ID})
			imports[specifier] = target.ID
		}

		mod, err := g.UpdateModule(abs(input), deps)
		if err != nil {
			return err
		}
		if err := g.SetMeta(mod.ID, Meta{Imports: imports}); err != nil {
			return err
		}
	}

	return nil
}
