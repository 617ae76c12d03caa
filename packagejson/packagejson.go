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

// Package packagejson parses package.json files and resolves the entry
// points they declare for bare and package-internal specifiers.
package packagejson

import (
	"encoding/json"
	"errors"
	"strings"

	"bennypowers.dev/hotswap/fs"
)

// ErrNotExported is returned when a subpath is not exported by the package.
var ErrNotExported = errors.New("not exported by package.json")

// DefaultConditions is the export condition priority for the dev server.
var DefaultConditions = []string{"development", "browser", "import", "default"}

// ResolveOptions configures how conditional exports are resolved.
type ResolveOptions struct {
	// Conditions is the ordered list of conditions to try.
	// If empty, DefaultConditions is used.
	Conditions []string
}

func (o *ResolveOptions) conditions() []string {
	if o != nil && len(o.Conditions) > 0 {
		return o.Conditions
	}
	return DefaultConditions
}

// PackageJSON is the subset of package.json the resolver reads.
type PackageJSON struct {
	Name          string          `json:"name"`
	Version       string          `json:"version"`
	Type          string          `json:"type,omitempty"`
	Main          string          `json:"main,omitempty"`
	Module        string          `json:"module,omitempty"`
	Exports       any             `json:"exports,omitempty"`
	Imports       map[string]any  `json:"imports,omitempty"`
	RawWorkspaces json.RawMessage `json:"workspaces,omitempty"`
}

// Parse parses package.json data.
func Parse(data []byte) (*PackageJSON, error) {
	var pkg PackageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// ParseFile parses a package.json file.
func ParseFile(fsys fs.FileSystem, path string) (*PackageJSON, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// WorkspacePatterns returns the workspace globs, accepting both the array
// form and yarn's {"packages": [...]} form.
func (pkg *PackageJSON) WorkspacePatterns() []string {
	if len(pkg.RawWorkspaces) == 0 {
		return nil
	}

	var patterns []string
	if err := json.Unmarshal(pkg.RawWorkspaces, &patterns); err == nil {
		return patterns
	}

	var obj struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(pkg.RawWorkspaces, &obj); err == nil {
		return obj.Packages
	}
	return nil
}

// ResolveExport resolves a subpath ("." or "./sub") through the exports
// field. Packages without exports fall back to module, then main, then
// index.js for ".", and expose every other subpath as-is.
// The result carries no leading "./".
func (pkg *PackageJSON) ResolveExport(subpath string, opts *ResolveOptions) (string, error) {
	if pkg.Exports == nil {
		if subpath != "." {
			return trimDotSlash(subpath), nil
		}
		switch {
		case pkg.Module != "":
			return trimDotSlash(pkg.Module), nil
		case pkg.Main != "":
			return trimDotSlash(pkg.Main), nil
		}
		return "index.js", nil
	}

	exportsMap, ok := pkg.Exports.(map[string]any)
	if !ok || !hasSubpathKeys(exportsMap) {
		// String, array, or condition-only exports describe "." alone.
		if subpath != "." {
			return "", ErrNotExported
		}
		return resolveTarget(pkg.Exports, "", opts.conditions())
	}

	return resolveMapped(exportsMap, subpath, opts.conditions())
}

// ResolveImport resolves a package-internal "#specifier" through the
// imports field.
func (pkg *PackageJSON) ResolveImport(specifier string, opts *ResolveOptions) (string, error) {
	if !strings.HasPrefix(specifier, "#") || pkg.Imports == nil {
		return "", ErrNotExported
	}
	return resolveMapped(pkg.Imports, specifier, opts.conditions())
}

// resolveMapped looks key up in a subpath map, falling back to the "*"
// pattern with the longest matching prefix.
func resolveMapped(m map[string]any, key string, conditions []string) (string, error) {
	if target, ok := m[key]; ok {
		return resolveTarget(target, "", conditions)
	}

	bestPattern, bestMatch, bestLen := "", "", -1
	for pattern := range m {
		prefix, suffix, ok := strings.Cut(pattern, "*")
		if !ok || !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, suffix) {
			continue
		}
		if len(key) < len(prefix)+len(suffix) {
			continue
		}
		if len(prefix) > bestLen {
			bestPattern, bestLen = pattern, len(prefix)
			bestMatch = key[len(prefix) : len(key)-len(suffix)]
		}
	}
	if bestLen < 0 {
		return "", ErrNotExported
	}
	return resolveTarget(m[bestPattern], bestMatch, conditions)
}

// resolveTarget resolves a target value: a string, a condition map, or a
// fallback array. A null target blocks the subpath.
func resolveTarget(value any, match string, conditions []string) (string, error) {
	switch v := value.(type) {
	case string:
		return trimDotSlash(strings.ReplaceAll(v, "*", match)), nil
	case map[string]any:
		for _, cond := range conditions {
			if next, ok := v[cond]; ok {
				if resolved, err := resolveTarget(next, match, conditions); err == nil {
					return resolved, nil
				}
			}
		}
	case []any:
		for _, item := range v {
			if resolved, err := resolveTarget(item, match, conditions); err == nil {
				return resolved, nil
			}
		}
	}
	return "", ErrNotExported
}

func hasSubpathKeys(m map[string]any) bool {
	for key := range m {
		if strings.HasPrefix(key, ".") {
			return true
		}
	}
	return false
}

func trimDotSlash(path string) string {
	return strings.TrimPrefix(path, "./")
}
