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

// Package resolve finds the imports of a module file and maps each
// specifier to the absolute path of the file it loads.
package resolve

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"path"
	"path/filepath"
	"strings"

	"bennypowers.dev/hotswap/fs"
	"bennypowers.dev/hotswap/packagejson"
)

// ErrUnresolved matches every ResolutionError.
var ErrUnresolved = errors.New("cannot resolve specifier")

// DefaultExtensions are probed, in order, for specifiers without a file extension.
var DefaultExtensions = []string{".ts", ".tsx", ".mts", ".js", ".jsx", ".mjs", ".cjs", ".json"}

// ResolutionError reports a specifier that does not lead to a file.
type ResolutionError struct {
	Specifier string
	Importer  string
	Err       error
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("cannot resolve %q from %s", e.Specifier, e.Importer)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Is matches ErrUnresolved.
func (e *ResolutionError) Is(target error) bool { return target == ErrUnresolved }

// Resolution pairs a resolved file with the specifier that requested it.
type Resolution struct {
	Path    string `json:"path"`
	Request string `json:"request"`
}

// Options mirrors the bundler options that affect resolution.
type Options struct {
	// Root anchors root-absolute specifiers such as "/src/app.js".
	Root string
	// Aliases replace a specifier, or its leading path segment, before resolution.
	// Targets starting with "./" are relative to Root.
	Aliases map[string]string
	// Conditions is the export condition priority for package.json exports.
	Conditions []string
	// Extensions are probed for extensionless specifiers.
	Extensions []string
}

// Resolver resolves module imports against a filesystem.
type Resolver struct {
	fs       fs.FileSystem
	opts     Options
	pkgCache *packagejson.MemoryCache
}

// New creates a Resolver.
func New(fsys fs.FileSystem, opts Options) *Resolver {
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	return &Resolver{
		fs:       fsys,
		opts:     opts,
		pkgCache: packagejson.NewMemoryCache(),
	}
}

// WithPackageCache returns a copy of r sharing the given package.json cache.
func (r *Resolver) WithPackageCache(cache *packagejson.MemoryCache) *Resolver {
	return &Resolver{fs: r.fs, opts: r.opts, pkgCache: cache}
}

// InvalidatePackage forgets a cached package.json after it changed on disk.
func (r *Resolver) InvalidatePackage(pkgJSONPath string) {
	r.pkgCache.Invalidate(pkgJSONPath)
}

// Root returns the resolution root.
func (r *Resolver) Root() string {
	return r.opts.Root
}

// ResolveFrom reads the module at path and resolves each distinct specifier
// it imports, in source order. Specifiers that point outside the local
// module graph (URLs, data: and node: imports) are left out. The first
// specifier that cannot be resolved fails the whole call.
func (r *Resolver) ResolveFrom(ctx context.Context, path string) ([]Resolution, error) {
	content, err := r.fs.ReadFile(path)
	if err != nil {
		return nil, err
	}

	imports, err := ExtractImports(content, path)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(imports))
	var resolutions []Resolution

	for _, imp := range imports {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seen[imp.Specifier] || IsExternal(imp.Specifier) {
			continue
		}
		seen[imp.Specifier] = true

		resolved, err := r.Resolve(imp.Specifier, path)
		if err != nil {
			return nil, err
		}
		resolutions = append(resolutions, Resolution{Path: resolved, Request: imp.Specifier})
	}

	return resolutions, nil
}

// Resolve maps one specifier, imported from importer, to a file path.
func (r *Resolver) Resolve(specifier, importer string) (string, error) {
	fail := func(err error) (string, error) {
		return "", &ResolutionError{Specifier: specifier, Importer: importer, Err: err}
	}

	spec := r.applyAlias(specifier)
	importerDir := filepath.Dir(importer)

	var candidate string
	switch {
	case strings.HasPrefix(spec, "#"):
		pkgDir, pkg := r.nearestPackage(importerDir)
		if pkg == nil {
			return fail(errors.New("no package.json for subpath import"))
		}
		target, err := pkg.ResolveImport(spec, r.resolveOptions())
		if err != nil {
			return fail(err)
		}
		candidate = filepath.Join(pkgDir, target)
	case isRelative(spec):
		candidate = filepath.Join(importerDir, spec)
	case strings.HasPrefix(spec, "/"):
		candidate = filepath.Join(r.opts.Root, spec)
	case filepath.IsAbs(spec):
		candidate = spec
	default:
		resolved, err := r.resolveBare(spec, importerDir)
		if err != nil {
			return fail(err)
		}
		candidate = resolved
	}

	if file, ok := r.probe(candidate); ok {
		return file, nil
	}
	return fail(iofs.ErrNotExist)
}

func (r *Resolver) resolveOptions() *packagejson.ResolveOptions {
	return &packagejson.ResolveOptions{Conditions: r.opts.Conditions}
}

// applyAlias rewrites spec using the longest matching alias key.
func (r *Resolver) applyAlias(spec string) string {
	best := ""
	for key := range r.opts.Aliases {
		if (spec == key || strings.HasPrefix(spec, key+"/")) && len(key) > len(best) {
			best = key
		}
	}
	if best == "" {
		return spec
	}

	target := r.opts.Aliases[best] + strings.TrimPrefix(spec, best)
	if isRelative(target) {
		return filepath.Join(r.opts.Root, target)
	}
	return target
}

// resolveBare resolves a package specifier. A package importing itself by
// name resolves through its own exports; everything else is looked up in
// node_modules directories from fromDir upward.
func (r *Resolver) resolveBare(spec, fromDir string) (string, error) {
	name := PackageName(spec)
	subpath := "." + strings.TrimPrefix(spec, name)

	if selfDir, self := r.nearestPackage(fromDir); self != nil && self.Name == name {
		target, err := self.ResolveExport(subpath, r.resolveOptions())
		if err != nil {
			return "", err
		}
		return filepath.Join(selfDir, target), nil
	}

	for dir := fromDir; ; dir = filepath.Dir(dir) {
		pkgDir := filepath.Join(dir, "node_modules", name)
		if pkg, err := r.pkgCache.Load(r.fs, filepath.Join(pkgDir, "package.json")); err == nil {
			target, err := pkg.ResolveExport(subpath, r.resolveOptions())
			if err != nil {
				return "", err
			}
			return filepath.Join(pkgDir, target), nil
		}
		if fs.IsDir(r.fs, pkgDir) {
			// Package without package.json: plain directory lookup.
			return filepath.Join(pkgDir, strings.TrimPrefix(subpath, ".")), nil
		}
		if parent := filepath.Dir(dir); parent == dir {
			break
		}
	}

	return "", fmt.Errorf("package %s not found in node_modules", name)
}

// nearestPackage finds the closest package.json at or above dir.
func (r *Resolver) nearestPackage(dir string) (string, *packagejson.PackageJSON) {
	for {
		if pkg, err := r.pkgCache.Load(r.fs, filepath.Join(dir, "package.json")); err == nil {
			return dir, pkg
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// probe finds the file a candidate path refers to: the path itself, the
// path with a known extension, a TypeScript source behind a ".js"
// specifier, or a directory's package entry or index file.
func (r *Resolver) probe(candidate string) (string, bool) {
	if fs.IsFile(r.fs, candidate) {
		return candidate, true
	}
	for _, ext := range r.opts.Extensions {
		if fs.IsFile(r.fs, candidate+ext) {
			return candidate + ext, true
		}
	}

	if base, ok := strings.CutSuffix(candidate, ".js"); ok {
		for _, ext := range []string{".ts", ".tsx"} {
			if fs.IsFile(r.fs, base+ext) {
				return base + ext, true
			}
		}
	}

	if !fs.IsDir(r.fs, candidate) {
		return "", false
	}
	if pkg, err := r.pkgCache.Load(r.fs, filepath.Join(candidate, "package.json")); err == nil {
		if entry, err := pkg.ResolveExport(".", r.resolveOptions()); err == nil {
			if file, ok := r.probeFile(filepath.Join(candidate, entry)); ok {
				return file, true
			}
		}
	}
	return r.probeFile(filepath.Join(candidate, "index"))
}

func (r *Resolver) probeFile(candidate string) (string, bool) {
	if fs.IsFile(r.fs, candidate) {
		return candidate, true
	}
	for _, ext := range r.opts.Extensions {
		if fs.IsFile(r.fs, candidate+ext) {
			return candidate + ext, true
		}
	}
	return "", false
}

// IsExternal reports whether a specifier loads something outside the
// local module graph.
func IsExternal(spec string) bool {
	return strings.Contains(spec, "://") ||
		strings.HasPrefix(spec, "data:") ||
		strings.HasPrefix(spec, "node:")
}

// IsBareSpecifier reports whether spec names a package rather than a path.
func IsBareSpecifier(spec string) bool {
	if spec == "" || isRelative(spec) || strings.HasPrefix(spec, "/") || strings.HasPrefix(spec, "#") {
		return false
	}
	return !IsExternal(spec)
}

func isRelative(spec string) bool {
	return spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

// PackageName extracts the package name from a bare specifier:
// "lit/decorators.js" is "lit", "@scope/pkg/sub" is "@scope/pkg".
func PackageName(spec string) string {
	if strings.HasPrefix(spec, "@") {
		parts := strings.SplitN(spec, "/", 3)
		if len(parts) >= 2 {
			return path.Join(parts[0], parts[1])
		}
		return spec
	}
	name, _, _ := strings.Cut(spec, "/")
	return name
}

// FindWorkspaceRoot walks up from startDir to the nearest directory holding
// node_modules, a workspaces package.json, or .git. It returns startDir when
// none is found.
func FindWorkspaceRoot(fsys fs.FileSystem, startDir string) string {
	for dir := startDir; ; {
		if fs.IsDir(fsys, filepath.Join(dir, "node_modules")) {
			return dir
		}
		if pkg, err := packagejson.ParseFile(fsys, filepath.Join(dir, "package.json")); err == nil && len(pkg.WorkspacePatterns()) > 0 {
			return dir
		}
		if fs.IsDir(fsys, filepath.Join(dir, ".git")) {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// WebPath converts a path under root into a root-absolute URL path.
// It returns "" for paths outside root.
func WebPath(root, fullPath string) string {
	rel, err := filepath.Rel(root, fullPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return "/" + filepath.ToSlash(rel)
}
