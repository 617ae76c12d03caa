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
// Package project locates a package's module entrypoints and builds its
// initial dependency graph for the CLI commands.
package project

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"bennypowers.dev/hotswap/fs"
	"bennypowers.dev/hotswap/graph"
	"bennypowers.dev/hotswap/inject"
	"bennypowers.dev/hotswap/resolve"
)

// ErrNoEntrypoints is returned when neither arguments, a glob, nor an
// index.html name a module to start from.
var ErrNoEntrypoints = errors.New("no entrypoints: provide files, use --glob, or add an index.html with module scripts")

// Entrypoints collects absolute module paths from files and glob matches.
// HTML files contribute the module scripts they load. With no files and no
// glob, root/index.html is used when present.
func Entrypoints(fsys fs.FileSystem, root string, files []string, glob string) ([]string, error) {
	if glob != "" {
		matches, err := doublestar.FilepathGlob(glob)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern: %w", err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		index := filepath.Join(root, "index.html")
		if fs.IsFile(fsys, index) {
			files = []string{index}
		}
	}

	seen := make(map[string]bool)
	var entries []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			entries = append(entries, path)
		}
	}

	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return nil, fmt.Errorf("invalid file path %q: %w", file, err)
		}
		if !strings.HasSuffix(abs, ".html") {
			add(abs)
			continue
		}

		content, err := fsys.ReadFile(abs)
		if err != nil {
			return nil, err
		}
		srcs, err := inject.FindEntrypoints(content)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", abs, err)
		}
		for _, src := range srcs {
			add(ScriptPath(root, abs, src))
		}
	}

	if len(entries) == 0 {
		return nil, ErrNoEntrypoints
	}
	return entries, nil
}

// ScriptPath maps a script src found in page to a file path. Root-absolute
// srcs are served from root; anything else is relative to the page.
func ScriptPath(root, page, src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	if strings.HasPrefix(src, "/") {
		return filepath.Join(root, filepath.FromSlash(src))
	}
	return filepath.Join(filepath.Dir(page), filepath.FromSlash(src))
}

// ParseAliases turns key=value pairs into resolver aliases.
func ParseAliases(pairs []string) (map[string]string, error) {
	aliases := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("invalid alias %q: want key=value", pair)
		}
		aliases[key] = value
	}
	return aliases, nil
}

// Load crawls the graph reachable from entries. Modules that fail to
// resolve are reported in the returned error alongside the partial graph.
func Load(ctx context.Context, fsys fs.FileSystem, entries []string, opts resolve.Options) (*graph.Graph, *resolve.Resolver, error) {
	resolver := resolve.New(fsys, opts)
	g := graph.New(resolver)
	_, err := g.Crawl(ctx, entries...)
	return g, resolver, err
}
