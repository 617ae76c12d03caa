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
// Package graph provides the graph command for hotswap.
package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bennypowers.dev/hotswap/fs"
	"bennypowers.dev/hotswap/graph"
	"bennypowers.dev/hotswap/internal/output"
	"bennypowers.dev/hotswap/internal/project"
	"bennypowers.dev/hotswap/resolve"
)

// Cmd is the graph cobra command that crawls a package's module graph and
// prints it, or the dependents a change to one module would reach.
var Cmd = &cobra.Command{
	Use:   "graph [file...]",
	Short: "Print the module dependency graph",
	Long: `Crawl the ES module graph reachable from the given files and print it.

Files may be modules or HTML pages; pages contribute the module scripts they
load. Without arguments, the package's index.html is used.
Use --inverse to list the modules an update to one file would re-evaluate.`,
	Example: `  # Graph the modules loaded by index.html
  hotswap graph

  # Graph specific entrypoints as text
  hotswap graph src/main.js src/worker.js --format text

  # Which modules depend on a file, transitively?
  hotswap graph --inverse src/utils/format.js

  # Read the graph from an esbuild metafile instead of crawling
  hotswap graph --metafile dist/meta.json`,
	RunE: run,
}

func init() {
	Cmd.Flags().StringP("format", "f", "json", "Output format (json, text)")
	Cmd.Flags().String("glob", "", "Glob pattern to match entrypoint files (e.g., \"src/pages/*.js\")")
	Cmd.Flags().String("inverse", "", "Print the transitive dependents of this file")
	Cmd.Flags().String("metafile", "", "Load the graph from an esbuild metafile")
	Cmd.Flags().StringSlice("alias", nil, "Specifier aliases as key=value (e.g., ~=./src)")
	Cmd.Flags().StringSlice("conditions", nil, "Export condition priority (e.g., development,browser,import,default)")
}

// entry is one module as printed, with its path relative to the package.
type entry struct {
	ID           graph.ModuleID     `json:"id"`
	Path         string             `json:"path"`
	Dependencies []graph.Dependency `json:"dependencies"`
	Dependents   []graph.ModuleID   `json:"dependents"`
}

func run(cmd *cobra.Command, args []string) error {
	osfs := fs.NewOSFileSystem()

	absRoot, err := filepath.Abs(viper.GetString("package"))
	if err != nil {
		return fmt.Errorf("invalid package directory: %w", err)
	}

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("error reading format flag: %w", err)
	}
	if format != "json" && format != "text" {
		return fmt.Errorf("unknown format %q (want json or text)", format)
	}

	g, err := load(cmd.Context(), cmd, osfs, absRoot, args)
	if err != nil {
		return err
	}

	modules := g.Modules()
	if inverse, _ := cmd.Flags().GetString("inverse"); inverse != "" {
		if modules, err = dependents(g, inverse); err != nil {
			return err
		}
	}

	entries := make([]entry, 0, len(modules))
	for _, m := range modules {
		entries = append(entries, entry{
			ID:           m.ID,
			Path:         relPath(absRoot, m.Path),
			Dependencies: m.Dependencies,
			Dependents:   m.Dependents,
		})
	}

	if format == "text" {
		return output.Write(osfs, formatText(entries))
	}
	return output.JSON(osfs, entries)
}

func load(ctx context.Context, cmd *cobra.Command, osfs fs.FileSystem, root string, args []string) (*graph.Graph, error) {
	if metafile, _ := cmd.Flags().GetString("metafile"); metafile != "" {
		data, err := osfs.ReadFile(metafile)
		if err != nil {
			return nil, fmt.Errorf("failed to read metafile: %w", err)
		}
		g := graph.New(nil)
		if err := g.LoadMetafile(data, root); err != nil {
			return nil, err
		}
		return g, nil
	}

	glob, _ := cmd.Flags().GetString("glob")
	entries, err := project.Entrypoints(osfs, root, args, glob)
	if err != nil {
		return nil, err
	}

	aliasPairs, _ := cmd.Flags().GetStringSlice("alias")
	aliases, err := project.ParseAliases(aliasPairs)
	if err != nil {
		return nil, err
	}
	conditions, _ := cmd.Flags().GetStringSlice("conditions")

	g, _, err := project.Load(ctx, osfs, entries, resolve.Options{
		Root:       root,
		Aliases:    aliases,
		Conditions: conditions,
	})
	if err != nil {
		// Unresolvable imports leave holes in the graph but do not stop it printing.
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	return g, nil
}

func dependents(g *graph.Graph, file string) ([]*graph.Module, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, fmt.Errorf("invalid file path %q: %w", file, err)
	}
	m, err := g.Module(abs)
	if err != nil {
		return nil, err
	}
	ids, err := g.InverseDependenciesOf(m.ID)
	if err != nil {
		return nil, err
	}
	modules := make([]*graph.Module, 0, len(ids))
	for _, id := range ids {
		dep, err := g.ModuleByID(id)
		if err != nil {
			return nil, err
		}
		modules = append(modules, dep)
	}
	return modules, nil
}

func formatText(entries []entry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d %s", e.ID, e.Path)
		for _, dep := range e.Dependencies {
			fmt.Fprintf(&b, "\n  %s -> %d", dep.Specifier, dep.ID)
		}
	}
	return b.String()
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
