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
// Package testutil loads testdata fixtures into in-memory filesystems.
package testutil

import (
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"bennypowers.dev/hotswap/internal/mapfs"
)

// testdataDir finds the repository's testdata directory from a package
// directory at most two levels below the module root.
func testdataDir(t *testing.T) string {
	t.Helper()
	for _, dir := range []string{"testdata", "../testdata", "../../testdata"} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	t.Fatal("testdata directory not found")
	return ""
}

// NewFixtureFS copies testdata/<fixtureDir> into a MapFileSystem rooted at rootPath.
func NewFixtureFS(t *testing.T, fixtureDir string, rootPath string) *mapfs.MapFileSystem {
	t.Helper()

	src := filepath.Join(testdataDir(t), fixtureDir)
	mfs := mapfs.New()
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		mfs.AddFile(filepath.Join(rootPath, rel), string(content), 0644)
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to load fixture %s: %v", fixtureDir, err)
	}
	return mfs
}

// NewMapFS builds an in-memory filesystem from inline files keyed by absolute path.
func NewMapFS(t *testing.T, files map[string]string) *mapfs.MapFileSystem {
	t.Helper()
	mfs := mapfs.New()
	for _, name := range slices.Sorted(maps.Keys(files)) {
		mfs.AddFile(name, files[name], 0644)
	}
	return mfs
}

// LoadFixtureFile reads one file relative to testdata/.
func LoadFixtureFile(t *testing.T, fixturePath string) []byte {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(testdataDir(t), fixturePath))
	if err != nil {
		t.Fatalf("Failed to read fixture %s: %v", fixturePath, err)
	}
	return content
}
