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
// Package mapfs provides an in-memory filesystem for tests.
package mapfs

import (
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"
	"testing/fstest"
	"time"
)

// MapFileSystem implements fs.FileSystem over an fstest.MapFS.
// Every write advances the modification clock so tests can observe edits.
type MapFileSystem struct {
	mu      sync.RWMutex
	mapFS   fstest.MapFS
	modTime time.Time
}

// New creates an empty in-memory filesystem.
func New() *MapFileSystem {
	return &MapFileSystem{
		mapFS:   make(fstest.MapFS),
		modTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// AddFile adds a file, replacing any existing content.
func (mfs *MapFileSystem) AddFile(name string, content string, mode fs.FileMode) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	mfs.putLocked(name, []byte(content), mode)
}

// WriteFile implements fs.FileSystem.
func (mfs *MapFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	key := clean(name)
	if parent, ok := mfs.mapFS[path.Dir(key)]; ok && !parent.Mode.IsDir() {
		return &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	mfs.putLocked(name, append([]byte(nil), data...), perm)
	return nil
}

// Remove deletes a single file.
func (mfs *MapFileSystem) Remove(name string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	key := clean(name)
	if _, ok := mfs.mapFS[key]; !ok {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	delete(mfs.mapFS, key)
	return nil
}

// ReadFile implements fs.FileSystem.
func (mfs *MapFileSystem) ReadFile(name string) ([]byte, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return fs.ReadFile(mfs.mapFS, clean(name))
}

// ReadDir implements fs.FileSystem.
func (mfs *MapFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return fs.ReadDir(mfs.mapFS, clean(name))
}

// Stat implements fs.FileSystem.
func (mfs *MapFileSystem) Stat(name string) (fs.FileInfo, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return fs.Stat(mfs.mapFS, clean(name))
}

// Exists implements fs.FileSystem. Directories exist when any file lives below them.
func (mfs *MapFileSystem) Exists(name string) bool {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	key := clean(name)
	if _, ok := mfs.mapFS[key]; ok || key == "." {
		return true
	}
	prefix := key + "/"
	for p := range mfs.mapFS {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// Open implements fs.FileSystem.
func (mfs *MapFileSystem) Open(name string) (fs.File, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return mfs.mapFS.Open(clean(name))
}

// Files returns the absolute paths of every file, sorted.
func (mfs *MapFileSystem) Files() []string {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	files := make([]string, 0, len(mfs.mapFS))
	for p, f := range mfs.mapFS {
		if !f.Mode.IsDir() {
			files = append(files, "/"+p)
		}
	}
	slices.Sort(files)
	return files
}

func (mfs *MapFileSystem) putLocked(name string, data []byte, mode fs.FileMode) {
	mfs.modTime = mfs.modTime.Add(time.Second)
	mfs.mapFS[clean(name)] = &fstest.MapFile{
		Data:    data,
		Mode:    mode,
		ModTime: mfs.modTime,
	}
}

// clean maps an absolute or relative path onto an fs.FS key.
func clean(p string) string {
	cleaned := path.Clean("/" + p)
	if cleaned == "/" {
		return "."
	}
	return strings.TrimPrefix(cleaned, "/")
}
