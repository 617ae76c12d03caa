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

// Package fs provides the filesystem abstraction shared by the resolver,
// the dependency graph and the dev server.
package fs

import (
	"io/fs"
	"os"
)

// FileSystem is the subset of filesystem operations hotswap needs.
// Tests substitute an in-memory implementation.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error
	ReadDir(name string) ([]fs.DirEntry, error)
	Stat(name string) (fs.FileInfo, error)
	Exists(path string) bool

	// Open makes a FileSystem usable with fs.WalkDir and http.FS.
	Open(name string) (fs.File, error)
}

// IsFile reports whether path exists and is not a directory.
func IsFile(fsys FileSystem, path string) bool {
	info, err := fsys.Stat(path)
	return err == nil && !info.IsDir()
}

// IsDir reports whether path exists and is a directory.
func IsDir(fsys FileSystem, path string) bool {
	info, err := fsys.Stat(path)
	return err == nil && info.IsDir()
}

// OSFileSystem implements FileSystem on top of the os package.
type OSFileSystem struct{}

// NewOSFileSystem returns a FileSystem backed by the host filesystem.
func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

func (f *OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (f *OSFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (f *OSFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(name)
}

func (f *OSFileSystem) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

func (f *OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (f *OSFileSystem) Open(name string) (fs.File, error) {
	return os.Open(name)
}
