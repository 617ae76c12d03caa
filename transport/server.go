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
package transport

import (
	"bytes"
	"context"
	"errors"
	iofs "io/fs"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"bennypowers.dev/hotswap/fs"
	"bennypowers.dev/hotswap/inject"
)

// Bundler assembles the development bundle.
type Bundler interface {
	Bundle(ctx context.Context) ([]byte, error)
}

// ServerOptions configure NewServer.
type ServerOptions struct {
	// Root is the directory static files are served from.
	Root    string
	FS      fs.FileSystem
	Hub     *Hub
	Bundler Bundler
	Logger  *slog.Logger
}

// NewServer returns the dev server handler:
//
//	/@hot            WebSocket endpoint for hot update messages
//	/@hot/client.js  module runtime and hot update client
//	/@hot/bundle.js  development bundle
//	/                static files; HTML pages are rewritten to load the above
func NewServer(opts ServerOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &server{opts: opts}

	mux := http.NewServeMux()
	mux.Handle("GET "+inject.HotPath, opts.Hub.Handler())
	mux.HandleFunc("GET "+inject.ClientPath, s.client)
	mux.HandleFunc("GET "+inject.BundlePath, s.bundle)
	mux.HandleFunc("GET /", s.static)
	return mux
}

type server struct {
	opts ServerOptions
}

func (s *server) client(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(inject.ClientScript())
}

func (s *server) bundle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	data, err := s.opts.Bundler.Bundle(r.Context())
	if err != nil {
		s.opts.Logger.Error("building bundle", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.opts.Logger.Debug("bundle served", "bytes", len(data), "duration", time.Since(start))
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

func (s *server) static(w http.ResponseWriter, r *http.Request) {
	name := filepath.Join(s.opts.Root, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
	if fs.IsDir(s.opts.FS, name) {
		name = filepath.Join(name, "index.html")
	}

	data, err := s.opts.FS.ReadFile(name)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if strings.HasSuffix(name, ".html") {
		result, err := inject.Rewrite(data)
		if err != nil {
			s.opts.Logger.Warn("serving page without hot updates", "path", name, "error", err)
		} else {
			data = result.HTML
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}

	var modTime time.Time
	if info, err := s.opts.FS.Stat(name); err == nil {
		modTime = info.ModTime()
	}
	http.ServeContent(w, r, filepath.Base(name), modTime, bytes.NewReader(data))
}
