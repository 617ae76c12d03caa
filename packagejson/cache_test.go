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
package packagejson_test

import (
	"errors"
	"io/fs"
	"sync"
	"sync/atomic"
	"testing"

	"bennypowers.dev/hotswap/packagejson"
	"bennypowers.dev/hotswap/testutil"
)

var _ packagejson.Cache = (*packagejson.MemoryCache)(nil)

func TestMemoryCacheSetGetInvalidate(t *testing.T) {
	cache := packagejson.NewMemoryCache()

	if _, ok := cache.Get("/app/package.json"); ok {
		t.Fatal("Expected cache miss before Set")
	}

	cache.Set("/app/package.json", &packagejson.PackageJSON{Name: "app"})
	got, ok := cache.Get("/app/package.json")
	if !ok || got.Name != "app" {
		t.Fatalf("Expected cached package 'app', got %v (ok=%v)", got, ok)
	}

	cache.Invalidate("/app/package.json")
	if _, ok := cache.Get("/app/package.json"); ok {
		t.Error("Expected cache miss after Invalidate")
	}

	// Invalidating an unknown path is a no-op.
	cache.Invalidate("/missing/package.json")
}

func TestMemoryCacheGetOrLoadConcurrent(t *testing.T) {
	cache := packagejson.NewMemoryCache()

	var loads atomic.Int32
	loader := func() (*packagejson.PackageJSON, error) {
		loads.Add(1)
		return &packagejson.PackageJSON{Name: "loaded"}, nil
	}

	var wg sync.WaitGroup
	for range 64 {
		wg.Go(func() {
			pkg, err := cache.GetOrLoad("/same/package.json", loader)
			if err != nil || pkg.Name != "loaded" {
				t.Errorf("GetOrLoad = %v, %v", pkg, err)
			}
		})
	}
	wg.Wait()

	if n := loads.Load(); n != 1 {
		t.Errorf("Expected loader to run once, ran %d times", n)
	}
}

func TestMemoryCacheInvalidateAllowsReload(t *testing.T) {
	cache := packagejson.NewMemoryCache()

	var loads atomic.Int32
	loader := func() (*packagejson.PackageJSON, error) {
		n := loads.Add(1)
		return &packagejson.PackageJSON{Version: string(rune('0' + n))}, nil
	}

	first, _ := cache.GetOrLoad("/p/package.json", loader)
	cache.Invalidate("/p/package.json")
	second, _ := cache.GetOrLoad("/p/package.json", loader)

	if first.Version != "1" || second.Version != "2" {
		t.Errorf("Expected versions 1 then 2, got %q then %q", first.Version, second.Version)
	}
}

func TestMemoryCacheLoad(t *testing.T) {
	mfs := testutil.NewMapFS(t, map[string]string{
		"/app/package.json": `{"name": "app", "version": "1.0.0"}`,
	})
	cache := packagejson.NewMemoryCache()

	pkg, err := cache.Load(mfs, "/app/package.json")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if pkg.Name != "app" {
		t.Errorf("Expected name 'app', got %q", pkg.Name)
	}

	_, err = cache.Load(mfs, "/missing/package.json")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected fs.ErrNotExist, got %v", err)
	}

	// The failure is remembered until invalidated.
	mfs.AddFile("/missing/package.json", `{"name": "late"}`, 0644)
	if _, err := cache.Load(mfs, "/missing/package.json"); err == nil {
		t.Error("Expected cached failure before Invalidate")
	}
	cache.Invalidate("/missing/package.json")
	if pkg, err := cache.Load(mfs, "/missing/package.json"); err != nil || pkg.Name != "late" {
		t.Errorf("Expected reload after Invalidate, got %v, %v", pkg, err)
	}
}
