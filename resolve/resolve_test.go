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
package resolve_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"bennypowers.dev/hotswap/resolve"
	"bennypowers.dev/hotswap/testutil"
)

func newAppResolver(t *testing.T) *resolve.Resolver {
	t.Helper()
	mfs := testutil.NewFixtureFS(t, "resolve/app", "/test")
	return resolve.New(mfs, resolve.Options{
		Root:    "/test",
		Aliases: map[string]string{"~": "./src"},
	})
}

func TestResolveFrom(t *testing.T) {
	r := newAppResolver(t)

	got, err := r.ResolveFrom(context.Background(), "/test/src/main.ts")
	if err != nil {
		t.Fatalf("ResolveFrom failed: %v", err)
	}

	want := []resolve.Resolution{
		{Path: "/test/node_modules/lit/development/index.js", Request: "lit"},
		{Path: "/test/node_modules/@scope/ui/dist/card.js", Request: "@scope/ui/card"},
		{Path: "/test/src/button.tsx", Request: "./button"},
		{Path: "/test/lib/index.js", Request: "../lib"},
		{Path: "/test/src/utils/strings.ts", Request: "#utils/strings"},
		{Path: "/test/src/config.ts", Request: "~/config"},
		{Path: "/test/src/self.js", Request: "app/src/self.js"},
		{Path: "/test/src/reexported.js", Request: "./reexported.js"},
		{Path: "/test/src/legacy.cjs", Request: "./legacy.cjs"},
		{Path: "/test/src/lazy.js", Request: "./lazy.js"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ResolveFrom mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve(t *testing.T) {
	r := newAppResolver(t)

	tests := []struct {
		specifier string
		importer  string
		expected  string
	}{
		{"./self.js", "/test/src/main.ts", "/test/src/self.js"},
		{"/src/config", "/test/src/main.ts", "/test/src/config.ts"},
		{"plain", "/test/src/main.ts", "/test/node_modules/plain/lib/main.js"},
		{"@scope/ui", "/test/src/main.ts", "/test/node_modules/@scope/ui/dist/index.js"},
		{"./card.js", "/test/node_modules/@scope/ui/dist/index.js", "/test/node_modules/@scope/ui/dist/card.js"},
		// TypeScript sources are imported with the extension they compile to.
		{"./utils/strings.js", "/test/src/main.ts", "/test/src/utils/strings.ts"},
	}

	for _, tt := range tests {
		t.Run(tt.specifier, func(t *testing.T) {
			got, err := r.Resolve(tt.specifier, tt.importer)
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tt.specifier, err)
			}
			if got != tt.expected {
				t.Errorf("Resolve(%q) = %q, want %q", tt.specifier, got, tt.expected)
			}
		})
	}
}

func TestResolveErrors(t *testing.T) {
	r := newAppResolver(t)

	tests := []struct {
		name      string
		specifier string
	}{
		{"missing relative file", "./missing.js"},
		{"missing package", "not-installed"},
		{"unexported subpath", "@scope/ui/internal.js"},
		{"unknown subpath import", "#nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(tt.specifier, "/test/src/main.ts")
			if !errors.Is(err, resolve.ErrUnresolved) {
				t.Fatalf("Expected ErrUnresolved, got %v", err)
			}
			var resErr *resolve.ResolutionError
			if !errors.As(err, &resErr) || resErr.Specifier != tt.specifier {
				t.Errorf("Expected ResolutionError for %q, got %v", tt.specifier, err)
			}
		})
	}
}

func TestResolveFromFailsOnUnresolvedImport(t *testing.T) {
	mfs := testutil.NewMapFS(t, map[string]string{
		"/app/src/main.js": "import './gone.js';\n",
	})
	r := resolve.New(mfs, resolve.Options{Root: "/app"})

	if _, err := r.ResolveFrom(context.Background(), "/app/src/main.js"); !errors.Is(err, resolve.ErrUnresolved) {
		t.Errorf("Expected ErrUnresolved, got %v", err)
	}
}

func TestFindWorkspaceRoot(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		startDir string
		expected string
	}{
		{
			name:     "node_modules",
			files:    map[string]string{"/root/node_modules/.keep": "", "/root/packages/pkg1/a.js": ""},
			startDir: "/root/packages/pkg1",
			expected: "/root",
		},
		{
			name:     "workspaces",
			files:    map[string]string{"/root/package.json": `{"workspaces": ["packages/*"]}`, "/root/packages/pkg1/a.js": ""},
			startDir: "/root/packages/pkg1",
			expected: "/root",
		},
		{
			name:     "git",
			files:    map[string]string{"/root/.git/HEAD": "", "/root/packages/pkg1/a.js": ""},
			startDir: "/root/packages/pkg1",
			expected: "/root",
		},
		{
			name:     "closest node_modules wins",
			files:    map[string]string{"/root/node_modules/.keep": "", "/root/packages/pkg1/node_modules/.keep": ""},
			startDir: "/root/packages/pkg1",
			expected: "/root/packages/pkg1",
		},
		{
			name:     "nothing found",
			files:    map[string]string{"/root/packages/pkg1/a.js": ""},
			startDir: "/root/packages/pkg1",
			expected: "/root/packages/pkg1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mfs := testutil.NewMapFS(t, tt.files)
			if got := resolve.FindWorkspaceRoot(mfs, tt.startDir); got != tt.expected {
				t.Errorf("FindWorkspaceRoot() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSpecifierHelpers(t *testing.T) {
	names := []struct{ spec, want string }{
		{"lit", "lit"},
		{"lit/decorators.js", "lit"},
		{"@scope/pkg", "@scope/pkg"},
		{"@scope/pkg/sub/x.js", "@scope/pkg"},
	}
	for _, tt := range names {
		if got := resolve.PackageName(tt.spec); got != tt.want {
			t.Errorf("PackageName(%q) = %q, want %q", tt.spec, got, tt.want)
		}
	}

	bare := []struct {
		spec string
		want bool
	}{
		{"lit", true},
		{"@scope/pkg", true},
		{"./local.js", false},
		{"../up.js", false},
		{"/abs.js", false},
		{"#internal", false},
		{"https://cdn.x/y.js", false},
		{"node:fs", false},
	}
	for _, tt := range bare {
		if got := resolve.IsBareSpecifier(tt.spec); got != tt.want {
			t.Errorf("IsBareSpecifier(%q) = %v, want %v", tt.spec, got, tt.want)
		}
	}

	if got := resolve.WebPath("/app", "/app/src/main.js"); got != "/src/main.js" {
		t.Errorf("WebPath = %q, want /src/main.js", got)
	}
	if got := resolve.WebPath("/app", "/other/x.js"); got != "" {
		t.Errorf("WebPath outside root = %q, want empty", got)
	}
}
