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
	"testing"

	"github.com/google/go-cmp/cmp"

	"bennypowers.dev/hotswap/packagejson"
	"bennypowers.dev/hotswap/testutil"
)

func mustParse(t *testing.T, data string) *packagejson.PackageJSON {
	t.Helper()
	pkg, err := packagejson.Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return pkg
}

func TestParseFile(t *testing.T) {
	mfs := testutil.NewMapFS(t, map[string]string{
		"/test/package.json": `{"name": "demo", "version": "2.1.0", "type": "module", "main": "./index.js"}`,
		"/bad/package.json":  `{"name": `,
	})

	pkg, err := packagejson.ParseFile(mfs, "/test/package.json")
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if pkg.Name != "demo" || pkg.Version != "2.1.0" || pkg.Type != "module" {
		t.Errorf("Unexpected package: %+v", pkg)
	}

	if _, err := packagejson.ParseFile(mfs, "/bad/package.json"); err == nil {
		t.Error("Expected error for malformed package.json")
	}
}

func TestResolveExport(t *testing.T) {
	tests := []struct {
		name     string
		pkg      string
		subpath  string
		opts     *packagejson.ResolveOptions
		expected string
		err      error
	}{
		{
			name:     "string export",
			pkg:      `{"name": "a", "exports": "./dist/index.js"}`,
			subpath:  ".",
			expected: "dist/index.js",
		},
		{
			name:    "string export hides subpaths",
			pkg:     `{"name": "a", "exports": "./dist/index.js"}`,
			subpath: "./other.js",
			err:     packagejson.ErrNotExported,
		},
		{
			name:     "condition-only export",
			pkg:      `{"name": "a", "exports": {"require": "./a.cjs", "import": "./a.mjs"}}`,
			subpath:  ".",
			expected: "a.mjs",
		},
		{
			name:     "subpath export",
			pkg:      `{"name": "a", "exports": {".": "./index.js", "./button": "./src/button.js"}}`,
			subpath:  "./button",
			expected: "src/button.js",
		},
		{
			name:     "nested conditions",
			pkg:      `{"name": "a", "exports": {".": {"browser": {"development": "./dev.js", "default": "./prod.js"}}}}`,
			subpath:  ".",
			expected: "dev.js",
		},
		{
			name:     "custom conditions",
			pkg:      `{"name": "a", "exports": {".": {"node": "./node.js", "default": "./web.js"}}}`,
			subpath:  ".",
			opts:     &packagejson.ResolveOptions{Conditions: []string{"node", "default"}},
			expected: "node.js",
		},
		{
			name:     "fallback array",
			pkg:      `{"name": "a", "exports": {".": [{"worker": "./w.js"}, "./main.js"]}}`,
			subpath:  ".",
			expected: "main.js",
		},
		{
			name:     "wildcard export",
			pkg:      `{"name": "a", "exports": {"./*": "./src/*.js", "./icons/*": "./assets/icons/*.js"}}`,
			subpath:  "./icons/close",
			expected: "assets/icons/close.js",
		},
		{
			name:    "null target blocks subpath",
			pkg:     `{"name": "a", "exports": {"./*": "./src/*.js", "./internal/*": null}}`,
			subpath: "./internal/secret",
			err:     packagejson.ErrNotExported,
		},
		{
			name:    "unexported subpath",
			pkg:     `{"name": "a", "exports": {".": "./index.js"}}`,
			subpath: "./missing.js",
			err:     packagejson.ErrNotExported,
		},
		{
			name:     "module field",
			pkg:      `{"name": "a", "main": "./index.cjs", "module": "./index.mjs"}`,
			subpath:  ".",
			expected: "index.mjs",
		},
		{
			name:     "main field",
			pkg:      `{"name": "a", "main": "lib/main.js"}`,
			subpath:  ".",
			expected: "lib/main.js",
		},
		{
			name:     "index fallback",
			pkg:      `{"name": "a"}`,
			subpath:  ".",
			expected: "index.js",
		},
		{
			name:     "open subpaths without exports",
			pkg:      `{"name": "a"}`,
			subpath:  "./lib/util.js",
			expected: "lib/util.js",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg := mustParse(t, tt.pkg)
			resolved, err := pkg.ResolveExport(tt.subpath, tt.opts)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("Expected error %v, got %v (resolved %q)", tt.err, err, resolved)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveExport(%q) failed: %v", tt.subpath, err)
			}
			if resolved != tt.expected {
				t.Errorf("ResolveExport(%q) = %q, want %q", tt.subpath, resolved, tt.expected)
			}
		})
	}
}

func TestResolveImport(t *testing.T) {
	pkg := mustParse(t, `{
		"name": "a",
		"imports": {
			"#config": {"development": "./config.dev.js", "default": "./config.js"},
			"#utils/*": "./src/utils/*.js"
		}
	}`)

	got := map[string]string{}
	for _, spec := range []string{"#config", "#utils/strings"} {
		resolved, err := pkg.ResolveImport(spec, nil)
		if err != nil {
			t.Fatalf("ResolveImport(%q) failed: %v", spec, err)
		}
		got[spec] = resolved
	}

	want := map[string]string{
		"#config":        "config.dev.js",
		"#utils/strings": "src/utils/strings.js",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ResolveImport mismatch (-want +got):\n%s", diff)
	}

	if _, err := pkg.ResolveImport("#missing", nil); !errors.Is(err, packagejson.ErrNotExported) {
		t.Errorf("Expected ErrNotExported, got %v", err)
	}
}

func TestWorkspacePatterns(t *testing.T) {
	tests := []struct {
		name     string
		pkg      string
		expected []string
	}{
		{"array form", `{"workspaces": ["packages/*", "apps/web"]}`, []string{"packages/*", "apps/web"}},
		{"object form", `{"workspaces": {"packages": ["libs/*"], "nohoist": ["**/x"]}}`, []string{"libs/*"}},
		{"none", `{"name": "solo"}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustParse(t, tt.pkg).WorkspacePatterns()
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("WorkspacePatterns mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
