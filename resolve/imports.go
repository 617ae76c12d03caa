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
package resolve

import (
	"cmp"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// ImportKind classifies how a module references a specifier.
type ImportKind int

const (
	ImportStatic ImportKind = iota
	ImportDynamic
	ImportReExport
	ImportRequire
)

func (k ImportKind) String() string {
	switch k {
	case ImportStatic:
		return "static"
	case ImportDynamic:
		return "dynamic"
	case ImportReExport:
		return "re-export"
	case ImportRequire:
		return "require"
	}
	return fmt.Sprintf("ImportKind(%d)", int(k))
}

// ModuleImport is one specifier referenced by a module.
type ModuleImport struct {
	Specifier string
	Kind      ImportKind
	Line      int // 1-indexed
	offset    uint
}

// grammarFor picks the grammar for a filename.
func grammarFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tsx", ".jsx":
		return grammarTSX
	}
	return grammarTypeScript
}

// ExtractImports parses JavaScript or TypeScript and returns every import,
// re-export, literal dynamic import and require call in source order.
// Type-only imports and exports are skipped because they are erased.
func ExtractImports(content []byte, filename string) ([]ModuleImport, error) {
	qm, err := GetQueryManager()
	if err != nil {
		return nil, err
	}

	grammar := grammarFor(filename)
	parser := getParser(grammar)
	defer putParser(grammar, parser)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s", filename)
	}
	defer tree.Close()

	query, err := qm.Query(grammar, "imports")
	if err != nil {
		return nil, err
	}

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	var imports []ModuleImport
	matches := cursor.Matches(query, tree.RootNode(), content)
	captureNames := query.CaptureNames()

	for match := matches.Next(); match != nil; match = matches.Next() {
		var (
			imp      *ModuleImport
			typeOnly bool
		)
		for _, capture := range match.Captures {
			node := capture.Node
			kind, isSpec := specCaptures[captureNames[capture.Index]]
			switch {
			case isSpec:
				imp = &ModuleImport{
					Specifier: node.Utf8Text(content),
					Kind:      kind,
					Line:      int(node.StartPosition().Row) + 1,
					offset:    node.StartByte(),
				}
			case strings.HasSuffix(captureNames[capture.Index], ".stmt"):
				typeOnly = isTypeOnly(&node)
			}
		}
		if imp != nil && !typeOnly {
			imports = append(imports, *imp)
		}
	}

	slices.SortStableFunc(imports, func(a, b ModuleImport) int {
		return cmp.Compare(a.offset, b.offset)
	})
	return imports, nil
}

var specCaptures = map[string]ImportKind{
	"import.spec":        ImportStatic,
	"dynamicImport.spec": ImportDynamic,
	"reexport.spec":      ImportReExport,
	"require.spec":       ImportRequire,
}

// isTypeOnly reports whether an import or export statement starts with
// the "type" modifier.
func isTypeOnly(stmt *ts.Node) bool {
	second := stmt.Child(1)
	return second != nil && second.Kind() == "type"
}
