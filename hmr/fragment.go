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
package hmr

import (
	"encoding/json"
	"fmt"
	"strings"

	"bennypowers.dev/hotswap/graph"
)

// RuntimeGlobal is the expression the browser prelude installs the module
// runtime under.
const RuntimeGlobal = "globalThis.__modules"

// wrapFragment isolates one module's code in a function expression so
// top-level names of different fragments cannot collide.
func wrapFragment(b *strings.Builder, path, code string) {
	fmt.Fprintf(b, "// %s\n(function () {\n", path)
	b.WriteString(strings.TrimRight(code, "\n"))
	b.WriteString("\n})();\n")
}

// writeApply re-evaluates id against the given specifier map.
func writeApply(b *strings.Builder, id graph.ModuleID, remap map[string]graph.ModuleID) {
	deps := "{}"
	if len(remap) > 0 {
		// encoding/json writes map keys sorted.
		data, err := json.Marshal(remap)
		if err == nil {
			deps = string(data)
		}
	}
	fmt.Fprintf(b, "%s.apply(%d, %s);\n", RuntimeGlobal, id, deps)
}

func writeFlush(b *strings.Builder) {
	fmt.Fprintf(b, "%s.flush();\n", RuntimeGlobal)
}
