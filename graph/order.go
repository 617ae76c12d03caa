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
package graph

// SortByDependencies orders ids so that a module comes after every module in
// ids it imports. Input order breaks ties. Members of an import cycle cannot
// be ordered strictly; they are appended in input order once nothing else
// can make progress.
func (g *Graph) SortByDependencies(ids []ModuleID) []ModuleID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	index := make(map[ModuleID]int, len(ids))
	for i, id := range ids {
		if _, dup := index[id]; !dup {
			index[id] = i
		}
	}

	// pending counts the in-set dependencies each module still waits on.
	pending := make(map[ModuleID]int, len(index))
	for id := range index {
		rec, ok := g.byID[id]
		if !ok {
			continue
		}
		for target := range rec.targets() {
			if _, in := index[target]; in && target != id {
				pending[id]++
			}
		}
	}

	sorted := make([]ModuleID, 0, len(index))
	done := make(map[ModuleID]bool, len(index))

	for len(sorted) < len(index) {
		progressed := false
		for _, id := range ids {
			if done[id] || pending[id] > 0 {
				continue
			}
			g.emitLocked(id, index, pending, done, &sorted)
			progressed = true
		}
		if progressed {
			continue
		}
		// Only cycles remain: release the earliest waiting module.
		for _, id := range ids {
			if !done[id] {
				g.emitLocked(id, index, pending, done, &sorted)
				break
			}
		}
	}

	return sorted
}

func (g *Graph) emitLocked(id ModuleID, index map[ModuleID]int, pending map[ModuleID]int, done map[ModuleID]bool, sorted *[]ModuleID) {
	done[id] = true
	*sorted = append(*sorted, id)

	rec, ok := g.byID[id]
	if !ok {
		return
	}
	for dependent := range rec.dependents {
		if _, in := index[dependent]; in && dependent != id && !done[dependent] {
			pending[dependent]--
		}
	}
}
