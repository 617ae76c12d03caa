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
package watch

// EventType is the kind of change a watch event reports.
type EventType string

const (
	Create EventType = "create"
	Update EventType = "update"
	Delete EventType = "delete"
)

// Event is one file change.
type Event struct {
	Type EventType `json:"type"`
	Path string    `json:"path"`
}

// Coalesce folds the events of one batch into at most one event per path,
// in the order each path was first seen. A file created and deleted in the
// same batch disappears; a file deleted and created again (an editor's
// atomic save) is an update.
func Coalesce(events []Event) []Event {
	index := make(map[string]int, len(events))
	var out []Event
	var dropped []bool

	for _, ev := range events {
		i, seen := index[ev.Path]
		if !seen || dropped[i] {
			if seen {
				// Recreated after cancelling out; start over in place.
				out[i] = ev
				dropped[i] = false
				continue
			}
			index[ev.Path] = len(out)
			out = append(out, ev)
			dropped = append(dropped, false)
			continue
		}

		prev := out[i].Type
		switch {
		case prev == Create && ev.Type == Delete:
			dropped[i] = true
		case prev == Create:
			// Still a new file.
		case prev == Delete && ev.Type != Delete:
			out[i].Type = Update
		default:
			out[i].Type = ev.Type
		}
	}

	result := out[:0]
	for i, ev := range out {
		if !dropped[i] {
			result = append(result, ev)
		}
	}
	return result
}
