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
	"embed"
	"fmt"
	"path"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"
	tsTypescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

//go:embed queries/*.scm
var queryFiles embed.FS

// Grammar names. TypeScript parses plain JavaScript too; TSX is only
// needed where angle brackets may open JSX.
const (
	grammarTypeScript = "typescript"
	grammarTSX        = "tsx"
)

var languages = map[string]*ts.Language{
	grammarTypeScript: ts.NewLanguage(tsTypescript.LanguageTypescript()),
	grammarTSX:        ts.NewLanguage(tsTypescript.LanguageTSX()),
}

var parserPools = map[string]*sync.Pool{
	grammarTypeScript: newParserPool(grammarTypeScript),
	grammarTSX:        newParserPool(grammarTSX),
}

func newParserPool(grammar string) *sync.Pool {
	return &sync.Pool{
		New: func() any {
			parser := ts.NewParser()
			if err := parser.SetLanguage(languages[grammar]); err != nil {
				panic("failed to set " + grammar + " language: " + err.Error())
			}
			return parser
		},
	}
}

func getParser(grammar string) *ts.Parser {
	return parserPools[grammar].Get().(*ts.Parser)
}

func putParser(grammar string, p *ts.Parser) {
	p.Reset()
	parserPools[grammar].Put(p)
}

// QueryManager holds compiled queries per grammar.
type QueryManager struct {
	mu      sync.Mutex
	closed  bool
	queries map[string]map[string]*ts.Query
}

// NewQueryManager compiles the named queries for every grammar.
func NewQueryManager(names ...string) (*QueryManager, error) {
	qm := &QueryManager{queries: make(map[string]map[string]*ts.Query)}
	for grammar := range languages {
		qm.queries[grammar] = make(map[string]*ts.Query)
		for _, name := range names {
			if err := qm.loadQuery(grammar, name); err != nil {
				qm.Close()
				return nil, err
			}
		}
	}
	return qm, nil
}

func (qm *QueryManager) loadQuery(grammar, name string) error {
	queryPath := path.Join("queries", name+".scm")
	data, err := queryFiles.ReadFile(queryPath)
	if err != nil {
		return fmt.Errorf("failed to read query %s: %w", queryPath, err)
	}

	query, qerr := ts.NewQuery(languages[grammar], string(data))
	if qerr != nil {
		return fmt.Errorf("failed to parse query %s for %s: %w", name, grammar, qerr)
	}
	qm.queries[grammar][name] = query
	return nil
}

// Query returns a compiled query.
func (qm *QueryManager) Query(grammar, name string) (*ts.Query, error) {
	q, ok := qm.queries[grammar][name]
	if !ok {
		return nil, fmt.Errorf("query not found: %s/%s", grammar, name)
	}
	return q, nil
}

// Close releases all query resources. Safe to call multiple times.
func (qm *QueryManager) Close() {
	qm.mu.Lock()
	if qm.closed {
		qm.mu.Unlock()
		return
	}
	qm.closed = true
	queries := qm.queries
	qm.queries = nil
	qm.mu.Unlock()

	for _, byName := range queries {
		for _, q := range byName {
			q.Close()
		}
	}
}

var (
	globalQM     *QueryManager
	globalQMOnce sync.Once
	globalQMErr  error
)

// GetQueryManager returns the process-wide query manager.
func GetQueryManager() (*QueryManager, error) {
	globalQMOnce.Do(func() {
		globalQM, globalQMErr = NewQueryManager("imports")
	})
	return globalQM, globalQMErr
}
