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
// Package inject rewrites HTML pages for the dev server. Local module
// entry scripts are replaced by the development bundle, and the module
// runtime with its hot update client is loaded ahead of everything else.
package inject

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Routes served by the dev server.
const (
	HotPath    = "/@hot"
	ClientPath = "/@hot/client.js"
	BundlePath = "/@hot/bundle.js"
)

//go:embed client.js
var clientScript []byte

// ClientScript returns the browser module runtime and hot update client.
func ClientScript() []byte {
	return clientScript
}

// Result describes one rewritten page.
type Result struct {
	HTML []byte
	// Entrypoints are the src attributes of the module scripts that were
	// replaced, in document order.
	Entrypoints []string
}

// FindEntrypoints returns the src of every local module script in an HTML page.
func FindEntrypoints(content []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	var entries []string
	for _, script := range moduleScripts(doc) {
		entries = append(entries, attr(script, "src"))
	}
	return entries, nil
}

// Rewrite replaces local module scripts with a single bundle script at the
// position of the first one, and inserts the client script as the first
// element of <head>. Pages without local module scripts only get the client.
func Rewrite(content []byte) (*Result, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	result := &Result{}
	for i, script := range moduleScripts(doc) {
		result.Entrypoints = append(result.Entrypoints, attr(script, "src"))
		if i == 0 {
			script.Parent.InsertBefore(scriptElement(BundlePath, true), script)
		}
		script.Parent.RemoveChild(script)
	}

	head := find(doc, atom.Head)
	if head == nil {
		return nil, fmt.Errorf("could not find insertion point (no <head> tag)")
	}
	head.InsertBefore(scriptElement(ClientPath, false), head.FirstChild)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, err
	}
	result.HTML = buf.Bytes()
	return result, nil
}

// moduleScripts returns <script type="module" src> elements whose src is
// served locally.
func moduleScripts(doc *html.Node) []*html.Node {
	var scripts []*html.Node
	for n := range doc.Descendants() {
		if n.Type != html.ElementNode || n.DataAtom != atom.Script {
			continue
		}
		src := attr(n, "src")
		if attr(n, "type") != "module" || src == "" || !isLocal(src) {
			continue
		}
		scripts = append(scripts, n)
	}
	return scripts
}

func isLocal(src string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == "" && !strings.HasPrefix(src, HotPath)
}

func find(doc *html.Node, a atom.Atom) *html.Node {
	for n := range doc.Descendants() {
		if n.Type == html.ElementNode && n.DataAtom == a {
			return n
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func scriptElement(src string, module bool) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: "script", DataAtom: atom.Script}
	if module {
		n.Attr = append(n.Attr, html.Attribute{Key: "type", Val: "module"})
	}
	n.Attr = append(n.Attr, html.Attribute{Key: "src", Val: src})
	return n
}
