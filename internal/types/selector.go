package types

import (
	"sort"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attribute names with a special meaning in selectors.
const (
	AttrTag   = "tag"
	AttrID    = "id"
	AttrClass = "class"
)

// compiled caches parsed selectors by their source text. Invalid selectors
// are cached as nil.
var compiled sync.Map

// Matches implements Selectable. The node is matched on its own, so any
// selector with a combinator fails for want of ancestors.
func (n Node) Matches(selector string) bool {
	return MatchPath([]Node{n}, selector)
}

// MatchPath matches path[0] against a CSS selector, with the remaining nodes
// as its ancestors (nearest first). Combinators such as ".panel button" or
// "div > button" see the whole path. Invalid selectors never match.
func MatchPath(path []Node, selector string) bool {
	if len(path) == 0 {
		return false
	}
	sel := compile(selector)
	if sel == nil {
		return false
	}
	return sel.Match(buildTree(path))
}

func compile(selector string) cascadia.Selector {
	if v, ok := compiled.Load(selector); ok {
		return v.(cascadia.Selector)
	}
	var sel cascadia.Selector
	if strings.TrimSpace(selector) != "" {
		if s, err := cascadia.Compile(selector); err == nil {
			sel = s
		}
	}
	compiled.Store(selector, sel)
	return sel
}

// buildTree links the path into an element chain under a document root and
// returns the leaf.
func buildTree(path []Node) *html.Node {
	parent := &html.Node{Type: html.DocumentNode}
	var leaf *html.Node
	for i := len(path) - 1; i >= 0; i-- {
		leaf = element(path[i])
		parent.AppendChild(leaf)
		parent = leaf
	}
	return leaf
}

func element(n Node) *html.Node {
	tag := strings.ToLower(n[AttrTag])
	el := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}

	keys := make([]string, 0, len(n))
	for k := range n {
		if k != AttrTag {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		el.Attr = append(el.Attr, html.Attribute{Key: strings.ToLower(k), Val: n[k]})
	}
	return el
}
