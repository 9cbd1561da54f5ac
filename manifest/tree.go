/*
Copyright © 2025 cargo-appraiser contributors

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
package manifest

import "sort"

// Tree is the parsed concrete syntax tree of one manifest, together with
// its symbol index: a canonical-path lookup table and a sorted top-level
// expression list for position queries.
type Tree struct {
	text   string
	lines  *LineIndex
	exprs  []*Node // top-level expressions in document order
	tables []*Node // table headers in document order
	nodes  []*Node // every node, by id
	byPath map[string]*Node
	nextID int
}

// Text returns the manifest text this tree was parsed from.
func (t *Tree) Text() string {
	return t.text
}

// Lines returns the line index for the manifest text.
func (t *Tree) Lines() *LineIndex {
	return t.lines
}

// Lookup returns the node registered under the canonical dotted path, or
// nil. Tables resolve to their header node, keys to their key-value node.
func (t *Tree) Lookup(path string) *Node {
	return t.byPath[path]
}

// Node returns the node with the given id, or nil.
func (t *Tree) Node(id int) *Node {
	if id < 0 || id >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// FindAt returns the innermost node whose span contains the byte offset,
// or nil when the offset falls outside every node. Top-level expressions
// are binary searched by start offset; the match is then descended
// linearly, innermost node winning.
func (t *Tree) FindAt(offset int) *Node {
	n := findIn(t.exprs, offset)
	if n == nil {
		return nil
	}
	for {
		child := findIn(n.Children, offset)
		if child == nil {
			return n
		}
		n = child
	}
}

// FindAtPosition is FindAt for an LSP (line, character) coordinate.
func (t *Tree) FindAtPosition(line, character uint32) *Node {
	return t.FindAt(t.lines.OffsetFor(line, character))
}

// findIn locates the node containing offset within a slice ordered by start
// offset with non-overlapping sibling spans. End offsets are exclusive, so
// of two abutting siblings the one containing the offset wins.
func findIn(nodes []*Node, offset int) *Node {
	if len(nodes) == 0 {
		return nil
	}
	// rightmost node with start <= offset
	i := sort.Search(len(nodes), func(i int) bool {
		return nodes[i].Span.Start.Offset > offset
	}) - 1
	if i < 0 {
		return nil
	}
	if nodes[i].Span.Contains(offset) {
		return nodes[i]
	}
	return nil
}

// Tables returns the table header nodes in document order.
func (t *Tree) Tables() []*Node {
	return t.tables
}

// Expressions returns the top-level expressions in document order.
func (t *Tree) Expressions() []*Node {
	return t.exprs
}
