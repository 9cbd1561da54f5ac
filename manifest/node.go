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

import "strings"

// NodeKind classifies a node in the manifest's concrete syntax tree.
type NodeKind int

const (
	NodeTable NodeKind = iota
	NodeArrayTable
	NodeKeyValue
	NodeKey
	NodeString
	NodeBool
	NodeInteger
	NodeFloat
	NodeArray
	NodeInlineTable
	NodeComment
)

func (k NodeKind) String() string {
	switch k {
	case NodeTable:
		return "table"
	case NodeArrayTable:
		return "array-table"
	case NodeKeyValue:
		return "key-value"
	case NodeKey:
		return "key"
	case NodeString:
		return "string"
	case NodeBool:
		return "bool"
	case NodeInteger:
		return "integer"
	case NodeFloat:
		return "float"
	case NodeArray:
		return "array"
	case NodeInlineTable:
		return "inline-table"
	case NodeComment:
		return "comment"
	}
	return "invalid"
}

// Node is a node in the concrete syntax tree of one manifest. Canonical
// paths are dotted from the document root and unique within one parse.
type Node struct {
	ID   int
	Kind NodeKind
	// Path is the canonical dotted path; empty for comments and array
	// elements.
	Path string
	// Segs holds the path segments. Unlike Path, segments containing dots
	// (quoted keys such as cfg expressions) stay intact here.
	Segs []string
	Span Span
	// Text holds the decoded scalar value for strings, booleans and
	// integers, and the key text for key nodes.
	Text     string
	Children []*Node

	parent *Node
}

// Parent returns the enclosing node, or nil at the top level.
func (n *Node) Parent() *Node {
	return n.parent
}

// Key returns the key child of a key-value node, or nil.
func (n *Node) Key() *Node {
	if n.Kind != NodeKeyValue || len(n.Children) == 0 {
		return nil
	}
	return n.Children[0]
}

// Value returns the value child of a key-value node, or nil.
func (n *Node) Value() *Node {
	if n.Kind != NodeKeyValue || len(n.Children) < 2 {
		return nil
	}
	return n.Children[len(n.Children)-1]
}

// LastSeg returns the final path segment, or "".
func (n *Node) LastSeg() string {
	if len(n.Segs) == 0 {
		return ""
	}
	return n.Segs[len(n.Segs)-1]
}

// joinPath builds a canonical dotted path from segments.
func joinPath(segs []string) string {
	return strings.Join(segs, ".")
}
