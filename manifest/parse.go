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

import (
	"errors"
	"reflect"
	"unsafe"

	"github.com/pelletier/go-toml/v2/unstable"
)

// subsliceOffset returns the byte offset of subslice within data, assuming
// subslice is backed by the same underlying array as data (as is the case
// for unstable.ParserError.Highlight, which aliases the parsed document).
func subsliceOffset(data, subslice []byte) int {
	datap := (*reflect.SliceHeader)(unsafe.Pointer(&data))
	subp := (*reflect.SliceHeader)(unsafe.Pointer(&subslice))
	return int(subp.Data - datap.Data)
}

// ParseDiagnostic is a recoverable syntax problem found while parsing.
type ParseDiagnostic struct {
	Span    Span
	Message string
}

// Parse builds the concrete syntax tree for one manifest text. Parsing is
// tolerant: a syntax error stops token consumption but the tree built so
// far is returned together with a diagnostic at the offending range.
func Parse(text string) (*Tree, []ParseDiagnostic) {
	t := &Tree{
		text:   text,
		lines:  NewLineIndex(text),
		byPath: make(map[string]*Node),
	}

	doc := []byte(text)
	p := &unstable.Parser{KeepComments: true}
	p.Reset(doc)

	var currentTable *Node

	for p.NextExpression() {
		e := p.Expression()
		switch e.Kind {
		case unstable.Table, unstable.ArrayTable:
			kind := NodeTable
			if e.Kind == unstable.ArrayTable {
				kind = NodeArrayTable
			}
			segs, keyNodes := t.collectKey(e)
			tbl := t.newNode(kind, segs, t.unionSpan(keyNodes))
			for _, kn := range keyNodes {
				kn.parent = tbl
			}
			t.exprs = append(t.exprs, tbl)
			t.tables = append(t.tables, tbl)
			t.index(tbl)
			currentTable = tbl

		case unstable.KeyValue:
			segs, keyNodes := t.collectKey(e)
			tableSegs := []string(nil)
			if currentTable != nil {
				tableSegs = currentTable.Segs
			}
			full := append(append([]string{}, tableSegs...), segs...)
			kv := t.buildKeyValue(e, full, keyNodes)
			if currentTable != nil {
				kv.parent = currentTable
				currentTable.Children = append(currentTable.Children, kv)
			}
			t.exprs = append(t.exprs, kv)
			t.index(kv)

		case unstable.Comment:
			c := t.newNode(NodeComment, nil, t.rawSpan(p, e))
			c.Text = string(e.Data)
			t.exprs = append(t.exprs, c)
		}
	}

	var diags []ParseDiagnostic
	if err := p.Error(); err != nil {
		var perr *unstable.ParserError
		if errors.As(err, &perr) {
			start := subsliceOffset(doc, perr.Highlight)
			end := start + len(perr.Highlight)
			diags = append(diags, ParseDiagnostic{
				Span:    t.lines.SpanFor(start, end),
				Message: perr.Message,
			})
		} else {
			diags = append(diags, ParseDiagnostic{
				Span:    t.lines.SpanFor(0, 0),
				Message: err.Error(),
			})
		}
	}

	return t, diags
}

// collectKey walks the (possibly dotted) key of an expression, returning the
// decoded segments and one key node per segment.
func (t *Tree) collectKey(e *unstable.Node) ([]string, []*Node) {
	var segs []string
	var nodes []*Node
	it := e.Key()
	for it.Next() {
		kn := it.Node()
		seg := string(kn.Data)
		segs = append(segs, seg)
		start := int(kn.Raw.Offset)
		end := start + int(kn.Raw.Length)
		node := t.newNode(NodeKey, nil, t.lines.SpanFor(start, end))
		node.Text = seg
		nodes = append(nodes, node)
	}
	return segs, nodes
}

// buildKeyValue constructs the key-value node for an expression with the
// given canonical path segments.
func (t *Tree) buildKeyValue(e *unstable.Node, segs []string, keyNodes []*Node) *Node {
	keySpan := t.unionSpan(keyNodes)
	val := t.buildValue(e.Value(), segs, keySpan)

	span := keySpan
	if val.Span.End.Offset > span.End.Offset {
		span.End = val.Span.End
	}

	kv := t.newNode(NodeKeyValue, segs, span)
	kv.Children = append(kv.Children, keyNodes...)
	kv.Children = append(kv.Children, val)
	for _, c := range kv.Children {
		c.parent = kv
	}
	return kv
}

// buildValue constructs the node for a value. Container values (arrays,
// inline tables) carry no Raw range of their own, so their span is the
// union of their children, with the key span as a fallback for empties.
func (t *Tree) buildValue(v *unstable.Node, segs []string, fallback Span) *Node {
	switch v.Kind {
	case unstable.Array:
		node := t.newNode(NodeArray, segs, fallback)
		for c := v.Child(); c != nil; c = c.Next() {
			child := t.buildValue(c, nil, fallback)
			child.parent = node
			node.Children = append(node.Children, child)
		}
		if len(node.Children) > 0 {
			node.Span = t.unionSpan(node.Children)
		}
		return node

	case unstable.InlineTable:
		node := t.newNode(NodeInlineTable, segs, fallback)
		for c := v.Child(); c != nil; c = c.Next() {
			if c.Kind != unstable.KeyValue {
				continue
			}
			childSegs, childKeys := t.collectKey(c)
			full := append(append([]string{}, segs...), childSegs...)
			kv := t.buildKeyValue(c, full, childKeys)
			kv.parent = node
			node.Children = append(node.Children, kv)
			t.index(kv)
		}
		if len(node.Children) > 0 {
			node.Span = t.unionSpan(node.Children)
		}
		return node

	default:
		kind := NodeString
		switch v.Kind {
		case unstable.Bool:
			kind = NodeBool
		case unstable.Integer:
			kind = NodeInteger
		case unstable.Float:
			kind = NodeFloat
		}
		start := int(v.Raw.Offset)
		end := start + int(v.Raw.Length)
		span := t.lines.SpanFor(start, end)
		if span.Len() == 0 {
			span = fallback
		}
		node := t.newNode(kind, segs, span)
		node.Text = string(v.Data)
		return node
	}
}

func (t *Tree) newNode(kind NodeKind, segs []string, span Span) *Node {
	n := &Node{
		ID:   t.nextID,
		Kind: kind,
		Segs: segs,
		Span: span,
	}
	if len(segs) > 0 {
		n.Path = joinPath(segs)
	}
	t.nextID++
	t.nodes = append(t.nodes, n)
	return n
}

func (t *Tree) index(n *Node) {
	if n.Path == "" {
		return
	}
	// first writer wins so duplicate keys keep canonical paths unique
	if _, exists := t.byPath[n.Path]; !exists {
		t.byPath[n.Path] = n
	}
}

func (t *Tree) unionSpan(nodes []*Node) Span {
	var span Span
	for i, n := range nodes {
		if i == 0 {
			span = n.Span
			continue
		}
		if n.Span.Start.Offset < span.Start.Offset {
			span.Start = n.Span.Start
		}
		if n.Span.End.Offset > span.End.Offset {
			span.End = n.Span.End
		}
	}
	return span
}

func (t *Tree) rawSpan(p *unstable.Parser, n *unstable.Node) Span {
	start := int(n.Raw.Offset)
	return t.lines.SpanFor(start, start+int(n.Raw.Length))
}
