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
package render

import (
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Custom decoration methods, outbound to clients that support inline
// decorations (the VS Code extension).
const (
	MethodDecorationReplaceAll = "textDocument/decoration/replaceAll"
	MethodDecorationReset      = "textDocument/decoration/reset"
)

// Decoration is the wire form of one inline decoration.
type Decoration struct {
	ID    string         `json:"id"`
	Text  string         `json:"text"`
	Kind  string         `json:"kind"`
	Range protocol.Range `json:"range"`
}

// DecorationParams is the payload of decoration/replaceAll.
type DecorationParams struct {
	URI         protocol.DocumentUri `json:"uri"`
	Decorations []Decoration         `json:"decorations"`
}

// DecorationRenderer ships annotations as decoration/replaceAll custom
// notifications. The client replaces all decorations for the document on
// every update, so a reset followed by a replaceAll is indistinguishable
// from the replaceAll alone.
type DecorationRenderer struct {
	conn Conn
}

// NewDecorationRenderer creates a decoration renderer on the connection.
func NewDecorationRenderer(conn Conn) *DecorationRenderer {
	return &DecorationRenderer{conn: conn}
}

func (r *DecorationRenderer) Render(uri protocol.DocumentUri, annotations []Annotation) {
	decorations := make([]Decoration, 0, len(annotations))
	for _, a := range annotations {
		decorations = append(decorations, Decoration{
			ID:    a.ID,
			Text:  a.Text,
			Kind:  a.Status.String(),
			Range: a.Range,
		})
	}
	r.conn.Notify(MethodDecorationReplaceAll, &DecorationParams{
		URI:         uri,
		Decorations: decorations,
	})
}

func (r *DecorationRenderer) ClearAll(uri protocol.DocumentUri) {
	r.conn.Notify(MethodDecorationReplaceAll, &DecorationParams{
		URI:         uri,
		Decorations: []Decoration{},
	})
}
