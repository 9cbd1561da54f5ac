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
package inlayHint

import (
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/washanhanzi/cargo-appraiser/lsp/helpers"
	"github.com/washanhanzi/cargo-appraiser/lsp/types"
)

// Params is the textDocument/inlayHint request payload (LSP 3.17).
type Params struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	Range        protocol.Range                  `json:"range"`
}

// Kind is the LSP inlay hint kind.
type Kind int

const (
	KindType      Kind = 1
	KindParameter Kind = 2
)

// Hint is one inlay hint (LSP 3.17).
type Hint struct {
	Position     protocol.Position `json:"position"`
	Label        string            `json:"label"`
	Kind         *Kind             `json:"kind,omitempty"`
	PaddingLeft  *bool             `json:"paddingLeft,omitempty"`
	PaddingRight *bool             `json:"paddingRight,omitempty"`
}

// InlayHints serves the annotation projection as standard inlay hints,
// anchored at the end of each dependency's value range.
func InlayHints(ctx types.ServerContext, context *glsp.Context, params *Params) ([]Hint, error) {
	uri := params.TextDocument.URI
	annotations := ctx.InlayHints(uri)
	helpers.SafeDebugLog("[INLAY_HINT] %d annotations for %s", len(annotations), uri)

	padding := true
	hints := make([]Hint, 0, len(annotations))
	for _, a := range annotations {
		if a.Text == "" {
			continue
		}
		if a.Range.Start.Line < params.Range.Start.Line || a.Range.Start.Line > params.Range.End.Line {
			continue
		}
		hints = append(hints, Hint{
			Position:    a.Range.End,
			Label:       a.Text,
			PaddingLeft: &padding,
		})
	}
	return hints, nil
}
