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
package textDocument

import (
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/washanhanzi/cargo-appraiser/appraiser"
	"github.com/washanhanzi/cargo-appraiser/lsp/helpers"
	"github.com/washanhanzi/cargo-appraiser/lsp/types"
	"github.com/washanhanzi/cargo-appraiser/manifest"
)

// DidOpen handles textDocument/didOpen notifications
func DidOpen(ctx types.ServerContext, context *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	helpers.SafeDebugLog("[LIFECYCLE] DidOpen: URI=%s, Version=%d, ContentLength=%d",
		params.TextDocument.URI, params.TextDocument.Version, len(params.TextDocument.Text))

	ctx.Appraiser().OpenOrChange(
		params.TextDocument.URI,
		params.TextDocument.Text,
		params.TextDocument.Version,
	)
	return nil
}

// DidChange handles textDocument/didChange notifications. Incremental
// changes are applied against the appraiser's current snapshot; the
// result is forwarded as one full-text update.
func DidChange(ctx types.ServerContext, context *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI
	helpers.SafeDebugLog("[LIFECYCLE] DidChange: URI=%s, Version=%d, Changes=%d",
		uri, params.TextDocument.Version, len(params.ContentChanges))

	var currentText string
	var open bool
	ctx.Appraiser().Query(uri, func(doc *appraiser.Document) {
		if doc != nil {
			currentText = doc.Text
			open = true
		}
	})
	if !open {
		helpers.SafeDebugLog("[LIFECYCLE] No existing document for URI: %s", uri)
		return nil
	}

	newText := currentText
	for _, change := range params.ContentChanges {
		switch change := change.(type) {
		case protocol.TextDocumentContentChangeEvent:
			if change.Range == nil {
				newText = change.Text
			} else {
				newText = applyIncrementalChange(newText, change.Range, change.Text)
			}
		case protocol.TextDocumentContentChangeEventWhole:
			newText = change.Text
		}
	}

	ctx.Appraiser().OpenOrChange(uri, newText, params.TextDocument.Version)
	return nil
}

// DidSave handles textDocument/didSave notifications
func DidSave(ctx types.ServerContext, context *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	helpers.SafeDebugLog("[LIFECYCLE] DidSave: URI=%s", params.TextDocument.URI)
	ctx.Appraiser().Save(params.TextDocument.URI)
	return nil
}

// DidClose handles textDocument/didClose notifications
func DidClose(ctx types.ServerContext, context *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	helpers.SafeDebugLog("[LIFECYCLE] DidClose: URI=%s", params.TextDocument.URI)
	ctx.Appraiser().Close(params.TextDocument.URI)
	return nil
}

// applyIncrementalChange splices one ranged change into the text using a
// line index over the current content.
func applyIncrementalChange(content string, rng *protocol.Range, text string) string {
	lines := manifest.NewLineIndex(content)
	start := lines.OffsetFor(rng.Start.Line, rng.Start.Character)
	end := lines.OffsetFor(rng.End.Line, rng.End.Character)
	if start > len(content) {
		start = len(content)
	}
	if end > len(content) {
		end = len(content)
	}
	if end < start {
		start, end = end, start
	}
	return content[:start] + text + content[end:]
}
