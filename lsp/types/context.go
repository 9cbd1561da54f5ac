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
package types

import (
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/washanhanzi/cargo-appraiser/appraiser"
	"github.com/washanhanzi/cargo-appraiser/render"
)

// RendererKind selects the editor-facing projection at startup.
type RendererKind string

const (
	RendererVSCode    RendererKind = "vscode"
	RendererInlayHint RendererKind = "inlayHint"
)

// ServerContext provides the dependencies LSP method handlers need,
// without exposing the whole server.
type ServerContext interface {
	// Appraiser returns the state engine owning all documents.
	Appraiser() *appraiser.Appraiser

	// Renderer returns the selected renderer kind.
	Renderer() RendererKind

	// ReadFile fetches buffer text from the client via the readFile
	// capability; ok is false when the client does not support it.
	ReadFile(uri protocol.DocumentUri) (content string, ok bool)

	// InlayHints returns the current annotation projection for a
	// document; empty in decoration mode.
	InlayHints(uri protocol.DocumentUri) []render.Annotation
}
