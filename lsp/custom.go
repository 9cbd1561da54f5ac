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
package lsp

import (
	"encoding/json"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/washanhanzi/cargo-appraiser/lsp/methods/textDocument/inlayHint"
)

// MethodTextDocumentInlayHint is the LSP 3.17 inlay hint request.
const MethodTextDocumentInlayHint = "textDocument/inlayHint"

// CustomHandler wraps protocol.Handler to dispatch LSP 3.17 methods the
// 3.16 handler does not know about. When glsp gains protocol_3_17 support
// this wrapper goes away.
type CustomHandler struct {
	Handler protocol.Handler
	server  *Server
}

func (h *CustomHandler) Handle(context *glsp.Context) (any, bool, bool, error) {
	switch context.Method {
	case MethodTextDocumentInlayHint:
		var params inlayHint.Params
		if err := json.Unmarshal(context.Params, &params); err != nil {
			return nil, true, false, err
		}
		result, err := inlayHint.InlayHints(h.server, context, &params)
		return result, true, true, err
	}
	return h.Handler.Handle(context)
}
