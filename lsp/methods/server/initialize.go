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
package server

import (
	"encoding/json"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/washanhanzi/cargo-appraiser/appraiser"
	"github.com/washanhanzi/cargo-appraiser/internal/version"
	"github.com/washanhanzi/cargo-appraiser/lsp/helpers"
	"github.com/washanhanzi/cargo-appraiser/lsp/types"
)

// Initialize handles the LSP initialize request
func Initialize(ctx types.ServerContext, context *glsp.Context, params *protocol.InitializeParams) (any, error) {
	helpers.SetGlobalLoggerContext(context)
	helpers.SetDebugLoggingEnabled(false)

	if params.ClientInfo != nil {
		helpers.SafeDebugLog("[INITIALIZE] client: %s", params.ClientInfo.Name)
	}

	// configuration snapshot from initializationOptions
	ctx.Appraiser().ConfigChanged(appraiser.OptionsFromInitialization(params.InitializationOptions))

	openClose := true
	changeKind := protocol.TextDocumentSyncKindIncremental
	serverVersion := version.GetVersion()

	capabilities := protocol.ServerCapabilities{
		HoverProvider:      &protocol.HoverOptions{},
		DefinitionProvider: &protocol.DefinitionOptions{},
		CodeActionProvider: &protocol.CodeActionOptions{
			CodeActionKinds: []protocol.CodeActionKind{
				protocol.CodeActionKindQuickFix,
			},
		},
		TextDocumentSync: &protocol.TextDocumentSyncOptions{
			OpenClose: &openClose,
			Change:    &changeKind,
			Save:      true,
		},
	}

	result := protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    "cargo-appraiser",
			Version: &serverVersion,
		},
	}
	if ctx.Renderer() == types.RendererInlayHint {
		return injectInlayHintCapability(result), nil
	}
	return result, nil
}

// injectInlayHintCapability adds the LSP 3.17 inlayHintProvider field the
// 3.16 capability struct cannot express. Round-trips through JSON so the
// rest of the result keeps its wire shape.
func injectInlayHintCapability(result protocol.InitializeResult) any {
	data, err := json.Marshal(result)
	if err != nil {
		return result
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return result
	}
	if capabilities, ok := m["capabilities"].(map[string]any); ok {
		capabilities["inlayHintProvider"] = true
	}
	return m
}
