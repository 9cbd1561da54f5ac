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
package workspace

import (
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/washanhanzi/cargo-appraiser/appraiser"
	"github.com/washanhanzi/cargo-appraiser/lsp/helpers"
	"github.com/washanhanzi/cargo-appraiser/lsp/types"
)

// DidChangeConfiguration handles workspace/didChangeConfiguration by
// swapping in a fresh options snapshot.
func DidChangeConfiguration(ctx types.ServerContext, context *glsp.Context, params *protocol.DidChangeConfigurationParams) error {
	helpers.SafeDebugLog("[CONFIG] configuration changed")
	ctx.Appraiser().ConfigChanged(appraiser.OptionsFromInitialization(params.Settings))
	return nil
}

// DidChangeWatchedFiles handles workspace/didChangeWatchedFiles. Lockfile
// changes flow into the appraiser as external file events.
func DidChangeWatchedFiles(ctx types.ServerContext, context *glsp.Context, params *protocol.DidChangeWatchedFilesParams) error {
	for _, change := range params.Changes {
		path := helpers.URIToPath(string(change.URI))
		helpers.SafeDebugLog("[WATCHED_FILES] %s (%d)", path, change.Type)
		ctx.Appraiser().ExternalFileChanged(path)
	}
	return nil
}
