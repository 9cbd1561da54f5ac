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
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/washanhanzi/cargo-appraiser/lsp/helpers"
	"github.com/washanhanzi/cargo-appraiser/lsp/types"
)

// lockfileWatchID identifies our watched-files registration.
const lockfileWatchID = "cargo-appraiser-lockfiles"

// Initialized handles the LSP initialized notification. The server
// registers a watcher for every Cargo.lock so the build tool touching the
// lockfile shows up as an ExternalFileChanged event.
func Initialized(ctx types.ServerContext, context *glsp.Context, params *protocol.InitializedParams) error {
	helpers.SafeDebugLog("[INITIALIZED] registering Cargo.lock watcher")

	go context.Call(protocol.ServerClientRegisterCapability, &protocol.RegistrationParams{
		Registrations: []protocol.Registration{
			{
				ID:     lockfileWatchID,
				Method: "workspace/didChangeWatchedFiles",
				RegisterOptions: protocol.DidChangeWatchedFilesRegistrationOptions{
					Watchers: []protocol.FileSystemWatcher{
						{GlobPattern: "**/Cargo.lock"},
					},
				},
			},
		},
	}, nil)

	return nil
}
