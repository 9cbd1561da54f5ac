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

// SetTrace handles the $/setTrace notification; verbose traces enable
// debug logging through window/logMessage.
func SetTrace(ctx types.ServerContext, context *glsp.Context, params *protocol.SetTraceParams) error {
	enabled := params.Value == protocol.TraceValueVerbose || params.Value == protocol.TraceValueMessage
	helpers.SetDebugLoggingEnabled(enabled)
	return nil
}
