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
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// MethodReadFile asks the client for buffer text the filesystem may not
// have yet. Advertised by the client via --client-capabilities readFile.
const MethodReadFile = "textDocument/readFile"

type readFileParams struct {
	URI protocol.DocumentUri `json:"uri"`
}

type readFileResult struct {
	Content string `json:"content"`
}

// clientConn adapts the glsp connection for the appraiser and renderers.
// The context is captured at initialize time; notifications before that
// are dropped.
type clientConn struct {
	mu  sync.RWMutex
	ctx *glsp.Context

	supportsReadFile bool
}

func (c *clientConn) set(ctx *glsp.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx = ctx
}

func (c *clientConn) context() *glsp.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ctx
}

// Notify implements render.Conn.
func (c *clientConn) Notify(method string, params any) {
	if ctx := c.context(); ctx != nil {
		ctx.Notify(method, params)
	}
}

// PublishDiagnostics implements appraiser.Client.
func (c *clientConn) PublishDiagnostics(uri protocol.DocumentUri, diagnostics []protocol.Diagnostic) {
	if diagnostics == nil {
		diagnostics = []protocol.Diagnostic{}
	}
	c.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// ReadFile requests buffer text from the client.
func (c *clientConn) ReadFile(uri protocol.DocumentUri) (string, bool) {
	ctx := c.context()
	if ctx == nil || !c.supportsReadFile {
		return "", false
	}
	var result readFileResult
	ctx.Call(MethodReadFile, &readFileParams{URI: uri}, &result)
	if result.Content == "" {
		return "", false
	}
	return result.Content, true
}
