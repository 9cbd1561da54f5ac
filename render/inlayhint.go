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
	"sync"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// MethodInlayHintRefresh asks the client to re-request inlay hints.
const MethodInlayHintRefresh = "workspace/inlayHint/refresh"

// InlayHintRenderer keeps the latest annotations per document for the
// textDocument/inlayHint handler to serve, and nudges the client to
// refresh when the projection changes.
type InlayHintRenderer struct {
	conn  Conn
	mu    sync.RWMutex
	hints map[protocol.DocumentUri][]Annotation
}

// NewInlayHintRenderer creates an inlay hint renderer on the connection.
func NewInlayHintRenderer(conn Conn) *InlayHintRenderer {
	return &InlayHintRenderer{
		conn:  conn,
		hints: make(map[protocol.DocumentUri][]Annotation),
	}
}

func (r *InlayHintRenderer) Render(uri protocol.DocumentUri, annotations []Annotation) {
	r.mu.Lock()
	r.hints[uri] = annotations
	r.mu.Unlock()
	r.conn.Notify(MethodInlayHintRefresh, nil)
}

func (r *InlayHintRenderer) ClearAll(uri protocol.DocumentUri) {
	r.mu.Lock()
	delete(r.hints, uri)
	r.mu.Unlock()
	r.conn.Notify(MethodInlayHintRefresh, nil)
}

// Hints returns the current annotations for a document.
func (r *InlayHintRenderer) Hints(uri protocol.DocumentUri) []Annotation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Annotation(nil), r.hints[uri]...)
}
