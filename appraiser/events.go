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
package appraiser

import (
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/washanhanzi/cargo-appraiser/cargo"
)

// event is one message on the appraiser's input channel. Events are
// processed strictly serially; handlers never block on external I/O.
type event interface{ isEvent() }

// editSignal says the edit box holds a pending text for the URI. Edits are
// coalesced through the box: only the newest text is ever parsed.
type editSignal struct {
	uri protocol.DocumentUri
}

type saveEvent struct {
	uri protocol.DocumentUri
}

type closeEvent struct {
	uri protocol.DocumentUri
}

// resolveCompleted carries the result of one background cargo run,
// together with the generation and dependency signatures captured at
// dispatch time.
type resolveCompleted struct {
	uri        protocol.DocumentUri
	generation uint64
	sig        signatureMap
	index      *cargo.ResolutionIndex
	err        error
}

type auditCompleted struct {
	uri        protocol.DocumentUri
	generation uint64
	index      *cargo.AuditIndex
	err        error
}

// debounceFired is posted by the idle timer armed after an edit.
type debounceFired struct {
	uri        protocol.DocumentUri
	generation uint64
}

type configChanged struct {
	options *Options
}

type externalFileChanged struct {
	path string
}

// requestEvent runs fn on the event thread against the document snapshot
// and closes done; the caller blocks for the synchronous duration only.
type requestEvent struct {
	uri  protocol.DocumentUri
	fn   func(doc *Document)
	done chan struct{}
}

func (editSignal) isEvent()          {}
func (saveEvent) isEvent()           {}
func (closeEvent) isEvent()          {}
func (resolveCompleted) isEvent()    {}
func (auditCompleted) isEvent()      {}
func (debounceFired) isEvent()       {}
func (configChanged) isEvent()       {}
func (externalFileChanged) isEvent() {}
func (requestEvent) isEvent()        {}
