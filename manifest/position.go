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
package manifest

import (
	"sort"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Position is a location in a manifest in both of its forms: a byte offset
// into the document and an LSP (line, character) coordinate.
type Position struct {
	Offset    int
	Line      uint32
	Character uint32
}

// Span is a half-open [Start, End) region of the manifest text.
type Span struct {
	Start Position
	End   Position
}

// Contains reports whether the byte offset falls inside the span.
// The end offset is exclusive.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start.Offset && offset < s.End.Offset
}

// Len returns the span's byte length.
func (s Span) Len() int {
	return s.End.Offset - s.Start.Offset
}

// LSPRange converts the span to an LSP protocol range.
func (s Span) LSPRange() protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: s.Start.Line, Character: s.Start.Character},
		End:   protocol.Position{Line: s.End.Line, Character: s.End.Character},
	}
}

// LineIndex precomputes line start offsets for offset <-> line/character
// conversion over one text snapshot.
type LineIndex struct {
	starts []int
	length int
}

// NewLineIndex builds the line start table for text.
func NewLineIndex(text string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{starts: starts, length: len(text)}
}

// PositionFor converts a byte offset into a full Position. Offsets outside
// the text are clamped.
func (li *LineIndex) PositionFor(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > li.length {
		offset = li.length
	}
	// rightmost line start <= offset
	line := sort.Search(len(li.starts), func(i int) bool {
		return li.starts[i] > offset
	}) - 1
	return Position{
		Offset:    offset,
		Line:      uint32(line),
		Character: uint32(offset - li.starts[line]),
	}
}

// OffsetFor converts an LSP (line, character) coordinate into a byte offset.
// Coordinates past the end of the text are clamped.
func (li *LineIndex) OffsetFor(line, character uint32) int {
	if int(line) >= len(li.starts) {
		return li.length
	}
	offset := li.starts[line] + int(character)
	var lineEnd int
	if int(line)+1 < len(li.starts) {
		lineEnd = li.starts[line+1]
	} else {
		lineEnd = li.length
	}
	if offset > lineEnd {
		offset = lineEnd
	}
	return offset
}

// SpanFor builds a Span from a [start, end) byte offset pair.
func (li *LineIndex) SpanFor(start, end int) Span {
	return Span{Start: li.PositionFor(start), End: li.PositionFor(end)}
}
