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
package textDocument

import (
	"testing"

	"github.com/stretchr/testify/assert"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func rng(startLine, startChar, endLine, endChar uint32) *protocol.Range {
	return &protocol.Range{
		Start: protocol.Position{Line: startLine, Character: startChar},
		End:   protocol.Position{Line: endLine, Character: endChar},
	}
}

func TestApplyIncrementalChangeSingleLine(t *testing.T) {
	content := "serde = \"1.0.100\"\ntokio = \"1.17\"\n"
	// replace 1.0.100 with 1.0.210
	result := applyIncrementalChange(content, rng(0, 9, 0, 16), "1.0.210")
	assert.Equal(t, "serde = \"1.0.210\"\ntokio = \"1.17\"\n", result)
}

func TestApplyIncrementalChangeMultiLine(t *testing.T) {
	content := "a\nb\nc\n"
	result := applyIncrementalChange(content, rng(0, 1, 2, 0), "X")
	assert.Equal(t, "aXc\n", result)
}

func TestApplyIncrementalChangeInsertion(t *testing.T) {
	content := "[dependencies]\n"
	result := applyIncrementalChange(content, rng(1, 0, 1, 0), "serde = \"1.0\"\n")
	assert.Equal(t, "[dependencies]\nserde = \"1.0\"\n", result)
}

func TestApplyIncrementalChangeOutOfBoundsClamps(t *testing.T) {
	content := "ab"
	result := applyIncrementalChange(content, rng(5, 0, 6, 0), "x")
	assert.Equal(t, "abx", result)
}

func TestApplyIncrementalChangeDeletion(t *testing.T) {
	content := "serde = \"1.0\"\n"
	result := applyIncrementalChange(content, rng(0, 0, 1, 0), "")
	assert.Equal(t, "", result)
}
