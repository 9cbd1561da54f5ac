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
package hover

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/washanhanzi/cargo-appraiser/cargo"
	"github.com/washanhanzi/cargo-appraiser/lsp/testhelpers"
)

const hoverURI = protocol.DocumentUri("file:///ws/demo/Cargo.toml")

const hoverManifest = `[package]
name = "demo"

[dependencies]
serde = "1.0.100"
gitdep = { git = "https://github.com/a/b", branch = "main" }
`

const hoverMetadata = `{
  "packages": [
    {
      "id": "demo 0.1.0 (path+file:///ws/demo)",
      "name": "demo", "version": "0.1.0", "source": null,
      "dependencies": [
        {"name": "serde", "req": "^1.0.100", "kind": null, "target": null, "optional": false},
        {"name": "gitdep", "req": "*", "kind": null, "target": null, "optional": false}
      ]
    },
    {
      "id": "serde 1.0.100 (registry)",
      "name": "serde", "version": "1.0.100",
      "source": "registry+https://github.com/rust-lang/crates.io-index",
      "dependencies": []
    },
    {
      "id": "gitdep 0.1.0 (git)",
      "name": "gitdep", "version": "0.1.0",
      "source": "git+https://github.com/a/b?branch=main#0123456789abcdef",
      "dependencies": []
    }
  ],
  "workspace_members": ["demo 0.1.0 (path+file:///ws/demo)"],
  "workspace_root": "/ws"
}`

func hoverContext(t *testing.T) *testhelpers.Context {
	return testhelpers.NewContext(t,
		&testhelpers.StubRunner{MetadataJSON: hoverMetadata},
		&testhelpers.StubRegistry{},
	)
}

func positionOf(text, needle string, delta int) protocol.Position {
	offset := strings.Index(text, needle) + delta
	line := uint32(strings.Count(text[:offset], "\n"))
	lineStart := strings.LastIndex(text[:offset], "\n") + 1
	return protocol.Position{Line: line, Character: uint32(offset - lineStart)}
}

func TestHoverOnVersionValueListsVersions(t *testing.T) {
	ctx := testhelpers.NewContext(t,
		&testhelpers.StubRunner{MetadataJSON: hoverMetadata},
		&testhelpers.StubRegistry{VersionLists: map[string][]cargo.VersionInfo{
			"serde": testhelpers.Versions(t, "1.0.210", "1.0.200", "1.0.100"),
		}},
	)
	ctx.Open(t, hoverURI, hoverManifest)

	result, err := Hover(ctx, nil, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: hoverURI},
			Position:     positionOf(hoverManifest, `"1.0.100"`, 3),
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	content, ok := result.Contents.(protocol.MarkupContent)
	require.True(t, ok)
	assert.Contains(t, content.Value, "**serde**")
	assert.Contains(t, content.Value, "installed: `1.0.100`")
	assert.Contains(t, content.Value, "`1.0.210` ← latest compatible")
}

func TestHoverOnGitDependencyShowsRefAndCommit(t *testing.T) {
	ctx := testhelpers.NewContext(t,
		&testhelpers.StubRunner{MetadataJSON: hoverMetadata},
		&testhelpers.StubRegistry{},
	)
	ctx.Open(t, hoverURI, hoverManifest)

	result, err := Hover(ctx, nil, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: hoverURI},
			Position:     positionOf(hoverManifest, "https://github.com/a/b", 2),
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	content := result.Contents.(protocol.MarkupContent)
	assert.Contains(t, content.Value, "branch: `main`")
	assert.Contains(t, content.Value, "resolved commit: `0123456789abcdef`")
}

func TestHoverOutsideDependenciesReturnsNil(t *testing.T) {
	ctx := testhelpers.NewContext(t,
		&testhelpers.StubRunner{MetadataJSON: hoverMetadata},
		&testhelpers.StubRegistry{},
	)
	ctx.Open(t, hoverURI, hoverManifest)

	result, err := Hover(ctx, nil, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: hoverURI},
			Position:     protocol.Position{Line: 1, Character: 2},
		},
	})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestHoverOnUnopenedDocument(t *testing.T) {
	ctx := hoverContext(t)

	result, err := Hover(ctx, nil, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///nowhere/Cargo.toml"},
			Position:     protocol.Position{},
		},
	})
	require.NoError(t, err)
	assert.Nil(t, result)
}
