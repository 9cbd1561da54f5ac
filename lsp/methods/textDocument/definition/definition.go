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
package definition

import (
	"os"
	"path/filepath"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/washanhanzi/cargo-appraiser/appraiser"
	"github.com/washanhanzi/cargo-appraiser/lsp/helpers"
	"github.com/washanhanzi/cargo-appraiser/lsp/types"
	"github.com/washanhanzi/cargo-appraiser/manifest"
)

// Definition handles textDocument/definition requests. A dependency that
// inherits from the workspace resolves to the matching entry in the
// workspace root manifest.
func Definition(ctx types.ServerContext, context *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	helpers.SafeDebugLog("[DEFINITION] Request for %s at line=%d", uri, params.Position.Line)

	var dep *manifest.Dependency
	var rootDir string
	ctx.Appraiser().Query(uri, func(doc *appraiser.Document) {
		if doc == nil || doc.Tree == nil {
			return
		}
		offset := doc.Tree.Lines().OffsetFor(params.Position.Line, params.Position.Character)
		if d := doc.DepAt(offset); d != nil && d.Source.Kind == manifest.SourceWorkspace {
			dep = d
			if doc.Resolution != nil {
				rootDir = doc.Resolution.WorkspaceRoot
			}
			if rootDir == "" {
				rootDir = findWorkspaceRoot(filepath.Dir(doc.Path))
			}
		}
	})
	if dep == nil || rootDir == "" {
		return nil, nil
	}

	rootManifest := filepath.Join(rootDir, "Cargo.toml")
	rootURI := protocol.DocumentUri(helpers.PathToURI(rootManifest))

	tree := workspaceTree(ctx, rootURI, rootManifest)
	if tree == nil {
		return nil, nil
	}

	node := tree.Lookup("workspace.dependencies." + dep.Name)
	if node == nil {
		return nil, nil
	}
	rng := node.Span.LSPRange()
	if key := node.Key(); key != nil {
		rng = key.Span.LSPRange()
	}

	return protocol.Location{URI: rootURI, Range: rng}, nil
}

// workspaceTree obtains the root manifest's tree: from the open document
// if the editor has it, from the client's buffer via readFile, or from
// disk.
func workspaceTree(ctx types.ServerContext, rootURI protocol.DocumentUri, rootManifest string) *manifest.Tree {
	var tree *manifest.Tree
	ctx.Appraiser().Query(rootURI, func(doc *appraiser.Document) {
		if doc != nil {
			tree = doc.Tree
		}
	})
	if tree != nil {
		return tree
	}

	if content, ok := ctx.ReadFile(rootURI); ok {
		tree, _ = manifest.Parse(content)
		return tree
	}

	data, err := os.ReadFile(rootManifest)
	if err != nil {
		helpers.SafeDebugLog("[DEFINITION] cannot read %s: %v", rootManifest, err)
		return nil
	}
	tree, _ = manifest.Parse(string(data))
	return tree
}

// findWorkspaceRoot walks up from dir looking for a Cargo.toml declaring a
// [workspace] table.
func findWorkspaceRoot(dir string) string {
	for {
		candidate := filepath.Join(dir, "Cargo.toml")
		if data, err := os.ReadFile(candidate); err == nil {
			tree, _ := manifest.Parse(string(data))
			if tree.Lookup("workspace") != nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
