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
package codeAction

import (
	"fmt"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/washanhanzi/cargo-appraiser/appraiser"
	"github.com/washanhanzi/cargo-appraiser/lsp/helpers"
	"github.com/washanhanzi/cargo-appraiser/lsp/types"
	"github.com/washanhanzi/cargo-appraiser/manifest"
	"github.com/washanhanzi/cargo-appraiser/render"
)

// CommandCargoUpdate is executed client-side as a shell command.
const CommandCargoUpdate = "cargo-appraiser.cargoUpdate"

// CodeAction handles textDocument/codeAction requests
func CodeAction(ctx types.ServerContext, context *glsp.Context, params *protocol.CodeActionParams) (any, error) {
	uri := params.TextDocument.URI
	helpers.SafeDebugLog("[CODE_ACTION] Request for %s at line=%d", uri, params.Range.Start.Line)

	var actions []protocol.CodeAction
	ctx.Appraiser().Query(uri, func(doc *appraiser.Document) {
		if doc == nil || doc.Tree == nil {
			return
		}
		offset := doc.Tree.Lines().OffsetFor(params.Range.Start.Line, params.Range.Start.Character)
		dep := doc.DepAt(offset)
		if dep == nil {
			return
		}
		status, values := ctx.Appraiser().Status(doc, dep)
		// a dependency the resolver excluded (platform-filtered) offers
		// no actions at all
		if status == render.StatusNotInstalled {
			return
		}
		actions = appendVersionActions(dep, uri, status, values, actions)
		actions = append(actions, updateCommandAction(dep))
	})

	helpers.SafeDebugLog("[CODE_ACTION] Returning %d code actions", len(actions))
	return actions, nil
}

// appendVersionActions offers requirement edits when a newer version
// exists, compatible or not.
func appendVersionActions(dep *manifest.Dependency, uri protocol.DocumentUri, status render.Status, values render.Values, actions []protocol.CodeAction) []protocol.CodeAction {
	if dep.RequirementSpan == nil {
		return actions
	}

	switch status {
	case render.StatusCompatibleLatest, render.StatusMixedUpgradeable, render.StatusNoncompatibleLatest:
	default:
		return actions
	}

	if values.LatestMatched != "" && values.LatestMatched != values.Installed {
		actions = append(actions, requirementEdit(dep, uri, values.LatestMatched))
	}
	if values.Latest != "" && values.Latest != values.LatestMatched {
		actions = append(actions, requirementEdit(dep, uri, values.Latest))
	}
	return actions
}

// requirementEdit builds a quickfix replacing the requirement string,
// quotes included, with the chosen target.
func requirementEdit(dep *manifest.Dependency, uri protocol.DocumentUri, target string) protocol.CodeAction {
	kind := protocol.CodeActionKindQuickFix
	return protocol.CodeAction{
		Title: fmt.Sprintf("Update %s to %s", dep.TableKey(), target),
		Kind:  &kind,
		Edit: &protocol.WorkspaceEdit{
			Changes: map[protocol.DocumentUri][]protocol.TextEdit{
				uri: {
					{
						Range:   dep.RequirementSpan.LSPRange(),
						NewText: fmt.Sprintf("%q", target),
					},
				},
			},
		},
	}
}

// updateCommandAction returns the workspace-wide cargo update action for
// the crate, executed by the client as a shell command.
func updateCommandAction(dep *manifest.Dependency) protocol.CodeAction {
	title := fmt.Sprintf("Run cargo update -p %s", dep.Name)
	return protocol.CodeAction{
		Title: title,
		Command: &protocol.Command{
			Title:     title,
			Command:   CommandCargoUpdate,
			Arguments: []any{dep.Name},
		},
	}
}
