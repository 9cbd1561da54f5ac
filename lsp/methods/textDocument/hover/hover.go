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
	"fmt"
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/washanhanzi/cargo-appraiser/appraiser"
	"github.com/washanhanzi/cargo-appraiser/cargo"
	"github.com/washanhanzi/cargo-appraiser/lsp/helpers"
	"github.com/washanhanzi/cargo-appraiser/lsp/types"
	"github.com/washanhanzi/cargo-appraiser/manifest"
)

// maxVersionsShown caps the version list in a hover.
const maxVersionsShown = 15

// Hover handles textDocument/hover requests
func Hover(ctx types.ServerContext, context *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	uri := params.TextDocument.URI
	helpers.SafeDebugLog("[HOVER] Request for URI: %s, Position: line=%d, char=%d", uri, params.Position.Line, params.Position.Character)

	var result *protocol.Hover
	ok := ctx.Appraiser().Query(uri, func(doc *appraiser.Document) {
		if doc == nil || doc.Tree == nil {
			return
		}
		offset := doc.Tree.Lines().OffsetFor(params.Position.Line, params.Position.Character)
		dep := doc.DepAt(offset)
		if dep == nil {
			return
		}
		result = hoverForDependency(doc, dep, offset)
	})
	if !ok {
		return nil, nil
	}
	return result, nil
}

func hoverForDependency(doc *appraiser.Document, dep *manifest.Dependency, offset int) *protocol.Hover {
	res := doc.Resolved(dep)

	// feature list entry: show the entries the feature activates directly;
	// nested features are not expanded
	for _, feature := range dep.Features {
		if feature.Span.Contains(offset) {
			return markdownHover(featureContent(dep, feature, res), feature.Span)
		}
	}

	// version value: available versions with the latest compatible marked
	if dep.RequirementSpan != nil && dep.RequirementSpan.Contains(offset) {
		return markdownHover(versionsContent(dep, res), *dep.RequirementSpan)
	}

	switch dep.Source.Kind {
	case manifest.SourceGit:
		return markdownHover(gitContent(dep, res), dep.ValueSpan)
	case manifest.SourcePath:
		return markdownHover(fmt.Sprintf("**%s**\n\nlocal path `%s`", dep.Name, dep.Source.Path), dep.ValueSpan)
	}

	return markdownHover(versionsContent(dep, res), dep.KeySpan)
}

func versionsContent(dep *manifest.Dependency, res *cargo.Resolved) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**", dep.Name)
	if dep.Requirement != "" {
		fmt.Fprintf(&b, " `%s`", dep.Requirement)
	}
	b.WriteString("\n\n")

	if res.IsInstalled() {
		fmt.Fprintf(&b, "installed: `%s`\n\n", res.Installed.Version)
	}

	if len(res.AvailableList()) == 0 {
		b.WriteString("no registry versions known")
		return b.String()
	}

	b.WriteString("available:\n")
	shown := 0
	for _, v := range res.AvailableList() {
		if shown == maxVersionsShown {
			b.WriteString("- …\n")
			break
		}
		marker := ""
		if res.LatestMatched != nil && v.Version.Equal(res.LatestMatched) {
			marker = " ← latest compatible"
		}
		if v.Yanked {
			marker += " (yanked)"
		}
		fmt.Fprintf(&b, "- `%s`%s\n", v.Version, marker)
		shown++
	}
	return b.String()
}

func gitContent(dep *manifest.Dependency, res *cargo.Resolved) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\ngit `%s`\n", dep.Name, dep.Source.GitURL)
	if dep.Source.GitRef != "" {
		fmt.Fprintf(&b, "\n%s: `%s`\n", dep.Source.GitRefKind, dep.Source.GitRef)
	}
	if res.IsInstalled() {
		if _, commit, ok := strings.Cut(res.Installed.Source, "#"); ok {
			fmt.Fprintf(&b, "\nresolved commit: `%s`\n", commit)
		}
	}
	return b.String()
}

func featureContent(dep *manifest.Dependency, feature manifest.Feature, res *cargo.Resolved) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** feature `%s`\n", dep.Name, feature.Name)
	activations := res.InstalledFeatures()[feature.Name]
	if len(activations) == 0 {
		b.WriteString("\nactivates nothing else")
		return b.String()
	}
	b.WriteString("\nactivates:\n")
	for _, act := range activations {
		fmt.Fprintf(&b, "- `%s`\n", act)
	}
	return b.String()
}

func markdownHover(content string, span manifest.Span) *protocol.Hover {
	rng := span.LSPRange()
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: content,
		},
		Range: &rng,
	}
}
