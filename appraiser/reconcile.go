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
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/washanhanzi/cargo-appraiser/cargo"
	"github.com/washanhanzi/cargo-appraiser/manifest"
	"github.com/washanhanzi/cargo-appraiser/render"
)

const diagnosticSource = "cargo-appraiser"

// reconcile recomputes the renderer projection and diagnostics for the
// document from its current text, resolution and audit state.
func (a *Appraiser) reconcile(doc *Document) {
	a.renderer.Render(doc.URI, a.project(doc))
	a.client.PublishDiagnostics(doc.URI, a.diagnostics(doc))
}

// project builds one annotation per dependency entry. Entries whose shape
// changed while a resolution is pending stay cleared until the next
// resolve lands.
func (a *Appraiser) project(doc *Document) []render.Annotation {
	formatter := a.formatter.Load()
	annotations := make([]render.Annotation, 0, len(doc.Deps))

	for i := range doc.Deps {
		dep := &doc.Deps[i]
		if _, stale := doc.staleKeys[dep.Key()]; stale {
			continue
		}
		status, values := a.statusFor(doc, dep)
		annotations = append(annotations, render.Annotation{
			ID:     annotationID(dep),
			Status: status,
			Text:   formatter.Format(status, values),
			Range:  dep.ValueSpan.LSPRange(),
		})
	}
	return annotations
}

func annotationID(dep *manifest.Dependency) string {
	id := dep.Table.String() + ":" + dep.TableKey()
	if dep.Platform != "" {
		id = dep.Platform + ":" + id
	}
	return id
}

// Status evaluates the decision table for one dependency. Callers must
// hold the document snapshot, i.e. run inside Query.
func (a *Appraiser) Status(doc *Document, dep *manifest.Dependency) (render.Status, render.Values) {
	return a.statusFor(doc, dep)
}

// statusFor evaluates the status decision table for one dependency, first
// match winning.
func (a *Appraiser) statusFor(doc *Document, dep *manifest.Dependency) (render.Status, render.Values) {
	values := render.Values{Ref: dep.Source.GitRef}

	switch dep.Source.Kind {
	case manifest.SourcePath:
		return render.StatusLocal, values
	case manifest.SourceGit:
		if res := doc.Resolved(dep); res.IsInstalled() {
			values.Commit = shortCommit(res.Installed.Source)
		}
		return render.StatusGit, values
	}

	res := doc.Resolved(dep)
	if res == nil {
		if doc.Resolution == nil || doc.State == StateResolving {
			return render.StatusWaiting, values
		}
		return render.StatusNotInstalled, values
	}
	if !res.IsInstalled() {
		if doc.State == StateResolving {
			return render.StatusWaiting, values
		}
		return render.StatusNotInstalled, values
	}

	installed := res.Installed.Version
	values.Installed = installed.String()

	latest := res.Latest
	matched := latestMatching(res.Available, dep.Requirement)
	if matched == nil {
		matched = res.LatestMatched
	}
	if latest != nil {
		values.Latest = latest.String()
	}
	if matched != nil {
		values.LatestMatched = matched.String()
	}

	if a.installedYanked(doc, dep, res) {
		return render.StatusYanked, values
	}

	if latest == nil || installed.Equal(latest) || installed.GreaterThan(latest) {
		return render.StatusLatest, values
	}

	latestSatisfies := dep.Requirement == "" || manifest.RequirementMatches(dep.Requirement, latest)
	switch {
	case latestSatisfies:
		return render.StatusCompatibleLatest, values
	case matched != nil && matched.GreaterThan(installed):
		return render.StatusMixedUpgradeable, values
	default:
		return render.StatusNoncompatibleLatest, values
	}
}

// installedYanked reports a yank from either the audit report or the
// registry index flag.
func (a *Appraiser) installedYanked(doc *Document, dep *manifest.Dependency, res *cargo.Resolved) bool {
	if res.InstalledYanked() {
		return true
	}
	for _, issue := range doc.Audit.Get(dep.Name, res.Installed.Version.String()) {
		if issue.Kind == cargo.IssueYanked {
			return true
		}
	}
	return false
}

// latestMatching picks the newest non-yanked release satisfying the
// manifest requirement.
func latestMatching(available []cargo.VersionInfo, req string) *semver.Version {
	if req == "" {
		return nil
	}
	c, err := manifest.ParseRequirement(req)
	if err != nil {
		return nil
	}
	for _, v := range available {
		if v.Yanked || v.Version.Prerelease() != "" {
			continue
		}
		if c.Check(v.Version) {
			return v.Version
		}
	}
	return nil
}

// shortCommit extracts the abbreviated commit from a cargo git source id
// such as "git+https://github.com/serde-rs/serde#1a2b3c4d…".
func shortCommit(sourceID string) string {
	_, commit, ok := strings.Cut(sourceID, "#")
	if !ok {
		return ""
	}
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return commit
}

// diagnostics assembles parse, resolve and audit diagnostics for the
// document.
func (a *Appraiser) diagnostics(doc *Document) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}

	for _, pd := range doc.ParseDiags {
		diagnostics = append(diagnostics, makeDiagnostic(pd.Span.LSPRange(), protocol.DiagnosticSeverityError, pd.Message))
	}

	if doc.State == StateResolveFailed && doc.ResolveErr != nil {
		diagnostics = append(diagnostics, a.resolveErrorDiagnostic(doc, doc.ResolveErr))
	}

	diagnostics = append(diagnostics, a.auditDiagnostics(doc)...)
	return diagnostics
}

// resolveErrorDiagnostic projects a cargo failure onto the best-matching
// manifest range: the span cargo reported, or the start of the document.
func (a *Appraiser) resolveErrorDiagnostic(doc *Document, ce *cargo.CargoError) protocol.Diagnostic {
	rng := protocol.Range{}
	if ce.Line > 0 {
		line := uint32(ce.Line - 1)
		char := uint32(0)
		if ce.Column > 0 {
			char = uint32(ce.Column - 1)
		}
		rng = protocol.Range{
			Start: protocol.Position{Line: line, Character: char},
			End:   protocol.Position{Line: line + 1, Character: 0},
		}
	}
	return makeDiagnostic(rng, protocol.DiagnosticSeverityError, fmt.Sprintf("%s: %s", ce.Kind, ce.Message))
}

// auditDiagnostics emits one warning per audit issue on an installed
// version, filtered by the configured audit level, plus yank warnings from
// the registry index.
func (a *Appraiser) auditDiagnostics(doc *Document) []protocol.Diagnostic {
	var diagnostics []protocol.Diagnostic
	level := a.Options().AuditLevel

	for i := range doc.Deps {
		dep := &doc.Deps[i]
		res := doc.Resolved(dep)
		if !res.IsInstalled() {
			continue
		}
		rng := dep.ValueSpan.LSPRange()
		if dep.RequirementSpan != nil {
			rng = dep.RequirementSpan.LSPRange()
		}

		if res.InstalledYanked() {
			diagnostics = append(diagnostics, makeDiagnostic(rng, protocol.DiagnosticSeverityWarning,
				fmt.Sprintf("%s %s is yanked from the registry", dep.Name, res.Installed.Version)))
		}

		for _, issue := range doc.Audit.Get(dep.Name, res.Installed.Version.String()) {
			if level == AuditLevelVulnerability && issue.Kind != cargo.IssueVulnerability {
				continue
			}
			message := issue.Title
			if issue.ID != "" {
				message = issue.ID + ": " + message
			}
			if issue.URL != "" {
				message += " (" + issue.URL + ")"
			}
			diagnostics = append(diagnostics, makeDiagnostic(rng, protocol.DiagnosticSeverityWarning, message))
		}
	}
	return diagnostics
}

func makeDiagnostic(rng protocol.Range, severity protocol.DiagnosticSeverity, message string) protocol.Diagnostic {
	source := diagnosticSource
	return protocol.Diagnostic{
		Range:    rng,
		Severity: &severity,
		Source:   &source,
		Message:  message,
	}
}
