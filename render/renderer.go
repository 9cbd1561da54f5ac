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
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Status is the reconciled state of one dependency entry, in decision
// order. The string form doubles as the decoration kind sent to clients.
type Status int

const (
	StatusNotParsed Status = iota
	StatusLocal
	StatusGit
	StatusWaiting
	StatusNotInstalled
	StatusYanked
	StatusLatest
	StatusCompatibleLatest
	StatusMixedUpgradeable
	StatusNoncompatibleLatest
)

func (s Status) String() string {
	switch s {
	case StatusLocal:
		return "local"
	case StatusGit:
		return "git"
	case StatusWaiting:
		return "waiting"
	case StatusNotInstalled:
		return "notInstalled"
	case StatusYanked:
		return "yanked"
	case StatusLatest:
		return "latest"
	case StatusCompatibleLatest:
		return "compatibleLatest"
	case StatusMixedUpgradeable:
		return "mixedUpgradeable"
	case StatusNoncompatibleLatest:
		return "nonCompatibleLatest"
	}
	return "notParsed"
}

// Annotation is one renderer-agnostic dependency annotation. Both renderer
// variants consume the identical projection.
type Annotation struct {
	// ID identifies the annotated entry stably across updates, e.g.
	// "dependencies:serde".
	ID     string
	Status Status
	Text   string
	Range  protocol.Range
}

// Renderer ships dependency annotations to the editor, either as custom
// decorations or as standard inlay hints.
type Renderer interface {
	// Render replaces all annotations for the document.
	Render(uri protocol.DocumentUri, annotations []Annotation)

	// ClearAll removes every annotation for the document.
	ClearAll(uri protocol.DocumentUri)
}

// Conn is the slice of the client connection renderers need.
type Conn interface {
	Notify(method string, params any)
}

// Values are the placeholder values available to formatter templates.
type Values struct {
	Installed     string
	LatestMatched string
	Latest        string
	Ref           string
	Commit        string
}

// Formatter renders per-status decoration texts from templates with
// {installed}, {latest_matched}, {latest}, {ref} and {commit}
// placeholders. Missing placeholders render as empty.
type Formatter struct {
	templates map[Status]string
}

// DefaultTemplates are the built-in decoration texts.
func DefaultTemplates() map[Status]string {
	return map[Status]string{
		StatusNotParsed:           "❓",
		StatusLocal:               "📁 local",
		StatusGit:                 "🐙 {ref} {commit}",
		StatusWaiting:             "⏳ loading",
		StatusNotInstalled:        "❌ not installed",
		StatusYanked:              "❗ yanked {installed}",
		StatusLatest:              "✅ {installed}",
		StatusCompatibleLatest:    "🚀 {installed} -> {latest_matched}",
		StatusMixedUpgradeable:    "🚀🔒 {installed} -> {latest_matched},  {latest}",
		StatusNoncompatibleLatest: "🔒 {installed}, {latest}",
	}
}

// NewFormatter builds a formatter from the default templates overridden by
// the per-status entries in overrides, keyed by status kind string.
func NewFormatter(overrides map[string]string) *Formatter {
	templates := DefaultTemplates()
	for kind, tmpl := range overrides {
		for s := StatusNotParsed; s <= StatusNoncompatibleLatest; s++ {
			if s.String() == kind {
				templates[s] = tmpl
			}
		}
	}
	return &Formatter{templates: templates}
}

// Format renders the template for a status with the given values.
func (f *Formatter) Format(status Status, values Values) string {
	tmpl, ok := f.templates[status]
	if !ok {
		return ""
	}
	r := strings.NewReplacer(
		"{installed}", values.Installed,
		"{latest_matched}", values.LatestMatched,
		"{latest}", values.Latest,
		"{ref}", values.Ref,
		"{commit}", values.Commit,
	)
	return strings.TrimSpace(r.Replace(tmpl))
}
