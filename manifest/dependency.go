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
	"fmt"
	"sort"
)

// DepTable identifies which dependency table an entry belongs to.
type DepTable int

const (
	TableNormal DepTable = iota
	TableDev
	TableBuild
	TableWorkspace
)

func (t DepTable) String() string {
	switch t {
	case TableNormal:
		return "dependencies"
	case TableDev:
		return "dev-dependencies"
	case TableBuild:
		return "build-dependencies"
	case TableWorkspace:
		return "workspace.dependencies"
	}
	return "unknown"
}

// SourceKind identifies where a dependency comes from. Exactly one kind
// applies to an entry.
type SourceKind int

const (
	SourceUnspecified SourceKind = iota
	SourceRegistry
	SourceGit
	SourcePath
	SourceWorkspace
)

func (k SourceKind) String() string {
	switch k {
	case SourceRegistry:
		return "registry"
	case SourceGit:
		return "git"
	case SourcePath:
		return "path"
	case SourceWorkspace:
		return "workspace"
	}
	return "unspecified"
}

// Source is the tagged origin of a dependency. Only the fields belonging
// to the active Kind are meaningful.
type Source struct {
	Kind     SourceKind
	Registry string // SourceRegistry: registry name, "" for the default
	GitURL   string // SourceGit
	GitRef   string // SourceGit: branch, tag or rev value
	GitRefKind string // SourceGit: "branch", "tag" or "rev"
	Path     string // SourcePath
}

// TriState is an optionally-present boolean.
type TriState int

const (
	TriUnset TriState = iota
	TriTrue
	TriFalse
)

// Feature is one entry of a dependency's feature list with its token range.
type Feature struct {
	Name string
	Span Span
}

// Dependency is the semantic projection of one dependency entry.
type Dependency struct {
	Table    DepTable
	Platform string // cfg expression for target tables, else ""
	// Name is the effective crate name, after applying a package rename.
	Name string
	// Alias is the table key when a package rename is present, else "".
	Alias           string
	Requirement     string
	Source          Source
	Features        []Feature
	DefaultFeatures TriState
	Optional        bool

	KeySpan   Span
	ValueSpan Span
	// RequirementSpan covers the version requirement string token,
	// including quotes; nil when no requirement is written.
	RequirementSpan *Span
	// Entry is the syntax node the record was projected from.
	Entry *Node
}

// TableKey returns the key the entry is written under: the alias when the
// dependency is renamed, the crate name otherwise.
func (d *Dependency) TableKey() string {
	if d.Alias != "" {
		return d.Alias
	}
	return d.Name
}

// EntryKey identifies a dependency entry within one document.
type EntryKey struct {
	Table    DepTable
	Platform string
	Key      string // alias or name
}

// Key returns the entry's identity within its document.
func (d *Dependency) Key() EntryKey {
	return EntryKey{Table: d.Table, Platform: d.Platform, Key: d.TableKey()}
}

// Dependencies projects dependency records from the recognized tables:
// [dependencies], [dev-dependencies], [build-dependencies],
// [target.<cfg>.*-dependencies] and [workspace.dependencies]. Projection
// problems (conflicting sources, workspace inheritance combined with a
// concrete source) are returned as diagnostics.
func (t *Tree) Dependencies() ([]Dependency, []ParseDiagnostic) {
	type entryAccum struct {
		name    string
		keyNode *Node
		value   *Node            // whole-value node for string/inline forms
		fields  map[string]*Node // field name -> key-value node
		order   int
	}

	entries := make(map[EntryKey]*entryAccum)
	var orderCounter int

	record := func(table DepTable, platform, name string, keyNode *Node) *entryAccum {
		k := EntryKey{Table: table, Platform: platform, Key: name}
		e, ok := entries[k]
		if !ok {
			e = &entryAccum{
				name:    name,
				keyNode: keyNode,
				fields:  make(map[string]*Node),
				order:   orderCounter,
			}
			orderCounter++
			entries[k] = e
		}
		return e
	}

	for _, tbl := range t.tables {
		table, platform, entryName, ok := classifyDepTable(tbl.Segs)
		if !ok {
			continue
		}

		if entryName != "" {
			// [dependencies.serde] style section: children are fields
			e := record(table, platform, entryName, tbl)
			for _, kv := range tbl.Children {
				rel := kv.Segs[len(tbl.Segs):]
				if len(rel) == 1 {
					e.fields[rel[0]] = kv
				}
			}
			continue
		}

		// container section: children keyed by entry name
		for _, kv := range tbl.Children {
			rel := kv.Segs[len(tbl.Segs):]
			if len(rel) == 0 {
				continue
			}
			keyNode := kv.Key()
			e := record(table, platform, rel[0], keyNode)
			switch {
			case len(rel) == 1:
				e.value = kv.Value()
				if e.keyNode == nil {
					e.keyNode = keyNode
				}
			default:
				// dotted form: serde.workspace = true
				e.fields[rel[1]] = kv
			}
		}
	}

	keys := make([]EntryKey, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return entries[keys[i]].order < entries[keys[j]].order
	})

	var deps []Dependency
	var diags []ParseDiagnostic
	for _, k := range keys {
		e := entries[k]
		dep, ds := t.projectEntry(k, e.name, e.keyNode, e.value, e.fields)
		deps = append(deps, dep)
		diags = append(diags, ds...)
	}
	return deps, diags
}

// classifyDepTable maps table header segments to a dependency table, an
// optional platform cfg and an optional single entry name.
func classifyDepTable(segs []string) (table DepTable, platform, entry string, ok bool) {
	depKind := func(s string) (DepTable, bool) {
		switch s {
		case "dependencies":
			return TableNormal, true
		case "dev-dependencies":
			return TableDev, true
		case "build-dependencies":
			return TableBuild, true
		}
		return 0, false
	}

	switch {
	case len(segs) >= 1 && len(segs) <= 2:
		if kind, isDep := depKind(segs[0]); isDep {
			if len(segs) == 2 {
				return kind, "", segs[1], true
			}
			return kind, "", "", true
		}
		if segs[0] == "workspace" && len(segs) == 2 && segs[1] == "dependencies" {
			return TableWorkspace, "", "", true
		}
	case len(segs) >= 3 && len(segs) <= 4 && segs[0] == "target":
		if kind, isDep := depKind(segs[2]); isDep {
			if len(segs) == 4 {
				return kind, segs[1], segs[3], true
			}
			return kind, segs[1], "", true
		}
	case len(segs) == 3 && segs[0] == "workspace" && segs[1] == "dependencies":
		return TableWorkspace, "", segs[2], true
	}
	return 0, "", "", false
}

// projectEntry builds one Dependency from the collected value and fields.
// A bare string and an inline table project to the same record shape.
func (t *Tree) projectEntry(key EntryKey, tableKey string, keyNode *Node, value *Node, fields map[string]*Node) (Dependency, []ParseDiagnostic) {
	dep := Dependency{
		Table:    key.Table,
		Platform: key.Platform,
		Name:     tableKey,
	}
	var diags []ParseDiagnostic

	if keyNode != nil {
		dep.KeySpan = keyNode.Span
		dep.Entry = keyNode
	}

	setRequirement := func(n *Node) {
		dep.Requirement = n.Text
		span := n.Span
		dep.RequirementSpan = &span
		if span.End.Offset > dep.ValueSpan.End.Offset || dep.ValueSpan.Len() == 0 {
			dep.ValueSpan = span
		}
	}

	if value != nil {
		dep.ValueSpan = value.Span
		switch value.Kind {
		case NodeString:
			setRequirement(value)
		case NodeInlineTable:
			for _, kv := range value.Children {
				fields[kv.LastSeg()] = kv
			}
		default:
			diags = append(diags, ParseDiagnostic{
				Span:    value.Span,
				Message: fmt.Sprintf("dependency %q must be a version string or a table", tableKey),
			})
		}
	}

	setSource := func(kind SourceKind, span Span, apply func(*Source)) {
		if dep.Source.Kind != SourceUnspecified && dep.Source.Kind != kind {
			diags = append(diags, ParseDiagnostic{
				Span: span,
				Message: fmt.Sprintf("dependency %q declares both %s and %s sources",
					tableKey, dep.Source.Kind, kind),
			})
			return
		}
		dep.Source.Kind = kind
		if apply != nil {
			apply(&dep.Source)
		}
	}

	fieldSpan := func(kv *Node) Span {
		if v := kv.Value(); v != nil {
			return v.Span
		}
		return kv.Span
	}

	// widen the value span over all fields
	widen := func(s Span) {
		if dep.ValueSpan.Len() == 0 {
			dep.ValueSpan = s
			return
		}
		if s.Start.Offset < dep.ValueSpan.Start.Offset {
			dep.ValueSpan.Start = s.Start
		}
		if s.End.Offset > dep.ValueSpan.End.Offset {
			dep.ValueSpan.End = s.End
		}
	}

	for name, kv := range fields {
		v := kv.Value()
		if v == nil {
			continue
		}
		widen(kv.Span)
		switch name {
		case "version":
			setRequirement(v)
		case "package":
			dep.Alias = tableKey
			dep.Name = v.Text
		case "git":
			setSource(SourceGit, fieldSpan(kv), func(s *Source) { s.GitURL = v.Text })
		case "branch", "tag", "rev":
			refKind := name
			setSource(SourceGit, fieldSpan(kv), func(s *Source) {
				s.GitRef = v.Text
				s.GitRefKind = refKind
			})
		case "path":
			setSource(SourcePath, fieldSpan(kv), func(s *Source) { s.Path = v.Text })
		case "registry":
			setSource(SourceRegistry, fieldSpan(kv), func(s *Source) { s.Registry = v.Text })
		case "workspace":
			if v.Kind == NodeBool && v.Text == "true" {
				if key.Table == TableWorkspace {
					diags = append(diags, ParseDiagnostic{
						Span:    fieldSpan(kv),
						Message: fmt.Sprintf("dependency %q cannot inherit from the workspace inside [workspace.dependencies]", tableKey),
					})
					continue
				}
				setSource(SourceWorkspace, fieldSpan(kv), nil)
			}
		case "features":
			for _, el := range v.Children {
				if el.Kind == NodeString {
					dep.Features = append(dep.Features, Feature{Name: el.Text, Span: el.Span})
				}
			}
		case "default-features", "default_features":
			if v.Kind == NodeBool {
				if v.Text == "true" {
					dep.DefaultFeatures = TriTrue
				} else {
					dep.DefaultFeatures = TriFalse
				}
			}
		case "optional":
			dep.Optional = v.Kind == NodeBool && v.Text == "true"
		}
	}

	if dep.Source.Kind == SourceWorkspace {
		for _, name := range []string{"version", "git", "path"} {
			if kv, ok := fields[name]; ok {
				diags = append(diags, ParseDiagnostic{
					Span:    fieldSpan(kv),
					Message: fmt.Sprintf("dependency %q inherits from the workspace and cannot also set %q", tableKey, name),
				})
			}
		}
	}

	if dep.Source.Kind == SourceUnspecified && dep.Requirement != "" {
		dep.Source.Kind = SourceRegistry
	}

	return dep, diags
}
