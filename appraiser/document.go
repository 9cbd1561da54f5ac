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
	"context"
	"time"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/washanhanzi/cargo-appraiser/cargo"
	"github.com/washanhanzi/cargo-appraiser/manifest"
)

// DocState is the per-document resolution state machine.
type DocState int

const (
	// StateParsed: text parsed, no resolution in flight or stored.
	StateParsed DocState = iota
	// StateResolving: a resolution task is in flight.
	StateResolving
	// StateResolved: the stored resolution matches the current manifest
	// shape.
	StateResolved
	// StateStale: the dependency set changed since the last completed
	// resolution; old results are projected onto unchanged entries only.
	StateStale
	// StateResolveFailed: the last resolution ended in a hard error.
	StateResolveFailed
)

func (s DocState) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateResolved:
		return "resolved"
	case StateStale:
		return "stale"
	case StateResolveFailed:
		return "resolve-failed"
	}
	return "parsed"
}

// depSignature captures the resolution-relevant shape of one dependency
// entry. Two documents with equal signature maps resolve identically, so
// edits that keep the map unchanged never force a re-resolve.
type depSignature struct {
	Name        string
	Requirement string
	Source      manifest.Source
}

type signatureMap map[manifest.EntryKey]depSignature

func signaturesOf(deps []manifest.Dependency) signatureMap {
	m := make(signatureMap, len(deps))
	for i := range deps {
		d := &deps[i]
		m[d.Key()] = depSignature{
			Name:        d.Name,
			Requirement: d.Requirement,
			Source:      d.Source,
		}
	}
	return m
}

// changedKeys returns the entry keys added, removed or modified between
// two signature maps.
func changedKeys(old, new signatureMap) map[manifest.EntryKey]struct{} {
	changed := make(map[manifest.EntryKey]struct{})
	for k, sig := range new {
		if prev, ok := old[k]; !ok || prev != sig {
			changed[k] = struct{}{}
		}
	}
	for k := range old {
		if _, ok := new[k]; !ok {
			changed[k] = struct{}{}
		}
	}
	return changed
}

// Document is the per-manifest aggregate the appraiser owns: text, parsed
// model, dependency projection, resolution and audit indices, and the
// state machine driving them.
type Document struct {
	URI     protocol.DocumentUri
	Path    string
	Text    string
	Version int32
	// Generation increments on every text mutation; background task
	// results apply only when their captured generation is still valid.
	Generation uint64

	Tree       *manifest.Tree
	Deps       []manifest.Dependency
	ParseDiags []manifest.ParseDiagnostic

	Resolution *cargo.ResolutionIndex
	Audit      *cargo.AuditIndex

	State      DocState
	ResolveErr *cargo.CargoError
	DirtySince time.Time

	// staleKeys are entries whose shape changed since the stored
	// resolution; their decorations are cleared until the next resolve.
	staleKeys map[manifest.EntryKey]struct{}
	// scheduledSig is the signature map captured when the in-flight (or
	// last applied) resolution was scheduled.
	scheduledSig signatureMap

	resolveCancel context.CancelFunc
	auditCancel   context.CancelFunc
}

// applyText replaces the document text and reparses. Returns the entry
// keys whose dependency shape changed.
func (d *Document) applyText(text string, version int32, now time.Time) map[manifest.EntryKey]struct{} {
	oldSig := signaturesOf(d.Deps)

	d.Text = text
	d.Version = version
	d.Generation++

	tree, parseDiags := manifest.Parse(text)
	deps, depDiags := tree.Dependencies()
	d.Tree = tree
	d.Deps = deps
	d.ParseDiags = append(parseDiags, depDiags...)

	changed := changedKeys(oldSig, signaturesOf(deps))
	if len(changed) > 0 {
		d.DirtySince = now
	}
	return changed
}

// DepByKey returns the dependency record for an entry key.
func (d *Document) DepByKey(key manifest.EntryKey) *manifest.Dependency {
	for i := range d.Deps {
		if d.Deps[i].Key() == key {
			return &d.Deps[i]
		}
	}
	return nil
}

// DepAt returns the dependency whose entry (key or value) covers the byte
// offset, or nil.
func (d *Document) DepAt(offset int) *manifest.Dependency {
	for i := range d.Deps {
		dep := &d.Deps[i]
		if dep.KeySpan.Contains(offset) || dep.ValueSpan.Contains(offset) {
			return dep
		}
	}
	return nil
}

// LookupKey computes the resolution index key for a dependency: the
// effective crate name joins cargo's name-keyed output.
func LookupKey(dep *manifest.Dependency) cargo.DepKey {
	return cargo.DepKey{
		Table:    dep.Table,
		Platform: dep.Platform,
		Name:     dep.Name,
	}
}

// Resolved returns the resolution record for a dependency, or nil.
func (d *Document) Resolved(dep *manifest.Dependency) *cargo.Resolved {
	if d.Resolution == nil {
		return nil
	}
	if r, ok := d.Resolution.Get(LookupKey(dep)); ok {
		return r
	}
	return nil
}

// cancelTasks cancels any in-flight background work for the document.
func (d *Document) cancelTasks() {
	if d.resolveCancel != nil {
		d.resolveCancel()
		d.resolveCancel = nil
	}
	if d.auditCancel != nil {
		d.auditCancel()
		d.auditCancel = nil
	}
}
