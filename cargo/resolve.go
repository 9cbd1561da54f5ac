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
package cargo

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/tidwall/gjson"

	"github.com/washanhanzi/cargo-appraiser/manifest"
)

// DepKey addresses one resolved dependency. Name is the effective crate
// name, not a rename alias, because cargo's output is name-keyed; the
// document layer joins aliases back during reconciliation.
type DepKey struct {
	Table    manifest.DepTable
	Platform string
	Name     string
}

// Package is one concrete installed crate.
type Package struct {
	Name    string
	Version *semver.Version
	// Source is cargo's source id string; empty for path/workspace-local
	// packages.
	Source string
}

// VersionInfo is one registry version of a crate.
type VersionInfo struct {
	Version *semver.Version
	Yanked  bool
	// Features maps a feature name to the features and optional deps it
	// activates, as declared in that version's summary.
	Features map[string][]string
}

// Resolved is the resolution record for one dependency entry.
type Resolved struct {
	Installed   *Package
	Requirement string // requirement string cargo saw for this entry
	// Available is sorted descending by semver; pre-releases order below
	// their release per semver 2.0.
	Available []VersionInfo
	// LatestMatched is the newest non-yanked, non-pre-release version
	// satisfying the requirement; Latest is the newest non-yanked,
	// non-pre-release version overall.
	LatestMatched *semver.Version
	Latest        *semver.Version
}

// AvailableList returns the registry versions; safe on a nil record.
func (r *Resolved) AvailableList() []VersionInfo {
	if r == nil {
		return nil
	}
	return r.Available
}

// IsInstalled reports whether cargo resolved a concrete package.
func (r *Resolved) IsInstalled() bool {
	return r != nil && r.Installed != nil
}

// IsLatest reports whether the installed version is the newest available.
func (r *Resolved) IsLatest() bool {
	return r.IsInstalled() && r.Latest != nil && r.Installed.Version.Equal(r.Latest)
}

// HasCompatibleUpgrade reports a newer version satisfying the requirement.
func (r *Resolved) HasCompatibleUpgrade() bool {
	return r.IsInstalled() && r.LatestMatched != nil && r.LatestMatched.GreaterThan(r.Installed.Version)
}

// HasIncompatibleLatest reports a newer version outside the requirement.
func (r *Resolved) HasIncompatibleLatest() bool {
	return r.IsInstalled() && r.Latest != nil &&
		r.Latest.GreaterThan(r.Installed.Version) &&
		(r.LatestMatched == nil || !r.Latest.Equal(r.LatestMatched))
}

// InstalledYanked reports whether the installed version is yanked in the
// registry index.
func (r *Resolved) InstalledYanked() bool {
	if !r.IsInstalled() {
		return false
	}
	for _, v := range r.Available {
		if v.Version.Equal(r.Installed.Version) {
			return v.Yanked
		}
	}
	return false
}

// InstalledFeatures returns the feature summary of the installed version.
func (r *Resolved) InstalledFeatures() map[string][]string {
	if !r.IsInstalled() {
		return nil
	}
	for _, v := range r.Available {
		if v.Version.Equal(r.Installed.Version) {
			return v.Features
		}
	}
	return nil
}

// ResolutionIndex is the O(1) lookup from DepKey to resolution records for
// one workspace, built from one coarse-grained cargo metadata run.
type ResolutionIndex struct {
	entries map[DepKey]*Resolved
	byName  map[string][]*Package
	// WorkspaceRoot is the directory containing the workspace root
	// manifest.
	WorkspaceRoot string
	// Warnings carries non-fatal resolver notes from a partial result.
	Warnings []string
}

// Get returns the record for a key. Workspace-table entries are joined by
// bare crate name since [workspace.dependencies] declarations do not
// appear as member dependency edges.
func (idx *ResolutionIndex) Get(key DepKey) (*Resolved, bool) {
	if r, ok := idx.entries[key]; ok {
		return r, true
	}
	if key.Table == manifest.TableWorkspace {
		if pkg := idx.installedByName(key.Name); pkg != nil {
			r := &Resolved{Installed: pkg}
			idx.entries[key] = r
			return r, true
		}
	}
	return nil, false
}

// Iter calls fn for every entry in the index.
func (idx *ResolutionIndex) Iter(fn func(DepKey, *Resolved)) {
	for k, r := range idx.entries {
		fn(k, r)
	}
}

// Len returns the number of entries.
func (idx *ResolutionIndex) Len() int {
	return len(idx.entries)
}

// CrateNames returns the distinct effective crate names in the index.
func (idx *ResolutionIndex) CrateNames() []string {
	seen := make(map[string]struct{})
	var names []string
	for k := range idx.entries {
		if _, ok := seen[k.Name]; !ok {
			seen[k.Name] = struct{}{}
			names = append(names, k.Name)
		}
	}
	sort.Strings(names)
	return names
}

// installedByName picks the highest installed version of a crate.
func (idx *ResolutionIndex) installedByName(name string) *Package {
	pkgs := idx.byName[name]
	var best *Package
	for _, p := range pkgs {
		if best == nil || p.Version.GreaterThan(best.Version) {
			best = p
		}
	}
	return best
}

// Enrich attaches the registry version list to every entry for the crate
// and computes the latest / latest-matched summaries.
func (idx *ResolutionIndex) Enrich(name string, versions []VersionInfo) {
	for key, r := range idx.entries {
		if key.Name != name {
			continue
		}
		r.Available = versions
		r.Latest = latestOf(versions, nil)
		if r.Requirement != "" {
			if c, err := manifest.ParseRequirement(r.Requirement); err == nil {
				r.LatestMatched = latestOf(versions, c)
			}
		} else {
			r.LatestMatched = r.Latest
		}
	}
}

// latestOf returns the newest non-yanked, non-prerelease version passing
// the constraint; nil constraint means any.
func latestOf(versions []VersionInfo, c *semver.Constraints) *semver.Version {
	for _, v := range versions {
		if v.Yanked || v.Version.Prerelease() != "" {
			continue
		}
		if c == nil || c.Check(v.Version) {
			return v.Version
		}
	}
	return nil
}

// BuildResolutionIndex parses cargo metadata JSON into an index. Entries
// exist for every dependency declaration of every workspace member; the
// Installed field stays nil when the platform filter or feature selection
// excluded the crate from the graph.
func BuildResolutionIndex(metadata []byte) (*ResolutionIndex, error) {
	root := gjson.ParseBytes(metadata)
	if !root.Get("packages").Exists() {
		return nil, &CargoError{Kind: ErrResolutionFailed, Message: "cargo metadata output has no packages"}
	}

	idx := &ResolutionIndex{
		entries: make(map[DepKey]*Resolved),
		byName:  make(map[string][]*Package),
	}
	idx.WorkspaceRoot = root.Get("workspace_root").String()

	members := make(map[string]struct{})
	root.Get("workspace_members").ForEach(func(_, v gjson.Result) bool {
		members[v.String()] = struct{}{}
		return true
	})

	var memberPkgs []gjson.Result
	root.Get("packages").ForEach(func(_, pkg gjson.Result) bool {
		name := pkg.Get("name").String()
		verStr := pkg.Get("version").String()
		version, err := semver.NewVersion(verStr)
		if err != nil {
			idx.Warnings = append(idx.Warnings, fmt.Sprintf("package %s has unparseable version %q", name, verStr))
			return true
		}
		idx.byName[name] = append(idx.byName[name], &Package{
			Name:    name,
			Version: version,
			Source:  pkg.Get("source").String(),
		})
		if _, ok := members[pkg.Get("id").String()]; ok {
			memberPkgs = append(memberPkgs, pkg)
		}
		return true
	})

	for _, pkg := range memberPkgs {
		pkg.Get("dependencies").ForEach(func(_, dep gjson.Result) bool {
			name := dep.Get("name").String()
			key := DepKey{
				Table:    tableForKind(dep.Get("kind").String()),
				Platform: dep.Get("target").String(),
				Name:     name,
			}
			r, ok := idx.entries[key]
			if !ok {
				r = &Resolved{}
				idx.entries[key] = r
			}
			r.Requirement = dep.Get("req").String()
			if inst := idx.installedByName(name); inst != nil {
				r.Installed = inst
			}
			return true
		})
	}

	return idx, nil
}

func tableForKind(kind string) manifest.DepTable {
	switch kind {
	case "dev":
		return manifest.TableDev
	case "build":
		return manifest.TableBuild
	}
	return manifest.TableNormal
}
