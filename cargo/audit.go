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
	"github.com/tidwall/gjson"
)

// IssueKind classifies an audit finding.
type IssueKind int

const (
	IssueVulnerability IssueKind = iota
	IssueUnmaintained
	IssueUnsound
	IssueYanked
)

func (k IssueKind) String() string {
	switch k {
	case IssueVulnerability:
		return "vulnerability"
	case IssueUnmaintained:
		return "unmaintained"
	case IssueUnsound:
		return "unsound"
	case IssueYanked:
		return "yanked"
	}
	return "unknown"
}

// Issue is one advisory applying to a (crate, version) pair.
type Issue struct {
	ID       string
	Kind     IssueKind
	Title    string
	Severity string
	URL      string
	// Patched lists the requirement strings of fixed versions, when the
	// advisory declares them.
	Patched []string
}

type auditKey struct {
	name    string
	version string
}

// AuditIndex is the O(1) lookup from (crate, version) to advisory issues
// for one audited lockfile.
type AuditIndex struct {
	issues map[auditKey][]Issue
	byName map[string][]Issue
}

// Get returns the issues for a crate at an exact version.
func (a *AuditIndex) Get(name, version string) []Issue {
	if a == nil {
		return nil
	}
	return a.issues[auditKey{name: name, version: version}]
}

// GetByName returns the union of issues across all versions of a crate.
func (a *AuditIndex) GetByName(name string) []Issue {
	if a == nil {
		return nil
	}
	return a.byName[name]
}

// HasIssues reports whether the index carries any issue at all.
func (a *AuditIndex) HasIssues() bool {
	return a != nil && len(a.issues) > 0
}

// Len returns the number of (crate, version) pairs with issues.
func (a *AuditIndex) Len() int {
	if a == nil {
		return 0
	}
	return len(a.issues)
}

// BuildAuditIndex parses cargo-audit JSON output into an index. The report
// has a vulnerabilities list plus keyed warning lists (unmaintained,
// unsound, yanked).
func BuildAuditIndex(report []byte) *AuditIndex {
	idx := &AuditIndex{
		issues: make(map[auditKey][]Issue),
		byName: make(map[string][]Issue),
	}

	root := gjson.ParseBytes(report)

	add := func(name, version string, issue Issue) {
		key := auditKey{name: name, version: version}
		idx.issues[key] = append(idx.issues[key], issue)
		idx.byName[name] = append(idx.byName[name], issue)
	}

	fromAdvisory := func(entry gjson.Result, kind IssueKind) (string, string, Issue) {
		advisory := entry.Get("advisory")
		issue := Issue{
			ID:       advisory.Get("id").String(),
			Kind:     kind,
			Title:    advisory.Get("title").String(),
			URL:      advisory.Get("url").String(),
			Severity: entry.Get("advisory.cvss").String(),
		}
		entry.Get("versions.patched").ForEach(func(_, p gjson.Result) bool {
			issue.Patched = append(issue.Patched, p.String())
			return true
		})
		pkg := entry.Get("package")
		return pkg.Get("name").String(), pkg.Get("version").String(), issue
	}

	root.Get("vulnerabilities.list").ForEach(func(_, entry gjson.Result) bool {
		name, version, issue := fromAdvisory(entry, IssueVulnerability)
		add(name, version, issue)
		return true
	})

	warningKinds := map[string]IssueKind{
		"unmaintained": IssueUnmaintained,
		"unsound":      IssueUnsound,
		"yanked":       IssueYanked,
	}
	root.Get("warnings").ForEach(func(kindName, list gjson.Result) bool {
		kind, ok := warningKinds[kindName.String()]
		if !ok {
			return true
		}
		list.ForEach(func(_, entry gjson.Result) bool {
			if entry.Get("advisory").Exists() {
				name, version, issue := fromAdvisory(entry, kind)
				add(name, version, issue)
				return true
			}
			// yanked warnings carry only the package
			pkg := entry.Get("package")
			add(pkg.Get("name").String(), pkg.Get("version").String(), Issue{
				Kind:  kind,
				Title: kindName.String() + " " + pkg.Get("name").String(),
			})
			return true
		})
		return true
	})

	return idx
}
