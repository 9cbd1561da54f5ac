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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleAuditReport = `{
  "vulnerabilities": {
    "count": 1,
    "list": [
      {
        "advisory": {
          "id": "RUSTSEC-2020-0071",
          "title": "Potential segfault in the time crate",
          "url": "https://rustsec.org/advisories/RUSTSEC-2020-0071",
          "cvss": "CVSS:3.1/AV:L/AC:H"
        },
        "versions": {"patched": [">=0.2.23"]},
        "package": {"name": "time", "version": "0.1.45"}
      }
    ]
  },
  "warnings": {
    "unmaintained": [
      {
        "advisory": {
          "id": "RUSTSEC-2021-0139",
          "title": "ansi_term is Unmaintained",
          "url": "https://rustsec.org/advisories/RUSTSEC-2021-0139"
        },
        "package": {"name": "ansi_term", "version": "0.12.1"}
      }
    ],
    "yanked": [
      {
        "package": {"name": "badcrate", "version": "0.1.0"}
      }
    ]
  }
}`

func TestBuildAuditIndex(t *testing.T) {
	idx := BuildAuditIndex([]byte(sampleAuditReport))
	require.True(t, idx.HasIssues())
	assert.Equal(t, 3, idx.Len())

	issues := idx.Get("time", "0.1.45")
	require.Len(t, issues, 1)
	assert.Equal(t, "RUSTSEC-2020-0071", issues[0].ID)
	assert.Equal(t, IssueVulnerability, issues[0].Kind)
	assert.Equal(t, []string{">=0.2.23"}, issues[0].Patched)

	// issues key on the exact (crate, version) pair
	assert.Empty(t, idx.Get("time", "0.2.0"))
}

func TestAuditWarningKinds(t *testing.T) {
	idx := BuildAuditIndex([]byte(sampleAuditReport))

	unmaintained := idx.Get("ansi_term", "0.12.1")
	require.Len(t, unmaintained, 1)
	assert.Equal(t, IssueUnmaintained, unmaintained[0].Kind)

	yanked := idx.Get("badcrate", "0.1.0")
	require.Len(t, yanked, 1)
	assert.Equal(t, IssueYanked, yanked[0].Kind)
}

func TestAuditGetByName(t *testing.T) {
	idx := BuildAuditIndex([]byte(sampleAuditReport))
	assert.Len(t, idx.GetByName("time"), 1)
	assert.Empty(t, idx.GetByName("serde"))
}

func TestAuditNilIndexIsEmpty(t *testing.T) {
	var idx *AuditIndex
	assert.False(t, idx.HasIssues())
	assert.Empty(t, idx.Get("any", "1.0.0"))
	assert.Empty(t, idx.GetByName("any"))
	assert.Equal(t, 0, idx.Len())
}

func TestAuditEmptyReport(t *testing.T) {
	idx := BuildAuditIndex([]byte(`{"vulnerabilities":{"count":0,"list":[]},"warnings":{}}`))
	assert.False(t, idx.HasIssues())
}
