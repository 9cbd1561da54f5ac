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
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func version(t *testing.T, s string) *semver.Version {
	t.Helper()
	v, err := semver.NewVersion(s)
	require.NoError(t, err)
	return v
}

func TestBareRequirementIsCaret(t *testing.T) {
	// cargo treats "1.17" as "^1.17"
	assert.True(t, RequirementMatches("1.17", version(t, "1.17.0")))
	assert.True(t, RequirementMatches("1.17", version(t, "1.44.0")))
	assert.False(t, RequirementMatches("1.17", version(t, "2.0.0")))

	assert.True(t, RequirementMatches("1.0.100", version(t, "1.0.210")))
	assert.False(t, RequirementMatches("1.0.100", version(t, "0.9.0")))
}

func TestExplicitOperators(t *testing.T) {
	assert.True(t, RequirementMatches("^0.3", version(t, "0.3.9")))
	assert.False(t, RequirementMatches("^0.3", version(t, "0.4.0")))

	assert.True(t, RequirementMatches("~1.2.3", version(t, "1.2.9")))
	assert.False(t, RequirementMatches("~1.2.3", version(t, "1.3.0")))

	assert.True(t, RequirementMatches(">=1.0, <2", version(t, "1.5.0")))
	assert.False(t, RequirementMatches(">=1.0, <2", version(t, "2.0.0")))

	assert.True(t, RequirementMatches("=1.2.3", version(t, "1.2.3")))
	assert.False(t, RequirementMatches("=1.2.3", version(t, "1.2.4")))
}

func TestWildcardRequirement(t *testing.T) {
	assert.True(t, RequirementMatches("*", version(t, "0.0.1")))
	assert.True(t, RequirementMatches("", version(t, "42.0.0")))
}

func TestInvalidRequirement(t *testing.T) {
	_, err := ParseRequirement("not a requirement")
	assert.Error(t, err)
	assert.False(t, RequirementMatches("not a requirement", version(t, "1.0.0")))

	_, err = ParseRequirement("1.0,,2.0")
	assert.Error(t, err)
}
