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
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ParseRequirement converts a Cargo semver requirement string into a
// constraint set. Cargo's default operator is caret: a bare "1.0.100"
// means "^1.0.100", and comma-separated parts are conjunctive.
func ParseRequirement(req string) (*semver.Constraints, error) {
	req = strings.TrimSpace(req)
	if req == "" || req == "*" {
		return semver.NewConstraint(">=0.0.0-0")
	}

	parts := strings.Split(req, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty clause in requirement %q", req)
		}
		if part[0] >= '0' && part[0] <= '9' {
			part = "^" + part
		}
		parts[i] = part
	}

	c, err := semver.NewConstraint(strings.Join(parts, ", "))
	if err != nil {
		return nil, fmt.Errorf("invalid requirement %q: %w", req, err)
	}
	return c, nil
}

// RequirementMatches reports whether the version satisfies the Cargo
// requirement string. An unparseable requirement matches nothing.
func RequirementMatches(req string, v *semver.Version) bool {
	c, err := ParseRequirement(req)
	if err != nil {
		return false
	}
	return c.Check(v)
}
