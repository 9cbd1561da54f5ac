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
	"regexp"
	"strconv"
	"strings"
)

// CargoErrorKind categorizes hard failures from the resolution subprocess.
type CargoErrorKind int

const (
	ErrIo CargoErrorKind = iota
	ErrNotFound
	ErrManifestInvalid
	ErrResolutionFailed
	ErrLockfileConflict
	ErrTimeout
)

func (k CargoErrorKind) String() string {
	switch k {
	case ErrNotFound:
		return "cargo not found"
	case ErrManifestInvalid:
		return "manifest invalid"
	case ErrResolutionFailed:
		return "resolution failed"
	case ErrLockfileConflict:
		return "lockfile conflict"
	case ErrTimeout:
		return "timeout"
	}
	return "io error"
}

// CargoError is a hard failure from invoking cargo. It always carries the
// raw stderr for diagnosis; manifest errors additionally carry the
// 1-based line/column cargo reported, when present.
type CargoError struct {
	Kind    CargoErrorKind
	Message string
	Stderr  string
	Line    int
	Column  int
}

func (e *CargoError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

var manifestSpanPattern = regexp.MustCompile(`line (\d+), column (\d+)`)

// classifyCargoFailure turns a failed cargo invocation into a typed error.
func classifyCargoFailure(stderr string, cause error) *CargoError {
	msg := firstErrorLine(stderr)
	if msg == "" && cause != nil {
		msg = cause.Error()
	}

	ce := &CargoError{Kind: ErrIo, Message: msg, Stderr: stderr}

	switch {
	case strings.Contains(stderr, "failed to parse manifest"),
		strings.Contains(stderr, "invalid table header"),
		strings.Contains(stderr, "could not parse input as TOML"):
		ce.Kind = ErrManifestInvalid
		if m := manifestSpanPattern.FindStringSubmatch(stderr); m != nil {
			ce.Line, _ = strconv.Atoi(m[1])
			ce.Column, _ = strconv.Atoi(m[2])
		}
	case strings.Contains(stderr, "failed to select a version"),
		strings.Contains(stderr, "no matching package"),
		strings.Contains(stderr, "failed to resolve"):
		ce.Kind = ErrResolutionFailed
	case strings.Contains(stderr, "lock file"):
		ce.Kind = ErrLockfileConflict
	}

	return ce
}

// firstErrorLine extracts cargo's leading "error:" line from stderr.
func firstErrorLine(stderr string) string {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "error:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return strings.TrimSpace(stderr)
}

// AuditError is a non-fatal failure from the audit tool. Missing is set
// when the tool is not installed at all.
type AuditError struct {
	Message string
	Stderr  string
	Missing bool
}

func (e *AuditError) Error() string {
	return "audit: " + e.Message
}
