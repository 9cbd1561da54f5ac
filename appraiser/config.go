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

// AuditLevel selects which audit findings become diagnostics.
type AuditLevel string

const (
	// AuditLevelWarning surfaces every audit finding.
	AuditLevelWarning AuditLevel = "warning"
	// AuditLevelVulnerability surfaces only real vulnerabilities.
	AuditLevelVulnerability AuditLevel = "vulnerability"
)

// Options is the immutable configuration snapshot assembled from
// initializationOptions and workspace/didChangeConfiguration. It is
// swapped atomically; readers never observe a partial update.
type Options struct {
	// DecorationFormatter maps a status kind to a template string.
	DecorationFormatter map[string]string
	AuditDisabled       bool
	AuditLevel          AuditLevel
	ExtraEnv            map[string]string
}

// DefaultOptions returns the built-in configuration.
func DefaultOptions() *Options {
	return &Options{AuditLevel: AuditLevelWarning}
}

// OptionsFromInitialization decodes the recognized initialization option
// keys from the client-provided map. Unknown keys are ignored.
func OptionsFromInitialization(raw any) *Options {
	opts := DefaultOptions()
	m, ok := raw.(map[string]any)
	if !ok {
		return opts
	}

	if formatter, ok := m["decorationFormatter"].(map[string]any); ok {
		opts.DecorationFormatter = make(map[string]string, len(formatter))
		for k, v := range formatter {
			if s, ok := v.(string); ok {
				opts.DecorationFormatter[k] = s
			}
		}
	}

	if audit, ok := m["audit"].(map[string]any); ok {
		if disabled, ok := audit["disabled"].(bool); ok {
			opts.AuditDisabled = disabled
		}
		if level, ok := audit["level"].(string); ok {
			switch AuditLevel(level) {
			case AuditLevelWarning, AuditLevelVulnerability:
				opts.AuditLevel = AuditLevel(level)
			}
		}
	}

	if env, ok := m["extraEnv"].(map[string]any); ok {
		opts.ExtraEnv = make(map[string]string, len(env))
		for k, v := range env {
			if s, ok := v.(string); ok {
				opts.ExtraEnv[k] = s
			}
		}
	}

	return opts
}
