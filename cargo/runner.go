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
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// ResolveTimeout bounds one cargo metadata invocation.
	ResolveTimeout = 60 * time.Second
	// AuditTimeout bounds one cargo audit invocation.
	AuditTimeout = 30 * time.Second
)

// Runner abstracts the cargo and cargo-audit subprocesses. Both return raw
// machine-readable output; parsing happens in the index builders. Tests
// substitute a stub.
type Runner interface {
	// Metadata runs cargo metadata for the manifest and returns its JSON
	// output. Failures are *CargoError.
	Metadata(ctx context.Context, manifestPath string) ([]byte, error)

	// Audit runs cargo audit against the lockfile and returns its JSON
	// output. Failures are *AuditError.
	Audit(ctx context.Context, lockfilePath string) ([]byte, error)
}

// ExecRunner invokes the real binaries. The host target triple is queried
// from rustc once and used to platform-filter the resolve, so dependencies
// gated to other targets come back unresolved.
type ExecRunner struct {
	CargoPath string
	AuditPath string
	ExtraEnv  []string

	hostOnce sync.Once
	host     string
}

// NewExecRunner creates a runner using binaries found on PATH.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{CargoPath: "cargo", AuditPath: "cargo"}
}

func (r *ExecRunner) hostTriple(ctx context.Context) string {
	r.hostOnce.Do(func() {
		out, err := exec.CommandContext(ctx, "rustc", "-vV").Output()
		if err != nil {
			return
		}
		for _, line := range strings.Split(string(out), "\n") {
			if rest, ok := strings.CutPrefix(line, "host: "); ok {
				r.host = strings.TrimSpace(rest)
				return
			}
		}
	})
	return r.host
}

func (r *ExecRunner) Metadata(ctx context.Context, manifestPath string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, ResolveTimeout)
	defer cancel()

	args := []string{"metadata", "--format-version", "1", "--manifest-path", manifestPath}
	if host := r.hostTriple(ctx); host != "" {
		args = append(args, "--filter-platform", host)
	}

	cmd := exec.CommandContext(ctx, r.CargoPath, args...)
	cmd.Env = append(cmd.Environ(), r.ExtraEnv...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, &CargoError{Kind: ErrTimeout, Message: "cargo metadata timed out", Stderr: stderr.String()}
	case errors.Is(err, exec.ErrNotFound):
		return nil, &CargoError{Kind: ErrNotFound, Message: "cargo is not on PATH", Stderr: stderr.String()}
	}
	return nil, classifyCargoFailure(stderr.String(), err)
}

func (r *ExecRunner) Audit(ctx context.Context, lockfilePath string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, AuditTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.AuditPath, "audit", "--json", "--file", lockfilePath)
	cmd.Env = append(cmd.Environ(), r.ExtraEnv...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	// cargo-audit exits non-zero when it finds vulnerabilities; output that
	// parses as JSON is a successful run regardless of exit code.
	if gjson.ValidBytes(stdout.Bytes()) && stdout.Len() > 0 {
		return stdout.Bytes(), nil
	}
	if err == nil {
		return stdout.Bytes(), nil
	}

	ae := &AuditError{Message: firstErrorLine(stderr.String()), Stderr: stderr.String()}
	if errors.Is(err, exec.ErrNotFound) || strings.Contains(stderr.String(), "no such command") {
		ae.Missing = true
		ae.Message = "cargo-audit is not installed"
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		ae.Message = "cargo audit timed out"
	}
	return nil, ae
}
