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
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/washanhanzi/cargo-appraiser/cargo"
	"github.com/washanhanzi/cargo-appraiser/internal/platform"
	"github.com/washanhanzi/cargo-appraiser/render"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

// ---- stubs ----

type metadataCall struct {
	ctx context.Context
}

type stubRunner struct {
	mu            sync.Mutex
	metadataCalls []metadataCall
	// metadataFn returns output per zero-based call index
	metadataFn func(call int, ctx context.Context) ([]byte, error)
	auditOut   []byte
	auditErr   error
}

func (r *stubRunner) Metadata(ctx context.Context, manifestPath string) ([]byte, error) {
	r.mu.Lock()
	call := len(r.metadataCalls)
	r.metadataCalls = append(r.metadataCalls, metadataCall{ctx: ctx})
	fn := r.metadataFn
	r.mu.Unlock()
	return fn(call, ctx)
}

func (r *stubRunner) Audit(ctx context.Context, lockfilePath string) ([]byte, error) {
	if r.auditErr != nil {
		return nil, r.auditErr
	}
	if r.auditOut == nil {
		return []byte(`{"vulnerabilities":{"count":0,"list":[]},"warnings":{}}`), nil
	}
	return r.auditOut, nil
}

func (r *stubRunner) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.metadataCalls)
}

func (r *stubRunner) callCtx(i int) context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metadataCalls[i].ctx
}

type stubRegistry struct {
	mu       sync.Mutex
	versions map[string][]cargo.VersionInfo
}

func (s *stubRegistry) Versions(ctx context.Context, name string) ([]cargo.VersionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[name], nil
}

type captureRenderer struct {
	mu       sync.Mutex
	rendered map[protocol.DocumentUri][]render.Annotation
	cleared  map[protocol.DocumentUri]int
}

func newCaptureRenderer() *captureRenderer {
	return &captureRenderer{
		rendered: make(map[protocol.DocumentUri][]render.Annotation),
		cleared:  make(map[protocol.DocumentUri]int),
	}
}

func (r *captureRenderer) Render(uri protocol.DocumentUri, annotations []render.Annotation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rendered[uri] = annotations
}

func (r *captureRenderer) ClearAll(uri protocol.DocumentUri) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rendered, uri)
	r.cleared[uri]++
}

func (r *captureRenderer) annotations(uri protocol.DocumentUri) []render.Annotation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]render.Annotation(nil), r.rendered[uri]...)
}

type captureClient struct {
	mu    sync.Mutex
	diags map[protocol.DocumentUri][]protocol.Diagnostic
}

func newCaptureClient() *captureClient {
	return &captureClient{diags: make(map[protocol.DocumentUri][]protocol.Diagnostic)}
}

func (c *captureClient) PublishDiagnostics(uri protocol.DocumentUri, diagnostics []protocol.Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diags[uri] = diagnostics
}

func (c *captureClient) diagnostics(uri protocol.DocumentUri) []protocol.Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Diagnostic(nil), c.diags[uri]...)
}

// ---- fixtures ----

const uriS1 = protocol.DocumentUri("file:///ws/demo/Cargo.toml")

const manifestS1 = `[package]
name = "demo"

[dependencies]
serde = "1.0.100"
`

func memberMetadata(installed map[string]string, deps ...string) string {
	var pkgs []string
	depList := "[" + strings.Join(deps, ",") + "]"
	pkgs = append(pkgs, fmt.Sprintf(`{
		"id": "demo 0.1.0 (path+file:///ws/demo)",
		"name": "demo", "version": "0.1.0", "source": null,
		"dependencies": %s
	}`, depList))
	for name, version := range installed {
		pkgs = append(pkgs, fmt.Sprintf(`{
			"id": "%s %s (registry)",
			"name": "%s", "version": "%s",
			"source": "registry+https://github.com/rust-lang/crates.io-index",
			"dependencies": []
		}`, name, version, name, version))
	}
	return fmt.Sprintf(`{
		"packages": [%s],
		"workspace_members": ["demo 0.1.0 (path+file:///ws/demo)"],
		"workspace_root": "/ws"
	}`, strings.Join(pkgs, ","))
}

func depDecl(name, req string) string {
	return fmt.Sprintf(`{"name": %q, "req": %q, "kind": null, "target": null, "optional": false}`, name, req)
}

func regVersions(t *testing.T, specs ...string) []cargo.VersionInfo {
	t.Helper()
	out := make([]cargo.VersionInfo, 0, len(specs))
	for _, s := range specs {
		yanked := false
		if rest, ok := strings.CutPrefix(s, "yanked:"); ok {
			yanked = true
			s = rest
		}
		v, err := semver.NewVersion(s)
		require.NoError(t, err)
		out = append(out, cargo.VersionInfo{Version: v, Yanked: yanked})
	}
	return out
}

// ---- harness ----

type harness struct {
	a        *Appraiser
	runner   *stubRunner
	registry *stubRegistry
	renderer *captureRenderer
	client   *captureClient
	cancel   context.CancelFunc
}

func newHarness(t *testing.T, runner *stubRunner, registry *stubRegistry) *harness {
	t.Helper()
	renderer := newCaptureRenderer()
	client := newCaptureClient()
	a := New(runner, registry, renderer, client, platform.NewMockTimeProvider(time.Now()))

	ctx, cancel := context.WithCancel(context.Background())
	go a.Run(ctx)
	t.Cleanup(cancel)

	return &harness{a: a, runner: runner, registry: registry, renderer: renderer, client: client, cancel: cancel}
}

func (h *harness) state(t *testing.T, uri protocol.DocumentUri) DocState {
	t.Helper()
	var state DocState
	ok := h.a.Query(uri, func(doc *Document) {
		if doc != nil {
			state = doc.State
		}
	})
	require.True(t, ok)
	return state
}

func (h *harness) statuses(t *testing.T, uri protocol.DocumentUri) map[string]render.Status {
	t.Helper()
	statuses := make(map[string]render.Status)
	h.a.Query(uri, func(doc *Document) {
		if doc == nil {
			return
		}
		for i := range doc.Deps {
			dep := &doc.Deps[i]
			s, _ := h.a.Status(doc, dep)
			statuses[dep.TableKey()] = s
		}
	})
	return statuses
}

func (h *harness) waitResolved(t *testing.T, uri protocol.DocumentUri) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.state(t, uri) == StateResolved
	}, waitFor, tick, "document never reached Resolved")
}

// ---- tests ----

func s1Harness(t *testing.T) *harness {
	runner := &stubRunner{
		metadataFn: func(call int, ctx context.Context) ([]byte, error) {
			return []byte(memberMetadata(map[string]string{"serde": "1.0.100"}, depDecl("serde", "^1.0.100"))), nil
		},
	}
	registry := &stubRegistry{versions: map[string][]cargo.VersionInfo{
		"serde": regVersions(t, "1.0.210", "1.0.200", "1.0.100"),
	}}
	return newHarness(t, runner, registry)
}

func TestOpenResolvesCompatibleUpgrade(t *testing.T) {
	h := s1Harness(t)

	h.a.OpenOrChange(uriS1, manifestS1, 1)
	h.waitResolved(t, uriS1)

	statuses := h.statuses(t, uriS1)
	assert.Equal(t, render.StatusCompatibleLatest, statuses["serde"])

	annotations := h.renderer.annotations(uriS1)
	require.Len(t, annotations, 1)
	assert.Equal(t, "🚀 1.0.100 -> 1.0.210", annotations[0].Text)
	assert.Equal(t, render.StatusCompatibleLatest, annotations[0].Status)
}

func TestMixedUpgradeable(t *testing.T) {
	runner := &stubRunner{
		metadataFn: func(call int, ctx context.Context) ([]byte, error) {
			return []byte(memberMetadata(map[string]string{"tokio": "1.17.0"}, depDecl("tokio", "^1.17"))), nil
		},
	}
	registry := &stubRegistry{versions: map[string][]cargo.VersionInfo{
		"tokio": regVersions(t, "2.0.0", "1.44.0", "1.17.0"),
	}}
	h := newHarness(t, runner, registry)

	h.a.OpenOrChange(uriS1, "[package]\nname = \"demo\"\n\n[dependencies]\ntokio = \"1.17\"\n", 1)
	h.waitResolved(t, uriS1)

	assert.Equal(t, render.StatusMixedUpgradeable, h.statuses(t, uriS1)["tokio"])
	annotations := h.renderer.annotations(uriS1)
	require.Len(t, annotations, 1)
	assert.Equal(t, "🚀🔒 1.17.0 -> 1.44.0,  2.0.0", annotations[0].Text)
}

func TestPlatformGatedMiss(t *testing.T) {
	// declared for cfg(windows); the platform-filtered graph has no winapi
	runner := &stubRunner{
		metadataFn: func(call int, ctx context.Context) ([]byte, error) {
			return []byte(memberMetadata(nil,
				`{"name": "winapi", "req": "^0.3", "kind": null, "target": "cfg(windows)", "optional": false}`)), nil
		},
	}
	h := newHarness(t, runner, &stubRegistry{})

	text := "[package]\nname = \"demo\"\n\n[target.'cfg(windows)'.dependencies]\nwinapi = \"0.3\"\n"
	h.a.OpenOrChange(uriS1, text, 1)
	h.waitResolved(t, uriS1)

	assert.Equal(t, render.StatusNotInstalled, h.statuses(t, uriS1)["winapi"])
}

func TestYankedCrateGetsDiagnostic(t *testing.T) {
	runner := &stubRunner{
		metadataFn: func(call int, ctx context.Context) ([]byte, error) {
			return []byte(memberMetadata(map[string]string{"badcrate": "0.1.0"}, depDecl("badcrate", "^0.1.0"))), nil
		},
		auditOut: []byte(`{
			"vulnerabilities": {"count": 0, "list": []},
			"warnings": {"yanked": [{"package": {"name": "badcrate", "version": "0.1.0"}}]}
		}`),
	}
	registry := &stubRegistry{versions: map[string][]cargo.VersionInfo{
		"badcrate": regVersions(t, "0.1.1", "0.1.0"),
	}}
	h := newHarness(t, runner, registry)

	h.a.OpenOrChange(uriS1, "[package]\nname = \"demo\"\n\n[dependencies]\nbadcrate = \"0.1.0\"\n", 1)
	h.waitResolved(t, uriS1)

	require.Eventually(t, func() bool {
		return h.statuses(t, uriS1)["badcrate"] == render.StatusYanked
	}, waitFor, tick, "yanked status never applied")

	require.Eventually(t, func() bool {
		for _, d := range h.client.diagnostics(uriS1) {
			if strings.Contains(d.Message, "yanked") &&
				d.Severity != nil && *d.Severity == protocol.DiagnosticSeverityWarning {
				return true
			}
		}
		return false
	}, waitFor, tick, "no yanked diagnostic published")
}

// Editing whitespace or comments never triggers a new resolution and never
// changes the status map.
func TestWhitespaceEditKeepsResolutionAuthoritative(t *testing.T) {
	h := s1Harness(t)

	h.a.OpenOrChange(uriS1, manifestS1, 1)
	h.waitResolved(t, uriS1)
	before := h.statuses(t, uriS1)
	require.Equal(t, 1, h.runner.calls())

	// pure comment edit: dependency shape unchanged
	h.a.OpenOrChange(uriS1, "# a comment\n"+manifestS1, 2)

	require.Eventually(t, func() bool {
		var version int32
		h.a.Query(uriS1, func(doc *Document) {
			if doc != nil {
				version = doc.Version
			}
		})
		return version == 2
	}, waitFor, tick)

	assert.Equal(t, StateResolved, h.state(t, uriS1))
	assert.Equal(t, before, h.statuses(t, uriS1))
	assert.Equal(t, 1, h.runner.calls(), "whitespace edit must not schedule a resolve")

	// decorations moved with the text: range shifted one line down
	annotations := h.renderer.annotations(uriS1)
	require.Len(t, annotations, 1)
	assert.Equal(t, uint32(5), annotations[0].Range.Start.Line)
}

// A requirement edit marks the document stale, debounce schedules a new
// resolution, and the fresh result applies.
func TestDependencyEditGoesStaleThenResolves(t *testing.T) {
	runner := &stubRunner{}
	runner.metadataFn = func(call int, ctx context.Context) ([]byte, error) {
		if call == 0 {
			return []byte(memberMetadata(map[string]string{"serde": "1.0.100"}, depDecl("serde", "^1.0.100"))), nil
		}
		return []byte(memberMetadata(map[string]string{"serde": "1.0.210"}, depDecl("serde", "^1.0.200"))), nil
	}
	registry := &stubRegistry{versions: map[string][]cargo.VersionInfo{
		"serde": regVersions(t, "1.0.210", "1.0.200", "1.0.100"),
	}}
	h := newHarness(t, runner, registry)

	h.a.OpenOrChange(uriS1, manifestS1, 1)
	h.waitResolved(t, uriS1)

	h.a.OpenOrChange(uriS1, strings.Replace(manifestS1, "1.0.100", "1.0.200", 1), 2)

	require.Eventually(t, func() bool {
		return h.runner.calls() == 2 && h.state(t, uriS1) == StateResolved
	}, waitFor, tick, "edit never triggered a re-resolve")

	assert.Equal(t, render.StatusLatest, h.statuses(t, uriS1)["serde"])
}

// S5: a superseded resolution completing last is discarded.
func TestSupersession(t *testing.T) {
	gate := make(chan struct{})
	runner := &stubRunner{}
	runner.metadataFn = func(call int, ctx context.Context) ([]byte, error) {
		if call == 0 {
			<-gate // stall the v1 run until after v2 applied
			return []byte(memberMetadata(map[string]string{"serde": "1.0.100"}, depDecl("serde", "^1.0.100"))), nil
		}
		return []byte(memberMetadata(map[string]string{"serde": "2.0.0"}, depDecl("serde", "^2.0"))), nil
	}
	registry := &stubRegistry{versions: map[string][]cargo.VersionInfo{
		"serde": regVersions(t, "2.0.0", "1.0.210", "1.0.100"),
	}}
	h := newHarness(t, runner, registry)

	h.a.OpenOrChange(uriS1, manifestS1, 1)
	require.Eventually(t, func() bool { return h.runner.calls() == 1 }, waitFor, tick)

	h.a.OpenOrChange(uriS1, strings.Replace(manifestS1, "1.0.100", "2.0", 1), 2)
	h.a.Save(uriS1)

	require.Eventually(t, func() bool { return h.runner.calls() >= 2 }, waitFor, tick)
	h.waitResolved(t, uriS1)

	// let the stalled v1 completion arrive; it must be discarded
	close(gate)
	assert.Never(t, func() bool {
		var installed string
		h.a.Query(uriS1, func(doc *Document) {
			if doc == nil {
				return
			}
			for i := range doc.Deps {
				if res := doc.Resolved(&doc.Deps[i]); res.IsInstalled() {
					installed = res.Installed.Version.String()
				}
			}
		})
		return installed != "2.0.0"
	}, 200*time.Millisecond, tick, "superseded v1 resolution overwrote v2 state")
}

// Close cancels in-flight work and leaves nothing referring to the URI.
func TestCloseCancelsInFlightTasks(t *testing.T) {
	started := make(chan struct{})
	runner := &stubRunner{}
	runner.metadataFn = func(call int, ctx context.Context) ([]byte, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	h := newHarness(t, runner, &stubRegistry{})

	h.a.OpenOrChange(uriS1, manifestS1, 1)
	<-started

	h.a.Close(uriS1)

	require.Eventually(t, func() bool {
		return h.runner.callCtx(0).Err() != nil
	}, waitFor, tick, "close never canceled the in-flight resolve")

	require.Eventually(t, func() bool {
		var open bool
		h.a.Query(uriS1, func(doc *Document) { open = doc != nil })
		return !open
	}, waitFor, tick)

	assert.Empty(t, h.renderer.annotations(uriS1))
	assert.Empty(t, h.client.diagnostics(uriS1))
}

func TestSaveSchedulesResolve(t *testing.T) {
	h := s1Harness(t)

	h.a.OpenOrChange(uriS1, manifestS1, 1)
	h.waitResolved(t, uriS1)
	require.Equal(t, 1, h.runner.calls())

	h.a.Save(uriS1)
	require.Eventually(t, func() bool {
		return h.runner.calls() == 2 && h.state(t, uriS1) == StateResolved
	}, waitFor, tick)
}

func TestLockfileChangeTriggersResolve(t *testing.T) {
	h := s1Harness(t)

	h.a.OpenOrChange(uriS1, manifestS1, 1)
	h.waitResolved(t, uriS1)
	require.Equal(t, 1, h.runner.calls())

	h.a.ExternalFileChanged("/ws/Cargo.lock")
	require.Eventually(t, func() bool {
		return h.runner.calls() == 2
	}, waitFor, tick, "lockfile change never scheduled a resolve")

	// unrelated files do nothing
	h.waitResolved(t, uriS1)
	h.a.ExternalFileChanged("/ws/src/main.rs")
	assert.Never(t, func() bool { return h.runner.calls() > 2 }, 100*time.Millisecond, tick)
}

func TestResolveFailurePublishesDiagnostic(t *testing.T) {
	runner := &stubRunner{
		metadataFn: func(call int, ctx context.Context) ([]byte, error) {
			return nil, &cargo.CargoError{
				Kind:    cargo.ErrManifestInvalid,
				Message: "failed to parse manifest",
				Line:    5,
				Column:  1,
			}
		},
	}
	h := newHarness(t, runner, &stubRegistry{})

	h.a.OpenOrChange(uriS1, manifestS1, 1)

	require.Eventually(t, func() bool {
		return h.state(t, uriS1) == StateResolveFailed
	}, waitFor, tick)

	diags := h.client.diagnostics(uriS1)
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0].Message, "failed to parse manifest")
	assert.Equal(t, uint32(4), diags[0].Range.Start.Line)

	// the next save retries
	h.a.Save(uriS1)
	require.Eventually(t, func() bool { return h.runner.calls() == 2 }, waitFor, tick)
}

// Reconciliation is deterministic: identical text and resolution produce
// an identical status map.
func TestReconciliationDeterministic(t *testing.T) {
	first := s1Harness(t)
	second := s1Harness(t)

	first.a.OpenOrChange(uriS1, manifestS1, 1)
	second.a.OpenOrChange(uriS1, manifestS1, 1)
	first.waitResolved(t, uriS1)
	second.waitResolved(t, uriS1)

	assert.Equal(t, first.statuses(t, uriS1), second.statuses(t, uriS1))
}

func TestConfigChangedReformats(t *testing.T) {
	h := s1Harness(t)

	h.a.OpenOrChange(uriS1, manifestS1, 1)
	h.waitResolved(t, uriS1)

	opts := DefaultOptions()
	opts.DecorationFormatter = map[string]string{
		"compatibleLatest": "{installed} => {latest}",
	}
	h.a.ConfigChanged(opts)

	require.Eventually(t, func() bool {
		annotations := h.renderer.annotations(uriS1)
		return len(annotations) == 1 && annotations[0].Text == "1.0.100 => 1.0.210"
	}, waitFor, tick)
}

func TestAuditDisabledSkipsAudit(t *testing.T) {
	runner := &stubRunner{
		metadataFn: func(call int, ctx context.Context) ([]byte, error) {
			return []byte(memberMetadata(map[string]string{"serde": "1.0.100"}, depDecl("serde", "^1.0.100"))), nil
		},
		auditErr: &cargo.AuditError{Message: "must not be called"},
	}
	h := newHarness(t, runner, &stubRegistry{})

	opts := DefaultOptions()
	opts.AuditDisabled = true
	h.a.ConfigChanged(opts)

	h.a.OpenOrChange(uriS1, manifestS1, 1)
	h.waitResolved(t, uriS1)

	var hasAudit bool
	h.a.Query(uriS1, func(doc *Document) { hasAudit = doc != nil && doc.Audit != nil })
	assert.False(t, hasAudit)
}

func TestOutOfOrderVersionDiscarded(t *testing.T) {
	h := s1Harness(t)

	h.a.OpenOrChange(uriS1, manifestS1, 3)
	h.waitResolved(t, uriS1)

	// lower version arrives late and is ignored
	h.a.OpenOrChange(uriS1, "[dependencies]\nold = \"0.1\"\n", 2)

	assert.Never(t, func() bool {
		var version int32
		h.a.Query(uriS1, func(doc *Document) {
			if doc != nil {
				version = doc.Version
			}
		})
		return version != 3
	}, 200*time.Millisecond, tick)
}
