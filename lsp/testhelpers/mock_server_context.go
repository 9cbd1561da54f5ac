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

// Package testhelpers provides a ServerContext backed by a real appraiser
// with stubbed subprocesses, for LSP method handler tests.
package testhelpers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/washanhanzi/cargo-appraiser/appraiser"
	"github.com/washanhanzi/cargo-appraiser/cargo"
	"github.com/washanhanzi/cargo-appraiser/internal/platform"
	"github.com/washanhanzi/cargo-appraiser/lsp/types"
	"github.com/washanhanzi/cargo-appraiser/render"
)

// StubRunner serves canned subprocess output.
type StubRunner struct {
	MetadataJSON string
	AuditJSON    string
}

func (r *StubRunner) Metadata(ctx context.Context, manifestPath string) ([]byte, error) {
	return []byte(r.MetadataJSON), nil
}

func (r *StubRunner) Audit(ctx context.Context, lockfilePath string) ([]byte, error) {
	if r.AuditJSON == "" {
		return []byte(`{"vulnerabilities":{"count":0,"list":[]},"warnings":{}}`), nil
	}
	return []byte(r.AuditJSON), nil
}

// StubRegistry serves canned version lists.
type StubRegistry struct {
	VersionLists map[string][]cargo.VersionInfo
}

func (s *StubRegistry) Versions(ctx context.Context, name string) ([]cargo.VersionInfo, error) {
	return s.VersionLists[name], nil
}

// Versions builds a VersionInfo list from version strings.
func Versions(t *testing.T, specs ...string) []cargo.VersionInfo {
	t.Helper()
	out := make([]cargo.VersionInfo, 0, len(specs))
	for _, s := range specs {
		v, err := semver.NewVersion(s)
		require.NoError(t, err)
		out = append(out, cargo.VersionInfo{Version: v})
	}
	return out
}

type nullClient struct{}

func (nullClient) PublishDiagnostics(uri protocol.DocumentUri, diagnostics []protocol.Diagnostic) {}

type nullConn struct{}

func (nullConn) Notify(method string, params any) {}

// Context implements types.ServerContext over a live appraiser loop.
type Context struct {
	App      *appraiser.Appraiser
	Inlay    *render.InlayHintRenderer
	Kind     types.RendererKind
	Files    map[protocol.DocumentUri]string // readFile responses
	filesMu  sync.RWMutex
	readFile bool
}

// NewContext starts an appraiser with the stubbed subprocesses and returns
// a ServerContext over it. The loop stops with the test.
func NewContext(t *testing.T, runner cargo.Runner, registry appraiser.VersionSource) *Context {
	t.Helper()

	inlay := render.NewInlayHintRenderer(nullConn{})
	app := appraiser.New(runner, registry, inlay, nullClient{}, platform.NewMockTimeProvider(time.Now()))

	ctx, cancel := context.WithCancel(context.Background())
	go app.Run(ctx)
	t.Cleanup(cancel)

	return &Context{
		App:   app,
		Inlay: inlay,
		Kind:  types.RendererInlayHint,
		Files: make(map[protocol.DocumentUri]string),
	}
}

// EnableReadFile makes ReadFile serve from Files.
func (c *Context) EnableReadFile() {
	c.readFile = true
}

// Open feeds a manifest into the appraiser and waits for resolution.
func (c *Context) Open(t *testing.T, uri protocol.DocumentUri, text string) {
	t.Helper()
	c.App.OpenOrChange(uri, text, 1)
	require.Eventually(t, func() bool {
		var resolved bool
		c.App.Query(uri, func(doc *appraiser.Document) {
			resolved = doc != nil && doc.State == appraiser.StateResolved
		})
		return resolved
	}, 2*time.Second, 5*time.Millisecond, "document never resolved")
}

func (c *Context) Appraiser() *appraiser.Appraiser {
	return c.App
}

func (c *Context) Renderer() types.RendererKind {
	return c.Kind
}

func (c *Context) ReadFile(uri protocol.DocumentUri) (string, bool) {
	if !c.readFile {
		return "", false
	}
	c.filesMu.RLock()
	defer c.filesMu.RUnlock()
	content, ok := c.Files[uri]
	return content, ok
}

func (c *Context) InlayHints(uri protocol.DocumentUri) []render.Annotation {
	return c.Inlay.Hints(uri)
}
