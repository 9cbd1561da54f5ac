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
package lsp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/pterm/pterm"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/washanhanzi/cargo-appraiser/appraiser"
	"github.com/washanhanzi/cargo-appraiser/cargo"
	"github.com/washanhanzi/cargo-appraiser/internal/platform"
	"github.com/washanhanzi/cargo-appraiser/lsp/helpers"
	serverMethods "github.com/washanhanzi/cargo-appraiser/lsp/methods/server"
	"github.com/washanhanzi/cargo-appraiser/lsp/methods/textDocument"
	"github.com/washanhanzi/cargo-appraiser/lsp/methods/textDocument/codeAction"
	"github.com/washanhanzi/cargo-appraiser/lsp/methods/textDocument/definition"
	"github.com/washanhanzi/cargo-appraiser/lsp/methods/textDocument/hover"
	"github.com/washanhanzi/cargo-appraiser/lsp/methods/workspace"
	"github.com/washanhanzi/cargo-appraiser/lsp/types"
	"github.com/washanhanzi/cargo-appraiser/render"
)

// Server is the cargo-appraiser LSP server: the glsp transport wired to
// the appraiser state engine and the selected renderer.
type Server struct {
	appraiser    *appraiser.Appraiser
	runner       *cargo.ExecRunner
	rendererKind types.RendererKind
	inlay        *render.InlayHintRenderer
	conn         *clientConn
	glspServer   *server.Server
	watcher      platform.FileWatcher
}

// NewServer creates a server with the renderer selected at startup.
// clientCapabilities lists custom capabilities the editor extension
// advertised on the command line (e.g. "readFile").
func NewServer(kind types.RendererKind, clientCapabilities []string) (*Server, error) {
	// stdout belongs to the LSP stream
	pterm.SetDefaultOutput(os.Stderr)

	conn := &clientConn{
		supportsReadFile: slices.Contains(clientCapabilities, "readFile"),
	}

	s := &Server{
		runner:       cargo.NewExecRunner(),
		rendererKind: kind,
		conn:         conn,
	}

	var renderer render.Renderer
	switch kind {
	case types.RendererVSCode:
		renderer = render.NewDecorationRenderer(conn)
	case types.RendererInlayHint:
		s.inlay = render.NewInlayHintRenderer(conn)
		renderer = s.inlay
	default:
		return nil, fmt.Errorf("unsupported renderer kind: %s", kind)
	}

	s.appraiser = appraiser.New(
		s.runner,
		cargo.NewRegistryClient(),
		renderer,
		conn,
		platform.NewRealTimeProvider(),
	)

	handler := protocol.Handler{
		Initialize:                      s.initialize,
		Initialized:                     s.initialized,
		Shutdown:                        s.shutdown,
		SetTrace:                        s.setTrace,
		TextDocumentDidOpen:             s.didOpen,
		TextDocumentDidChange:           s.didChange,
		TextDocumentDidSave:             s.didSave,
		TextDocumentDidClose:            s.didClose,
		TextDocumentHover:               s.hover,
		TextDocumentCodeAction:          s.codeAction,
		TextDocumentDefinition:          s.definition,
		WorkspaceDidChangeConfiguration: s.didChangeConfiguration,
		WorkspaceDidChangeWatchedFiles:  s.didChangeWatchedFiles,
	}

	s.glspServer = server.NewServer(&CustomHandler{Handler: handler, server: s}, "cargo-appraiser", false)

	return s, nil
}

// RunStdio serves LSP over stdio until the client disconnects.
func (s *Server) RunStdio() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.appraiser.Run(ctx)

	err := s.glspServer.RunStdio()
	s.Close()
	return err
}

// Close releases the lockfile watcher.
func (s *Server) Close() {
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			helpers.SafeDebugLog("error closing lockfile watcher: %v", err)
		}
		s.watcher = nil
	}
}

// Appraiser implements types.ServerContext.
func (s *Server) Appraiser() *appraiser.Appraiser {
	return s.appraiser
}

// Renderer implements types.ServerContext.
func (s *Server) Renderer() types.RendererKind {
	return s.rendererKind
}

// ReadFile implements types.ServerContext.
func (s *Server) ReadFile(uri protocol.DocumentUri) (string, bool) {
	return s.conn.ReadFile(uri)
}

// InlayHints implements types.ServerContext.
func (s *Server) InlayHints(uri protocol.DocumentUri) []render.Annotation {
	if s.inlay == nil {
		return nil
	}
	return s.inlay.Hints(uri)
}

// watchLockfiles starts an fsnotify fallback on the workspace root so the
// build tool rewriting Cargo.lock is noticed even when the client never
// honors the watched-files registration.
func (s *Server) watchLockfiles(root string) {
	if s.watcher != nil || root == "" {
		return
	}
	watcher, err := platform.NewFSNotifyFileWatcher()
	if err != nil {
		helpers.SafeDebugLog("lockfile watcher unavailable: %v", err)
		return
	}
	if err := watcher.Add(root); err != nil {
		helpers.SafeDebugLog("cannot watch %s: %v", root, err)
		_ = watcher.Close()
		return
	}
	s.watcher = watcher

	go func() {
		for ev := range watcher.Events() {
			if filepath.Base(ev.Name) == "Cargo.lock" && ev.Op&(platform.Create|platform.Write) != 0 {
				s.appraiser.ExternalFileChanged(ev.Name)
			}
		}
	}()
	go func() {
		for err := range watcher.Errors() {
			helpers.SafeDebugLog("lockfile watcher: %v", err)
		}
	}()
}

func (s *Server) initialize(context *glsp.Context, params *protocol.InitializeParams) (any, error) {
	s.conn.set(context)
	result, err := serverMethods.Initialize(s, context, params)
	if err != nil {
		return nil, err
	}

	if opts := appraiser.OptionsFromInitialization(params.InitializationOptions); len(opts.ExtraEnv) > 0 {
		for k, v := range opts.ExtraEnv {
			s.runner.ExtraEnv = append(s.runner.ExtraEnv, k+"="+v)
		}
	}

	if params.RootURI != nil {
		s.watchLockfiles(helpers.URIToPath(string(*params.RootURI)))
	}
	return result, nil
}

func (s *Server) initialized(context *glsp.Context, params *protocol.InitializedParams) error {
	return serverMethods.Initialized(s, context, params)
}

func (s *Server) shutdown(context *glsp.Context) error {
	return serverMethods.Shutdown(s, context)
}

func (s *Server) setTrace(context *glsp.Context, params *protocol.SetTraceParams) error {
	return serverMethods.SetTrace(s, context, params)
}

func (s *Server) didOpen(context *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	return textDocument.DidOpen(s, context, params)
}

func (s *Server) didChange(context *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	return textDocument.DidChange(s, context, params)
}

func (s *Server) didSave(context *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	return textDocument.DidSave(s, context, params)
}

func (s *Server) didClose(context *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	return textDocument.DidClose(s, context, params)
}

func (s *Server) hover(context *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	return hover.Hover(s, context, params)
}

func (s *Server) codeAction(context *glsp.Context, params *protocol.CodeActionParams) (any, error) {
	return codeAction.CodeAction(s, context, params)
}

func (s *Server) definition(context *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	return definition.Definition(s, context, params)
}

func (s *Server) didChangeConfiguration(context *glsp.Context, params *protocol.DidChangeConfigurationParams) error {
	return workspace.DidChangeConfiguration(s, context, params)
}

func (s *Server) didChangeWatchedFiles(context *glsp.Context, params *protocol.DidChangeWatchedFilesParams) error {
	return workspace.DidChangeWatchedFiles(s, context, params)
}
