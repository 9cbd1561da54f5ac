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
	"errors"
	"maps"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	protocol "github.com/tliron/glsp/protocol_3_16"
	"golang.org/x/sync/errgroup"

	"github.com/washanhanzi/cargo-appraiser/cargo"
	"github.com/washanhanzi/cargo-appraiser/internal/logging"
	"github.com/washanhanzi/cargo-appraiser/internal/platform"
	"github.com/washanhanzi/cargo-appraiser/lsp/helpers"
	"github.com/washanhanzi/cargo-appraiser/manifest"
	"github.com/washanhanzi/cargo-appraiser/render"
)

// debounceDelay is the idle time after the last edit before a resolve is
// scheduled without a save.
const debounceDelay = 500 * time.Millisecond

// registryFetchLimit bounds concurrent sparse index requests per resolve.
const registryFetchLimit = 4

// Client is the slice of the LSP connection the appraiser needs.
type Client interface {
	PublishDiagnostics(uri protocol.DocumentUri, diagnostics []protocol.Diagnostic)
}

// VersionSource provides registry version lists; *cargo.RegistryClient is
// the production implementation.
type VersionSource interface {
	Versions(ctx context.Context, name string) ([]cargo.VersionInfo, error)
}

type pendingEdit struct {
	text    string
	version int32
}

// Appraiser is the single-owner actor holding every open manifest. All
// document state is mutated on the event loop only; background workers run
// the cargo and audit subprocesses and report back as events.
type Appraiser struct {
	runner   cargo.Runner
	registry VersionSource
	renderer render.Renderer
	client   Client
	time     platform.TimeProvider

	events chan event
	done   chan struct{}

	editMu sync.Mutex
	edits  map[protocol.DocumentUri]pendingEdit

	docs map[protocol.DocumentUri]*Document

	opts      atomic.Pointer[Options]
	formatter atomic.Pointer[render.Formatter]

	runCtx        context.Context
	workers       sync.WaitGroup
	auditNotified bool
}

// New creates an appraiser. Run must be called before events are posted.
func New(runner cargo.Runner, registry VersionSource, renderer render.Renderer, client Client, tp platform.TimeProvider) *Appraiser {
	a := &Appraiser{
		runner:   runner,
		registry: registry,
		renderer: renderer,
		client:   client,
		time:     tp,
		events:   make(chan event, 512),
		done:     make(chan struct{}),
		edits:    make(map[protocol.DocumentUri]pendingEdit),
		docs:     make(map[protocol.DocumentUri]*Document),
	}
	a.opts.Store(DefaultOptions())
	a.formatter.Store(render.NewFormatter(nil))
	return a
}

// Options returns the current configuration snapshot.
func (a *Appraiser) Options() *Options {
	return a.opts.Load()
}

// Run processes events until the context is canceled. It owns all
// document state; handlers never await external I/O.
func (a *Appraiser) Run(ctx context.Context) {
	a.runCtx = ctx
	// LIFO: done closes first so blocked workers unstick, then drain
	defer a.workers.Wait()
	defer close(a.done)

	for {
		select {
		case <-ctx.Done():
			for _, doc := range a.docs {
				doc.cancelTasks()
			}
			return
		case ev := <-a.events:
			a.dispatch(ev)
		}
	}
}

func (a *Appraiser) dispatch(ev event) {
	switch ev := ev.(type) {
	case editSignal:
		a.handleEdit(ev.uri)
	case saveEvent:
		a.handleSave(ev.uri)
	case closeEvent:
		a.handleClose(ev.uri)
	case resolveCompleted:
		a.handleResolveCompleted(ev)
	case auditCompleted:
		a.handleAuditCompleted(ev)
	case debounceFired:
		a.handleDebounceFired(ev)
	case configChanged:
		a.handleConfigChanged(ev)
	case externalFileChanged:
		a.handleExternalFileChanged(ev)
	case requestEvent:
		ev.fn(a.docs[ev.uri])
		close(ev.done)
	}
}

// post delivers an event unless the loop has exited.
func (a *Appraiser) post(ev event) {
	select {
	case a.events <- ev:
	case <-a.done:
	}
}

// OpenOrChange records a full text update for the manifest. Rapid edits
// coalesce: only the newest pending text is parsed.
func (a *Appraiser) OpenOrChange(uri protocol.DocumentUri, text string, version int32) {
	a.editMu.Lock()
	_, queued := a.edits[uri]
	a.edits[uri] = pendingEdit{text: text, version: version}
	a.editMu.Unlock()

	if !queued {
		a.post(editSignal{uri: uri})
	}
}

// Save notifies the appraiser the manifest was saved.
func (a *Appraiser) Save(uri protocol.DocumentUri) {
	a.post(saveEvent{uri: uri})
}

// Close destroys the document and cancels its in-flight work.
func (a *Appraiser) Close(uri protocol.DocumentUri) {
	a.post(closeEvent{uri: uri})
}

// ConfigChanged swaps the configuration snapshot.
func (a *Appraiser) ConfigChanged(options *Options) {
	a.post(configChanged{options: options})
}

// ExternalFileChanged reports a watched file (Cargo.lock) changed outside
// the editor.
func (a *Appraiser) ExternalFileChanged(path string) {
	a.post(externalFileChanged{path: path})
}

// Query runs fn on the event thread against the document snapshot, which
// is valid for the synchronous duration of fn only. fn receives nil when
// the document is not open. Returns false once the loop has stopped.
func (a *Appraiser) Query(uri protocol.DocumentUri, fn func(doc *Document)) bool {
	done := make(chan struct{})
	select {
	case a.events <- requestEvent{uri: uri, fn: fn, done: done}:
	case <-a.done:
		return false
	}
	select {
	case <-done:
		return true
	case <-a.done:
		return false
	}
}

func (a *Appraiser) handleEdit(uri protocol.DocumentUri) {
	a.editMu.Lock()
	edit, ok := a.edits[uri]
	delete(a.edits, uri)
	a.editMu.Unlock()
	if !ok {
		return
	}

	doc, open := a.docs[uri]
	if !open {
		doc = &Document{URI: uri, Path: helpers.URIToPath(string(uri))}
		a.docs[uri] = doc
		doc.applyText(edit.text, edit.version, a.time.Now())
		doc.State = StateParsed
		a.reconcile(doc)
		// a freshly opened manifest resolves immediately
		a.scheduleResolve(doc)
		return
	}

	// text versions are monotonic per URI
	if edit.version < doc.Version {
		helpers.SafeDebugLog("[EDIT] discarding out-of-order version %d < %d for %s", edit.version, doc.Version, uri)
		return
	}

	changed := doc.applyText(edit.text, edit.version, a.time.Now())

	if len(changed) == 0 {
		// whitespace or value-irrelevant edit: the stored resolution stays
		// authoritative, re-projected through the new ranges
		a.reconcile(doc)
		return
	}

	if doc.staleKeys == nil {
		doc.staleKeys = make(map[manifest.EntryKey]struct{})
	}
	for k := range changed {
		doc.staleKeys[k] = struct{}{}
	}
	if doc.State == StateResolved {
		doc.State = StateStale
	}
	a.reconcile(doc)
	a.armDebounce(doc)
}

func (a *Appraiser) armDebounce(doc *Document) {
	gen := doc.Generation
	uri := doc.URI
	timer := a.time.After(debounceDelay)
	a.workers.Add(1)
	go func() {
		defer a.workers.Done()
		select {
		case <-timer:
			a.post(debounceFired{uri: uri, generation: gen})
		case <-a.done:
		}
	}()
}

func (a *Appraiser) handleDebounceFired(ev debounceFired) {
	doc := a.docs[ev.uri]
	if doc == nil || ev.generation != doc.Generation {
		return
	}
	switch doc.State {
	case StateResolved:
		return
	case StateResolving:
		// the in-flight run already covers the current shape
		if maps.Equal(doc.scheduledSig, signaturesOf(doc.Deps)) {
			return
		}
	}
	a.scheduleResolve(doc)
}

func (a *Appraiser) handleSave(uri protocol.DocumentUri) {
	doc := a.docs[uri]
	if doc == nil {
		return
	}
	a.scheduleResolve(doc)
}

func (a *Appraiser) handleClose(uri protocol.DocumentUri) {
	doc := a.docs[uri]
	if doc == nil {
		return
	}
	doc.cancelTasks()
	a.renderer.ClearAll(uri)
	a.client.PublishDiagnostics(uri, []protocol.Diagnostic{})
	delete(a.docs, uri)

	a.editMu.Lock()
	delete(a.edits, uri)
	a.editMu.Unlock()
}

func (a *Appraiser) handleConfigChanged(ev configChanged) {
	a.opts.Store(ev.options)
	a.formatter.Store(render.NewFormatter(ev.options.DecorationFormatter))
	for _, doc := range a.docs {
		a.reconcile(doc)
	}
}

func (a *Appraiser) handleExternalFileChanged(ev externalFileChanged) {
	if filepath.Base(ev.path) != "Cargo.lock" {
		return
	}
	dir := filepath.Dir(ev.path)
	for _, doc := range a.docs {
		root := filepath.Dir(doc.Path)
		if doc.Resolution != nil && doc.Resolution.WorkspaceRoot != "" {
			root = doc.Resolution.WorkspaceRoot
		}
		if root != dir {
			continue
		}
		// the lockfile moving under us is the actual state changing; pick
		// it up for settled documents, never while a run is in flight
		if doc.State == StateResolved || doc.State == StateResolveFailed {
			a.scheduleResolve(doc)
		}
	}
}

// scheduleResolve supersedes any in-flight resolution and dispatches a new
// one for the document's current generation.
func (a *Appraiser) scheduleResolve(doc *Document) {
	doc.cancelTasks()
	doc.State = StateResolving
	doc.ResolveErr = nil

	gen := doc.Generation
	sig := signaturesOf(doc.Deps)
	doc.scheduledSig = sig

	uri := doc.URI
	path := doc.Path
	keys := make([]cargo.DepKey, 0, len(doc.Deps))
	names := make(map[string]struct{})
	for i := range doc.Deps {
		dep := &doc.Deps[i]
		if dep.Source.Kind == manifest.SourcePath || dep.Source.Kind == manifest.SourceGit {
			continue
		}
		keys = append(keys, LookupKey(dep))
		names[dep.Name] = struct{}{}
	}

	ctx, cancel := context.WithCancel(a.runCtx)
	doc.resolveCancel = cancel

	a.workers.Add(1)
	go func() {
		defer a.workers.Done()
		index, err := a.resolveWorker(ctx, path, keys, names)
		a.post(resolveCompleted{uri: uri, generation: gen, sig: sig, index: index, err: err})
	}()
}

// resolveWorker runs off the event loop: one coarse-grained cargo metadata
// invocation for the whole workspace, then registry version fetches for
// every referenced crate.
func (a *Appraiser) resolveWorker(ctx context.Context, path string, keys []cargo.DepKey, names map[string]struct{}) (*cargo.ResolutionIndex, error) {
	out, err := a.runner.Metadata(ctx, path)
	if err != nil {
		return nil, err
	}
	index, err := cargo.BuildResolutionIndex(out)
	if err != nil {
		return nil, err
	}

	// force workspace-joined entries to exist before enrichment
	for _, key := range keys {
		index.Get(key)
	}

	var mu sync.Mutex
	fetched := make(map[string][]cargo.VersionInfo)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(registryFetchLimit)
	for name := range names {
		g.Go(func() error {
			versions, verr := a.registry.Versions(gctx, name)
			if verr != nil {
				// registry data is an enrichment; resolution stands without it
				logging.Debug("registry versions for %s: %v", name, verr)
				return nil
			}
			mu.Lock()
			fetched[name] = versions
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for name, versions := range fetched {
		index.Enrich(name, versions)
	}
	return index, nil
}

func (a *Appraiser) handleResolveCompleted(ev resolveCompleted) {
	doc := a.docs[ev.uri]
	if doc == nil {
		return
	}

	// a stale completion never overwrites newer state: apply only when the
	// generation matches, or the text changed without changing dependency
	// shape
	if ev.generation != doc.Generation && !maps.Equal(ev.sig, signaturesOf(doc.Deps)) {
		helpers.SafeDebugLog("[RESOLVE] discarding superseded result for %s (gen %d != %d)", ev.uri, ev.generation, doc.Generation)
		return
	}

	doc.resolveCancel = nil

	if ev.err != nil {
		if errors.Is(ev.err, context.Canceled) {
			return
		}
		var ce *cargo.CargoError
		if !errors.As(ev.err, &ce) {
			ce = &cargo.CargoError{Kind: cargo.ErrIo, Message: ev.err.Error()}
		}
		doc.State = StateResolveFailed
		doc.ResolveErr = ce
		logging.Error("resolve failed for %s: %v", ev.uri, ce)
		a.reconcile(doc)
		return
	}

	doc.Resolution = ev.index
	doc.State = StateResolved
	doc.ResolveErr = nil
	doc.staleKeys = nil
	doc.scheduledSig = ev.sig
	for _, warning := range ev.index.Warnings {
		logging.Warning("resolve: %s", warning)
	}
	a.reconcile(doc)

	if !a.Options().AuditDisabled {
		a.scheduleAudit(doc)
	}
}

// scheduleAudit dispatches a cargo-audit run against the workspace
// lockfile. Audit is advisory and never blocks document availability.
func (a *Appraiser) scheduleAudit(doc *Document) {
	if doc.auditCancel != nil {
		doc.auditCancel()
	}

	root := doc.Resolution.WorkspaceRoot
	if root == "" {
		root = filepath.Dir(doc.Path)
	}
	lockfile := filepath.Join(root, "Cargo.lock")

	gen := doc.Generation
	uri := doc.URI
	ctx, cancel := context.WithCancel(a.runCtx)
	doc.auditCancel = cancel

	a.workers.Add(1)
	go func() {
		defer a.workers.Done()
		out, err := a.runner.Audit(ctx, lockfile)
		if err != nil {
			a.post(auditCompleted{uri: uri, generation: gen, err: err})
			return
		}
		a.post(auditCompleted{uri: uri, generation: gen, index: cargo.BuildAuditIndex(out)})
	}()
}

func (a *Appraiser) handleAuditCompleted(ev auditCompleted) {
	doc := a.docs[ev.uri]
	if doc == nil {
		return
	}
	doc.auditCancel = nil

	if ev.err != nil {
		if errors.Is(ev.err, context.Canceled) {
			return
		}
		var ae *cargo.AuditError
		if errors.As(ev.err, &ae) && ae.Missing && !a.auditNotified {
			a.auditNotified = true
			logging.Notify("cargo-audit is not installed; security advisories are unavailable")
		}
		logging.Warning("audit failed for %s: %v", ev.uri, ev.err)
		// degrade to an empty audit projection
		doc.Audit = nil
		a.reconcile(doc)
		return
	}

	doc.Audit = ev.index
	a.reconcile(doc)
}
