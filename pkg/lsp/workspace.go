package lsp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/bmatcuk/doublestar"
	"github.com/hx-lsp/hxls/pkg/grammar"
	"github.com/hx-lsp/hxls/pkg/tags"
	gsync "github.com/kralicky/gpkg/sync"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
	"golang.org/x/sync/errgroup"
)

// Workspace is one workspace folder's live state: the configuration roots,
// the document store, and the tag index. It is the only owner of both shared
// mutable structures; every mutation funnels through the document store's
// per-document serialization.
type Workspace struct {
	folder   protocol.WorkspaceFolder
	path     string
	settings Settings
	client   protocol.Client

	registry  *grammar.Registry
	extractor *tags.Extractor
	index     *tags.Index
	resolver  *tags.Resolver

	docs gsync.Map[protocol.DocumentURI, *document]
}

// NewWorkspace wires the grammar registry, extractor, index and resolver for
// one workspace folder. Extractor construction fails only on a grammar
// configuration problem, which is fatal for the folder.
func NewWorkspace(folder protocol.WorkspaceFolder, settings Settings, client protocol.Client) (*Workspace, error) {
	registry := grammar.NewRegistry()
	extractor, err := tags.NewExtractor(registry, settings.BackendLanguage())
	if err != nil {
		return nil, err
	}
	index := tags.NewIndex()
	return &Workspace{
		folder:    folder,
		path:      protocol.DocumentURI(folder.URI).Path(),
		settings:  settings,
		client:    client,
		registry:  registry,
		extractor: extractor,
		index:     index,
		resolver:  tags.NewResolver(index),
	}, nil
}

// Resolver exposes the goto query surface over this workspace's index.
func (w *Workspace) Resolver() *tags.Resolver {
	return w.resolver
}

// Scan walks the configured template, script and backend roots and indexes
// every eligible file, so cross-file queries work before any document is
// opened in the editor. An unreadable root disables that root's pipeline and
// is reported once; it does not fail the scan.
func (w *Workspace) Scan(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.NumCPU())
	for _, root := range w.settings.scanRoots() {
		dir := root.dir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(w.path, dir)
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			slog.Error("skipping unreadable root directory", "dir", dir, "error", err)
			continue
		}
		for _, ext := range root.extensions {
			matches, err := doublestar.Glob(filepath.Join(dir, "**", "*."+ext))
			if err != nil {
				slog.Error("skipping root directory", "dir", dir, "ext", ext, "error", err)
				continue
			}
			for _, match := range matches {
				match := match
				eg.Go(func() error {
					text, err := os.ReadFile(match)
					if err != nil {
						slog.Warn("failed to read file", "path", match, "error", err)
						return nil
					}
					uri := protocol.URIFromPath(match)
					if err := w.OpenDocument(ctx, uri, text, 0); err != nil {
						slog.Warn("failed to index file", "path", match, "error", err)
					}
					return nil
				})
			}
		}
	}
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("workspace scan: %w", err)
	}
	slog.Info("workspace scan complete", "folder", w.folder.Name, "tags", len(w.index.Names()))
	return nil
}

// indexLocked re-extracts a document's tags and replaces its index entries.
// Callers hold the document's lock, so updates for one identity reach the
// index in version order.
func (w *Workspace) indexLocked(ctx context.Context, snap Snapshot) {
	extracted := w.extractor.Extract(snap.Language, snap.Tree.RootNode(), snap.Mapper)
	affected := definitionNames(append(w.index.DocumentTags(snap.URI), extracted...))
	w.index.Update(snap.URI, extracted)
	w.publishDiagnostics(ctx, snap.URI, snap.Version, w.duplicateTagDiagnostics(extracted))
	w.refreshRelatedDiagnostics(ctx, snap.URI, affected)
}

// TagAt resolves the tag occurrence at a position in a document: a template
// reference when the position falls inside an hx-lsp attribute value
// identifier, or a backend/script definition when it falls on an hx@ marker.
func (w *Workspace) TagAt(snap Snapshot, pos protocol.Position) (tags.Tag, bool) {
	for _, t := range w.extractor.Extract(snap.Language, snap.Tree.RootNode(), snap.Mapper) {
		if positionInRange(pos, t.Range) {
			return t, true
		}
	}
	return tags.Tag{}, false
}
