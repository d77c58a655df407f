package lsp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hx-lsp/hxls/pkg/grammar"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
	sitter "github.com/smacker/go-tree-sitter"
)

// document is one live document owned by the workspace's store. All fields
// behind mu are replaced wholesale on each completed synchronization; readers
// take the lock briefly to copy the pointers out as a Snapshot.
type document struct {
	mu      sync.Mutex
	kind    grammar.Language
	version int32
	mapper  *protocol.Mapper
	tree    *sitter.Tree
	closed  bool
}

// Snapshot is a consistent view of a document as of some completed
// synchronization. The mapper and tree are never mutated after publication.
type Snapshot struct {
	URI      protocol.DocumentURI
	Language grammar.Language
	Version  int32
	Mapper   *protocol.Mapper
	Tree     *sitter.Tree
}

func (d *document) snapshot(uri protocol.DocumentURI) Snapshot {
	return Snapshot{
		URI:      uri,
		Language: d.kind,
		Version:  d.version,
		Mapper:   d.mapper,
		Tree:     d.tree,
	}
}

// OpenDocument registers a document with the store, parses it, and indexes
// its tags. Files whose extension maps to no grammar are ignored. Reopening a
// known identity (an editor opening a file found by the initial scan)
// replaces the stored text.
func (w *Workspace) OpenDocument(ctx context.Context, uri protocol.DocumentURI, text []byte, version int32) error {
	kind, ok := w.settings.LanguageForPath(uri.Path())
	if !ok {
		slog.Debug("ignoring document with no grammar", "uri", uri)
		return nil
	}
	doc, _ := w.docs.LoadOrStore(uri, &document{kind: kind})
	doc.mu.Lock()
	defer doc.mu.Unlock()
	if doc.closed {
		// Lost a race with a close notification; the next open starts fresh.
		return w.OpenDocument(ctx, uri, text, version)
	}
	tree, err := w.registry.Parse(ctx, kind, text)
	if err != nil {
		return err
	}
	doc.version = version
	doc.mapper = protocol.NewMapper(uri, text)
	doc.tree = tree
	w.indexLocked(ctx, doc.snapshot(uri))
	return nil
}

// ApplyChanges applies one change notification to a document: every content
// change in order, each against the text produced by the previous one, then a
// single incremental re-parse, re-extraction, and index update. The whole
// notification is all-or-nothing; on any error the document keeps its prior
// state.
func (w *Workspace) ApplyChanges(ctx context.Context, uri protocol.DocumentURI, version int32, changes []protocol.TextDocumentContentChangeEvent) error {
	if len(changes) == 0 {
		return fmt.Errorf("no content changes provided")
	}
	doc, ok := w.docs.Load(uri)
	if !ok {
		if _, eligible := w.settings.LanguageForPath(uri.Path()); !eligible {
			// Open ignored this file; its change notifications are no-ops.
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUnknownDocument, uri)
	}
	doc.mu.Lock()
	defer doc.mu.Unlock()
	if doc.closed {
		return fmt.Errorf("%w: %s", ErrUnknownDocument, uri)
	}
	if version <= doc.version {
		return fmt.Errorf("%w: document %s is at version %d, rejecting version %d",
			ErrStaleEdit, uri, doc.version, version)
	}
	mapper, edits, err := applyContentChanges(doc.mapper, changes)
	if err != nil {
		return err
	}
	tree, err := w.registry.Reparse(ctx, doc.kind, doc.tree, edits, mapper.Content)
	if err != nil {
		return err
	}
	doc.version = version
	doc.mapper = mapper
	doc.tree = tree
	w.indexLocked(ctx, doc.snapshot(uri))
	return nil
}

// CloseDocument destroys a document and evicts its tags from the index. The
// eviction is linearized against any in-flight edit for the same identity.
func (w *Workspace) CloseDocument(ctx context.Context, uri protocol.DocumentURI) error {
	doc, ok := w.docs.LoadAndDelete(uri)
	if !ok {
		if _, eligible := w.settings.LanguageForPath(uri.Path()); !eligible {
			// Open ignored this file; closing it is equally a no-op.
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUnknownDocument, uri)
	}
	doc.mu.Lock()
	doc.closed = true
	doc.mu.Unlock()
	affected := definitionNames(w.index.DocumentTags(uri))
	w.index.Remove(uri)
	w.publishDiagnostics(ctx, uri, 0, nil)
	w.refreshRelatedDiagnostics(ctx, uri, affected)
	return nil
}

// SaveDocument re-extracts a document's tags from its stored tree. A cheap
// consistency refresh; the tree is already current.
func (w *Workspace) SaveDocument(ctx context.Context, uri protocol.DocumentURI) error {
	doc, ok := w.docs.Load(uri)
	if !ok {
		return nil
	}
	doc.mu.Lock()
	defer doc.mu.Unlock()
	if doc.closed || doc.tree == nil {
		return nil
	}
	w.indexLocked(ctx, doc.snapshot(uri))
	return nil
}

// Document returns a consistent snapshot of an open document.
func (w *Workspace) Document(uri protocol.DocumentURI) (Snapshot, error) {
	doc, ok := w.docs.Load(uri)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownDocument, uri)
	}
	doc.mu.Lock()
	defer doc.mu.Unlock()
	if doc.closed {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownDocument, uri)
	}
	return doc.snapshot(uri), nil
}

// applyContentChanges folds a change notification into a new mapper plus the
// ordered tree-sitter edits describing it. Changes are applied strictly in
// the order given; each change's positions are resolved against the text
// produced by the previous one. A change with no range replaces the whole
// text. The input mapper is not modified.
func applyContentChanges(m *protocol.Mapper, changes []protocol.TextDocumentContentChangeEvent) (*protocol.Mapper, []sitter.EditInput, error) {
	edits := make([]sitter.EditInput, 0, len(changes))
	for _, change := range changes {
		start, end := 0, len(m.Content)
		if change.Range != nil {
			var err error
			start, end, err = m.RangeOffsets(*change.Range)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %v", ErrOutOfRange, err)
			}
		}
		content := make([]byte, 0, len(m.Content)-(end-start)+len(change.Text))
		content = append(content, m.Content[:start]...)
		content = append(content, change.Text...)
		content = append(content, m.Content[end:]...)
		newEnd := start + len(change.Text)
		edits = append(edits, sitter.EditInput{
			StartIndex:  uint32(start),
			OldEndIndex: uint32(end),
			NewEndIndex: uint32(newEnd),
			StartPoint:  pointForOffset(m.Content, start),
			OldEndPoint: pointForOffset(m.Content, end),
			NewEndPoint: pointForOffset(content, newEnd),
		})
		m = protocol.NewMapper(m.URI, content)
	}
	return m, edits, nil
}
