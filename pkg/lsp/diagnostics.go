package lsp

import (
	"context"
	"log/slog"

	"github.com/hx-lsp/hxls/pkg/tags"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

// duplicateTagDiagnostics warns about definitions whose identifier has more
// than one definition site in the workspace. The first site (in stable index
// order) is considered canonical and stays clean.
func (w *Workspace) duplicateTagDiagnostics(extracted []tags.Tag) []protocol.Diagnostic {
	var diagnostics []protocol.Diagnostic
	for _, t := range extracted {
		if t.Role != tags.RoleDefinition || w.index.DefinitionCount(t.Name) < 2 {
			continue
		}
		defs, _ := w.index.Lookup(t.Name)
		if canonical := defs[0]; canonical.URI == t.URI && canonical.Range == t.Range {
			continue
		}
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    t.Range,
			Severity: protocol.SeverityWarning,
			Source:   "hxls",
			Message:  "tag " + t.Name + " is already defined",
		})
	}
	return diagnostics
}

// refreshRelatedDiagnostics recomputes duplicate-tag warnings for the other
// documents defining any of the given identifiers. A definition appearing,
// moving, or disappearing changes which sites are duplicates on documents
// that were not themselves re-indexed.
func (w *Workspace) refreshRelatedDiagnostics(ctx context.Context, origin protocol.DocumentURI, names []string) {
	refreshed := map[protocol.DocumentURI]bool{origin: true}
	for _, name := range names {
		defs, _ := w.index.Lookup(name)
		for _, d := range defs {
			if refreshed[d.URI] {
				continue
			}
			refreshed[d.URI] = true
			w.publishDiagnostics(ctx, d.URI, 0, w.duplicateTagDiagnostics(w.index.DocumentTags(d.URI)))
		}
	}
}

// definitionNames returns the distinct identifiers defined in ts.
func definitionNames(ts []tags.Tag) []string {
	var names []string
	seen := map[string]bool{}
	for _, t := range ts {
		if t.Role == tags.RoleDefinition && !seen[t.Name] {
			seen[t.Name] = true
			names = append(names, t.Name)
		}
	}
	return names
}

func (w *Workspace) publishDiagnostics(ctx context.Context, uri protocol.DocumentURI, version int32, diagnostics []protocol.Diagnostic) {
	if w.client == nil {
		return
	}
	if diagnostics == nil {
		diagnostics = []protocol.Diagnostic{}
	}
	err := w.client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Version:     version,
		Diagnostics: diagnostics,
	})
	if err != nil {
		slog.Warn("failed to publish diagnostics", "uri", uri, "error", err)
	}
}
