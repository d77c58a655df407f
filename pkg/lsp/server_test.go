package lsp

import (
	"context"
	"testing"

	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(nil)
	params := &protocol.ParamInitialize{}
	params.InitializationOptions = map[string]any{
		"lang":        "rust",
		"templateExt": "html",
	}
	params.WorkspaceFolders = []protocol.WorkspaceFolder{{URI: "file:///ws", Name: "ws"}}
	result, err := s.Initialize(context.Background(), params)
	require.NoError(t, err)
	require.NotNil(t, result.Capabilities.DefinitionProvider)
	require.NotNil(t, result.Capabilities.ReferencesProvider)
	require.NotNil(t, result.Capabilities.ImplementationProvider)
	require.NotNil(t, result.Capabilities.Workspace.WorkspaceFolders)
	require.Equal(t, "hxls", result.ServerInfo.Name)
	return s
}

func openDoc(t *testing.T, s *Server, uri protocol.DocumentURI, text string) {
	t.Helper()
	err := s.DidOpen(context.Background(), &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:     uri,
			Version: 1,
			Text:    text,
		},
	})
	require.NoError(t, err)
}

func posParams(uri protocol.DocumentURI, line, char uint32) protocol.TextDocumentPositionParams {
	return protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		Position:     protocol.Position{Line: line, Character: char},
	}
}

func TestInitializeRejectsBadOptions(t *testing.T) {
	s := NewServer(nil)
	params := &protocol.ParamInitialize{}
	params.InitializationOptions = map[string]any{
		"lang":        "cobol",
		"templateExt": "html",
	}
	result, err := s.Initialize(context.Background(), params)
	require.NoError(t, err)
	require.Nil(t, result.Capabilities.DefinitionProvider)
	require.Nil(t, result.Capabilities.ReferencesProvider)
	require.Nil(t, result.Capabilities.ImplementationProvider)
}

func TestCrossFileNavigation(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	const aURI = protocol.DocumentURI("file:///ws/templates/a.html")
	const bURI = protocol.DocumentURI("file:///ws/src/b.rs")
	const cURI = protocol.DocumentURI("file:///ws/src/c.rs")

	openDoc(t, s, aURI, `<a hx-get="/r" hx-lsp="tag1"></a>`)
	openDoc(t, s, bURI, "// hx@tag1\nfn tag1() {}\n")

	// Template reference to its single definition.
	locs, err := s.Definition(ctx, &protocol.DefinitionParams{
		TextDocumentPositionParams: posParams(aURI, 0, 24),
	})
	require.NoError(t, err)
	require.Equal(t, []protocol.Location{{
		URI: bURI,
		Range: protocol.Range{
			Start: protocol.Position{Line: 0, Character: 6},
			End:   protocol.Position{Line: 0, Character: 10},
		},
	}}, locs)

	// Definition site back to the template reference.
	locs, err = s.Definition(ctx, &protocol.DefinitionParams{
		TextDocumentPositionParams: posParams(bURI, 0, 8),
	})
	require.NoError(t, err)
	require.Equal(t, []protocol.Location{{
		URI: aURI,
		Range: protocol.Range{
			Start: protocol.Position{Line: 0, Character: 23},
			End:   protocol.Position{Line: 0, Character: 27},
		},
	}}, locs)

	// A second definition appears; results list both in document order.
	openDoc(t, s, cURI, "// hx@tag1\n")
	locs, err = s.Definition(ctx, &protocol.DefinitionParams{
		TextDocumentPositionParams: posParams(aURI, 0, 24),
	})
	require.NoError(t, err)
	require.Len(t, locs, 2)
	require.Equal(t, bURI, locs[0].URI)
	require.Equal(t, cURI, locs[1].URI)

	// References from the definition side, with and without the declaration.
	locs, err = s.References(ctx, &protocol.ReferenceParams{
		TextDocumentPositionParams: posParams(bURI, 0, 8),
		Context:                    protocol.ReferenceContext{IncludeDeclaration: true},
	})
	require.NoError(t, err)
	require.Len(t, locs, 3)

	locs, err = s.References(ctx, &protocol.ReferenceParams{
		TextDocumentPositionParams: posParams(bURI, 0, 8),
	})
	require.NoError(t, err)
	require.Len(t, locs, 1)
	require.Equal(t, aURI, locs[0].URI)

	// Both definitions are backend-side, so both are implementations.
	locs, err = s.Implementation(ctx, &protocol.ImplementationParams{
		TextDocumentPositionParams: posParams(aURI, 0, 24),
	})
	require.NoError(t, err)
	require.Len(t, locs, 2)
}

func TestNavigationAfterIncrementalEdit(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	const aURI = protocol.DocumentURI("file:///ws/a.html")
	const bURI = protocol.DocumentURI("file:///ws/b.rs")

	openDoc(t, s, aURI, `<a hx-get="/r" hx-lsp="tag1"></a>`)
	openDoc(t, s, bURI, "// hx@tag1\n")

	// Delete the hx-lsp attribute.
	err := s.DidChange(ctx, &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			Version:                2,
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: aURI},
		},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{
			changeAt(0, 14, 0, 28, ""),
		},
	})
	require.NoError(t, err)

	// The reference is gone but the definition remains.
	locs, err := s.Definition(ctx, &protocol.DefinitionParams{
		TextDocumentPositionParams: posParams(bURI, 0, 8),
	})
	require.NoError(t, err)
	require.Empty(t, locs)

	w, err := s.WorkspaceForURI(bURI)
	require.NoError(t, err)
	require.Len(t, w.Resolver().GotoDefinition("tag1"), 1)

	// Closing the backend file evicts its definitions too.
	err = s.DidClose(ctx, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: bURI},
	})
	require.NoError(t, err)
	require.Empty(t, w.Resolver().GotoDefinition("tag1"))
}

func TestDefinitionOffTag(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	const aURI = protocol.DocumentURI("file:///ws/a.html")

	openDoc(t, s, aURI, `<a hx-get="/r" hx-lsp="tag1"></a>`)

	// Position on the hx-get value: no tag, empty result.
	locs, err := s.Definition(ctx, &protocol.DefinitionParams{
		TextDocumentPositionParams: posParams(aURI, 0, 12),
	})
	require.NoError(t, err)
	require.Empty(t, locs)

	// Unopened document: also a normal negative.
	locs, err = s.Definition(ctx, &protocol.DefinitionParams{
		TextDocumentPositionParams: posParams("file:///ws/other.html", 0, 0),
	})
	require.NoError(t, err)
	require.Empty(t, locs)
}

func TestWorkspaceRouting(t *testing.T) {
	s := newTestServer(t)

	_, err := s.WorkspaceForURI("file:///elsewhere/a.html")
	require.Error(t, err)

	w, err := s.WorkspaceForURI("file:///ws/deeply/nested/a.html")
	require.NoError(t, err)
	require.NotNil(t, w)
}

func TestDidChangeWorkspaceFolders(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	err := s.DidChangeWorkspaceFolders(ctx, &protocol.DidChangeWorkspaceFoldersParams{
		Event: protocol.WorkspaceFoldersChangeEvent{
			Added: []protocol.WorkspaceFolder{{URI: "file:///other", Name: "other"}},
		},
	})
	require.NoError(t, err)
	_, err = s.WorkspaceForURI("file:///other/x.html")
	require.NoError(t, err)

	err = s.DidChangeWorkspaceFolders(ctx, &protocol.DidChangeWorkspaceFoldersParams{
		Event: protocol.WorkspaceFoldersChangeEvent{
			Removed: []protocol.WorkspaceFolder{{URI: "file:///other", Name: "other"}},
		},
	})
	require.NoError(t, err)
	_, err = s.WorkspaceForURI("file:///other/x.html")
	require.Error(t, err)
}
