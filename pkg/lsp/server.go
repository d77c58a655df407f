package lsp

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"sync"

	"github.com/hx-lsp/hxls/pkg/tags"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
	"github.com/kralicky/tools-lite/pkg/jsonrpc2"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"
)

// Server is the protocol front: it receives editor requests and notifications
// and dispatches into the workspace owning the document in question.
type Server struct {
	client protocol.Client

	settings    Settings
	settingsErr error

	workspacesMu sync.RWMutex
	workspaces   map[string]*Workspace
}

func NewServer(client protocol.Client) *Server {
	return &Server{
		client:     client,
		workspaces: map[string]*Workspace{},
	}
}

// Initialize implements protocol.Server.
func (s *Server) Initialize(ctx context.Context, params *protocol.ParamInitialize) (*protocol.InitializeResult, error) {
	s.settings, s.settingsErr = DecodeSettings(params.InitializationOptions)
	if s.settingsErr != nil {
		// Reported once; the navigation pipeline stays disabled.
		slog.Error("invalid workspace configuration", "error", s.settingsErr)
	} else {
		if level, ok := ParseLogLevel(s.settings.LogLevel); ok {
			GlobalAtomicLeveler.SetLevel(level)
		}
		s.workspacesMu.Lock()
		for _, folder := range params.WorkspaceFolders {
			path := protocol.DocumentURI(folder.URI).Path()
			slog.Info("adding workspace folder", "path", path)
			w, err := NewWorkspace(folder, s.settings, s.client)
			if err != nil {
				slog.Error("failed to initialize workspace folder", "path", path, "error", err)
				continue
			}
			s.workspaces[path] = w
		}
		s.workspacesMu.Unlock()
	}

	capabilities := protocol.ServerCapabilities{
		TextDocumentSync: protocol.TextDocumentSyncOptions{
			OpenClose: true,
			Change:    protocol.Incremental,
			Save:      &protocol.SaveOptions{IncludeText: false},
		},
		Workspace: &protocol.WorkspaceOptions{
			WorkspaceFolders: &protocol.WorkspaceFolders5Gn{
				Supported:           true,
				ChangeNotifications: "workspace/didChangeWorkspaceFolders",
			},
		},
	}
	if s.settingsErr == nil {
		capabilities.DefinitionProvider = &protocol.Or_ServerCapabilities_definitionProvider{Value: true}
		capabilities.ReferencesProvider = &protocol.Or_ServerCapabilities_referencesProvider{Value: true}
		capabilities.ImplementationProvider = &protocol.Or_ServerCapabilities_implementationProvider{Value: true}
	}
	return &protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.ServerInfo{
			Name:    "hxls",
			Version: "0.1.0",
		},
	}, nil
}

// Initialized implements protocol.Server. The initial workspace scan runs
// here so the initialize handshake stays fast.
func (s *Server) Initialized(ctx context.Context, params *protocol.InitializedParams) error {
	if s.settingsErr != nil {
		return nil
	}
	s.workspacesMu.RLock()
	workspaces := maps.Values(s.workspaces)
	s.workspacesMu.RUnlock()
	go func() {
		eg, ctx := errgroup.WithContext(context.WithoutCancel(ctx))
		for _, w := range workspaces {
			w := w
			eg.Go(func() error { return w.Scan(ctx) })
		}
		if err := eg.Wait(); err != nil {
			slog.Error("workspace scan failed", "error", err)
		}
	}()
	return nil
}

// WorkspaceForURI routes a document identity to the workspace folder that
// contains it.
func (s *Server) WorkspaceForURI(uri protocol.DocumentURI) (*Workspace, error) {
	s.workspacesMu.RLock()
	workspaces := maps.Clone(s.workspaces)
	s.workspacesMu.RUnlock()
	u, err := url.Parse(string(uri))
	if err != nil {
		return nil, fmt.Errorf("invalid uri: %w", err)
	}
	for path, w := range workspaces {
		if filepath.HasPrefix(u.Path, path) {
			return w, nil
		}
	}
	return nil, fmt.Errorf("%w: uri %s does not belong to any workspace folder", jsonrpc2.ErrMethodNotFound, uri)
}

// DidOpen implements protocol.Server.
func (s *Server) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	w, err := s.WorkspaceForURI(params.TextDocument.URI)
	if err != nil {
		return err
	}
	uri := params.TextDocument.URI
	if !uri.IsFile() {
		return nil
	}
	return w.OpenDocument(ctx, uri, []byte(params.TextDocument.Text), params.TextDocument.Version)
}

// DidChange implements protocol.Server.
func (s *Server) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	w, err := s.WorkspaceForURI(params.TextDocument.URI)
	if err != nil {
		return err
	}
	uri := params.TextDocument.URI
	if !uri.IsFile() {
		return nil
	}
	return w.ApplyChanges(ctx, uri, params.TextDocument.Version, params.ContentChanges)
}

// DidClose implements protocol.Server.
func (s *Server) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	w, err := s.WorkspaceForURI(params.TextDocument.URI)
	if err != nil {
		return err
	}
	uri := params.TextDocument.URI
	if !uri.IsFile() {
		return nil
	}
	return w.CloseDocument(ctx, uri)
}

// DidSave implements protocol.Server.
func (s *Server) DidSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error {
	w, err := s.WorkspaceForURI(params.TextDocument.URI)
	if err != nil {
		return err
	}
	return w.SaveDocument(ctx, params.TextDocument.URI)
}

// Definition implements protocol.Server. At a template reference it returns
// the tag's definition sites; at a backend or script definition it crosses
// over to the template references.
func (s *Server) Definition(ctx context.Context, params *protocol.DefinitionParams) ([]protocol.Location, error) {
	w, tag, ok, err := s.tagAt(params.TextDocument.URI, params.Position)
	if err != nil || !ok {
		return nil, err
	}
	if tag.Role == tags.RoleDefinition {
		return w.Resolver().GotoReference(tag.Name), nil
	}
	return w.Resolver().GotoDefinition(tag.Name), nil
}

// References implements protocol.Server.
func (s *Server) References(ctx context.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	w, tag, ok, err := s.tagAt(params.TextDocument.URI, params.Position)
	if err != nil || !ok {
		return nil, err
	}
	var locations []protocol.Location
	if params.Context.IncludeDeclaration {
		locations = append(locations, w.Resolver().GotoDefinition(tag.Name)...)
	}
	return append(locations, w.Resolver().GotoReference(tag.Name)...), nil
}

// Implementation implements protocol.Server.
func (s *Server) Implementation(ctx context.Context, params *protocol.ImplementationParams) ([]protocol.Location, error) {
	w, tag, ok, err := s.tagAt(params.TextDocument.URI, params.Position)
	if err != nil || !ok {
		return nil, err
	}
	return w.Resolver().GotoImplementation(tag.Name), nil
}

// tagAt locates the tag occurrence under the cursor. A position on no tag is
// a normal negative result, not an error.
func (s *Server) tagAt(uri protocol.DocumentURI, pos protocol.Position) (*Workspace, tags.Tag, bool, error) {
	w, err := s.WorkspaceForURI(uri)
	if err != nil {
		return nil, tags.Tag{}, false, err
	}
	snap, err := w.Document(uri)
	if err != nil {
		return nil, tags.Tag{}, false, nil
	}
	tag, ok := w.TagAt(snap, pos)
	return w, tag, ok, nil
}

// DidChangeWorkspaceFolders implements protocol.Server.
func (s *Server) DidChangeWorkspaceFolders(ctx context.Context, params *protocol.DidChangeWorkspaceFoldersParams) error {
	if s.settingsErr != nil {
		return nil
	}
	s.workspacesMu.Lock()
	var added []*Workspace
	for _, folder := range params.Event.Added {
		path := protocol.DocumentURI(folder.URI).Path()
		slog.Info("adding workspace folder", "path", path)
		w, err := NewWorkspace(folder, s.settings, s.client)
		if err != nil {
			slog.Error("failed to initialize workspace folder", "path", path, "error", err)
			continue
		}
		s.workspaces[path] = w
		added = append(added, w)
	}
	for _, folder := range params.Event.Removed {
		path := protocol.DocumentURI(folder.URI).Path()
		slog.Info("removing workspace folder", "path", path)
		delete(s.workspaces, path)
	}
	s.workspacesMu.Unlock()
	for _, w := range added {
		w := w
		go func() {
			if err := w.Scan(context.WithoutCancel(ctx)); err != nil {
				slog.Error("workspace scan failed", "error", err)
			}
		}()
	}
	return nil
}

// Shutdown implements protocol.Server.
func (*Server) Shutdown(context.Context) error {
	return nil
}

var _ protocol.Server = (*Server)(nil)

// =====================
// Unimplemented Methods
// =====================

// Progress implements protocol.Server.
func (*Server) Progress(context.Context, *protocol.ProgressParams) error {
	return jsonrpc2.ErrMethodNotFound
}

// SetTrace implements protocol.Server.
func (*Server) SetTrace(context.Context, *protocol.SetTraceParams) error {
	return jsonrpc2.ErrMethodNotFound
}

// IncomingCalls implements protocol.Server.
func (*Server) IncomingCalls(context.Context, *protocol.CallHierarchyIncomingCallsParams) ([]protocol.CallHierarchyIncomingCall, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// OutgoingCalls implements protocol.Server.
func (*Server) OutgoingCalls(context.Context, *protocol.CallHierarchyOutgoingCallsParams) ([]protocol.CallHierarchyOutgoingCall, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// ResolveCodeAction implements protocol.Server.
func (*Server) ResolveCodeAction(context.Context, *protocol.CodeAction) (*protocol.CodeAction, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// ResolveCodeLens implements protocol.Server.
func (*Server) ResolveCodeLens(context.Context, *protocol.CodeLens) (*protocol.CodeLens, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// ResolveCompletionItem implements protocol.Server.
func (*Server) ResolveCompletionItem(context.Context, *protocol.CompletionItem) (*protocol.CompletionItem, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// ResolveDocumentLink implements protocol.Server.
func (*Server) ResolveDocumentLink(context.Context, *protocol.DocumentLink) (*protocol.DocumentLink, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// ResolveWorkspaceSymbol implements protocol.Server.
func (*Server) ResolveWorkspaceSymbol(context.Context, *protocol.WorkspaceSymbol) (*protocol.WorkspaceSymbol, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// Exit implements protocol.Server.
func (*Server) Exit(context.Context) error {
	return jsonrpc2.ErrMethodNotFound
}

// Resolve implements protocol.Server.
func (*Server) Resolve(context.Context, *protocol.InlayHint) (*protocol.InlayHint, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// CodeAction implements protocol.Server.
func (*Server) CodeAction(context.Context, *protocol.CodeActionParams) ([]protocol.CodeAction, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// CodeLens implements protocol.Server.
func (*Server) CodeLens(context.Context, *protocol.CodeLensParams) ([]protocol.CodeLens, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// CodeLensRefresh implements protocol.Server.
func (*Server) CodeLensRefresh(context.Context) error {
	return jsonrpc2.ErrMethodNotFound
}

// ColorPresentation implements protocol.Server.
func (*Server) ColorPresentation(context.Context, *protocol.ColorPresentationParams) ([]protocol.ColorPresentation, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// Completion implements protocol.Server.
func (*Server) Completion(context.Context, *protocol.CompletionParams) (*protocol.CompletionList, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// Declaration implements protocol.Server.
func (*Server) Declaration(context.Context, *protocol.DeclarationParams) (*protocol.Or_textDocument_declaration, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// Diagnostic implements protocol.Server.
func (*Server) Diagnostic(context.Context, *protocol.DocumentDiagnosticParams) (*protocol.Or_DocumentDiagnosticReport, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// DiagnosticRefresh implements protocol.Server.
func (*Server) DiagnosticRefresh(context.Context) error {
	return jsonrpc2.ErrMethodNotFound
}

// DiagnosticWorkspace implements protocol.Server.
func (*Server) DiagnosticWorkspace(context.Context, *protocol.WorkspaceDiagnosticParams) (*protocol.WorkspaceDiagnosticReport, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// DidChangeConfiguration implements protocol.Server.
func (*Server) DidChangeConfiguration(context.Context, *protocol.DidChangeConfigurationParams) error {
	return jsonrpc2.ErrMethodNotFound
}

// DidChangeNotebookDocument implements protocol.Server.
func (*Server) DidChangeNotebookDocument(context.Context, *protocol.DidChangeNotebookDocumentParams) error {
	return jsonrpc2.ErrMethodNotFound
}

// DidChangeWatchedFiles implements protocol.Server.
func (*Server) DidChangeWatchedFiles(context.Context, *protocol.DidChangeWatchedFilesParams) error {
	return jsonrpc2.ErrMethodNotFound
}

// DidCloseNotebookDocument implements protocol.Server.
func (*Server) DidCloseNotebookDocument(context.Context, *protocol.DidCloseNotebookDocumentParams) error {
	return jsonrpc2.ErrMethodNotFound
}

// DidOpenNotebookDocument implements protocol.Server.
func (*Server) DidOpenNotebookDocument(context.Context, *protocol.DidOpenNotebookDocumentParams) error {
	return jsonrpc2.ErrMethodNotFound
}

// DidSaveNotebookDocument implements protocol.Server.
func (*Server) DidSaveNotebookDocument(context.Context, *protocol.DidSaveNotebookDocumentParams) error {
	return jsonrpc2.ErrMethodNotFound
}

// DidCreateFiles implements protocol.Server.
func (*Server) DidCreateFiles(context.Context, *protocol.CreateFilesParams) error {
	return jsonrpc2.ErrMethodNotFound
}

// DidDeleteFiles implements protocol.Server.
func (*Server) DidDeleteFiles(context.Context, *protocol.DeleteFilesParams) error {
	return jsonrpc2.ErrMethodNotFound
}

// DidRenameFiles implements protocol.Server.
func (*Server) DidRenameFiles(context.Context, *protocol.RenameFilesParams) error {
	return jsonrpc2.ErrMethodNotFound
}

// DocumentColor implements protocol.Server.
func (*Server) DocumentColor(context.Context, *protocol.DocumentColorParams) ([]protocol.ColorInformation, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// DocumentHighlight implements protocol.Server.
func (*Server) DocumentHighlight(context.Context, *protocol.DocumentHighlightParams) ([]protocol.DocumentHighlight, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// DocumentLink implements protocol.Server.
func (*Server) DocumentLink(context.Context, *protocol.DocumentLinkParams) ([]protocol.DocumentLink, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// DocumentSymbol implements protocol.Server.
func (*Server) DocumentSymbol(context.Context, *protocol.DocumentSymbolParams) ([]interface{}, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// ExecuteCommand implements protocol.Server.
func (*Server) ExecuteCommand(context.Context, *protocol.ExecuteCommandParams) (interface{}, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// FoldingRange implements protocol.Server.
func (*Server) FoldingRange(context.Context, *protocol.FoldingRangeParams) ([]protocol.FoldingRange, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// Formatting implements protocol.Server.
func (*Server) Formatting(context.Context, *protocol.DocumentFormattingParams) ([]protocol.TextEdit, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// Hover implements protocol.Server.
func (*Server) Hover(context.Context, *protocol.HoverParams) (*protocol.Hover, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// InlayHint implements protocol.Server.
func (*Server) InlayHint(context.Context, *protocol.InlayHintParams) ([]protocol.InlayHint, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// InlayHintRefresh implements protocol.Server.
func (*Server) InlayHintRefresh(context.Context) error {
	return jsonrpc2.ErrMethodNotFound
}

// InlineCompletion implements protocol.Server.
func (*Server) InlineCompletion(context.Context, *protocol.InlineCompletionParams) (*protocol.Or_Result_textDocument_inlineCompletion, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// InlineValue implements protocol.Server.
func (*Server) InlineValue(context.Context, *protocol.InlineValueParams) ([]protocol.Or_InlineValue, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// InlineValueRefresh implements protocol.Server.
func (*Server) InlineValueRefresh(context.Context) error {
	return jsonrpc2.ErrMethodNotFound
}

// LinkedEditingRange implements protocol.Server.
func (*Server) LinkedEditingRange(context.Context, *protocol.LinkedEditingRangeParams) (*protocol.LinkedEditingRanges, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// Moniker implements protocol.Server.
func (*Server) Moniker(context.Context, *protocol.MonikerParams) ([]protocol.Moniker, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// OnTypeFormatting implements protocol.Server.
func (*Server) OnTypeFormatting(context.Context, *protocol.DocumentOnTypeFormattingParams) ([]protocol.TextEdit, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// PrepareCallHierarchy implements protocol.Server.
func (*Server) PrepareCallHierarchy(context.Context, *protocol.CallHierarchyPrepareParams) ([]protocol.CallHierarchyItem, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// PrepareRename implements protocol.Server.
func (*Server) PrepareRename(context.Context, *protocol.PrepareRenameParams) (*protocol.PrepareRenameResult, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// PrepareTypeHierarchy implements protocol.Server.
func (*Server) PrepareTypeHierarchy(context.Context, *protocol.TypeHierarchyPrepareParams) ([]protocol.TypeHierarchyItem, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// RangeFormatting implements protocol.Server.
func (*Server) RangeFormatting(context.Context, *protocol.DocumentRangeFormattingParams) ([]protocol.TextEdit, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// RangesFormatting implements protocol.Server.
func (*Server) RangesFormatting(context.Context, *protocol.DocumentRangesFormattingParams) ([]protocol.TextEdit, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// Rename implements protocol.Server.
func (*Server) Rename(context.Context, *protocol.RenameParams) (*protocol.WorkspaceEdit, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// SelectionRange implements protocol.Server.
func (*Server) SelectionRange(context.Context, *protocol.SelectionRangeParams) ([]protocol.SelectionRange, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// SemanticTokensFull implements protocol.Server.
func (*Server) SemanticTokensFull(context.Context, *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// SemanticTokensFullDelta implements protocol.Server.
func (*Server) SemanticTokensFullDelta(context.Context, *protocol.SemanticTokensDeltaParams) (interface{}, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// SemanticTokensRange implements protocol.Server.
func (*Server) SemanticTokensRange(context.Context, *protocol.SemanticTokensRangeParams) (*protocol.SemanticTokens, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// SemanticTokensRefresh implements protocol.Server.
func (*Server) SemanticTokensRefresh(context.Context) error {
	return jsonrpc2.ErrMethodNotFound
}

// SignatureHelp implements protocol.Server.
func (*Server) SignatureHelp(context.Context, *protocol.SignatureHelpParams) (*protocol.SignatureHelp, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// Subtypes implements protocol.Server.
func (*Server) Subtypes(context.Context, *protocol.TypeHierarchySubtypesParams) ([]protocol.TypeHierarchyItem, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// Supertypes implements protocol.Server.
func (*Server) Supertypes(context.Context, *protocol.TypeHierarchySupertypesParams) ([]protocol.TypeHierarchyItem, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// Symbol implements protocol.Server.
func (*Server) Symbol(context.Context, *protocol.WorkspaceSymbolParams) ([]protocol.SymbolInformation, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// TypeDefinition implements protocol.Server.
func (*Server) TypeDefinition(context.Context, *protocol.TypeDefinitionParams) ([]protocol.Location, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// WillCreateFiles implements protocol.Server.
func (*Server) WillCreateFiles(context.Context, *protocol.CreateFilesParams) (*protocol.WorkspaceEdit, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// WillDeleteFiles implements protocol.Server.
func (*Server) WillDeleteFiles(context.Context, *protocol.DeleteFilesParams) (*protocol.WorkspaceEdit, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// WillRenameFiles implements protocol.Server.
func (*Server) WillRenameFiles(context.Context, *protocol.RenameFilesParams) (*protocol.WorkspaceEdit, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// WillSave implements protocol.Server.
func (*Server) WillSave(context.Context, *protocol.WillSaveTextDocumentParams) error {
	return jsonrpc2.ErrMethodNotFound
}

// WillSaveWaitUntil implements protocol.Server.
func (*Server) WillSaveWaitUntil(context.Context, *protocol.WillSaveTextDocumentParams) ([]protocol.TextEdit, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}

// WorkDoneProgressCancel implements protocol.Server.
func (*Server) WorkDoneProgressCancel(context.Context, *protocol.WorkDoneProgressCancelParams) error {
	return jsonrpc2.ErrMethodNotFound
}

// NonstandardRequest implements protocol.Server.
func (*Server) NonstandardRequest(ctx context.Context, method string, params interface{}) (interface{}, error) {
	return nil, jsonrpc2.ErrMethodNotFound
}
