package grammar_test

import (
	"context"
	"testing"

	"github.com/hx-lsp/hxls/pkg/grammar"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/stretchr/testify/require"
)

func TestParseAllLanguages(t *testing.T) {
	reg := grammar.NewRegistry()
	tests := []struct {
		kind grammar.Language
		src  string
	}{
		{grammar.LanguageTemplate, `<div hx-lsp="list"></div>`},
		{grammar.LanguageGo, "package main\n\n// hx@list\nfunc list() {}\n"},
		{grammar.LanguagePython, "# hx@list\ndef list_items():\n    pass\n"},
		{grammar.LanguageRust, "// hx@list\nfn list() {}\n"},
		{grammar.LanguageJavaScript, "// hx@list\nfunction list() {}\n"},
		{grammar.LanguageTypeScript, "// hx@list\nconst list: number = 1;\n"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			tree, err := reg.Parse(context.Background(), tt.kind, []byte(tt.src))
			require.NoError(t, err)
			root := tree.RootNode()
			require.NotNil(t, root)
			require.False(t, root.HasError())
			require.EqualValues(t, len(tt.src), root.EndByte())
		})
	}
}

func TestParseUnknownLanguage(t *testing.T) {
	reg := grammar.NewRegistry()
	_, err := reg.Parse(context.Background(), grammar.LanguageUnknown, []byte("x"))
	require.ErrorIs(t, err, grammar.ErrUnknownLanguage)
	_, err = reg.Reparse(context.Background(), grammar.LanguageUnknown, nil, nil, []byte("x"))
	require.ErrorIs(t, err, grammar.ErrUnknownLanguage)
}

func TestReparseMatchesFullParse(t *testing.T) {
	reg := grammar.NewRegistry()
	ctx := context.Background()

	oldText := []byte("fn main() {}\n")
	newText := []byte("// hx@main\nfn main() {}\n")

	prev, err := reg.Parse(ctx, grammar.LanguageRust, oldText)
	require.NoError(t, err)

	edits := []sitter.EditInput{{
		StartIndex:  0,
		OldEndIndex: 0,
		NewEndIndex: 11,
		StartPoint:  sitter.Point{Row: 0, Column: 0},
		OldEndPoint: sitter.Point{Row: 0, Column: 0},
		NewEndPoint: sitter.Point{Row: 1, Column: 0},
	}}
	incremental, err := reg.Reparse(ctx, grammar.LanguageRust, prev, edits, newText)
	require.NoError(t, err)

	full, err := reg.Parse(ctx, grammar.LanguageRust, newText)
	require.NoError(t, err)
	require.Equal(t, full.RootNode().String(), incremental.RootNode().String())
}

func TestReparseWithoutPreviousTree(t *testing.T) {
	reg := grammar.NewRegistry()
	ctx := context.Background()

	text := []byte("fn main() {}\n")
	tree, err := reg.Reparse(ctx, grammar.LanguageRust, nil, nil, text)
	require.NoError(t, err)

	full, err := reg.Parse(ctx, grammar.LanguageRust, text)
	require.NoError(t, err)
	require.Equal(t, full.RootNode().String(), tree.RootNode().String())
}

func TestReparseNonIncrementalBinding(t *testing.T) {
	reg := grammar.NewRegistry()
	reg.Register(grammar.LanguageRust, rust.GetLanguage(), false)
	ctx := context.Background()

	oldText := []byte("fn main() {}\n")
	newText := []byte("fn other() {}\n")

	prev, err := reg.Parse(ctx, grammar.LanguageRust, oldText)
	require.NoError(t, err)

	// The binding opts out of tree reuse, so the edits are ignored and the
	// result must match a clean parse of the new text.
	incremental, err := reg.Reparse(ctx, grammar.LanguageRust, prev, nil, newText)
	require.NoError(t, err)

	full, err := reg.Parse(ctx, grammar.LanguageRust, newText)
	require.NoError(t, err)
	require.Equal(t, full.RootNode().String(), incremental.RootNode().String())
}

func TestBackendLanguage(t *testing.T) {
	tests := []struct {
		name string
		want grammar.Language
		ok   bool
	}{
		{"rust", grammar.LanguageRust, true},
		{"python", grammar.LanguagePython, true},
		{"go", grammar.LanguageGo, true},
		{"java", grammar.LanguageUnknown, false},
		{"", grammar.LanguageUnknown, false},
	}
	for _, tt := range tests {
		got, ok := grammar.BackendLanguage(tt.name)
		require.Equal(t, tt.ok, ok, "BackendLanguage(%q)", tt.name)
		require.Equal(t, tt.want, got, "BackendLanguage(%q)", tt.name)
	}
}
