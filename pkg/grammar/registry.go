package grammar

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/html"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ErrUnknownLanguage is returned when a parse is requested for a language
// kind with no registered grammar. This is a configuration problem and is
// only expected to surface once, at startup.
var ErrUnknownLanguage = fmt.Errorf("no grammar registered for language")

type binding struct {
	language *sitter.Language

	// incremental marks whether Reparse may reuse the previous tree. A
	// binding without incremental support degrades to a full parse.
	incremental bool
}

// Registry holds one grammar per supported language kind behind a uniform
// parse/re-parse interface. Parser instances are created per call; tree-sitter
// parsers are stateful and not safe for concurrent use, the languages are.
type Registry struct {
	bindings map[Language]binding
}

// NewRegistry returns a registry with all built-in grammars bound.
func NewRegistry() *Registry {
	r := &Registry{bindings: map[Language]binding{}}
	r.Register(LanguageTemplate, html.GetLanguage(), true)
	r.Register(LanguageGo, golang.GetLanguage(), true)
	r.Register(LanguagePython, python.GetLanguage(), true)
	r.Register(LanguageRust, rust.GetLanguage(), true)
	r.Register(LanguageJavaScript, javascript.GetLanguage(), true)
	r.Register(LanguageTypeScript, typescript.GetLanguage(), true)
	return r
}

// Register binds a grammar to a language kind, replacing any previous
// binding. Not safe to call concurrently with Parse/Reparse.
func (r *Registry) Register(kind Language, lang *sitter.Language, incremental bool) {
	r.bindings[kind] = binding{language: lang, incremental: incremental}
}

// Language returns the bound grammar for a language kind.
func (r *Registry) Language(kind Language) (*sitter.Language, error) {
	b, ok := r.bindings[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLanguage, kind)
	}
	return b.language, nil
}

// Parse runs a full parse of text. Malformed input produces a tree containing
// error nodes, never an error; the only error condition is an unbound kind.
func (r *Registry) Parse(ctx context.Context, kind Language, text []byte) (*sitter.Tree, error) {
	b, ok := r.bindings[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLanguage, kind)
	}
	return parse(ctx, b.language, nil, text)
}

// Reparse re-parses text after the given ordered edits were applied to the
// text that produced prev. The edits are recorded on the previous tree so the
// parser can reuse unaffected subtrees. If prev is nil, or the binding has no
// incremental support, Reparse degrades to a full parse of text.
func (r *Registry) Reparse(ctx context.Context, kind Language, prev *sitter.Tree, edits []sitter.EditInput, text []byte) (*sitter.Tree, error) {
	b, ok := r.bindings[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLanguage, kind)
	}
	if prev == nil || !b.incremental {
		return parse(ctx, b.language, nil, text)
	}
	for _, e := range edits {
		prev.Edit(e)
	}
	return parse(ctx, b.language, prev, text)
}

func parse(ctx context.Context, lang *sitter.Language, prev *sitter.Tree, text []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(ctx, prev, text)
	if err != nil {
		// ParseCtx fails only on context cancellation.
		return nil, err
	}
	return tree, nil
}
