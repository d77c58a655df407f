package tags

import (
	"fmt"

	"github.com/hx-lsp/hxls/pkg/grammar"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
	sitter "github.com/smacker/go-tree-sitter"
)

// attributeQuery matches template attributes with a (possibly quoted) value.
// The hx-lsp name check happens in Go; predicates are avoided so the query
// stays portable across grammar versions.
const attributeQuery = `
(attribute
  (attribute_name) @name
  [
    (quoted_attribute_value (attribute_value) @value)
    (attribute_value) @value
  ])
`

// commentQuery captures every comment node. Rust splits comments into two
// node kinds; the other grammars use a single kind.
const (
	commentQuery     = `(comment) @comment`
	rustCommentQuery = `[(line_comment) (block_comment)] @comment`
)

// Extractor walks a document's syntax tree and yields the tag occurrences in
// it: references from template hx-lsp attributes, definitions from backend
// and script comments. Extraction is a best-effort scan with no accumulated
// state; the same tree always yields the same tags.
type Extractor struct {
	backend grammar.Language
	queries map[grammar.Language]*sitter.Query
}

// NewExtractor compiles the per-language queries. backend marks which
// language kind's definitions carry the implementation marker. Query
// compilation failure is a startup configuration error.
func NewExtractor(reg *grammar.Registry, backend grammar.Language) (*Extractor, error) {
	e := &Extractor{
		backend: backend,
		queries: map[grammar.Language]*sitter.Query{},
	}
	patterns := map[grammar.Language]string{
		grammar.LanguageTemplate:   attributeQuery,
		grammar.LanguageGo:         commentQuery,
		grammar.LanguagePython:     commentQuery,
		grammar.LanguageRust:       rustCommentQuery,
		grammar.LanguageJavaScript: commentQuery,
		grammar.LanguageTypeScript: commentQuery,
	}
	for kind, pattern := range patterns {
		lang, err := reg.Language(kind)
		if err != nil {
			return nil, err
		}
		q, err := sitter.NewQuery([]byte(pattern), lang)
		if err != nil {
			return nil, fmt.Errorf("compiling %s tag query: %w", kind, err)
		}
		e.queries[kind] = q
	}
	return e, nil
}

// Extract returns the tags found in one document's current tree. The mapper
// carries the document's identity and content and translates byte offsets to
// editor positions.
func (e *Extractor) Extract(kind grammar.Language, root *sitter.Node, m *protocol.Mapper) []Tag {
	q, ok := e.queries[kind]
	if !ok || root == nil {
		return nil
	}
	if kind == grammar.LanguageTemplate {
		return e.extractReferences(q, root, m)
	}
	return e.extractDefinitions(kind, q, root, m)
}

func (e *Extractor) extractReferences(q *sitter.Query, root *sitter.Node, m *protocol.Mapper) []Tag {
	var out []Tag
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, root)
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		var name, value *sitter.Node
		for _, c := range match.Captures {
			switch q.CaptureNameForId(c.Index) {
			case "name":
				name = c.Node
			case "value":
				value = c.Node
			}
		}
		if name == nil || value == nil || name.Content(m.Content) != AttributeName {
			continue
		}
		for _, sp := range scanList(value.Content(m.Content)) {
			rng, err := offsetRange(m, value.StartByte(), sp)
			if err != nil {
				continue
			}
			out = append(out, Tag{
				Name:  sp.name,
				Role:  RoleReference,
				URI:   m.URI,
				Range: rng,
			})
		}
	}
	return out
}

func (e *Extractor) extractDefinitions(kind grammar.Language, q *sitter.Query, root *sitter.Node, m *protocol.Mapper) []Tag {
	var out []Tag
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, root)
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range match.Captures {
			for _, sp := range scanMarkers(c.Node.Content(m.Content)) {
				rng, err := offsetRange(m, c.Node.StartByte(), sp)
				if err != nil {
					continue
				}
				out = append(out, Tag{
					Name:           sp.name,
					Role:           RoleDefinition,
					URI:            m.URI,
					Range:          rng,
					Implementation: kind == e.backend,
				})
			}
		}
	}
	return out
}

func offsetRange(m *protocol.Mapper, base uint32, sp span) (protocol.Range, error) {
	return m.OffsetRange(int(base)+sp.start, int(base)+sp.end)
}
