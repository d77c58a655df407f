package tags

import (
	"regexp"
	"strings"

	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

// Role distinguishes where a tag occurrence was found.
type Role int

const (
	// RoleReference is an hx-lsp attribute value in a template.
	RoleReference Role = iota
	// RoleDefinition is an hx@ marker in a backend or script comment.
	RoleDefinition
)

func (r Role) String() string {
	if r == RoleDefinition {
		return "definition"
	}
	return "reference"
}

// Tag is a single occurrence of a tag identifier in a document. Identifiers
// are workspace-global: the same name in different documents refers to the
// same logical tag.
type Tag struct {
	Name  string
	Role  Role
	URI   protocol.DocumentURI
	Range protocol.Range

	// Implementation marks a definition found in the configured backend
	// language, as opposed to a script-side definition.
	Implementation bool
}

func (t Tag) Location() protocol.Location {
	return protocol.Location{URI: t.URI, Range: t.Range}
}

// Marker is the comment prefix that introduces a tag definition.
const Marker = "hx@"

// AttributeName is the template attribute whose value references tags.
const AttributeName = "hx-lsp"

var markerPattern = regexp.MustCompile(`hx@([A-Za-z0-9_-]+)`)

// span is a substring location, in bytes relative to the scanned text.
type span struct {
	name       string
	start, end int
}

// scanMarkers finds every hx@<ident> marker in a comment's text and returns
// the identifier spans. A comment may carry any number of markers; each one
// is an independent occurrence.
func scanMarkers(text string) []span {
	var out []span
	for _, m := range markerPattern.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, span{
			name:  text[m[2]:m[3]],
			start: m[2],
			end:   m[3],
		})
	}
	return out
}

// scanList splits an hx-lsp attribute value into identifier spans. Values
// hold one identifier or several separated by commas; surrounding spaces are
// not part of the identifier. Empty segments yield nothing.
func scanList(value string) []span {
	var out []span
	offset := 0
	for {
		seg := value[offset:]
		comma := strings.IndexByte(seg, ',')
		end := offset + len(seg)
		if comma >= 0 {
			end = offset + comma
		}
		name := value[offset:end]
		trimmed := strings.TrimSpace(name)
		if trimmed != "" {
			start := offset + strings.Index(name, trimmed)
			out = append(out, span{
				name:  trimmed,
				start: start,
				end:   start + len(trimmed),
			})
		}
		if comma < 0 {
			return out
		}
		offset = end + 1
	}
}

func compareLocations(a, b protocol.Location) int {
	if c := strings.Compare(string(a.URI), string(b.URI)); c != 0 {
		return c
	}
	return comparePositions(a.Range.Start, b.Range.Start)
}

func comparePositions(a, b protocol.Position) int {
	if a.Line != b.Line {
		if a.Line < b.Line {
			return -1
		}
		return 1
	}
	if a.Character != b.Character {
		if a.Character < b.Character {
			return -1
		}
		return 1
	}
	return 0
}
