package lsp

import (
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
	sitter "github.com/smacker/go-tree-sitter"
)

// pointForOffset computes the tree-sitter point (row, byte column) for a byte
// offset in content. Tree-sitter columns are byte-based, unlike protocol
// positions, so this cannot go through the mapper.
func pointForOffset(content []byte, offset int) sitter.Point {
	if offset > len(content) {
		offset = len(content)
	}
	var p sitter.Point
	lineStart := 0
	for i := 0; i < offset; i++ {
		if content[i] == '\n' {
			p.Row++
			lineStart = i + 1
		}
	}
	p.Column = uint32(offset - lineStart)
	return p
}

func positionInRange(pos protocol.Position, rng protocol.Range) bool {
	return !positionBefore(pos, rng.Start) && !positionBefore(rng.End, pos)
}

func positionBefore(a, b protocol.Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Character < b.Character
}
