//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var Aliases = map[string]any{
	"install": Install.Release,
}

type Install mg.Namespace

// The tree-sitter grammars are cgo bindings, so CGO stays enabled.
func (Install) Release() error {
	return sh.RunV(mg.GoCmd(), "install", "-ldflags", "-w -s", "-trimpath", "./cmd/hxls")
}

func (Install) Debug() error {
	return sh.RunV(mg.GoCmd(), "install", "-gcflags", "all=-N -l", "./cmd/hxls")
}

func Test() error {
	return sh.RunV(mg.GoCmd(), "test", "-race", "./...")
}
