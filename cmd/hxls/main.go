package main

import "github.com/hx-lsp/hxls/pkg/hxls"

func main() {
	hxls.Execute()
}
