// Package main is the single-binary entrypoint for avatargw.
package main

import "github.com/avatarstudio/avatargw/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
