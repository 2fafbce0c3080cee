// Package main generates markdown reference documentation from the
// workbench command tree and configuration catalogue.
//
// Usage:
//
//	go run ./scripts/gendocs -gen=cli -outdir=docs/cli
//	go run ./scripts/gendocs -gen=config -outdir=docs/reference
//	go run ./scripts/gendocs -gen=all
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
)

type generator struct {
	name   string
	subdir string
	run    func(outDir string) error
}

var generators = []generator{
	{name: "cli", subdir: "cli", run: generateCLIDocs},
	{name: "config", subdir: "reference", run: generateConfigDocs},
}

func main() {
	gen := flag.String("gen", "all", "what to generate: cli, config, all")
	outDir := flag.String("outdir", "", "output directory (only with a single -gen target)")
	flag.Parse()

	selected := selectGenerators(*gen)
	if len(selected) == 0 {
		log.Fatalf("unknown -gen value: %s (use: cli, config, all)", *gen)
	}
	if *outDir != "" && len(selected) > 1 {
		log.Fatalf("-outdir needs a single -gen target")
	}

	root, err := findProjectRoot()
	if err != nil {
		log.Fatalf("failed to find project root: %v", err)
	}

	for _, g := range selected {
		dir := *outDir
		if dir == "" {
			dir = filepath.Join(root, "docs", g.subdir)
		}
		if err := g.run(dir); err != nil {
			log.Fatalf("%s docs: %v", g.name, err)
		}
	}
}

func selectGenerators(name string) []generator {
	if name == "all" {
		return generators
	}
	for _, g := range generators {
		if strings.EqualFold(g.name, name) {
			return []generator{g}
		}
	}
	return nil
}

// findProjectRoot walks up from the working directory to the go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
