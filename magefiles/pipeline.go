//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Pipeline groups the targets that run the CLI stages with default directories.
type Pipeline mg.Namespace

func runBin(args ...string) error {
	return sh.RunV(filepath.Join(binDir, binName), args...)
}

// Transcribe transcribes audio_files/ into transcripts_output/.
func (Pipeline) Transcribe() error {
	mg.Deps(Init, Build)
	return runBin("transcribe")
}

// Convert renders transcripts_output/ into PDFs under output/.
func (Pipeline) Convert() error {
	mg.Deps(Init, Build)
	return runBin("convert")
}

// Catalog indexes transcripts_output/ into catalog/index/.
func (Pipeline) Catalog() error {
	mg.Deps(Init, Build)
	return runBin("catalog", "store")
}

// All runs transcription, conversion and indexing in order.
func (p Pipeline) All() {
	mg.SerialDeps(p.Transcribe, p.Convert, p.Catalog)
}
