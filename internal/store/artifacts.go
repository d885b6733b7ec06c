// Package store persists pipeline inputs and outputs: persona context
// files, generated JSON documents, and a run ledger.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/personacards/backend/internal/fault"
	"github.com/personacards/backend/internal/schema"
)

// LoadContext reads a persona context file. The shape is free-form;
// whatever the file holds is what the prompt gets.
func LoadContext(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.New(fault.FatalConfig, "read persona context %s: %v", path, err)
	}
	var ctx map[string]any
	if err := json.Unmarshal(raw, &ctx); err != nil {
		return nil, fault.New(fault.FatalParse, "parse persona context %s: %v", path, err)
	}
	return ctx, nil
}

// LoadDocument reads a previously persisted generation artifact.
func LoadDocument(path string) (schema.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.New(fault.FatalConfig, "read artifact %s: %v", path, err)
	}
	var doc schema.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fault.New(fault.FatalParse, "parse artifact %s: %v", path, err)
	}
	return doc, nil
}

// WriteDocument persists a document as indented JSON. The write is
// atomic: a partially written file never lands at path.
func WriteDocument(path string, doc schema.Document) error {
	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fault.New(fault.FatalOutput, "encode artifact %s: %v", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fault.New(fault.FatalConfig, "create output dir %s: %v", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return fault.New(fault.FatalConfig, "stage artifact %s: %v", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(encoded, '\n')); err != nil {
		tmp.Close()
		return fault.New(fault.FatalConfig, "write artifact %s: %v", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fault.New(fault.FatalConfig, "write artifact %s: %v", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fault.New(fault.FatalConfig, "write artifact %s: %v", path, err)
	}
	return nil
}

// ProfileOutputPath derives the stage-1 artifact path from the persona
// input: personas/kirana_shop.json writes <dir>/kirana_shop_output.json.
func ProfileOutputPath(outputDir, personaPath string) string {
	stem := strings.TrimSuffix(filepath.Base(personaPath), filepath.Ext(personaPath))
	return filepath.Join(outputDir, stem+"_output.json")
}
