package models

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type modelFile struct {
	Models []Model `yaml:"models"`
}

// LoadModels reads model declarations from a YAML file.
// A missing file yields no models and no error.
func LoadModels(path string) ([]Model, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read models file: %w", err)
	}
	return ParseModels(bytes.NewReader(data))
}

func ParseModels(r io.Reader) ([]Model, error) {
	var f modelFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse models: %w", err)
	}

	for i := range f.Models {
		m := &f.Models[i]
		for j := range m.ForeignKeys {
			m.ForeignKeys[j].TableName = m.TableName
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		m.Sync, _ = ParseSyncMode(string(m.Sync))
	}
	return f.Models, nil
}
