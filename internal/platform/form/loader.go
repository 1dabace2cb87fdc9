package form

import (
	"bytes"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"
)

type document struct {
	ID       string    `yaml:"id"`
	Title    string    `yaml:"title"`
	Version  string    `yaml:"version"`
	Sections []Section `yaml:"sections"`
}

// Parse decodes a YAML schema document, rejecting unknown keys, and lints it.
func Parse(data []byte) (*Schema, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("form: decode schema: %w", err)
	}
	s := &Schema{ID: doc.ID, Title: doc.Title, Version: doc.Version, Sections: doc.Sections}
	if err := s.build(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads and parses the schema file at path inside fsys.
func Load(fsys fs.FS, path string) (*Schema, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("form: read %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
