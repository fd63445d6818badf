package instrument

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the layout of an instruments definition file
type File struct {
	Instruments []Definition `yaml:"instruments"`
}

// LoadDefinitions decodes a YAML instruments file, rejecting unknown fields
func LoadDefinitions(r io.Reader) ([]Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	seen := make(map[string]struct{}, len(f.Instruments))
	for _, d := range f.Instruments {
		if _, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate instrument %s", ErrInvalidDefinition, d.ID)
		}
		seen[d.ID] = struct{}{}
	}
	return f.Instruments, nil
}

// LoadProviderFile builds a MemoryProvider from the instruments file at path
func LoadProviderFile(path string) (*MemoryProvider, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open instruments file: %w", err)
	}
	defer fh.Close()

	defs, err := LoadDefinitions(fh)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return NewMemoryProviderFromDefinitions(defs)
}
