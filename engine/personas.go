package engine

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed personas.yaml
var defaultPersonaFile []byte

// PersonaSpec is one entry of the persona pool handed to bots that join
// without a persona of their own.
type PersonaSpec struct {
	Persona string `yaml:"persona"`
	Style   string `yaml:"style"`
}

type personaFile struct {
	Personas []PersonaSpec `yaml:"personas"`
}

// LoadPersonas reads the persona pool from path, or the embedded default
// pool when path is empty.
func LoadPersonas(path string) ([]PersonaSpec, error) {
	data := defaultPersonaFile
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read persona file: %w", err)
		}
	}
	var f personaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse persona file: %w", err)
	}
	if len(f.Personas) == 0 {
		return nil, fmt.Errorf("persona pool is empty")
	}
	return f.Personas, nil
}
