package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPersonasEmbeddedDefault(t *testing.T) {
	pool, err := LoadPersonas("")
	require.NoError(t, err)
	require.NotEmpty(t, pool)
	for _, p := range pool {
		assert.NotEmpty(t, p.Persona)
		assert.NotEmpty(t, p.Style)
	}
}

func TestLoadPersonasFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`personas:
  - persona: 테스트용 참가자
    style: dry
`), 0o644))

	pool, err := LoadPersonas(path)
	require.NoError(t, err)
	require.Len(t, pool, 1)
	assert.Equal(t, "테스트용 참가자", pool[0].Persona)
	assert.Equal(t, "dry", pool[0].Style)
}

func TestLoadPersonasRejectsEmptyPool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	require.NoError(t, os.WriteFile(path, []byte("personas: []\n"), 0o644))

	_, err := LoadPersonas(path)
	assert.Error(t, err)

	_, err = LoadPersonas(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
