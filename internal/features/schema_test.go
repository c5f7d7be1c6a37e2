package features

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSchema(t *testing.T) {
	s := DefaultSchema()
	require.Len(t, s.Features, 28)
	assert.Equal(t, "place", s.Features[0].Name)
	assert.Equal(t, "nb_vehicules", s.Features[27].Name)
}

func TestLoadSchemaEmptyPathReturnsDefault(t *testing.T) {
	s, err := LoadSchema("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSchema().Names(), s.Names())
}

func TestLoadSchemaFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	content := `features:
  - name: vma
  - name: atm
    optional: true
    default: 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := LoadSchema(path)
	require.NoError(t, err)
	require.Len(t, s.Features, 2)
	assert.Equal(t, []string{"vma", "atm"}, s.Names())
	assert.True(t, s.Features[1].Optional)
	assert.Equal(t, 1.0, s.Features[1].Default)
}

func TestLoadSchemaRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"empty":     "features: []\n",
		"unnamed":   "features:\n  - optional: true\n",
		"duplicate": "features:\n  - name: vma\n  - name: vma\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			_, err := LoadSchema(path)
			assert.Error(t, err)
		})
	}
}

func TestVectorOrdersBySchema(t *testing.T) {
	s := Schema{Features: []Feature{{Name: "a"}, {Name: "b"}, {Name: "c"}}}

	vec, err := s.Vector(map[string]float64{"c": 3, "a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, vec)
}

func TestVectorReportsAllMissingFields(t *testing.T) {
	s := Schema{Features: []Feature{{Name: "a"}, {Name: "b"}, {Name: "c"}}}

	_, err := s.Vector(map[string]float64{"b": 2})
	require.Error(t, err)

	var missing *MissingFieldsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"a", "c"}, missing.Fields)
	assert.Contains(t, err.Error(), "a, c")
}

func TestVectorAppliesOptionalDefaults(t *testing.T) {
	s := Schema{Features: []Feature{
		{Name: "vma"},
		{Name: "atm", Optional: true, Default: 1},
	}}

	vec, err := s.Vector(map[string]float64{"vma": 50})
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 1}, vec)
}
