package geo

import (
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestShapefile writes a polygon shapefile with one INSEE_DEP attribute
// per shape.
func writeTestShapefile(t *testing.T, zones map[string][][]shp.Point) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zones.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("INSEE_DEP", 10)}))

	row := 0
	for code, rings := range zones {
		w.Write((*shp.Polygon)(shp.NewPolyLine(rings)))
		require.NoError(t, w.WriteAttribute(row, 0, code))
		row++
	}
	w.Close()
	return path
}

func square(minX, minY, maxX, maxY float64) [][]shp.Point {
	return [][]shp.Point{{
		{X: minX, Y: minY}, {X: maxX, Y: minY},
		{X: maxX, Y: maxY}, {X: minX, Y: maxY},
		{X: minX, Y: minY},
	}}
}

func TestLoadIndex_AndLookup(t *testing.T) {
	path := writeTestShapefile(t, map[string][][]shp.Point{
		"75": square(2.2, 48.8, 2.5, 48.95),
		"77": square(2.4, 48.1, 3.6, 49.1),
	})

	idx, err := LoadIndex(path, "INSEE_DEP")
	require.NoError(t, err)

	assert.Equal(t, "77", idx.Zone(2.89, 48.6))
	// Inside both boxes: the smaller (75) wins.
	assert.Equal(t, "75", idx.Zone(2.45, 48.9))
	// Outside everything.
	assert.Equal(t, "", idx.Zone(-4.5, 48.4))
}

func TestLoadIndex_FieldCaseInsensitive(t *testing.T) {
	path := writeTestShapefile(t, map[string][][]shp.Point{
		"33": square(-1.3, 44.2, 0.3, 45.6),
	})

	idx, err := LoadIndex(path, "insee_dep")
	require.NoError(t, err)
	assert.Equal(t, "33", idx.Zone(-0.58, 44.84))
}

func TestLoadIndex_MissingField(t *testing.T) {
	path := writeTestShapefile(t, map[string][][]shp.Point{
		"75": square(2.2, 48.8, 2.5, 48.95),
	})

	_, err := LoadIndex(path, "NOPE")
	require.Error(t, err)
}

func TestLoadIndex_MissingFile(t *testing.T) {
	_, err := LoadIndex(filepath.Join(t.TempDir(), "missing.shp"), "INSEE_DEP")
	require.Error(t, err)
}
