package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeField(t *testing.T) {
	assert.Equal(t, "Departement", normalizeField("  Département "))
	assert.Equal(t, "Num_Acc", normalizeField("Num_Acc"))
	assert.Equal(t, "", normalizeField("   "))
}

func TestParseInt(t *testing.T) {
	assert.Equal(t, 7, parseInt("7", 0))
	assert.Equal(t, -1, parseInt("", -1))
	assert.Equal(t, -1, parseInt(".", -1))
	assert.Equal(t, 0, parseInt("abc", 0))
	assert.Equal(t, 12, parseInt(" 12 ", 0))
}

func TestParseFloat(t *testing.T) {
	assert.InDelta(t, 48.6, parseFloat("48,60", 0), 1e-9)
	assert.InDelta(t, -0.58, parseFloat("-0.58", 0), 1e-9)
	assert.InDelta(t, -1, parseFloat("", -1), 1e-9)
}

func TestParseHour(t *testing.T) {
	assert.Equal(t, 17, parseHour("17:05"))
	assert.Equal(t, 9, parseHour("09:30"))
	assert.Equal(t, 23, parseHour("2310"))
	assert.Equal(t, 0, parseHour(""))
}

func TestParseDep(t *testing.T) {
	assert.Equal(t, 77, parseDep("77"))
	assert.Equal(t, 20, parseDep("2A"))
	assert.Equal(t, 20, parseDep("2b"))
	assert.Equal(t, 974, parseDep("974"))
}

func TestBinarizeSeverity(t *testing.T) {
	assert.Equal(t, 0, binarizeSeverity(1), "unharmed")
	assert.Equal(t, 1, binarizeSeverity(2), "killed")
	assert.Equal(t, 1, binarizeSeverity(3), "hospitalized")
	assert.Equal(t, 0, binarizeSeverity(4), "light injury")
}

func TestInMetropole(t *testing.T) {
	assert.True(t, inMetropole(2.89, 48.6), "Paris region")
	assert.True(t, inMetropole(0, 0), "missing coordinate kept")
	assert.False(t, inMetropole(55.3, -21.1), "Reunion island")
	assert.False(t, inMetropole(-61.5, 16.2), "Guadeloupe")
}
