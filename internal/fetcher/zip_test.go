package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestZIP(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.zip")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	for name, content := range entries {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtractZIP(t *testing.T) {
	zipPath := writeTestZIP(t, map[string]string{
		"usagers-2021.csv":   "Num_Acc;catu\n202100000001;1\n",
		"vehicules-2021.csv": "Num_Acc;catv\n202100000001;7\n",
	})

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	require.Len(t, extracted, 2)

	data, err := os.ReadFile(filepath.Join(destDir, "usagers-2021.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "202100000001")
}

func TestExtractZIP_FlattensNestedPaths(t *testing.T) {
	zipPath := writeTestZIP(t, map[string]string{
		"2021/export/lieux-2021.csv": "Num_Acc;catr\n",
	})

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	require.Len(t, extracted, 1)
	assert.Equal(t, filepath.Join(destDir, "lieux-2021.csv"), extracted[0])
}

func TestExtractZIP_MissingArchive(t *testing.T) {
	_, err := ExtractZIP(filepath.Join(t.TempDir(), "nope.zip"), t.TempDir())
	require.Error(t, err)
}

func TestConvertXLSXToCSV(t *testing.T) {
	// Build a small workbook through the same library the reader uses.
	xlsxPath := writeTestXLSX(t, [][]string{
		{"Num_Acc", "jour", "mois"},
		{"202100000001", "7", "12"},
	})

	csvPath := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, ConvertXLSXToCSV(xlsxPath, csvPath, XLSXOptions{}))

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, "Num_Acc;jour;mois\n202100000001;7;12\n", string(data))
}
