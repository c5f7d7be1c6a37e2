package ingest

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadsafe/crash-cli/internal/fetcher"
)

func testResolver() fetcher.Resolver {
	return fetcher.Resolver{
		HTTP: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: 5 * time.Second}),
	}
}

func TestRun_DownloadsConfiguredFiles(t *testing.T) {
	files := map[string]string{
		"/accidents/caracteristiques-2021.csv": "Num_Acc;jour\n202100000001;7\n",
		"/accidents/lieux-2021.csv":            "Num_Acc;catr\n202100000001;3\n",
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	rawDir := filepath.Join(t.TempDir(), "raw")
	res, err := Run(context.Background(), testResolver(), Options{
		BaseURL: srv.URL + "/accidents",
		Files:   []string{"caracteristiques-2021.csv", "lieux-2021.csv"},
		RawDir:  rawDir,
	})
	require.NoError(t, err)
	require.Len(t, res.Files, 2)
	assert.Positive(t, res.Bytes)

	data, err := os.ReadFile(filepath.Join(rawDir, "caracteristiques-2021.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "202100000001")
}

func TestRun_ExtractsZIPSources(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zw := zip.NewWriter(w)
		entry, _ := zw.Create("usagers-2021.csv")
		_, _ = entry.Write([]byte("Num_Acc;catu\n202100000001;1\n"))
		_ = zw.Close()
	}))
	defer srv.Close()

	rawDir := filepath.Join(t.TempDir(), "raw")
	res, err := Run(context.Background(), testResolver(), Options{
		BaseURL: srv.URL,
		Files:   []string{"usagers-2021.zip"},
		RawDir:  rawDir,
	})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, filepath.Join(rawDir, "usagers-2021.csv"), res.Files[0])

	// The archive itself is removed after extraction.
	_, err = os.Stat(filepath.Join(rawDir, "usagers-2021.zip"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_AbortsOnMissingFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Run(context.Background(), testResolver(), Options{
		BaseURL: srv.URL,
		Files:   []string{"missing.csv"},
		RawDir:  filepath.Join(t.TempDir(), "raw"),
	})
	require.Error(t, err)
}

func TestRun_ConfirmCreateDeclined(t *testing.T) {
	_, err := Run(context.Background(), testResolver(), Options{
		BaseURL: "http://unused.example.com",
		Files:   []string{"x.csv"},
		RawDir:  filepath.Join(t.TempDir(), "raw"),
		ConfirmCreate: func(dir string) (bool, error) {
			return false, nil
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not created")
}

func TestRun_ConfirmCreateAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	rawDir := filepath.Join(t.TempDir(), "raw")
	asked := false
	_, err := Run(context.Background(), testResolver(), Options{
		BaseURL: srv.URL,
		Files:   []string{"x.csv"},
		RawDir:  rawDir,
		ConfirmCreate: func(dir string) (bool, error) {
			asked = true
			assert.Equal(t, rawDir, dir)
			return true, nil
		},
	})
	require.NoError(t, err)
	assert.True(t, asked)
}

func TestRun_NoFiles(t *testing.T) {
	_, err := Run(context.Background(), testResolver(), Options{RawDir: t.TempDir()})
	require.Error(t, err)
}

func TestSourceURL(t *testing.T) {
	assert.Equal(t, "https://bucket.example.com/a.csv", sourceURL("https://bucket.example.com/", "a.csv"))
	assert.Equal(t, "ftp://mirror.example.com/pub/a.csv", sourceURL("https://bucket.example.com", "ftp://mirror.example.com/pub/a.csv"))
}
