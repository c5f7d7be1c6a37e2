// Package ingest downloads the fixed set of raw crash-record files from the
// remote object store into the local raw data directory.
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/roadsafe/crash-cli/internal/fetcher"
)

// Options configures one ingestion run.
type Options struct {
	// BaseURL is the object store prefix for bare file names in Files.
	BaseURL string
	// Files are the source file names or absolute URLs to download.
	Files []string
	// RawDir is the destination directory.
	RawDir string
	// ConfirmCreate is called when RawDir does not exist. Returning false
	// aborts the run. Nil means create without asking.
	ConfirmCreate func(dir string) (bool, error)
}

// Result summarizes a completed ingestion run.
type Result struct {
	// Files are the CSV files now present in the raw directory, one entry
	// per downloaded source (archives and workbooks are unpacked).
	Files []string
	// Bytes is the total number of bytes downloaded.
	Bytes int64
}

// Run downloads every configured source file in order. Any failure aborts the
// run; files downloaded before the failure are left in place.
func Run(ctx context.Context, resolver fetcher.Resolver, opts Options) (*Result, error) {
	if len(opts.Files) == 0 {
		return nil, eris.New("ingest: no source files configured")
	}

	if err := ensureDir(opts.RawDir, opts.ConfirmCreate); err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("raw_dir", opts.RawDir))
	result := &Result{}

	for _, name := range opts.Files {
		url := sourceURL(opts.BaseURL, name)
		dest := filepath.Join(opts.RawDir, filepath.Base(name))

		f, err := resolver.For(url)
		if err != nil {
			return nil, err
		}

		log.Info("ingest: downloading", zap.String("url", url))
		n, err := f.DownloadToFile(ctx, url, dest)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: download %s", url)
		}
		result.Bytes += n

		files, err := unpack(dest, opts.RawDir)
		if err != nil {
			return nil, err
		}
		result.Files = append(result.Files, files...)

		log.Info("ingest: file ready",
			zap.String("file", filepath.Base(name)),
			zap.Int64("bytes", n),
		)
	}

	return result, nil
}

// sourceURL resolves a configured entry to a full URL.
func sourceURL(baseURL, name string) string {
	if strings.Contains(name, "://") {
		return name
	}
	return strings.TrimRight(baseURL, "/") + "/" + name
}

// ensureDir creates dir if needed, going through confirm when provided.
func ensureDir(dir string, confirm func(string) (bool, error)) error {
	if dir == "" {
		return eris.New("ingest: raw dir not configured")
	}
	if _, err := os.Stat(dir); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return eris.Wrapf(err, "ingest: stat %s", dir)
	}

	if confirm != nil {
		ok, err := confirm(dir)
		if err != nil {
			return eris.Wrap(err, "ingest: confirm directory creation")
		}
		if !ok {
			return eris.Errorf("ingest: directory %s not created, aborting", dir)
		}
	}

	return eris.Wrapf(os.MkdirAll(dir, 0o755), "ingest: create %s", dir)
}

// unpack normalizes a downloaded file to CSV form: ZIP archives are extracted
// and removed, XLSX workbooks converted and removed, CSVs kept as-is.
func unpack(path, rawDir string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		extracted, err := fetcher.ExtractZIP(path, rawDir)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: extract %s", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, eris.Wrapf(err, "ingest: remove archive %s", path)
		}
		return extracted, nil
	case ".xlsx":
		csvPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".csv"
		if err := fetcher.ConvertXLSXToCSV(path, csvPath, fetcher.XLSXOptions{}); err != nil {
			return nil, eris.Wrapf(err, "ingest: convert %s", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, eris.Wrapf(err, "ingest: remove workbook %s", path)
		}
		return []string{csvPath}, nil
	default:
		return []string{path}, nil
	}
}
