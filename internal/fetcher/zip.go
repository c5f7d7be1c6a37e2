package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIP extracts all regular files from a ZIP archive to the destination
// directory, flattening any directory structure inside the archive. Returns
// the list of extracted file paths.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var extracted []string
	for _, f := range r.File {
		path, err := extractZIPEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		if path != "" {
			extracted = append(extracted, path)
		}
	}

	return extracted, nil
}

func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	if f.FileInfo().IsDir() {
		return "", nil
	}

	name := filepath.Base(f.Name)
	if name == "" || strings.HasPrefix(name, ".") {
		return "", nil
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrapf(err, "zip: open entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	dest := filepath.Join(destDir, name)
	out, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrapf(err, "zip: create %s", dest)
	}

	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return "", eris.Wrapf(err, "zip: extract %s", f.Name)
	}
	if err := out.Close(); err != nil {
		return "", eris.Wrapf(err, "zip: close %s", dest)
	}

	return dest, nil
}
