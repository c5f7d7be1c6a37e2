// Package archive keeps timestamped copies of the model artifact so a bad
// retrain can be rolled back to the previous model.
package archive

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	prefix     = "trained_model_"
	suffix     = ".gob"
	timeLayout = "20060102T150405"
)

// Entry is one archived model.
type Entry struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Bytes      int64     `json:"bytes"`
	ArchivedAt time.Time `json:"archived_at"`
}

// Backup copies the current model into the archive directory under a
// timestamped name and returns the archive entry name.
func Backup(modelPath, archiveDir string) (string, error) {
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "archive: create %s", archiveDir)
	}

	stamp := time.Now().UTC().Format(timeLayout)
	name := prefix + stamp + suffix
	// Two backups in one second would share a timestamp.
	for n := 1; ; n++ {
		if _, err := os.Stat(filepath.Join(archiveDir, name)); os.IsNotExist(err) {
			break
		}
		name = prefix + stamp + "_" + strconv.Itoa(n) + suffix
	}

	if err := copyFile(modelPath, filepath.Join(archiveDir, name)); err != nil {
		return "", err
	}

	zap.L().Info("archive: model backed up", zap.String("name", name))
	return name, nil
}

// Restore installs an archived model as the current one. An empty name
// restores the most recent archive.
func Restore(archiveDir, modelPath, name string) (string, error) {
	if name == "" {
		entries, err := List(archiveDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", eris.Errorf("archive: no archived models in %s", archiveDir)
		}
		name = entries[len(entries)-1].Name
	}

	src := filepath.Join(archiveDir, name)
	if _, err := os.Stat(src); err != nil {
		return "", eris.Wrapf(err, "archive: archived model %s", src)
	}
	if err := copyFile(src, modelPath); err != nil {
		return "", err
	}

	zap.L().Info("archive: model restored", zap.String("name", name))
	return name, nil
}

// List returns the archived models sorted oldest first.
func List(archiveDir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(archiveDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "archive: read %s", archiveDir)
	}

	var entries []Entry
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix)
		// Collision backups carry a _N suffix after the timestamp.
		stamp, _, _ = strings.Cut(stamp, "_")
		at, err := time.Parse(timeLayout, stamp)
		if err != nil {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, eris.Wrapf(err, "archive: stat %s", name)
		}
		entries = append(entries, Entry{
			Name:       name,
			Path:       filepath.Join(archiveDir, name),
			Bytes:      info.Size(),
			ArchivedAt: at,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// copyFile writes dst atomically so a failed copy never clobbers it.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "archive: open %s", src)
	}
	defer in.Close() //nolint:errcheck

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".archive-*")
	if err != nil {
		return eris.Wrap(err, "archive: create temp file")
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "archive: copy %s", src)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrap(err, "archive: close temp file")
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "archive: install %s", dst)
	}
	return nil
}
