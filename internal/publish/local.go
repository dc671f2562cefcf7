package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

// LocalDir writes artifacts into a directory. Files are written to a temp
// name first and renamed, so readers never see a partial report.
type LocalDir struct {
	dir string
}

func NewLocalDir(dir string) *LocalDir {
	return &LocalDir{dir: dir}
}

func (l *LocalDir) Publish(_ context.Context, a Artifact) (string, error) {
	if a.Name == "" || filepath.Base(a.Name) != a.Name {
		return "", errors.New("artifact name must be a plain file name")
	}
	path := filepath.Join(l.dir, a.Name)
	if err := atomicWriteFile(path, a.Data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return err
	}

	// Rename does not replace an existing file on Windows.
	if runtime.GOOS == "windows" {
		_ = os.Remove(path)
	}
	return os.Rename(tmpPath, path)
}
