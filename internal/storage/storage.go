// Package storage is the filesystem capability used by the pipeline.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
)

// Storage reads and writes pipeline files.
type Storage interface {
	Exists(path string) (bool, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	CreateDirectory(path string) error
	HashFile(path string, sampleBytes int) (string, error)
	Open(path string) (io.ReadCloser, error)
}

// FS implements Storage on an afero filesystem.
type FS struct {
	fs afero.Fs
}

// New returns a Storage backed by fs.
func New(fs afero.Fs) *FS {
	return &FS{fs: fs}
}

// NewOS returns a Storage backed by the host filesystem.
func NewOS() *FS {
	return New(afero.NewOsFs())
}

// Fs exposes the underlying filesystem for directory walks.
func (s *FS) Fs() afero.Fs { return s.fs }

func (s *FS) Exists(path string) (bool, error) {
	ok, err := afero.Exists(s.fs, path)
	if err != nil {
		return false, eris.Wrapf(err, "storage: stat %s", path)
	}
	return ok, nil
}

func (s *FS) ReadFile(path string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, eris.Wrapf(err, "storage: read %s", path)
	}
	return data, nil
}

// WriteFile writes data to a temp file beside path and renames it into
// place, so readers never see a partial file.
func (s *FS) WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "storage: mkdir %s", dir)
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "storage: temp file for %s", path)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()          //nolint:errcheck
		s.fs.Remove(tmpName) //nolint:errcheck
		return eris.Wrapf(err, "storage: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName) //nolint:errcheck
		return eris.Wrapf(err, "storage: close %s", path)
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		s.fs.Remove(tmpName) //nolint:errcheck
		return eris.Wrapf(err, "storage: rename %s", path)
	}
	return nil
}

func (s *FS) CreateDirectory(path string) error {
	if err := s.fs.MkdirAll(path, 0o755); err != nil {
		return eris.Wrapf(err, "storage: mkdir %s", path)
	}
	return nil
}

// HashFile returns the hex SHA-256 of at most the first sampleBytes of the
// file. A non-positive sampleBytes hashes the whole file.
func (s *FS) HashFile(path string, sampleBytes int) (string, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "storage: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var r io.Reader = f
	if sampleBytes > 0 {
		r = io.LimitReader(f, int64(sampleBytes))
	}
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", eris.Wrapf(err, "storage: hash %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *FS) Open(path string) (io.ReadCloser, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(err, "storage: %s does not exist", path)
		}
		return nil, eris.Wrapf(err, "storage: open %s", path)
	}
	return f, nil
}
