package scratch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/wgdzlh/geovrt/utils"
)

// FS keeps entries as files in a private directory under root.
type FS struct {
	dir string
}

func NewFS(root string) (*FS, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	dir, err := utils.GetUniqSubDir(root)
	if err != nil {
		return nil, err
	}
	return &FS{dir: dir}, nil
}

func (s *FS) Driver() Driver { return DriverFS }

func (s *FS) Dir() string { return s.dir }

func (s *FS) path(key string) (string, error) {
	if strings.TrimSpace(key) == "" || strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("scratch: invalid key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}

func (s *FS) Put(_ context.Context, key string, r io.Reader) (err error) {
	p, err := s.path(key)
	if err != nil {
		return
	}
	f, err := os.Create(p)
	if err != nil {
		return
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(f, r)
	return
}

func (s *FS) Get(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return f, err
}

func (s *FS) Delete(_ context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Close removes the store directory.
func (s *FS) Close() error {
	return os.RemoveAll(s.dir)
}
