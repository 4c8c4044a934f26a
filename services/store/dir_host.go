//go:build !baremetal

package store

import (
	"os"
	"path/filepath"
)

// Dir stores files under Root. WriteFile goes through a temp file and a
// rename in the same directory.
type Dir struct {
	Root string
}

func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Dir{Root: root}, nil
}

func (d *Dir) path(name string) string { return filepath.Join(d.Root, filepath.Base(name)) }

func (d *Dir) ReadFile(name string) ([]byte, error) { return os.ReadFile(d.path(name)) }

func (d *Dir) WriteFile(name string, data []byte) error {
	f, err := os.CreateTemp(d.Root, "."+filepath.Base(name)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, d.path(name)); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (d *Dir) Remove(name string) error { return os.Remove(d.path(name)) }

func (d *Dir) Exists(name string) bool {
	_, err := os.Stat(d.path(name))
	return err == nil
}
