//go:build baremetal

package store

import (
	"io"
	"machine"
	"os"
	"sync"

	"tinygo.org/x/tinyfs/littlefs"
)

// Flash stores files in a littlefs volume on the chip's spare flash.
// WriteFile writes a temp file and renames it over the target.
type Flash struct {
	mu sync.Mutex
	fs *littlefs.LFS
}

// NewFlash mounts the volume, formatting it when no filesystem is found.
func NewFlash() (*Flash, error) {
	lfs := littlefs.New(machine.Flash)
	lfs.Configure(&littlefs.Config{
		CacheSize:     512,
		LookaheadSize: 512,
		BlockCycles:   100,
	})
	if err := lfs.Mount(); err != nil {
		if err := lfs.Format(); err != nil {
			return nil, err
		}
		if err := lfs.Mount(); err != nil {
			return nil, err
		}
	}
	return &Flash{fs: lfs}, nil
}

func flashPath(name string) string { return "/" + name }

func (f *Flash) ReadFile(name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fh, err := f.fs.Open(flashPath(name))
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return io.ReadAll(fh)
}

func (f *Flash) WriteFile(name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tmp := flashPath("." + name + ".tmp")
	fh, err := f.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC)
	if err != nil {
		return err
	}
	if _, err := fh.Write(data); err != nil {
		fh.Close()
		f.fs.Remove(tmp)
		return err
	}
	if err := fh.Close(); err != nil {
		f.fs.Remove(tmp)
		return err
	}
	if err := f.fs.Rename(tmp, flashPath(name)); err != nil {
		f.fs.Remove(tmp)
		return err
	}
	return nil
}

func (f *Flash) Remove(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fs.Remove(flashPath(name))
}

func (f *Flash) Exists(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.fs.Stat(flashPath(name))
	return err == nil
}
