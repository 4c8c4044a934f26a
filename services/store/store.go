// Package store persists the generated logic artifacts and the reset flag.
// Writes are whole-file: a reader sees either the previous content or the
// new content, never a prefix of it.
package store

import (
	"io/fs"
	"sync"
)

type Store interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
	Remove(name string) error
	Exists(name string) bool
}

// RAM is an in-memory Store. It backs tests and boards without a filesystem.
type RAM struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewRAM() *RAM { return &RAM{files: map[string][]byte{}} }

func (r *RAM) ReadFile(name string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), b...), nil
}

func (r *RAM) WriteFile(name string, data []byte) error {
	cp := append([]byte(nil), data...)
	r.mu.Lock()
	r.files[name] = cp
	r.mu.Unlock()
	return nil
}

func (r *RAM) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[name]; !ok {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	delete(r.files, name)
	return nil
}

func (r *RAM) Exists(name string) bool {
	r.mu.RLock()
	_, ok := r.files[name]
	r.mu.RUnlock()
	return ok
}
