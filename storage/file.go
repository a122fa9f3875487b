// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// File is a [Storage] backed by one file per key inside a directory.
// Keys are escaped so arbitrary key strings map to valid file names.
type File struct {
	dir string

	// serializes writers to the same key
	mu sync.Mutex
}

// NewFile initializes a [File] rooted at dir, creating the directory if
// necessary. [ErrUnavailable] is returned if the directory cannot be
// created or written to.
func NewFile(dir string) (*File, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// probe writability up front so consumers can disable themselves
	// instead of failing on first use
	probe := filepath.Join(dir, ".probe")
	err = os.WriteFile(probe, nil, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	_ = os.Remove(probe)

	return &File{dir: dir}, nil
}

func (f *File) filename(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key))
}

// GetItem implements the [Storage] interface.
func (f *File) GetItem(key string) (string, bool, error) {
	b, err := os.ReadFile(f.filename(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

// SetItem implements the [Storage] interface.
func (f *File) SetItem(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return os.WriteFile(f.filename(key), []byte(value), 0o644)
}

// RemoveItem implements the [Storage] interface.
func (f *File) RemoveItem(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.filename(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
