// util/cache.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// CacheDir returns the directory cached objects are stored under; an
// empty override selects navlog/ in the user's cache directory.
func CacheDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	cd, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cd, "navlog"), nil
}

// CacheStoreObject msgpack-encodes obj and writes it zstd-compressed to
// path within dir.
func CacheStoreObject(dir, path string, obj any) error {
	path = filepath.Join(dir, path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	// Write to a temporary file and rename so that a concurrent reader
	// never sees a partial object.
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return err
	}
	if err := msgpack.NewEncoder(zw).Encode(obj); err != nil {
		zw.Close()
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// CacheRetrieveObject decodes the object stored at path within dir into
// obj and returns the time it was stored.
func CacheRetrieveObject(dir, path string, obj any) (time.Time, error) {
	f, err := os.Open(filepath.Join(dir, path))
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return time.Time{}, err
	}

	zr, err := zstd.NewReader(f)
	if err != nil {
		return time.Time{}, err
	}
	defer zr.Close()

	return fi.ModTime(), msgpack.NewDecoder(zr).Decode(obj)
}
