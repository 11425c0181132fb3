// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package localfs

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/pingcap/fexec/pkg/blob"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/serialized"
)

// Backend stores chunks as files addressed by file:// uris.
type Backend struct{}

// New creates a local filesystem backend.
func New() *Backend {
	return &Backend{}
}

var _ blob.Backend = (*Backend)(nil)

func pathOf(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", errors.WrapError(errors.ErrBlobUnsupportedURI, err, uri)
	}
	if u.Scheme != blob.SchemeFile || u.Path == "" {
		return "", errors.ErrBlobUnsupportedURI.GenWithStackByArgs(uri)
	}
	return filepath.FromSlash(u.Path), nil
}

// Get implements blob.Backend.
func (b *Backend) Get(ctx context.Context, uri string, offset, size uint64) ([]byte, error) {
	path, err := pathOf(uri)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrBlobNotFound.GenWithStackByArgs(uri)
		}
		return nil, errors.WrapError(errors.ErrBlobBackend, err, uri)
	}
	defer f.Close()

	buf := make([]byte, size)
	n, err := f.ReadAt(buf, int64(offset))
	if err != nil && !(err == io.EOF && uint64(n) == size) {
		if err == io.EOF {
			return nil, errors.ErrBlobSizeMismatch.GenWithStackByArgs(size, n)
		}
		return nil, errors.WrapError(errors.ErrBlobBackend, err, uri)
	}
	return buf, nil
}

// Put implements blob.Backend. The file is written next to its target and
// renamed into place.
func (b *Backend) Put(ctx context.Context, uri string, data []byte) (string, error) {
	path, err := pathOf(uri)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", errors.Trace(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.WrapError(errors.ErrBlobBackend, err, uri)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return "", errors.WrapError(errors.ErrBlobBackend, err, uri)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", errors.WrapError(errors.ErrBlobBackend, err, uri)
	}
	if err := tmp.Close(); err != nil {
		return "", errors.WrapError(errors.ErrBlobBackend, err, uri)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", errors.WrapError(errors.ErrBlobBackend, err, uri)
	}
	return serialized.Hash(data), nil
}

// Delete implements blob.Backend.
func (b *Backend) Delete(_ context.Context, uri string) error {
	path, err := pathOf(uri)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.WrapError(errors.ErrBlobBackend, err, uri)
	}
	return nil
}

// URI returns the file:// uri of an absolute path.
func URI(path string) string {
	return (&url.URL{Scheme: blob.SchemeFile, Path: filepath.ToSlash(path)}).String()
}
