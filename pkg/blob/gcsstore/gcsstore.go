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

package gcsstore

import (
	"context"
	stderrors "errors"
	"io"

	"cloud.google.com/go/storage"
	"github.com/pingcap/fexec/pkg/blob"
	"github.com/pingcap/fexec/pkg/errors"
	"google.golang.org/api/option"
)

// Config holds the GCS connection settings.
type Config struct {
	// Endpoint overrides the storage API endpoint, e.g. for an emulator.
	Endpoint string
	// CredentialsFile is a service account key file.
	CredentialsFile string
	// Anonymous disables authentication.
	Anonymous bool
}

// Backend stores chunks as GCS objects addressed by gs://bucket/object uris.
type Backend struct {
	client *storage.Client
}

var _ blob.Backend = (*Backend)(nil)

// New creates a GCS backend.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Anonymous {
		opts = append(opts, option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.WrapError(errors.ErrBlobBackend, err, "gcs client")
	}
	return &Backend{client: client}, nil
}

func (b *Backend) object(uri string) (*storage.ObjectHandle, error) {
	bucket, key, err := blob.SplitBucketKey(uri)
	if err != nil {
		return nil, err
	}
	return b.client.Bucket(bucket).Object(key), nil
}

// Get implements blob.Backend with a range reader.
func (b *Backend) Get(ctx context.Context, uri string, offset, size uint64) ([]byte, error) {
	obj, err := b.object(uri)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return []byte{}, nil
	}
	r, err := obj.NewRangeReader(ctx, int64(offset), int64(size))
	if err != nil {
		if stderrors.Is(err, storage.ErrObjectNotExist) {
			return nil, errors.ErrBlobNotFound.GenWithStackByArgs(uri)
		}
		return nil, errors.WrapError(errors.ErrBlobBackend, err, uri)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WrapError(errors.ErrBlobBackend, err, uri)
	}
	return data, nil
}

// Put implements blob.Backend.
func (b *Backend) Put(ctx context.Context, uri string, data []byte) (string, error) {
	obj, err := b.object(uri)
	if err != nil {
		return "", err
	}
	w := obj.NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", errors.WrapError(errors.ErrBlobBackend, err, uri)
	}
	if err := w.Close(); err != nil {
		return "", errors.WrapError(errors.ErrBlobBackend, err, uri)
	}
	return w.Attrs().Etag, nil
}

// Delete implements blob.Backend.
func (b *Backend) Delete(ctx context.Context, uri string) error {
	obj, err := b.object(uri)
	if err != nil {
		return err
	}
	if err := obj.Delete(ctx); err != nil && !stderrors.Is(err, storage.ErrObjectNotExist) {
		return errors.WrapError(errors.ErrBlobBackend, err, uri)
	}
	return nil
}

// Close releases the client.
func (b *Backend) Close() error {
	return errors.Trace(b.client.Close())
}
