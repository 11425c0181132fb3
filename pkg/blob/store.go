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

package blob

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/logutil"
	"github.com/pingcap/fexec/pkg/retry"
	"github.com/pingcap/fexec/pkg/serialized"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultIOConcurrency = 7
	defaultChunkSize     = 8 << 20 // 8MiB
	defaultMaxTries      = 3
)

// Store dispatches chunk reads and writes to backends chosen by uri scheme.
// Chunks of one request are transferred in parallel.
type Store struct {
	mu       sync.RWMutex
	backends map[string]Backend

	concurrency int
	chunkSize   uint64
	retryOpts   []retry.Option

	logger *zap.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithBackend registers b for uris with scheme.
func WithBackend(scheme string, b Backend) StoreOption {
	return func(s *Store) {
		s.backends[scheme] = b
	}
}

// WithIOConcurrency limits the number of chunks transferred at once.
func WithIOConcurrency(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithChunkSize sets the size of chunks created by writes.
func WithChunkSize(n uint64) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithRetryOptions overrides how failing chunk transfers are retried.
func WithRetryOptions(opts ...retry.Option) StoreOption {
	return func(s *Store) {
		s.retryOpts = opts
	}
}

// NewStore creates a Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		backends:    make(map[string]Backend),
		concurrency: defaultIOConcurrency,
		chunkSize:   defaultChunkSize,
		retryOpts: []retry.Option{
			retry.WithMaxTries(defaultMaxTries),
			retry.WithBackoff(50*time.Millisecond, time.Second),
		},
		logger: logutil.NewLogger4Component("blob-store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds or replaces the backend for scheme.
func (s *Store) Register(scheme string, b Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backends[scheme] = b
}

// ChunkSize returns the size of chunks created by writes.
func (s *Store) ChunkSize() uint64 {
	return s.chunkSize
}

func (s *Store) backend(uri string) (Backend, error) {
	scheme, err := Scheme(uri)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.backends[scheme]
	if !ok {
		return nil, errors.ErrBlobUnsupportedURI.GenWithStackByArgs(uri)
	}
	return b, nil
}

func (s *Store) retryOptions(uri string) []retry.Option {
	opts := make([]retry.Option, 0, len(s.retryOpts)+2)
	opts = append(opts, s.retryOpts...)
	return append(opts,
		retry.WithIsRetryableErr(isRetryable),
		retry.WithOnRetry(func(err error, delay time.Duration) {
			s.logger.Warn("retry blob io", zap.String("uri", uri), zap.Duration("delay", delay), zap.Error(err))
		}))
}

// Get reads size bytes starting at offset of blob.
func (s *Store) Get(ctx context.Context, blob *BLOB, offset, size uint64) ([]byte, error) {
	spans, err := blob.spans(offset, size)
	if err != nil {
		return nil, err
	}
	dst := make([]byte, size)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, span := range spans {
		span := span
		backend, err := s.backend(span.chunk.URI)
		if err != nil {
			return nil, err
		}
		g.Go(func() error {
			return retry.Do(gCtx, func() error {
				data, err := backend.Get(gCtx, span.chunk.URI, span.offset, span.size)
				if err != nil {
					return err
				}
				if uint64(len(data)) != span.size {
					return errors.ErrBlobSizeMismatch.GenWithStackByArgs(span.size, len(data))
				}
				copy(dst[span.dst:span.dst+span.size], data)
				return nil
			}, s.retryOptions(span.chunk.URI)...)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Trace(err)
	}
	return dst, nil
}

// ReadObject reads the object at obj inside blob and verifies its hash.
func (s *Store) ReadObject(ctx context.Context, blob *BLOB, obj *ObjectInsideBLOB) (*serialized.Value, error) {
	if err := obj.Manifest.Validate(); err != nil {
		return nil, err
	}
	var metadata []byte
	if obj.Manifest.MetadataSize > 0 {
		var err error
		metadata, err = s.Get(ctx, blob, obj.Offset, obj.Manifest.MetadataSize)
		if err != nil {
			return nil, err
		}
	}
	data, err := s.Get(ctx, blob, obj.Offset+obj.Manifest.MetadataSize, obj.Manifest.DataSize())
	if err != nil {
		return nil, err
	}
	if err := serialized.Verify(&obj.Manifest, metadata, data); err != nil {
		s.logger.Error("serialized object data hash mismatch",
			zap.String("blob-id", blob.ID),
			zap.Uint64("offset", obj.Offset),
			zap.Error(err))
		return nil, err
	}
	return &serialized.Value{
		Manifest: obj.Manifest,
		Metadata: metadata,
		Data:     data,
	}, nil
}

// Put writes data as chunks named <baseURI>/<first>, <baseURI>/<first+1>...
// and returns them in order.
func (s *Store) Put(ctx context.Context, baseURI string, first int, data []byte) ([]Chunk, error) {
	var pieces [][]byte
	for len(data) > 0 {
		n := min(uint64(len(data)), s.chunkSize)
		pieces = append(pieces, data[:n])
		data = data[n:]
	}
	chunks := make([]Chunk, len(pieces))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, piece := range pieces {
		i, piece := i, piece
		uri := JoinURI(baseURI, chunkName(first+i))
		backend, err := s.backend(uri)
		if err != nil {
			return nil, err
		}
		g.Go(func() error {
			return retry.Do(gCtx, func() error {
				etag, err := backend.Put(gCtx, uri, piece)
				if err != nil {
					return err
				}
				chunks[i] = Chunk{URI: uri, Size: uint64(len(piece)), ETag: etag}
				return nil
			}, s.retryOptions(uri)...)
		})
	}
	if err := g.Wait(); err != nil {
		s.deleteChunks(chunks)
		return nil, errors.Trace(err)
	}
	s.logger.Debug("chunks stored",
		zap.String("base-uri", baseURI),
		zap.Int("chunks", len(chunks)),
		zap.String("size", humanize.IBytes(sizeOf(chunks))))
	return chunks, nil
}

// deleteChunks removes written chunks, best effort.
func (s *Store) deleteChunks(chunks []Chunk) {
	for _, c := range chunks {
		if c.URI == "" {
			continue
		}
		backend, err := s.backend(c.URI)
		if err != nil {
			continue
		}
		if err := backend.Delete(context.Background(), c.URI); err != nil {
			s.logger.Warn("failed to delete chunk", zap.String("uri", c.URI), zap.Error(err))
		}
	}
}

func sizeOf(chunks []Chunk) uint64 {
	var size uint64
	for _, c := range chunks {
		size += c.Size
	}
	return size
}
