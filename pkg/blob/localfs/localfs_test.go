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
	"path/filepath"
	"testing"

	"github.com/pingcap/fexec/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestPutGetDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := New()
	uri := URI(filepath.Join(t.TempDir(), "blob-1", "00000000"))

	etag, err := b.Put(ctx, uri, []byte("hello world"))
	require.NoError(t, err)
	require.Len(t, etag, 64)

	data, err := b.Get(ctx, uri, 6, 5)
	require.NoError(t, err)
	require.Equal(t, "world", string(data))

	data, err = b.Get(ctx, uri, 0, 11)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))

	_, err = b.Get(ctx, uri, 6, 10)
	require.True(t, errors.Is(err, errors.ErrBlobSizeMismatch))

	require.NoError(t, b.Delete(ctx, uri))
	require.NoError(t, b.Delete(ctx, uri))
	_, err = b.Get(ctx, uri, 0, 1)
	require.True(t, errors.Is(err, errors.ErrBlobNotFound))
}

func TestBadURI(t *testing.T) {
	t.Parallel()

	_, err := New().Get(context.Background(), "s3://bucket/key", 0, 1)
	require.True(t, errors.Is(err, errors.ErrBlobUnsupportedURI))
}
