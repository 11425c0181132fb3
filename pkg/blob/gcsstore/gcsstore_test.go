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
	"testing"

	"github.com/pingcap/fexec/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestRejectsMalformedURI(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b, err := New(ctx, Config{Endpoint: "http://127.0.0.1:1/storage/v1/", Anonymous: true})
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Get(ctx, "gs://bucket-only", 0, 1)
	require.True(t, errors.Is(err, errors.ErrBlobUnsupportedURI))
	_, err = b.Put(ctx, "gs:///key", []byte("x"))
	require.True(t, errors.Is(err, errors.ErrBlobUnsupportedURI))
	require.True(t, errors.Is(b.Delete(ctx, "gs://"), errors.ErrBlobUnsupportedURI))

	data, err := b.Get(ctx, "gs://bucket/key", 0, 0)
	require.NoError(t, err)
	require.Empty(t, data)
}
