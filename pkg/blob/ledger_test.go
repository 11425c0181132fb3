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
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/serialized"
	"github.com/stretchr/testify/require"
)

func manifestOf(data []byte) serialized.Manifest {
	return serialized.NewObjectFromBytes(serialized.EncodingRaw, data).Manifest
}

func upload(t *testing.T, l *Ledger, uploadID, blobID string, data []byte, chunkSize int) *UploadResult {
	res, err := l.BeginUpload(uploadID, blobID, manifestOf(data))
	require.NoError(t, err)
	for len(data) > 0 && !res.Done {
		n := min(chunkSize, len(data))
		res, err = l.WriteChunk(uploadID, data[:n])
		require.NoError(t, err)
		data = data[n:]
	}
	require.True(t, res.Done)
	return res
}

func TestLedgerUploadAndRead(t *testing.T) {
	t.Parallel()

	l := NewLedger(16)
	data := []byte("the quick brown fox")
	res := upload(t, l, "u1", "", data, 5)
	require.False(t, res.Duplicate)
	require.NotEmpty(t, res.ObjectID)

	v, err := l.Read(res.ObjectID)
	require.NoError(t, err)
	require.Equal(t, data, v.Data)

	obj, ok := l.Object(res.ObjectID)
	require.True(t, ok)
	require.Equal(t, "u1", obj.BLOBID)
	b, ok := l.BLOB("u1")
	require.True(t, ok)
	require.Len(t, b.Chunks, 4)
	require.Equal(t, uint64(len(data)), b.Size())

	_, err = l.Read("missing")
	require.True(t, errors.Is(err, errors.ErrObjectNotFound))
}

func TestLedgerDeduplicatesByHash(t *testing.T) {
	t.Parallel()

	l := NewLedger(16)
	data := []byte("same content")
	first := upload(t, l, "u1", "blob-a", data, 4)

	res, err := l.BeginUpload("u2", "blob-b", manifestOf(data))
	require.NoError(t, err)
	require.True(t, res.Duplicate)
	require.False(t, res.Done)
	require.NotEqual(t, first.ObjectID, res.ObjectID)
	dupID := res.ObjectID

	// announced chunks are still accepted but dropped
	res, err = l.WriteChunk("u2", data[:6])
	require.NoError(t, err)
	require.False(t, res.Done)
	res, err = l.WriteChunk("u2", data[6:])
	require.NoError(t, err)
	require.True(t, res.Done)
	require.True(t, res.Duplicate)
	require.Equal(t, dupID, res.ObjectID)

	uploads, blobs, objects := l.Stats()
	require.Equal(t, 0, uploads)
	require.Equal(t, 1, blobs)
	require.Equal(t, 2, objects)
	_, ok := l.BLOB("blob-b")
	require.False(t, ok)
	v, err := l.Read(dupID)
	require.NoError(t, err)
	require.Equal(t, data, v.Data)
}

func TestLedgerDuplicateKeepsOwnManifest(t *testing.T) {
	t.Parallel()

	l := NewLedger(16)
	data := []byte(`"hi"`)
	text := serialized.NewObjectFromBytes(serialized.EncodingUTF8Text, data).Manifest
	res, err := l.BeginUpload("u1", "", text)
	require.NoError(t, err)
	first, err := l.WriteChunk("u1", data)
	require.NoError(t, err)
	require.True(t, first.Done)

	jsonManifest := serialized.NewObjectFromBytes(serialized.EncodingUTF8JSON, data,
		serialized.WithSourceFunctionCallID("call-2")).Manifest
	res, err = l.BeginUpload("u2", "", jsonManifest)
	require.NoError(t, err)
	require.True(t, res.Duplicate)
	require.NotEqual(t, first.ObjectID, res.ObjectID)
	_, err = l.WriteChunk("u2", data)
	require.NoError(t, err)

	v, err := l.Read(res.ObjectID)
	require.NoError(t, err)
	require.Equal(t, serialized.EncodingUTF8JSON, v.Manifest.Encoding)
	require.Equal(t, "application/json", v.Manifest.ContentType)
	require.Equal(t, "call-2", v.Manifest.SourceFunctionCallID)
	v, err = l.Read(first.ObjectID)
	require.NoError(t, err)
	require.Equal(t, serialized.EncodingUTF8Text, v.Manifest.Encoding)

	// same hash with a different announced size is not a duplicate
	bad := jsonManifest
	bad.Size++
	res, err = l.BeginUpload("u3", "", bad)
	require.NoError(t, err)
	require.False(t, res.Duplicate)
}

func TestLedgerRejectsCorruptUpload(t *testing.T) {
	t.Parallel()

	l := NewLedger(16)
	m := manifestOf([]byte("original"))
	_, err := l.BeginUpload("u1", "", m)
	require.NoError(t, err)
	_, err = l.WriteChunk("u1", []byte("tampered"))
	require.True(t, errors.Is(err, errors.ErrBlobHashMismatch))

	_, err = l.WriteChunk("u1", []byte("x"))
	require.True(t, errors.Is(err, errors.ErrUploadNotFound))
}

func TestLedgerUploadErrors(t *testing.T) {
	t.Parallel()

	l := NewLedger(16)
	m := manifestOf([]byte("abc"))
	_, err := l.BeginUpload("", "", m)
	require.True(t, errors.Is(err, errors.ErrInvalidArgument))
	_, err = l.BeginUpload("u1", "", serialized.Manifest{})
	require.True(t, errors.Is(err, errors.ErrManifestInvalid))

	_, err = l.BeginUpload("u1", "", m)
	require.NoError(t, err)
	_, err = l.BeginUpload("u1", "", m)
	require.True(t, errors.Is(err, errors.ErrUploadExists))

	_, err = l.WriteChunk("u1", []byte("abcd"))
	require.True(t, errors.Is(err, errors.ErrUploadOverflow))

	_, err = l.BeginUpload("u2", "", m)
	require.NoError(t, err)
	require.True(t, l.AbortUpload("u2"))
	require.False(t, l.AbortUpload("u2"))

	res, err := l.BeginUpload("empty", "", manifestOf(nil))
	require.NoError(t, err)
	require.True(t, res.Done)
}

func TestLedgerConcurrentUploadsDoNotInterleave(t *testing.T) {
	t.Parallel()

	l := NewLedger(1024)
	const writers = 8

	var wg sync.WaitGroup
	results := make([]*UploadResult, writers)
	payloads := make([][]byte, writers)
	for i := 0; i < writers; i++ {
		payloads[i] = bytes.Repeat([]byte{byte('a' + i)}, 1000+i)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// even writers share a blob, odd ones use their own
			blobID := "shared"
			if i%2 == 1 {
				blobID = fmt.Sprintf("own-%d", i)
			}
			results[i] = upload(t, l, fmt.Sprintf("u%d", i), blobID, payloads[i], 7)
		}(i)
	}
	wg.Wait()

	for i := 0; i < writers; i++ {
		v, err := l.Read(results[i].ObjectID)
		require.NoError(t, err)
		require.Equal(t, payloads[i], v.Data, "writer %d", i)
	}
	shared, ok := l.BLOB("shared")
	require.True(t, ok)
	require.Equal(t, uint64(1000+1002+1004+1006), shared.Size())
}

func TestLedgerDiscard(t *testing.T) {
	t.Parallel()

	l := NewLedger(16)
	upload(t, l, "done", "", []byte("complete"), 3)
	_, err := l.BeginUpload("partial", "", manifestOf([]byte("incomplete")))
	require.NoError(t, err)
	_, err = l.WriteChunk("partial", []byte("inc"))
	require.NoError(t, err)

	pending := l.Discard()
	require.Equal(t, []string{"partial"}, pending)
	uploads, blobs, objects := l.Stats()
	require.Zero(t, uploads+blobs+objects)

	_, err = l.WriteChunk("partial", []byte("omplete"))
	require.True(t, errors.Is(err, errors.ErrRuntimeClosed))
	_, err = l.BeginUpload("again", "", manifestOf([]byte("x")))
	require.True(t, errors.Is(err, errors.ErrRuntimeClosed))
}
