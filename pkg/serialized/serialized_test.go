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

package serialized

import (
	"strings"
	"testing"

	"github.com/pingcap/fexec/pkg/errors"
	"github.com/stretchr/testify/require"
)

type point struct {
	X int    `json:"x" msgpack:"x"`
	Y int    `json:"y" msgpack:"y"`
	L string `json:"label" msgpack:"label"`
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	p := point{X: 1, Y: 2, L: "a"}
	for _, enc := range []Encoding{EncodingUTF8JSON, EncodingBinary} {
		obj, err := NewObject(p, enc)
		require.NoError(t, err)
		require.NoError(t, obj.Validate())

		v, err := NewValue(obj.Manifest, obj.Data)
		require.NoError(t, err)
		var got point
		require.NoError(t, v.Decode(&got))
		require.Equal(t, p, got)
	}

	obj, err := NewObject(errors.New("boom"), EncodingUTF8Text)
	require.NoError(t, err)
	var s string
	require.NoError(t, Decode(EncodingUTF8Text, obj.Data, &s))
	require.Equal(t, "boom", s)

	_, err = Encode(EncodingRaw, "not bytes")
	require.True(t, errors.ErrEncodeFailed.Equal(err))
	_, err = Encode(EncodingUnknown, []byte("x"))
	require.True(t, errors.ErrUnsupportedEncoding.Equal(err))

	var n int
	require.True(t, errors.ErrDecodeFailed.Equal(Decode(EncodingRaw, []byte("x"), &n)))
	require.True(t, errors.Is(Decode(EncodingUTF8JSON, []byte("{"), &n), errors.ErrDecodeFailed))
}

func TestManifestValidate(t *testing.T) {
	t.Parallel()

	obj := NewObjectFromBytes(EncodingRaw, []byte("hello"),
		WithContentType("text/x-test"), WithSourceFunctionCallID("call-1"))
	require.NoError(t, obj.Validate())
	require.Equal(t, "text/x-test", obj.Manifest.ContentType)
	require.Equal(t, "call-1", obj.Manifest.SourceFunctionCallID)

	cases := []struct {
		name   string
		mutate func(m *Manifest)
	}{
		{"unknown encoding", func(m *Manifest) { m.Encoding = EncodingUnknown }},
		{"metadata too large", func(m *Manifest) { m.MetadataSize = m.Size + 1 }},
		{"short hash", func(m *Manifest) { m.SHA256Hash = "abc" }},
		{"non hex hash", func(m *Manifest) { m.SHA256Hash = strings.Repeat("z", 64) }},
	}
	for _, cs := range cases {
		m := obj.Manifest
		cs.mutate(&m)
		err := m.Validate()
		require.True(t, errors.ErrManifestInvalid.Equal(err), cs.name)
	}
	var nilManifest *Manifest
	require.True(t, errors.ErrManifestInvalid.Equal(nilManifest.Validate()))
}

func TestVerifyHashAndSize(t *testing.T) {
	t.Parallel()

	metadata := []byte("meta")
	data := []byte("payload")
	m := Manifest{
		Encoding:     EncodingRaw,
		Size:         uint64(len(metadata) + len(data)),
		MetadataSize: uint64(len(metadata)),
		SHA256Hash:   Hash(metadata, data),
	}
	require.NoError(t, m.Validate())
	require.NoError(t, Verify(&m, metadata, data))
	require.Equal(t, Hash(append(append([]byte{}, metadata...), data...)), m.SHA256Hash)
	require.Equal(t, uint64(len(data)), m.DataSize())

	err := Verify(&m, metadata, []byte("PAYLOAD"))
	require.True(t, errors.ErrBlobHashMismatch.Equal(err))
	err = Verify(&m, metadata)
	require.True(t, errors.ErrBlobSizeMismatch.Equal(err))

	v, err := NewValue(m, append(append([]byte{}, metadata...), data...))
	require.NoError(t, err)
	require.Equal(t, metadata, v.Metadata)
	require.Equal(t, data, v.Data)
	require.Equal(t, append(append([]byte{}, metadata...), data...), v.Bytes())

	_, err = NewValue(m, data)
	require.True(t, errors.ErrBlobSizeMismatch.Equal(err))
}

func TestParseEncoding(t *testing.T) {
	t.Parallel()

	for enc := EncodingUTF8JSON; enc <= EncodingRaw; enc++ {
		parsed, err := ParseEncoding(enc.String())
		require.NoError(t, err)
		require.Equal(t, enc, parsed)
	}
	_, err := ParseEncoding("pickle")
	require.True(t, errors.ErrUnsupportedEncoding.Equal(err))

	var e Encoding
	require.NoError(t, e.UnmarshalText([]byte(" UTF8-JSON ")))
	require.Equal(t, EncodingUTF8JSON, e)
}
