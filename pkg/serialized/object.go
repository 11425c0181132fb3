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
	"github.com/pingcap/fexec/pkg/errors"
)

// Object is a manifest with its bytes carried inline.
type Object struct {
	Manifest Manifest `json:"manifest"`
	Data     []byte   `json:"data"`
}

// Validate checks the manifest and the inline bytes against it.
func (o *Object) Validate() error {
	if o == nil {
		return errors.ErrManifestInvalid.GenWithStackByArgs("object is missing")
	}
	if err := o.Manifest.Validate(); err != nil {
		return err
	}
	return Verify(&o.Manifest, o.Data)
}

// Value is a verified object split into its metadata and data parts.
type Value struct {
	Manifest Manifest
	Metadata []byte
	Data     []byte
}

// NewValue splits the object bytes according to manifest.
func NewValue(manifest Manifest, content []byte) (*Value, error) {
	if uint64(len(content)) != manifest.Size {
		return nil, errors.ErrBlobSizeMismatch.GenWithStackByArgs(manifest.Size, len(content))
	}
	return &Value{
		Manifest: manifest,
		Metadata: content[:manifest.MetadataSize],
		Data:     content[manifest.MetadataSize:],
	}, nil
}

// Decode decodes the data part into out.
func (v *Value) Decode(out any) error {
	return Decode(v.Manifest.Encoding, v.Data, out)
}

// Bytes returns metadata followed by data.
func (v *Value) Bytes() []byte {
	if len(v.Metadata) == 0 {
		return v.Data
	}
	buf := make([]byte, 0, len(v.Metadata)+len(v.Data))
	buf = append(buf, v.Metadata...)
	return append(buf, v.Data...)
}

// Option customizes a new object.
type Option func(*Manifest)

// WithContentType sets the content type of the object.
func WithContentType(contentType string) Option {
	return func(m *Manifest) {
		m.ContentType = contentType
	}
}

// WithSourceFunctionCallID records the call that produced the object.
func WithSourceFunctionCallID(id string) Option {
	return func(m *Manifest) {
		m.SourceFunctionCallID = id
	}
}

// NewObject encodes value and wraps it into an object with a complete
// manifest.
func NewObject(value any, enc Encoding, opts ...Option) (*Object, error) {
	data, err := Encode(enc, value)
	if err != nil {
		return nil, err
	}
	return NewObjectFromBytes(enc, data, opts...), nil
}

// NewObjectFromBytes wraps already encoded bytes into an object.
func NewObjectFromBytes(enc Encoding, data []byte, opts ...Option) *Object {
	m := Manifest{
		Encoding:    enc,
		Size:        uint64(len(data)),
		SHA256Hash:  Hash(data),
		ContentType: defaultContentType(enc),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return &Object{Manifest: m, Data: data}
}

func defaultContentType(enc Encoding) string {
	switch enc {
	case EncodingUTF8JSON:
		return "application/json"
	case EncodingUTF8Text:
		return "text/plain; charset=utf-8"
	case EncodingBinary:
		return "application/msgpack"
	case EncodingBinaryZip:
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
