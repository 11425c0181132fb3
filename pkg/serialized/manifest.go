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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/pingcap/fexec/pkg/errors"
)

// Manifest describes a serialized object. The object bytes are
// metadata followed by data, MetadataSize is the length of the first part.
type Manifest struct {
	Encoding             Encoding `json:"encoding"`
	EncodingVersion      int32    `json:"encoding_version"`
	Size                 uint64   `json:"size"`
	MetadataSize         uint64   `json:"metadata_size,omitempty"`
	SHA256Hash           string   `json:"sha256_hash"`
	ContentType          string   `json:"content_type,omitempty"`
	SourceFunctionCallID string   `json:"source_function_call_id,omitempty"`
}

// Validate checks that the manifest is well formed. It does not look at
// any bytes.
func (m *Manifest) Validate() error {
	if m == nil {
		return errors.ErrManifestInvalid.GenWithStackByArgs("manifest is missing")
	}
	if !m.Encoding.Known() {
		return errors.ErrManifestInvalid.GenWithStackByArgs(
			fmt.Sprintf("encoding %d is not supported", m.Encoding))
	}
	if m.MetadataSize > m.Size {
		return errors.ErrManifestInvalid.GenWithStackByArgs(
			fmt.Sprintf("metadata size %d exceeds object size %d", m.MetadataSize, m.Size))
	}
	if len(m.SHA256Hash) != sha256.Size*2 {
		return errors.ErrManifestInvalid.GenWithStackByArgs(
			fmt.Sprintf("sha256 hash %q is malformed", m.SHA256Hash))
	}
	if _, err := hex.DecodeString(m.SHA256Hash); err != nil {
		return errors.ErrManifestInvalid.GenWithStackByArgs(
			fmt.Sprintf("sha256 hash %q is malformed", m.SHA256Hash))
	}
	return nil
}

// DataSize returns the size of the data part.
func (m *Manifest) DataSize() uint64 {
	return m.Size - m.MetadataSize
}

// Hash returns the hex sha256 of the concatenated parts.
func Hash(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Verifier incrementally hashes object bytes and checks them against a
// manifest once all of them were written.
type Verifier struct {
	manifest *Manifest
	hasher   hash.Hash
	written  uint64
}

// NewVerifier creates a Verifier for manifest.
func NewVerifier(manifest *Manifest) *Verifier {
	return &Verifier{manifest: manifest, hasher: sha256.New()}
}

// Write implements io.Writer.
func (v *Verifier) Write(p []byte) (int, error) {
	v.written += uint64(len(p))
	return v.hasher.Write(p)
}

// Written returns the number of bytes seen so far.
func (v *Verifier) Written() uint64 {
	return v.written
}

// Verify checks the size and hash of everything written.
func (v *Verifier) Verify() error {
	if v.written != v.manifest.Size {
		return errors.ErrBlobSizeMismatch.GenWithStackByArgs(v.manifest.Size, v.written)
	}
	got := hex.EncodeToString(v.hasher.Sum(nil))
	if got != v.manifest.SHA256Hash {
		return errors.ErrBlobHashMismatch.GenWithStackByArgs(v.manifest.SHA256Hash, got)
	}
	return nil
}

// Verify checks that the concatenated parts match manifest.
func Verify(manifest *Manifest, parts ...[]byte) error {
	v := NewVerifier(manifest)
	for _, p := range parts {
		_, _ = v.Write(p)
	}
	return v.Verify()
}
