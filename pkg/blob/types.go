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
	"fmt"

	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/serialized"
)

// Chunk is a contiguous piece of a BLOB stored at its own uri.
type Chunk struct {
	URI  string `json:"uri"`
	Size uint64 `json:"size"`
	ETag string `json:"etag,omitempty"`
}

// BLOB is an ordered list of chunks. Concatenating the chunks in order
// gives the BLOB bytes.
type BLOB struct {
	ID     string  `json:"id"`
	Chunks []Chunk `json:"chunks"`
}

// Size returns the total size of all chunks.
func (b *BLOB) Size() uint64 {
	var size uint64
	for _, c := range b.Chunks {
		size += c.Size
	}
	return size
}

// Clone returns a deep copy of b.
func (b *BLOB) Clone() *BLOB {
	if b == nil {
		return nil
	}
	ret := &BLOB{ID: b.ID, Chunks: make([]Chunk, len(b.Chunks))}
	copy(ret.Chunks, b.Chunks)
	return ret
}

// chunkSpan is the part of one chunk that a byte range covers.
type chunkSpan struct {
	chunk Chunk
	// offset inside the chunk
	offset uint64
	size   uint64
	// offset inside the destination buffer
	dst uint64
}

// spans maps the range [offset, offset+size) onto chunks.
func (b *BLOB) spans(offset, size uint64) ([]chunkSpan, error) {
	total := b.Size()
	if offset+size > total || offset+size < offset {
		return nil, errors.ErrBlobOutOfRange.GenWithStackByArgs(offset, offset+size, b.ID, total)
	}
	var (
		ret      []chunkSpan
		chunkOff uint64
		pos      = offset
		end      = offset + size
	)
	for _, c := range b.Chunks {
		if pos == end {
			break
		}
		chunkEnd := chunkOff + c.Size
		if pos < chunkEnd {
			n := min(end, chunkEnd) - pos
			ret = append(ret, chunkSpan{
				chunk:  c,
				offset: pos - chunkOff,
				size:   n,
				dst:    pos - offset,
			})
			pos += n
		}
		chunkOff = chunkEnd
	}
	return ret, nil
}

// ObjectInsideBLOB addresses a serialized object stored at Offset of a BLOB.
type ObjectInsideBLOB struct {
	Manifest serialized.Manifest `json:"manifest"`
	Offset   uint64              `json:"offset"`
}

// ObjectRef points at the bytes of a serialized object. Exactly one of
// ObjectID, Inline or InsideBLOB is set; BLOB accompanies InsideBLOB.
type ObjectRef struct {
	// ObjectID is an object uploaded into the session ledger.
	ObjectID   string             `json:"object_id,omitempty"`
	Inline     *serialized.Object `json:"inline,omitempty"`
	InsideBLOB *ObjectInsideBLOB  `json:"inside_blob,omitempty"`
	BLOB       *BLOB              `json:"blob,omitempty"`
}

// Validate checks that exactly one addressing form is used.
func (r *ObjectRef) Validate() error {
	if r == nil {
		return errors.ErrInvalidArgument.GenWithStackByArgs("object reference is missing")
	}
	set := 0
	if r.ObjectID != "" {
		set++
	}
	if r.Inline != nil {
		set++
	}
	if r.InsideBLOB != nil {
		set++
		if r.BLOB == nil {
			return errors.ErrInvalidArgument.GenWithStackByArgs("object inside blob without blob")
		}
	}
	if set != 1 {
		return errors.ErrInvalidArgument.GenWithStackByArgs(
			fmt.Sprintf("object reference must use exactly one form, got %d", set))
	}
	return nil
}

// Manifest returns the manifest of the referenced object when the
// reference carries one.
func (r *ObjectRef) Manifest() (serialized.Manifest, bool) {
	switch {
	case r.Inline != nil:
		return r.Inline.Manifest, true
	case r.InsideBLOB != nil:
		return r.InsideBLOB.Manifest, true
	default:
		return serialized.Manifest{}, false
	}
}

func (r *ObjectRef) String() string {
	switch {
	case r == nil:
		return "<nil>"
	case r.ObjectID != "":
		return "object:" + r.ObjectID
	case r.Inline != nil:
		return "inline:" + r.Inline.Manifest.SHA256Hash
	case r.InsideBLOB != nil && r.BLOB != nil:
		return fmt.Sprintf("blob:%s@%d", r.BLOB.ID, r.InsideBLOB.Offset)
	default:
		return "<invalid>"
	}
}
