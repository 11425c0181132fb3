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
	"fmt"
	"sync"

	"github.com/pingcap/fexec/pkg/serialized"
)

func chunkName(idx int) string {
	return fmt.Sprintf("%08d", idx)
}

// Writer appends serialized objects to one BLOB. Appends are serialized so
// the bytes of one object are never interleaved with another one.
type Writer struct {
	store   *Store
	baseURI string

	mu   sync.Mutex
	blob BLOB
}

// NewWriter creates a Writer for a new blob with id stored under baseURI.
func NewWriter(store *Store, baseURI, id string) *Writer {
	return &Writer{
		store:   store,
		baseURI: JoinURI(baseURI, id),
		blob:    BLOB{ID: id},
	}
}

// Append stores obj at the end of the blob and returns where it was put.
func (w *Writer) Append(ctx context.Context, obj *serialized.Object) (*ObjectInsideBLOB, *BLOB, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	offset := w.blob.Size()
	chunks, err := w.store.Put(ctx, w.baseURI, len(w.blob.Chunks), obj.Data)
	if err != nil {
		return nil, nil, err
	}
	w.blob.Chunks = append(w.blob.Chunks, chunks...)
	return &ObjectInsideBLOB{
		Manifest: obj.Manifest,
		Offset:   offset,
	}, w.blob.Clone(), nil
}

// BLOB returns a snapshot of the chunks written so far.
func (w *Writer) BLOB() *BLOB {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.blob.Clone()
}
