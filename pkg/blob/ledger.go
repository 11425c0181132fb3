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
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/serialized"
)

const (
	defaultDedupCacheSize = 4096
	ledgerURIScheme       = "ledger"
)

// StoredObject is a complete object recorded in a Ledger.
type StoredObject struct {
	ID     string
	BLOBID string
	Object ObjectInsideBLOB
}

// UploadResult is the outcome of announcing or finishing an upload.
type UploadResult struct {
	UploadID string
	ObjectID string
	// Duplicate means the content was already present. The object gets
	// its own id and manifest over the existing bytes, and the announced
	// chunks are discarded.
	Duplicate bool
	Done      bool
}

type ledgerChunk struct {
	Chunk
	data []byte
}

type ledgerBLOB struct {
	id     string
	chunks []ledgerChunk
	size   uint64
}

func (b *ledgerBLOB) snapshot() *BLOB {
	ret := &BLOB{ID: b.id, Chunks: make([]Chunk, len(b.chunks))}
	for i, c := range b.chunks {
		ret.Chunks[i] = c.Chunk
	}
	return ret
}

type pendingUpload struct {
	id       string
	blobID   string
	manifest serialized.Manifest
	verifier *serialized.Verifier
	chunks   [][]byte
	// discard is set for duplicates, chunks are counted but dropped.
	discard     bool
	duplicateOf string
	received    uint64
}

// Ledger records, for one session, the blobs being written by uploads and
// the objects that completed. An upload is buffered until all announced
// bytes arrived and verified, then appended to its blob in one step, so
// concurrent uploads into the same blob never interleave.
type Ledger struct {
	mu      sync.Mutex
	closed  bool
	uploads map[string]*pendingUpload
	blobs   map[string]*ledgerBLOB
	objects map[string]*StoredObject
	// hash -> object id
	byHash *lru.Cache
}

// NewLedger creates an empty ledger. dedupCacheSize bounds the number of
// content hashes remembered for deduplication.
func NewLedger(dedupCacheSize int) *Ledger {
	if dedupCacheSize <= 0 {
		dedupCacheSize = defaultDedupCacheSize
	}
	cache, err := lru.New(dedupCacheSize)
	if err != nil {
		// only fails on a non-positive size
		panic(err)
	}
	return &Ledger{
		uploads: make(map[string]*pendingUpload),
		blobs:   make(map[string]*ledgerBLOB),
		objects: make(map[string]*StoredObject),
		byHash:  cache,
	}
}

// BeginUpload announces an upload of an object described by manifest into
// blobID. An empty blobID uses a blob of its own. If an object with the same
// hash is already complete the result is a finished duplicate.
func (l *Ledger) BeginUpload(uploadID, blobID string, manifest serialized.Manifest) (*UploadResult, error) {
	if uploadID == "" {
		return nil, errors.ErrInvalidArgument.GenWithStackByArgs("upload id is empty")
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, errors.ErrRuntimeClosed.GenWithStackByArgs()
	}
	if _, ok := l.uploads[uploadID]; ok {
		return nil, errors.ErrUploadExists.GenWithStackByArgs(uploadID)
	}
	if blobID == "" {
		blobID = uploadID
	}
	up := &pendingUpload{
		id:       uploadID,
		blobID:   blobID,
		manifest: manifest,
		verifier: serialized.NewVerifier(&manifest),
	}
	if orig, ok := l.lookupHashLocked(manifest.SHA256Hash, manifest.Size); ok {
		alias := l.aliasLocked(orig, manifest)
		up.discard = true
		up.duplicateOf = alias.ID
		res := &UploadResult{UploadID: uploadID, ObjectID: alias.ID, Duplicate: true}
		if manifest.Size == 0 {
			res.Done = true
			return res, nil
		}
		l.uploads[uploadID] = up
		return res, nil
	}
	l.uploads[uploadID] = up
	if manifest.Size == 0 {
		obj, err := l.commitLocked(up)
		if err != nil {
			return nil, err
		}
		return &UploadResult{UploadID: uploadID, ObjectID: obj.ID, Done: true}, nil
	}
	return &UploadResult{UploadID: uploadID}, nil
}

// lookupHashLocked returns the complete object with the given hash and
// size, if any.
func (l *Ledger) lookupHashLocked(hash string, size uint64) (*StoredObject, bool) {
	v, ok := l.byHash.Get(hash)
	if !ok {
		return nil, false
	}
	obj, ok := l.objects[v.(string)]
	if !ok {
		l.byHash.Remove(hash)
		return nil, false
	}
	if obj.Object.Manifest.Size != size {
		return nil, false
	}
	return obj, true
}

// aliasLocked records a new object that shares the bytes of orig but
// carries its own manifest.
func (l *Ledger) aliasLocked(orig *StoredObject, manifest serialized.Manifest) *StoredObject {
	obj := &StoredObject{
		ID:     uuid.NewString(),
		BLOBID: orig.BLOBID,
		Object: ObjectInsideBLOB{Manifest: manifest, Offset: orig.Object.Offset},
	}
	l.objects[obj.ID] = obj
	return obj
}

// WriteChunk appends data to a pending upload. When the last announced
// byte arrives the object is verified and committed.
func (l *Ledger) WriteChunk(uploadID string, data []byte) (*UploadResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, errors.ErrRuntimeClosed.GenWithStackByArgs()
	}
	up, ok := l.uploads[uploadID]
	if !ok {
		return nil, errors.ErrUploadNotFound.GenWithStackByArgs(uploadID)
	}
	up.received += uint64(len(data))
	if up.received > up.manifest.Size {
		delete(l.uploads, uploadID)
		return nil, errors.ErrUploadOverflow.GenWithStackByArgs(uploadID, up.received, up.manifest.Size)
	}
	if up.discard {
		if up.received == up.manifest.Size {
			delete(l.uploads, uploadID)
			return &UploadResult{UploadID: uploadID, ObjectID: up.duplicateOf, Duplicate: true, Done: true}, nil
		}
		return &UploadResult{UploadID: uploadID, ObjectID: up.duplicateOf, Duplicate: true}, nil
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	up.chunks = append(up.chunks, buf)
	_, _ = up.verifier.Write(buf)
	if up.received < up.manifest.Size {
		return &UploadResult{UploadID: uploadID}, nil
	}

	obj, err := l.commitLocked(up)
	if err != nil {
		return nil, err
	}
	return &UploadResult{UploadID: uploadID, ObjectID: obj.ID, Done: true}, nil
}

// commitLocked verifies a complete upload and appends it to its blob.
func (l *Ledger) commitLocked(up *pendingUpload) (*StoredObject, error) {
	delete(l.uploads, up.id)
	if err := up.verifier.Verify(); err != nil {
		return nil, err
	}

	b, ok := l.blobs[up.blobID]
	if !ok {
		b = &ledgerBLOB{id: up.blobID}
		l.blobs[up.blobID] = b
	}
	obj := &StoredObject{
		ID:     uuid.NewString(),
		BLOBID: up.blobID,
		Object: ObjectInsideBLOB{Manifest: up.manifest, Offset: b.size},
	}
	for _, data := range up.chunks {
		b.chunks = append(b.chunks, ledgerChunk{
			Chunk: Chunk{
				URI:  fmt.Sprintf("%s://%s/%d", ledgerURIScheme, b.id, len(b.chunks)),
				Size: uint64(len(data)),
				ETag: serialized.Hash(data),
			},
			data: data,
		})
		b.size += uint64(len(data))
	}
	l.objects[obj.ID] = obj
	l.byHash.Add(up.manifest.SHA256Hash, obj.ID)
	return obj, nil
}

// AbortUpload drops a pending upload.
func (l *Ledger) AbortUpload(uploadID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.uploads[uploadID]
	delete(l.uploads, uploadID)
	return ok
}

// Object returns a completed object.
func (l *Ledger) Object(id string) (*StoredObject, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	obj, ok := l.objects[id]
	return obj, ok
}

// BLOB returns a snapshot of the chunks of a blob.
func (l *Ledger) BLOB(id string) (*BLOB, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.blobs[id]
	if !ok {
		return nil, false
	}
	return b.snapshot(), true
}

// Read reassembles a completed object from its blob chunks and verifies
// the content hash.
func (l *Ledger) Read(id string) (*serialized.Value, error) {
	l.mu.Lock()
	obj, ok := l.objects[id]
	if !ok {
		l.mu.Unlock()
		return nil, errors.ErrObjectNotFound.GenWithStackByArgs(id)
	}
	b := l.blobs[obj.BLOBID]
	content, err := b.read(obj.Object.Offset, obj.Object.Manifest.Size)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := serialized.Verify(&obj.Object.Manifest, content); err != nil {
		return nil, err
	}
	return serialized.NewValue(obj.Object.Manifest, content)
}

func (b *ledgerBLOB) read(offset, size uint64) ([]byte, error) {
	snapshot := b.snapshot()
	spans, err := snapshot.spans(offset, size)
	if err != nil {
		return nil, err
	}
	ret := make([]byte, size)
	idx := 0
	for _, span := range spans {
		for b.chunks[idx].URI != span.chunk.URI {
			idx++
		}
		copy(ret[span.dst:], b.chunks[idx].data[span.offset:span.offset+span.size])
	}
	return ret, nil
}

// Stats returns the number of pending uploads, blobs and objects.
func (l *Ledger) Stats() (uploads, blobs, objects int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.uploads), len(l.blobs), len(l.objects)
}

// Discard drops every pending upload and blob. Further writes fail.
// It returns the ids of the uploads that were still in progress.
func (l *Ledger) Discard() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	pending := make([]string, 0, len(l.uploads))
	for id := range l.uploads {
		pending = append(pending, id)
	}
	l.uploads = make(map[string]*pendingUpload)
	l.blobs = make(map[string]*ledgerBLOB)
	l.objects = make(map[string]*StoredObject)
	l.byHash.Purge()
	return pending
}
