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

package allocation

import (
	"context"

	"github.com/google/uuid"
	"github.com/pingcap/fexec/pkg/blob"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/serialized"
)

// ObjectSource returns objects uploaded into a session.
type ObjectSource interface {
	Read(id string) (*serialized.Value, error)
}

// Resolver turns object references into verified values.
type Resolver struct {
	objects ObjectSource
	store   *blob.Store
}

// NewResolver creates a Resolver. objects serves object ids, store serves
// objects inside blobs. Either may be nil.
func NewResolver(objects ObjectSource, store *blob.Store) *Resolver {
	return &Resolver{objects: objects, store: store}
}

// Resolve reads and verifies the object ref points at.
func (r *Resolver) Resolve(ctx context.Context, ref *blob.ObjectRef) (*serialized.Value, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	switch {
	case ref.ObjectID != "":
		if r.objects == nil {
			return nil, errors.ErrObjectNotFound.GenWithStackByArgs(ref.ObjectID)
		}
		return r.objects.Read(ref.ObjectID)
	case ref.Inline != nil:
		if err := ref.Inline.Manifest.Validate(); err != nil {
			return nil, err
		}
		if err := serialized.Verify(&ref.Inline.Manifest, ref.Inline.Data); err != nil {
			return nil, err
		}
		return serialized.NewValue(ref.Inline.Manifest, ref.Inline.Data)
	default:
		if r.store == nil {
			return nil, errors.ErrBlobUnsupportedURI.GenWithStackByArgs(ref.String())
		}
		return r.store.ReadObject(ctx, ref.BLOB, ref.InsideBLOB)
	}
}

// resolveInput resolves argument idx. Failures caused by the reference are
// request errors, integrity and backend failures stay internal.
func (r *Resolver) resolveInput(ctx context.Context, idx int, ref *blob.ObjectRef) (*serialized.Value, error) {
	v, err := r.Resolve(ctx, ref)
	if err == nil {
		return v, nil
	}
	if ctx.Err() != nil ||
		errors.IsAny(err, errors.ErrBlobHashMismatch, errors.ErrBlobSizeMismatch, errors.ErrBlobBackend, errors.ErrRuntimeClosed) {
		return nil, err
	}
	return nil, errors.WrapError(errors.ErrInputUnresolvable, err, idx)
}

// OutputSink makes an output object available to the caller.
type OutputSink interface {
	StoreOutput(ctx context.Context, a *Allocation, obj *serialized.Object) (*blob.ObjectRef, error)
}

// BlobSink writes every output into a blob of its own under baseURI.
type BlobSink struct {
	store   *blob.Store
	baseURI string
}

// NewBlobSink creates a BlobSink.
func NewBlobSink(store *blob.Store, baseURI string) *BlobSink {
	return &BlobSink{store: store, baseURI: baseURI}
}

// StoreOutput implements OutputSink.
func (s *BlobSink) StoreOutput(ctx context.Context, a *Allocation, obj *serialized.Object) (*blob.ObjectRef, error) {
	w := blob.NewWriter(s.store, s.baseURI, a.ID+"-"+uuid.NewString())
	inside, b, err := w.Append(ctx, obj)
	if err != nil {
		return nil, err
	}
	return &blob.ObjectRef{InsideBLOB: inside, BLOB: b}, nil
}

// InlineSink returns outputs inline.
type InlineSink struct{}

// StoreOutput implements OutputSink.
func (InlineSink) StoreOutput(_ context.Context, _ *Allocation, obj *serialized.Object) (*blob.ObjectRef, error) {
	return &blob.ObjectRef{Inline: obj}, nil
}
