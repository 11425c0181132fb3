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
package client

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/executorpb"
	"github.com/pingcap/fexec/pkg/serialized"
)

type download struct {
	manifest serialized.Manifest
	verifier *serialized.Verifier
	data     []byte
}

// Downloads reassembles the objects the executor uploads to the caller and
// keeps them in memory.
type Downloads struct {
	mu      sync.Mutex
	pending map[string]*download
	objects map[string]*serialized.Object
}

// NewDownloads creates an empty Downloads.
func NewDownloads() *Downloads {
	return &Downloads{
		pending: make(map[string]*download),
		objects: make(map[string]*serialized.Object),
	}
}

// Add consumes one upload message. The ack is returned once the upload is
// complete or fails, it must be sent back with Session.AckUpload.
func (d *Downloads) Add(msg *executorpb.UploadObject) *executorpb.UploadObjectResponse {
	d.mu.Lock()
	defer d.mu.Unlock()

	if msg.Manifest != nil {
		if _, ok := d.pending[msg.UploadID]; ok {
			return failedAck(msg.UploadID, errors.ErrUploadExists.GenWithStackByArgs(msg.UploadID))
		}
		if err := msg.Manifest.Validate(); err != nil {
			return failedAck(msg.UploadID, err)
		}
		dl := &download{manifest: *msg.Manifest, data: make([]byte, 0, msg.Manifest.Size)}
		dl.verifier = serialized.NewVerifier(&dl.manifest)
		d.pending[msg.UploadID] = dl
		if dl.manifest.Size == 0 {
			return d.finish(msg.UploadID, dl)
		}
		return nil
	}

	dl, ok := d.pending[msg.UploadID]
	if !ok {
		return failedAck(msg.UploadID, errors.ErrUploadNotFound.GenWithStackByArgs(msg.UploadID))
	}
	if dl.verifier.Written()+uint64(len(msg.Chunk)) > dl.manifest.Size {
		delete(d.pending, msg.UploadID)
		return failedAck(msg.UploadID, errors.ErrUploadOverflow.GenWithStackByArgs(
			msg.UploadID, dl.verifier.Written()+uint64(len(msg.Chunk)), dl.manifest.Size))
	}
	_, _ = dl.verifier.Write(msg.Chunk)
	dl.data = append(dl.data, msg.Chunk...)
	if dl.verifier.Written() < dl.manifest.Size {
		return nil
	}
	return d.finish(msg.UploadID, dl)
}

func (d *Downloads) finish(uploadID string, dl *download) *executorpb.UploadObjectResponse {
	delete(d.pending, uploadID)
	if err := dl.verifier.Verify(); err != nil {
		return failedAck(uploadID, err)
	}
	id := uuid.NewString()
	d.objects[id] = &serialized.Object{Manifest: dl.manifest, Data: dl.data}
	return &executorpb.UploadObjectResponse{
		UploadID: uploadID,
		Status:   executorpb.UploadStatusOK,
		ObjectID: id,
	}
}

// Object returns a completed download by the object id of its ack.
func (d *Downloads) Object(objectID string) (*serialized.Object, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	obj, ok := d.objects[objectID]
	return obj, ok
}

func failedAck(uploadID string, err error) *executorpb.UploadObjectResponse {
	return &executorpb.UploadObjectResponse{
		UploadID: uploadID,
		Status:   executorpb.UploadStatusFailed,
		Message:  err.Error(),
	}
}
