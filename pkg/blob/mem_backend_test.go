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
	"sync"

	"github.com/pingcap/fexec/pkg/errors"
	"github.com/pingcap/fexec/pkg/serialized"
	"go.uber.org/atomic"
)

// memBackend keeps chunks in memory and can fail the first calls.
type memBackend struct {
	mu      sync.Mutex
	objects map[string][]byte

	failGets atomic.Int32
	gets     atomic.Int32
}

func newMemBackend() *memBackend {
	return &memBackend{objects: make(map[string][]byte)}
}

func (m *memBackend) Get(_ context.Context, uri string, offset, size uint64) ([]byte, error) {
	m.gets.Inc()
	if m.failGets.Dec() >= 0 {
		return nil, errors.ErrBlobBackend.GenWithStackByArgs(uri)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[uri]
	if !ok {
		return nil, errors.ErrBlobNotFound.GenWithStackByArgs(uri)
	}
	if offset+size > uint64(len(data)) {
		return nil, errors.ErrBlobSizeMismatch.GenWithStackByArgs(size, len(data))
	}
	ret := make([]byte, size)
	copy(ret, data[offset:offset+size])
	return ret, nil
}

func (m *memBackend) Put(_ context.Context, uri string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[uri] = buf
	return serialized.Hash(data), nil
}

func (m *memBackend) Delete(_ context.Context, uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, uri)
	return nil
}

func (m *memBackend) corrupt(uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[uri][0] ^= 0xff
}
