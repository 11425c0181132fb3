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

package containers

import (
	"sync"

	"github.com/edwingeng/deque"

	"github.com/pingcap/fexec/pkg/errors"
)

// Queue is an unbounded FIFO whose consumers are woken through C.
// A send on C means at least one element may be available.
type Queue[T any] struct {
	C chan struct{}

	mu     sync.Mutex
	elems  deque.Deque
	closed bool
}

// NewQueue creates an unbounded queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		C:     make(chan struct{}, 1),
		elems: deque.NewDeque(),
	}
}

// Push appends elem. It never blocks.
func (q *Queue[T]) Push(elem T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errors.ErrRuntimeClosed.GenWithStackByArgs()
	}
	q.elems.PushBack(elem)
	q.mu.Unlock()

	select {
	case q.C <- struct{}{}:
	default:
	}
	return nil
}

// Pop removes the head element.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.elems.Empty() {
		var zero T
		return zero, false
	}
	return q.elems.PopFront().(T), true
}

// Size returns the number of queued elements.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.elems.Len()
}

// Close rejects further pushes and returns whatever is left, oldest first.
// Closing twice returns nil the second time.
func (q *Queue[T]) Close() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	rest := make([]T, 0, q.elems.Len())
	for !q.elems.Empty() {
		rest = append(rest, q.elems.PopFront().(T))
	}
	return rest
}
