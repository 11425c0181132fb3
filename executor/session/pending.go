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
package session

import "sync"

// pendingMap correlates requests sent to the caller with the responses
// that come back on the same stream.
type pendingMap[T any] struct {
	mu      sync.Mutex
	closed  bool
	waiters map[string]chan T
}

func newPendingMap[T any]() *pendingMap[T] {
	return &pendingMap[T]{waiters: make(map[string]chan T)}
}

// register returns the channel the response of id is delivered on. It
// returns false if the map is closed or id is already waiting.
func (p *pendingMap[T]) register(id string) (<-chan T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, false
	}
	if _, ok := p.waiters[id]; ok {
		return nil, false
	}
	ch := make(chan T, 1)
	p.waiters[id] = ch
	return ch, true
}

// resolve delivers resp to the waiter of id.
func (p *pendingMap[T]) resolve(id string, resp T) bool {
	p.mu.Lock()
	ch, ok := p.waiters[id]
	delete(p.waiters, id)
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- resp
	return true
}

// forget drops the waiter of id.
func (p *pendingMap[T]) forget(id string) {
	p.mu.Lock()
	delete(p.waiters, id)
	p.mu.Unlock()
}

// close rejects further registrations and returns the ids still waiting.
// Waiters are expected to give up through their context.
func (p *pendingMap[T]) close() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	ids := make([]string, 0, len(p.waiters))
	for id := range p.waiters {
		ids = append(ids, id)
	}
	p.waiters = make(map[string]chan T)
	return ids
}

func (p *pendingMap[T]) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}
