// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package scheduler wires blocks and replicas into a running job: it owns
// replica goroutine lifecycle (via errgroup), the tail-of-block batcher
// that groups elements into NetworkMessage, and the routing decisions
// (shuffle/broadcast) that decide which downstream replica's sender a
// batch goes to.
package scheduler

import (
	"time"

	"dataflow/pkg/element"
)

// BatchModeKind selects how a tail-of-block sender groups elements into
// NetworkMessage batches before handing them to a NetworkSender.
type BatchModeKind int

const (
	// BatchFixed flushes once exactly N elements have accumulated.
	BatchFixed BatchModeKind = iota
	// BatchAdaptive flushes at N elements or after MaxDelay since the
	// oldest buffered element, whichever comes first.
	BatchAdaptive
	// BatchSingle puts one element per NetworkMessage.
	BatchSingle
)

// BatchMode configures a Batcher. N is ignored for BatchSingle; MaxDelay
// is only meaningful for BatchAdaptive.
type BatchMode struct {
	Kind     BatchModeKind
	N        int
	MaxDelay time.Duration
}

// Batcher accumulates StreamElements and reports, per element appended,
// whether the caller should flush now. An explicit FlushBatch control
// element always forces a flush regardless of mode, matching the "forces
// a flush regardless of mode" contract.
type Batcher[T any] struct {
	mode    BatchMode
	buf     []element.StreamElement[T]
	oldest  time.Time
	hasData bool
}

// NewBatcher builds a Batcher for mode.
func NewBatcher[T any](mode BatchMode) *Batcher[T] {
	if mode.Kind == BatchFixed && mode.N <= 0 {
		mode.N = 1
	}
	return &Batcher[T]{mode: mode}
}

// Push appends e to the buffer and reports whether a flush is due now.
func (b *Batcher[T]) Push(e element.StreamElement[T]) (flush bool) {
	if !b.hasData {
		b.oldest = time.Now()
		b.hasData = true
	}
	b.buf = append(b.buf, e)

	if e.Kind() == element.KindFlushBatch {
		return true
	}
	switch b.mode.Kind {
	case BatchSingle:
		return true
	case BatchFixed:
		return len(b.buf) >= b.mode.N
	case BatchAdaptive:
		return len(b.buf) >= b.mode.N || time.Since(b.oldest) >= b.mode.MaxDelay
	default:
		return true
	}
}

// Due reports whether an adaptive batch's max delay has elapsed even
// without a new element arriving; callers poll this from a ticker
// alongside Push, the same pattern the engine's background workers use
// for time-triggered flushes.
func (b *Batcher[T]) Due() bool {
	return b.mode.Kind == BatchAdaptive && b.hasData && time.Since(b.oldest) >= b.mode.MaxDelay
}

// Drain empties and returns the buffered elements.
func (b *Batcher[T]) Drain() []element.StreamElement[T] {
	out := b.buf
	b.buf = nil
	b.hasData = false
	return out
}
