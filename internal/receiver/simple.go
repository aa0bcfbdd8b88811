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

// Package receiver implements the start-of-block receivers: SimpleStartReceiver
// merges the replicas of a single upstream block, BinaryStartReceiver merges
// two upstream blocks (see binary.go).
package receiver

import (
	"fmt"

	"dataflow/internal/chanx"
	"dataflow/internal/network"
	"dataflow/pkg/element"
)

// sourceBatch is one NetworkMessage's payload tagged with which upstream
// replica it came from, so FlushAndRestart/Terminate counting can be
// attributed correctly while draining it one element at a time.
type sourceBatch[T any] struct {
	sourceIdx int
	elems     []element.StreamElement[T]
}

// SimpleStartReceiver is the entry point of a block fed by a single
// upstream block's replicas. It selects fairly across them, flattens
// batches back into individual elements, and synchronizes FlushAndRestart
// and Terminate so each is forwarded exactly once, only after every
// upstream replica has produced its own.
type SimpleStartReceiver[T any] struct {
	endpoint element.ReceiverEndpoint
	sources  []*network.NetworkReceiver[T]

	instances              int
	missingFlushAndRestart int
	live                   []bool // live[i]: source i has not yet sent Terminate

	current *sourceBatch[T]
}

// NewSimpleStartReceiver builds a receiver over all replicas of the
// upstream block, one NetworkReceiver per replica.
func NewSimpleStartReceiver[T any](endpoint element.ReceiverEndpoint, sources []*network.NetworkReceiver[T]) *SimpleStartReceiver[T] {
	live := make([]bool, len(sources))
	for i := range live {
		live[i] = true
	}
	return &SimpleStartReceiver[T]{
		endpoint:               endpoint,
		sources:                sources,
		instances:               len(sources),
		missingFlushAndRestart: len(sources),
		live:                   live,
	}
}

// Next pulls, flattens, and synchronizes the next element for this block.
// It blocks until an element is available from some upstream replica.
func (r *SimpleStartReceiver[T]) Next() element.StreamElement[T] {
	for {
		if r.current == nil || len(r.current.elems) == 0 {
			r.current = r.fillNext()
		}
		e := r.current.elems[0]
		r.current.elems = r.current.elems[1:]

		switch e.Kind() {
		case element.KindFlushAndRestart:
			r.missingFlushAndRestart--
			if r.missingFlushAndRestart > 0 {
				continue
			}
			r.missingFlushAndRestart = r.countLive()
			return e
		case element.KindTerminate:
			r.live[r.current.sourceIdx] = false
			remaining := r.countLive()
			if remaining > 0 {
				// A terminated replica will never contribute another
				// FlushAndRestart; shrink the outstanding count so future
				// iterations only wait on replicas still alive. This one's
				// Terminate is swallowed, matching "Terminate is emitted
				// downstream only after all upstream replicas have sent
				// theirs".
				if r.missingFlushAndRestart > remaining {
					r.missingFlushAndRestart = remaining
				}
				continue
			}
			return e
		default:
			return e
		}
	}
}

func (r *SimpleStartReceiver[T]) countLive() int {
	n := 0
	for _, v := range r.live {
		if v {
			n++
		}
	}
	return n
}

// fillNext blocks on whichever live source produces a batch first.
func (r *SimpleStartReceiver[T]) fillNext() *sourceBatch[T] {
	liveIdx := make([]int, 0, len(r.sources))
	for i, alive := range r.live {
		if alive {
			liveIdx = append(liveIdx, i)
		}
	}
	if len(liveIdx) == 0 {
		panic(fmt.Sprintf("receiver: next() called on %s after every upstream replica terminated", r.endpoint))
	}
	if len(liveIdx) == 1 {
		idx := liveIdx[0]
		msg, ok := r.sources[idx].Chan().Recv()
		if !ok {
			// Transport closed without an explicit Terminate: treat as a
			// protocol violation, per the "crash with diagnostic" policy.
			panic(fmt.Sprintf("receiver: channel for %s (upstream replica %d) closed without Terminate", r.endpoint, idx))
		}
		return &sourceBatch[T]{sourceIdx: idx, elems: msg.Batch}
	}

	recvs := make([]chanx.AnyReceiver, len(liveIdx))
	for i, idx := range liveIdx {
		recvs[i] = chanx.AsAny(r.sources[idx].Chan())
	}
	chosen, value, ok := chanx.SelectAny(recvs)
	idx := liveIdx[chosen]
	if !ok {
		panic(fmt.Sprintf("receiver: channel for %s (upstream replica %d) closed without Terminate", r.endpoint, idx))
	}
	msg := value.(element.NetworkMessage[T])
	return &sourceBatch[T]{sourceIdx: idx, elems: msg.Batch}
}
