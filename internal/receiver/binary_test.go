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

package receiver

import (
	"testing"

	"dataflow/internal/network"
	"dataflow/pkg/element"
)

// TestBinaryStartReceiverUncachedMerge checks that with no cached side, a
// finite left and right stream merge into every item from both sides
// followed by exactly one Terminate, with no infinite restart.
func TestBinaryStartReceiverUncachedMerge(t *testing.T) {
	endpoint := element.ReceiverEndpoint{Destination: element.Coord{BlockID: 2}, SourceBlockID: 0}
	leftRecv, leftSend := newLocalSource[int](t, endpoint)
	rightRecv, rightSend := newLocalSource[string](t, endpoint)

	b := NewBinaryStartReceiver[int, string](endpoint,
		[]*network.NetworkReceiver[int]{leftRecv},
		[]*network.NetworkReceiver[string]{rightRecv},
		nil)

	send(t, leftSend, element.Coord{BlockID: 0}, element.Item(1), element.Item(2), element.Terminate[int]())
	send(t, rightSend, element.Coord{BlockID: 1}, element.Item("a"), element.Terminate[string]())

	var leftSeen []int
	var rightSeen []string
	farCount, terminateCount := 0, 0
	for {
		e := b.Next()
		if e.IsTerminate() {
			terminateCount++
			break
		}
		if e.IsFlushAndRestart() {
			farCount++
			continue
		}
		if !e.IsItem() {
			continue
		}
		be := e.Payload()
		if be.IsEnd() {
			continue
		}
		if be.Side() == SideLeft {
			leftSeen = append(leftSeen, be.Left())
		} else {
			rightSeen = append(rightSeen, be.Right())
		}
	}

	if len(leftSeen) != 2 || leftSeen[0] != 1 || leftSeen[1] != 2 {
		t.Fatalf("left items = %v, want [1 2]", leftSeen)
	}
	if len(rightSeen) != 1 || rightSeen[0] != "a" {
		t.Fatalf("right items = %v, want [a]", rightSeen)
	}
	if farCount != 0 {
		t.Fatalf("got %d FlushAndRestart, want 0 (neither side sent one)", farCount)
	}
	if terminateCount != 1 {
		t.Fatalf("got %d Terminate, want exactly 1", terminateCount)
	}
}

// TestBinaryStartReceiverCachedSideReplays drives a broadcast-join shape:
// the left side is cached after one real pass, and its content must be
// replayed once per iteration the driving (right) side produces, not just
// once overall.
func TestBinaryStartReceiverCachedSideReplays(t *testing.T) {
	endpoint := element.ReceiverEndpoint{Destination: element.Coord{BlockID: 3}, SourceBlockID: 0}
	leftRecv, leftSend := newLocalSource[int](t, endpoint)
	rightRecv, rightSend := newLocalSource[string](t, endpoint)

	cachedSide := SideLeft
	b := NewBinaryStartReceiver[int, string](endpoint,
		[]*network.NetworkReceiver[int]{leftRecv},
		[]*network.NetworkReceiver[string]{rightRecv},
		&cachedSide)

	// Left is a single-pass build input: one value, then Terminate, no
	// FlushAndRestart at all.
	send(t, leftSend, element.Coord{BlockID: 0}, element.Item(100), element.Terminate[int]())

	// e1 drains the left side's only pass into the cache.
	e1 := b.Next()
	if !e1.IsItem() || e1.Payload().Left() != 100 {
		t.Fatalf("e1 = %v, want Left(100)", e1)
	}

	// Right's first iteration.
	send(t, rightSend, element.Coord{BlockID: 1}, element.Item("a"), element.FlushAndRestart[string]())

	var gotLeft []int
	var gotRight []string
	farCount := 0
	drain := func(n int) {
		for i := 0; i < n; i++ {
			e := b.Next()
			switch {
			case e.IsFlushAndRestart():
				farCount++
			case e.IsItem() && !e.Payload().IsEnd():
				be := e.Payload()
				if be.Side() == SideLeft {
					gotLeft = append(gotLeft, be.Left())
				} else {
					gotRight = append(gotRight, be.Right())
				}
			}
		}
	}
	// right's first batch unwraps to 3 elements: Item(a), RightEnd, FAR.
	drain(3)

	// Right's second iteration.
	send(t, rightSend, element.Coord{BlockID: 1}, element.Item("b"), element.FlushAndRestart[string]())
	// The next pull (triggered by entering iteration 2) replays the
	// cache first, then right's second batch: cache-replay(1) + 3.
	drain(4)

	send(t, rightSend, element.Coord{BlockID: 1}, element.Terminate[string]())
	// One final phantom iteration replays the cache once more before
	// Terminate, then Terminate itself.
	var sawTerminate bool
	for i := 0; i < 4 && !sawTerminate; i++ {
		e := b.Next()
		if e.IsTerminate() {
			sawTerminate = true
			break
		}
		if e.IsItem() && !e.Payload().IsEnd() && e.Payload().Side() == SideLeft {
			gotLeft = append(gotLeft, e.Payload().Left())
		}
	}
	if !sawTerminate {
		t.Fatalf("never observed Terminate")
	}

	if len(gotRight) != 2 || gotRight[0] != "a" || gotRight[1] != "b" {
		t.Fatalf("right items = %v, want [a b]", gotRight)
	}
	if farCount != 2 {
		t.Fatalf("got %d FlushAndRestart, want 2 (one per right iteration)", farCount)
	}
	if len(gotLeft) < 2 {
		t.Fatalf("left cache replayed %d times, want at least 2 (once per right iteration)", len(gotLeft))
	}
	for _, v := range gotLeft {
		if v != 100 {
			t.Fatalf("replayed left value = %d, want 100 every time", v)
		}
	}
}

// TestBinaryStartReceiverPanicsAfterTerminate exercises the "next() called
// after Terminate" protocol-violation guard.
func TestBinaryStartReceiverPanicsAfterTerminate(t *testing.T) {
	endpoint := element.ReceiverEndpoint{Destination: element.Coord{BlockID: 4}, SourceBlockID: 0}
	leftRecv, leftSend := newLocalSource[int](t, endpoint)
	rightRecv, rightSend := newLocalSource[int](t, endpoint)
	b := NewBinaryStartReceiver[int, int](endpoint,
		[]*network.NetworkReceiver[int]{leftRecv},
		[]*network.NetworkReceiver[int]{rightRecv},
		nil)

	send(t, leftSend, element.Coord{BlockID: 0}, element.Terminate[int]())
	send(t, rightSend, element.Coord{BlockID: 1}, element.Terminate[int]())

	for {
		if b.Next().IsTerminate() {
			break
		}
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic calling Next() after Terminate")
		}
	}()
	b.Next()
}
