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
	"fmt"

	"dataflow/internal/chanx"
	"dataflow/internal/network"
	"dataflow/pkg/element"
)

// Side names which upstream block a BinaryElement came from.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideLeft {
		return "left"
	}
	return "right"
}

// BinaryElement is the tagged payload BinaryStartReceiver emits: either a
// value from the left upstream, a value from the right upstream, or an end
// marker for one side's current iteration.
type BinaryElement[L, R any] struct {
	side  Side
	isEnd bool
	left  L
	right R
}

// LeftItem wraps a left-side value.
func LeftItem[L, R any](v L) BinaryElement[L, R] { return BinaryElement[L, R]{side: SideLeft, left: v} }

// RightItem wraps a right-side value.
func RightItem[L, R any](v R) BinaryElement[L, R] {
	return BinaryElement[L, R]{side: SideRight, right: v}
}

// LeftEnd marks the end of the left side's current iteration.
func LeftEnd[L, R any]() BinaryElement[L, R] { return BinaryElement[L, R]{side: SideLeft, isEnd: true} }

// RightEnd marks the end of the right side's current iteration.
func RightEnd[L, R any]() BinaryElement[L, R] {
	return BinaryElement[L, R]{side: SideRight, isEnd: true}
}

// Side reports which upstream this element belongs to.
func (b BinaryElement[L, R]) Side() Side { return b.side }

// IsEnd reports whether this is a LeftEnd/RightEnd marker rather than data.
func (b BinaryElement[L, R]) IsEnd() bool { return b.isEnd }

// Left returns the left payload; only meaningful when Side() == SideLeft
// and !IsEnd().
func (b BinaryElement[L, R]) Left() L { return b.left }

// Right returns the right payload; only meaningful when Side() == SideRight
// and !IsEnd().
func (b BinaryElement[L, R]) Right() R { return b.right }

func (b BinaryElement[L, R]) String() string {
	if b.isEnd {
		if b.side == SideLeft {
			return "LeftEnd"
		}
		return "RightEnd"
	}
	if b.side == SideLeft {
		return fmt.Sprintf("Left(%v)", b.left)
	}
	return fmt.Sprintf("Right(%v)", b.right)
}

// leftInput merges the replicas of the left upstream block into raw
// batches, tracking per-replica liveness the same way SimpleStartReceiver
// does, so BinaryStartReceiver can treat "the left side" as a single
// source while still synchronizing FlushAndRestart/Terminate across all
// of the left block's replicas.
type leftInput[L any] struct {
	sources                []*network.NetworkReceiver[L]
	live                   []bool
	instances              int
	missingFlushAndRestart int
	missingTerminate       int
}

func newLeftInput[L any](sources []*network.NetworkReceiver[L]) *leftInput[L] {
	live := make([]bool, len(sources))
	for i := range live {
		live[i] = true
	}
	return &leftInput[L]{
		sources:                sources,
		live:                   live,
		instances:              len(sources),
		missingFlushAndRestart: len(sources),
		missingTerminate:       len(sources),
	}
}

func (in *leftInput[L]) countLive() int {
	n := 0
	for _, v := range in.live {
		if v {
			n++
		}
	}
	return n
}

func (in *leftInput[L]) isTerminated() bool { return in.missingTerminate <= 0 }

// pullRaw blocks for the next batch from whichever live replica produces
// one first.
func (in *leftInput[L]) pullRaw() []element.StreamElement[L] {
	idxs := make([]int, 0, len(in.sources))
	for i, alive := range in.live {
		if alive {
			idxs = append(idxs, i)
		}
	}
	if len(idxs) == 0 {
		panic("receiver: left side pulled after every replica terminated")
	}
	if len(idxs) == 1 {
		msg, ok := in.sources[idxs[0]].Chan().Recv()
		if !ok {
			panic(fmt.Sprintf("receiver: left replica %d closed without Terminate", idxs[0]))
		}
		return msg.Batch
	}
	recvs := make([]chanx.AnyReceiver, len(idxs))
	for i, idx := range idxs {
		recvs[i] = chanx.AsAny(in.sources[idx].Chan())
	}
	chosen, value, ok := chanx.SelectAny(recvs)
	if !ok {
		panic(fmt.Sprintf("receiver: left replica %d closed without Terminate", idxs[chosen]))
	}
	return value.(element.NetworkMessage[L]).Batch
}

// rightInput is the same merge logic specialized to R; Go's lack of
// struct-level reuse across the two sides of BinaryStartReceiver makes a
// second, near-identical type the simplest option here.
type rightInput[R any] struct {
	sources                []*network.NetworkReceiver[R]
	live                   []bool
	instances              int
	missingFlushAndRestart int
	missingTerminate       int
}

func newRightInput[R any](sources []*network.NetworkReceiver[R]) *rightInput[R] {
	live := make([]bool, len(sources))
	for i := range live {
		live[i] = true
	}
	return &rightInput[R]{
		sources:                sources,
		live:                   live,
		instances:              len(sources),
		missingFlushAndRestart: len(sources),
		missingTerminate:       len(sources),
	}
}

func (in *rightInput[R]) countLive() int {
	n := 0
	for _, v := range in.live {
		if v {
			n++
		}
	}
	return n
}

func (in *rightInput[R]) isTerminated() bool { return in.missingTerminate <= 0 }

func (in *rightInput[R]) pullRaw() []element.StreamElement[R] {
	idxs := make([]int, 0, len(in.sources))
	for i, alive := range in.live {
		if alive {
			idxs = append(idxs, i)
		}
	}
	if len(idxs) == 0 {
		panic("receiver: right side pulled after every replica terminated")
	}
	if len(idxs) == 1 {
		msg, ok := in.sources[idxs[0]].Chan().Recv()
		if !ok {
			panic(fmt.Sprintf("receiver: right replica %d closed without Terminate", idxs[0]))
		}
		return msg.Batch
	}
	recvs := make([]chanx.AnyReceiver, len(idxs))
	for i, idx := range idxs {
		recvs[i] = chanx.AsAny(in.sources[idx].Chan())
	}
	chosen, value, ok := chanx.SelectAny(recvs)
	if !ok {
		panic(fmt.Sprintf("receiver: right replica %d closed without Terminate", idxs[chosen]))
	}
	return value.(element.NetworkMessage[R]).Batch
}

// BinaryStartReceiver merges two upstream blocks into one logical stream
// of BinaryElement, preserving iteration semantics (FlushAndRestart/
// Terminate synchronization per side) and, optionally, replaying one
// side's first-pass content from a cache on every subsequent iteration
// instead of re-reading it from the network. At most one side may be
// cached: both sides cached would mean infinite replay with no driver to
// decide when iterations end.
type BinaryStartReceiver[L, R any] struct {
	endpoint element.ReceiverEndpoint

	left  *leftInput[L]
	right *rightInput[R]

	hasCachedSide bool
	cachedIsLeft  bool
	cache         [][]element.StreamElement[BinaryElement[L, R]]
	cacheFull     bool
	cachePointer  int

	firstOfIteration   bool
	stagedNonCached     []element.StreamElement[BinaryElement[L, R]]
	hasStagedNonCached  bool

	outQueue          []element.StreamElement[BinaryElement[L, R]]
	pendingTerminates int
	done              bool
}

// NewBinaryStartReceiver builds a merge over all replicas of the left and
// right upstream blocks. If cachedSide is non-nil, that side's first-pass
// content is captured and replayed on subsequent iterations instead of
// being re-read from the network.
func NewBinaryStartReceiver[L, R any](
	endpoint element.ReceiverEndpoint,
	leftSources []*network.NetworkReceiver[L],
	rightSources []*network.NetworkReceiver[R],
	cachedSide *Side,
) *BinaryStartReceiver[L, R] {
	b := &BinaryStartReceiver[L, R]{
		endpoint: endpoint,
		left:     newLeftInput(leftSources),
		right:    newRightInput(rightSources),
	}
	if cachedSide != nil {
		b.hasCachedSide = true
		b.cachedIsLeft = *cachedSide == SideLeft
		b.firstOfIteration = true
	}
	return b
}

// Next returns the next element of the merged stream, blocking on
// whichever upstream is required by the current state of the merge.
func (b *BinaryStartReceiver[L, R]) Next() element.StreamElement[BinaryElement[L, R]] {
	for {
		if b.pendingTerminates > 0 {
			b.pendingTerminates--
			if b.pendingTerminates == 0 {
				b.done = true
			}
			return element.Terminate[BinaryElement[L, R]]()
		}
		if b.done {
			panic(fmt.Sprintf("receiver: next() called on %s after Terminate", b.endpoint))
		}
		if len(b.outQueue) > 0 {
			e := b.outQueue[0]
			b.outQueue = b.outQueue[1:]
			return e
		}
		b.fillOutQueue()
	}
}

// leftEnded / rightEnded implement is_ended() from the selection policy:
// for a non-cached side it is "no more data until the next FlushAndRestart
// sync point". For the cached side it is two different things depending on
// whether its one real pass has been captured yet: before cacheFull, it is
// still being read live, so "ended" means that pass is over
// (FlushAndRestart synced, or the side terminated outright with no
// FlushAndRestart at all); after cacheFull, "ended" means the replay
// pointer has caught up with the captured cache. Using only the
// post-cacheFull definition here would be circular — cacheFull is only
// ever set once both sides are observed ended, so leftEnded() must have a
// true answer available before cacheFull exists.
func (b *BinaryStartReceiver[L, R]) leftEnded() bool {
	if b.hasCachedSide && b.cachedIsLeft {
		if !b.cacheFull {
			return b.left.missingFlushAndRestart <= 0 || b.left.isTerminated()
		}
		return b.cachePointer >= len(b.cache)
	}
	return b.left.missingFlushAndRestart <= 0
}

func (b *BinaryStartReceiver[L, R]) rightEnded() bool {
	if b.hasCachedSide && !b.cachedIsLeft {
		if !b.cacheFull {
			return b.right.missingFlushAndRestart <= 0 || b.right.isTerminated()
		}
		return b.cachePointer >= len(b.cache)
	}
	return b.right.missingFlushAndRestart <= 0
}

func (b *BinaryStartReceiver[L, R]) cacheDrained() bool {
	return !b.hasCachedSide || b.cachePointer >= len(b.cache)
}

// fillOutQueue implements the select policy of §4.5, appending to
// outQueue (directly, or by staging a pulled batch) or scheduling the
// final Terminates. A step may return with nothing appended (a pulled
// batch holding only Terminate wraps to nothing); Next then calls it
// again. It recurses when a step changes state without producing
// output, rather than looping, to keep each step's intent separate.
func (b *BinaryStartReceiver[L, R]) fillOutQueue() {
	// 1. Both sides fully terminated: stop. With a cached side, synthesize
	// that side's instance count worth of Terminate (it replays instead of
	// being re-read, so nothing ever pulls its real Terminate downstream
	// through the normal per-replica path); without one, a single merged
	// stream needs exactly one Terminate. This check must precede every
	// other rule: leftEnded()/rightEnded() below are driven by
	// FlushAndRestart counts, which say nothing about termination, so a
	// stream that never sends FlushAndRestart at all would otherwise never
	// reach a rule that stops pulling from drained-and-closed sources.
	if b.left.isTerminated() && b.right.isTerminated() && b.cacheDrained() {
		switch {
		case b.hasCachedSide && b.cachedIsLeft:
			b.pendingTerminates = b.left.instances
		case b.hasCachedSide && !b.cachedIsLeft:
			b.pendingTerminates = b.right.instances
		default:
			b.pendingTerminates = 1
		}
		if b.pendingTerminates == 0 {
			b.done = true
		}
		return
	}

	// 2. Both sides ended and the cache is drained: start the next
	// iteration by resetting both sides' countdowns and rewinding the
	// cache. The first time this fires, the cached side's one real pass
	// is complete, so we also drain its upstream to its own Terminate:
	// the cached side is assumed to be a single-pass "build" input that
	// has nothing left to offer live once its first pass is captured.
	// Guarded on !hasStagedNonCached: once cacheFull, leftEnded/rightEnded
	// for the cached side read cachePointer against len(cache), and a
	// staged-but-unflushed non-cached batch can make that comparison look
	// "drained" again before the current iteration's own staged batch has
	// actually been emitted — firing here would reset cachePointer out
	// from under it.
	if !b.hasStagedNonCached && b.leftEnded() && b.rightEnded() && b.cacheDrained() {
		b.left.missingFlushAndRestart = b.left.countLive()
		b.right.missingFlushAndRestart = b.right.countLive()
		if b.hasCachedSide && !b.cacheFull {
			b.cacheFull = true
			b.drainCachedSideToTermination()
		}
		if b.hasCachedSide {
			b.cachePointer = 0
		}
		b.firstOfIteration = true
		b.fillOutQueue()
		return
	}

	// Resume a previously staged non-cached pull: cache entries (if any
	// remain unread) are served before the staged batch, so cache replay
	// for this iteration precedes whatever newly arrived on the driving
	// side.
	if b.hasStagedNonCached {
		if b.hasCachedSide && b.cachePointer < len(b.cache) {
			b.outQueue = append(b.outQueue, b.cache[b.cachePointer]...)
			b.cachePointer++
			return
		}
		b.outQueue = append(b.outQueue, b.stagedNonCached...)
		b.stagedNonCached = nil
		b.hasStagedNonCached = false
		return
	}

	// 3. First message of a new iteration with an already-captured cache:
	// pull from the non-cached side first — it alone determines whether
	// another iteration begins or termination should propagate — and
	// stage the result rather than emit it immediately.
	if b.firstOfIteration && b.hasCachedSide && b.cacheFull {
		b.firstOfIteration = false
		if b.cachedIsLeft {
			b.stagedNonCached = b.wrapRight(b.right.pullRaw())
		} else {
			b.stagedNonCached = b.wrapLeft(b.left.pullRaw())
		}
		b.hasStagedNonCached = true
		b.fillOutQueue()
		return
	}
	b.firstOfIteration = false

	// 4. Cached side has unread cache entries: replay the next one.
	if b.hasCachedSide && b.cachePointer < len(b.cache) {
		b.outQueue = append(b.outQueue, b.cache[b.cachePointer]...)
		b.cachePointer++
		return
	}

	leftEnded, rightEnded := b.leftEnded(), b.rightEnded()

	// 5. One side ended: pull only from the other.
	if leftEnded != rightEnded {
		if !leftEnded {
			b.pullAndEmitLeft()
		} else {
			b.pullAndEmitRight()
		}
		return
	}

	// 6. Select across both with fairness; degrade to a single side if the
	// other has already fully terminated.
	if b.left.isTerminated() {
		b.pullAndEmitRight()
		return
	}
	if b.right.isTerminated() {
		b.pullAndEmitLeft()
		return
	}

	// Both sides have at least one live replica and neither has ended:
	// fair select across every live replica of both sides at once.
	recvs := make([]chanx.AnyReceiver, 0, len(b.left.sources)+len(b.right.sources))
	origin := make([]Side, 0, cap(recvs))
	for i, alive := range b.left.live {
		if alive {
			recvs = append(recvs, chanx.AsAny(b.left.sources[i].Chan()))
			origin = append(origin, SideLeft)
		}
	}
	for i, alive := range b.right.live {
		if alive {
			recvs = append(recvs, chanx.AsAny(b.right.sources[i].Chan()))
			origin = append(origin, SideRight)
		}
	}
	chosen, value, ok := chanx.SelectAny(recvs)
	if !ok {
		panic(fmt.Sprintf("receiver: %s replica closed without Terminate", origin[chosen]))
	}
	if origin[chosen] == SideLeft {
		b.emit(b.wrapLeft(value.(element.NetworkMessage[L]).Batch), true)
	} else {
		b.emit(b.wrapRight(value.(element.NetworkMessage[R]).Batch), false)
	}
}

func (b *BinaryStartReceiver[L, R]) pullAndEmitLeft() {
	b.emit(b.wrapLeft(b.left.pullRaw()), true)
}

func (b *BinaryStartReceiver[L, R]) pullAndEmitRight() {
	b.emit(b.wrapRight(b.right.pullRaw()), false)
}

// emit appends wrapped to the output queue, and — when the corresponding
// side is the cached one and its pass is not yet captured — also records
// it into the cache.
func (b *BinaryStartReceiver[L, R]) emit(wrapped []element.StreamElement[BinaryElement[L, R]], isLeft bool) {
	if b.hasCachedSide && !b.cacheFull && b.cachedIsLeft == isLeft {
		b.cache = append(b.cache, wrapped)
		b.cachePointer = len(b.cache)
	}
	b.outQueue = append(b.outQueue, wrapped...)
}

// drainCachedSideToTermination blocks, reading and discarding raw batches
// from the cached side until every one of its replicas has sent
// Terminate. Its first-and-only logical pass was already captured into
// the cache before this is called, so any FlushAndRestart observed here
// is unexpected but handled defensively (decremented the same as during
// the capture pass) rather than risk never terminating.
func (b *BinaryStartReceiver[L, R]) drainCachedSideToTermination() {
	if b.cachedIsLeft {
		for !b.left.isTerminated() {
			b.wrapLeft(b.left.pullRaw())
		}
		return
	}
	for !b.right.isTerminated() {
		b.wrapRight(b.right.pullRaw())
	}
}

func (b *BinaryStartReceiver[L, R]) wrapLeft(batch []element.StreamElement[L]) []element.StreamElement[BinaryElement[L, R]] {
	if batch == nil {
		return nil
	}
	out := make([]element.StreamElement[BinaryElement[L, R]], 0, len(batch))
	for _, e := range batch {
		switch e.Kind() {
		case element.KindFlushAndRestart:
			// Swallowed until every left replica has reported its own
			// FlushAndRestart, mirroring SimpleStartReceiver's countdown:
			// only the synchronized boundary is forwarded downstream.
			b.left.missingFlushAndRestart--
			if b.left.missingFlushAndRestart <= 0 {
				out = append(out, element.Item[BinaryElement[L, R]](LeftEnd[L, R]()))
				out = append(out, element.FlushAndRestart[BinaryElement[L, R]]())
			}
		case element.KindTerminate:
			b.left.missingTerminate--
		case element.KindWatermark:
			out = append(out, element.Watermark[BinaryElement[L, R]](e.Timestamp()))
		case element.KindFlushBatch:
			out = append(out, element.FlushBatch[BinaryElement[L, R]]())
		case element.KindTimestamped:
			out = append(out, element.Timestamped(LeftItem[L, R](e.Payload()), e.Timestamp()))
		default:
			out = append(out, element.Item(LeftItem[L, R](e.Payload())))
		}
	}
	return out
}

func (b *BinaryStartReceiver[L, R]) wrapRight(batch []element.StreamElement[R]) []element.StreamElement[BinaryElement[L, R]] {
	if batch == nil {
		return nil
	}
	out := make([]element.StreamElement[BinaryElement[L, R]], 0, len(batch))
	for _, e := range batch {
		switch e.Kind() {
		case element.KindFlushAndRestart:
			// Swallowed until every right replica has reported its own
			// FlushAndRestart, mirroring SimpleStartReceiver's countdown:
			// only the synchronized boundary is forwarded downstream.
			b.right.missingFlushAndRestart--
			if b.right.missingFlushAndRestart <= 0 {
				out = append(out, element.Item[BinaryElement[L, R]](RightEnd[L, R]()))
				out = append(out, element.FlushAndRestart[BinaryElement[L, R]]())
			}
		case element.KindTerminate:
			b.right.missingTerminate--
		case element.KindWatermark:
			out = append(out, element.Watermark[BinaryElement[L, R]](e.Timestamp()))
		case element.KindFlushBatch:
			out = append(out, element.FlushBatch[BinaryElement[L, R]]())
		case element.KindTimestamped:
			out = append(out, element.Timestamped(RightItem[L, R](e.Payload()), e.Timestamp()))
		default:
			out = append(out, element.Item(RightItem[L, R](e.Payload())))
		}
	}
	return out
}
