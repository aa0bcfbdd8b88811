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

// Package stream is the public builder API: a thin façade over
// internal/operator that hides the chain-of-Operator wiring behind
// package-level combinators. Go methods cannot introduce new type
// parameters beyond their receiver's, so map/filter/join-shaped
// transforms are free functions (Map(s, f), not s.Map(f)) rather than a
// fluent chain.
package stream

import (
	"fmt"
	"time"

	"dataflow/internal/operator"
	"dataflow/internal/receiver"
	"dataflow/internal/scheduler"
	"dataflow/internal/window"
	"dataflow/pkg/element"
)

// Stream wraps one replica's operator chain for element type T.
type Stream[T any] struct {
	op operator.Operator[T]
}

// Op exposes the underlying operator chain for wiring into a scheduler
// replica; callers outside this package only need it to start a job.
func (s Stream[T]) Op() operator.Operator[T] { return s.op }

// FromSlice replays a fixed, pre-partitioned shard of the input once.
func FromSlice[T any](items []T) Stream[T] {
	return Stream[T]{op: operator.NewSliceSource(items)}
}

// FromFunc wraps an arbitrary pull function as a source.
func FromFunc[T any](pull func() (T, bool)) Stream[T] {
	return Stream[T]{op: operator.NewFuncSource(pull)}
}

// FromReceiver starts a chain from an already-merged start-of-block
// receiver (SimpleStartReceiver, wired up by the scheduler).
func FromReceiver[T any](recv interface{ Next() element.StreamElement[T] }) Stream[T] {
	return Stream[T]{op: simpleReceiverOp[T]{recv: recv}}
}

type simpleReceiverOp[T any] struct {
	recv interface{ Next() element.StreamElement[T] }
}

func (s simpleReceiverOp[T]) Setup(operator.Meta) {}
func (s simpleReceiverOp[T]) Structure() operator.Structure {
	return operator.Structure{Name: "start_receiver"}
}
func (s simpleReceiverOp[T]) Next() element.StreamElement[T] { return s.recv.Next() }

// FromBinaryReceiver starts a chain from a merged two-upstream receiver.
func FromBinaryReceiver[L, R any](recv *receiver.BinaryStartReceiver[L, R]) Stream[receiver.BinaryElement[L, R]] {
	return Stream[receiver.BinaryElement[L, R]]{op: operator.NewBinaryOperator(recv)}
}

// Map applies f to every item payload.
func Map[In, Out any](s Stream[In], f func(In) Out) Stream[Out] {
	return Stream[Out]{op: operator.NewMap(s.op, f)}
}

// Filter keeps only items for which keep returns true.
func Filter[T any](s Stream[T], keep func(T) bool) Stream[T] {
	return Stream[T]{op: operator.NewFilter(s.op, keep)}
}

// FlatMap expands each item into zero or more outputs.
func FlatMap[In, Out any](s Stream[In], f func(In) []Out) Stream[Out] {
	return Stream[Out]{op: operator.NewFlatMap(s.op, f)}
}

// FoldBatch applies a batched fold: fold is invoked once per full batch of
// batchSize items and once more, with whatever remains, at iteration end.
func FoldBatch[In, Acc any](s Stream[In], batchSize int, initAcc func() Acc, fold func(Acc, []In) Acc) Stream[Acc] {
	return Stream[Acc]{op: operator.NewFoldBatch(s.op, batchSize, initAcc, fold)}
}

// Reduce is a running, unkeyed reduction: reduce combines the running
// accumulator with each item as it arrives.
func Reduce[T any](s Stream[T], zero func() T, reduce func(acc, x T) T) Stream[T] {
	return Stream[T]{op: operator.NewReduce(s.op, zero, reduce)}
}

// GroupBy tags each item with a routing key.
func GroupBy[In any, K comparable](s Stream[In], keyFn func(In) K) Stream[operator.KeyedPair[K, In]] {
	return Stream[operator.KeyedPair[K, In]]{op: operator.NewGroupBy(s.op, keyFn)}
}

// GroupByReduce maintains one running accumulator per key and emits the
// full table once per iteration.
func GroupByReduce[In any, K comparable, V any](s Stream[In], keyFn func(In) K, valueFn func(In) V, reduce func(acc, v V) V) Stream[operator.KeyedPair[K, V]] {
	return Stream[operator.KeyedPair[K, V]]{op: operator.NewGroupByReduce(s.op, keyFn, valueFn, reduce)}
}

// DropKey discards the routing key from a KeyedPair stream.
func DropKey[K comparable, V any](s Stream[operator.KeyedPair[K, V]]) Stream[V] {
	return Stream[V]{op: operator.NewDropKey(s.op)}
}

// AddTimestamps assigns an event timestamp to every item via ts, emitting
// a Watermark right after an item whenever watermark reports one for it.
// watermark may be nil to never emit watermarks.
func AddTimestamps[T any](s Stream[T], ts func(T) time.Duration, watermark func(T) (time.Duration, bool)) Stream[T] {
	return Stream[T]{op: operator.NewAddTimestamps(s.op, ts, watermark)}
}

// Window drives one content-defined window per replica.
func Window[In, Out any](s Stream[In], proto window.Accumulator[In, Out], gap time.Duration) Stream[Out] {
	return Stream[Out]{op: operator.NewWindow(s.op, proto, gap)}
}

// Join is the inner equi-join of a merged BinaryElement stream.
func Join[L, R any, K comparable, Out any](s Stream[receiver.BinaryElement[L, R]], leftKey func(L) K, rightKey func(R) K, combine func(L, R) Out) Stream[Out] {
	return Stream[Out]{op: operator.NewJoin(s.op, leftKey, rightKey, combine)}
}

// IntervalJoin restricts Join's pairs to those whose event timestamps
// fall within [-before, +after] of each other.
func IntervalJoin[L, R any, K comparable, Out any](
	s Stream[receiver.BinaryElement[L, R]],
	leftKey func(L) K, rightKey func(R) K,
	leftTime func(L) time.Duration, rightTime func(R) time.Duration,
	before, after time.Duration,
	combine func(L, R) Out,
) Stream[Out] {
	return Stream[Out]{op: operator.NewIntervalJoin(s.op, leftKey, rightKey, leftTime, rightTime, before, after, combine)}
}

// Concat sequences first's output, then second's.
func Concat[T any](first, second Stream[T]) Stream[T] {
	return Stream[T]{op: operator.NewConcat(first.op, second.op)}
}

// Zip pairs one item from each of left and right per call.
func Zip[A, B any](left Stream[A], right Stream[B]) Stream[operator.Pair[A, B]] {
	return Stream[operator.Pair[A, B]]{op: operator.NewZip(left.op, right.op)}
}

// Broadcast marks a stream as fanning out to every downstream replica
// instead of partitioning by key; the actual fan-out happens at the
// tail-of-block sender (see internal/scheduler.Dispatcher).
func Broadcast[T any](s Stream[T]) Stream[T] {
	return Stream[T]{op: operator.NewBroadcast(s.op)}
}

// Shuffle marks s for key-partitioned fan-out across the downstream
// block's replicas by reporting "shuffle" in the chain's Structure, the
// same way Broadcast reports "broadcast". Nothing in internal/scheduler
// reads the marker back: a Dispatcher's mode is whatever its caller
// passes to scheduler.NewDispatcher. Shuffle itself does no per-element
// work; the key-to-replica routing happens in operator.Shuffle, which a
// Dispatcher in scheduler.DispatchShuffle mode consults.
func Shuffle[T any](s Stream[T]) Stream[T] {
	return Stream[T]{op: shuffleMarker[T]{pred: s.op}}
}

type shuffleMarker[T any] struct{ pred operator.Operator[T] }

func (m shuffleMarker[T]) Setup(meta operator.Meta) { m.pred.Setup(meta) }
func (m shuffleMarker[T]) Structure() operator.Structure {
	up := m.pred.Structure()
	return operator.Structure{Name: "shuffle", Upstream: &up}
}
func (m shuffleMarker[T]) Next() element.StreamElement[T] { return m.pred.Next() }

// BatchMode marks the tail-of-block sender's batching policy for s,
// overriding the job's default scheduler.BatchMode. Like Shuffle and
// Broadcast, it does no per-element work itself; ModeOf reads the
// marker back off the chain. Nothing in internal/scheduler calls ModeOf:
// a Batcher uses the BatchMode its caller passes to it.
func BatchMode[T any](s Stream[T], mode scheduler.BatchMode) Stream[T] {
	return Stream[T]{op: batchModeMarker[T]{pred: s.op, mode: mode}}
}

type batchModeMarker[T any] struct {
	pred operator.Operator[T]
	mode scheduler.BatchMode
}

func (m batchModeMarker[T]) Setup(meta operator.Meta) { m.pred.Setup(meta) }
func (m batchModeMarker[T]) Structure() operator.Structure {
	up := m.pred.Structure()
	return operator.Structure{Name: "batch_mode", Detail: fmt.Sprintf("%+v", m.mode), Upstream: &up}
}
func (m batchModeMarker[T]) Next() element.StreamElement[T] { return m.pred.Next() }

// ModeOf reports the BatchMode a prior stream.BatchMode(s, mode) call
// attached to s's chain head, if any. A caller wiring up this block's
// sender can use it to pick the Batcher's mode; internal/scheduler does
// not call it.
func ModeOf[T any](s Stream[T]) (scheduler.BatchMode, bool) {
	if m, ok := s.op.(batchModeMarker[T]); ok {
		return m.mode, true
	}
	return scheduler.BatchMode{}, false
}

// CollectVec drives s to completion and returns every item payload.
func CollectVec[T any](s Stream[T]) []T { return operator.CollectVec(s.op) }

// ForEach drives s to completion, invoking f for every item payload.
func ForEach[T any](s Stream[T], f func(T)) { operator.ForEach(s.op, f) }
