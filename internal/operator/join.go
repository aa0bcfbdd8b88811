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

package operator

import (
	"time"

	"dataflow/internal/receiver"
	"dataflow/pkg/element"
)

// BinaryOperator wraps a *receiver.BinaryStartReceiver[L,R] so it can sit
// at the head of a chain the same way any other Operator does; it has no
// predecessor of its own.
type BinaryOperator[L, R any] struct {
	recv *receiver.BinaryStartReceiver[L, R]
}

func NewBinaryOperator[L, R any](recv *receiver.BinaryStartReceiver[L, R]) *BinaryOperator[L, R] {
	return &BinaryOperator[L, R]{recv: recv}
}

func (b *BinaryOperator[L, R]) Setup(Meta) {}
func (b *BinaryOperator[L, R]) Structure() Structure {
	return Structure{Name: "binary_start_receiver"}
}
func (b *BinaryOperator[L, R]) Next() element.StreamElement[receiver.BinaryElement[L, R]] {
	return b.recv.Next()
}

// Join consumes a merged BinaryElement stream and emits the inner
// equi-join of left and right items sharing a key, once per iteration:
// both sides are buffered (keyed by leftKey/rightKey) until their
// respective End marker, then every matching pair is emitted before the
// closing FlushAndRestart/Terminate is forwarded.
type Join[L, R any, K comparable, Out any] struct {
	pred     Operator[receiver.BinaryElement[L, R]]
	leftKey  func(L) K
	rightKey func(R) K
	combine  func(L, R) (Out, bool)

	leftBuf  map[K][]L
	rightBuf map[K][]R

	pending        []element.StreamElement[Out]
	hasPendingCtrl bool
	pendingCtrl    element.StreamElement[Out]
}

// NewJoin builds an inner equi-join. combine produces the output for a
// matching left/right pair and is called for every same-key pair seen
// within one iteration.
func NewJoin[L, R any, K comparable, Out any](
	pred Operator[receiver.BinaryElement[L, R]],
	leftKey func(L) K, rightKey func(R) K, combine func(L, R) Out,
) *Join[L, R, K, Out] {
	return NewJoinFilter[L, R, K, Out](pred, leftKey, rightKey, func(l L, r R) (Out, bool) {
		return combine(l, r), true
	})
}

// NewJoinFilter is NewJoin with a combine function that can additionally
// reject a same-key pair (used by IntervalJoin to apply its time bound).
func NewJoinFilter[L, R any, K comparable, Out any](
	pred Operator[receiver.BinaryElement[L, R]],
	leftKey func(L) K, rightKey func(R) K, combine func(L, R) (Out, bool),
) *Join[L, R, K, Out] {
	return &Join[L, R, K, Out]{
		pred: pred, leftKey: leftKey, rightKey: rightKey, combine: combine,
		leftBuf: make(map[K][]L), rightBuf: make(map[K][]R),
	}
}

func (j *Join[L, R, K, Out]) Setup(meta Meta) { j.pred.Setup(meta) }
func (j *Join[L, R, K, Out]) Structure() Structure {
	up := j.pred.Structure()
	return Structure{Name: "join", Upstream: &up}
}

func (j *Join[L, R, K, Out]) Next() element.StreamElement[Out] {
	for {
		if len(j.pending) > 0 {
			e := j.pending[0]
			j.pending = j.pending[1:]
			return e
		}
		if j.hasPendingCtrl {
			j.hasPendingCtrl = false
			return j.pendingCtrl
		}

		e := j.pred.Next()
		switch e.Kind() {
		case element.KindItem, element.KindTimestamped:
			be := e.Payload()
			if be.IsEnd() {
				continue
			}
			if be.Side() == receiver.SideLeft {
				v := be.Left()
				k := j.leftKey(v)
				j.leftBuf[k] = append(j.leftBuf[k], v)
			} else {
				v := be.Right()
				k := j.rightKey(v)
				j.rightBuf[k] = append(j.rightBuf[k], v)
			}
		case element.KindWatermark:
			return element.Watermark[Out](e.Timestamp())
		case element.KindFlushBatch:
			return element.FlushBatch[Out]()
		case element.KindFlushAndRestart, element.KindTerminate:
			for k, lefts := range j.leftBuf {
				rights := j.rightBuf[k]
				for _, l := range lefts {
					for _, r := range rights {
						if out, ok := j.combine(l, r); ok {
							j.pending = append(j.pending, element.Item(out))
						}
					}
				}
			}
			j.leftBuf = make(map[K][]L)
			j.rightBuf = make(map[K][]R)
			if e.Kind() == element.KindFlushAndRestart {
				j.pendingCtrl = element.FlushAndRestart[Out]()
			} else {
				j.pendingCtrl = element.Terminate[Out]()
			}
			j.hasPendingCtrl = true
		}
	}
}

// IntervalJoin is Join restricted to pairs whose event timestamps fall
// within [ -before, +after ] of each other; it reuses Join's per-iteration
// buffering and only changes which pairs combine accepts.
func NewIntervalJoin[L, R any, K comparable, Out any](
	pred Operator[receiver.BinaryElement[L, R]],
	leftKey func(L) K, rightKey func(R) K,
	leftTime func(L) time.Duration, rightTime func(R) time.Duration,
	before, after time.Duration,
	combine func(L, R) Out,
) *Join[L, R, K, Out] {
	return NewJoinFilter[L, R, K, Out](pred, leftKey, rightKey, func(l L, r R) (Out, bool) {
		lt, rt := leftTime(l), rightTime(r)
		if rt < lt-before || rt > lt+after {
			var zero Out
			return zero, false
		}
		return combine(l, r), true
	})
}
