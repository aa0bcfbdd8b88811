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

import "dataflow/pkg/element"

// Concat drains first to its Terminate (swallowed), then drains second,
// forwarding its Terminate as the combined stream's own. FlushAndRestart
// from either side is forwarded as-is; it does not switch which side is
// active.
type Concat[T any] struct {
	first, second Operator[T]
	onSecond      bool
}

func NewConcat[T any](first, second Operator[T]) *Concat[T] { return &Concat[T]{first: first, second: second} }

func (c *Concat[T]) Setup(meta Meta) {
	c.first.Setup(meta)
	c.second.Setup(meta)
}
func (c *Concat[T]) Structure() Structure {
	up := c.first.Structure()
	return Structure{Name: "concat", Upstream: &up}
}
func (c *Concat[T]) Next() element.StreamElement[T] {
	for {
		if !c.onSecond {
			e := c.first.Next()
			if e.IsTerminate() {
				c.onSecond = true
				continue
			}
			return e
		}
		return c.second.Next()
	}
}

// Pair is the payload Zip produces: one value from each side.
type Pair[A, B any] struct {
	Left  A
	Right B
}

// Zip pulls one item from each of left and right, pairing them. A control
// element observed on either side is forwarded as-is; an item already
// pulled from the other side that round is held rather than dropped, and
// is the first thing paired on the next call. Terminate from either side
// ends the zipped stream.
type Zip[A, B any] struct {
	left  Operator[A]
	right Operator[B]

	hasPendingLeft bool
	pendingLeft    A
}

func NewZip[A, B any](left Operator[A], right Operator[B]) *Zip[A, B] { return &Zip[A, B]{left: left, right: right} }

func (z *Zip[A, B]) Setup(meta Meta) {
	z.left.Setup(meta)
	z.right.Setup(meta)
}
func (z *Zip[A, B]) Structure() Structure {
	up := z.left.Structure()
	return Structure{Name: "zip", Upstream: &up}
}
func (z *Zip[A, B]) Next() element.StreamElement[Pair[A, B]] {
	var l A
	if z.hasPendingLeft {
		l = z.pendingLeft
		z.hasPendingLeft = false
	} else {
		e := z.left.Next()
		if !e.IsItem() {
			return element.MapItem(e, func(A) Pair[A, B] { var zero Pair[A, B]; return zero })
		}
		l = e.Payload()
	}

	e := z.right.Next()
	if !e.IsItem() {
		z.pendingLeft, z.hasPendingLeft = l, true
		return element.MapItem(e, func(B) Pair[A, B] { var zero Pair[A, B]; return zero })
	}
	return element.Item(Pair[A, B]{Left: l, Right: e.Payload()})
}

// Broadcast is an identity operator at the per-element level: its
// contribution is entirely at the tail-of-block sender, which this
// block's Structure dump flags as fanning out to every replica of the
// downstream block instead of partitioning by key (see internal/scheduler).
type Broadcast[T any] struct {
	pred Operator[T]
}

func NewBroadcast[T any](pred Operator[T]) *Broadcast[T] { return &Broadcast[T]{pred: pred} }

func (b *Broadcast[T]) Setup(meta Meta) { b.pred.Setup(meta) }
func (b *Broadcast[T]) Structure() Structure {
	up := b.pred.Structure()
	return Structure{Name: "broadcast", Upstream: &up}
}
func (b *Broadcast[T]) Next() element.StreamElement[T] { return b.pred.Next() }
