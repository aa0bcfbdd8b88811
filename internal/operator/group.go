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

// GroupBy tags each item with a routing key, producing the KeyedPair
// stream that group_by_reduce, Shuffle, and the per-key window manager
// all key off of.
type GroupBy[In any, K comparable] struct {
	pred  Operator[In]
	keyFn func(In) K
}

func NewGroupBy[In any, K comparable](pred Operator[In], keyFn func(In) K) *GroupBy[In, K] {
	return &GroupBy[In, K]{pred: pred, keyFn: keyFn}
}

func (g *GroupBy[In, K]) Setup(meta Meta) { g.pred.Setup(meta) }
func (g *GroupBy[In, K]) Structure() Structure {
	up := g.pred.Structure()
	return Structure{Name: "group_by", Upstream: &up}
}
func (g *GroupBy[In, K]) Next() element.StreamElement[KeyedPair[K, In]] {
	return element.MapItem(g.pred.Next(), func(v In) KeyedPair[K, In] {
		return KeyedPair[K, In]{Key: g.keyFn(v), Value: v}
	})
}

// GroupByReduce maintains one running accumulator per key, reducing every
// arriving value into it, and emits the full key -> accumulator table (in
// first-seen key order, for determinism within a replica) once per
// iteration on FlushAndRestart, and once more on Terminate.
type GroupByReduce[In any, K comparable, V any] struct {
	pred    Operator[In]
	keyFn   func(In) K
	valueFn func(In) V
	reduce  func(acc, v V) V

	state map[K]V
	order []K

	pending        []element.StreamElement[KeyedPair[K, V]]
	hasPendingCtrl bool
	pendingCtrl    element.StreamElement[KeyedPair[K, V]]
}

func NewGroupByReduce[In any, K comparable, V any](
	pred Operator[In], keyFn func(In) K, valueFn func(In) V, reduce func(acc, v V) V,
) *GroupByReduce[In, K, V] {
	return &GroupByReduce[In, K, V]{
		pred: pred, keyFn: keyFn, valueFn: valueFn, reduce: reduce,
		state: make(map[K]V),
	}
}

func (g *GroupByReduce[In, K, V]) Setup(meta Meta) { g.pred.Setup(meta) }
func (g *GroupByReduce[In, K, V]) Structure() Structure {
	up := g.pred.Structure()
	return Structure{Name: "group_by_reduce", Upstream: &up}
}

func (g *GroupByReduce[In, K, V]) Next() element.StreamElement[KeyedPair[K, V]] {
	for {
		if len(g.pending) > 0 {
			e := g.pending[0]
			g.pending = g.pending[1:]
			return e
		}
		if g.hasPendingCtrl {
			g.hasPendingCtrl = false
			return g.pendingCtrl
		}

		e := g.pred.Next()
		switch e.Kind() {
		case element.KindItem, element.KindTimestamped:
			k := g.keyFn(e.Payload())
			v := g.valueFn(e.Payload())
			if cur, ok := g.state[k]; ok {
				g.state[k] = g.reduce(cur, v)
			} else {
				g.state[k] = v
				g.order = append(g.order, k)
			}
		case element.KindWatermark:
			return element.Watermark[KeyedPair[K, V]](e.Timestamp())
		case element.KindFlushBatch:
			return element.FlushBatch[KeyedPair[K, V]]()
		case element.KindFlushAndRestart, element.KindTerminate:
			for _, k := range g.order {
				g.pending = append(g.pending, element.Item(KeyedPair[K, V]{Key: k, Value: g.state[k]}))
			}
			g.state = make(map[K]V)
			g.order = nil
			if e.Kind() == element.KindFlushAndRestart {
				g.pendingCtrl = element.FlushAndRestart[KeyedPair[K, V]]()
			} else {
				g.pendingCtrl = element.Terminate[KeyedPair[K, V]]()
			}
			g.hasPendingCtrl = true
		}
	}
}
