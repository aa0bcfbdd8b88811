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

// Map applies f to every item payload, leaving control elements untouched.
type Map[In, Out any] struct {
	pred Operator[In]
	f    func(In) Out
}

func NewMap[In, Out any](pred Operator[In], f func(In) Out) *Map[In, Out] { return &Map[In, Out]{pred: pred, f: f} }

func (m *Map[In, Out]) Setup(meta Meta) { m.pred.Setup(meta) }
func (m *Map[In, Out]) Structure() Structure {
	up := m.pred.Structure()
	return Structure{Name: "map", Upstream: &up}
}
func (m *Map[In, Out]) Next() element.StreamElement[Out] {
	return element.MapItem(m.pred.Next(), m.f)
}

// Filter forwards only items for which keep returns true; control
// elements always pass through, and a dropped item means Next pulls
// again rather than returning a hole.
type Filter[T any] struct {
	pred Operator[T]
	keep func(T) bool
}

func NewFilter[T any](pred Operator[T], keep func(T) bool) *Filter[T] { return &Filter[T]{pred: pred, keep: keep} }

func (f *Filter[T]) Setup(meta Meta) { f.pred.Setup(meta) }
func (f *Filter[T]) Structure() Structure {
	up := f.pred.Structure()
	return Structure{Name: "filter", Upstream: &up}
}
func (f *Filter[T]) Next() element.StreamElement[T] {
	for {
		e := f.pred.Next()
		if !e.IsItem() || f.keep(e.Payload()) {
			return e
		}
	}
}

// FlatMap expands each item into zero or more outputs via f, buffering
// them and draining the buffer before pulling the next upstream element.
type FlatMap[In, Out any] struct {
	pred Operator[In]
	f    func(In) []Out
	buf  []Out
}

func NewFlatMap[In, Out any](pred Operator[In], f func(In) []Out) *FlatMap[In, Out] {
	return &FlatMap[In, Out]{pred: pred, f: f}
}

func (fm *FlatMap[In, Out]) Setup(meta Meta) { fm.pred.Setup(meta) }
func (fm *FlatMap[In, Out]) Structure() Structure {
	up := fm.pred.Structure()
	return Structure{Name: "flat_map", Upstream: &up}
}
func (fm *FlatMap[In, Out]) Next() element.StreamElement[Out] {
	for {
		if len(fm.buf) > 0 {
			v := fm.buf[0]
			fm.buf = fm.buf[1:]
			return element.Item(v)
		}
		e := fm.pred.Next()
		if !e.IsItem() {
			return element.MapItem(e, func(In) Out { var zero Out; return zero })
		}
		fm.buf = fm.f(e.Payload())
	}
}

// KeyedPair is the payload shape produced by GroupBy: a routing key
// alongside the original value.
type KeyedPair[K comparable, V any] struct {
	Key   K
	Value V
}

// DropKey discards the routing key from a KeyedPair stream, typically
// used at the end of a group_by_reduce chain before a sink.
type DropKey[K comparable, V any] struct {
	pred Operator[KeyedPair[K, V]]
}

func NewDropKey[K comparable, V any](pred Operator[KeyedPair[K, V]]) *DropKey[K, V] {
	return &DropKey[K, V]{pred: pred}
}

func (d *DropKey[K, V]) Setup(meta Meta) { d.pred.Setup(meta) }
func (d *DropKey[K, V]) Structure() Structure {
	up := d.pred.Structure()
	return Structure{Name: "drop_key", Upstream: &up}
}
func (d *DropKey[K, V]) Next() element.StreamElement[V] {
	return element.MapItem(d.pred.Next(), func(p KeyedPair[K, V]) V { return p.Value })
}

// CollectVec is a sink-shaped terminal operator: it drives pred to
// completion, appending every item payload to a slice, and returns that
// slice once Terminate is observed.
func CollectVec[T any](pred Operator[T]) []T {
	var out []T
	for {
		e := pred.Next()
		switch {
		case e.IsTerminate():
			return out
		case e.IsItem():
			out = append(out, e.Payload())
		}
	}
}

// ForEach drives pred to completion, invoking f for every item payload.
func ForEach[T any](pred Operator[T], f func(T)) {
	for {
		e := pred.Next()
		switch {
		case e.IsTerminate():
			return
		case e.IsItem():
			f(e.Payload())
		}
	}
}
