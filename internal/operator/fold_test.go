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
	"testing"
	"time"

	"dataflow/pkg/element"
)

func sumFold(acc int, batch []int) int {
	for _, v := range batch {
		acc += v
	}
	return acc
}

// TestFoldBatchEmitsOncePerIteration checks that a running sum accumulates
// across a full batch and flushes exactly once on FlushAndRestart, then
// resumes accumulating from zero in the next iteration.
func TestFoldBatchEmitsOncePerIteration(t *testing.T) {
	src := newFixedSource[int](
		element.Item(1), element.Item(2), element.Item(3),
		element.FlushAndRestart[int](),
		element.Item(10),
		element.FlushAndRestart[int](),
		element.Terminate[int](),
	)
	f := NewFoldBatch[int, int](src, 2, func() int { return 0 }, sumFold)

	e1 := f.Next()
	if !e1.IsItem() || e1.Payload() != 6 {
		t.Fatalf("e1 = %v, want Item(6)", e1)
	}
	e2 := f.Next()
	if !e2.IsFlushAndRestart() {
		t.Fatalf("e2 = %v, want FlushAndRestart", e2)
	}
	e3 := f.Next()
	if !e3.IsItem() || e3.Payload() != 10 {
		t.Fatalf("e3 = %v, want Item(10)", e3)
	}
	e4 := f.Next()
	if !e4.IsFlushAndRestart() {
		t.Fatalf("e4 = %v, want FlushAndRestart", e4)
	}
	e5 := f.Next()
	if !e5.IsTerminate() {
		t.Fatalf("e5 = %v, want Terminate", e5)
	}
}

// TestFoldBatchSkipsAccumulatorOnEmptyIteration checks that an iteration
// that never saw an item emits no accumulator at all, per Init never
// running without at least one item.
func TestFoldBatchSkipsAccumulatorOnEmptyIteration(t *testing.T) {
	src := newFixedSource[int](
		element.FlushAndRestart[int](),
		element.Item(5),
		element.Terminate[int](),
	)
	f := NewFoldBatch[int, int](src, 4, func() int { return 0 }, sumFold)

	e1 := f.Next()
	if !e1.IsFlushAndRestart() {
		t.Fatalf("e1 = %v, want FlushAndRestart (no accumulator on an empty iteration)", e1)
	}
	e2 := f.Next()
	if !e2.IsItem() || e2.Payload() != 5 {
		t.Fatalf("e2 = %v, want Item(5) (partial batch flushed at Terminate)", e2)
	}
	e3 := f.Next()
	if !e3.IsTerminate() {
		t.Fatalf("e3 = %v, want Terminate", e3)
	}
}

// TestFoldBatchAccumulatorPrecedesWatermark checks the 5-step priority
// order: a watermark observed mid-batch is emitted after the accumulator
// flush, not ahead of it.
func TestFoldBatchAccumulatorPrecedesWatermark(t *testing.T) {
	src := newFixedSource[int](
		element.Item(1),
		element.Watermark[int](10*time.Millisecond),
		element.FlushAndRestart[int](),
		element.Terminate[int](),
	)
	f := NewFoldBatch[int, int](src, 4, func() int { return 0 }, sumFold)

	e1 := f.Next()
	if !e1.IsItem() || e1.Payload() != 1 {
		t.Fatalf("e1 = %v, want Item(1)", e1)
	}
	e2 := f.Next()
	if !e2.IsWatermark() {
		t.Fatalf("e2 = %v, want Watermark", e2)
	}
	e3 := f.Next()
	if !e3.IsFlushAndRestart() {
		t.Fatalf("e3 = %v, want FlushAndRestart", e3)
	}
}

// TestNewReducePerItem checks that a batch size of one folds each item in
// as it arrives rather than waiting for a full batch.
func TestNewReducePerItem(t *testing.T) {
	src := newFixedSource[int](
		element.Item(2), element.Item(3), element.Item(4),
		element.Terminate[int](),
	)
	r := NewReduce[int](src, func() int { return 1 }, func(acc, x int) int { return acc * x })

	e1 := r.Next()
	if !e1.IsItem() || e1.Payload() != 24 {
		t.Fatalf("e1 = %v, want Item(24) (1*2*3*4)", e1)
	}
	e2 := r.Next()
	if !e2.IsTerminate() {
		t.Fatalf("e2 = %v, want Terminate", e2)
	}
}
