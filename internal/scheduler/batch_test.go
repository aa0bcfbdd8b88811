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

package scheduler

import (
	"testing"
	"time"

	"dataflow/pkg/element"
)

func TestBatcherFixedFlushesAtN(t *testing.T) {
	b := NewBatcher[int](BatchMode{Kind: BatchFixed, N: 3})

	if b.Push(element.Item(1)) {
		t.Fatalf("flush due after 1/3")
	}
	if b.Push(element.Item(2)) {
		t.Fatalf("flush due after 2/3")
	}
	if !b.Push(element.Item(3)) {
		t.Fatalf("flush should be due at 3/3")
	}
	batch := b.Drain()
	if len(batch) != 3 {
		t.Fatalf("drained %d elements, want 3", len(batch))
	}
}

func TestBatcherSingleFlushesEveryElement(t *testing.T) {
	b := NewBatcher[int](BatchMode{Kind: BatchSingle})
	if !b.Push(element.Item(1)) {
		t.Fatalf("BatchSingle should flush on every push")
	}
	batch := b.Drain()
	if len(batch) != 1 {
		t.Fatalf("drained %d elements, want 1", len(batch))
	}
}

func TestBatcherFlushBatchForcesFlushAndIsCarried(t *testing.T) {
	b := NewBatcher[int](BatchMode{Kind: BatchFixed, N: 100})
	b.Push(element.Item(1))
	if !b.Push(element.FlushBatch[int]()) {
		t.Fatalf("FlushBatch must force a flush regardless of mode")
	}
	batch := b.Drain()
	if len(batch) != 2 {
		t.Fatalf("drained %d elements, want 2 (the item plus the FlushBatch marker itself)", len(batch))
	}
	if batch[1].Kind() != element.KindFlushBatch {
		t.Fatalf("batch[1] = %v, want the FlushBatch marker to be forwarded, not swallowed", batch[1])
	}
}

func TestBatcherAdaptiveFlushesOnDelayEvenWithoutFlushBatch(t *testing.T) {
	b := NewBatcher[int](BatchMode{Kind: BatchAdaptive, N: 100, MaxDelay: 10 * time.Millisecond})
	b.Push(element.Item(1))
	if b.Due() {
		t.Fatalf("should not be due immediately")
	}
	time.Sleep(15 * time.Millisecond)
	if !b.Due() {
		t.Fatalf("should be due once MaxDelay has elapsed")
	}
}

func TestBatcherDrainResetsState(t *testing.T) {
	b := NewBatcher[int](BatchMode{Kind: BatchFixed, N: 1})
	b.Push(element.Item(1))
	b.Drain()
	if len(b.Drain()) != 0 {
		t.Fatalf("second drain should be empty")
	}
}
