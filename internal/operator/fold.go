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
	"fmt"
	"time"

	"dataflow/pkg/element"
)

// FoldBatch accumulates upstream items in batches of BatchSize, folding
// each full batch into an accumulator with Fold, and emits the running
// accumulator once per iteration (on FlushAndRestart) or once at stream
// end (on Terminate). Init builds a fresh accumulator the first time an
// iteration sees an item; Fold never runs on an iteration that received
// no items at all.
type FoldBatch[In, Acc any] struct {
	pred      Operator[In]
	batchSize int
	initAcc   func() Acc
	fold      func(acc Acc, batch []In) Acc

	hasAcc bool
	acc    Acc
	store  []In

	receivedEnd     bool
	receivedEndIter bool

	hasWatermark bool
	maxWatermark time.Duration

	hasTimestamp bool
	timestamp    time.Duration
}

// NewFoldBatch builds a FoldBatch operator over pred. batchSize must be
// positive; fold is invoked with a slice of exactly batchSize items for
// every full batch, and with whatever remains (possibly empty) at
// iteration end.
func NewFoldBatch[In, Acc any](pred Operator[In], batchSize int, initAcc func() Acc, fold func(Acc, []In) Acc) *FoldBatch[In, Acc] {
	if batchSize <= 0 {
		panic("operator: FoldBatch batch size must be positive")
	}
	return &FoldBatch[In, Acc]{pred: pred, batchSize: batchSize, initAcc: initAcc, fold: fold}
}

func (f *FoldBatch[In, Acc]) Setup(meta Meta) { f.pred.Setup(meta) }

func (f *FoldBatch[In, Acc]) Structure() Structure {
	up := f.pred.Structure()
	return Structure{Name: "fold_batch", Detail: fmt.Sprintf("batch_size=%d", f.batchSize), Upstream: &up}
}

// Next implements the state machine of the batched fold operator: drain
// upstream until an iteration or stream boundary, then emit, one per
// call, the accumulator, the watermark, and FlushAndRestart or Terminate,
// in that priority order, skipping whichever is absent. The drain loop
// resumes only on the call after FlushAndRestart has been emitted.
func (f *FoldBatch[In, Acc]) Next() element.StreamElement[Acc] {
	for !f.receivedEnd {
		e := f.pred.Next()
		switch e.Kind() {
		case element.KindItem, element.KindTimestamped:
			if !f.hasAcc {
				f.acc = f.initAcc()
				f.hasAcc = true
			}
			f.store = append(f.store, e.Payload())
			if e.Kind() == element.KindTimestamped {
				if !f.hasTimestamp || e.Timestamp() > f.timestamp {
					f.timestamp = e.Timestamp()
				}
				f.hasTimestamp = true
			}
			if len(f.store) == f.batchSize {
				f.acc = f.fold(f.acc, f.store)
				f.store = nil
			}
		case element.KindWatermark:
			if !f.hasWatermark || e.Timestamp() > f.maxWatermark {
				f.maxWatermark = e.Timestamp()
			}
			f.hasWatermark = true
		case element.KindFlushAndRestart:
			f.receivedEnd = true
			f.receivedEndIter = true
		case element.KindTerminate:
			f.receivedEnd = true
			f.receivedEndIter = false
		case element.KindFlushBatch:
			// Aggregates never emit a partial result on demand.
		}
	}

	if f.hasAcc {
		f.acc = f.fold(f.acc, f.store)
		f.store = nil
		acc, ts, hasTs := f.acc, f.timestamp, f.hasTimestamp
		f.hasAcc, f.hasTimestamp = false, false
		if hasTs {
			return element.Timestamped(acc, ts)
		}
		return element.Item(acc)
	}
	if f.hasWatermark {
		ts := f.maxWatermark
		f.hasWatermark = false
		return element.Watermark[Acc](ts)
	}
	if f.receivedEndIter {
		f.receivedEnd, f.receivedEndIter = false, false
		return element.FlushAndRestart[Acc]()
	}
	return element.Terminate[Acc]()
}

// NewReduce builds a running, unkeyed reduction as a FoldBatch with a
// batch size of one: reduce combines the current accumulator with each
// item as it arrives, rather than waiting for a full batch.
func NewReduce[T any](pred Operator[T], zero func() T, reduce func(acc, x T) T) *FoldBatch[T, T] {
	return NewFoldBatch(pred, 1, zero, func(acc T, batch []T) T {
		if len(batch) == 0 {
			return acc
		}
		return reduce(acc, batch[0])
	})
}
