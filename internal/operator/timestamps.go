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

	"dataflow/pkg/element"
)

// AddTimestamps assigns an event timestamp to every item via ts, and
// optionally follows it with a Watermark when watermark reports one for
// that item. Control elements pass through unchanged.
type AddTimestamps[T any] struct {
	pred      Operator[T]
	ts        func(T) time.Duration
	watermark func(T) (time.Duration, bool)

	hasPendingWatermark bool
	pendingWatermark    time.Duration
}

// NewAddTimestamps builds an AddTimestamps operator over pred. watermark
// may be nil, in which case no watermarks are ever emitted.
func NewAddTimestamps[T any](pred Operator[T], ts func(T) time.Duration, watermark func(T) (time.Duration, bool)) *AddTimestamps[T] {
	return &AddTimestamps[T]{pred: pred, ts: ts, watermark: watermark}
}

func (a *AddTimestamps[T]) Setup(meta Meta) { a.pred.Setup(meta) }

func (a *AddTimestamps[T]) Structure() Structure {
	up := a.pred.Structure()
	return Structure{Name: "add_timestamps", Upstream: &up}
}

func (a *AddTimestamps[T]) Next() element.StreamElement[T] {
	if a.hasPendingWatermark {
		ts := a.pendingWatermark
		a.hasPendingWatermark = false
		return element.Watermark[T](ts)
	}

	e := a.pred.Next()
	if !e.IsItem() {
		return e
	}
	item := e.Payload()
	if a.watermark != nil {
		if wm, ok := a.watermark(item); ok {
			a.pendingWatermark, a.hasPendingWatermark = wm, true
		}
	}
	return element.Timestamped(item, a.ts(item))
}
