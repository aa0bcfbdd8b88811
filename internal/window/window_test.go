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

package window

import (
	"testing"
	"time"

	"dataflow/pkg/element"
)

type sumAcc struct{ total int }

func (a *sumAcc) Process(x int)     { a.total += x }
func (a *sumAcc) Output() int       { return a.total }
func (a *sumAcc) Clone() Accumulator[int, int] { return &sumAcc{} }

// fakeClock lets tests advance wall-clock time deterministically instead
// of sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestManagerAccumulatesWithinGap(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	m := NewManager[int, int](&sumAcc{}, 5*time.Second, clock.now)

	var out []element.StreamElement[int]
	out = m.Process(element.Item(1), out)
	clock.advance(2 * time.Second)
	out = m.Process(element.Item(2), out)
	clock.advance(2 * time.Second)
	out = m.Process(element.Item(3), out)

	if len(out) != 0 {
		t.Fatalf("expected no output while window stays active, got %v", out)
	}
}

func TestManagerFinalizesOnGap(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	m := NewManager[int, int](&sumAcc{}, 5*time.Second, clock.now)

	var out []element.StreamElement[int]
	out = m.Process(element.Item(1), out)
	out = m.Process(element.Item(2), out)
	clock.advance(10 * time.Second)
	out = m.Process(element.Item(10), out)

	if len(out) != 1 {
		t.Fatalf("expected exactly one finalized window, got %d: %v", len(out), out)
	}
	if got := out[0].Payload(); got != 3 {
		t.Fatalf("finalized window total = %d, want 3", got)
	}

	clock.advance(10 * time.Second)
	out = m.Process(element.Terminate[int](), out)
	if len(out) != 3 {
		t.Fatalf("expected finalize + Terminate appended, got %d: %v", len(out), out)
	}
	if got := out[1].Payload(); got != 10 {
		t.Fatalf("second window total = %d, want 10", got)
	}
	if !out[2].IsTerminate() {
		t.Fatalf("expected Terminate as final element, got %v", out[2])
	}
}

func TestManagerFlushAndRestartFinalizesAndPropagates(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	m := NewManager[int, int](&sumAcc{}, time.Minute, clock.now)

	var out []element.StreamElement[int]
	out = m.Process(element.Item(5), out)
	out = m.Process(element.FlushAndRestart[int](), out)

	if len(out) != 2 {
		t.Fatalf("expected finalize + FlushAndRestart, got %d: %v", len(out), out)
	}
	if got := out[0].Payload(); got != 5 {
		t.Fatalf("window total = %d, want 5", got)
	}
	if !out[1].IsFlushAndRestart() {
		t.Fatalf("expected FlushAndRestart, got %v", out[1])
	}

	// No open window: a second FlushAndRestart with nothing absorbed emits
	// no finalize, only the propagated marker.
	out = m.Process(element.FlushAndRestart[int](), nil)
	if len(out) != 1 || !out[0].IsFlushAndRestart() {
		t.Fatalf("expected bare FlushAndRestart passthrough, got %v", out)
	}
}

func TestManagerWatermarkPassesThroughWithoutTouchingWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	m := NewManager[int, int](&sumAcc{}, time.Minute, clock.now)

	var out []element.StreamElement[int]
	out = m.Process(element.Item(1), out)
	out = m.Process(element.Watermark[int](3*time.Second), out)

	if len(out) != 1 || !out[0].IsWatermark() {
		t.Fatalf("expected watermark passthrough, got %v", out)
	}

	out = m.Process(element.Terminate[int](), nil)
	if len(out) != 2 {
		t.Fatalf("expected finalize + Terminate, window state unaffected by watermark, got %v", out)
	}
	if got := out[0].Payload(); got != 1 {
		t.Fatalf("window total = %d, want 1 (watermark must not reset accumulator)", got)
	}
}
