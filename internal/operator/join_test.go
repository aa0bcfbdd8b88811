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

	"dataflow/internal/receiver"
	"dataflow/pkg/element"
)

type joinedPair struct {
	L, R int
}

func TestJoinEmitsInnerEquiJoinPerIteration(t *testing.T) {
	src := newFixedSource[receiver.BinaryElement[int, int]](
		element.Item(receiver.LeftItem[int, int](1)),
		element.Item(receiver.LeftItem[int, int](2)),
		element.Item(receiver.LeftEnd[int, int]()),
		element.Item(receiver.RightItem[int, int](1)),
		element.Item(receiver.RightItem[int, int](3)),
		element.Item(receiver.RightEnd[int, int]()),
		element.FlushAndRestart[receiver.BinaryElement[int, int]](),
		element.Item(receiver.LeftEnd[int, int]()),
		element.Item(receiver.RightEnd[int, int]()),
		element.Terminate[receiver.BinaryElement[int, int]](),
	)
	j := NewJoin[int, int, int, joinedPair](src,
		func(v int) int { return v }, func(v int) int { return v },
		func(l, r int) joinedPair { return joinedPair{L: l, R: r} })

	e1 := j.Next()
	if !e1.IsItem() || e1.Payload() != (joinedPair{1, 1}) {
		t.Fatalf("e1 = %v, want {1 1} (only key 1 matches)", e1)
	}
	e2 := j.Next()
	if !e2.IsFlushAndRestart() {
		t.Fatalf("e2 = %v, want FlushAndRestart (no more matches this iteration)", e2)
	}
	e3 := j.Next()
	if !e3.IsTerminate() {
		t.Fatalf("e3 = %v, want Terminate (second iteration had no buffered pairs at all)", e3)
	}
}

func TestIntervalJoinRejectsOutOfBoundPairs(t *testing.T) {
	src := newFixedSource[receiver.BinaryElement[int, int]](
		element.Item(receiver.LeftItem[int, int](100)),
		element.Item(receiver.LeftEnd[int, int]()),
		element.Item(receiver.RightItem[int, int](100)),
		element.Item(receiver.RightEnd[int, int]()),
		element.Terminate[receiver.BinaryElement[int, int]](),
	)
	// leftTime returns the value in milliseconds and rightTime adds 50ms to
	// it; a before/after of zero means only an exact match survives.
	j := NewIntervalJoin[int, int, int, joinedPair](src,
		func(v int) int { return 0 }, func(v int) int { return 0 },
		func(v int) time.Duration { return time.Duration(v) * time.Millisecond },
		func(v int) time.Duration { return time.Duration(v+50) * time.Millisecond },
		0, 0,
		func(l, r int) joinedPair { return joinedPair{L: l, R: r} })

	e1 := j.Next()
	if !e1.IsTerminate() {
		t.Fatalf("e1 = %v, want Terminate (the 50ms gap exceeds the zero bound)", e1)
	}
}
