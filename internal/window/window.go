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

// Package window implements the content-defined window manager: a window
// stays open as long as elements keep arriving inside the configured gap,
// and closes the moment one arrives too late, finalizing on wall-clock
// inactivity rather than on a fixed tumbling boundary.
package window

import (
	"time"

	"dataflow/pkg/element"
)

// Accumulator absorbs items into a window and, once the window closes,
// consumes itself to produce the finalized output. Implementations are
// cloned from an immutable prototype every time a new window opens.
type Accumulator[In, Out any] interface {
	Process(item In)
	Output() Out
	Clone() Accumulator[In, Out]
}

// state names where a Manager sits relative to its current window.
type state int

const (
	stateEmpty state = iota
	stateOpen
)

// Manager drives one key's Empty -> Open -> Closed window lifecycle. It is
// not safe for concurrent use; callers keep one Manager per key and drive
// it from a single goroutine, same as every other piece of per-key state
// in this engine.
type Manager[In, Out any] struct {
	gap      time.Duration
	proto    Accumulator[In, Out]
	now      func() time.Time

	st       state
	acc      Accumulator[In, Out]
	lastSeen time.Time
}

// NewManager builds a Manager that finalizes an open window once gap has
// elapsed since the last item it absorbed. now defaults to time.Now; tests
// pass a fake clock to make inactivity deterministic.
func NewManager[In, Out any](proto Accumulator[In, Out], gap time.Duration, now func() time.Time) *Manager[In, Out] {
	if now == nil {
		now = time.Now
	}
	return &Manager[In, Out]{gap: gap, proto: proto, now: now}
}

// Process feeds one upstream element through the window state machine,
// appending zero or more results to out and returning the extended slice.
// A finalized window's output is appended before the triggering element is
// processed against the fresh window it opens, and a control element's
// pass-through (or its own finalize-and-propagate) is appended after any
// window it forces closed.
func (m *Manager[In, Out]) Process(e element.StreamElement[In], out []element.StreamElement[Out]) []element.StreamElement[Out] {
	switch e.Kind() {
	case element.KindItem, element.KindTimestamped:
		now := m.now()
		if m.st == stateOpen && now.Sub(m.lastSeen) > m.gap {
			out = append(out, m.finalize(e.Timestamp(), e.Kind() == element.KindTimestamped))
		}
		if m.st == stateEmpty {
			m.acc = m.proto.Clone()
			m.st = stateOpen
		}
		m.acc.Process(e.Payload())
		m.lastSeen = now
		return out
	case element.KindFlushAndRestart, element.KindTerminate:
		if m.st == stateOpen {
			out = append(out, m.finalize(e.Timestamp(), e.Kind() == element.KindTimestamped))
		}
		return append(out, element.MapItem(e, func(In) Out { var zero Out; return zero }))
	default:
		return append(out, element.MapItem(e, func(In) Out { var zero Out; return zero }))
	}
}

// finalize drains the open window's accumulator and returns Empty.
func (m *Manager[In, Out]) finalize(ts time.Duration, timestamped bool) element.StreamElement[Out] {
	result := m.acc.Output()
	m.acc = nil
	m.st = stateEmpty
	if timestamped {
		return element.Timestamped(result, ts)
	}
	return element.Item(result)
}
