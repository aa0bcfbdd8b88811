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

// Package element defines the control-plane envelope that flows between
// every operator in the engine: StreamElement, the per-channel Coord and
// ReceiverEndpoint identifiers, and the NetworkMessage batch unit.
package element

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"
)

// Kind discriminates the variants of StreamElement. The zero value is
// KindItem so a freshly constructed StreamElement carrying only a payload
// decodes as plain data.
type Kind int

const (
	// KindItem carries a plain payload with no timestamp.
	KindItem Kind = iota
	// KindTimestamped carries a payload plus an event timestamp.
	KindTimestamped
	// KindWatermark promises no future element on this channel will carry
	// a timestamp less than or equal to Timestamp.
	KindWatermark
	// KindFlushBatch hints downstream senders to flush buffered batches.
	// It carries no payload.
	KindFlushBatch
	// KindFlushAndRestart marks the end of one logical pass (iteration).
	// Operators must flush pending aggregates and reset state.
	KindFlushAndRestart
	// KindTerminate marks the end of all data on a channel. Must be last.
	KindTerminate
)

func (k Kind) String() string {
	switch k {
	case KindItem:
		return "Item"
	case KindTimestamped:
		return "Timestamped"
	case KindWatermark:
		return "Watermark"
	case KindFlushBatch:
		return "FlushBatch"
	case KindFlushAndRestart:
		return "FlushAndRestart"
	case KindTerminate:
		return "Terminate"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// StreamElement is the tagged envelope flowing between operators. Exactly
// one of the constructors below should be used to build a value; the zero
// value is not a meaningful element.
type StreamElement[T any] struct {
	kind      Kind
	item      T
	timestamp time.Duration
}

// Item builds a plain-payload element.
func Item[T any](v T) StreamElement[T] {
	return StreamElement[T]{kind: KindItem, item: v}
}

// Timestamped builds a payload element carrying an event timestamp.
func Timestamped[T any](v T, ts time.Duration) StreamElement[T] {
	return StreamElement[T]{kind: KindTimestamped, item: v, timestamp: ts}
}

// Watermark builds a watermark promising no future timestamp <= ts on this
// channel.
func Watermark[T any](ts time.Duration) StreamElement[T] {
	return StreamElement[T]{kind: KindWatermark, timestamp: ts}
}

// FlushBatch builds a batch-flush hint.
func FlushBatch[T any]() StreamElement[T] {
	return StreamElement[T]{kind: KindFlushBatch}
}

// FlushAndRestart builds an end-of-iteration marker.
func FlushAndRestart[T any]() StreamElement[T] {
	return StreamElement[T]{kind: KindFlushAndRestart}
}

// Terminate builds an end-of-stream marker.
func Terminate[T any]() StreamElement[T] {
	return StreamElement[T]{kind: KindTerminate}
}

// Kind reports which variant this element is.
func (e StreamElement[T]) Kind() Kind { return e.kind }

// IsItem reports whether this element is Item or Timestamped, i.e. whether
// Payload() returns a meaningful payload.
func (e StreamElement[T]) IsItem() bool {
	return e.kind == KindItem || e.kind == KindTimestamped
}

// IsFlushAndRestart reports whether this element ends an iteration.
func (e StreamElement[T]) IsFlushAndRestart() bool { return e.kind == KindFlushAndRestart }

// IsTerminate reports whether this element ends the channel.
func (e StreamElement[T]) IsTerminate() bool { return e.kind == KindTerminate }

// IsWatermark reports whether this element is a watermark.
func (e StreamElement[T]) IsWatermark() bool { return e.kind == KindWatermark }

// Payload returns the payload. Only meaningful when IsItem() is true; callers
// that do not check IsItem() first get the zero value for non-data kinds.
func (e StreamElement[T]) Payload() T { return e.item }

// Timestamp returns the event timestamp for Timestamped and Watermark
// elements. Zero for all other kinds.
func (e StreamElement[T]) Timestamp() time.Duration { return e.timestamp }

// MapItem transforms the payload of an Item/Timestamped element through f,
// preserving the element's kind and timestamp. Control elements pass
// through with a zero-value payload reinterpreted as U.
func MapItem[T, U any](e StreamElement[T], f func(T) U) StreamElement[U] {
	switch e.kind {
	case KindItem:
		return Item(f(e.item))
	case KindTimestamped:
		return Timestamped(f(e.item), e.timestamp)
	case KindWatermark:
		return Watermark[U](e.timestamp)
	case KindFlushBatch:
		return FlushBatch[U]()
	case KindFlushAndRestart:
		return FlushAndRestart[U]()
	case KindTerminate:
		return Terminate[U]()
	default:
		panic(fmt.Sprintf("element: unknown kind %v", e.kind))
	}
}

// gobElement mirrors StreamElement's private fields as exported ones so it
// can round-trip through encoding/gob, which only ever sees exported
// struct fields. StreamElement implements gob.GobEncoder/GobDecoder in
// terms of this shadow type rather than exporting Kind/Item/Timestamp
// directly, keeping the public API construction-function-only.
type gobElement[T any] struct {
	Kind      Kind
	Item      T
	Timestamp time.Duration
}

// GobEncode implements gob.GobEncoder.
func (e StreamElement[T]) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gobElement[T]{Kind: e.kind, Item: e.item, Timestamp: e.timestamp}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (e *StreamElement[T]) GobDecode(data []byte) error {
	var ge gobElement[T]
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&ge); err != nil {
		return err
	}
	e.kind, e.item, e.timestamp = ge.Kind, ge.Item, ge.Timestamp
	return nil
}

func (e StreamElement[T]) String() string {
	switch e.kind {
	case KindItem:
		return fmt.Sprintf("Item(%v)", e.item)
	case KindTimestamped:
		return fmt.Sprintf("Timestamped(%v, %s)", e.item, e.timestamp)
	case KindWatermark:
		return fmt.Sprintf("Watermark(%s)", e.timestamp)
	default:
		return e.kind.String()
	}
}

// Coord uniquely identifies an operator replica in a job: its block and
// which replica of that block.
type Coord struct {
	BlockID   int
	ReplicaID int
}

func (c Coord) String() string { return fmt.Sprintf("Coord(block=%d, replica=%d)", c.BlockID, c.ReplicaID) }

// ReceiverEndpoint identifies one directed edge between a sender replica
// and a receiver replica: the receiving Coord, plus the block the data
// originates from (a receiver may have many upstream replicas on the same
// source block).
type ReceiverEndpoint struct {
	Destination    Coord
	SourceBlockID  int
}

func (r ReceiverEndpoint) String() string {
	return fmt.Sprintf("ReceiverEndpoint(dest=%s, source_block=%d)", r.Destination, r.SourceBlockID)
}

// NetworkMessage is the unit of transport: a batch of StreamElements plus
// the Coord of the replica that produced them. Operators never see a
// NetworkMessage directly; start-of-block receivers flatten it back into
// individual StreamElements.
type NetworkMessage[T any] struct {
	Sender Coord
	Batch  []StreamElement[T]
}
