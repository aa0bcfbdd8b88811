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

// Package operator implements the per-element transforms chained inside a
// block: every operator pulls from its predecessor, transforms, and
// returns one element at a time, forwarding control variants it does not
// itself understand.
package operator

import "dataflow/pkg/element"

// Meta carries replica-local setup information down an operator chain.
// Kept minimal deliberately; operators that need more can type-assert on
// fields added to a wrapping struct without changing this signature.
type Meta struct {
	Coord    element.Coord
	JobName  string
}

// Structure describes one operator's shape for the block-structure dump.
// Name is the operator kind ("map", "fold_batch", ...); Detail is a short
// free-form description (e.g. a batch size or key function name).
type Structure struct {
	Name     string
	Detail   string
	Upstream *Structure
}

// Operator is implemented by every stage in a block's chain. Out is this
// operator's own output type; its predecessor is wired in at construction
// time, held as an Operator of the predecessor's output type, and Next
// pulls from it through that interface.
type Operator[Out any] interface {
	// Setup recursively initializes this operator and its predecessor,
	// allocating any replica-local state that must not be shared across
	// replicas of the same block.
	Setup(meta Meta)
	// Next pulls from the predecessor, transforms, and returns one
	// element. Must not be called again after it has returned Terminate.
	Next() element.StreamElement[Out]
	// Structure reports this operator's shape for observability.
	Structure() Structure
}

// Source is the Operator at the head of a chain: it has no predecessor of
// its own and instead pulls from a start-of-block receiver or a local
// iterator.
type Source[Out any] interface {
	Operator[Out]
}
