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

// fixedSource replays a pre-built sequence of elements verbatim, repeating
// its last element forever once exhausted (tests always arrange for that
// last element to be Terminate).
type fixedSource[T any] struct {
	seq []element.StreamElement[T]
	pos int
}

func newFixedSource[T any](seq ...element.StreamElement[T]) *fixedSource[T] {
	return &fixedSource[T]{seq: seq}
}

func (s *fixedSource[T]) Setup(Meta)          {}
func (s *fixedSource[T]) Structure() Structure { return Structure{Name: "fixed_source"} }
func (s *fixedSource[T]) Next() element.StreamElement[T] {
	if s.pos >= len(s.seq) {
		return s.seq[len(s.seq)-1]
	}
	e := s.seq[s.pos]
	s.pos++
	return e
}
