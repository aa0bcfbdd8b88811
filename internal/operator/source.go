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

// SliceSource replays a fixed slice once, terminated by a single
// Terminate. It backs stream_par_iter for in-process replicas that were
// handed a pre-partitioned shard of the input.
type SliceSource[T any] struct {
	items []T
	pos   int
	done  bool
}

func NewSliceSource[T any](items []T) *SliceSource[T] { return &SliceSource[T]{items: items} }

func (s *SliceSource[T]) Setup(Meta) {}
func (s *SliceSource[T]) Structure() Structure { return Structure{Name: "slice_source"} }
func (s *SliceSource[T]) Next() element.StreamElement[T] {
	if s.pos < len(s.items) {
		v := s.items[s.pos]
		s.pos++
		return element.Item(v)
	}
	if !s.done {
		s.done = true
	}
	return element.Terminate[T]()
}

// FuncSource wraps an arbitrary pull function: it should return (value,
// true) for each item and (zero, false) once exhausted, at which point
// Next emits a single Terminate forever after.
type FuncSource[T any] struct {
	pull func() (T, bool)
	done bool
}

func NewFuncSource[T any](pull func() (T, bool)) *FuncSource[T] { return &FuncSource[T]{pull: pull} }

func (f *FuncSource[T]) Setup(Meta) {}
func (f *FuncSource[T]) Structure() Structure { return Structure{Name: "func_source"} }
func (f *FuncSource[T]) Next() element.StreamElement[T] {
	if f.done {
		return element.Terminate[T]()
	}
	if v, ok := f.pull(); ok {
		return element.Item(v)
	}
	f.done = true
	return element.Terminate[T]()
}
