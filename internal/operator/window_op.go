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

	"dataflow/internal/window"
	"dataflow/pkg/element"
)

// Window drives one content-defined window per replica; partitioning by
// key, when wanted, is done upstream with GroupBy + Shuffle so each
// replica only ever sees one key's elements.
type Window[In, Out any] struct {
	pred    Operator[In]
	mgr     *window.Manager[In, Out]
	gap     time.Duration
	pending []element.StreamElement[Out]
}

// NewWindow builds a Window operator over pred. proto is cloned for every
// new window; gap is the inactivity duration that closes the current one.
func NewWindow[In, Out any](pred Operator[In], proto window.Accumulator[In, Out], gap time.Duration) *Window[In, Out] {
	return &Window[In, Out]{pred: pred, mgr: window.NewManager(proto, gap, nil), gap: gap}
}

func (w *Window[In, Out]) Setup(meta Meta) { w.pred.Setup(meta) }
func (w *Window[In, Out]) Structure() Structure {
	up := w.pred.Structure()
	return Structure{Name: "window", Detail: fmt.Sprintf("gap=%s", w.gap), Upstream: &up}
}

func (w *Window[In, Out]) Next() element.StreamElement[Out] {
	for len(w.pending) == 0 {
		w.pending = w.mgr.Process(w.pred.Next(), w.pending)
	}
	e := w.pending[0]
	w.pending = w.pending[1:]
	return e
}
