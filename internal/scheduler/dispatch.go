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

package scheduler

import (
	"fmt"

	"dataflow/internal/network"
	"dataflow/internal/operator"
	"dataflow/pkg/element"
)

// DispatchMode picks which of a tail-of-block's downstream senders a
// batch is routed to.
type DispatchMode int

const (
	// DispatchShuffle routes by key: every batch's key decides one
	// destination replica, via Shuffle.
	DispatchShuffle DispatchMode = iota
	// DispatchBroadcast sends every batch to every destination replica.
	DispatchBroadcast
	// DispatchRoundRobin sends batches to destination replicas in turn,
	// used when there is no meaningful partitioning key (plain fan-out
	// for load spreading rather than key ownership).
	DispatchRoundRobin
)

// Dispatcher owns the tail-of-block senders for one outgoing edge and
// decides, per batch, which of them to use.
type Dispatcher[T any] struct {
	senders []*network.NetworkSender[T]
	mode    DispatchMode
	shuffle *operator.Shuffle
	rrNext  int
}

// NewDispatcher builds a Dispatcher over senders, one per destination
// replica. shuffle is only consulted in DispatchShuffle mode.
func NewDispatcher[T any](senders []*network.NetworkSender[T], mode DispatchMode) *Dispatcher[T] {
	d := &Dispatcher[T]{senders: senders, mode: mode}
	if mode == DispatchShuffle {
		d.shuffle = operator.NewShuffle(len(senders))
	}
	return d
}

// Send routes batch to the destination(s) selected by the dispatcher's
// mode. key is only used in DispatchShuffle mode.
func (d *Dispatcher[T]) Send(key string, sender element.Coord, batch []element.StreamElement[T]) error {
	switch d.mode {
	case DispatchBroadcast:
		for _, s := range d.senders {
			if err := s.Send(element.NetworkMessage[T]{Sender: sender, Batch: batch}); err != nil {
				return err
			}
		}
		return nil
	case DispatchShuffle:
		idx := d.shuffle.Route(key)
		return d.senders[idx].Send(element.NetworkMessage[T]{Sender: sender, Batch: batch})
	case DispatchRoundRobin:
		idx := d.rrNext % len(d.senders)
		d.rrNext++
		return d.senders[idx].Send(element.NetworkMessage[T]{Sender: sender, Batch: batch})
	default:
		return fmt.Errorf("scheduler: unknown dispatch mode %d", d.mode)
	}
}
