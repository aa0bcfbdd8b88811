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

	"github.com/dgryski/go-rendezvous"
)

// hashString is rendezvous's required hash function: it only needs to be
// a fast, well-distributed uint64 hash, not cryptographic.
func hashString(s string) uint64 {
	var h uint64 = 1469598103934665603
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

// Shuffle picks, for a given routing key, which replica of the
// downstream block should receive it. It is not itself a per-element
// Operator: a group_by's key partitioning happens at the tail-of-block
// sender, which asks a Shuffle which replica index to send each batch
// to, so the same key always lands on the same downstream replica
// (required for group_by_reduce's per-replica state to be correct)
// while rebalancing minimally when the replica count changes.
type Shuffle struct {
	r         *rendezvous.Rendezvous
	instances int
}

// NewShuffle builds a Shuffle over replica indices [0, instances).
func NewShuffle(instances int) *Shuffle {
	names := make([]string, instances)
	for i := range names {
		names[i] = fmt.Sprintf("replica-%d", i)
	}
	return &Shuffle{r: rendezvous.New(names, hashString), instances: instances}
}

// Route returns the downstream replica index that owns key.
func (s *Shuffle) Route(key string) int {
	if s.instances == 1 {
		return 0
	}
	name := s.r.Lookup(key)
	var idx int
	fmt.Sscanf(name, "replica-%d", &idx)
	return idx
}
