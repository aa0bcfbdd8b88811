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

package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestObserversAreNoOpsUntilEnabled checks the "disabled by default, every
// public function is a no-op" contract: calling an observer before Enable
// must not move its counter.
func TestObserversAreNoOpsUntilEnabled(t *testing.T) {
	modEnabled.Store(false)
	before := testutil.ToFloat64(elementsProcessedTotal.WithLabelValues("block-disabled"))
	ObserveElement("block-disabled")
	after := testutil.ToFloat64(elementsProcessedTotal.WithLabelValues("block-disabled"))
	if after != before {
		t.Fatalf("ObserveElement moved the counter while disabled: %v -> %v", before, after)
	}
}

func TestObserveElementIncrementsWhenEnabled(t *testing.T) {
	Enable(Config{Enabled: true})
	defer modEnabled.Store(false)

	before := testutil.ToFloat64(elementsProcessedTotal.WithLabelValues("block-a"))
	ObserveElement("block-a")
	ObserveElement("block-a")
	after := testutil.ToFloat64(elementsProcessedTotal.WithLabelValues("block-a"))
	if after != before+2 {
		t.Fatalf("counter = %v, want %v", after, before+2)
	}
}

func TestObserveBatchSentIncrementsCounterAndHistogram(t *testing.T) {
	Enable(Config{Enabled: true})
	defer modEnabled.Store(false)

	before := testutil.ToFloat64(batchesSentTotal.WithLabelValues("block-b"))
	ObserveBatchSent("block-b", 7)
	after := testutil.ToFloat64(batchesSentTotal.WithLabelValues("block-b"))
	if after != before+1 {
		t.Fatalf("batchesSentTotal = %v, want %v", after, before+1)
	}
}

func TestReplicaStartedStoppedTracksGauge(t *testing.T) {
	Enable(Config{Enabled: true})
	defer modEnabled.Store(false)

	before := testutil.ToFloat64(replicasRunning)
	ReplicaStarted()
	mid := testutil.ToFloat64(replicasRunning)
	if mid != before+1 {
		t.Fatalf("replicasRunning after start = %v, want %v", mid, before+1)
	}
	ReplicaStopped()
	after := testutil.ToFloat64(replicasRunning)
	if after != before {
		t.Fatalf("replicasRunning after stop = %v, want back to %v", after, before)
	}
}

func TestEnabledReportsCurrentState(t *testing.T) {
	Enable(Config{Enabled: false})
	if Enabled() {
		t.Fatalf("Enabled() = true after Enable(false)")
	}
	Enable(Config{Enabled: true})
	defer modEnabled.Store(false)
	if !Enabled() {
		t.Fatalf("Enabled() = false after Enable(true)")
	}
}
