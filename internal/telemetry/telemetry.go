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

// Package telemetry provides opt-in, low-overhead job metrics. Disabled by
// default; every public function is a no-op until Enable is called, so
// replicas on the hot path never pay for what they don't use.
package telemetry

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls the telemetry module.
type Config struct {
	Enabled bool
	// MetricsAddr, when non-empty, starts a dedicated HTTP server serving
	// /metrics. Leave empty if /metrics is already exposed elsewhere.
	MetricsAddr string
}

var (
	modEnabled atomic.Bool

	elementsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dataflow_elements_processed_total",
		Help: "Total StreamElements observed at a block's start-of-block receiver",
	}, []string{"block"})
	batchesSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dataflow_batches_sent_total",
		Help: "Total NetworkMessage batches sent on an outgoing edge",
	}, []string{"block"})
	iterationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dataflow_iterations_total",
		Help: "Total FlushAndRestart control elements observed at a block",
	}, []string{"block"})
	windowsClosedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dataflow_windows_closed_total",
		Help: "Total content-defined windows finalized",
	}, []string{"block"})
	replicasRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dataflow_replicas_running",
		Help: "Number of replica goroutines currently executing their run loop",
	})
	batchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dataflow_batch_size",
		Help:    "Distribution of elements per NetworkMessage batch",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
	})
)

func init() {
	prometheus.MustRegister(
		elementsProcessedTotal, batchesSentTotal, iterationsTotal,
		windowsClosedTotal, replicasRunning, batchSize,
	)
}

// Enable turns on metric collection and, if MetricsAddr is set, serves
// /metrics in a background goroutine. Safe to call multiple times.
func Enable(cfg Config) {
	modEnabled.Store(cfg.Enabled)
	if cfg.MetricsAddr != "" {
		startMetricsEndpoint(cfg.MetricsAddr)
	}
}

// Enabled reports whether telemetry is active.
func Enabled() bool { return modEnabled.Load() }

// ObserveElement records one StreamElement reaching block's start-of-block
// receiver.
func ObserveElement(block string) {
	if !modEnabled.Load() {
		return
	}
	elementsProcessedTotal.WithLabelValues(block).Inc()
}

// ObserveBatchSent records one NetworkMessage sent on block's outgoing
// edge, of the given element count.
func ObserveBatchSent(block string, elements int) {
	if !modEnabled.Load() {
		return
	}
	batchesSentTotal.WithLabelValues(block).Inc()
	batchSize.Observe(float64(elements))
}

// ObserveIteration records one FlushAndRestart observed at block.
func ObserveIteration(block string) {
	if !modEnabled.Load() {
		return
	}
	iterationsTotal.WithLabelValues(block).Inc()
}

// ObserveWindowClosed records one content-defined window finalized at
// block.
func ObserveWindowClosed(block string) {
	if !modEnabled.Load() {
		return
	}
	windowsClosedTotal.WithLabelValues(block).Inc()
}

// ReplicaStarted/ReplicaStopped track the live replica gauge across a
// replica's lifetime; call ReplicaStopped via defer right after Started.
func ReplicaStarted() {
	if modEnabled.Load() {
		replicasRunning.Inc()
	}
}

func ReplicaStopped() {
	if modEnabled.Load() {
		replicasRunning.Dec()
	}
}

func startMetricsEndpoint(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}
