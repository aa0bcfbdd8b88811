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

// Package sinks holds terminal consumers that drain an operator chain to
// durable storage instead of to a downstream block.
package sinks

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"time"

	"dataflow/internal/operator"
)

// FileSink appends every item payload an operator chain produces to a
// JSONL file, flushing on a bounded interval so a crash loses at most the
// last flushInterval worth of output. Safe for concurrent use, though a
// single sink is normally driven by one replica.
type FileSink[T any] struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	path string

	flushInterval time.Duration
	lastFlush     time.Time
}

// NewFileSink opens (or creates) the file at path in append mode with a
// buffered writer flushed at least every flushInterval.
func NewFileSink[T any](path string, flushInterval time.Duration) (*FileSink[T], error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileSink[T]{
		f: f, w: bufio.NewWriterSize(f, 1<<20 /*1MiB*/), path: path,
		flushInterval: flushInterval, lastFlush: time.Now(),
	}, nil
}

// Append writes one item as a JSON line, retrying once after an explicit
// flush if the first encode fails (e.g. a transient write error).
func (s *FileSink[T]) Append(item T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(s.w)
	if err := enc.Encode(&item); err != nil {
		_ = s.w.Flush()
		_ = enc.Encode(&item)
	}
	s.maybeFlush()
}

// Drain pulls op to Terminate, appending every item it emits and ignoring
// watermark and FlushAndRestart control elements (a sink has no downstream
// iteration boundary to forward them to).
func (s *FileSink[T]) Drain(op operator.Operator[T]) {
	for {
		e := op.Next()
		if e.IsItem() {
			s.Append(e.Payload())
		}
		if e.IsTerminate() {
			return
		}
	}
}

func (s *FileSink[T]) maybeFlush() {
	if time.Since(s.lastFlush) < s.flushInterval {
		return
	}
	_ = s.w.Flush()
	s.lastFlush = time.Now()
}

// Flush forces buffered data to disk.
func (s *FileSink[T]) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFlush = time.Now()
	return s.w.Flush()
}

// Close flushes and closes the underlying file.
func (s *FileSink[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.w.Flush()
	return s.f.Close()
}

// ReadAllJSONL reads every line of path back as T, skipping lines that
// fail to unmarshal. Intended for demo/replay and tests.
func ReadAllJSONL[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []T
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 1<<20)
	scanner.Buffer(buf, 1<<26)
	for scanner.Scan() {
		var v T
		if err := json.Unmarshal(scanner.Bytes(), &v); err == nil {
			out = append(out, v)
		}
	}
	return out, scanner.Err()
}
