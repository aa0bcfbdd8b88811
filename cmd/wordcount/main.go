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

// Command wordcount is the engine's seed demo job (spec scenario 1):
// tokenize lines, lowercase and split on whitespace, group_by_reduce to
// sum counts per word. Run with -l N to fan the tokenizer out over N
// local replicas.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"dataflow/internal/operator"
	"dataflow/internal/scheduler"
	"dataflow/internal/telemetry"
	"dataflow/pkg/element"
	"dataflow/pkg/stream"
)

func main() {
	localReplicas := flag.Int("l", 1, "number of local replicas for the tokenizer block")
	metricsAddr := flag.String("metrics", "", "address to serve /metrics on, e.g. :9090 (disabled if empty)")
	flag.Parse()

	lines := flag.Args()
	if len(lines) == 0 {
		lines = []string{"the cat", "the dog"}
	}

	telemetry.Enable(telemetry.Config{Enabled: *metricsAddr != "", MetricsAddr: *metricsAddr})

	shards := shardLines(lines, *localReplicas)

	job := scheduler.NewJob()
	results := make(chan []operatorResult, *localReplicas)

	for i, shard := range shards {
		i, shard := i, shard
		job.Go(func() error {
			meta := element.Coord{BlockID: 0, ReplicaID: i}
			telemetry.ReplicaStarted()
			defer telemetry.ReplicaStopped()

			tokens := stream.FlatMap(stream.FromSlice(shard), tokenize)
			counted := stream.GroupByReduce(tokens, func(w string) string { return w }, func(string) int { return 1 }, func(acc, v int) int { return acc + v })

			var out []operatorResult
			stream.ForEach(counted, func(kv operator.KeyedPair[string, int]) {
				out = append(out, operatorResult{word: kv.Key, count: kv.Value})
			})
			telemetry.ObserveElement(fmt.Sprintf("tokenizer-%d", meta.ReplicaID))
			results <- out
			return nil
		})
	}

	if err := job.Wait(); err != nil {
		log.Fatalf("wordcount: %v", err)
	}
	close(results)

	totals := make(map[string]int)
	for shardResults := range results {
		for _, r := range shardResults {
			totals[r.word] += r.count
		}
	}
	for word, count := range totals {
		fmt.Fprintf(os.Stdout, "%s\t%d\n", word, count)
	}
}

type operatorResult struct {
	word  string
	count int
}

func tokenize(line string) []string {
	return strings.Fields(strings.ToLower(line))
}

// shardLines partitions lines across n replicas round-robin, the
// simplest stream_par_iter-style split for a source with no natural key.
func shardLines(lines []string, n int) [][]string {
	if n <= 0 {
		n = 1
	}
	shards := make([][]string, n)
	for i, l := range lines {
		shards[i%n] = append(shards[i%n], l)
	}
	return shards
}
