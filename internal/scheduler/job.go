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

	"golang.org/x/sync/errgroup"

	"dataflow/internal/operator"
)

// RunReplica drives op in a tight loop, per the "one worker thread per
// replica, loop { op.next() } until Terminate" scheduling model, until it
// returns Terminate. A panic from anywhere in the chain (a protocol
// violation, a faulting user callback) is recovered and converted to an
// error rather than left to crash the process outright, so the CLI driver
// can still report it as a clean non-zero exit instead of a bare stack
// trace.
func RunReplica[Out any](op operator.Operator[Out], meta operator.Meta) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler: replica %s faulted: %v", meta.Coord, r)
		}
	}()
	op.Setup(meta)
	for {
		e := op.Next()
		if e.IsTerminate() {
			return nil
		}
	}
}

// Job runs a fixed set of replica goroutines to completion and joins on
// the first error, mirroring "the driver joins all worker handles; the
// first non-clean exit becomes the job's result".
type Job struct {
	group *errgroup.Group
}

// NewJob creates an empty Job ready to accept replica goroutines via Go.
func NewJob() *Job {
	return &Job{group: new(errgroup.Group)}
}

// Go schedules fn as one of the job's replica goroutines.
func (j *Job) Go(fn func() error) {
	j.group.Go(fn)
}

// Wait blocks until every replica has exited, returning the first error
// any of them reported (nil if every replica terminated cleanly).
func (j *Job) Wait() error {
	return j.group.Wait()
}
