/*
 * Copyright 2020 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 *     Unless required by applicable law or agreed to in writing, software
 *     distributed under the License is distributed on an "AS IS" BASIS,
 *     WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *     See the License for the specific language governing permissions and
 *     limitations under the License.
 */
package workerpool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWorkerpool(t *testing.T) {
	for _, tc := range []struct {
		concurrency int
		wantMax     int64
	}{
		{concurrency: 3, wantMax: 3},
		{concurrency: 1, wantMax: 1},
	} {
		wp := New(tc.concurrency)
		var running int64
		var peak int64
		lock := &sync.Mutex{}
		for j := 0; j < 30; j++ {
			wp.Go(func() error {
				now := atomic.AddInt64(&running, 1)
				lock.Lock()
				if now > peak {
					peak = now
				}
				lock.Unlock()
				time.Sleep(time.Millisecond)
				atomic.AddInt64(&running, -1)
				return nil
			})
		}
		if err := wp.Wait(); err != nil {
			t.Errorf("New(%v) produced unexpected error %v", tc.concurrency, err)
		}
		if peak > tc.wantMax {
			t.Errorf("New(%v) ran %v jobs at the same time", tc.concurrency, peak)
		}
	}
}

func TestUnlimited(t *testing.T) {
	wp := New(0)
	release := make(chan struct{})
	var started int64
	for j := 0; j < 20; j++ {
		wp.Go(func() error {
			atomic.AddInt64(&started, 1)
			<-release
			return nil
		})
	}
	for atomic.LoadInt64(&started) < 20 {
		time.Sleep(time.Millisecond)
	}
	close(release)
	if err := wp.Wait(); err != nil {
		t.Errorf("Unexpected error %v", err)
	}
}

var errShard = errors.New("shard failed")

func TestErrors(t *testing.T) {
	wp := New(2)
	for j := 0; j < 6; j++ {
		j := j
		wp.Go(func() error {
			if j%2 == 0 {
				return fmt.Errorf("job %v: %w", j, errShard)
			}
			return nil
		})
	}
	err := wp.Wait()
	me := MultiErr{}
	if !errors.As(err, &me) {
		t.Fatalf("Wait() produced %v, wanted a MultiErr", err)
	}
	if len(me) != 3 {
		t.Errorf("Wait() produced %v errors, wanted 3", len(me))
	}
	if !errors.Is(err, errShard) {
		t.Errorf("Wait() produced %v, wanted it to wrap errShard", err)
	}
}
