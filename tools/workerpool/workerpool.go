/* workerpool contains code to run a limited number of error handling goroutines concurrently.
 *
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
	"fmt"
	"sync"
)

// MultiErr contains multiple errors.
type MultiErr []error

// Error returns a string representation of the multi error.
func (m MultiErr) Error() string {
	return fmt.Sprint([]error(m))
}

// Unwrap returns the contained errors, so that errors.Is and errors.As look at each of them.
func (m MultiErr) Unwrap() []error {
	return m
}

// WorkerPool runs a limited number of error handling goroutines concurrently.
type WorkerPool struct {
	queue chan func() error
	done  chan struct{}

	lock sync.Mutex
	errs MultiErr
}

// Go will run the function once a worker is available.
func (w *WorkerPool) Go(f func() error) {
	w.queue <- f
}

// Wait stops accepting jobs, waits for all submitted jobs to finish and returns their errors as a MultiErr.
func (w *WorkerPool) Wait() error {
	close(w.queue)
	<-w.done
	w.lock.Lock()
	defer w.lock.Unlock()
	if len(w.errs) == 0 {
		return nil
	}
	return w.errs
}

func (w *WorkerPool) fail(err error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.errs = append(w.errs, err)
}

// New returns a new worker pool running at most concurrency jobs at a time, or any number if concurrency is zero.
func New(concurrency int) *WorkerPool {
	w := &WorkerPool{
		queue: make(chan func() error),
		done:  make(chan struct{}),
	}

	go func() {
		wg := &sync.WaitGroup{}
		tickets := make(chan struct{}, concurrency)
		for jobVar := range w.queue {
			job := jobVar
			if concurrency > 0 {
				tickets <- struct{}{}
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := job(); err != nil {
					w.fail(err)
				}
				if concurrency > 0 {
					<-tickets
				}
			}()
		}
		wg.Wait()
		close(w.done)
	}()
	return w
}
