/* Package partition computes which catalogue rows go into which shard file.
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
package partition

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRatios is returned for split ratios that are negative or sum to zero.
	ErrInvalidRatios = errors.New("invalid split ratios")
	// ErrInvalidCount is returned for shard counts below one.
	ErrInvalidCount = errors.New("invalid shard count")
	// ErrInvalidRange is returned for sub-ranges outside of 1..count or with start after stop.
	ErrInvalidRange = errors.New("invalid shard range")
)

// Role is the purpose of a shard in a proportional split.
type Role int

const (
	// Numbered shards are produced by Count and Range.
	Numbered Role = iota
	Train
	Validation
	Test
)

func (r Role) String() string {
	switch r {
	case Train:
		return "train"
	case Validation:
		return "validation"
	case Test:
		return "test"
	}
	return "numbered"
}

// Shard is the half open row interval [From, To) of a catalogue.
type Shard struct {
	// Index is 1-based.
	Index int
	Role  Role
	From  int
	To    int
	// Ratios are the split ratios of Train, Validation and Test shards.
	Ratios [3]int
}

// Len returns the number of rows in the shard.
func (s Shard) Len() int {
	return s.To - s.From
}

// Name returns the file name of the shard, e.g. waveform_train_80-10-10.tfrecord
// or waveform_7.tfrecord when suffix is ".tfrecord".
func (s Shard) Name(format string, suffix string) string {
	if s.Role == Numbered {
		return fmt.Sprintf("%s_%d%s", format, s.Index, suffix)
	}
	return fmt.Sprintf("%s_%s_%d-%d-%d%s", format, s.Role, s.Ratios[0], s.Ratios[1], s.Ratios[2], suffix)
}

func (s Shard) String() string {
	return fmt.Sprintf("%v shard %v [%v, %v)", s.Role, s.Index, s.From, s.To)
}

// Split divides total rows into a train, validation and test shard proportional to a, b and c.
//
// The boundaries are the floored cumulative sums of the ratios scaled by total,
// so the test shard receives any remainder.
func Split(a, b, c, total int) ([]Shard, error) {
	if total < 0 {
		return nil, fmt.Errorf("negative total %v", total)
	}
	if a < 0 || b < 0 || c < 0 || a+b+c == 0 {
		return nil, fmt.Errorf("%v, %v, %v: %w", a, b, c, ErrInvalidRatios)
	}
	sum := int64(a + b + c)
	first := int(int64(a) * int64(total) / sum)
	second := int(int64(a+b) * int64(total) / sum)
	ratios := [3]int{a, b, c}
	return []Shard{
		{Index: 1, Role: Train, From: 0, To: first, Ratios: ratios},
		{Index: 2, Role: Validation, From: first, To: second, Ratios: ratios},
		{Index: 3, Role: Test, From: second, To: total, Ratios: ratios},
	}, nil
}

func countShard(idx, k, total int) Shard {
	to := int(int64(idx) * int64(total) / int64(k))
	if idx == k {
		to = total
	}
	return Shard{
		Index: idx,
		From:  int(int64(idx-1) * int64(total) / int64(k)),
		To:    to,
	}
}

// Count divides total rows into k numbered shards of nearly equal size, the last one absorbing the remainder.
func Count(k, total int) ([]Shard, error) {
	return Range(k, total, 1, k)
}

// Range returns the numbered shards start to stop, both 1-based and inclusive, of Count(k, total).
// A stop beyond k selects up to and including the last shard.
func Range(k, total, start, stop int) ([]Shard, error) {
	if total < 0 {
		return nil, fmt.Errorf("negative total %v", total)
	}
	if k < 1 {
		return nil, fmt.Errorf("%v: %w", k, ErrInvalidCount)
	}
	if start < 1 || start > k || stop < start {
		return nil, fmt.Errorf("%v-%v of %v shards: %w", start, stop, k, ErrInvalidRange)
	}
	if stop > k {
		stop = k
	}
	result := make([]Shard, 0, stop-start+1)
	for idx := start; idx <= stop; idx++ {
		result = append(result, countShard(idx, k, total))
	}
	return result, nil
}

// Plan selects either a proportional split or a fixed shard count.
type Plan struct {
	// Split holds the train, validation and test ratios. A nil Split selects a fixed count.
	Split []int
	// Count is the number of shards when Split is nil.
	Count int
	// Start and Stop select a 1-based inclusive sub-range of the Count shards. Zero selects all.
	Start int
	Stop  int
}

// Ranged returns whether the plan selects a sub-range of shards.
func (p Plan) Ranged() bool {
	return p.Split == nil && (p.Start != 0 || p.Stop != 0)
}

// Validate returns an error if the plan can't produce shards.
func (p Plan) Validate() error {
	if p.Split != nil {
		if len(p.Split) != 3 {
			return fmt.Errorf("%v ratios, wanted 3: %w", len(p.Split), ErrInvalidRatios)
		}
		if p.Start != 0 || p.Stop != 0 {
			return fmt.Errorf("a sub-range can't be combined with a split: %w", ErrInvalidRange)
		}
		_, err := Split(p.Split[0], p.Split[1], p.Split[2], 0)
		return err
	}
	if p.Ranged() {
		_, err := Range(p.Count, 0, p.Start, p.Stop)
		return err
	}
	_, err := Count(p.Count, 0)
	return err
}

// Shards returns the shards of a catalogue with total rows.
func (p Plan) Shards(total int) ([]Shard, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Split != nil {
		return Split(p.Split[0], p.Split[1], p.Split[2], total)
	}
	if p.Ranged() {
		return Range(p.Count, total, p.Start, p.Stop)
	}
	return Count(p.Count, total)
}
