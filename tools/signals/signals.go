/* Package signals contains the basic units and buffers used when processing audio signals.
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
package signals

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/youpy/go-wav"
)

// Hz is cycles per second.
type Hz float64

// Period returns the period of this frequency.
func (h Hz) Period() Seconds {
	return Seconds(1.0 / h)
}

// Power is the signal power, which is equivalent to the variance ( avg(sum(v^2)) - avg(v)^2 ) of a signal.
type Power float64

// DB returns the power converted to Decibel.
func (p Power) DB() DB {
	return DB(10 * math.Log10(float64(p)))
}

// DB is power expressed on a logarithm scale.
type DB float64

// Gain returns the gain of this Decibel level.
func (d DB) Gain() float64 {
	return math.Pow(10, float64(d/20))
}

// Seconds is a point in time.
type Seconds float64

// Float64Slice represents a sound buffer of floats between -1 and 1.
type Float64Slice []float64

// Sine returns num samples of a sine with the given frequency and gain sampled at rate.
func Sine(frequency Hz, gain float64, rate Hz, num int) Float64Slice {
	result := make(Float64Slice, num)
	period := rate.Period()
	for i := range result {
		result[i] = gain * math.Sin(2*math.Pi*float64(i)*float64(period)*float64(frequency))
	}
	return result
}

// Duration returns the duration of the slice when played at rate.
func (f Float64Slice) Duration(rate Hz) Seconds {
	return Seconds(float64(len(f)) / float64(rate))
}

// EqTol returns whether the other float slice is equal to this one,
// within the given tolerance.
func (f Float64Slice) EqTol(o Float64Slice, tol float64) bool {
	if len(f) != len(o) {
		return false
	}
	for idx := range f {
		if math.Abs(f[idx]-o[idx]) > tol {
			return false
		}
	}
	return true
}

// WriteWAV writes the samples as a mono 16 bit WAV file to a writer, declaring a given
// sample rate. Assumes the slice contains only values between -1.0 and 1.0.
func (f Float64Slice) WriteWAV(w io.Writer, rate float64) error {
	return WriteWAV(w, rate, f)
}

// WriteWAV writes one or two channels of samples as a 16 bit WAV file.
// All channels must have the same length.
func WriteWAV(w io.Writer, rate float64, channels ...Float64Slice) error {
	if len(channels) == 0 || len(channels) > 2 {
		return fmt.Errorf("can't write %v channels to a WAV file", len(channels))
	}
	numSamples := len(channels[0])
	for idx, channel := range channels {
		if len(channel) != numSamples {
			return fmt.Errorf("channel %v has %v samples, wanted %v", idx, len(channel), numSamples)
		}
	}
	wavSamples := make([]wav.Sample, numSamples)
	for idx := range wavSamples {
		for chanIdx, channel := range channels {
			wavSamples[idx].Values[chanIdx] = int(channel[idx] * float64(math.MaxInt16))
		}
	}
	buf := &bytes.Buffer{}
	wavWriter := wav.NewWriter(buf, uint32(numSamples), uint16(len(channels)), uint32(rate), 16)
	if err := wavWriter.WriteSamples(wavSamples); err != nil {
		return err
	}
	_, err := io.Copy(w, buf)
	return err
}

// ToFloat32 returns the slice converted to float32's.
func (f Float64Slice) ToFloat32() []float32 {
	f32slice := make([]float32, len(f))
	for idx := range f {
		f32slice[idx] = float32(f[idx])
	}
	return f32slice
}

// Mean returns the per sample average of the provided channels.
// All channels must have the same length.
func Mean(channels ...Float64Slice) (Float64Slice, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("no channels to average")
	}
	result := make(Float64Slice, len(channels[0]))
	for chanIdx, channel := range channels {
		if len(channel) != len(result) {
			return nil, fmt.Errorf("channel %v has %v samples, wanted %v", chanIdx, len(channel), len(result))
		}
		for idx := range channel {
			result[idx] += channel[idx]
		}
	}
	inv := 1.0 / float64(len(channels))
	for idx := range result {
		result[idx] *= inv
	}
	return result, nil
}
