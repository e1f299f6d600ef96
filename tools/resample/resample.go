/* Package resample contains band limited resampling of audio buffers.
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
package resample

import (
	"fmt"
	"math"

	"github.com/carlorop/master-project/tools/signals"
	"github.com/mjibson/go-dsp/fft"
)

// Len returns the number of samples a buffer of n samples at rate from has when resampled to rate to.
func Len(n int, from, to signals.Hz) int {
	return int(math.Ceil(float64(n) * float64(to) / float64(from)))
}

// Resample returns the buffer resampled from rate from to rate to.
//
// The resampling is done in the frequency domain: the spectrum of the buffer is
// truncated (or zero padded) to the new length, which removes everything above
// the Nyquist frequency of the lower rate, and transformed back. When the rates
// are equal a copy of the buffer is returned.
func Resample(buffer signals.Float64Slice, from, to signals.Hz) (signals.Float64Slice, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("can't resample from %vHz to %vHz", from, to)
	}
	if from == to {
		result := make(signals.Float64Slice, len(buffer))
		copy(result, buffer)
		return result, nil
	}
	outLen := Len(len(buffer), from, to)
	if len(buffer) == 0 || outLen == 0 {
		return signals.Float64Slice{}, nil
	}
	return resampleFFT(buffer, outLen), nil
}

func resampleFFT(buffer signals.Float64Slice, outLen int) signals.Float64Slice {
	inLen := len(buffer)
	coeffs := fft.FFTReal(buffer)
	resampled := make([]complex128, outLen)

	n := inLen
	if outLen < n {
		n = outLen
	}
	nyquist := n/2 + 1
	copy(resampled[:nyquist], coeffs[:nyquist])
	for bin := 1; bin < n-nyquist+1; bin++ {
		resampled[outLen-bin] = coeffs[inLen-bin]
	}
	// An even number of kept coefficients means the bin at n/2 is shared between
	// the positive and negative halves of the spectrum.
	if n%2 == 0 {
		if outLen < inLen {
			resampled[n/2] += coeffs[inLen-n/2]
		} else if inLen < outLen {
			resampled[n/2] *= 0.5
			resampled[outLen-n/2] = resampled[n/2]
		}
	}

	samples := fft.IFFT(resampled)
	scale := float64(outLen) / float64(inLen)
	result := make(signals.Float64Slice, outLen)
	for idx := range result {
		result[idx] = real(samples[idx]) * scale
	}
	return result
}
