/* spectrum contains functions computing power and mel spectrograms of signals.
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
package spectrum

import (
	"fmt"
	"math"

	"github.com/carlorop/master-project/tools/signals"
	"github.com/r9y9/gossp/stft"
)

const (
	// DefaultFFTSize is the default number of samples per STFT frame.
	DefaultFFTSize = 2048
	// DefaultHop is the default number of samples between STFT frames.
	DefaultHop = 512
	// DefaultTopDB is the default dynamic range kept by PowerToDB.
	DefaultTopDB = 80.0
	// DefaultAmin is the default smallest power considered by PowerToDB.
	DefaultAmin = 1e-10
)

// MelScale selects the formula mapping Hz to mels.
type MelScale int

const (
	// Slaney is the scale of the Auditory Toolbox, linear below 1kHz and logarithmic above.
	Slaney MelScale = iota
	// HTK is the scale of the Hidden Markov Model Toolkit, 2595 * log10(1 + f / 700).
	HTK
)

func (m MelScale) String() string {
	switch m {
	case Slaney:
		return "Slaney"
	case HTK:
		return "HTK"
	}
	return "Unknown"
}

const (
	slaneyHzPerMel  = 200.0 / 3
	slaneyMinLogHz  = 1000.0
	slaneyMinLogMel = slaneyMinLogHz / slaneyHzPerMel
)

var slaneyLogStep = math.Log(6.4) / 27.0

// HzToMel returns the mel value of f.
func (m MelScale) HzToMel(f signals.Hz) float64 {
	if m == HTK {
		return 2595.0 * math.Log10(1.0+float64(f)/700.0)
	}
	if float64(f) >= slaneyMinLogHz {
		return slaneyMinLogMel + math.Log(float64(f)/slaneyMinLogHz)/slaneyLogStep
	}
	return float64(f) / slaneyHzPerMel
}

// MelToHz returns the frequency of mel value mel.
func (m MelScale) MelToHz(mel float64) signals.Hz {
	if m == HTK {
		return signals.Hz(700.0 * (math.Pow(10, mel/2595.0) - 1.0))
	}
	if mel >= slaneyMinLogMel {
		return signals.Hz(slaneyMinLogHz * math.Exp(slaneyLogStep*(mel-slaneyMinLogMel)))
	}
	return signals.Hz(slaneyHzPerMel * mel)
}

// Config defines how a mel spectrogram is computed.
type Config struct {
	// Rate is the sample rate of the analysed signal.
	Rate signals.Hz
	// FFTSize is the number of samples in each STFT frame.
	FFTSize int
	// Hop is the number of samples between consecutive frames.
	Hop int
	// Mels is the number of mel bands.
	Mels int
	// FMin is the lowest frequency of the filterbank.
	FMin signals.Hz
	// FMax is the highest frequency of the filterbank, 0 means Rate / 2.
	FMax signals.Hz
	// Scale is the mel scale of the filterbank.
	Scale MelScale
}

// DefaultConfig returns the configuration used for log-mel-spectrogram records.
func DefaultConfig(rate signals.Hz, mels int) Config {
	return Config{
		Rate:    rate,
		FFTSize: DefaultFFTSize,
		Hop:     DefaultHop,
		Mels:    mels,
		Scale:   Slaney,
	}
}

func (c Config) fMax() signals.Hz {
	if c.FMax == 0 {
		return c.Rate / 2
	}
	return c.FMax
}

// Validate returns an error if the config can't be used.
func (c Config) Validate() error {
	if c.Rate <= 0 {
		return fmt.Errorf("invalid rate %v", c.Rate)
	}
	if c.FFTSize < 2 || c.Hop < 1 {
		return fmt.Errorf("invalid FFT size %v and hop %v", c.FFTSize, c.Hop)
	}
	if c.Mels < 1 {
		return fmt.Errorf("invalid number of mels %v", c.Mels)
	}
	if c.FMin < 0 || c.FMin >= c.fMax() || c.fMax() > c.Rate/2 {
		return fmt.Errorf("invalid frequency range %v-%v at rate %v", c.FMin, c.fMax(), c.Rate)
	}
	return nil
}

// NumFrames returns the number of frames a spectrogram of n samples has.
func (c Config) NumFrames(n int) int {
	return 1 + n/c.Hop
}

// Filterbank returns the triangular mel filters, Filterbank()[mel][bin], normalized to
// have equal area.
func (c Config) Filterbank() [][]float64 {
	bins := 1 + c.FFTSize/2
	binFrequencies := make([]float64, bins)
	for bin := range binFrequencies {
		binFrequencies[bin] = float64(bin) * float64(c.Rate) / float64(c.FFTSize)
	}

	minMel := c.Scale.HzToMel(c.FMin)
	maxMel := c.Scale.HzToMel(c.fMax())
	edges := make([]float64, c.Mels+2)
	for idx := range edges {
		edges[idx] = float64(c.Scale.MelToHz(minMel + (maxMel-minMel)*float64(idx)/float64(len(edges)-1)))
	}

	weights := make([][]float64, c.Mels)
	for mel := range weights {
		weights[mel] = make([]float64, bins)
		lowerWidth := edges[mel+1] - edges[mel]
		upperWidth := edges[mel+2] - edges[mel+1]
		norm := 2.0 / (edges[mel+2] - edges[mel])
		for bin, f := range binFrequencies {
			lower := (f - edges[mel]) / lowerWidth
			upper := (edges[mel+2] - f) / upperWidth
			weights[mel][bin] = math.Max(0, math.Min(lower, upper)) * norm
		}
	}
	return weights
}

// periodicHann returns a Hann window suited for spectral analysis, i.e. one
// sample longer than the symmetric version with the last sample dropped.
func periodicHann(n int) []float64 {
	window := make([]float64, n)
	for idx := range window {
		window[idx] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(idx)/float64(n))
	}
	return window
}

// padCentered pads the buffer with half a frame on each side, so that frame t
// is centered on sample t * hop. The padding reflects the signal around its
// edges, or is silence when the buffer is too short to reflect.
func padCentered(buffer signals.Float64Slice, frameLen int) []float64 {
	pad := frameLen / 2
	padded := make([]float64, len(buffer)+2*pad)
	copy(padded[pad:], buffer)
	if len(buffer) <= pad {
		return padded
	}
	for idx := 0; idx < pad; idx++ {
		padded[pad-1-idx] = buffer[idx+1]
		padded[pad+len(buffer)+idx] = buffer[len(buffer)-2-idx]
	}
	return padded
}

// PowerSpectrogram returns the squared magnitude STFT of the buffer, PowerSpectrogram()[frame][bin].
func (c Config) PowerSpectrogram(buffer signals.Float64Slice) [][]float64 {
	s := stft.New(c.Hop, c.FFTSize)
	s.Window = periodicHann(c.FFTSize)
	frames := s.STFT(padCentered(buffer, c.FFTSize))
	bins := 1 + c.FFTSize/2
	result := make([][]float64, len(frames))
	for frameIdx, coeffs := range frames {
		result[frameIdx] = make([]float64, bins)
		for bin := range result[frameIdx] {
			coeff := coeffs[bin]
			result[frameIdx][bin] = real(coeff)*real(coeff) + imag(coeff)*imag(coeff)
		}
	}
	return result
}

// MelSpectrogram returns the mel power spectrogram of the buffer, MelSpectrogram()[mel][frame].
func (c Config) MelSpectrogram(buffer signals.Float64Slice) ([][]float64, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	power := c.PowerSpectrogram(buffer)
	filters := c.Filterbank()
	result := make([][]float64, c.Mels)
	for mel, filter := range filters {
		result[mel] = make([]float64, len(power))
		for frameIdx, frame := range power {
			sum := 0.0
			for bin, weight := range filter {
				if weight != 0 {
					sum += weight * frame[bin]
				}
			}
			result[mel][frameIdx] = sum
		}
	}
	return result, nil
}

// PowerToDB converts a power spectrogram to Decibel relative to ref, in place.
// Powers below amin are clamped to amin, and if topDB is positive no value is
// allowed to be more than topDB below the peak.
func PowerToDB(spec [][]float64, ref, amin, topDB float64) {
	refDB := float64(signals.Power(math.Max(amin, ref)).DB())
	peak := math.Inf(-1)
	for _, row := range spec {
		for idx := range row {
			row[idx] = float64(signals.Power(math.Max(amin, row[idx])).DB()) - refDB
			if row[idx] > peak {
				peak = row[idx]
			}
		}
	}
	if topDB <= 0 {
		return
	}
	floor := peak - topDB
	for _, row := range spec {
		for idx := range row {
			if row[idx] < floor {
				row[idx] = floor
			}
		}
	}
}

// LogMelSpectrogram returns the mel spectrogram of the buffer in Decibel,
// relative to a power of 1, with a dynamic range of DefaultTopDB.
func (c Config) LogMelSpectrogram(buffer signals.Float64Slice) ([][]float64, error) {
	spec, err := c.MelSpectrogram(buffer)
	if err != nil {
		return nil, err
	}
	PowerToDB(spec, 1.0, DefaultAmin, DefaultTopDB)
	return spec, nil
}
