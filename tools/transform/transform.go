/* Package transform normalizes decoded audio into the representation stored in records.
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
package transform

import (
	"fmt"

	"github.com/carlorop/master-project/tools/audio"
	"github.com/carlorop/master-project/tools/resample"
	"github.com/carlorop/master-project/tools/signals"
	"github.com/carlorop/master-project/tools/spectrum"
)

// Format is the representation of the processed audio.
type Format int

const (
	// Waveform keeps the resampled mono samples.
	Waveform Format = iota
	// LogMelSpectrogram converts the resampled mono samples to a mel power spectrogram in Decibel.
	LogMelSpectrogram
)

func (f Format) String() string {
	switch f {
	case Waveform:
		return "waveform"
	case LogMelSpectrogram:
		return "log-mel-spectrogram"
	}
	return "unknown"
}

// ParseFormat returns the Format named s.
func ParseFormat(s string) (Format, error) {
	for _, f := range []Format{Waveform, LogMelSpectrogram} {
		if f.String() == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown audio format %q, wanted %q or %q", s, Waveform, LogMelSpectrogram)
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(b []byte) error {
	parsed, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Options define the output of Apply.
type Options struct {
	Format Format
	// Rate is the sample rate of the output.
	Rate signals.Hz
	// Mels is the number of mel bands of LogMelSpectrogram output.
	Mels int
}

// Array is processed audio, stored row major.
type Array struct {
	Data  []float64
	Shape []int
}

// Apply folds the buffer to mono, resamples it to opts.Rate and converts it to opts.Format.
func Apply(buffer audio.Buffer, opts Options) (Array, error) {
	var mono signals.Float64Slice
	if len(buffer.Channels) > 1 {
		var err error
		if mono, err = buffer.Mono(); err != nil {
			return Array{}, err
		}
	} else if len(buffer.Channels) == 1 {
		mono = buffer.Channels[0]
	} else {
		return Array{}, fmt.Errorf("no channels to transform")
	}

	resampled, err := resample.Resample(mono, buffer.Rate, opts.Rate)
	if err != nil {
		return Array{}, err
	}

	switch opts.Format {
	case Waveform:
		return Array{
			Data:  resampled,
			Shape: []int{len(resampled)},
		}, nil
	case LogMelSpectrogram:
		spec, err := spectrum.DefaultConfig(opts.Rate, opts.Mels).LogMelSpectrogram(resampled)
		if err != nil {
			return Array{}, err
		}
		frames := 0
		if len(spec) > 0 {
			frames = len(spec[0])
		}
		data := make([]float64, 0, len(spec)*frames)
		for _, row := range spec {
			data = append(data, row...)
		}
		return Array{
			Data:  data,
			Shape: []int{len(spec), frames},
		}, nil
	}
	return Array{}, fmt.Errorf("unknown format %v", opts.Format)
}
