/* Package audio decodes audio files and pre extracted sample arrays into sample buffers.
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
package audio

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/carlorop/master-project/tools/signals"
)

// ErrUnknownFormat is returned when a file has an extension no decoder handles.
var ErrUnknownFormat = errors.New("unknown audio format")

// Buffer is decoded audio at its native sample rate.
type Buffer struct {
	// Channels[channelIdx][sampleIdx] are the samples, between -1 and 1.
	Channels []signals.Float64Slice
	// Rate is the sample rate of the samples.
	Rate signals.Hz
}

// Len returns the number of samples per channel.
func (b Buffer) Len() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playing time of the buffer.
func (b Buffer) Duration() signals.Seconds {
	if len(b.Channels) == 0 {
		return 0
	}
	return b.Channels[0].Duration(b.Rate)
}

// Mono returns the average of all channels.
func (b Buffer) Mono() (signals.Float64Slice, error) {
	return signals.Mean(b.Channels...)
}

// Loader loads a Buffer from a path.
type Loader interface {
	Load(path string) (Buffer, error)
}

// LoaderFunc lets a plain function be used as a Loader.
type LoaderFunc func(path string) (Buffer, error)

// Load calls f.
func (f LoaderFunc) Load(path string) (Buffer, error) {
	return f(path)
}

// Decoders maps lower case file extensions to the function decoding them.
var Decoders = map[string]LoaderFunc{
	".mp3":  LoadMP3,
	".wav":  LoadWAV,
	".flac": LoadFLAC,
	".npz":  LoadNPZ,
}

// Load decodes the file at path, picking the decoder from its extension.
func Load(path string) (Buffer, error) {
	decoder, found := Decoders[strings.ToLower(filepath.Ext(path))]
	if !found {
		return Buffer{}, fmt.Errorf("%q: %w", path, ErrUnknownFormat)
	}
	buffer, err := decoder(path)
	if err != nil {
		return Buffer{}, err
	}
	if buffer.Rate <= 0 {
		return Buffer{}, fmt.Errorf("%q has invalid sample rate %v", path, buffer.Rate)
	}
	return buffer, nil
}

// Default is a Loader using Load.
var Default Loader = LoaderFunc(Load)
