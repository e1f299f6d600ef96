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
package audio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/carlorop/master-project/tools/signals"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
	"github.com/sbinet/npyio/npz"
	"github.com/youpy/go-wav"
)

// wavHeaderSize is the size of the RIFF header and WAVE form type.
const wavHeaderSize = 12

// LoadMP3 decodes an MP3 file. The decoder always produces two channels, mono
// files get the same samples in both.
func LoadMP3(path string) (Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, err
	}
	defer f.Close()
	decoder, err := mp3.NewDecoder(bufio.NewReader(f))
	if err != nil {
		return Buffer{}, fmt.Errorf("decoding %q: %w", path, err)
	}

	// 16 bit little endian stereo frames.
	const bytesPerFrame = 4
	left := signals.Float64Slice{}
	right := signals.Float64Slice{}
	frame := make([]byte, bytesPerFrame)
	for {
		if _, err := io.ReadFull(decoder, frame); err == io.EOF {
			break
		} else if err == io.ErrUnexpectedEOF {
			break
		} else if err != nil {
			return Buffer{}, fmt.Errorf("decoding %q: %w", path, err)
		}
		left = append(left, float64(int16(binary.LittleEndian.Uint16(frame[0:])))/32768.0)
		right = append(right, float64(int16(binary.LittleEndian.Uint16(frame[2:])))/32768.0)
	}
	if len(left) == 0 {
		return Buffer{}, fmt.Errorf("%q contains no audio", path)
	}
	return Buffer{
		Channels: []signals.Float64Slice{left, right},
		Rate:     signals.Hz(decoder.SampleRate()),
	}, nil
}

// LoadWAV decodes a WAV file with one or two channels.
func LoadWAV(path string) (result Buffer, err error) {
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, err
	}
	defer f.Close()
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		return Buffer{}, fmt.Errorf("reading header of %q: %w", path, err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return Buffer{}, fmt.Errorf("%q is not a RIFF/WAVE file", path)
	}
	// go-riff panics when a chunk runs past the end of the file.
	defer func() {
		if r := recover(); r != nil {
			result, err = Buffer{}, fmt.Errorf("decoding truncated %q: %v", path, r)
		}
	}()

	reader := wav.NewReader(f)
	format, err := reader.Format()
	if err != nil {
		return Buffer{}, fmt.Errorf("decoding %q: %w", path, err)
	}
	if format.NumChannels < 1 || format.NumChannels > 2 {
		return Buffer{}, fmt.Errorf("%q has unsupported number of channels %v", path, format.NumChannels)
	}
	if format.BitsPerSample < 8 || format.BitsPerSample > 32 {
		return Buffer{}, fmt.Errorf("%q has unsupported sample size %v", path, format.BitsPerSample)
	}
	// 8 bit samples are unsigned, wider ones are signed.
	offset := 0.0
	scale := 1.0 / float64(int64(1)<<(format.BitsPerSample-1))
	if format.BitsPerSample == 8 {
		offset = -128
	}

	channels := make([]signals.Float64Slice, format.NumChannels)
	for {
		samples, err := reader.ReadSamples()
		if err == io.EOF {
			break
		} else if err != nil {
			return Buffer{}, fmt.Errorf("decoding %q: %w", path, err)
		}
		for _, sample := range samples {
			for chanIdx := range channels {
				channels[chanIdx] = append(channels[chanIdx], (float64(reader.IntValue(sample, uint(chanIdx)))+offset)*scale)
			}
		}
	}
	if len(channels[0]) == 0 {
		return Buffer{}, fmt.Errorf("%q contains no audio", path)
	}
	return Buffer{
		Channels: channels,
		Rate:     signals.Hz(format.SampleRate),
	}, nil
}

// LoadFLAC decodes a FLAC file.
func LoadFLAC(path string) (Buffer, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return Buffer{}, fmt.Errorf("decoding %q: %w", path, err)
	}
	defer stream.Close()

	channels := make([]signals.Float64Slice, stream.Info.NChannels)
	scale := 1.0 / float64(int64(1)<<(stream.Info.BitsPerSample-1))
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		} else if err != nil {
			return Buffer{}, fmt.Errorf("decoding %q: %w", path, err)
		}
		for chanIdx, subframe := range frame.Subframes {
			for _, sample := range subframe.Samples {
				channels[chanIdx] = append(channels[chanIdx], float64(sample)*scale)
			}
		}
	}
	if len(channels) == 0 || len(channels[0]) == 0 {
		return Buffer{}, fmt.Errorf("%q contains no audio", path)
	}
	return Buffer{
		Channels: channels,
		Rate:     signals.Hz(stream.Info.SampleRate),
	}, nil
}

const (
	npzArrayKey = "array"
	npzRateKey  = "sr"
)

// LoadNPZ loads samples pre extracted into a numpy .npz archive, holding the
// samples as "array" (shaped [samples] or [channels][samples]) and the sample
// rate as "sr".
func LoadNPZ(path string) (Buffer, error) {
	archive, err := npz.Open(path)
	if err != nil {
		return Buffer{}, fmt.Errorf("opening %q: %w", path, err)
	}
	defer archive.Close()

	keys := map[string]string{}
	for _, key := range archive.Keys() {
		keys[strings.TrimSuffix(key, ".npy")] = key
	}
	arrayKey, found := keys[npzArrayKey]
	if !found {
		return Buffer{}, fmt.Errorf("%q has no %q array", path, npzArrayKey)
	}
	rateKey, found := keys[npzRateKey]
	if !found {
		return Buffer{}, fmt.Errorf("%q has no %q array", path, npzRateKey)
	}

	samples, err := readNPZFloats(archive, arrayKey)
	if err != nil {
		return Buffer{}, fmt.Errorf("reading %q from %q: %w", arrayKey, path, err)
	}
	rates, err := readNPZFloats(archive, rateKey)
	if err != nil {
		return Buffer{}, fmt.Errorf("reading %q from %q: %w", rateKey, path, err)
	}
	if len(rates) != 1 {
		return Buffer{}, fmt.Errorf("%q has %v sample rates, wanted 1", path, len(rates))
	}

	shape := archive.Header(arrayKey).Descr.Shape
	numChannels := 1
	if len(shape) == 2 {
		numChannels = shape[0]
	} else if len(shape) > 2 {
		return Buffer{}, fmt.Errorf("%q has an array of unsupported shape %v", path, shape)
	}
	if numChannels < 1 || len(samples)%numChannels != 0 {
		return Buffer{}, fmt.Errorf("%q has %v samples which can't be split into %v channels", path, len(samples), numChannels)
	}
	perChannel := len(samples) / numChannels
	channels := make([]signals.Float64Slice, numChannels)
	for chanIdx := range channels {
		channels[chanIdx] = samples[chanIdx*perChannel : (chanIdx+1)*perChannel]
	}
	return Buffer{
		Channels: channels,
		Rate:     signals.Hz(rates[0]),
	}, nil
}

// readNPZFloats reads the named array as float64's, whatever its numeric type.
func readNPZFloats(archive *npz.Reader, key string) (signals.Float64Slice, error) {
	dtype := archive.Header(key).Descr.Type
	switch strings.TrimLeft(dtype, "<|=") {
	case "f8":
		var values []float64
		if err := archive.Read(key, &values); err != nil {
			return nil, err
		}
		return signals.Float64Slice(values), nil
	case "f4":
		var values []float32
		if err := archive.Read(key, &values); err != nil {
			return nil, err
		}
		result := make(signals.Float64Slice, len(values))
		for idx := range values {
			result[idx] = float64(values[idx])
		}
		return result, nil
	case "i8":
		var values []int64
		if err := archive.Read(key, &values); err != nil {
			return nil, err
		}
		result := make(signals.Float64Slice, len(values))
		for idx := range values {
			result[idx] = float64(values[idx])
		}
		return result, nil
	case "i4":
		var values []int32
		if err := archive.Read(key, &values); err != nil {
			return nil, err
		}
		result := make(signals.Float64Slice, len(values))
		for idx := range values {
			result[idx] = float64(values[idx])
		}
		return result, nil
	}
	return nil, fmt.Errorf("unsupported dtype %q", dtype)
}
