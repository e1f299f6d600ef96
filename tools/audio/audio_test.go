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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/carlorop/master-project/tools/signals"
	"github.com/sbinet/npyio/npz"
	"github.com/stretchr/testify/require"
)

func writeWAV(t *testing.T, path string, rate float64, channels ...signals.Float64Slice) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, signals.WriteWAV(f, rate, channels...))
}

func TestLoadWAV(t *testing.T) {
	dir := t.TempDir()
	left := signals.Sine(440, 0.5, 8000, 800)
	right := signals.Sine(880, 0.25, 8000, 800)
	for _, tc := range []struct {
		desc     string
		channels []signals.Float64Slice
	}{
		{desc: "mono", channels: []signals.Float64Slice{left}},
		{desc: "stereo", channels: []signals.Float64Slice{left, right}},
	} {
		path := filepath.Join(dir, tc.desc+".wav")
		writeWAV(t, path, 8000, tc.channels...)
		buffer, err := Load(path)
		if err != nil {
			t.Fatalf("%v: Load(%q) failed: %v", tc.desc, path, err)
		}
		if buffer.Rate != 8000 {
			t.Errorf("%v: got rate %v, wanted 8000", tc.desc, buffer.Rate)
		}
		if len(buffer.Channels) != len(tc.channels) {
			t.Fatalf("%v: got %v channels, wanted %v", tc.desc, len(buffer.Channels), len(tc.channels))
		}
		for chanIdx := range tc.channels {
			if !buffer.Channels[chanIdx].EqTol(tc.channels[chanIdx], 0.001) {
				t.Errorf("%v: channel %v didn't match the written samples", tc.desc, chanIdx)
			}
		}
		if buffer.Len() != 800 {
			t.Errorf("%v: Len() is unexpectedly %v", tc.desc, buffer.Len())
		}
	}
}

func TestMono(t *testing.T) {
	buffer := Buffer{
		Channels: []signals.Float64Slice{{1, 0, -1}, {0, 0, 1}},
		Rate:     3,
	}
	mono, err := buffer.Mono()
	require.NoError(t, err)
	if !mono.EqTol(signals.Float64Slice{0.5, 0, 0}, 1e-12) {
		t.Errorf("Mono() is unexpectedly %v", mono)
	}
	if got := buffer.Duration(); got != 1 {
		t.Errorf("Duration() is unexpectedly %v", got)
	}
	if got := (Buffer{}).Duration(); got != 0 {
		t.Errorf("Duration() of an empty buffer is unexpectedly %v", got)
	}
}

func TestLoadFailures(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.mp3")
	require.NoError(t, os.WriteFile(garbage, []byte("this is not an mp3 file"), 0644))
	empty := filepath.Join(dir, "empty.wav")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	short := filepath.Join(dir, "short.wav")
	require.NoError(t, os.WriteFile(short, []byte("RIF"), 0644))
	notWave := filepath.Join(dir, "notwave.wav")
	require.NoError(t, os.WriteFile(notWave, []byte("RIFF\x04\x00\x00\x00AVI "), 0644))
	whole := filepath.Join(dir, "whole.wav")
	writeWAV(t, whole, 8000, signals.Sine(440, 0.5, 8000, 800))
	contents, err := os.ReadFile(whole)
	require.NoError(t, err)
	truncated := filepath.Join(dir, "truncated.wav")
	require.NoError(t, os.WriteFile(truncated, contents[:30], 0644))

	for _, tc := range []struct {
		desc string
		path string
	}{
		{desc: "missing file", path: filepath.Join(dir, "missing.mp3")},
		{desc: "garbage mp3", path: garbage},
		{desc: "empty wav", path: empty},
		{desc: "short wav", path: short},
		{desc: "riff without wave", path: notWave},
		{desc: "truncated wav", path: truncated},
		{desc: "missing flac", path: filepath.Join(dir, "missing.flac")},
	} {
		if _, err := Load(tc.path); err == nil {
			t.Errorf("%v: Load(%q) unexpectedly succeeded", tc.desc, tc.path)
		}
	}

	if _, err := Load(filepath.Join(dir, "track.ogg")); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Load of an .ogg file produced %v, wanted ErrUnknownFormat", err)
	}
}

func TestLoadNPZ(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.npz")
	samples := []float32{0.5, -0.5, 0.25, -0.25}
	w, err := npz.Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Write("array", samples))
	require.NoError(t, w.Write("sr", []int64{22050}))
	require.NoError(t, w.Close())

	buffer, err := Load(path)
	require.NoError(t, err)
	if buffer.Rate != 22050 {
		t.Errorf("got rate %v, wanted 22050", buffer.Rate)
	}
	if len(buffer.Channels) != 1 || !buffer.Channels[0].EqTol(signals.Float64Slice{0.5, -0.5, 0.25, -0.25}, 1e-9) {
		t.Errorf("got channels %v, wanted %v", buffer.Channels, samples)
	}
}
