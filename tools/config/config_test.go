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
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carlorop/master-project/tools/partition"
	"github.com/carlorop/master-project/tools/records"
	"github.com/carlorop/master-project/tools/transform"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func valid() Params {
	p := Default()
	p.OutputDir = "out"
	p.RootDir = "mp3"
	p.CSVPath = "ultimate.csv"
	p.TagPath = "clean_lastfm.db"
	return p
}

func TestDecode(t *testing.T) {
	got, err := Decode(strings.NewReader(`
format: log-mel-spectrogram
output: /data/tfrecords
root_dir: /data/mp3
csv_path: /data/ultimate.csv
tag_path: /data/clean_lastfm.db
mels: 96
split: [80, 10, 10]
compression: gzip
seed: 7
`))
	require.NoError(t, err)
	seed := int64(7)
	want := Params{
		Format:      transform.LogMelSpectrogram,
		OutputDir:   "/data/tfrecords",
		RootDir:     "/data/mp3",
		CSVPath:     "/data/ultimate.csv",
		TagPath:     "/data/clean_lastfm.db",
		Mels:        96,
		Rate:        16000,
		NumFiles:    100,
		Split:       []int{80, 10, 10},
		Seed:        &seed,
		Parallel:    1,
		Compression: records.GZIP,
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Decode produced unexpected parameters: %v", diff)
	}
	require.NoError(t, got.Validate())
	if diff := cmp.Diff(got.Plan(), partition.Plan{Split: []int{80, 10, 10}, Count: 100}); diff != "" {
		t.Errorf("Plan() is unexpected: %v", diff)
	}
}

func TestDecodeErrors(t *testing.T) {
	for _, doc := range []string{
		"unknown_key: 1\n",
		"format: mfcc\n",
		"compression: snappy\n",
	} {
		if _, err := Decode(strings.NewReader(doc)); err == nil {
			t.Errorf("Decode(%q) unexpectedly succeeded", doc)
		}
	}
	got, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	if diff := cmp.Diff(got, Default()); diff != "" {
		t.Errorf("Decode of an empty document didn't produce the defaults: %v", diff)
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, valid().Validate())
	for _, tc := range []struct {
		desc   string
		modify func(p *Params)
	}{
		{"no output", func(p *Params) { p.OutputDir = "" }},
		{"no tags", func(p *Params) { p.TagPath = "" }},
		{"single and multi tags", func(p *Params) { p.TagPathMulti = []string{"a.db"} }},
		{"zero mels", func(p *Params) { p.Mels = 0 }},
		{"negative rate", func(p *Params) { p.Rate = -1 }},
		{"zero parallel", func(p *Params) { p.Parallel = 0 }},
		{"split and range", func(p *Params) { p.Split = []int{8, 1, 1}; p.StartStop = []int{1, 2} }},
		{"short split", func(p *Params) { p.Split = []int{8, 1} }},
		{"zero split", func(p *Params) { p.Split = []int{0, 0, 0} }},
		{"backwards range", func(p *Params) { p.StartStop = []int{3, 2} }},
		{"zero files", func(p *Params) { p.NumFiles = 0 }},
	} {
		p := valid()
		tc.modify(&p)
		if err := p.Validate(); !errors.Is(err, ErrInvalid) {
			t.Errorf("%v: Validate() produced %v, wanted ErrInvalid", tc.desc, err)
		}
	}
}

func TestShuffleSeed(t *testing.T) {
	p := valid()
	if got := p.ShuffleSeed(42); got != 42 {
		t.Errorf("ShuffleSeed without range is unexpectedly %v", got)
	}
	p.StartStop = []int{3, 4}
	if got := p.ShuffleSeed(42); got != 1 {
		t.Errorf("ShuffleSeed with range is unexpectedly %v", got)
	}
	seed := int64(9)
	p.Seed = &seed
	if got := p.ShuffleSeed(42); got != 9 {
		t.Errorf("ShuffleSeed with explicit seed is unexpectedly %v", got)
	}
}

func TestTagPaths(t *testing.T) {
	dir := t.TempDir()
	for _, rel := range []string{"a/clean.db", "b/c/clean.db", "b/other.txt"} {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, nil, 0644))
	}
	p := valid()
	p.TagPath = ""
	p.TagPathMulti = []string{filepath.Join(dir, "a/clean.db")}
	p.TagGlob = filepath.Join(dir, "**/*.db")
	require.NoError(t, p.Validate())
	got, err := p.TagPaths()
	require.NoError(t, err)
	want := []string{filepath.Join(dir, "a/clean.db"), filepath.Join(dir, "b/c/clean.db")}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("TagPaths() is unexpected: %v", diff)
	}

	p.TagGlob = filepath.Join(dir, "**/*.sqlite")
	if _, err := p.TagPaths(); !errors.Is(err, ErrInvalid) {
		t.Errorf("TagPaths() without glob matches produced %v, wanted ErrInvalid", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("num_files: 10\nstart_stop: [3, 3]\n"), 0644))
	got, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(got.Plan(), partition.Plan{Count: 10, Start: 3, Stop: 3}); diff != "" {
		t.Errorf("Plan() is unexpected: %v", diff)
	}
}
