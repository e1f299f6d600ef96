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
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carlorop/master-project/tools/records"
	"github.com/carlorop/master-project/tools/tags"
	"github.com/carlorop/master-project/tools/transform"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waveform_1.tfrecord")
	w, err := records.Create(path, records.ZLIB)
	require.NoError(t, err)
	for _, tid := range []string{"a", "b", "c"} {
		require.NoError(t, w.Write(records.Encode([]float64{1, 2}, tid, tags.Result{Sets: []tags.Set{{Labels: []string{"rock"}}}})))
	}
	require.NoError(t, w.Close())

	inspectLimit = 2
	out := &bytes.Buffer{}
	require.NoError(t, inspect(out, path, records.ZLIB))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	want := []string{
		"0\ta: 2 audio values, tags [rock]",
		"1\tb: 2 audio values, tags [rock]",
		path + ": 3 records",
	}
	if diff := cmp.Diff(lines, want); diff != "" {
		t.Errorf("inspect printed unexpected lines: %v", diff)
	}
}

func TestBuildParams(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
output: out
root_dir: mp3
csv_path: ultimate.csv
tag_path: clean_lastfm.db
mels: 96
num_files: 10
`), 0644))
	require.NoError(t, buildCmd.ParseFlags([]string{
		"--config", configFile,
		"--format", "log-mel-spectrogram",
		"--start_stop", "3,4",
		"--compression", "gzip",
	}))
	params, err := buildParams(buildCmd)
	require.NoError(t, err)
	if params.Format != transform.LogMelSpectrogram || params.Mels != 96 || params.NumFiles != 10 || params.Compression != records.GZIP {
		t.Errorf("buildParams produced unexpected %+v", params)
	}
	if diff := cmp.Diff(params.StartStop, []int{3, 4}); diff != "" {
		t.Errorf("buildParams produced unexpected range: %v", diff)
	}
	if params.Seed == nil || *params.Seed != 1 {
		t.Errorf("buildParams with a range produced seed %v, wanted 1", params.Seed)
	}
}

func TestVerboseFromConfig(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "verbose.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
output: out
root_dir: mp3
csv_path: ultimate.csv
tag_path: clean_lastfm.db
verbose: true
`), 0644))
	require.NoError(t, buildCmd.ParseFlags([]string{"--config", configFile}))
	params, err := buildParams(buildCmd)
	require.NoError(t, err)
	if !params.Verbose {
		t.Fatalf("buildParams ignored verbose in %q", configFile)
	}
	for _, tc := range []struct {
		verbose   bool
		wantDebug bool
	}{
		{verbose: params.Verbose, wantDebug: true},
		{verbose: false, wantDebug: false},
	} {
		l, err := newLogger(tc.verbose)
		require.NoError(t, err)
		if got := l.Core().Enabled(zapcore.DebugLevel); got != tc.wantDebug {
			t.Errorf("newLogger(%v) logs debug messages: %v, wanted %v", tc.verbose, got, tc.wantDebug)
		}
	}
}
