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
package records

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/carlorop/master-project/tools/tags"
	"github.com/golang/protobuf/proto"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	tf "github.com/ryszard/tfutils/proto/tensorflow/core/example"
)

func TestEncode(t *testing.T) {
	ex := Encode([]float64{0.5, -0.25}, "TRAAAAK128F9318786", tags.Result{Sets: []tags.Set{{Nums: []int{1, 4}, Labels: []string{"rock", "90s"}}}})
	for k, v := range map[string]*tf.Feature{
		"audio": &tf.Feature{Kind: &tf.Feature_FloatList{FloatList: &tf.FloatList{Value: []float32{0.5, -0.25}}}},
		"tid":   &tf.Feature{Kind: &tf.Feature_BytesList{BytesList: &tf.BytesList{Value: [][]byte{[]byte("TRAAAAK128F9318786")}}}},
		"tags":  &tf.Feature{Kind: &tf.Feature_BytesList{BytesList: &tf.BytesList{Value: [][]byte{[]byte("rock"), []byte("90s")}}}},
	} {
		if !proto.Equal(v, ex.Features.Feature[k]) {
			t.Errorf("Got %v at %v, wanted %v", ex.Features.Feature[k], k, v)
		}
	}
	if len(ex.Features.Feature) != 3 {
		t.Errorf("Got %v features, wanted 3", len(ex.Features.Feature))
	}
}

func TestEncodeMulti(t *testing.T) {
	ex := Encode([]float64{1}, "tid", tags.Result{Sets: []tags.Set{
		{Nums: []int{2}, Labels: []string{"pop"}},
		{Nums: []int{}, Labels: []string{}},
	}})
	if _, found := ex.Features.Feature["tags"]; found {
		t.Errorf("Multi database example unexpectedly has a tags feature")
	}
	want := &tf.Feature{Kind: &tf.Feature_BytesList{BytesList: &tf.BytesList{Value: [][]byte{[]byte("pop")}}}}
	if !proto.Equal(want, ex.Features.Feature["tags-0"]) {
		t.Errorf("Got %v at tags-0, wanted %v", ex.Features.Feature["tags-0"], want)
	}
	if _, found := ex.Features.Feature["tags-1"]; !found {
		t.Errorf("Multi database example has no tags-1 feature")
	}
	record, err := Decode(ex)
	require.NoError(t, err)
	if diff := cmp.Diff(record.Tags, [][]string{{"pop"}, {}}); diff != "" {
		t.Errorf("Decode produced unexpected tags: %v", diff)
	}
}

func TestDecodeErrors(t *testing.T) {
	for _, tc := range []struct {
		desc string
		ex   *tf.Example
	}{
		{
			desc: "no features",
			ex:   &tf.Example{},
		},
		{
			desc: "no audio",
			ex: &tf.Example{Features: &tf.Features{Feature: map[string]*tf.Feature{
				"tid":  bytesFeature("a"),
				"tags": bytesFeature("rock"),
			}}},
		},
		{
			desc: "bytes audio",
			ex: &tf.Example{Features: &tf.Features{Feature: map[string]*tf.Feature{
				"audio": bytesFeature("a"),
				"tid":   bytesFeature("a"),
				"tags":  bytesFeature("rock"),
			}}},
		},
		{
			desc: "no tags",
			ex: &tf.Example{Features: &tf.Features{Feature: map[string]*tf.Feature{
				"audio": floatFeature([]float64{1}),
				"tid":   bytesFeature("a"),
			}}},
		},
	} {
		if _, err := Decode(tc.ex); err == nil {
			t.Errorf("%v: Decode unexpectedly succeeded", tc.desc)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	want := []Record{
		{Audio: []float32{0.1, 0.2, 0.3}, TrackID: "tid1", Tags: [][]string{{"rock", "pop"}}},
		{Audio: []float32{0.5}, TrackID: "tid2", Tags: [][]string{{"jazz"}}},
		{Audio: []float32{-1, 1}, TrackID: "tid3", Tags: [][]string{{"90s"}}},
		{Audio: make([]float32, 48000), TrackID: "tid4", Tags: [][]string{{"rock"}}},
	}
	for idx := range want[3].Audio {
		want[3].Audio[idx] = float32(idx%200)/100 - 1
	}
	for _, compression := range []Compression{None, GZIP, ZLIB} {
		path := filepath.Join(t.TempDir(), "waveform_1.tfrecord")
		w, err := Create(path, compression)
		require.NoError(t, err)
		for _, record := range want {
			audio := make([]float64, len(record.Audio))
			for idx, val := range record.Audio {
				audio[idx] = float64(val)
			}
			require.NoError(t, w.Write(Encode(audio, record.TrackID, tags.Result{Sets: []tags.Set{{Labels: record.Tags[0]}}})))
		}
		if w.Count() != len(want) {
			t.Errorf("%v: Count() is unexpectedly %v", compression, w.Count())
		}
		require.NoError(t, w.Close())

		got, err := ReadAll(path, compression)
		require.NoError(t, err)
		if diff := cmp.Diff(got, want); diff != "" {
			t.Errorf("%v: read unexpected records: %v", compression, diff)
		}
	}
}

func TestReaderEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.tfrecord")
	w, err := Create(path, None)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	r, err := Open(path, None)
	require.NoError(t, err)
	defer r.Close()
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next() on an empty file returned %v, wanted io.EOF", err)
	}
}

func TestParseCompression(t *testing.T) {
	for _, tc := range []struct {
		s    string
		want Compression
	}{
		{"", None},
		{"none", None},
		{"gzip", GZIP},
		{"ZLIB", ZLIB},
	} {
		got, err := ParseCompression(tc.s)
		if err != nil || got != tc.want {
			t.Errorf("ParseCompression(%q) is unexpectedly %v, %v", tc.s, got, err)
		}
	}
	if _, err := ParseCompression("snappy"); err == nil {
		t.Errorf("ParseCompression(\"snappy\") unexpectedly succeeded")
	}
}
