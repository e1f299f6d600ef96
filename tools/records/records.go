/* Package records encodes tracks as tf.Examples and stores them in TFRecord files.
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
package records

import (
	"fmt"
	"strings"

	"github.com/carlorop/master-project/tools/signals"
	"github.com/carlorop/master-project/tools/tags"

	tf "github.com/ryszard/tfutils/proto/tensorflow/core/example"
)

const (
	// AudioFeature holds the flattened processed audio.
	AudioFeature = "audio"
	// TrackIDFeature holds the track id.
	TrackIDFeature = "tid"
	// TagsFeature holds the tag labels of a track looked up in one database.
	TagsFeature = "tags"
)

// MultiTagsFeature returns the name of the feature holding the tag labels from database idx.
func MultiTagsFeature(idx int) string {
	return fmt.Sprintf("%v-%v", TagsFeature, idx)
}

func bytesFeature(vals ...string) *tf.Feature {
	bytes := make([][]byte, len(vals))
	for idx, val := range vals {
		bytes[idx] = []byte(val)
	}
	return &tf.Feature{Kind: &tf.Feature_BytesList{BytesList: &tf.BytesList{Value: bytes}}}
}

func floatFeature(vals []float64) *tf.Feature {
	return &tf.Feature{Kind: &tf.Feature_FloatList{FloatList: &tf.FloatList{Value: signals.Float64Slice(vals).ToFloat32()}}}
}

// Encode returns a tf.Example with the audio, the track id and the tag labels of a track.
//
// A result with one tag set is stored in TagsFeature, a result with several
// sets in one MultiTagsFeature per set.
func Encode(audio []float64, tid string, result tags.Result) *tf.Example {
	ex := &tf.Example{
		Features: &tf.Features{
			Feature: map[string]*tf.Feature{
				AudioFeature:   floatFeature(audio),
				TrackIDFeature: bytesFeature(tid),
			},
		},
	}
	if len(result.Sets) == 1 {
		ex.Features.Feature[TagsFeature] = bytesFeature(result.Sets[0].Labels...)
	} else {
		for idx, set := range result.Sets {
			ex.Features.Feature[MultiTagsFeature(idx)] = bytesFeature(set.Labels...)
		}
	}
	return ex
}

// Record is a decoded tf.Example.
type Record struct {
	Audio   []float32
	TrackID string
	// Tags holds one label list per tag database.
	Tags [][]string
}

func decodeBytes(ex *tf.Example, name string) ([]string, bool, error) {
	feature, found := ex.Features.Feature[name]
	if !found {
		return nil, false, nil
	}
	list, ok := feature.Kind.(*tf.Feature_BytesList)
	if !ok {
		return nil, true, fmt.Errorf("feature %q is a %T, wanted a bytes list", name, feature.Kind)
	}
	result := make([]string, len(list.BytesList.Value))
	for idx, val := range list.BytesList.Value {
		result[idx] = string(val)
	}
	return result, true, nil
}

// Decode returns the Record stored in ex.
func Decode(ex *tf.Example) (Record, error) {
	if ex.Features == nil {
		return Record{}, fmt.Errorf("example has no features")
	}
	result := Record{}
	audio, found := ex.Features.Feature[AudioFeature]
	if !found {
		return Record{}, fmt.Errorf("example has no %q feature", AudioFeature)
	}
	floats, ok := audio.Kind.(*tf.Feature_FloatList)
	if !ok {
		return Record{}, fmt.Errorf("feature %q is a %T, wanted a float list", AudioFeature, audio.Kind)
	}
	result.Audio = floats.FloatList.Value

	tid, found, err := decodeBytes(ex, TrackIDFeature)
	if err != nil {
		return Record{}, err
	}
	if !found || len(tid) != 1 {
		return Record{}, fmt.Errorf("example has %v track ids, wanted one", len(tid))
	}
	result.TrackID = tid[0]

	labels, found, err := decodeBytes(ex, TagsFeature)
	if err != nil {
		return Record{}, err
	}
	if found {
		result.Tags = [][]string{labels}
		return result, nil
	}
	for idx := 0; ; idx++ {
		labels, found, err := decodeBytes(ex, MultiTagsFeature(idx))
		if err != nil {
			return Record{}, err
		}
		if !found {
			break
		}
		result.Tags = append(result.Tags, labels)
	}
	if len(result.Tags) == 0 {
		return Record{}, fmt.Errorf("example has no %q or %q features", TagsFeature, MultiTagsFeature(0))
	}
	return result, nil
}

func (r Record) String() string {
	lists := make([]string, len(r.Tags))
	for idx, labels := range r.Tags {
		lists[idx] = "[" + strings.Join(labels, ", ") + "]"
	}
	return fmt.Sprintf("%v: %v audio values, tags %v", r.TrackID, len(r.Audio), strings.Join(lists, " "))
}
