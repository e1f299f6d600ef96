/* synthesize creates a catalogue of synthetic tracks, their WAV files and a tag database.
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
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/carlorop/master-project/tools/catalogue"
	"github.com/carlorop/master-project/tools/signals"
	"github.com/carlorop/master-project/tools/tags"
	"go.uber.org/zap"
)

var (
	destination     = flag.String("destination", "", "Directory to create the catalogue in.")
	numTracks       = flag.Int("tracks", 100, "Number of tracks to synthesize.")
	sampleRate      = flag.Float64("sample_rate", 22050.0, "Sample rate to use when synthesizing.")
	durationSeconds = flag.Float64("duration_seconds", 1.0, "Number of seconds to synthesize per track.")
	stereo          = flag.Bool("stereo", false, "Whether to synthesize two channels.")
	levelDB         = flag.Float64("level_db", -12, "Level of each of the two tones of a track, in dB relative to full scale. Must be below -6.")
	tagLabels       = flag.String("tags", "rock,pop,jazz,electronic,90s", "Comma separated tag labels.")
	taglessFraction = flag.Float64("tagless_fraction", 0.1, "Fraction of tracks without tags.")
	seed            = flag.Int64("seed", 1, "Seed of the random tracks and tags.")
)

const (
	catalogueName = "ultimate.csv"
	databaseName  = "clean_lastfm.db"
	sourceDir     = "wav"
)

type options struct {
	tracks          int
	rate            signals.Hz
	duration        signals.Seconds
	stereo          bool
	level           signals.DB
	labels          []string
	taglessFraction float64
	seed            int64
}

// synthesize writes the tracks below dir/wav, the catalogue to dir/ultimate.csv and the tags to dir/clean_lastfm.db.
func synthesize(dir string, opts options) error {
	if len(opts.labels) == 0 {
		return fmt.Errorf("no tag labels")
	}
	gain := opts.level.Gain()
	if gain > 0.5 {
		return fmt.Errorf("level %vdB makes the tones clip", opts.level)
	}
	rng := rand.New(rand.NewSource(opts.seed))
	if err := os.MkdirAll(filepath.Join(dir, sourceDir), 0755); err != nil {
		return err
	}
	lines := []string{"# synthetic tracks", fmt.Sprintf("%v,%v", catalogue.TrackIDColumn, catalogue.MP3Column)}
	trackTags := map[string][]int{}
	num := int(float64(opts.rate) * float64(opts.duration))
	for idx := 0; idx < opts.tracks; idx++ {
		tid := fmt.Sprintf("TRSYN%06d", idx)
		rel := filepath.Join(sourceDir, fmt.Sprintf("%v.wav", tid))
		lines = append(lines, fmt.Sprintf("%v,%v", tid, rel))

		nums := []int{}
		if rng.Float64() >= opts.taglessFraction {
			for _, tagIdx := range rng.Perm(len(opts.labels))[:1+rng.Intn(len(opts.labels))] {
				nums = append(nums, tagIdx+1)
			}
		}
		trackTags[tid] = nums

		channels := []signals.Float64Slice{}
		for channel := 0; channel < 1 || (opts.stereo && channel < 2); channel++ {
			signal := signals.Sine(signals.Hz(50+rng.Float64()*float64(opts.rate)/4), gain, opts.rate, num)
			overtone := signals.Sine(signals.Hz(50+rng.Float64()*float64(opts.rate)/4), gain, opts.rate, num)
			for sampleIdx := range signal {
				signal[sampleIdx] += overtone[sampleIdx]
			}
			channels = append(channels, signal)
		}
		f, err := os.Create(filepath.Join(dir, rel))
		if err != nil {
			return err
		}
		if err := signals.WriteWAV(f, float64(opts.rate), channels...); err != nil {
			f.Close()
			return fmt.Errorf("writing %q: %w", rel, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	if err := os.WriteFile(filepath.Join(dir, catalogueName), []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		return err
	}
	return tags.Create(filepath.Join(dir, databaseName), opts.labels, trackTags)
}

func main() {
	flag.Parse()
	if *destination == "" {
		flag.Usage()
		os.Exit(1)
	}
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := synthesize(*destination, options{
		tracks:          *numTracks,
		rate:            signals.Hz(*sampleRate),
		duration:        signals.Seconds(*durationSeconds),
		stereo:          *stereo,
		level:           signals.DB(*levelDB),
		labels:          strings.Split(*tagLabels, ","),
		taglessFraction: *taglessFraction,
		seed:            *seed,
	}); err != nil {
		logger.Fatal("synthesizing failed", zap.Error(err))
	}
	logger.Info("synthesized catalogue",
		zap.String("catalogue", filepath.Join(*destination, catalogueName)),
		zap.String("tags", filepath.Join(*destination, databaseName)),
		zap.String("root_dir", *destination),
		zap.Int("tracks", *numTracks))
}
