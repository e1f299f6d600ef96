/* Package config holds the parameters of a shard building run.
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
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v2"
	"github.com/carlorop/master-project/tools/partition"
	"github.com/carlorop/master-project/tools/records"
	"github.com/carlorop/master-project/tools/transform"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by all errors returned from Validate.
var ErrInvalid = errors.New("invalid parameters")

// Params are the parameters of a run. They are built once and then passed by value.
type Params struct {
	Format    transform.Format `yaml:"format"`
	OutputDir string           `yaml:"output"`
	RootDir   string           `yaml:"root_dir"`
	CSVPath   string           `yaml:"csv_path"`
	// TagPath is the tag database of single database runs.
	TagPath string `yaml:"tag_path"`
	// TagPathMulti and the matches of TagGlob are the tag databases of multi database runs.
	TagPathMulti []string `yaml:"tag_path_multi"`
	TagGlob      string   `yaml:"tag_glob"`
	Mels         int      `yaml:"mels"`
	Rate         float64  `yaml:"sr"`
	NumFiles     int      `yaml:"num_files"`
	// Split holds train, validation and test ratios. Empty selects NumFiles shards.
	Split []int `yaml:"split"`
	// StartStop selects a 1-based inclusive range of the NumFiles shards.
	StartStop []int `yaml:"start_stop"`
	Verbose   bool  `yaml:"verbose"`
	// Seed overrides the shuffle seed.
	Seed        *int64              `yaml:"seed"`
	Parallel    int                 `yaml:"parallel"`
	Compression records.Compression `yaml:"compression"`
}

// Default returns the parameters used for everything not explicitly set.
func Default() Params {
	return Params{
		Format:   transform.Waveform,
		Mels:     128,
		Rate:     16000,
		NumFiles: 100,
		Parallel: 1,
	}
}

// Decode reads YAML parameters on top of the defaults. Unknown keys are errors.
func Decode(r io.Reader) (Params, error) {
	result := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&result); err != nil && !errors.Is(err, io.EOF) {
		return Params{}, err
	}
	return result, nil
}

// Load reads YAML parameters from path on top of the defaults.
func Load(path string) (Params, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Params{}, err
	}
	result, err := Decode(bytes.NewReader(b))
	if err != nil {
		return Params{}, fmt.Errorf("parsing %q: %w", path, err)
	}
	return result, nil
}

// Multi returns whether the run uses several tag databases.
func (p Params) Multi() bool {
	return len(p.TagPathMulti) > 0 || p.TagGlob != ""
}

// TagPaths returns the tag databases of a multi database run, sorted and without duplicates.
func (p Params) TagPaths() ([]string, error) {
	paths := append([]string{}, p.TagPathMulti...)
	if p.TagGlob != "" {
		matches, err := doublestar.Glob(p.TagGlob)
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", p.TagGlob, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no tag databases match %q: %w", p.TagGlob, ErrInvalid)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)
	result := []string{}
	for idx, path := range paths {
		if idx == 0 || path != paths[idx-1] {
			result = append(result, path)
		}
	}
	return result, nil
}

// Plan returns the shard plan of the run.
func (p Params) Plan() partition.Plan {
	plan := partition.Plan{
		Split: p.Split,
		Count: p.NumFiles,
	}
	if len(p.Split) == 0 {
		plan.Split = nil
	}
	if len(p.StartStop) == 2 {
		plan.Start, plan.Stop = p.StartStop[0], p.StartStop[1]
	}
	return plan
}

// ShuffleSeed returns the seed to shuffle the catalogue with. Runs selecting a
// sub-range of shards use seed 1 so that separate processes agree on the
// order. Other runs without an explicit seed use fallback.
func (p Params) ShuffleSeed(fallback int64) int64 {
	if p.Seed != nil {
		return *p.Seed
	}
	if len(p.StartStop) > 0 {
		return 1
	}
	return fallback
}

// Validate returns an error wrapping ErrInvalid if the parameters are inconsistent.
func (p Params) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%v: %w", fmt.Sprintf(format, args...), ErrInvalid)
	}
	if p.Format != transform.Waveform && p.Format != transform.LogMelSpectrogram {
		return invalid("unknown format %v", p.Format)
	}
	for name, val := range map[string]string{
		"output":   p.OutputDir,
		"root_dir": p.RootDir,
		"csv_path": p.CSVPath,
	} {
		if val == "" {
			return invalid("%v is required", name)
		}
	}
	if p.TagPath != "" && p.Multi() {
		return invalid("tag_path can't be combined with tag_path_multi or tag_glob")
	}
	if p.TagPath == "" && !p.Multi() {
		return invalid("one of tag_path, tag_path_multi and tag_glob is required")
	}
	if p.Mels < 1 {
		return invalid("mels %v is not positive", p.Mels)
	}
	if p.Rate <= 0 {
		return invalid("sr %v is not positive", p.Rate)
	}
	if p.Parallel < 1 {
		return invalid("parallel %v is not positive", p.Parallel)
	}
	if len(p.Split) > 0 && len(p.StartStop) > 0 {
		return invalid("split and start_stop are mutually exclusive")
	}
	if len(p.Split) != 0 && len(p.Split) != 3 {
		return invalid("split has %v values, wanted 3", len(p.Split))
	}
	if len(p.StartStop) != 0 && len(p.StartStop) != 2 {
		return invalid("start_stop has %v values, wanted 2", len(p.StartStop))
	}
	if err := p.Plan().Validate(); err != nil {
		return fmt.Errorf("%w: %w", err, ErrInvalid)
	}
	if p.Compression != records.None && p.Compression != records.GZIP && p.Compression != records.ZLIB {
		return invalid("unknown compression %v", int(p.Compression))
	}
	return nil
}
