/* Package catalogue loads the CSV listing of tracks to convert.
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
package catalogue

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
)

// ErrSchema is returned for catalogues without a track_id column and exactly one source path column.
var ErrSchema = errors.New("catalogue needs a track_id column and exactly one of npz_path and mp3_path")

const (
	TrackIDColumn = "track_id"
	NPZColumn     = "npz_path"
	MP3Column     = "mp3_path"
)

// Kind is the kind of source files listed in a catalogue.
type Kind int

const (
	// MP3 catalogues list audio files that are decoded when building shards.
	MP3 Kind = iota
	// NPZ catalogues list numpy archives with pre-extracted arrays.
	NPZ
)

func (k Kind) String() string {
	if k == NPZ {
		return "npz"
	}
	return "mp3"
}

// Row is one track.
type Row struct {
	TrackID string
	// SourcePath is relative to the root directory of the sources.
	SourcePath string
}

// Catalogue is an ordered list of tracks.
type Catalogue struct {
	Kind Kind
	Rows []Row
}

// Len returns the number of rows.
func (c *Catalogue) Len() int {
	return len(c.Rows)
}

// Slice returns the catalogue of rows [from, to).
func (c *Catalogue) Slice(from, to int) *Catalogue {
	return &Catalogue{Kind: c.Kind, Rows: c.Rows[from:to]}
}

// Shuffle permutes the rows pseudo randomly, identically for identical seeds.
func (c *Catalogue) Shuffle(seed int64) {
	rand.New(rand.NewSource(seed)).Shuffle(len(c.Rows), func(i, j int) {
		c.Rows[i], c.Rows[j] = c.Rows[j], c.Rows[i]
	})
}

// Read parses a catalogue with a header row. Lines starting with '#' are ignored.
//
// An npz_path column takes precedence over an mp3_path column, so catalogues
// listing both read as NPZ.
func Read(r io.Reader) (*Catalogue, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty catalogue: %w", ErrSchema)
	}
	if err != nil {
		return nil, err
	}
	columns := map[string]int{}
	for idx, name := range header {
		if _, found := columns[name]; !found {
			columns[name] = idx
		}
	}
	tidCol, found := columns[TrackIDColumn]
	if !found {
		return nil, fmt.Errorf("no %q column in %v: %w", TrackIDColumn, header, ErrSchema)
	}
	result := &Catalogue{}
	pathCol, found := columns[NPZColumn]
	if found {
		result.Kind = NPZ
	} else if pathCol, found = columns[MP3Column]; found {
		result.Kind = MP3
	} else {
		return nil, fmt.Errorf("no %q or %q column in %v: %w", NPZColumn, MP3Column, header, ErrSchema)
	}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if tidCol >= len(record) || pathCol >= len(record) {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %v has %v fields: %w", line, len(record), ErrSchema)
		}
		result.Rows = append(result.Rows, Row{
			TrackID:    record[tidCol],
			SourcePath: record[pathCol],
		})
	}
	return result, nil
}

// Load reads the catalogue at path.
func Load(path string) (*Catalogue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	result, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	return result, nil
}
