/* Package tags looks up the tags of tracks in cleaned Last.fm tag databases.
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
package tags

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrTagCountMismatch is returned when databases used together have tag universes of different sizes.
var ErrTagCountMismatch = errors.New("all databases need to have the same number of tags")

// Set is the tags of a track in one database.
type Set struct {
	// Nums are the 1-based tag numbers, ascending.
	Nums []int
	// Labels are the labels of Nums.
	Labels []string
}

// Result is the outcome of looking up a track, one Set per database.
type Result struct {
	Sets []Set
}

// Eligible returns whether any database has tags for the track.
func (r Result) Eligible() bool {
	for _, set := range r.Sets {
		if len(set.Nums) > 0 {
			return true
		}
	}
	return false
}

// Labels returns the labels of every Set.
func (r Result) Labels() [][]string {
	result := make([][]string, len(r.Sets))
	for idx, set := range r.Sets {
		result[idx] = set.Labels
	}
	return result
}

// Index looks up the tags of tracks.
type Index interface {
	// Lookup returns the tags of tid. Unknown tracks get an ineligible Result and no error.
	Lookup(ctx context.Context, tid string) (Result, error)
	// NumTags returns the size of the tag universe.
	NumTags() int
	// Close releases the databases.
	Close() error
}

// DB is one tag database.
//
// The database has the tables tids(tid), tags(tag) and tid_tag(tid, tag, val),
// where tid_tag.tid and tid_tag.tag refer to the rowids of tids and tags.
type DB struct {
	path   string
	db     *sql.DB
	labels []string
}

// Open opens the existing database at path and loads its tag labels.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", readOnlyDSN(path))
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", path, err)
	}
	result := &DB{
		path: path,
		db:   db,
	}
	if result.labels, err = result.loadLabels(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("loading tags from %q: %w", path, err)
	}
	return result, nil
}

// readOnlyDSN returns a SQLite URI opening path read-only.
func readOnlyDSN(path string) string {
	return "file:" + uriEscaper.Replace(filepath.ToSlash(path)) + "?mode=ro"
}

var uriEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

func (d *DB) loadLabels(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT rowid, tag FROM tags ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	labels := []string{}
	for rows.Next() {
		var num int
		var label string
		if err := rows.Scan(&num, &label); err != nil {
			return nil, err
		}
		if num != len(labels)+1 {
			return nil, fmt.Errorf("tag %q has number %v, wanted consecutive numbers from 1", label, num)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// Path returns the path of the database.
func (d *DB) Path() string {
	return d.path
}

// Labels returns the tag labels, where Labels()[n-1] is the label of tag number n.
func (d *DB) Labels() []string {
	return d.labels
}

// NumTags returns the number of tags in the database.
func (d *DB) NumTags() int {
	return len(d.labels)
}

// TagNums returns the tag numbers of tid, ascending. Unknown tracks have no tags.
func (d *DB) TagNums(ctx context.Context, tid string) ([]int, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT tid_tag.tag FROM tid_tag JOIN tids ON tid_tag.tid = tids.rowid WHERE tids.tid = ? ORDER BY tid_tag.tag", tid)
	if err != nil {
		return nil, fmt.Errorf("looking up %q in %q: %w", tid, d.path, err)
	}
	defer rows.Close()
	nums := []int{}
	for rows.Next() {
		var num int
		if err := rows.Scan(&num); err != nil {
			return nil, err
		}
		nums = append(nums, num)
	}
	return nums, rows.Err()
}

// Set returns the tags of tid as a Set.
func (d *DB) Set(ctx context.Context, tid string) (Set, error) {
	nums, err := d.TagNums(ctx, tid)
	if err != nil {
		return Set{}, err
	}
	set := Set{Nums: nums, Labels: make([]string, len(nums))}
	for idx, num := range nums {
		if num < 1 || num > len(d.labels) {
			return Set{}, fmt.Errorf("%q has tag number %v outside the %v tags of %q", tid, num, len(d.labels), d.path)
		}
		set.Labels[idx] = d.labels[num-1]
	}
	return set, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

type multi struct {
	dbs     []*DB
	numTags int
}

// NewSingle returns an Index using one database.
func NewSingle(db *DB) Index {
	return &multi{dbs: []*DB{db}, numTags: db.NumTags()}
}

// NewMulti returns an Index producing one Set per database. All databases must
// have the same number of tags.
func NewMulti(dbs ...*DB) (Index, error) {
	if len(dbs) == 0 {
		return nil, fmt.Errorf("no tag databases")
	}
	for _, db := range dbs[1:] {
		if db.NumTags() != dbs[0].NumTags() {
			return nil, fmt.Errorf("%q has %v tags and %q has %v: %w", dbs[0].Path(), dbs[0].NumTags(), db.Path(), db.NumTags(), ErrTagCountMismatch)
		}
	}
	return &multi{dbs: dbs, numTags: dbs[0].NumTags()}, nil
}

// OpenSingle opens the database at path as an Index.
func OpenSingle(path string) (Index, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	return NewSingle(db), nil
}

// OpenMulti opens the databases at the relative paths below root as an Index.
func OpenMulti(root string, relPaths []string) (Index, error) {
	dbs := []*DB{}
	closeAll := func() {
		for _, db := range dbs {
			db.Close()
		}
	}
	for _, relPath := range relPaths {
		db, err := Open(filepath.Join(root, relPath))
		if err != nil {
			closeAll()
			return nil, err
		}
		dbs = append(dbs, db)
	}
	index, err := NewMulti(dbs...)
	if err != nil {
		closeAll()
		return nil, err
	}
	return index, nil
}

// CommonRoot returns the deepest directory containing all paths, and the paths relative to it.
func CommonRoot(paths []string) (string, []string, error) {
	if len(paths) == 0 {
		return "", nil, fmt.Errorf("no paths")
	}
	abs := make([]string, len(paths))
	for idx, path := range paths {
		var err error
		if abs[idx], err = filepath.Abs(path); err != nil {
			return "", nil, err
		}
	}
	root := filepath.Dir(abs[0])
	for _, path := range abs[1:] {
		for root != filepath.Dir(root) && !strings.HasPrefix(path, root+string(filepath.Separator)) {
			root = filepath.Dir(root)
		}
	}
	rel := make([]string, len(abs))
	for idx, path := range abs {
		var err error
		if rel[idx], err = filepath.Rel(root, path); err != nil {
			return "", nil, err
		}
	}
	return root, rel, nil
}

func (m *multi) Lookup(ctx context.Context, tid string) (Result, error) {
	result := Result{Sets: make([]Set, len(m.dbs))}
	for idx, db := range m.dbs {
		var err error
		if result.Sets[idx], err = db.Set(ctx, tid); err != nil {
			return Result{}, err
		}
	}
	return result, nil
}

func (m *multi) NumTags() int {
	return m.numTags
}

func (m *multi) Close() error {
	var errs []error
	for _, db := range m.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
