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
package tags

import (
	"database/sql"
	"fmt"
	"sort"
)

// Create writes a new tag database to path. Tag number n has label labels[n-1],
// and tracks maps track ids to their tag numbers.
func Create(path string, labels []string, tracks map[string][]int) (err error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	for _, stmt := range []string{
		"CREATE TABLE tids (tid TEXT)",
		"CREATE TABLE tags (tag TEXT)",
		"CREATE TABLE tid_tag (tid INTEGER, tag INTEGER, val REAL)",
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("creating tables in %q: %w", path, err)
		}
	}
	for _, label := range labels {
		if _, err := tx.Exec("INSERT INTO tags (tag) VALUES (?)", label); err != nil {
			return err
		}
	}
	tids := make([]string, 0, len(tracks))
	for tid := range tracks {
		tids = append(tids, tid)
	}
	sort.Strings(tids)
	for _, tid := range tids {
		res, err := tx.Exec("INSERT INTO tids (tid) VALUES (?)", tid)
		if err != nil {
			return err
		}
		tidNum, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for _, tagNum := range tracks[tid] {
			if tagNum < 1 || tagNum > len(labels) {
				return fmt.Errorf("%q has tag number %v outside the %v tags", tid, tagNum, len(labels))
			}
			if _, err := tx.Exec("INSERT INTO tid_tag (tid, tag, val) VALUES (?, ?, ?)", tidNum, tagNum, 100.0); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}
