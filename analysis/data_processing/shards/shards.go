/* Package shards writes catalogue tracks with their tags to TFRecord shard files.
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
package shards

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/carlorop/master-project/tools/audio"
	"github.com/carlorop/master-project/tools/catalogue"
	"github.com/carlorop/master-project/tools/partition"
	"github.com/carlorop/master-project/tools/records"
	"github.com/carlorop/master-project/tools/tags"
	"github.com/carlorop/master-project/tools/transform"
	"github.com/cheggaaa/pb"
	"go.uber.org/zap"
)

// Exception is a track whose audio couldn't be loaded.
type Exception struct {
	// Index is the position of the track in its shard.
	Index   int
	TrackID string
	Path    string
	Tags    tags.Result
	Err     error
}

func (e Exception) String() string {
	return fmt.Sprintf("%v %v %v: %v", e.Index, e.TrackID, e.Path, e.Err)
}

// Report summarizes a built shard.
type Report struct {
	Shard partition.Shard
	Path  string
	// Written is the number of records in the shard file.
	Written int
	// Skipped is the number of tracks without tags.
	Skipped    int
	Exceptions []Exception
}

// Builder builds shard files.
type Builder struct {
	// Index looks up the tags of the tracks.
	Index tags.Index
	// Loader decodes the audio of the tracks. Defaults to audio.Default.
	Loader audio.Loader
	// Root is the directory the source paths of the catalogue are relative to.
	Root        string
	Options     transform.Options
	Compression records.Compression
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// Progress shows a progress bar per shard.
	Progress bool
}

func (b *Builder) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

func (b *Builder) loader() audio.Loader {
	if b.Loader == nil {
		return audio.Default
	}
	return b.Loader
}

// Build writes a record for every track of cat in shard that has tags to a TFRecord file at path.
//
// Tracks of MP3 catalogues that fail to load are reported as Exceptions. Load
// failures of NPZ catalogues, tag lookup failures and write failures abort the
// build. The context is checked between tracks, and a cancelled build leaves
// the records written so far in the file.
func (b *Builder) Build(ctx context.Context, cat *catalogue.Catalogue, shard partition.Shard, path string) (report Report, err error) {
	logger := b.logger().With(zap.Stringer("shard", shard), zap.String("path", path))
	report = Report{Shard: shard, Path: path}
	writer, err := records.Create(path, b.Compression)
	if err != nil {
		return report, err
	}
	defer func() {
		report.Written = writer.Count()
		if closeErr := writer.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	var bar *pb.ProgressBar
	if b.Progress {
		bar = pb.StartNew(shard.Len()).Prefix(filepath.Base(path))
		defer bar.Finish()
	}

	rows := cat.Slice(shard.From, shard.To).Rows
	for idx, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if bar != nil {
			bar.Increment()
		}
		result, err := b.Index.Lookup(ctx, row.TrackID)
		if err != nil {
			return report, err
		}
		if !result.Eligible() {
			logger.Debug(row.TrackID+" has no tags. Skipping...", zap.String("tid", row.TrackID))
			report.Skipped++
			continue
		}
		sourcePath := filepath.Join(b.Root, row.SourcePath)
		buffer, err := b.loader().Load(sourcePath)
		if err != nil {
			if cat.Kind == catalogue.NPZ {
				return report, fmt.Errorf("loading %q for %q: %w", sourcePath, row.TrackID, err)
			}
			report.Exceptions = append(report.Exceptions, Exception{
				Index:   idx,
				TrackID: row.TrackID,
				Path:    sourcePath,
				Tags:    result,
				Err:     err,
			})
			logger.Debug("loading failed", zap.String("tid", row.TrackID), zap.Error(err))
			continue
		}
		logger.Debug("loaded", zap.String("tid", row.TrackID), zap.Float64("seconds", float64(buffer.Duration())))
		processed, err := transform.Apply(buffer, b.Options)
		if err != nil {
			return report, fmt.Errorf("transforming %q for %q: %w", sourcePath, row.TrackID, err)
		}
		if err := writer.Write(records.Encode(processed.Data, row.TrackID, result)); err != nil {
			return report, err
		}
	}

	if len(report.Exceptions) > 0 {
		logger.Warn("Could not process the following tracks:", zap.Int("exceptions", len(report.Exceptions)))
		for idx, exception := range report.Exceptions {
			logger.Warn(fmt.Sprintf("%v %v %v", idx, exception.TrackID, exception.Path), zap.Error(exception.Err))
		}
	}
	logger.Info("shard done",
		zap.Int("written", writer.Count()),
		zap.Int("skipped", report.Skipped),
		zap.Int("exceptions", len(report.Exceptions)))
	return report, nil
}
