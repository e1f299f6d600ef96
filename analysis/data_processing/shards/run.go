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
package shards

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/carlorop/master-project/tools/audio"
	"github.com/carlorop/master-project/tools/catalogue"
	"github.com/carlorop/master-project/tools/config"
	"github.com/carlorop/master-project/tools/signals"
	"github.com/carlorop/master-project/tools/tags"
	"github.com/carlorop/master-project/tools/transform"
	"github.com/carlorop/master-project/tools/workerpool"
	"go.uber.org/zap"
)

// Suffix is the file name suffix of shard files.
const Suffix = ".tfrecord"

// OpenIndex opens the tag databases selected by params.
func OpenIndex(params config.Params) (tags.Index, error) {
	if !params.Multi() {
		return tags.OpenSingle(params.TagPath)
	}
	paths, err := params.TagPaths()
	if err != nil {
		return nil, err
	}
	root, rel, err := tags.CommonRoot(paths)
	if err != nil {
		return nil, err
	}
	return tags.OpenMulti(root, rel)
}

// Run builds all shards planned by params, shuffling the catalogue with params.ShuffleSeed(0).
//
// Reports are returned in plan order. Failing shards don't stop the other
// shards and their errors are returned as a workerpool.MultiErr.
func Run(ctx context.Context, params config.Params, loader audio.Loader, logger *zap.Logger) ([]Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	index, err := OpenIndex(params)
	if err != nil {
		return nil, err
	}
	defer index.Close()

	cat, err := catalogue.Load(params.CSVPath)
	if err != nil {
		return nil, err
	}
	seed := params.ShuffleSeed(0)
	cat.Shuffle(seed)
	logger.Info("loaded catalogue",
		zap.String("path", params.CSVPath),
		zap.Stringer("kind", cat.Kind),
		zap.Int("tracks", cat.Len()),
		zap.Int64("seed", seed),
		zap.Int("tags", index.NumTags()))

	shards, err := params.Plan().Shards(cat.Len())
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(params.OutputDir, 0755); err != nil {
		return nil, err
	}

	builder := &Builder{
		Index:  index,
		Loader: loader,
		Root:   params.RootDir,
		Options: transform.Options{
			Format: params.Format,
			Rate:   signals.Hz(params.Rate),
			Mels:   params.Mels,
		},
		Compression: params.Compression,
		Logger:      logger,
		Progress:    params.Verbose && params.Parallel == 1,
	}
	reports := make([]Report, len(shards))
	wp := workerpool.New(params.Parallel)
	for shardIdx, shard := range shards {
		shardIdx, shard := shardIdx, shard
		path := filepath.Join(params.OutputDir, shard.Name(params.Format.String(), Suffix))
		logger.Info("Writing to: "+path, zap.Stringer("shard", shard))
		wp.Go(func() error {
			report, err := builder.Build(ctx, cat, shard, path)
			reports[shardIdx] = report
			if err != nil {
				return fmt.Errorf("building %q: %w", path, err)
			}
			return nil
		})
	}
	return reports, wp.Wait()
}
