/* makeshards converts a catalogue of audio tracks and a Last.fm tag database into TFRecord shards.
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
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/carlorop/master-project/analysis/data_processing/shards"
	"github.com/carlorop/master-project/tools/audio"
	"github.com/carlorop/master-project/tools/config"
	"github.com/carlorop/master-project/tools/records"
	"github.com/carlorop/master-project/tools/transform"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath   string
	format       string
	outputDir    string
	rootDir      string
	csvPath      string
	tagPath      string
	tagPathMulti []string
	tagGlob      string
	mels         int
	sampleRate   float64
	numFiles     int
	split        []int
	startStop    []int
	verbose      bool
	seed         int64
	parallel     int
	compression  string
	inspectLimit int

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "makeshards",
	Short: "Convert audio tracks and their tags into TFRecord shards",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = newLogger(verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	SilenceUsage: true,
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the shards of a catalogue",
	Long: `Shuffles the catalogue, looks up the tags of every track, and writes the
resampled audio (or its log mel spectrogram) of every tagged track to
TFRecord files.

Either --split TRAIN,VAL,TEST writes three files, or --num_files N writes N
files, optionally only the 1-based inclusive range --start_stop START,STOP.
Separate processes building separate ranges shuffle identically.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [file...]",
	Short: "Print the records of TFRecord shards",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every track and show progress bars.")

	flags := buildCmd.Flags()
	flags.StringVar(&configPath, "config", "", "YAML file with parameters. Flags override its values.")
	flags.StringVarP(&format, "format", "f", transform.Waveform.String(), "Output format, waveform or log-mel-spectrogram.")
	flags.StringVarP(&outputDir, "output", "o", "", "Directory to write the shards to.")
	flags.StringVar(&rootDir, "root_dir", "", "Directory the source paths of the catalogue are relative to.")
	flags.StringVar(&csvPath, "csv_path", "", "Catalogue with a track_id column and an mp3_path or npz_path column.")
	flags.StringVar(&tagPath, "tag_path", "", "Tag database.")
	flags.StringSliceVar(&tagPathMulti, "tag_path_multi", nil, "Tag databases to look up every track in, writing features tags-0, tags-1 and so on.")
	flags.StringVar(&tagGlob, "tag_glob", "", "Pattern, supporting **, of additional tag databases for --tag_path_multi.")
	flags.IntVar(&mels, "mels", 128, "Number of mel bands of log-mel-spectrogram output.")
	flags.Float64Var(&sampleRate, "sr", 16000, "Sample rate of the output.")
	flags.IntVarP(&numFiles, "num_files", "n", 100, "Number of shards.")
	flags.IntSliceVarP(&split, "split", "s", nil, "Train, validation and test ratios.")
	flags.IntSliceVarP(&startStop, "start_stop", "i", nil, "1-based inclusive range of the --num_files shards to build.")
	flags.Int64Var(&seed, "seed", 0, "Shuffle seed. Defaults to 1 with --start_stop and to the current time otherwise.")
	flags.IntVar(&parallel, "parallel", 1, "Number of shards to build concurrently.")
	flags.StringVar(&compression, "compression", "none", "Compression of the shards, none, gzip or zlib.")

	inspectCmd.Flags().StringVar(&compression, "compression", "none", "Compression of the shards, none, gzip or zlib.")
	inspectCmd.Flags().IntVar(&inspectLimit, "limit", 5, "Number of records to print per file, -1 prints all.")

	rootCmd.AddCommand(buildCmd, inspectCmd)
}

// newLogger returns a production logger, or a development logger at debug level when verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return l, nil
}

// buildParams returns the parameters from --config overridden by explicitly set flags.
func buildParams(cmd *cobra.Command) (config.Params, error) {
	params := config.Default()
	if configPath != "" {
		var err error
		if params, err = config.Load(configPath); err != nil {
			return config.Params{}, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("format") || configPath == "" {
		parsed, err := transform.ParseFormat(format)
		if err != nil {
			return config.Params{}, err
		}
		params.Format = parsed
	}
	if flags.Changed("compression") {
		parsed, err := records.ParseCompression(compression)
		if err != nil {
			return config.Params{}, err
		}
		params.Compression = parsed
	}
	for name, apply := range map[string]func(){
		"output":         func() { params.OutputDir = outputDir },
		"root_dir":       func() { params.RootDir = rootDir },
		"csv_path":       func() { params.CSVPath = csvPath },
		"tag_path":       func() { params.TagPath = tagPath },
		"tag_path_multi": func() { params.TagPathMulti = tagPathMulti },
		"tag_glob":       func() { params.TagGlob = tagGlob },
		"mels":           func() { params.Mels = mels },
		"sr":             func() { params.Rate = sampleRate },
		"num_files":      func() { params.NumFiles = numFiles },
		"split":          func() { params.Split = split },
		"start_stop":     func() { params.StartStop = startStop },
		"verbose":        func() { params.Verbose = verbose },
		"seed":           func() { params.Seed = &seed },
		"parallel":       func() { params.Parallel = parallel },
	} {
		if flags.Changed(name) {
			apply()
		}
	}
	resolved := params.ShuffleSeed(time.Now().UnixNano())
	params.Seed = &resolved
	return params, params.Validate()
}

func runBuild(cmd *cobra.Command, args []string) error {
	params, err := buildParams(cmd)
	if err != nil {
		return err
	}
	// --config may enable verbose logging too.
	if params.Verbose != verbose {
		_ = logger.Sync()
		if logger, err = newLogger(params.Verbose); err != nil {
			return err
		}
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	reports, err := shards.Run(ctx, params, audio.Default, logger)
	written, skipped, exceptions := 0, 0, 0
	for _, report := range reports {
		written += report.Written
		skipped += report.Skipped
		exceptions += len(report.Exceptions)
	}
	logger.Info("done",
		zap.Int("shards", len(reports)),
		zap.Int("written", written),
		zap.Int("skipped", skipped),
		zap.Int("exceptions", exceptions))
	return err
}

func inspect(w io.Writer, path string, c records.Compression) error {
	reader, err := records.Open(path, c)
	if err != nil {
		return err
	}
	defer reader.Close()
	count := 0
	for {
		ex, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading record %v of %q: %w", count, path, err)
		}
		if inspectLimit < 0 || count < inspectLimit {
			record, err := records.Decode(ex)
			if err != nil {
				return fmt.Errorf("decoding record %v of %q: %w", count, path, err)
			}
			fmt.Fprintf(w, "%v\t%v\n", count, record)
		}
		count++
	}
	fmt.Fprintf(w, "%v: %v records\n", path, count)
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	c, err := records.ParseCompression(compression)
	if err != nil {
		return err
	}
	for _, path := range args {
		if err := inspect(cmd.OutOrStdout(), path, c); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Fatal("makeshards failed", zap.Error(err))
		}
		os.Exit(1)
	}
}
