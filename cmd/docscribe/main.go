package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/apatheia-labs/docscribe/internal/common"
	"github.com/apatheia-labs/docscribe/internal/gemini"
	"github.com/apatheia-labs/docscribe/internal/journal"
	"github.com/apatheia-labs/docscribe/internal/pagesource"
	"github.com/apatheia-labs/docscribe/internal/pipeline"
	"github.com/apatheia-labs/docscribe/internal/prompt"
	"github.com/apatheia-labs/docscribe/internal/sink"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := newRootCmd(logger).Execute(); err != nil {
		logger.Error("docscribe failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "docscribe <input.pdf> <output.md>",
		Short: "Convert a scanned message-log PDF into a structured transcript",
		Long: `docscribe rasterizes each page of a scanned PDF and sends it to the
Gemini Vision API, writing the per-page extraction results incrementally
to the output artifact. If the output already exists the whole job is
skipped.

Requires GEMINI_API_KEY or GOOGLE_API_KEY in the environment, and
pdftoppm (poppler-utils) on PATH.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), logger, args[0], args[1])
		},
	}
}

func run(ctx context.Context, logger *slog.Logger, inputPath, outputPath string) error {
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("input file: %w", err)
	}

	prof := prompt.MessageLog()
	if cfg.Profile.Path != "" {
		loaded, err := prompt.Load(cfg.Profile.Path)
		if err != nil {
			return err
		}
		prof = loaded
	}

	client := gemini.NewClient(gemini.Config{
		APIKey:       cfg.Gemini.APIKey,
		BaseURL:      cfg.Gemini.BaseURL,
		Model:        cfg.Gemini.Model,
		Timeout:      cfg.Gemini.Timeout,
		Instructions: prof.Instructions,
		// Forensic material: opt in to unfiltered output explicitly.
		SafetySettings: gemini.BlockNoneSafetySettings(),
	}, logger)

	source := pagesource.NewSource(pagesource.Config{
		Pdftoppm: cfg.Raster.Pdftoppm,
		DPI:      cfg.Raster.DPI,
	}, logger)

	var recorder pipeline.RunRecorder
	if cfg.Journal.Path != "" {
		j, err := journal.Open(ctx, cfg.Journal.Path, logger)
		if err != nil {
			logger.Warn("journal unavailable, continuing without it", "path", cfg.Journal.Path, "error", err)
		} else {
			defer func() {
				if cerr := j.Close(); cerr != nil {
					logger.Warn("close journal", "error", cerr)
				}
			}()
			recorder = j
		}
	}

	p := pipeline.New(
		source,
		client,
		sink.NewFileSink(logger),
		pipeline.NewRetrier(pipeline.DefaultBackoffPolicy(), logger),
		pipeline.NewPacer(cfg.Pacing.PageInterval),
		recorder,
		logger,
	)

	logger.Info("docscribe.start",
		"input", inputPath,
		"output", outputPath,
		"model", cfg.Gemini.Model,
		"profile", prof.Name,
	)
	return p.Run(ctx, pipeline.Job{SourcePath: inputPath, ArtifactPath: outputPath})
}
