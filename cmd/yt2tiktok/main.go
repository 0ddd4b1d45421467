// Command yt2tiktok downloads YouTube videos and converts them into
// vertical 60-second parts ready for short-form upload.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/clipforge/yt2tiktok/internal/config"
	"github.com/clipforge/yt2tiktok/internal/model"
	"github.com/clipforge/yt2tiktok/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		outputDir = flag.String("o", ".", "output directory for finished parts")
		position  = flag.String("position", "center", "video anchor on the canvas: top, center or bottom")
		partText  = flag.String("part-text", "Part {N}", "label template, {N} is the part number")
		noText    = flag.Bool("no-text", false, "skip the text overlay")
		parallel  = flag.Int("parallel", 0, "max simultaneous tasks, 0 uses the configured default")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] URL [URL...]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	urls := flag.Args()
	if len(urls) == 0 {
		flag.Usage()
		return fmt.Errorf("no URLs given")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).With().Timestamp().Logger()

	mgr, err := pipeline.NewManager(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	mgr.Start(ctx)

	mgr.Notify = func(ev model.Event) {
		line := log.Debug()
		if ev.Message != "" || ev.Title != "" {
			line = log.Info()
		}
		line.Str("task", ev.TaskID).Str("stage", ev.Stage.String()).
			Int("percent", ev.Progress).Msg(ev.Message)
	}

	settings := model.Settings{
		VideoPosition:    model.VideoPosition(*position),
		PartTextTemplate: *partText,
	}
	if !*noText {
		layer := model.DefaultTextLayer()
		layer.Template = *partText
		settings.TextLayers = []model.TextLayer{layer}
	}

	reqs := make([]pipeline.Request, 0, len(urls))
	for _, url := range urls {
		reqs = append(reqs, pipeline.Request{
			URL:             url,
			OutputDirectory: *outputDir,
			Settings:        settings,
		})
	}

	log.Info().Int("tasks", len(reqs)).Str("output", *outputDir).Msg("starting conversion")
	results := mgr.ProcessBatch(ctx, reqs, *parallel)

	if ctx.Err() != nil {
		killed := mgr.CancelAll()
		log.Warn().Int("killed", killed).Msg("interrupted, tearing down")
		if err := os.RemoveAll(cfg.TempDir); err != nil {
			log.Warn().Err(err).Msg("temp dir removal failed")
		}
	}

	failed := 0
	for i, res := range results {
		if res.Err != nil {
			failed++
			log.Error().Str("url", urls[i]).Err(res.Err).Msg("conversion failed")
			continue
		}
		for _, f := range res.OutputFiles {
			fmt.Println(f)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d conversions failed", failed, len(results))
	}
	return nil
}
