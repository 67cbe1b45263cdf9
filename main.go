package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chaos-io/colourpop/config"
	"github.com/chaos-io/colourpop/pipeline"
	"github.com/chaos-io/colourpop/server"
	"github.com/chaos-io/colourpop/store"
	"github.com/chaos-io/colourpop/util"
)

var (
	configPath = flag.String("config", "", "path to YAML config")
	fgPath     = flag.String("fg", "", "foreground image (file or http(s) URL)")
	bgPath     = flag.String("bg", "", "optional background image; grayscale when empty")
	outPath    = flag.String("out", "", "output file; defaults to the result store")
	withGray   = flag.Bool("gray", false, "with -bg, also write the grayscale variant (<out>.gray.<ext>)")
	serve      = flag.Bool("serve", false, "run the HTTP service")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level, _ := cfg.Level()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *serve {
		err = runServer(ctx, cfg)
	} else {
		err = runOnce(ctx, cfg)
	}
	if err != nil {
		slog.Error("colourpop failed", "err", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, cfg *config.Config) error {
	seg, err := cfg.NewSegmenter()
	if err != nil {
		return err
	}
	st, err := store.New(cfg.Store.Dir)
	if err != nil {
		return err
	}

	sw, err := store.NewSweeper(st, cfg.Store.Retention, cfg.Store.SweepSpec)
	if err != nil {
		return err
	}
	sw.Start()
	defer sw.Stop()

	return server.New(seg, cfg.Options, st, cfg.Server.MaxUpload).Run(ctx, cfg.Server.Addr)
}

func runOnce(ctx context.Context, cfg *config.Config) error {
	if *fgPath == "" {
		return errors.New("-fg is required unless -serve is set")
	}
	defer util.Trace("colourpop")()

	seg, err := cfg.NewSegmenter()
	if err != nil {
		return err
	}

	var (
		renderer pipeline.Renderer
		out      *fileRenderer
	)
	if *outPath != "" {
		out = &fileRenderer{path: *outPath}
		renderer = out
	} else {
		st, err := store.New(cfg.Store.Dir)
		if err != nil {
			return err
		}
		renderer = st
	}

	results, err := composeOnce(ctx, pipeline.New(seg, cfg.Options, renderer), out, *fgPath, *bgPath, *withGray)
	if err != nil {
		return err
	}
	for _, res := range results {
		slog.Info("done", "output", res.Path, "width", res.Width, "height", res.Height, "background", res.Background)
	}
	return nil
}

// composeOnce 先选背景再选前景；gray 且有背景时再切回灰度模式多输出一张，
// 输出到文件时灰度版本写到 variantPath(out, "gray")
func composeOnce(ctx context.Context, p *pipeline.Pipeline, out *fileRenderer, fg, bg string, gray bool) ([]*pipeline.Result, error) {
	if bg != "" {
		if _, err := p.SelectBackground(ctx, bg); err != nil {
			return nil, err
		}
	}
	res, err := p.SelectForeground(ctx, fg)
	if err != nil {
		return nil, err
	}
	results := []*pipeline.Result{res}
	if !gray || bg == "" {
		return results, nil
	}

	if out != nil {
		out.path = variantPath(out.path, "gray")
	}
	grayRes, err := p.ClearBackground(ctx)
	if err != nil {
		return nil, err
	}
	return append(results, grayRes), nil
}
