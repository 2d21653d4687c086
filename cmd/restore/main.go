package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"photoreviver/internal/config"
	"photoreviver/internal/logger"
	"photoreviver/internal/service"
	"photoreviver/internal/service/imaging"
	"photoreviver/internal/service/remote"
)

func main() {
	in := flag.String("in", "", "Photo to restore")
	out := flag.String("out", "", "Output JPEG (default: restored_<name> next to the input)")
	step := flag.String("step", "all", "restoration, colorization, enhancement or all")
	engineName := flag.String("engine", "", "local or remote (default from config)")
	flag.Parse()

	if *in == "" {
		fmt.Fprintln(os.Stderr, "usage: restore -in photo.jpg [-out restored.jpg] [-step all] [-engine local]")
		os.Exit(2)
	}
	if err := run(*in, *out, *step, *engineName); err != nil {
		fmt.Fprintf(os.Stderr, "restore: %v\n", err)
		os.Exit(1)
	}
}

func run(in, out, stepName, engineName string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	step, err := imaging.ParseStep(stepName)
	if err != nil {
		return err
	}
	if engineName == "" {
		engineName = cfg.Processing.DefaultEngine
	}

	var engine service.Engine
	switch engineName {
	case "local":
		engine = imaging.NewProcessor(imaging.ParamsFromConfig(cfg.Processing))
	case "remote":
		engine = remote.NewEngine(remote.NewClient(cfg.Remote, log), cfg.Remote, cfg.Processing.JPEGQuality)
	default:
		return fmt.Errorf("%w %q", service.ErrUnknownEngine, engineName)
	}

	input, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	if int64(len(input)) > cfg.Processing.MaxUploadBytes {
		return fmt.Errorf("%s is larger than %d bytes", in, cfg.Processing.MaxUploadBytes)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Server.RequestTimeout)
	defer cancel()

	res, err := engine.Restore(ctx, input, imaging.Options{
		Step: step,
		Progress: func(stage imaging.Stage, progress int) {
			fmt.Printf("%3d%% %s\n", progress, stage)
		},
	})
	if err != nil {
		return err
	}

	if out == "" {
		out = filepath.Join(filepath.Dir(in), "restored_"+filepath.Base(in))
	}
	if err := os.WriteFile(out, res.Data, 0644); err != nil {
		return err
	}

	fmt.Printf("%s: %dx%d -> %dx%d in %s, wrote %s\n", engine.Name(), res.InputWidth, res.InputHeight,
		res.Width, res.Height, res.Duration, out)
	return nil
}
