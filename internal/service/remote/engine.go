package remote

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"photoreviver/internal/config"
	"photoreviver/internal/metrics"
	"photoreviver/internal/service/imaging"

	dimaging "github.com/disintegration/imaging"
)

// Runner executes one model on an image. *Client implements it.
type Runner interface {
	Run(ctx context.Context, model config.ModelConfig, image []byte) ([]byte, error)
	Configured() bool
}

// Engine restores photos by chaining hosted models, one per enabled step.
type Engine struct {
	runner  Runner
	models  map[imaging.Stage]config.ModelConfig
	quality int
}

// NewEngine builds an Engine using the models configured in cfg.
func NewEngine(runner Runner, cfg config.RemoteConfig, jpegQuality int) *Engine {
	if jpegQuality <= 0 {
		jpegQuality = imaging.DefaultJPEGQuality
	}
	return &Engine{
		runner: runner,
		models: map[imaging.Stage]config.ModelConfig{
			imaging.StageRestoring:  cfg.Restoration,
			imaging.StageColorizing: cfg.Colorization,
			imaging.StageEnhancing:  cfg.Enhancement,
		},
		quality: jpegQuality,
	}
}

// Name identifies the engine in cache keys, metrics and history.
func (e *Engine) Name() string { return "remote" }

// Restore runs the models for opts.Step in pipeline order and re-encodes the
// final output as JPEG.
func (e *Engine) Restore(ctx context.Context, input []byte, opts imaging.Options) (*imaging.Result, error) {
	if !e.runner.Configured() {
		return nil, ErrNotConfigured
	}
	started := time.Now()
	res := &imaging.Result{StageTimings: make(map[imaging.Stage]time.Duration, 4)}
	report := func(s imaging.Stage) {
		if opts.Progress != nil {
			opts.Progress(s, s.Progress())
		}
	}

	report(imaging.StageAnalyzing)
	src, err := dimaging.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", imaging.ErrDecode, err)
	}
	res.InputWidth, res.InputHeight = src.Bounds().Dx(), src.Bounds().Dy()

	stages := imaging.StepSet(opts.Step)
	plan := []struct {
		enabled bool
		stage   imaging.Stage
	}{
		{stages.Restore, imaging.StageRestoring},
		{stages.Colorize, imaging.StageColorizing},
		{stages.Enhance, imaging.StageEnhancing},
	}

	current := input
	for _, st := range plan {
		if !st.enabled {
			continue
		}
		model := e.models[st.stage]
		if model.Model == "" {
			return nil, fmt.Errorf("%w: no model for %s", ErrNotConfigured, st.stage)
		}
		report(st.stage)
		t := time.Now()
		out, err := e.runner.Run(ctx, model, current)
		if err != nil {
			return nil, fmt.Errorf("%s via %s: %w", st.stage, model.Model, err)
		}
		res.StageTimings[st.stage] = time.Since(t)
		metrics.RecordStage(e.Name(), string(st.stage), res.StageTimings[st.stage])
		current = out
	}

	report(imaging.StageEncoding)
	data, w, h, err := normalizeJPEG(current, e.quality)
	if err != nil {
		return nil, err
	}

	res.Data, res.Width, res.Height = data, w, h
	res.Duration = time.Since(started)
	report(imaging.StageDone)
	return res, nil
}

// normalizeJPEG decodes whatever the model produced (often PNG) and writes it
// back as JPEG at quality.
func normalizeJPEG(data []byte, quality int) ([]byte, int, int, error) {
	img, err := dimaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: model output: %v", ErrPredictionFailed, err)
	}
	var buf bytes.Buffer
	if err := dimaging.Encode(&buf, img, dimaging.JPEG, dimaging.JPEGQuality(quality)); err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", imaging.ErrEncode, err)
	}
	b := img.Bounds()
	return buf.Bytes(), b.Dx(), b.Dy(), nil
}
