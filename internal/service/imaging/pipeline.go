package imaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"photoreviver/internal/config"
	"photoreviver/internal/metrics"

	"gocv.io/x/gocv"
)

// DefaultJPEGQuality is the output quality used when none is configured.
const DefaultJPEGQuality = 95

// Step selects which part of the pipeline runs.
type Step string

const (
	StepRestoration  Step = "restoration"
	StepColorization Step = "colorization"
	StepEnhancement  Step = "enhancement"
	StepAll          Step = "all"
)

// ErrInvalidStep is returned by ParseStep for unknown names.
var ErrInvalidStep = errors.New("invalid step")

// ParseStep parses a step name. An empty string means all steps.
func ParseStep(s string) (Step, error) {
	switch Step(strings.ToLower(strings.TrimSpace(s))) {
	case "", StepAll:
		return StepAll, nil
	case StepRestoration:
		return StepRestoration, nil
	case StepColorization:
		return StepColorization, nil
	case StepEnhancement:
		return StepEnhancement, nil
	}
	return "", fmt.Errorf("%w %q: must be restoration, colorization, enhancement or all", ErrInvalidStep, s)
}

// Stages lists which pipeline stages are enabled.
type Stages struct {
	Restore  bool
	Colorize bool
	Enhance  bool
}

// StepSet returns the stages enabled by step.
func StepSet(step Step) Stages {
	switch step {
	case StepRestoration:
		return Stages{Restore: true}
	case StepColorization:
		return Stages{Colorize: true}
	case StepEnhancement:
		return Stages{Enhance: true}
	default:
		return Stages{Restore: true, Colorize: true, Enhance: true}
	}
}

// Stage names reported through progress callbacks.
type Stage string

const (
	StageAnalyzing  Stage = "analyzing"
	StageRestoring  Stage = "restoring"
	StageColorizing Stage = "colorizing"
	StageEnhancing  Stage = "enhancing"
	StageEncoding   Stage = "encoding"
	StageDone       Stage = "done"
)

var stageProgress = map[Stage]int{
	StageAnalyzing:  5,
	StageRestoring:  20,
	StageColorizing: 50,
	StageEnhancing:  70,
	StageEncoding:   90,
	StageDone:       100,
}

// Progress returns the nominal completion percentage at the start of stage.
func (s Stage) Progress() int {
	return stageProgress[s]
}

// ProgressFunc receives stage transitions. It must not block.
type ProgressFunc func(stage Stage, progress int)

// Params holds every tunable of the classical pipeline.
type Params struct {
	DenoiseStrength       float32
	DenoiseColorStrength  float32
	DenoiseTemplateWindow int
	DenoiseSearchWindow   int
	InpaintRadius         float32
	CannyLow              float32
	CannyHigh             float32

	GrayTolerance     int
	EqualizeClipLimit float64

	ScaleFactor    float64
	MaxDimension   int
	CLAHEClipLimit float64
	SharpenAmount  float64

	JPEGQuality int
}

// DefaultParams returns the stock restoration constants.
func DefaultParams() Params {
	return Params{
		DenoiseStrength:       10,
		DenoiseColorStrength:  10,
		DenoiseTemplateWindow: 7,
		DenoiseSearchWindow:   21,
		InpaintRadius:         3,
		CannyLow:              50,
		CannyHigh:             150,
		GrayTolerance:         1,
		EqualizeClipLimit:     0.03,
		ScaleFactor:           1.5,
		MaxDimension:          2048,
		CLAHEClipLimit:        2.0,
		SharpenAmount:         0.5,
		JPEGQuality:           DefaultJPEGQuality,
	}
}

// ParamsFromConfig overlays the processing configuration on DefaultParams.
// Zero values keep the default.
func ParamsFromConfig(cfg config.ProcessingConfig) Params {
	p := DefaultParams()
	setF32(&p.DenoiseStrength, cfg.DenoiseStrength)
	setF32(&p.DenoiseColorStrength, cfg.DenoiseColorStrength)
	setF32(&p.InpaintRadius, cfg.InpaintRadius)
	setF32(&p.CannyLow, cfg.CannyLow)
	setF32(&p.CannyHigh, cfg.CannyHigh)
	setF64(&p.EqualizeClipLimit, cfg.EqualizeClipLimit)
	setF64(&p.ScaleFactor, cfg.ScaleFactor)
	setF64(&p.CLAHEClipLimit, cfg.CLAHEClipLimit)
	setF64(&p.SharpenAmount, cfg.SharpenAmount)
	if cfg.MaxDimension > 0 {
		p.MaxDimension = cfg.MaxDimension
	}
	if cfg.JPEGQuality > 0 {
		p.JPEGQuality = cfg.JPEGQuality
	}
	return p
}

func setF32(dst *float32, v float32) {
	if v > 0 {
		*dst = v
	}
}

func setF64(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

// Options configures a single Process call.
type Options struct {
	Step     Step
	Progress ProgressFunc
}

// Result is the encoded output of a restoration plus bookkeeping.
type Result struct {
	Data         []byte
	Width        int
	Height       int
	InputWidth   int
	InputHeight  int
	Duration     time.Duration
	StageTimings map[Stage]time.Duration
}

// Processor runs the classical pipeline. It holds no per-request state and is
// safe for concurrent use.
type Processor struct {
	params Params
}

// NewProcessor creates a Processor with the given parameters.
func NewProcessor(params Params) *Processor {
	return &Processor{params: params}
}

// Params returns the parameters the processor was built with.
func (p *Processor) Params() Params {
	return p.params
}

// Process decodes data, runs the stages enabled by opts.Step and encodes the
// result as JPEG. ctx is checked between stages.
func (p *Processor) Process(ctx context.Context, data []byte, opts Options) (*Result, error) {
	started := time.Now()
	res := &Result{StageTimings: make(map[Stage]time.Duration, 5)}
	report := func(s Stage) {
		if opts.Progress != nil {
			opts.Progress(s, s.Progress())
		}
	}
	timed := func(s Stage, fn func()) {
		t := time.Now()
		fn()
		d := time.Since(t)
		res.StageTimings[s] = d
		metrics.RecordStage("local", string(s), d)
	}

	report(StageAnalyzing)
	var (
		mat gocv.Mat
		err error
	)
	timed(StageAnalyzing, func() { mat, err = Decode(data) })
	if err != nil {
		return nil, err
	}
	defer func() { mat.Close() }()
	res.InputWidth, res.InputHeight = mat.Cols(), mat.Rows()

	stages := StepSet(opts.Step)
	run := []struct {
		enabled bool
		stage   Stage
		apply   func(gocv.Mat, Params) gocv.Mat
	}{
		{stages.Restore, StageRestoring, Restore},
		{stages.Colorize, StageColorizing, Colorize},
		{stages.Enhance, StageEnhancing, Enhance},
	}

	for _, st := range run {
		if !st.enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cancelled before %s: %w", st.stage, err)
		}
		report(st.stage)
		timed(st.stage, func() {
			next := st.apply(mat, p.params)
			mat.Close()
			mat = next
		})
		if mat.Empty() {
			return nil, fmt.Errorf("%s produced an empty image", st.stage)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("cancelled before %s: %w", StageEncoding, err)
	}
	report(StageEncoding)
	timed(StageEncoding, func() { res.Data, err = Encode(mat, p.params.JPEGQuality) })
	if err != nil {
		return nil, err
	}

	res.Width, res.Height = mat.Cols(), mat.Rows()
	res.Duration = time.Since(started)
	report(StageDone)
	return res, nil
}

// Name identifies the engine in cache keys, metrics and history.
func (p *Processor) Name() string { return "local" }

// Restore runs Process; it lets Processor serve as an engine.
func (p *Processor) Restore(ctx context.Context, input []byte, opts Options) (*Result, error) {
	return p.Process(ctx, input, opts)
}
