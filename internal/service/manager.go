package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"photoreviver/internal/cache"
	"photoreviver/internal/dto"
	"photoreviver/internal/logger"
	"photoreviver/internal/metrics"
	"photoreviver/internal/service/imaging"
	"photoreviver/internal/service/storage"
	"photoreviver/internal/service/websocket"
)

var (
	// ErrQueueFull is returned by Submit when every queue slot is taken.
	ErrQueueFull = errors.New("restoration queue is full")
	// ErrUnknownEngine is returned for engine names that are not registered.
	ErrUnknownEngine = errors.New("unknown engine")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("restoration manager stopped")
)

// StageFailed is the progress stage published when a job errors out.
const StageFailed = "failed"

// Engine restores one photo.
type Engine interface {
	Name() string
	Restore(ctx context.Context, input []byte, opts imaging.Options) (*imaging.Result, error)
}

// Task is a single restoration request.
type Task struct {
	ID       string // history record uid
	JobID    string // progress subscribers filter on this
	Engine   string // empty selects the default engine
	Step     imaging.Step
	Filename string
	Input    []byte
}

// Outcome is what Submit hands back to the caller.
type Outcome struct {
	ID          string
	JobID       string
	Engine      string
	Step        imaging.Step
	Data        []byte
	Width       int
	Height      int
	InputWidth  int
	InputHeight int
	Duration    time.Duration
	CacheHit    bool
}

type job struct {
	ctx    context.Context
	task   Task
	engine Engine
	done   chan jobResult
}

type jobResult struct {
	outcome *Outcome
	err     error
}

// Manager owns the worker pool that runs restorations, the result cache and
// the hand-off to the archive buffer.
type Manager struct {
	engines       map[string]Engine
	defaultEngine string

	cache  *cache.Cache           // nil disables caching
	buffer *storage.BufferService // nil disables history
	hub    *websocket.HubService  // nil disables progress events
	logger *logger.Logger

	queue      chan *job
	numWorkers int
	wg         sync.WaitGroup

	// closedMu guards closed and sending on queue against Stop.
	closedMu sync.RWMutex
	closed   bool
}

// ManagerOptions wires a Manager.
type ManagerOptions struct {
	Engines       []Engine
	DefaultEngine string
	Workers       int
	QueueSize     int
	Cache         *cache.Cache
	Buffer        *storage.BufferService
	Hub           *websocket.HubService
	Logger        *logger.Logger
}

// NewManager starts opts.Workers workers reading from a queue of opts.QueueSize.
func NewManager(opts ManagerOptions) *Manager {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = 0
	}

	m := &Manager{
		engines:       make(map[string]Engine, len(opts.Engines)),
		defaultEngine: opts.DefaultEngine,
		cache:         opts.Cache,
		buffer:        opts.Buffer,
		hub:           opts.Hub,
		logger:        opts.Logger,
		queue:         make(chan *job, opts.QueueSize),
		numWorkers:    opts.Workers,
	}
	for _, e := range opts.Engines {
		m.engines[e.Name()] = e
	}

	for i := 0; i < m.numWorkers; i++ {
		m.wg.Add(1)
		go m.processingWorker(i)
	}

	m.logger.Info("Manager started with %d worker(s), queue size %d", m.numWorkers, opts.QueueSize)
	return m
}

// Engine looks up a registered engine; an empty name selects the default.
func (m *Manager) Engine(name string) (Engine, error) {
	if name == "" {
		name = m.defaultEngine
	}
	e, ok := m.engines[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownEngine, name)
	}
	return e, nil
}

// Submit restores task.Input and waits for the result or for ctx. Cached
// results are returned without touching the queue.
func (m *Manager) Submit(ctx context.Context, task Task) (*Outcome, error) {
	engine, err := m.Engine(task.Engine)
	if err != nil {
		return nil, err
	}
	task.Engine = engine.Name()
	if task.Step == "" {
		task.Step = imaging.StepAll
	}

	if out, ok := m.fromCache(task); ok {
		return out, nil
	}

	j := &job{ctx: ctx, task: task, engine: engine, done: make(chan jobResult, 1)}
	if err := m.enqueue(j); err != nil {
		return nil, err
	}

	select {
	case res := <-j.done:
		return res.outcome, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) enqueue(j *job) error {
	m.closedMu.RLock()
	defer m.closedMu.RUnlock()
	if m.closed {
		return ErrStopped
	}

	select {
	case m.queue <- j:
		metrics.QueueDepth.Set(float64(len(m.queue)))
		m.publish(j.task.JobID, string(imaging.StageAnalyzing), 0, "queued")
		return nil
	default:
		metrics.QueueRejected.Inc()
		m.logger.Warning("Restoration queue full, rejecting job %s", j.task.JobID)
		return ErrQueueFull
	}
}

func (m *Manager) fromCache(task Task) (*Outcome, bool) {
	if m.cache == nil {
		return nil, false
	}

	key := cache.Key(task.Input, task.Engine, string(task.Step))
	entry, err := m.cache.Get(key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			m.logger.Warning("Cache lookup failed: %v", err)
		}
		metrics.RecordCacheLookup(false)
		return nil, false
	}
	metrics.RecordCacheLookup(true)

	out := &Outcome{
		ID:          task.ID,
		JobID:       task.JobID,
		Engine:      task.Engine,
		Step:        task.Step,
		Data:        entry.Data,
		Width:       entry.Width,
		Height:      entry.Height,
		InputWidth:  entry.InputWidth,
		InputHeight: entry.InputHeight,
		CacheHit:    true,
	}
	m.publish(task.JobID, string(imaging.StageDone), imaging.StageDone.Progress(), "served from cache")
	metrics.RecordRestoration(task.Engine, string(task.Step), nil)
	m.archive(task, out)
	return out, true
}

func (m *Manager) processingWorker(workerID int) {
	defer m.wg.Done()

	m.logger.Debug("Processing worker %d started", workerID)
	for j := range m.queue {
		metrics.QueueDepth.Set(float64(len(m.queue)))
		out, err := m.process(j)
		j.done <- jobResult{outcome: out, err: err}
	}
	m.logger.Debug("Processing worker %d stopped", workerID)
}

func (m *Manager) process(j *job) (*Outcome, error) {
	task := j.task

	// The caller may have given up while the job sat in the queue.
	if err := j.ctx.Err(); err != nil {
		return nil, err
	}

	opts := imaging.Options{
		Step: task.Step,
		Progress: func(stage imaging.Stage, progress int) {
			m.publish(task.JobID, string(stage), progress, "")
		},
	}

	res, err := j.engine.Restore(j.ctx, task.Input, opts)
	metrics.RecordRestoration(task.Engine, string(task.Step), err)
	if err != nil {
		m.logger.Error("Restoration %s (%s/%s) failed: %v", task.JobID, task.Engine, task.Step, err)
		m.publish(task.JobID, StageFailed, 100, err.Error())
		return nil, err
	}

	out := &Outcome{
		ID:          task.ID,
		JobID:       task.JobID,
		Engine:      task.Engine,
		Step:        task.Step,
		Data:        res.Data,
		Width:       res.Width,
		Height:      res.Height,
		InputWidth:  res.InputWidth,
		InputHeight: res.InputHeight,
		Duration:    res.Duration,
	}

	if m.cache != nil {
		entry := &cache.Entry{
			Data:        res.Data,
			Width:       res.Width,
			Height:      res.Height,
			InputWidth:  res.InputWidth,
			InputHeight: res.InputHeight,
		}
		if err := m.cache.Set(cache.Key(task.Input, task.Engine, string(task.Step)), entry); err != nil {
			m.logger.Warning("Cache store failed: %v", err)
		}
	}

	m.archive(task, out)
	m.logger.Info("Restored %s with %s/%s in %s (%dx%d -> %dx%d)", task.Filename, task.Engine, task.Step,
		res.Duration.Round(time.Millisecond), res.InputWidth, res.InputHeight, res.Width, res.Height)
	return out, nil
}

func (m *Manager) archive(task Task, out *Outcome) {
	if m.buffer == nil {
		return
	}
	m.buffer.Add(dto.BufferedRestoration{
		ID:               task.ID,
		Timestamp:        time.Now(),
		OriginalFilename: task.Filename,
		Engine:           task.Engine,
		Step:             string(task.Step),
		JobID:            task.JobID,
		InputSize:        int64(len(task.Input)),
		Width:            out.Width,
		Height:           out.Height,
		Duration:         out.Duration,
		CacheHit:         out.CacheHit,
		Data:             out.Data,
	})
}

func (m *Manager) publish(jobID, stage string, progress int, message string) {
	if m.hub == nil {
		return
	}
	m.hub.Broadcast(dto.ProgressEvent{Job: jobID, Stage: stage, Progress: progress, Message: message})
}

// HistoryEnabled reports whether finished restorations are archived.
func (m *Manager) HistoryEnabled() bool {
	return m.buffer != nil
}

// Stop closes the queue and waits for in-flight restorations.
func (m *Manager) Stop() {
	m.closedMu.Lock()
	if m.closed {
		m.closedMu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	m.closedMu.Unlock()

	m.wg.Wait()
	m.logger.Info("All processing workers stopped")
}
