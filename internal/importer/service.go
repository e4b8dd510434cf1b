package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Options configures run execution.
type Options struct {
	// ChunkSize is the number of entries per write batch.
	ChunkSize int

	// RunTimeout bounds a single run.
	RunTimeout time.Duration

	// RetainResults is how long a finished run stays queryable.
	RetainResults time.Duration
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.ChunkSize <= 0 {
		out.ChunkSize = 100
	}
	if out.RunTimeout <= 0 {
		out.RunTimeout = 10 * time.Minute
	}
	if out.RetainResults <= 0 {
		out.RetainResults = 5 * time.Minute
	}
	return out
}

// Service runs imports asynchronously. The sink and snapshot loader are
// injected at construction; no global client or module-level cache is
// involved, so concurrent services (and tests) stay independent.
type Service struct {
	sink      Sink
	snapshots SnapshotLoader
	opts      Options

	mu   sync.RWMutex
	runs map[string]*activeRun
}

type activeRun struct {
	ID       string
	ModeKey  string
	FileName string
	Cancel   context.CancelFunc
	Progress Progress
	Result   *Result
	Done     chan struct{}

	ListenerMu sync.Mutex
	Listeners  []chan Progress
}

// NewService creates a Service backed by the given sink and snapshot
// loader.
func NewService(sink Sink, snapshots SnapshotLoader, opts Options) *Service {
	return &Service{
		sink:      sink,
		snapshots: snapshots,
		opts:      opts.withDefaults(),
		runs:      make(map[string]*activeRun),
	}
}

// Modes returns the registered import modes for listings.
func (s *Service) Modes() []ModeInfo {
	defs := All()
	infos := make([]ModeInfo, len(defs))
	for i, def := range defs {
		infos[i] = def.Info
	}
	return infos
}

// StartImport begins an asynchronous import run and returns its ID
// immediately. Use SubscribeProgress for updates and GetResult for the
// final report.
func (s *Service) StartImport(ctx context.Context, modeKey, fileName string, data []byte, params map[string]string) (string, error) {
	def, ok := Get(modeKey)
	if !ok {
		return "", fmt.Errorf("unknown import mode: %s", modeKey)
	}

	runID := uuid.New().String()
	runCtx, cancel := context.WithTimeout(context.Background(), s.opts.RunTimeout)

	run := &activeRun{
		ID:       runID,
		ModeKey:  modeKey,
		FileName: fileName,
		Cancel:   cancel,
		Progress: Progress{
			RunID:    runID,
			ModeKey:  modeKey,
			FileName: fileName,
			Phase:    PhaseStarting,
		},
		Done: make(chan struct{}),
	}

	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()

	go s.process(runCtx, run, def, data, params)

	return runID, nil
}

// RunImport executes an import synchronously. Used by tests and callers
// that do not need progress subscription.
func (s *Service) RunImport(ctx context.Context, modeKey, fileName string, data []byte, params map[string]string, onProgress ProgressFunc) (Result, error) {
	def, ok := Get(modeKey)
	if !ok {
		return Result{}, fmt.Errorf("unknown import mode: %s", modeKey)
	}
	return runPipeline(ctx, s.sink, s.snapshots, def, fileName, data, params, s.opts.ChunkSize, onProgress, nil), nil
}

func (s *Service) process(ctx context.Context, run *activeRun, def ModeDefinition, data []byte, params map[string]string) {
	started := time.Now()

	defer func() {
		run.Cancel()
		run.closeListeners()
		close(run.Done)
		s.cleanup(run.ID, s.opts.RetainResults)
	}()

	run.setPhase(PhaseReading)

	onProgress := func(processed, total int) {
		run.ListenerMu.Lock()
		run.Progress.Processed = processed
		run.Progress.Total = total
		run.ListenerMu.Unlock()
		run.notifyProgress()
	}

	result := runPipeline(ctx, s.sink, s.snapshots, def, run.FileName, data, params, s.opts.ChunkSize, onProgress, run.setPhase)
	run.Result = &result

	switch {
	case ctx.Err() != nil:
		run.setPhase(PhaseCancelled)
	case result.Success == 0 && result.Errors > 0:
		run.setPhase(PhaseFailed)
	default:
		run.setPhase(PhaseComplete)
	}

	slog.Info("import run finished",
		"run_id", run.ID,
		"mode", run.ModeKey,
		"file", run.FileName,
		"success", result.Success,
		"errors", result.Errors,
		"duration", time.Since(started),
	)
}

// SubscribeProgress returns a channel that receives progress updates.
// The channel is closed when the run completes.
func (s *Service) SubscribeProgress(runID string) (<-chan Progress, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("import run not found: %s", runID)
	}

	ch := make(chan Progress, 10)

	run.ListenerMu.Lock()
	run.Listeners = append(run.Listeners, ch)
	// Send current progress immediately
	select {
	case ch <- run.Progress:
	default:
	}
	run.ListenerMu.Unlock()

	return ch, nil
}

// CancelRun requests cooperative cancellation of an in-progress run.
// The pipeline honors it at the next chunk boundary.
func (s *Service) CancelRun(runID string) error {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("import run not found: %s", runID)
	}

	run.Cancel()
	return nil
}

// GetResult returns the result of a run, blocking until it completes.
func (s *Service) GetResult(runID string) (*Result, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("import run not found: %s", runID)
	}

	<-run.Done

	return run.Result, nil
}

// GetProgress returns the current progress without blocking.
func (s *Service) GetProgress(runID string) (Progress, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return Progress{}, fmt.Errorf("import run not found: %s", runID)
	}

	run.ListenerMu.Lock()
	p := run.Progress
	run.ListenerMu.Unlock()
	return p, nil
}

// cleanup removes a finished run after the retention window.
func (s *Service) cleanup(runID string, after time.Duration) {
	time.AfterFunc(after, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}

func (r *activeRun) setPhase(p Phase) {
	r.ListenerMu.Lock()
	r.Progress.Phase = p
	r.ListenerMu.Unlock()
	r.notifyProgress()
}

func (r *activeRun) notifyProgress() {
	r.ListenerMu.Lock()
	defer r.ListenerMu.Unlock()

	for _, ch := range r.Listeners {
		select {
		case ch <- r.Progress:
		default:
			// Slow listener: drop the update rather than block the run
		}
	}
}

func (r *activeRun) closeListeners() {
	r.ListenerMu.Lock()
	defer r.ListenerMu.Unlock()

	for _, ch := range r.Listeners {
		close(ch)
	}
	r.Listeners = nil
}
