// Package app ties the detection engine to persistence and hook delivery.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/handscope/internal/capture"
	"github.com/ayusman/handscope/internal/engine"
	"github.com/ayusman/handscope/internal/hook"
	"github.com/ayusman/handscope/internal/store"
)

// DefaultHookTimeout bounds a single hook invocation.
const DefaultHookTimeout = 10 * time.Second

// SourceOpener builds a video source for a path or URL.
type SourceOpener func(path string) capture.Source

// Config holds configuration options for the application.
type Config struct {
	// Store persists runs, hands and deliveries. Nil disables persistence.
	Store       *store.Store
	Engine      engine.Config
	HookDir     string
	HookTimeout time.Duration
	// HooksEnabled turns hook delivery on.
	HooksEnabled bool
	Logger       *slog.Logger
	// OpenSource defaults to capture.NewFileSource.
	OpenSource SourceOpener
	// EngineOptions are applied to every engine after the app's own options.
	EngineOptions []engine.Option
}

// App runs analyses, records their outcome and notifies hooks.
type App struct {
	config   Config
	store    *store.Store
	hooks    *hook.Manager
	notifier *hook.Notifier
	logger   *slog.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.HookTimeout <= 0 {
		config.HookTimeout = DefaultHookTimeout
	}
	if config.OpenSource == nil {
		config.OpenSource = capture.NewFileSource
	}

	hooks := hook.NewManager(config.HookDir, logger)
	return &App{
		config:   config,
		store:    config.Store,
		hooks:    hooks,
		notifier: hook.NewNotifier(hooks, hook.NewExecutor(config.HookTimeout), logger),
		logger:   logger.With("component", "app"),
		active:   make(map[string]context.CancelFunc),
	}
}

// DiscoverHooks scans the hook directory. It is a no-op when hooks are
// disabled.
func (a *App) DiscoverHooks() error {
	if !a.config.HooksEnabled {
		return nil
	}
	if err := a.hooks.Discover(); err != nil {
		return fmt.Errorf("discover hooks: %w", err)
	}
	for _, h := range a.hooks.List() {
		a.logger.Info("hook loaded", "hook", h.Manifest.Name, "version", h.Manifest.Version)
	}
	return nil
}

// Hooks returns the hook manager.
func (a *App) Hooks() *hook.Manager {
	return a.hooks
}

// Store returns the store, which may be nil.
func (a *App) Store() *store.Store {
	return a.store
}

// Begin registers a new run for source. The run row is created before any
// frame is read so that clients can follow it immediately.
func (a *App) Begin(source string) (*store.Run, error) {
	run := &store.Run{ID: uuid.NewString(), Source: source}
	if a.store == nil {
		run.Status = store.RunStatusRunning
		run.StartedAt = time.Now().UTC()
		return run, nil
	}
	if err := a.store.Runs().Create(run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// Run analyses run.Source to completion. It persists the validated hands,
// notifies hooks about each of them and records the run's outcome. An
// unopenable source marks the run failed and is returned as an error.
func (a *App) Run(ctx context.Context, run *store.Run, progress func(engine.Progress)) (*engine.Result, error) {
	runID, err := uuid.Parse(run.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", run.ID, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	a.track(run.ID, cancel)
	defer a.untrack(run.ID)
	defer cancel()

	opts := []engine.Option{
		engine.WithLogger(a.logger),
		engine.WithRunID(runID),
	}
	if progress != nil {
		opts = append(opts, engine.WithProgress(progress))
	}
	opts = append(opts, a.config.EngineOptions...)

	eng := engine.New(a.config.Engine, opts...)
	defer func() {
		if cerr := eng.Close(); cerr != nil {
			a.logger.Warn("failed to close engine", "run_id", run.ID, "error", cerr)
		}
	}()

	result, runErr := eng.Analyze(ctx, a.config.OpenSource(run.Source))
	if result == nil {
		a.finish(run, runErr.Error())
		return nil, runErr
	}

	run.FPS = result.FPS
	run.TotalFrames = result.TotalFrames
	run.FramesProcessed = result.FramesProcessed
	run.Candidates = len(result.RawHands)
	run.Hands = len(result.Hands)

	if err := a.persistHands(run, result); err != nil {
		a.finish(run, err.Error())
		return result, err
	}

	// Cancellation ends the run early, but the hands found so far are kept
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	if ctx.Err() == nil {
		a.notify(ctx, run, result)
	}
	a.finish(run, msg)

	return result, runErr
}

// Analyze begins and runs an analysis of source.
func (a *App) Analyze(ctx context.Context, source string, progress func(engine.Progress)) (*store.Run, *engine.Result, error) {
	run, err := a.Begin(source)
	if err != nil {
		return nil, nil, err
	}
	result, err := a.Run(ctx, run, progress)
	return run, result, err
}

// Cancel stops the active run with the given id. It reports whether such a
// run was active.
func (a *App) Cancel(runID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	cancel, ok := a.active[runID]
	if ok {
		cancel()
	}
	return ok
}

// Active returns the number of runs in flight.
func (a *App) Active() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.active)
}

func (a *App) track(id string, cancel context.CancelFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active[id] = cancel
}

func (a *App) untrack(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.active, id)
}

func (a *App) persistHands(run *store.Run, result *engine.Result) error {
	if a.store == nil || len(result.Hands) == 0 {
		return nil
	}
	if err := a.store.Hands().CreateBatch(run.ID, result.Hands); err != nil {
		return fmt.Errorf("save hands: %w", err)
	}
	return nil
}

func (a *App) finish(run *store.Run, errMsg string) {
	if a.store == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
		run.Error = errMsg
		run.Status = store.RunStatusCompleted
		if errMsg != "" {
			run.Status = store.RunStatusFailed
		}
		return
	}
	if err := a.store.Runs().Finish(run, errMsg); err != nil {
		a.logger.Error("failed to record run outcome", "run_id", run.ID, "error", err)
	}
}
