package modelfetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultLockTimeout is the maximum wait for the cross-process manifest lock.
const DefaultLockTimeout = 30 * time.Second

// Engine turns a model manifest into a set of terminal per-file outcomes.
// It dispatches files to a bounded worker pool, merges prior progress from
// the status store, checkpoints full-manifest snapshots during transfer,
// and aggregates the result into a Report.
//
// An Engine may be reused; it executes one Run at a time.
type Engine struct {
	// cfg holds the engine configuration, defaults applied.
	cfg Config

	// provider resolves model ids into file manifests.
	provider ManifestProvider

	// store persists progress records.
	store *StatusStore

	// client is used for all transfer requests.
	client HTTPClient

	// logger receives diagnostic messages. May be nil.
	logger Logger

	// clock supplies the current time for checkpoint throttling.
	clock func() time.Time

	// runMu serializes Run invocations on this engine.
	runMu sync.Mutex

	// mu guards the per-run progress state below.
	mu             sync.Mutex
	modelID        string
	files          []*FileProgress
	lastCheckpoint time.Time
}

// NewEngine creates an Engine for the given configuration and manifest
// provider. Unset Config fields are filled with defaults.
func NewEngine(cfg Config, provider ManifestProvider, opts ...EngineOption) (*Engine, error) {
	if provider == nil {
		return nil, errors.New("modelfetch: manifest provider is required")
	}

	cfg = cfg.withDefaults()

	ec := &engineConfig{}
	for _, opt := range opts {
		opt(ec)
	}
	if ec.httpClient == nil {
		ec.httpClient = newTransferClient()
	}
	if ec.clock == nil {
		ec.clock = time.Now
	}

	store, err := NewStatusStore(cfg.StateDir, ec.logger)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:      cfg,
		provider: provider,
		store:    store,
		client:   ec.httpClient,
		logger:   ec.logger,
		clock:    ec.clock,
	}, nil
}

// Store returns the engine's status store. The store is safe for
// read-only status queries while no run is in flight.
func (e *Engine) Store() *StatusStore {
	return e.store
}

// Run downloads every file of modelID's manifest into destDir and returns
// the aggregate outcome. Completed files are skipped, partial files resume,
// and a repeated invocation converges on the same Completed set.
//
// Run returns an error only for conditions that prevent the run from
// starting (manifest failure, lock contention, unusable destination). A run
// that started always yields a Report; callers decide what a partial result
// means via Report.Succeeded.
func (e *Engine) Run(ctx context.Context, modelID, destDir string, opts ...RunOption) (*Report, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	rc := runConfig{
		concurrency: e.cfg.Concurrency,
		maxAttempts: e.cfg.MaxAttempts,
		skipVerify:  e.cfg.SkipVerify,
	}
	for _, opt := range opts {
		opt(&rc)
	}

	specs, err := e.provider.ModelFiles(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest: %w", err)
	}
	if len(specs) == 0 {
		if e.logger != nil {
			e.logger.Warn("model has no downloadable files, nothing to do", "model", modelID)
		}
		return &Report{ModelID: modelID}, nil
	}

	absDir, err := filepath.Abs(destDir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving destination: %v", ErrStorageError, err)
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating destination: %v", ErrStorageError, err)
	}

	// One downloader per manifest across processes; two processes appending
	// to the same temp artifacts would corrupt them.
	lock, err := acquireLock(e.store.Path(modelID)+".lock", DefaultLockTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: another process is downloading this model: %v", ErrStorageError, err)
	}
	defer lock.Release()

	files := make([]*FileProgress, len(specs))
	for i, spec := range specs {
		files[i] = &FileProgress{
			Name:         spec.Name,
			ExpectedSize: spec.Size,
			State:        StatePending,
		}
	}
	if prev, ok := e.store.Load(modelID); ok {
		mergeProgress(files, prev)
	}

	e.mu.Lock()
	e.modelID = modelID
	e.files = files
	e.lastCheckpoint = e.clock()
	initial := e.snapshotLocked()
	e.mu.Unlock()

	// Establish a record before any bytes move; a crash right after start
	// still leaves a valid, inspectable record behind.
	if err := e.store.Save(initial); err != nil && e.logger != nil {
		e.logger.Error("persisting initial status failed", "model", modelID, "error", err)
	}

	if e.logger != nil {
		e.logger.Info("starting download", "model", modelID, "files", len(specs), "dest", absDir, "workers", rc.concurrency)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < rc.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				w := &fileWorker{
					engine:  e,
					index:   idx,
					spec:    specs[idx],
					destDir: absDir,
					rc:      rc,
				}
				out := w.run(ctx)
				if out.err != nil && e.logger != nil {
					e.logger.Error("file download failed", "name", specs[idx].Name, "error", out.err)
				}
				// Terminal states are persisted promptly, not on the next
				// throttled checkpoint.
				e.checkpoint(true)
			}
		}()
	}

dispatch:
	for idx := range specs {
		select {
		case jobs <- idx:
		case <-ctx.Done():
			// Files never handed out stay pending; in-flight workers wind
			// down on their own cancellation checks.
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	e.checkpoint(true)

	rep := e.report()
	if e.logger != nil {
		e.logger.Info("download finished", "model", modelID, "completed", rep.Completed(), "total", len(rep.Files))
	}
	return rep, nil
}

// mergeProgress copies downloaded-size and state from a prior record into
// the fresh progress set, matching by filename. Files no longer in the
// manifest are dropped; new files stay pending. The copied byte counts are
// informational: workers re-derive the real resume offset from the on-disk
// partial artifact before moving any bytes.
func mergeProgress(files []*FileProgress, prev StatusRecord) {
	byName := make(map[string]*FileProgress, len(files))
	for _, f := range files {
		byName[f.Name] = f
	}
	for _, pf := range prev.Files {
		if f, ok := byName[pf.Filename]; ok {
			f.DownloadedBytes = pf.DownloadedSize
			f.State = pf.Status
		}
	}
}

// updateFile applies fn to one progress entry under the engine lock and
// returns a copy of the result.
func (e *Engine) updateFile(i int, fn func(*FileProgress)) FileProgress {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.files[i])
	return *e.files[i]
}

// checkpoint persists a full-manifest snapshot. Unforced checkpoints are
// throttled to the configured interval; the persisted record is always a
// single snapshot of every file, never a per-file delta. Persistence
// failures cost crash-recovery precision, not the transfer, so they are
// logged and the run continues.
func (e *Engine) checkpoint(force bool) {
	e.mu.Lock()
	now := e.clock()
	if !force && now.Sub(e.lastCheckpoint) < e.cfg.CheckpointInterval {
		e.mu.Unlock()
		return
	}
	e.lastCheckpoint = now
	rec := e.snapshotLocked()
	e.mu.Unlock()

	if err := e.store.Save(rec); err != nil && e.logger != nil {
		e.logger.Error("persisting status checkpoint failed", "error", err)
	}
}

// snapshotLocked builds a status record from the current progress.
// Callers must hold e.mu.
func (e *Engine) snapshotLocked() StatusRecord {
	rec := StatusRecord{
		ModelID: e.modelID,
		Files:   make([]FileStatus, len(e.files)),
	}
	for i, f := range e.files {
		rec.Files[i] = FileStatus{
			Filename:       f.Name,
			FileSize:       f.ExpectedSize,
			DownloadedSize: f.DownloadedBytes,
			Status:         f.State,
		}
	}
	return rec
}

// report builds the final Report from the current progress.
func (e *Engine) report() *Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	rep := &Report{
		ModelID: e.modelID,
		Files:   make([]FileProgress, len(e.files)),
	}
	for i, f := range e.files {
		rep.Files[i] = *f
	}
	return rep
}
