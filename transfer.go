package modelfetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// partSuffix marks the partial download artifact next to the final file.
// Its presence and size are the ground truth for the resume offset.
const partSuffix = ".tmp"

// outcome is the terminal result of one file's download.
type outcome struct {
	// state is the terminal state the file reached.
	state State

	// err is the failure reason, nil unless state is StateFailed.
	err error

	// retryable marks failures the bounded attempt loop may re-enter.
	// Hash mismatches are not retryable: the bytes are known wrong.
	retryable bool
}

// fileWorker downloads a single file to local disk, resuming from any
// existing partial artifact. Exactly one worker touches a given file's
// temp/final path pair at a time; the pool guarantees that.
type fileWorker struct {
	// engine provides shared progress state, checkpointing, and config.
	engine *Engine

	// index is the file's position in the run's progress slice.
	index int

	// spec describes the file being downloaded.
	spec FileSpec

	// destDir is the absolute destination directory for the model.
	destDir string

	// rc carries the per-run settings.
	rc runConfig
}

// update applies fn to the worker's progress entry under the engine lock
// and forwards a copy to the run's progress callback.
func (w *fileWorker) update(fn func(*FileProgress)) {
	p := w.engine.updateFile(w.index, fn)
	if w.rc.progressFn != nil {
		w.rc.progressFn(p)
	}
}

// run drives the file to a terminal state: short-circuit for files already
// in place, otherwise a bounded attempt loop around the resumable transfer.
func (w *fileWorker) run(ctx context.Context) outcome {
	localPath := filepath.Join(w.destDir, filepath.FromSlash(w.spec.Name))
	tempPath := localPath + partSuffix

	// Idempotence: a final file that verifies needs no network I/O at all.
	if fi, err := os.Stat(localPath); err == nil && fi.Mode().IsRegular() {
		hash := w.spec.Hash
		if w.rc.skipVerify {
			hash = ""
		}
		if verifyFile(localPath, hash) == nil {
			size := fi.Size()
			w.update(func(p *FileProgress) {
				p.State = StateCompleted
				p.DownloadedBytes = size
				if p.ExpectedSize == 0 {
					p.ExpectedSize = size
				}
			})
			w.logDebug("file already complete", "name", w.spec.Name)
			return outcome{state: StateCompleted}
		}
		w.logWarn("existing file failed verification, downloading again", "name", w.spec.Name)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		err = fmt.Errorf("%w: creating directory for %s: %v", ErrStorageError, w.spec.Name, err)
		w.fail(err)
		return outcome{state: StateFailed, err: err}
	}

	var lastErr error
	for attempt := 1; attempt <= w.rc.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepBackoff(ctx, attempt-1); err != nil {
				w.stop()
				return outcome{state: StateStopped}
			}
			w.logInfo("retrying download", "name", w.spec.Name, "attempt", attempt)
		}

		out := w.attempt(ctx, localPath, tempPath)
		if out.state != StateFailed || !out.retryable {
			return out
		}
		lastErr = out.err
	}

	w.fail(lastErr)
	return outcome{state: StateFailed, err: lastErr}
}

// attempt performs one resumable transfer pass over the file.
// The partial artifact survives every failure except a hash mismatch, so a
// later attempt or a later run resumes instead of starting over.
func (w *fileWorker) attempt(ctx context.Context, localPath, tempPath string) outcome {
	// The on-disk partial size is the resume offset; an earlier in-memory
	// value is never trusted.
	var offset int64
	if fi, err := os.Stat(tempPath); err == nil {
		offset = fi.Size()
	}

	w.update(func(p *FileProgress) {
		p.State = StateDownloading
		p.DownloadedBytes = offset
	})

	body, contentLength, gotOffset, err := openStream(ctx, w.engine.client, w.spec.URL, offset)
	if err != nil {
		if ctx.Err() != nil {
			w.stop()
			return outcome{state: StateStopped}
		}
		return outcome{state: StateFailed, err: fmt.Errorf("downloading %s: %w", w.spec.Name, err), retryable: true}
	}
	defer body.Close()

	// The ranged content-length recovers the true total size; the
	// manifest's declared size is advisory only.
	if contentLength >= 0 {
		total := gotOffset + contentLength
		w.update(func(p *FileProgress) {
			p.ExpectedSize = total
		})
	}

	flags := os.O_CREATE | os.O_WRONLY
	if gotOffset > 0 {
		flags |= os.O_APPEND
	} else {
		// Fresh start, or the server ignored the range request.
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(tempPath, flags, 0o644)
	if err != nil {
		err = fmt.Errorf("%w: opening %s: %v", ErrStorageError, tempPath, err)
		return outcome{state: StateFailed, err: err, retryable: true}
	}

	buf := make([]byte, w.engine.cfg.ChunkSize)
	for {
		select {
		case <-ctx.Done():
			// Leave the partial artifact in place for a later run.
			f.Close()
			w.stop()
			return outcome{state: StateStopped}
		default:
		}

		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Close()
				werr = fmt.Errorf("%w: writing %s: %v", ErrStorageError, tempPath, werr)
				return outcome{state: StateFailed, err: werr, retryable: true}
			}
			// Read the artifact's actual size back rather than keeping an
			// accumulator that can drift after a resumed append.
			if fi, serr := f.Stat(); serr == nil {
				size := fi.Size()
				w.update(func(p *FileProgress) {
					p.DownloadedBytes = size
				})
			}
			w.engine.checkpoint(false)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			f.Close()
			if ctx.Err() != nil {
				w.stop()
				return outcome{state: StateStopped}
			}
			rerr = fmt.Errorf("reading %s: %w: %v", w.spec.Name, ErrNetworkError, rerr)
			return outcome{state: StateFailed, err: rerr, retryable: true}
		}
	}

	if err := f.Close(); err != nil {
		err = fmt.Errorf("%w: closing %s: %v", ErrStorageError, tempPath, err)
		return outcome{state: StateFailed, err: err, retryable: true}
	}

	if !w.rc.skipVerify {
		if verr := verifyFile(tempPath, w.spec.Hash); verr != nil {
			// The bytes are known wrong; the artifact must not survive.
			os.Remove(tempPath)
			verr = fmt.Errorf("%s: %w", w.spec.Name, verr)
			w.fail(verr)
			return outcome{state: StateFailed, err: verr}
		}
	}

	// Same-filesystem rename keeps the final path atomic for readers.
	if err := os.Rename(tempPath, localPath); err != nil {
		err = fmt.Errorf("%w: moving %s into place: %v", ErrStorageError, w.spec.Name, err)
		w.fail(err)
		return outcome{state: StateFailed, err: err}
	}

	var final int64
	if fi, err := os.Stat(localPath); err == nil {
		final = fi.Size()
	}
	w.update(func(p *FileProgress) {
		p.State = StateCompleted
		p.DownloadedBytes = final
		if p.ExpectedSize == 0 {
			p.ExpectedSize = final
		}
	})
	w.logInfo("file completed", "name", w.spec.Name, "bytes", final)
	return outcome{state: StateCompleted}
}

// fail records a terminal failure on the progress entry.
func (w *fileWorker) fail(err error) {
	w.update(func(p *FileProgress) {
		p.State = StateFailed
		p.Err = err
	})
}

// stop records the stopped state without touching the partial artifact.
func (w *fileWorker) stop() {
	w.update(func(p *FileProgress) {
		p.State = StateStopped
	})
}

func (w *fileWorker) logDebug(msg string, kv ...any) {
	if w.engine.logger != nil {
		w.engine.logger.Debug(msg, kv...)
	}
}

func (w *fileWorker) logInfo(msg string, kv ...any) {
	if w.engine.logger != nil {
		w.engine.logger.Info(msg, kv...)
	}
}

func (w *fileWorker) logWarn(msg string, kv ...any) {
	if w.engine.logger != nil {
		w.engine.logger.Warn(msg, kv...)
	}
}
