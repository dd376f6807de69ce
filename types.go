package modelfetch

import (
	"net/http"
	"strings"
)

// State is the download state of a single file.
// The string values are the on-disk status record contract and must not change.
type State string

// Per-file download states.
const (
	// StatePending indicates the file has not been picked up by a worker yet.
	StatePending State = "pending"

	// StateDownloading indicates a worker is actively streaming the file.
	StateDownloading State = "downloading"

	// StateCompleted indicates the file was downloaded, verified, and moved
	// into place.
	StateCompleted State = "completed"

	// StateFailed indicates the file could not be downloaded or failed
	// verification.
	StateFailed State = "failed"

	// StateStopped indicates the download was interrupted by cancellation.
	// The partial artifact is preserved so a later run can resume.
	StateStopped State = "stopped"
)

// Terminal reports whether no further transitions occur within a run.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateStopped
}

// validState reports whether s is one of the known state values.
func validState(s State) bool {
	switch s {
	case StatePending, StateDownloading, StateCompleted, StateFailed, StateStopped:
		return true
	}
	return false
}

// FileSpec describes one downloadable file of a model manifest.
// Specs are immutable; they are produced by a ManifestProvider.
type FileSpec struct {
	// Name is the file's relative path within the model directory.
	// It may contain forward-slash separators.
	Name string

	// Size is the declared file size in bytes, 0 if unknown.
	// It is advisory only and never used for correctness decisions.
	Size int64

	// Hash is the expected SHA-256 hash as a lowercase hex string.
	// Empty disables verification for this file.
	Hash string

	// URL is the location the file is fetched from.
	URL string
}

// FileProgress tracks the download state of a single file. While a file is
// being downloaded its progress is owned exclusively by one worker; the
// engine takes read-only snapshots for checkpointing and reporting.
type FileProgress struct {
	// Name is the file's relative path within the model directory.
	Name string

	// ExpectedSize is the best known total size in bytes. It starts as the
	// manifest's declared size and is corrected from the transfer's
	// content-length once known.
	ExpectedSize int64

	// DownloadedBytes is the number of bytes present in the local artifact.
	// It is refreshed from the on-disk size whenever work resumes and after
	// every written chunk, never carried forward from a stale in-memory value.
	DownloadedBytes int64

	// State is the file's current download state.
	State State

	// Err is the terminal failure reason, nil unless State is StateFailed.
	Err error
}

// StatusRecord is the serialized form of a manifest's download progress.
// This schema is the persisted-state contract read by the status command
// and other tooling; it must remain stable across versions.
type StatusRecord struct {
	// ModelID identifies the model this record belongs to.
	ModelID string `json:"model_id"`

	// Files holds per-file progress in manifest order.
	Files []FileStatus `json:"files"`
}

// FileStatus is one file entry within a StatusRecord.
type FileStatus struct {
	// Filename is the file's relative path within the model directory.
	Filename string `json:"filename"`

	// FileSize is the total size in bytes, 0 if unknown.
	FileSize int64 `json:"file_size"`

	// DownloadedSize is the number of bytes downloaded so far.
	DownloadedSize int64 `json:"downloaded_size"`

	// Status is the file's download state.
	Status State `json:"status"`
}

// Report is the aggregate outcome of one Run invocation.
type Report struct {
	// ModelID identifies the model the run covered.
	ModelID string

	// Files holds the final per-file progress in manifest order.
	Files []FileProgress
}

// Completed returns the number of files that reached StateCompleted.
func (r *Report) Completed() int {
	n := 0
	for _, f := range r.Files {
		if f.State == StateCompleted {
			n++
		}
	}
	return n
}

// Succeeded reports whether every file in the run reached StateCompleted.
// An empty manifest counts as success.
func (r *Report) Succeeded() bool {
	return r.Completed() == len(r.Files)
}

// Unfinished returns the files that did not reach StateCompleted,
// in manifest order.
func (r *Report) Unfinished() []FileProgress {
	var out []FileProgress
	for _, f := range r.Files {
		if f.State != StateCompleted {
			out = append(out, f)
		}
	}
	return out
}

// ValidateModelID checks that id has the "namespace/name" shape.
// Returns ErrInvalidModelID otherwise.
func ValidateModelID(id string) error {
	parts := strings.Split(id, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ErrInvalidModelID
	}
	return nil
}

// HTTPClient is the interface for HTTP operations.
// *http.Client satisfies this interface.
type HTTPClient interface {
	// Do sends an HTTP request and returns an HTTP response.
	Do(req *http.Request) (*http.Response, error)
}

// Logger is the interface for diagnostic logging.
// Compatible with slog, zap, logrus, and other structured loggers.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, keysAndValues ...any)

	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, keysAndValues ...any)

	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, keysAndValues ...any)
}
