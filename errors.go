package modelfetch

import "errors"

// Sentinel errors for download operations.
// Use errors.Is() to check for specific error conditions.
var (
	// ErrInvalidModelID indicates a malformed model identifier.
	// Model identifiers take the form "namespace/name".
	ErrInvalidModelID = errors.New("modelfetch: invalid model id")

	// ErrManifestError indicates the hub returned invalid or unparseable data.
	ErrManifestError = errors.New("modelfetch: invalid hub response")

	// ErrNetworkError indicates a network or connection failure.
	ErrNetworkError = errors.New("modelfetch: network error")

	// ErrHashMismatch indicates downloaded data failed hash verification.
	ErrHashMismatch = errors.New("modelfetch: hash verification failed")

	// ErrStorageError indicates a filesystem operation failed.
	ErrStorageError = errors.New("modelfetch: storage error")

	// ErrIncomplete indicates a run finished without every file reaching
	// the completed state. The accompanying Report enumerates the files.
	ErrIncomplete = errors.New("modelfetch: download incomplete")

	// ErrNoRecord indicates no status record exists for the model.
	ErrNoRecord = errors.New("modelfetch: no download record")
)
