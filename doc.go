// Package modelfetch downloads the files of a ModelScope-compatible model
// repository to local disk, tolerating interruption, partial downloads, and
// repeated invocation.
//
// The package serves two primary use cases:
//
//  1. Programmatic API via the Engine type - Applications construct an Engine
//     with NewEngine and call Run to materialize a model's manifest into a
//     local directory.
//
//  2. Embeddable CLI via NewCommand - Parent CLI tools can attach a complete
//     command tree to their Cobra root command, providing "download",
//     "status", and "verify" subcommands.
//
// # Resumption
//
// Every file is streamed into a sibling temp artifact. The temp file's
// on-disk size is the ground truth for the resume offset: an interrupted run
// picks up with an HTTP range request for the remaining bytes. Progress for
// the whole manifest is checkpointed periodically to an atomically-replaced
// JSON status record, so a crash at any point leaves a valid record behind.
//
// # Content Verification
//
// Completed files are verified against their manifest SHA-256 hash before
// being moved into place. A file whose manifest entry carries no hash is
// trusted as soon as its byte stream ends.
//
// # State
//
// Status records are stored in a platform-appropriate directory:
//   - Linux: $XDG_DATA_HOME/modelfetch/ or ~/.local/share/modelfetch/
//   - macOS: ~/Library/Application Support/modelfetch/
//   - Windows: %APPDATA%\modelfetch\
//
// The location can be overridden via Config.StateDir or the
// MODELFETCH_STATE_DIR environment variable.
package modelfetch
