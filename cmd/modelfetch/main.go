// Command modelfetch downloads ModelScope model repositories to local disk
// with resumable, verified, concurrent transfers.
//
// Configuration is loaded in order of precedence: flags, MODELFETCH_*
// environment variables, the config file named by MODELFETCH_CONFIG, then
// built-in defaults.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelfetch/modelfetch"
)

// CLI exit codes for standardized error reporting.
const (
	// ExitSuccess indicates the operation completed successfully.
	ExitSuccess = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError = 1

	// ExitInvalidArgs indicates invalid command line arguments.
	ExitInvalidArgs = 2

	// ExitManifestError indicates the hub was unreachable or returned
	// malformed data.
	ExitManifestError = 3

	// ExitNetworkError indicates a network or connection failure.
	ExitNetworkError = 4

	// ExitHashMismatch indicates hash verification failed.
	ExitHashMismatch = 5

	// ExitStorageError indicates a filesystem operation failed.
	ExitStorageError = 6

	// ExitIncomplete indicates not every file reached the completed state.
	ExitIncomplete = 7

	// ExitNoRecord indicates no download record exists for the model.
	ExitNoRecord = 8
)

// slogLogger adapts *slog.Logger to the modelfetch.Logger interface.
type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Debug(msg string, keysAndValues ...any) { s.l.Debug(msg, keysAndValues...) }
func (s slogLogger) Info(msg string, keysAndValues ...any)  { s.l.Info(msg, keysAndValues...) }
func (s slogLogger) Warn(msg string, keysAndValues ...any)  { s.l.Warn(msg, keysAndValues...) }
func (s slogLogger) Error(msg string, keysAndValues ...any) { s.l.Error(msg, keysAndValues...) }

func main() {
	os.Exit(run())
}

func run() int {
	cfg := modelfetch.DefaultConfig()
	if path := os.Getenv("MODELFETCH_CONFIG"); path != "" {
		loaded, err := modelfetch.LoadConfig(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitInvalidArgs
		}
		cfg = loaded
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	level := slog.LevelInfo
	if os.Getenv("MODELFETCH_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slogLogger{l: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}

	// A first interrupt cancels the run so in-flight transfers stop cleanly
	// and partial artifacts stay resumable; dropping the registration once
	// the context fires restores default handling, so a second interrupt
	// kills us.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	cmd := modelfetch.NewCommand(cfg, modelfetch.WithLogger(logger))
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCodeFromError(err)
	}
	return ExitSuccess
}

// exitCodeFromError maps sentinel errors to CLI exit codes.
func exitCodeFromError(err error) int {
	switch {
	case errors.Is(err, modelfetch.ErrInvalidModelID):
		return ExitInvalidArgs
	case errors.Is(err, modelfetch.ErrManifestError):
		return ExitManifestError
	case errors.Is(err, modelfetch.ErrNetworkError):
		return ExitNetworkError
	case errors.Is(err, modelfetch.ErrHashMismatch):
		return ExitHashMismatch
	case errors.Is(err, modelfetch.ErrStorageError):
		return ExitStorageError
	case errors.Is(err, modelfetch.ErrIncomplete):
		return ExitIncomplete
	case errors.Is(err, modelfetch.ErrNoRecord):
		return ExitNoRecord
	default:
		return ExitGeneralError
	}
}
