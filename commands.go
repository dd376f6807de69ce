package modelfetch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewCommand creates a Cobra command tree for model downloads.
// The returned command can be used as a root command or added to a parent
// CLI's command tree.
//
// Commands provided:
//   - download <model-id> <dest-dir> [--workers N] [--chunk-size N] [--retry N] [--no-verify]
//   - status <model-id>
//   - verify <model-id> <dest-dir>
//
// Global flags: --json, --quiet
func NewCommand(cfg Config, opts ...EngineOption) *cobra.Command {
	var (
		jsonOutput bool
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:           "modelfetch",
		Short:         "Download model files with resume support",
		Long:          "Download the files of a ModelScope-compatible model repository,\nresuming partial downloads and verifying content hashes.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")

	cmd.AddCommand(downloadCmd(cfg, opts, &quiet))
	cmd.AddCommand(statusCmd(cfg, &jsonOutput))
	cmd.AddCommand(verifyCmd(cfg, opts, &quiet))

	return cmd
}

func downloadCmd(cfg Config, engineOpts []EngineOption, quiet *bool) *cobra.Command {
	var (
		workers   int
		chunkSize int64
		retry     int
		noVerify  bool
	)

	cmd := &cobra.Command{
		Use:   "download <model-id> <dest-dir>",
		Short: "Download a model's files",
		Long:  "Download every file of a model to a local directory. Interrupted\ndownloads resume from where they left off on the next invocation.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			modelID, destDir := args[0], args[1]
			if err := ValidateModelID(modelID); err != nil {
				return err
			}

			runCfg := cfg
			if chunkSize > 0 {
				runCfg.ChunkSize = chunkSize
			}

			var runOpts []RunOption
			if workers > 0 {
				runOpts = append(runOpts, WithConcurrency(workers))
			}
			if retry > 0 {
				runOpts = append(runOpts, WithMaxAttempts(retry))
			}
			if noVerify {
				runOpts = append(runOpts, WithSkipVerify())
			}

			ec := &engineConfig{}
			for _, opt := range engineOpts {
				opt(ec)
			}

			provider := NewHubClient(runCfg.HubURL, ec.httpClient, ec.logger)
			engine, err := NewEngine(runCfg, provider, engineOpts...)
			if err != nil {
				return err
			}

			rep, err := engine.Run(cmd.Context(), modelID, destDir, runOpts...)
			if err != nil {
				return err
			}

			if !*quiet {
				printReport(cmd.OutOrStdout(), rep)
			}
			if !rep.Succeeded() {
				return fmt.Errorf("%w: %d of %d files completed", ErrIncomplete, rep.Completed(), len(rep.Files))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "Number of parallel download workers")
	cmd.Flags().Int64Var(&chunkSize, "chunk-size", 0, "Bytes per network read")
	cmd.Flags().IntVar(&retry, "retry", 0, "Attempts per file before giving up")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip file integrity verification")
	return cmd
}

func statusCmd(cfg Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "status <model-id>",
		Short: "Show download progress for a model",
		Long:  "Read the persisted status record of a model and print per-file and\naggregate progress. The record is read-only; nothing is downloaded.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modelID := args[0]
			if err := ValidateModelID(modelID); err != nil {
				return err
			}

			store, err := NewStatusStore(cfg.StateDir, nil)
			if err != nil {
				return err
			}

			rec, ok := store.Load(modelID)
			if !ok {
				return fmt.Errorf("%w for model %s", ErrNoRecord, modelID)
			}

			if *jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			printStatusRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	}
}

func verifyCmd(cfg Config, engineOpts []EngineOption, quiet *bool) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "verify <model-id> <dest-dir>",
		Short: "Re-verify downloaded files against the manifest",
		Long:  "Fetch the model's manifest and check every local file against its\nexpected hash, reporting missing or corrupt files.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			modelID, destDir := args[0], args[1]
			if err := ValidateModelID(modelID); err != nil {
				return err
			}

			ec := &engineConfig{}
			for _, opt := range engineOpts {
				opt(ec)
			}

			provider := NewHubClient(cfg.HubURL, ec.httpClient, ec.logger)
			specs, err := provider.ModelFiles(cmd.Context(), modelID)
			if err != nil {
				return err
			}
			if len(specs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Model has no downloadable files.")
				return nil
			}

			limit := workers
			if limit <= 0 {
				limit = cfg.withDefaults().Concurrency
			}

			var mu sync.Mutex
			var bad []string
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(limit)
			for _, spec := range specs {
				spec := spec
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					path := filepath.Join(destDir, filepath.FromSlash(spec.Name))
					var verr error
					if _, serr := os.Stat(path); serr != nil {
						verr = serr
					} else {
						verr = verifyFile(path, spec.Hash)
					}
					if verr == nil {
						return nil
					}
					mu.Lock()
					switch {
					case errors.Is(verr, ErrHashMismatch):
						bad = append(bad, spec.Name+": hash mismatch")
					case errors.Is(verr, os.ErrNotExist):
						bad = append(bad, spec.Name+": missing")
					default:
						bad = append(bad, spec.Name+": "+verr.Error())
					}
					mu.Unlock()
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if len(bad) > 0 {
				sort.Strings(bad)
				for _, line := range bad {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return fmt.Errorf("%w: %d of %d files failed verification", ErrHashMismatch, len(bad), len(specs))
			}
			if !*quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "All %d files verified.\n", len(specs))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "Number of parallel verification workers")
	return cmd
}

// printReport writes a human-readable run summary.
func printReport(w io.Writer, rep *Report) {
	var done int64
	for _, f := range rep.Files {
		if f.State == StateCompleted {
			done += f.DownloadedBytes
		}
	}
	fmt.Fprintf(w, "Completed %d/%d files (%s)\n", rep.Completed(), len(rep.Files), humanize.Bytes(uint64(done)))
	for _, f := range rep.Unfinished() {
		if f.Err != nil {
			fmt.Fprintf(w, "  %s: %s (%v)\n", f.Name, f.State, f.Err)
		} else {
			fmt.Fprintf(w, "  %s: %s\n", f.Name, f.State)
		}
	}
}

// printStatusRecord writes aggregate and per-file progress for a record.
func printStatusRecord(w io.Writer, rec StatusRecord) {
	var totalSize, downloaded int64
	completed, failed := 0, 0
	for _, f := range rec.Files {
		totalSize += f.FileSize
		downloaded += f.DownloadedSize
		switch f.Status {
		case StateCompleted:
			completed++
		case StateFailed:
			failed++
		}
	}

	percent := 0.0
	if totalSize > 0 {
		percent = float64(downloaded) / float64(totalSize) * 100
	}

	fmt.Fprintf(w, "Download status for %s:\n", rec.ModelID)
	fmt.Fprintf(w, "  progress:  %.1f%% (%s / %s)\n", percent, humanize.Bytes(uint64(downloaded)), humanize.Bytes(uint64(totalSize)))
	fmt.Fprintf(w, "  completed: %d of %d files\n", completed, len(rec.Files))
	if failed > 0 {
		fmt.Fprintf(w, "  failed:    %d files\n", failed)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSIZE\tDOWNLOADED\tSTATUS")
	for _, f := range rec.Files {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			f.Filename,
			humanize.Bytes(uint64(f.FileSize)),
			humanize.Bytes(uint64(f.DownloadedSize)),
			f.Status,
		)
	}
	tw.Flush()
}
