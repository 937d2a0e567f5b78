package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-align/internal/align"
	"github.com/inodb/vibe-align/internal/bim"
	"github.com/inodb/vibe-align/internal/duckdb"
	"github.com/inodb/vibe-align/internal/output"
)

func newAlignCmd() *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "align <reference> <target>",
		Short: "Match a target panel against a reference panel and write action lists",
		Long: `Match every target variant against the reference panel and write the
action lists into the output directory. Both panels are PLINK .bim files
(optionally gzipped) or PLINK fileset prefixes. Use '-' to read one of them
from stdin.

In coordinate mode variants match on chromosome and position. In agnostic
mode they match on chromosome, position and the strand-independent allele
pair.`,
		Example: `  vibe-align align ref.bim target.bim
  vibe-align align --mode agnostic -o lists/ ref target
  vibe-align align --arrow decisions.arrow --db runs.duckdb ref.bim target.bim.gz`,
		Args: exactArgs(2),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, map[string]string{
				"align.mode":    "mode",
				"align.workers": "workers",
				"output.dir":    "out-dir",
				"output.prefix": "prefix",
				"output.arrow":  "arrow",
				"output.db":     "db",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlign(cmd, args[0], args[1], runID)
		},
	}

	f := cmd.Flags()
	f.String("mode", "coordinate", "matching mode: coordinate or agnostic")
	f.Int("workers", 0, "chromosome shards resolved in parallel (0 = number of CPUs)")
	f.StringP("out-dir", "o", ".", "directory for the action lists")
	f.String("prefix", "", "file name prefix for the action lists")
	f.String("arrow", "", "also write an Arrow IPC decision report to this path")
	f.String("db", "", "record the run in this DuckDB database")
	f.StringVar(&runID, "run-id", "", "run id stored with --db (default: a time-ordered UUID)")

	return cmd
}

func runAlign(cmd *cobra.Command, refArg, tgtArg, runID string) error {
	logger, err := newLogger(viper.GetBool("log.verbose"))
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	mode, err := align.ParseMode(viper.GetString("align.mode"))
	if err != nil {
		return usageError{err}
	}
	if refArg == "-" && tgtArg == "-" {
		return usageError{fmt.Errorf("only one panel can be read from stdin")}
	}

	refPath := bim.ResolvePath(refArg)
	tgtPath := bim.ResolvePath(tgtArg)

	ref, err := bim.ReadAll(refPath)
	if err != nil {
		return fmt.Errorf("reading reference panel: %w", err)
	}
	tgt, err := bim.ReadAll(tgtPath)
	if err != nil {
		return fmt.Errorf("reading target panel: %w", err)
	}
	logger.Info("loaded panels",
		zap.String("reference", refPath),
		zap.Int("reference_variants", len(ref)),
		zap.String("target", tgtPath),
		zap.Int("target_variants", len(tgt)),
		zap.String("mode", string(mode)))

	resolver := align.NewResolver(align.Options{
		Mode:    mode,
		Workers: viper.GetInt("align.workers"),
	})
	resolver.SetLogger(logger)

	res, err := resolver.Resolve(cmd.Context(), ref, tgt)
	if err != nil {
		return err
	}

	// The report and the stored run are prepared before the lists are
	// written so a failure in either leaves the output directory untouched.
	var arrowTmp string
	emitted := false
	if path := viper.GetString("output.arrow"); path != "" {
		if arrowTmp, err = stageArrowReport(path, res); err != nil {
			return err
		}
		defer os.Remove(arrowTmp)
	}

	if path := viper.GetString("output.db"); path != "" {
		store, id, err := recordRun(logger, path, runID, refPath, tgtPath, res)
		if err != nil {
			return err
		}
		defer store.Close()
		defer func() {
			if emitted {
				return
			}
			if err := store.ClearRun(id); err != nil {
				logger.Warn("could not remove run after failure", zap.String("run", id), zap.Error(err))
			}
		}()
	}

	emitter := output.NewEmitter(viper.GetString("output.dir"))
	emitter.SetPrefix(viper.GetString("output.prefix"))
	emitter.SetLogger(logger)
	if _, err := emitter.Emit(res); err != nil {
		return err
	}
	emitted = true

	if path := viper.GetString("output.arrow"); path != "" {
		if err := os.Rename(arrowTmp, path); err != nil {
			return fmt.Errorf("move decision report into place: %w", err)
		}
		logger.Info("wrote decision report", zap.String("path", path), zap.Int("rows", len(res.Decisions)))
	}

	printStats(cmd.OutOrStdout(), res.Stats())
	return nil
}

// stageArrowReport writes the report to a temporary file next to path and
// returns its name.
func stageArrowReport(path string, res *align.Result) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(path), ".vibe-align-*.arrow")
	if err != nil {
		return "", fmt.Errorf("create decision report: %w", err)
	}
	tmp := f.Name()
	f.Close()

	if err := output.WriteArrowReport(tmp, res); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}

// recordRun stores the result in the DuckDB database at path and returns
// the open store with the id the run was stored under.
func recordRun(logger *zap.Logger, path, runID, refPath, tgtPath string, res *align.Result) (*duckdb.Store, string, error) {
	refFP, err := duckdb.StatFile(refPath)
	if err != nil {
		return nil, "", fmt.Errorf("fingerprint reference panel: %w", err)
	}
	tgtFP, err := duckdb.StatFile(tgtPath)
	if err != nil {
		return nil, "", fmt.Errorf("fingerprint target panel: %w", err)
	}

	store, err := duckdb.Open(path)
	if err != nil {
		return nil, "", err
	}

	if prev, ok, err := store.FindRun(string(res.Mode), refFP, tgtFP); err != nil {
		store.Close()
		return nil, "", err
	} else if ok && prev.ID != runID {
		logger.Info("panels unchanged since an earlier run",
			zap.String("previous_run", prev.ID),
			zap.Time("previous_created", prev.CreatedAt))
	}

	if runID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			store.Close()
			return nil, "", fmt.Errorf("generating run id: %w", err)
		}
		runID = id.String()
	}
	run := duckdb.Run{ID: runID, Reference: refFP, Target: tgtFP, CreatedAt: time.Now().UTC()}
	if err := store.WriteRun(run, res); err != nil {
		store.Close()
		return nil, "", fmt.Errorf("recording run %s: %w", runID, err)
	}
	logger.Info("recorded run", zap.String("db", path), zap.String("run", runID))
	return store, runID, nil
}

func printStats(w io.Writer, st align.Stats) {
	fmt.Fprintf(w, "Stats: RefTotal=%d | Kept=%d | Dummy=%d | Removed=%d | Flipped=%d\n",
		st.RefTotal, st.Kept, st.Dummy, st.Removed, st.Flipped)
	fmt.Fprintf(w, "Check sum: %d (should match RefTotal)\n", st.Checksum())
}
