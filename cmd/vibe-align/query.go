package main

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-align/internal/align"
	"github.com/inodb/vibe-align/internal/duckdb"
)

type queryOptions struct {
	filter  duckdb.DecisionFilter
	summary bool
	runs    bool
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Inspect runs recorded with align --db",
		Example: `  vibe-align query --db runs.duckdb --runs
  vibe-align query --db runs.duckdb --run r1 --action remove
  vibe-align query --db runs.duckdb --run r1 --summary
  vibe-align query --db runs.duckdb --target rs123`,
		Args: exactArgs(0),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, map[string]string{"output.db": "db"})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.OutOrStdout(), viper.GetString("output.db"), opts)
		},
	}

	f := cmd.Flags()
	f.String("db", "", "DuckDB database written by align --db")
	f.StringVar(&opts.filter.RunID, "run", "", "only decisions of this run")
	f.StringVar(&opts.filter.Action, "action", "", "only decisions with this action: keep, flip or remove")
	f.StringVar(&opts.filter.TargetID, "target", "", "only decisions for this target variant id")
	f.StringVar(&opts.filter.RefID, "ref", "", "only decisions mapped to this reference variant id")
	f.BoolVar(&opts.summary, "summary", false, "print per-action counts for --run instead of decisions")
	f.BoolVar(&opts.runs, "runs", false, "list recorded runs")

	return cmd
}

func runQuery(w io.Writer, dbPath string, opts queryOptions) error {
	if dbPath == "" {
		return usageError{fmt.Errorf("--db is required")}
	}
	switch opts.filter.Action {
	case "", align.ActionKeep, align.ActionFlip, align.ActionRemove:
	default:
		return usageError{fmt.Errorf("unknown action %q (want keep, flip or remove)", opts.filter.Action)}
	}
	if opts.summary && opts.filter.RunID == "" {
		return usageError{fmt.Errorf("--summary requires --run")}
	}

	store, err := duckdb.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	bw := bufio.NewWriter(w)
	switch {
	case opts.runs:
		err = writeRuns(bw, store)
	case opts.summary:
		err = writeSummary(bw, store, opts.filter.RunID)
	default:
		err = writeDecisions(bw, store, opts.filter)
	}
	if err != nil {
		return err
	}
	return bw.Flush()
}

func writeRuns(w io.Writer, store *duckdb.Store) error {
	runs, err := store.Runs()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "run_id\tmode\tcreated\treference\ttarget\tref_total\tkept\tflipped\tremoved\tdummy")
	for _, r := range runs {
		fmt.Fprintln(w, strings.Join([]string{
			r.ID, r.Mode, r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			r.Reference.Path, r.Target.Path,
			strconv.Itoa(r.Stats.RefTotal), strconv.Itoa(r.Stats.Kept),
			strconv.Itoa(r.Stats.Flipped), strconv.Itoa(r.Stats.Removed),
			strconv.Itoa(r.Stats.Dummy),
		}, "\t"))
	}
	return nil
}

func writeSummary(w io.Writer, store *duckdb.Store, runID string) error {
	counts, err := store.ActionCounts(runID)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		return fmt.Errorf("no decisions recorded for run %q", runID)
	}

	actions := make([]string, 0, len(counts))
	for a := range counts {
		actions = append(actions, a)
	}
	sort.Strings(actions)

	fmt.Fprintln(w, "action\tcount")
	for _, a := range actions {
		fmt.Fprintf(w, "%s\t%d\n", a, counts[a])
	}
	return nil
}

func writeDecisions(w io.Writer, store *duckdb.Store, filter duckdb.DecisionFilter) error {
	decisions, err := store.Decisions(filter)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "run_id\ttarget_id\tref_id\tchrom\tpos\taction\trelationship\tpalindromic\treason")
	for _, d := range decisions {
		fmt.Fprintln(w, strings.Join([]string{
			d.RunID, d.TargetID, d.RefID, d.Chrom,
			strconv.FormatInt(d.Pos, 10),
			d.Action, d.Relationship,
			strconv.FormatBool(d.Palindromic),
			d.Reason,
		}, "\t"))
	}
	return nil
}
