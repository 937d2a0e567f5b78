package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-align/internal/align"
)

// Run describes one stored reconciliation.
type Run struct {
	ID        string
	Mode      string
	Reference FileFingerprint
	Target    FileFingerprint
	Stats     align.Stats
	CreatedAt time.Time
}

// WriteRun stores a run and all of its decisions and dummy records,
// replacing any earlier run with the same id.
func (s *Store) WriteRun(run Run, res *align.Result) error {
	if err := s.ClearRun(run.ID); err != nil {
		return fmt.Errorf("clear previous run: %w", err)
	}

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	st := res.Stats()
	if _, err := s.db.Exec(`INSERT INTO align_runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(res.Mode),
		run.Reference.Path, run.Reference.Size, run.Reference.ModTime,
		run.Target.Path, run.Target.Size, run.Target.ModTime,
		int64(st.RefTotal), int64(st.Kept), int64(st.Flipped), int64(st.Removed), int64(st.Dummy),
		run.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	if err := appendRows(conn, "decisions", len(res.Decisions), func(i int) []driver.Value {
		d := res.Decisions[i]
		return []driver.Value{
			run.ID, int64(i), d.TargetID, d.RefID, d.Chrom, d.Pos,
			d.Action, d.Relationship, d.Palindromic, d.Reason,
		}
	}); err != nil {
		return fmt.Errorf("append decisions: %w", err)
	}

	if err := appendRows(conn, "dummies", len(res.Dummy), func(i int) []driver.Value {
		r := res.Dummy[i]
		return []driver.Value{run.ID, int64(i), r.ID, r.Chrom, r.CM, r.Pos, r.Allele1, r.Allele2}
	}); err != nil {
		return fmt.Errorf("append dummies: %w", err)
	}

	return nil
}

// appendRows batch-inserts n rows into table using the Appender API.
func appendRows(conn interface {
	Raw(func(any) error) error
}, table string, n int, row func(int) []driver.Value) error {
	if n == 0 {
		return nil
	}

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for i := 0; i < n; i++ {
		if err := appender.AppendRow(row(i)...); err != nil {
			return err
		}
	}
	return appender.Flush()
}

// ClearRun removes a run and its rows.
func (s *Store) ClearRun(runID string) error {
	for _, table := range []string{"decisions", "dummies", "align_runs"} {
		if _, err := s.db.Exec("DELETE FROM "+table+" WHERE run_id = ?", runID); err != nil {
			return err
		}
	}
	return nil
}

// Runs lists stored runs, newest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT
		run_id, mode,
		reference, reference_size, reference_mtime,
		target, target_size, target_mtime,
		ref_total, kept, flipped, removed, dummy, created_at
		FROM align_runs
		ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(
			&r.ID, &r.Mode,
			&r.Reference.Path, &r.Reference.Size, &r.Reference.ModTime,
			&r.Target.Path, &r.Target.Size, &r.Target.ModTime,
			&r.Stats.RefTotal, &r.Stats.Kept, &r.Stats.Flipped, &r.Stats.Removed, &r.Stats.Dummy,
			&r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// FindRun returns the newest stored run of the given mode whose panel
// fingerprints match ref and tgt.
func (s *Store) FindRun(mode string, ref, tgt FileFingerprint) (Run, bool, error) {
	runs, err := s.Runs()
	if err != nil {
		return Run{}, false, err
	}
	for _, r := range runs {
		if r.Mode == mode && r.Reference.Matches(ref) && r.Target.Matches(tgt) {
			return r, true, nil
		}
	}
	return Run{}, false, nil
}

// DecisionFilter restricts Decisions. Empty fields match everything.
type DecisionFilter struct {
	RunID    string
	Action   string
	TargetID string
	RefID    string
}

func (f DecisionFilter) where() (string, []any) {
	var conds []string
	var args []any
	add := func(col, val string) {
		if val != "" {
			conds = append(conds, col+" = ?")
			args = append(args, val)
		}
	}
	add("run_id", f.RunID)
	add("action", f.Action)
	add("target_id", f.TargetID)
	add("ref_id", f.RefID)

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// StoredDecision is a decision together with the run it belongs to.
type StoredDecision struct {
	RunID string
	align.Decision
}

// Decisions queries stored decisions matching the filter, ordered by run
// and then target panel order.
func (s *Store) Decisions(f DecisionFilter) ([]StoredDecision, error) {
	where, args := f.where()
	rows, err := s.db.Query(`SELECT
		run_id, target_id, ref_id, chrom, pos,
		action, relationship, palindromic, reason
		FROM decisions`+where+`
		ORDER BY run_id, seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []StoredDecision
	for rows.Next() {
		var d StoredDecision
		if err := rows.Scan(
			&d.RunID, &d.TargetID, &d.RefID, &d.Chrom, &d.Pos,
			&d.Action, &d.Relationship, &d.Palindromic, &d.Reason,
		); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return out, nil
}

// ActionCounts returns the number of decisions per action for a run.
func (s *Store) ActionCounts(runID string) (map[string]int, error) {
	rows, err := s.db.Query(`SELECT action, COUNT(*) FROM decisions
		WHERE run_id = ? GROUP BY action`, runID)
	if err != nil {
		return nil, fmt.Errorf("query action counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, fmt.Errorf("scan action count: %w", err)
		}
		counts[action] = n
	}
	return counts, rows.Err()
}

// DummyIDs returns the padded reference ids of a run in reference order.
func (s *Store) DummyIDs(runID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT ref_id FROM dummies WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query dummies: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan dummy: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
