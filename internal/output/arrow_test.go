package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-align/internal/align"
)

// readReport reads every row of an Arrow decision report.
func readReport(t *testing.T, path string) (int, []align.Decision) {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := ipc.NewFileReader(f)
	require.NoError(t, err)
	defer r.Close()

	assert.True(t, r.Schema().Equal(ReportSchema))

	var decisions []align.Decision
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		require.NoError(t, err)

		targets := rec.Column(0).(*array.String)
		refs := rec.Column(1).(*array.String)
		chroms := rec.Column(2).(*array.String)
		pos := rec.Column(3).(*array.Int64)
		actions := rec.Column(4).(*array.String)
		rels := rec.Column(5).(*array.String)
		pal := rec.Column(6).(*array.Boolean)
		reasons := rec.Column(7).(*array.String)

		for j := 0; j < int(rec.NumRows()); j++ {
			decisions = append(decisions, align.Decision{
				TargetID:     targets.Value(j),
				RefID:        refs.Value(j),
				Chrom:        chroms.Value(j),
				Pos:          pos.Value(j),
				Action:       actions.Value(j),
				Relationship: rels.Value(j),
				Palindromic:  pal.Value(j),
				Reason:       reasons.Value(j),
			})
		}
	}
	return r.NumRecords(), decisions
}

func TestWriteArrowReport(t *testing.T) {
	ref, tgt := testPanels()
	res, err := align.Resolve(ref, tgt, align.Options{Workers: 1})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "decisions.arrow")
	require.NoError(t, WriteArrowReport(path, res))

	batches, got := readReport(t, path)
	assert.Equal(t, 1, batches)
	assert.Equal(t, res.Decisions, got)

	require.Len(t, got, 4)
	assert.Equal(t, align.ActionFlip, got[1].Action)
	assert.Equal(t, "flip", got[1].Relationship)
	assert.Equal(t, align.ReasonIncompatible, got[2].Reason)
	assert.Equal(t, "rsB", got[2].RefID)
	assert.Equal(t, align.ReasonUnmatched, got[3].Reason)
}

func TestArrowReportWriter_Chunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.arrow")
	w, err := NewArrowReportWriter(path, 3)
	require.NoError(t, err)

	var want []align.Decision
	for i := 0; i < 10; i++ {
		d := align.Decision{
			TargetID: "t" + string(rune('a'+i)),
			Chrom:    "1",
			Pos:      int64(i),
			Action:   align.ActionRemove,
			Reason:   align.ReasonUnmatched,
		}
		want = append(want, d)
		require.NoError(t, w.Write(d))
	}
	require.NoError(t, w.Close())

	batches, got := readReport(t, path)
	assert.Equal(t, 4, batches)
	assert.Equal(t, want, got)
}

func TestArrowReportWriter_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.arrow")
	w, err := NewArrowReportWriter(path, 0)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	batches, got := readReport(t, path)
	assert.Zero(t, batches)
	assert.Empty(t, got)
}
