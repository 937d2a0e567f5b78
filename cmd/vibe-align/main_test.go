package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-align/internal/output"
)

const (
	refPanel = "1\trs1\t0\t100\tA\tG\n" +
		"1\trs2\t0\t200\tC\tA\n" +
		"2\trs3\t0.5\t300\tC\tT\n"
	targetPanel = "chr1\tt1\t0\t100\tA\tG\n" +
		"chr1\tt2\t0\t200\tG\tT\n" +
		"chr2\tt3\t0\t300\tA\tC\n" +
		"chr9\tt4\t0\t900\tA\tC\n"
)

// execute runs the CLI with a fresh viper instance and an empty HOME.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writePanels(t *testing.T) (dir, ref, tgt string) {
	t.Helper()
	dir = t.TempDir()
	ref = filepath.Join(dir, "ref.bim")
	tgt = filepath.Join(dir, "target.bim")
	require.NoError(t, os.WriteFile(ref, []byte(refPanel), 0644))
	require.NoError(t, os.WriteFile(tgt, []byte(targetPanel), 0644))
	return dir, ref, tgt
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestAlignCommand(t *testing.T) {
	dir, ref, tgt := writePanels(t)
	outDir := filepath.Join(dir, "lists")

	out, err := execute(t, "align", "-o", outDir, ref, tgt)
	require.NoError(t, err)

	assert.Contains(t, out, "Stats: RefTotal=3 | Kept=2 | Dummy=1 | Removed=2 | Flipped=1")
	assert.Contains(t, out, "Check sum: 3 (should match RefTotal)")

	assert.Equal(t, "t1\nt2\n", readFile(t, filepath.Join(outDir, output.KeepFile)))
	assert.Equal(t, "t3\nt4\n", readFile(t, filepath.Join(outDir, output.RemoveFile)))
	assert.Equal(t, "t2\n", readFile(t, filepath.Join(outDir, output.FlipFile)))
	assert.Equal(t, "2\trs3\t0.5\t300\tC\tT\n", readFile(t, filepath.Join(outDir, output.DummyFile)))
}

func TestAlignCommand_PrefixResolution(t *testing.T) {
	dir, _, _ := writePanels(t)
	outDir := filepath.Join(dir, "lists")

	_, err := execute(t, "align", "--mode", "agnostic", "--prefix", "x.", "-o", outDir,
		filepath.Join(dir, "ref"), filepath.Join(dir, "target"))
	require.NoError(t, err)

	assert.Equal(t, "t1\nt2\n", readFile(t, filepath.Join(outDir, "x."+output.ExtractFile)))
	assert.Equal(t, "t3\nt4\n", readFile(t, filepath.Join(outDir, "x."+output.RemoveFile)))
}

func TestAlignCommand_ConfigFile(t *testing.T) {
	dir, ref, tgt := writePanels(t)
	outDir := filepath.Join(dir, "from-config")
	cfg := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("align:\n  mode: agnostic\noutput:\n  dir: "+outDir+"\n"), 0644))

	_, err := execute(t, "--config", cfg, "align", ref, tgt)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(outDir, output.ExtractFile))
	assert.NoError(t, err)
}

func TestAlignCommand_UsageErrors(t *testing.T) {
	_, ref, tgt := writePanels(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing target", []string{"align", ref}},
		{"bad mode", []string{"align", "--mode", "fuzzy", ref, tgt}},
		{"two stdin panels", []string{"align", "-", "-"}},
		{"unknown flag", []string{"align", "--nope", ref, tgt}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			var ue usageError
			assert.True(t, errors.As(err, &ue), "want usage error, got %v", err)
		})
	}
}

func TestAlignCommand_BadPanel(t *testing.T) {
	dir, ref, _ := writePanels(t)
	bad := filepath.Join(dir, "bad.bim")
	require.NoError(t, os.WriteFile(bad, []byte("1\tt1\t0\n"), 0644))

	_, err := execute(t, "align", "-o", filepath.Join(dir, "out"), ref, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading target panel")
	assert.Contains(t, err.Error(), "line 1")

	var ue usageError
	assert.False(t, errors.As(err, &ue))
}

func TestAlignAndQuery(t *testing.T) {
	dir, ref, tgt := writePanels(t)
	db := filepath.Join(dir, "runs.duckdb")
	arrowPath := filepath.Join(dir, "decisions.arrow")

	_, err := execute(t, "align", "-o", filepath.Join(dir, "out"),
		"--db", db, "--run-id", "r1", "--arrow", arrowPath, ref, tgt)
	require.NoError(t, err)

	_, err = os.Stat(arrowPath)
	require.NoError(t, err)

	out, err := execute(t, "query", "--db", db, "--run", "r1", "--action", "remove")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "run_id\ttarget_id"))
	assert.Equal(t, "r1\tt3\trs3\tchr2\t300\tremove\tincompatible\tfalse\tincompatible", lines[1])
	assert.Equal(t, "r1\tt4\t\tchr9\t900\tremove\t\tfalse\tunmatched", lines[2])

	out, err = execute(t, "query", "--db", db, "--run", "r1", "--summary")
	require.NoError(t, err)
	assert.Equal(t, "action\tcount\nflip\t1\nkeep\t1\nremove\t2\n", out)

	out, err = execute(t, "query", "--db", db, "--runs")
	require.NoError(t, err)
	assert.Contains(t, out, "r1\tcoordinate\t")
	assert.Contains(t, out, ref)
}

func TestQueryCommand_UsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{"query"},
		{"query", "--db", "x.duckdb", "--action", "maybe"},
		{"query", "--db", "x.duckdb", "--summary"},
	} {
		_, err := execute(t, args...)
		require.Error(t, err, args)
		var ue usageError
		assert.True(t, errors.As(err, &ue), args)
	}
}

func TestConfigSetGet(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("align:\n  mode: coordinate\n"), 0644))

	out, err := execute(t, "--config", cfg, "config", "set", "align.workers", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "Set align.workers = 4 in "+cfg)

	out, err = execute(t, "--config", cfg, "config", "get", "align.workers")
	require.NoError(t, err)
	assert.Equal(t, "4\n", out)

	out, err = execute(t, "--config", cfg, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "workers: 4")

	_, err = execute(t, "--config", cfg, "config", "get", "no.such.key")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "vibe-align version dev (none) built unknown\n", out)
}

func TestAlignCommand_GeneratedRunID(t *testing.T) {
	dir, ref, tgt := writePanels(t)
	db := filepath.Join(dir, "runs.duckdb")

	for i := 0; i < 2; i++ {
		_, err := execute(t, "align", "-o", filepath.Join(dir, "out"), "--db", db, ref, tgt)
		require.NoError(t, err)
	}

	out, err := execute(t, "query", "--db", db, "--runs")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)

	first := strings.SplitN(lines[1], "\t", 2)[0]
	second := strings.SplitN(lines[2], "\t", 2)[0]
	assert.Len(t, first, 36)
	assert.NotEqual(t, first, second)
}

func TestAlignCommand_FailedReportLeavesNoLists(t *testing.T) {
	dir, ref, tgt := writePanels(t)
	notDir := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(notDir, []byte("x"), 0644))

	tests := []struct {
		name string
		args []string
	}{
		{"arrow in missing directory", []string{"--arrow", filepath.Join(dir, "missing", "d.arrow")}},
		{"database under a file", []string{"--db", filepath.Join(notDir, "runs.duckdb")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outDir := filepath.Join(t.TempDir(), "lists")
			args := append([]string{"align", "-o", outDir}, tt.args...)
			_, err := execute(t, append(args, ref, tgt)...)
			require.Error(t, err)

			_, err = os.Stat(filepath.Join(outDir, output.KeepFile))
			assert.True(t, os.IsNotExist(err), "keep list written despite failure")
		})
	}
}

func TestAlignCommand_ReportStagedBesideTarget(t *testing.T) {
	dir, ref, tgt := writePanels(t)
	reports := filepath.Join(dir, "reports")
	require.NoError(t, os.Mkdir(reports, 0755))

	_, err := execute(t, "align", "-o", filepath.Join(dir, "out"),
		"--arrow", filepath.Join(reports, "d.arrow"), ref, tgt)
	require.NoError(t, err)

	entries, err := os.ReadDir(reports)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "d.arrow", entries[0].Name())
}

func TestConfigSet_WritesOnlyFileKeys(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("align:\n  mode: agnostic\n"), 0644))

	_, err := execute(t, "--config", cfg, "config", "set", "output.prefix", "x.")
	require.NoError(t, err)

	written := readFile(t, cfg)
	assert.Contains(t, written, "mode: agnostic")
	assert.Contains(t, written, "prefix: x.")
	assert.NotContains(t, written, "workers")
	assert.NotContains(t, written, "verbose")
	assert.NotContains(t, written, "dir:")
}

func TestConfigShow_NoFile(t *testing.T) {
	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "No configuration set")

	_, err = execute(t, "config", "set", "align.mode", "agnostic")
	require.NoError(t, err)
}
