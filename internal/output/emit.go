// Package output writes reconciliation results for downstream tools.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/vibe-align/internal/align"
	"github.com/inodb/vibe-align/internal/bim"
)

// Action list file names.
const (
	KeepFile        = "keep.txt"
	ExtractFile     = "extract.txt"
	UpdateIDsFile   = "update_ids.txt"
	RemoveFile      = "remove.txt"
	FlipFile        = "flip.txt"
	ForceAlleleFile = "force_allele.txt"
	DummyFile       = "dummy_template.bim"
	MissingFile     = "missing_variants.bim.txt"
	RefAllelesFile  = "ref_alleles.txt"
	FinalOrderFile  = "final_order.txt"
)

// listFile is one emitted file and the function that fills it.
type listFile struct {
	name  string
	write func(w *bufio.Writer) error
}

// Emitter writes action lists into a directory. Either every file is
// written or none is.
type Emitter struct {
	dir    string
	prefix string
	logger *zap.Logger
}

// NewEmitter creates an emitter writing into dir.
func NewEmitter(dir string) *Emitter {
	return &Emitter{
		dir:    dir,
		logger: zap.NewNop(),
	}
}

// SetPrefix sets a prefix prepended to every file name.
func (e *Emitter) SetPrefix(prefix string) {
	e.prefix = prefix
}

// SetLogger sets the logger for progress messages.
func (e *Emitter) SetLogger(l *zap.Logger) {
	e.logger = l
}

// Files returns the file names Emit writes for the given mode, in write order.
func (e *Emitter) Files(mode align.Mode) []string {
	var names []string
	for _, f := range e.plan(mode, nil) {
		names = append(names, e.prefix+f.name)
	}
	return names
}

func (e *Emitter) plan(mode align.Mode, res *align.Result) []listFile {
	keep := func(w *bufio.Writer) error { return writeLines(w, res.KeptIDs()) }
	updateIDs := func(w *bufio.Writer) error {
		ids := res.KeptIDs()
		rows := make([][]string, len(ids))
		for i, id := range ids {
			rows[i] = []string{id, res.Keep[id]}
		}
		return writeRows(w, rows)
	}
	remove := func(w *bufio.Writer) error { return writeLines(w, res.RemovedIDs()) }
	flip := func(w *bufio.Writer) error { return writeLines(w, res.FlippedIDs()) }
	dummy := func(w *bufio.Writer) error { return writeRecords(w, res.Dummy) }
	finalOrder := func(w *bufio.Writer) error { return writeLines(w, res.FinalOrder()) }

	if mode == align.ModeAgnostic {
		return []listFile{
			{ExtractFile, keep},
			{UpdateIDsFile, updateIDs},
			{RemoveFile, remove},
			{FlipFile, flip},
			{MissingFile, dummy},
			{RefAllelesFile, func(w *bufio.Writer) error {
				rows := make([][]string, len(res.Reference))
				for i, r := range res.Reference {
					rows[i] = []string{r.ID, r.Allele1, r.Allele2}
				}
				return writeRows(w, rows)
			}},
			{FinalOrderFile, finalOrder},
		}
	}

	return []listFile{
		{KeepFile, keep},
		{UpdateIDsFile, updateIDs},
		{RemoveFile, remove},
		{FlipFile, flip},
		{ForceAlleleFile, func(w *bufio.Writer) error {
			ids := res.KeptIDs()
			rows := make([][]string, len(ids))
			for i, id := range ids {
				rows[i] = []string{id, res.ForceAllele[id]}
			}
			return writeRows(w, rows)
		}},
		{DummyFile, dummy},
		{FinalOrderFile, finalOrder},
	}
}

// rename is replaced in tests to simulate a failed move.
var rename = os.Rename

// Emit writes every action list for the result's mode and returns the
// written paths. Files are staged in a temporary directory and moved into
// place only once all of them were written. Lists from an earlier run are
// moved aside first and restored if a move fails, so the directory holds
// either the previous lists or the new ones.
func (e *Emitter) Emit(res *align.Result) ([]string, error) {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	files := e.plan(res.Mode, res)
	for _, f := range files {
		dst := filepath.Join(e.dir, e.prefix+f.name)
		if info, err := os.Lstat(dst); err == nil && info.IsDir() {
			return nil, fmt.Errorf("output path %s is a directory", dst)
		}
	}

	staging, err := os.MkdirTemp(e.dir, ".vibe-align-*")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	for _, f := range files {
		if err := writeFile(filepath.Join(staging, e.prefix+f.name), f.write); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.name, err)
		}
	}

	backups := make(map[string]string) // destination -> saved previous file
	var written []string
	rollback := func() {
		for _, p := range written {
			os.Remove(p)
		}
		for dst, saved := range backups {
			if err := rename(saved, dst); err != nil {
				e.logger.Warn("could not restore previous action list",
					zap.String("path", dst), zap.Error(err))
			}
		}
	}

	for _, f := range files {
		name := e.prefix + f.name
		src := filepath.Join(staging, name)
		dst := filepath.Join(e.dir, name)

		if _, err := os.Lstat(dst); err == nil {
			saved := filepath.Join(staging, "previous."+name)
			if err := rename(dst, saved); err != nil {
				rollback()
				return nil, fmt.Errorf("move previous %s aside: %w", f.name, err)
			}
			backups[dst] = saved
		}

		if err := rename(src, dst); err != nil {
			rollback()
			return nil, fmt.Errorf("move %s into place: %w", f.name, err)
		}
		written = append(written, dst)
		e.logger.Debug("wrote action list", zap.String("path", dst))
	}

	return written, nil
}

func writeFile(path string, fill func(w *bufio.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	if err := fill(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeLines(w io.StringWriter, lines []string) error {
	for _, l := range lines {
		if _, err := w.WriteString(l + "\n"); err != nil {
			return err
		}
	}
	return nil
}

func writeRows(w io.StringWriter, rows [][]string) error {
	for _, r := range rows {
		if _, err := w.WriteString(strings.Join(r, "\t") + "\n"); err != nil {
			return err
		}
	}
	return nil
}

func writeRecords(w io.StringWriter, records []bim.Record) error {
	for i := range records {
		if _, err := w.WriteString(strings.Join(records[i].Fields(), "\t") + "\n"); err != nil {
			return err
		}
	}
	return nil
}
