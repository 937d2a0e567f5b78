package bim

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// numColumns is the fixed column count of a .bim row.
const numColumns = 6

// Reader reads variant records from a .bim file.
type Reader struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int
}

// NewReader creates a reader for the given .bim file.
// Supports both plain and gzipped (.bim.gz) files.
func NewReader(path string) (*Reader, error) {
	if path == "-" {
		return NewReaderFromReader(os.Stdin), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bim file: %w", err)
	}

	r := &Reader{file: file}

	// Check for gzip magic number (0x1f, 0x8b)
	br := bufio.NewReader(file)
	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		r.gzipReader, err = gzip.NewReader(br)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		r.reader = bufio.NewReader(r.gzipReader)
	} else {
		r.reader = br
	}

	return r, nil
}

// NewReaderFromReader creates a reader from an io.Reader (e.g., stdin).
func NewReaderFromReader(rd io.Reader) *Reader {
	return &Reader{reader: bufio.NewReader(rd)}
}

// Next reads the next record.
// Returns nil, nil when there are no more records.
func (r *Reader) Next() (*Record, error) {
	for {
		line, err := r.reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read bim line: %w", err)
		}
		if err == io.EOF && line == "" {
			return nil, nil
		}
		r.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			if err == io.EOF {
				return nil, nil
			}
			continue // Skip blank lines
		}

		return r.parseLine(line)
	}
}

// parseLine parses a single whitespace-delimited row into a Record.
func (r *Reader) parseLine(line string) (*Record, error) {
	fields := strings.Fields(line)
	if len(fields) != numColumns {
		return nil, &ParseError{
			Line:    r.lineNumber,
			Message: fmt.Sprintf("expected %d columns, found %d", numColumns, len(fields)),
		}
	}

	cm, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return nil, &ParseError{
			Line:    r.lineNumber,
			Message: fmt.Sprintf("invalid genetic distance: %s", fields[2]),
		}
	}

	pos, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, &ParseError{
			Line:    r.lineNumber,
			Message: fmt.Sprintf("invalid position: %s", fields[3]),
		}
	}

	return &Record{
		Chrom:   fields[0],
		ID:      fields[1],
		CM:      cm,
		CMText:  fields[2],
		Pos:     pos,
		Allele1: fields[4],
		Allele2: fields[5],
		Line:    r.lineNumber,
	}, nil
}

// Close closes the reader and underlying file.
func (r *Reader) Close() error {
	if r.gzipReader != nil {
		r.gzipReader.Close()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// ReadAll reads every record from a .bim file.
// Parse errors carry the file path.
func ReadAll(path string) ([]Record, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	records, err := readAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// ReadAllFrom reads every record from an io.Reader.
func ReadAllFrom(rd io.Reader) ([]Record, error) {
	return readAll(NewReaderFromReader(rd))
}

func readAll(r *Reader) ([]Record, error) {
	var records []Record
	for {
		rec, err := r.Next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return records, nil
		}
		records = append(records, *rec)
	}
}

// ResolvePath accepts either a .bim path or a PLINK fileset prefix.
// If pathOrPrefix does not exist but pathOrPrefix+".bim" does, the latter
// is returned.
func ResolvePath(pathOrPrefix string) string {
	if pathOrPrefix == "-" {
		return pathOrPrefix
	}
	if _, err := os.Stat(pathOrPrefix); err == nil {
		return pathOrPrefix
	}
	if _, err := os.Stat(pathOrPrefix + ".bim"); err == nil {
		return pathOrPrefix + ".bim"
	}
	return pathOrPrefix
}

// ParseError represents an error during .bim parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("bim parse error at line %d: %s", e.Line, e.Message)
}
