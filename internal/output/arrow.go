package output

import (
	"bufio"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/inodb/vibe-align/internal/align"
)

// ReportSchema is the column layout of the Arrow decision report.
var ReportSchema = arrow.NewSchema([]arrow.Field{
	{Name: "target_id", Type: arrow.BinaryTypes.String},
	{Name: "ref_id", Type: arrow.BinaryTypes.String},
	{Name: "chrom", Type: arrow.BinaryTypes.String},
	{Name: "pos", Type: arrow.PrimitiveTypes.Int64},
	{Name: "action", Type: arrow.BinaryTypes.String},
	{Name: "relationship", Type: arrow.BinaryTypes.String},
	{Name: "palindromic", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "reason", Type: arrow.BinaryTypes.String},
}, nil)

// DefaultChunkSize is the number of decisions per Arrow record batch.
const DefaultChunkSize = 65536

// ArrowReportWriter writes decisions to an Arrow IPC file in record batches.
type ArrowReportWriter struct {
	file      *os.File
	buf       *bufio.Writer
	writer    *ipc.FileWriter
	builder   *array.RecordBuilder
	chunkSize int
	rows      int
}

// NewArrowReportWriter creates the report file at path.
// If chunkSize is 0, DefaultChunkSize is used.
func NewArrowReportWriter(path string, chunkSize int) (*ArrowReportWriter, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create arrow report: %w", err)
	}

	pool := memory.NewGoAllocator()
	buf := bufio.NewWriter(file)
	writer, err := ipc.NewFileWriter(buf, ipc.WithSchema(ReportSchema), ipc.WithAllocator(pool))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("create arrow writer: %w", err)
	}

	return &ArrowReportWriter{
		file:      file,
		buf:       buf,
		writer:    writer,
		builder:   array.NewRecordBuilder(pool, ReportSchema),
		chunkSize: chunkSize,
	}, nil
}

// Write appends one decision, flushing a record batch when the chunk is full.
func (aw *ArrowReportWriter) Write(d align.Decision) error {
	b := aw.builder
	b.Field(0).(*array.StringBuilder).Append(d.TargetID)
	b.Field(1).(*array.StringBuilder).Append(d.RefID)
	b.Field(2).(*array.StringBuilder).Append(d.Chrom)
	b.Field(3).(*array.Int64Builder).Append(d.Pos)
	b.Field(4).(*array.StringBuilder).Append(d.Action)
	b.Field(5).(*array.StringBuilder).Append(d.Relationship)
	b.Field(6).(*array.BooleanBuilder).Append(d.Palindromic)
	b.Field(7).(*array.StringBuilder).Append(d.Reason)

	aw.rows++
	if aw.rows == aw.chunkSize {
		return aw.writeChunk()
	}
	return nil
}

func (aw *ArrowReportWriter) writeChunk() error {
	// NewRecord resets the builder for the next chunk
	record := aw.builder.NewRecord()
	defer record.Release()

	if err := aw.writer.Write(record); err != nil {
		return fmt.Errorf("write arrow record: %w", err)
	}
	aw.rows = 0
	return nil
}

// Close writes any remaining rows and the file footer.
func (aw *ArrowReportWriter) Close() error {
	defer aw.builder.Release()

	if aw.rows > 0 {
		if err := aw.writeChunk(); err != nil {
			aw.file.Close()
			return err
		}
	}
	if err := aw.writer.Close(); err != nil {
		aw.file.Close()
		return fmt.Errorf("close arrow writer: %w", err)
	}
	if err := aw.buf.Flush(); err != nil {
		aw.file.Close()
		return fmt.Errorf("flush arrow report: %w", err)
	}
	return aw.file.Close()
}

// WriteArrowReport writes all decisions of a result to an Arrow IPC file.
func WriteArrowReport(path string, res *align.Result) error {
	aw, err := NewArrowReportWriter(path, 0)
	if err != nil {
		return err
	}
	for _, d := range res.Decisions {
		if err := aw.Write(d); err != nil {
			aw.Close()
			return err
		}
	}
	return aw.Close()
}
