// Package export persists decoded monitoring results as Parquet files
// so downstream analysis tooling can query region-level access data
// without knowing the native record formats.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/xtxerr/damonctl/config"
	"github.com/xtxerr/damonctl/internal/logging"
	"github.com/xtxerr/damonctl/internal/record"
)

var log = logging.Component("export")

// Options configures the Parquet output.
type Options struct {
	Compression CompressionType
}

// CompressionType names a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// DefaultOptions returns the default output configuration.
func DefaultOptions() Options {
	return Options{Compression: ParseCompressionType(config.DefaultExportCompression)}
}

// ParseCompressionType parses a compression name. Unknown names fall
// back to zstd.
func ParseCompressionType(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "zstd":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	case "gzip":
		return CompressionGzip
	case "none", "":
		return CompressionNone
	default:
		return CompressionZstd
	}
}

func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// RegionRow is one monitored region in Parquet form, denormalized
// with its snapshot's identity and time window.
type RegionRow struct {
	TargetID        uint64 `parquet:"target_id"`
	SnapshotStartNs int64  `parquet:"snapshot_start_ns"`
	SnapshotEndNs   int64  `parquet:"snapshot_end_ns"`
	Start           uint64 `parquet:"start"`
	End             uint64 `parquet:"end"`
	SzBytes         uint64 `parquet:"sz_bytes"`
	NrAccesses      int32  `parquet:"nr_accesses"`
	Age             int32  `parquet:"age"`
}

func regionToRow(s *record.Snapshot, r *record.Region) RegionRow {
	return RegionRow{
		TargetID:        s.TargetID,
		SnapshotStartNs: s.StartTimeNs,
		SnapshotEndNs:   s.EndTimeNs,
		Start:           r.Start,
		End:             r.End,
		SzBytes:         r.Sz(),
		NrAccesses:      int32(r.NrAccesses),
		Age:             int32(r.Age),
	}
}

// Writer writes region rows to a Parquet file.
type Writer struct {
	path     string
	file     *os.File
	writer   *parquet.GenericWriter[RegionRow]
	rowCount int64
}

// NewWriter creates the output file, creating parent directories as
// needed.
func NewWriter(path string, opts Options) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	writer := parquet.NewGenericWriter[RegionRow](f,
		parquet.Compression(getCompression(opts.Compression)))
	return &Writer{path: path, file: f, writer: writer}, nil
}

// WriteResult appends every region of every snapshot of res, in
// target appearance order and snapshot sequence order.
func (w *Writer) WriteResult(res *record.Result) error {
	var rows []RegionRow
	for _, targetID := range res.TargetIDs() {
		for _, s := range res.Snapshots(targetID) {
			for _, r := range s.Regions {
				rows = append(rows, regionToRow(s, r))
			}
		}
	}
	if len(rows) == 0 {
		return nil
	}
	n, err := w.writer.Write(rows)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	w.rowCount += int64(n)
	return nil
}

// RowCount returns the number of rows written so far.
func (w *Writer) RowCount() int64 {
	return w.rowCount
}

// Close flushes and closes the output file.
func (w *Writer) Close() error {
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close writer: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	log.Debug("exported parquet file", "path", w.path, "rows", w.rowCount)
	return nil
}

// WriteFile exports a whole result to one Parquet file.
func WriteFile(res *record.Result, path string, opts Options) error {
	w, err := NewWriter(path, opts)
	if err != nil {
		return err
	}
	if err := w.WriteResult(res); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// ReadFile loads every region row of a Parquet export.
func ReadFile(path string) ([]RegionRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[RegionRow](f)
	defer reader.Close()

	rows := make([]RegionRow, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rows[:n], nil
}
