package export

import (
	"path/filepath"
	"testing"

	"github.com/xtxerr/damonctl/internal/record"
)

func TestWriteAndReadBack(t *testing.T) {
	res := record.NewResult()
	s := record.NewSnapshot(1000000000, 2000000000, 42)
	s.Regions = []*record.Region{
		{Start: 0, End: 4096, NrAccesses: 0, Age: 3},
		{Start: 4096, End: 16384, NrAccesses: 7, Age: -1},
	}
	res.Add(s)

	path := filepath.Join(t.TempDir(), "regions.parquet")
	if err := WriteFile(res, path, DefaultOptions()); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	rows, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows: got %d, want 2", len(rows))
	}
	first := rows[0]
	if first.TargetID != 42 || first.SnapshotEndNs != 2000000000 {
		t.Errorf("identity: got %+v", first)
	}
	second := rows[1]
	if second.Start != 4096 || second.End != 16384 || second.SzBytes != 12288 {
		t.Errorf("geometry: got %+v", second)
	}
	if second.NrAccesses != 7 || second.Age != -1 {
		t.Errorf("counters: got %+v", second)
	}
}

func TestParseCompressionType(t *testing.T) {
	cases := map[string]CompressionType{
		"zstd":    CompressionZstd,
		"snappy":  CompressionSnappy,
		"lz4":     CompressionLZ4,
		"gzip":    CompressionGzip,
		"none":    CompressionNone,
		"":        CompressionNone,
		"unknown": CompressionZstd,
	}
	for in, want := range cases {
		if got := ParseCompressionType(in); got != want {
			t.Errorf("%q: got %d, want %d", in, got, want)
		}
	}
}

func TestWriteEmptyResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")
	if err := WriteFile(record.NewResult(), path, DefaultOptions()); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	rows, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows: got %d, want 0", len(rows))
	}
}
