package record

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xtxerr/damonctl/internal/errors"
)

func writeTestRecord(buf *bytes.Buffer, endNs int64, targetID uint64, regions []*Region) {
	binary.Write(buf, binary.LittleEndian, endNs/1000000000)
	binary.Write(buf, binary.LittleEndian, endNs%1000000000)
	binary.Write(buf, binary.LittleEndian, uint32(1))
	binary.Write(buf, binary.LittleEndian, targetID)
	binary.Write(buf, binary.LittleEndian, uint32(len(regions)))
	for _, r := range regions {
		binary.Write(buf, binary.LittleEndian, r.Start)
		binary.Write(buf, binary.LittleEndian, r.End)
		binary.Write(buf, binary.LittleEndian, uint32(int32(r.NrAccesses)))
	}
}

func TestBinaryRoundTripSingleSnapshot(t *testing.T) {
	res := NewResult()
	snapshot := NewSnapshot(1000000000, 2000000000, 42)
	snapshot.Regions = []*Region{{Start: 100, End: 200, NrAccesses: 3, Age: -1}}
	res.Add(snapshot)
	res.NrSnapshots = 1

	path := filepath.Join(t.TempDir(), "damon.data")
	if err := WriteFile(res, path, FormatRecord, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	back, format, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if format != FormatRecord {
		t.Errorf("format: got %q, want record", format)
	}
	snaps := back.Snapshots(42)
	if len(snaps) != 1 {
		t.Fatalf("snapshots: got %d, want 1 (trailing marker not stripped?)", len(snaps))
	}
	got := snaps[0]
	if got.StartTimeNs != 1000000000 || got.EndTimeNs != 2000000000 {
		t.Errorf("times: got [%d, %d], want [1000000000, 2000000000]",
			got.StartTimeNs, got.EndTimeNs)
	}
	if len(got.Regions) != 1 {
		t.Fatalf("regions: got %d, want 1", len(got.Regions))
	}
	region := got.Regions[0]
	if region.Start != 100 || region.End != 200 || region.NrAccesses != 3 {
		t.Errorf("region: got %v, want [100, 200) 3", region)
	}
}

func TestPerfScriptRoundTripSingleSnapshot(t *testing.T) {
	res := NewResult()
	snapshot := NewSnapshot(1000000000, 2000000000, 42)
	snapshot.Regions = []*Region{{Start: 100, End: 200, NrAccesses: 3, Age: 7}}
	res.Add(snapshot)
	res.NrSnapshots = 1

	path := filepath.Join(t.TempDir(), "damon.txt")
	if err := WriteFile(res, path, FormatPerfScript, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	back, format, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if format != FormatPerfScript {
		t.Errorf("format: got %q, want perf_script", format)
	}
	snaps := back.Snapshots(42)
	if len(snaps) != 1 {
		t.Fatalf("snapshots: got %d, want 1", len(snaps))
	}
	region := snaps[0].Regions[0]
	if region.Start != 100 || region.End != 200 || region.NrAccesses != 3 || region.Age != 7 {
		t.Errorf("region: got %v, want [100, 200) 3 7", region)
	}
}

func TestBinaryDecodeHeaderlessStream(t *testing.T) {
	var buf bytes.Buffer
	writeTestRecord(&buf, 5000000000, 1, []*Region{{Start: 0, End: 4096, NrAccesses: 2, Age: -1}})

	dec := NewBinaryDecoder(bytes.NewReader(buf.Bytes()))
	res := NewResult()
	if err := dec.Decode(res, 0); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if dec.Version() != 0 {
		t.Errorf("version: got %d, want 0", dec.Version())
	}
	if len(res.Snapshots(1)) != 1 {
		t.Fatalf("snapshots: got %d, want 1", len(res.Snapshots(1)))
	}
}

func TestBinaryDecodeBudgetResumes(t *testing.T) {
	var buf bytes.Buffer
	region := []*Region{{Start: 0, End: 4096, NrAccesses: 1, Age: -1}}
	writeTestRecord(&buf, 10000000000, 1, region)
	writeTestRecord(&buf, 11000000000, 1, region)
	writeTestRecord(&buf, 13000000000, 1, region)

	dec := NewBinaryDecoder(bytes.NewReader(buf.Bytes()))
	res := NewResult()
	if err := dec.Decode(res, 2*time.Second); err != nil {
		t.Fatalf("first Decode: %v", err)
	}
	if got := len(res.Snapshots(1)); got != 2 {
		t.Fatalf("first window snapshots: got %d, want 2", got)
	}

	if err := dec.Decode(res, 2*time.Second); err != nil {
		t.Fatalf("resumed Decode: %v", err)
	}
	if got := len(res.Snapshots(1)); got != 3 {
		t.Errorf("after resume: got %d snapshots, want 3", got)
	}
	if snaps := res.Snapshots(1); snaps[2].EndTimeNs != 13000000000 {
		t.Errorf("resumed record end: got %d, want 13000000000", snaps[2].EndTimeNs)
	}
}

func TestBinaryDecodeTruncation(t *testing.T) {
	var buf bytes.Buffer
	writeTestRecord(&buf, 5000000000, 1, []*Region{{Start: 0, End: 4096, NrAccesses: 2, Age: -1}})
	full := buf.Bytes()

	// A partial trailing record header is a clean end of stream.
	dec := NewBinaryDecoder(bytes.NewReader(append(append([]byte{}, full...), full[:10]...)))
	res := NewResult()
	if err := dec.Decode(res, 0); err != nil {
		t.Errorf("partial header: got %v, want clean stop", err)
	}
	if len(res.Snapshots(1)) != 1 {
		t.Errorf("partial header: got %d snapshots, want 1", len(res.Snapshots(1)))
	}

	// Truncation inside a record is malformed.
	dec = NewBinaryDecoder(bytes.NewReader(full[:len(full)-2]))
	res = NewResult()
	if err := dec.Decode(res, 0); !errors.Is(err, errors.ErrMalformedRecord) {
		t.Errorf("mid-record truncation: got %v, want ErrMalformedRecord", err)
	}
}

func TestPerfScriptSkipsBadLines(t *testing.T) {
	input := strings.Join([]string{
		"kdamond.0 4452 [000] 82877.315633: damon:damon_aggregated: target_id=18446623435582458880 nr_regions=2 140731667070976-140731668037632: 0 3",
		"kdamond.0 4452 [000] 82877.315633: damon:damon_aggregated: nr_regions=2 140731668037632-140731668041728: 1", // 8 tokens
		"kdamond.0 4452 [000] 82877.315633: damon:damon_aggregated: target_id=18446623435582458880 nr_regions=2 140731668037632-140731668041728: 1 0",
		"some unrelated trace line that should be ignored entirely",
	}, "\n")

	res := NewResult()
	if err := DecodePerfScript(strings.NewReader(input), res, 0); err != nil {
		t.Fatalf("DecodePerfScript: %v", err)
	}
	snaps := res.Snapshots(18446623435582458880)
	if len(snaps) != 1 {
		t.Fatalf("snapshots: got %d, want 1", len(snaps))
	}
	if got := len(snaps[0].Regions); got != 2 {
		t.Errorf("regions: got %d, want 2 (bad line not skipped?)", got)
	}
	if snaps[0].Regions[1].Age != 0 {
		t.Errorf("age: got %d, want 0", snaps[0].Regions[1].Age)
	}
}

func TestSniffFormat(t *testing.T) {
	dir := t.TempDir()

	binPath := filepath.Join(dir, "bin.data")
	var buf bytes.Buffer
	buf.WriteString(binaryMagic)
	binary.Write(&buf, binary.LittleEndian, int32(2))
	if err := os.WriteFile(binPath, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	if format, err := SniffFormat(binPath); err != nil || format != FormatRecord {
		t.Errorf("magic file: got %q, %v, want record", format, err)
	}

	txtPath := filepath.Join(dir, "txt.data")
	if err := os.WriteFile(txtPath, []byte("kdamond.0 4452 [000] 1.0: damon:damon_aggregated: target_id=1 nr_regions=1 0-4096: 0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if format, err := SniffFormat(txtPath); err != nil || format != FormatPerfScript {
		t.Errorf("text file: got %q, %v, want perf_script", format, err)
	}

	rawPath := filepath.Join(dir, "raw.data")
	if err := os.WriteFile(rawPath, []byte{0x00, 0x01, 0x02, 0xff}, 0o600); err != nil {
		t.Fatal(err)
	}
	if format, err := SniffFormat(rawPath); err != nil || format != FormatRecord {
		t.Errorf("binary-looking file: got %q, %v, want record", format, err)
	}
}

func TestNormalizeInfersTiming(t *testing.T) {
	res := NewResult()
	for _, endNs := range []int64{2000000000, 3000000000, 4000000000} {
		s := NewSnapshot(0, endNs, 7)
		s.Regions = []*Region{{Start: 0, End: 4096, NrAccesses: 1, Age: -1}}
		res.Add(s)
	}
	normalize(res)

	snaps := res.Snapshots(7)
	if snaps[0].StartTimeNs != 1000000000 {
		t.Errorf("first start: got %d, want 1000000000", snaps[0].StartTimeNs)
	}
	if snaps[1].StartTimeNs != 2000000000 || snaps[2].StartTimeNs != 3000000000 {
		t.Errorf("chained starts: got %d, %d", snaps[1].StartTimeNs, snaps[2].StartTimeNs)
	}
	if res.StartTimeNs != 1000000000 || res.EndTimeNs != 4000000000 {
		t.Errorf("result window: got [%d, %d]", res.StartTimeNs, res.EndTimeNs)
	}
	if res.NrSnapshots != 3 {
		t.Errorf("NrSnapshots: got %d, want 3", res.NrSnapshots)
	}
}
