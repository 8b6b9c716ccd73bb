package report

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/xtxerr/damonctl/internal/record"
)

func testSnapshot(targetID uint64, regions ...*record.Region) *record.Snapshot {
	s := record.NewSnapshot(1000000000, 2000000000, targetID)
	s.Regions = regions
	return s
}

func TestDumpLayout(t *testing.T) {
	res := record.NewResult()
	res.StartTimeNs = 1000000000
	s := testSnapshot(7, &record.Region{Start: 0x1000, End: 0x2000, NrAccesses: 3})
	res.Add(s)

	var buf bytes.Buffer
	if err := Dump(&buf, res); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "start_time: 1000000000") {
		t.Errorf("missing start_time line:\n%s", out)
	}
	if !strings.Contains(out, "000000001000-000000002000(      4096):\t3") {
		t.Errorf("missing region line:\n%s", out)
	}
}

func TestDistributionByteWeighted(t *testing.T) {
	s := testSnapshot(7,
		&record.Region{Start: 0, End: 4096, NrAccesses: 0},
		&record.Region{Start: 4096, End: 8192, NrAccesses: 10})

	d, err := NewDistribution(s)
	if err != nil {
		t.Fatalf("NewDistribution: %v", err)
	}
	if d.TotalBytes != 8192 {
		t.Errorf("total: got %d, want 8192", d.TotalBytes)
	}
	if d.IdleBytes != 4096 {
		t.Errorf("idle: got %d, want 4096", d.IdleBytes)
	}
	if got := d.Quantile(0.25); got != 0 {
		t.Errorf("p25: got %f, want 0", got)
	}
	if got := d.Quantile(0.99); got < 9.5 || got > 10.5 {
		t.Errorf("p99: got %f, want ~10", got)
	}
}

func TestDistributionSkipsFakeRegions(t *testing.T) {
	s := testSnapshot(7,
		&record.Region{Start: 0, End: 4096, NrAccesses: 1},
		&record.Region{NrAccesses: -1, Age: -1})

	d, err := NewDistribution(s)
	if err != nil {
		t.Fatalf("NewDistribution: %v", err)
	}
	if d.TotalBytes != 4096 {
		t.Errorf("total: got %d, want 4096", d.TotalBytes)
	}
}

func TestResultPerTarget(t *testing.T) {
	res := record.NewResult()
	res.Add(testSnapshot(1, &record.Region{Start: 0, End: 4096, NrAccesses: 2}))
	res.Add(testSnapshot(2, &record.Region{Start: 0, End: 4096, NrAccesses: 5}))

	dists, err := Result(context.Background(), res)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if len(dists) != 2 {
		t.Fatalf("distributions: got %d, want 2", len(dists))
	}
	if dists[0].TargetID != 1 || dists[1].TargetID != 2 {
		t.Errorf("target order: got %d, %d", dists[0].TargetID, dists[1].TargetID)
	}

	var buf bytes.Buffer
	if err := dists[0].Render(&buf, false); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "target 1: 4.000 KiB monitored") {
		t.Errorf("unexpected render:\n%s", buf.String())
	}
}
