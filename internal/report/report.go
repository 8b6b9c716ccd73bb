// Package report renders decoded monitoring results for human
// inspection: a raw textual dump of every snapshot, and a per-target
// access-frequency distribution computed over the aggregated address
// space partition.
package report

import (
	"context"
	"fmt"
	"io"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/xtxerr/damonctl/config"
	"github.com/xtxerr/damonctl/internal/aggregate"
	"github.com/xtxerr/damonctl/internal/logging"
	"github.com/xtxerr/damonctl/internal/record"
	"github.com/xtxerr/damonctl/internal/unit"
)

var log = logging.Component("report")

// Dump writes every snapshot of res as text, one region per line with
// hexadecimal addresses and the region size in bytes.
func Dump(w io.Writer, res *record.Result) error {
	if _, err := fmt.Fprintf(w, "start_time: %d\n", res.StartTimeNs); err != nil {
		return err
	}
	for _, targetID := range res.TargetIDs() {
		for _, s := range res.Snapshots(targetID) {
			if _, err := fmt.Fprintf(w, "rel time: %16d\n", s.EndTimeNs-res.StartTimeNs); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "target_id: %d\n", s.TargetID); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "nr_regions: %d\n", len(s.Regions)); err != nil {
				return err
			}
			for _, r := range s.Regions {
				if _, err := fmt.Fprintf(w, "%012x-%012x(%10d):\t%d\n",
					r.Start, r.End, r.Sz(), r.NrAccesses); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
	}
	return nil
}

// Distribution summarizes how access frequency is spread over one
// target's monitored address space. Percentiles are byte-weighted: the
// p-th percentile is the access count below which p percent of the
// monitored bytes fall.
type Distribution struct {
	TargetID    uint64
	StartTimeNs int64
	EndTimeNs   int64
	TotalBytes  uint64
	IdleBytes   uint64

	sketch *ddsketch.DDSketch
}

// quantiles reported by Render, in display order.
var reportQuantiles = []float64{0.25, 0.50, 0.75, 0.90, 0.95, 0.99}

// NewDistribution builds a distribution from one aggregated snapshot.
func NewDistribution(s *record.Snapshot) (*Distribution, error) {
	sketch, err := ddsketch.NewDefaultDDSketch(config.DefaultSketchAccuracy)
	if err != nil {
		return nil, fmt.Errorf("creating sketch: %w", err)
	}
	d := &Distribution{
		TargetID:    s.TargetID,
		StartTimeNs: s.StartTimeNs,
		EndTimeNs:   s.EndTimeNs,
		sketch:      sketch,
	}
	for _, r := range s.Regions {
		if r.NrAccesses < 0 {
			continue
		}
		d.TotalBytes += r.Sz()
		if r.NrAccesses == 0 {
			d.IdleBytes += r.Sz()
		}
		if err := sketch.AddWithCount(float64(r.NrAccesses), float64(r.Sz())); err != nil {
			return nil, fmt.Errorf("adding region %v: %w", r, err)
		}
	}
	return d, nil
}

// Quantile returns the byte-weighted access count at q in [0, 1].
func (d *Distribution) Quantile(q float64) float64 {
	v, err := d.sketch.GetValueAtQuantile(q)
	if err != nil {
		return 0
	}
	return v
}

// Render writes the distribution as text.
func (d *Distribution) Render(w io.Writer, raw bool) error {
	idlePermil := uint64(0)
	if d.TotalBytes > 0 {
		idlePermil = d.IdleBytes * 1000 / d.TotalBytes
	}
	_, err := fmt.Fprintf(w, "target %d: %s monitored, %s idle (%s)\n",
		d.TargetID, unit.FormatSz(d.TotalBytes, raw),
		unit.FormatSz(d.IdleBytes, raw), unit.FormatPermil(idlePermil, raw))
	if err != nil {
		return err
	}
	for _, q := range reportQuantiles {
		if _, err := fmt.Fprintf(w, "  p%-2.0f access count: %.1f\n",
			q*100, d.Quantile(q)); err != nil {
			return err
		}
	}
	return nil
}

// Result aggregates res and builds one distribution per target, in
// target appearance order.
func Result(ctx context.Context, res *record.Result) ([]*Distribution, error) {
	byTarget, err := aggregate.Result(ctx, res)
	if err != nil {
		return nil, err
	}
	dists := make([]*Distribution, 0, len(byTarget))
	for _, targetID := range res.TargetIDs() {
		d, err := NewDistribution(byTarget[targetID])
		if err != nil {
			return nil, err
		}
		dists = append(dists, d)
	}
	log.Debug("built report", "targets", len(dists))
	return dists, nil
}
