// Package aggregate folds a target's snapshot sequence into a single
// partition of its address space, where each region's access count
// reflects how active that exact sub-range was across the whole
// observation window.
package aggregate

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/damonctl/internal/logging"
	"github.com/xtxerr/damonctl/internal/record"
)

var log = logging.Component("aggregate")

func intersect(a, b *record.Region) bool {
	return a.Start < b.End && b.Start < a.End
}

// addRegion inserts r into the accumulator by interval splitting.
// When r overlaps an existing region, that region's deferred increment
// is raised to max(pending, r's count) and the non-overlapping
// remainders of r are inserted recursively with r's own count. The
// increments are applied by the caller once per input snapshot, so
// overlaps within one snapshot never double-count.
func addRegion(regions *[]*record.Region, r *record.Region, pending map[*record.Region]int) {
	for _, existing := range *regions {
		if !intersect(existing, r) {
			continue
		}
		if r.NrAccesses > pending[existing] {
			pending[existing] = r.NrAccesses
		}
		if r.Start < existing.Start {
			addRegion(regions, &record.Region{
				Start: r.Start, End: existing.Start,
				NrAccesses: r.NrAccesses, Age: r.Age,
			}, pending)
		}
		if existing.End < r.End {
			addRegion(regions, &record.Region{
				Start: existing.End, End: r.End,
				NrAccesses: r.NrAccesses, Age: r.Age,
			}, pending)
		}
		return
	}
	*regions = append(*regions, &record.Region{
		Start: r.Start, End: r.End,
		NrAccesses: r.NrAccesses, Age: r.Age,
	})
}

// Snapshots aggregates one target's ordered snapshot sequence into a
// single snapshot spanning the first snapshot's start to the last
// snapshot's end. Snapshots are processed in sequence order and
// regions in their array order; that order is part of the contract,
// since a different insertion order can produce a different
// intermediate partition. An empty input yields an empty snapshot.
func Snapshots(snaps []*record.Snapshot) *record.Snapshot {
	if len(snaps) == 0 {
		return record.NewSnapshot(0, 0, 0)
	}

	var regions []*record.Region
	for _, s := range snaps {
		pending := make(map[*record.Region]int)
		for _, r := range s.Regions {
			addRegion(&regions, r, pending)
		}
		for region, add := range pending {
			region.NrAccesses += add
		}
	}

	aggregated := record.NewSnapshot(snaps[0].StartTimeNs,
		snaps[len(snaps)-1].EndTimeNs, snaps[0].TargetID)
	aggregated.Regions = regions
	return aggregated
}

// Result aggregates every target of a result in parallel. The
// per-target sequences are fully independent, so each target runs on
// its own goroutine.
func Result(ctx context.Context, res *record.Result) (map[uint64]*record.Snapshot, error) {
	targetIDs := res.TargetIDs()
	aggregated := make([]*record.Snapshot, len(targetIDs))

	g, _ := errgroup.WithContext(ctx)
	for i, targetID := range targetIDs {
		g.Go(func() error {
			aggregated[i] = Snapshots(res.Snapshots(targetID))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byTarget := make(map[uint64]*record.Snapshot, len(targetIDs))
	for i, targetID := range targetIDs {
		byTarget[targetID] = aggregated[i]
	}
	log.Debug("aggregated result", "targets", len(targetIDs),
		"snapshots", res.NrSnapshots)
	return byTarget, nil
}
