// Package record reads and writes monitoring result streams: a time
// series of per-target region snapshots captured from the kernel
// monitoring facility, in either the native binary record format or
// the tracer-script text format.
package record

import "fmt"

// fakeVal marks the access count and age of the synthetic trailing
// region that carries an end-of-window timestamp. On the binary wire
// it travels as the two's complement uint32.
const fakeVal = -1

// Region is one observed address range with its access count. Age is
// in aggregation intervals and negative when the source format does
// not carry it.
type Region struct {
	Start      uint64
	End        uint64
	NrAccesses int
	Age        int
}

// Sz returns the region's size in bytes.
func (r *Region) Sz() uint64 {
	return r.End - r.Start
}

func (r *Region) String() string {
	return fmt.Sprintf("[%d, %d) %d %d", r.Start, r.End, r.NrAccesses, r.Age)
}

// isFake reports whether the region is the synthetic end-of-window
// marker.
func (r *Region) isFake() bool {
	return r.Start == 0 && r.End == 0 && r.NrAccesses == fakeVal && r.Age == fakeVal
}

// Snapshot is one observation window for one target. StartTimeNs is
// unknown (zero) until timing normalization has run; only EndTimeNs is
// carried on the wire.
type Snapshot struct {
	StartTimeNs int64
	EndTimeNs   int64
	TargetID    uint64
	Regions     []*Region
}

// NewSnapshot returns an empty snapshot for one observation window.
func NewSnapshot(startNs, endNs int64, targetID uint64) *Snapshot {
	return &Snapshot{StartTimeNs: startNs, EndTimeNs: endNs, TargetID: targetID}
}

// Result is a decoded monitoring result: per-target snapshot
// sequences plus the overall time window. Target order is the order
// of first appearance in the stream.
type Result struct {
	StartTimeNs int64
	EndTimeNs   int64
	NrSnapshots int

	targetIDs       []uint64
	targetSnapshots map[uint64][]*Snapshot
}

// NewResult returns an empty result.
func NewResult() *Result {
	return &Result{targetSnapshots: make(map[uint64][]*Snapshot)}
}

// Add appends a snapshot to its target's sequence, registering the
// target on first sight. An unset snapshot start time is chained to
// the previous snapshot's end time.
func (res *Result) Add(s *Snapshot) {
	snaps, seen := res.targetSnapshots[s.TargetID]
	if !seen {
		res.targetIDs = append(res.targetIDs, s.TargetID)
	}
	if s.StartTimeNs == 0 && len(snaps) > 0 {
		s.StartTimeNs = snaps[len(snaps)-1].EndTimeNs
	}
	res.targetSnapshots[s.TargetID] = append(snaps, s)
}

// TargetIDs returns the target identifiers in order of first
// appearance.
func (res *Result) TargetIDs() []uint64 {
	return append([]uint64(nil), res.targetIDs...)
}

// Snapshots returns the snapshot sequence of one target.
func (res *Result) Snapshots(targetID uint64) []*Snapshot {
	return res.targetSnapshots[targetID]
}

// setSnapshots replaces one target's sequence, for normalization and
// fake-marker stripping.
func (res *Result) setSnapshots(targetID uint64, snaps []*Snapshot) {
	res.targetSnapshots[targetID] = snaps
}

// maxSnapshots returns the longest per-target sequence length.
func (res *Result) maxSnapshots() int {
	max := 0
	for _, snaps := range res.targetSnapshots {
		if len(snaps) > max {
			max = len(snaps)
		}
	}
	return max
}
