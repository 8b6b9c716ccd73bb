// Package damon models the control-plane configuration tree of the
// DAMON memory access monitoring facility: monitoring intervals and
// regions, operation schemes, contexts, and kdamonds.
//
// Every entity stores canonical machine units (microseconds, bytes,
// raw counts) internally and serializes to an ordered key/value
// mapping in either raw or human mode. Raw-mode serialization round
// trips losslessly; human mode is for display.
package damon

import (
	"fmt"

	"github.com/xtxerr/damonctl/config"
	"github.com/xtxerr/damonctl/internal/unit"
)

// Intervals holds the three monitoring cadences, in microseconds.
// The aggr/sample ratio bounds the maximum access count a single
// snapshot can report.
type Intervals struct {
	SampleUs    uint64
	AggrUs      uint64
	OpsUpdateUs uint64
}

// NewIntervals parses sampling, aggregation and ops-update intervals
// from text or typed microsecond values.
func NewIntervals(sample, aggr, opsUpdate any) (*Intervals, error) {
	sampleUs, err := unit.ParseTimeUs(sample)
	if err != nil {
		return nil, fmt.Errorf("sample interval: %w", err)
	}
	aggrUs, err := unit.ParseTimeUs(aggr)
	if err != nil {
		return nil, fmt.Errorf("aggregation interval: %w", err)
	}
	opsUpdateUs, err := unit.ParseTimeUs(opsUpdate)
	if err != nil {
		return nil, fmt.Errorf("ops update interval: %w", err)
	}
	return &Intervals{SampleUs: sampleUs, AggrUs: aggrUs, OpsUpdateUs: opsUpdateUs}, nil
}

// DefaultIntervals returns the kernel's default cadences.
func DefaultIntervals() *Intervals {
	return &Intervals{
		SampleUs:    config.DefaultSampleUs,
		AggrUs:      config.DefaultAggrUs,
		OpsUpdateUs: config.DefaultOpsUpdateUs,
	}
}

// MaxSampleIntervals returns the theoretical maximum number of samples
// per aggregation window.
func (iv *Intervals) MaxSampleIntervals() float64 {
	return float64(iv.AggrUs) / float64(iv.SampleUs)
}

// Equal reports canonical-microsecond equality.
func (iv *Intervals) Equal(other *Intervals) bool {
	return iv != nil && other != nil && *iv == *other
}

// ToStr renders the intervals for display.
func (iv *Intervals) ToStr(raw bool) string {
	return fmt.Sprintf("sample %s, aggr %s, update %s",
		unit.FormatTimeUs(iv.SampleUs, raw),
		unit.FormatTimeUs(iv.AggrUs, raw),
		unit.FormatTimeUs(iv.OpsUpdateUs, raw))
}

func (iv *Intervals) String() string {
	return iv.ToStr(false)
}

// ToKvpairs serializes with the canonical key order
// sample_us, aggr_us, ops_update_us.
func (iv *Intervals) ToKvpairs(raw bool) *Pairs {
	return NewPairs().
		Set("sample_us", unit.FormatTimeUs(iv.SampleUs, raw)).
		Set("aggr_us", unit.FormatTimeUs(iv.AggrUs, raw)).
		Set("ops_update_us", unit.FormatTimeUs(iv.OpsUpdateUs, raw))
}

// IntervalsFromKvpairs is the inverse of ToKvpairs.
func IntervalsFromKvpairs(p *Pairs) (*Intervals, error) {
	sample, err := p.require("sample_us")
	if err != nil {
		return nil, err
	}
	aggr, err := p.require("aggr_us")
	if err != nil {
		return nil, err
	}
	opsUpdate, err := p.require("ops_update_us")
	if err != nil {
		return nil, err
	}
	return NewIntervals(sample, aggr, opsUpdate)
}
