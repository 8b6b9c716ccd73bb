package damon

import (
	"fmt"
	"strings"

	"github.com/xtxerr/damonctl/config"
	"github.com/xtxerr/damonctl/internal/unit"
)

// NrRegionsRange bounds how many regions the monitor may split a
// target into. Construction does not enforce Min <= Max; the
// control-file writer rejects inverted ranges when they are applied.
type NrRegionsRange struct {
	Min uint64
	Max uint64
}

// NewNrRegionsRange parses the bounds from text or typed counts.
func NewNrRegionsRange(min, max any) (*NrRegionsRange, error) {
	minimum, err := unit.ParseNr(min)
	if err != nil {
		return nil, fmt.Errorf("min nr_regions: %w", err)
	}
	maximum, err := unit.ParseNr(max)
	if err != nil {
		return nil, fmt.Errorf("max nr_regions: %w", err)
	}
	return &NrRegionsRange{Min: minimum, Max: maximum}, nil
}

// DefaultNrRegionsRange returns the kernel's default bounds.
func DefaultNrRegionsRange() *NrRegionsRange {
	return &NrRegionsRange{Min: config.DefaultMinNrRegions, Max: config.DefaultMaxNrRegions}
}

// Equal reports canonical equality.
func (r *NrRegionsRange) Equal(other *NrRegionsRange) bool {
	return r != nil && other != nil && *r == *other
}

// ToStr renders the range for display.
func (r *NrRegionsRange) ToStr(raw bool) string {
	return fmt.Sprintf("[%s, %s]", unit.FormatNr(r.Min, raw), unit.FormatNr(r.Max, raw))
}

func (r *NrRegionsRange) String() string {
	return r.ToStr(false)
}

// ToKvpairs serializes with the canonical key order min, max.
func (r *NrRegionsRange) ToKvpairs(raw bool) *Pairs {
	return NewPairs().
		Set("min", unit.FormatNr(r.Min, raw)).
		Set("max", unit.FormatNr(r.Max, raw))
}

// NrRegionsRangeFromKvpairs is the inverse of ToKvpairs.
func NrRegionsRangeFromKvpairs(p *Pairs) (*NrRegionsRange, error) {
	min, err := p.require("min")
	if err != nil {
		return nil, err
	}
	max, err := p.require("max")
	if err != nil {
		return nil, err
	}
	return NewNrRegionsRange(min, max)
}

// Region is a half-open byte range [Start, End) of a target address
// space. Start <= End is expected but not validated here.
type Region struct {
	Start uint64
	End   uint64
}

// NewRegion parses the boundaries from text (byte-size suffixes and
// thousands grouping accepted) or typed byte values.
func NewRegion(start, end any) (*Region, error) {
	startBytes, err := unit.ParseBytes(start)
	if err != nil {
		return nil, fmt.Errorf("region start: %w", err)
	}
	endBytes, err := unit.ParseBytes(end)
	if err != nil {
		return nil, fmt.Errorf("region end: %w", err)
	}
	return &Region{Start: startBytes, End: endBytes}, nil
}

// Equal reports canonical equality.
func (r *Region) Equal(other *Region) bool {
	return r != nil && other != nil && *r == *other
}

// ToStr renders the region for display.
func (r *Region) ToStr(raw bool) string {
	return unit.FormatAddrRange(r.Start, r.End, raw)
}

func (r *Region) String() string {
	return r.ToStr(false)
}

// ToKvpairs serializes with the canonical key order start, end.
func (r *Region) ToKvpairs(raw bool) *Pairs {
	return NewPairs().
		Set("start", unit.FormatNr(r.Start, raw)).
		Set("end", unit.FormatNr(r.End, raw))
}

// RegionFromKvpairs is the inverse of ToKvpairs.
func RegionFromKvpairs(p *Pairs) (*Region, error) {
	start, err := p.require("start")
	if err != nil {
		return nil, err
	}
	end, err := p.require("end")
	if err != nil {
		return nil, err
	}
	return NewRegion(start, end)
}

// Target is one monitored entity: a process for vaddr-family
// operations sets, or the whole physical address space for paddr.
// Pid is nil when the owning context's operations set does not track
// processes. Regions are only meaningful when explicitly seeded.
type Target struct {
	Name    string
	Pid     *int
	Regions []*Region
}

// Equal reports structural equality.
func (t *Target) Equal(other *Target) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.Name != other.Name || !pidEqual(t.Pid, other.Pid) ||
		len(t.Regions) != len(other.Regions) {
		return false
	}
	for i := range t.Regions {
		if !t.Regions[i].Equal(other.Regions[i]) {
			return false
		}
	}
	return true
}

func pidEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ToStr renders the target and its seeded regions for display.
func (t *Target) ToStr(raw bool) string {
	lines := []string{fmt.Sprintf("%s (pid: %s)", t.Name, pidStr(t.Pid))}
	for _, region := range t.Regions {
		lines = append(lines, "region "+region.ToStr(raw))
	}
	return strings.Join(lines, "\n")
}

func (t *Target) String() string {
	return t.ToStr(false)
}

func pidStr(pid *int) string {
	if pid == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *pid)
}

// ToKvpairs serializes with the canonical key order name, pid, regions.
func (t *Target) ToKvpairs(raw bool) *Pairs {
	p := NewPairs().Set("name", t.Name)
	if t.Pid != nil {
		p.Set("pid", *t.Pid)
	} else {
		p.Set("pid", nil)
	}
	regions := make([]*Pairs, 0, len(t.Regions))
	for _, region := range t.Regions {
		regions = append(regions, region.ToKvpairs(raw))
	}
	return p.Set("regions", regions)
}

// TargetFromKvpairs is the inverse of ToKvpairs.
func TargetFromKvpairs(p *Pairs) (*Target, error) {
	name, err := p.requireString("name")
	if err != nil {
		return nil, err
	}
	pidVal, err := p.require("pid")
	if err != nil {
		return nil, err
	}
	var pid *int
	if pidVal != nil {
		n, err := unit.ParseNr(pidVal)
		if err != nil {
			return nil, fmt.Errorf("pid: %w", err)
		}
		v := int(n)
		pid = &v
	}
	regionPairs, err := p.requireList("regions")
	if err != nil {
		return nil, err
	}
	regions := make([]*Region, 0, len(regionPairs))
	for _, rp := range regionPairs {
		region, err := RegionFromKvpairs(rp)
		if err != nil {
			return nil, err
		}
		regions = append(regions, region)
	}
	return &Target{Name: name, Pid: pid, Regions: regions}, nil
}
