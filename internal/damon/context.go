package damon

import (
	"fmt"
	"strings"

	"github.com/xtxerr/damonctl/config"
	"github.com/xtxerr/damonctl/internal/errors"
	"github.com/xtxerr/damonctl/internal/unit"
)

// OpsType selects the address-space backend of a context.
type OpsType string

const (
	// OpsVaddr monitors the virtual address space of target processes.
	OpsVaddr OpsType = "vaddr"
	// OpsPaddr monitors the physical address space.
	OpsPaddr OpsType = "paddr"
	// OpsFvaddr monitors fixed virtual address ranges of target
	// processes.
	OpsFvaddr OpsType = "fvaddr"
)

// ValidOpsType reports whether the backend tag is known.
func ValidOpsType(ops OpsType) bool {
	switch ops {
	case OpsVaddr, OpsPaddr, OpsFvaddr:
		return true
	}
	return false
}

// TargetHasPid reports whether targets under the backend are bound to
// a process.
func TargetHasPid(ops OpsType) bool {
	return ops == OpsVaddr || ops == OpsFvaddr
}

// RecordRequest asks a context to persist its monitoring results to a
// file.
type RecordRequest struct {
	RFileBuf  uint64
	RFilePath string
}

// NewRecordRequest parses a record request. Zero or empty arguments
// fall back to the defaults.
func NewRecordRequest(rfileBuf any, rfilePath string) (*RecordRequest, error) {
	buf, err := unit.ParseBytes(rfileBuf)
	if err != nil {
		return nil, fmt.Errorf("record buffer size: %w", err)
	}
	if buf == 0 {
		buf = config.DefaultRecordBufBytes
	}
	if rfilePath == "" {
		rfilePath = config.DefaultRecordPath
	}
	return &RecordRequest{RFileBuf: buf, RFilePath: rfilePath}, nil
}

// Equal reports structural equality.
func (r *RecordRequest) Equal(other *RecordRequest) bool {
	if r == nil || other == nil {
		return r == other
	}
	return *r == *other
}

// ToStr renders the request for display.
func (r *RecordRequest) ToStr(raw bool) string {
	return fmt.Sprintf("path: %s, buffer sz: %s",
		r.RFilePath, unit.FormatSz(r.RFileBuf, raw))
}

func (r *RecordRequest) String() string {
	return r.ToStr(false)
}

// ToKvpairs serializes with the canonical key order rfile_buf,
// rfile_path.
func (r *RecordRequest) ToKvpairs(raw bool) *Pairs {
	return NewPairs().
		Set("rfile_buf", unit.FormatSz(r.RFileBuf, raw)).
		Set("rfile_path", r.RFilePath)
}

// RecordRequestFromKvpairs is the inverse of ToKvpairs.
func RecordRequestFromKvpairs(p *Pairs) (*RecordRequest, error) {
	buf, err := p.require("rfile_buf")
	if err != nil {
		return nil, err
	}
	path, err := p.requireString("rfile_path")
	if err != nil {
		return nil, err
	}
	return NewRecordRequest(buf, path)
}

// Context is one monitoring configuration: the intervals and region
// bounds of the sampling machinery, the address-space backend, the
// targets to watch and the schemes to apply.
type Context struct {
	Name          string
	Intervals     *Intervals
	NrRegions     *NrRegionsRange
	Ops           OpsType
	Targets       []*Target
	Schemes       []*Scheme
	RecordRequest *RecordRequest
}

// NewContext builds a context with validated fields. Nil intervals or
// region bounds fall back to the defaults.
func NewContext(name string, iv *Intervals, nrRegions *NrRegionsRange,
	ops OpsType, targets []*Target, schemes []*Scheme) (*Context, error) {
	if !ValidOpsType(ops) {
		return nil, errors.InvalidUnitf("ops type %q", ops)
	}
	if iv == nil {
		iv = DefaultIntervals()
	}
	if nrRegions == nil {
		nrRegions = DefaultNrRegionsRange()
	}
	if TargetHasPid(ops) {
		for _, t := range targets {
			if t.Pid == nil {
				return nil, fmt.Errorf("%w: target %q of %s context needs pid",
					errors.ErrInvalidArgument, t.Name, ops)
			}
		}
	}
	return &Context{
		Name: name, Intervals: iv, NrRegions: nrRegions,
		Ops: ops, Targets: targets, Schemes: schemes,
	}, nil
}

// Equal reports structural equality.
func (c *Context) Equal(other *Context) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.Name != other.Name || c.Ops != other.Ops ||
		!c.Intervals.Equal(other.Intervals) ||
		!c.NrRegions.Equal(other.NrRegions) ||
		!c.RecordRequest.Equal(other.RecordRequest) {
		return false
	}
	if len(c.Targets) != len(other.Targets) || len(c.Schemes) != len(other.Schemes) {
		return false
	}
	for i := range c.Targets {
		if !c.Targets[i].Equal(other.Targets[i]) {
			return false
		}
	}
	for i := range c.Schemes {
		if !c.Schemes[i].Equal(other.Schemes[i]) {
			return false
		}
	}
	return true
}

// MonitoringOnly reports whether every scheme of the context is a
// monitoring-only scheme under its intervals.
func (c *Context) MonitoringOnly() bool {
	for _, s := range c.Schemes {
		if !IsMonitoringScheme(s, c.Intervals) {
			return false
		}
	}
	return true
}

// ToStr renders the context for display.
func (c *Context) ToStr(raw bool) string {
	lines := []string{
		fmt.Sprintf("%s (ops: %s)", c.Name, c.Ops),
		"intervals: " + c.Intervals.ToStr(raw),
		"nr_regions: " + c.NrRegions.ToStr(raw),
	}
	if c.RecordRequest != nil {
		lines = append(lines, "record request: "+c.RecordRequest.ToStr(raw))
	}
	lines = append(lines, "targets")
	for _, t := range c.Targets {
		lines = append(lines, indentLines(t.ToStr(raw), 4))
	}
	lines = append(lines, "schemes")
	for _, s := range c.Schemes {
		lines = append(lines, indentLines(s.ToStr(raw), 4))
	}
	return strings.Join(lines, "\n")
}

func (c *Context) String() string {
	return c.ToStr(false)
}

// ToKvpairs serializes with the canonical key order name, intervals,
// nr_regions, ops, targets, schemes. The record_request key is
// appended only when a request is set.
func (c *Context) ToKvpairs(raw bool) *Pairs {
	targets := make([]*Pairs, 0, len(c.Targets))
	for _, t := range c.Targets {
		targets = append(targets, t.ToKvpairs(raw))
	}
	schemes := make([]*Pairs, 0, len(c.Schemes))
	for _, s := range c.Schemes {
		schemes = append(schemes, s.ToKvpairs(raw))
	}
	p := NewPairs().
		Set("name", c.Name).
		Set("intervals", c.Intervals.ToKvpairs(raw)).
		Set("nr_regions", c.NrRegions.ToKvpairs(raw)).
		Set("ops", string(c.Ops)).
		Set("targets", targets).
		Set("schemes", schemes)
	if c.RecordRequest != nil {
		p.Set("record_request", c.RecordRequest.ToKvpairs(raw))
	}
	return p
}

// ContextFromKvpairs is the inverse of ToKvpairs. An absent schemes
// key means no schemes; absent intervals or nr_regions fall back to
// the defaults.
func ContextFromKvpairs(p *Pairs) (*Context, error) {
	name, err := p.requireString("name")
	if err != nil {
		return nil, err
	}
	ops, err := p.requireString("ops")
	if err != nil {
		return nil, err
	}

	iv := DefaultIntervals()
	if ivPairs, err := p.optionalPairs("intervals"); err != nil {
		return nil, err
	} else if ivPairs != nil {
		if iv, err = IntervalsFromKvpairs(ivPairs); err != nil {
			return nil, err
		}
	}
	nrRegions := DefaultNrRegionsRange()
	if nrPairs, err := p.optionalPairs("nr_regions"); err != nil {
		return nil, err
	} else if nrPairs != nil {
		if nrRegions, err = NrRegionsRangeFromKvpairs(nrPairs); err != nil {
			return nil, err
		}
	}

	targetPairs, err := p.requireList("targets")
	if err != nil {
		return nil, err
	}
	targets := make([]*Target, 0, len(targetPairs))
	for _, tp := range targetPairs {
		t, err := TargetFromKvpairs(tp)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}

	schemePairs, err := p.optionalList("schemes")
	if err != nil {
		return nil, err
	}
	schemes := make([]*Scheme, 0, len(schemePairs))
	for _, sp := range schemePairs {
		s, err := SchemeFromKvpairs(sp)
		if err != nil {
			return nil, err
		}
		schemes = append(schemes, s)
	}

	c, err := NewContext(name, iv, nrRegions, OpsType(ops), targets, schemes)
	if err != nil {
		return nil, err
	}
	if reqPairs, err := p.optionalPairs("record_request"); err != nil {
		return nil, err
	} else if reqPairs != nil {
		if c.RecordRequest, err = RecordRequestFromKvpairs(reqPairs); err != nil {
			return nil, err
		}
	}
	return c, nil
}
