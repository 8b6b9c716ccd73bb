package damon

import (
	"fmt"
	"math"
	"strings"

	"github.com/xtxerr/damonctl/internal/errors"
	"github.com/xtxerr/damonctl/internal/unit"
)

// NrAccessesUnit tags how an access-frequency bound is expressed.
type NrAccessesUnit string

const (
	// NrAccessesPercent expresses the bound as a share (0-100) of the
	// theoretical maximum samples per aggregation window.
	NrAccessesPercent NrAccessesUnit = "percent"
	// NrAccessesSampleIntervals expresses the bound as a raw sample count.
	NrAccessesSampleIntervals NrAccessesUnit = "sample_intervals"
)

// AgeUnit tags how a region-age bound is expressed.
type AgeUnit string

const (
	// AgeUsec expresses the bound in microseconds.
	AgeUsec AgeUnit = "usec"
	// AgeAggrIntervals expresses the bound in aggregation intervals.
	AgeAggrIntervals AgeUnit = "aggr_intervals"
)

// AccessPattern is the six-dimensional region filter of a scheme:
// size, access frequency and age, each as an inclusive range. The
// frequency and age ranges are tagged with their unit; the two tags
// are independent of each other.
type AccessPattern struct {
	MinSzBytes uint64
	MaxSzBytes uint64

	MinNrAccesses  uint64
	MaxNrAccesses  uint64
	NrAccessesUnit NrAccessesUnit

	MinAge  uint64
	MaxAge  uint64
	AgeUnit AgeUnit
}

// NewAccessPattern parses the six bounds. The frequency bounds are
// interpreted per nrUnit and the age bounds per ageUnit; an
// out-of-domain unit tag fails with ErrInvalidUnit.
func NewAccessPattern(minSz, maxSz any,
	minAcc, maxAcc any, nrUnit NrAccessesUnit,
	minAge, maxAge any, ageUnit AgeUnit) (*AccessPattern, error) {

	p := &AccessPattern{NrAccessesUnit: nrUnit, AgeUnit: ageUnit}
	var err error

	if p.MinSzBytes, err = unit.ParseBytes(minSz); err != nil {
		return nil, fmt.Errorf("min size: %w", err)
	}
	if p.MaxSzBytes, err = unit.ParseBytes(maxSz); err != nil {
		return nil, fmt.Errorf("max size: %w", err)
	}

	switch nrUnit {
	case NrAccessesPercent:
		if p.MinNrAccesses, err = unit.ParsePercent(minAcc); err != nil {
			return nil, fmt.Errorf("min nr_accesses: %w", err)
		}
		if p.MaxNrAccesses, err = unit.ParsePercent(maxAcc); err != nil {
			return nil, fmt.Errorf("max nr_accesses: %w", err)
		}
	case NrAccessesSampleIntervals:
		if p.MinNrAccesses, err = unit.ParseNr(minAcc); err != nil {
			return nil, fmt.Errorf("min nr_accesses: %w", err)
		}
		if p.MaxNrAccesses, err = unit.ParseNr(maxAcc); err != nil {
			return nil, fmt.Errorf("max nr_accesses: %w", err)
		}
	default:
		return nil, errors.InvalidUnitf("nr_accesses_unit %q", nrUnit)
	}

	switch ageUnit {
	case AgeUsec:
		if p.MinAge, err = unit.ParseTimeUs(minAge); err != nil {
			return nil, fmt.Errorf("min age: %w", err)
		}
		if p.MaxAge, err = unit.ParseTimeUs(maxAge); err != nil {
			return nil, fmt.Errorf("max age: %w", err)
		}
	case AgeAggrIntervals:
		if p.MinAge, err = unit.ParseNr(minAge); err != nil {
			return nil, fmt.Errorf("min age: %w", err)
		}
		if p.MaxAge, err = unit.ParseNr(maxAge); err != nil {
			return nil, fmt.Errorf("max age: %w", err)
		}
	default:
		return nil, errors.InvalidUnitf("age_unit %q", ageUnit)
	}

	return p, nil
}

// DefaultAccessPattern matches every region: full size range, full
// frequency range in percent, full age range in microseconds. It is
// the pattern a monitoring-only scheme carries.
func DefaultAccessPattern() *AccessPattern {
	return &AccessPattern{
		MinSzBytes: 0, MaxSzBytes: unit.UnsetVal,
		MinNrAccesses: 0, MaxNrAccesses: 100,
		NrAccessesUnit: NrAccessesPercent,
		MinAge: 0, MaxAge: unit.UnsetVal,
		AgeUnit: AgeUsec,
	}
}

// Equal reports structural equality including the unit tags.
func (p *AccessPattern) Equal(other *AccessPattern) bool {
	return p != nil && other != nil && *p == *other
}

// convertNrAccessesUnit converts the frequency bounds in place.
// The conversion truncates and is lossy.
func (p *AccessPattern) convertNrAccessesUnit(nrUnit NrAccessesUnit, iv *Intervals) {
	if p.NrAccessesUnit == nrUnit {
		return
	}
	maxSamples := iv.MaxSampleIntervals()
	if nrUnit == NrAccessesSampleIntervals {
		p.MinNrAccesses = uint64(float64(p.MinNrAccesses) * maxSamples / 100)
		p.MaxNrAccesses = uint64(float64(p.MaxNrAccesses) * maxSamples / 100)
	} else {
		p.MinNrAccesses = uint64(float64(p.MinNrAccesses) * 100.0 / maxSamples)
		p.MaxNrAccesses = uint64(float64(p.MaxNrAccesses) * 100.0 / maxSamples)
	}
	p.NrAccessesUnit = nrUnit
}

// convertAgeUnit converts the age bounds in place. Multiplication
// saturates at the unset value instead of wrapping.
func (p *AccessPattern) convertAgeUnit(ageUnit AgeUnit, iv *Intervals) {
	if p.AgeUnit == ageUnit {
		return
	}
	if ageUnit == AgeUsec {
		p.MinAge = mulSaturating(p.MinAge, iv.AggrUs)
		p.MaxAge = mulSaturating(p.MaxAge, iv.AggrUs)
	} else {
		p.MinAge = uint64(float64(p.MinAge) / float64(iv.AggrUs))
		p.MaxAge = uint64(float64(p.MaxAge) / float64(iv.AggrUs))
	}
	p.AgeUnit = ageUnit
}

func mulSaturating(a, b uint64) uint64 {
	if b != 0 && a > math.MaxUint64/b {
		return math.MaxUint64
	}
	return a * b
}

// ConvertForUnits converts the pattern in place to the given unit
// pair. Conversions truncate, so a converted pattern is not guaranteed
// to convert back to the original values.
func (p *AccessPattern) ConvertForUnits(nrUnit NrAccessesUnit, ageUnit AgeUnit, iv *Intervals) {
	p.convertNrAccessesUnit(nrUnit, iv)
	p.convertAgeUnit(ageUnit, iv)
}

// ConvertedForUnits returns a converted copy, leaving p untouched.
func (p *AccessPattern) ConvertedForUnits(nrUnit NrAccessesUnit, ageUnit AgeUnit, iv *Intervals) *AccessPattern {
	copied := *p
	copied.ConvertForUnits(nrUnit, ageUnit, iv)
	return &copied
}

// EffectivelyEqual reports whether two patterns denote the same
// monitoring intent under the given intervals: both are normalized to
// the machine unit pair and compared structurally.
func (p *AccessPattern) EffectivelyEqual(other *AccessPattern, iv *Intervals) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.ConvertedForUnits(NrAccessesSampleIntervals, AgeAggrIntervals, iv).
		Equal(other.ConvertedForUnits(NrAccessesSampleIntervals, AgeAggrIntervals, iv))
}

func (p *AccessPattern) nrAccessesTexts(raw bool) (string, string) {
	suffix := string(p.NrAccessesUnit)
	if p.NrAccessesUnit == NrAccessesPercent {
		suffix = "%"
	}
	return fmt.Sprintf("%s %s", unit.FormatNr(p.MinNrAccesses, raw), suffix),
		fmt.Sprintf("%s %s", unit.FormatNr(p.MaxNrAccesses, raw), suffix)
}

func (p *AccessPattern) ageTexts(raw bool) (string, string) {
	if p.AgeUnit == AgeUsec {
		return unit.FormatTimeUs(p.MinAge, raw), unit.FormatTimeUs(p.MaxAge, raw)
	}
	return fmt.Sprintf("%s %s", unit.FormatNr(p.MinAge, raw), p.AgeUnit),
		fmt.Sprintf("%s %s", unit.FormatNr(p.MaxAge, raw), p.AgeUnit)
}

// ToStr renders the pattern for display.
func (p *AccessPattern) ToStr(raw bool) string {
	minAcc, maxAcc := p.nrAccessesTexts(raw)
	minAge, maxAge := p.ageTexts(raw)
	return strings.Join([]string{
		fmt.Sprintf("sz: [%s, %s]",
			unit.FormatSz(p.MinSzBytes, raw), unit.FormatSz(p.MaxSzBytes, raw)),
		fmt.Sprintf("nr_accesses: [%s, %s]", minAcc, maxAcc),
		fmt.Sprintf("age: [%s, %s]", minAge, maxAge),
	}, "\n")
}

func (p *AccessPattern) String() string {
	return p.ToStr(false)
}

// ToKvpairs serializes with the canonical key order min_sz_bytes,
// max_sz_bytes, min_nr_accesses, max_nr_accesses, min_age, max_age.
// The frequency and age values carry their unit in the text.
func (p *AccessPattern) ToKvpairs(raw bool) *Pairs {
	minAcc, maxAcc := p.nrAccessesTexts(raw)
	minAge, maxAge := p.ageTexts(raw)
	return NewPairs().
		Set("min_sz_bytes", unit.FormatSz(p.MinSzBytes, raw)).
		Set("max_sz_bytes", unit.FormatSz(p.MaxSzBytes, raw)).
		Set("min_nr_accesses", minAcc).
		Set("max_nr_accesses", maxAcc).
		Set("min_age", minAge).
		Set("max_age", maxAge)
}

// AccessPatternFromKvpairs is the inverse of ToKvpairs. The unit of
// each range is recovered from the value text: percent/usec forms are
// tried first, then the explicit "<nr> <unit>" form; the min and max
// of one range must agree on their unit.
func AccessPatternFromKvpairs(p *Pairs) (*AccessPattern, error) {
	minSz, err := p.require("min_sz_bytes")
	if err != nil {
		return nil, err
	}
	maxSz, err := p.require("max_sz_bytes")
	if err != nil {
		return nil, err
	}
	minAccVal, err := p.require("min_nr_accesses")
	if err != nil {
		return nil, err
	}
	maxAccVal, err := p.require("max_nr_accesses")
	if err != nil {
		return nil, err
	}
	minAgeVal, err := p.require("min_age")
	if err != nil {
		return nil, err
	}
	maxAgeVal, err := p.require("max_age")
	if err != nil {
		return nil, err
	}

	minAcc, maxAcc, nrUnit, err := parseNrAccessesPair(minAccVal, maxAccVal)
	if err != nil {
		return nil, err
	}
	minAge, maxAge, ageUnit, err := parseAgePair(minAgeVal, maxAgeVal)
	if err != nil {
		return nil, err
	}
	return NewAccessPattern(minSz, maxSz, minAcc, maxAcc, nrUnit, minAge, maxAge, ageUnit)
}

func parseNrAccessesPair(minVal, maxVal any) (uint64, uint64, NrAccessesUnit, error) {
	min, errMin := unit.ParsePercent(minVal)
	max, errMax := unit.ParsePercent(maxVal)
	if errMin == nil && errMax == nil {
		return min, max, NrAccessesPercent, nil
	}

	minText, okMin := minVal.(string)
	maxText, okMax := maxVal.(string)
	if !okMin || !okMax {
		return 0, 0, "", errors.InvalidNumberf("nr_accesses bounds %v, %v", minVal, maxVal)
	}
	min, minUnit, err := unit.ParseNrUnit(minText)
	if err != nil {
		return 0, 0, "", err
	}
	max, maxUnit, err := unit.ParseNrUnit(maxText)
	if err != nil {
		return 0, 0, "", err
	}
	if minUnit != maxUnit {
		return 0, 0, "", errors.InvalidUnitf("nr_accesses units differ: %q vs %q", minUnit, maxUnit)
	}
	if NrAccessesUnit(minUnit) != NrAccessesSampleIntervals {
		return 0, 0, "", errors.InvalidUnitf("nr_accesses_unit %q", minUnit)
	}
	return min, max, NrAccessesSampleIntervals, nil
}

func parseAgePair(minVal, maxVal any) (uint64, uint64, AgeUnit, error) {
	min, errMin := unit.ParseTimeUs(minVal)
	max, errMax := unit.ParseTimeUs(maxVal)
	if errMin == nil && errMax == nil {
		return min, max, AgeUsec, nil
	}

	minText, okMin := minVal.(string)
	maxText, okMax := maxVal.(string)
	if !okMin || !okMax {
		return 0, 0, "", errors.InvalidNumberf("age bounds %v, %v", minVal, maxVal)
	}
	min, minUnit, err := unit.ParseNrUnit(minText)
	if err != nil {
		return 0, 0, "", err
	}
	max, maxUnit, err := unit.ParseNrUnit(maxText)
	if err != nil {
		return 0, 0, "", err
	}
	if minUnit != maxUnit {
		return 0, 0, "", errors.InvalidUnitf("age units differ: %q vs %q", minUnit, maxUnit)
	}
	if AgeUnit(minUnit) != AgeAggrIntervals {
		return 0, 0, "", errors.InvalidUnitf("age_unit %q", minUnit)
	}
	return min, max, AgeAggrIntervals, nil
}

// =============================================================================
// Quotas
// =============================================================================

// Quotas bound how much work a scheme may do per reset interval, and
// weight how regions are prioritized once a quota is exceeded.
type Quotas struct {
	TimeMs          uint64
	SzBytes         uint64
	ResetIntervalMs uint64

	WeightSzPermil         uint64
	WeightNrAccessesPermil uint64
	WeightAgePermil        uint64
}

// NewQuotas parses the six quota fields from text or typed values.
func NewQuotas(timeMs, szBytes, resetIntervalMs, weightSz, weightNrAccesses, weightAge any) (*Quotas, error) {
	q := &Quotas{}
	var err error
	if q.TimeMs, err = unit.ParseTimeMs(timeMs); err != nil {
		return nil, fmt.Errorf("time quota: %w", err)
	}
	if q.SzBytes, err = unit.ParseBytes(szBytes); err != nil {
		return nil, fmt.Errorf("size quota: %w", err)
	}
	if q.ResetIntervalMs, err = unit.ParseTimeMs(resetIntervalMs); err != nil {
		return nil, fmt.Errorf("reset interval: %w", err)
	}
	if q.WeightSzPermil, err = unit.ParsePermil(weightSz); err != nil {
		return nil, fmt.Errorf("size weight: %w", err)
	}
	if q.WeightNrAccessesPermil, err = unit.ParsePermil(weightNrAccesses); err != nil {
		return nil, fmt.Errorf("nr_accesses weight: %w", err)
	}
	if q.WeightAgePermil, err = unit.ParsePermil(weightAge); err != nil {
		return nil, fmt.Errorf("age weight: %w", err)
	}
	return q, nil
}

// DefaultQuotas returns unlimited quotas: zero budgets with the
// maximum reset interval and zero weights.
func DefaultQuotas() *Quotas {
	return &Quotas{ResetIntervalMs: unit.UnsetVal}
}

// Equal reports canonical equality.
func (q *Quotas) Equal(other *Quotas) bool {
	return q != nil && other != nil && *q == *other
}

// ToStr renders the quotas for display.
func (q *Quotas) ToStr(raw bool) string {
	return strings.Join([]string{
		fmt.Sprintf("%s / %s per %s",
			unit.FormatTimeMs(q.TimeMs, raw),
			unit.FormatSz(q.SzBytes, raw),
			unit.FormatTimeMs(q.ResetIntervalMs, raw)),
		fmt.Sprintf("priority: sz %s, nr_accesses %s, age %s",
			unit.FormatPermil(q.WeightSzPermil, raw),
			unit.FormatPermil(q.WeightNrAccessesPermil, raw),
			unit.FormatPermil(q.WeightAgePermil, raw)),
	}, "\n")
}

func (q *Quotas) String() string {
	return q.ToStr(false)
}

// ToKvpairs serializes with the canonical key order time_ms, sz_bytes,
// reset_interval_ms, weight_sz_permil, weight_nr_accesses_permil,
// weight_age_permil.
func (q *Quotas) ToKvpairs(raw bool) *Pairs {
	return NewPairs().
		Set("time_ms", unit.FormatTimeMs(q.TimeMs, raw)).
		Set("sz_bytes", unit.FormatSz(q.SzBytes, raw)).
		Set("reset_interval_ms", unit.FormatTimeMs(q.ResetIntervalMs, raw)).
		Set("weight_sz_permil", unit.FormatPermil(q.WeightSzPermil, raw)).
		Set("weight_nr_accesses_permil", unit.FormatPermil(q.WeightNrAccessesPermil, raw)).
		Set("weight_age_permil", unit.FormatPermil(q.WeightAgePermil, raw))
}

// QuotasFromKvpairs is the inverse of ToKvpairs.
func QuotasFromKvpairs(p *Pairs) (*Quotas, error) {
	vals := make([]any, 6)
	for i, key := range []string{"time_ms", "sz_bytes", "reset_interval_ms",
		"weight_sz_permil", "weight_nr_accesses_permil", "weight_age_permil"} {
		v, err := p.require(key)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return NewQuotas(vals[0], vals[1], vals[2], vals[3], vals[4], vals[5])
}

// =============================================================================
// Watermarks
// =============================================================================

// WatermarkMetric names the system metric a scheme's activation is
// gated on.
type WatermarkMetric string

const (
	// WatermarkMetricNone disables watermark gating.
	WatermarkMetricNone WatermarkMetric = "none"
	// WatermarkMetricFreeMemRate gates on the free memory rate.
	WatermarkMetricFreeMemRate WatermarkMetric = "free_mem_rate"
)

// Watermarks gate a scheme's activation on a metric staying between
// thresholds: active while the metric is between Low and Mid, checked
// every IntervalUs.
type Watermarks struct {
	Metric     WatermarkMetric
	IntervalUs uint64
	HighPermil uint64
	MidPermil  uint64
	LowPermil  uint64
}

// NewWatermarks parses the watermark fields. An unrecognized metric
// fails with ErrInvalidUnit.
func NewWatermarks(metric string, intervalUs, high, mid, low any) (*Watermarks, error) {
	switch WatermarkMetric(metric) {
	case WatermarkMetricNone, WatermarkMetricFreeMemRate:
	default:
		return nil, errors.InvalidUnitf("watermark metric %q", metric)
	}
	w := &Watermarks{Metric: WatermarkMetric(metric)}
	var err error
	if w.IntervalUs, err = unit.ParseTimeUs(intervalUs); err != nil {
		return nil, fmt.Errorf("watermark interval: %w", err)
	}
	if w.HighPermil, err = unit.ParsePermil(high); err != nil {
		return nil, fmt.Errorf("high watermark: %w", err)
	}
	if w.MidPermil, err = unit.ParsePermil(mid); err != nil {
		return nil, fmt.Errorf("mid watermark: %w", err)
	}
	if w.LowPermil, err = unit.ParsePermil(low); err != nil {
		return nil, fmt.Errorf("low watermark: %w", err)
	}
	return w, nil
}

// DefaultWatermarks returns disabled watermarks.
func DefaultWatermarks() *Watermarks {
	return &Watermarks{Metric: WatermarkMetricNone}
}

// Equal reports canonical equality.
func (w *Watermarks) Equal(other *Watermarks) bool {
	return w != nil && other != nil && *w == *other
}

// ToStr renders the watermarks for display.
func (w *Watermarks) ToStr(raw bool) string {
	return strings.Join([]string{
		fmt.Sprintf("%s/%s/%s",
			unit.FormatPermil(w.HighPermil, raw),
			unit.FormatPermil(w.MidPermil, raw),
			unit.FormatPermil(w.LowPermil, raw)),
		fmt.Sprintf("metric %s, interval %s",
			w.Metric, unit.FormatTimeUs(w.IntervalUs, raw)),
	}, "\n")
}

func (w *Watermarks) String() string {
	return w.ToStr(false)
}

// ToKvpairs serializes with the canonical key order metric,
// interval_us, high_permil, mid_permil, low_permil.
func (w *Watermarks) ToKvpairs(raw bool) *Pairs {
	return NewPairs().
		Set("metric", string(w.Metric)).
		Set("interval_us", unit.FormatTimeUs(w.IntervalUs, raw)).
		Set("high_permil", unit.FormatPermil(w.HighPermil, raw)).
		Set("mid_permil", unit.FormatPermil(w.MidPermil, raw)).
		Set("low_permil", unit.FormatPermil(w.LowPermil, raw))
}

// WatermarksFromKvpairs is the inverse of ToKvpairs.
func WatermarksFromKvpairs(p *Pairs) (*Watermarks, error) {
	metric, err := p.requireString("metric")
	if err != nil {
		return nil, err
	}
	interval, err := p.require("interval_us")
	if err != nil {
		return nil, err
	}
	high, err := p.require("high_permil")
	if err != nil {
		return nil, err
	}
	mid, err := p.require("mid_permil")
	if err != nil {
		return nil, err
	}
	low, err := p.require("low_permil")
	if err != nil {
		return nil, err
	}
	return NewWatermarks(metric, interval, high, mid, low)
}

// =============================================================================
// Filters
// =============================================================================

// FilterType tags what a scheme filter matches on.
type FilterType string

const (
	// FilterTypeAnon matches anonymous pages.
	FilterTypeAnon FilterType = "anon"
	// FilterTypeMemcg matches pages of a memory cgroup.
	FilterTypeMemcg FilterType = "memcg"
)

// Filter excludes or restricts the pages a scheme's action applies to.
// MemcgPath is required iff Type is memcg. Matching true applies the
// action to matching pages, false to non-matching ones.
type Filter struct {
	Name      string
	Type      FilterType
	MemcgPath string
	Matching  bool
}

// NewFilter validates and builds a filter.
func NewFilter(name string, filterType string, memcgPath string, matching any) (*Filter, error) {
	ft := FilterType(filterType)
	switch ft {
	case FilterTypeAnon, FilterTypeMemcg:
	default:
		return nil, errors.InvalidUnitf("filter_type %q", filterType)
	}
	if ft == FilterTypeMemcg && memcgPath == "" {
		return nil, fmt.Errorf("%w: memcg filter needs memcg_path", errors.ErrInvalidArgument)
	}
	if ft != FilterTypeMemcg {
		memcgPath = ""
	}
	m, err := unit.ParseBool(matching)
	if err != nil {
		return nil, fmt.Errorf("matching: %w", err)
	}
	return &Filter{Name: name, Type: ft, MemcgPath: memcgPath, Matching: m}, nil
}

// Equal reports structural equality.
func (f *Filter) Equal(other *Filter) bool {
	return f != nil && other != nil && *f == *other
}

// ToStr renders the filter for display.
func (f *Filter) ToStr(raw bool) string {
	memcg := ""
	if f.Type == FilterTypeMemcg {
		memcg = fmt.Sprintf("memcg_path %s, ", f.MemcgPath)
	}
	return fmt.Sprintf("filter_type %s, %smatching %v", f.Type, memcg, f.Matching)
}

func (f *Filter) String() string {
	return f.ToStr(false)
}

// ToKvpairs serializes with the canonical key order name, filter_type,
// memcg_path, matching.
func (f *Filter) ToKvpairs(raw bool) *Pairs {
	return NewPairs().
		Set("name", f.Name).
		Set("filter_type", string(f.Type)).
		Set("memcg_path", f.MemcgPath).
		Set("matching", f.Matching)
}

// FilterFromKvpairs is the inverse of ToKvpairs.
func FilterFromKvpairs(p *Pairs) (*Filter, error) {
	name, err := p.requireString("name")
	if err != nil {
		return nil, err
	}
	filterType, err := p.requireString("filter_type")
	if err != nil {
		return nil, err
	}
	memcgPath := ""
	if FilterType(filterType) == FilterTypeMemcg {
		if memcgPath, err = p.requireString("memcg_path"); err != nil {
			return nil, err
		}
	}
	matching, err := p.require("matching")
	if err != nil {
		return nil, err
	}
	return NewFilter(name, filterType, memcgPath, matching)
}

// =============================================================================
// Stats and tried regions
// =============================================================================

// Stats is the runtime counter set of one scheme, read back from a
// live kdamond.
type Stats struct {
	NrTried   uint64
	SzTried   uint64
	NrApplied uint64
	SzApplied uint64
	QtExceeds uint64
}

// ToStr renders the statistics for display.
func (s *Stats) ToStr(raw bool) string {
	return strings.Join([]string{
		fmt.Sprintf("tried %d times (%s)", s.NrTried, unit.FormatSz(s.SzTried, raw)),
		fmt.Sprintf("applied %d times (%s)", s.NrApplied, unit.FormatSz(s.SzApplied, raw)),
		fmt.Sprintf("quota exceeded %d times", s.QtExceeds),
	}, "\n")
}

func (s *Stats) String() string {
	return s.ToStr(false)
}

// TriedRegion is one region a scheme's action was tried on, with the
// observed access count (in sample intervals) and age (in aggregation
// intervals), populated only after a live query.
type TriedRegion struct {
	Start      uint64
	End        uint64
	NrAccesses uint64
	Age        uint64
}

// ToStr renders the region. With intervals given and raw false, the
// access count is scaled to a percentage of the maximum samples per
// aggregation window and the age to wall-clock time.
func (r *TriedRegion) ToStr(raw bool, iv *Intervals) string {
	var nrAccesses, age string
	if !raw && iv != nil {
		nrAccesses = fmt.Sprintf("%.2f%%",
			float64(r.NrAccesses)*100/iv.MaxSampleIntervals())
		age = unit.FormatTimeUs(mulSaturating(r.Age, iv.AggrUs), raw)
	} else {
		nrAccesses = unit.FormatNr(r.NrAccesses, raw)
		age = unit.FormatNr(r.Age, raw)
	}
	return fmt.Sprintf("%s: nr_accesses: %s, age: %s",
		unit.FormatAddrRange(r.Start, r.End, raw), nrAccesses, age)
}

func (r *TriedRegion) String() string {
	return r.ToStr(false, nil)
}

// =============================================================================
// Scheme
// =============================================================================

// Action is the operation a scheme applies to matching regions.
type Action string

const (
	ActionWillneed   Action = "willneed"
	ActionCold       Action = "cold"
	ActionPageout    Action = "pageout"
	ActionHugepage   Action = "hugepage"
	ActionNohugepage Action = "nohugepage"
	ActionLruPrio    Action = "lru_prio"
	ActionLruDeprio  Action = "lru_deprio"
	ActionStat       Action = "stat"
)

// ValidAction reports whether the action tag is known.
func ValidAction(a Action) bool {
	switch a {
	case ActionWillneed, ActionCold, ActionPageout, ActionHugepage,
		ActionNohugepage, ActionLruPrio, ActionLruDeprio, ActionStat:
		return true
	}
	return false
}

// Scheme is one operation policy: apply Action to regions matching
// AccessPattern, subject to Quotas and Watermarks, narrowed by
// Filters. Stats and TriedRegions are runtime state and excluded from
// equality.
type Scheme struct {
	Name          string
	AccessPattern *AccessPattern
	Action        Action
	Quotas        *Quotas
	Watermarks    *Watermarks
	Filters       []*Filter

	Stats        *Stats
	TriedRegions []*TriedRegion
}

// DefaultScheme returns the canonical monitoring-only scheme: match
// everything, count-only action, no quotas, no watermarks, no filters.
func DefaultScheme() *Scheme {
	return &Scheme{
		Name:          "0",
		AccessPattern: DefaultAccessPattern(),
		Action:        ActionStat,
		Quotas:        DefaultQuotas(),
		Watermarks:    DefaultWatermarks(),
	}
}

// Equal reports structural equality of the configured fields.
func (s *Scheme) Equal(other *Scheme) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Name != other.Name || s.Action != other.Action ||
		!s.AccessPattern.Equal(other.AccessPattern) ||
		!s.Quotas.Equal(other.Quotas) ||
		!s.Watermarks.Equal(other.Watermarks) {
		return false
	}
	return filtersEqual(s.Filters, other.Filters)
}

// EffectivelyEqual reports whether two schemes denote the same policy
// under the given intervals, ignoring the scheme name and the unit
// choice of the access patterns.
func (s *Scheme) EffectivelyEqual(other *Scheme, iv *Intervals) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.AccessPattern.EffectivelyEqual(other.AccessPattern, iv) &&
		s.Action == other.Action &&
		s.Quotas.Equal(other.Quotas) &&
		s.Watermarks.Equal(other.Watermarks) &&
		filtersEqual(s.Filters, other.Filters)
}

func filtersEqual(a, b []*Filter) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// IsMonitoringScheme reports whether the scheme has no effect beyond
// counting: it is effectively equal to the default scheme under the
// given intervals.
func IsMonitoringScheme(s *Scheme, iv *Intervals) bool {
	return DefaultScheme().EffectivelyEqual(s, iv)
}

// ToStr renders the scheme and its runtime state for display.
func (s *Scheme) ToStr(raw bool) string {
	lines := []string{
		fmt.Sprintf("%s (action: %s)", s.Name, s.Action),
		"target access pattern",
		indentLines(s.AccessPattern.ToStr(raw), 4),
		"quotas",
		indentLines(s.Quotas.ToStr(raw), 4),
		"watermarks",
		indentLines(s.Watermarks.ToStr(raw), 4),
	}
	if len(s.Filters) > 0 {
		lines = append(lines, "filters")
		for _, f := range s.Filters {
			lines = append(lines, indentLines(f.ToStr(raw), 4))
		}
	}
	if s.Stats != nil {
		lines = append(lines, "statistics", indentLines(s.Stats.ToStr(raw), 4))
	}
	if s.TriedRegions != nil {
		lines = append(lines, "tried regions")
		for _, r := range s.TriedRegions {
			lines = append(lines, indentLines(r.ToStr(raw, nil), 4))
		}
	}
	return strings.Join(lines, "\n")
}

func (s *Scheme) String() string {
	return s.ToStr(false)
}

func indentLines(text string, indent int) string {
	pad := strings.Repeat(" ", indent)
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = pad + lines[i]
	}
	return strings.Join(lines, "\n")
}

// ToKvpairs serializes with the canonical key order name, action,
// access_pattern, quotas, watermarks, filters. Runtime state is not
// serialized.
func (s *Scheme) ToKvpairs(raw bool) *Pairs {
	filters := make([]*Pairs, 0, len(s.Filters))
	for _, f := range s.Filters {
		filters = append(filters, f.ToKvpairs(raw))
	}
	return NewPairs().
		Set("name", s.Name).
		Set("action", string(s.Action)).
		Set("access_pattern", s.AccessPattern.ToKvpairs(raw)).
		Set("quotas", s.Quotas.ToKvpairs(raw)).
		Set("watermarks", s.Watermarks.ToKvpairs(raw)).
		Set("filters", filters)
}

// SchemeFromKvpairs is the inverse of ToKvpairs. Absent optional keys
// fall back to the monitoring-only defaults.
func SchemeFromKvpairs(p *Pairs) (*Scheme, error) {
	name, err := p.requireString("name")
	if err != nil {
		return nil, err
	}
	s := DefaultScheme()
	s.Name = name

	if actionVal, ok := p.Get("action"); ok {
		actionText, ok := actionVal.(string)
		if !ok || !ValidAction(Action(actionText)) {
			return nil, errors.InvalidUnitf("scheme action %v", actionVal)
		}
		s.Action = Action(actionText)
	}
	if patternPairs, err := p.optionalPairs("access_pattern"); err != nil {
		return nil, err
	} else if patternPairs != nil {
		if s.AccessPattern, err = AccessPatternFromKvpairs(patternPairs); err != nil {
			return nil, err
		}
	}
	if quotaPairs, err := p.optionalPairs("quotas"); err != nil {
		return nil, err
	} else if quotaPairs != nil {
		if s.Quotas, err = QuotasFromKvpairs(quotaPairs); err != nil {
			return nil, err
		}
	}
	if wmarkPairs, err := p.optionalPairs("watermarks"); err != nil {
		return nil, err
	} else if wmarkPairs != nil {
		if s.Watermarks, err = WatermarksFromKvpairs(wmarkPairs); err != nil {
			return nil, err
		}
	}
	filterPairs, err := p.optionalList("filters")
	if err != nil {
		return nil, err
	}
	for _, fp := range filterPairs {
		f, err := FilterFromKvpairs(fp)
		if err != nil {
			return nil, err
		}
		s.Filters = append(s.Filters, f)
	}
	return s, nil
}
