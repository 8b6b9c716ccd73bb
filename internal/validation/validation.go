// Package validation provides centralized spec validation for
// damonctl: structural checks the configuration tree constructors do
// not enforce, applied before a spec is handed to a backend.
package validation

import (
	"fmt"
	"unicode"

	"github.com/xtxerr/damonctl/internal/damon"
	"github.com/xtxerr/damonctl/internal/unit"
)

// =============================================================================
// Name Validation
// =============================================================================

// NameRules defines the validation rules for entity names.
type NameRules struct {
	MinLength    int
	MaxLength    int
	AllowDots    bool
	AllowHyphens bool
	AllowUnders  bool
}

// DefaultNameRules returns the rules for kdamond, context, target and
// scheme names. Names end up as control-file directory components, so
// the character set is kept narrow.
func DefaultNameRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    255,
		AllowDots:    false,
		AllowHyphens: true,
		AllowUnders:  true,
	}
}

// ValidateName validates a name according to the given rules.
func ValidateName(name string, rules NameRules) error {
	if len(name) < rules.MinLength {
		return fmt.Errorf("name too short: minimum %d characters required", rules.MinLength)
	}
	if len(name) > rules.MaxLength {
		return fmt.Errorf("name too long: maximum %d characters allowed", rules.MaxLength)
	}
	for i, r := range name {
		if r < 32 || r == 127 {
			return fmt.Errorf("name cannot contain control characters at position %d", i)
		}
		if r == '/' || r == '\\' {
			return fmt.Errorf("name cannot contain path separators at position %d", i)
		}
		if !isAllowedNameChar(r, rules) {
			return fmt.Errorf("invalid character '%c' at position %d", r, i)
		}
	}
	return nil
}

func isAllowedNameChar(r rune, rules NameRules) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '.':
		return rules.AllowDots
	case '-':
		return rules.AllowHyphens
	case '_':
		return rules.AllowUnders
	}
	return false
}

// =============================================================================
// Configuration Tree Validation
// =============================================================================

// Intervals checks interval sanity: the sampling interval must be
// positive and no larger than the aggregation interval.
func Intervals(iv *damon.Intervals) error {
	if iv.SampleUs == 0 {
		return fmt.Errorf("sample interval must be positive")
	}
	if iv.AggrUs < iv.SampleUs {
		return fmt.Errorf("aggregation interval %s is shorter than sampling interval %s",
			unit.FormatTimeUs(iv.AggrUs, false), unit.FormatTimeUs(iv.SampleUs, false))
	}
	return nil
}

// NrRegionsRange checks that the region count bounds are ordered. The
// constructor deliberately leaves this unchecked so callers can stage
// partial edits; backends reject unordered bounds, so a spec headed
// for a backend must pass here.
func NrRegionsRange(r *damon.NrRegionsRange) error {
	if r.Min > r.Max {
		return fmt.Errorf("nr_regions minimum %d exceeds maximum %d", r.Min, r.Max)
	}
	return nil
}

// Region checks address range ordering.
func Region(r *damon.Region) error {
	if r.Start > r.End {
		return fmt.Errorf("region start %d exceeds end %d", r.Start, r.End)
	}
	return nil
}

// Quotas checks the priority weights, which are per-mille shares.
func Quotas(q *damon.Quotas) error {
	for _, w := range []struct {
		name   string
		permil uint64
	}{
		{"sz", q.WeightSzPermil},
		{"nr_accesses", q.WeightNrAccessesPermil},
		{"age", q.WeightAgePermil},
	} {
		if w.permil > 1000 {
			return fmt.Errorf("%s weight %d exceeds 1000 permil", w.name, w.permil)
		}
	}
	return nil
}

// Watermarks checks threshold ordering and ranges.
func Watermarks(w *damon.Watermarks) error {
	if w.Metric == damon.WatermarkMetricNone {
		return nil
	}
	for _, t := range []struct {
		name   string
		permil uint64
	}{
		{"high", w.HighPermil},
		{"mid", w.MidPermil},
		{"low", w.LowPermil},
	} {
		if t.permil > 1000 {
			return fmt.Errorf("%s watermark %d exceeds 1000 permil", t.name, t.permil)
		}
	}
	if w.HighPermil < w.MidPermil || w.MidPermil < w.LowPermil {
		return fmt.Errorf("watermarks must be ordered high >= mid >= low, got %d/%d/%d",
			w.HighPermil, w.MidPermil, w.LowPermil)
	}
	return nil
}

// Scheme checks one scheme and its sub-values.
func Scheme(s *damon.Scheme) error {
	if err := ValidateName(s.Name, DefaultNameRules()); err != nil {
		return fmt.Errorf("scheme name %q: %w", s.Name, err)
	}
	if !damon.ValidAction(s.Action) {
		return fmt.Errorf("scheme %q: unknown action %q", s.Name, s.Action)
	}
	if err := Quotas(s.Quotas); err != nil {
		return fmt.Errorf("scheme %q: %w", s.Name, err)
	}
	if err := Watermarks(s.Watermarks); err != nil {
		return fmt.Errorf("scheme %q: %w", s.Name, err)
	}
	return nil
}

// Context checks one context and everything below it.
func Context(c *damon.Context) error {
	if err := ValidateName(c.Name, DefaultNameRules()); err != nil {
		return fmt.Errorf("context name %q: %w", c.Name, err)
	}
	if !damon.ValidOpsType(c.Ops) {
		return fmt.Errorf("context %q: unknown ops type %q", c.Name, c.Ops)
	}
	if err := Intervals(c.Intervals); err != nil {
		return fmt.Errorf("context %q: %w", c.Name, err)
	}
	if err := NrRegionsRange(c.NrRegions); err != nil {
		return fmt.Errorf("context %q: %w", c.Name, err)
	}
	for _, t := range c.Targets {
		if damon.TargetHasPid(c.Ops) && t.Pid == nil {
			return fmt.Errorf("context %q: target %q needs a pid under %s", c.Name, t.Name, c.Ops)
		}
		for _, r := range t.Regions {
			if err := Region(r); err != nil {
				return fmt.Errorf("context %q target %q: %w", c.Name, t.Name, err)
			}
		}
	}
	for _, s := range c.Schemes {
		if err := Scheme(s); err != nil {
			return fmt.Errorf("context %q: %w", c.Name, err)
		}
	}
	return nil
}

// Kdamond checks one worker spec.
func Kdamond(k *damon.Kdamond) error {
	if err := ValidateName(k.Name, DefaultNameRules()); err != nil {
		return fmt.Errorf("kdamond name %q: %w", k.Name, err)
	}
	if len(k.Contexts) == 0 {
		return fmt.Errorf("kdamond %q has no contexts", k.Name)
	}
	for _, c := range k.Contexts {
		if err := Context(c); err != nil {
			return fmt.Errorf("kdamond %q: %w", k.Name, err)
		}
	}
	return nil
}

// Kdamonds checks a whole spec, including name uniqueness.
func Kdamonds(kdamonds []*damon.Kdamond) error {
	seen := make(map[string]bool, len(kdamonds))
	for _, k := range kdamonds {
		if seen[k.Name] {
			return fmt.Errorf("duplicate kdamond name %q", k.Name)
		}
		seen[k.Name] = true
		if err := Kdamond(k); err != nil {
			return err
		}
	}
	return nil
}
