// Package unit converts monitoring configuration scalars between
// human-friendly text and canonical machine units.
//
// Every parser accepts an already-typed number, a bare integer string,
// a thousands-grouped string ("1,000"), the aliases "min" and "max",
// and where it makes sense a unit-suffixed string ("5ms", "4K",
// "15 %"). Every formatter has two modes: raw (plain integer, no
// grouping, no unit) and human (grouped and suffixed, for display).
package unit

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xtxerr/damonctl/internal/errors"
)

// UnsetVal is the canonical "max" value of every unbounded field.
const UnsetVal = math.MaxUint64

// =============================================================================
// Plain Numbers
// =============================================================================

// ParseNr parses a plain non-negative count.
func ParseNr(v any) (uint64, error) {
	if n, ok, err := typedNumber(v); ok || err != nil {
		return n, err
	}
	text := strings.TrimSpace(v.(string))
	switch text {
	case "min":
		return 0, nil
	case "max":
		return UnsetVal, nil
	}
	n, err := strconv.ParseUint(strings.ReplaceAll(text, ",", ""), 10, 64)
	if err != nil {
		return 0, errors.InvalidNumberf("%q", text)
	}
	return n, nil
}

// FormatNr formats a count. Human mode groups thousands with commas.
func FormatNr(v uint64, raw bool) string {
	s := strconv.FormatUint(v, 10)
	if raw {
		return s
	}
	return groupThousands(s)
}

func groupThousands(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// ParseNrUnit splits a "<number> <unit>" string such as
// "50 aggr_intervals" into its value and unit tag.
func ParseNrUnit(text string) (uint64, string, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return 0, "", errors.InvalidNumberf("expected '<number> <unit>', got %q", text)
	}
	n, err := ParseNr(fields[0])
	if err != nil {
		return 0, "", err
	}
	return n, fields[1], nil
}

// =============================================================================
// Time
// =============================================================================

// Multipliers in microseconds. Compound text like "1 m 30 s" sums its
// components.
var usMultipliers = []struct {
	suffix string
	us     float64
}{
	{"ns", 0.001},
	{"us", 1},
	{"ms", 1000},
	{"s", 1000 * 1000},
	{"m", 60 * 1000 * 1000},
	{"h", 60 * 60 * 1000 * 1000},
	{"d", 24 * 60 * 60 * 1000 * 1000},
}

// ParseTimeUs parses a duration into microseconds. Bare numbers are
// taken as microseconds already.
func ParseTimeUs(v any) (uint64, error) {
	return parseTime(v, 1)
}

// ParseTimeMs parses a duration into milliseconds. Bare numbers are
// taken as milliseconds already.
func ParseTimeMs(v any) (uint64, error) {
	return parseTime(v, 1000)
}

func parseTime(v any, canonicalUs float64) (uint64, error) {
	if n, ok, err := typedNumber(v); ok || err != nil {
		return n, err
	}
	text := strings.TrimSpace(v.(string))
	switch text {
	case "min":
		return 0, nil
	case "max":
		return UnsetVal, nil
	}

	// Bare number, possibly grouped: already in the canonical unit.
	if n, err := strconv.ParseUint(strings.ReplaceAll(text, ",", ""), 10, 64); err == nil {
		return n, nil
	}

	var totalUs float64
	for _, field := range splitTimeFields(text) {
		value, mult, err := splitTimeSuffix(field)
		if err != nil {
			return 0, err
		}
		totalUs += value * mult
	}
	return uint64(totalUs / canonicalUs), nil
}

// splitTimeFields normalizes "1 m 30 s" and "1m 30s" alike into
// number+suffix tokens.
func splitTimeFields(text string) []string {
	fields := strings.Fields(text)
	var tokens []string
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if _, err := strconv.ParseFloat(strings.ReplaceAll(f, ",", ""), 64); err == nil &&
			i+1 < len(fields) {
			tokens = append(tokens, f+fields[i+1])
			i++
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func splitTimeSuffix(token string) (float64, float64, error) {
	for i := len(usMultipliers) - 1; i >= 0; i-- {
		m := usMultipliers[i]
		if !strings.HasSuffix(token, m.suffix) {
			continue
		}
		num := strings.TrimSpace(strings.TrimSuffix(token, m.suffix))
		value, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
		if err != nil {
			continue
		}
		return value, m.us, nil
	}
	return 0, 0, errors.InvalidNumberf("unrecognized time %q", token)
}

// FormatTimeUs formats microseconds. Human mode composes exact unit
// components ("5 ms", "1 s", "1 m 30 s"); 2^64-1 formats as "max".
func FormatTimeUs(us uint64, raw bool) string {
	if raw {
		return strconv.FormatUint(us, 10)
	}
	if us == UnsetVal {
		return "max"
	}
	return composeTime(us)
}

// FormatTimeMs formats milliseconds analogously to FormatTimeUs.
func FormatTimeMs(ms uint64, raw bool) string {
	if raw {
		return strconv.FormatUint(ms, 10)
	}
	if ms == UnsetVal {
		return "max"
	}
	// ms * 1000 can overflow for large finite budgets; compose in ms
	// units directly.
	if ms > UnsetVal/1000 {
		return FormatNr(ms, false) + " ms"
	}
	return composeTime(ms * 1000)
}

func composeTime(us uint64) string {
	if us == 0 {
		return "0 us"
	}
	units := []struct {
		name string
		us   uint64
	}{
		{"d", 24 * 60 * 60 * 1000 * 1000},
		{"h", 60 * 60 * 1000 * 1000},
		{"m", 60 * 1000 * 1000},
		{"s", 1000 * 1000},
		{"ms", 1000},
		{"us", 1},
	}
	var parts []string
	for _, u := range units {
		if us >= u.us {
			parts = append(parts, fmt.Sprintf("%d %s", us/u.us, u.name))
			us %= u.us
		}
	}
	return strings.Join(parts, " ")
}

// =============================================================================
// Sizes
// =============================================================================

var szSuffixes = []struct {
	suffix string
	bytes  uint64
}{
	{"PiB", 1 << 50}, {"P", 1 << 50},
	{"TiB", 1 << 40}, {"T", 1 << 40},
	{"GiB", 1 << 30}, {"G", 1 << 30},
	{"MiB", 1 << 20}, {"M", 1 << 20},
	{"KiB", 1 << 10}, {"K", 1 << 10},
	{"B", 1},
}

// ParseBytes parses a byte size. Bare numbers are bytes; "1K" is 1024.
func ParseBytes(v any) (uint64, error) {
	if n, ok, err := typedNumber(v); ok || err != nil {
		return n, err
	}
	text := strings.TrimSpace(v.(string))
	switch text {
	case "min":
		return 0, nil
	case "max":
		return UnsetVal, nil
	}
	for _, s := range szSuffixes {
		if !strings.HasSuffix(text, s.suffix) {
			continue
		}
		num := strings.TrimSpace(strings.TrimSuffix(text, s.suffix))
		value, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
		if err != nil {
			continue
		}
		return uint64(value * float64(s.bytes)), nil
	}
	n, err := strconv.ParseUint(strings.ReplaceAll(text, ",", ""), 10, 64)
	if err != nil {
		return 0, errors.InvalidNumberf("unrecognized size %q", text)
	}
	return n, nil
}

// FormatSz formats a byte size. Human mode uses binary suffixes with
// three decimals ("4.000 KiB") and plain bytes below 1 KiB.
func FormatSz(bytes uint64, raw bool) string {
	if raw {
		return strconv.FormatUint(bytes, 10)
	}
	if bytes == UnsetVal {
		return "max"
	}
	if bytes < 1<<10 {
		return fmt.Sprintf("%d B", bytes)
	}
	value := float64(bytes)
	for _, name := range []string{"KiB", "MiB", "GiB", "TiB", "PiB"} {
		value /= 1024
		if value < 1024 {
			return fmt.Sprintf("%.3f %s", value, name)
		}
	}
	return fmt.Sprintf("%.3f EiB", value/1024)
}

// FormatAddrRange formats a half-open address range with its size.
func FormatAddrRange(start, end uint64, raw bool) string {
	sz := end - start
	szStr := FormatSz(sz, raw)
	if raw {
		szStr = FormatNr(sz, true)
	}
	return fmt.Sprintf("[%s, %s) (%s)", FormatNr(start, raw), FormatNr(end, raw), szStr)
}

// =============================================================================
// Percent / Permil
// =============================================================================

// ParsePercent parses a percentage in [0, 100]. "max" is 100.
func ParsePercent(v any) (uint64, error) {
	if n, ok, err := typedNumber(v); ok || err != nil {
		return n, err
	}
	text := strings.TrimSpace(v.(string))
	switch text {
	case "min":
		return 0, nil
	case "max":
		return 100, nil
	}
	text = strings.TrimSpace(strings.TrimSuffix(text, "%"))
	value, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
	if err != nil || value < 0 {
		return 0, errors.InvalidNumberf("unrecognized percent %q", v)
	}
	return uint64(value), nil
}

// ParsePermil parses a per-mille weight. Percent-suffixed text is
// multiplied by ten ("7.6 %" is 76); typed numbers are taken as
// permil already.
func ParsePermil(v any) (uint64, error) {
	if n, ok, err := typedNumber(v); ok || err != nil {
		return n, err
	}
	text := strings.TrimSpace(v.(string))
	if strings.HasSuffix(text, "%") {
		text = strings.TrimSpace(strings.TrimSuffix(text, "%"))
		value, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
		if err != nil || value < 0 {
			return 0, errors.InvalidNumberf("unrecognized permil %q", v)
		}
		return uint64(value * 10), nil
	}
	n, err := strconv.ParseUint(strings.ReplaceAll(text, ",", ""), 10, 64)
	if err != nil {
		return 0, errors.InvalidNumberf("unrecognized permil %q", v)
	}
	return n, nil
}

// FormatPermil formats a per-mille weight as percent text.
func FormatPermil(permil uint64, raw bool) string {
	if permil%10 == 0 {
		return fmt.Sprintf("%s %%", FormatNr(permil/10, raw))
	}
	return fmt.Sprintf("%d.%d %%", permil/10, permil%10)
}

// =============================================================================
// Booleans
// =============================================================================

// ParseBool parses a boolean flag.
func ParseBool(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	text, ok := v.(string)
	if !ok {
		return false, errors.InvalidNumberf("unrecognized boolean %v", v)
	}
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "true", "yes", "y", "1":
		return true, nil
	case "false", "no", "n", "0":
		return false, nil
	}
	return false, errors.InvalidNumberf("unrecognized boolean %q", text)
}

// =============================================================================
// Helpers
// =============================================================================

// typedNumber handles inputs that are already numbers. The bool result
// reports whether v was consumed; a false, nil return means v is text
// and the caller should parse it.
func typedNumber(v any) (uint64, bool, error) {
	switch n := v.(type) {
	case uint64:
		return n, true, nil
	case uint:
		return uint64(n), true, nil
	case uint32:
		return uint64(n), true, nil
	case int:
		if n < 0 {
			return 0, true, errors.InvalidNumberf("negative value %d", n)
		}
		return uint64(n), true, nil
	case int32:
		if n < 0 {
			return 0, true, errors.InvalidNumberf("negative value %d", n)
		}
		return uint64(n), true, nil
	case int64:
		if n < 0 {
			return 0, true, errors.InvalidNumberf("negative value %d", n)
		}
		return uint64(n), true, nil
	case float64:
		if n < 0 {
			return 0, true, errors.InvalidNumberf("negative value %v", n)
		}
		return uint64(n), true, nil
	case string:
		return 0, false, nil
	}
	return 0, true, errors.InvalidNumberf("unsupported value %v", v)
}
