package damon

import (
	"reflect"
	"testing"

	"github.com/xtxerr/damonctl/internal/errors"
)

func TestIntervalsToStr(t *testing.T) {
	iv, err := NewIntervals(5000, 100000, 1000000)
	if err != nil {
		t.Fatalf("NewIntervals: %v", err)
	}
	if got, want := iv.ToStr(false), "sample 5 ms, aggr 100 ms, update 1 s"; got != want {
		t.Errorf("human: got %q, want %q", got, want)
	}
	if got, want := iv.ToStr(true), "sample 5000, aggr 100000, update 1000000"; got != want {
		t.Errorf("raw: got %q, want %q", got, want)
	}
}

func TestIntervalsKvpairsRoundTrip(t *testing.T) {
	iv := DefaultIntervals()
	for _, raw := range []bool{false, true} {
		p := iv.ToKvpairs(raw)
		wantKeys := []string{"sample_us", "aggr_us", "ops_update_us"}
		if !reflect.DeepEqual(p.Keys(), wantKeys) {
			t.Errorf("raw=%v: keys %v, want %v", raw, p.Keys(), wantKeys)
		}
		back, err := IntervalsFromKvpairs(p)
		if err != nil {
			t.Fatalf("raw=%v: IntervalsFromKvpairs: %v", raw, err)
		}
		if !iv.Equal(back) {
			t.Errorf("raw=%v: round trip changed %v to %v", raw, iv, back)
		}
	}
}

func TestNrRegionsRangeToStr(t *testing.T) {
	r := DefaultNrRegionsRange()
	if got, want := r.ToStr(false), "[10, 1,000]"; got != want {
		t.Errorf("human: got %q, want %q", got, want)
	}
	if got, want := r.ToStr(true), "[10, 1000]"; got != want {
		t.Errorf("raw: got %q, want %q", got, want)
	}
}

func TestRegionToStr(t *testing.T) {
	r, err := NewRegion(123, 456)
	if err != nil {
		t.Fatalf("NewRegion: %v", err)
	}
	if got, want := r.ToStr(false), "[123, 456) (333 B)"; got != want {
		t.Errorf("human: got %q, want %q", got, want)
	}
	if got, want := r.ToStr(true), "[123, 456) (333)"; got != want {
		t.Errorf("raw: got %q, want %q", got, want)
	}
}

func TestRegionKvpairs(t *testing.T) {
	r, err := NewRegion(1234, 5678)
	if err != nil {
		t.Fatalf("NewRegion: %v", err)
	}
	p := r.ToKvpairs(false)
	if v, _ := p.Get("start"); v != "1,234" {
		t.Errorf("human start: got %v, want 1,234", v)
	}
	if v, _ := p.Get("end"); v != "5,678" {
		t.Errorf("human end: got %v, want 5,678", v)
	}
	back, err := RegionFromKvpairs(p)
	if err != nil {
		t.Fatalf("RegionFromKvpairs: %v", err)
	}
	if !r.Equal(back) {
		t.Errorf("round trip changed %v to %v", r, back)
	}
}

func TestAccessPatternConvert(t *testing.T) {
	iv, err := NewIntervals(5000, 100000, 1000000)
	if err != nil {
		t.Fatalf("NewIntervals: %v", err)
	}
	human, err := NewAccessPattern("4K", "64K",
		15, "10,000", NrAccessesPercent,
		"5,000,000 us", "190,000,000 us", AgeUsec)
	if err != nil {
		t.Fatalf("NewAccessPattern: %v", err)
	}

	machine := human.ConvertedForUnits(NrAccessesSampleIntervals, AgeAggrIntervals, iv)
	want := &AccessPattern{
		MinSzBytes: 4096, MaxSzBytes: 65536,
		MinNrAccesses: 3, MaxNrAccesses: 2000,
		NrAccessesUnit: NrAccessesSampleIntervals,
		MinAge: 50, MaxAge: 1900,
		AgeUnit: AgeAggrIntervals,
	}
	if !machine.Equal(want) {
		t.Errorf("converted to machine units: got %+v, want %+v", machine, want)
	}
	if human.NrAccessesUnit != NrAccessesPercent {
		t.Errorf("ConvertedForUnits mutated the receiver: %+v", human)
	}

	back := machine.ConvertedForUnits(NrAccessesPercent, AgeUsec, iv)
	wantBack := &AccessPattern{
		MinSzBytes: 4096, MaxSzBytes: 65536,
		MinNrAccesses: 15, MaxNrAccesses: 10000,
		NrAccessesUnit: NrAccessesPercent,
		MinAge: 5000000, MaxAge: 190000000,
		AgeUnit: AgeUsec,
	}
	if !back.Equal(wantBack) {
		t.Errorf("converted back to human units: got %+v, want %+v", back, wantBack)
	}
}

func TestAccessPatternEffectivelyEqual(t *testing.T) {
	iv := DefaultIntervals()
	human := DefaultAccessPattern()
	machine := human.ConvertedForUnits(NrAccessesSampleIntervals, AgeAggrIntervals, iv)
	if human.Equal(machine) {
		t.Errorf("unit tags differ but Equal is true")
	}
	if !human.EffectivelyEqual(machine, iv) {
		t.Errorf("same pattern in different units is not effectively equal")
	}
}

func TestAccessPatternInvalidUnits(t *testing.T) {
	if _, err := NewAccessPattern(0, "max", 0, 100, "percentage", 0, "max", AgeUsec); !errors.Is(err, errors.ErrInvalidUnit) {
		t.Errorf("bad nr_accesses unit: got %v, want ErrInvalidUnit", err)
	}
	if _, err := NewAccessPattern(0, "max", 0, 100, NrAccessesPercent, 0, "max", "microsec"); !errors.Is(err, errors.ErrInvalidUnit) {
		t.Errorf("bad age unit: got %v, want ErrInvalidUnit", err)
	}
}

func TestAccessPatternKvpairsRoundTrip(t *testing.T) {
	p, err := NewAccessPattern("4K", "64K",
		3, 2000, NrAccessesSampleIntervals,
		50, 1900, AgeAggrIntervals)
	if err != nil {
		t.Fatalf("NewAccessPattern: %v", err)
	}
	for _, raw := range []bool{false, true} {
		kv := p.ToKvpairs(raw)
		wantKeys := []string{"min_sz_bytes", "max_sz_bytes",
			"min_nr_accesses", "max_nr_accesses", "min_age", "max_age"}
		if !reflect.DeepEqual(kv.Keys(), wantKeys) {
			t.Errorf("raw=%v: keys %v, want %v", raw, kv.Keys(), wantKeys)
		}
		back, err := AccessPatternFromKvpairs(kv)
		if err != nil {
			t.Fatalf("raw=%v: AccessPatternFromKvpairs: %v", raw, err)
		}
		if !p.Equal(back) {
			t.Errorf("raw=%v: round trip changed %+v to %+v", raw, p, back)
		}
	}
}

func TestAccessPatternKvpairsPercent(t *testing.T) {
	p := DefaultAccessPattern()
	kv := p.ToKvpairs(false)
	if v, _ := kv.Get("max_nr_accesses"); v != "100 %" {
		t.Errorf("max_nr_accesses: got %v, want 100 %%", v)
	}
	if v, _ := kv.Get("max_age"); v != "max" {
		t.Errorf("max_age: got %v, want max", v)
	}
	back, err := AccessPatternFromKvpairs(kv)
	if err != nil {
		t.Fatalf("AccessPatternFromKvpairs: %v", err)
	}
	if !p.Equal(back) {
		t.Errorf("round trip changed %+v to %+v", p, back)
	}
}

func TestQuotasDefaults(t *testing.T) {
	q, err := NewQuotas(0, 0, "max", 0, 0, 0)
	if err != nil {
		t.Fatalf("NewQuotas: %v", err)
	}
	if !q.Equal(DefaultQuotas()) {
		t.Errorf("explicit defaults differ: %+v vs %+v", q, DefaultQuotas())
	}
}

func TestQuotasKvpairsRoundTrip(t *testing.T) {
	q, err := NewQuotas("1 s", "100 MiB", "2 s", 100, 250, 650)
	if err != nil {
		t.Fatalf("NewQuotas: %v", err)
	}
	for _, raw := range []bool{false, true} {
		kv := q.ToKvpairs(raw)
		back, err := QuotasFromKvpairs(kv)
		if err != nil {
			t.Fatalf("raw=%v: QuotasFromKvpairs: %v", raw, err)
		}
		if !q.Equal(back) {
			t.Errorf("raw=%v: round trip changed %+v to %+v", raw, q, back)
		}
	}
}

func TestWatermarksInvalidMetric(t *testing.T) {
	if _, err := NewWatermarks("used_mem_rate", "5 s", 500, 400, 300); !errors.Is(err, errors.ErrInvalidUnit) {
		t.Errorf("got %v, want ErrInvalidUnit", err)
	}
}

func TestWatermarksKvpairsRoundTrip(t *testing.T) {
	w, err := NewWatermarks("free_mem_rate", "5 s", 500, 400, 300)
	if err != nil {
		t.Fatalf("NewWatermarks: %v", err)
	}
	for _, raw := range []bool{false, true} {
		kv := w.ToKvpairs(raw)
		back, err := WatermarksFromKvpairs(kv)
		if err != nil {
			t.Fatalf("raw=%v: WatermarksFromKvpairs: %v", raw, err)
		}
		if !w.Equal(back) {
			t.Errorf("raw=%v: round trip changed %+v to %+v", raw, w, back)
		}
	}
}

func TestFilterValidation(t *testing.T) {
	if _, err := NewFilter("0", "hugepage", "", true); !errors.Is(err, errors.ErrInvalidUnit) {
		t.Errorf("bad filter type: got %v, want ErrInvalidUnit", err)
	}
	if _, err := NewFilter("0", "memcg", "", true); !errors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("memcg without path: got %v, want ErrInvalidArgument", err)
	}
	f, err := NewFilter("0", "anon", "/ignored", false)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	if f.MemcgPath != "" {
		t.Errorf("anon filter kept memcg path %q", f.MemcgPath)
	}
}

func TestSchemeEffectivelyEqualIgnoresName(t *testing.T) {
	iv := DefaultIntervals()
	a := DefaultScheme()
	b := DefaultScheme()
	b.Name = "foo"
	if a.Equal(b) {
		t.Errorf("different names but Equal is true")
	}
	if !a.EffectivelyEqual(b, iv) {
		t.Errorf("name should not affect effective equality")
	}
}

func TestIsMonitoringScheme(t *testing.T) {
	iv, err := NewIntervals(5000, 100000, 1000000)
	if err != nil {
		t.Fatalf("NewIntervals: %v", err)
	}

	machine := DefaultScheme()
	machine.AccessPattern.ConvertForUnits(NrAccessesSampleIntervals, AgeAggrIntervals, iv)
	machine.Name = "1"
	if !IsMonitoringScheme(machine, iv) {
		t.Errorf("converted default scheme is not classified as monitoring")
	}

	pageout := DefaultScheme()
	pageout.Action = ActionPageout
	if IsMonitoringScheme(pageout, iv) {
		t.Errorf("pageout scheme classified as monitoring")
	}

	narrow := DefaultScheme()
	narrow.AccessPattern.MinSzBytes = 4096
	if IsMonitoringScheme(narrow, iv) {
		t.Errorf("narrowed pattern classified as monitoring")
	}
}

func TestSchemeKvpairsRoundTrip(t *testing.T) {
	filter, err := NewFilter("0", "memcg", "/workloads/a", true)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	s := DefaultScheme()
	s.Action = ActionPageout
	s.Filters = []*Filter{filter}
	for _, raw := range []bool{false, true} {
		kv := s.ToKvpairs(raw)
		wantKeys := []string{"name", "action", "access_pattern", "quotas", "watermarks", "filters"}
		if !reflect.DeepEqual(kv.Keys(), wantKeys) {
			t.Errorf("raw=%v: keys %v, want %v", raw, kv.Keys(), wantKeys)
		}
		back, err := SchemeFromKvpairs(kv)
		if err != nil {
			t.Fatalf("raw=%v: SchemeFromKvpairs: %v", raw, err)
		}
		if !s.Equal(back) {
			t.Errorf("raw=%v: round trip changed the scheme", raw)
		}
	}
}

func TestSchemeFromKvpairsDefaults(t *testing.T) {
	s, err := SchemeFromKvpairs(NewPairs().Set("name", "0"))
	if err != nil {
		t.Fatalf("SchemeFromKvpairs: %v", err)
	}
	if !s.Equal(DefaultScheme()) {
		t.Errorf("minimal kvpairs did not produce the default scheme")
	}
}

func TestRecordRequestToStr(t *testing.T) {
	req, err := NewRecordRequest(4096, "damon.data")
	if err != nil {
		t.Fatalf("NewRecordRequest: %v", err)
	}
	if got, want := req.ToStr(false), "path: damon.data, buffer sz: 4.000 KiB"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTargetPidRequirement(t *testing.T) {
	pid := 1234
	withPid := &Target{Name: "0", Pid: &pid}
	noPid := &Target{Name: "0"}

	if _, err := NewContext("0", nil, nil, OpsVaddr, []*Target{noPid}, nil); !errors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("vaddr target without pid: got %v, want ErrInvalidArgument", err)
	}
	if _, err := NewContext("0", nil, nil, OpsPaddr, []*Target{noPid}, nil); err != nil {
		t.Errorf("paddr target without pid: %v", err)
	}
	if _, err := NewContext("0", nil, nil, OpsFvaddr, []*Target{withPid}, nil); err != nil {
		t.Errorf("fvaddr target with pid: %v", err)
	}
}

func TestContextKvpairsKeyOrder(t *testing.T) {
	pid := 1234
	target := &Target{Name: "0", Pid: &pid}
	c, err := NewContext("0", nil, nil, OpsVaddr, []*Target{target}, []*Scheme{DefaultScheme()})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	kv := c.ToKvpairs(false)
	wantKeys := []string{"name", "intervals", "nr_regions", "ops", "targets", "schemes"}
	if !reflect.DeepEqual(kv.Keys(), wantKeys) {
		t.Errorf("keys %v, want %v", kv.Keys(), wantKeys)
	}

	c.RecordRequest, err = NewRecordRequest(0, "")
	if err != nil {
		t.Fatalf("NewRecordRequest: %v", err)
	}
	kv = c.ToKvpairs(false)
	wantKeys = append(wantKeys, "record_request")
	if !reflect.DeepEqual(kv.Keys(), wantKeys) {
		t.Errorf("keys with record request %v, want %v", kv.Keys(), wantKeys)
	}
}

func TestKdamondFromKvpairsDefaults(t *testing.T) {
	pid := 1234
	target := &Target{Name: "0", Pid: &pid}
	c, err := NewContext("0", nil, nil, OpsVaddr, []*Target{target}, nil)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	kv := NewPairs().
		Set("name", "0").
		Set("contexts", []*Pairs{c.ToKvpairs(false)})
	k, err := KdamondFromKvpairs(kv)
	if err != nil {
		t.Fatalf("KdamondFromKvpairs: %v", err)
	}
	if k.State != StateOff {
		t.Errorf("state: got %q, want off", k.State)
	}
	if k.Pid != nil {
		t.Errorf("pid: got %v, want nil", *k.Pid)
	}
}

func TestKdamondYamlRoundTrip(t *testing.T) {
	pid := 4242
	target := &Target{Name: "0", Pid: &pid}
	filter, err := NewFilter("0", "anon", "", true)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	scheme := DefaultScheme()
	scheme.Action = ActionCold
	scheme.Filters = []*Filter{filter}
	c, err := NewContext("0", nil, nil, OpsVaddr, []*Target{target}, []*Scheme{scheme})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	c.RecordRequest, err = NewRecordRequest(0, "")
	if err != nil {
		t.Fatalf("NewRecordRequest: %v", err)
	}
	k := &Kdamond{Name: "0", State: StateOff, Contexts: []*Context{c}}

	for _, raw := range []bool{false, true} {
		data, err := MarshalKdamonds([]*Kdamond{k}, raw)
		if err != nil {
			t.Fatalf("raw=%v: MarshalKdamonds: %v", raw, err)
		}
		back, err := ParseKdamonds(data)
		if err != nil {
			t.Fatalf("raw=%v: ParseKdamonds: %v", raw, err)
		}
		if len(back) != 1 || !k.Equal(back[0]) {
			t.Errorf("raw=%v: yaml round trip changed the kdamond", raw)
		}
	}
}

func TestFeatureSet(t *testing.T) {
	set, err := NewFeatureSet([]string{"schemes", "paddr"})
	if err != nil {
		t.Fatalf("NewFeatureSet: %v", err)
	}
	if !set.Supports(FeatureSchemes) || set.Supports(FeatureRecord) {
		t.Errorf("unexpected membership: %v", set)
	}
	if _, err := NewFeatureSet([]string{"telepathy"}); !errors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("unknown feature: got %v, want ErrInvalidArgument", err)
	}
}
