package validation

import (
	"strings"
	"testing"

	"github.com/xtxerr/damonctl/internal/damon"
	"github.com/xtxerr/damonctl/internal/unit"
)

func validKdamond(t *testing.T) *damon.Kdamond {
	t.Helper()
	pid := 1234
	target := &damon.Target{Name: "workload", Pid: &pid}
	c, err := damon.NewContext("ctx-0", nil, nil, damon.OpsVaddr,
		[]*damon.Target{target}, []*damon.Scheme{damon.DefaultScheme()})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	return &damon.Kdamond{Name: "kdamond-0", State: damon.StateOff,
		Contexts: []*damon.Context{c}}
}

func TestKdamondsValid(t *testing.T) {
	if err := Kdamonds([]*damon.Kdamond{validKdamond(t)}); err != nil {
		t.Errorf("valid spec rejected: %v", err)
	}
}

func TestKdamondsDuplicateNames(t *testing.T) {
	err := Kdamonds([]*damon.Kdamond{validKdamond(t), validKdamond(t)})
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("got %v, want duplicate name error", err)
	}
}

func TestValidateName(t *testing.T) {
	rules := DefaultNameRules()
	for _, name := range []string{"kdamond-0", "ctx_1", "A9"} {
		if err := ValidateName(name, rules); err != nil {
			t.Errorf("%q rejected: %v", name, err)
		}
	}
	for _, name := range []string{"", "a/b", "a\\b", "sp ace", "dot.name"} {
		if err := ValidateName(name, rules); err == nil {
			t.Errorf("%q accepted", name)
		}
	}
}

func TestIntervalsOrdering(t *testing.T) {
	iv, err := damon.NewIntervals(5000, 1000, 1000000)
	if err != nil {
		t.Fatalf("NewIntervals: %v", err)
	}
	if err := Intervals(iv); err == nil {
		t.Error("aggr < sample accepted")
	}
	if err := Intervals(damon.DefaultIntervals()); err != nil {
		t.Errorf("default intervals rejected: %v", err)
	}
}

func TestNrRegionsRangeOrdering(t *testing.T) {
	if err := NrRegionsRange(&damon.NrRegionsRange{Min: 100, Max: 10}); err == nil {
		t.Error("min > max accepted")
	}
}

func TestQuotaWeights(t *testing.T) {
	q := damon.DefaultQuotas()
	q.WeightSzPermil = 1001
	if err := Quotas(q); err == nil {
		t.Error("weight above 1000 permil accepted")
	}
}

func TestWatermarkOrdering(t *testing.T) {
	w, err := damon.NewWatermarks("free_mem_rate", "5 s", 300, 400, 500)
	if err != nil {
		t.Fatalf("NewWatermarks: %v", err)
	}
	if err := Watermarks(w); err == nil {
		t.Error("inverted watermarks accepted")
	}
	// Disabled watermarks skip threshold checks entirely.
	disabled := damon.DefaultWatermarks()
	disabled.HighPermil = 0
	disabled.LowPermil = unit.UnsetVal
	if err := Watermarks(disabled); err != nil {
		t.Errorf("disabled watermarks rejected: %v", err)
	}
}

func TestContextTargetPid(t *testing.T) {
	k := validKdamond(t)
	k.Contexts[0].Targets[0].Pid = nil
	if err := Kdamond(k); err == nil {
		t.Error("vaddr target without pid accepted")
	}
}
