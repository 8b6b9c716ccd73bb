package damon

import (
	"fmt"
	"strings"

	"github.com/xtxerr/damonctl/internal/errors"
	"github.com/xtxerr/damonctl/internal/unit"
)

// KdamondState is the observed run state of a monitoring worker.
type KdamondState string

const (
	// StateOn marks a running worker.
	StateOn KdamondState = "on"
	// StateOff marks a stopped worker. It is the default for specs
	// that do not carry observed state.
	StateOff KdamondState = "off"
)

// Kdamond is one monitoring worker thread and its contexts. State and
// Pid are runtime observations and default to off/absent in a freshly
// parsed spec.
type Kdamond struct {
	Name     string
	State    KdamondState
	Pid      *int
	Contexts []*Context
}

// Equal reports structural equality including the observed state.
func (k *Kdamond) Equal(other *Kdamond) bool {
	if k == nil || other == nil {
		return k == other
	}
	if k.Name != other.Name || k.State != other.State || !pidEqual(k.Pid, other.Pid) {
		return false
	}
	if len(k.Contexts) != len(other.Contexts) {
		return false
	}
	for i := range k.Contexts {
		if !k.Contexts[i].Equal(other.Contexts[i]) {
			return false
		}
	}
	return true
}

// MonitoringOnly reports whether every context of the worker carries
// only monitoring-only schemes.
func (k *Kdamond) MonitoringOnly() bool {
	for _, c := range k.Contexts {
		if !c.MonitoringOnly() {
			return false
		}
	}
	return true
}

// ToStr renders the worker and its contexts for display.
func (k *Kdamond) ToStr(raw bool) string {
	lines := []string{
		fmt.Sprintf("%s (state: %s, pid: %s)", k.Name, k.State, pidStr(k.Pid)),
		"contexts",
	}
	for _, c := range k.Contexts {
		lines = append(lines, indentLines(c.ToStr(raw), 4))
	}
	return strings.Join(lines, "\n")
}

func (k *Kdamond) String() string {
	return k.ToStr(false)
}

// ToKvpairs serializes with the canonical key order name, state, pid,
// contexts.
func (k *Kdamond) ToKvpairs(raw bool) *Pairs {
	contexts := make([]*Pairs, 0, len(k.Contexts))
	for _, c := range k.Contexts {
		contexts = append(contexts, c.ToKvpairs(raw))
	}
	var pid any
	if k.Pid != nil {
		pid = *k.Pid
	}
	return NewPairs().
		Set("name", k.Name).
		Set("state", string(k.State)).
		Set("pid", pid).
		Set("contexts", contexts)
}

// KdamondFromKvpairs is the inverse of ToKvpairs. Absent state means
// off; absent pid means not running.
func KdamondFromKvpairs(p *Pairs) (*Kdamond, error) {
	name, err := p.requireString("name")
	if err != nil {
		return nil, err
	}
	k := &Kdamond{Name: name, State: StateOff}

	if stateVal, ok := p.Get("state"); ok && stateVal != nil {
		stateText, ok := stateVal.(string)
		if !ok {
			return nil, errors.InvalidUnitf("kdamond state %v", stateVal)
		}
		switch KdamondState(stateText) {
		case StateOn, StateOff:
			k.State = KdamondState(stateText)
		default:
			return nil, errors.InvalidUnitf("kdamond state %q", stateText)
		}
	}
	if pidVal, ok := p.Get("pid"); ok && pidVal != nil {
		pid, err := unit.ParseNr(pidVal)
		if err != nil {
			return nil, fmt.Errorf("kdamond pid: %w", err)
		}
		v := int(pid)
		k.Pid = &v
	}

	ctxPairs, err := p.requireList("contexts")
	if err != nil {
		return nil, err
	}
	for _, cp := range ctxPairs {
		c, err := ContextFromKvpairs(cp)
		if err != nil {
			return nil, err
		}
		k.Contexts = append(k.Contexts, c)
	}
	return k, nil
}
