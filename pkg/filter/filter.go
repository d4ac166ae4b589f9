package filter

import (
	"fmt"
	"time"

	"github.com/ricardomussett/ms-server-gps-socket/pkg/position"
)

// Policy selects which predicate the matcher applies.
type Policy string

const (
	// PolicyPseudoIP matches on device-id membership.
	PolicyPseudoIP Policy = "pseudo-ip"
	// PolicyTimeRange matches on the record's last-update timestamp.
	PolicyTimeRange Policy = "time-range"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyPseudoIP, PolicyTimeRange:
		return Policy(s), nil
	case "":
		return PolicyPseudoIP, nil
	default:
		return "", fmt.Errorf("unknown filter policy %q", s)
	}
}

// Filter is one connection's declared interest. A Filter is immutable once
// built; sessions swap the whole pointer on update so an in-flight broadcast
// read never observes a partial mutation.
type Filter struct {
	pseudoIPs []string
	ipSet     map[string]struct{}

	from, to time.Time
}

// New builds a device-id filter. An empty id list matches everything.
func New(pseudoIPs []string) *Filter {
	set := make(map[string]struct{}, len(pseudoIPs))
	for _, ip := range pseudoIPs {
		set[ip] = struct{}{}
	}
	return &Filter{pseudoIPs: pseudoIPs, ipSet: set}
}

// NewTimeRange builds a last-update range filter. Zero bounds are open.
func NewTimeRange(from, to time.Time) *Filter {
	return &Filter{from: from, to: to}
}

// PseudoIPs returns the filtered device ids, in the order they were declared.
func (f *Filter) PseudoIPs() []string {
	if f == nil {
		return nil
	}
	return f.pseudoIPs
}

// Matcher evaluates records against filters under a fixed policy. It is a
// pure predicate: the same (record, filter) pair always yields the same
// result, and no registry or store state is consulted.
type Matcher struct {
	policy Policy
}

func NewMatcher(policy Policy) *Matcher {
	return &Matcher{policy: policy}
}

// Matches reports whether the record satisfies the filter. A nil filter
// matches everything: connections that have not declared an interest yet
// receive all updates.
func (m *Matcher) Matches(rec position.Record, f *Filter) bool {
	if f == nil {
		return true
	}
	switch m.policy {
	case PolicyTimeRange:
		return f.matchesTimeRange(rec)
	default:
		return f.matchesPseudoIP(rec)
	}
}

func (f *Filter) matchesPseudoIP(rec position.Record) bool {
	if len(f.ipSet) == 0 {
		return true
	}
	_, ok := f.ipSet[rec.DeviceID()]
	return ok
}

func (f *Filter) matchesTimeRange(rec position.Record) bool {
	if f.from.IsZero() && f.to.IsZero() {
		return true
	}
	ts, err := rec.Timestamp()
	if err != nil {
		return false
	}
	if !f.from.IsZero() && ts.Before(f.from) {
		return false
	}
	if !f.to.IsZero() && ts.After(f.to) {
		return false
	}
	return true
}
