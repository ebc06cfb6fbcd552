// Package calendar decides whether a given day requires external
// supervision of the robot or leaves it fully autonomous.
package calendar

import (
	"fmt"
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

type date struct {
	year  int
	month time.Month
	day   int
}

func (d date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.year, d.month, d.day)
}

// Policy is the read-only set of supervision days.
type Policy struct {
	loc  *time.Location
	days map[date]struct{}
}

// NewPolicy parses YYYY-MM-DD dates. Duplicates collapse. A nil location
// means local time.
func NewPolicy(days []string, loc *time.Location) (*Policy, error) {
	if loc == nil {
		loc = time.Local
	}
	p := &Policy{loc: loc, days: make(map[date]struct{}, len(days))}
	for _, raw := range days {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid supervision day %q: %w", raw, err)
		}
		y, m, d := t.Date()
		p.days[date{y, m, d}] = struct{}{}
	}
	return p, nil
}

// IsSupervisionDay reports whether the civil date of t, in the policy's
// location, is a configured supervision day.
func (p *Policy) IsSupervisionDay(t time.Time) bool {
	y, m, d := t.In(p.loc).Date()
	_, ok := p.days[date{y, m, d}]
	return ok
}

func (p *Policy) Location() *time.Location { return p.loc }

// Days returns the configured days in ascending order.
func (p *Policy) Days() []string {
	out := make([]string, 0, len(p.days))
	for d := range p.days {
		out = append(out, d.String())
	}
	sort.Strings(out)
	return out
}
