package domain

import "time"

// UsagePeriod is the canonical key for a billing period: the first instant
// of a calendar month in UTC. Deriving the key from a single authoritative
// timezone keeps counter bucketing stable regardless of the timezone or
// clock skew of the triggering request.
type UsagePeriod struct {
	start time.Time
}

// PeriodOf returns the usage period containing t.
func PeriodOf(t time.Time) UsagePeriod {
	u := t.UTC()
	return UsagePeriod{start: time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)}
}

// CurrentPeriod returns the usage period containing the present moment.
func CurrentPeriod() UsagePeriod {
	return PeriodOf(time.Now())
}

// Start returns the first instant of the period.
func (p UsagePeriod) Start() time.Time { return p.start }

// End returns the first instant of the following period.
func (p UsagePeriod) End() time.Time { return p.start.AddDate(0, 1, 0) }

// Next returns the following period.
func (p UsagePeriod) Next() UsagePeriod { return UsagePeriod{start: p.End()} }

// Contains reports whether t falls inside the period.
func (p UsagePeriod) Contains(t time.Time) bool {
	u := t.UTC()
	return !u.Before(p.start) && u.Before(p.End())
}

// String renders the period key as the first day of the month, e.g.
// "2026-08-01". This is the form stored in the month column.
func (p UsagePeriod) String() string {
	return p.start.Format("2006-01-02")
}
