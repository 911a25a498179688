package config

import "time"

// Location returns the jurisdiction time zone, falling back to UTC.
func (p Policy) Location() *time.Location {
	loc, err := time.LoadLocation(p.timezone())
	if err != nil {
		return time.UTC
	}
	return loc
}

// CivilDate truncates t to midnight of its calendar day in the jurisdiction.
func (p Policy) CivilDate(t time.Time) time.Time {
	loc := p.Location()
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// AddDays adds calendar days to the civil date of t. DST changes do not shift the day.
func (p Policy) AddDays(t time.Time, days int) time.Time {
	loc := p.Location()
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d+days, 0, 0, 0, 0, loc)
}

// RespondBy is the partner response deadline for a joint submission.
func (p Policy) RespondBy(submitted time.Time) time.Time {
	return p.AddDays(submitted, p.PartnerResponseDays)
}

// AosDue is the acknowledgement of service deadline after issue.
func (p Policy) AosDue(issued time.Time) time.Time {
	return p.AddDays(issued, p.AosResponseDays)
}

// FinalOrderEligibleFrom is the first day a final order may be applied for.
func (p Policy) FinalOrderEligibleFrom(granted time.Time) time.Time {
	return p.AddDays(granted, p.FinalOrderEligibleDays)
}

// HoldingEnds is the end of the statutory reflection period after issue.
func (p Policy) HoldingEnds(issued time.Time) time.Time {
	return p.AddDays(issued, p.HoldingPeriodDays)
}

// ClarificationDue is the response deadline after a clarification request.
func (p Policy) ClarificationDue(requested time.Time) time.Time {
	return p.AddDays(requested, p.ClarificationDays)
}
