package domain

import "time"

const DateLayout = "2006-01-02"

// Date is a calendar day in YYYY-MM-DD form, no timezone component.
type Date string

func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", Validation("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date(s), nil
}

func DateOf(t time.Time) Date { return Date(t.Format(DateLayout)) }

func (d Date) String() string { return string(d) }

func (d Date) Valid() bool {
	_, err := time.Parse(DateLayout, string(d))
	return err == nil
}

func (d Date) Time() time.Time {
	t, _ := time.Parse(DateLayout, string(d))
	return t
}

func (d Date) AddDays(n int) Date { return DateOf(d.Time().AddDate(0, 0, n)) }

// DateRange is an inclusive [From, To] window.
type DateRange struct {
	From Date
	To   Date
}

func NewDateRange(from, to string) (DateRange, error) {
	f, err := ParseDate(from)
	if err != nil {
		return DateRange{}, err
	}
	t, err := ParseDate(to)
	if err != nil {
		return DateRange{}, err
	}
	if t.Time().Before(f.Time()) {
		return DateRange{}, Validation("endDate %s is before startDate %s", t, f)
	}
	return DateRange{From: f, To: t}, nil
}

// NextDays is the window [today, today+days] in UTC.
func NextDays(now time.Time, days int) DateRange {
	from := DateOf(now.UTC())
	return DateRange{From: from, To: from.AddDays(days)}
}
