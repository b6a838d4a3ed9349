package domain

import (
	"fmt"
	"time"

	"github.com/jinzhu/now"
)

// DateLayout is the on-disk format of every plant date field.
const DateLayout = "2006-01-02"

// Date is a calendar date stored as yyyy-MM-dd.
type Date string

func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

func (d Date) IsZero() bool {
	return d == ""
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, string(d), loc)
}

// DaysBetween counts calendar days from d to the day of t, in t's location.
func DaysBetween(d Date, t time.Time) (int, error) {
	from, err := d.In(t.Location())
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidDate, string(d))
	}
	today := now.With(t).BeginningOfDay()
	// DST days are 23 or 25 hours long, rounding absorbs that.
	return int(today.Sub(from).Round(24*time.Hour).Hours() / 24), nil
}
