package services

import (
	"fmt"
	"time"

	"github.com/refit/refit-api/models"
)

// Clock decides the current instant and which calendar day it belongs to.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

// NewClock returns a wall clock bound to loc.
func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return Clock{Now: time.Now, Location: loc}
}

// Current returns the clock's notion of now.
func (c Clock) Current() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c Clock) loc() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// Today formats t's calendar day in the clock's location.
func (c Clock) Today(t time.Time) string {
	return t.In(c.loc()).Format(models.DateLayout)
}

// MonthStart returns the first day of t's month in the clock's location.
func (c Clock) MonthStart(t time.Time) string {
	lt := t.In(c.loc())
	return time.Date(lt.Year(), lt.Month(), 1, 0, 0, 0, 0, c.loc()).Format(models.DateLayout)
}

// parseDay accepts only canonical YYYY-MM-DD dates.
func parseDay(raw string) (string, error) {
	d, err := time.Parse(models.DateLayout, raw)
	if err != nil || d.Format(models.DateLayout) != raw {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return raw, nil
}
