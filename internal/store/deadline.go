package store

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// DeadlineLayout is the MySQL DATETIME text form.
const DeadlineLayout = "2006-01-02 15:04:05"

var deadlineLayouts = []string{
	DeadlineLayout,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.RFC3339Nano,
	"2006-01-02T15:04",
	"2006-01-02",
}

// Deadline is a nullable wall-clock time. Drivers disagree on whether a
// DATETIME column comes back as time.Time or text, so Scan accepts both.
type Deadline struct {
	Time  time.Time
	Valid bool
}

func NewDeadline(t time.Time) Deadline { return Deadline{Time: t, Valid: true} }

func (d *Deadline) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Deadline{}
		return nil
	case time.Time:
		*d = NewDeadline(v)
		return nil
	case []byte:
		return d.parse(string(v))
	case string:
		return d.parse(v)
	}
	return fmt.Errorf("deadline: unsupported type %T", src)
}

func (d *Deadline) parse(s string) error {
	if s == "" || s == "0000-00-00 00:00:00" {
		*d = Deadline{}
		return nil
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*d = NewDeadline(t)
			return nil
		}
	}
	return fmt.Errorf("deadline: cannot parse %q", s)
}

func (d Deadline) Value() (driver.Value, error) {
	if !d.Valid {
		return nil, nil
	}
	return d.Time.Format(DeadlineLayout), nil
}

func (d Deadline) String() string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(DeadlineLayout)
}
