package period

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AngelCh415/buyer-rollup/internal/models"
)

type Kind string

const (
	All       Kind = "all"
	Today     Kind = "today"
	Yesterday Kind = "yesterday"
	ThisWeek  Kind = "this_week"
	Last7Days Kind = "last_7_days"
	ThisMonth Kind = "this_month"
	LastMonth Kind = "last_month"
	Custom    Kind = "custom"
)

const dateLayout = "2006-01-02"

var ErrNegativeRange = errors.New("period: from is after to")

// Selector names a date window. From and To are only read for Custom and are
// inclusive at day granularity.
type Selector struct {
	Kind Kind
	From time.Time
	To   time.Time
}

func CustomRange(from, to time.Time) (Selector, error) {
	if models.Day(from).After(models.Day(to)) {
		return Selector{}, fmt.Errorf("%s > %s: %w", from.Format(dateLayout), to.Format(dateLayout), ErrNegativeRange)
	}
	return Selector{Kind: Custom, From: from, To: to}, nil
}

// Parse builds a selector from query values. Unknown names select everything;
// custom requires both dates (YYYY-MM-DD) read in loc. A name of "" with both
// dates present is treated as custom.
func Parse(name, from, to string, loc *time.Location) (Selector, error) {
	if loc == nil {
		loc = time.UTC
	}
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	if k == "" && from != "" && to != "" {
		k = Custom
	}
	switch k {
	case Today, Yesterday, ThisWeek, Last7Days, ThisMonth, LastMonth:
		return Selector{Kind: k}, nil
	case Custom:
		f, err := time.ParseInLocation(dateLayout, strings.TrimSpace(from), loc)
		if err != nil {
			return Selector{}, fmt.Errorf("period: bad from %q: %w", from, err)
		}
		t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(to), loc)
		if err != nil {
			return Selector{}, fmt.Errorf("period: bad to %q: %w", to, err)
		}
		return CustomRange(f, t)
	default:
		return Selector{Kind: All}, nil
	}
}

// Window returns the half-open [start, end) interval of sel evaluated at now
// in loc. ok is false for All.
func Window(sel Selector, now time.Time, loc *time.Location) (start, end time.Time, ok bool) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	today := midnight(now, loc)
	switch sel.Kind {
	case Today:
		return today, today.AddDate(0, 0, 1), true
	case Yesterday:
		return today.AddDate(0, 0, -1), today, true
	case ThisWeek:
		// semana ISO: lunes a domingo
		offset := (int(today.Weekday()) + 6) % 7
		monday := today.AddDate(0, 0, -offset)
		return monday, monday.AddDate(0, 0, 7), true
	case Last7Days:
		return today.AddDate(0, 0, -6), today.AddDate(0, 0, 1), true
	case ThisMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
		return first, first.AddDate(0, 1, 0), true
	case LastMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
		return first.AddDate(0, -1, 0), first, true
	case Custom:
		from := midnight(sel.From.In(loc), loc)
		to := midnight(sel.To.In(loc), loc).AddDate(0, 0, 1)
		return from, to, true
	default:
		return time.Time{}, time.Time{}, false
	}
}

// Filter keeps the records dated inside sel's window, preserving order.
// Records compare by calendar day, read in their own location, the same way
// grant windows do. Undated records are dropped by every selector except All.
func Filter[T models.Dated](records []T, sel Selector, now time.Time, loc *time.Location) []T {
	start, end, ok := Window(sel, now, loc)
	if !ok {
		return records
	}
	first, last := models.Day(start), models.Day(end)
	out := make([]T, 0, len(records))
	for _, r := range records {
		d, has := r.RecordDate()
		if !has {
			continue
		}
		if day := models.Day(d); !day.Before(first) && day.Before(last) {
			out = append(out, r)
		}
	}
	return out
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
