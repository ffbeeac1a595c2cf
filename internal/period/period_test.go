package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/buyer-rollup/internal/models"
)

func at(s string) time.Time {
	d, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return d
}

func ads(dates ...string) []models.AdRecord {
	out := make([]models.AdRecord, 0, len(dates))
	for i, d := range dates {
		r := models.AdRecord{AdID: string(rune('a' + i))}
		if d != "" {
			r.Date = at(d)
		}
		out = append(out, r)
	}
	return out
}

func ids(rs []models.AdRecord) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.AdID)
	}
	return out
}

// 2024-10-02 is a Wednesday; its ISO week runs 2024-09-30 .. 2024-10-06.
var wednesday = at("2024-10-02 14:00")

func TestThisWeekAcrossMonthBoundary(t *testing.T) {
	recs := ads(
		"2024-09-29 23:59", // a: sunday before
		"2024-09-30 00:00", // b: monday
		"2024-10-01 12:00", // c
		"2024-10-06 23:59", // d: sunday
		"2024-10-07 00:00", // e: next monday
		"",                 // f: undated
	)
	got := Filter(recs, Selector{Kind: ThisWeek}, wednesday, time.UTC)
	assert.Equal(t, []string{"b", "c", "d"}, ids(got))
}

func TestThisWeekOnSunday(t *testing.T) {
	recs := ads("2024-09-30 10:00", "2024-10-06 10:00", "2024-10-07 10:00")
	got := Filter(recs, Selector{Kind: ThisWeek}, at("2024-10-06 20:00"), time.UTC)
	assert.Equal(t, []string{"a", "b"}, ids(got))
}

func TestNamedWindows(t *testing.T) {
	recs := ads(
		"2024-08-31 10:00", // a
		"2024-09-01 10:00", // b
		"2024-09-25 10:00", // c
		"2024-09-26 10:00", // d
		"2024-09-30 10:00", // e
		"2024-10-01 10:00", // f
		"2024-10-02 09:00", // g
	)
	cases := map[Kind][]string{
		Today:     {"g"},
		Yesterday: {"f"},
		Last7Days: {"d", "e", "f", "g"},
		ThisMonth: {"f", "g"},
		LastMonth: {"b", "c", "d", "e"},
		All:       {"a", "b", "c", "d", "e", "f", "g"},
	}
	for k, want := range cases {
		got := Filter(recs, Selector{Kind: k}, wednesday, time.UTC)
		assert.Equal(t, want, ids(got), string(k))
	}
}

func TestLastMonthInJanuary(t *testing.T) {
	recs := ads("2023-11-30 10:00", "2023-12-01 00:00", "2023-12-31 23:00", "2024-01-01 00:00")
	got := Filter(recs, Selector{Kind: LastMonth}, at("2024-01-15 10:00"), time.UTC)
	assert.Equal(t, []string{"b", "c"}, ids(got))
}

func TestCustomIsInclusiveToEndOfDay(t *testing.T) {
	sel, err := Parse("custom", "2024-09-01", "2024-09-30", time.UTC)
	require.NoError(t, err)

	recs := ads("2024-08-31 23:59", "2024-09-01 00:00", "2024-09-30 23:59", "2024-10-01 00:00")
	got := Filter(recs, sel, wednesday, time.UTC)
	assert.Equal(t, []string{"b", "c"}, ids(got))
}

func TestAllKeepsUndated(t *testing.T) {
	recs := ads("", "2024-10-01 10:00")
	assert.Len(t, Filter(recs, Selector{Kind: All}, wednesday, time.UTC), 2)
	assert.Empty(t, Filter(recs[:1], Selector{Kind: Today}, wednesday, time.UTC))
}

func TestParse(t *testing.T) {
	sel, err := Parse("THIS_WEEK", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, ThisWeek, sel.Kind)

	sel, err = Parse("quarter", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, All, sel.Kind, "unknown selector defaults to all")

	sel, err = Parse("", "2024-01-01", "2024-01-31", nil)
	require.NoError(t, err)
	assert.Equal(t, Custom, sel.Kind)

	_, err = Parse("custom", "2024-02-01", "2024-01-31", nil)
	assert.ErrorIs(t, err, ErrNegativeRange)

	_, err = Parse("custom", "yesterday", "2024-01-31", nil)
	assert.Error(t, err)
}

func TestWindowUsesLocation(t *testing.T) {
	kyiv := time.FixedZone("EET", 2*60*60)
	// 23:30 UTC on the 1st is already the 2nd in Kyiv.
	now := at("2024-10-01 23:30")

	start, end, ok := Window(Selector{Kind: Today}, now, kyiv)
	require.True(t, ok)
	assert.True(t, start.Equal(time.Date(2024, 10, 2, 0, 0, 0, 0, kyiv)), "start %s", start)
	assert.True(t, end.Equal(time.Date(2024, 10, 3, 0, 0, 0, 0, kyiv)), "end %s", end)

	_, _, ok = Window(Selector{Kind: All}, now, kyiv)
	assert.False(t, ok)
}

func TestFilterComparesCalendarDaysAcrossLocations(t *testing.T) {
	ny := time.FixedZone("EST", -5*60*60)

	// fechas DATE llegan a medianoche UTC
	recs := ads("2024-02-29 00:00", "2024-03-01 00:00", "2024-03-02 00:00")
	sel, err := Parse("custom", "2024-03-01", "2024-03-01", ny)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(Filter(recs, sel, wednesday, ny)))

	// a timestamp in the configured location keeps its local day
	late := []models.AdRecord{{AdID: "x", Date: time.Date(2024, 3, 1, 23, 30, 0, 0, ny)}}
	assert.Len(t, Filter(late, sel, wednesday, ny), 1)

	kyiv := time.FixedZone("EET", 2*60*60)
	// 23:30 UTC on the 1st is already the 2nd in Kyiv: today is the 2nd
	today := Filter(ads("2024-10-02 00:00", "2024-10-01 00:00"), Selector{Kind: Today}, at("2024-10-01 23:30"), kyiv)
	assert.Equal(t, []string{"a"}, ids(today))
}
