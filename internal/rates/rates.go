package rates

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AngelCh415/buyer-rollup/internal/models"
)

// lookbackMonths bounds the backward search before falling back to the latest rate.
const lookbackMonths = 12

// RateTable resolves USD→local rates by month. Read-only after NewRateTable.
type RateTable struct {
	byMonth map[string]decimal.Decimal
	latest  string
}

// NewRateTable indexes rates by "YYYY-MM". A later entry for the same month wins.
func NewRateTable(rates []models.CurrencyRate) *RateTable {
	t := &RateTable{byMonth: make(map[string]decimal.Decimal, len(rates))}
	for _, r := range rates {
		t.byMonth[models.MonthKey(r.Year, time.Month(r.Month))] = r.Rate
	}
	keys := make([]string, 0, len(t.byMonth))
	for k := range t.byMonth {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	if len(keys) > 0 {
		t.latest = keys[0]
	}
	return t
}

// Resolve returns the rate for date's month, else the nearest earlier month
// within a year, else the most recent month in the table, else zero.
func (t *RateTable) Resolve(date time.Time) decimal.Decimal {
	if t == nil || len(t.byMonth) == 0 {
		return decimal.Zero
	}
	y, m, _ := date.Date()
	for step := 0; step <= lookbackMonths; step++ {
		if r, ok := t.byMonth[models.MonthKey(y, m-time.Month(step))]; ok {
			return r
		}
	}
	return t.byMonth[t.latest]
}

func (t *RateTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byMonth)
}

// CostTable resolves the operational cost per conversion by month.
// Missing months cost nothing; there is no lookback.
type CostTable struct {
	byMonth map[string]decimal.Decimal
}

func NewCostTable(costs []models.OperationalCost) *CostTable {
	t := &CostTable{byMonth: make(map[string]decimal.Decimal, len(costs))}
	for _, c := range costs {
		t.byMonth[models.MonthKey(c.Year, time.Month(c.Month))] = c.CostPerConversion
	}
	return t
}

func (t *CostTable) Resolve(date time.Time) decimal.Decimal {
	if t == nil || date.IsZero() {
		return decimal.Zero
	}
	y, m, _ := date.Date()
	if c, ok := t.byMonth[models.MonthKey(y, m)]; ok {
		return c
	}
	return decimal.Zero
}

func (t *CostTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byMonth)
}
