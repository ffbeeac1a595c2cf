package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Source string

const (
	SourceGoogle   Source = "google"
	SourceFacebook Source = "facebook"
	SourceTikTok   Source = "tiktok"
)

// ChannelGrant gives a buyer a traffic-source identifier over
// [AccessGranted, AccessLimited). A nil AccessLimited is unbounded.
type ChannelGrant struct {
	ChannelID     string
	BuyerID       string
	BuyerName     string
	Source        Source
	AccessGranted time.Time
	AccessLimited *time.Time
}

// Covers reports whether date falls inside the grant window, compared by calendar day.
func (g ChannelGrant) Covers(date time.Time) bool {
	if date.IsZero() {
		return false
	}
	d := Day(date)
	if d.Before(Day(g.AccessGranted)) {
		return false
	}
	if g.AccessLimited != nil && !d.Before(Day(*g.AccessLimited)) {
		return false
	}
	return true
}

type AdRecord struct {
	SourceID        string
	CampaignID      string
	CampaignName    string
	GroupID         string
	GroupName       string
	AdID            string
	AdName          string
	Date            time.Time
	Cost            decimal.Decimal
	CostFromSources decimal.Decimal
	ValidCount      int64
}

func (r AdRecord) RecordDate() (time.Time, bool) { return r.Date, !r.Date.IsZero() }

type ConversionRecord struct {
	AdvID            string
	ClickID          string
	DateOfClick      time.Time
	DateOfConversion time.Time
}

// EffectiveDate is the conversion date, falling back to the click date.
func (c ConversionRecord) EffectiveDate() time.Time {
	if !c.DateOfConversion.IsZero() {
		return c.DateOfConversion
	}
	return c.DateOfClick
}

func (c ConversionRecord) RecordDate() (time.Time, bool) {
	d := c.EffectiveDate()
	return d, !d.IsZero()
}

type SaleRecord struct {
	ClickID       string
	OrderStatus   string
	OrderProfit   decimal.Decimal
	OrderEndPrice decimal.Decimal
	DeliveryPrice decimal.Decimal
	OrderDate     time.Time
}

func (s SaleRecord) RecordDate() (time.Time, bool) { return s.OrderDate, !s.OrderDate.IsZero() }

type CurrencyRate struct {
	Year  int             `yaml:"year" json:"year"`
	Month int             `yaml:"month" json:"month"`
	Rate  decimal.Decimal `yaml:"rate" json:"rate"`
}

type OperationalCost struct {
	Year              int             `yaml:"year" json:"year"`
	Month             int             `yaml:"month" json:"month"`
	CostPerConversion decimal.Decimal `yaml:"cost_per_conversion" json:"cost_per_conversion"`
}

// ZoneThresholds holds ascending CPL breakpoints for one article. Nil means the tier is not configured.
type ZoneThresholds struct {
	Article string   `yaml:"article" json:"article"`
	Red     *float64 `yaml:"red" json:"red,omitempty"`
	Pink    *float64 `yaml:"pink" json:"pink,omitempty"`
	Gold    *float64 `yaml:"gold" json:"gold,omitempty"`
	Green   *float64 `yaml:"green" json:"green,omitempty"`
}

// Day returns the calendar day of t (as seen in t's own location) at UTC midnight,
// so days coming from different locations compare by date only.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthKey formats the "YYYY-MM" key used by the rate and cost tables.
func MonthKey(year int, month time.Month) string {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}
