package rollup

import (
	"github.com/shopspring/decimal"

	"github.com/AngelCh415/buyer-rollup/internal/models"
	"github.com/AngelCh415/buyer-rollup/internal/zones"
)

// Derived holds the ratios shown next to the totals. Every ratio is zero when
// its denominator is zero.
type Derived struct {
	CPL         decimal.Decimal `json:"cpl"`
	Profit      decimal.Decimal `json:"profit"`
	ROI         decimal.Decimal `json:"roi"`
	ApproveRate decimal.Decimal `json:"approve_rate"`
	AvgCheck    decimal.Decimal `json:"avg_check"`
}

// Derive computes CPL (local spend per lead), net profit after spend,
// operational and delivery costs, ROI over local spend, sold/sent ratio and
// average sent check.
func Derive(t models.Totals) Derived {
	spend := t.AdSpendSourceLocal
	profit := t.SoldProfit.Sub(spend).Sub(t.OperationalCost).Sub(t.DeliveryCost)
	return Derived{
		CPL:         safeDiv(spend, decimal.NewFromInt(t.Leads)).Round(2),
		Profit:      profit.Round(2),
		ROI:         safeDiv(profit, spend).Round(3),
		ApproveRate: safeDiv(decimal.NewFromInt(t.SoldCount), decimal.NewFromInt(t.SentCount)).Round(3),
		AvgCheck:    safeDiv(t.SentSum, decimal.NewFromInt(t.SentCount)).Round(2),
	}
}

// Zone classifies the node's CPL against th. The label is empty when no tier applies.
func Zone(t models.Totals, th *models.ZoneThresholds) string {
	if th == nil || t.Leads == 0 {
		return ""
	}
	cpl := safeDiv(t.AdSpendSourceLocal, decimal.NewFromInt(t.Leads))
	z, ok := zones.Classify(*th, cpl.InexactFloat64())
	if !ok {
		return ""
	}
	return string(z)
}

func safeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}
