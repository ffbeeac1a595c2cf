package models

import "github.com/shopspring/decimal"

// Totals are the rollup metrics of one node. Both spend metrics are carried in
// source currency and in local currency.
type Totals struct {
	Leads               int64           `json:"leads"`
	SentCount           int64           `json:"sent_count"`
	SentSum             decimal.Decimal `json:"sent_sum"`
	SentProfit          decimal.Decimal `json:"sent_profit"`
	SoldCount           int64           `json:"sold_count"`
	SoldProfit          decimal.Decimal `json:"sold_profit"`
	OperationalCost     decimal.Decimal `json:"operational_cost"`
	DeliveryCost        decimal.Decimal `json:"delivery_cost"`
	AdSpendSource       decimal.Decimal `json:"ad_spend_source"`
	AdSpendSourceLocal  decimal.Decimal `json:"ad_spend_source_local"`
	AdSpendCabinet      decimal.Decimal `json:"ad_spend_cabinet"`
	AdSpendCabinetLocal decimal.Decimal `json:"ad_spend_cabinet_local"`
}

// Add returns the field-wise sum of t and o.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		Leads:               t.Leads + o.Leads,
		SentCount:           t.SentCount + o.SentCount,
		SentSum:             t.SentSum.Add(o.SentSum),
		SentProfit:          t.SentProfit.Add(o.SentProfit),
		SoldCount:           t.SoldCount + o.SoldCount,
		SoldProfit:          t.SoldProfit.Add(o.SoldProfit),
		OperationalCost:     t.OperationalCost.Add(o.OperationalCost),
		DeliveryCost:        t.DeliveryCost.Add(o.DeliveryCost),
		AdSpendSource:       t.AdSpendSource.Add(o.AdSpendSource),
		AdSpendSourceLocal:  t.AdSpendSourceLocal.Add(o.AdSpendSourceLocal),
		AdSpendCabinet:      t.AdSpendCabinet.Add(o.AdSpendCabinet),
		AdSpendCabinetLocal: t.AdSpendCabinetLocal.Add(o.AdSpendCabinetLocal),
	}
}

// Fields lists every metric by json name. Counts are widened to decimals.
func (t Totals) Fields() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"leads":                  decimal.NewFromInt(t.Leads),
		"sent_count":             decimal.NewFromInt(t.SentCount),
		"sent_sum":               t.SentSum,
		"sent_profit":            t.SentProfit,
		"sold_count":             decimal.NewFromInt(t.SoldCount),
		"sold_profit":            t.SoldProfit,
		"operational_cost":       t.OperationalCost,
		"delivery_cost":          t.DeliveryCost,
		"ad_spend_source":        t.AdSpendSource,
		"ad_spend_source_local":  t.AdSpendSourceLocal,
		"ad_spend_cabinet":       t.AdSpendCabinet,
		"ad_spend_cabinet_local": t.AdSpendCabinetLocal,
	}
}

// Equal compares every field; decimals compare by value, not representation.
func (t Totals) Equal(o Totals) bool {
	a, b := t.Fields(), o.Fields()
	for k, v := range a {
		if !v.Equal(b[k]) {
			return false
		}
	}
	return true
}

type Level string

const (
	LevelBuyer    Level = "buyer"
	LevelCampaign Level = "campaign"
	LevelGroup    Level = "group"
	LevelAd       Level = "ad"
)

// Node is one row of the buyer → campaign → group → ad tree.
type Node struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Level    Level   `json:"level"`
	Unknown  bool    `json:"unknown,omitempty"`
	Totals   Totals  `json:"totals"`
	Children []*Node `json:"children,omitempty"`
}
