package models

import "time"

// Dated is implemented by every record the period filter can restrict.
// ok is false when the record carries no date.
type Dated interface {
	RecordDate() (t time.Time, ok bool)
}

var (
	_ Dated = AdRecord{}
	_ Dated = ConversionRecord{}
	_ Dated = SaleRecord{}
)
