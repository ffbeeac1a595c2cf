package ingest

import (
	"context"
	"time"

	"github.com/AngelCh415/buyer-rollup/internal/models"
)

// RecordSource serves raw records for a set of identifiers and an inclusive
// day range. Ads are ranged on their date and conversions on their effective
// date (conversion, else click). Callers keep each request within a chunk of
// identifiers.
type RecordSource interface {
	Ads(ctx context.Context, sourceIDs []string, from, to time.Time) ([]models.AdRecord, error)
	Conversions(ctx context.Context, adIDs []string, from, to time.Time) ([]models.ConversionRecord, error)
	Sales(ctx context.Context, clickIDs []string, from, to time.Time) ([]models.SaleRecord, error)
}

// ReferenceSource serves the monthly currency rates and operational costs.
type ReferenceSource interface {
	CurrencyRates(ctx context.Context) ([]models.CurrencyRate, error)
	OperationalCosts(ctx context.Context) ([]models.OperationalCost, error)
}

// GrantSource lists channel grants, all of them when buyerID is empty.
type GrantSource interface {
	Grants(ctx context.Context, buyerID string) ([]models.ChannelGrant, error)
}

// ZoneSource returns the zone prices of an article; ok is false when none are configured.
type ZoneSource interface {
	Zones(ctx context.Context, article string) (th models.ZoneThresholds, ok bool, err error)
}
