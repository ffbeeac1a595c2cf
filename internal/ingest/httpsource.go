package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AngelCh415/buyer-rollup/internal/config"
	"github.com/AngelCh415/buyer-rollup/internal/models"
	"github.com/AngelCh415/buyer-rollup/internal/utils"
)

// HTTPSource reads records from the reporting API as JSON arrays:
//
//	GET {base}/ads?source_ids=..&from=..&to=..
//	GET {base}/conversions?adv_ids=..&from=..&to=..
//	GET {base}/sales?click_ids=..&from=..
//	GET {base}/currency-rates
//	GET {base}/operational-costs
//
// Conversion ranges apply to the conversion date, else the click date.
type HTTPSource struct {
	c    HTTPClient
	base string
	bo   utils.Backoff
	loc  *time.Location
}

func NewHTTPSource(c HTTPClient, cfg config.Config) *HTTPSource {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &HTTPSource{
		c:    c,
		base: strings.TrimRight(cfg.RecordsURL, "/"),
		bo:   utils.NewBackoff(cfg.RetryBase, cfg.RetryAttempts),
		loc:  loc,
	}
}

// flexString accepts JSON strings and numbers; ids and statuses arrive as both.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	*f = flexString(b)
	return nil
}

type adsResp []struct {
	SourceID        flexString      `json:"source_id"`
	CampaignID      flexString      `json:"campaign_id"`
	CampaignName    string          `json:"campaign_name"`
	GroupID         flexString      `json:"group_id"`
	GroupName       string          `json:"group_name"`
	AdID            flexString      `json:"ad_id"`
	AdName          string          `json:"ad_name"`
	Date            string          `json:"date"`
	Cost            decimal.Decimal `json:"cost"`
	CostFromSources decimal.Decimal `json:"cost_from_sources"`
	ValidCount      int64           `json:"valid_count"`
}

type conversionsResp []struct {
	AdvID            flexString `json:"adv_id"`
	ClickID          flexString `json:"clickid"`
	DateOfClick      string     `json:"date_of_click"`
	DateOfConversion string     `json:"date_of_conversion"`
}

type salesResp []struct {
	ClickID       flexString      `json:"clickid"`
	OrderStatus   flexString      `json:"order_status"`
	OrderProfit   decimal.Decimal `json:"order_profit"`
	OrderEndPrice decimal.Decimal `json:"order_end_price"`
	DeliveryPrice decimal.Decimal `json:"delivery_price"`
	OrderDate     string          `json:"order_date"`
}

func (s *HTTPSource) Ads(ctx context.Context, sourceIDs []string, from, to time.Time) ([]models.AdRecord, error) {
	var resp adsResp
	if err := GetJSONWithRetry(ctx, s.c, s.bo, s.url("ads", "source_ids", sourceIDs, from, to), &resp); err != nil {
		return nil, err
	}
	out := make([]models.AdRecord, 0, len(resp))
	for _, r := range resp {
		out = append(out, models.AdRecord{
			SourceID:        string(r.SourceID),
			CampaignID:      string(r.CampaignID),
			CampaignName:    strings.TrimSpace(r.CampaignName),
			GroupID:         string(r.GroupID),
			GroupName:       strings.TrimSpace(r.GroupName),
			AdID:            string(r.AdID),
			AdName:          strings.TrimSpace(r.AdName),
			Date:            parseDate(r.Date, s.loc),
			Cost:            r.Cost,
			CostFromSources: r.CostFromSources,
			ValidCount:      max0(r.ValidCount),
		})
	}
	return out, nil
}

func (s *HTTPSource) Conversions(ctx context.Context, adIDs []string, from, to time.Time) ([]models.ConversionRecord, error) {
	var resp conversionsResp
	if err := GetJSONWithRetry(ctx, s.c, s.bo, s.url("conversions", "adv_ids", adIDs, from, to), &resp); err != nil {
		return nil, err
	}
	out := make([]models.ConversionRecord, 0, len(resp))
	for _, r := range resp {
		out = append(out, models.ConversionRecord{
			AdvID:            string(r.AdvID),
			ClickID:          string(r.ClickID),
			DateOfClick:      parseDate(r.DateOfClick, s.loc),
			DateOfConversion: parseDate(r.DateOfConversion, s.loc),
		})
	}
	return out, nil
}

func (s *HTTPSource) Sales(ctx context.Context, clickIDs []string, from, to time.Time) ([]models.SaleRecord, error) {
	var resp salesResp
	if err := GetJSONWithRetry(ctx, s.c, s.bo, s.url("sales", "click_ids", clickIDs, from, to), &resp); err != nil {
		return nil, err
	}
	out := make([]models.SaleRecord, 0, len(resp))
	for _, r := range resp {
		out = append(out, models.SaleRecord{
			ClickID:       string(r.ClickID),
			OrderStatus:   string(r.OrderStatus),
			OrderProfit:   r.OrderProfit,
			OrderEndPrice: r.OrderEndPrice,
			DeliveryPrice: r.DeliveryPrice,
			OrderDate:     parseDate(r.OrderDate, s.loc),
		})
	}
	return out, nil
}

func (s *HTTPSource) CurrencyRates(ctx context.Context) ([]models.CurrencyRate, error) {
	var out []models.CurrencyRate
	if err := GetJSONWithRetry(ctx, s.c, s.bo, s.base+"/currency-rates", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *HTTPSource) OperationalCosts(ctx context.Context) ([]models.OperationalCost, error) {
	var out []models.OperationalCost
	if err := GetJSONWithRetry(ctx, s.c, s.bo, s.base+"/operational-costs", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *HTTPSource) url(path, idParam string, ids []string, from, to time.Time) string {
	q := url.Values{}
	q.Set(idParam, strings.Join(ids, ","))
	if !from.IsZero() {
		q.Set("from", from.In(s.loc).Format("2006-01-02"))
	}
	if !to.IsZero() {
		q.Set("to", to.In(s.loc).Format("2006-01-02"))
	}
	return fmt.Sprintf("%s/%s?%s", s.base, path, q.Encode())
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

// parseDate returns the zero time for empty or unparseable input.
func parseDate(s string, loc *time.Location) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, l := range dateLayouts {
		if d, err := time.ParseInLocation(l, s, loc); err == nil {
			return d
		}
	}
	return time.Time{}
}

func max0(i int64) int64 {
	if i < 0 {
		return 0
	}
	return i
}
