package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/AngelCh415/buyer-rollup/internal/models"
	"github.com/AngelCh415/buyer-rollup/internal/zones"
)

// Postgres reads every collaborator table from one database.
type Postgres struct {
	db *sql.DB
}

func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Postgres{db: db}, nil
}

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Grants(ctx context.Context, buyerID string) ([]models.ChannelGrant, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT channel_id, buyer_id, buyer_name, source, access_granted, access_limited
		FROM channel_grants
		WHERE $1 = '' OR buyer_id = $1
		ORDER BY id`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	var out []models.ChannelGrant
	for rows.Next() {
		var (
			g       models.ChannelGrant
			source  string
			limited sql.NullTime
		)
		if err := rows.Scan(&g.ChannelID, &g.BuyerID, &g.BuyerName, &source, &g.AccessGranted, &limited); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		g.Source = models.Source(source)
		if limited.Valid {
			t := limited.Time
			g.AccessLimited = &t
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Zones validates what it reads, so an unordered row fails the query.
func (p *Postgres) Zones(ctx context.Context, article string) (models.ZoneThresholds, bool, error) {
	var (
		th                     = models.ZoneThresholds{Article: article}
		red, pink, gold, green sql.NullFloat64
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT red, pink, gold, green FROM zone_thresholds WHERE article = $1`, article).
		Scan(&red, &pink, &gold, &green)
	if err == sql.ErrNoRows {
		return models.ZoneThresholds{}, false, nil
	}
	if err != nil {
		return models.ZoneThresholds{}, false, fmt.Errorf("query zones %q: %w", article, err)
	}
	th.Red, th.Pink, th.Gold, th.Green = nullable(red), nullable(pink), nullable(gold), nullable(green)
	if err := zones.Validate(th); err != nil {
		return models.ZoneThresholds{}, false, err
	}
	return th, true, nil
}

func (p *Postgres) CurrencyRates(ctx context.Context) ([]models.CurrencyRate, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT year, month, rate FROM currency_rates ORDER BY year, month`)
	if err != nil {
		return nil, fmt.Errorf("query currency rates: %w", err)
	}
	defer rows.Close()
	var out []models.CurrencyRate
	for rows.Next() {
		var r models.CurrencyRate
		if err := rows.Scan(&r.Year, &r.Month, &r.Rate); err != nil {
			return nil, fmt.Errorf("scan currency rate: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) OperationalCosts(ctx context.Context) ([]models.OperationalCost, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT year, month, cost_per_conversion FROM operational_costs ORDER BY year, month`)
	if err != nil {
		return nil, fmt.Errorf("query operational costs: %w", err)
	}
	defer rows.Close()
	var out []models.OperationalCost
	for rows.Next() {
		var c models.OperationalCost
		if err := rows.Scan(&c.Year, &c.Month, &c.CostPerConversion); err != nil {
			return nil, fmt.Errorf("scan operational cost: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) Ads(ctx context.Context, sourceIDs []string, from, to time.Time) ([]models.AdRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT source_id, campaign_id, campaign_name, group_id, group_name, ad_id, ad_name,
		       date, cost, cost_from_sources, valid_count
		FROM ad_records
		WHERE source_id = ANY($1)
		  AND ($2::date IS NULL OR date >= $2::date)
		  AND ($3::date IS NULL OR date <= $3::date)
		ORDER BY date, ad_id`, pq.Array(sourceIDs), nullDate(from), nullDate(to))
	if err != nil {
		return nil, fmt.Errorf("query ads: %w", err)
	}
	defer rows.Close()
	var out []models.AdRecord
	for rows.Next() {
		var a models.AdRecord
		if err := rows.Scan(&a.SourceID, &a.CampaignID, &a.CampaignName, &a.GroupID, &a.GroupName,
			&a.AdID, &a.AdName, &a.Date, &a.Cost, &a.CostFromSources, &a.ValidCount); err != nil {
			return nil, fmt.Errorf("scan ad: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Conversions bounds the range on the conversion date, falling back to the click date.
func (p *Postgres) Conversions(ctx context.Context, adIDs []string, from, to time.Time) ([]models.ConversionRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT adv_id, clickid, date_of_click, date_of_conversion
		FROM conversions
		WHERE adv_id = ANY($1)
		  AND ($2::date IS NULL OR COALESCE(date_of_conversion, date_of_click) >= $2::date)
		  AND ($3::date IS NULL OR COALESCE(date_of_conversion, date_of_click) < $3::date + 1)`,
		pq.Array(adIDs), nullDate(from), nullDate(to))
	if err != nil {
		return nil, fmt.Errorf("query conversions: %w", err)
	}
	defer rows.Close()
	var out []models.ConversionRecord
	for rows.Next() {
		var (
			c         models.ConversionRecord
			click, cv sql.NullTime
		)
		if err := rows.Scan(&c.AdvID, &c.ClickID, &click, &cv); err != nil {
			return nil, fmt.Errorf("scan conversion: %w", err)
		}
		c.DateOfClick, c.DateOfConversion = click.Time, cv.Time
		out = append(out, c)
	}
	return out, rows.Err()
}

// Sales ignores the date range: a sale is looked up by click id only.
func (p *Postgres) Sales(ctx context.Context, clickIDs []string, _, _ time.Time) ([]models.SaleRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT clickid, order_status::text, order_profit, order_end_price, delivery_price, order_date
		FROM sales
		WHERE clickid = ANY($1)`, pq.Array(clickIDs))
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}
	defer rows.Close()
	var out []models.SaleRecord
	for rows.Next() {
		var (
			s                       models.SaleRecord
			profit, price, delivery decimal.NullDecimal
			orderDate               sql.NullTime
		)
		if err := rows.Scan(&s.ClickID, &s.OrderStatus, &profit, &price, &delivery, &orderDate); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		s.OrderProfit, s.OrderEndPrice, s.DeliveryPrice = profit.Decimal, price.Decimal, delivery.Decimal
		s.OrderDate = orderDate.Time
		out = append(out, s)
	}
	return out, rows.Err()
}

// nullDate maps an open bound to NULL.
func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format("2006-01-02")
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
