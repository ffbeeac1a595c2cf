package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AngelCh415/buyer-rollup/internal/attribution"
	"github.com/AngelCh415/buyer-rollup/internal/config"
	"github.com/AngelCh415/buyer-rollup/internal/ingest"
	"github.com/AngelCh415/buyer-rollup/internal/models"
	"github.com/AngelCh415/buyer-rollup/internal/period"
	"github.com/AngelCh415/buyer-rollup/internal/rates"
	"github.com/AngelCh415/buyer-rollup/internal/rollup"
	"github.com/AngelCh415/buyer-rollup/internal/zones"
)

var queryDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "rollup_query_duration_seconds",
		Help:    "Time to answer one rollup query, fetch included.",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	},
	[]string{"outcome"},
)

// MustRegister registers the query collectors on reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(queryDuration)
}

// Query is one rollup request.
type Query struct {
	Period  period.Selector
	BuyerID string
	Article string
}

// Result is a rollup answer. Rows is only filled by Service.Rows.
type Result struct {
	Forest      rollup.Forest          `json:"forest"`
	Rows        []rollup.Row           `json:"rows,omitempty"`
	Zones       *models.ZoneThresholds `json:"zones,omitempty"`
	Warnings    []ingest.ChunkWarning  `json:"warnings"`
	OutOfWindow int                    `json:"out_of_window"`
	Unplaced    int                    `json:"unplaced"`
}

type Service struct {
	grants  ingest.GrantSource
	zones   ingest.ZoneSource
	ref     ingest.ReferenceSource
	fetcher *ingest.Fetcher
	log     *slog.Logger
	loc     *time.Location
	workers int
	now     func() time.Time
}

func NewService(grants ingest.GrantSource, zs ingest.ZoneSource, ref ingest.ReferenceSource, f *ingest.Fetcher, log *slog.Logger, cfg config.Config) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		grants:  grants,
		zones:   zs,
		ref:     ref,
		fetcher: f,
		log:     log,
		loc:     loc,
		workers: cfg.RollupWorkers,
		now:     time.Now,
	}
}

func norm(s string) string { return strings.TrimSpace(s) }

// ParseQuery reads period, from, to, buyer and article from query values.
func (s *Service) ParseQuery(v url.Values) (Query, error) {
	sel, err := period.Parse(v.Get("period"), norm(v.Get("from")), norm(v.Get("to")), s.loc)
	if err != nil {
		return Query{}, err
	}
	return Query{Period: sel, BuyerID: norm(v.Get("buyer")), Article: norm(v.Get("article"))}, nil
}

// Rollup fetches the snapshot for q and aggregates it. Zone prices are
// checked before anything is fetched.
func (s *Service) Rollup(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()
	res, err := s.rollup(ctx, q)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	queryDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return res, err
}

func (s *Service) rollup(ctx context.Context, q Query) (*Result, error) {
	res := &Result{Warnings: []ingest.ChunkWarning{}}
	if q.Article != "" {
		th, ok, err := s.zoneThresholds(ctx, q.Article)
		if err != nil {
			return nil, err
		}
		if ok {
			res.Zones = &th
		}
	}

	// todas las concesiones: otro comprador puede tener el canal en otras fechas
	grants, err := s.grants.Grants(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("grants: %w", err)
	}
	idx := attribution.NewIndex(grants)

	now := s.now()
	var from, to time.Time
	if start, end, ok := period.Window(q.Period, now, s.loc); ok {
		from, to = start, end.AddDate(0, 0, -1)
	}

	snap, err := s.fetcher.Fetch(ctx, idx.Channels(q.BuyerID), from, to)
	if err != nil {
		return nil, err
	}
	res.Warnings = append(res.Warnings, snap.Warnings...)

	rt, ct, err := s.tables(ctx)
	if err != nil {
		return nil, err
	}

	ads := period.Filter(snap.Ads, q.Period, now, s.loc)
	convs := period.Filter(snap.Conversions, q.Period, now, s.loc)
	h := rollup.Build(ads, convs, snap.Sales, idx)
	res.OutOfWindow, res.Unplaced = h.OutOfWindow, h.Unplaced
	res.Forest = rollup.Aggregator{Workers: s.workers, Log: s.log}.Aggregate(h, rt, ct).Only(q.BuyerID)

	s.log.Info("rollup built",
		slog.String("period", string(q.Period.Kind)),
		slog.String("buyer", q.BuyerID),
		slog.Int("ads", len(ads)),
		slog.Int("conversions", len(convs)),
		slog.Int("buyers", len(res.Forest.Buyers)),
		slog.Int("out_of_window", h.OutOfWindow),
		slog.Int("unplaced", h.Unplaced),
		slog.Int("warnings", len(res.Warnings)))
	return res, nil
}

// Rows is Rollup flattened for export, with zones set when the query names an article.
func (s *Service) Rows(ctx context.Context, q Query) (*Result, error) {
	res, err := s.Rollup(ctx, q)
	if err != nil {
		return nil, err
	}
	res.Rows = rollup.Flatten(res.Forest, res.Zones)
	if res.Rows == nil {
		res.Rows = []rollup.Row{}
	}
	return res, nil
}

// Classify returns the zone of cpl for article; ok is false when the article
// has no prices or cpl has no zone.
func (s *Service) Classify(ctx context.Context, article string, cpl float64) (zones.Zone, bool, error) {
	th, ok, err := s.zoneThresholds(ctx, article)
	if err != nil || !ok {
		return "", false, err
	}
	z, ok := zones.Classify(th, cpl)
	return z, ok, nil
}

func (s *Service) zoneThresholds(ctx context.Context, article string) (models.ZoneThresholds, bool, error) {
	th, ok, err := s.zones.Zones(ctx, article)
	if err != nil {
		return models.ZoneThresholds{}, false, fmt.Errorf("zones %q: %w", article, err)
	}
	if !ok {
		return models.ZoneThresholds{}, false, nil
	}
	if err := zones.Validate(th); err != nil {
		return models.ZoneThresholds{}, false, err
	}
	return th, true, nil
}

func (s *Service) tables(ctx context.Context) (*rates.RateTable, *rates.CostTable, error) {
	rs, err := s.ref.CurrencyRates(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("currency rates: %w", err)
	}
	cs, err := s.ref.OperationalCosts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("operational costs: %w", err)
	}
	return rates.NewRateTable(rs), rates.NewCostTable(cs), nil
}

var ErrMissingCPL = errors.New("cpl required")

func ParseCPL(s string) (float64, error) {
	s = norm(s)
	if s == "" {
		return 0, ErrMissingCPL
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad cpl %q: %w", s, err)
	}
	return v, nil
}
