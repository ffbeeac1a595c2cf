package store

import (
	"context"
	"sync"
	"time"

	"github.com/AngelCh415/buyer-rollup/internal/config"
	"github.com/AngelCh415/buyer-rollup/internal/models"
	"github.com/AngelCh415/buyer-rollup/internal/zones"
)

// MemoryStore serves grants, zones, reference tables and raw records from
// memory. Readers get copies; the store itself may be updated between queries.
type MemoryStore struct {
	mu          sync.RWMutex
	grants      []models.ChannelGrant
	zones       map[string]models.ZoneThresholds
	rates       []models.CurrencyRate
	costs       []models.OperationalCost
	ads         []models.AdRecord
	conversions []models.ConversionRecord
	sales       []models.SaleRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{zones: make(map[string]models.ZoneThresholds)}
}

// FromReference loads a parsed reference file.
func FromReference(ref *config.Reference) (*MemoryStore, error) {
	s := NewMemoryStore()
	s.grants = append(s.grants, ref.Grants...)
	s.rates = append(s.rates, ref.Rates...)
	s.costs = append(s.costs, ref.Costs...)
	for _, z := range ref.Zones {
		if err := s.UpsertZones(z); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *MemoryStore) AddGrants(g ...models.ChannelGrant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants = append(s.grants, g...)
}

// UpsertZones replaces the thresholds of th.Article after validating them.
func (s *MemoryStore) UpsertZones(th models.ZoneThresholds) error {
	if err := zones.Validate(th); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones[th.Article] = th
	return nil
}

func (s *MemoryStore) SetRates(r []models.CurrencyRate, c []models.OperationalCost) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates = append([]models.CurrencyRate(nil), r...)
	s.costs = append([]models.OperationalCost(nil), c...)
}

func (s *MemoryStore) AddRecords(ads []models.AdRecord, convs []models.ConversionRecord, sales []models.SaleRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ads = append(s.ads, ads...)
	s.conversions = append(s.conversions, convs...)
	s.sales = append(s.sales, sales...)
}

func (s *MemoryStore) Grants(_ context.Context, buyerID string) ([]models.ChannelGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChannelGrant, 0, len(s.grants))
	for _, g := range s.grants {
		if buyerID == "" || g.BuyerID == buyerID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *MemoryStore) Zones(_ context.Context, article string) (models.ZoneThresholds, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	th, ok := s.zones[article]
	return th, ok, nil
}

func (s *MemoryStore) CurrencyRates(context.Context) ([]models.CurrencyRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.CurrencyRate(nil), s.rates...), nil
}

func (s *MemoryStore) OperationalCosts(context.Context) ([]models.OperationalCost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.OperationalCost(nil), s.costs...), nil
}

func (s *MemoryStore) Ads(_ context.Context, sourceIDs []string, from, to time.Time) ([]models.AdRecord, error) {
	want := set(sourceIDs)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AdRecord
	for _, a := range s.ads {
		if _, ok := want[a.SourceID]; ok && inRange(a.Date, from, to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryStore) Conversions(_ context.Context, adIDs []string, from, to time.Time) ([]models.ConversionRecord, error) {
	want := set(adIDs)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ConversionRecord
	for _, c := range s.conversions {
		if _, ok := want[c.AdvID]; ok && inRange(c.EffectiveDate(), from, to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) Sales(_ context.Context, clickIDs []string, _, _ time.Time) ([]models.SaleRecord, error) {
	want := set(clickIDs)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.SaleRecord
	for _, sl := range s.sales {
		if _, ok := want[sl.ClickID]; ok {
			out = append(out, sl)
		}
	}
	return out, nil
}

func set(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

// inRange compares calendar days; a zero bound is open.
func inRange(d, from, to time.Time) bool {
	day := models.Day(d)
	if !from.IsZero() && day.Before(models.Day(from)) {
		return false
	}
	if !to.IsZero() && day.After(models.Day(to)) {
		return false
	}
	return true
}
