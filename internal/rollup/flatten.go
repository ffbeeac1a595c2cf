package rollup

import (
	"github.com/AngelCh415/buyer-rollup/internal/attribution"
	"github.com/AngelCh415/buyer-rollup/internal/models"
)

// Row is one flattened node, carrying the ids and names of its ancestors.
type Row struct {
	Level        models.Level  `json:"level"`
	BuyerID      string        `json:"buyer_id"`
	BuyerName    string        `json:"buyer_name"`
	CampaignID   string        `json:"campaign_id,omitempty"`
	CampaignName string        `json:"campaign_name,omitempty"`
	GroupID      string        `json:"group_id,omitempty"`
	GroupName    string        `json:"group_name,omitempty"`
	AdID         string        `json:"ad_id,omitempty"`
	AdName       string        `json:"ad_name,omitempty"`
	Totals       models.Totals `json:"totals"`
	Derived      Derived       `json:"derived"`
	Zone         string        `json:"zone,omitempty"`
}

// Flatten lists every node depth-first, parents before children. th may be
// nil, in which case no zone is set.
func Flatten(f Forest, th *models.ZoneThresholds) []Row {
	var out []Row
	var walk func(n *models.Node, r Row)
	walk = func(n *models.Node, r Row) {
		r.Level = n.Level
		switch n.Level {
		case models.LevelBuyer:
			r.BuyerID, r.BuyerName = n.ID, n.Name
		case models.LevelCampaign:
			r.CampaignID, r.CampaignName = n.ID, n.Name
		case models.LevelGroup:
			r.GroupID, r.GroupName = n.ID, n.Name
		case models.LevelAd:
			r.AdID, r.AdName = n.ID, n.Name
		}
		r.Totals = n.Totals
		r.Derived = Derive(n.Totals)
		r.Zone = Zone(n.Totals, th)
		out = append(out, r)
		for _, c := range n.Children {
			walk(c, r)
		}
	}
	for _, b := range f.Buyers {
		walk(b, Row{})
	}
	return out
}

// Only keeps the buyer with the given id. An empty id keeps every buyer; the
// unknown bucket is never selected by id.
func (f Forest) Only(buyerID string) Forest {
	if buyerID == "" {
		return f
	}
	out := Forest{Buyers: []*models.Node{}}
	for _, b := range f.Buyers {
		if !b.Unknown && b.ID == buyerID {
			out.Buyers = append(out.Buyers, b)
			out.Totals = out.Totals.Add(b.Totals)
		}
	}
	return out
}

// SplitByBuyer partitions ad rows by owning buyer with the same rules as
// Build: rows outside the resolved grant window are dropped, unowned rows go
// under UnknownBuyerID. Row order is preserved within a buyer.
func SplitByBuyer(ads []models.AdRecord, idx *attribution.Index) map[string][]models.AdRecord {
	if idx == nil {
		idx = attribution.NewIndex(nil)
	}
	out := make(map[string][]models.AdRecord)
	for _, r := range ads {
		owner := idx.Resolve(r.SourceID, r.Date)
		if owner.Known && !owner.Grant.Covers(r.Date) {
			continue
		}
		k := buyerKey(owner)
		out[k] = append(out[k], r)
	}
	return out
}
