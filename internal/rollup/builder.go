package rollup

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/AngelCh415/buyer-rollup/internal/attribution"
	"github.com/AngelCh415/buyer-rollup/internal/models"
)

// The unknown bucket has an empty id, which no grant carries, and Unknown set.
const (
	UnknownBuyerID   = ""
	UnknownBuyerName = "Unknown buyer"
)

// DayBucket is the raw ad spend of one ad on one calendar day.
type DayBucket struct {
	Date            time.Time
	Cost            decimal.Decimal
	CostFromSources decimal.Decimal
	ValidCount      int64
}

// Pair joins a conversion with its sale. Sale is nil when no sale carries the click id.
type Pair struct {
	Conversion models.ConversionRecord
	Sale       *models.SaleRecord
}

// Branch is a node of the raw hierarchy before aggregation. Days and Pairs are
// only set on ad leaves.
type Branch struct {
	ID       string
	Name     string
	Level    models.Level
	Unknown  bool
	Children []*Branch
	Days     []DayBucket
	Pairs    []Pair

	byID   map[string]*Branch
	dayIdx map[time.Time]int
}

func newBranch(id, name string, lvl models.Level) *Branch {
	if name == "" {
		name = id
	}
	return &Branch{ID: id, Name: name, Level: lvl, byID: map[string]*Branch{}}
}

func (b *Branch) child(id, name string, lvl models.Level) *Branch {
	c, ok := b.byID[id]
	if !ok {
		c = newBranch(id, name, lvl)
		b.byID[id] = c
		b.Children = append(b.Children, c)
	} else if c.Name == c.ID && name != "" {
		c.Name = name
	}
	return c
}

func (b *Branch) addDay(r models.AdRecord) {
	if b.dayIdx == nil {
		b.dayIdx = map[time.Time]int{}
	}
	d := models.Day(r.Date)
	i, ok := b.dayIdx[d]
	if !ok {
		i = len(b.Days)
		b.dayIdx[d] = i
		b.Days = append(b.Days, DayBucket{Date: d})
	}
	db := &b.Days[i]
	db.Cost = db.Cost.Add(r.Cost)
	db.CostFromSources = db.CostFromSources.Add(r.CostFromSources)
	db.ValidCount += r.ValidCount
}

// Hierarchy is the buyer → campaign → group → ad tree of one query.
type Hierarchy struct {
	Buyers []*Branch
	// OutOfWindow counts ad rows dropped because the resolved grant does not cover their date.
	OutOfWindow int
	// Unplaced counts conversions whose adv_id matched no ad in the tree.
	Unplaced int
}

type placement struct {
	leaf     *Branch
	buyerKey string
}

// Build attributes every ad row to a buyer and lays the rows out as a tree.
// Buyers appear in first-seen order with the unknown bucket last. Each
// conversion is attached to exactly one leaf of its ad: the leaf under the
// buyer owning the ad's channel on the click date, else the first leaf.
func Build(ads []models.AdRecord, conversions []models.ConversionRecord, sales []models.SaleRecord, idx *attribution.Index) *Hierarchy {
	if idx == nil {
		idx = attribution.NewIndex(nil)
	}
	salesByClick := make(map[string]*models.SaleRecord, len(sales))
	for i := range sales {
		if _, ok := salesByClick[sales[i].ClickID]; !ok {
			salesByClick[sales[i].ClickID] = &sales[i]
		}
	}
	convByAd := make(map[string][]models.ConversionRecord)
	for _, c := range conversions {
		convByAd[c.AdvID] = append(convByAd[c.AdvID], c)
	}

	h := &Hierarchy{}
	root := newBranch("", "", "")
	unknown := newBranch(UnknownBuyerID, UnknownBuyerName, models.LevelBuyer)
	unknown.Unknown = true

	leaves := make(map[string][]placement)
	adSource := make(map[string]string)
	var adOrder []string

	for _, r := range ads {
		owner := idx.Resolve(r.SourceID, r.Date)
		if owner.Known && !owner.Grant.Covers(r.Date) {
			h.OutOfWindow++
			continue
		}
		key := buyerKey(owner)
		buyer := unknown
		if owner.Known {
			buyer = root.child(key, owner.BuyerName, models.LevelBuyer)
		}
		leaf := buyer.
			child(r.CampaignID, r.CampaignName, models.LevelCampaign).
			child(r.GroupID, r.GroupName, models.LevelGroup).
			child(r.AdID, r.AdName, models.LevelAd)
		leaf.addDay(r)

		if _, seen := adSource[r.AdID]; !seen {
			adSource[r.AdID] = r.SourceID
			adOrder = append(adOrder, r.AdID)
		}
		if !hasLeaf(leaves[r.AdID], leaf) {
			leaves[r.AdID] = append(leaves[r.AdID], placement{leaf: leaf, buyerKey: key})
		}
	}

	for _, adID := range adOrder {
		ps := leaves[adID]
		for _, c := range convByAd[adID] {
			target := ps[0].leaf
			if len(ps) > 1 {
				want := buyerKey(idx.Resolve(adSource[adID], c.DateOfClick))
				for _, p := range ps {
					if p.buyerKey == want {
						target = p.leaf
						break
					}
				}
			}
			target.Pairs = append(target.Pairs, Pair{Conversion: c, Sale: salesByClick[c.ClickID]})
		}
		delete(convByAd, adID)
	}
	for _, cs := range convByAd {
		h.Unplaced += len(cs)
	}

	h.Buyers = root.Children
	if len(unknown.Children) > 0 {
		h.Buyers = append(h.Buyers, unknown)
	}
	return h
}

func buyerKey(o attribution.Owner) string {
	if !o.Known {
		return UnknownBuyerID
	}
	return o.BuyerID
}

func hasLeaf(ps []placement, leaf *Branch) bool {
	for _, p := range ps {
		if p.leaf == leaf {
			return true
		}
	}
	return false
}
