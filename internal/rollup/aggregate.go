package rollup

import (
	"log/slog"
	"strings"

	"github.com/alitto/pond/v2"

	"github.com/AngelCh415/buyer-rollup/internal/models"
	"github.com/AngelCh415/buyer-rollup/internal/rates"
)

var (
	sentStatuses = statusSet("1", "5", "6", "10", "11", "15", "16", "17", "18", "19", "20")
	soldStatuses = statusSet("2")
)

func statusSet(codes ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		out[c] = struct{}{}
	}
	return out
}

func IsSent(status string) bool {
	_, ok := sentStatuses[strings.TrimSpace(status)]
	return ok
}

func IsSold(status string) bool {
	_, ok := soldStatuses[strings.TrimSpace(status)]
	return ok
}

// Forest is the aggregated result of one query. Totals is the sum over Buyers.
type Forest struct {
	Buyers []*models.Node `json:"buyers"`
	Totals models.Totals  `json:"totals"`
}

// Aggregate computes leaf totals and sums them up to the root, one buyer after another.
func Aggregate(h *Hierarchy, rt *rates.RateTable, ct *rates.CostTable) Forest {
	return Aggregator{}.Aggregate(h, rt, ct)
}

// Aggregator rolls buyers up on a pond pool when Workers > 1. Buyer subtrees
// share no data, so the result is identical to the sequential one. Log may be nil.
type Aggregator struct {
	Workers int
	Log     *slog.Logger
}

func (a Aggregator) Aggregate(h *Hierarchy, rt *rates.RateTable, ct *rates.CostTable) Forest {
	if h == nil || len(h.Buyers) == 0 {
		return Forest{Buyers: []*models.Node{}}
	}
	nodes := make([]*models.Node, len(h.Buyers))
	if a.Workers > 1 && len(h.Buyers) > 1 {
		pool := pond.NewPool(a.Workers)
		defer pool.StopAndWait()
		group := pool.NewGroup()
		for i, b := range h.Buyers {
			i, b := i, b
			group.Submit(func() {
				nodes[i] = roll(b, rt, ct)
			})
		}
		if err := group.Wait(); err != nil {
			a.fill(err, nodes, h.Buyers, rt, ct)
		}
	} else {
		for i, b := range h.Buyers {
			nodes[i] = roll(b, rt, ct)
		}
	}

	f := Forest{Buyers: nodes}
	for _, n := range nodes {
		f.Totals = f.Totals.Add(n.Totals)
	}
	return f
}

// fill rolls up, in place, the buyers whose task did not run.
func (a Aggregator) fill(err error, nodes []*models.Node, buyers []*Branch, rt *rates.RateTable, ct *rates.CostTable) {
	missing := 0
	for i, n := range nodes {
		if n == nil {
			nodes[i] = roll(buyers[i], rt, ct)
			missing++
		}
	}
	if a.Log != nil {
		a.Log.Warn("parallel rollup group encountered error",
			slog.Int("buyers", len(buyers)),
			slog.Int("rolled_sequentially", missing),
			slog.String("err", err.Error()))
	}
}

func roll(b *Branch, rt *rates.RateTable, ct *rates.CostTable) *models.Node {
	n := &models.Node{ID: b.ID, Name: b.Name, Level: b.Level, Unknown: b.Unknown}
	if b.Level == models.LevelAd {
		n.Totals = leafTotals(b, rt, ct)
		return n
	}
	n.Children = make([]*models.Node, 0, len(b.Children))
	for _, c := range b.Children {
		cn := roll(c, rt, ct)
		n.Children = append(n.Children, cn)
		n.Totals = n.Totals.Add(cn.Totals)
	}
	return n
}

func leafTotals(b *Branch, rt *rates.RateTable, ct *rates.CostTable) models.Totals {
	var t models.Totals
	for _, d := range b.Days {
		rate := rt.Resolve(d.Date)
		t.Leads += d.ValidCount
		t.AdSpendSource = t.AdSpendSource.Add(d.Cost)
		t.AdSpendSourceLocal = t.AdSpendSourceLocal.Add(d.Cost.Mul(rate))
		t.AdSpendCabinet = t.AdSpendCabinet.Add(d.CostFromSources)
		t.AdSpendCabinetLocal = t.AdSpendCabinetLocal.Add(d.CostFromSources.Mul(rate))
	}
	for _, p := range b.Pairs {
		if p.Sale == nil {
			continue
		}
		s := p.Sale
		if IsSent(s.OrderStatus) {
			t.SentCount++
			t.SentSum = t.SentSum.Add(s.OrderEndPrice)
			t.SentProfit = t.SentProfit.Add(s.OrderProfit)
		}
		if IsSold(s.OrderStatus) {
			t.SoldCount++
			t.SoldProfit = t.SoldProfit.Add(s.OrderProfit)
		}
		t.DeliveryCost = t.DeliveryCost.Add(s.DeliveryPrice)
		t.OperationalCost = t.OperationalCost.Add(ct.Resolve(p.Conversion.EffectiveDate()))
	}
	return t
}
