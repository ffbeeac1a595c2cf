package zones

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/AngelCh415/buyer-rollup/internal/models"
)

type Zone string

const (
	Red   Zone = "red"
	Pink  Zone = "pink"
	Gold  Zone = "gold"
	Green Zone = "green"
)

var ErrUnordered = errors.New("zone thresholds not in ascending order")

type tier struct {
	zone  Zone
	price float64
}

func tiers(th models.ZoneThresholds) []tier {
	var out []tier
	for _, t := range []struct {
		z Zone
		p *float64
	}{{Red, th.Red}, {Pink, th.Pink}, {Gold, th.Gold}, {Green, th.Green}} {
		if t.p != nil {
			out = append(out, tier{zone: t.z, price: *t.p})
		}
	}
	return out
}

// Validate rejects thresholds the classifier cannot order: non-finite or
// negative prices, or configured tiers out of red < pink < gold < green order.
func Validate(th models.ZoneThresholds) error {
	ts := tiers(th)
	for i, t := range ts {
		if math.IsNaN(t.price) || math.IsInf(t.price, 0) || t.price < 0 {
			return fmt.Errorf("article %q: %s price %v: %w", th.Article, t.zone, t.price, ErrUnordered)
		}
		if i > 0 && t.price < ts[i-1].price {
			return fmt.Errorf("article %q: %s (%v) below %s (%v): %w",
				th.Article, t.zone, t.price, ts[i-1].zone, ts[i-1].price, ErrUnordered)
		}
	}
	return nil
}

// Classify returns the first configured tier priced strictly above cpl. A cpl
// at or above every price lands in the most expensive tier. ok is false when
// no tier is configured or cpl is not a positive finite number.
func Classify(th models.ZoneThresholds, cpl float64) (Zone, bool) {
	if math.IsNaN(cpl) || math.IsInf(cpl, 0) || cpl <= 0 {
		return "", false
	}
	ts := tiers(th)
	if len(ts) == 0 {
		return "", false
	}
	sort.SliceStable(ts, func(i, j int) bool { return ts[i].price < ts[j].price })
	for _, t := range ts {
		if t.price > cpl {
			return t.zone, true
		}
	}
	return ts[len(ts)-1].zone, true
}
