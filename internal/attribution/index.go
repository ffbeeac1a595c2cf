package attribution

import (
	"sort"
	"time"

	"github.com/AngelCh415/buyer-rollup/internal/models"
)

// Owner is the result of resolving a channel on a date. Known is false for
// channels that were never granted to anyone; Grant is nil in that case.
type Owner struct {
	BuyerID   string
	BuyerName string
	Known     bool
	// Fallback is set when no grant covers the date and the first grant of
	// the channel was returned instead.
	Fallback bool
	Grant    *models.ChannelGrant
	Label    string
}

// Index groups grants by channel id. It is read-only after NewIndex.
type Index struct {
	byChannel map[string][]models.ChannelGrant
}

func NewIndex(grants []models.ChannelGrant) *Index {
	idx := &Index{byChannel: make(map[string][]models.ChannelGrant)}
	for _, g := range grants {
		idx.byChannel[g.ChannelID] = append(idx.byChannel[g.ChannelID], g)
	}
	return idx
}

// Resolve returns the buyer owning channelID on date. Grants are scanned in
// the order they were supplied. A channel that has grants, none covering the
// date, resolves to its first grant.
func (idx *Index) Resolve(channelID string, date time.Time) Owner {
	group := idx.byChannel[channelID]
	if channelID == "" || len(group) == 0 {
		return Unknown(channelID)
	}
	for i := range group {
		if group[i].Covers(date) {
			return ownerOf(&group[i], false)
		}
	}
	return ownerOf(&group[0], true)
}

// Channels lists the channel ids ever granted to buyerID (all channels when
// buyerID is empty), sorted.
func (idx *Index) Channels(buyerID string) []string {
	var out []string
	for ch, group := range idx.byChannel {
		for _, g := range group {
			if buyerID == "" || g.BuyerID == buyerID {
				out = append(out, ch)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func (idx *Index) Len() int { return len(idx.byChannel) }

// Unknown is the owner of a channel nobody was granted.
func Unknown(channelID string) Owner {
	return Owner{Label: "source_#" + channelID}
}

func ownerOf(g *models.ChannelGrant, fallback bool) Owner {
	// copia: el índice no se expone
	gc := *g
	return Owner{
		BuyerID:   g.BuyerID,
		BuyerName: g.BuyerName,
		Known:     true,
		Fallback:  fallback,
		Grant:     &gc,
		Label:     g.BuyerName,
	}
}
