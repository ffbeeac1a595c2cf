package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AngelCh415/buyer-rollup/internal/models"
	"github.com/AngelCh415/buyer-rollup/internal/zones"
)

// Reference is the static part of a query snapshot: who owns which channel,
// zone prices, currency rates and operational costs. It can be kept in a YAML
// file when no database is configured.
type Reference struct {
	Grants []models.ChannelGrant
	Zones  []models.ZoneThresholds
	Rates  []models.CurrencyRate
	Costs  []models.OperationalCost
}

type referenceFile struct {
	Grants []struct {
		ChannelID     string `yaml:"channel_id"`
		BuyerID       string `yaml:"buyer_id"`
		BuyerName     string `yaml:"buyer_name"`
		Source        string `yaml:"source"`
		AccessGranted string `yaml:"access_granted"`
		AccessLimited string `yaml:"access_limited"`
	} `yaml:"grants"`
	Zones []models.ZoneThresholds  `yaml:"zones"`
	Rates []models.CurrencyRate    `yaml:"currency_rates"`
	Costs []models.OperationalCost `yaml:"operational_costs"`
}

// LoadReference reads a reference file. Dates are YYYY-MM-DD read in loc.
// Unordered zone thresholds are rejected here, before any query runs.
func LoadReference(path string, loc *time.Location) (*Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseReference(data, loc)
}

func ParseReference(data []byte, loc *time.Location) (*Reference, error) {
	if loc == nil {
		loc = time.UTC
	}
	var rf referenceFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	ref := &Reference{Zones: rf.Zones, Rates: rf.Rates, Costs: rf.Costs}
	for i, g := range rf.Grants {
		if strings.TrimSpace(g.BuyerID) == "" {
			return nil, fmt.Errorf("reference: grant %d (%s): buyer_id required", i, g.ChannelID)
		}
		granted, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(g.AccessGranted), loc)
		if err != nil {
			return nil, fmt.Errorf("reference: grant %d (%s): access_granted: %w", i, g.ChannelID, err)
		}
		grant := models.ChannelGrant{
			ChannelID:     strings.TrimSpace(g.ChannelID),
			BuyerID:       strings.TrimSpace(g.BuyerID),
			BuyerName:     strings.TrimSpace(g.BuyerName),
			Source:        models.Source(strings.ToLower(strings.TrimSpace(g.Source))),
			AccessGranted: granted,
		}
		if s := strings.TrimSpace(g.AccessLimited); s != "" {
			limited, err := time.ParseInLocation("2006-01-02", s, loc)
			if err != nil {
				return nil, fmt.Errorf("reference: grant %d (%s): access_limited: %w", i, g.ChannelID, err)
			}
			grant.AccessLimited = &limited
		}
		ref.Grants = append(ref.Grants, grant)
	}
	for _, z := range ref.Zones {
		if err := zones.Validate(z); err != nil {
			return nil, fmt.Errorf("reference: %w", err)
		}
	}
	return ref, nil
}
