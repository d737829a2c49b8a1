package supplychain

import (
	"sort"

	"github.com/aristath/esgrade/internal/domain"
	"github.com/aristath/esgrade/pkg/formulas"
)

// RiskBand labels how concentrated or exposed a supply chain is.
type RiskBand string

const (
	RiskHigh   RiskBand = "High"
	RiskMedium RiskBand = "Medium"
	RiskLow    RiskBand = "Low"
)

// bandFor maps a 100-point exposure score onto a band.
func bandFor(score float64) RiskBand {
	switch {
	case score < 70:
		return RiskHigh
	case score < 85:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ConcentrationReport describes how much spend sits with the largest
// suppliers.
type ConcentrationReport struct {
	Top5Share  float64  `json:"top5_share"`  // percent of total spend
	Top10Share float64  `json:"top10_share"` // percent of total spend
	Score      float64  `json:"score"`       // 100-point, penalties applied
	Band       RiskBand `json:"band"`
}

// AnalyzeConcentration measures spend concentration across the supplier
// set. More than half the spend in the top five suppliers costs 30
// points; more than seventy percent in the top ten costs another 20.
func (a *Analyzer) AnalyzeConcentration(suppliers []domain.SupplierRecord) ConcentrationReport {
	if len(suppliers) == 0 {
		return ConcentrationReport{Score: 100, Band: RiskLow}
	}

	weights := normalizedWeights(suppliers)
	sort.Sort(sort.Reverse(sort.Float64Slice(weights)))

	var top5, top10 float64
	for i, w := range weights {
		if i < 5 {
			top5 += w
		}
		if i < 10 {
			top10 += w
		}
	}

	score := 100.0
	if top5 > 0.5 {
		score -= 30
	}
	if top10 > 0.7 {
		score -= 20
	}

	return ConcentrationReport{
		Top5Share:  formulas.Round1(top5 * 100),
		Top10Share: formulas.Round1(top10 * 100),
		Score:      score,
		Band:       bandFor(score),
	}
}

// locationFactors scale supplier risk by sourcing region. Regions not
// listed carry a conservative default.
var locationFactors = map[string]float64{
	"Korea":   1.0,
	"Japan":   1.0,
	"EU":      1.0,
	"USA":     1.1,
	"China":   1.3,
	"Vietnam": 1.4,
	"India":   1.5,
}

const defaultLocationFactor = 1.2

// LocationFactor returns the risk multiplier for a sourcing region.
func LocationFactor(location string) float64 {
	if f, ok := locationFactors[location]; ok {
		return f
	}
	return defaultLocationFactor
}

// LocationShare is one region's slice of supply spend.
type LocationShare struct {
	Location   string  `json:"location"`
	Suppliers  int     `json:"suppliers"`
	SpendShare float64 `json:"spend_share"` // percent
	RiskFactor float64 `json:"risk_factor"`
}

// GeographyReport describes regional spread and the exposure it implies.
type GeographyReport struct {
	Distribution  []LocationShare `json:"distribution"` // largest spend first
	PrimaryRegion string          `json:"primary_region"`
	Score         float64         `json:"score"` // 100-point diversity score
	Band          RiskBand        `json:"band"`
}

// AnalyzeGeography breaks supplier spend down by region. Over half the
// spend in one region costs 30 points; fewer than three regions costs 20.
func (a *Analyzer) AnalyzeGeography(suppliers []domain.SupplierRecord) GeographyReport {
	if len(suppliers) == 0 {
		return GeographyReport{Score: 100, Band: RiskLow}
	}

	weights := normalizedWeights(suppliers)

	shareByLocation := make(map[string]float64)
	countByLocation := make(map[string]int)
	for i, s := range suppliers {
		location := s.Location
		if location == "" {
			location = "Unknown"
		}
		shareByLocation[location] += weights[i]
		countByLocation[location]++
	}

	distribution := make([]LocationShare, 0, len(shareByLocation))
	for location, share := range shareByLocation {
		distribution = append(distribution, LocationShare{
			Location:   location,
			Suppliers:  countByLocation[location],
			SpendShare: formulas.Round1(share * 100),
			RiskFactor: LocationFactor(location),
		})
	}
	sort.Slice(distribution, func(i, j int) bool {
		if distribution[i].SpendShare != distribution[j].SpendShare {
			return distribution[i].SpendShare > distribution[j].SpendShare
		}
		return distribution[i].Location < distribution[j].Location
	})

	score := 100.0
	if distribution[0].SpendShare > 50 {
		score -= 30
	}
	if len(distribution) < 3 {
		score -= 20
	}

	return GeographyReport{
		Distribution:  distribution,
		PrimaryRegion: distribution[0].Location,
		Score:         score,
		Band:          bandFor(score),
	}
}

// SupplierRisk is one supplier's contribution to propagated risk.
type SupplierRisk struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Tier           int      `json:"tier"`
	Location       string   `json:"location"`
	ESGScore       float64  `json:"esg_score"`
	Deficit        float64  `json:"deficit"` // shortfall below the target threshold
	TierWeight     float64  `json:"tier_weight"`
	LocationFactor float64  `json:"location_factor"`
	WeightedRisk   float64  `json:"weighted_risk"`
	Level          RiskBand `json:"level"`
}

// tierWeight discounts risk from deeper supply tiers, where influence and
// data quality both drop.
func tierWeight(tier int) float64 {
	if tier <= 1 {
		return 1.0
	}
	return 0.7
}

// RiskDetail scores each supplier's risk contribution, riskiest first.
// The deficit against the target threshold is scaled by tier weight and
// location factor; levels band on the raw ESG score (below 40 High,
// below 70 Medium, otherwise Low).
func (a *Analyzer) RiskDetail(suppliers []domain.SupplierRecord) []SupplierRisk {
	risks := make([]SupplierRisk, 0, len(suppliers))

	for _, s := range suppliers {
		deficit := a.cfg.TargetThreshold - s.ESGScore
		if deficit < 0 {
			deficit = 0
		}

		tw := tierWeight(s.Tier)
		lf := LocationFactor(s.Location)

		level := RiskLow
		switch {
		case s.ESGScore < 40:
			level = RiskHigh
		case s.ESGScore < 70:
			level = RiskMedium
		}

		risks = append(risks, SupplierRisk{
			ID:             s.ID,
			Name:           s.Name,
			Tier:           s.Tier,
			Location:       s.Location,
			ESGScore:       s.ESGScore,
			Deficit:        formulas.Round1(deficit),
			TierWeight:     tw,
			LocationFactor: lf,
			WeightedRisk:   formulas.Round1(deficit * tw * lf),
			Level:          level,
		})
	}

	sort.Slice(risks, func(i, j int) bool {
		if risks[i].WeightedRisk != risks[j].WeightedRisk {
			return risks[i].WeightedRisk > risks[j].WeightedRisk
		}
		return risks[i].ID < risks[j].ID
	})

	return risks
}
