package scoring

import "github.com/aristath/esgrade/internal/domain"

// IndicatorRegistry fixes the set of sub-indicators a complete record is
// expected to carry per pillar. Absent indicators score as zero and are
// reported on the breakdown, never silently dropped.
type IndicatorRegistry struct {
	Environmental []string
	Social        []string
	Governance    []string
}

// Pillar returns the registry's indicator names for the given pillar.
func (r *IndicatorRegistry) Pillar(p domain.Pillar) []string {
	switch p {
	case domain.PillarEnvironmental:
		return r.Environmental
	case domain.PillarSocial:
		return r.Social
	case domain.PillarGovernance:
		return r.Governance
	}
	return nil
}

// CanonicalRegistry returns the twelve standard sub-indicators used by
// the bundled company catalog.
func CanonicalRegistry() *IndicatorRegistry {
	return &IndicatorRegistry{
		Environmental: []string{"carbon_emissions", "renewable_energy", "waste_management", "water_usage"},
		Social:        []string{"employee_satisfaction", "safety_record", "community_investment", "diversity_ratio"},
		Governance:    []string{"board_independence", "transparency_score", "ethics_compliance", "risk_management"},
	}
}
