package products

import (
	"sort"

	"github.com/aristath/esgrade/internal/domain"
	"github.com/aristath/esgrade/pkg/formulas"
)

// SimulateUpgrade reports which products a grade improvement would unlock
// and how the best available rate would move. Both breakdowns are matched
// without a forecast, so projected conditions stay unsatisfied on both
// sides of the comparison and never distort it.
func (m *Matcher) SimulateUpgrade(current, target domain.ScoreBreakdown, catalog []ProductSpec) UpgradeSimulation {
	currentMatches := m.Match(current, nil, catalog)
	targetMatches := m.Match(target, nil, catalog)

	currentEligible := eligibleSet(currentMatches)
	targetEligible := eligibleSet(targetMatches)

	var unlocked []string
	for id := range targetEligible {
		if !currentEligible[id] {
			unlocked = append(unlocked, id)
		}
	}
	sort.Strings(unlocked)

	sim := UpgradeSimulation{
		CurrentGrade:    current.Grade,
		TargetGrade:     target.Grade,
		CurrentEligible: len(currentEligible),
		TargetEligible:  len(targetEligible),
		NewProducts:     unlocked,
	}

	bestCurrent, haveCurrent := bestEligibleRate(currentMatches)
	bestTarget, haveTarget := bestEligibleRate(targetMatches)
	if haveCurrent {
		sim.BestCurrentRate = bestCurrent
	}
	if haveTarget {
		sim.BestTargetRate = bestTarget
	}
	if haveCurrent && haveTarget {
		sim.RateImprovement = formulas.Round2(bestCurrent - bestTarget)
	}

	return sim
}

func eligibleSet(matches []MatchResult) map[string]bool {
	set := make(map[string]bool)
	for _, match := range matches {
		if match.Eligible {
			set[match.ProductID] = true
		}
	}
	return set
}

// bestEligibleRate returns the lowest effective rate among eligible
// matches. Matches arrive rate-sorted, so the first eligible one wins.
func bestEligibleRate(matches []MatchResult) (float64, bool) {
	for _, match := range matches {
		if match.Eligible {
			return match.EffectiveRate, true
		}
	}
	return 0, false
}
