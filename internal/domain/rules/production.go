// Package rules contains the pure calculation logic for studio mechanics.
// This package is PURE and must NOT import any infrastructure packages.
package rules

import (
	"math"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/film"
)

// AssumedTotalWeeks converts a budget into a weekly burn rate.
const AssumedTotalWeeks = 30

// Tolerance is the band within which a film is still on budget / on schedule.
const Tolerance = 0.10

// PhaseSpec is the base duration and cost weight of a pipeline phase.
type PhaseSpec struct {
	BaseWeeks      int
	CostMultiplier float64
}

var phaseSpecs = map[film.Phase]PhaseSpec{
	film.PhaseDevelopment:          {BaseWeeks: 4, CostMultiplier: 0.5},
	film.PhasePreProduction:        {BaseWeeks: 4, CostMultiplier: 0.8},
	film.PhasePrincipalPhotography: {BaseWeeks: 8, CostMultiplier: 1.6},
	film.PhasePostProduction:       {BaseWeeks: 6, CostMultiplier: 1.0},
	film.PhaseDistributionPrep:     {BaseWeeks: 2, CostMultiplier: 0.6},
}

// SpecFor returns the phase's spec. Completed has a zero spec.
func SpecFor(p film.Phase) PhaseSpec {
	return phaseSpecs[p]
}

// TotalBaseWeeks is the nominal length of the whole pipeline.
func TotalBaseWeeks() int {
	total := 0
	for _, s := range phaseSpecs {
		total += s.BaseWeeks
	}
	return total
}

// BurnRate is the assumed weekly cost of a production.
func BurnRate(originalBudget int64) float64 {
	return float64(originalBudget) / AssumedTotalWeeks
}

// WeeklyCost is the phase- and efficiency-adjusted cost for one week.
func WeeklyCost(p *film.Production, phase film.Phase, facilityCostMult float64) int64 {
	if facilityCostMult <= 0 {
		facilityCostMult = 1
	}
	eff := p.Efficiency
	if eff <= 0 {
		eff = 1
	}
	cost := BurnRate(p.OriginalBudget) * SpecFor(phase).CostMultiplier * facilityCostMult / eff
	return int64(math.Floor(cost))
}

// OverrunDebit is the part of this week's accrual that exceeds the cash
// already committed to the film. The budget was reserved at greenlight, so
// only spend beyond it reaches the ledger.
func OverrunDebit(spendBefore, spendAfter, committed int64) int64 {
	floor := spendBefore
	if committed > floor {
		floor = committed
	}
	if spendAfter <= floor {
		return 0
	}
	return spendAfter - floor
}

// OnBudget reports whether spend is within tolerance of the original budget.
func OnBudget(p *film.Production) bool {
	return float64(p.CumulativeSpend) <= float64(p.OriginalBudget)*(1+Tolerance)
}

// OnSchedule reports whether accumulated delay is within tolerance.
func OnSchedule(p *film.Production) bool {
	return float64(p.TotalDelayWeeks) <= float64(TotalBaseWeeks())*Tolerance
}

// Crisis odds.
const (
	CrisisBaseChance        = 0.04
	CrisisPhotographyFactor = 2.5
	CrisisBehindFactor      = 1.5
	CrisisOverBudgetFactor  = 1.3
	CrisisMaxChance         = 0.6
)

// CrisisProbability is the weekly chance of a crisis for a film in phase.
func CrisisProbability(p *film.Production, phase film.Phase) float64 {
	if phase == film.PhaseCompleted {
		return 0
	}
	chance := CrisisBaseChance
	if phase == film.PhasePrincipalPhotography {
		chance *= CrisisPhotographyFactor
	}
	if !p.OnSchedule {
		chance *= CrisisBehindFactor
	}
	if !p.OnBudget {
		chance *= CrisisOverBudgetFactor
	}
	chance *= 1.5 - float64(p.DirectorSkill())/100
	return math.Max(0, math.Min(CrisisMaxChance, chance))
}

// PhaseComplete reports whether a phase has run its base length plus delay.
func PhaseComplete(phase film.Phase, weeksInPhase, phaseDelay int) bool {
	return weeksInPhase >= SpecFor(phase).BaseWeeks+phaseDelay
}

// PhotographyDrift is the weekly quality change while shooting. noise is in [-1,1].
func PhotographyDrift(directorSkill int, facilityBonus, noise float64) float64 {
	return float64(directorSkill-film.BaselineSkill)/25 + noise + facilityBonus*0.1
}

// PostProductionDrift is the weekly quality change in the edit. noise is in [-0.5,1].
func PostProductionDrift(facilityBonus, noise float64) float64 {
	return noise + facilityBonus*0.1
}

// Final quality weights.
const (
	FinalScriptWeight   = 0.5
	FinalCurrentWeight  = 0.5
	FinalDirectorWeight = 0.3
	FinalCastWeight     = 0.2
	FinalCrisisPenalty  = 3.0
	FinalHealthPenalty  = 5.0
	FinalMin            = 10
	FinalMax            = 100
)

// FinalQuality combines script, craft and health into the released quality.
func FinalQuality(p *film.Production) int {
	q := float64(p.Script)*FinalScriptWeight +
		p.Quality*FinalCurrentWeight +
		float64(p.DirectorSkill()-film.BaselineSkill)*FinalDirectorWeight +
		(p.AverageCastSkill()-film.BaselineSkill)*FinalCastWeight -
		float64(len(p.CrisisLog))*FinalCrisisPenalty +
		p.FacilityQualityBonus
	if !p.OnBudget {
		q -= FinalHealthPenalty
	}
	if !p.OnSchedule {
		q -= FinalHealthPenalty
	}
	q = math.Round(q)
	return int(math.Max(FinalMin, math.Min(FinalMax, q)))
}
