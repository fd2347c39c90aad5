package engine

import (
	"github.com/google/uuid"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/film"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/outcome"
)

// crisisOption is a choice template. Cost is a fraction of the original budget.
type crisisOption struct {
	Label        string
	CostFraction float64
	Delta        outcome.Delta
}

// crisisTemplate describes a crisis the pipeline can roll.
type crisisTemplate struct {
	Kind     string
	Headline string
	Phases   []film.Phase // empty = any in-production phase
	Weight   float64
	Options  []crisisOption
}

var crisisCatalog = []crisisTemplate{
	{
		Kind: "LEAD_INJURED", Headline: "Lead Actor Injured",
		Phases: []film.Phase{film.PhasePreProduction, film.PhasePrincipalPhotography},
		Weight: 1.0,
		Options: []crisisOption{
			{"Recast the role", 0.08, outcome.Delta{Quality: -3, DelayWeeks: 1}},
			{"Shoot around the injury", 0.03, outcome.Delta{DelayWeeks: 3, Efficiency: -0.1}},
			{"Hire a body double", 0.05, outcome.Delta{Quality: -6, RiskFlag: "body_double"}},
		},
	},
	{
		Kind: "WEATHER_SHUTDOWN", Headline: "Weather Shutdown",
		Phases: []film.Phase{film.PhasePrincipalPhotography},
		Weight: 1.2,
		Options: []crisisOption{
			{"Wait it out", 0.02, outcome.Delta{DelayWeeks: 2}},
			{"Move to a soundstage", 0.07, outcome.Delta{Quality: -2}},
			{"Shoot in the rain", 0, outcome.Delta{Quality: -5, RiskFlag: "weather_damage"}},
		},
	},
	{
		Kind: "SET_FIRE", Headline: "Set Fire",
		Phases: []film.Phase{film.PhasePreProduction, film.PhasePrincipalPhotography},
		Weight: 0.6,
		Options: []crisisOption{
			{"Rebuild the set", 0.12, outcome.Delta{DelayWeeks: 2}},
			{"Rewrite around it", 0.03, outcome.Delta{Quality: -4, DelayWeeks: 1}},
			{"File an insurance claim", 0.01, outcome.Delta{DelayWeeks: 4, RiskFlag: "insurance_claim"}},
		},
	},
	{
		Kind: "SCRIPT_REWRITE", Headline: "Script Rewrite Demanded",
		Phases: []film.Phase{film.PhaseDevelopment, film.PhasePreProduction},
		Weight: 1.0,
		Options: []crisisOption{
			{"Approve the rewrite", 0.04, outcome.Delta{Quality: 3, DelayWeeks: 2}},
			{"Refuse", 0, outcome.Delta{Quality: -2, Efficiency: -0.05, RiskFlag: "writer_dispute"}},
			{"Split the difference", 0.02, outcome.Delta{Quality: 1, DelayWeeks: 1}},
		},
	},
	{
		Kind: "DIRECTOR_WALKOUT", Headline: "Director Walkout",
		Phases: []film.Phase{film.PhasePrincipalPhotography, film.PhasePostProduction},
		Weight: 0.5,
		Options: []crisisOption{
			{"Meet the demands", 0.10, outcome.Delta{Efficiency: 0.05}},
			{"Replace the director", 0.06, outcome.Delta{Quality: -5, DelayWeeks: 2}},
			{"Let the assistant finish", 0, outcome.Delta{Quality: -8, RiskFlag: "uncredited_director"}},
		},
	},
	{
		Kind: "EQUIPMENT_FAILURE", Headline: "Equipment Failure",
		Phases: []film.Phase{film.PhasePrincipalPhotography, film.PhasePostProduction},
		Weight: 1.0,
		Options: []crisisOption{
			{"Rent replacements", 0.04, outcome.Delta{}},
			{"Repair on site", 0.01, outcome.Delta{DelayWeeks: 1}},
			{"Make do", 0, outcome.Delta{Quality: -3, Efficiency: -0.1}},
		},
	},
	{
		Kind: "TEST_SCREENING_DISASTER", Headline: "Test Screening Disaster",
		Phases: []film.Phase{film.PhasePostProduction, film.PhaseDistributionPrep},
		Weight: 0.8,
		Options: []crisisOption{
			{"Reshoot the ending", 0.09, outcome.Delta{Quality: 6, DelayWeeks: 3}},
			{"Re-edit", 0.03, outcome.Delta{Quality: 2, DelayWeeks: 1}},
			{"Release as is", 0, outcome.Delta{Quality: -4, RiskFlag: "bad_buzz"}},
		},
	},
}

func (t crisisTemplate) allows(phase film.Phase) bool {
	if len(t.Phases) == 0 {
		return phase != film.PhaseCompleted
	}
	for _, p := range t.Phases {
		if p == phase {
			return true
		}
	}
	return false
}

// eligibleCrises returns the weighted templates that can strike in phase.
func eligibleCrises(phase film.Phase) []outcome.Weighted[crisisTemplate] {
	var out []outcome.Weighted[crisisTemplate]
	for _, t := range crisisCatalog {
		if t.allows(phase) {
			out = append(out, outcome.Weighted[crisisTemplate]{Value: t, Weight: t.Weight})
		}
	}
	return out
}

// instantiate prices every option against the production's original budget.
func (t crisisTemplate) instantiate(p *film.Production, week int) *film.Crisis {
	choices := make([]outcome.Choice, 0, len(t.Options))
	for _, o := range t.Options {
		choices = append(choices, outcome.Choice{
			Label: o.Label,
			Cost:  int64(float64(p.OriginalBudget) * o.CostFraction),
			Delta: o.Delta,
		})
	}
	return &film.Crisis{
		ID:       uuid.NewString(),
		Kind:     t.Kind,
		Headline: t.Headline,
		Choices:  choices,
		Week:     week,
	}
}
