// Package outcome defines the effect bundles shared by every resolvable event:
// production crises, favor demands and content-regulation changes.
package outcome

// Delta is the bundle of effects a resolved event applies.
type Delta struct {
	Cash        int64   `json:"cash,omitempty"`
	Quality     float64 `json:"quality,omitempty"`
	DelayWeeks  int     `json:"delay_weeks,omitempty"`
	Efficiency  float64 `json:"efficiency,omitempty"`
	Reputation  int     `json:"reputation,omitempty"`
	Obligations int     `json:"obligations,omitempty"`
	RiskFlag    string  `json:"risk_flag,omitempty"`
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return d == Delta{}
}

// Add combines two deltas. The later risk flag wins when both are set.
func (d Delta) Add(o Delta) Delta {
	out := Delta{
		Cash:        d.Cash + o.Cash,
		Quality:     d.Quality + o.Quality,
		DelayWeeks:  d.DelayWeeks + o.DelayWeeks,
		Efficiency:  d.Efficiency + o.Efficiency,
		Reputation:  d.Reputation + o.Reputation,
		Obligations: d.Obligations + o.Obligations,
		RiskFlag:    d.RiskFlag,
	}
	if o.RiskFlag != "" {
		out.RiskFlag = o.RiskFlag
	}
	return out
}

// Choice is one mutually exclusive answer to a pending event.
type Choice struct {
	Label string `json:"label"`
	Cost  int64  `json:"cost"` // paid upfront from cash
	Delta Delta  `json:"delta"`
}

// Weighted is an option in a weighted random draw.
type Weighted[T any] struct {
	Value  T
	Weight float64
}
