package film

import "github.com/MRamiBalles/BacklotTycoon/server/internal/domain/outcome"

// Phase is a step of the production pipeline. Transitions are linear.
type Phase int

const (
	PhaseDevelopment Phase = iota
	PhasePreProduction
	PhasePrincipalPhotography
	PhasePostProduction
	PhaseDistributionPrep
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseDevelopment:
		return "Development"
	case PhasePreProduction:
		return "PreProduction"
	case PhasePrincipalPhotography:
		return "PrincipalPhotography"
	case PhasePostProduction:
		return "PostProduction"
	case PhaseDistributionPrep:
		return "DistributionPrep"
	case PhaseCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// Next returns the following phase. ok is false from the terminal phase.
func (p Phase) Next() (Phase, bool) {
	if p >= PhaseCompleted {
		return p, false
	}
	return p + 1, true
}

// StageKind names a lifecycle stage for snapshots and storage.
type StageKind string

const (
	StageInProduction    StageKind = "IN_PRODUCTION"
	StageReadyForRelease StageKind = "READY_FOR_RELEASE"
	StageInTheaters      StageKind = "IN_THEATERS"
	StageArchived        StageKind = "ARCHIVED"
)

// Stage is the lifecycle variant of a production. Each variant carries only
// the fields valid for it.
type Stage interface {
	Kind() StageKind
	clone() Stage
}

// Crisis is a rolled production event waiting for exactly one choice.
type Crisis struct {
	ID       string           `json:"id"`
	Kind     string           `json:"kind"`
	Headline string           `json:"headline"`
	Choices  []outcome.Choice `json:"choices"`
	Week     int              `json:"week"`
	Resolved bool             `json:"resolved"`
}

// InProduction is a film moving through the pipeline phases.
type InProduction struct {
	Phase          Phase   `json:"phase"`
	WeeksInPhase   int     `json:"weeks_in_phase"`
	PhaseDelay     int     `json:"phase_delay"`
	CastingDone    bool    `json:"casting_done"`
	PendingCrisis  *Crisis `json:"pending_crisis,omitempty"`
	LastTickedWeek int     `json:"last_ticked_week"`
}

func (s *InProduction) Kind() StageKind { return StageInProduction }

func (s *InProduction) clone() Stage {
	c := *s
	if s.PendingCrisis != nil {
		pc := *s.PendingCrisis
		pc.Choices = append([]outcome.Choice(nil), s.PendingCrisis.Choices...)
		c.PendingCrisis = &pc
	}
	return &c
}

// ReadyForRelease is a finished film awaiting a distribution decision.
type ReadyForRelease struct {
	CompletedWeek int `json:"completed_week"`
	FinalQuality  int `json:"final_quality"`
}

func (s *ReadyForRelease) Kind() StageKind { return StageReadyForRelease }

func (s *ReadyForRelease) clone() Stage {
	c := *s
	return &c
}

// InTheaters is a film with an active theatrical run.
type InTheaters struct {
	FinalQuality int            `json:"final_quality"`
	Run          *TheatricalRun `json:"run"`
}

func (s *InTheaters) Kind() StageKind { return StageInTheaters }

func (s *InTheaters) clone() Stage {
	return &InTheaters{FinalQuality: s.FinalQuality, Run: s.Run.Clone()}
}

// Archived is a film whose run has ended. Read-only.
type Archived struct {
	FinalQuality int            `json:"final_quality"`
	Run          *TheatricalRun `json:"run"`
	NetProfit    int64          `json:"net_profit"`
	ArchivedWeek int            `json:"archived_week"`
}

func (s *Archived) Kind() StageKind { return StageArchived }

func (s *Archived) clone() Stage {
	c := *s
	c.Run = s.Run.Clone()
	return &c
}
