package autopilot

import (
	"fmt"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/film"
)

// Picker is the slice of *rand.Rand the writer needs.
type Picker interface {
	Intn(n int) int
}

var (
	titleOpeners = []string{"Midnight", "Silver", "Broken", "Last", "Golden", "Crimson", "Lonely", "Desert"}
	titleNouns   = []string{"Harbor", "Express", "Promise", "Frontier", "Serenade", "Alibi", "Horizon", "Ballroom"}
)

// ScriptWriter drafts scripts for the pilot to greenlight.
type ScriptWriter struct {
	pick  Picker
	count int
}

// NewScriptWriter creates a writer drawing from pick.
func NewScriptWriter(pick Picker) *ScriptWriter {
	return &ScriptWriter{pick: pick}
}

// Draft returns a script at budget. Titles stay unique within a run.
func (w *ScriptWriter) Draft(budget int64) film.Script {
	w.count++
	title := titleOpeners[w.pick.Intn(len(titleOpeners))] + " " + titleNouns[w.pick.Intn(len(titleNouns))]
	if w.count > 1 {
		title = fmt.Sprintf("%s %d", title, w.count)
	}
	return film.Script{
		Title:   title,
		Genre:   film.Genres[w.pick.Intn(len(film.Genres))],
		Budget:  budget,
		Quality: 45 + w.pick.Intn(36),
		Director: &film.Talent{
			Name:  "Staff Director",
			Skill: 40 + w.pick.Intn(41),
		},
	}
}
