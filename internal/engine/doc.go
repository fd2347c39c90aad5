// Package engine contains the weekly clock and the studio simulation logic.
//
// ARCHITECTURAL RULE: subsystems never reach into each other's state. The
// SimulationClock hands every subsystem the same explicit SimulationState in
// a fixed order (production, box office, ledger) and every effect is
// recorded to the EventLog.
package engine
