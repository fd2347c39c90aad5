// Package main - studio-sim
// Runs a studio headless under the autopilot and prints how it fared.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/autopilot"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/engine"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/events"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/infra/storage"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/network"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/config"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/metrics"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/random"
)

const studioID = "SIM_1"

// Result is what -json prints.
type Result struct {
	Seed     int64                  `json:"seed"`
	Summary  autopilot.Summary      `json:"summary"`
	Snapshot engine.Snapshot        `json:"snapshot"`
	Audit    *storage.RebuiltLedger `json:"audit,omitempty"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("config: %v", err)
	}

	weeks := flag.Int("weeks", 104, "Weeks to simulate")
	seed := flag.Int64("seed", cfg.Seed, "RNG seed, 0 = random")
	cash := flag.Int64("cash", cfg.StartingCash, "Starting cash")
	dbPath := flag.String("db", "", "SQLite file to record events in; empty keeps them in memory")
	asJSON := flag.Bool("json", false, "Print the result as JSON")
	verbose := flag.Bool("v", false, "Log every decision")
	flag.Parse()

	level := "error"
	if *verbose {
		level = "info"
	}
	appLogger := logger.New(logger.Options{Level: level, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		persister events.EventPersister
		recon     *storage.Reconstructor
	)
	if *dbPath != "" {
		db, err := storage.InitSQLite(*dbPath)
		if err != nil {
			config.Exitf("sqlite: %v", err)
		}
		defer db.Close()
		repo := storage.NewSQLiteEventRepository(db)
		persister = storage.NewEventPersister(repo, studioID, metrics.NewCollector())
		recon = storage.NewReconstructor(repo)
	}

	rng, used, err := random.Source(*seed)
	if err != nil {
		config.Exitf("seed: %v", err)
	}

	studio := engine.NewEngine(engine.Options{
		StartingCash:       *cash,
		StartingReputation: cfg.StartingRep,
		TransactionLogCap:  cfg.TransactionLogCap,
		Roller:             rng,
		Calendar:           engine.FixedCalendar{StartYear: cfg.StartYear},
		Facilities:         engine.BasicLot{MaxProductions: cfg.MaxProductions},
	}, events.NewEventLog(persister), appLogger)

	sink := autopilot.LocalSink{Dispatcher: network.NewDispatcher(studio, appLogger, nil)}
	pilot := autopilot.NewPilot(sink, autopilot.DefaultPolicy(), rng, 0, appLogger)

	summary, runErr := pilot.RunWeeks(ctx, *weeks)
	result := Result{Seed: used, Summary: summary, Snapshot: studio.Snapshot()}

	if recon != nil {
		audit, err := recon.RebuildLedger(ctx, studioID, *cash)
		if err != nil {
			appLogger.Error("Ledger audit failed: " + err.Error())
		} else {
			result.Audit = audit
		}
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(result)
	} else {
		printResult(result)
		if recon != nil {
			printRecap(ctx, recon, result.Snapshot.Week-4)
		}
	}

	if runErr != nil {
		config.Exitf("simulation stopped early: %v", runErr)
	}
	if result.Summary.Halted {
		os.Exit(2)
	}
}

func printResult(r Result) {
	s, snap := r.Summary, r.Snapshot
	fmt.Println("========================================")
	fmt.Println("         BACKLOT SIMULATION RESULT")
	fmt.Println("========================================")
	fmt.Printf("Seed:             %d\n", r.Seed)
	fmt.Printf("Weeks played:     %d (year %d)\n", s.WeeksAdvanced, snap.Year)
	fmt.Printf("Cash:             $%s\n", humanize.Comma(snap.Cash))
	fmt.Printf("Debt:             $%s\n", humanize.Comma(snap.TotalDebt))
	fmt.Printf("Rating:           %s (score %d)\n", snap.Rating, snap.Score)
	fmt.Printf("Reputation:       %d\n", snap.Reputation)
	fmt.Printf("Films on the lot: %d\n", len(snap.Productions))
	fmt.Printf("Investments:      %d\n", len(snap.Investments))
	fmt.Printf("Crisis weeks:     %d\n", s.Suspensions)
	fmt.Printf("Rejected:         %d\n", s.Rejected)
	if snap.Halted != "" {
		fmt.Printf("HALTED:           %s\n", snap.Halted)
	}

	actions := make([]string, 0, len(s.Decisions))
	for a := range s.Decisions {
		actions = append(actions, string(a))
	}
	sort.Strings(actions)
	fmt.Println("----------------------------------------")
	for _, a := range actions {
		fmt.Printf("  %-16s %s\n", a, humanize.Comma(int64(s.Decisions[autopilot.Action(a)])))
	}

	if r.Audit != nil {
		fmt.Println("----------------------------------------")
		fmt.Printf("Audit: %d transactions rebuild to $%s", r.Audit.Transactions, humanize.Comma(r.Audit.Cash))
		if r.Audit.Cash == snap.Cash {
			fmt.Println(" (matches)")
		} else {
			fmt.Printf(" (live books differ by $%s)\n", humanize.Comma(snap.Cash-r.Audit.Cash))
		}
	}
	fmt.Println("========================================")
}

func printRecap(ctx context.Context, recon *storage.Reconstructor, since int) {
	recap, err := recon.GenerateRecap(ctx, studioID, since)
	if err != nil || len(recap) == 0 {
		return
	}
	fmt.Println("Recent weeks:")
	for _, e := range recap {
		fmt.Printf("  [week %d] %-8s %s\n", e.Week, e.Impact, e.Summary)
	}
}
