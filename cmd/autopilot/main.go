// Package main - autopilot
// Plays a running studio server over WebSocket, optionally alongside a crowd
// of passive watchers, and reports command latency.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/autopilot"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/network"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
)

// Config for the autopilot run
type Config struct {
	ServerURL    string
	Interval     time.Duration
	TestDuration time.Duration
	Watchers     int
	Advance      bool
}

// Stats tracks command round trips and watcher traffic
type Stats struct {
	CommandsSent  int64
	CommandErrors int64
	FramesWatched int64
	WatcherErrors int64
	Latencies     []time.Duration
	mu            sync.Mutex
}

// timedSink measures every round trip through the wrapped sink.
type timedSink struct {
	next  autopilot.Sink
	stats *Stats
}

func (s timedSink) Send(ctx context.Context, cmd network.Command) (network.Envelope, error) {
	start := time.Now()
	env, err := s.next.Send(ctx, cmd)
	latency := time.Since(start)

	atomic.AddInt64(&s.stats.CommandsSent, 1)
	if err != nil {
		atomic.AddInt64(&s.stats.CommandErrors, 1)
		return env, err
	}
	s.stats.mu.Lock()
	s.stats.Latencies = append(s.stats.Latencies, latency)
	s.stats.mu.Unlock()
	return env, nil
}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	interval := flag.Duration("interval", time.Second, "Time between weeks")
	duration := flag.Duration("duration", 60*time.Second, "Run duration")
	watchers := flag.Int("watchers", 0, "Passive clients that only read broadcasts")
	advance := flag.Bool("advance", true, "Advance the clock; false leaves it to the server ticker")
	verbose := flag.Bool("v", false, "Log every decision")
	flag.Parse()

	config := Config{
		ServerURL:    *serverURL,
		Interval:     *interval,
		TestDuration: *duration,
		Watchers:     *watchers,
		Advance:      *advance,
	}

	fmt.Println("=========================================")
	fmt.Println("BACKLOT AUTOPILOT")
	fmt.Println("=========================================")
	fmt.Printf("Server:   %s\n", config.ServerURL)
	fmt.Printf("Interval: %v\n", config.Interval)
	fmt.Printf("Duration: %v\n", config.TestDuration)
	fmt.Printf("Watchers: %d\n", config.Watchers)
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(context.Background(), config.TestDuration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupt received, stopping...")
		cancel()
	}()

	level := "warn"
	if *verbose {
		level = "info"
	}
	appLogger := logger.New(logger.Options{Level: level})

	stats := &Stats{Latencies: make([]time.Duration, 0, 1024)}
	var wg sync.WaitGroup
	for i := 0; i < config.Watchers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runWatcher(ctx, id, config, stats)
		}(i)
		// Stagger watcher starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}

	sink, err := autopilot.DialSink(ctx, config.ServerURL, 5*time.Second)
	if err != nil {
		log.Fatalf("autopilot: %v", err)
	}
	defer sink.Close()

	policy := autopilot.DefaultPolicy()
	policy.Advance = config.Advance
	pick := rand.New(rand.NewSource(time.Now().UnixNano()))
	pilot := autopilot.NewPilot(timedSink{next: sink, stats: stats}, policy, pick, config.Interval, appLogger)

	pilot.Start(ctx)
	wg.Wait()

	printResults(pilot.Summary(), sink, stats, config)
}

func runWatcher(ctx context.Context, id int, config Config, stats *Stats) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, nil)
	if err != nil {
		log.Printf("Watcher %d: connection failed: %v", id, err)
		atomic.AddInt64(&stats.WatcherErrors, 1)
		return
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if ctx.Err() == nil {
				atomic.AddInt64(&stats.WatcherErrors, 1)
			}
			return
		}
		atomic.AddInt64(&stats.FramesWatched, 1)
	}
}

func printResults(summary autopilot.Summary, sink *autopilot.WSSink, stats *Stats, config Config) {
	fmt.Println("\n=========================================")
	fmt.Println("AUTOPILOT RESULTS")
	fmt.Println("=========================================")

	sent := atomic.LoadInt64(&stats.CommandsSent)
	errs := atomic.LoadInt64(&stats.CommandErrors)
	fmt.Printf("Weeks advanced:    %d\n", summary.WeeksAdvanced)
	fmt.Printf("Crisis weeks:      %d\n", summary.Suspensions)
	fmt.Printf("Rejected:          %d\n", summary.Rejected)
	fmt.Printf("Last week:         %d\n", summary.LastWeek)
	fmt.Printf("Cash:              $%s\n", humanize.Comma(summary.LastCash))
	fmt.Printf("Commands sent:     %d\n", sent)
	fmt.Printf("Command errors:    %d\n", errs)
	fmt.Printf("WEEK frames:       %d\n", atomic.LoadInt64(&sink.WeekFrames))
	fmt.Printf("EVENT frames:      %d\n", atomic.LoadInt64(&sink.EventFrames))
	fmt.Printf("Watcher frames:    %s\n", humanize.Comma(atomic.LoadInt64(&stats.FramesWatched)))
	fmt.Printf("Watcher errors:    %d\n", atomic.LoadInt64(&stats.WatcherErrors))

	stats.mu.Lock()
	latencies := append([]time.Duration(nil), stats.Latencies...)
	stats.mu.Unlock()

	var avg, minLat, maxLat time.Duration
	if len(latencies) > 0 {
		var total time.Duration
		minLat, maxLat = latencies[0], latencies[0]
		for _, l := range latencies {
			total += l
			if l < minLat {
				minLat = l
			}
			if l > maxLat {
				maxLat = l
			}
		}
		avg = total / time.Duration(len(latencies))

		fmt.Printf("\nRound trip:\n")
		fmt.Printf("  Min: %v\n", minLat)
		fmt.Printf("  Avg: %v\n", avg)
		fmt.Printf("  Max: %v\n", maxLat)
	}

	fmt.Println("\n-----------------------------------------")
	switch {
	case summary.Halted:
		fmt.Println("STUDIO HALTED: the books hit an invariant")
	case errs == 0:
		fmt.Println("OK: every command got an answer")
	default:
		fmt.Println("WARNING: some commands went unanswered")
	}
	fmt.Println("=========================================")

	results := map[string]interface{}{
		"summary":        summary,
		"commands_sent":  sent,
		"command_errors": errs,
		"frames_watched": atomic.LoadInt64(&stats.FramesWatched),
		"latency_ms": map[string]float64{
			"min": float64(minLat) / 1e6,
			"avg": float64(avg) / 1e6,
			"max": float64(maxLat) / 1e6,
		},
		"config": map[string]interface{}{
			"watchers": config.Watchers,
			"interval": config.Interval.String(),
			"duration": config.TestDuration.String(),
			"advance":  config.Advance,
		},
	}

	jsonData, _ := json.MarshalIndent(results, "", "  ")
	if err := os.WriteFile("autopilot_results.json", jsonData, 0644); err != nil {
		log.Printf("could not save results: %v", err)
		return
	}
	fmt.Println("\nResults saved to autopilot_results.json")
}
