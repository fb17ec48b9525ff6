package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/lixenwraith/chronon/config"
	"github.com/lixenwraith/chronon/engine"
	"github.com/lixenwraith/chronon/introspect"
	"github.com/lixenwraith/chronon/scenario"
)

func main() {
	var (
		configPath  = flag.String("config", "", "config file path (default: search)")
		scenarioArg = flag.String("scenario", "telephone", "scenario: telephone, fanout, pingpong")
		maxSecs     = flag.String("max-secs", "", "simulated-time bound (duration notation)")
		maxWall     = flag.String("max-wall", "", "wall-clock bound (duration notation)")
		maxEvents   = flag.Uint64("max-events", 0, "dispatched-event budget")
		seed        = flag.Uint64("seed", 0, "master RNG seed")
		workers     = flag.Int("workers", 0, "passive worker pool size (0 = GOMAXPROCS)")
		logLevel    = flag.String("log-level", "", "trace, debug, info, warn, error")
		logGlob     = flag.String("log-glob", "", "restrict logs to matching component paths")
		debugListen = flag.String("debug-listen", "", "introspection server address (empty = off)")
	)
	flag.Parse()

	run := &config.Run{}
	if path, err := config.FindConfig(*configPath); err != nil {
		fatal(err)
	} else if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			fatal(err)
		}
		run = loaded
	}

	// CLI flags override the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "max-secs":
			run.MaxSecs = *maxSecs
		case "max-wall":
			run.MaxWall = *maxWall
		case "max-events":
			run.MaxEvents = *maxEvents
		case "seed":
			run.Seed = *seed
		case "workers":
			run.Workers = *workers
		case "log-level":
			run.LogLevel = *logLevel
		case "log-glob":
			run.LogGlob = *logGlob
		case "debug-listen":
			run.Debug.Listen = *debugListen
		}
	})
	if err := run.Validate(); err != nil {
		fatal(err)
	}

	stop, err := run.StopCondition()
	if err != nil {
		fatal(err)
	}

	sim := engine.New(engine.Config{
		Seed:        run.Seed,
		Workers:     run.Workers,
		StrictStore: run.StrictStore,
		LogWriter:   config.LogWriter(),
		LogLevel:    run.Level(),
		LogGlob:     run.LogGlob,
	})

	switch *scenarioArg {
	case "telephone":
		err = scenario.BuildTelephone(sim, "hi")
	case "fanout":
		err = scenario.BuildFanout(sim, 10)
	case "pingpong":
		err = scenario.BuildPingPong(sim)
	default:
		err = fmt.Errorf("unknown scenario %q", *scenarioArg)
	}
	if err != nil {
		fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if run.Debug.Listen != "" {
		srv := introspect.NewServer(sim.Inspector())
		go func() {
			if err := srv.ListenAndServe(ctx, run.Debug.Listen); err != nil {
				fmt.Fprintln(os.Stderr, "debug server:", err)
			}
		}()
	}

	outcome := sim.Run(ctx, stop)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(outcome)

	if outcome.Err != nil {
		fmt.Fprintln(os.Stderr, "run failed:", outcome.Err)
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
