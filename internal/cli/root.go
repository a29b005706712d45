package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mcp-pilot/internal/agent"
	"mcp-pilot/internal/config"
	"mcp-pilot/internal/display"
	"mcp-pilot/internal/listener"
	"mcp-pilot/internal/logger"
	"mcp-pilot/internal/mcp"
	"mcp-pilot/internal/metrics"
	"mcp-pilot/internal/orchestrator"
	"mcp-pilot/internal/safety"
	"mcp-pilot/internal/telemetry"
)

var (
	flagEndpoint  string
	flagMission   string
	flagAgent     string
	flagObjective string
)

var rootCmd = &cobra.Command{
	Use:   "pilot",
	Short: "Autonomous mission pilot for a single remote vehicle",
	Long: `pilot connects to a vehicle's tool endpoint, hands mission decisions to a
decision agent and flies the mission under a safety monitor that can override
any decision. Type 'status' during the flight, or 'abort' to bring the
vehicle home.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&flagEndpoint, "endpoint", "", "tool endpoint URL (overrides PILOT_ENDPOINT)")
	rootCmd.Flags().StringVar(&flagMission, "mission", "", "mission plan JSON file (overrides PILOT_MISSION_FILE)")
	rootCmd.Flags().StringVar(&flagAgent, "agent", "", "decision agent: scripted, ollama or gemini (overrides PILOT_AGENT)")
	rootCmd.Flags().StringVar(&flagObjective, "objective", "", "mission objective for the agent (overrides PILOT_OBJECTIVE)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if flagEndpoint != "" {
		cfg.Endpoint = flagEndpoint
	}
	if flagMission != "" {
		cfg.MissionFile = flagMission
	}
	if flagAgent != "" {
		cfg.AgentBackend = flagAgent
	}
	if flagObjective != "" {
		cfg.Objective = flagObjective
	}

	plan := &config.MissionPlan{Objective: cfg.Objective}
	if cfg.MissionFile != "" {
		if plan, err = config.LoadMissionPlan(cfg.MissionFile); err != nil {
			return err
		}
		if plan.Objective == "" {
			plan.Objective = cfg.Objective
		}
		cfg.Objective = plan.Objective
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	pilotAgent, err := agent.New(agent.Config{
		Backend:    cfg.AgentBackend,
		Model:      cfg.AgentModel,
		OllamaHost: cfg.OllamaHost,
		Waypoints:  plan.Waypoints,
		CruiseAltM: plan.CruiseAltM,
	})
	if err != nil {
		return err
	}

	if err := listener.Init(); err != nil {
		return fmt.Errorf("could not init terminal input: %w", err)
	}
	defer listener.Close()

	client := mcp.NewClient(mcp.Config{
		Endpoint:           cfg.Endpoint,
		PushURL:            cfg.EndpointWS,
		AuthSecret:         cfg.AuthSecret,
		ClientID:           "pilot",
		CallTimeout:        cfg.CommandTimeout,
		StatusPollInterval: cfg.StatusPollInterval,
		RetryInitial:       cfg.RetryInitial,
		RetryBackoff:       cfg.RetryBackoff,
		RetryMaxAttempts:   cfg.RetryMaxAttempts,
	})

	openCtx, cancelOpen := context.WithTimeout(context.Background(), cfg.CommandTimeout)
	err = client.Open(openCtx)
	cancelOpen()
	if err != nil {
		return fmt.Errorf("could not open session with %s: %w", cfg.Endpoint, err)
	}
	defer func() {
		closeCtx, cancelClose := context.WithTimeout(context.Background(), cfg.CommandTimeout)
		defer cancelClose()
		if err := client.Close(closeCtx); err != nil {
			logger.Log.Printf("[cli] session close failed: %v", err)
		}
	}()

	cache := telemetry.NewCache(client)
	monitor := safety.NewMonitor(cfg.Limits())
	orch := orchestrator.New(orchestrator.Config{
		Objective:           cfg.Objective,
		PollInterval:        cfg.PollInterval,
		PollTimeout:         cfg.PollTimeout,
		DecisionTimeout:     cfg.DecisionTimeout,
		CommandTimeout:      cfg.CommandTimeout,
		AbortTimeout:        cfg.AbortTimeout,
		MaxDecisionFailures: cfg.MaxDecisionFailures,
		CommandRetryCeiling: cfg.CommandRetryCeiling,
	}, client, cache, monitor, pilotAgent)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		listener.AsyncPrintln("Interrupt received, aborting mission...")
		cancel()
	}()

	listener.AsyncPrintln(display.FormatMissionPlan(plan))
	listener.AsyncPrintln(fmt.Sprintf("Mission %s starting against %s (agent: %s)",
		orch.MissionID(), cfg.Endpoint, cfg.AgentBackend))

	var report *metrics.MissionMetrics
	var g errgroup.Group
	g.Go(func() error {
		// Closing the listener unblocks the console reader below.
		defer listener.Close()
		var runErr error
		report, runErr = orch.Run(runCtx)
		return runErr
	})
	g.Go(func() error {
		console(runCtx, cancel, orch, cache)
		return nil
	})
	runErr := g.Wait()

	out := display.FormatMissionMetrics(report)
	fmt.Println(out)
	logger.Log.Printf("[cli] mission report:\n%s", out)
	return runErr
}

// console serves operator commands until the mission ends or the operator
// aborts. GetInput returning an empty line with the context still live means
// EOF, which is treated as an abort request.
func console(ctx context.Context, cancel context.CancelFunc, orch *orchestrator.Orchestrator, cache *telemetry.Cache) {
	for {
		input := strings.ToLower(listener.GetInput())
		if ctx.Err() != nil {
			return
		}
		switch input {
		case "status":
			line := "state=" + orch.State().String()
			if v, have := cache.Latest(); have {
				line += "  " + display.FormatTelemetry(v, cache.Staleness())
			} else {
				line += "  (no telemetry yet)"
			}
			listener.AsyncPrintln(line)
		case "help":
			listener.AsyncPrintln("Commands: status, abort, help")
		case "", "abort", "exit", "quit":
			listener.AsyncPrintln("Aborting mission...")
			cancel()
			return
		default:
			listener.AsyncPrintln(fmt.Sprintf("Unknown command %q (try 'help')", input))
		}
	}
}
