package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conclave-ai/conclave/internal/agent"
	"github.com/conclave-ai/conclave/internal/checkpoint"
	"github.com/conclave-ai/conclave/internal/config"
	"github.com/conclave-ai/conclave/internal/history"
	"github.com/conclave-ai/conclave/internal/pipeline"
	"github.com/conclave-ai/conclave/internal/stage"
	"github.com/conclave-ai/conclave/internal/synthesis"
	"github.com/conclave-ai/conclave/pkg/models"
)

var (
	runMode         string
	runPreset       string
	runAgents       []string
	runChairman     string
	runFallback     string
	runTier         string
	runTwoPass      bool
	runSummaries    bool
	runTimeout      time.Duration
	runInteractive  bool
	runNoCheckpoint bool
	runNoHistory    bool
)

var runCmd = &cobra.Command{
	Use:   "run [question]",
	Short: "Run the deliberation pipeline for one question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(strings.Join(args, " "))
	},
}

func init() {
	runCmd.Flags().StringVarP(&runMode, "mode", "m", "", "pipeline mode: compete or merge")
	runCmd.Flags().StringVarP(&runPreset, "preset", "p", "", "council preset name")
	runCmd.Flags().StringSliceVarP(&runAgents, "agents", "a", nil, "council providers (default: all configured)")
	runCmd.Flags().StringVar(&runChairman, "chairman", "", "chairman provider")
	runCmd.Flags().StringVar(&runFallback, "fallback", "", "fallback chairman provider")
	runCmd.Flags().StringVarP(&runTier, "tier", "t", "", "capability tier for the council")
	runCmd.Flags().BoolVar(&runTwoPass, "two-pass", false, "use two-pass chairman synthesis")
	runCmd.Flags().BoolVar(&runSummaries, "summaries", false, "give the chairman summaries instead of full responses")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "per-agent timeout (default from config)")
	runCmd.Flags().BoolVarP(&runInteractive, "interactive", "i", false, "show the live stage monitor")
	runCmd.Flags().BoolVar(&runNoCheckpoint, "no-checkpoint", false, "disable checkpoint save and resume")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "skip recording this run in history")
}

func runPipeline(question string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// One factory for the whole run: StepDown in the detail pass needs to
	// know which provider and tier built the chairman.
	factory := config.NewFactory(cfg)

	opts, err := buildOptions(cfg, factory)
	if err != nil {
		return err
	}

	var ckpt *checkpoint.Store
	if !runNoCheckpoint {
		ckpt = checkpoint.NewStore(cfg.CheckpointDir(), cfg.Checkpoint.Name)
	}

	var historyDB *history.DB
	if cfg.History.Enabled && !runNoHistory {
		path := cfg.History.Path
		if path == "" {
			path = history.GlobalDBPath()
		}
		historyDB, err = history.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: history disabled: %v\n", err)
		} else {
			defer historyDB.Close()
			if err := historyDB.Migrate(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: history disabled: %v\n", err)
				historyDB = nil
			}
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	executor := agent.NewExecutor()
	orch := pipeline.New(
		stage.NewRunner(executor),
		synthesis.NewSynthesizer(executor, factory.StepDown),
		ckpt,
		historyDB,
	)

	result, err := orch.Run(ctx, question, *opts)
	if err != nil {
		if err == stage.ErrInterrupted || ctx.Err() != nil {
			color.Yellow("run interrupted; progress is checkpointed")
			return nil
		}
		return err
	}
	if result == nil {
		color.Red("no agent produced a response; nothing to synthesize")
		return nil
	}

	fmt.Println()
	if synthesis.IsFailure(result.Stage3.Response) {
		color.Red("chairman failed:")
	} else {
		color.Green("final answer (by %s):", result.Stage3.Agent)
	}
	fmt.Println(result.Stage3.Response)
	return nil
}

// buildOptions resolves the run configuration: flags beat the preset,
// the preset beats config defaults.
func buildOptions(cfg *config.Config, factory *config.Factory) (*pipeline.Options, error) {
	defaults := cfg.Defaults

	var preset *config.Preset
	if runPreset != "" {
		presets, err := config.LoadPresets(config.GetPresetsPath())
		if err != nil {
			return nil, err
		}
		p, ok := presets[runPreset]
		if !ok {
			return nil, fmt.Errorf("unknown preset %q", runPreset)
		}
		preset = &p
	}

	mode := defaults.Mode
	if preset != nil && preset.Mode != "" {
		mode = preset.Mode
	}
	if runMode != "" {
		mode = runMode
	}

	tier := defaults.Tier
	if runTier != "" {
		tier = runTier
	}

	twoPass := defaults.TwoPass
	if preset != nil {
		twoPass = preset.TwoPass
	}
	if runTwoPass {
		twoPass = true
	}

	timeout := defaults.StageTimeout
	if runTimeout > 0 {
		timeout = runTimeout
	}

	councilAgents, err := buildCouncil(cfg, factory, preset, tier)
	if err != nil {
		return nil, err
	}

	chairmanProvider := defaults.Chairman
	chairmanTier := tier
	if preset != nil {
		chairmanProvider = preset.Chairman.Provider
		if preset.Chairman.Tier != "" {
			chairmanTier = preset.Chairman.Tier
		}
	}
	if runChairman != "" {
		chairmanProvider = runChairman
	}
	chairman, err := factory.AgentFor(chairmanProvider, chairmanTier)
	if err != nil {
		return nil, err
	}

	var fallback *models.AgentConfig
	fallbackProvider := defaults.Fallback
	fallbackTier := tier
	if preset != nil && preset.Fallback != nil {
		fallbackProvider = preset.Fallback.Provider
		if preset.Fallback.Tier != "" {
			fallbackTier = preset.Fallback.Tier
		}
	}
	if runFallback != "" {
		fallbackProvider = runFallback
	}
	if fallbackProvider != "" {
		fb, err := factory.AgentFor(fallbackProvider, fallbackTier)
		if err != nil {
			return nil, err
		}
		fallback = &fb
	}

	interactive := cfg.TUI.Interactive || runInteractive

	return &pipeline.Options{
		Mode:         models.PipelineMode(mode),
		Agents:       councilAgents,
		Chairman:     chairman,
		Fallback:     fallback,
		TwoPass:      twoPass,
		UseSummaries: defaults.UseSummaries || runSummaries,
		Timeout:      timeout,
		Stage: stage.Options{
			Interactive: interactive,
			Refresh:     cfg.TUI.RefreshRate,
		},
		Callbacks: printCallbacks(),
	}, nil
}

func buildCouncil(cfg *config.Config, factory *config.Factory, preset *config.Preset, tier string) ([]models.AgentConfig, error) {
	if preset != nil {
		var out []models.AgentConfig
		for _, pa := range preset.Agents {
			agentTier := tier
			if pa.Tier != "" {
				agentTier = pa.Tier
			}
			a, err := factory.AgentFor(pa.Provider, agentTier)
			if err != nil {
				return nil, err
			}
			out = append(out, a)
		}
		return out, nil
	}

	providers := runAgents
	if len(providers) == 0 {
		for name := range cfg.Providers {
			providers = append(providers, name)
		}
		sort.Strings(providers)
	}

	var out []models.AgentConfig
	for _, provider := range providers {
		a, err := factory.AgentFor(provider, tier)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// printCallbacks reports stage progress on stdout as the pipeline runs.
func printCallbacks() pipeline.Callbacks {
	return pipeline.Callbacks{
		OnStage1Complete: func(stage1 []models.Stage1Result) {
			color.Cyan("\nstage 1: %d responses", len(stage1))
			for _, res := range stage1 {
				fmt.Printf("  %s: %s\n", res.Agent, res.Summary)
			}
		},
		OnStage2Complete: func(stage2 []models.Stage2Result, aggregate []models.AggregateRanking) {
			color.Cyan("\nstage 2: %d rankings", len(stage2))
			for _, ar := range aggregate {
				fmt.Printf("  %s: avg rank %.2f (%d votes)\n", ar.Agent, ar.AverageRank, ar.RankingsCount)
			}
		},
		OnStage3Complete: func(stage3 models.Stage3Result) {
			color.Cyan("\nstage 3: synthesized by %s", stage3.Agent)
		},
	}
}
