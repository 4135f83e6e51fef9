package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"pagegen/pkg/agent"
	llmmetrics "pagegen/pkg/agent/middleware/metrics"
	"pagegen/pkg/agent/middleware/resilience/ratelimit"
	"pagegen/pkg/config"
	"pagegen/pkg/eventlog"
	"pagegen/pkg/logx"
	"pagegen/pkg/metrics"
	"pagegen/pkg/persistence"
	"pagegen/pkg/render"
	"pagegen/pkg/workflow"
)

type runOptions struct {
	sketches string
	out      string
	metrics  bool
	sqlite   string
	eventLog string
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one generation session over a directory of sketches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.sketches == "" {
				return fmt.Errorf("--sketches required")
			}
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("metrics") {
				cfg.Metrics.Enabled = opts.metrics
			}
			if opts.sqlite != "" {
				cfg.Persistence.SQLitePath = opts.sqlite
			}
			if opts.eventLog != "" {
				cfg.Persistence.EventLogDir = opts.eventLog
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSession(ctx, cmd, cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.sketches, "sketches", "", "Directory of page sketches, one image per page")
	cmd.Flags().StringVar(&opts.out, "out", "App.jsx", "File the generated application is written to")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "Serve Prometheus metrics while running")
	cmd.Flags().StringVar(&opts.sqlite, "transcript-db", "", "Record the session transcript in this sqlite file")
	cmd.Flags().StringVar(&opts.eventLog, "event-log", "", "Append session events to daily JSONL files in this directory")
	return cmd
}

func runSession(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts *runOptions) error {
	inputs, err := loadSketches(opts.sketches)
	if err != nil {
		return err
	}
	if err := config.UnlockSecrets(cfg.SecretsDir); err != nil {
		return fmt.Errorf("failed to unlock secrets: %w", err)
	}

	var (
		factoryOpts []agent.Option
		observers   []workflow.Observer
	)

	limiter := ratelimit.NewTokenBucketLimiter(ctx, ratelimit.Config{
		TokensPerMinute: cfg.Limiter.TokensPerMinute,
		MaxConcurrency:  cfg.Limiter.MaxConcurrency,
		MaxWait:         cfg.Limiter.MaxWait.D(),
	})
	factoryOpts = append(factoryOpts, agent.WithLimiter(limiter))

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		factoryOpts = append(factoryOpts, agent.WithRecorder(llmmetrics.NewPrometheusRecorder(reg)))
		observers = append(observers, metrics.NewSessionCollector(reg))
		if _, err := metrics.StartServer(ctx, cfg.Metrics.ListenAddr, reg); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	if cfg.Persistence.SQLitePath != "" {
		store, err := persistence.NewStore(cfg.Persistence.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open transcript store: %w", err)
		}
		defer func() {
			if cErr := store.Close(); cErr != nil {
				logx.Warnf("failed to close transcript store: %v", cErr)
			}
		}()
		observers = append(observers, store)
	}

	if cfg.Persistence.EventLogDir != "" {
		events, err := eventlog.NewWriter(cfg.Persistence.EventLogDir)
		if err != nil {
			return fmt.Errorf("failed to open event log: %w", err)
		}
		defer func() { _ = events.Close() }()
		observers = append(observers, events)
	}

	factory, err := agent.NewLLMClientFactory(cfg, factoryOpts...)
	if err != nil {
		return fmt.Errorf("failed to create client factory: %w", err)
	}
	engine, err := workflow.NewFromConfig(cfg, factory, nil, workflow.WithObservers(observers...))
	if err != nil {
		return fmt.Errorf("failed to build workflow: %w", err)
	}

	sink := render.NewFileSink(opts.out)
	st, runErr := engine.RunSession(ctx, inputs, sink)
	if st == nil {
		return runErr
	}

	// Write the final model even when the last push was rejected.
	//nolint:contextcheck // the session context may be cancelled; the final write must still happen
	if _, err := sink.PushCode(context.Background(), st.Code.Render()); err != nil {
		logx.Warnf("failed to write final code: %v", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session %s\n", st.ID)
	for _, p := range st.Pages.Pages() {
		mark := "✗"
		if p.Completed {
			mark = "✓"
		}
		fmt.Fprintf(out, "  %s %-20s %s\n", mark, p.Name, p.Route)
	}
	fmt.Fprintf(out, "Code written to %s\n", opts.out)
	return runErr
}
