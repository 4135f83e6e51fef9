package workflow

import (
	"fmt"

	"pagegen/pkg/agent"
	"pagegen/pkg/agent/middleware/resilience/retry"
	"pagegen/pkg/config"
	"pagegen/pkg/contextwindow"
	"pagegen/pkg/logx"
	"pagegen/pkg/roles"
	"pagegen/pkg/utils"
)

// NewFromConfig wires the three roles to clients from factory and returns an
// engine bounded by cfg. sleep overrides the retry backoff sleeper; nil
// sleeps for real.
func NewFromConfig(cfg *config.Config, factory *agent.LLMClientFactory, sleep retry.Sleeper, opts ...Option) (*Engine, error) {
	renderer, err := roles.NewRenderer()
	if err != nil {
		return nil, err
	}

	window := contextwindow.Options{
		MaxTurns:    cfg.Context.MaxTurns,
		MinTurns:    cfg.Context.MinTurns,
		RetryShrink: cfg.Context.RetryShrink,
		MaxTokens:   cfg.Context.MaxTokens,
	}
	if cfg.Context.MaxTokens > 0 {
		counter, cErr := utils.NewTokenCounter(cfg.Reasoning.Model)
		if cErr != nil {
			logx.Warnf("token budget disabled: %v", cErr)
			window.MaxTokens = 0
		} else {
			window.Counter = counter
		}
	}

	policy := retry.NewPolicy(retry.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Unit:        cfg.Retry.Unit.D(),
	}, nil, sleep)

	build := func(role roles.Role) (*roles.Node, error) {
		client, cErr := factory.ClientFor(string(role))
		if cErr != nil {
			return nil, fmt.Errorf("%s client: %w", role, cErr)
		}
		caller := retry.NewCaller(client, policy, logx.NewLogger("retry").With(string(role)))
		return roles.NewNode(role, caller, renderer, roles.Options{
			Window:          window,
			NudgeThreshold:  cfg.Workflow.NudgeThreshold,
			EditorCanDelete: cfg.Workflow.EditorCanDelete,
			MaxTokens:       cfg.Reasoning.MaxTokens,
			Temperature:     cfg.Reasoning.Temperature,
		})
	}

	var r Roles
	if r.Planner, err = build(roles.RolePlanner); err != nil {
		return nil, err
	}
	if r.Editor, err = build(roles.RoleEditor); err != nil {
		return nil, err
	}
	if r.Reviewer, err = build(roles.RoleReviewer); err != nil {
		return nil, err
	}

	return NewEngine(r, Limits{
		CycleLimit:   cfg.Workflow.CycleLimit,
		OpCallLimit:  cfg.Workflow.OpCallLimit,
		MaxSteps:     cfg.Workflow.StepLimit(),
		ErrorLogSize: cfg.Workflow.ErrorLogSize,
	}, opts...)
}
