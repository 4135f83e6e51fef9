// Package metrics exports session progress to Prometheus and reads
// aggregated usage back from a Prometheus server.
package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// SessionUsage is the aggregated reasoning usage of one session.
type SessionUsage struct {
	SessionID        string `json:"session_id"`
	Role             string `json:"role,omitempty"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	TotalTokens      int64  `json:"total_tokens"`
	Requests         int64  `json:"requests"`
	FailedRequests   int64  `json:"failed_requests"`
}

// QueryService provides methods to query metrics from Prometheus.
type QueryService struct {
	queryAPI v1.API
}

// NewQueryService creates a new metrics query service.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}
	return &QueryService{queryAPI: v1.NewAPI(client)}, nil
}

// scalar runs query and returns the first sample, 0 for an empty result.
func (q *QueryService) scalar(ctx context.Context, query string) (int64, error) {
	result, _, err := q.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("query %s: %w", query, err)
	}
	if vector, ok := result.(model.Vector); ok && len(vector) > 0 {
		return int64(vector[0].Value), nil
	}
	return 0, nil
}

func (q *QueryService) usage(ctx context.Context, sessionID, role string) (*SessionUsage, error) {
	selector := fmt.Sprintf(`session_id=%q`, sessionID)
	if role != "" {
		selector += fmt.Sprintf(`, role=%q`, role)
	}
	u := &SessionUsage{SessionID: sessionID, Role: role}

	var err error
	if u.PromptTokens, err = q.scalar(ctx, fmt.Sprintf(`sum(pagegen_llm_tokens_total{%s, type="prompt"})`, selector)); err != nil {
		return nil, err
	}
	if u.CompletionTokens, err = q.scalar(ctx, fmt.Sprintf(`sum(pagegen_llm_tokens_total{%s, type="completion"})`, selector)); err != nil {
		return nil, err
	}
	if u.Requests, err = q.scalar(ctx, fmt.Sprintf(`sum(pagegen_llm_requests_total{%s})`, selector)); err != nil {
		return nil, err
	}
	if u.FailedRequests, err = q.scalar(ctx, fmt.Sprintf(`sum(pagegen_llm_requests_total{%s, status="error"})`, selector)); err != nil {
		return nil, err
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return u, nil
}

// GetSessionUsage retrieves aggregated token and request counts for a session
// across all roles.
func (q *QueryService) GetSessionUsage(ctx context.Context, sessionID string) (*SessionUsage, error) {
	return q.usage(ctx, sessionID, "")
}

// GetSessionUsageByRole breaks a session's usage down by role, sorted by role name.
func (q *QueryService) GetSessionUsageByRole(ctx context.Context, sessionID string) ([]*SessionUsage, error) {
	rolesQuery := fmt.Sprintf(`group by (role) (pagegen_llm_requests_total{session_id=%q})`, sessionID)
	result, _, err := q.queryAPI.Query(ctx, rolesQuery, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}

	var roles []string
	if vector, ok := result.(model.Vector); ok {
		for _, sample := range vector {
			if role, ok := sample.Metric["role"]; ok {
				roles = append(roles, string(role))
			}
		}
	}
	sort.Strings(roles)

	out := make([]*SessionUsage, 0, len(roles))
	for _, role := range roles {
		u, err := q.usage(ctx, sessionID, role)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}
