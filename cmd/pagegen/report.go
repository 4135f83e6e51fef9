package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pagegen/pkg/metrics"
)

func newReportCmd(flags *globalFlags) *cobra.Command {
	var prometheusURL string
	cmd := &cobra.Command{
		Use:   "report SESSION_ID",
		Short: "Summarize a session's reasoning usage from Prometheus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if prometheusURL == "" {
				cfg, err := flags.load()
				if err != nil {
					return err
				}
				prometheusURL = cfg.Metrics.PrometheusURL
			}
			if prometheusURL == "" {
				return fmt.Errorf("no Prometheus URL: set metrics.prometheus_url or --prometheus")
			}
			q, err := metrics.NewQueryService(prometheusURL)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			byRole, err := q.GetSessionUsageByRole(ctx, args[0])
			if err != nil {
				return err
			}
			total, err := q.GetSessionUsage(ctx, args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ROLE\tREQUESTS\tFAILED\tPROMPT\tCOMPLETION\tTOTAL")
			for _, u := range byRole {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n",
					u.Role, u.Requests, u.FailedRequests, u.PromptTokens, u.CompletionTokens, u.TotalTokens)
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n", "all",
				total.Requests, total.FailedRequests, total.PromptTokens, total.CompletionTokens, total.TotalTokens)
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&prometheusURL, "prometheus", "", "Prometheus server URL (defaults to metrics.prometheus_url)")
	return cmd
}
