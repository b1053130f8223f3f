package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"phenohub/internal/domain"
)

func (c *cli) recalcCmd() *cobra.Command {
	var only string
	cmd := &cobra.Command{
		Use:   "recalc",
		Short: "Rebuild provider and cultivar aggregates from published reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			agg := c.aggregator()
			start := time.Now()
			var err error
			switch only {
			case "", "all":
				err = agg.RecalcAll(cmd.Context())
			case "providers":
				err = agg.RecalcProviderMetrics(cmd.Context())
			case "cultivars":
				err = agg.RecalcCultivarMetrics(cmd.Context())
			default:
				return fmt.Errorf("--only must be providers, cultivars or all, got %q", only)
			}
			if err != nil {
				return err
			}
			log.Info().Str("only", only).Dur("took", time.Since(start)).Msg("recalc done")
			fmt.Fprintln(cmd.OutOrStdout(), "metrics recalculated")
			return nil
		},
	}
	cmd.Flags().StringVar(&only, "only", "all", "Pass to run: providers, cultivars or all")
	return cmd
}

func (c *cli) purgeCmd() *cobra.Command {
	var (
		status    string
		olderThan string
		provider  int64
	)
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete reports matching a filter, then recalculate aggregates",
		Example: `  phenohub-maint purge --status REJECTED --older-than 30d
  phenohub-maint purge --provider 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := purgeFilter(status, olderThan, provider, time.Now())
			if err != nil {
				return err
			}
			res, err := c.reports().Purge(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d reports (recalculated=%t)\n", res.Deleted, res.Recalculated)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only reports in this status (PENDING, PUBLISHED, REJECTED)")
	cmd.Flags().StringVar(&olderThan, "older-than", "", "Only reports created before now minus this age, e.g. 72h or 30d")
	cmd.Flags().Int64Var(&provider, "provider", 0, "Only reports for this provider id")
	return cmd
}

// purgeFilter turns flag values into a filter. At least one flag must be set.
func purgeFilter(status, olderThan string, provider int64, now time.Time) (domain.PurgeFilter, error) {
	var f domain.PurgeFilter
	if status != "" {
		st, err := domain.ParseStatus(status)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	if olderThan != "" {
		age, err := parseAge(olderThan)
		if err != nil {
			return f, err
		}
		f.OlderThan = now.Add(-age)
	}
	if provider < 0 {
		return f, fmt.Errorf("--provider must be positive, got %d", provider)
	}
	f.ProviderID = provider
	if f.Empty() {
		return f, domain.ErrEmptyFilter
	}
	return f, nil
}

// parseAge accepts Go durations plus a whole-day "Nd" form.
func parseAge(s string) (time.Duration, error) {
	var (
		d   time.Duration
		err error
	)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		var n int
		n, err = strconv.Atoi(days)
		d = time.Duration(n) * 24 * time.Hour
	} else {
		d, err = time.ParseDuration(s)
	}
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid --older-than %q: want a positive duration like 72h or 30d", s)
	}
	return d, nil
}
