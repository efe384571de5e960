package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/acfsync/acfsync/internal/domain"
)

// NewStatusCommand creates the status command
func NewStatusCommand(g *globalOptions) *cobra.Command {
	var statusJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show record store status",
		Long:  "Display the record store location, record statistics and the most recent run.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, g, statusJSON)
		},
	}

	cmd.Flags().BoolVar(&statusJSON, "json", false, "Output status as JSON")

	return cmd
}

type statusInfo struct {
	StorePath   string                  `json:"store_path"`
	Driver      string                  `json:"driver"`
	Records     int                     `json:"records"`
	Categories  map[domain.Category]int `json:"categories"`
	LastUpdated *time.Time              `json:"last_updated,omitempty"`
	LastRun     *domain.Operation       `json:"last_run,omitempty"`
}

func runStatus(cmd *cobra.Command, g *globalOptions, asJSON bool) (err error) {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	s, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer checkDeferredErr(&err, g.log, "close record store", s.Close)

	counts, err := s.CountRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to count records: %w", err)
	}
	records, err := s.ListRecords(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}
	ops, err := s.GetAuditLog(ctx)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	result := statusInfo{
		StorePath:  s.Path(),
		Driver:     g.cfg.Driver,
		Records:    len(records),
		Categories: counts,
	}
	for _, rec := range records {
		ts := rec.UpdatedAt
		if result.LastUpdated == nil || ts.After(*result.LastUpdated) {
			result.LastUpdated = &ts
		}
	}
	if len(ops) > 0 {
		result.LastRun = ops[len(ops)-1]
	}

	if asJSON {
		return writeJSON(out, result)
	}

	if err := writeOutput(out, "Store: %s (%s)\n", result.StorePath, result.Driver); err != nil {
		return err
	}
	if err := writeOutput(out, "Records: %d\n", result.Records); err != nil {
		return err
	}
	for _, c := range domain.Categories() {
		if err := writeOutput(out, "  %-22s %d\n", c, counts[c]); err != nil {
			return err
		}
	}

	lastUpdated := "n/a"
	if result.LastUpdated != nil {
		lastUpdated = result.LastUpdated.Local().Format(time.RFC3339)
	}
	if err := writeOutput(out, "Last Updated: %s\n", lastUpdated); err != nil {
		return err
	}

	if result.LastRun == nil {
		return writeOutput(out, "Last Run: n/a\n")
	}
	run := result.LastRun
	state := "ok"
	if !run.Success {
		state = "failed"
	}
	return writeOutput(out, "Last Run: %s %s, %d items, %s (%s)\n",
		run.Type, run.Source, run.Total, state, run.Timestamp.Local().Format(time.RFC3339))
}
