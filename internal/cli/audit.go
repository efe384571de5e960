package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/acfsync/acfsync/internal/domain"
	"github.com/acfsync/acfsync/internal/util"
)

type auditLogOptions struct {
	json  bool
	limit int
}

// NewAuditLogCommand creates the audit-log command
func NewAuditLogCommand(g *globalOptions) *cobra.Command {
	opts := &auditLogOptions{}

	cmd := &cobra.Command{
		Use:   "audit-log",
		Short: "Show past import and export runs",
		Long: `Show the audit log of import and export runs, oldest first.

Every import and export is recorded with a run ID, the file it used, the number
of items and whether it succeeded.

Example:
  acfsync audit-log
  acfsync audit-log --limit 5
  acfsync audit-log --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditLog(cmd, g, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.json, "json", false, "Output in JSON format")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Only show the most recent n runs (0 shows all)")

	return cmd
}

func runAuditLog(cmd *cobra.Command, g *globalOptions, opts *auditLogOptions) (err error) {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if opts.limit < 0 {
		return util.NewInputError("--limit must not be negative, got %d", opts.limit)
	}

	s, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer checkDeferredErr(&err, g.log, "close record store", s.Close)

	ops, err := s.GetAuditLog(ctx)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}
	if opts.limit > 0 && len(ops) > opts.limit {
		ops = ops[len(ops)-opts.limit:]
	}

	if useJSON(out, opts.json, g.cfg.OutputFormat) {
		if ops == nil {
			ops = []*domain.Operation{}
		}
		return writeJSON(out, ops)
	}

	if len(ops) == 0 {
		return writeOutput(out, "No runs recorded\n")
	}
	return outputAuditTable(out, ops)
}

func outputAuditTable(out io.Writer, ops []*domain.Operation) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if _, err := fmt.Fprintf(w, "TIME\tRUN\tTYPE\tITEMS\tSTATUS\tSOURCE\n"); err != nil {
		return fmt.Errorf("failed to write table header: %w", err)
	}

	for _, op := range ops {
		status := "ok"
		if !op.Success {
			status = "failed: " + op.Error
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			op.Timestamp.Local().Format("2006-01-02 15:04:05"),
			shortRunID(op.RunID),
			op.Type,
			op.Total,
			status,
			op.Source,
		); err != nil {
			return fmt.Errorf("failed to write audit entry: %w", err)
		}
	}

	return w.Flush()
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
