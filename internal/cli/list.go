package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/acfsync/acfsync/internal/domain"
	"github.com/acfsync/acfsync/internal/util"
)

type listOptions struct {
	category string
	search   string
	json     bool
}

// NewListCommand creates the list command
func NewListCommand(g *globalOptions) *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored definitions",
		Long: `List the definitions in the record store, ordered by ID.

Output is a table on a terminal and JSON otherwise, unless --json or the
output_format setting says differently.

Example:
  acfsync list                              # List all records
  acfsync list --category acf-post-type     # Only post types
  acfsync list --search hero+front          # Key, title or category contains every token
  acfsync list --json                       # Output in JSON format`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, g, opts)
		},
	}

	cmd.Flags().StringVar(&opts.category, "category", "", "Only list this category")
	cmd.Flags().StringVar(&opts.search, "search", "", "Search in key, title and category ('+' separates tokens)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output in JSON format")

	return cmd
}

func runList(cmd *cobra.Command, g *globalOptions, opts *listOptions) (err error) {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	var category domain.Category
	if opts.category != "" {
		if category, err = domain.ParseCategory(opts.category); err != nil {
			return &util.InputError{Err: err}
		}
	}

	s, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer checkDeferredErr(&err, g.log, "close record store", s.Close)

	records, err := s.ListRecords(ctx, category)
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	if tokens := domain.ParseSearchTokens(opts.search); tokens != nil {
		matched := records[:0]
		for _, rec := range records {
			if rec.MatchesSearchTokens(tokens) {
				matched = append(matched, rec)
			}
		}
		records = matched
	}

	if useJSON(out, opts.json, g.cfg.OutputFormat) {
		return outputRecordsJSON(out, records)
	}

	if len(records) == 0 {
		if err := writeOutput(out, "No records found\n"); err != nil {
			return err
		}
		return writeOutput(out, "Use 'acfsync import --file=<path>' to import definitions\n")
	}

	return outputRecordsTable(out, records)
}

func outputRecordsTable(out io.Writer, records []*domain.Record) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if _, err := fmt.Fprintf(w, "ID\tKEY\tCATEGORY\tTITLE\tUPDATED\n"); err != nil {
		return fmt.Errorf("failed to write table header: %w", err)
	}

	for _, rec := range records {
		title := rec.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		if _, err := fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			rec.ID,
			rec.Key,
			rec.Category,
			title,
			rec.UpdatedAt.Local().Format("2006-01-02 15:04"),
		); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush table: %w", err)
	}

	return writeOutput(out, "\nFound %d records\n", len(records))
}

func outputRecordsJSON(out io.Writer, records []*domain.Record) error {
	type recordOutput struct {
		ID        int64           `json:"id"`
		Key       string          `json:"key"`
		Category  domain.Category `json:"category"`
		Title     string          `json:"title,omitempty"`
		CreatedAt string          `json:"created_at"`
		UpdatedAt string          `json:"updated_at"`
	}

	output := make([]recordOutput, 0, len(records))
	for _, rec := range records {
		output = append(output, recordOutput{
			ID:        rec.ID,
			Key:       rec.Key,
			Category:  rec.Category,
			Title:     rec.Title,
			CreatedAt: rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			UpdatedAt: rec.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	return writeJSON(out, output)
}
