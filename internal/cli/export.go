package cli

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/acfsync/acfsync/internal/domain"
	"github.com/acfsync/acfsync/internal/store"
	"github.com/acfsync/acfsync/internal/util"
)

type exportOptions struct {
	file     string
	category string
	keys     []string
}

// NewExportCommand creates the export command
func NewExportCommand(g *globalOptions) *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored definitions to a JSON file",
		Long: `Export stored definitions as a JSON array.

Each exported definition carries its ID, and the file can be imported again
unchanged. The file is written to a temporary name and renamed into place.

Example:
  acfsync export --file=backup.json
  acfsync export --file=groups.json --category acf-field-group
  acfsync export --file=hero.json --key group_hero`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, g, opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Export file path")
	cmd.Flags().StringVar(&opts.category, "category", "", "Only export this category")
	cmd.Flags().StringSliceVar(&opts.keys, "key", nil, "Only export these keys")

	return cmd
}

func runExport(cmd *cobra.Command, g *globalOptions, opts *exportOptions) (err error) {
	ctx := cmd.Context()

	if opts.file == "" {
		return util.NewInputError(`required flag "file" not set`)
	}

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

	records, err = filterByKeys(records, opts.keys)
	if err != nil {
		return err
	}

	descriptors := make([]domain.Descriptor, 0, len(records))
	for _, rec := range records {
		descriptors = append(descriptors, rec.Descriptor())
	}

	data, err := json.MarshalIndent(descriptors, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	data = append(data, '\n')

	op := &domain.Operation{
		RunID:  uuid.NewString(),
		Type:   domain.OpExport,
		Source: opts.file,
		Total:  len(descriptors),
	}

	writeErr := store.AtomicWriteFile(opts.file, data)
	op.Success = writeErr == nil
	if writeErr != nil {
		op.Error = writeErr.Error()
	}
	if logErr := s.LogOperation(ctx, op); logErr != nil {
		g.log.Warn().Err(logErr).Str("run_id", op.RunID).Msg("failed to write audit entry")
	}
	if writeErr != nil {
		return fmt.Errorf("failed to write export file: %w", writeErr)
	}

	return writeOutput(cmd.OutOrStdout(), "Exported %d items to %s\n", len(descriptors), opts.file)
}

// filterByKeys keeps the records whose key is listed; every listed key must exist
func filterByKeys(records []*domain.Record, keys []string) ([]*domain.Record, error) {
	if len(keys) == 0 {
		return records, nil
	}

	wanted := make(map[string]bool, len(keys))
	for _, k := range keys {
		wanted[k] = false
	}

	var out []*domain.Record
	for _, rec := range records {
		if _, ok := wanted[rec.Key]; ok {
			wanted[rec.Key] = true
			out = append(out, rec)
		}
	}

	for _, k := range keys {
		if !wanted[k] {
			return nil, util.NewInputError("no stored record with key %q", k)
		}
	}
	return out, nil
}
