package cli

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/acfsync/acfsync/internal/domain"
	"github.com/acfsync/acfsync/internal/importer"
	"github.com/acfsync/acfsync/internal/store"
	"github.com/acfsync/acfsync/internal/util"
)

type importOptions struct {
	file     string
	jsonFile string
	dryRun   bool
}

// NewImportCommand creates the import command
func NewImportCommand(g *globalOptions) *cobra.Command {
	opts := &importOptions{}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import definitions from a JSON file",
		Long: `Import field groups and related definitions from a JSON file.

The file holds either a single definition object or an array of them. Every
definition needs a "key". A key already in the store updates that record and
keeps stored fields the file leaves out; a new key creates a record.

Example:
  acfsync import --file=acf-export.json
  acfsync import --file=acf-export.json --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, g, opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "JSON file to import")
	cmd.Flags().StringVar(&opts.jsonFile, "json_file", "", "alias for --file")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Show what would be imported without writing")

	return cmd
}

func runImport(cmd *cobra.Command, g *globalOptions, opts *importOptions) (err error) {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if opts.file != "" && opts.jsonFile != "" {
		return util.NewInputError("--file and --json_file cannot be used together")
	}
	path := opts.file
	if path == "" {
		path = opts.jsonFile
	}
	if path == "" {
		return util.NewInputError(importer.MsgEmptyImport)
	}

	batch, err := importer.ReadBatchFile(path)
	if err != nil {
		return err
	}

	s, err := g.openStore(ctx)
	if err != nil {
		return err
	}
	defer checkDeferredErr(&err, g.log, "close record store", s.Close)

	if err := store.CheckReady(ctx, s); err != nil {
		return err
	}

	runID := uuid.NewString()
	log := g.log.Component("import")
	log.Debug().Str("run_id", runID).Str("file", path).Int("items", len(batch)).Msg("import started")

	reconciler := importer.NewReconciler(s, g.log, importer.Options{DryRun: opts.dryRun})
	result, recErr := reconciler.Reconcile(ctx, batch)

	if opts.dryRun {
		if recErr != nil {
			return recErr
		}
		return printPlan(cmd, result)
	}

	op := &domain.Operation{
		RunID:   runID,
		Type:    domain.OpImport,
		Source:  path,
		Success: recErr == nil,
	}
	if recErr != nil {
		op.Error = recErr.Error()
	} else {
		op.Total = result.Total
	}
	if logErr := s.LogOperation(ctx, op); logErr != nil {
		log.Warn().Err(logErr).Str("run_id", runID).Msg("failed to write audit entry")
	}

	if recErr != nil {
		return recErr
	}

	return writeOutput(out, "Imported %d items\n", result.Total)
}

func printPlan(cmd *cobra.Command, result *domain.Result) error {
	out := cmd.OutOrStdout()

	for _, o := range result.Outcomes {
		target := "new record"
		if o.Action == domain.ActionUpdated {
			target = "#" + strconv.FormatInt(o.ID, 10)
		}
		if err := writeOutput(out, "  %-8s %-20s %s (%s)\n", o.Action, o.Category, o.Key, target); err != nil {
			return err
		}
	}

	return writeOutput(out, "Would import %d items\n", result.Total)
}
