package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/acfsync/acfsync/internal/domain"
	"github.com/acfsync/acfsync/internal/store"
)

// NewDoctorCommand creates the doctor command
func NewDoctorCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the record store is usable",
		Long: `Perform health checks on the configured record store.

This command checks:
- File permissions of the store, its directory and the config file
- Store structure and schema version
- Record counts per category

Example:
  acfsync doctor
  acfsync doctor --driver sqlite --store ./records.sqlite`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, g)
		},
	}
}

type doctorReport struct {
	out      io.Writer
	issues   int
	warnings int
}

func (r *doctorReport) ok(format string, args ...any) {
	fmt.Fprintf(r.out, "   ✅ "+format+"\n", args...)
}

func (r *doctorReport) warn(format string, args ...any) {
	r.warnings++
	fmt.Fprintf(r.out, "   ⚠️  "+format+"\n", args...)
}

func (r *doctorReport) fail(format string, args ...any) {
	r.issues++
	fmt.Fprintf(r.out, "   ❌ "+format+"\n", args...)
}

func (r *doctorReport) section(title string) {
	fmt.Fprintf(r.out, "\n%s\n", title)
}

func runDoctor(cmd *cobra.Command, g *globalOptions) (err error) {
	ctx := cmd.Context()
	r := &doctorReport{out: cmd.OutOrStdout()}

	fmt.Fprintln(r.out, "acfsync Health Check")
	fmt.Fprintln(r.out, "====================")
	fmt.Fprintf(r.out, "Store:  %s\n", g.cfg.StorePath)
	fmt.Fprintf(r.out, "Driver: %s\n", g.cfg.Driver)

	r.section("1. File Permissions")
	checkPermissions(r, "Store file", g.cfg.StorePath, 0o077)
	checkPermissions(r, "Store directory", filepath.Dir(g.cfg.StorePath), 0o077)
	if g.cfgFile != "" {
		checkPermissions(r, "Config file", g.cfgFile, 0o077)
	}

	r.section("2. Store Integrity")
	s, err := g.openStore(ctx)
	if err != nil {
		r.fail("Cannot open record store: %v", err)
		printDoctorSummary(r)
		return err
	}
	defer checkDeferredErr(&err, g.log, "close record store", s.Close)

	if readyErr := store.CheckReady(ctx, s); readyErr != nil {
		r.fail("%v", readyErr)
		printDoctorSummary(r)
		return readyErr
	}
	r.ok("Store structure is valid")

	r.section("3. Records")
	counts, err := s.CountRecords(ctx)
	if err != nil {
		r.fail("Cannot count records: %v", err)
	} else {
		total := 0
		for _, c := range domain.Categories() {
			fmt.Fprintf(r.out, "   %-22s %d\n", c, counts[c])
			total += counts[c]
		}
		fmt.Fprintf(r.out, "   %-22s %d\n", "total", total)
	}

	printDoctorSummary(r)
	if r.issues > 0 {
		return fmt.Errorf("doctor found %d issues", r.issues)
	}
	return nil
}

// checkPermissions reports whether path grants any of the bits in forbidden.
// A missing path is not an issue since the store is created on first use.
func checkPermissions(r *doctorReport, label, path string, forbidden os.FileMode) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		r.ok("%s not created yet: %s", label, path)
		return
	}
	if err != nil {
		r.fail("Cannot check %s: %v", strings.ToLower(label), err)
		return
	}

	perm := info.Mode().Perm()
	if perm&forbidden == 0 {
		r.ok("%s permissions: %o", label, perm)
		return
	}
	if info.IsDir() {
		r.warn("%s permissions: %o (consider 0700)", label, perm)
		return
	}
	r.fail("%s permissions: %o (too permissive, should be 0600)", label, perm)
	fmt.Fprintf(r.out, "      Fix with: chmod 600 %s\n", path)
}

func printDoctorSummary(r *doctorReport) {
	fmt.Fprintln(r.out, "\n"+strings.Repeat("=", 40))
	if r.issues == 0 && r.warnings == 0 {
		fmt.Fprintln(r.out, "✅ All checks passed")
		return
	}
	if r.issues > 0 {
		fmt.Fprintf(r.out, "❌ Found %d issues that should be fixed\n", r.issues)
	}
	if r.warnings > 0 {
		fmt.Fprintf(r.out, "⚠️  Found %d warnings for consideration\n", r.warnings)
	}
}
