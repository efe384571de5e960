package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/acfsync/acfsync/internal/config"
	"github.com/acfsync/acfsync/internal/logger"
	"github.com/acfsync/acfsync/internal/store"
	"github.com/acfsync/acfsync/internal/util"
)

// Version is the acfsync release version
const Version = "1.0.0"

// globalOptions holds the persistent flags and the state PersistentPreRunE
// derives from them
type globalOptions struct {
	cfgFile   string
	storePath string
	driver    string
	verbose   bool

	cfg *config.Config
	log *logger.Logger
}

// NewRootCommand builds the acfsync command tree
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "acfsync",
		Short: "Bulk-import field group definitions into a local record store",
		Long: `acfsync imports field groups, post types, taxonomies and options pages
from JSON files into a local record store.

Each definition is matched by its key. Known keys update the stored record in
place and keep fields the file does not mention; unknown keys create new records.

Example:
  acfsync import --file=acf-export.json
  acfsync list --category acf-field-group
  acfsync export --file=backup.json`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &util.InputError{Err: err}
	})

	// Global flags
	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.config/acfsync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.storePath, "store", "", "record store path")
	rootCmd.PersistentFlags().StringVar(&opts.driver, "driver", "", "record store driver (bolt|sqlite)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewImportCommand(opts))
	rootCmd.AddCommand(NewExportCommand(opts))
	rootCmd.AddCommand(NewListCommand(opts))
	rootCmd.AddCommand(NewAuditLogCommand(opts))
	rootCmd.AddCommand(NewStatusCommand(opts))
	rootCmd.AddCommand(NewDoctorCommand(opts))
	rootCmd.AddCommand(NewConfigCommand(opts))

	return rootCmd
}

// Execute runs the root command with os.Args
func Execute() error {
	return NewRootCommand().Execute()
}

// load resolves the config file, applies flag overrides and builds the logger
func (o *globalOptions) load(cmd *cobra.Command) error {
	if o.cfgFile == "" {
		path, err := defaultConfigPath()
		if err != nil {
			return &util.ConfigurationError{Msg: "failed to locate config file", Err: err}
		}
		o.cfgFile = path
	}

	cfg, err := config.LoadConfig(o.cfgFile)
	if err != nil {
		return &util.ConfigurationError{Msg: "failed to load config", Err: err}
	}

	if o.storePath != "" {
		cfg.StorePath = o.storePath
	}
	if o.driver != "" {
		cfg.Driver = o.driver
	}
	if err := cfg.Validate(); err != nil {
		return &util.ConfigurationError{Msg: "invalid configuration", Err: err}
	}

	level := cfg.LogLevel
	if o.verbose {
		level = "debug"
	}

	o.cfg = cfg
	o.log = logger.New(cmd.ErrOrStderr(), level)
	o.log.Debug().
		Str("config", o.cfgFile).
		Str("store", cfg.StorePath).
		Str("driver", cfg.Driver).
		Msg("configuration loaded")

	return nil
}

// openStore opens the configured record store; callers must Close it
func (o *globalOptions) openStore(ctx context.Context) (store.Store, error) {
	s, err := store.Open(ctx, o.cfg, o.log)
	if err != nil {
		return nil, err
	}
	o.log.Debug().Str("path", s.Path()).Msg("using record store")
	return s, nil
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "acfsync", "config.yaml"), nil
}
