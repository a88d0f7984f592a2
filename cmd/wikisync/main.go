// Command wikisync copies administrative metadata (blocks, page
// restrictions, protected titles and user group memberships) from a remote
// MediaWiki api.php into a local wiki database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wikisync/internal/config"
	"wikisync/internal/logging"

	// register all backends with the storage factory.
	_ "wikisync/internal/storage/all"
)

// app carries what the persistent flags resolve to.
type app struct {
	cfgPath string
	envFile string
	verbose bool

	cfg      config.Config
	closeLog func() error
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "wikisync",
		Short:         "Copy blocks, protections and user groups from a MediaWiki API into a wiki database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closeLog != nil {
				return a.closeLog()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", ".env file to load before reading the environment")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newSyncCmd(a))
	for _, name := range config.JobNames {
		root.AddCommand(newJobCmd(a, name))
	}
	root.AddCommand(newValidateCmd(a))
	root.AddCommand(newJobsCmd())
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.cfgPath, a.envFile)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	closeLog, err := logging.Setup(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return err
	}
	a.cfg, a.closeLog = cfg, closeLog
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "wikisync: %v\n", err)
		stop()
		os.Exit(1)
	}
}
