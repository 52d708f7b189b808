// Command wsop mirrors the workshop datastore into a git-backed vault and
// drives project, task and purchase lifecycles from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/workshopops/workshop/internal/config"
	"github.com/workshopops/workshop/internal/logging"
)

var (
	v          = config.New()
	cfg        *config.Config
	sink       *logging.Sink
	configFile string
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "wsop",
	Short: "Workshop vault sync and lifecycle tool",
	Long: `wsop keeps a plain-folder mirror of the workshop datastore.

Projects, inventory, notes and the rest of the datastore are written as JSON
with binary attachments split out next to them. The vault can be committed
to a local git history and pushed to or pulled from one remote.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(v, configFile)
		if err != nil {
			return err
		}
		sink, err = logging.Open(logging.Options{
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Quiet:      quiet,
		})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if sink != nil {
			_ = sink.Close()
		}
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "vault", Title: "Vault:"},
		&cobra.Group{ID: "lifecycle", Title: "Lifecycle:"},
		&cobra.Group{ID: "data", Title: "Data:"},
	)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default: ./workshop.yaml or <user config>/wsop/workshop.yaml)")
	flags.String("db", "", "Datastore path")
	flags.String("vault", "", "Vault directory (overrides the stored one)")
	flags.String("log-file", "", "Also write logs to this file, rotated")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Do not log to stderr")

	for key, name := range map[string]string{
		config.KeyDB:      "db",
		config.KeyVault:   "vault",
		config.KeyLogFile: "log-file",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind --%s: %v", name, err))
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
