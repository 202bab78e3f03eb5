package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/eringen/blogsync"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	pretty     bool
	contentDir string
	ledger     string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "blogsync",
		Short:         "Move blog images to object storage and audit that they resolve",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "path to a TOML config file")
	pf.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error (default info)")
	pf.BoolVar(&g.pretty, "pretty", term.IsTerminal(int(os.Stderr.Fd())), "human-readable log output")
	pf.StringVar(&g.contentDir, "content-dir", "", "directory holding the .mdx documents (default content)")
	pf.StringVar(&g.ledger, "ledger", "", "SQLite file recording runs, uploads and checks")

	cmd.AddCommand(
		newSyncCmd(g),
		newCheckCmd(g),
		newServeCmd(g),
		newVersionCmd(),
	)
	return cmd
}

// load reads the config file and environment, then applies the flags that
// were set explicitly.
func (g *globalFlags) load() (blogsync.Config, zerolog.Logger, error) {
	cfg, err := blogsync.LoadConfig(g.configPath)
	if err != nil {
		return cfg, zerolog.Nop(), err
	}
	if g.contentDir != "" {
		cfg.ContentDir = g.contentDir
	}
	if g.ledger != "" {
		cfg.LedgerPath = g.ledger
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	return cfg, blogsync.NewLogger(os.Stderr, cfg.LogLevel, g.pretty), nil
}

func openLedger(cfg blogsync.Config, log zerolog.Logger) (*blogsync.Ledger, error) {
	if cfg.LedgerPath == "" {
		return nil, nil
	}
	log.Debug().Str("path", cfg.LedgerPath).Msg("opening ledger")
	return blogsync.NewLedger(cfg.LedgerPath)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the blogsync version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "blogsync %s\n", version)
		},
	}
}
