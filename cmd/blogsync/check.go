package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/eringen/blogsync"
)

func newCheckCmd(g *globalFlags) *cobra.Command {
	var (
		jsonOutput  bool
		timeout     time.Duration
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify that every referenced image can be read",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("timeout") {
				cfg.CheckTimeout = timeout
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.CheckConcurrency = concurrency
			}

			docs, err := blogsync.LoadDocuments(cfg.ContentDir)
			if err != nil {
				if docs == nil {
					return err
				}
				log.Warn().Err(err).Msg("some documents could not be parsed")
			}

			opts := []blogsync.Option{blogsync.WithLogger(log)}
			ledger, err := openLedger(cfg, log)
			if err != nil {
				return err
			}
			if ledger != nil {
				defer ledger.Close()
				opts = append(opts, blogsync.WithLedger(ledger))
			}

			report := blogsync.NewChecker(cfg, opts...).Check(cmd.Context(), docs)
			out := cmd.OutOrStdout()
			if jsonOutput {
				err = blogsync.WriteReportJSON(out, report)
			} else {
				err = blogsync.WriteReport(out, report)
			}
			if err != nil {
				return err
			}
			if !report.OK() {
				return errUnreachable
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&jsonOutput, "json", false, "print the report as JSON")
	f.DurationVar(&timeout, "timeout", blogsync.DefaultCheckTimeout, "per-request timeout for remote images")
	f.IntVar(&concurrency, "concurrency", 0, "maximum concurrent checks (0 means unbounded)")
	return cmd
}
