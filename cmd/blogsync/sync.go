package main

import (
	"github.com/spf13/cobra"

	"github.com/eringen/blogsync"
	"github.com/eringen/blogsync/objstore"
)

func newSyncCmd(g *globalFlags) *cobra.Command {
	var (
		dryRun         bool
		includeRemote  bool
		localOnly      bool
		remoteOnly     bool
		allowAllRemote bool
		optimizeJPEG   bool
		jpegQuality    string
		skipExisting   bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Upload referenced images and rewrite documents to the public URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}

			cfg.DryRun = dryRun
			flags := cmd.Flags()
			if flags.Changed("include-remote") || flags.Changed("local-only") || flags.Changed("remote-only") {
				cfg.ProcessLocal, cfg.ProcessRemote = blogsync.SelectSources(includeRemote, localOnly, remoteOnly)
			}
			if flags.Changed("allow-all-remote") {
				cfg.AllowAllRemote = allowAllRemote
			}
			if flags.Changed("optimize-jpeg") {
				cfg.OptimizeJPEG = optimizeJPEG
			}
			if flags.Changed("skip-existing") {
				cfg.SkipExisting = skipExisting
			}
			if flags.Changed("jpeg-quality") {
				q, ok := blogsync.ParseQuality(jpegQuality)
				if !ok {
					log.Warn().Str("value", jpegQuality).Int("quality", q).Msg("invalid --jpeg-quality, using default")
				}
				cfg.JPEGQuality = q
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			opts := []blogsync.Option{blogsync.WithLogger(log)}

			ledger, err := openLedger(cfg, log)
			if err != nil {
				return err
			}
			if ledger != nil {
				defer ledger.Close()
				opts = append(opts, blogsync.WithLedger(ledger))
			}

			if !cfg.DryRun {
				store, err := objstore.NewR2(ctx, objstore.R2Config{
					AccountID:       cfg.AccountID,
					AccessKeyID:     cfg.AccessKeyID,
					SecretAccessKey: cfg.SecretAccessKey,
					Bucket:          cfg.Bucket,
					Endpoint:        cfg.Endpoint,
				})
				if err != nil {
					return err
				}
				opts = append(opts, blogsync.WithObjectStore(store))
			}

			sum, err := blogsync.NewSyncer(cfg, opts...).Run(ctx)
			if werr := blogsync.WriteSummary(cmd.OutOrStdout(), sum); werr != nil && err == nil {
				err = werr
			}
			return err
		},
	}

	f := cmd.Flags()
	f.BoolVar(&dryRun, "dry-run", false, "log would-be uploads and rewrites without changing anything")
	f.BoolVar(&includeRemote, "include-remote", false, "also migrate remote images from the allowed host")
	f.BoolVar(&localOnly, "local-only", false, "process local images only")
	f.BoolVar(&remoteOnly, "remote-only", false, "process remote images only")
	f.BoolVar(&allowAllRemote, "allow-all-remote", false, "migrate remote images from any host")
	f.BoolVar(&optimizeJPEG, "optimize-jpeg", false, "recompress JPEGs at or above the size threshold")
	f.StringVar(&jpegQuality, "jpeg-quality", "70", "recompression quality, 1-100")
	f.BoolVar(&skipExisting, "skip-existing", false, "skip keys already present in storage or the ledger")
	return cmd
}
