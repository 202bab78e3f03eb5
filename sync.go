package blogsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/eringen/blogsync/markdown"
)

// payloadCacheBytes bounds the fetched payloads kept for one run.
const payloadCacheBytes = 256 << 20

// Syncer migrates the images referenced by a content directory to object
// storage and rewrites the documents to point at the uploaded copies.
type Syncer struct {
	cfg      Config
	fetcher  *Fetcher
	uploader *Uploader
	ledger   *Ledger
	observer Observer
	log      zerolog.Logger
}

// NewSyncer returns a Syncer. An object store is required unless
// cfg.DryRun is set.
func NewSyncer(cfg Config, opts ...Option) *Syncer {
	cfg.setDefaults()
	o := newOptions(opts)
	return &Syncer{
		cfg:      cfg,
		fetcher:  NewFetcher(o.client, cfg.MaxRemoteBytes, NewPayloadCache(payloadCacheBytes)),
		uploader: NewUploader(cfg, opts...),
		ledger:   o.ledger,
		observer: o.observer,
		log:      o.log.With().Str("component", "sync").Logger(),
	}
}

// Run processes every document in the content directory, one at a time.
// A failing reference or document is logged and counted; only a failure to
// list the content directory aborts the run.
func (s *Syncer) Run(ctx context.Context) (RunSummary, error) {
	run := NewRunContext(s.cfg.DryRun)
	sum := RunSummary{RunID: run.ID, DryRun: run.DryRun}
	log := s.log.With().Str("run_id", run.ID).Logger()

	paths, err := ListDocuments(s.cfg.ContentDir)
	if err != nil {
		return sum, err
	}
	if s.ledger != nil {
		if err := s.ledger.BeginRun(ctx, run.ID, RunKindSync, run.DryRun, run.StartedAt); err != nil {
			log.Warn().Err(err).Msg("ledger write failed")
		}
	}
	log.Info().
		Int("documents", len(paths)).
		Bool("dry_run", run.DryRun).
		Bool("local", s.cfg.ProcessLocal).
		Bool("remote", s.cfg.ProcessRemote).
		Msg("sync started")

	var runErr error
	for _, path := range paths {
		if runErr = ctx.Err(); runErr != nil {
			break
		}
		sum.Documents++
		changed, err := s.syncFile(ctx, run, path, &sum)
		switch {
		case errors.Is(err, ErrNoSlug):
			sum.SkippedNoSlug++
			log.Warn().Str("path", path).Msg("skipped, document has no slug")
		case err != nil:
			sum.FailedDocuments++
			log.Error().Err(err).Str("path", path).Msg("document failed")
		case changed:
			sum.UpdatedDocuments++
		}
	}

	sum.Duration = time.Since(run.StartedAt)
	if s.ledger != nil {
		if err := s.ledger.FinishRun(ctx, run.ID, time.Now(), sum); err != nil {
			log.Warn().Err(err).Msg("ledger write failed")
		}
	}
	log.Info().
		Int("updated", sum.UpdatedDocuments).
		Int("uploaded", sum.Uploaded).
		Int("reused", sum.Reused).
		Int("failed", sum.Failed).
		Dur("duration", sum.Duration).
		Msg("sync finished")
	return sum, runErr
}

func (s *Syncer) syncFile(ctx context.Context, run *RunContext, path string, sum *RunSummary) (bool, error) {
	doc, err := ReadDocument(path)
	if err != nil {
		return false, err
	}
	changed, err := s.SyncDocument(ctx, run, doc, sum)
	if err != nil || !changed {
		return false, err
	}
	if run.DryRun {
		s.log.Info().Str("slug", doc.Slug()).Str("path", path).Msg("dry run, would rewrite document")
		return true, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, doc.Bytes(), info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	s.log.Info().Str("slug", doc.Slug()).Str("path", path).Msg("document rewritten")
	return true, nil
}

// SyncDocument uploads the images referenced by doc and rewrites doc in
// memory. It reports whether any reference changed. Failed references are
// logged, counted in sum and left as written.
func (s *Syncer) SyncDocument(ctx context.Context, run *RunContext, doc *markdown.Document, sum *RunSummary) (bool, error) {
	slug := doc.Slug()
	if slug == "" {
		return false, ErrNoSlug
	}
	log := s.log.With().Str("slug", slug).Logger()
	resolver := NewResolver(s.cfg, doc.Path)

	urls := make(map[string]string)
	body := make(map[string]string)
	cover := ""
	for _, ref := range doc.References() {
		url, seen := urls[ref.Locator]
		if !seen {
			sum.References++
			var err error
			url, err = s.syncReference(ctx, run, resolver, slug, ref.Locator, sum)
			switch {
			case err == nil:
			case errors.Is(err, ErrIneligible):
				log.Debug().Str("locator", ref.Locator).Err(err).Msg("reference skipped")
			case errors.Is(err, ErrUnresolved):
				sum.Skipped++
				log.Warn().Str("locator", ref.Locator).Err(err).Msg("reference skipped, file not found")
			default:
				sum.Failed++
				log.Warn().Str("locator", ref.Locator).Err(err).Msg("reference failed")
			}
			urls[ref.Locator] = url
		}
		if url == "" || url == ref.Locator {
			continue
		}
		switch ref.Kind {
		case markdown.KindBody:
			body[ref.Locator] = url
		case markdown.KindFrontmatterImage:
			cover = url
		}
	}

	changed := false
	if len(body) > 0 {
		rewritten, n := markdown.RewriteImages(doc.Body(), body)
		if n > 0 {
			doc.SetBody(rewritten)
			changed = true
		}
	}
	if cover != "" {
		if err := doc.SetFrontMatterString(markdown.CoverImageKey, cover); err != nil {
			return false, fmt.Errorf("update cover image: %w", err)
		}
		changed = true
	}
	return changed, nil
}

// syncReference runs one locator through resolve, fetch, optimize and
// upload, returning the public URL.
func (s *Syncer) syncReference(ctx context.Context, run *RunContext, resolver *Resolver, slug, locator string, sum *RunSummary) (string, error) {
	res := resolver.Resolve(locator)
	switch res.Class {
	case SourceLocal:
		if !s.cfg.ProcessLocal {
			sum.Skipped++
			return "", fmt.Errorf("%w: local references not selected", ErrIneligible)
		}
		if !res.Found {
			return "", fmt.Errorf("%w: %s", ErrUnresolved, res.Path)
		}
	case SourceRemote:
		if !s.cfg.ProcessRemote {
			sum.Skipped++
			return "", fmt.Errorf("%w: remote references not selected", ErrIneligible)
		}
		if ok, reason := resolver.Eligible(res); !ok {
			sum.Skipped++
			return "", fmt.Errorf("%w: %s", ErrIneligible, reason)
		}
	}

	payload, err := s.fetcher.Fetch(ctx, res)
	if err != nil {
		return "", err
	}

	opt, err := Optimize(OptimizeInput{
		Data:        payload.Data,
		ContentType: payload.ContentType,
		Filename:    payload.Filename,
		Enabled:     s.cfg.OptimizeJPEG,
		Quality:     s.cfg.JPEGQuality,
		DryRun:      run.DryRun,
	}, OptimizeOptions{
		ConvertQuality: s.cfg.ConvertQuality,
		Threshold:      s.cfg.CompressThreshold,
	})
	if err != nil {
		return "", err
	}
	s.observer.RecordOptimization(opt)
	if opt.Converted {
		sum.Converted++
	}
	if opt.Optimized {
		sum.Optimized++
	}
	if s.cfg.OptimizeJPEG && !opt.Optimized && !run.DryRun && int64(opt.AfterBytes) < s.cfg.CompressThreshold {
		s.log.Debug().Str("slug", slug).Str("locator", locator).Int("bytes", opt.AfterBytes).Msg("below compression threshold")
	}

	up, err := s.uploader.Upload(ctx, run, AssetPayload{
		Data:        opt.Data,
		ContentType: opt.ContentType,
		Filename:    opt.Filename,
		Source:      payload.Source,
	}, slug)
	if err != nil {
		return "", err
	}
	switch {
	case up.Reused:
		sum.Reused++
	case up.Existing:
		sum.Skipped++
	default:
		if up.Uploaded {
			sum.Uploaded++
		}
		sum.BytesBefore += int64(opt.BeforeBytes)
		sum.BytesAfter += int64(opt.AfterBytes)
	}
	return up.URL, nil
}
