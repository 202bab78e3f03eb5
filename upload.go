package blogsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ObjectStore is the upload destination. objstore.R2 implements it.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// UploadResult describes what Upload did for one payload.
type UploadResult struct {
	Key      UploadKey
	URL      string
	Uploaded bool // bytes were sent to the store
	Reused   bool // key already handled earlier in this run
	Existing bool // key found in the store or ledger from an earlier run
}

// Uploader pushes payloads to object storage at most once per key per run.
type Uploader struct {
	store         ObjectStore
	namespace     string
	publicBaseURL string
	skipExisting  bool
	ledger        *Ledger
	observer      Observer
	log           zerolog.Logger
}

// NewUploader returns an Uploader. store may be nil for dry runs.
func NewUploader(cfg Config, opts ...Option) *Uploader {
	o := newOptions(opts)
	return &Uploader{
		store:         o.store,
		namespace:     cfg.Namespace,
		publicBaseURL: cfg.PublicBaseURL,
		skipExisting:  cfg.SkipExisting,
		ledger:        o.ledger,
		observer:      o.observer,
		log:           o.log.With().Str("component", "uploader").Logger(),
	}
}

// Upload stores p under namespace/slug/filename and returns its public URL.
// A key already recorded in run is not uploaded again; its earlier URL is
// returned. Under a dry run nothing is sent but the key is still recorded.
func (u *Uploader) Upload(ctx context.Context, run *RunContext, p AssetPayload, slug string) (UploadResult, error) {
	key := UploadKeyFor(u.namespace, slug, p.Filename)
	if prev, ok := run.Lookup(key); ok {
		u.log.Debug().Str("key", string(key)).Msg("skipped, already uploaded in this run")
		return UploadResult{Key: key, URL: prev, Reused: true}, nil
	}

	url := PublicURL(u.publicBaseURL, key)
	res := UploadResult{Key: key, URL: url}
	if run.DryRun {
		run.Record(key, url)
		u.log.Info().Str("key", string(key)).Str("url", url).Int("bytes", len(p.Data)).Msg("dry run, would upload")
		return res, nil
	}
	if u.store == nil {
		return res, errors.New("no object store configured")
	}

	if u.skipExisting {
		exists, err := u.exists(ctx, key)
		if err != nil {
			u.log.Warn().Err(err).Str("key", string(key)).Msg("existence check failed, uploading anyway")
		} else if exists {
			run.Record(key, url)
			res.Existing = true
			u.log.Info().Str("key", string(key)).Msg("skipped, already in storage")
			return res, nil
		}
	}

	start := time.Now()
	err := u.store.Put(ctx, string(key), p.Data, p.ContentType)
	u.observer.RecordUpload(time.Since(start), len(p.Data), err)
	if err != nil {
		return res, fmt.Errorf("upload %s: %w", key, err)
	}
	run.Record(key, url)
	res.Uploaded = true

	if u.ledger != nil {
		if err := u.ledger.RecordUpload(ctx, run.ID, slug, key, url, p.ContentType, len(p.Data)); err != nil {
			u.log.Warn().Err(err).Str("key", string(key)).Msg("ledger write failed")
		}
	}
	u.log.Info().Str("key", string(key)).Str("url", url).Int("bytes", len(p.Data)).Msg("uploaded")
	return res, nil
}

func (u *Uploader) exists(ctx context.Context, key UploadKey) (bool, error) {
	if u.ledger != nil {
		ok, err := u.ledger.HasUpload(ctx, key)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return u.store.Exists(ctx, string(key))
}
