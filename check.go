package blogsync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/blogsync/markdown"
)

// Checker audits whether every image reference in a set of documents can
// currently be read. It never modifies content.
type Checker struct {
	cfg         Config
	client      *http.Client
	timeout     time.Duration
	concurrency int
	observer    Observer
	ledger      *Ledger
	log         zerolog.Logger
}

// NewChecker returns a Checker.
func NewChecker(cfg Config, opts ...Option) *Checker {
	cfg.setDefaults()
	o := newOptions(opts)
	return &Checker{
		cfg:         cfg,
		client:      o.client,
		timeout:     cfg.CheckTimeout,
		concurrency: cfg.CheckConcurrency,
		observer:    o.observer,
		ledger:      o.ledger,
		log:         o.log.With().Str("component", "checker").Logger(),
	}
}

// checkTarget is one distinct locator and the documents using it.
type checkTarget struct {
	locator string
	docPath string // first document using it, for relative resolution
	usedIn  []string
}

// Check resolves and tests every distinct reference across docs
// concurrently, then aggregates per-document and overall statistics.
func (c *Checker) Check(ctx context.Context, docs []*markdown.Document) *CheckReport {
	start := time.Now()
	report := &CheckReport{StartedAt: start.UTC()}

	targets, byLocator := collectTargets(docs)
	results := make([]CheckResult, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}
	for i, t := range targets {
		g.Go(func() error {
			res := c.checkOne(gctx, t)
			c.observer.RecordCheck(res)
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	report.Results = results
	report.Documents = documentMetrics(docs, results, byLocator)
	report.Summary = summarize(docs, results, report.Documents)
	report.Duration = time.Since(start)

	for _, res := range report.Failures() {
		c.log.Warn().
			Str("locator", res.Locator).
			Strs("used_in", res.UsedIn).
			Str("error_class", string(res.ErrorClass)).
			Str("err", res.Error).
			Msg("unreachable image")
	}
	c.log.Info().
		Int("total", report.Summary.Total).
		Int("failed", report.Summary.Failed).
		Dur("duration", report.Duration).
		Msg("reachability check complete")

	if c.ledger != nil {
		c.persist(ctx, report)
	}
	return report
}

// persist records report even when ctx was cancelled during the check.
func (c *Checker) persist(ctx context.Context, report *CheckReport) {
	ctx = context.WithoutCancel(ctx)
	id := uuid.NewString()
	if err := c.ledger.BeginRun(ctx, id, RunKindCheck, false, report.StartedAt); err != nil {
		c.log.Warn().Err(err).Msg("ledger write failed")
		return
	}
	if err := c.ledger.SaveCheckReport(ctx, id, report); err != nil {
		c.log.Warn().Err(err).Msg("ledger write failed")
	}
	if err := c.ledger.FinishRun(ctx, id, report.StartedAt.Add(report.Duration), report.Summary); err != nil {
		c.log.Warn().Err(err).Msg("ledger write failed")
	}
}

func (c *Checker) checkOne(ctx context.Context, t checkTarget) CheckResult {
	res := NewResolver(c.cfg, t.docPath).Resolve(t.locator)
	out := CheckResult{
		Locator: t.locator,
		Class:   res.Class,
		Target:  res.Target(),
		UsedIn:  t.usedIn,
	}
	start := time.Now()
	if res.Class == SourceRemote {
		c.headRemote(ctx, res.URL, &out)
	} else {
		statLocal(res.Path, &out)
	}
	out.Duration = time.Since(start)
	return out
}

func statLocal(path string, out *CheckResult) {
	info, err := os.Stat(path)
	switch {
	case err == nil && !info.IsDir():
		out.Success = true
		out.Exists = true
		out.Size = info.Size()
		out.SizeKnown = true
	case err == nil, errors.Is(err, fs.ErrNotExist):
		out.ErrorClass = ErrorNotFound
		out.Error = "file not found"
	default:
		out.ErrorClass = ErrorNetwork
		out.Error = err.Error()
	}
}

func (c *Checker) headRemote(ctx context.Context, url string, out *CheckResult) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		out.ErrorClass = ErrorNetwork
		out.Error = err.Error()
		return
	}
	resp, err := c.client.Do(req)
	if err != nil {
		out.ErrorClass = classifyCheckError(err)
		if out.ErrorClass == ErrorTimeout {
			out.Error = "timeout"
		} else {
			out.Error = err.Error()
		}
		return
	}
	resp.Body.Close()

	out.Status = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		out.ErrorClass = ErrorHTTPStatus
		if resp.StatusCode == http.StatusNotFound {
			out.ErrorClass = ErrorNotFound
		}
		out.Error = fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		return
	}
	out.Success = true
	out.ContentType = resp.Header.Get("Content-Type")
	if resp.ContentLength > 0 {
		out.Size = resp.ContentLength
		out.SizeKnown = true
	}
}

// collectTargets returns distinct locators in first-seen order.
func collectTargets(docs []*markdown.Document) ([]checkTarget, map[string]int) {
	var targets []checkTarget
	index := make(map[string]int)
	for _, d := range docs {
		name := documentName(d)
		for _, ref := range d.References() {
			i, ok := index[ref.Locator]
			if !ok {
				i = len(targets)
				index[ref.Locator] = i
				targets = append(targets, checkTarget{locator: ref.Locator, docPath: d.Path})
			}
			if !containsString(targets[i].usedIn, name) {
				targets[i].usedIn = append(targets[i].usedIn, name)
			}
		}
	}
	return targets, index
}

// documentName is the slug, or the file base name when there is none.
func documentName(d *markdown.Document) string {
	if s := d.Slug(); s != "" {
		return s
	}
	base := filepath.Base(d.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func documentMetrics(docs []*markdown.Document, results []CheckResult, index map[string]int) []DocumentMetrics {
	out := make([]DocumentMetrics, 0, len(docs))
	for _, d := range docs {
		m := DocumentMetrics{Slug: documentName(d), Path: d.Path}
		for _, ref := range d.References() {
			i, ok := index[ref.Locator]
			if !ok {
				continue
			}
			m.TotalImages++
			if results[i].Success {
				m.Successful++
				m.TotalSize += results[i].Size
			} else {
				m.Failed++
			}
		}
		out = append(out, m)
	}
	sortDocumentMetrics(out)
	return out
}

// metricsFromResults rebuilds per-document metrics from the UsedIn lists of
// stored results. Documents without references do not appear.
func metricsFromResults(results []CheckResult) []DocumentMetrics {
	var out []DocumentMetrics
	index := make(map[string]int)
	for _, r := range results {
		for _, name := range r.UsedIn {
			i, ok := index[name]
			if !ok {
				i = len(out)
				index[name] = i
				out = append(out, DocumentMetrics{Slug: name})
			}
			m := &out[i]
			m.TotalImages++
			if r.Success {
				m.Successful++
				m.TotalSize += r.Size
			} else {
				m.Failed++
			}
		}
	}
	sortDocumentMetrics(out)
	return out
}

func sortDocumentMetrics(m []DocumentMetrics) {
	sort.SliceStable(m, func(i, j int) bool {
		return m[i].TotalImages > m[j].TotalImages
	})
}

func summarize(docs []*markdown.Document, results []CheckResult, metrics []DocumentMetrics) CheckSummary {
	s := CheckSummary{Documents: len(docs), Total: len(results)}
	var sizedTotal int64
	for _, r := range results {
		if !r.Success {
			s.Failed++
			continue
		}
		s.Successful++
		s.TotalSize += r.Size
		if r.SizeKnown && r.Size > 0 {
			s.SizedImages++
			sizedTotal += r.Size
		}
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Successful) / float64(s.Total) * 100
	}
	if s.SizedImages > 0 {
		s.AvgImageSize = float64(sizedTotal) / float64(s.SizedImages)
	}
	if len(docs) > 0 {
		refs := 0
		for _, d := range docs {
			refs += len(d.References())
		}
		s.AvgImagesPerDoc = float64(refs) / float64(len(docs))
	}
	var docSize int64
	for _, m := range metrics {
		if m.TotalSize > 0 {
			s.DocsWithSize++
			docSize += m.TotalSize
		}
	}
	if s.DocsWithSize > 0 {
		s.AvgSizePerDoc = float64(docSize) / float64(s.DocsWithSize)
	}
	return s
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ListDocuments returns the .mdx and .md files directly inside dir, in
// name order.
func ListDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read content dir %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".mdx", ".md":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}

// ReadDocument loads and parses one document.
func ReadDocument(path string) (*markdown.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return markdown.ParseDocument(path, data)
}

// LoadDocuments parses every document in dir. Files that fail to parse
// are left out and their errors joined into the returned error, alongside
// the documents that did parse.
func LoadDocuments(dir string) ([]*markdown.Document, error) {
	paths, err := ListDocuments(dir)
	if err != nil {
		return nil, err
	}
	var (
		docs []*markdown.Document
		errs []error
	)
	for _, p := range paths {
		doc, err := ReadDocument(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, errors.Join(errs...)
}
