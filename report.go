package blogsync

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
)

var rule = strings.Repeat("=", 80)

// WriteReport prints a check report in the human-readable layout.
func WriteReport(w io.Writer, r *CheckReport) error {
	p := &printer{w: w}
	s := r.Summary

	p.printf("Checked %d image reference(s) across %d document(s) in %s\n\n", s.Total, s.Documents, r.Duration.Round(1e6))
	p.printf("%s\n\nOVERALL STATISTICS\n\n", rule)
	p.printf("Successful:   %d image(s)\n", s.Successful)
	p.printf("Failed:       %d image(s)\n", s.Failed)
	p.printf("Success rate: %.1f%%\n\n", s.SuccessRate)
	p.printf("Total size:   %s\n", humanize.IBytes(uint64(s.TotalSize)))
	if s.SizedImages > 0 {
		p.printf("Average image size: %s (%d with size info)\n", humanize.IBytes(uint64(s.AvgImageSize)), s.SizedImages)
	} else {
		p.printf("Average image size: n/a (size info not available)\n")
	}
	p.printf("Average images per document: %.1f\n", s.AvgImagesPerDoc)
	if s.DocsWithSize > 0 {
		p.printf("Average data per document: %s (%d documents with images)\n", humanize.IBytes(uint64(s.AvgSizePerDoc)), s.DocsWithSize)
	} else {
		p.printf("Average data per document: n/a\n")
	}

	if failures := r.Failures(); len(failures) > 0 {
		p.printf("\n%s\n\nFAILED IMAGES\n\n", rule)
		for _, f := range failures {
			p.printf("  %s\n", f.Locator)
			p.printf("  Error:   %s (%s)\n", f.Error, f.ErrorClass)
			p.printf("  Used in: %s\n\n", strings.Join(f.UsedIn, ", "))
		}
	}

	p.printf("\n%s\n\nDOCUMENT BREAKDOWN\n\n", rule)
	for _, d := range r.Documents {
		status := "ok  "
		switch {
		case d.Failed > 0 && d.Failed == d.TotalImages:
			status = "FAIL"
		case d.Failed > 0:
			status = "WARN"
		}
		p.printf("[%s] %s\n", status, d.Slug)
		p.printf("  Images: %d/%d successful\n", d.Successful, d.TotalImages)
		p.printf("  Size:   %s\n", humanize.IBytes(uint64(d.TotalSize)))
		if d.Failed > 0 {
			p.printf("  %d failed\n", d.Failed)
		}
		p.printf("\n")
	}
	p.printf("%s\n", rule)
	return p.err
}

// WriteReportJSON writes r as indented JSON.
func WriteReportJSON(w io.Writer, r *CheckReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteSummary prints the totals of a sync run.
func WriteSummary(w io.Writer, s RunSummary) error {
	p := &printer{w: w}
	mode := "sync"
	if s.DryRun {
		mode = "dry run"
	}
	p.printf("%s %s finished in %s\n", mode, s.RunID, s.Duration.Round(1e6))
	p.printf("  documents: %d seen, %d updated, %d without slug, %d failed\n",
		s.Documents, s.UpdatedDocuments, s.SkippedNoSlug, s.FailedDocuments)
	p.printf("  images:    %d references, %d uploaded, %d reused, %d skipped, %d failed\n",
		s.References, s.Uploaded, s.Reused, s.Skipped, s.Failed)
	p.printf("  optimizer: %d converted, %d recompressed", s.Converted, s.Optimized)
	if s.BytesBefore > 0 {
		p.printf(", %s -> %s", humanize.IBytes(uint64(s.BytesBefore)), humanize.IBytes(uint64(s.BytesAfter)))
	}
	p.printf("\n")
	return p.err
}

// printer remembers the first write error so callers check once.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
