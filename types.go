package blogsync

import (
	"time"

	"github.com/eringen/blogsync/markdown"
)

// SourceClass says whether a locator is read from disk or fetched over HTTP.
type SourceClass string

const (
	SourceLocal  SourceClass = "local"
	SourceRemote SourceClass = "remote"
)

// ImageReference is one locator extracted from a document.
type ImageReference struct {
	Locator     string
	Kind        markdown.RefKind
	SourceClass SourceClass
}

// AssetPayload is the resolved content of a reference.
type AssetPayload struct {
	Data        []byte
	ContentType string
	Filename    string
	Source      string // filesystem path or URL it was read from
}

// UploadKey is the storage key namespace/slug/sanitizedFilename.
type UploadKey string

// OptimizationResult is what the optimizer did to a payload.
type OptimizationResult struct {
	Data        []byte
	ContentType string
	Filename    string
	Converted   bool // PNG transcoded to JPEG
	Optimized   bool // JPEG recompressed
	BeforeBytes int
	AfterBytes  int
	Width       int
	Height      int
}

// ErrorClass categorizes a failed reachability check.
type ErrorClass string

const (
	ErrorNone       ErrorClass = ""
	ErrorNotFound   ErrorClass = "not_found"
	ErrorHTTPStatus ErrorClass = "http_status"
	ErrorTimeout    ErrorClass = "timeout"
	ErrorNetwork    ErrorClass = "network"
)

// CheckResult is the reachability verdict for one distinct locator.
type CheckResult struct {
	Locator     string        `json:"locator"`
	Class       SourceClass   `json:"class"`
	Target      string        `json:"target"` // resolved path or URL
	Success     bool          `json:"success"`
	Status      int           `json:"status,omitempty"`
	Exists      bool          `json:"exists,omitempty"`
	Size        int64         `json:"size"`
	SizeKnown   bool          `json:"sizeKnown"`
	ContentType string        `json:"contentType,omitempty"`
	Duration    time.Duration `json:"duration"`
	ErrorClass  ErrorClass    `json:"errorClass,omitempty"`
	Error       string        `json:"error,omitempty"`
	UsedIn      []string      `json:"usedIn"`
}

// DocumentMetrics aggregates check results for one document.
type DocumentMetrics struct {
	Slug        string `json:"slug"`
	Path        string `json:"path"`
	TotalImages int    `json:"totalImages"`
	Successful  int    `json:"successful"`
	Failed      int    `json:"failed"`
	TotalSize   int64  `json:"totalSize"`
}

// CheckSummary holds run-wide reachability statistics.
type CheckSummary struct {
	Documents       int     `json:"documents"`
	Total           int     `json:"total"`
	Successful      int     `json:"successful"`
	Failed          int     `json:"failed"`
	SuccessRate     float64 `json:"successRate"` // percent
	TotalSize       int64   `json:"totalSize"`
	SizedImages     int     `json:"sizedImages"`
	AvgImageSize    float64 `json:"avgImageSize"`
	AvgImagesPerDoc float64 `json:"avgImagesPerDoc"`
	DocsWithSize    int     `json:"docsWithSize"`
	AvgSizePerDoc   float64 `json:"avgSizePerDoc"`
}

// CheckReport is the output of a reachability run.
type CheckReport struct {
	StartedAt time.Time         `json:"startedAt"`
	Duration  time.Duration     `json:"duration"`
	Results   []CheckResult     `json:"results"`
	Documents []DocumentMetrics `json:"documents"`
	Summary   CheckSummary      `json:"summary"`
}

// OK reports whether every reference was reachable.
func (r *CheckReport) OK() bool {
	return r.Summary.Failed == 0
}

// Failures returns the unsuccessful results in report order.
func (r *CheckReport) Failures() []CheckResult {
	var out []CheckResult
	for _, res := range r.Results {
		if !res.Success {
			out = append(out, res)
		}
	}
	return out
}

// RunSummary totals one sync run.
type RunSummary struct {
	RunID            string        `json:"runId"`
	DryRun           bool          `json:"dryRun"`
	Documents        int           `json:"documents"`
	SkippedNoSlug    int           `json:"skippedNoSlug"`
	UpdatedDocuments int           `json:"updatedDocuments"`
	FailedDocuments  int           `json:"failedDocuments"`
	References       int           `json:"references"`
	Uploaded         int           `json:"uploaded"`
	Reused           int           `json:"reused"`
	Skipped          int           `json:"skipped"`
	Failed           int           `json:"failed"`
	Converted        int           `json:"converted"`
	Optimized        int           `json:"optimized"`
	BytesBefore      int64         `json:"bytesBefore"`
	BytesAfter       int64         `json:"bytesAfter"`
	Duration         time.Duration `json:"duration"`
}
