package blogsync

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *CheckReport {
	return &CheckReport{
		StartedAt: time.Now().Add(-time.Minute),
		Duration:  1500 * time.Millisecond,
		Results: []CheckResult{
			{Locator: "./a.png", Class: SourceLocal, Success: true, Size: 10 << 10, SizeKnown: true, UsedIn: []string{"post"}},
			{Locator: "https://x.example/<b>.png", Class: SourceRemote, Status: 404, ErrorClass: ErrorNotFound, Error: "HTTP 404 Not Found", UsedIn: []string{"post", "other"}},
		},
		Documents: []DocumentMetrics{
			{Slug: "post", TotalImages: 2, Successful: 1, Failed: 1, TotalSize: 10 << 10},
			{Slug: "other", TotalImages: 1, Failed: 1},
		},
		Summary: CheckSummary{Documents: 2, Total: 2, Successful: 1, Failed: 1, SuccessRate: 50, TotalSize: 10 << 10, SizedImages: 1, AvgImageSize: 10 << 10, AvgImagesPerDoc: 1.5, DocsWithSize: 1, AvgSizePerDoc: 10 << 10},
	}
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, sampleReport()))
	out := buf.String()

	assert.Contains(t, out, "Success rate: 50.0%")
	assert.Contains(t, out, "Average image size: 10 KiB (1 with size info)")
	assert.Contains(t, out, "Average images per document: 1.5")
	assert.Contains(t, out, "FAILED IMAGES")
	assert.Contains(t, out, "Used in: post, other")
	assert.Contains(t, out, "[WARN] post")
	assert.Contains(t, out, "[FAIL] other")
}

func TestWriteReportAllPassing(t *testing.T) {
	r := &CheckReport{Summary: CheckSummary{}}
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, r))
	assert.NotContains(t, buf.String(), "FAILED IMAGES")
	assert.Contains(t, buf.String(), "Average image size: n/a")
}

func TestWriteReportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReportJSON(&buf, sampleReport()))

	var decoded struct {
		Summary CheckSummary  `json:"summary"`
		Results []CheckResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 1, decoded.Summary.Failed)
	assert.Equal(t, ErrorNotFound, decoded.Results[1].ErrorClass)
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, RunSummary{
		RunID: "r1", DryRun: true, Documents: 3, UpdatedDocuments: 1, SkippedNoSlug: 1,
		References: 4, Uploaded: 2, Reused: 1, Failed: 1, Converted: 1, BytesBefore: 4096, BytesAfter: 2048,
	}))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "dry run r1"))
	assert.Contains(t, out, "3 seen, 1 updated, 1 without slug, 0 failed")
	assert.Contains(t, out, "4.0 KiB -> 2.0 KiB")
}
