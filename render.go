package blogsync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

const pageStyle = `body{font-family:system-ui,sans-serif;max-width:960px;margin:2rem auto;padding:0 1rem;color:#222}
table{border-collapse:collapse;width:100%;margin:1rem 0}th,td{text-align:left;padding:.35rem .5rem;border-bottom:1px solid #ddd}
.ok{color:#1a7f37}.fail{color:#cf222e}.warn{color:#9a6700}code{word-break:break-all}`

func page(title string, body func(w io.Writer) error) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, "<!doctype html><html lang=\"en\"><head><meta charset=\"utf-8\"><title>%s</title><style>%s</style></head><body>",
			templ.EscapeString(title), pageStyle); err != nil {
			return err
		}
		if err := body(w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}

func emptyReportPage() templ.Component {
	return page("Image reachability", func(w io.Writer) error {
		_, err := io.WriteString(w, "<h1>Image reachability</h1><p>No check has completed yet.</p>")
		return err
	})
}

func reportPage(r *CheckReport) templ.Component {
	return page("Image reachability", func(w io.Writer) error {
		p := &printer{w: w}
		s := r.Summary
		cls := "ok"
		if s.Failed > 0 {
			cls = "fail"
		}
		p.printf("<h1>Image reachability</h1>")
		p.printf("<p>Checked %s, took %s.</p>", templ.EscapeString(humanize.Time(r.StartedAt)), r.Duration.Round(1e6))
		p.printf("<p class=\"%s\"><strong>%d/%d reachable (%.1f%%)</strong></p>", cls, s.Successful, s.Total, s.SuccessRate)
		p.printf("<table><tr><th>Total size</th><td>%s</td></tr>", humanize.IBytes(uint64(s.TotalSize)))
		p.printf("<tr><th>Average image size</th><td>%s</td></tr>", humanize.IBytes(uint64(s.AvgImageSize)))
		p.printf("<tr><th>Average images per document</th><td>%.1f</td></tr></table>", s.AvgImagesPerDoc)

		if failures := r.Failures(); len(failures) > 0 {
			p.printf("<h2>Failed images</h2><table><tr><th>Locator</th><th>Error</th><th>Used in</th></tr>")
			for _, f := range failures {
				p.printf("<tr><td><code>%s</code></td><td class=\"fail\">%s</td><td>%s</td></tr>",
					templ.EscapeString(f.Locator), templ.EscapeString(f.Error), templ.EscapeString(strings.Join(f.UsedIn, ", ")))
			}
			p.printf("</table>")
		}

		if len(r.Documents) > 0 {
			p.printf("<h2>Documents</h2><table><tr><th>Slug</th><th>Images</th><th>Size</th></tr>")
			for _, d := range r.Documents {
				cls := "ok"
				switch {
				case d.Failed > 0 && d.Failed == d.TotalImages:
					cls = "fail"
				case d.Failed > 0:
					cls = "warn"
				}
				p.printf("<tr><td>%s</td><td class=\"%s\">%d/%d</td><td>%s</td></tr>",
					templ.EscapeString(d.Slug), cls, d.Successful, d.TotalImages, humanize.IBytes(uint64(d.TotalSize)))
			}
			p.printf("</table>")
		}
		return p.err
	})
}
