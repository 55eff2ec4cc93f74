// Package report renders run results as console output, a JSON artifact,
// and a static HTML page, and serves the artifacts over HTTP.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/breeze-rmm/docverify/internal/model"
)

// PrintSummary writes the human-readable run summary to w.
func PrintSummary(w io.Writer, report *model.RunReport) {
	fmt.Fprintf(w, "\nRun %s\n", report.RunID)
	fmt.Fprintf(w, "  total:   %d\n", report.Total)
	fmt.Fprintf(w, "  passed:  %d\n", report.Passed)
	fmt.Fprintf(w, "  failed:  %d\n", report.Failed)
	fmt.Fprintf(w, "  skipped: %d\n", report.Skipped)
	fmt.Fprintf(w, "  errors:  %d\n", report.Errors)
	fmt.Fprintf(w, "  pass rate: %.1f%%\n", report.PassRate()*100)

	for _, res := range report.Results {
		if res.Status == model.StatusFail || res.Status == model.StatusError {
			fmt.Fprintf(w, "\n  [%s] %s (%s)\n    %s\n    %s\n",
				res.Status, res.ID, res.Kind, res.Claim, res.Reason)
		}
	}
	fmt.Fprintln(w)
}

// SaveJSON writes the report as indented JSON, atomically.
func SaveJSON(path string, report *model.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return eris.Wrap(err, "report: marshal json")
	}
	if err := writeAtomic(path, data); err != nil {
		return eris.Wrap(err, "report: write json")
	}
	zap.L().Info("report saved", zap.String("path", path))
	return nil
}

// SaveHTML renders the report as a self-contained HTML page, atomically.
func SaveHTML(path string, report *model.RunReport) error {
	data, err := renderHTML(report)
	if err != nil {
		return err
	}
	if err := writeAtomic(path, data); err != nil {
		return eris.Wrap(err, "report: write html")
	}
	zap.L().Info("report saved", zap.String("path", path))
	return nil
}

func renderHTML(report *model.RunReport) ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, report); err != nil {
		return nil, eris.Wrap(err, "report: render html")
	}
	return buf.Bytes(), nil
}

// writeAtomic writes via a temp file in the target directory plus rename,
// so readers never observe a half-written artifact.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"pct": func(rate float64) string { return fmt.Sprintf("%.1f", rate*100) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Documentation conformance report</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 64rem; color: #1a1a2e; }
h1 { font-size: 1.4rem; }
.meta { color: #666; font-size: 0.9rem; }
.counters span { display: inline-block; margin-right: 1.5rem; font-weight: 600; }
table { border-collapse: collapse; width: 100%; margin-top: 1.5rem; }
th, td { text-align: left; padding: 0.4rem 0.6rem; border-bottom: 1px solid #ddd; font-size: 0.9rem; }
.pass { color: #1a7f37; }
.fail { color: #cf222e; }
.skip { color: #9a6700; }
.error { color: #8250df; }
.reason { color: #666; font-size: 0.85rem; }
</style>
</head>
<body>
<h1>Documentation conformance report</h1>
<p class="meta">Run {{.RunID}} &middot; started {{.StartedAt.Format "2006-01-02 15:04:05 MST"}}</p>
<p class="counters">
<span class="pass">{{.Passed}} passed</span>
<span class="fail">{{.Failed}} failed</span>
<span class="skip">{{.Skipped}} skipped</span>
<span class="error">{{.Errors}} errors</span>
<span>{{pct .PassRate}}% pass rate</span>
</p>
<table>
<tr><th>ID</th><th>Kind</th><th>Status</th><th>Claim</th><th>Duration</th></tr>
{{range .Results}}
<tr>
<td>{{.ID}}</td>
<td>{{.Kind}}</td>
<td class="{{.Status}}">{{.Status}}</td>
<td>{{.Claim}}{{if .Reason}}<div class="reason">{{.Reason}}</div>{{end}}</td>
<td>{{.DurationMs}}ms</td>
</tr>
{{end}}
</table>
</body>
</html>
`))
