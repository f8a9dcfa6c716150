package manager

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/teemow/housemgr/internal/handler"
)

const reportDateLayout = "Mon, 02 Jan 2006 15:04"

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"date": formatDate,
}).Parse(`<html>
<body>
<p>{{len .Messages}} unread message(s) handled on {{date .Started}}.</p>
<table>
<tr><th>From</th><th>Subject</th><th>Date</th><th>Attachments</th></tr>
{{- range .Messages}}
<tr><td>{{.From}}</td><td>{{.Subject}}</td><td>{{date .Date}}</td><td>{{len .Attachments}}</td></tr>
{{- end}}
</table>
</body>
</html>
`))

type reportData struct {
	Started  time.Time
	Messages []handler.MessageSummary
}

// renderReport returns the HTML and plain text bodies of a pass report.
func renderReport(summary *handler.ReadSummary, started time.Time) (string, string, error) {
	data := reportData{Started: started, Messages: summary.Messages}

	var html strings.Builder
	if err := reportTemplate.Execute(&html, data); err != nil {
		return "", "", fmt.Errorf("failed to render report: %w", err)
	}

	var plain strings.Builder
	fmt.Fprintf(&plain, "%d unread message(s) handled on %s.\n\n", len(data.Messages), formatDate(started))
	for _, ms := range data.Messages {
		fmt.Fprintf(&plain, "- %s: %s (%s)\n", ms.From, ms.Subject, formatDate(ms.Date))
	}
	return html.String(), plain.String(), nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(reportDateLayout)
}
