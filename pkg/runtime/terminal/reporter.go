package terminal

import (
	"fmt"
	"io"
	"os"
	"text/template"

	"github.com/de-tools/compliance-atlas/pkg/models/api"
)

// Reporter outputs assessment summaries to the console in a formatted
// text form
type Reporter struct {
	writer io.Writer
}

// NewReporter creates a new console reporter
func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{writer: writer}
}

func (c *Reporter) Handle(assessment api.Assessment) error {
	tmpl := `
Assessment {{.ID}} ({{.Module}})
Status: {{.Status}}
Units: {{.CompletedUnits}}/{{.TotalUnits}}
Findings: {{.Counts.Total}} total ({{.Counts.High}} high, {{.Counts.Medium}} medium, {{.Counts.Low}} low)
Score: {{.Score}}
{{- if .ErrorMessage}}
Error: {{.ErrorMessage}}
{{- end}}
{{range .ModuleResults}}
=== {{.SubscriptionName}} ({{.SubscriptionID}}) ===
Status: {{.Status}}
Findings: {{.Counts.Total}} total ({{.Counts.High}} high, {{.Counts.Medium}} medium, {{.Counts.Low}} low)
Score: {{.Score}}
{{- if .ErrorMessage}}
Error: {{.ErrorMessage}}
{{- end}}
{{end}}
`
	t, err := template.New("summary").Parse(tmpl)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	return t.Execute(c.writer, assessment)
}
