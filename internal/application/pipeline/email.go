package pipeline

import (
	"bytes"
	htmltemplate "html/template"
	"strconv"
	texttemplate "text/template"

	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
)

// SubjectPrefix starts every stakeholder email subject.
const SubjectPrefix = "SOC 2 Report Analysis: "

type emailView struct {
	Document string
	Result   report.AnalysisResult
	Rating   string
	Link     string
}

var emailFuncs = map[string]any{
	"marker": func(c report.Control) string {
		if c.Compliant() {
			return "✅"
		}
		return "❌"
	},
}

var htmlEmail = htmltemplate.Must(htmltemplate.New("email.html").Funcs(emailFuncs).Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
<h1>SOC 2 Report Analysis</h1>
<p><strong>Report:</strong> {{.Document}}</p>
<h2>Summary</h2>
<p>{{.Result.Summary}}</p>
<p><strong>Quality rating:</strong> {{.Rating}}/10</p>
<h2>Scope</h2>
<p>{{.Result.Scope}}</p>
<h2>Controls</h2>
<ul>
{{- range .Result.Controls}}
<li>{{marker .}} {{.Name}} ({{.Status}})</li>
{{- else}}
<li>No controls reported.</li>
{{- end}}
</ul>
<h2>CIS Controls mapping</h2>
{{template "mapping" .Result.CISMapping}}
<h2>OWASP Top 10 mapping</h2>
{{template "mapping" .Result.OWASPMapping}}
<h2>Gaps</h2>
<ul>
{{- range .Result.Gaps}}
<li>{{.}}</li>
{{- else}}
<li>No gaps identified.</li>
{{- end}}
</ul>
{{- if .Link}}
<p><a href="{{.Link}}">Download the full analysis</a></p>
{{- end}}
</body>
</html>
{{define "mapping"}}<p>Mapped:</p>
<ul>
{{- range .Mapped}}
<li>{{.}}</li>
{{- else}}
<li>None</li>
{{- end}}
</ul>
<p>Gaps:</p>
<ul>
{{- range .Gaps}}
<li>{{.}}</li>
{{- else}}
<li>None</li>
{{- end}}
</ul>{{end}}`))

var textEmail = texttemplate.Must(texttemplate.New("email.txt").Funcs(emailFuncs).Parse(`SOC 2 Report Analysis
Report: {{.Document}}

Summary
{{.Result.Summary}}

Quality rating: {{.Rating}}/10

Scope
{{.Result.Scope}}

Controls
{{range .Result.Controls}}{{marker .}} {{.Name}} ({{.Status}})
{{end}}
CIS Controls mapped: {{range $i, $m := .Result.CISMapping.Mapped}}{{if $i}}, {{end}}{{$m}}{{end}}
CIS Controls gaps: {{range $i, $m := .Result.CISMapping.Gaps}}{{if $i}}, {{end}}{{$m}}{{end}}
OWASP Top 10 mapped: {{range $i, $m := .Result.OWASPMapping.Mapped}}{{if $i}}, {{end}}{{$m}}{{end}}
OWASP Top 10 gaps: {{range $i, $m := .Result.OWASPMapping.Gaps}}{{if $i}}, {{end}}{{$m}}{{end}}

Gaps
{{range .Result.Gaps}}- {{.}}
{{end}}{{if .Link}}
Full analysis: {{.Link}}
{{end}}`))

// FormatRating prints whole ratings without a fraction, others with one digit.
func FormatRating(r float64) string {
	if r == float64(int64(r)) {
		return strconv.FormatInt(int64(r), 10)
	}
	return strconv.FormatFloat(r, 'f', 1, 64)
}

// RenderNotification builds the stakeholder email. Output depends only on
// its arguments.
func RenderNotification(to, document string, result report.AnalysisResult, link string) (report.Notification, error) {
	view := emailView{Document: document, Result: result, Rating: FormatRating(result.QualityRating), Link: link}
	var html, text bytes.Buffer
	if err := htmlEmail.Execute(&html, view); err != nil {
		return report.Notification{}, err
	}
	if err := textEmail.Execute(&text, view); err != nil {
		return report.Notification{}, err
	}
	return report.Notification{
		To:       to,
		Subject:  SubjectPrefix + document,
		HTMLBody: html.String(),
		TextBody: text.String(),
	}, nil
}

var alertEmail = htmltemplate.Must(htmltemplate.New("alert.html").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
<h1>SOC 2 report analysis failed</h1>
<table>
<tr><td><strong>Run</strong></td><td>{{.RunID}}</td></tr>
<tr><td><strong>Object</strong></td><td>{{.Bucket}}/{{.Key}}</td></tr>
<tr><td><strong>Stage</strong></td><td>{{.Stage}}</td></tr>
<tr><td><strong>Error</strong></td><td>{{.Kind}}</td></tr>
<tr><td><strong>Message</strong></td><td>{{.Message}}</td></tr>
</table>
</body>
</html>`))

// RenderAlert builds the operator email for a failed run.
func RenderAlert(to string, out Outcome) (report.Notification, error) {
	var html bytes.Buffer
	if err := alertEmail.Execute(&html, out); err != nil {
		return report.Notification{}, err
	}
	text := "SOC 2 report analysis failed\n" +
		"Run: " + out.RunID + "\n" +
		"Object: " + out.Bucket + "/" + out.Key + "\n" +
		"Stage: " + string(out.Stage) + "\n" +
		"Error: " + string(out.Kind) + "\n" +
		"Message: " + out.Message + "\n"
	return report.Notification{
		To:       to,
		Subject:  "SOC 2 Report Analysis failed: " + out.Request().DocumentName(),
		HTMLBody: html.String(),
		TextBody: text,
	}, nil
}
