package report

import (
	"path"
	"strings"
)

// DocumentExt is the only extension the pipeline accepts.
const DocumentExt = ".pdf"

// AnalysisSuffix replaces the document extension to form the artifact key.
const AnalysisSuffix = " - AI Analysis.json"

// AnalysisRequest points at the uploaded document. Built once per invocation.
type AnalysisRequest struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// DocumentName is the base name of the key, used in the email subject.
func (r AnalysisRequest) DocumentName() string {
	return path.Base(r.Key)
}

// ExtractionMode tells which OCR strategy produced a document.
type ExtractionMode string

const (
	ModeSync  ExtractionMode = "sync"
	ModeAsync ExtractionMode = "async"
)

// ExtractedDocument holds OCR lines in the order the service emitted them.
type ExtractedDocument struct {
	Lines []string
	Pages int
	Mode  ExtractionMode
}

// Text joins the lines, terminating every line with a newline.
func (d ExtractedDocument) Text() string {
	var b strings.Builder
	for _, l := range d.Lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

// Control is one audited safeguard and its compliance status.
type Control struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Compliant reports whether the status reads as compliant.
func (c Control) Compliant() bool {
	s := strings.ToLower(strings.TrimSpace(c.Status))
	return s == "compliant" || s == "pass" || s == "passed" || s == "effective"
}

// FrameworkMapping splits a control catalog into covered and missing items.
type FrameworkMapping struct {
	Mapped []string `json:"mapped"`
	Gaps   []string `json:"gaps"`
}

// AnalysisResult is the validated assessment written to storage.
// Field order matches the persisted JSON.
type AnalysisResult struct {
	Scope         string           `json:"scope"`
	Controls      []Control        `json:"controls"`
	CISMapping    FrameworkMapping `json:"cis_mapping"`
	OWASPMapping  FrameworkMapping `json:"owasp_mapping"`
	Gaps          []string         `json:"gaps"`
	Summary       string           `json:"summary"`
	QualityRating float64          `json:"quality_rating"`
}

const (
	MinQualityRating = 0
	MaxQualityRating = 10
)

// ObjectInfo is the metadata a store reports for an object.
type ObjectInfo struct {
	Size        int64
	ContentType string
}

// Notification is a rendered email, ephemeral.
type Notification struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}
