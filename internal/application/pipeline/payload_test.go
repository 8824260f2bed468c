package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
)

func TestIsolateJSON(t *testing.T) {
	tests := []struct {
		name       string
		completion string
		want       string
		wantErr    bool
	}{
		{name: "whole", completion: ` {"a":1} `, want: `{"a":1}`},
		{name: "fenced", completion: "Here you go:\n```json\n{\"a\": [1, 2]}\n```\nThanks", want: `{"a": [1, 2]}`},
		{name: "bare fence", completion: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "prose around", completion: `The analysis is {"a":{"b":"}"}} as requested.`, want: `{"a":{"b":"}"}}`},
		{name: "escaped quote", completion: `x {"a":"say \"{hi}\""} y`, want: `{"a":"say \"{hi}\""}`},
		{name: "skips invalid candidate", completion: `{not json} then {"ok":true}`, want: `{"ok":true}`},
		{name: "empty", completion: "  ", wantErr: true},
		{name: "no object", completion: "I cannot analyze this report.", wantErr: true},
		{name: "unbalanced", completion: `{"a": 1`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsolateJSON(tt.completion)
			if tt.wantErr {
				if !errors.Is(err, ErrNoJSONObject) {
					t.Fatalf("IsolateJSON() error = %v, want ErrNoJSONObject", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("IsolateJSON() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("IsolateJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseAnalysis_Valid(t *testing.T) {
	got, err := ParseAnalysis("Sure!\n```json\n" + validCompletion + "\n```")
	if err != nil {
		t.Fatalf("ParseAnalysis: %v", err)
	}
	want := report.AnalysisResult{
		Scope: "Acme Cloud platform, Type 2, Jan-Dec 2024, Security and Availability",
		Controls: []report.Control{
			{Name: "CC6.1 Logical access", Status: "Compliant"},
			{Name: "CC7.2 Monitoring", Status: "Non-compliant"},
		},
		CISMapping:    report.FrameworkMapping{Mapped: []string{"CIS 5 Account Management"}, Gaps: []string{"CIS 13 Network Monitoring"}},
		OWASPMapping:  report.FrameworkMapping{Mapped: []string{"A01 Broken Access Control"}, Gaps: []string{"A09 Logging Failures"}},
		Gaps:          []string{"Alert triage exceptions in Q3"},
		Summary:       "Acme's controls are largely effective with one monitoring exception.",
		QualityRating: 7.5,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseAnalysis mismatch (-want +got):\n%s", diff)
	}
}

func TestParseAnalysis_SkipsEchoedShape(t *testing.T) {
	completion := "I will answer in the shape {\"scope\": \"...\"} as requested. Result:\n" + validCompletion
	got, err := ParseAnalysis(completion)
	if err != nil {
		t.Fatalf("ParseAnalysis: %v", err)
	}
	if got.QualityRating != 7.5 || len(got.Controls) != 2 {
		t.Errorf("decoded the wrong object: %+v", got)
	}
}

func TestParseAnalysis_ReportsFirstCandidate(t *testing.T) {
	_, err := ParseAnalysis(`first {"scope": "x"} then ` + dropKey(t, validCompletion, "scope"))
	if err == nil {
		t.Fatal("expected schema rejection")
	}
	if !strings.Contains(err.Error(), "controls") {
		t.Errorf("error should describe the first object, got %v", err)
	}
	if _, err := ParseAnalysis("no json here"); !errors.Is(err, ErrNoJSONObject) {
		t.Errorf("error = %v, want ErrNoJSONObject", err)
	}
}

func TestParseAnalysis_RequiredKeys(t *testing.T) {
	for _, key := range []string{"scope", "controls", "cis_mapping", "owasp_mapping", "gaps", "summary", "quality_rating"} {
		t.Run(key, func(t *testing.T) {
			completion := dropKey(t, validCompletion, key)
			if _, err := ParseAnalysis(completion); err == nil {
				t.Fatalf("expected rejection when %q is missing", key)
			}
		})
	}
}

func TestParseAnalysis_QualityRatingRange(t *testing.T) {
	tests := []struct {
		rating  string
		wantErr bool
	}{
		{"0", false},
		{"10", false},
		{"9.9", false},
		{"-0.5", true},
		{"10.01", true},
		{"11", true},
		{`"7"`, true},
		{"null", true},
	}
	for _, tt := range tests {
		t.Run(tt.rating, func(t *testing.T) {
			completion := strings.Replace(validCompletion, `"quality_rating": 7.5`, `"quality_rating": `+tt.rating, 1)
			result, err := ParseAnalysis(completion)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAnalysis() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (result.QualityRating < report.MinQualityRating || result.QualityRating > report.MaxQualityRating) {
				t.Errorf("accepted out-of-range rating %v", result.QualityRating)
			}
		})
	}
}

func TestParseAnalysis_WrongShapes(t *testing.T) {
	cases := map[string]string{
		"controls not a list":  setKey(t, validCompletion, "controls", "none"),
		"control without name": setKey(t, validCompletion, "controls", []map[string]string{{"status": "Compliant"}}),
		"mapping without gaps": setKey(t, validCompletion, "cis_mapping", map[string][]string{"mapped": {"CIS 1"}}),
		"summary number":       setKey(t, validCompletion, "summary", 3),
		"gaps not strings":     setKey(t, validCompletion, "gaps", []int{1, 2}),
	}
	for name, completion := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseAnalysis(completion); err == nil {
				t.Fatal("expected schema rejection")
			}
		})
	}
}

func TestBuildPrompt_Truncates(t *testing.T) {
	text := strings.Repeat("é", 20)
	prompt, truncated := BuildPrompt(text, 10)
	if !truncated {
		t.Fatal("expected truncation")
	}
	if !strings.Contains(prompt, "<soc2_report>\n"+strings.Repeat("é", 10)+"</soc2_report>") {
		t.Errorf("prompt does not embed the first 10 characters: %q", prompt[len(prompt)-60:])
	}
	if _, truncated := BuildPrompt("short", 10); truncated {
		t.Error("short text should not be truncated")
	}
	for _, key := range []string{`"scope"`, `"controls"`, `"cis_mapping"`, `"owasp_mapping"`, `"gaps"`, `"summary"`, `"quality_rating"`} {
		if !strings.Contains(prompt, key) {
			t.Errorf("instructions do not name %s", key)
		}
	}
}
