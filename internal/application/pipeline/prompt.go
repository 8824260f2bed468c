package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// SystemPrompt frames the model as a reviewer that answers in JSON only.
const SystemPrompt = "You are a SOC 2 audit report reviewer. You answer with a single JSON object and nothing else."

const analysisInstructions = `<instructions>
Analyze the SOC 2 report below and return ONLY a JSON object with exactly these keys:

"scope": string. The service organization, the systems in scope, the report type (Type 1 or Type 2), the report period and the Trust Services Criteria covered.
"controls": array of {"name": string, "status": "Compliant" | "Non-compliant"}. One entry per control the auditor tested; a control with exceptions is "Non-compliant".
"cis_mapping": {"mapped": [string], "gaps": [string]}. CIS Controls v8 safeguards the report's controls cover, and the ones it does not address.
"owasp_mapping": {"mapped": [string], "gaps": [string]}. OWASP Top 10 categories the controls mitigate, and the ones left unaddressed.
"gaps": [string]. Exceptions, deficiencies, qualified opinions and missing complementary user entity controls, most severe first.
"summary": string. Three to five sentences for a security stakeholder deciding whether to rely on this vendor.
"quality_rating": number from 0 to 10 rating the overall strength of the report (10 = unqualified opinion, no exceptions, broad scope).

Use "Not specified" for information the text does not contain. Do not wrap the JSON in markdown and do not add commentary.
</instructions>`

// BuildPrompt embeds text in the analysis instructions, truncating it to
// maxChars characters. The second result reports whether truncation happened.
func BuildPrompt(text string, maxChars int) (string, bool) {
	truncated := false
	if maxChars > 0 && utf8.RuneCountInString(text) > maxChars {
		text = string([]rune(text)[:maxChars])
		truncated = true
	}
	var b strings.Builder
	b.Grow(len(analysisInstructions) + len(text) + 64)
	b.WriteString(analysisInstructions)
	b.WriteString("\n\n<soc2_report>\n")
	b.WriteString(text)
	b.WriteString("</soc2_report>\n")
	return b.String(), truncated
}

// RepromptFor asks the model to fix a completion that failed validation.
func RepromptFor(prompt, completion string, problem error) string {
	return fmt.Sprintf(`%s

<previous_answer>
%s
</previous_answer>

Your previous answer was rejected: %v
Return the corrected JSON object only, with every required key present and quality_rating between 0 and 10.`,
		prompt, completion, problem)
}
