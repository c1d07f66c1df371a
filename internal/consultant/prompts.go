package consultant

// #region imports
import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

// #endregion

// #region system-prompts

//go:embed prompts/system.md
var systemPrompt string

// SystemPrompt returns the synthesis system prompt.
func SystemPrompt() string { return strings.TrimSpace(systemPrompt) }

const triageSystemPrompt = "You produce concise valuation memos as strict minified JSON. " +
	"Never return markdown or commentary outside the JSON object."

const defaultQuestion = "Is this valuation reasonable?"

// #endregion

// #region evidence-rendering

type promptChunk struct {
	SourceID string         `json:"source_id"`
	Source   string         `json:"source,omitempty"`
	Score    float64        `json:"score"`
	Text     string         `json:"text"`
	Meta     map[string]any `json:"meta,omitempty"`
}

func renderEvidence(comps []valuation.EvidenceChunk) string {
	if len(comps) == 0 {
		return "[]"
	}
	out := make([]promptChunk, len(comps))
	for i, c := range comps {
		out[i] = promptChunk{
			SourceID: valuation.CitationPrefix + c.ChunkID,
			Source:   c.Source,
			Score:    c.Score,
			Text:     c.Text,
			Meta:     c.Meta,
		}
	}
	return mustJSON(out)
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// #endregion

// #region triage-prompt

func renderTriagePrompt(deal valuation.DealFacts, comps []valuation.EvidenceChunk, baseline valuation.Draft, question string) string {
	if strings.TrimSpace(question) == "" {
		question = defaultQuestion
	}
	var b strings.Builder
	b.WriteString("You are a valuation associate triaging a request before a senior analyst sees it.\n")
	b.WriteString("Return strict JSON (no markdown). Prefer a triage plan with exactly these keys:\n")
	b.WriteString(`{"objective": "<string>", "required_comps": ["<name>"], "missing_data": ["<field>"], ` +
		`"queries": ["<follow-up search>"], "risk_flags": ["<risk>"], "route_suggestion": "<easy|hard>", ` +
		`"confidence": <float between 0 and 1>}` + "\n")
	b.WriteString("If the evidence already answers the question, return a valuation object instead:\n")
	b.WriteString(`{"conclusion": "<cheap|fair|rich>", "implied_multiple": <float>, "range": [<float>, <float>], ` +
		`"reasoning": "<at most 80 words>", "comps_used": [{"source_id": "chunk:<id>"}], ` +
		`"risk_flags": ["<risk>"], "confidence": <float between 0 and 1>}` + "\n")
	b.WriteString("Ground every statement in the supplied deal data, evidence and baseline. ")
	b.WriteString("Do not invent sources. Note data gaps in risk_flags and reduce confidence.\n\n")
	fmt.Fprintf(&b, "Question: %s\n", question)
	fmt.Fprintf(&b, "Deal: %s\n", mustJSON(deal))
	fmt.Fprintf(&b, "Evidence: %s\n", renderEvidence(comps))
	fmt.Fprintf(&b, "Baseline heuristic: %s", mustJSON(baseline))
	return b.String()
}

// #endregion

// #region synthesis-prompt

func renderSynthesisPrompt(deal valuation.DealFacts, comps []valuation.EvidenceChunk, baseline valuation.Draft, triageSummary string, complexity Complexity, question string) string {
	if strings.TrimSpace(question) == "" {
		question = defaultQuestion
	}
	var b strings.Builder
	b.WriteString("Produce a concise valuation memo as strict JSON matching this schema:\n")
	b.WriteString("{\n")
	b.WriteString(`  "conclusion": "<cheap|fair|rich|expensive|uncertain>",` + "\n")
	b.WriteString(`  "implied_multiple": <float>,` + "\n")
	b.WriteString(`  "range": [<float>, <float>],` + "\n")
	b.WriteString(`  "reasoning": "<short narrative>",` + "\n")
	b.WriteString(`  "comps_used": [{"source_id": "chunk:<id>", "name": "<optional>", "ticker": "<optional>"}],` + "\n")
	b.WriteString(`  "risk_flags": ["<risk>"],` + "\n")
	b.WriteString(`  "confidence": <float between 0 and 1>` + "\n")
	b.WriteString("}\n\n")
	b.WriteString("Requirements:\n")
	b.WriteString("- Use the deal and evidence exactly as given.\n")
	b.WriteString("- Cite only source_id values listed in the evidence.\n")
	b.WriteString("- Factor in the triage summary if provided, but verify it independently.\n")
	b.WriteString("- If data is missing, note it in risk_flags and lower confidence.\n")
	b.WriteString("- Keep reasoning under 120 words.\n\n")
	fmt.Fprintf(&b, "Question: %s\n", question)
	fmt.Fprintf(&b, "Deal: %s\n", mustJSON(deal))
	fmt.Fprintf(&b, "Evidence: %s\n", renderEvidence(comps))
	fmt.Fprintf(&b, "Baseline heuristic: %s\n", mustJSON(baseline))
	fmt.Fprintf(&b, "Triage summary: %s\n", triageSummary)
	fmt.Fprintf(&b, "Complexity classification: %s\n\n", complexity)
	b.WriteString("Return only JSON. Do not include markdown.")
	return b.String()
}

// #endregion
