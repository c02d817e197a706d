package ideagen

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BuildReportMarkdown renders the operator-facing analysis report for a
// completed run. This is separate from the public teletext page: it carries
// the full stage outputs and run metadata for moderators.
func BuildReportMarkdown(res PipelineResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Idea Analysis Report\n\n")
	fmt.Fprintf(&b, "- Idea ID: %s\n", res.Request.IdeaID)
	fmt.Fprintf(&b, "- Page: %d\n", res.Request.PageNumber)
	if res.Validated != nil {
		fmt.Fprintf(&b, "- Title: %s\n", res.Validated.Title)
		fmt.Fprintf(&b, "- Category: %s\n", res.Validated.Category)
	}
	b.WriteString("\n")

	if !res.Success {
		fmt.Fprintf(&b, "## Outcome\n\n")
		fmt.Fprintf(&b, "Pipeline failed at stage `%s`: %s\n\n", res.FailedStage, sanitizeLine(res.Error))
		appendMetadata(&b, res.Metadata)
		return b.String()
	}

	fmt.Fprintf(&b, "## Outcome\n\n")
	fmt.Fprintf(&b, "Overall score: **%.1f/100** — **%s**.\n\n", res.Statistics.OverallScore, tierLabel(res.Statistics.Recommendation))

	fmt.Fprintf(&b, "## Scores\n\n")
	fmt.Fprintf(&b, "| Dimension | Score |\n|---|---|\n")
	fmt.Fprintf(&b, "| Innovation | %.0f |\n", res.Statistics.SubScores.Innovation)
	fmt.Fprintf(&b, "| Feasibility | %.0f |\n", res.Statistics.SubScores.Feasibility)
	fmt.Fprintf(&b, "| Business value | %.0f |\n", res.Statistics.SubScores.BusinessValue)
	fmt.Fprintf(&b, "| Compliance | %.0f |\n", res.Statistics.SubScores.Compliance)
	fmt.Fprintf(&b, "| Readiness | %.0f |\n\n", res.Statistics.SubScores.Readiness)

	fmt.Fprintf(&b, "## Strengths\n\n")
	for _, s := range res.Statistics.Strengths {
		fmt.Fprintf(&b, "- %s\n", sanitizeLine(s))
	}
	fmt.Fprintf(&b, "\n## Improvements\n\n")
	for _, s := range res.Statistics.Improvements {
		fmt.Fprintf(&b, "- %s\n", sanitizeLine(s))
	}
	fmt.Fprintf(&b, "\n## Summary\n\n%s\n\n", sanitizeLine(res.Statistics.Summary))

	fmt.Fprintf(&b, "## Appendix\n\n")
	fmt.Fprintf(&b, "### Aggregated Analysis (JSON)\n\n```json\n%s\n```\n", prettyJSON(res.Aggregated))
	appendMetadata(&b, res.Metadata)
	return b.String()
}

func appendMetadata(b *strings.Builder, md PipelineMetadata) {
	fmt.Fprintf(b, "\n### Run Metadata (JSON)\n\n```json\n%s\n```\n", prettyJSON(md))
}

func prettyJSON(v any) string {
	blob, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(blob)
}

func sanitizeLine(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if s == "" {
		return "-"
	}
	return s
}
