package ideagen

import (
	"fmt"
	"math"
	"strings"
)

// The renderer is split per the rest of this package's stages: buildSections
// decides WHAT to show (pure data, testable in isolation), serializePage
// decides how to encode it as teletext-styled markup. Both are deterministic;
// re-rendering the same inputs yields byte-identical output.

type scoreBand string

const (
	bandStrong  scoreBand = "strong"
	bandCaution scoreBand = "caution"
	bandWeak    scoreBand = "weak"
)

type pageRow struct {
	Label string
	Value string
	Score *float64
}

type pageSection struct {
	ID    string
	Title string
	Rows  []pageRow
}

const indexPageNumber = 100

// Render maps the aggregated record, content outline, and statistics to the
// final teletext page. No external calls, no clock, no randomness.
func Render(agg AggregatedData, structure ContentStructure, statistics StatisticsOutput, title string, page int) FinalVisualOutput {
	nav := PageNavigation{
		Page:  page,
		Prev:  maxInt(indexPageNumber, page-1),
		Next:  page + 1,
		Index: indexPageNumber,
	}
	headline := strings.TrimSpace(structure.PageTitle)
	if headline == "" {
		headline = title
	}
	sections := buildSections(agg, structure, statistics)
	return FinalVisualOutput{
		HTML:       serializePage(headline, structure.Tagline, statistics.OverallScore, sections, nav),
		Navigation: nav,
	}
}

// buildSections produces the section tree in the fixed page order downstream
// consumers rely on: problem, unique value, benefits, technology, business,
// scores, strengths/improvements, compliance, team, summary.
func buildSections(agg AggregatedData, structure ContentStructure, statistics StatisticsOutput) []pageSection {
	sections := []pageSection{
		{
			ID:    "problem",
			Title: "THE PROBLEM",
			Rows: []pageRow{
				{Value: agg.BasicInfo.ProblemSummary},
				{Label: "Audience", Value: agg.BasicInfo.TargetAudience},
			},
		},
		{
			ID:    "unique-value",
			Title: "WHY IT IS DIFFERENT",
			Rows: []pageRow{
				{Value: agg.Differentiators.UniqueSellingPoint},
				{Label: "Readiness", Value: string(agg.Differentiators.ReadinessLevel)},
				{Label: "Edge", Value: yesNo(agg.Differentiators.CompetitiveAdvantage)},
				{Label: "Code public", Value: yesNo(agg.Differentiators.GitHubAvailable)},
			},
		},
		{
			ID:    "benefits",
			Title: "KEY BENEFITS",
			Rows:  listRows("", agg.BasicInfo.KeyBenefits),
		},
		{
			ID:    "technology",
			Title: "TECHNOLOGY STACK",
			Rows: append(
				listRows("", agg.Technologies.PrimaryTechnologies),
				pageRow{Label: "Innovation", Value: string(agg.Technologies.InnovationLevel)},
				pageRow{Value: agg.Technologies.TechSummary},
			),
		},
		{
			ID:    "business",
			Title: "BUSINESS CONTEXT",
			Rows: []pageRow{
				{Label: "Segment", Value: agg.BusinessContext.Segment},
				{Label: "Revenue", Value: agg.BusinessContext.RevenueModel},
				{Label: "Market", Value: agg.BusinessContext.MarketOpportunity},
				{Label: "Value", Value: agg.BusinessContext.BusinessValue},
				{Label: "Scale", Value: agg.BusinessContext.Scalability},
			},
		},
		{
			ID:    "scores",
			Title: "SCORES",
			Rows: []pageRow{
				scoreRow("Innovation", statistics.SubScores.Innovation),
				scoreRow("Feasibility", statistics.SubScores.Feasibility),
				scoreRow("Business", statistics.SubScores.BusinessValue),
				scoreRow("Compliance", statistics.SubScores.Compliance),
				scoreRow("Readiness", statistics.SubScores.Readiness),
				{Label: "Verdict", Value: tierLabel(statistics.Recommendation)},
			},
		},
		{
			ID:    "strengths",
			Title: "STRENGTHS + IMPROVEMENTS",
			Rows: append(
				listRows("+", statistics.Strengths),
				listRows("-", statistics.Improvements)...,
			),
		},
		{
			ID:    "compliance",
			Title: "COMPLIANCE",
			Rows: append([]pageRow{
				{Label: "Status", Value: string(agg.Regulations.ComplianceStatus)},
				{Label: "Risk", Value: string(agg.Regulations.RiskLevel)},
			}, append(
				listRows("", agg.Regulations.KeyRegulations),
				pageRow{Value: agg.Regulations.Summary},
			)...),
		},
		{
			ID:    "team",
			Title: "TEAM + RESOURCES",
			Rows: append([]pageRow{
				{Label: "Team", Value: agg.OtherDetails.TeamSize},
				{Label: "Demo", Value: yesNo(agg.OtherDetails.DemoAvailable)},
			}, listRows("Needs", agg.OtherDetails.SupportNeeded)...),
		},
		{
			ID:    "summary",
			Title: "SUMMARY",
			Rows:  summaryRows(structure, statistics),
		},
	}
	return sections
}

func summaryRows(structure ContentStructure, statistics StatisticsOutput) []pageRow {
	rows := []pageRow{{Value: statistics.Summary}}
	for _, sec := range structure.Sections {
		rows = append(rows, pageRow{Label: sec.Heading, Value: sec.Summary})
	}
	return rows
}

// listRows renders a list field, substituting a single placeholder row when
// the list is empty so no section is ever silently blank.
func listRows(label string, values []string) []pageRow {
	if len(values) == 0 {
		return []pageRow{{Label: label, Value: NotSpecified}}
	}
	rows := make([]pageRow, 0, len(values))
	for _, v := range values {
		rows = append(rows, pageRow{Label: label, Value: v})
	}
	return rows
}

func scoreRow(label string, score float64) pageRow {
	s := score
	return pageRow{Label: label, Score: &s}
}

func yesNo(v bool) string {
	if v {
		return "YES"
	}
	return "NO"
}

func tierLabel(t RecommendationTier) string {
	switch t {
	case TierHighlyRecommended:
		return "HIGHLY RECOMMENDED"
	case TierRecommended:
		return "RECOMMENDED"
	case TierConsider:
		return "CONSIDER"
	default:
		return "NEEDS WORK"
	}
}

// bandForScore maps a numeric score to its color band: >=70 strong, >=50
// caution, else weak.
func bandForScore(score float64) scoreBand {
	switch {
	case score >= 70:
		return bandStrong
	case score >= 50:
		return bandCaution
	default:
		return bandWeak
	}
}

// scoreBar renders a ten-cell block-character indicator. The score is clamped
// to [0,100]; each cell is worth ten points and the filled count rounds to
// nearest.
func scoreBar(score float64) string {
	clamped := clampScore(score)
	filled := int(math.Round(clamped / 10))
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

var markupEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// escapeText escapes the five markup-significant characters so user-supplied
// text can never break out of the page markup.
func escapeText(s string) string {
	return markupEscaper.Replace(s)
}

const pageStyle = `body{background:#000;color:#fff;font-family:"Courier New",monospace;margin:0;padding:1rem;}
.tt-page{max-width:42rem;margin:0 auto;}
.tt-header{display:flex;justify-content:space-between;color:#0ff;border-bottom:2px solid #0ff;padding-bottom:0.25rem;}
.tt-title{color:#ff0;font-size:1.4rem;font-weight:bold;letter-spacing:0.1em;}
.tt-tagline{color:#0f0;margin:0.5rem 0;}
.tt-section{margin:0.75rem 0;}
.tt-section h2{color:#0ff;background:#003;font-size:1rem;margin:0 0 0.25rem 0;padding:0.1rem 0.3rem;}
.tt-row{margin:0.1rem 0;}
.tt-label{color:#ff0;}
.tt-bar{letter-spacing:0.05em;}
.tt-band-strong{color:#3f3;}
.tt-band-caution{color:#ff3;}
.tt-band-weak{color:#f33;}
.tt-footer{border-top:2px solid #0ff;margin-top:1rem;padding-top:0.25rem;color:#0ff;display:flex;justify-content:space-between;}`

// serializePage encodes the section tree as a standalone teletext-styled HTML
// document. Section order is exactly the order of sections; downstream
// consumers parse the page positionally.
func serializePage(title, tagline string, overall float64, sections []pageSection, nav PageNavigation) string {
	var b strings.Builder
	b.WriteString("<!doctype html><html><head><meta charset='utf-8'><title>")
	b.WriteString(escapeText(title))
	b.WriteString("</title><style>")
	b.WriteString(pageStyle)
	b.WriteString("</style></head><body><div class='tt-page'>")

	// Header with overall score band.
	band := bandForScore(overall)
	fmt.Fprintf(&b, "<div class='tt-header'><span>IDEABOARD</span><span>P%d</span></div>", nav.Page)
	fmt.Fprintf(&b, "<div class='tt-title'>%s</div>", escapeText(title))
	fmt.Fprintf(&b, "<div class='tt-tagline'>%s</div>", escapeText(tagline))
	fmt.Fprintf(&b, "<div class='tt-row tt-band-%s'><span class='tt-label'>SCORE</span> <span class='tt-bar'>%s</span> %.0f/100</div>",
		band, scoreBar(overall), clampScore(overall))

	for _, sec := range sections {
		fmt.Fprintf(&b, "<div class='tt-section' data-section='%s'><h2>%s</h2>", sec.ID, escapeText(sec.Title))
		for _, row := range sec.Rows {
			b.WriteString("<div class='tt-row'>")
			if row.Label != "" {
				fmt.Fprintf(&b, "<span class='tt-label'>%s</span> ", escapeText(row.Label))
			}
			if row.Score != nil {
				fmt.Fprintf(&b, "<span class='tt-bar tt-band-%s'>%s</span> %.0f",
					bandForScore(*row.Score), scoreBar(*row.Score), clampScore(*row.Score))
			} else {
				b.WriteString(escapeText(row.Value))
			}
			b.WriteString("</div>")
		}
		b.WriteString("</div>")
	}

	fmt.Fprintf(&b, "<div class='tt-footer'><span>&lt;&lt; P%d</span><span>INDEX P%d</span><span>P%d &gt;&gt;</span></div>",
		nav.Prev, nav.Index, nav.Next)
	b.WriteString("</div></body></html>")
	return b.String()
}

// IndexEntry is one published idea row on the index page.
type IndexEntry struct {
	Page     int
	Title    string
	Category string
	Score    float64
}

// RenderIndex produces the index page (P100) listing every published idea in
// the order given. Like Render it is deterministic.
func RenderIndex(entries []IndexEntry) string {
	var b strings.Builder
	b.WriteString("<!doctype html><html><head><meta charset='utf-8'><title>IDEABOARD INDEX</title><style>")
	b.WriteString(pageStyle)
	b.WriteString("</style></head><body><div class='tt-page'>")
	fmt.Fprintf(&b, "<div class='tt-header'><span>IDEABOARD</span><span>P%d</span></div>", indexPageNumber)
	b.WriteString("<div class='tt-title'>IDEA INDEX</div>")
	b.WriteString("<div class='tt-section' data-section='index'><h2>PUBLISHED IDEAS</h2>")
	if len(entries) == 0 {
		b.WriteString("<div class='tt-row'>NO IDEAS PUBLISHED YET</div>")
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "<div class='tt-row tt-band-%s'><span class='tt-label'>P%d</span> %s [%s] %.0f</div>",
			bandForScore(e.Score), e.Page, escapeText(e.Title), escapeText(strings.ToUpper(e.Category)), clampScore(e.Score))
	}
	b.WriteString("</div>")
	fmt.Fprintf(&b, "<div class='tt-footer'><span>&lt;&lt; P%d</span><span>INDEX P%d</span><span>P%d &gt;&gt;</span></div>",
		indexPageNumber, indexPageNumber, indexPageNumber+1)
	b.WriteString("</div></body></html>")
	return b.String()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
