package ideagen

import (
	"context"
	"fmt"
	"strings"
)

const validateSchemaPrompt = `Required JSON schema:
{
  "normalized_category": "string (3-50 chars, lowercase, one of the board categories or the closest match)",
  "legitimate": "boolean (false only for spam, gibberish, or clearly fraudulent submissions)",
  "rejection_reason": "string (empty when legitimate, 10-300 chars otherwise)",
  "confidence_score": "float (0.0-1.0)",
  "confidence_reason": "string (min 10 chars)",
  "insufficient_information": "boolean"
}`

const basicInfoSchemaPrompt = `Required JSON schema:
{
  "tagline": "string (10-120 chars, punchy one-liner)",
  "problem_summary": "string (20-500 chars)",
  "key_benefits": ["string (1-6 entries, each 5-200 chars)"],
  "target_audience": "string (5-200 chars)",
  "confidence_score": "float (0.0-1.0)",
  "confidence_reason": "string (min 10 chars)",
  "insufficient_information": "boolean"
}`

const technologiesSchemaPrompt = `Required JSON schema:
{
  "primary_technologies": ["string (1-10 entries, each 2-80 chars)"],
  "innovation_level": "LOW | MEDIUM | HIGH",
  "tech_summary": "string (20-500 chars)",
  "confidence_score": "float (0.0-1.0)",
  "confidence_reason": "string (min 10 chars)",
  "insufficient_information": "boolean"
}`

const businessContextSchemaPrompt = `Required JSON schema:
{
  "segment": "string (3-100 chars)",
  "revenue_model": "string (5-200 chars)",
  "market_opportunity": "string (20-500 chars)",
  "business_value": "string (20-500 chars)",
  "scalability": "string (10-300 chars)",
  "confidence_score": "float (0.0-1.0)",
  "confidence_reason": "string (min 10 chars)",
  "insufficient_information": "boolean"
}`

const regulationsSchemaPrompt = `Required JSON schema:
{
  "compliance_status": "COMPLIANT | REVIEW_NEEDED | NON_COMPLIANT",
  "risk_level": "LOW | MEDIUM | HIGH",
  "key_regulations": ["string (0-10 entries, each 2-120 chars)"],
  "summary": "string (20-500 chars)",
  "confidence_score": "float (0.0-1.0)",
  "confidence_reason": "string (min 10 chars)",
  "insufficient_information": "boolean"
}`

const differentiatorsSchemaPrompt = `Required JSON schema:
{
  "unique_selling_point": "string (10-300 chars)",
  "readiness_level": "CONCEPT | PROTOTYPE | MVP | PRODUCTION",
  "competitive_advantage": "boolean",
  "github_available": "boolean",
  "confidence_score": "float (0.0-1.0)",
  "confidence_reason": "string (min 10 chars)",
  "insufficient_information": "boolean"
}`

const otherDetailsSchemaPrompt = `Required JSON schema:
{
  "team_size": "string (1-100 chars, 'not specified' when unknown)",
  "support_needed": ["string (0-8 entries, each 3-200 chars)"],
  "demo_available": "boolean",
  "highlights": ["string (0-6 entries, each 5-200 chars)"],
  "confidence_score": "float (0.0-1.0)",
  "confidence_reason": "string (min 10 chars)",
  "insufficient_information": "boolean"
}`

const structureSchemaPrompt = `Required JSON schema:
{
  "page_title": "string (3-60 chars, uppercase teletext headline)",
  "tagline": "string (10-120 chars)",
  "sections": [{"heading": "string (3-40 chars)", "summary": "string (10-300 chars)"}] (3-8 entries),
  "confidence_score": "float (0.0-1.0)",
  "confidence_reason": "string (min 10 chars)",
  "insufficient_information": "boolean"
}`

const scoreSchemaPrompt = `Required JSON schema:
{
  "sub_scores": {
    "innovation": "float (0-100)",
    "feasibility": "float (0-100)",
    "business_value": "float (0-100)",
    "compliance": "float (0-100)",
    "readiness": "float (0-100)"
  },
  "strengths": ["string (0-6 entries, each 5-200 chars)"],
  "improvements": ["string (0-6 entries, each 5-200 chars)"],
  "summary": "string (30-600 chars)",
  "confidence_score": "float (0.0-1.0)",
  "confidence_reason": "string (min 10 chars)",
  "insufficient_information": "boolean"
}`

// StageRunner is the seam between the orchestrator and the text-generation
// backend. The six analyzer methods each depend only on the validated idea,
// which is what allows the orchestrator to dispatch them concurrently.
type StageRunner interface {
	RunValidate(ctx context.Context, req RequestEnvelope) (ValidatedIdea, StageAttemptMetrics, error)
	RunBasicInfo(ctx context.Context, idea ValidatedIdea) (BasicInfoAnalysis, StageAttemptMetrics, error)
	RunTechnologies(ctx context.Context, idea ValidatedIdea) (TechnologiesAnalysis, StageAttemptMetrics, error)
	RunBusinessContext(ctx context.Context, idea ValidatedIdea) (BusinessContextAnalysis, StageAttemptMetrics, error)
	RunRegulations(ctx context.Context, idea ValidatedIdea) (RegulationsAnalysis, StageAttemptMetrics, error)
	RunDifferentiators(ctx context.Context, idea ValidatedIdea) (DifferentiatorsAnalysis, StageAttemptMetrics, error)
	RunOtherDetails(ctx context.Context, idea ValidatedIdea) (OtherDetailsAnalysis, StageAttemptMetrics, error)
	RunStructure(ctx context.Context, agg AggregatedData) (ContentStructure, StageAttemptMetrics, error)
	RunScore(ctx context.Context, agg AggregatedData, structure ContentStructure) (ScoreDraft, StageAttemptMetrics, error)
}

type LLMStageRunner struct {
	exec *StageExecutor
}

func NewLLMStageRunner(exec *StageExecutor) *LLMStageRunner {
	return &LLMStageRunner{exec: exec}
}

func (r *LLMStageRunner) RunValidate(ctx context.Context, req RequestEnvelope) (ValidatedIdea, StageAttemptMetrics, error) {
	idea, err := cleanRawIdea(req.Raw)
	if err != nil {
		return ValidatedIdea{}, StageAttemptMetrics{}, err
	}
	out := ValidationOutput{}
	prompt := fmt.Sprintf(
		"Validation stage.\nNormalize the submission category and judge whether this is a legitimate idea submission (not spam or gibberish).\n\n%s\n\nSubmission:\nTitle: %s\nCategory: %s\nDescription: %s\nProblem solved: %s",
		validateSchemaPrompt,
		idea.Title,
		idea.Category,
		idea.Description,
		idea.ProblemSolved,
	)
	m, err := r.exec.Run(ctx, StageValidate, prompt, &out, func() error { return validateValidation(out) })
	if err != nil {
		return ValidatedIdea{}, m, err
	}
	if !out.Legitimate {
		return ValidatedIdea{}, m, fmt.Errorf("submission rejected: %s", out.RejectionReason)
	}
	idea.Category = out.NormalizedCategory
	idea.CredibilityScore = out.ConfidenceScore
	return idea, m, nil
}

func (r *LLMStageRunner) RunBasicInfo(ctx context.Context, idea ValidatedIdea) (BasicInfoAnalysis, StageAttemptMetrics, error) {
	out := BasicInfoAnalysis{}
	prompt := fmt.Sprintf(
		"Basic info analysis.\nDistill the idea into a tagline, problem summary, key benefits, and target audience.\n\n%s\n\n%s",
		basicInfoSchemaPrompt,
		ideaDigest(idea),
	)
	m, err := r.exec.Run(ctx, StageBasicInfo, prompt, &out, func() error { return validateBasicInfo(out) })
	return out, m, err
}

func (r *LLMStageRunner) RunTechnologies(ctx context.Context, idea ValidatedIdea) (TechnologiesAnalysis, StageAttemptMetrics, error) {
	out := TechnologiesAnalysis{}
	prompt := fmt.Sprintf(
		"Technology analysis.\nIdentify the primary technologies and rate the technical innovation level.\n\n%s\n\n%s\n\nDeclared technologies:\n%s\nPlatform: %s\nImplementation level: %s\nRepository: %s",
		technologiesSchemaPrompt,
		ideaDigest(idea),
		strings.Join(idea.Technologies, ", "),
		idea.Platform,
		idea.ImplementationLevel,
		idea.RepositoryLink,
	)
	m, err := r.exec.Run(ctx, StageTechnologies, prompt, &out, func() error { return validateTechnologies(out) })
	return out, m, err
}

func (r *LLMStageRunner) RunBusinessContext(ctx context.Context, idea ValidatedIdea) (BusinessContextAnalysis, StageAttemptMetrics, error) {
	out := BusinessContextAnalysis{}
	prompt := fmt.Sprintf(
		"Business context analysis.\nAssess segment, revenue model, market opportunity, business value, and scalability.\n\n%s\n\n%s\n\nTarget segment: %s\nMonetization: %s\nTarget markets: %s\nCompetitors: %s",
		businessContextSchemaPrompt,
		ideaDigest(idea),
		idea.TargetSegment,
		strings.Join(idea.Monetization, ", "),
		strings.Join(idea.TargetMarkets, ", "),
		idea.Competitors,
	)
	m, err := r.exec.Run(ctx, StageBusinessContext, prompt, &out, func() error { return validateBusinessContext(out) })
	return out, m, err
}

func (r *LLMStageRunner) RunRegulations(ctx context.Context, idea ValidatedIdea) (RegulationsAnalysis, StageAttemptMetrics, error) {
	out := RegulationsAnalysis{}
	prompt := fmt.Sprintf(
		"Regulatory analysis.\nAssess compliance status, risk level, and the key regulations that apply.\n\n%s\n\n%s\n\nDeclared regulations: %s\nCompliance notes: %s\nTarget markets: %s",
		regulationsSchemaPrompt,
		ideaDigest(idea),
		strings.Join(idea.Regulations, ", "),
		idea.ComplianceNotes,
		strings.Join(idea.TargetMarkets, ", "),
	)
	m, err := r.exec.Run(ctx, StageRegulations, prompt, &out, func() error { return validateRegulations(out) })
	return out, m, err
}

func (r *LLMStageRunner) RunDifferentiators(ctx context.Context, idea ValidatedIdea) (DifferentiatorsAnalysis, StageAttemptMetrics, error) {
	out := DifferentiatorsAnalysis{}
	prompt := fmt.Sprintf(
		"Differentiators analysis.\nIdentify the unique selling point, readiness level, and competitive position.\n\n%s\n\n%s\n\nUnique value statement: %s\nImplementation level: %s\nRepository: %s\nCompetitors: %s",
		differentiatorsSchemaPrompt,
		ideaDigest(idea),
		idea.UniqueValue,
		idea.ImplementationLevel,
		idea.RepositoryLink,
		idea.Competitors,
	)
	m, err := r.exec.Run(ctx, StageDifferentiators, prompt, &out, func() error { return validateDifferentiators(out) })
	return out, m, err
}

func (r *LLMStageRunner) RunOtherDetails(ctx context.Context, idea ValidatedIdea) (OtherDetailsAnalysis, StageAttemptMetrics, error) {
	out := OtherDetailsAnalysis{}
	prompt := fmt.Sprintf(
		"Other details analysis.\nSummarize team, support needs, demo availability, and noteworthy extras.\n\n%s\n\n%s\n\nTeam size: %s\nTimeline: %s\nBudget: %s\nOpen questions: %s",
		otherDetailsSchemaPrompt,
		ideaDigest(idea),
		idea.TeamSize,
		idea.Timeline,
		idea.Budget,
		idea.OpenQuestions,
	)
	m, err := r.exec.Run(ctx, StageOtherDetails, prompt, &out, func() error { return validateOtherDetails(out) })
	return out, m, err
}

func (r *LLMStageRunner) RunStructure(ctx context.Context, agg AggregatedData) (ContentStructure, StageAttemptMetrics, error) {
	out := ContentStructure{}
	prompt := fmt.Sprintf(
		"Content structure stage.\nDerive a teletext page outline (headline, tagline, sections) from the aggregated analysis.\n\n%s\n\nIdea: %s\nTagline candidate: %s\nProblem: %s\nKey benefits: %s\nBusiness value: %s\nTech summary: %s",
		structureSchemaPrompt,
		agg.Idea.Title,
		agg.BasicInfo.Tagline,
		agg.BasicInfo.ProblemSummary,
		strings.Join(agg.BasicInfo.KeyBenefits, "; "),
		agg.BusinessContext.BusinessValue,
		agg.Technologies.TechSummary,
	)
	m, err := r.exec.Run(ctx, StageStructure, prompt, &out, func() error { return validateStructure(out) })
	return out, m, err
}

func (r *LLMStageRunner) RunScore(ctx context.Context, agg AggregatedData, structure ContentStructure) (ScoreDraft, StageAttemptMetrics, error) {
	out := ScoreDraft{}
	prompt := fmt.Sprintf(
		"Scoring stage.\nScore the idea on the five dimensions and list concrete strengths and improvements.\n\n%s\n\nIdea: %s (%s)\nProblem: %s\nInnovation level: %s\nReadiness: %s\nCompliance: %s risk %s\nBusiness value: %s\nScalability: %s\nPage outline: %s",
		scoreSchemaPrompt,
		agg.Idea.Title,
		agg.Idea.Category,
		agg.BasicInfo.ProblemSummary,
		agg.Technologies.InnovationLevel,
		agg.Differentiators.ReadinessLevel,
		agg.Regulations.ComplianceStatus,
		agg.Regulations.RiskLevel,
		agg.BusinessContext.BusinessValue,
		agg.BusinessContext.Scalability,
		structure.Tagline,
	)
	m, err := r.exec.Run(ctx, StageScore, prompt, &out, func() error { return validateScoreDraft(out) })
	return out, m, err
}

func ideaDigest(idea ValidatedIdea) string {
	return fmt.Sprintf(
		"Idea title: %s\nCategory: %s\nDescription: %s\nProblem solved: %s",
		idea.Title, idea.Category, idea.Description, idea.ProblemSolved,
	)
}

func validateConfidence(c StageConfidence) error {
	if c.ConfidenceScore < 0 || c.ConfidenceScore > 1 {
		return fmt.Errorf("confidence_score out of range")
	}
	if len(strings.TrimSpace(c.ConfidenceReason)) < 10 {
		return fmt.Errorf("confidence_reason too short")
	}
	return nil
}

func validateValidation(v ValidationOutput) error {
	if err := validateConfidence(v.StageConfidence); err != nil {
		return err
	}
	if !between(len(strings.TrimSpace(v.NormalizedCategory)), 3, 50) {
		return fmt.Errorf("normalized_category length")
	}
	if v.Legitimate {
		if strings.TrimSpace(v.RejectionReason) != "" {
			return fmt.Errorf("rejection_reason must be empty when legitimate")
		}
	} else if !between(len(strings.TrimSpace(v.RejectionReason)), 10, 300) {
		return fmt.Errorf("rejection_reason length")
	}
	return nil
}

func validateBasicInfo(a BasicInfoAnalysis) error {
	if err := validateConfidence(a.StageConfidence); err != nil {
		return err
	}
	if !between(len(strings.TrimSpace(a.Tagline)), 10, 120) {
		return fmt.Errorf("tagline length")
	}
	if !between(len(strings.TrimSpace(a.ProblemSummary)), 20, 500) {
		return fmt.Errorf("problem_summary length")
	}
	if len(a.KeyBenefits) < 1 || len(a.KeyBenefits) > 6 {
		return fmt.Errorf("key_benefits count")
	}
	for _, b := range a.KeyBenefits {
		if !between(len(strings.TrimSpace(b)), 5, 200) {
			return fmt.Errorf("key_benefits entry length")
		}
	}
	if !between(len(strings.TrimSpace(a.TargetAudience)), 5, 200) {
		return fmt.Errorf("target_audience length")
	}
	return nil
}

func validateTechnologies(a TechnologiesAnalysis) error {
	if err := validateConfidence(a.StageConfidence); err != nil {
		return err
	}
	if len(a.PrimaryTechnologies) < 1 || len(a.PrimaryTechnologies) > 10 {
		return fmt.Errorf("primary_technologies count")
	}
	for _, t := range a.PrimaryTechnologies {
		if !between(len(strings.TrimSpace(t)), 2, 80) {
			return fmt.Errorf("primary_technologies entry length")
		}
	}
	switch a.InnovationLevel {
	case InnovationLow, InnovationMedium, InnovationHigh:
	default:
		return fmt.Errorf("invalid innovation_level %q", a.InnovationLevel)
	}
	if !between(len(strings.TrimSpace(a.TechSummary)), 20, 500) {
		return fmt.Errorf("tech_summary length")
	}
	return nil
}

func validateBusinessContext(a BusinessContextAnalysis) error {
	if err := validateConfidence(a.StageConfidence); err != nil {
		return err
	}
	if !between(len(strings.TrimSpace(a.Segment)), 3, 100) {
		return fmt.Errorf("segment length")
	}
	if !between(len(strings.TrimSpace(a.RevenueModel)), 5, 200) {
		return fmt.Errorf("revenue_model length")
	}
	if !between(len(strings.TrimSpace(a.MarketOpportunity)), 20, 500) {
		return fmt.Errorf("market_opportunity length")
	}
	if !between(len(strings.TrimSpace(a.BusinessValue)), 20, 500) {
		return fmt.Errorf("business_value length")
	}
	if !between(len(strings.TrimSpace(a.Scalability)), 10, 300) {
		return fmt.Errorf("scalability length")
	}
	return nil
}

func validateRegulations(a RegulationsAnalysis) error {
	if err := validateConfidence(a.StageConfidence); err != nil {
		return err
	}
	switch a.ComplianceStatus {
	case ComplianceCompliant, ComplianceReviewNeeded, ComplianceNonCompliant:
	default:
		return fmt.Errorf("invalid compliance_status %q", a.ComplianceStatus)
	}
	switch a.RiskLevel {
	case RiskLow, RiskMedium, RiskHigh:
	default:
		return fmt.Errorf("invalid risk_level %q", a.RiskLevel)
	}
	if len(a.KeyRegulations) > 10 {
		return fmt.Errorf("key_regulations count")
	}
	for _, reg := range a.KeyRegulations {
		if !between(len(strings.TrimSpace(reg)), 2, 120) {
			return fmt.Errorf("key_regulations entry length")
		}
	}
	if !between(len(strings.TrimSpace(a.Summary)), 20, 500) {
		return fmt.Errorf("summary length")
	}
	return nil
}

func validateDifferentiators(a DifferentiatorsAnalysis) error {
	if err := validateConfidence(a.StageConfidence); err != nil {
		return err
	}
	if !between(len(strings.TrimSpace(a.UniqueSellingPoint)), 10, 300) {
		return fmt.Errorf("unique_selling_point length")
	}
	switch a.ReadinessLevel {
	case ReadinessConcept, ReadinessPrototype, ReadinessMVP, ReadinessProduction:
	default:
		return fmt.Errorf("invalid readiness_level %q", a.ReadinessLevel)
	}
	return nil
}

func validateOtherDetails(a OtherDetailsAnalysis) error {
	if err := validateConfidence(a.StageConfidence); err != nil {
		return err
	}
	if !between(len(strings.TrimSpace(a.TeamSize)), 1, 100) {
		return fmt.Errorf("team_size length")
	}
	if len(a.SupportNeeded) > 8 {
		return fmt.Errorf("support_needed count")
	}
	for _, s := range a.SupportNeeded {
		if !between(len(strings.TrimSpace(s)), 3, 200) {
			return fmt.Errorf("support_needed entry length")
		}
	}
	if len(a.Highlights) > 6 {
		return fmt.Errorf("highlights count")
	}
	for _, h := range a.Highlights {
		if !between(len(strings.TrimSpace(h)), 5, 200) {
			return fmt.Errorf("highlights entry length")
		}
	}
	return nil
}

func validateStructure(s ContentStructure) error {
	if err := validateConfidence(s.StageConfidence); err != nil {
		return err
	}
	if !between(len(strings.TrimSpace(s.PageTitle)), 3, 60) {
		return fmt.Errorf("page_title length")
	}
	if !between(len(strings.TrimSpace(s.Tagline)), 10, 120) {
		return fmt.Errorf("tagline length")
	}
	if len(s.Sections) < 3 || len(s.Sections) > 8 {
		return fmt.Errorf("sections count")
	}
	for _, sec := range s.Sections {
		if !between(len(strings.TrimSpace(sec.Heading)), 3, 40) {
			return fmt.Errorf("section heading length")
		}
		if !between(len(strings.TrimSpace(sec.Summary)), 10, 300) {
			return fmt.Errorf("section summary length")
		}
	}
	return nil
}

func validateScoreDraft(s ScoreDraft) error {
	if err := validateConfidence(s.StageConfidence); err != nil {
		return err
	}
	for name, v := range map[string]float64{
		"innovation":     s.SubScores.Innovation,
		"feasibility":    s.SubScores.Feasibility,
		"business_value": s.SubScores.BusinessValue,
		"compliance":     s.SubScores.Compliance,
		"readiness":      s.SubScores.Readiness,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("sub_scores.%s out of range", name)
		}
	}
	if len(s.Strengths) > 6 || len(s.Improvements) > 6 {
		return fmt.Errorf("strengths/improvements count")
	}
	for _, e := range append(append([]string{}, s.Strengths...), s.Improvements...) {
		if !between(len(strings.TrimSpace(e)), 5, 200) {
			return fmt.Errorf("strengths/improvements entry length")
		}
	}
	if !between(len(strings.TrimSpace(s.Summary)), 30, 600) {
		return fmt.Errorf("summary length")
	}
	return nil
}

func between(v, min, max int) bool {
	return v >= min && v <= max
}
