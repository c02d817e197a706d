package ideagen

import "time"

// MaxDescriptionChars caps the free-text description before it reaches the
// analysis prompts. Longer submissions are truncated, never rejected.
const MaxDescriptionChars = 20000

// RunState tracks where a pipeline run currently is. A run moves strictly
// forward; Failed is absorbing and reachable from every non-terminal state.
type RunState string

const (
	StateIdle        RunState = "idle"
	StateValidating  RunState = "validating"
	StateAnalyzing   RunState = "analyzing"
	StateAggregating RunState = "aggregating"
	StateStructuring RunState = "structuring"
	StateScoring     RunState = "scoring"
	StateRendering   RunState = "rendering"
	StateDone        RunState = "done"
	StateFailed      RunState = "failed"
)

// RawIdeaInput is the submission exactly as it arrived over HTTP. It is
// consumed once by the validator and never read by any later stage.
type RawIdeaInput struct {
	Title               string   `json:"title"`
	ShortDescription    string   `json:"shortDescription"`
	Category            string   `json:"category"`
	ProblemSolved       string   `json:"problemSolved"`
	Technologies        []string `json:"technologies,omitempty"`
	Platform            string   `json:"platform,omitempty"`
	TargetSegment       string   `json:"targetSegment,omitempty"`
	Monetization        []string `json:"monetization,omitempty"`
	TargetMarkets       []string `json:"targetMarkets,omitempty"`
	Regulations         []string `json:"regulations,omitempty"`
	ComplianceNotes     string   `json:"complianceNotes,omitempty"`
	UniqueValue         string   `json:"uniqueValue,omitempty"`
	ImplementationLevel string   `json:"implementationLevel,omitempty"`
	RepositoryLink      string   `json:"repositoryLink,omitempty"`
	Competitors         string   `json:"competitors,omitempty"`
	TeamSize            string   `json:"teamSize,omitempty"`
	Timeline            string   `json:"timeline,omitempty"`
	Budget              string   `json:"budget,omitempty"`
	OpenQuestions       string   `json:"openQuestions,omitempty"`
}

// RequestEnvelope is the unit of work handed to the pipeline: one submitted
// idea plus the page number the store reserved for it.
type RequestEnvelope struct {
	IdeaID     string       `json:"idea_id"`
	PageNumber int          `json:"page_number"`
	Raw        RawIdeaInput `json:"raw"`
}

// ValidatedIdea is the canonical cleaned projection of RawIdeaInput. Every
// stage after validation operates on this record, never on the raw input.
type ValidatedIdea struct {
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	Category            string   `json:"category"`
	ProblemSolved       string   `json:"problem_solved"`
	Technologies        []string `json:"technologies"`
	Platform            string   `json:"platform"`
	TargetSegment       string   `json:"target_segment"`
	Monetization        []string `json:"monetization"`
	TargetMarkets       []string `json:"target_markets"`
	Regulations         []string `json:"regulations"`
	ComplianceNotes     string   `json:"compliance_notes"`
	UniqueValue         string   `json:"unique_value"`
	ImplementationLevel string   `json:"implementation_level"`
	RepositoryLink      string   `json:"repository_link"`
	Competitors         string   `json:"competitors"`
	TeamSize            string   `json:"team_size"`
	Timeline            string   `json:"timeline"`
	Budget              string   `json:"budget"`
	OpenQuestions       string   `json:"open_questions"`
	CredibilityScore    float64  `json:"credibility_score"`
}

// StageConfidence is shared by every LLM-backed stage output.
type StageConfidence struct {
	ConfidenceScore         float64 `json:"confidence_score"`
	ConfidenceReason        string  `json:"confidence_reason"`
	InsufficientInformation bool    `json:"insufficient_information"`
}

// ValidationOutput is the schema the validation stage expects back from the
// model: a normalized category plus a credibility signal.
type ValidationOutput struct {
	NormalizedCategory string `json:"normalized_category"`
	Legitimate         bool   `json:"legitimate"`
	RejectionReason    string `json:"rejection_reason"`
	StageConfidence
}

type BasicInfoAnalysis struct {
	Tagline        string   `json:"tagline"`
	ProblemSummary string   `json:"problem_summary"`
	KeyBenefits    []string `json:"key_benefits"`
	TargetAudience string   `json:"target_audience"`
	StageConfidence
}

type InnovationLevel string

const (
	InnovationLow    InnovationLevel = "LOW"
	InnovationMedium InnovationLevel = "MEDIUM"
	InnovationHigh   InnovationLevel = "HIGH"
)

type TechnologiesAnalysis struct {
	PrimaryTechnologies []string        `json:"primary_technologies"`
	InnovationLevel     InnovationLevel `json:"innovation_level"`
	TechSummary         string          `json:"tech_summary"`
	StageConfidence
}

type BusinessContextAnalysis struct {
	Segment           string `json:"segment"`
	RevenueModel      string `json:"revenue_model"`
	MarketOpportunity string `json:"market_opportunity"`
	BusinessValue     string `json:"business_value"`
	Scalability       string `json:"scalability"`
	StageConfidence
}

type ComplianceStatus string

const (
	ComplianceCompliant    ComplianceStatus = "COMPLIANT"
	ComplianceReviewNeeded ComplianceStatus = "REVIEW_NEEDED"
	ComplianceNonCompliant ComplianceStatus = "NON_COMPLIANT"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

type RegulationsAnalysis struct {
	ComplianceStatus ComplianceStatus `json:"compliance_status"`
	RiskLevel        RiskLevel        `json:"risk_level"`
	KeyRegulations   []string         `json:"key_regulations"`
	Summary          string           `json:"summary"`
	StageConfidence
}

type ReadinessLevel string

const (
	ReadinessConcept    ReadinessLevel = "CONCEPT"
	ReadinessPrototype  ReadinessLevel = "PROTOTYPE"
	ReadinessMVP        ReadinessLevel = "MVP"
	ReadinessProduction ReadinessLevel = "PRODUCTION"
)

type DifferentiatorsAnalysis struct {
	UniqueSellingPoint   string         `json:"unique_selling_point"`
	ReadinessLevel       ReadinessLevel `json:"readiness_level"`
	CompetitiveAdvantage bool           `json:"competitive_advantage"`
	GitHubAvailable      bool           `json:"github_available"`
	StageConfidence
}

type OtherDetailsAnalysis struct {
	TeamSize      string   `json:"team_size"`
	SupportNeeded []string `json:"support_needed"`
	DemoAvailable bool     `json:"demo_available"`
	Highlights    []string `json:"highlights"`
	StageConfidence
}

// AggregatedData is the struct-of-structs the aggregator produces: the
// validated idea plus all six analyses, and the single input to every
// downstream presentation/scoring stage.
type AggregatedData struct {
	Idea            ValidatedIdea           `json:"idea"`
	BasicInfo       BasicInfoAnalysis       `json:"basic_info"`
	Technologies    TechnologiesAnalysis    `json:"technologies"`
	BusinessContext BusinessContextAnalysis `json:"business_context"`
	Regulations     RegulationsAnalysis     `json:"regulations"`
	Differentiators DifferentiatorsAnalysis `json:"differentiators"`
	OtherDetails    OtherDetailsAnalysis    `json:"other_details"`
}

type ContentSection struct {
	Heading string `json:"heading"`
	Summary string `json:"summary"`
}

// ContentStructure is the human-facing outline derived from AggregatedData.
type ContentStructure struct {
	PageTitle string           `json:"page_title"`
	Tagline   string           `json:"tagline"`
	Sections  []ContentSection `json:"sections"`
	StageConfidence
}

type RecommendationTier string

const (
	TierHighlyRecommended RecommendationTier = "HIGHLY_RECOMMENDED"
	TierRecommended       RecommendationTier = "RECOMMENDED"
	TierConsider          RecommendationTier = "CONSIDER"
	TierNeedsWork         RecommendationTier = "NEEDS_WORK"
)

// SubScores are the five category scores the scoring stage produces, each on
// a 0-100 scale.
type SubScores struct {
	Innovation    float64 `json:"innovation"`
	Feasibility   float64 `json:"feasibility"`
	BusinessValue float64 `json:"business_value"`
	Compliance    float64 `json:"compliance"`
	Readiness     float64 `json:"readiness"`
}

type StatisticsOutput struct {
	OverallScore   float64            `json:"overall_score"`
	SubScores      SubScores          `json:"sub_scores"`
	Recommendation RecommendationTier `json:"recommendation"`
	Strengths      []string           `json:"strengths"`
	Improvements   []string           `json:"improvements"`
	Summary        string             `json:"summary"`
}

// PageNavigation is the teletext navigation strip rendered at the bottom of
// every page.
type PageNavigation struct {
	Page  int `json:"page"`
	Prev  int `json:"prev"`
	Next  int `json:"next"`
	Index int `json:"index"`
}

// FinalVisualOutput is the terminal render artifact persisted by the store.
type FinalVisualOutput struct {
	HTML       string         `json:"html"`
	Navigation PageNavigation `json:"navigation"`
}

type StageAttemptMetrics struct {
	Attempts       int
	ContentRetries int
}

type PipelineMetadata struct {
	StagesExecuted      []string       `json:"stages_executed"`
	TotalLLMCalls       int            `json:"total_llm_calls"`
	TotalRetries        int            `json:"total_retries"`
	StageAttempts       map[string]int `json:"stage_attempts,omitempty"`
	StageContentRetries map[string]int `json:"stage_content_retries,omitempty"`
	StartedAt           time.Time      `json:"started_at"`
	CompletedAt         time.Time      `json:"completed_at"`
}

// PipelineResult is the terminal value of a run: either every artifact from
// validated idea through rendered page, or a failure with the stage that
// caused it. The orchestrator never returns a Go error for a stage failure;
// callers branch on Success.
type PipelineResult struct {
	Success     bool                           `json:"success"`
	State       RunState                       `json:"state"`
	FailedStage string                         `json:"failed_stage,omitempty"`
	Error       string                         `json:"error,omitempty"`
	Request     RequestEnvelope                `json:"request"`
	Validated   *ValidatedIdea                 `json:"validated,omitempty"`
	Aggregated  *AggregatedData                `json:"aggregated,omitempty"`
	Structure   *ContentStructure              `json:"structure,omitempty"`
	Statistics  *StatisticsOutput              `json:"statistics,omitempty"`
	Visual      *FinalVisualOutput             `json:"visual,omitempty"`
	Attempts    map[string]StageAttemptMetrics `json:"-"`
	Metadata    PipelineMetadata               `json:"metadata"`
}
