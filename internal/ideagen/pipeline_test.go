package ideagen

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

type mockRunner struct {
	mu    sync.Mutex
	calls map[string]int
	err   map[string]error
	delay map[string]time.Duration

	validated       ValidatedIdea
	basic           BasicInfoAnalysis
	tech            TechnologiesAnalysis
	business        BusinessContextAnalysis
	regulations     RegulationsAnalysis
	differentiators DifferentiatorsAnalysis
	other           OtherDetailsAnalysis
	structure       ContentStructure
	score           ScoreDraft
}

func (m *mockRunner) record(stage string) error {
	m.mu.Lock()
	m.calls[stage]++
	m.mu.Unlock()
	if d := m.delay[stage]; d > 0 {
		time.Sleep(d)
	}
	return m.err[stage]
}

func (m *mockRunner) callCount(stage string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[stage]
}

func (m *mockRunner) RunValidate(context.Context, RequestEnvelope) (ValidatedIdea, StageAttemptMetrics, error) {
	return m.validated, StageAttemptMetrics{Attempts: 1}, m.record(StageValidate)
}
func (m *mockRunner) RunBasicInfo(context.Context, ValidatedIdea) (BasicInfoAnalysis, StageAttemptMetrics, error) {
	return m.basic, StageAttemptMetrics{Attempts: 1}, m.record(StageBasicInfo)
}
func (m *mockRunner) RunTechnologies(context.Context, ValidatedIdea) (TechnologiesAnalysis, StageAttemptMetrics, error) {
	return m.tech, StageAttemptMetrics{Attempts: 1}, m.record(StageTechnologies)
}
func (m *mockRunner) RunBusinessContext(context.Context, ValidatedIdea) (BusinessContextAnalysis, StageAttemptMetrics, error) {
	return m.business, StageAttemptMetrics{Attempts: 1}, m.record(StageBusinessContext)
}
func (m *mockRunner) RunRegulations(context.Context, ValidatedIdea) (RegulationsAnalysis, StageAttemptMetrics, error) {
	return m.regulations, StageAttemptMetrics{Attempts: 1}, m.record(StageRegulations)
}
func (m *mockRunner) RunDifferentiators(context.Context, ValidatedIdea) (DifferentiatorsAnalysis, StageAttemptMetrics, error) {
	return m.differentiators, StageAttemptMetrics{Attempts: 1}, m.record(StageDifferentiators)
}
func (m *mockRunner) RunOtherDetails(context.Context, ValidatedIdea) (OtherDetailsAnalysis, StageAttemptMetrics, error) {
	return m.other, StageAttemptMetrics{Attempts: 1}, m.record(StageOtherDetails)
}
func (m *mockRunner) RunStructure(context.Context, AggregatedData) (ContentStructure, StageAttemptMetrics, error) {
	return m.structure, StageAttemptMetrics{Attempts: 1}, m.record(StageStructure)
}
func (m *mockRunner) RunScore(context.Context, AggregatedData, ContentStructure) (ScoreDraft, StageAttemptMetrics, error) {
	return m.score, StageAttemptMetrics{Attempts: 1}, m.record(StageScore)
}

func goodConfidence() StageConfidence {
	return StageConfidence{ConfidenceScore: 0.9, ConfidenceReason: "submission is detailed"}
}

func baseMockRunner() *mockRunner {
	return &mockRunner{
		calls: map[string]int{},
		err:   map[string]error{},
		delay: map[string]time.Duration{},
		validated: ValidatedIdea{
			Title:         "Smart Compost Bin",
			Description:   "A connected compost bin that tracks decomposition and nudges households toward zero food waste.",
			Category:      "sustainability",
			ProblemSolved: "Households do not know what compost state their bin is in.",
		},
		basic: BasicInfoAnalysis{
			Tagline:         "Compost that talks back",
			ProblemSummary:  "Households lack visibility into compost state and give up.",
			KeyBenefits:     []string{"Less food waste", "Usable soil faster"},
			TargetAudience:  "Urban households with gardens",
			StageConfidence: goodConfidence(),
		},
		tech: TechnologiesAnalysis{
			PrimaryTechnologies: []string{"moisture sensors", "BLE"},
			InnovationLevel:     InnovationMedium,
			TechSummary:         "Commodity sensors with a novel decomposition model on top.",
			StageConfidence:     goodConfidence(),
		},
		business: BusinessContextAnalysis{
			Segment:           "consumer hardware",
			RevenueModel:      "device sale plus subscription",
			MarketOpportunity: "Growing municipal composting mandates create steady demand.",
			BusinessValue:     "Recurring revenue on top of a one-time device purchase.",
			Scalability:       "Manufacturing-bound, software scales freely.",
			StageConfidence:   goodConfidence(),
		},
		regulations: RegulationsAnalysis{
			ComplianceStatus: ComplianceCompliant,
			RiskLevel:        RiskLow,
			KeyRegulations:   []string{"CE marking"},
			Summary:          "Consumer electronics rules only, nothing sector specific.",
			StageConfidence:  goodConfidence(),
		},
		differentiators: DifferentiatorsAnalysis{
			UniqueSellingPoint:   "Only bin that models decomposition state, not just fill level.",
			ReadinessLevel:       ReadinessPrototype,
			CompetitiveAdvantage: true,
			GitHubAvailable:      false,
			StageConfidence:      goodConfidence(),
		},
		other: OtherDetailsAnalysis{
			TeamSize:        "3",
			SupportNeeded:   []string{"hardware manufacturing partner"},
			DemoAvailable:   true,
			Highlights:      []string{"Working prototype in two community gardens"},
			StageConfidence: goodConfidence(),
		},
		structure: ContentStructure{
			PageTitle:       "SMART COMPOST BIN",
			Tagline:         "Compost that talks back",
			Sections:        []ContentSection{{Heading: "OVERVIEW", Summary: "Connected bin tracking decomposition."}},
			StageConfidence: goodConfidence(),
		},
		score: ScoreDraft{
			SubScores:       SubScores{Innovation: 80, Feasibility: 75, BusinessValue: 70, Compliance: 90, Readiness: 60},
			Strengths:       []string{"Real prototype exists"},
			Improvements:    []string{"Manufacturing plan missing"},
			Summary:         "Credible idea with a working prototype and a clear compliance picture.",
			StageConfidence: goodConfidence(),
		},
	}
}

func baseEnvelope() RequestEnvelope {
	return RequestEnvelope{
		IdeaID:     "idea-1",
		PageNumber: 101,
		Raw: RawIdeaInput{
			Title:            "Smart Compost Bin",
			ShortDescription: "A connected compost bin that tracks decomposition.",
			Category:         "Sustainability",
			ProblemSolved:    "Households do not know what compost state their bin is in.",
		},
	}
}

func TestPipelineSuccess(t *testing.T) {
	r := baseMockRunner()
	res := NewPipeline(r).Run(context.Background(), baseEnvelope())
	if !res.Success {
		t.Fatalf("expected success, got stage=%s err=%s", res.FailedStage, res.Error)
	}
	if res.State != StateDone {
		t.Fatalf("expected done state, got %s", res.State)
	}
	if res.Visual == nil || res.Visual.HTML == "" {
		t.Fatal("expected rendered page")
	}
	if res.Statistics == nil {
		t.Fatal("expected statistics")
	}
	if res.Visual.Navigation.Page != 101 || res.Visual.Navigation.Index != 100 {
		t.Fatalf("unexpected navigation: %+v", res.Visual.Navigation)
	}
	for _, stage := range []string{
		StageValidate, StageBasicInfo, StageTechnologies, StageBusinessContext,
		StageRegulations, StageDifferentiators, StageOtherDetails, StageStructure, StageScore,
	} {
		if r.callCount(stage) != 1 {
			t.Fatalf("stage %s called %d times", stage, r.callCount(stage))
		}
	}
	if res.Metadata.TotalLLMCalls != 9 {
		t.Fatalf("expected 9 llm calls, got %d", res.Metadata.TotalLLMCalls)
	}
	if res.Metadata.StageAttempts[StageValidate] != 1 {
		t.Fatal("expected per-stage attempt counters")
	}
}

func TestPipelineValidateFailure(t *testing.T) {
	r := baseMockRunner()
	r.err[StageValidate] = errors.New("submission rejected: gibberish")
	res := NewPipeline(r).Run(context.Background(), baseEnvelope())
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.State != StateFailed {
		t.Fatalf("expected failed state, got %s", res.State)
	}
	if res.FailedStage != StageValidate {
		t.Fatalf("expected failed stage %s, got %s", StageValidate, res.FailedStage)
	}
	if r.callCount(StageBasicInfo) != 0 {
		t.Fatal("analyzers must not run after validate failure")
	}
	if res.Visual != nil {
		t.Fatal("no page may be rendered on failure")
	}
}

func TestPipelineAnalyzerFailureDiscardsSiblings(t *testing.T) {
	r := baseMockRunner()
	r.err[StageRegulations] = errors.New("model unavailable")
	res := NewPipeline(r).Run(context.Background(), baseEnvelope())
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.FailedStage != StageRegulations {
		t.Fatalf("expected failed stage %s, got %s", StageRegulations, res.FailedStage)
	}
	if res.Aggregated != nil {
		t.Fatal("no partial aggregation on analyzer failure")
	}
	if r.callCount(StageStructure) != 0 || r.callCount(StageScore) != 0 {
		t.Fatal("downstream stages must not run after analyzer failure")
	}
	if !strings.Contains(res.Error, "model unavailable") {
		t.Fatalf("expected wrapped cause, got %q", res.Error)
	}
}

func TestPipelineStructureFailure(t *testing.T) {
	r := baseMockRunner()
	r.err[StageStructure] = errors.New("invalid json")
	res := NewPipeline(r).Run(context.Background(), baseEnvelope())
	if res.Success || res.FailedStage != StageStructure {
		t.Fatalf("expected structure failure, got success=%v stage=%s", res.Success, res.FailedStage)
	}
	// Analyzer outputs survive in the result for the operator report.
	if res.Aggregated == nil {
		t.Fatal("expected aggregated data to be retained")
	}
}

func TestPipelineAnalyzersRunConcurrently(t *testing.T) {
	r := baseMockRunner()
	per := 80 * time.Millisecond
	for _, stage := range []string{
		StageBasicInfo, StageTechnologies, StageBusinessContext,
		StageRegulations, StageDifferentiators, StageOtherDetails,
	} {
		r.delay[stage] = per
	}
	start := time.Now()
	res := NewPipeline(r).Run(context.Background(), baseEnvelope())
	elapsed := time.Since(start)
	if !res.Success {
		t.Fatalf("expected success: %s", res.Error)
	}
	// Six sequential analyzers would need 6x the per-stage delay.
	if elapsed > 3*per {
		t.Fatalf("analyzers appear sequential: %v elapsed for %v per stage", elapsed, per)
	}
}

func TestPipelineConcurrentEqualsSequentialOutput(t *testing.T) {
	r1 := baseMockRunner()
	r2 := baseMockRunner()
	r2.delay[StageBasicInfo] = 30 * time.Millisecond
	r2.delay[StageOtherDetails] = 10 * time.Millisecond

	a := NewPipeline(r1).Run(context.Background(), baseEnvelope())
	b := NewPipeline(r2).Run(context.Background(), baseEnvelope())
	if !a.Success || !b.Success {
		t.Fatal("expected both runs to succeed")
	}
	if a.Visual.HTML != b.Visual.HTML {
		t.Fatal("page output must not depend on analyzer completion order")
	}
	if !reflect.DeepEqual(*a.Statistics, *b.Statistics) {
		t.Fatal("statistics must not depend on analyzer completion order")
	}
}

func TestPipelineProgressCallback(t *testing.T) {
	r := baseMockRunner()
	var mu sync.Mutex
	seen := []string{}
	res := NewPipeline(r).RunWithProgress(context.Background(), baseEnvelope(), func(stage, message string) {
		mu.Lock()
		seen = append(seen, stage)
		mu.Unlock()
	})
	if !res.Success {
		t.Fatalf("expected success: %s", res.Error)
	}
	if len(seen) == 0 || seen[0] != StageValidate {
		t.Fatalf("expected validate progress first, got %v", seen)
	}
	last := seen[len(seen)-1]
	if last != StageRender {
		t.Fatalf("expected render progress last, got %s", last)
	}
}

func TestStageNameFromError(t *testing.T) {
	err := &StageError{Stage: StageScore, Err: errors.New("boom")}
	if got := StageNameFromError(err); got != StageScore {
		t.Fatalf("got %s", got)
	}
	wrapped := errors.Join(errors.New("outer"), err)
	if got := StageNameFromError(wrapped); got != StageScore {
		t.Fatalf("got %s for wrapped error", got)
	}
	if got := StageNameFromError(errors.New("plain")); got != "pipeline" {
		t.Fatalf("got %s for plain error", got)
	}
}
