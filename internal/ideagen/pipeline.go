package ideagen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Stage names, used for error identity, metrics keys, and trace spans.
const (
	StageValidate        = "validate"
	StageBasicInfo       = "basic_info"
	StageTechnologies    = "technologies"
	StageBusinessContext = "business_context"
	StageRegulations     = "regulations"
	StageDifferentiators = "differentiators"
	StageOtherDetails    = "other_details"
	StageStructure       = "structure"
	StageScore           = "score"
	StageRender          = "render"
)

// DefaultStageTimeout bounds each backend call. The upstream design had no
// upper bound at all; a single uniform timeout is this implementation's
// hardening choice, overridable via WithStageTimeout.
const DefaultStageTimeout = 60 * time.Second

type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

func StageNameFromError(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return "pipeline"
}

type StageProgressFn func(stage, message string)

type Option func(*Pipeline)

func WithStageTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.stageTimeout = d
		}
	}
}

// Pipeline sequences validate → six analyzers (concurrent) → aggregate →
// structure → score → render for one submitted idea. Runs are fully
// independent; the Pipeline itself holds no per-run state and is safe for
// concurrent use.
type Pipeline struct {
	runner       StageRunner
	stageTimeout time.Duration
	tracer       trace.Tracer
}

func NewPipeline(runner StageRunner, opts ...Option) *Pipeline {
	p := &Pipeline{
		runner:       runner,
		stageTimeout: DefaultStageTimeout,
		tracer:       otel.Tracer("ideagen"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) Run(ctx context.Context, req RequestEnvelope) PipelineResult {
	return p.runWithProgress(ctx, req, nil)
}

func (p *Pipeline) RunWithProgress(ctx context.Context, req RequestEnvelope, progress StageProgressFn) PipelineResult {
	return p.runWithProgress(ctx, req, progress)
}

func (p *Pipeline) runWithProgress(ctx context.Context, req RequestEnvelope, progress StageProgressFn) PipelineResult {
	res := PipelineResult{
		State:    StateIdle,
		Request:  req,
		Attempts: map[string]StageAttemptMetrics{},
		Metadata: PipelineMetadata{StartedAt: time.Now()},
	}

	ctx, runSpan := p.tracer.Start(ctx, "ideagen.run",
		trace.WithAttributes(attribute.String("idea.id", req.IdeaID)))
	defer runSpan.End()

	// Validating.
	res.State = StateValidating
	emit(progress, StageValidate, "Validating submission...")
	validated, m, err := p.timedValidate(ctx, req)
	res.Attempts[StageValidate] = m
	if err != nil {
		return p.fail(res, runSpan, &StageError{Stage: StageValidate, Err: err})
	}
	res.Validated = &validated
	res.Metadata.StagesExecuted = append(res.Metadata.StagesExecuted, StageValidate)

	// Analyzing: six independent analyzers, dispatched concurrently with an
	// all-or-fail join. If any one fails the others' results are discarded;
	// there is no partial aggregation.
	res.State = StateAnalyzing
	emit(progress, "analyzing", "Running six category analyses...")
	var (
		basic           BasicInfoAnalysis
		tech            TechnologiesAnalysis
		business        BusinessContextAnalysis
		regulations     RegulationsAnalysis
		differentiators DifferentiatorsAnalysis
		other           OtherDetailsAnalysis

		mBasic, mTech, mBusiness, mRegulations, mDifferentiators, mOther StageAttemptMetrics
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		basic, mBasic, err = analyzeStage(gctx, p, StageBasicInfo, validated, p.runner.RunBasicInfo)
		return err
	})
	g.Go(func() (err error) {
		tech, mTech, err = analyzeStage(gctx, p, StageTechnologies, validated, p.runner.RunTechnologies)
		return err
	})
	g.Go(func() (err error) {
		business, mBusiness, err = analyzeStage(gctx, p, StageBusinessContext, validated, p.runner.RunBusinessContext)
		return err
	})
	g.Go(func() (err error) {
		regulations, mRegulations, err = analyzeStage(gctx, p, StageRegulations, validated, p.runner.RunRegulations)
		return err
	})
	g.Go(func() (err error) {
		differentiators, mDifferentiators, err = analyzeStage(gctx, p, StageDifferentiators, validated, p.runner.RunDifferentiators)
		return err
	})
	g.Go(func() (err error) {
		other, mOther, err = analyzeStage(gctx, p, StageOtherDetails, validated, p.runner.RunOtherDetails)
		return err
	})
	waitErr := g.Wait()
	for stage, m := range map[string]StageAttemptMetrics{
		StageBasicInfo:       mBasic,
		StageTechnologies:    mTech,
		StageBusinessContext: mBusiness,
		StageRegulations:     mRegulations,
		StageDifferentiators: mDifferentiators,
		StageOtherDetails:    mOther,
	} {
		if m.Attempts > 0 {
			res.Attempts[stage] = m
		}
	}
	if waitErr != nil {
		return p.fail(res, runSpan, waitErr)
	}
	res.Metadata.StagesExecuted = append(res.Metadata.StagesExecuted,
		StageBasicInfo, StageTechnologies, StageBusinessContext,
		StageRegulations, StageDifferentiators, StageOtherDetails)

	// Aggregating: pure merge, cannot fail.
	res.State = StateAggregating
	agg := Aggregate(validated, basic, tech, business, regulations, differentiators, other)
	res.Aggregated = &agg

	// Structuring.
	res.State = StateStructuring
	emit(progress, StageStructure, "Deriving page outline...")
	structure, m, err := p.timedStructure(ctx, agg)
	res.Attempts[StageStructure] = m
	if err != nil {
		return p.fail(res, runSpan, &StageError{Stage: StageStructure, Err: err})
	}
	res.Structure = &structure
	res.Metadata.StagesExecuted = append(res.Metadata.StagesExecuted, StageStructure)

	// Scoring.
	res.State = StateScoring
	emit(progress, StageScore, "Scoring the idea...")
	draft, m, err := p.timedScore(ctx, agg, structure)
	res.Attempts[StageScore] = m
	if err != nil {
		return p.fail(res, runSpan, &StageError{Stage: StageScore, Err: err})
	}
	statistics := FinalizeStatistics(draft)
	res.Statistics = &statistics
	res.Metadata.StagesExecuted = append(res.Metadata.StagesExecuted, StageScore)

	// Rendering: deterministic, no failure path.
	res.State = StateRendering
	emit(progress, StageRender, "Rendering teletext page...")
	visual := Render(agg, structure, statistics, validated.Title, req.PageNumber)
	res.Visual = &visual
	res.Metadata.StagesExecuted = append(res.Metadata.StagesExecuted, StageRender)

	res.State = StateDone
	res.Success = true
	return p.finalize(res)
}

// analyzeStage wraps one analyzer call with its timeout and trace span.
func analyzeStage[T any](
	ctx context.Context,
	p *Pipeline,
	stage string,
	idea ValidatedIdea,
	run func(context.Context, ValidatedIdea) (T, StageAttemptMetrics, error),
) (T, StageAttemptMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()
	ctx, span := p.tracer.Start(ctx, "ideagen."+stage)
	defer span.End()
	out, m, err := run(ctx, idea)
	recordSpanOutcome(span, err)
	if err != nil {
		return out, m, &StageError{Stage: stage, Err: err}
	}
	return out, m, nil
}

func (p *Pipeline) timedValidate(ctx context.Context, req RequestEnvelope) (ValidatedIdea, StageAttemptMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()
	ctx, span := p.tracer.Start(ctx, "ideagen."+StageValidate)
	defer span.End()
	out, m, err := p.runner.RunValidate(ctx, req)
	recordSpanOutcome(span, err)
	return out, m, err
}

func (p *Pipeline) timedStructure(ctx context.Context, agg AggregatedData) (ContentStructure, StageAttemptMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()
	ctx, span := p.tracer.Start(ctx, "ideagen."+StageStructure)
	defer span.End()
	out, m, err := p.runner.RunStructure(ctx, agg)
	recordSpanOutcome(span, err)
	return out, m, err
}

func (p *Pipeline) timedScore(ctx context.Context, agg AggregatedData, structure ContentStructure) (ScoreDraft, StageAttemptMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()
	ctx, span := p.tracer.Start(ctx, "ideagen."+StageScore)
	defer span.End()
	out, m, err := p.runner.RunScore(ctx, agg, structure)
	recordSpanOutcome(span, err)
	return out, m, err
}

func recordSpanOutcome(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func (p *Pipeline) fail(res PipelineResult, runSpan trace.Span, err error) PipelineResult {
	res.Success = false
	res.State = StateFailed
	res.FailedStage = StageNameFromError(err)
	res.Error = err.Error()
	recordSpanOutcome(runSpan, err)
	return p.finalize(res)
}

func (p *Pipeline) finalize(res PipelineResult) PipelineResult {
	res.Metadata.CompletedAt = time.Now()
	res.Metadata.StageAttempts = map[string]int{}
	res.Metadata.StageContentRetries = map[string]int{}
	for stage, m := range res.Attempts {
		res.Metadata.StageAttempts[stage] = m.Attempts
		res.Metadata.StageContentRetries[stage] = m.ContentRetries
		res.Metadata.TotalLLMCalls += m.Attempts
		if m.Attempts > 1 {
			res.Metadata.TotalRetries += m.Attempts - 1
		}
	}
	return res
}

func emit(progress StageProgressFn, stage, message string) {
	if progress != nil {
		progress(stage, message)
	}
}
