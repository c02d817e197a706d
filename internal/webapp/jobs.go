package webapp

import (
	"context"
	"log"
	"sync"
	"time"

	"teletext/internal/ideagen"
	"teletext/internal/store"
)

// Runner owns the background pipeline jobs the HTTP layer fires off at
// submission time. Each job gets its own detached context so it outlives the
// originating request, and the completion callback settles the stored idea
// exactly once: published on success, draft on failure.
type Runner struct {
	pipeline *ideagen.Pipeline
	store    *store.Store
	timeout  time.Duration
	wg       sync.WaitGroup

	// onSettled is invoked after the store write completes. Tests hook it to
	// synchronize on job completion.
	onSettled func(res ideagen.PipelineResult)
}

// DefaultJobTimeout bounds one whole pipeline run.
const DefaultJobTimeout = 10 * time.Minute

func NewRunner(pipeline *ideagen.Pipeline, st *store.Store) *Runner {
	return &Runner{pipeline: pipeline, store: st, timeout: DefaultJobTimeout}
}

// Enqueue starts one pipeline run in the background and returns immediately.
func (r *Runner) Enqueue(req ideagen.RequestEnvelope) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		res := r.pipeline.RunWithProgress(ctx, req, func(stage, message string) {
			log.Printf("idea %s [%s] %s", req.IdeaID, stage, message)
		})
		report := ideagen.BuildReportMarkdown(res)

		if res.Success {
			err := r.store.PublishIdea(
				req.IdeaID,
				res.Visual.HTML,
				report,
				res.Statistics.OverallScore,
				string(res.Statistics.Recommendation),
			)
			if err != nil {
				log.Printf("idea %s publish failed: %v", req.IdeaID, err)
			} else {
				log.Printf("idea %s published on page %d (score %.1f)", req.IdeaID, req.PageNumber, res.Statistics.OverallScore)
			}
		} else {
			if err := r.store.MarkIdeaDraft(req.IdeaID, res.Error, report); err != nil {
				log.Printf("idea %s draft fallback failed: %v", req.IdeaID, err)
			} else {
				log.Printf("idea %s fell back to draft: %s failed: %s", req.IdeaID, res.FailedStage, res.Error)
			}
		}

		if r.onSettled != nil {
			r.onSettled(res)
		}
	}()
}

// Wait blocks until every in-flight job has settled. Called on shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}
