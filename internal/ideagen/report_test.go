package ideagen

import (
	"context"
	"strings"
	"testing"
)

func TestBuildReportMarkdownSuccess(t *testing.T) {
	r := baseMockRunner()
	res := NewPipeline(r).Run(context.Background(), baseEnvelope())
	if !res.Success {
		t.Fatalf("expected success: %s", res.Error)
	}
	md := BuildReportMarkdown(res)
	for _, want := range []string{
		"# Idea Analysis Report",
		"## Scores",
		"| Innovation | 80 |",
		"RECOMMENDED",
		"## Summary",
		"Run Metadata",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("report missing %q", want)
		}
	}
}

func TestBuildReportMarkdownFailure(t *testing.T) {
	r := baseMockRunner()
	r.err[StageScore] = errStage{}
	res := NewPipeline(r).Run(context.Background(), baseEnvelope())
	md := BuildReportMarkdown(res)
	if !strings.Contains(md, "failed at stage `score`") {
		t.Fatalf("failure report must name the stage:\n%s", md)
	}
	if strings.Contains(md, "## Scores") {
		t.Fatal("failure report must not fabricate scores")
	}
}

type errStage struct{}

func (errStage) Error() string { return "model unavailable" }
