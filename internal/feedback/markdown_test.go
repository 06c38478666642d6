package feedback

import (
	"strings"
	"testing"

	"github.com/sjawhar/interview-coach/internal/storage"
)

func TestRenderMarkdown(t *testing.T) {
	iv := storage.Interview{Role: "Backend Engineer", Level: "Senior", Type: "Technical", TechStack: []string{"go"}}
	fb := storage.Feedback{
		TotalScore:      72,
		CreatedAt:       "2026-02-26T10:00:00.000Z",
		CategoryScores:  []storage.CategoryScore{{Name: "Communication Skills", Score: 80, Comment: "clear"}},
		Strengths:       []string{"clear communication"},
		FinalAssessment: "Solid but generic.",
	}

	out := RenderMarkdown(iv, fb)
	for _, want := range []string{
		"# Feedback on the Interview - Backend Engineer Interview",
		"**72**/100",
		"### 1. Communication Skills (80/100)",
		"- clear communication",
		"## Areas for Improvement\n\n_None noted._",
		"- Tech stack: go",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected report to contain %q, got:\n%s", want, out)
		}
	}
}
