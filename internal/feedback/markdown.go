package feedback

import (
	"fmt"
	"strings"

	"github.com/sjawhar/interview-coach/internal/storage"
)

// RenderMarkdown formats a feedback record as a standalone report.
func RenderMarkdown(iv storage.Interview, fb storage.Feedback) string {
	var b strings.Builder

	title := strings.TrimSpace(iv.Role)
	if title == "" {
		title = "Mock"
	}
	fmt.Fprintf(&b, "# Feedback on the Interview - %s Interview\n\n", title)
	fmt.Fprintf(&b, "- Overall impression: **%d**/100\n", fb.TotalScore)
	if fb.CreatedAt != "" {
		fmt.Fprintf(&b, "- Evaluated: %s\n", fb.CreatedAt)
	}
	if iv.Level != "" || iv.Type != "" {
		fmt.Fprintf(&b, "- Interview: %s\n", strings.TrimSpace(iv.Level+" "+iv.Type))
	}
	if len(iv.TechStack) > 0 {
		fmt.Fprintf(&b, "- Tech stack: %s\n", strings.Join(iv.TechStack, ", "))
	}

	fmt.Fprintf(&b, "\n%s\n", fb.FinalAssessment)

	b.WriteString("\n## Breakdown of the Interview\n")
	for i, c := range fb.CategoryScores {
		fmt.Fprintf(&b, "\n### %d. %s (%d/100)\n\n%s\n", i+1, c.Name, c.Score, c.Comment)
	}

	writeList(&b, "Strengths", fb.Strengths)
	writeList(&b, "Areas for Improvement", fb.AreasForImprovement)

	return b.String()
}

func writeList(b *strings.Builder, heading string, items []string) {
	fmt.Fprintf(b, "\n## %s\n\n", heading)
	if len(items) == 0 {
		b.WriteString("_None noted._\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
