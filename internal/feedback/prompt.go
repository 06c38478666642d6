package feedback

import (
	"fmt"
	"strings"

	"github.com/sjawhar/interview-coach/internal/llm"
)

const systemInstruction = "You are a professional interviewer analyzing a mock interview. Your task is to evaluate the candidate based on structured categories"

var categoryDescriptions = map[string]string{
	"Communication Skills": "Clarity, articulation, structured responses.",
	"Technical Knowledge":  "Understanding of key concepts for the role.",
	"Problem-Solving":      "Ability to analyze problems and propose solutions.",
	"Cultural & Role Fit":  "Alignment with company values and job role.",
	"Confidence & Clarity": "Confidence in responses, engagement, and clarity.",
}

func buildMessages(formattedTranscript string) []llm.Message {
	var rubric strings.Builder
	for _, name := range Categories {
		fmt.Fprintf(&rubric, "- **%s**: %s\n", name, categoryDescriptions[name])
	}

	prompt := fmt.Sprintf(`You are an AI interviewer analyzing a mock interview. Your task is to evaluate the candidate based on structured categories. Be thorough and detailed in your analysis. Don't be lenient with the candidate. If there are mistakes or areas for improvement, point them out.
Transcript:
%s
Please score the candidate from 0 to 100 in the following areas. Do not add categories other than the ones provided:
%s`, formattedTranscript, rubric.String())

	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemInstruction},
		{Role: llm.RoleUser, Content: prompt},
	}
}
