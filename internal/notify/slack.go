package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/sjawhar/interview-coach/internal/storage"
)

// Slack posts a short summary of each stored feedback record to an
// incoming webhook.
type Slack struct {
	webhookURL string
	post       func(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

func NewSlack(webhookURL string) *Slack {
	return &Slack{webhookURL: webhookURL, post: slack.PostWebhookContext}
}

func (s *Slack) Notify(ctx context.Context, fb storage.Feedback) error {
	if err := s.post(ctx, s.webhookURL, message(fb)); err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	return nil
}

func message(fb storage.Feedback) *slack.WebhookMessage {
	headline := fmt.Sprintf("Interview feedback ready: %d/100", fb.TotalScore)

	var scores strings.Builder
	for _, c := range fb.CategoryScores {
		fmt.Fprintf(&scores, "• *%s*: %d\n", c.Name, c.Score)
	}

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, headline, false, false)),
	}
	if scores.Len() > 0 {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, scores.String(), false, false), nil, nil))
	}
	if fb.FinalAssessment != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, fb.FinalAssessment, false, false), nil, nil))
	}
	blocks = append(blocks, slack.NewContextBlock("",
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("interview `%s` · feedback `%s`", fb.InterviewID, fb.ID), false, false)))

	return &slack.WebhookMessage{
		Text:   headline,
		Blocks: &slack.Blocks{BlockSet: blocks},
	}
}
