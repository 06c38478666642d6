package feedback

import (
	"context"
	"fmt"

	"github.com/sjawhar/interview-coach/internal/storage"
)

type InterviewSource interface {
	GetInterview(ctx context.Context, id string) (storage.Interview, error)
}

type ReportWriter interface {
	Write(feedbackID, markdown string) (string, error)
}

// Uploader copies a local report somewhere shared. Name is stable per
// feedback id so that regenerated feedback replaces the earlier upload.
type Uploader interface {
	Upload(ctx context.Context, localPath, name string) error
}

// ReportNotifier renders each stored feedback record as markdown, keeps a
// local copy and optionally uploads it.
type ReportNotifier struct {
	interviews InterviewSource
	writer     ReportWriter
	uploader   Uploader
}

func NewReportNotifier(interviews InterviewSource, writer ReportWriter, uploader Uploader) *ReportNotifier {
	return &ReportNotifier{interviews: interviews, writer: writer, uploader: uploader}
}

func (n *ReportNotifier) Notify(ctx context.Context, fb storage.Feedback) error {
	iv, err := n.interviews.GetInterview(ctx, fb.InterviewID)
	if err != nil {
		return fmt.Errorf("load interview for report: %w", err)
	}

	path, err := n.writer.Write(fb.ID, RenderMarkdown(iv, fb))
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if n.uploader == nil {
		return nil
	}
	if err := n.uploader.Upload(ctx, path, reportName(iv, fb)); err != nil {
		return fmt.Errorf("upload report: %w", err)
	}
	return nil
}

func reportName(iv storage.Interview, fb storage.Feedback) string {
	if iv.Role == "" {
		return "interview-feedback-" + fb.ID
	}
	return fmt.Sprintf("interview-feedback-%s-%s", iv.Role, fb.ID)
}
