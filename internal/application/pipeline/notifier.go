package pipeline

import (
	"context"
	"log/slog"

	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
)

// Notifier emails results to stakeholders and failures to operators.
type Notifier struct {
	Mailer         report.Mailer
	Recipient      string
	AlertRecipient string
	Logger         *slog.Logger
}

// Notify sends the stakeholder summary. Any failure is a NotificationError.
func (n *Notifier) Notify(ctx context.Context, req report.AnalysisRequest, result report.AnalysisResult, link string) (string, error) {
	msg, err := RenderNotification(n.Recipient, req.DocumentName(), result, link)
	if err != nil {
		return "", report.NewError(report.KindNotification, report.StageNotifying, "render email", err)
	}
	id, err := n.Mailer.Send(ctx, msg)
	if err != nil {
		return "", report.NewError(report.KindNotification, report.StageNotifying, "deliver email to "+n.Recipient, err)
	}
	logger(n.Logger).Info("pipeline.notify.ok", "to", n.Recipient, "message_id", id, "subject", msg.Subject)
	return id, nil
}

// Alert tells operators about a failed run. It is a no-op without an
// AlertRecipient.
func (n *Notifier) Alert(ctx context.Context, out Outcome) error {
	if n == nil || n.AlertRecipient == "" {
		return nil
	}
	msg, err := RenderAlert(n.AlertRecipient, out)
	if err != nil {
		return err
	}
	_, err = n.Mailer.Send(ctx, msg)
	return err
}
