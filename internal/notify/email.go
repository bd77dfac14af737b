package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"

	"budgetbuddy/internal/config"
	"budgetbuddy/internal/logger"
)

type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// EmailNotifier sends reports over SMTP.
type EmailNotifier struct {
	from string
	addr string
	auth smtp.Auth
	send sendFunc
}

// NewEmailNotifier creates an EmailNotifier from the SMTP settings in cfg.
// Authentication is skipped when no username is configured.
func NewEmailNotifier(cfg *config.Config) *EmailNotifier {
	var auth smtp.Auth
	if cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &EmailNotifier{
		from: cfg.SenderEmail,
		addr: fmt.Sprintf("%s:%s", cfg.SMTPHost, cfg.SMTPPort),
		auth: auth,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// SendMonthlyReport emails report to its owner.
func (n *EmailNotifier) SendMonthlyReport(ctx context.Context, report MonthlyReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = n.from
	e.To = []string{report.Email}
	e.Subject = fmt.Sprintf("Your BudgetBuddy summary for %s", report.Period())
	e.Text = []byte(RenderText(report))

	if err := n.send(e, n.addr, n.auth); err != nil {
		return fmt.Errorf("send report email to %s: %w", report.Email, err)
	}

	logger.Named("notify").Infow("monthly report emailed", "user_id", report.UserID, "period", report.Period())
	return nil
}
