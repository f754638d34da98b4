package email

import (
	"context"
	"time"

	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/komiwalnut/AuthentiCute/internal/core/port"
	"github.com/komiwalnut/AuthentiCute/internal/infra/logger"
)

// Notifier renders account emails and hands them to a sender.
type Notifier struct {
	sender   port.EmailSender
	baseURL  string
	resetTTL time.Duration
	logger   *zap.Logger
}

var _ port.AccountNotifier = (*Notifier)(nil)

// NewNotifier builds links against baseURL. resetTTL is quoted in the reset email.
func NewNotifier(sender port.EmailSender, baseURL string, resetTTL time.Duration, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{sender: sender, baseURL: baseURL, resetTTL: resetTTL, logger: log}
}

// SendVerification emails the verification link for token.
func (n *Notifier) SendVerification(ctx context.Context, to, token string) error {
	data := templateData{Link: buildLink(n.baseURL, "/verify-email", token)}
	html, text, err := render(verificationHTMLTmpl, verificationTextTmpl, data)
	if err != nil {
		return oops.Code("MAIL_TEMPLATE_FAILED").With("template", "verification").Wrap(err)
	}
	return n.send(ctx, port.EmailMessage{To: to, Subject: verificationSubject, HTML: html, Text: text})
}

// SendPasswordReset emails the password reset link for token.
func (n *Notifier) SendPasswordReset(ctx context.Context, to, token string) error {
	data := templateData{
		Link:      buildLink(n.baseURL, "/reset-password", token),
		ExpiresIn: humanizeTTL(n.resetTTL),
	}
	html, text, err := render(passwordResetHTMLTmpl, passwordResetTextTmpl, data)
	if err != nil {
		return oops.Code("MAIL_TEMPLATE_FAILED").With("template", "password_reset").Wrap(err)
	}
	return n.send(ctx, port.EmailMessage{To: to, Subject: passwordResetSubject, HTML: html, Text: text})
}

func (n *Notifier) send(ctx context.Context, msg port.EmailMessage) error {
	if err := n.sender.Send(ctx, msg); err != nil {
		n.logger.Warn("email delivery failed",
			append(logger.Error(err),
				zap.String("to", logger.MaskEmail(msg.To)),
				zap.String("subject", msg.Subject),
			)...,
		)
		return err
	}
	return nil
}
