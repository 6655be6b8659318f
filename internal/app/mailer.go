package app

import (
	"go.uber.org/zap"

	"campusattend/internal/config"
	"campusattend/internal/mail"
	"campusattend/internal/otp"
	"campusattend/internal/queue"
)

// SMTPSender builds the SMTP sender from config.
func SMTPSender(cfg config.App) *mail.SMTPSender {
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		Portal:   cfg.PortalName,
		Validity: otp.DefaultTTL,
	})
}

// NewMailer picks how the API hands codes off: straight to SMTP, onto the
// mail queue for cmd/worker, or to the log in development.
func NewMailer(cfg config.App, q queue.Queue, log *zap.Logger) otp.Mailer {
	switch cfg.MailBackend {
	case "smtp":
		return SMTPSender(cfg)
	case "queue":
		return mail.QueueSender{Queue: q}
	default:
		return mail.LogSender{Log: log}
	}
}
