package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"campusattend/internal/queue"
)

// JobType tags OTP mail messages on the queue.
const JobType = "otp_mail"

// Job is a queued OTP delivery.
type Job struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

var otpBody = template.Must(template.New("otp").Parse(`<html>
<body style="font-family: Arial, sans-serif; background-color: #f4f4f4; padding: 20px;">
  <div style="max-width: 600px; margin: 0 auto; background-color: white; padding: 30px; border-radius: 10px;">
    <h1 style="color: #d32f2f; text-align: center;">{{.Portal}}</h1>
    <h2 style="color: #333; text-align: center;">OTP Verification</h2>
    <p style="color: #666; font-size: 16px;">Your one-time password for login is:</p>
    <p style="text-align: center; font-size: 24px; font-weight: bold; letter-spacing: 3px;">{{.Code}}</p>
    <p style="color: #666; font-size: 14px; text-align: center;">This OTP is valid for {{.Minutes}} minutes. Do not share it with anyone.</p>
  </div>
</body>
</html>`))

// SMTPConfig holds outgoing mail settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Portal   string
	Validity time.Duration
}

// SMTPSender delivers codes over SMTP.
type SMTPSender struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

// NewSMTPSender creates a sender. From defaults to the username.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.Portal == "" {
		cfg.Portal = "Attendance Portal"
	}
	if cfg.Validity <= 0 {
		cfg.Validity = 5 * time.Minute
	}
	return &SMTPSender{cfg: cfg, dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)}
}

// Render returns the HTML body for code.
func (s *SMTPSender) Render(code string) (string, error) {
	var body bytes.Buffer
	err := otpBody.Execute(&body, struct {
		Portal  string
		Code    string
		Minutes int
	}{s.cfg.Portal, code, int(s.cfg.Validity / time.Minute)})
	if err != nil {
		return "", fmt.Errorf("render otp mail: %w", err)
	}
	return body.String(), nil
}

// Message builds the OTP mail.
func (s *SMTPSender) Message(email, code string) (*gomail.Message, error) {
	body, err := s.Render(code)
	if err != nil {
		return nil, err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", email)
	m.SetHeader("Subject", s.cfg.Portal+" - OTP Verification")
	m.SetBody("text/html", body)
	return m, nil
}

// Send renders and delivers one code.
func (s *SMTPSender) Send(ctx context.Context, email, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := s.Message(email, code)
	if err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// LogSender writes codes to the log instead of mailing them. Development only.
type LogSender struct {
	Log *zap.Logger
}

func (l LogSender) Send(_ context.Context, email, code string) error {
	l.Log.Info("otp issued (log mailer)", zap.String("email", email), zap.String("code", code))
	return nil
}

// QueueSender hands codes to the mail worker. Success means enqueued, not delivered.
type QueueSender struct {
	Queue queue.Queue
}

func (q QueueSender) Send(ctx context.Context, email, code string) error {
	body, err := json.Marshal(Job{Email: email, Code: code})
	if err != nil {
		return err
	}
	return q.Queue.Publish(ctx, queue.Message{Type: JobType, Body: body, EnqueuedAt: time.Now().UTC()})
}
