package notification

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tendant/simple-idm-otp/pkg/domain"
	"gopkg.in/gomail.v2"
)

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
	// CodeTTL is quoted in the message body.
	CodeTTL time.Duration
}

// SMTPMailer delivers one-time codes over SMTP.
type SMTPMailer struct {
	config EmailConfig
	send   func(*gomail.Message) error
}

func NewSMTPMailer(config EmailConfig) *SMTPMailer {
	dialer := gomail.NewDialer(config.Host, config.Port, config.User, config.Password)
	return &SMTPMailer{config: config, send: func(m *gomail.Message) error {
		return dialer.DialAndSend(m)
	}}
}

// SendOTP implements auth.Mailer.
func (s *SMTPMailer) SendOTP(ctx context.Context, to, code string, purpose domain.OTPPurpose) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := s.buildMessage(to, code, purpose)
	if err := s.send(m); err != nil {
		return fmt.Errorf("failed to send %s code: %w", purpose, err)
	}
	return nil
}

func (s *SMTPMailer) buildMessage(to, code string, purpose domain.OTPPurpose) *gomail.Message {
	m := gomail.NewMessage()
	if s.config.FromName != "" {
		m.SetAddressHeader("From", s.config.From, s.config.FromName)
	} else {
		m.SetHeader("From", s.config.From)
	}
	m.SetHeader("To", to)
	m.SetHeader("Subject", Subject(purpose))
	m.SetBody("text/html", otpBody(code, s.config.CodeTTL))
	return m
}

// Subject returns the mail subject used for purpose.
func Subject(purpose domain.OTPPurpose) string {
	switch purpose {
	case domain.OTPPurposeLogin:
		return "Your Login OTP Code"
	case domain.OTPPurposePasswordReset:
		return "Password Reset OTP"
	default:
		return "Account Invitation"
	}
}

func otpBody(code string, ttl time.Duration) string {
	if ttl <= 0 {
		ttl = 3 * time.Minute
	}
	return fmt.Sprintf(`<html><body>
		<h2>Security Verification</h2>
		<p>Your OTP code is: <strong>%s</strong></p>
		<p>This code will expire in %s.</p>
		<p>If you didn't request this, please ignore this email.</p>
	</body></html>`, code, humanDuration(ttl))
}

func humanDuration(d time.Duration) string {
	if d%time.Minute != 0 {
		return d.String()
	}
	if m := int(d / time.Minute); m != 1 {
		return fmt.Sprintf("%d minutes", m)
	}
	return "1 minute"
}

// OutboxMailer writes every message to w instead of sending it. It stands in
// for SMTP during local development so codes can be read off the terminal.
type OutboxMailer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewOutboxMailer(w io.Writer) *OutboxMailer {
	return &OutboxMailer{w: w}
}

// SendOTP implements auth.Mailer.
func (o *OutboxMailer) SendOTP(ctx context.Context, to, code string, purpose domain.OTPPurpose) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := fmt.Fprintf(o.w, "[outbox] to=%s subject=%q code=%s\n", to, Subject(purpose), code)
	return err
}
