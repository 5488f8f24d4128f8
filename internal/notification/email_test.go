package notification

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/tendant/simple-idm-otp/pkg/domain"
	"gopkg.in/gomail.v2"
)

func TestSMTPMailer_SendOTP(t *testing.T) {
	var sent *gomail.Message
	m := NewSMTPMailer(EmailConfig{From: "no-reply@example.com", FromName: "IDM", CodeTTL: 3 * time.Minute})
	m.send = func(msg *gomail.Message) error {
		sent = msg
		return nil
	}

	if err := m.SendOTP(context.Background(), "a@x.com", "123456", domain.OTPPurposeLogin); err != nil {
		t.Fatalf("SendOTP failed: %v", err)
	}
	if sent == nil {
		t.Fatal("no message sent")
	}
	if got := sent.GetHeader("To"); len(got) != 1 || got[0] != "a@x.com" {
		t.Errorf("To = %v", got)
	}
	if got := sent.GetHeader("Subject"); len(got) != 1 || got[0] != "Your Login OTP Code" {
		t.Errorf("Subject = %v", got)
	}

	var buf bytes.Buffer
	if _, err := sent.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	body := buf.String()
	if !strings.Contains(body, "123456") || !strings.Contains(body, "3 minutes") {
		t.Errorf("body missing code or expiry: %s", body)
	}
}

func TestSMTPMailer_SendError(t *testing.T) {
	m := NewSMTPMailer(EmailConfig{From: "no-reply@example.com"})
	m.send = func(*gomail.Message) error { return errors.New("dial tcp: refused") }

	err := m.SendOTP(context.Background(), "a@x.com", "123456", domain.OTPPurposeInvitation)
	if err == nil || !strings.Contains(err.Error(), "refused") {
		t.Errorf("expected wrapped send error, got %v", err)
	}
}

func TestSMTPMailer_DialsConfiguredServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	m := NewSMTPMailer(EmailConfig{Host: "127.0.0.1", Port: port, From: "no-reply@example.com"})
	err = m.SendOTP(context.Background(), "a@x.com", "123456", domain.OTPPurposeLogin)
	if err == nil || !strings.Contains(err.Error(), "failed to send login code") {
		t.Errorf("expected dial failure from the SMTP dialer, got %v", err)
	}
}

func TestSubject(t *testing.T) {
	tests := []struct {
		purpose domain.OTPPurpose
		want    string
	}{
		{domain.OTPPurposeLogin, "Your Login OTP Code"},
		{domain.OTPPurposePasswordReset, "Password Reset OTP"},
		{domain.OTPPurposeInvitation, "Account Invitation"},
	}
	for _, tt := range tests {
		if got := Subject(tt.purpose); got != tt.want {
			t.Errorf("Subject(%s) = %q, want %q", tt.purpose, got, tt.want)
		}
	}
}

func TestOutboxMailer(t *testing.T) {
	var buf bytes.Buffer
	m := NewOutboxMailer(&buf)
	if err := m.SendOTP(context.Background(), "a@x.com", "654321", domain.OTPPurposePasswordReset); err != nil {
		t.Fatalf("SendOTP failed: %v", err)
	}
	if !strings.Contains(buf.String(), "654321") || !strings.Contains(buf.String(), "a@x.com") {
		t.Errorf("unexpected outbox line %q", buf.String())
	}
}
