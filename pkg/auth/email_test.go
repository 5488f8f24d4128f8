package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/tendant/simple-idm-otp/pkg/domain"
)

func TestEmailRules_Normalize(t *testing.T) {
	tests := []struct {
		name    string
		rules   EmailRules
		email   string
		want    string
		wantErr bool
	}{
		{name: "plain", email: "test@example.com", want: "test@example.com"},
		{name: "subdomain", email: "test@mail.example.com", want: "test@mail.example.com"},
		{name: "plus tag", email: "test+tag@example.com", want: "test+tag@example.com"},
		{name: "case and space folded", email: "  Jane.Doe@Example.COM ", want: "jane.doe@example.com"},
		{name: "empty", email: "   ", wantErr: true},
		{name: "no at", email: "invalid.com", wantErr: true},
		{name: "no domain", email: "test@", wantErr: true},
		{name: "no local part", email: "@example.com", wantErr: true},
		{name: "display name", email: "Jane <jane@example.com>", wantErr: true},
		{name: "too long", email: strings.Repeat("a", 250) + "@x.com", wantErr: true},
		{name: "quoted local part", email: `"john doe"@example.com`, wantErr: true},
		{name: "unicode local part allowed", email: "josé@example.com", want: "josé@example.com"},
		{name: "unicode local part strict", rules: EmailRules{Strict: true}, email: "josé@example.com", wantErr: true},
		{name: "disposable allowed by default", email: "x@mailinator.com", want: "x@mailinator.com"},
		{name: "disposable blocked", rules: EmailRules{BlockDisposable: true}, email: "x@Mailinator.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.rules.Normalize(tt.email)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var ve *domain.ValidationError
				if !errors.As(err, &ve) || ve.Field != "email" {
					t.Errorf("Normalize() error = %v, want email ValidationError", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Normalize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocalPartAndDomain(t *testing.T) {
	tests := []struct {
		email, local, domain string
	}{
		{"bob@example.com", "bob", "example.com"},
		{"a@b@c.com", "a@b", "c.com"},
		{"nobody", "nobody", ""},
	}
	for _, tt := range tests {
		if got := localPart(tt.email); got != tt.local {
			t.Errorf("localPart(%q) = %q, want %q", tt.email, got, tt.local)
		}
		if got := emailDomain(tt.email); got != tt.domain {
			t.Errorf("emailDomain(%q) = %q, want %q", tt.email, got, tt.domain)
		}
	}
}
