// Package metrics exposes Prometheus collectors for auth outcomes and HTTP traffic.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/simple-idm-otp/pkg/domain"
)

const namespace = "idm"

// register adds c to reg, reusing an identical collector that is already
// registered so that building twice against the default registry works.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

// AuthMetrics counts login, lockout and OTP outcomes. It implements auth.Observer.
type AuthMetrics struct {
	Logins    *prometheus.CounterVec
	Lockouts  prometheus.Counter
	OTPIssue  *prometheus.CounterVec
	OTPVerify *prometheus.CounterVec
}

// NewAuthMetrics registers the auth collectors with reg (default registerer when nil).
func NewAuthMetrics(reg prometheus.Registerer) (*AuthMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &AuthMetrics{}
	var err error
	if m.Logins, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "login_total",
		Help:      "Password login attempts partitioned by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if m.Lockouts, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "lockouts_total",
		Help:      "Accounts locked after too many failed logins.",
	})); err != nil {
		return nil, err
	}
	if m.OTPIssue, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "otp_issued_total",
		Help:      "One-time codes issued partitioned by purpose.",
	}, []string{"purpose"})); err != nil {
		return nil, err
	}
	if m.OTPVerify, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "otp_verify_total",
		Help:      "One-time code verifications partitioned by purpose and outcome.",
	}, []string{"purpose", "outcome"})); err != nil {
		return nil, err
	}
	return m, nil
}

// LoginAttempt counts a password login attempt with its outcome.
func (m *AuthMetrics) LoginAttempt(outcome string) {
	m.Logins.WithLabelValues(outcome).Inc()
}

// AccountLocked counts an account crossing the failure threshold.
func (m *AuthMetrics) AccountLocked() {
	m.Lockouts.Inc()
}

// OTPIssued counts a code sent for purpose.
func (m *AuthMetrics) OTPIssued(purpose domain.OTPPurpose) {
	m.OTPIssue.WithLabelValues(string(purpose)).Inc()
}

// OTPVerified counts a code verification for purpose with its outcome.
func (m *AuthMetrics) OTPVerified(purpose domain.OTPPurpose, outcome string) {
	m.OTPVerify.WithLabelValues(string(purpose), outcome).Inc()
}

// Handler serves the metrics gathered by g (default gatherer when nil).
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
