package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-idm-otp/pkg/domain"
)

// Stores groups the persistence ports the service depends on.
type Stores struct {
	Users    UserStore
	History  PasswordHistoryStore
	OTPs     OTPStore
	Sessions SessionStore
	Roles    RoleStore
}

// ServiceConfig holds thresholds and lifetimes. Zero values select the defaults.
type ServiceConfig struct {
	OTPTTL           time.Duration
	LockoutThreshold int
	LockoutDuration  time.Duration
	PasswordMaxAge   time.Duration
	HistorySize      int
	BcryptCost       int
	DefaultRole      string
	Policy           *PasswordPolicy
	Token            TokenConfig
	Email            EmailRules

	Logger   *slog.Logger
	Observer Observer
	Now      func() time.Time
}

// Service runs the signup, login, OTP, password reset and invitation flows.
type Service struct {
	users  UserStore
	roles  RoleStore
	mailer Mailer

	credentials *CredentialStore
	history     *PasswordHistory
	otp         *OTPService
	sessions    *SessionRegistry
	tokens      *TokenIssuer

	policy      *PasswordPolicy
	defaultRole string
	emailRules  EmailRules

	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// NewService wires the auth components over the given stores.
func NewService(cfg ServiceConfig, stores Stores, mailer Mailer) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = domain.RoleViewer
	}
	if cfg.Policy == nil {
		cfg.Policy = DefaultPasswordPolicy()
	}

	return &Service{
		users:       stores.Users,
		roles:       stores.Roles,
		mailer:      mailer,
		credentials: NewCredentialStore(stores.Users, cfg.BcryptCost, cfg.LockoutThreshold, cfg.LockoutDuration, cfg.PasswordMaxAge, cfg.Now),
		history:     NewPasswordHistory(stores.History, cfg.HistorySize, cfg.Now),
		otp:         NewOTPService(stores.OTPs, stores.Users, cfg.OTPTTL, cfg.Now, cfg.Observer, cfg.Logger),
		sessions:    NewSessionRegistry(stores.Sessions, cfg.Now, cfg.Logger),
		tokens:      NewTokenIssuer(cfg.Token, cfg.Now),
		policy:      cfg.Policy,
		defaultRole: cfg.DefaultRole,
		emailRules:  cfg.Email,
		logger:      cfg.Logger,
		observer:    cfg.Observer,
		now:         cfg.Now,
	}
}

// Tokens returns the bearer token issuer.
func (s *Service) Tokens() *TokenIssuer {
	return s.tokens
}

// SignupInput is the input to Signup.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// Signup registers a new active user and gives it the default role.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	email, err := s.validEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := s.policy.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	name := SanitizeName(in.Name)
	if name == "" {
		return nil, domain.NewValidationError("name", "required")
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, domain.Dependency("check email", err)
	}
	if exists {
		return nil, domain.ErrUserAlreadyExists
	}

	ok, err := s.history.CanUse(ctx, nil, in.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrCannotReusePassword
	}

	now := s.now()
	user := &domain.User{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.credentials.HashInto(user, in.Password); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, domain.Dependency("create user", err)
	}

	if err := s.attachRoleByName(ctx, user.ID, s.defaultRole); err != nil {
		return nil, err
	}
	if err := s.history.Record(ctx, user.ID, user.PasswordHash); err != nil {
		return nil, err
	}

	s.logger.Info("user signed up", "user_id", user.ID, "email", MaskEmail(email))
	return user, nil
}

// LoginInput is the input to Login.
type LoginInput struct {
	Email     string
	Password  string
	SessionID string
	UserAgent string
	IPAddress string
}

// LoginResult tells the caller to continue with OTP verification.
type LoginResult struct {
	RequiresOTP bool
	SessionID   string
}

// Login checks the password and, on success, sends a login OTP. Unknown,
// inactive and wrong-password attempts all fail with ErrInvalidCredentials.
// A failed attempt that locks the account still reports invalid credentials;
// the lock is only disclosed on the next attempt.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := NormalizeEmail(in.Email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.Dependency("get user", err)
	}
	if user == nil || !user.IsActive {
		s.credentials.VerifyPassword(nil, in.Password)
		s.loginFailed(email, "invalid_credentials")
		return nil, domain.ErrInvalidCredentials
	}

	if user.IsLocked(s.now()) {
		s.loginFailed(email, "locked")
		return nil, &domain.LockedError{Until: *user.LockedUntil}
	}

	if !s.credentials.VerifyPassword(user, in.Password) {
		state, err := s.credentials.RecordFailedAttempt(ctx, user)
		if err != nil {
			return nil, err
		}
		if state.Locked {
			s.observer.AccountLocked()
			s.logger.Warn("account locked", "user_id", user.ID, "locked_until", state.LockedUntil)
		}
		s.loginFailed(email, "invalid_credentials")
		return nil, domain.ErrInvalidCredentials
	}

	if s.credentials.IsPasswordExpired(user) {
		s.loginFailed(email, "password_expired")
		return nil, &domain.PasswordExpiredError{RequiresReset: true}
	}

	if err := s.credentials.ResetFailures(ctx, user); err != nil {
		return nil, err
	}

	sessionID, err := s.sessionIDOrNew(in.SessionID)
	if err != nil {
		return nil, err
	}
	if err := s.sendCode(ctx, user, sessionID, domain.OTPPurposeLogin); err != nil {
		return nil, err
	}
	if err := s.sessions.Open(ctx, user.ID, sessionID, in.UserAgent, in.IPAddress); err != nil {
		return nil, err
	}

	s.observer.LoginAttempt("otp_required")
	return &LoginResult{RequiresOTP: true, SessionID: sessionID}, nil
}

// VerifyOTPInput identifies the code being submitted.
type VerifyOTPInput struct {
	Email     string
	Code      string
	SessionID string
}

// AuthResult is a completed authentication.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	SessionID string
	User      *domain.User
}

// VerifyLoginOTP completes a login by consuming the login OTP and minting a token.
func (s *Service) VerifyLoginOTP(ctx context.Context, in VerifyOTPInput) (*AuthResult, error) {
	in.SessionID = strings.TrimSpace(in.SessionID)
	user, err := s.otp.Verify(ctx, in.Email, in.Code, in.SessionID, domain.OTPPurposeLogin)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Touch(ctx, in.SessionID); err != nil {
		return nil, err
	}

	result, err := s.issueToken(user, in.SessionID)
	if err != nil {
		return nil, err
	}
	s.observer.LoginAttempt("success")
	s.logger.Info("login completed", "user_id", user.ID, "session_id", in.SessionID)
	return result, nil
}

// ForgotPassword sends a password reset OTP and returns the session it is
// bound to. Unlike Login, an unknown email fails with ErrUserNotFound.
func (s *Service) ForgotPassword(ctx context.Context, email, sessionID string) (string, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return "", domain.Dependency("get user", err)
	}

	sessionID, err = s.sessionIDOrNew(sessionID)
	if err != nil {
		return "", err
	}
	if err := s.sendCode(ctx, user, sessionID, domain.OTPPurposePasswordReset); err != nil {
		return "", err
	}
	return sessionID, nil
}

// ResetPasswordInput is the input to ResetPassword.
type ResetPasswordInput struct {
	Email       string
	Code        string
	SessionID   string
	NewPassword string
}

// ResetPassword consumes a password reset OTP and sets the new password.
func (s *Service) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	in.SessionID = strings.TrimSpace(in.SessionID)
	if err := s.policy.ValidatePassword(in.NewPassword); err != nil {
		return err
	}

	user, err := s.otp.Verify(ctx, in.Email, in.Code, in.SessionID, domain.OTPPurposePasswordReset)
	if err != nil {
		return err
	}
	if err := s.replacePassword(ctx, user, in.NewPassword); err != nil {
		return err
	}

	s.logger.Info("password reset", "user_id", user.ID)
	return nil
}

// InviteInput is the input to InviteUser.
type InviteInput struct {
	Email     string
	RoleID    *uuid.UUID
	InvitedBy uuid.UUID
}

// InviteResult carries the session the invitation OTP is bound to.
type InviteResult struct {
	User      *domain.User
	SessionID string
}

// InviteUser creates an invited account with a random temporary password and
// sends it an invitation OTP.
func (s *Service) InviteUser(ctx context.Context, in InviteInput) (*InviteResult, error) {
	email, err := s.validEmail(in.Email)
	if err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, domain.Dependency("check email", err)
	}
	if exists {
		return nil, domain.ErrUserAlreadyExists
	}

	tempPassword, err := generateTempPassword()
	if err != nil {
		return nil, err
	}

	now := s.now()
	inviter := in.InvitedBy
	user := &domain.User{
		ID:        uuid.New(),
		Name:      SanitizeName(localPart(email)),
		Email:     email,
		IsActive:  true,
		IsInvited: true,
		InvitedBy: &inviter,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.credentials.HashInto(user, tempPassword); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, domain.Dependency("create user", err)
	}
	if err := s.history.Record(ctx, user.ID, user.PasswordHash); err != nil {
		return nil, err
	}

	if in.RoleID != nil {
		if err := s.attachRoleByID(ctx, user.ID, *in.RoleID); err != nil {
			return nil, err
		}
	}

	sessionID, err := GenerateSessionID()
	if err != nil {
		return nil, err
	}
	if err := s.sendCode(ctx, user, sessionID, domain.OTPPurposeInvitation); err != nil {
		return nil, err
	}

	s.logger.Info("user invited", "user_id", user.ID, "invited_by", inviter, "email", MaskEmail(email))
	return &InviteResult{User: user, SessionID: sessionID}, nil
}

// AcceptInvitationInput is the input to AcceptInvitation.
type AcceptInvitationInput struct {
	Email       string
	Code        string
	SessionID   string
	NewPassword string
	UserAgent   string
	IPAddress   string
}

// AcceptInvitation consumes the invitation OTP, replaces the temporary
// password and signs the user in.
func (s *Service) AcceptInvitation(ctx context.Context, in AcceptInvitationInput) (*AuthResult, error) {
	in.SessionID = strings.TrimSpace(in.SessionID)
	if err := s.policy.ValidatePassword(in.NewPassword); err != nil {
		return nil, err
	}

	user, err := s.otp.Verify(ctx, in.Email, in.Code, in.SessionID, domain.OTPPurposeInvitation)
	if err != nil {
		return nil, err
	}
	if err := s.replacePassword(ctx, user, in.NewPassword); err != nil {
		return nil, err
	}
	if err := s.credentials.ResetFailures(ctx, user); err != nil {
		return nil, err
	}
	if err := s.sessions.Open(ctx, user.ID, in.SessionID, in.UserAgent, in.IPAddress); err != nil {
		return nil, err
	}
	if err := s.sessions.Touch(ctx, in.SessionID); err != nil {
		return nil, err
	}

	s.logger.Info("invitation accepted", "user_id", user.ID)
	return s.issueToken(user, in.SessionID)
}

// Authenticate verifies a bearer token and re-checks that its user still
// exists and is active.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.User, *domain.TokenClaims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, nil, domain.ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil, domain.ErrInvalidToken
		}
		return nil, nil, domain.Dependency("get user", err)
	}
	if !user.IsActive {
		return nil, nil, domain.ErrInvalidToken
	}
	return user, claims, nil
}

// HasPermission asks the role store whether the user holds permission.
func (s *Service) HasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error) {
	ok, err := s.roles.HasPermission(ctx, userID, permission)
	if err != nil {
		return false, domain.Dependency("check permission", err)
	}
	return ok, nil
}

// Profile returns the user with its role and permission names.
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, domain.Dependency("get user", err)
	}
	roles, err := s.roles.ListForUser(ctx, userID)
	if err != nil {
		return nil, domain.Dependency("list roles", err)
	}

	profile := &domain.UserProfile{User: user, Roles: []string{}, Permissions: []string{}}
	seen := make(map[string]bool)
	for _, r := range roles {
		profile.Roles = append(profile.Roles, r.Name)
		for _, p := range r.Permissions {
			if !seen[p] {
				seen[p] = true
				profile.Permissions = append(profile.Permissions, p)
			}
		}
	}
	return profile, nil
}

// ListUsers returns every user.
func (s *Service) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, domain.Dependency("list users", err)
	}
	return users, nil
}

// AttachRole gives the named role to the user.
func (s *Service) AttachRole(ctx context.Context, userID uuid.UUID, roleName string) error {
	role, err := s.roles.GetByName(ctx, roleName)
	if err != nil {
		return domain.Dependency("get role", err)
	}
	if err := s.roles.AttachToUser(ctx, userID, role.ID); err != nil {
		return domain.Dependency("attach role", err)
	}
	return nil
}

// replacePassword enforces history, stores the new hash and records it.
func (s *Service) replacePassword(ctx context.Context, user *domain.User, plaintext string) error {
	ok, err := s.history.CanUse(ctx, &user.ID, plaintext)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrCannotReusePassword
	}
	if err := s.credentials.SetPassword(ctx, user, plaintext); err != nil {
		return err
	}
	return s.history.Record(ctx, user.ID, user.PasswordHash)
}

func (s *Service) sendCode(ctx context.Context, user *domain.User, sessionID string, purpose domain.OTPPurpose) error {
	code, err := s.otp.Issue(ctx, user.ID, sessionID, purpose)
	if err != nil {
		return err
	}
	if err := s.mailer.SendOTP(ctx, user.Email, code, purpose); err != nil {
		s.logger.Error("otp delivery failed", "user_id", user.ID, "purpose", purpose, "error", err)
		return domain.Dependency("send otp", err)
	}
	return nil
}

func (s *Service) issueToken(user *domain.User, sessionID string) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email, sessionID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, SessionID: sessionID, User: user}, nil
}

// attachRoleByName attaches a role that may not be seeded; a missing role is skipped.
func (s *Service) attachRoleByName(ctx context.Context, userID uuid.UUID, name string) error {
	role, err := s.roles.GetByName(ctx, name)
	if errors.Is(err, domain.ErrRoleNotFound) {
		s.logger.Warn("role not found, skipping", "role", name, "user_id", userID)
		return nil
	}
	if err != nil {
		return domain.Dependency("get role", err)
	}
	if err := s.roles.AttachToUser(ctx, userID, role.ID); err != nil {
		return domain.Dependency("attach role", err)
	}
	return nil
}

func (s *Service) attachRoleByID(ctx context.Context, userID, roleID uuid.UUID) error {
	role, err := s.roles.GetByID(ctx, roleID)
	if errors.Is(err, domain.ErrRoleNotFound) {
		s.logger.Warn("role not found, skipping", "role_id", roleID, "user_id", userID)
		return nil
	}
	if err != nil {
		return domain.Dependency("get role", err)
	}
	if err := s.roles.AttachToUser(ctx, userID, role.ID); err != nil {
		return domain.Dependency("attach role", err)
	}
	return nil
}

func (s *Service) validEmail(raw string) (string, error) {
	return s.emailRules.Normalize(raw)
}

func (s *Service) sessionIDOrNew(sessionID string) (string, error) {
	if sessionID = strings.TrimSpace(sessionID); sessionID != "" {
		return sessionID, nil
	}
	return GenerateSessionID()
}

func (s *Service) loginFailed(email, reason string) {
	s.observer.LoginAttempt(reason)
	s.logger.Warn("login failed", "email", MaskEmail(email), "reason", reason)
}

// MaskEmail hides most of the local part: "jane@example.com" becomes "j***@example.com".
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
