package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"subdash/cmd/internal/remote"
	"subdash/cmd/security/credential"
)

// User-facing messages. Every failure path yields one of these; no operation
// fails silently.
const (
	MsgInvalidEmail       = "please enter a valid email address"
	MsgConnectionFailed   = "connection failed, please try again"
	MsgBadCredentials     = "invalid email or password"
	MsgProfileNotFound    = "profile not found"
	MsgAlreadyRegistered  = "this email is already registered"
	MsgEmailNotConfirmed  = "please confirm your email address first"
	MsgSignupOK           = "account created. Check your inbox to confirm your email before signing in."
	MsgProfileSetupFailed = "account created, but profile setup failed. Please contact support."
	MsgLoginOK            = "signed in"
	MsgResetSent          = "if an account exists for this address, a recovery email is on its way"
	MsgSessionExpired     = "session expired, please sign in again"
)

// Clock is an injectable time source to enable deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// Service orchestrates the auth lifecycle for one connection's State.
//
// It validates input locally, talks to the remote backend, and writes results
// into the State. All operations run synchronously to completion; nothing is
// retried. Errors cross this boundary as (ok, message) pairs, never panics.
type Service struct {
	cfg    Config
	remote remote.Client
	state  *State
	clock  Clock
	log    *slog.Logger
}

// Option configures optional Service dependencies.
type Option func(*Service)

// WithClock overrides the time source (tests).
func WithClock(c Clock) Option {
	return func(s *Service) {
		if s == nil || c == nil {
			return
		}
		s.clock = c
	}
}

// NewService constructs a Service bound to one session State.
// The remote client is injected so tests can substitute a fake backend.
func NewService(cfg Config, rc remote.Client, st *State, log *slog.Logger, opts ...Option) *Service {
	if st == nil {
		st = NewState(cfg.ActivityLogCap)
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		cfg:    cfg,
		remote: rc,
		state:  st,
		clock:  realClock{},
		log:    log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// State returns the session state this service mutates.
func (s *Service) State() *State { return s.state }

// Signup registers a new account and writes its profile row.
//
// It validates email and password locally first; the remote store is never
// contacted for malformed input. A successful signup does NOT authenticate
// the session: the provider requires email confirmation before sign-in.
func (s *Service) Signup(ctx context.Context, email, password, fullName, company string) (bool, string) {
	email = strings.TrimSpace(email)
	if !credential.ValidateEmail(email) {
		return false, MsgInvalidEmail
	}
	if err := credential.ValidatePassword(password); err != nil {
		return false, "password rejected: " + credential.Reason(err)
	}

	user, err := s.remote.SignUp(ctx, email, password, remote.SignUpMetadata{
		FullName: strings.TrimSpace(fullName),
		Company:  strings.TrimSpace(company),
	})
	if err != nil {
		s.log.Warn("auth.signup.fail", "err", err)
		return false, remoteMessage(err)
	}

	row := remote.NewProfileRow(user, strings.TrimSpace(fullName), strings.TrimSpace(company), s.clock.Now())
	if err := s.remote.InsertProfile(ctx, row); err != nil {
		// The identity exists but the profile row does not; login will refuse
		// such half-provisioned accounts, so tell the user now.
		s.log.Error("auth.signup.profile_insert.fail", "user_id", user.ID, "err", err)
		return false, MsgProfileSetupFailed
	}

	s.log.Info("auth.signup.ok", "user_id", user.ID)
	return true, MsgSignupOK
}

// Login authenticates credentials and transitions the session to
// Authenticated on success.
//
// A missing profile row fails the login even though the remote auth
// succeeded: half-provisioned accounts must not get a session.
func (s *Service) Login(ctx context.Context, email, password string, rememberMe bool) (bool, string) {
	email = strings.TrimSpace(email)
	if !credential.ValidateEmail(email) {
		return false, MsgInvalidEmail
	}

	user, err := s.remote.SignIn(ctx, email, password)
	if err != nil {
		s.log.Warn("auth.login.fail", "err", err)
		return false, remoteMessage(err)
	}

	profile, err := s.remote.FetchProfile(ctx, user.ID)
	if err != nil {
		if remote.IsNotFound(err) {
			s.log.Error("auth.login.profile_missing", "user_id", user.ID)
			return false, MsgProfileNotFound
		}
		s.log.Warn("auth.login.profile_fetch.fail", "user_id", user.ID, "err", err)
		return false, remoteMessage(err)
	}

	now := s.clock.Now()

	// Stamp last-login and bump the counter. Best-effort: a failed bookkeeping
	// write is logged but does not block the login.
	count := profile.LoginCount + 1
	if err := s.remote.UpdateProfile(ctx, user.ID, remote.ProfileUpdate{
		LoginCount:  &count,
		LastLoginAt: &now,
	}); err != nil {
		s.log.Warn("auth.login.stamp.fail", "user_id", user.ID, "err", err)
	}

	last := now
	s.state.beginAuthenticated(&Identity{
		ID:          user.ID,
		Email:       user.Email,
		Role:        profile.Role,
		FullName:    profile.FullName,
		Company:     profile.Company,
		CreatedAt:   user.CreatedAt,
		LastLoginAt: &last,
		LoginCount:  count,
		Preferences: profile.Preferences,
	}, rememberMe, now)

	s.state.appendActivity(now, "login", "signed in as "+user.Email)
	s.log.Info("auth.login.ok", "user_id", user.ID, "role", string(profile.Role))
	return true, MsgLoginOK
}

// Logout ends the session. It is idempotent and never fails observably:
// the remote sign-out is best-effort and local state is always reset.
func (s *Service) Logout(ctx context.Context) {
	if s.state.authenticated {
		s.state.appendActivity(s.clock.Now(), "logout", "signed out")

		if err := s.remote.SignOut(ctx); err != nil {
			s.log.Warn("auth.logout.remote.fail", "err", err)
		}
		if u := s.state.user; u != nil {
			s.log.Info("auth.logout.ok", "user_id", u.ID)
		}
	}
	s.state.reset()
}

// RequestPasswordReset asks the backend to send a recovery email.
//
// Syntactically invalid addresses fail locally without any network call.
// For valid addresses the answer is always the same generic success message,
// so the response never reveals whether the address is registered; backend
// failures are logged only.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (bool, string) {
	email = strings.TrimSpace(email)
	if !credential.ValidateEmail(email) {
		return false, MsgInvalidEmail
	}

	if err := s.remote.SendRecoveryEmail(ctx, email, s.cfg.ResetRedirectURL); err != nil {
		s.log.Warn("auth.reset.fail", "err", err)
	} else {
		s.log.Info("auth.reset.requested")
	}
	return true, MsgResetSent
}

// CheckTimeout enforces idle expiry at touch time.
//
// When the session has been idle longer than the configured timeout it forces
// the logout transition and reports expiry; otherwise it refreshes the
// last-activity timestamp. A session that is never touched again is never
// cleaned up here; that is the documented shape of this check.
func (s *Service) CheckTimeout(ctx context.Context) (expired bool) {
	if !s.state.authenticated {
		return false
	}

	now := s.clock.Now()
	if now.Sub(s.state.lastActivity) > s.cfg.IdleTimeout {
		s.log.Info("auth.session.expired",
			"idle", now.Sub(s.state.lastActivity).String(),
			"timeout", s.cfg.IdleTimeout.String(),
		)
		s.Logout(ctx)
		return true
	}

	s.state.touch(now)
	return false
}

// LogActivity appends a user action to the session's bounded activity log.
// No-op while unauthenticated.
func (s *Service) LogActivity(action, details string) {
	s.state.appendActivity(s.clock.Now(), action, details)
}

// CanAccess reports whether the session may view a page of the given class.
func (s *Service) CanAccess(page PageClass) (bool, string) {
	return s.state.CanAccess(page)
}

// remoteMessage maps a remote error onto user-facing copy. Known provider
// detail substrings get friendlier wording; the rest pass through generically.
func remoteMessage(err error) string {
	switch {
	case remote.IsUnavailable(err):
		return MsgConnectionFailed
	case remote.IsNotFound(err):
		return MsgProfileNotFound
	case remote.IsRejected(err):
		detail := strings.ToLower(remote.Detail(err))
		switch {
		case strings.Contains(detail, "already registered"), strings.Contains(detail, "already exists"):
			return MsgAlreadyRegistered
		case strings.Contains(detail, "invalid login"), strings.Contains(detail, "credentials"):
			return MsgBadCredentials
		case strings.Contains(detail, "not confirmed"):
			return MsgEmailNotConfirmed
		case detail != "":
			return detail
		}
		return MsgBadCredentials
	default:
		return MsgConnectionFailed
	}
}
