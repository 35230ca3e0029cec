package session

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"subdash/cmd/internal/remote"
)

// fakeRemote is a scriptable remote.Client. Unset hooks answer with sane
// defaults; calls counts every invocation per operation.
type fakeRemote struct {
	signUpFn        func(email, password string, meta remote.SignUpMetadata) (remote.UserRecord, error)
	signInFn        func(email, password string) (remote.UserRecord, error)
	signOutFn       func() error
	sendRecoveryFn  func(email, redirectTo string) error
	fetchProfileFn  func(userID string) (remote.ProfileRow, error)
	updateProfileFn func(userID string, upd remote.ProfileUpdate) error
	insertProfileFn func(row remote.ProfileRow) error

	calls map[string]int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{calls: map[string]int{}}
}

func (f *fakeRemote) SignUp(_ context.Context, email, password string, meta remote.SignUpMetadata) (remote.UserRecord, error) {
	f.calls["SignUp"]++
	if f.signUpFn != nil {
		return f.signUpFn(email, password, meta)
	}
	return remote.UserRecord{ID: "u-1", Email: email, CreatedAt: time.Now().UTC()}, nil
}

func (f *fakeRemote) SignIn(_ context.Context, email, password string) (remote.UserRecord, error) {
	f.calls["SignIn"]++
	if f.signInFn != nil {
		return f.signInFn(email, password)
	}
	return remote.UserRecord{ID: "u-1", Email: email, CreatedAt: time.Now().UTC()}, nil
}

func (f *fakeRemote) SignOut(_ context.Context) error {
	f.calls["SignOut"]++
	if f.signOutFn != nil {
		return f.signOutFn()
	}
	return nil
}

func (f *fakeRemote) SendRecoveryEmail(_ context.Context, email, redirectTo string) error {
	f.calls["SendRecoveryEmail"]++
	if f.sendRecoveryFn != nil {
		return f.sendRecoveryFn(email, redirectTo)
	}
	return nil
}

func (f *fakeRemote) FetchProfile(_ context.Context, userID string) (remote.ProfileRow, error) {
	f.calls["FetchProfile"]++
	if f.fetchProfileFn != nil {
		return f.fetchProfileFn(userID)
	}
	return remote.ProfileRow{
		UserID:      userID,
		Email:       "user@test.com",
		Role:        remote.RoleUser,
		LoginCount:  3,
		Preferences: map[string]string{"theme": "dark"},
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (f *fakeRemote) UpdateProfile(_ context.Context, userID string, upd remote.ProfileUpdate) error {
	f.calls["UpdateProfile"]++
	if f.updateProfileFn != nil {
		return f.updateProfileFn(userID, upd)
	}
	return nil
}

func (f *fakeRemote) InsertProfile(_ context.Context, row remote.ProfileRow) error {
	f.calls["InsertProfile"]++
	if f.insertProfileFn != nil {
		return f.insertProfileFn(row)
	}
	return nil
}

func (f *fakeRemote) totalCalls() int {
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// fixedClock advances only when the test says so.
type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time          { return c.now }
func (c *fixedClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestService(t *testing.T, rc remote.Client) (*Service, *fixedClock) {
	t.Helper()
	clock := &fixedClock{now: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
	svc := NewService(DefaultConfig(), rc, NewState(0), slog.Default(), WithClock(clock))
	return svc, clock
}

func mustLogin(t *testing.T, svc *Service) {
	t.Helper()
	ok, msg := svc.Login(context.Background(), "user@test.com", "Str0ng!Pass", false)
	if !ok {
		t.Fatalf("login failed: %s", msg)
	}
}

func TestLogin_InvalidEmail_NoRemoteCall(t *testing.T) {
	rc := newFakeRemote()
	svc, _ := newTestService(t, rc)

	ok, msg := svc.Login(context.Background(), "bademail", "x", false)
	if ok {
		t.Fatalf("expected failure")
	}
	if msg != MsgInvalidEmail {
		t.Fatalf("msg = %q", msg)
	}
	if rc.totalCalls() != 0 {
		t.Fatalf("expected no remote calls, got %v", rc.calls)
	}
}

func TestLogin_ProfileMissing_IsHardFailure(t *testing.T) {
	rc := newFakeRemote()
	rc.fetchProfileFn = func(string) (remote.ProfileRow, error) {
		return remote.ProfileRow{}, remote.OpError{Op: "remote.FetchProfile", Kind: remote.ErrNotFound}
	}
	svc, _ := newTestService(t, rc)

	ok, msg := svc.Login(context.Background(), "user@test.com", "weakpass", false)
	if ok {
		t.Fatalf("expected failure")
	}
	if msg != MsgProfileNotFound {
		t.Fatalf("msg = %q", msg)
	}
	if svc.State().Authenticated() {
		t.Fatalf("state must remain unauthenticated")
	}
}

func TestLogin_Success_TransitionsState(t *testing.T) {
	rc := newFakeRemote()
	var stamped *remote.ProfileUpdate
	rc.updateProfileFn = func(_ string, upd remote.ProfileUpdate) error {
		stamped = &upd
		return nil
	}
	svc, clock := newTestService(t, rc)

	mustLogin(t, svc)

	st := svc.State()
	if !st.Authenticated() {
		t.Fatalf("expected authenticated")
	}
	if st.User() == nil {
		t.Fatalf("expected currentUser set")
	}
	if st.Role() != st.User().Role {
		t.Fatalf("role %q does not mirror user role %q", st.Role(), st.User().Role)
	}
	if !st.SessionStart().Equal(clock.Now()) || !st.LastActivity().Equal(clock.Now()) {
		t.Fatalf("timestamps not stamped: start=%v last=%v", st.SessionStart(), st.LastActivity())
	}
	if st.Preferences()["theme"] != "dark" {
		t.Fatalf("preferences not loaded: %v", st.Preferences())
	}

	// Login-count increment and last-login stamp went to the backend.
	if stamped == nil || stamped.LoginCount == nil || *stamped.LoginCount != 4 {
		t.Fatalf("expected login_count bump to 4, got %+v", stamped)
	}
	if stamped.LastLoginAt == nil {
		t.Fatalf("expected last_login stamp")
	}

	// The login itself is on the activity log.
	acts := st.Activity()
	if len(acts) != 1 || acts[0].Action != "login" {
		t.Fatalf("activity = %+v", acts)
	}
}

func TestLogin_StampFailureDoesNotBlockLogin(t *testing.T) {
	rc := newFakeRemote()
	rc.updateProfileFn = func(string, remote.ProfileUpdate) error {
		return remote.OpError{Op: "remote.UpdateProfile", Kind: remote.ErrUnavailable}
	}
	svc, _ := newTestService(t, rc)

	mustLogin(t, svc)
	if !svc.State().Authenticated() {
		t.Fatalf("expected authenticated despite stamp failure")
	}
}

func TestLogin_ErrorMessages(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			"unreachable",
			remote.OpError{Op: "remote.SignIn", Kind: remote.ErrUnavailable, Msg: "dial tcp: refused"},
			MsgConnectionFailed,
		},
		{
			"bad credentials",
			remote.OpError{Op: "remote.SignIn", Kind: remote.ErrRejected, Msg: "Invalid login credentials"},
			MsgBadCredentials,
		},
		{
			"unconfirmed",
			remote.OpError{Op: "remote.SignIn", Kind: remote.ErrRejected, Msg: "Email not confirmed"},
			MsgEmailNotConfirmed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rc := newFakeRemote()
			rc.signInFn = func(string, string) (remote.UserRecord, error) {
				return remote.UserRecord{}, tc.err
			}
			svc, _ := newTestService(t, rc)

			ok, msg := svc.Login(context.Background(), "user@test.com", "pw", false)
			if ok {
				t.Fatalf("expected failure")
			}
			if msg != tc.want {
				t.Fatalf("msg = %q, want %q", msg, tc.want)
			}
		})
	}
}

func TestLogout_IdempotentAndNeverFails(t *testing.T) {
	rc := newFakeRemote()
	rc.signOutFn = func() error {
		return remote.OpError{Op: "remote.SignOut", Kind: remote.ErrUnavailable}
	}
	svc, _ := newTestService(t, rc)

	mustLogin(t, svc)

	svc.Logout(context.Background())
	st := svc.State()
	if st.Authenticated() || st.User() != nil || st.Role() != "" {
		t.Fatalf("state not reset: auth=%v user=%v role=%q", st.Authenticated(), st.User(), st.Role())
	}
	if len(st.Activity()) != 0 {
		t.Fatalf("activity log should be dropped with the session")
	}

	// Second logout: same end state, no panic, no extra remote call.
	before := rc.calls["SignOut"]
	svc.Logout(context.Background())
	if st.Authenticated() || st.User() != nil {
		t.Fatalf("second logout changed state")
	}
	if rc.calls["SignOut"] != before {
		t.Fatalf("unauthenticated logout must not hit the backend")
	}
}

func TestSignup_ProfileCompletionScore(t *testing.T) {
	for _, tc := range []struct {
		fullName string
		want     int
	}{
		{"Jane Doe", 60},
		{"", 30},
	} {
		rc := newFakeRemote()
		var inserted *remote.ProfileRow
		rc.insertProfileFn = func(row remote.ProfileRow) error {
			inserted = &row
			return nil
		}
		svc, _ := newTestService(t, rc)

		ok, msg := svc.Signup(context.Background(), "new@test.com", "Str0ng!Pass", tc.fullName, "")
		if !ok {
			t.Fatalf("signup failed: %s", msg)
		}
		if inserted == nil {
			t.Fatalf("profile row not inserted")
		}
		if inserted.ProfileCompletion != tc.want {
			t.Fatalf("fullName=%q: completion = %d, want %d", tc.fullName, inserted.ProfileCompletion, tc.want)
		}
		if inserted.Role != remote.RoleUser {
			t.Fatalf("role = %q, want user", inserted.Role)
		}
		if svc.State().Authenticated() {
			t.Fatalf("signup must not authenticate the session")
		}
	}
}

func TestSignup_WeakPassword_NoRemoteCall(t *testing.T) {
	rc := newFakeRemote()
	svc, _ := newTestService(t, rc)

	ok, msg := svc.Signup(context.Background(), "new@test.com", "weakpass", "", "")
	if ok {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(msg, "needs uppercase") {
		t.Fatalf("msg = %q", msg)
	}
	if rc.totalCalls() != 0 {
		t.Fatalf("expected no remote calls, got %v", rc.calls)
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	rc := newFakeRemote()
	rc.signUpFn = func(string, string, remote.SignUpMetadata) (remote.UserRecord, error) {
		return remote.UserRecord{}, remote.OpError{Op: "remote.SignUp", Kind: remote.ErrRejected, Msg: "User already registered"}
	}
	svc, _ := newTestService(t, rc)

	ok, msg := svc.Signup(context.Background(), "new@test.com", "Str0ng!Pass", "", "")
	if ok {
		t.Fatalf("expected failure")
	}
	if msg != MsgAlreadyRegistered {
		t.Fatalf("msg = %q", msg)
	}
}

func TestRequestPasswordReset_InvalidEmail_NoNetworkCall(t *testing.T) {
	rc := newFakeRemote()
	svc, _ := newTestService(t, rc)

	ok, _ := svc.RequestPasswordReset(context.Background(), "not-an-email")
	if ok {
		t.Fatalf("expected failure")
	}
	if rc.totalCalls() != 0 {
		t.Fatalf("expected no remote calls, got %v", rc.calls)
	}
}

func TestRequestPasswordReset_GenericSuccessEvenOnBackendError(t *testing.T) {
	rc := newFakeRemote()
	rc.sendRecoveryFn = func(string, string) error {
		return remote.OpError{Op: "remote.SendRecoveryEmail", Kind: remote.ErrNotFound, Msg: "user"}
	}
	svc, _ := newTestService(t, rc)

	ok, msg := svc.RequestPasswordReset(context.Background(), "unknown@test.com")
	if !ok || msg != MsgResetSent {
		t.Fatalf("got (%v, %q), want generic success", ok, msg)
	}
}

func TestCheckTimeout_ExpiresIdleSession(t *testing.T) {
	rc := newFakeRemote()
	svc, clock := newTestService(t, rc)
	mustLogin(t, svc)

	clock.advance(DefaultConfig().IdleTimeout + time.Second)
	if !svc.CheckTimeout(context.Background()) {
		t.Fatalf("expected expiry")
	}
	if svc.State().Authenticated() {
		t.Fatalf("expected forced logout")
	}
}

func TestCheckTimeout_RefreshesActivity(t *testing.T) {
	rc := newFakeRemote()
	svc, clock := newTestService(t, rc)
	mustLogin(t, svc)

	start := clock.Now()
	clock.advance(10 * time.Minute)
	if svc.CheckTimeout(context.Background()) {
		t.Fatalf("unexpected expiry")
	}
	st := svc.State()
	if !st.LastActivity().Equal(clock.Now()) {
		t.Fatalf("lastActivity not refreshed")
	}
	if st.LastActivity().Before(st.SessionStart()) || !st.SessionStart().Equal(start) {
		t.Fatalf("timestamp invariant broken: start=%v last=%v", st.SessionStart(), st.LastActivity())
	}
}

func TestCheckTimeout_NoopWhenAnonymous(t *testing.T) {
	svc, _ := newTestService(t, newFakeRemote())
	if svc.CheckTimeout(context.Background()) {
		t.Fatalf("anonymous sessions cannot expire")
	}
}

func TestLogActivity_NoopWhenUnauthenticated(t *testing.T) {
	svc, _ := newTestService(t, newFakeRemote())

	svc.LogActivity("view", "tools page")
	svc.LogActivity("view", "glossary page")
	if got := len(svc.State().Activity()); got != 0 {
		t.Fatalf("activity length = %d, want 0", got)
	}
}

func TestLogActivity_FIFOCapacity(t *testing.T) {
	rc := newFakeRemote()
	svc, _ := newTestService(t, rc)
	mustLogin(t, svc)

	// The login itself logged one entry; add 150 more.
	for i := 1; i <= 150; i++ {
		svc.LogActivity("view", "page "+strconv.Itoa(i))
	}

	acts := svc.State().Activity()
	if len(acts) != 100 {
		t.Fatalf("activity length = %d, want 100", len(acts))
	}
	// Exactly the last 100 entries, original order preserved.
	if acts[0].Details != "page 51" {
		t.Fatalf("oldest surviving entry = %q, want \"page 51\"", acts[0].Details)
	}
	if acts[99].Details != "page 150" {
		t.Fatalf("newest entry = %q, want \"page 150\"", acts[99].Details)
	}
	for i := 1; i < len(acts); i++ {
		if acts[i].At.Before(acts[i-1].At) {
			t.Fatalf("entries out of order at %d", i)
		}
	}
}
