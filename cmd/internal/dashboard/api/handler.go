package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"subdash/cmd/internal/auth/session"
	"subdash/cmd/internal/remote"
)

// Handler wires the dashboard HTTP endpoints to the session core.
type Handler struct {
	log     *slog.Logger
	cfg     Config
	sessCfg session.Config
	remote  remote.Client

	sessions *registry
	clock    session.Clock
}

// HandlerOption configures optional Handler dependencies.
type HandlerOption func(*Handler)

// WithClock overrides the time source (tests).
func WithClock(c session.Clock) HandlerOption {
	return func(h *Handler) {
		if h == nil || c == nil {
			return
		}
		h.clock = c
	}
}

// NewHandler constructs the dashboard API handler. The remote client is
// injected so tests can substitute a fake backend.
func NewHandler(log *slog.Logger, cfg Config, sessCfg session.Config, rc remote.Client, opts ...HandlerOption) *Handler {
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		sessCfg:  sessCfg,
		remote:   rc,
		sessions: newRegistry(),
		clock:    nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Register wires dashboard routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/signup", h.handleSignup)
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/logout", h.handleLogout)
	mux.HandleFunc("/auth/reset", h.handleReset)
	mux.HandleFunc("/me", h.handleMe)
	mux.HandleFunc("/dashboard/activity", h.handleActivity)
	mux.HandleFunc("/dashboard/activity/ws", h.handleActivityWS)
	mux.Handle("/admin/overview", h.Protect(session.PageAdmin, http.HandlerFunc(h.handleAdminOverview)))
}

// newService builds a session service bound to a fresh state.
func (h *Handler) newService() *session.Service {
	st := session.NewState(h.sessCfg.ActivityLogCap)
	if h.clock != nil {
		return session.NewService(h.sessCfg, h.remote, st, h.log, session.WithClock(h.clock))
	}
	return session.NewService(h.sessCfg, h.remote, st, h.log)
}

// currentSession resolves the request's session entry via the cookie.
// Returns (nil, "") for anonymous requests.
func (h *Handler) currentSession(r *http.Request) (*sessionEntry, string) {
	c, err := r.Cookie(h.cfg.CookieName)
	if err != nil || c.Value == "" {
		return nil, ""
	}
	hash := hashToken(c.Value)
	return h.sessions.lookup(hash), hash
}

// checkedSession resolves the session and runs the idle-timeout check under
// the entry lock. When the session expired it is evicted and the caller gets
// (nil, true); the connection must sign in again.
func (h *Handler) checkedSession(w http.ResponseWriter, r *http.Request) (entry *sessionEntry, expired bool) {
	entry, hash := h.currentSession(r)
	if entry == nil {
		return nil, false
	}

	entry.mu.Lock()
	wasExpired := entry.svc.CheckTimeout(r.Context())
	entry.mu.Unlock()

	if wasExpired {
		h.sessions.remove(hash)
		h.clearSessionCookie(w)
		metricExpirations.Inc()
		return nil, true
	}
	return entry, false
}

// ---- request/response shapes ----

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
	Company  string `json:"company,omitempty"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me,omitempty"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type activityRequest struct {
	Action  string `json:"action"`
	Details string `json:"details,omitempty"`
}

type userResponse struct {
	ID          string            `json:"id"`
	Email       string            `json:"email"`
	Role        string            `json:"role"`
	FullName    *string           `json:"full_name,omitempty"`
	Company     *string           `json:"company,omitempty"`
	LoginCount  int               `json:"login_count"`
	LastLoginAt *time.Time        `json:"last_login_at,omitempty"`
	Preferences map[string]string `json:"preferences"`
}

type activityEntryResponse struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Action  string    `json:"action"`
	Details string    `json:"details,omitempty"`
}

// ---- handlers ----

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req signupRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	// Signup never touches a session; a throwaway service keeps it stateless.
	ok, msg := h.newService().Signup(r.Context(), req.Email, req.Password, req.FullName, req.Company)
	metricSignups.WithLabelValues(outcomeLabel(ok)).Inc()

	status := http.StatusOK
	if !ok {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resultResponse{OK: ok, Message: msg})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	// A login replaces whatever session the cookie pointed at.
	if old, hash := h.currentSession(r); old != nil {
		old.mu.Lock()
		old.svc.Logout(r.Context())
		old.mu.Unlock()
		h.sessions.remove(hash)
	}

	svc := h.newService()
	svc.State().SetOrigin(clientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()))

	ok, msg := svc.Login(r.Context(), req.Email, req.Password, req.RememberMe)
	metricLogins.WithLabelValues(outcomeLabel(ok)).Inc()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, resultResponse{OK: false, Message: msg})
		return
	}

	plain, hash, err := newSessionToken()
	if err != nil {
		h.log.Error("api.login.token.fail", "err", err)
		svc.Logout(r.Context())
		writeError(w, http.StatusInternalServerError, "server_error", "could not start session")
		return
	}

	h.sessions.add(hash, &sessionEntry{svc: svc})
	h.setSessionCookie(w, plain, req.RememberMe)
	writeJSON(w, http.StatusOK, resultResponse{OK: true, Message: msg})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Logout is idempotent: an unknown or missing cookie still answers OK.
	if entry, hash := h.currentSession(r); entry != nil {
		entry.mu.Lock()
		entry.svc.Logout(r.Context())
		entry.mu.Unlock()
		h.sessions.remove(hash)
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, resultResponse{OK: true, Message: "signed out"})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req resetRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ok, msg := h.newService().RequestPasswordReset(r.Context(), req.Email)
	status := http.StatusOK
	if !ok {
		status = http.StatusBadRequest
	} else {
		metricResets.Inc()
	}
	writeJSON(w, status, resultResponse{OK: ok, Message: msg})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	entry, expired := h.checkedSession(w, r)
	if expired {
		writeError(w, http.StatusUnauthorized, "session_expired", session.MsgSessionExpired)
		return
	}
	if entry == nil {
		writeError(w, http.StatusUnauthorized, "not_signed_in", session.DenyNotSignedIn)
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	u := entry.svc.State().User()
	if u == nil {
		writeError(w, http.StatusUnauthorized, "not_signed_in", session.DenyNotSignedIn)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{
		ID:          u.ID,
		Email:       u.Email,
		Role:        string(u.Role),
		FullName:    u.FullName,
		Company:     u.Company,
		LoginCount:  u.LoginCount,
		LastLoginAt: u.LastLoginAt,
		Preferences: entry.svc.State().Preferences(),
	})
}

func (h *Handler) handleActivity(w http.ResponseWriter, r *http.Request) {
	entry, expired := h.checkedSession(w, r)
	if expired {
		writeError(w, http.StatusUnauthorized, "session_expired", session.MsgSessionExpired)
		return
	}
	if entry == nil {
		writeError(w, http.StatusUnauthorized, "not_signed_in", session.DenyNotSignedIn)
		return
	}

	switch r.Method {
	case http.MethodGet:
		entry.mu.Lock()
		acts := entry.svc.State().Activity()
		entry.mu.Unlock()
		writeJSON(w, http.StatusOK, toActivityResponses(acts))

	case http.MethodPost:
		var req activityRequest
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
		if strings.TrimSpace(req.Action) == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "action is required")
			return
		}
		entry.mu.Lock()
		entry.svc.LogActivity(strings.TrimSpace(req.Action), req.Details)
		entry.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleAdminOverview is a small analytics view for administrators.
func (h *Handler) handleAdminOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active_sessions": h.sessions.size(),
		"idle_timeout":    h.sessCfg.IdleTimeout.String(),
	})
}

// Protect gates next behind a page class. Anonymous and expired sessions get
// 401, insufficient roles get 403; the response carries the denial reason.
func (h *Handler) Protect(page session.PageClass, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if page == session.PagePublic {
			next.ServeHTTP(w, r)
			return
		}

		entry, expired := h.checkedSession(w, r)
		if expired {
			metricGateDenials.WithLabelValues(string(page)).Inc()
			writeError(w, http.StatusUnauthorized, "session_expired", session.MsgSessionExpired)
			return
		}

		var allowed bool
		var reason string
		if entry == nil {
			allowed, reason = false, session.DenyNotSignedIn
		} else {
			entry.mu.Lock()
			allowed, reason = entry.svc.CanAccess(page)
			entry.mu.Unlock()
		}

		if !allowed {
			metricGateDenials.WithLabelValues(string(page)).Inc()
			status := http.StatusForbidden
			code := "forbidden"
			if reason == session.DenyNotSignedIn {
				status = http.StatusUnauthorized
				code = "not_signed_in"
			}
			writeError(w, status, code, reason)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func toActivityResponses(acts []session.ActivityEntry) []activityEntryResponse {
	out := make([]activityEntryResponse, 0, len(acts))
	for _, a := range acts {
		out = append(out, activityEntryResponse{
			ID:      a.ID,
			At:      a.At,
			Action:  a.Action,
			Details: a.Details,
		})
	}
	return out
}

// ---- cookies ----

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, remember bool) {
	c := &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		c.MaxAge = int(h.cfg.RememberMeTTL.Seconds())
	}
	http.SetCookie(w, c)
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// clientIP extracts the requester address, honoring X-Forwarded-For only when
// the deployment says there is a trusted proxy in front.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			parts := strings.Split(fwd, ",")
			if ip := strings.TrimSpace(parts[0]); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
