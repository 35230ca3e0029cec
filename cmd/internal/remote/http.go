package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTPClient speaks the hosted backend's REST surface: the auth endpoints
// under /auth/v1 and the PostgREST-style rows API under /rest/v1.
//
// The api key authenticates the application; the bearer token obtained at
// sign-in is kept only for the best-effort sign-out call.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client

	mu          sync.Mutex
	accessToken string
}

// HTTPOption configures the client.
type HTTPOption func(*HTTPClient)

// WithHTTPDoer overrides the underlying *http.Client (tests, custom timeouts).
func WithHTTPDoer(c *http.Client) HTTPOption {
	return func(h *HTTPClient) {
		if h == nil || c == nil {
			return
		}
		h.http = c
	}
}

// NewHTTPClient constructs a hosted-backend client.
func NewHTTPClient(baseURL, apiKey string, opts ...HTTPOption) (*HTTPClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("remote: empty base URL")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("remote: empty api key")
	}

	h := &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

var _ Client = (*HTTPClient)(nil)

// ---- wire types ----

type wireUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type signUpRequest struct {
	Email    string            `json:"email"`
	Password string            `json:"password"`
	Data     map[string]string `json:"data,omitempty"`
}

type signUpResponse struct {
	wireUser
	User *wireUser `json:"user,omitempty"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	AccessToken string   `json:"access_token"`
	User        wireUser `json:"user"`
}

type recoverRequest struct {
	Email string `json:"email"`
}

type wireProfile struct {
	ID                string            `json:"id"`
	Email             string            `json:"email"`
	Role              string            `json:"role"`
	FullName          *string           `json:"full_name"`
	Company           *string           `json:"company"`
	ProfileCompletion int               `json:"profile_completion"`
	LoginCount        int               `json:"login_count"`
	LastLoginAt       *time.Time        `json:"last_login_at"`
	Preferences       map[string]string `json:"preferences"`
	CreatedAt         time.Time         `json:"created_at"`
}

func (w wireProfile) toRow() ProfileRow {
	prefs := w.Preferences
	if prefs == nil {
		prefs = DefaultPreferences()
	}
	return ProfileRow{
		UserID:            w.ID,
		Email:             w.Email,
		Role:              ParseRole(w.Role),
		FullName:          w.FullName,
		Company:           w.Company,
		ProfileCompletion: w.ProfileCompletion,
		LoginCount:        w.LoginCount,
		LastLoginAt:       w.LastLoginAt,
		Preferences:       prefs,
		CreatedAt:         w.CreatedAt,
	}
}

func fromRow(row ProfileRow) wireProfile {
	return wireProfile{
		ID:                row.UserID,
		Email:             row.Email,
		Role:              string(row.Role),
		FullName:          row.FullName,
		Company:           row.Company,
		ProfileCompletion: row.ProfileCompletion,
		LoginCount:        row.LoginCount,
		LastLoginAt:       row.LastLoginAt,
		Preferences:       row.Preferences,
		CreatedAt:         row.CreatedAt,
	}
}

// ---- Client implementation ----

// SignUp registers a new identity with the hosted auth service.
func (h *HTTPClient) SignUp(ctx context.Context, email, password string, meta SignUpMetadata) (UserRecord, error) {
	const op = "remote.SignUp"

	data := map[string]string{}
	if meta.FullName != "" {
		data["full_name"] = meta.FullName
	}
	if meta.Company != "" {
		data["company"] = meta.Company
	}

	var resp signUpResponse
	err := h.doJSON(ctx, op, http.MethodPost, "/auth/v1/signup", nil,
		signUpRequest{Email: email, Password: password, Data: data}, &resp, "")
	if err != nil {
		return UserRecord{}, err
	}

	// Some provider versions nest the identity under "user".
	u := resp.wireUser
	if u.ID == "" && resp.User != nil {
		u = *resp.User
	}
	if u.ID == "" {
		return UserRecord{}, rejected(op, "signup response missing user id")
	}
	return UserRecord{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}, nil
}

// SignIn exchanges credentials for an identity record via the password grant.
func (h *HTTPClient) SignIn(ctx context.Context, email, password string) (UserRecord, error) {
	const op = "remote.SignIn"

	q := url.Values{"grant_type": {"password"}}
	var resp signInResponse
	err := h.doJSON(ctx, op, http.MethodPost, "/auth/v1/token", q,
		signInRequest{Email: email, Password: password}, &resp, "")
	if err != nil {
		return UserRecord{}, err
	}
	if resp.User.ID == "" {
		return UserRecord{}, rejected(op, "token response missing user")
	}

	h.mu.Lock()
	h.accessToken = resp.AccessToken
	h.mu.Unlock()

	return UserRecord{ID: resp.User.ID, Email: resp.User.Email, CreatedAt: resp.User.CreatedAt}, nil
}

// SignOut invalidates the last bearer token, best-effort.
func (h *HTTPClient) SignOut(ctx context.Context) error {
	const op = "remote.SignOut"

	h.mu.Lock()
	token := h.accessToken
	h.accessToken = ""
	h.mu.Unlock()

	if token == "" {
		return nil
	}
	return h.doJSON(ctx, op, http.MethodPost, "/auth/v1/logout", nil, nil, nil, token)
}

// SendRecoveryEmail asks the auth service to mail a recovery link.
func (h *HTTPClient) SendRecoveryEmail(ctx context.Context, email, redirectTo string) error {
	const op = "remote.SendRecoveryEmail"

	var q url.Values
	if redirectTo != "" {
		q = url.Values{"redirect_to": {redirectTo}}
	}
	return h.doJSON(ctx, op, http.MethodPost, "/auth/v1/recover", q,
		recoverRequest{Email: email}, nil, "")
}

// FetchProfile loads a profile row through the rows API.
func (h *HTTPClient) FetchProfile(ctx context.Context, userID string) (ProfileRow, error) {
	const op = "remote.FetchProfile"

	q := url.Values{
		"id":     {"eq." + userID},
		"select": {"*"},
		"limit":  {"1"},
	}
	var rows []wireProfile
	if err := h.doJSON(ctx, op, http.MethodGet, "/rest/v1/profiles", q, nil, &rows, ""); err != nil {
		return ProfileRow{}, err
	}
	if len(rows) == 0 {
		return ProfileRow{}, notFound(op, "profile")
	}
	return rows[0].toRow(), nil
}

// UpdateProfile patches only the fields present in upd.
func (h *HTTPClient) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) error {
	const op = "remote.UpdateProfile"

	patch := map[string]any{}
	if upd.LoginCount != nil {
		patch["login_count"] = *upd.LoginCount
	}
	if upd.LastLoginAt != nil {
		patch["last_login_at"] = upd.LastLoginAt.UTC().Format(time.RFC3339)
	}
	if upd.Preferences != nil {
		patch["preferences"] = upd.Preferences
	}
	if len(patch) == 0 {
		return nil
	}

	q := url.Values{"id": {"eq." + userID}}
	return h.doJSON(ctx, op, http.MethodPatch, "/rest/v1/profiles", q, patch, nil, "")
}

// InsertProfile creates the profile row for a new identity.
func (h *HTTPClient) InsertProfile(ctx context.Context, row ProfileRow) error {
	const op = "remote.InsertProfile"
	return h.doJSON(ctx, op, http.MethodPost, "/rest/v1/profiles", nil, fromRow(row), nil, "")
}

// ---- transport ----

// doJSON runs one request/response cycle and maps failures onto the sentinel
// error kinds: transport problems and 5xx become ErrUnavailable, 404 becomes
// ErrNotFound, and other 4xx become ErrRejected with the provider's detail.
func (h *HTTPClient) doJSON(ctx context.Context, op, method, path string, q url.Values, body, out any, bearer string) error {
	u := h.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode: %w", op, err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("apikey", h.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	} else {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}
	if method == http.MethodPost || method == http.MethodPatch {
		req.Header.Set("Prefer", "return=minimal")
	}

	resp, err := h.http.Do(req)
	if err != nil {
		return unavailable(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 500:
		return unavailable(op, fmt.Errorf("backend status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return notFound(op, "resource")
	case resp.StatusCode >= 400:
		return rejected(op, readErrorDetail(resp.Body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return unavailable(op, fmt.Errorf("decode: %w", err))
	}
	return nil
}

// readErrorDetail pulls a human-readable message out of a provider error body.
func readErrorDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil || len(raw) == 0 {
		return "request rejected"
	}

	var body struct {
		Msg         string `json:"msg"`
		Message     string `json:"message"`
		ErrorDesc   string `json:"error_description"`
		ErrorField  string `json:"error"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, s := range []string{body.Msg, body.Message, body.ErrorDesc, body.ErrorField, body.Description} {
			if strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return "request rejected"
}
