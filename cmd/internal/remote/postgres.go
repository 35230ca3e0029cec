package remote

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"subdash/cmd/security/password"
)

// PostgresClient implements Client against a self-hosted Postgres.
//
// Design notes:
// - The pgx pool is owned by the caller; this client must NOT close it.
// - Schema identifiers are validated to avoid SQL injection via identifiers.
// - Credentials are Argon2id hashes; sign-in failures are indistinguishable
//   between unknown email and wrong password, and verification always runs
//   against some hash so timing does not leak account existence.
// - Schema management (users/profiles/recovery_requests tables) is handled
//   by migrations outside this package.
type PostgresClient struct {
	pool   *pgxpool.Pool
	schema string
	params password.Params
	log    *slog.Logger

	recoveryTTL time.Duration

	// dummyHash absorbs verification time for unknown emails.
	dummyHash string
}

// PostgresOption configures the client.
type PostgresOption func(*PostgresClient) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the client (default "subdash").
func WithSchema(schema string) PostgresOption {
	return func(c *PostgresClient) error {
		schema = strings.TrimSpace(schema)
		if schema == "" || !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("remote: invalid schema identifier")
		}
		c.schema = schema
		return nil
	}
}

// WithHashParams overrides the Argon2id cost parameters.
func WithHashParams(p password.Params) PostgresOption {
	return func(c *PostgresClient) error {
		c.params = p
		return nil
	}
}

// WithLogger sets the logger used for recovery-link dev output.
func WithLogger(log *slog.Logger) PostgresOption {
	return func(c *PostgresClient) error {
		if log != nil {
			c.log = log
		}
		return nil
	}
}

// NewPostgresClient constructs a self-hosted backend client.
func NewPostgresClient(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresClient, error) {
	c := &PostgresClient{
		pool:        pool,
		schema:      "subdash",
		params:      password.DefaultParams(),
		log:         slog.Default(),
		recoveryTTL: 30 * time.Minute,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.pool == nil {
		return nil, fmt.Errorf("remote: nil pool")
	}

	if h, err := c.params.Hash("dummy-password-for-timing-only"); err == nil {
		c.dummyHash = h
	}
	return c, nil
}

var _ Client = (*PostgresClient)(nil)

func (c *PostgresClient) table(name string) string {
	return fmt.Sprintf("%q.%q", c.schema, name)
}

// SignUp creates a user row with a hashed credential.
func (c *PostgresClient) SignUp(ctx context.Context, email, password string, _ SignUpMetadata) (UserRecord, error) {
	const op = "remote.SignUp"

	hash, err := c.params.Hash(password)
	if err != nil {
		return UserRecord{}, rejected(op, err.Error())
	}

	now := time.Now().UTC()
	id, err := newID(now)
	if err != nil {
		return UserRecord{}, unavailable(op, err)
	}

	q := fmt.Sprintf(`
		INSERT INTO %s (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, c.table("users"))

	if _, err := c.pool.Exec(ctx, q, id, email, hash, now); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return UserRecord{}, rejected(op, "email already registered")
		}
		return UserRecord{}, unavailable(op, err)
	}

	return UserRecord{ID: id, Email: email, CreatedAt: now}, nil
}

// SignIn verifies credentials against the stored hash.
func (c *PostgresClient) SignIn(ctx context.Context, email, pw string) (UserRecord, error) {
	const op = "remote.SignIn"

	q := fmt.Sprintf(`
		SELECT id, email, password_hash, created_at, confirmed_at
		FROM %s
		WHERE email = $1
	`, c.table("users"))

	var (
		u           UserRecord
		hash        string
		confirmedAt *time.Time
	)
	err := c.pool.QueryRow(ctx, q, email).Scan(&u.ID, &u.Email, &hash, &u.CreatedAt, &confirmedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// Burn comparable time before answering.
		_, _ = c.params.Verify(c.dummyHash, pw)
		return UserRecord{}, rejected(op, "invalid login credentials")
	case err != nil:
		return UserRecord{}, unavailable(op, err)
	}

	ok, err := c.params.Verify(hash, pw)
	if err != nil || !ok {
		return UserRecord{}, rejected(op, "invalid login credentials")
	}
	if confirmedAt == nil {
		return UserRecord{}, rejected(op, "email not confirmed")
	}
	return u, nil
}

// SignOut is a no-op in self-hosted mode: there is no backend-side session.
func (c *PostgresClient) SignOut(_ context.Context) error { return nil }

// SendRecoveryEmail records a recovery request. Self-hosted deployments have
// no mail transport, so the link is logged for the operator to hand over;
// only the token hash is stored.
func (c *PostgresClient) SendRecoveryEmail(ctx context.Context, email, redirectTo string) error {
	const op = "remote.SendRecoveryEmail"

	var userID string
	q := fmt.Sprintf(`SELECT id FROM %s WHERE email = $1`, c.table("users"))
	err := c.pool.QueryRow(ctx, q, email).Scan(&userID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return notFound(op, "user")
	case err != nil:
		return unavailable(op, err)
	}

	tokenPlain, tokenHash, err := newRecoveryToken()
	if err != nil {
		return unavailable(op, err)
	}

	now := time.Now().UTC()
	ins := fmt.Sprintf(`
		INSERT INTO %s (user_id, token_hash, redirect_to, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.table("recovery_requests"))
	if _, err := c.pool.Exec(ctx, ins, userID, tokenHash, redirectTo, now.Add(c.recoveryTTL), now); err != nil {
		return unavailable(op, err)
	}

	c.log.Info("remote.recovery.link",
		"user_id", userID,
		"link", fmt.Sprintf("%s?recovery_token=%s", redirectTo, tokenPlain),
		"expires_at", now.Add(c.recoveryTTL),
	)
	return nil
}

// FetchProfile loads a profile row by user id.
func (c *PostgresClient) FetchProfile(ctx context.Context, userID string) (ProfileRow, error) {
	const op = "remote.FetchProfile"

	q := fmt.Sprintf(`
		SELECT id, email, role, full_name, company, profile_completion,
		       login_count, last_login_at, preferences, created_at
		FROM %s
		WHERE id = $1
	`, c.table("profiles"))

	var (
		row       ProfileRow
		role      string
		prefsJSON []byte
	)
	err := c.pool.QueryRow(ctx, q, userID).Scan(
		&row.UserID, &row.Email, &role, &row.FullName, &row.Company,
		&row.ProfileCompletion, &row.LoginCount, &row.LastLoginAt,
		&prefsJSON, &row.CreatedAt,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ProfileRow{}, notFound(op, "profile")
	case err != nil:
		return ProfileRow{}, unavailable(op, err)
	}

	row.Role = ParseRole(role)
	row.Preferences = DefaultPreferences()
	if len(prefsJSON) > 0 {
		// Tolerate malformed blobs: defaults stand in for bad rows.
		var prefs map[string]string
		if err := json.Unmarshal(prefsJSON, &prefs); err == nil && prefs != nil {
			row.Preferences = prefs
		}
	}
	return row, nil
}

// UpdateProfile applies only the non-nil fields of upd.
func (c *PostgresClient) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) error {
	const op = "remote.UpdateProfile"

	set := make([]string, 0, 3)
	args := make([]any, 0, 4)

	if upd.LoginCount != nil {
		args = append(args, *upd.LoginCount)
		set = append(set, fmt.Sprintf("login_count = $%d", len(args)))
	}
	if upd.LastLoginAt != nil {
		args = append(args, upd.LastLoginAt.UTC())
		set = append(set, fmt.Sprintf("last_login_at = $%d", len(args)))
	}
	if upd.Preferences != nil {
		blob, err := json.Marshal(upd.Preferences)
		if err != nil {
			return rejected(op, "invalid preferences")
		}
		args = append(args, blob)
		set = append(set, fmt.Sprintf("preferences = $%d::jsonb", len(args)))
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, userID)
	q := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d`,
		c.table("profiles"), strings.Join(set, ", "), len(args))

	tag, err := c.pool.Exec(ctx, q, args...)
	if err != nil {
		return unavailable(op, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(op, "profile")
	}
	return nil
}

// InsertProfile creates the profile row for a new identity.
func (c *PostgresClient) InsertProfile(ctx context.Context, row ProfileRow) error {
	const op = "remote.InsertProfile"

	prefs := row.Preferences
	if prefs == nil {
		prefs = DefaultPreferences()
	}
	blob, err := json.Marshal(prefs)
	if err != nil {
		return rejected(op, "invalid preferences")
	}

	q := fmt.Sprintf(`
		INSERT INTO %s (id, email, role, full_name, company, profile_completion,
		                login_count, last_login_at, preferences, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10)
	`, c.table("profiles"))

	_, err = c.pool.Exec(ctx, q,
		row.UserID, row.Email, string(row.Role), row.FullName, row.Company,
		row.ProfileCompletion, row.LoginCount, row.LastLoginAt, blob, row.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return rejected(op, "profile already exists")
		}
		return unavailable(op, err)
	}
	return nil
}

// newRecoveryToken returns a fresh opaque token and its SHA-256 hex.
func newRecoveryToken() (plain, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	plain = hex.EncodeToString(buf)
	sum := sha256.Sum256([]byte(plain))
	return plain, hex.EncodeToString(sum[:]), nil
}
