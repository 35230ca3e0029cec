package remote

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"subdash/cmd/security/password"
)

// Integration tests are enabled when SUBDASH_TEST_DATABASE_URL is set.
// The target database must carry the subdash schema (users, profiles,
// recovery_requests); migrations are managed outside this package.

func mustPGXPool(ctx context.Context, t *testing.T, dbURL string) *pgxpool.Pool {
	t.Helper()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	return pool
}

func testHashParams() password.Params {
	return password.Params{
		MemoryKiB:   8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestPostgresClient_SignUpSignInProfileRoundtrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbURL := os.Getenv("SUBDASH_TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("SUBDASH_TEST_DATABASE_URL is not set; skipping Postgres integration test")
	}

	pool := mustPGXPool(ctx, t, dbURL)
	defer pool.Close()

	client, err := NewPostgresClient(pool, WithHashParams(testHashParams()))
	if err != nil {
		t.Fatalf("NewPostgresClient: %v", err)
	}

	email := "it-" + time.Now().UTC().Format("20060102150405.000000000") + "@test.com"
	u, err := client.SignUp(ctx, email, "Str0ng!Pass", SignUpMetadata{FullName: "Jane Doe"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM "subdash"."profiles" WHERE id = $1`, u.ID)
		_, _ = pool.Exec(ctx, `DELETE FROM "subdash"."users" WHERE id = $1`, u.ID)
	})

	// Duplicate email must be rejected, not unavailable.
	if _, err := client.SignUp(ctx, email, "Str0ng!Pass", SignUpMetadata{}); !IsRejected(err) {
		t.Fatalf("duplicate SignUp: expected ErrRejected, got %v", err)
	}

	// Unconfirmed accounts cannot sign in.
	if _, err := client.SignIn(ctx, email, "Str0ng!Pass"); !IsRejected(err) {
		t.Fatalf("unconfirmed SignIn: expected ErrRejected, got %v", err)
	}
	if _, err := pool.Exec(ctx, `UPDATE "subdash"."users" SET confirmed_at = now() WHERE id = $1`, u.ID); err != nil {
		t.Fatalf("confirm user: %v", err)
	}

	if _, err := client.SignIn(ctx, email, "wrong password"); !IsRejected(err) {
		t.Fatalf("bad-password SignIn: expected ErrRejected, got %v", err)
	}
	got, err := client.SignIn(ctx, email, "Str0ng!Pass")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("SignIn id = %q, want %q", got.ID, u.ID)
	}

	// Profile lifecycle.
	if _, err := client.FetchProfile(ctx, u.ID); !IsNotFound(err) {
		t.Fatalf("FetchProfile before insert: expected ErrNotFound, got %v", err)
	}

	row := NewProfileRow(u, "Jane Doe", "Acme", time.Now().UTC())
	if err := client.InsertProfile(ctx, row); err != nil {
		t.Fatalf("InsertProfile: %v", err)
	}

	fetched, err := client.FetchProfile(ctx, u.ID)
	if err != nil {
		t.Fatalf("FetchProfile: %v", err)
	}
	if fetched.Role != RoleUser || fetched.ProfileCompletion != 60 {
		t.Fatalf("unexpected profile: %+v", fetched)
	}

	n := fetched.LoginCount + 1
	last := time.Now().UTC()
	if err := client.UpdateProfile(ctx, u.ID, ProfileUpdate{LoginCount: &n, LastLoginAt: &last}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	fetched, err = client.FetchProfile(ctx, u.ID)
	if err != nil {
		t.Fatalf("FetchProfile after update: %v", err)
	}
	if fetched.LoginCount != n || fetched.LastLoginAt == nil {
		t.Fatalf("update not applied: %+v", fetched)
	}
}
