package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Lordhacker756/vortex-api/internal/services/auth/storage"
	"github.com/Lordhacker756/vortex-api/internal/services/auth/user"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenAppliesConnectionPragmas(t *testing.T) {
	store := openTempStore(t)

	var journalMode string
	if err := store.sqlDB.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Fatalf("expected wal journal mode, got %q", journalMode)
	}

	var busyTimeout int
	if err := store.sqlDB.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatalf("read busy_timeout: %v", err)
	}
	if busyTimeout != 5000 {
		t.Fatalf("expected 5000ms busy timeout, got %d", busyTimeout)
	}
}

func TestPutGetUserRoundTrip(t *testing.T) {
	store := openTempStore(t)

	created := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	input := user.User{ID: "user-1", Username: "alice", CreatedAt: created, UpdatedAt: created}

	if err := store.PutUser(context.Background(), input); err != nil {
		t.Fatalf("put user: %v", err)
	}

	got, err := store.GetUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.ID != "user-1" || got.Username != "alice" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected user: %+v", got)
	}

	byName, err := store.GetUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get user by username: %v", err)
	}
	if byName.ID != "user-1" {
		t.Fatalf("unexpected user by username: %+v", byName)
	}
}

func TestGetUserNotFound(t *testing.T) {
	store := openTempStore(t)

	if _, err := store.GetUser(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.GetUserByUsername(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAddCredentialAppendOnly(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	if err := store.PutUser(context.Background(), user.User{ID: "user-1", Username: "alice", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("put user: %v", err)
	}

	credential := storage.Credential{
		CredentialID:   "cred-1",
		UserID:         "user-1",
		CredentialJSON: `{"id":"cred-1"}`,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := store.AddCredential(context.Background(), credential); err != nil {
		t.Fatalf("add credential: %v", err)
	}

	credential.CredentialJSON = `{"id":"cred-1","overwritten":true}`
	if err := store.AddCredential(context.Background(), credential); !errors.Is(err, storage.ErrCredentialExists) {
		t.Fatalf("expected credential exists error, got %v", err)
	}

	got, err := store.GetCredential(context.Background(), "cred-1")
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if got.CredentialJSON != `{"id":"cred-1"}` {
		t.Fatalf("expected original credential body to survive, got %s", got.CredentialJSON)
	}
}

func TestUpdateCredential(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	if err := store.PutUser(context.Background(), user.User{ID: "user-1", Username: "alice", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("put user: %v", err)
	}
	if err := store.AddCredential(context.Background(), storage.Credential{
		CredentialID: "cred-1", UserID: "user-1", CredentialJSON: `{"sign_count":0}`,
		CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("add credential: %v", err)
	}

	used := now.Add(time.Hour)
	if err := store.UpdateCredential(context.Background(), "cred-1", `{"sign_count":1}`, used); err != nil {
		t.Fatalf("update credential: %v", err)
	}

	got, err := store.GetCredential(context.Background(), "cred-1")
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if got.CredentialJSON != `{"sign_count":1}` {
		t.Fatalf("expected updated body, got %s", got.CredentialJSON)
	}
	if got.LastUsedAt == nil || !got.LastUsedAt.Equal(used) {
		t.Fatalf("expected last used %v, got %+v", used, got.LastUsedAt)
	}
}

func TestUpdateCredentialMissing(t *testing.T) {
	store := openTempStore(t)

	err := store.UpdateCredential(context.Background(), "missing", `{}`, time.Now())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListCredentialsByUser(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	if err := store.PutUser(context.Background(), user.User{ID: "user-1", Username: "alice", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("put user: %v", err)
	}
	for i, id := range []string{"cred-1", "cred-2"} {
		if err := store.AddCredential(context.Background(), storage.Credential{
			CredentialID: id, UserID: "user-1", CredentialJSON: `{}`,
			CreatedAt: now.Add(time.Duration(i) * time.Minute), UpdatedAt: now,
		}); err != nil {
			t.Fatalf("add credential %s: %v", id, err)
		}
	}

	credentials, err := store.ListCredentialsByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list credentials: %v", err)
	}
	if len(credentials) != 2 {
		t.Fatalf("expected 2 credentials, got %d", len(credentials))
	}
	if credentials[0].CredentialID != "cred-1" || credentials[1].CredentialID != "cred-2" {
		t.Fatalf("expected creation order, got %+v", credentials)
	}
}

func testCeremony(id string, expiresAt time.Time) storage.Ceremony {
	return storage.Ceremony{
		ID:        id,
		Kind:      "registration",
		UserID:    "user-1",
		Username:  "alice",
		StateJSON: `{"challenge":"abc"}`,
		CreatedAt: expiresAt.Add(-5 * time.Minute),
		ExpiresAt: expiresAt,
	}
}

func TestTakeCeremonyConsumesOnce(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	if err := store.BeginCeremony(context.Background(), testCeremony("registration:alice", now.Add(5*time.Minute))); err != nil {
		t.Fatalf("begin ceremony: %v", err)
	}

	first, err := store.TakeCeremony(context.Background(), "registration:alice", now)
	if err != nil {
		t.Fatalf("first take: %v", err)
	}
	if first.StateJSON != `{"challenge":"abc"}` {
		t.Fatalf("unexpected ceremony: %+v", first)
	}

	if _, err := store.TakeCeremony(context.Background(), "registration:alice", now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected second take to miss, got %v", err)
	}
}

func TestTakeCeremonyExpired(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	if err := store.BeginCeremony(context.Background(), testCeremony("registration:alice", now)); err != nil {
		t.Fatalf("begin ceremony: %v", err)
	}

	// expires_at == now means expired: only strictly-future rows are live.
	if _, err := store.TakeCeremony(context.Background(), "registration:alice", now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected expired ceremony to be absent, got %v", err)
	}
}

func TestBeginCeremonyOverwritesPriorAttempt(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	stale := testCeremony("registration:alice", now.Add(5*time.Minute))
	if err := store.BeginCeremony(context.Background(), stale); err != nil {
		t.Fatalf("begin stale ceremony: %v", err)
	}

	fresh := stale
	fresh.StateJSON = `{"challenge":"fresh"}`
	fresh.ExpiresAt = now.Add(10 * time.Minute)
	if err := store.BeginCeremony(context.Background(), fresh); err != nil {
		t.Fatalf("begin fresh ceremony: %v", err)
	}

	got, err := store.TakeCeremony(context.Background(), "registration:alice", now)
	if err != nil {
		t.Fatalf("take ceremony: %v", err)
	}
	if got.StateJSON != `{"challenge":"fresh"}` {
		t.Fatalf("expected fresh state to win, got %s", got.StateJSON)
	}
}

func TestTakeCeremonyConcurrentAtMostOnce(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	const attempts = 20
	for i := 0; i < attempts; i++ {
		if err := store.BeginCeremony(context.Background(), testCeremony("login:alice", now.Add(5*time.Minute))); err != nil {
			t.Fatalf("begin ceremony: %v", err)
		}

		var wg sync.WaitGroup
		results := make([]error, 2)
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(slot int) {
				defer wg.Done()
				_, results[slot] = store.TakeCeremony(context.Background(), "login:alice", now)
			}(j)
		}
		wg.Wait()

		var wins, misses int
		for _, err := range results {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, storage.ErrNotFound):
				misses++
			default:
				t.Fatalf("unexpected take error: %v", err)
			}
		}
		if wins != 1 || misses != 1 {
			t.Fatalf("expected exactly one winner, got %d wins and %d misses", wins, misses)
		}
	}
}

func TestDeleteExpiredCeremonies(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	if err := store.BeginCeremony(context.Background(), testCeremony("registration:alice", now.Add(-time.Minute))); err != nil {
		t.Fatalf("begin expired ceremony: %v", err)
	}
	if err := store.BeginCeremony(context.Background(), testCeremony("registration:bob", now.Add(time.Minute))); err != nil {
		t.Fatalf("begin live ceremony: %v", err)
	}

	if err := store.DeleteExpiredCeremonies(context.Background(), now); err != nil {
		t.Fatalf("delete expired: %v", err)
	}

	if _, err := store.TakeCeremony(context.Background(), "registration:bob", now); err != nil {
		t.Fatalf("expected live ceremony to survive purge: %v", err)
	}
}
