package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BradenHooton/kamino-gate/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(store AccountRepository) *ThrottleGuard {
	return NewThrottleGuard(store, DefaultThrottleConfig(), discardLogger()).WithClock(fixedClock(testNow))
}

func TestDefaultThrottleConfig(t *testing.T) {
	cfg := DefaultThrottleConfig()
	assert.Equal(t, 5, cfg.MaxFailedAttempts)
	assert.Equal(t, 30*time.Minute, cfg.BanCooldown)
}

func TestThrottleGuard_Predicates(t *testing.T) {
	banned := NewTestUser("u1", "banned@x.com", "B", "pw")
	banned.Banned = true
	banned.FailedLoginAttempts = 5
	banned.LastFailedLoginAt = timePtr(testNow.Add(-45 * time.Minute))

	limited := NewTestUser("u2", "limited@x.com", "L", "pw")
	limited.FailedLoginAttempts = 7
	limited.LastFailedLoginAt = timePtr(testNow.Add(-time.Minute))

	guard := newTestGuard(newMemoryAccountStore(banned, limited))
	ctx := context.Background()

	tests := []struct {
		email                       string
		isBanned, removable, exceed bool
	}{
		{"banned@x.com", true, true, true},
		{"limited@x.com", false, false, true},
		{"missing@x.com", false, false, false},
		{"BANNED@x.com", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			got, err := guard.IsBanned(ctx, tt.email)
			require.NoError(t, err)
			assert.Equal(t, tt.isBanned, got)

			got, err = guard.IsRemoveBan(ctx, tt.email)
			require.NoError(t, err)
			assert.Equal(t, tt.removable, got)

			got, err = guard.IsLoginLimitExceeded(ctx, tt.email)
			require.NoError(t, err)
			assert.Equal(t, tt.exceed, got)
		})
	}
}

func TestThrottleGuard_CustomPolicy(t *testing.T) {
	u := NewTestUser("u1", "a@x.com", "A", "pw")
	u.FailedLoginAttempts = 3
	u.Banned = true
	u.LastFailedLoginAt = timePtr(testNow.Add(-6 * time.Minute))

	guard := NewThrottleGuard(newMemoryAccountStore(u), ThrottleConfig{MaxFailedAttempts: 3, BanCooldown: 5 * time.Minute}, discardLogger()).
		WithClock(fixedClock(testNow))

	exceeded, err := guard.IsLoginLimitExceeded(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.True(t, exceeded)

	removable, err := guard.IsRemoveBan(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.True(t, removable)
}

func TestThrottleGuard_Mutations(t *testing.T) {
	u := NewTestUser("u1", "a@x.com", "A", "pw")
	store := newMemoryAccountStore(u)
	guard := newTestGuard(store)
	ctx := context.Background()

	require.NoError(t, guard.IncrementFailedLoginAttempts(ctx, "a@x.com"))
	require.NoError(t, guard.IncrementFailedLoginAttempts(ctx, "a@x.com"))
	after := store.user("a@x.com")
	assert.Equal(t, 2, after.FailedLoginAttempts)
	assert.Equal(t, testNow, *after.LastFailedLoginAt)

	require.NoError(t, guard.BanLoginAttempt(ctx, "a@x.com"))
	assert.True(t, store.user("a@x.com").Banned)

	require.NoError(t, guard.ResetFailedLoginAttempts(ctx, "a@x.com"))
	after = store.user("a@x.com")
	assert.Equal(t, 0, after.FailedLoginAttempts)
	assert.False(t, after.Banned)
	assert.NotNil(t, after.LastFailedLoginAt, "reset leaves the last failure timestamp")
}

func TestThrottleGuard_Admit(t *testing.T) {
	tests := []struct {
		name        string
		user        *models.User
		wantErr     error
		wantOutcome AdmitOutcome
		wantResets  int
		wantBans    int
	}{
		{
			name: "clear account",
			user: &models.User{Email: "a@x.com", FailedLoginAttempts: 2},
		},
		{
			name:        "liftable ban",
			user:        &models.User{Email: "a@x.com", FailedLoginAttempts: 5, Banned: true, LastFailedLoginAt: timePtr(testNow.Add(-31 * time.Minute))},
			wantOutcome: AdmitOutcome{BanLifted: true},
			wantResets:  1,
		},
		{
			name:    "active ban",
			user:    &models.User{Email: "a@x.com", FailedLoginAttempts: 5, Banned: true, LastFailedLoginAt: timePtr(testNow.Add(-10 * time.Minute))},
			wantErr: models.ErrTooManyFailedAttempts,
		},
		{
			name:        "limit reached",
			user:        &models.User{Email: "a@x.com", FailedLoginAttempts: 5, LastFailedLoginAt: timePtr(testNow)},
			wantErr:     models.ErrTooManyFailedAttempts,
			wantOutcome: AdmitOutcome{BanImposed: true},
			wantBans:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryAccountStore(tt.user)
			outcome, err := newTestGuard(store).Admit(context.Background(), "a@x.com")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantOutcome, outcome)
			assert.Equal(t, tt.wantResets, store.resets)
			assert.Equal(t, tt.wantBans, store.bans)
			assert.Equal(t, 0, store.increments)
		})
	}
}

func TestThrottleGuard_Admit_UnknownAccount(t *testing.T) {
	store := newMemoryAccountStore()

	outcome, err := newTestGuard(store).Admit(context.Background(), "nobody@x.com")

	assert.NoError(t, err)
	assert.Equal(t, AdmitOutcome{}, outcome)
	assert.Equal(t, 0, store.mutations())
}

func TestThrottleGuard_Settle(t *testing.T) {
	store := newMemoryAccountStore(NewTestUser("u1", "a@x.com", "A", "pw"))
	guard := newTestGuard(store)

	require.NoError(t, guard.Settle(context.Background(), "a@x.com", false))
	assert.Equal(t, 1, store.increments)
	assert.Equal(t, 0, store.resets)

	require.NoError(t, guard.Settle(context.Background(), "a@x.com", true))
	assert.Equal(t, 1, store.increments)
	assert.Equal(t, 1, store.resets)
}

func TestThrottleGuard_WrapsStoreErrors(t *testing.T) {
	boom := errors.New("timeout")
	repo := &MockAccountRepository{
		GetByEmailFunc:                   func(ctx context.Context, email string) (*models.User, error) { return nil, boom },
		ResetFailedLoginAttemptsFunc:     func(ctx context.Context, email string) error { return boom },
		IncrementFailedLoginAttemptsFunc: func(ctx context.Context, email string, at time.Time) error { return boom },
		BanAccountFunc:                   func(ctx context.Context, email string) error { return boom },
	}
	guard := newTestGuard(repo)
	ctx := context.Background()

	_, err := guard.IsBanned(ctx, "a@x.com")
	assert.ErrorIs(t, err, boom)
	_, err = guard.IsRemoveBan(ctx, "a@x.com")
	assert.ErrorIs(t, err, boom)
	_, err = guard.IsLoginLimitExceeded(ctx, "a@x.com")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, guard.ResetFailedLoginAttempts(ctx, "a@x.com"), boom)
	assert.ErrorIs(t, guard.IncrementFailedLoginAttempts(ctx, "a@x.com"), boom)
	assert.ErrorIs(t, guard.BanLoginAttempt(ctx, "a@x.com"), boom)
}

func TestThrottleGuard_UnknownAccount_NeverBanned(t *testing.T) {
	f := newLoginFixture(NewTestUser("u1", "a@x.com", "A", "correct"))

	for i := 0; i < 8; i++ {
		_, err := f.login("nobody@x.com", "wrong")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials, "attempt %d", i+1)
	}

	assert.Equal(t, 8, f.store.increments)
	assert.Equal(t, 0, f.store.bans)
	assert.False(t, f.store.has("nobody@x.com"))
}

func TestThrottleGuard_UnknownAccount_MutationsCreateNothing(t *testing.T) {
	store := newMemoryAccountStore()
	guard := newTestGuard(store)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		require.NoError(t, guard.IncrementFailedLoginAttempts(ctx, "nobody@x.com"))
	}
	require.NoError(t, guard.BanLoginAttempt(ctx, "nobody@x.com"))

	banned, err := guard.IsBanned(ctx, "nobody@x.com")
	require.NoError(t, err)
	assert.False(t, banned)

	limited, err := guard.IsLoginLimitExceeded(ctx, "nobody@x.com")
	require.NoError(t, err)
	assert.False(t, limited)

	outcome, err := guard.Admit(ctx, "nobody@x.com")
	require.NoError(t, err)
	assert.Equal(t, AdmitOutcome{}, outcome)
	assert.False(t, store.has("nobody@x.com"))
}
