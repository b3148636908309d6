package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/kamino-gate/internal/auth"
	"github.com/BradenHooton/kamino-gate/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type loginFixture struct {
	store    *memoryAccountStore
	comparer *spyComparer
	recorder *MockAttemptRecorder
	svc      *AuthService
}

func newLoginFixture(users ...*models.User) *loginFixture {
	store := newMemoryAccountStore(users...)
	comparer := &spyComparer{}
	recorder := &MockAttemptRecorder{}

	guard := NewThrottleGuard(store, DefaultThrottleConfig(), discardLogger()).WithClock(fixedClock(testNow))
	verifier := NewCredentialVerifier(store, comparer, &MockTokenIssuer{})

	return &loginFixture{
		store:    store,
		comparer: comparer,
		recorder: recorder,
		svc:      NewAuthService(guard, verifier, recorder, nil, discardLogger(), testAuditLogger()),
	}
}

func (f *loginFixture) login(email, password string) (*models.LoginResult, error) {
	return f.svc.Login(context.Background(), email, password, "198.51.100.1", "test-agent")
}

func TestLogin_UnknownEmail_InvalidCredentialsAndCompares(t *testing.T) {
	f := newLoginFixture(NewTestUser("u1", "a@x.com", "A", "correct"))

	for _, password := range []string{"", "correct", "hash:whatever", "dummy-hash"} {
		result, err := f.login("nobody@x.com", password)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	}

	calls := f.comparer.calls()
	require.Len(t, calls, 4)
	for _, hash := range calls {
		assert.Equal(t, testDummyHash, hash)
	}
}

func TestLogin_FourthToFifthFailure_NotYetBanned(t *testing.T) {
	u := NewTestUser("u1", "a@x.com", "A", "correct")
	u.FailedLoginAttempts = 4
	u.LastFailedLoginAt = timePtr(testNow.Add(-time.Minute))
	f := newLoginFixture(u)

	result, err := f.login("a@x.com", "wrong")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	after := f.store.user("a@x.com")
	assert.Equal(t, 5, after.FailedLoginAttempts)
	assert.False(t, after.Banned)
	require.NotNil(t, after.LastFailedLoginAt)
	assert.Equal(t, testNow, *after.LastFailedLoginAt)
}

func TestLogin_BanOlderThanCooldown_IsLifted(t *testing.T) {
	u := NewTestUser("u1", "a@x.com", "Alice", "correct")
	u.FailedLoginAttempts = 5
	u.Banned = true
	u.LastFailedLoginAt = timePtr(testNow.Add(-31 * time.Minute))
	f := newLoginFixture(u)

	result, err := f.login("a@x.com", "correct")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "a@x.com", result.Email)
	assert.Equal(t, "Alice", result.Name)
	assert.Equal(t, "u1", result.UserID)
	assert.Equal(t, "token-for-u1", result.Token)

	after := f.store.user("a@x.com")
	assert.Equal(t, 0, after.FailedLoginAttempts)
	assert.False(t, after.Banned)
}

func TestLogin_BanWithinCooldown_DeniedWithoutMutation(t *testing.T) {
	u := NewTestUser("u1", "a@x.com", "A", "correct")
	u.FailedLoginAttempts = 5
	u.Banned = true
	u.LastFailedLoginAt = timePtr(testNow.Add(-10 * time.Minute))
	f := newLoginFixture(u)

	result, err := f.login("a@x.com", "correct")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrTooManyFailedAttempts)
	assert.Equal(t, 0, f.store.mutations())
	assert.Empty(t, f.comparer.calls())

	after := f.store.user("a@x.com")
	assert.Equal(t, 5, after.FailedLoginAttempts)
	assert.True(t, after.Banned)
}

func TestLogin_BanExactlyAtCooldown_StaysBanned(t *testing.T) {
	u := NewTestUser("u1", "a@x.com", "A", "correct")
	u.FailedLoginAttempts = 5
	u.Banned = true
	u.LastFailedLoginAt = timePtr(testNow.Add(-30 * time.Minute))
	f := newLoginFixture(u)

	_, err := f.login("a@x.com", "correct")

	assert.ErrorIs(t, err, models.ErrTooManyFailedAttempts)
	assert.Equal(t, 0, f.store.mutations())
}

func TestLogin_BannedWithoutTimestamp_StaysBanned(t *testing.T) {
	u := NewTestUser("u1", "a@x.com", "A", "correct")
	u.Banned = true
	f := newLoginFixture(u)

	_, err := f.login("a@x.com", "correct")

	assert.ErrorIs(t, err, models.ErrTooManyFailedAttempts)
	assert.Equal(t, 0, f.store.mutations())
}

func TestLogin_Success_ResetsRegardlessOfCounter(t *testing.T) {
	for _, prior := range []int{0, 1, 3, 4} {
		u := NewTestUser("u1", "a@x.com", "A", "correct")
		u.FailedLoginAttempts = prior
		if prior > 0 {
			u.LastFailedLoginAt = timePtr(testNow.Add(-time.Minute))
		}
		f := newLoginFixture(u)

		result, err := f.login("a@x.com", "correct")

		require.NoError(t, err)
		require.NotNil(t, result)
		after := f.store.user("a@x.com")
		assert.Equal(t, 0, after.FailedLoginAttempts, "prior=%d", prior)
		assert.False(t, after.Banned)
		assert.Equal(t, 1, f.store.resets)
		assert.Equal(t, 0, f.store.increments)
	}
}

func TestLogin_RepeatedFailuresIncrementEachTime(t *testing.T) {
	f := newLoginFixture(NewTestUser("u1", "a@x.com", "A", "correct"))

	for i := 1; i <= 3; i++ {
		_, err := f.login("a@x.com", "wrong")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
		assert.Equal(t, i, f.store.user("a@x.com").FailedLoginAttempts)
	}
}

func TestLogin_LimitReachedWhileClear_Bans(t *testing.T) {
	u := NewTestUser("u1", "a@x.com", "A", "correct")
	u.FailedLoginAttempts = 5
	u.LastFailedLoginAt = timePtr(testNow)
	f := newLoginFixture(u)

	result, err := f.login("a@x.com", "correct")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrTooManyFailedAttempts)
	after := f.store.user("a@x.com")
	assert.True(t, after.Banned)
	assert.Equal(t, 5, after.FailedLoginAttempts)
	assert.Equal(t, 1, f.store.bans)
	assert.Empty(t, f.comparer.calls())
}

func TestLogin_FullLockoutCycle(t *testing.T) {
	u := NewTestUser("u1", "a@x.com", "A", "correct")
	store := newMemoryAccountStore(u)
	now := testNow
	clock := func() time.Time { return now }
	guard := NewThrottleGuard(store, DefaultThrottleConfig(), discardLogger()).WithClock(clock)
	svc := NewAuthService(guard, NewCredentialVerifier(store, &spyComparer{}, &MockTokenIssuer{}), nil, nil, discardLogger(), testAuditLogger())
	login := func(pw string) error {
		_, err := svc.Login(context.Background(), "a@x.com", pw, "", "")
		return err
	}

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, login("wrong"), models.ErrInvalidCredentials)
	}
	assert.ErrorIs(t, login("correct"), models.ErrTooManyFailedAttempts)
	assert.True(t, store.user("a@x.com").Banned)

	now = now.Add(29 * time.Minute)
	assert.ErrorIs(t, login("correct"), models.ErrTooManyFailedAttempts)

	now = now.Add(2 * time.Minute)
	assert.NoError(t, login("correct"))
	after := store.user("a@x.com")
	assert.Equal(t, models.LoginStateClear, after.LoginState())
}

func TestLogin_PropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection refused")

	tests := []struct {
		name string
		repo *MockAccountRepository
	}{
		{
			name: "lookup",
			repo: &MockAccountRepository{
				GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) { return nil, boom },
			},
		},
		{
			name: "increment",
			repo: &MockAccountRepository{
				GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
					return NewTestUser("u1", email, "A", "correct"), nil
				},
				IncrementFailedLoginAttemptsFunc: func(ctx context.Context, email string, at time.Time) error { return boom },
			},
		},
		{
			name: "ban",
			repo: &MockAccountRepository{
				GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
					u := NewTestUser("u1", email, "A", "correct")
					u.FailedLoginAttempts = 5
					return u, nil
				},
				BanAccountFunc: func(ctx context.Context, email string) error { return boom },
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guard := NewThrottleGuard(tt.repo, DefaultThrottleConfig(), discardLogger())
			verifier := NewCredentialVerifier(tt.repo, &spyComparer{}, &MockTokenIssuer{})
			svc := NewAuthService(guard, verifier, nil, nil, discardLogger(), testAuditLogger())

			result, err := svc.Login(context.Background(), "a@x.com", "wrong", "", "")

			assert.Nil(t, result)
			assert.ErrorIs(t, err, boom)
			assert.NotErrorIs(t, err, models.ErrInvalidCredentials)
			assert.NotErrorIs(t, err, models.ErrTooManyFailedAttempts)
		})
	}
}

func TestLogin_PropagatesCompareErrors(t *testing.T) {
	f := newLoginFixture(NewTestUser("u1", "a@x.com", "A", "correct"))
	f.comparer.CompareErr = errors.New("malformed hash")

	_, err := f.login("a@x.com", "correct")

	assert.EqualError(t, err, "malformed hash")
	assert.Equal(t, 0, f.store.mutations())
}

func TestLogin_RecordsHistory(t *testing.T) {
	u := NewTestUser("u1", "a@x.com", "A", "correct")
	f := newLoginFixture(u)

	_, _ = f.login("a@x.com", "wrong")
	_, _ = f.login("a@x.com", "correct")

	require.Len(t, f.recorder.Recorded, 2)
	assert.Equal(t, RecordedAttempt{Email: "a@x.com", Success: false, Reason: models.FailureReasonInvalidCredentials}, f.recorder.Recorded[0])
	assert.Equal(t, RecordedAttempt{Email: "a@x.com", Success: true}, f.recorder.Recorded[1])
}

func TestLogin_RecordsBanRefusal(t *testing.T) {
	u := NewTestUser("u1", "a@x.com", "A", "correct")
	u.Banned = true
	u.LastFailedLoginAt = timePtr(testNow)
	f := newLoginFixture(u)

	_, _ = f.login("a@x.com", "correct")

	require.Len(t, f.recorder.Recorded, 1)
	assert.Equal(t, models.FailureReasonTooManyAttempts, f.recorder.Recorded[0].Reason)
}

func TestLogin_HistoryFailureDoesNotChangeDecision(t *testing.T) {
	f := newLoginFixture(NewTestUser("u1", "a@x.com", "A", "correct"))
	f.recorder.Err = errors.New("history table unavailable")

	result, err := f.login("a@x.com", "correct")

	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestLogin_TimingFloorOnDenial(t *testing.T) {
	store := newMemoryAccountStore()
	guard := NewThrottleGuard(store, DefaultThrottleConfig(), discardLogger())
	verifier := NewCredentialVerifier(store, &spyComparer{}, &MockTokenIssuer{})
	delay := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 50})
	svc := NewAuthService(guard, verifier, nil, delay, discardLogger(), testAuditLogger())

	start := time.Now()
	_, err := svc.Login(context.Background(), "nobody@x.com", "pw", "", "")

	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestLogin_TimingFloorOnSuccess(t *testing.T) {
	newService := func(delayOnSuccess bool) *AuthService {
		store := newMemoryAccountStore(NewTestUser("u1", "a@x.com", "A", "correct"))
		guard := NewThrottleGuard(store, DefaultThrottleConfig(), discardLogger())
		verifier := NewCredentialVerifier(store, &spyComparer{}, &MockTokenIssuer{})
		delay := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 50, DelayOnSuccess: delayOnSuccess})
		return NewAuthService(guard, verifier, nil, delay, discardLogger(), testAuditLogger())
	}

	start := time.Now()
	_, err := newService(true).Login(context.Background(), "a@x.com", "correct", "", "")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	start = time.Now()
	_, err = newService(false).Login(context.Background(), "a@x.com", "correct", "", "")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLogin_ConcurrentFailuresAllCounted(t *testing.T) {
	u := NewTestUser("u1", "a@x.com", "A", "correct")
	f := newLoginFixture(u)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.login("a@x.com", "wrong")
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, f.store.user("a@x.com").FailedLoginAttempts)
}
