package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/BradenHooton/kamino-gate/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Each mutation runs as one Lua script so the existence check and the write are a
// single atomic step; missing accounts are never created by a failed login.
var (
	createAccountScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then return 0 end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
redis.call('SET', KEYS[2], ARGV[1])
return 1
`)

	resetAttemptsScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
redis.call('HSET', KEYS[1], 'failed_login_attempts', 0, 'banned', 0, 'updated_at', ARGV[1])
return 1
`)

	incrementAttemptsScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
redis.call('HINCRBY', KEYS[1], 'failed_login_attempts', 1)
redis.call('HSET', KEYS[1], 'last_failed_login_at', ARGV[1], 'updated_at', ARGV[2])
return 1
`)

	banAccountScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
redis.call('HSET', KEYS[1], 'banned', 1, 'updated_at', ARGV[1])
return 1
`)
)

// RedisAccountRepository stores each account as a hash under prefix+email, with
// prefix+"id:"+id holding the email for lookups by id
type RedisAccountRepository struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisAccountRepository(client *redis.Client, prefix string) *RedisAccountRepository {
	return &RedisAccountRepository{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisAccountRepository) key(email string) string {
	return r.prefix + email
}

func (r *RedisAccountRepository) idKey(id string) string {
	return r.prefix + "id:" + id
}

func (r *RedisAccountRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	fields, err := r.client.HGetAll(ctx, r.key(email)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if len(fields) == 0 {
		return nil, models.ErrNotFound
	}

	return decodeAccount(fields)
}

func (r *RedisAccountRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	email, err := r.client.Get(ctx, r.idKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account id: %w", err)
	}

	return r.GetByEmail(ctx, email)
}

func (r *RedisAccountRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := r.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	args := []interface{}{
		user.Email,
		"id", user.ID,
		"email", user.Email,
		"password_hash", user.PasswordHash,
		"name", user.Name,
		"failed_login_attempts", 0,
		"banned", 0,
		"created_at", formatTime(now),
		"updated_at", formatTime(now),
	}

	created, err := createAccountScript.Run(ctx, r.client, []string{r.key(user.Email), r.idKey(user.ID)}, args...).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	if created == 0 {
		return nil, models.ErrConflict
	}

	return user, nil
}

// ResetFailedLoginAttempts clears the counter and the ban flag
func (r *RedisAccountRepository) ResetFailedLoginAttempts(ctx context.Context, email string) error {
	err := resetAttemptsScript.Run(ctx, r.client, []string{r.key(email)}, formatTime(r.now())).Err()
	if err != nil {
		return fmt.Errorf("failed to reset login attempts: %w", err)
	}
	return nil
}

// IncrementFailedLoginAttempts bumps the counter and stamps the failure time
func (r *RedisAccountRepository) IncrementFailedLoginAttempts(ctx context.Context, email string, at time.Time) error {
	err := incrementAttemptsScript.Run(ctx, r.client, []string{r.key(email)}, formatTime(at), formatTime(r.now())).Err()
	if err != nil {
		return fmt.Errorf("failed to increment login attempts: %w", err)
	}
	return nil
}

func (r *RedisAccountRepository) BanAccount(ctx context.Context, email string) error {
	err := banAccountScript.Run(ctx, r.client, []string{r.key(email)}, formatTime(r.now())).Err()
	if err != nil {
		return fmt.Errorf("failed to ban account: %w", err)
	}
	return nil
}

// HealthCheck pings the Redis server
func (r *RedisAccountRepository) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

func decodeAccount(fields map[string]string) (*models.User, error) {
	user := &models.User{
		ID:           fields["id"],
		Email:        fields["email"],
		PasswordHash: fields["password_hash"],
		Name:         fields["name"],
		Banned:       fields["banned"] == "1",
	}

	if raw := fields["failed_login_attempts"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt failed_login_attempts %q: %w", raw, err)
		}
		user.FailedLoginAttempts = n
	}

	var err error
	if user.LastFailedLoginAt, err = parseOptionalTime(fields["last_failed_login_at"]); err != nil {
		return nil, err
	}
	if user.CreatedAt, err = parseTime(fields["created_at"]); err != nil {
		return nil, err
	}
	if user.UpdatedAt, err = parseTime(fields["updated_at"]); err != nil {
		return nil, err
	}

	return user, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt timestamp %q: %w", raw, err)
	}
	return t, nil
}

func parseOptionalTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := parseTime(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
