package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/kamino-gate/internal/database"
	"github.com/BradenHooton/kamino-gate/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository is the Postgres account store. Every login-state mutation is a
// single UPDATE keyed by email, so concurrent attempts never lose an increment.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

const userColumns = `id, email, password_hash, name, failed_login_attempts, banned, last_failed_login_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var id uuid.UUID

	err := scanner.Scan(
		&id, &user.Email, &user.PasswordHash, &user.Name,
		&user.FailedLoginAttempts, &user.Banned, &user.LastFailedLoginAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	user.ID = id.String()

	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, email, password_hash, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns

	created, err := scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Name, user.CreatedAt, user.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return created, nil
}

// ResetFailedLoginAttempts clears the counter and the ban flag
func (r *UserRepository) ResetFailedLoginAttempts(ctx context.Context, email string) error {
	query := `
		UPDATE users SET failed_login_attempts = 0, banned = FALSE, updated_at = NOW()
		WHERE email = $1
	`

	_, err := r.pool.Exec(ctx, query, email)
	return database.MapPostgresError(err)
}

// IncrementFailedLoginAttempts bumps the counter and stamps the failure time
func (r *UserRepository) IncrementFailedLoginAttempts(ctx context.Context, email string, at time.Time) error {
	query := `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1, last_failed_login_at = $2, updated_at = NOW()
		WHERE email = $1
	`

	_, err := r.pool.Exec(ctx, query, email, at)
	return database.MapPostgresError(err)
}

func (r *UserRepository) BanAccount(ctx context.Context, email string) error {
	query := `UPDATE users SET banned = TRUE, updated_at = NOW() WHERE email = $1`

	_, err := r.pool.Exec(ctx, query, email)
	return database.MapPostgresError(err)
}
