package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/langchou/carva/internal/models"
)

// UserRepository 用户数据仓库
type UserRepository struct {
	db *DB
}

// NewUserRepository 创建用户仓库
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, telegram_id, username, first_name, last_name, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.TelegramID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetByTelegramID 通过 Telegram ID 获取用户
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`
	user, err := scanUser(r.db.Pool.QueryRow(ctx, query, telegramID))
	if err != nil {
		return nil, fmt.Errorf("get user by telegram_id: %w", notFound(err))
	}
	return user, nil
}

// Create 创建用户
func (r *UserRepository) Create(ctx context.Context, telegramID int64, profile models.UserProfile) (*models.User, error) {
	query := `
		INSERT INTO users (id, telegram_id, username, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns
	now := time.Now()
	user, err := scanUser(r.db.Pool.QueryRow(ctx, query,
		uuid.NewString(),
		telegramID,
		nullable(profile.Username),
		nullable(profile.FirstName),
		nullable(profile.LastName),
		now,
		now,
	))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// GetOrCreate 获取或创建用户；已存在时只补充非空的展示字段
func (r *UserRepository) GetOrCreate(ctx context.Context, telegramID int64, profile models.UserProfile) (*models.User, error) {
	query := `
		INSERT INTO users (id, telegram_id, username, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (telegram_id) DO UPDATE SET
			username = COALESCE(EXCLUDED.username, users.username),
			first_name = COALESCE(EXCLUDED.first_name, users.first_name),
			last_name = COALESCE(EXCLUDED.last_name, users.last_name),
			updated_at = EXCLUDED.updated_at
		RETURNING ` + userColumns
	now := time.Now()
	user, err := scanUser(r.db.Pool.QueryRow(ctx, query,
		uuid.NewString(),
		telegramID,
		nullable(profile.Username),
		nullable(profile.FirstName),
		nullable(profile.LastName),
		now,
		now,
	))
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return user, nil
}

// nullable 空字符串写入 NULL
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
