// users.go — репозиторий таблицы users.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/gofilegate/internal/domain/model"
)

// UserRepository — интерфейс доступа к принципалам портала.
type UserRepository interface {
	// Upsert создаёт или обновляет пользователя (идентичность из IdP).
	Upsert(ctx context.Context, u *model.User) error
	// GetByID возвращает пользователя по идентификатору.
	GetByID(ctx context.Context, userID string) (*model.User, error)
	// ListAdmins возвращает идентификаторы всех администраторов.
	ListAdmins(ctx context.Context) ([]string, error)
}

// userRepo — реализация UserRepository.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Upsert(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (user_id, username, email, is_admin)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			email = EXCLUDED.email,
			is_admin = EXCLUDED.is_admin,
			updated_at = now()
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		u.UserID, u.Username, u.Email, u.IsAdmin,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка upsert пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, userID string) (*model.User, error) {
	query := `
		SELECT user_id, username, email, is_admin, created_at, updated_at
		FROM users
		WHERE user_id = $1`

	u := &model.User{}
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&u.UserID, &u.Username, &u.Email, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

func (r *userRepo) ListAdmins(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id FROM users WHERE is_admin`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка администраторов: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования идентификатора: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
