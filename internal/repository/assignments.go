// assignments.go — репозиторий таблицы file_user_assignments.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AssignmentRepository — интерфейс доступа к назначениям файл ↔ пользователь.
type AssignmentRepository interface {
	// Assign создаёт назначение. Идемпотентно: существующая пара — no-op.
	Assign(ctx context.Context, fileID, userID string) error
	// AssignAllAdmins назначает файл всем текущим администраторам.
	// Идемпотентно. Возвращает количество созданных назначений.
	AssignAllAdmins(ctx context.Context, fileID string) (int, error)
	// ReplaceForFile атомарно заменяет полный набор пользователей файла.
	// Пустой набор допустим — снимает все назначения.
	ReplaceForFile(ctx context.Context, fileID string, userIDs []string) error
	// ReplaceForUser атомарно заменяет полный набор файлов пользователя.
	ReplaceForUser(ctx context.Context, userID string, fileIDs []string) error
	// HasAccess возвращает true, если пара (file, user) назначена.
	// О ролях ничего не знает: admin-override — забота вызывающего.
	HasAccess(ctx context.Context, userID, fileID string) (bool, error)
}

// assignmentRepo — реализация AssignmentRepository.
type assignmentRepo struct {
	db DBTX
	tx *TxRunner
}

// NewAssignmentRepository создаёт репозиторий назначений.
func NewAssignmentRepository(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepo{db: pool, tx: NewTxRunner(pool)}
}

func (r *assignmentRepo) Assign(ctx context.Context, fileID, userID string) error {
	query := `
		INSERT INTO file_user_assignments (file_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (file_id, user_id) DO NOTHING`

	if _, err := r.db.Exec(ctx, query, fileID, userID); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: файл или пользователь не существует", ErrNotFound)
		}
		return fmt.Errorf("ошибка создания назначения: %w", err)
	}
	return nil
}

func (r *assignmentRepo) AssignAllAdmins(ctx context.Context, fileID string) (int, error) {
	query := `
		INSERT INTO file_user_assignments (file_id, user_id)
		SELECT $1, user_id FROM users WHERE is_admin
		ON CONFLICT (file_id, user_id) DO NOTHING`

	tag, err := r.db.Exec(ctx, query, fileID)
	if err != nil {
		return 0, fmt.Errorf("ошибка назначения файла администраторам: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ReplaceForFile выполняет замену набора одной транзакцией:
// удаление всех существующих строк файла, затем вставка нового набора.
// Конкурентные замены сериализуются на уровне транзакций БД —
// результат всегда один из полных наборов, не перемешивание.
func (r *assignmentRepo) ReplaceForFile(ctx context.Context, fileID string, userIDs []string) error {
	return r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM file_user_assignments WHERE file_id = $1`, fileID,
		); err != nil {
			return fmt.Errorf("ошибка очистки назначений файла: %w", err)
		}

		// Дубликаты во входном наборе схлопываются идемпотентной вставкой
		for _, userID := range userIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO file_user_assignments (file_id, user_id)
				VALUES ($1, $2)
				ON CONFLICT (file_id, user_id) DO NOTHING`,
				fileID, userID,
			); err != nil {
				if isForeignKeyViolation(err) {
					return fmt.Errorf("%w: пользователь %s не существует", ErrNotFound, userID)
				}
				return fmt.Errorf("ошибка вставки назначения: %w", err)
			}
		}
		return nil
	})
}

func (r *assignmentRepo) ReplaceForUser(ctx context.Context, userID string, fileIDs []string) error {
	return r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM file_user_assignments WHERE user_id = $1`, userID,
		); err != nil {
			return fmt.Errorf("ошибка очистки назначений пользователя: %w", err)
		}

		for _, fileID := range fileIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO file_user_assignments (file_id, user_id)
				VALUES ($1, $2)
				ON CONFLICT (file_id, user_id) DO NOTHING`,
				fileID, userID,
			); err != nil {
				if isForeignKeyViolation(err) {
					return fmt.Errorf("%w: файл %s не существует", ErrNotFound, fileID)
				}
				return fmt.Errorf("ошибка вставки назначения: %w", err)
			}
		}
		return nil
	})
}

func (r *assignmentRepo) HasAccess(ctx context.Context, userID, fileID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM file_user_assignments
			WHERE user_id = $1 AND file_id = $2
		)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, userID, fileID).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки доступа: %w", err)
	}
	return exists, nil
}
