// files.go — репозиторий таблицы files.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/gofilegate/internal/domain/model"
)

// fileColumns — общий список колонок для SELECT.
const fileColumns = `file_id, filename, size, content_type, storage_key,
	uploaded_by, uploaded_at, label_product, label_version, label_language,
	label_confluence, created_at, updated_at`

// FileRepository — интерфейс доступа к записям файлов.
type FileRepository interface {
	// Create создаёт запись файла. Не проверяет существование объекта
	// в хранилище — это обязанность координатора загрузки ДО вызова.
	Create(ctx context.Context, f *model.FileRecord) error
	// GetByID возвращает файл по UUID.
	GetByID(ctx context.Context, fileID string) (*model.FileRecord, error)
	// UpdateLabels обновляет классификационные метки файла.
	UpdateLabels(ctx context.Context, fileID string, labels model.Labels) error
	// Delete удаляет файл и все его назначения одной транзакцией.
	// Если файла нет — ErrNotFound, транзакция откатывается целиком.
	Delete(ctx context.Context, fileID string) error
	// ListVisibleTo возвращает файлы, видимые пользователю:
	// админу — все, остальным — только назначенные. Сортировка по
	// uploaded_at по убыванию.
	ListVisibleTo(ctx context.Context, userID string, isAdmin bool) ([]*model.FileRecord, error)
	// ListStorageKeys возвращает все ключи объектов из реестра (для сверки).
	ListStorageKeys(ctx context.Context) ([]string, error)
}

// fileRepo — реализация FileRepository.
type fileRepo struct {
	db DBTX
	tx *TxRunner
}

// NewFileRepository создаёт репозиторий файлов.
func NewFileRepository(pool *pgxpool.Pool) FileRepository {
	return &fileRepo{db: pool, tx: NewTxRunner(pool)}
}

func (r *fileRepo) Create(ctx context.Context, f *model.FileRecord) error {
	query := `
		INSERT INTO files (file_id, filename, size, content_type, storage_key,
			uploaded_by, uploaded_at, label_product, label_version,
			label_language, label_confluence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		f.FileID, f.Filename, f.Size, f.ContentType, f.StorageKey,
		f.UploadedBy, f.UploadedAt,
		f.Labels.Product, f.Labels.Version, f.Labels.Language, f.Labels.Confluence,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл с таким ID или ключом уже зафиксирован", ErrConflict)
		}
		return fmt.Errorf("ошибка создания записи файла: %w", err)
	}
	return nil
}

// scanFile сканирует одну строку таблицы files.
func scanFile(row pgx.Row) (*model.FileRecord, error) {
	f := &model.FileRecord{}
	err := row.Scan(
		&f.FileID, &f.Filename, &f.Size, &f.ContentType, &f.StorageKey,
		&f.UploadedBy, &f.UploadedAt,
		&f.Labels.Product, &f.Labels.Version, &f.Labels.Language, &f.Labels.Confluence,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *fileRepo) GetByID(ctx context.Context, fileID string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE file_id = $1`, fileColumns)

	f, err := scanFile(r.db.QueryRow(ctx, query, fileID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

func (r *fileRepo) UpdateLabels(ctx context.Context, fileID string, labels model.Labels) error {
	query := `
		UPDATE files
		SET label_product = $2, label_version = $3, label_language = $4,
			label_confluence = $5, updated_at = now()
		WHERE file_id = $1`

	tag, err := r.db.Exec(ctx, query, fileID,
		labels.Product, labels.Version, labels.Language, labels.Confluence,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления меток файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет назначения и запись файла одной транзакцией.
// Каскад по FK чистит назначения и при прямом DELETE, но явный порядок
// внутри транзакции делает инвариант видимым и не зависит от схемы.
func (r *fileRepo) Delete(ctx context.Context, fileID string) error {
	return r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM file_user_assignments WHERE file_id = $1`, fileID,
		); err != nil {
			return fmt.Errorf("ошибка удаления назначений файла: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM files WHERE file_id = $1`, fileID)
		if err != nil {
			return fmt.Errorf("ошибка удаления файла: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// Откат транзакции: удаление назначений не фиксируется.
			return ErrNotFound
		}
		return nil
	})
}

func (r *fileRepo) ListVisibleTo(ctx context.Context, userID string, isAdmin bool) ([]*model.FileRecord, error) {
	// Двухвариантная диспетчеризация по роли: админ видит всё без
	// per-file назначений, остальные — только назначенное.
	var query string
	var args []any
	if isAdmin {
		query = fmt.Sprintf(`
			SELECT %s FROM files
			ORDER BY uploaded_at DESC`, fileColumns)
	} else {
		query = fmt.Sprintf(`
			SELECT %s FROM files
			WHERE file_id IN (
				SELECT file_id FROM file_user_assignments WHERE user_id = $1
			)
			ORDER BY uploaded_at DESC`, fileColumns)
		args = append(args, userID)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *fileRepo) ListStorageKeys(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT storage_key FROM files`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ключей хранилища: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("ошибка сканирования ключа: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
