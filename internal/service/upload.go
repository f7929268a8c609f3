// upload.go — координатор жизненного цикла загрузки: выдача upload
// capability, фиксация после загрузки клиентом и удаление файла.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gofilegate/internal/domain/model"
	"github.com/bigkaa/gofilegate/internal/objectstore"
	"github.com/bigkaa/gofilegate/internal/repository"
)

// ObjectStore — серверные операции хранилища, используемые сервисами.
type ObjectStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string, fn func(objectstore.ObjectEntry) error) error
}

// CapabilityIssuer — выдача presigned URL на одну операцию с одним ключом.
type CapabilityIssuer interface {
	PresignUpload(ctx context.Context, key string) (*url.URL, error)
	PresignDownload(ctx context.Context, key, filename string) (*url.URL, error)
	PresignDelete(ctx context.Context, key string) (*url.URL, error)
	UploadTTL() time.Duration
	DownloadTTL() time.Duration
	DeleteTTL() time.Duration
}

// Prometheus-метрики жизненного цикла загрузки.
var (
	uploadURLsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fg_upload_urls_total",
		Help: "Общее количество запросов upload capability.",
	}, []string{"status"})
	commitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fg_commits_total",
		Help: "Общее количество фиксаций загрузок.",
	}, []string{"status"})
	committedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fg_committed_bytes_total",
		Help: "Суммарный размер зафиксированных файлов в байтах.",
	})
	deletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fg_deletes_total",
		Help: "Общее количество удалений файлов.",
	}, []string{"status"})
	orphanedObjectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fg_orphaned_objects_total",
		Help: "Количество объектов, оставшихся в хранилище после удаления метаданных.",
	})
)

// UploadTicket — результат запроса на загрузку: ключ и capability.
type UploadTicket struct {
	// StorageKey — сгенерированный ключ объекта. Клиент обязан вернуть
	// его при фиксации без изменений.
	StorageKey string
	// UploadURL — presigned PUT URL.
	UploadURL *url.URL
	// ExpiresIn — срок жизни URL.
	ExpiresIn time.Duration
}

// CommitParams — параметры фиксации загрузки.
type CommitParams struct {
	StorageKey  string
	Filename    string
	Size        int64
	ContentType string
	UploadedBy  string
	Labels      model.Labels
	// Recipients — полный набор получателей файла. Пустой набор
	// допустим: файл остаётся виден только администраторам.
	Recipients []string
}

// DeleteResult — результат удаления файла.
type DeleteResult struct {
	// ObjectRemoved — удалось ли удалить объект из хранилища.
	// false означает осиротевший объект: метаданные уже удалены,
	// файл недоступен пользователям, байты подчистит сверка.
	ObjectRemoved bool
	// CleanupURL — delete capability для ручной подчистки, если
	// серверное удаление объекта не удалось. Может быть nil.
	CleanupURL *url.URL
}

// UploadService — координатор загрузки. Единственная точка, где
// объект в хранилище и запись в реестре сводятся воедино.
type UploadService struct {
	files       repository.FileRepository
	assignments repository.AssignmentRepository
	store       ObjectStore
	signer      CapabilityIssuer
	cache       *CacheService
	maxFileSize int64
	logger      *slog.Logger
}

// NewUploadService создаёт координатор загрузки.
func NewUploadService(
	files repository.FileRepository,
	assignments repository.AssignmentRepository,
	store ObjectStore,
	signer CapabilityIssuer,
	cache *CacheService,
	maxFileSize int64,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		files:       files,
		assignments: assignments,
		store:       store,
		signer:      signer,
		cache:       cache,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "upload-service")),
	}
}

// RequestUpload проверяет политику, генерирует ключ хранилища и выдаёт
// upload capability. Политика размера применяется ДО выдачи URL:
// после выдачи сервер не участвует в передаче байтов и проверить
// ничего не может.
func (s *UploadService) RequestUpload(ctx context.Context, filename string, size int64) (*UploadTicket, error) {
	if filename == "" {
		uploadURLsTotal.WithLabelValues("validation_error").Inc()
		return nil, fmt.Errorf("%w: имя файла не задано", ErrValidation)
	}
	if size <= 0 {
		uploadURLsTotal.WithLabelValues("validation_error").Inc()
		return nil, fmt.Errorf("%w: размер файла должен быть положительным", ErrValidation)
	}
	if size > s.maxFileSize {
		uploadURLsTotal.WithLabelValues("size_exceeded").Inc()
		return nil, fmt.Errorf("%w: размер файла %d превышает максимум %d байт",
			ErrValidation, size, s.maxFileSize)
	}

	key, err := buildStorageKey(filename)
	if err != nil {
		uploadURLsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("ошибка генерации ключа хранилища: %w", err)
	}

	u, err := s.signer.PresignUpload(ctx, key)
	if err != nil {
		uploadURLsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: выдача upload URL не удалась: %v", ErrStoreUnavailable, err)
	}

	uploadURLsTotal.WithLabelValues("issued").Inc()
	s.logger.Debug("выдан upload URL",
		slog.String("storage_key", key),
		slog.Int64("size", size),
	)
	return &UploadTicket{
		StorageKey: key,
		UploadURL:  u,
		ExpiresIn:  s.signer.UploadTTL(),
	}, nil
}

// Commit фиксирует загрузку: подтверждает наличие объекта в хранилище
// и создаёт запись файла с назначениями. Fail-closed: без
// подтверждённого наличия объекта метаданные не создаются НИКОГДА —
// ни при отсутствии объекта, ни при неопределённости (хранилище
// недоступно). Запись без байтов хуже, чем байты без записи: первая
// видна пользователям и ломает скачивание, вторые невидимы и
// подчищаются сверкой.
func (s *UploadService) Commit(ctx context.Context, p CommitParams) (*model.FileRecord, error) {
	if err := s.validateCommit(p); err != nil {
		commitsTotal.WithLabelValues("validation_error").Inc()
		return nil, err
	}

	exists, err := s.store.Exists(ctx, p.StorageKey)
	if err != nil {
		commitsTotal.WithLabelValues("verify_failed").Inc()
		s.logger.Warn("не удалось подтвердить наличие объекта, фиксация отклонена",
			slog.String("storage_key", p.StorageKey),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: проверка хранилища не удалась: %v", ErrUploadNotVerified, err)
	}
	if !exists {
		commitsTotal.WithLabelValues("not_verified").Inc()
		s.logger.Warn("объект отсутствует в хранилище, фиксация отклонена",
			slog.String("storage_key", p.StorageKey),
		)
		return nil, ErrUploadNotVerified
	}

	record := &model.FileRecord{
		FileID:      uuid.New().String(),
		Filename:    p.Filename,
		Size:        p.Size,
		ContentType: p.ContentType,
		StorageKey:  p.StorageKey,
		UploadedBy:  p.UploadedBy,
		UploadedAt:  time.Now().UTC(),
		Labels:      p.Labels,
	}

	// Порядок шагов намеренный: сначала запись файла, затем назначения
	// администраторам, затем получатели. Сбой на любом шаге оставляет
	// файл как минимум видимым администраторам — деградация в сторону
	// операторов, которые могут починить, а не в сторону тихой потери.
	if err := s.files.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			commitsTotal.WithLabelValues("conflict").Inc()
			return nil, fmt.Errorf("%w: ключ %s уже зафиксирован", ErrConflict, p.StorageKey)
		}
		commitsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("ошибка создания записи файла: %w", err)
	}

	if _, err := s.assignments.AssignAllAdmins(ctx, record.FileID); err != nil {
		// Не фатально: админы видят все файлы через ролевой override.
		// Логируем и продолжаем.
		s.logger.Error("не удалось назначить файл администраторам",
			slog.String("file_id", record.FileID),
			slog.String("error", err.Error()),
		)
	}

	if len(p.Recipients) > 0 {
		if err := s.assignments.ReplaceForFile(ctx, record.FileID, p.Recipients); err != nil {
			// Файл уже зафиксирован и виден администраторам. Ошибку
			// возвращаем: вызывающий должен знать, что получатели
			// не назначены.
			commitsTotal.WithLabelValues("assignments_failed").Inc()
			s.logger.Error("файл зафиксирован, но назначение получателей не удалось",
				slog.String("file_id", record.FileID),
				slog.String("error", err.Error()),
			)
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: получатель не существует", ErrNotFound)
			}
			return nil, fmt.Errorf("ошибка назначения получателей: %w", err)
		}
	}

	commitsTotal.WithLabelValues("committed").Inc()
	committedBytesTotal.Add(float64(record.Size))
	s.logger.Info("загрузка зафиксирована",
		slog.String("file_id", record.FileID),
		slog.String("storage_key", record.StorageKey),
		slog.Int64("size", record.Size),
		slog.String("uploaded_by", record.UploadedBy),
		slog.Int("recipients", len(p.Recipients)),
	)
	return record, nil
}

// Delete удаляет файл. Метаданные удаляются первыми и авторитетно:
// после успешного удаления записи файл недоступен пользователям, даже
// если объект в хранилище остался. Удаление объекта — best-effort,
// сбой никогда не фейлит операцию.
func (s *UploadService) Delete(ctx context.Context, fileID string) (*DeleteResult, error) {
	record, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			deletesTotal.WithLabelValues("not_found").Inc()
			return nil, ErrNotFound
		}
		deletesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}

	if err := s.files.Delete(ctx, fileID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			deletesTotal.WithLabelValues("not_found").Inc()
			return nil, ErrNotFound
		}
		deletesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("ошибка удаления файла: %w", err)
	}
	s.cache.Delete(fileID)

	result := &DeleteResult{ObjectRemoved: true}
	if record.StorageKey == "" {
		// Запись без ключа: удалять в хранилище нечего.
		result.ObjectRemoved = false
		deletesTotal.WithLabelValues("deleted").Inc()
		return result, nil
	}

	if err := s.store.Delete(ctx, record.StorageKey); err != nil {
		result.ObjectRemoved = false
		orphanedObjectsTotal.Inc()
		s.logger.Warn("метаданные удалены, объект остался в хранилище",
			slog.String("file_id", fileID),
			slog.String("storage_key", record.StorageKey),
			slog.String("error", err.Error()),
		)

		// Выдаём delete capability для ручной подчистки. Тоже best-effort.
		cleanupURL, signErr := s.signer.PresignDelete(ctx, record.StorageKey)
		if signErr != nil {
			s.logger.Warn("не удалось выдать delete URL для подчистки",
				slog.String("storage_key", record.StorageKey),
				slog.String("error", signErr.Error()),
			)
		} else {
			result.CleanupURL = cleanupURL
		}
	}

	deletesTotal.WithLabelValues("deleted").Inc()
	s.logger.Info("файл удалён",
		slog.String("file_id", fileID),
		slog.String("storage_key", record.StorageKey),
		slog.Bool("object_removed", result.ObjectRemoved),
	)
	return result, nil
}

// validateCommit проверяет параметры фиксации. Политика размера
// перепроверяется: фактический размер сообщает клиент, и он мог
// загрузить не то, под что выдавался URL.
func (s *UploadService) validateCommit(p CommitParams) error {
	if p.StorageKey == "" {
		return fmt.Errorf("%w: ключ хранилища не задан", ErrValidation)
	}
	if p.Filename == "" {
		return fmt.Errorf("%w: имя файла не задано", ErrValidation)
	}
	if p.Size <= 0 {
		return fmt.Errorf("%w: размер файла должен быть положительным", ErrValidation)
	}
	if p.Size > s.maxFileSize {
		return fmt.Errorf("%w: размер файла %d превышает максимум %d байт",
			ErrValidation, p.Size, s.maxFileSize)
	}
	if p.UploadedBy == "" {
		return fmt.Errorf("%w: не указан загрузивший пользователь", ErrValidation)
	}
	return validateLabels(p.Labels)
}

// validateLabels проверяет длину классификационных меток.
func validateLabels(labels model.Labels) error {
	for name, val := range map[string]*string{
		"product":    labels.Product,
		"version":    labels.Version,
		"language":   labels.Language,
		"confluence": labels.Confluence,
	} {
		if val != nil && len(*val) > model.MaxLabelLength {
			return fmt.Errorf("%w: метка %s длиннее %d символов",
				ErrValidation, name, model.MaxLabelLength)
		}
	}
	return nil
}

// buildStorageKey генерирует уникальный ключ объекта:
// <unix-миллисекунды>-<8 hex случайных>-<очищенное имя файла>.
// Временная метка даёт хронологический порядок при листинге бакета,
// случайный суффикс исключает коллизии одновременных загрузок.
func buildStorageKey(filename string) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("ошибка генерации случайного суффикса: %w", err)
	}
	return fmt.Sprintf("%d-%s-%s",
		time.Now().UnixMilli(), hex.EncodeToString(buf), sanitizeFilename(filename)), nil
}

// sanitizeFilename приводит имя файла к безопасному для ключа виду:
// всё, кроме латинских букв, цифр, точки и дефиса, заменяется на '_'.
// Информация теряется необратимо — отображаемое имя хранится отдельно
// в метаданных, ключ обратно в имя не преобразуется.
func sanitizeFilename(filename string) string {
	var b strings.Builder
	b.Grow(len(filename))
	for _, r := range filename {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
