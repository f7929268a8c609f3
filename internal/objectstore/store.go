// Пакет objectstore — типизированная обёртка над S3-совместимым
// хранилищем (minio-go). Серверные операции: проверка существования,
// перечисление, прямые put/get/delete. Клиентские операции идут мимо
// сервера через presigned URL (см. signer.go).
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bigkaa/gofilegate/internal/config"
)

// ObjectEntry — элемент перечисления объектов.
type ObjectEntry struct {
	// Key — ключ объекта
	Key string
	// Size — размер в байтах
	Size int64
	// LastModified — время последнего изменения
	LastModified time.Time
}

// Store — адаптер объектного хранилища для одного бакета.
type Store struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// New создаёт адаптер хранилища из конфигурации.
// Само подключение ленивое: ошибки доступности всплывают при первой
// операции (или при TestConnectivity, если вызвать её при старте).
func New(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
		return nil, fmt.Errorf("%w: access key или secret key не заданы", ErrInvalidCredentials)
	}

	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания клиента хранилища: %w", err)
	}

	return &Store{
		client: client,
		bucket: cfg.S3Bucket,
		logger: logger.With(slog.String("component", "objectstore")),
	}, nil
}

// NewWithClient создаёт адаптер с готовым minio-клиентом.
// Используется в тестах.
func NewWithClient(client *minio.Client, bucket string, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		logger: logger.With(slog.String("component", "objectstore")),
	}
}

// Bucket возвращает имя бакета адаптера.
func (s *Store) Bucket() string {
	return s.bucket
}

// Exists проверяет существование объекта по ключу.
// Подтверждённое отсутствие — (false, nil). Любая другая ошибка
// пробрасывается: "не найден" и "не удалось определить" — это разные
// ответы, и координатор фиксации обязан их различать.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}

	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		classified := classify(err)
		if errors.Is(classified, ErrNotFound) {
			return false, nil
		}
		return false, classified
	}
	return true, nil
}

// Put записывает объект серверной стороной (вне основного клиентского
// пути загрузки через presigned URL).
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return ErrEmptyKey
	}

	_, err := s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return classify(err)
	}
	return nil
}

// Get читает объект серверной стороной.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classify(err)
	}
	return data, nil
}

// Delete удаляет объект.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return classify(err)
	}
	return nil
}

// List перечисляет объекты с указанным префиксом, вызывая fn для каждого.
// Пагинация скрыта в клиенте; повторный вызов сканирует заново.
// Ошибка fn прерывает перечисление и возвращается вызывающему.
func (s *Store) List(ctx context.Context, prefix string, fn func(ObjectEntry) error) error {
	// Отдельный контекст: ранний выход освобождает горутину перечисления
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for info := range s.client.ListObjects(listCtx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return classify(info.Err)
		}
		if err := fn(ObjectEntry{
			Key:          info.Key,
			Size:         info.Size,
			LastModified: info.LastModified,
		}); err != nil {
			return err
		}
	}
	return nil
}

// TestConnectivity выполняет минимальный read-only запрос к хранилищу.
// Используется как pre-flight: ошибки конфигурации (учётные данные,
// переименованный бакет) всплывают здесь с внятной категорией, а не
// где-то в глубине протокола загрузки.
func (s *Store) TestConnectivity(ctx context.Context) error {
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := s.client.ListObjects(listCtx, s.bucket, minio.ListObjectsOptions{
		MaxKeys: 1,
	})
	info, ok := <-ch
	if ok && info.Err != nil {
		return classify(info.Err)
	}
	return nil
}

// CheckReady — проверка готовности хранилища для health endpoint.
// Реализует интерфейс handlers.ReadinessChecker.
func (s *Store) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := s.TestConnectivity(ctx); err != nil {
		return "fail", fmt.Sprintf("объектное хранилище недоступно: %v", err)
	}
	return "ok", "хранилище доступно"
}
