// access.go — резолвер доступа на скачивание: запись файла, проверка
// права, выдача download capability.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gofilegate/internal/domain/model"
	"github.com/bigkaa/gofilegate/internal/repository"
)

var downloadURLsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fg_download_urls_total",
	Help: "Общее количество запросов download capability.",
}, []string{"status"})

// DownloadGrant — выданное право на скачивание.
type DownloadGrant struct {
	URL         *url.URL
	Filename    string
	Size        int64
	ContentType string
	ExpiresIn   time.Duration
}

// AccessService — резолвер доступа к файлам.
type AccessService struct {
	files       repository.FileRepository
	assignments repository.AssignmentRepository
	signer      CapabilityIssuer
	cache       *CacheService
	logger      *slog.Logger
}

// NewAccessService создаёт резолвер доступа.
func NewAccessService(
	files repository.FileRepository,
	assignments repository.AssignmentRepository,
	signer CapabilityIssuer,
	cache *CacheService,
	logger *slog.Logger,
) *AccessService {
	return &AccessService{
		files:       files,
		assignments: assignments,
		signer:      signer,
		cache:       cache,
		logger:      logger.With(slog.String("component", "access-service")),
	}
}

// ResolveDownload проверяет право пользователя на файл и выдаёт
// download capability. Право: администратор ИЛИ явное назначение.
// Проверка назначения о ролях не знает — override делается здесь.
func (s *AccessService) ResolveDownload(ctx context.Context, userID string, isAdmin bool, fileID string) (*DownloadGrant, error) {
	record, err := s.getFile(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			downloadURLsTotal.WithLabelValues("not_found").Inc()
			return nil, ErrNotFound
		}
		downloadURLsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}

	if record.StorageKey == "" {
		// Аномалия целостности: запись есть, ключа нет. Фиксация такое
		// не создаёт — значит, данные повреждены извне.
		downloadURLsTotal.WithLabelValues("integrity_error").Inc()
		s.logger.Error("у записи файла отсутствует ключ хранилища",
			slog.String("file_id", record.FileID),
			slog.String("filename", record.Filename),
		)
		return nil, ErrMissingStorageKey
	}

	allowed := isAdmin
	if !allowed {
		allowed, err = s.assignments.HasAccess(ctx, userID, fileID)
		if err != nil {
			downloadURLsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("ошибка проверки доступа: %w", err)
		}
	}
	if !allowed {
		downloadURLsTotal.WithLabelValues("denied").Inc()
		s.logger.Debug("доступ к файлу запрещён",
			slog.String("user_id", userID),
			slog.String("file_id", fileID),
		)
		return nil, ErrAccessDenied
	}

	u, err := s.signer.PresignDownload(ctx, record.StorageKey, record.Filename)
	if err != nil {
		downloadURLsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: выдача download URL не удалась: %v", ErrStoreUnavailable, err)
	}

	downloadURLsTotal.WithLabelValues("issued").Inc()
	s.logger.Debug("выдан download URL",
		slog.String("user_id", userID),
		slog.String("file_id", fileID),
	)
	return &DownloadGrant{
		URL:         u,
		Filename:    record.Filename,
		Size:        record.Size,
		ContentType: record.ContentType,
		ExpiresIn:   s.signer.DownloadTTL(),
	}, nil
}

// getFile возвращает запись файла из кэша или репозитория.
func (s *AccessService) getFile(ctx context.Context, fileID string) (*model.FileRecord, error) {
	if record, ok := s.cache.Get(fileID); ok {
		return record, nil
	}
	record, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(fileID, record)
	return record, nil
}
