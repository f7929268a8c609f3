// files.go — сервис реестра файлов: списки, метки, назначения.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/gofilegate/internal/domain/model"
	"github.com/bigkaa/gofilegate/internal/repository"
)

// FileService — операции над реестром файлов вне цикла загрузки.
type FileService struct {
	files       repository.FileRepository
	assignments repository.AssignmentRepository
	users       repository.UserRepository
	cache       *CacheService
	logger      *slog.Logger
}

// NewFileService создаёт сервис реестра файлов.
func NewFileService(
	files repository.FileRepository,
	assignments repository.AssignmentRepository,
	users repository.UserRepository,
	cache *CacheService,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		files:       files,
		assignments: assignments,
		users:       users,
		cache:       cache,
		logger:      logger.With(slog.String("component", "file-service")),
	}
}

// ListVisible возвращает файлы, видимые пользователю: администратору —
// все, остальным — только назначенные.
func (s *FileService) ListVisible(ctx context.Context, userID string, isAdmin bool) ([]*model.FileRecord, error) {
	records, err := s.files.ListVisibleTo(ctx, userID, isAdmin)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	return records, nil
}

// UpdateLabels обновляет классификационные метки файла.
func (s *FileService) UpdateLabels(ctx context.Context, fileID string, labels model.Labels) error {
	if err := validateLabels(labels); err != nil {
		return err
	}

	if err := s.files.UpdateLabels(ctx, fileID, labels); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления меток: %w", err)
	}
	s.cache.Delete(fileID)

	s.logger.Info("метки файла обновлены", slog.String("file_id", fileID))
	return nil
}

// ReplaceAssignmentsForFile атомарно заменяет полный набор получателей
// файла. Пустой набор снимает все назначения.
func (s *FileService) ReplaceAssignmentsForFile(ctx context.Context, fileID string, userIDs []string) error {
	if _, err := s.files.GetByID(ctx, fileID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка получения файла: %w", err)
	}

	if err := s.assignments.ReplaceForFile(ctx, fileID, userIDs); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: получатель не существует", ErrNotFound)
		}
		return fmt.Errorf("ошибка замены назначений файла: %w", err)
	}

	s.logger.Info("назначения файла заменены",
		slog.String("file_id", fileID),
		slog.Int("users", len(userIDs)),
	)
	return nil
}

// ReplaceAssignmentsForUser атомарно заменяет полный набор файлов
// пользователя.
func (s *FileService) ReplaceAssignmentsForUser(ctx context.Context, userID string, fileIDs []string) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	if err := s.assignments.ReplaceForUser(ctx, userID, fileIDs); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: файл не существует", ErrNotFound)
		}
		return fmt.Errorf("ошибка замены назначений пользователя: %w", err)
	}

	s.logger.Info("назначения пользователя заменены",
		slog.String("user_id", userID),
		slog.Int("files", len(fileIDs)),
	)
	return nil
}
