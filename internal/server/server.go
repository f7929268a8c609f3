// Пакет server — HTTP-сервер Filegate с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на ingress.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/gofilegate/internal/api/handlers"
	"github.com/bigkaa/gofilegate/internal/api/middleware"
	"github.com/bigkaa/gofilegate/internal/config"
)

// Таймауты HTTP-сервера. WriteTimeout с запасом: ответы Filegate
// короткие (JSON с presigned URL), байты файлов через сервер не идут.
const (
	httpReadTimeout  = 10 * time.Second
	httpWriteTimeout = 30 * time.Second
	httpIdleTimeout  = 120 * time.Second
)

// Server — HTTP-сервер Filegate.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// authMW — JWT-аутентификация; extraAuthMW — middleware, применяемые
// после аутентификации ко всем защищённым маршрутам (провизия
// пользователей и т.п.).
func New(
	cfg *config.Config,
	logger *slog.Logger,
	handler *handlers.APIHandler,
	authMW func(http.Handler) http.Handler,
	extraAuthMW ...func(http.Handler) http.Handler,
) *Server {
	router := chi.NewRouter()

	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Служебные endpoints без аутентификации
	router.Get("/health/live", handler.HealthLive)
	router.Get("/health/ready", handler.HealthReady)
	router.Get("/metrics", handler.GetMetrics)

	// API под JWT-аутентификацией
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(authMW)
		for _, mw := range extraAuthMW {
			r.Use(mw)
		}

		// Доступно любому аутентифицированному пользователю
		r.Get("/files", handler.ListFiles)
		r.Get("/files/{fileID}/download-url", handler.GetDownloadURL)

		// Только для администраторов
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin())

			r.Post("/files/upload-url", handler.RequestUploadURL)
			r.Post("/files", handler.CommitUpload)
			r.Patch("/files/{fileID}", handler.UpdateFileLabels)
			r.Delete("/files/{fileID}", handler.DeleteFile)
			r.Put("/files/{fileID}/assignments", handler.ReplaceFileAssignments)
			r.Put("/users/{userID}/assignments", handler.ReplaceUserAssignments)
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: httpWriteTimeout,
		IdleTimeout:  httpIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
