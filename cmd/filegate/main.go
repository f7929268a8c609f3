// Точка входа Filegate — портал раздачи файлов.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL
// и объектному хранилищу, создаёт сервисный слой и API handlers,
// запускает фоновые задачи (сверка, topologymetrics),
// HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/gofilegate/internal/api/handlers"
	"github.com/bigkaa/gofilegate/internal/api/middleware"
	"github.com/bigkaa/gofilegate/internal/config"
	"github.com/bigkaa/gofilegate/internal/database"
	"github.com/bigkaa/gofilegate/internal/objectstore"
	"github.com/bigkaa/gofilegate/internal/repository"
	"github.com/bigkaa/gofilegate/internal/server"
	"github.com/bigkaa/gofilegate/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Filegate запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("FG_DEPHEALTH_GROUP") == "" {
		logger.Warn("FG_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Объектное хранилище
	store, err := objectstore.New(cfg, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Pre-flight: ошибки конфигурации хранилища (учётные данные, бакет)
	// должны всплыть при старте, а не в глубине протокола загрузки
	if err := store.TestConnectivity(ctx); err != nil {
		logger.Error("Объектное хранилище недоступно",
			slog.String("endpoint", cfg.S3Endpoint),
			slog.String("bucket", cfg.S3Bucket),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	logger.Info("Объектное хранилище доступно",
		slog.String("endpoint", cfg.S3Endpoint),
		slog.String("bucket", cfg.S3Bucket),
	)

	signer := objectstore.NewSigner(store, cfg)

	// 6. Repositories
	fileRepo := repository.NewFileRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	// 7. Services
	cache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	uploadSvc := service.NewUploadService(
		fileRepo, assignmentRepo, store, signer, cache,
		cfg.MaxFileSize, logger,
	)
	accessSvc := service.NewAccessService(
		fileRepo, assignmentRepo, signer, cache, logger,
	)
	fileSvc := service.NewFileService(
		fileRepo, assignmentRepo, userRepo, cache, logger,
	)

	// 8. Фоновая сверка реестра с хранилищем
	var reconcileSvc *service.ReconcileService
	if cfg.ReconcileInterval > 0 {
		reconcileSvc = service.NewReconcileService(
			fileRepo, store, cfg.ReconcileInterval, logger,
		)
		reconcileSvc.Start(ctx)
	} else {
		logger.Warn("Сверка отключена (FG_RECONCILE_INTERVAL=0)")
	}

	// 9. topologymetrics — мониторинг зависимостей
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"filegate",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.S3EndpointURL(),
		cfg.JWTJWKSURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 10. Readiness checkers (PostgreSQL + хранилище + Keycloak)
	pgChecker := database.NewReadinessChecker(pool)
	kcChecker, err := middleware.NewKeycloakReadinessChecker(cfg.JWTJWKSURL, cfg.CACertPath, 5*time.Second)
	if err != nil {
		logger.Error("Ошибка создания Keycloak readiness checker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	healthHandler := handlers.NewHealthHandler(pgChecker, store, kcChecker)

	// 11. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		uploadSvc,
		accessSvc,
		fileSvc,
		logger,
	)

	// 12. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.CACertPath,
		cfg.JWTIssuer,
		cfg.RoleAdminGroups,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer jwtAuth.Close()
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 13. Создание и запуск HTTP-сервера.
	// Провизия пользователей идёт после аутентификации: без строки в users
	// администратор не попадёт в автоназначение файлов.
	srv := server.New(cfg, logger, apiHandler,
		jwtAuth.Middleware(),
		middleware.UserProvisioner(userRepo, logger),
	)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 14. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	if reconcileSvc != nil {
		reconcileSvc.Stop()
	}
	if dephealthErr == nil {
		dephealthSvc.Stop()
	}

	logger.Info("Filegate остановлен")
}
