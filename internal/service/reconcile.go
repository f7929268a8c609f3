// reconcile.go — сервис фоновой сверки реестра с объектным хранилищем.
//
// Сверка сравнивает ключи из таблицы files с фактическими объектами
// в бакете и обнаруживает два типа расхождений:
//   - missing_object: запись в реестре есть, объекта в хранилище нет
//     (скачивание такого файла обречено)
//   - orphaned_object: объект в хранилище без записи в реестре
//     (невидимые байты, остаток неудачного удаления или незафиксированной
//     загрузки)
//
// Сверка только диагностирует и считает метрики, ничего не удаляя:
// orphaned_object может быть загрузкой, фиксация которой ещё в пути.
//
// Запускается как горутина с периодическим тикером (FG_RECONCILE_INTERVAL).
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gofilegate/internal/objectstore"
	"github.com/bigkaa/gofilegate/internal/repository"
)

// Prometheus метрики сверки
var (
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fg_reconcile_runs_total",
		Help: "Общее количество запусков сверки",
	})

	reconcileIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fg_reconcile_issues_total",
		Help: "Общее количество расхождений, обнаруженных сверкой",
	}, []string{"type"})

	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fg_reconcile_duration_seconds",
		Help:    "Длительность выполнения сверки в секундах",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})
)

// ReconcileIssue — одно расхождение реестра и хранилища.
type ReconcileIssue struct {
	// Type — тип расхождения: missing_object или orphaned_object.
	Type string `json:"type"`
	// StorageKey — ключ объекта, к которому относится расхождение.
	StorageKey string `json:"storage_key"`
	// Description — описание проблемы.
	Description string `json:"description"`
}

// ReconcileResult — результат одного цикла сверки.
type ReconcileResult struct {
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
	KeysChecked int              `json:"keys_checked"`
	Issues      []ReconcileIssue `json:"issues"`
}

// ReconcileService — сервис фоновой сверки реестра с хранилищем.
type ReconcileService struct {
	files    repository.FileRepository
	store    ObjectStore
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex // защита от параллельного запуска
	inProcess bool       // сверка в процессе выполнения
	cancel    context.CancelFunc
}

// NewReconcileService создаёт сервис сверки.
func NewReconcileService(
	files repository.FileRepository,
	store ObjectStore,
	interval time.Duration,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		files:    files,
		store:    store,
		interval: interval,
		logger:   logger.With(slog.String("component", "reconcile")),
	}
}

// Start запускает фоновую горутину сверки с периодическим тикером.
func (rs *ReconcileService) Start(ctx context.Context) {
	rsCtx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel

	go rs.run(rsCtx)

	rs.logger.Info("Сверка запущена",
		slog.String("interval", rs.interval.String()),
	)
}

// Stop останавливает фоновой процесс сверки.
func (rs *ReconcileService) Stop() {
	if rs.cancel != nil {
		rs.cancel()
	}
	rs.logger.Info("Сверка остановлена")
}

// IsInProgress возвращает true, если сверка выполняется.
func (rs *ReconcileService) IsInProgress() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.inProcess
}

// run — основной цикл фоновой горутины.
func (rs *ReconcileService) run(ctx context.Context) {
	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := rs.RunOnce(ctx); err != nil {
				rs.logger.Error("Ошибка выполнения сверки",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce выполняет один цикл сверки.
// Потокобезопасен: если сверка уже выполняется, возвращает nil, true, nil.
//
// Возвращает:
//   - *ReconcileResult — результат сверки
//   - bool — true если сверка уже выполнялась (skipped)
//   - error — ошибка чтения реестра или хранилища
func (rs *ReconcileService) RunOnce(ctx context.Context) (*ReconcileResult, bool, error) {
	rs.mu.Lock()
	if rs.inProcess {
		rs.mu.Unlock()
		rs.logger.Warn("Сверка уже выполняется, пропуск")
		return nil, true, nil
	}
	rs.inProcess = true
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.inProcess = false
		rs.mu.Unlock()
	}()

	startedAt := time.Now().UTC()
	rs.logger.Info("Сверка начата")

	issues, keysChecked, err := rs.reconcile(ctx)
	if err != nil {
		return nil, false, err
	}

	completedAt := time.Now().UTC()
	duration := completedAt.Sub(startedAt)

	reconcileRunsTotal.Inc()
	reconcileDurationSeconds.Observe(duration.Seconds())
	for _, issue := range issues {
		reconcileIssuesTotal.WithLabelValues(issue.Type).Inc()
	}

	rs.logger.Info("Сверка завершена",
		slog.Int("keys_checked", keysChecked),
		slog.Int("issues", len(issues)),
		slog.Duration("duration", duration),
	)

	return &ReconcileResult{
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		KeysChecked: keysChecked,
		Issues:      issues,
	}, false, nil
}

// reconcile выполняет двустороннюю сверку ключей реестра и объектов бакета.
func (rs *ReconcileService) reconcile(ctx context.Context) ([]ReconcileIssue, int, error) {
	keys, err := rs.files.ListStorageKeys(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка чтения ключей реестра: %w", err)
	}

	registered := make(map[string]bool, len(keys))
	for _, key := range keys {
		registered[key] = true
	}

	var issues []ReconcileIssue

	// 1. Объекты в бакете без записи в реестре (orphaned_object)
	inBucket := make(map[string]bool)
	err = rs.store.List(ctx, "", func(entry objectstore.ObjectEntry) error {
		inBucket[entry.Key] = true
		if !registered[entry.Key] {
			issues = append(issues, ReconcileIssue{
				Type:        "orphaned_object",
				StorageKey:  entry.Key,
				Description: "Объект в хранилище без записи в реестре",
			})
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка перечисления объектов хранилища: %w", err)
	}

	// 2. Записи реестра без объекта в бакете (missing_object)
	for _, key := range keys {
		if !inBucket[key] {
			issues = append(issues, ReconcileIssue{
				Type:        "missing_object",
				StorageKey:  key,
				Description: "Запись в реестре без объекта в хранилище",
			})
		}
	}

	return issues, len(keys), nil
}
