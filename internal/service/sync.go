package service

import (
	"MindVault/internal/events"
	"MindVault/internal/storage"
	"MindVault/internal/storage/sqlite"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SyncState — фазы конечного автомата синхронизации.
type SyncState string

const (
	SyncIdle    SyncState = "idle"
	SyncSyncing SyncState = "syncing"
	SyncSuccess SyncState = "success"
	SyncFailure SyncState = "error"
)

// SyncReport — отчёт одного прогона синхронизации.
type SyncReport struct {
	State       SyncState     `json:"state"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
	Errors      []string      `json:"errors"`
}

// SyncConfig — настройки бэкапов и расписания.
type SyncConfig struct {
	BackupDir           string
	BackupRetentionDays int
	BackupIntervalHours int
}

// SyncService — бэкапы, restore, импорт/экспорт и проверка целостности.
// Бизнес-семантику документов он не меняет: только копирует строки и файлы.
type SyncService struct {
	db       *sqlite.DB
	cfg      SyncConfig
	logger   *zap.SugaredLogger
	notifier events.Notifier

	mu      sync.Mutex
	state   SyncState
	lastRun *SyncReport

	timerMu   sync.Mutex
	timerStop chan struct{}
	timerWG   sync.WaitGroup
}

// NewSyncService создаёт менеджер синхронизации.
func NewSyncService(db *sqlite.DB, cfg SyncConfig, logger *zap.SugaredLogger, notifier events.Notifier) *SyncService {
	if notifier == nil {
		notifier = events.Nop{}
	}
	return &SyncService{
		db:       db,
		cfg:      cfg,
		logger:   logger.With("component", "sync"),
		notifier: notifier,
		state:    SyncIdle,
	}
}

// State — текущее состояние автомата синхронизации.
func (s *SyncService) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastReport — отчёт последнего прогона (nil, если прогонов не было).
func (s *SyncService) LastReport() *SyncReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// Sync выполняет один прогон: SYNCING → SUCCESS | ERROR.
// Полезная нагрузка ядра минимальна (checkpoint + проверка целостности);
// конкретный протокол обмена добавляется развёртыванием. Ядро гарантирует
// контракт переходов, тайминги и список ошибок.
func (s *SyncService) Sync(ctx context.Context) (*SyncReport, error) {
	s.mu.Lock()
	if s.state == SyncSyncing {
		s.mu.Unlock()
		return nil, &storage.SyncError{Op: "sync", Err: fmt.Errorf("sync already in progress")}
	}
	s.state = SyncSyncing
	s.mu.Unlock()

	started := time.Now().UTC()
	s.notifier.Notify(ctx, events.Event{Name: events.SyncStarted})
	report := &SyncReport{State: SyncSyncing, StartedAt: started, Errors: []string{}}

	if err := s.db.Checkpoint(ctx); err != nil {
		report.Errors = append(report.Errors, err.Error())
	}
	if integrity, err := s.CheckDataIntegrity(ctx); err != nil {
		report.Errors = append(report.Errors, err.Error())
	} else if !integrity.IsValid {
		report.Errors = append(report.Errors, integrity.Issues...)
	}

	report.CompletedAt = time.Now().UTC()
	report.Duration = report.CompletedAt.Sub(report.StartedAt)
	if len(report.Errors) > 0 {
		report.State = SyncFailure
	} else {
		report.State = SyncSuccess
	}

	s.mu.Lock()
	s.state = report.State
	s.lastRun = report
	s.mu.Unlock()

	if report.State == SyncFailure {
		s.logger.Warnw("sync finished with errors", "errors", report.Errors, "duration", report.Duration)
		s.notifier.Notify(ctx, events.Event{Name: events.SyncFailed, Payload: report})
	} else {
		s.logger.Infow("sync completed", "duration", report.Duration)
		s.notifier.Notify(ctx, events.Event{Name: events.SyncCompleted, Payload: report})
	}
	return report, nil
}

// CreateBackup копирует файл БД в каталог бэкапов под временной меткой
// и возвращает путь к копии.
func (s *SyncService) CreateBackup(ctx context.Context) (string, error) {
	return s.backupTo(ctx, fmt.Sprintf("backup-%s.db", time.Now().UTC().Format("20060102-150405.000")))
}

func (s *SyncService) backupTo(ctx context.Context, name string) (string, error) {
	if s.cfg.BackupDir == "" {
		return "", &storage.SyncError{Op: "backup", Err: fmt.Errorf("backup directory is not configured")}
	}
	if err := os.MkdirAll(s.cfg.BackupDir, 0o700); err != nil {
		return "", &storage.SyncError{Op: "backup", Err: err}
	}
	// WAL сбрасывается, чтобы копия файла была самодостаточной
	if err := s.db.Checkpoint(ctx); err != nil {
		return "", &storage.SyncError{Op: "backup", Err: err}
	}
	dst := filepath.Join(s.cfg.BackupDir, name)
	if err := copyFile(s.db.Path(), dst); err != nil {
		return "", &storage.SyncError{Op: "backup", Err: err}
	}
	s.logger.Infow("backup created", "path", dst)
	s.notifier.Notify(ctx, events.Event{Name: events.BackupCreated, Payload: dst})
	return dst, nil
}

// RestoreBackup восстанавливает БД из бэкапа. Текущая БД сперва копируется
// в pre-restore-бэкап, так что restore сам по себе обратим.
func (s *SyncService) RestoreBackup(ctx context.Context, backupPath string) error {
	if _, err := os.Stat(backupPath); err != nil {
		return &storage.SyncError{Op: "restore", Err: err}
	}
	if _, err := s.backupTo(ctx, fmt.Sprintf("pre-restore-%s.db", time.Now().UTC().Format("20060102-150405.000"))); err != nil {
		return err
	}
	if err := copyFile(backupPath, s.db.Path()); err != nil {
		return &storage.SyncError{Op: "restore", Err: err}
	}
	s.logger.Infow("backup restored", "path", backupPath)
	s.notifier.Notify(ctx, events.Event{Name: events.BackupRestored, Payload: backupPath})
	return nil
}

// CleanupOldBackups удаляет бэкапы старше retention. Ошибки удаления
// отдельных файлов логируются, но операцию не валят (best-effort).
func (s *SyncService) CleanupOldBackups(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.cfg.BackupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, &storage.SyncError{Op: "cleanup", Err: err}
	}
	cutoff := time.Now().AddDate(0, 0, -s.cfg.BackupRetentionDays)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".db") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			s.logger.Warnw("cannot stat backup", "name", e.Name(), "error", err)
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.cfg.BackupDir, e.Name())); err != nil {
				s.logger.Warnw("cannot remove old backup", "name", e.Name(), "error", err)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		s.logger.Infow("old backups removed", "count", removed)
	}
	return removed, nil
}

// StartAutoBackup запускает периодический бэкап (интервал в часах из конфига).
// Повторный запуск — no-op; одновременно живёт ровно один таймер,
// и прогоны не накладываются друг на друга.
func (s *SyncService) StartAutoBackup() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.timerStop != nil || s.cfg.BackupIntervalHours <= 0 {
		return
	}
	stop := make(chan struct{})
	s.timerStop = stop
	s.timerWG.Add(1)
	go func() {
		defer s.timerWG.Done()
		ticker := time.NewTicker(time.Duration(s.cfg.BackupIntervalHours) * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx := context.Background()
				if _, err := s.CreateBackup(ctx); err != nil {
					s.logger.Errorw("scheduled backup failed", "error", err)
					continue
				}
				if _, err := s.CleanupOldBackups(ctx); err != nil {
					// создание прошло, чистка best-effort
					s.logger.Warnw("backup cleanup failed", "error", err)
				}
			}
		}
	}()
	s.logger.Infow("auto backup started", "interval_hours", s.cfg.BackupIntervalHours)
}

// StopAutoBackup синхронно останавливает таймер: после возврата ни один
// прогон уже не начнётся. Повторная остановка — no-op.
func (s *SyncService) StopAutoBackup() {
	s.timerMu.Lock()
	if s.timerStop == nil {
		s.timerMu.Unlock()
		return
	}
	close(s.timerStop)
	s.timerStop = nil
	s.timerMu.Unlock()
	s.timerWG.Wait()
	s.logger.Infow("auto backup stopped")
}

// copyFile — побайтовая копия файла с fsync.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
