package main

import (
	"MindVault/internal/config"
	"MindVault/internal/events"
	"MindVault/internal/handlers"
	"MindVault/internal/middleware"
	"MindVault/internal/service"
	"MindVault/internal/storage/sqlite"
	"context"
	"net/http"

	"go.uber.org/zap"
)

func main() {
	cfg := config.NewConfig()

	// создаём предустановленный регистратор zap
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}

	// делаем регистратор SugaredLogger
	sugar := logger.Sugar()
	middleware.SetLogger(sugar) // передаём логгер в middleware
	//сброс буфера логгера
	defer func() {
		if err := logger.Sync(); err != nil {
			sugar.Errorw("Failed to sync logger", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = ctx

	db, err := sqlite.Open(cfg.DatabasePath, sugar)
	if err != nil {
		sugar.Fatalw("failed to open database", "error", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			sugar.Errorw("Failed to close database", "error", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		sugar.Fatalw("failed to run migrations", "error", err)
	}

	notifier := events.Nop{}
	docService := service.NewDocumentService(db, sugar, notifier)
	blockService := service.NewBlockService(db, sugar, notifier)
	versionService := service.NewVersionService(db, sugar, notifier)
	syncService := service.NewSyncService(db, service.SyncConfig{
		BackupDir:           cfg.BackupDir,
		BackupRetentionDays: cfg.BackupRetentionDays,
		BackupIntervalHours: cfg.BackupIntervalHours,
	}, sugar, notifier)

	syncService.StartAutoBackup()
	defer syncService.StopAutoBackup()

	h := handlers.NewHandler(db, docService, blockService, versionService, syncService, sugar, cfg)

	addr := cfg.BaseURL

	sugar.Infow(
		"Starting server",
		"addr", addr,
	)

	sugar.Infow("Config",
		"BaseURL", cfg.BaseURL,
		"EnableHTTPS", cfg.EnableHTTPS,
		"DatabasePath", cfg.DatabasePath,
		"BackupDir", cfg.BackupDir,
	)

	if err := http.ListenAndServe(addr, h.Router); err != nil {
		sugar.Fatalw("Server failed", "error", err)
	}
}
