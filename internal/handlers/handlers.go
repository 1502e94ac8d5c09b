package handlers

import (
	"MindVault/internal/config"
	"MindVault/internal/middleware"
	"MindVault/internal/service"
	"MindVault/internal/storage/sqlite"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler — разводящий для всех хендлеров движка.
type Handler struct {
	Router chi.Router
}

// NewHandler собирает роутер и цепочку мидлварей.
func NewHandler(
	db *sqlite.DB,
	docService *service.DocumentService,
	blockService *service.BlockService,
	versionService *service.VersionService,
	syncService *service.SyncService,
	logger *zap.SugaredLogger,
	cfg *config.Config,
) *Handler {
	r := chi.NewRouter()

	r.Use(middleware.WithGzip)
	r.Use(middleware.WithLogging)
	r.Use(middleware.WithAuth(cfg.AuthSecret))

	docHandler := NewDocumentHandler(docService, versionService, logger)
	blockHandler := NewBlockHandler(blockService, logger)
	versionHandler := NewVersionHandler(versionService, logger)
	syncHandler := NewSyncHandler(syncService, db, logger)

	// Documents
	r.Route("/api/documents", func(r chi.Router) {
		r.Post("/", docHandler.Create)
		r.Get("/", docHandler.Query)
		r.Get("/search", docHandler.Search)
		r.Get("/tags", docHandler.Tags)
		r.Get("/roots", docHandler.Roots)
		r.Get("/by-tag/{tag}", docHandler.ByTag)
		r.Get("/{id}", docHandler.Get)
		r.Put("/{id}", docHandler.Update)
		r.Delete("/{id}", docHandler.Delete)
		r.Post("/{id}/move", docHandler.Move)
		r.Post("/{id}/duplicate", docHandler.Duplicate)
		r.Get("/{id}/children", docHandler.Children)
		r.Get("/{id}/path", docHandler.Path)
		r.Get("/{id}/access", docHandler.Access)
		r.Post("/{id}/share", docHandler.Share)
		r.Post("/{id}/unshare", docHandler.Unshare)
		r.Get("/{id}/blocks", blockHandler.ByDocument)
	})

	// Blocks
	r.Route("/api/blocks", func(r chi.Router) {
		r.Post("/", blockHandler.Create)
		r.Get("/{id}", blockHandler.Get)
		r.Put("/{id}", blockHandler.Update)
		r.Delete("/{id}", blockHandler.Delete)
		r.Post("/{id}/move", blockHandler.Move)
		r.Get("/{id}/children", blockHandler.Children)
	})

	// Versions
	r.Route("/api/versions", func(r chi.Router) {
		r.Post("/", versionHandler.Create)
		r.Post("/cleanup", versionHandler.Cleanup)
		r.Get("/{entityType}/{entityID}", versionHandler.History)
		r.Get("/{entityType}/{entityID}/latest", versionHandler.Latest)
		r.Get("/{entityType}/{entityID}/compare", versionHandler.Compare)
		r.Post("/{entityType}/{entityID}/rollback", versionHandler.Rollback)
	})

	// Sync / maintenance
	r.Route("/api/sync", func(r chi.Router) {
		r.Post("/", syncHandler.Sync)
		r.Post("/backup", syncHandler.Backup)
		r.Post("/restore", syncHandler.Restore)
		r.Post("/export", syncHandler.Export)
		r.Post("/import", syncHandler.Import)
		r.Get("/integrity", syncHandler.Integrity)
	})
	r.Get("/api/health", syncHandler.Health)
	r.Get("/api/stats", syncHandler.Stats)

	return &Handler{Router: r}
}
