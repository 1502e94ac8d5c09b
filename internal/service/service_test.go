package service

import (
	"MindVault/internal/model"
	"MindVault/internal/storage/sqlite"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }

// newTestDB — чистая БД во временном каталоге с прогнанными миграциями.
func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "vault.db"), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func newDocService(t *testing.T) (*DocumentService, *sqlite.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewDocumentService(db, zap.NewNop().Sugar(), nil), db
}

func newBlockService(t *testing.T) (*BlockService, *DocumentService, *sqlite.DB) {
	t.Helper()
	db := newTestDB(t)
	logger := zap.NewNop().Sugar()
	return NewBlockService(db, logger, nil), NewDocumentService(db, logger, nil), db
}

func newVersionService(t *testing.T) (*VersionService, *sqlite.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewVersionService(db, zap.NewNop().Sugar(), nil), db
}

// mustCreateDoc — документ с разумными дефолтами для тестов.
func mustCreateDoc(t *testing.T, s *DocumentService, title, path string, parentID *string) *model.Document {
	t.Helper()
	doc, err := s.CreateDocument(context.Background(), model.CreateDocumentInput{
		Title:     title,
		Content:   json.RawMessage(`{"type":"doc"}`),
		Path:      path,
		ParentID:  parentID,
		CreatedBy: "u0",
	})
	if err != nil {
		t.Fatalf("CreateDocument(%s): %v", title, err)
	}
	return doc
}

func mustCreateBlock(t *testing.T, s *BlockService, docID string, parentID *string, typ model.BlockType) *model.Block {
	t.Helper()
	b, err := s.CreateBlock(context.Background(), model.CreateBlockInput{
		DocumentID: docID,
		ParentID:   parentID,
		Type:       typ,
		Content:    json.RawMessage(`{"text":"x"}`),
		CreatedBy:  "u0",
	})
	if err != nil {
		t.Fatalf("CreateBlock: %v", err)
	}
	return b
}

func strPtr(s string) *string { return &s }
