package service

import (
	"MindVault/internal/model"
	"MindVault/internal/storage"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestCreateDocument_Defaults(t *testing.T) {
	s, _ := newDocService(t)
	doc := mustCreateDoc(t, s, "Заметки", "/notes", nil)

	if doc.ID == "" {
		t.Fatal("id must be generated")
	}
	if doc.Status != model.StatusDraft {
		t.Fatalf("status expected draft, got %s", doc.Status)
	}
	if doc.SortOrder != 0 {
		t.Fatalf("first root document expected sort_order 0, got %d", doc.SortOrder)
	}
	if doc.Perms.IsPublic {
		t.Fatal("default permissions must be private")
	}
	if doc.Tags == nil || doc.Metadata == nil {
		t.Fatal("tags and metadata must never be nil")
	}
	if !doc.CreatedAt.Equal(doc.UpdatedAt) {
		t.Fatal("created_at and updated_at must match on create")
	}
}

func TestCreateDocument_Validation(t *testing.T) {
	s, _ := newDocService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   model.CreateDocumentInput
	}{
		{"empty title", model.CreateDocumentInput{Title: "  ", Content: json.RawMessage(`{}`), Path: "/a"}},
		{"empty content", model.CreateDocumentInput{Title: "a", Path: "/a"}},
		{"invalid json", model.CreateDocumentInput{Title: "a", Content: json.RawMessage(`{`), Path: "/a"}},
		{"path without slash", model.CreateDocumentInput{Title: "a", Content: json.RawMessage(`{}`), Path: "a"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.CreateDocument(ctx, tc.in)
			var verr *storage.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestCreateDocument_DuplicatePath(t *testing.T) {
	s, _ := newDocService(t)
	mustCreateDoc(t, s, "A", "/a", nil)
	_, err := s.CreateDocument(context.Background(), model.CreateDocumentInput{
		Title: "B", Content: json.RawMessage(`{}`), Path: "/a",
	})
	var verr *storage.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("duplicate path must fail with ValidationError, got %v", err)
	}
}

func TestCreateDocument_MissingParent(t *testing.T) {
	s, _ := newDocService(t)
	_, err := s.CreateDocument(context.Background(), model.CreateDocumentInput{
		Title: "a", Content: json.RawMessage(`{}`), Path: "/a", ParentID: strPtr("nope"),
	})
	var nf *storage.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestCreateDocument_SiblingSortOrder(t *testing.T) {
	s, _ := newDocService(t)
	a := mustCreateDoc(t, s, "A", "/a", nil)
	b := mustCreateDoc(t, s, "B", "/b", nil)
	c := mustCreateDoc(t, s, "C", "/c", nil)
	if a.SortOrder != 0 || b.SortOrder != 1 || c.SortOrder != 2 {
		t.Fatalf("siblings expected 0,1,2 got %d,%d,%d", a.SortOrder, b.SortOrder, c.SortOrder)
	}
}

func TestGetDocumentByID_MissingAndDeleted(t *testing.T) {
	s, _ := newDocService(t)
	ctx := context.Background()

	got, err := s.GetDocumentByID(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("missing document expected (nil, nil), got (%v, %v)", got, err)
	}

	doc := mustCreateDoc(t, s, "A", "/a", nil)
	if err := s.DeleteDocument(ctx, doc.ID, "u0"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	got, err = s.GetDocumentByID(ctx, doc.ID)
	if err != nil || got != nil {
		t.Fatalf("soft-deleted document expected (nil, nil), got (%v, %v)", got, err)
	}
}

func TestDeleteDocument_RowSurvives(t *testing.T) {
	s, db := newDocService(t)
	ctx := context.Background()
	doc := mustCreateDoc(t, s, "A", "/a", nil)
	if err := s.DeleteDocument(ctx, doc.ID, "u1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	var status string
	if err := db.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = ?`, doc.ID).Scan(&status); err != nil {
		t.Fatalf("row must still exist: %v", err)
	}
	if status != "deleted" {
		t.Fatalf("status expected deleted, got %s", status)
	}
	// повторное удаление — not found
	var nf *storage.NotFoundError
	if err := s.DeleteDocument(ctx, doc.ID, "u1"); !errors.As(err, &nf) {
		t.Fatalf("second delete expected NotFoundError, got %v", err)
	}
}

func TestUpdateDocument_PartialAndTimestamp(t *testing.T) {
	s, _ := newDocService(t)
	ctx := context.Background()
	doc := mustCreateDoc(t, s, "A", "/a", nil)

	title := "Переименован"
	upd, err := s.UpdateDocument(ctx, doc.ID, model.UpdateDocumentInput{Title: &title, UpdatedBy: "u1"})
	if err != nil {
		t.Fatalf("UpdateDocument: %v", err)
	}
	if upd.Title != title {
		t.Fatalf("title expected %q, got %q", title, upd.Title)
	}
	if string(upd.Content) != string(doc.Content) {
		t.Fatal("untouched content must survive partial update")
	}
	if !upd.UpdatedAt.After(doc.UpdatedAt) {
		t.Fatalf("updated_at must strictly grow: %v -> %v", doc.UpdatedAt, upd.UpdatedAt)
	}
	if upd.UpdatedBy != "u1" {
		t.Fatalf("updated_by expected u1, got %q", upd.UpdatedBy)
	}
}

func TestUpdateDocument_NoFields(t *testing.T) {
	s, _ := newDocService(t)
	doc := mustCreateDoc(t, s, "A", "/a", nil)
	_, err := s.UpdateDocument(context.Background(), doc.ID, model.UpdateDocumentInput{UpdatedBy: "u1"})
	var verr *storage.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("empty update expected ValidationError, got %v", err)
	}
}

func TestUpdateDocument_UnknownStatus(t *testing.T) {
	s, _ := newDocService(t)
	doc := mustCreateDoc(t, s, "A", "/a", nil)
	bad := model.DocumentStatus("limbo")
	_, err := s.UpdateDocument(context.Background(), doc.ID, model.UpdateDocumentInput{Status: &bad})
	var verr *storage.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("unknown status expected ValidationError, got %v", err)
	}
}

func TestQueryDocuments_Filters(t *testing.T) {
	s, _ := newDocService(t)
	ctx := context.Background()
	root := mustCreateDoc(t, s, "Root", "/root", nil)
	child := mustCreateDoc(t, s, "Child", "/root/child", &root.ID)
	published := model.StatusPublished
	if _, err := s.UpdateDocument(ctx, child.ID, model.UpdateDocumentInput{Status: &published}); err != nil {
		t.Fatalf("UpdateDocument: %v", err)
	}

	// фильтр по родителю
	docs, err := s.QueryDocuments(ctx, model.QueryDocumentsOptions{ParentID: &root.ID})
	if err != nil {
		t.Fatalf("QueryDocuments: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != child.ID {
		t.Fatalf("expected only child, got %d docs", len(docs))
	}

	// parent_id="" — только корневые
	empty := ""
	docs, err = s.QueryDocuments(ctx, model.QueryDocumentsOptions{ParentID: &empty})
	if err != nil {
		t.Fatalf("QueryDocuments roots: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != root.ID {
		t.Fatalf("expected only root, got %d docs", len(docs))
	}

	// фильтр по статусу
	docs, err = s.QueryDocuments(ctx, model.QueryDocumentsOptions{Status: &published})
	if err != nil {
		t.Fatalf("QueryDocuments status: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != child.ID {
		t.Fatalf("expected only published child, got %d docs", len(docs))
	}

	// запрос удалённых всегда пуст
	deleted := model.StatusDeleted
	docs, err = s.QueryDocuments(ctx, model.QueryDocumentsOptions{Status: &deleted})
	if err != nil {
		t.Fatalf("QueryDocuments deleted: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("deleted filter must return empty, got %d docs", len(docs))
	}
}

func TestQueryDocuments_SortAndPagination(t *testing.T) {
	s, _ := newDocService(t)
	ctx := context.Background()
	mustCreateDoc(t, s, "B", "/b", nil)
	mustCreateDoc(t, s, "A", "/a", nil)
	mustCreateDoc(t, s, "C", "/c", nil)

	docs, err := s.QueryDocuments(ctx, model.QueryDocumentsOptions{SortBy: "title"})
	if err != nil {
		t.Fatalf("QueryDocuments: %v", err)
	}
	if len(docs) != 3 || docs[0].Title != "A" || docs[2].Title != "C" {
		t.Fatalf("title ASC expected A..C, got %+v", titles(docs))
	}

	docs, err = s.QueryDocuments(ctx, model.QueryDocumentsOptions{SortBy: "title", SortDesc: true, Limit: 2})
	if err != nil {
		t.Fatalf("QueryDocuments desc: %v", err)
	}
	if len(docs) != 2 || docs[0].Title != "C" || docs[1].Title != "B" {
		t.Fatalf("title DESC limit 2 expected C,B got %+v", titles(docs))
	}

	docs, err = s.QueryDocuments(ctx, model.QueryDocumentsOptions{SortBy: "title", Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("QueryDocuments offset: %v", err)
	}
	if len(docs) != 1 || docs[0].Title != "C" {
		t.Fatalf("offset 2 expected only C, got %+v", titles(docs))
	}

	if _, err = s.QueryDocuments(ctx, model.QueryDocumentsOptions{SortBy: "evil; DROP TABLE"}); err == nil {
		t.Fatal("unknown sort field must be rejected")
	}
}

func titles(docs []model.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Title
	}
	return out
}

func TestMoveDocument_RewritesDescendantPaths(t *testing.T) {
	s, _ := newDocService(t)
	ctx := context.Background()
	a := mustCreateDoc(t, s, "A", "/a", nil)
	b := mustCreateDoc(t, s, "B", "/a/b", &a.ID)
	c := mustCreateDoc(t, s, "C", "/c", nil)

	if err := s.MoveDocument(ctx, a.ID, &c.ID, nil); err != nil {
		t.Fatalf("MoveDocument: %v", err)
	}
	movedA, err := s.GetDocumentByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetDocumentByID: %v", err)
	}
	if movedA.Path != "/c/a" {
		t.Fatalf("moved path expected /c/a, got %s", movedA.Path)
	}
	if movedA.ParentID == nil || *movedA.ParentID != c.ID {
		t.Fatal("parent must point to new parent")
	}
	movedB, err := s.GetDocumentByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetDocumentByID child: %v", err)
	}
	if movedB.Path != "/c/a/b" {
		t.Fatalf("descendant path expected /c/a/b, got %s", movedB.Path)
	}
}

func TestMoveDocument_RewritesNonASCIIDescendantPaths(t *testing.T) {
	s, _ := newDocService(t)
	ctx := context.Background()
	a := mustCreateDoc(t, s, "Статьи", "/статьи", nil)
	b := mustCreateDoc(t, s, "B", "/статьи/b", &a.ID)
	c := mustCreateDoc(t, s, "C", "/c", nil)

	if err := s.MoveDocument(ctx, a.ID, &c.ID, nil); err != nil {
		t.Fatalf("MoveDocument: %v", err)
	}
	movedA, err := s.GetDocumentByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetDocumentByID: %v", err)
	}
	if movedA.Path != "/c/статьи" {
		t.Fatalf("moved path expected /c/статьи, got %s", movedA.Path)
	}
	// префикс старого пути в байтах длиннее, чем в символах;
	// хвост потомка не должен от этого пострадать
	movedB, err := s.GetDocumentByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetDocumentByID child: %v", err)
	}
	if movedB.Path != "/c/статьи/b" {
		t.Fatalf("descendant path expected /c/статьи/b, got %q", movedB.Path)
	}
}

func TestMoveDocument_ToRoot(t *testing.T) {
	s, _ := newDocService(t)
	ctx := context.Background()
	a := mustCreateDoc(t, s, "A", "/a", nil)
	b := mustCreateDoc(t, s, "B", "/a/b", &a.ID)

	if err := s.MoveDocument(ctx, b.ID, nil, nil); err != nil {
		t.Fatalf("MoveDocument to root: %v", err)
	}
	moved, err := s.GetDocumentByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetDocumentByID: %v", err)
	}
	if moved.ParentID != nil {
		t.Fatal("parent must be nil after move to root")
	}
	if moved.Path != "/b" {
		t.Fatalf("path expected /b, got %s", moved.Path)
	}
}

func TestMoveDocument_CircularGuard(t *testing.T) {
	s, _ := newDocService(t)
	ctx := context.Background()
	a := mustCreateDoc(t, s, "A", "/a", nil)
	b := mustCreateDoc(t, s, "B", "/a/b", &a.ID)
	c := mustCreateDoc(t, s, "C", "/a/b/c", &b.ID)

	// под самого себя
	var circ *storage.CircularReferenceError
	if err := s.MoveDocument(ctx, a.ID, &a.ID, nil); !errors.As(err, &circ) {
		t.Fatalf("self-move expected CircularReferenceError, got %v", err)
	}
	// под собственного внука
	if err := s.MoveDocument(ctx, a.ID, &c.ID, nil); !errors.As(err, &circ) {
		t.Fatalf("move under grandchild expected CircularReferenceError, got %v", err)
	}
	// состояние не тронуто
	got, err := s.GetDocumentByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetDocumentByID: %v", err)
	}
	if got.ParentID != nil || got.Path != "/a" {
		t.Fatalf("failed move must leave document untouched, got parent=%v path=%s", got.ParentID, got.Path)
	}
}

func TestDuplicateDocument_WithChildrenAndBlocks(t *testing.T) {
	db := newTestDB(t)
	logger := testLogger()
	s := NewDocumentService(db, logger, nil)
	blocks := NewBlockService(db, logger, nil)
	ctx := context.Background()

	src := mustCreateDoc(t, s, "Источник", "/src", nil)
	mustCreateDoc(t, s, "Дитя", "/src/child", &src.ID)
	rootBlock := mustCreateBlock(t, blocks, src.ID, nil, model.BlockParagraph)
	mustCreateBlock(t, blocks, src.ID, &rootBlock.ID, model.BlockQuote)

	cp, err := s.DuplicateDocument(ctx, src.ID, model.DuplicateOptions{IncludeChildren: true, CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("DuplicateDocument: %v", err)
	}
	if cp.ID == src.ID {
		t.Fatal("copy must get a fresh id")
	}
	if cp.Title != "Источник (copy)" {
		t.Fatalf("copy title expected suffix, got %q", cp.Title)
	}
	if cp.Path != "/src-copy" {
		t.Fatalf("copy path expected /src-copy, got %s", cp.Path)
	}
	if cp.TemplateID == nil || *cp.TemplateID != src.ID {
		t.Fatal("copy must reference source via template_id")
	}
	if cp.Status != model.StatusDraft {
		t.Fatalf("copy status expected draft, got %s", cp.Status)
	}

	kids, err := s.GetChildDocuments(ctx, cp.ID)
	if err != nil {
		t.Fatalf("GetChildDocuments: %v", err)
	}
	if len(kids) != 1 || kids[0].Title != "Дитя" {
		t.Fatalf("copy must include children, got %d", len(kids))
	}

	copied, err := blocks.GetBlocksByDocumentID(ctx, cp.ID)
	if err != nil {
		t.Fatalf("GetBlocksByDocumentID: %v", err)
	}
	if len(copied) != 2 {
		t.Fatalf("copy must carry 2 blocks, got %d", len(copied))
	}
	for _, b := range copied {
		if b.ID == rootBlock.ID {
			t.Fatal("copied blocks must get fresh ids")
		}
	}
}

func TestDuplicateDocument_AsTemplate(t *testing.T) {
	s, _ := newDocService(t)
	ctx := context.Background()
	src := mustCreateDoc(t, s, "A", "/a", nil)
	published := model.StatusPublished
	if _, err := s.UpdateDocument(ctx, src.ID, model.UpdateDocumentInput{Status: &published}); err != nil {
		t.Fatalf("UpdateDocument: %v", err)
	}

	cp, err := s.DuplicateDocument(ctx, src.ID, model.DuplicateOptions{CopyAsTemplate: true, NewTitle: "Шаблон"})
	if err != nil {
		t.Fatalf("DuplicateDocument: %v", err)
	}
	if !cp.IsTemplate {
		t.Fatal("copy must be a template")
	}
	if cp.Status != model.StatusPublished {
		t.Fatalf("template copy keeps source status, got %s", cp.Status)
	}
	if cp.Title != "Шаблон" {
		t.Fatalf("explicit title expected, got %q", cp.Title)
	}
}

func TestGetDocumentPath_Chain(t *testing.T) {
	s, _ := newDocService(t)
	ctx := context.Background()
	a := mustCreateDoc(t, s, "A", "/a", nil)
	b := mustCreateDoc(t, s, "B", "/a/b", &a.ID)
	c := mustCreateDoc(t, s, "C", "/a/b/c", &b.ID)

	chain, err := s.GetDocumentPath(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetDocumentPath: %v", err)
	}
	if len(chain) != 3 || chain[0].ID != a.ID || chain[2].ID != c.ID {
		t.Fatalf("chain expected root..leaf, got %+v", titles(chain))
	}

	var nf *storage.NotFoundError
	if _, err := s.GetDocumentPath(ctx, "missing"); !errors.As(err, &nf) {
		t.Fatalf("missing document expected NotFoundError, got %v", err)
	}
}

func TestTags_ByTagAndHistogram(t *testing.T) {
	s, _ := newDocService(t)
	ctx := context.Background()
	mk := func(title, path string, tags []string) {
		t.Helper()
		if _, err := s.CreateDocument(ctx, model.CreateDocumentInput{
			Title: title, Content: json.RawMessage(`{}`), Path: path, Tags: tags,
		}); err != nil {
			t.Fatalf("CreateDocument: %v", err)
		}
	}
	mk("A", "/a", []string{"go", "db"})
	mk("B", "/b", []string{"go"})
	mk("C", "/c", []string{"golang"})

	docs, err := s.GetDocumentsByTag(ctx, "go")
	if err != nil {
		t.Fatalf("GetDocumentsByTag: %v", err)
	}
	// "golang" не должен пройти точную проверку
	if len(docs) != 2 {
		t.Fatalf("tag 'go' expected 2 docs, got %d", len(docs))
	}

	tags, err := s.GetAllTags(ctx)
	if err != nil {
		t.Fatalf("GetAllTags: %v", err)
	}
	if len(tags) != 3 {
		t.Fatalf("expected 3 distinct tags, got %d", len(tags))
	}
	if tags[0].Tag != "go" || tags[0].Count != 2 {
		t.Fatalf("most used tag expected go/2, got %s/%d", tags[0].Tag, tags[0].Count)
	}
}
