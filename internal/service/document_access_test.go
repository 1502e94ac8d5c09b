package service

import (
	"MindVault/internal/model"
	"MindVault/internal/storage"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestCheckDocumentAccess_Matrix(t *testing.T) {
	s, _ := newDocService(t)
	ctx := context.Background()
	doc := mustCreateDoc(t, s, "A", "/a", nil) // created_by = u0

	if err := s.ShareDocument(ctx, doc.ID, "editor1", model.RoleEditor, "u0"); err != nil {
		t.Fatalf("ShareDocument editor: %v", err)
	}
	if err := s.ShareDocument(ctx, doc.ID, "viewer1", model.RoleViewer, "u0"); err != nil {
		t.Fatalf("ShareDocument viewer: %v", err)
	}
	if err := s.ShareDocument(ctx, doc.ID, "shared1", model.RoleShared, "u0"); err != nil {
		t.Fatalf("ShareDocument shared: %v", err)
	}

	cases := []struct {
		user   string
		action model.AccessAction
		want   bool
	}{
		{"u0", model.ActionRead, true},
		{"u0", model.ActionWrite, true},
		{"u0", model.ActionDelete, true},
		{"u0", model.ActionShare, true},
		{"editor1", model.ActionRead, true},
		{"editor1", model.ActionWrite, true},
		{"editor1", model.ActionDelete, false},
		{"editor1", model.ActionShare, false},
		{"shared1", model.ActionRead, true},
		{"shared1", model.ActionWrite, true},
		{"viewer1", model.ActionRead, true},
		{"viewer1", model.ActionWrite, false},
		{"stranger", model.ActionRead, false},
		{"stranger", model.ActionWrite, false},
	}
	for _, tc := range cases {
		got, err := s.CheckDocumentAccess(ctx, doc.ID, tc.user, tc.action)
		if err != nil {
			t.Fatalf("CheckDocumentAccess(%s, %s): %v", tc.user, tc.action, err)
		}
		if got != tc.want {
			t.Errorf("access %s/%s expected %v, got %v", tc.user, tc.action, tc.want, got)
		}
	}
}

func TestCheckDocumentAccess_PublicRead(t *testing.T) {
	s, _ := newDocService(t)
	ctx := context.Background()
	doc := mustCreateDoc(t, s, "A", "/a", nil)

	perms := doc.Perms
	perms.IsPublic = true
	if _, err := s.UpdateDocument(ctx, doc.ID, model.UpdateDocumentInput{Perms: &perms, UpdatedBy: "u0"}); err != nil {
		t.Fatalf("UpdateDocument: %v", err)
	}

	ok, err := s.CheckDocumentAccess(ctx, doc.ID, "anyone", model.ActionRead)
	if err != nil || !ok {
		t.Fatalf("public document must be readable by anyone: ok=%v err=%v", ok, err)
	}
	ok, err = s.CheckDocumentAccess(ctx, doc.ID, "anyone", model.ActionWrite)
	if err != nil || ok {
		t.Fatalf("public must not grant write: ok=%v err=%v", ok, err)
	}
}

func TestShareDocument_SingleRole(t *testing.T) {
	s, _ := newDocService(t)
	ctx := context.Background()
	doc := mustCreateDoc(t, s, "A", "/a", nil)

	if err := s.ShareDocument(ctx, doc.ID, "u1", model.RoleViewer, "u0"); err != nil {
		t.Fatalf("ShareDocument viewer: %v", err)
	}
	// повышение роли убирает пользователя из viewers
	if err := s.ShareDocument(ctx, doc.ID, "u1", model.RoleEditor, "u0"); err != nil {
		t.Fatalf("ShareDocument editor: %v", err)
	}

	got, err := s.GetDocumentByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocumentByID: %v", err)
	}
	if len(got.Perms.Viewers) != 0 {
		t.Fatalf("user must leave viewers after promotion, got %v", got.Perms.Viewers)
	}
	if len(got.Perms.Editors) != 1 || got.Perms.Editors[0] != "u1" {
		t.Fatalf("editors expected [u1], got %v", got.Perms.Editors)
	}
}

func TestShareDocument_CreatorOnly(t *testing.T) {
	s, _ := newDocService(t)
	ctx := context.Background()
	doc := mustCreateDoc(t, s, "A", "/a", nil)

	var denied *storage.PermissionDeniedError
	err := s.ShareDocument(ctx, doc.ID, "u2", model.RoleViewer, "intruder")
	if !errors.As(err, &denied) {
		t.Fatalf("non-creator share expected PermissionDeniedError, got %v", err)
	}
	err = s.UnshareDocument(ctx, doc.ID, "u2", "intruder")
	if !errors.As(err, &denied) {
		t.Fatalf("non-creator unshare expected PermissionDeniedError, got %v", err)
	}
}

func TestUnshareDocument_RemovesAllRoles(t *testing.T) {
	s, _ := newDocService(t)
	ctx := context.Background()
	doc := mustCreateDoc(t, s, "A", "/a", nil)

	if err := s.ShareDocument(ctx, doc.ID, "u1", model.RoleEditor, "u0"); err != nil {
		t.Fatalf("ShareDocument: %v", err)
	}
	if err := s.UnshareDocument(ctx, doc.ID, "u1", "u0"); err != nil {
		t.Fatalf("UnshareDocument: %v", err)
	}
	got, err := s.GetDocumentByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocumentByID: %v", err)
	}
	if len(got.Perms.Editors) != 0 || len(got.Perms.Viewers) != 0 || len(got.Perms.SharedUsers) != 0 {
		t.Fatalf("unshare must clear all lists, got %+v", got.Perms)
	}
}

func TestSearchDocuments_Scoring(t *testing.T) {
	s, _ := newDocService(t)
	ctx := context.Background()
	mk := func(title, path, content string, tags []string) {
		t.Helper()
		if _, err := s.CreateDocument(ctx, model.CreateDocumentInput{
			Title: title, Content: json.RawMessage(content), Path: path, Tags: tags,
		}); err != nil {
			t.Fatalf("CreateDocument: %v", err)
		}
	}
	mk("Рецепт борща", "/borsch", `{"text":"свекла"}`, nil)
	mk("Список покупок", "/shopping", `{"text":"борщ на ужин"}`, nil)
	mk("Заметка", "/note", `{"text":"ничего"}`, []string{"борщ"})

	results, err := s.SearchDocuments(ctx, "борщ", 10)
	if err != nil {
		t.Fatalf("SearchDocuments: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	// заголовок весит больше контента, контент больше тега
	if results[0].Document.Title != "Рецепт борща" || results[0].Score != 10 {
		t.Fatalf("top result expected title match with score 10, got %q/%d",
			results[0].Document.Title, results[0].Score)
	}
	if results[1].Document.Title != "Список покупок" || results[1].Score != 5 {
		t.Fatalf("second result expected content match with score 5, got %q/%d",
			results[1].Document.Title, results[1].Score)
	}
	if results[2].Score != 3 {
		t.Fatalf("tag match expected score 3, got %d", results[2].Score)
	}
}

func TestSearchDocuments_LimitAndValidation(t *testing.T) {
	s, _ := newDocService(t)
	ctx := context.Background()
	mustCreateDoc(t, s, "alpha one", "/a1", nil)
	mustCreateDoc(t, s, "alpha two", "/a2", nil)

	results, err := s.SearchDocuments(ctx, "alpha", 1)
	if err != nil {
		t.Fatalf("SearchDocuments: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("limit 1 expected single result, got %d", len(results))
	}

	var verr *storage.ValidationError
	if _, err := s.SearchDocuments(ctx, "   ", 10); !errors.As(err, &verr) {
		t.Fatalf("blank term expected ValidationError, got %v", err)
	}
}
