package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

const testSecret = "test-secret"

// authProbe — хендлер, вынимающий user_id из контекста.
func authProbe(gotUID *string, gotOK *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotUID, *gotOK = GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

// loginCookie выпускает валидную auth-cookie через SetLoginCookie.
func loginCookie(t *testing.T, userID, secret string) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := SetLoginCookie(rec, userID, secret); err != nil {
		t.Fatalf("SetLoginCookie: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	return cookies[0]
}

func TestWithAuth_ValidToken(t *testing.T) {
	var uid string
	var ok bool
	h := WithAuth(testSecret)(authProbe(&uid, &ok))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(loginCookie(t, "u42", testSecret))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !ok || uid != "u42" {
		t.Fatalf("expected u42 in context, got %q/%v", uid, ok)
	}
}

func TestWithAuth_MissingCookieIsAnonymous(t *testing.T) {
	var uid string
	var ok bool
	h := WithAuth(testSecret)(authProbe(&uid, &ok))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	// запрос проходит, но анонимно
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous request must pass, got %d", rec.Code)
	}
	if ok || uid != "" {
		t.Fatalf("no cookie must mean no user, got %q/%v", uid, ok)
	}
}

func TestWithAuth_WrongSecretIsAnonymous(t *testing.T) {
	var uid string
	var ok bool
	h := WithAuth(testSecret)(authProbe(&uid, &ok))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(loginCookie(t, "u42", "other-secret"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("request with bad token must still pass, got %d", rec.Code)
	}
	if ok {
		t.Fatalf("token signed with wrong secret must not authenticate, got %q", uid)
	}
}

func TestWithAuth_GarbageCookieIsAnonymous(t *testing.T) {
	var uid string
	var ok bool
	h := WithAuth(testSecret)(authProbe(&uid, &ok))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: "not-a-jwt"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	if ok {
		t.Fatalf("garbage token must not authenticate, got %q", uid)
	}
}
