package service

import (
	"MindVault/internal/model"
	"testing"
)

func TestBumpMillis_StrictGrowth(t *testing.T) {
	prev := nowMillis() + 1000 // часы «в будущем» относительно prev
	got := bumpMillis(prev)
	if got != prev+1 {
		t.Fatalf("frozen clock must bump by 1: prev=%d got=%d", prev, got)
	}
	if bumpMillis(0) <= 0 {
		t.Fatal("bump from zero must return current time")
	}
}

func TestStringCodecs(t *testing.T) {
	raw, err := encodeStrings(nil)
	if err != nil {
		t.Fatalf("encodeStrings(nil): %v", err)
	}
	if raw != "[]" {
		t.Fatalf("nil slice must encode as [], got %s", raw)
	}
	decoded, err := decodeStrings("tags", `["a","b"]`)
	if err != nil {
		t.Fatalf("decodeStrings: %v", err)
	}
	if len(decoded) != 2 || decoded[0] != "a" {
		t.Fatalf("decode mismatch: %v", decoded)
	}
	if _, err := decodeStrings("tags", "garbage"); err == nil {
		t.Fatal("garbage in column must be a loud error")
	}
}

func TestStringMapCodecs(t *testing.T) {
	raw, err := encodeStringMap(nil)
	if err != nil {
		t.Fatalf("encodeStringMap(nil): %v", err)
	}
	if raw != "{}" {
		t.Fatalf("nil map must encode as {}, got %s", raw)
	}
	if _, err := decodeStringMap("metadata", `[1,2]`); err == nil {
		t.Fatal("wrong JSON shape must be a loud error")
	}
}

func TestPermissionsCodec_NilSlices(t *testing.T) {
	raw, err := encodePermissions(model.Permissions{})
	if err != nil {
		t.Fatalf("encodePermissions: %v", err)
	}
	p, err := decodePermissions(raw)
	if err != nil {
		t.Fatalf("decodePermissions: %v", err)
	}
	if p.SharedUsers == nil || p.Editors == nil || p.Viewers == nil {
		t.Fatal("decoded permission lists must never be nil")
	}
	// legacy-значение '{}' из дефолта столбца тоже читается
	p, err = decodePermissions(`{}`)
	if err != nil {
		t.Fatalf("decodePermissions({}): %v", err)
	}
	if p.SharedUsers == nil {
		t.Fatal("empty object must decode to empty lists")
	}
}

func TestPathHelpers(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/a/b", "b"},
		{"/a/b/", "b"},
		{"/solo", "solo"},
		{"plain", "plain"},
	}
	for _, tc := range cases {
		if got := lastPathSegment(tc.in); got != tc.want {
			t.Errorf("lastPathSegment(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	if got := childPath("", "x"); got != "/x" {
		t.Fatalf("childPath empty parent expected /x, got %s", got)
	}
	if got := childPath("/", "x"); got != "/x" {
		t.Fatalf("childPath root parent expected /x, got %s", got)
	}
	if got := childPath("/a/b", "x"); got != "/a/b/x" {
		t.Fatalf("childPath nested expected /a/b/x, got %s", got)
	}
}

func TestStringListHelpers(t *testing.T) {
	list := []string{"a", "b", "c"}
	if !containsString(list, "b") || containsString(list, "z") {
		t.Fatal("containsString mismatch")
	}
	out := removeString(list, "b")
	if len(out) != 2 || containsString(out, "b") {
		t.Fatalf("removeString mismatch: %v", out)
	}
	// исходный срез не мутируется
	if len(list) != 3 {
		t.Fatal("removeString must not mutate input")
	}
}
