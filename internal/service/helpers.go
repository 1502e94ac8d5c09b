// Package service — бизнес-логика движка хранения: документы, блоки,
// версии и синхронизация. Сервисы зависят только от DAL и публикуют
// события уже после фиксации транзакции.
package service

import (
	"MindVault/internal/model"
	"MindVault/internal/storage"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// nowMillis — текущее время в Unix-миллисекундах (так хранятся все метки).
func nowMillis() int64 { return time.Now().UnixMilli() }

// bumpMillis гарантирует строгий рост updated_at даже при неподвижных часах.
func bumpMillis(prev int64) int64 {
	now := nowMillis()
	if now <= prev {
		return prev + 1
	}
	return now
}

// encodeStrings сериализует срез строк в JSON-текст столбца.
func encodeStrings(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode strings: %w", err)
	}
	return string(b), nil
}

// decodeStrings читает JSON-массив строк из столбца; мусор в столбце — ошибка,
// а не молчаливый пустой срез.
func decodeStrings(col, raw string) ([]string, error) {
	var v []string
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, &storage.DatabaseError{Op: "decode " + col, Err: err}
	}
	return v, nil
}

// encodeStringMap сериализует map[string]string в JSON-текст столбца.
func encodeStringMap(v map[string]string) (string, error) {
	if v == nil {
		v = map[string]string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode map: %w", err)
	}
	return string(b), nil
}

// decodeStringMap читает JSON-объект из столбца.
func decodeStringMap(col, raw string) (map[string]string, error) {
	var v map[string]string
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, &storage.DatabaseError{Op: "decode " + col, Err: err}
	}
	return v, nil
}

// encodePermissions сериализует права в JSON-текст столбца.
func encodePermissions(p model.Permissions) (string, error) {
	if p.SharedUsers == nil {
		p.SharedUsers = []string{}
	}
	if p.Editors == nil {
		p.Editors = []string{}
	}
	if p.Viewers == nil {
		p.Viewers = []string{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode permissions: %w", err)
	}
	return string(b), nil
}

// decodePermissions читает права из столбца.
func decodePermissions(raw string) (model.Permissions, error) {
	var p model.Permissions
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return p, &storage.DatabaseError{Op: "decode permissions", Err: err}
	}
	if p.SharedUsers == nil {
		p.SharedUsers = []string{}
	}
	if p.Editors == nil {
		p.Editors = []string{}
	}
	if p.Viewers == nil {
		p.Viewers = []string{}
	}
	return p, nil
}

// lastPathSegment возвращает хвост slash-пути ("/a/b" -> "b").
func lastPathSegment(p string) string {
	p = strings.TrimSuffix(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// childPath строит путь потомка под родительским путём.
func childPath(parentPath, segment string) string {
	if parentPath == "" || parentPath == "/" {
		return "/" + segment
	}
	return strings.TrimSuffix(parentPath, "/") + "/" + segment
}

// containsString — линейный поиск по небольшим спискам пользователей.
func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// removeString возвращает список без указанного элемента.
func removeString(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
