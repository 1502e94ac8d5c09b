package service

import (
	"MindVault/internal/model"
	"MindVault/internal/storage"
	"MindVault/internal/storage/sqlite"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ExportFormat — поддерживаемые форматы выгрузки.
type ExportFormat string

const (
	FormatJSON     ExportFormat = "json"
	FormatMarkdown ExportFormat = "markdown"
)

// ExportOptions — параметры выгрузки.
type ExportOptions struct {
	Format          ExportFormat
	IncludeVersions bool
	IncludeStats    bool
	// IncludeMetadata добавляет в markdown блок key: value под заголовком.
	IncludeMetadata bool
	// OutputPath — путь файла; пустой — файл в каталоге бэкапов.
	OutputPath string
}

// exportEnvelope — схема JSON-файла выгрузки.
type exportEnvelope struct {
	Version    string           `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	Documents  []model.Document `json:"documents"`
	Blocks     []model.Block    `json:"blocks"`
	Versions   []model.Version  `json:"versions,omitempty"`
	Stats      *sqlite.Stats    `json:"stats,omitempty"`
}

const exportSchemaVersion = "1.0"

// ImportResult — сколько строк принял импорт.
type ImportResult struct {
	Documents int `json:"documents"`
	Blocks    int `json:"blocks"`
}

// IntegrityReport — итог проверки целостности хранилища.
type IntegrityReport struct {
	IsValid bool          `json:"is_valid"`
	Issues  []string      `json:"issues"`
	Stats   *sqlite.Stats `json:"stats"`
}

// ExportData выгружает все неудалённые документы и блоки в файл.
// Неподдерживаемый формат — SyncError. Частично записанный файл после
// ошибки следует считать невалидным.
func (s *SyncService) ExportData(ctx context.Context, opts ExportOptions) (string, error) {
	switch opts.Format {
	case FormatJSON, FormatMarkdown:
	default:
		return "", &storage.SyncError{Op: "export", Err: fmt.Errorf("unsupported format %q", opts.Format)}
	}

	env, err := s.collectExport(ctx, opts)
	if err != nil {
		return "", err
	}

	path := opts.OutputPath
	if path == "" {
		ext := "json"
		if opts.Format == FormatMarkdown {
			ext = "md"
		}
		if err := os.MkdirAll(s.cfg.BackupDir, 0o700); err != nil {
			return "", &storage.SyncError{Op: "export", Err: err}
		}
		path = filepath.Join(s.cfg.BackupDir,
			fmt.Sprintf("export-%s.%s", time.Now().UTC().Format("20060102-150405"), ext))
	}

	var data []byte
	if opts.Format == FormatJSON {
		if data, err = json.MarshalIndent(env, "", "  "); err != nil {
			return "", &storage.SyncError{Op: "export", Err: err}
		}
	} else {
		data = []byte(renderMarkdown(env, opts.IncludeMetadata))
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", &storage.SyncError{Op: "export", Err: err}
	}
	s.logger.Infow("data exported", "path", path, "format", opts.Format,
		"documents", len(env.Documents), "blocks", len(env.Blocks))
	return path, nil
}

// collectExport читает неудалённые строки для выгрузки.
func (s *SyncService) collectExport(ctx context.Context, opts ExportOptions) (*exportEnvelope, error) {
	env := &exportEnvelope{
		Version:    exportSchemaVersion,
		ExportedAt: time.Now().UTC(),
		Documents:  []model.Document{},
		Blocks:     []model.Block{},
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE status != 'deleted' ORDER BY path`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		env.Documents = append(env.Documents, *d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT `+blockColumns+` FROM blocks WHERE is_deleted = 0 ORDER BY document_id, path`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		env.Blocks = append(env.Blocks, *b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if opts.IncludeVersions {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+versionColumns+` FROM versions ORDER BY entity_id, version`)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			v, err := scanVersion(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			env.Versions = append(env.Versions, *v)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	if opts.IncludeStats {
		if env.Stats, err = s.db.Stats(ctx); err != nil {
			return nil, err
		}
	}
	return env, nil
}

// renderMarkdown — одна секция «# title» на документ; метаданные
// опционально блоком key: value.
func renderMarkdown(env *exportEnvelope, includeMetadata bool) string {
	var b strings.Builder
	for i, d := range env.Documents {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "# %s\n\n", d.Title)
		if includeMetadata {
			keys := make([]string, 0, len(d.Metadata))
			for k := range d.Metadata {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(&b, "path: %s\n", d.Path)
			fmt.Fprintf(&b, "status: %s\n", d.Status)
			if len(d.Tags) > 0 {
				fmt.Fprintf(&b, "tags: %s\n", strings.Join(d.Tags, ", "))
			}
			for _, k := range keys {
				fmt.Fprintf(&b, "%s: %s\n", k, d.Metadata[k])
			}
			b.WriteString("\n")
		}
		b.WriteString(string(d.Content))
		b.WriteString("\n")
	}
	return b.String()
}

// ImportData читает JSON-выгрузку и заливает строки через INSERT OR REPLACE
// в одной транзакции: любой сбой откатывает импорт целиком.
func (s *SyncService) ImportData(ctx context.Context, path string) (*ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &storage.SyncError{Op: "import", Err: err}
	}
	var env exportEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &storage.SyncError{Op: "import", Err: err}
	}

	res := &ImportResult{}
	err = s.db.WithTx(ctx, func(tx *sqlite.Transaction) error {
		for i := range env.Documents {
			d := &env.Documents[i]
			tags, err := encodeStrings(d.Tags)
			if err != nil {
				return err
			}
			meta, err := encodeStringMap(d.Metadata)
			if err != nil {
				return err
			}
			perms, err := encodePermissions(d.Perms)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO documents(
				id, title, content, status, parent_id, path, icon, cover,
				tags, metadata, is_template, template_id, sort_order, permissions,
				created_at, updated_at, created_by, updated_by
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				d.ID, d.Title, string(d.Content), string(d.Status), d.ParentID, d.Path,
				d.Icon, d.Cover, tags, meta, boolToInt(d.IsTemplate), d.TemplateID,
				d.SortOrder, perms, d.CreatedAt.UnixMilli(), d.UpdatedAt.UnixMilli(),
				d.CreatedBy, d.UpdatedBy)
			if err != nil {
				return err
			}
			res.Documents++
		}
		for i := range env.Blocks {
			b := &env.Blocks[i]
			props, err := encodeStringMap(b.Properties)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO blocks(
				id, document_id, parent_id, type, content, properties, sort_order, path,
				is_deleted, created_at, updated_at, created_by, updated_by
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				b.ID, b.DocumentID, b.ParentID, string(b.Type), string(b.Content), props,
				b.SortOrder, b.Path, boolToInt(b.IsDeleted),
				b.CreatedAt.UnixMilli(), b.UpdatedAt.UnixMilli(), b.CreatedBy, b.UpdatedBy)
			if err != nil {
				return err
			}
			res.Blocks++
		}
		return nil
	})
	if err != nil {
		return nil, &storage.SyncError{Op: "import", Err: err}
	}
	s.logger.Infow("data imported", "path", path, "documents", res.Documents, "blocks", res.Blocks)
	return res, nil
}

// CheckDataIntegrity ищет блоки-сироты и битые ссылки родителей,
// дополняя итог статистикой DAL.
func (s *SyncService) CheckDataIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{IsValid: true, Issues: []string{}}

	var orphanBlocks int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM blocks b
		WHERE NOT EXISTS (SELECT 1 FROM documents d WHERE d.id = b.document_id)`,
	).Scan(&orphanBlocks)
	if err != nil {
		return nil, &storage.DatabaseError{Op: "integrity", Err: err}
	}
	if orphanBlocks > 0 {
		report.IsValid = false
		report.Issues = append(report.Issues,
			fmt.Sprintf("%d blocks reference a non-existent document", orphanBlocks))
	}

	var orphanParents int64
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM blocks b
		WHERE b.parent_id IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM blocks p WHERE p.id = b.parent_id)`,
	).Scan(&orphanParents)
	if err != nil {
		return nil, &storage.DatabaseError{Op: "integrity", Err: err}
	}
	if orphanParents > 0 {
		report.IsValid = false
		report.Issues = append(report.Issues,
			fmt.Sprintf("%d blocks reference a non-existent parent block", orphanParents))
	}

	var crossDoc int64
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM blocks b
		JOIN blocks p ON p.id = b.parent_id
		WHERE p.document_id != b.document_id`,
	).Scan(&crossDoc)
	if err != nil {
		return nil, &storage.DatabaseError{Op: "integrity", Err: err}
	}
	if crossDoc > 0 {
		report.IsValid = false
		report.Issues = append(report.Issues,
			fmt.Sprintf("%d blocks have a parent from another document", crossDoc))
	}

	stats, err := s.db.Stats(ctx)
	if err != nil {
		return nil, err
	}
	report.Stats = stats
	return report, nil
}
