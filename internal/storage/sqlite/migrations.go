package sqlite

import (
	_ "embed"
)

// Встроенная SQL-схема движка (SQLite).
//
//go:embed migrations/001_init.sql
var initDDL string

func initialDDL() string { return initDDL }
