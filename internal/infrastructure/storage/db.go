package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/knowbase/backend/internal/infrastructure/config"
	_ "modernc.org/sqlite"
)

// GetDBPath 获取 knowbase 数据库路径
// Windows: %USERPROFILE%\.knowbase\knowbase.db
// macOS/Linux: ~/.knowbase/knowbase.db
func GetDBPath() (string, error) {
	return filepath.Join(config.GetDataDir(), "knowbase.db"), nil
}

// OpenDB 打开数据库连接，path 留空时使用数据目录下的默认路径
func OpenDB(path string) (*sql.DB, error) {
	dbPath := path
	if dbPath == "" {
		var err error
		dbPath, err = GetDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get database path: %w", err)
		}
	}

	// 确保目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ProvideDB 提供数据库连接并初始化表结构（wire 使用）
func ProvideDB(dbCfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := OpenDB(dbCfg.Path)
	if err != nil {
		return nil, err
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return db, nil
}

// initSchema 初始化表结构
func initSchema(db *sql.DB) error {
	// 创建 documents 表
	createDocumentsSQL := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		indexed_at INTEGER NOT NULL
	);`

	if _, err := db.Exec(createDocumentsSQL); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	// 创建 chunks 表
	createChunksSQL := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		section TEXT,
		content_type TEXT NOT NULL,
		content TEXT NOT NULL,
		token_count INTEGER NOT NULL,
		source_path TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);`

	if _, err := db.Exec(createChunksSQL); err != nil {
		return fmt.Errorf("failed to create chunks table: %w", err)
	}

	createIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
	CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path);`

	if _, err := db.Exec(createIndexSQL); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
