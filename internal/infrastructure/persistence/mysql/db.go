package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"flower-server/internal/infrastructure/config"
)

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// ErrDirtySchema マイグレーションが途中で失敗したままになっている
var ErrDirtySchema = errors.New("schema migration is dirty")

// DB 接続プール。リポジトリはconn経由でトランザクションに参加する
type DB struct {
	*sql.DB
}

// executor *sql.DB と *sql.Tx に共通するクエリ実行インターフェース
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewDB 接続プールを作成し、MySQLが応答するまで再試行する
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	pool, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = pool.PingContext(ctx)
		cancel()
		if err == nil {
			break
		}
		if attempt == connectAttempts {
			_ = pool.Close()
			return nil, fmt.Errorf("failed to ping database after %d attempts: %w", attempt, err)
		}
		log.Printf("Database not ready (attempt %d/%d): %v", attempt, connectAttempts, err)
		time.Sleep(time.Duration(attempt) * connectBackoff)
	}

	return &DB{DB: pool}, nil
}

// conn コンテキストにトランザクションがあればそれを、なければ接続プールを返す
func (db *DB) conn(ctx context.Context) executor {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return db.DB
}

// Close 接続プールを閉じる
func (db *DB) Close() error {
	return db.DB.Close()
}

// Probe 疎通とスキーマ状態を確認する（ヘルスチェック用）
func (db *DB) Probe(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	var dirty bool
	err := db.QueryRowContext(ctx, `SELECT dirty FROM schema_migrations LIMIT 1`).Scan(&dirty)
	if err != nil {
		return fmt.Errorf("failed to read migration state: %w", err)
	}
	if dirty {
		return ErrDirtySchema
	}
	return nil
}
