package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
)

const (
	// MySQLのデッドロック検出とロック待ちタイムアウト
	errLockDeadlock    = 1213
	errLockWaitTimeout = 1205

	maxTxAttempts = 3
	retryBackoff  = 20 * time.Millisecond
)

type txKey struct{}

func txFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}

// TransactionManager ledger.TransactionManagerのMySQL実装
// 行ロックはSELECT ... FOR UPDATEで取るため、分離レベルはREAD COMMITTEDで足りる
type TransactionManager struct {
	db      *DB
	backoff time.Duration
}

// NewTransactionManager 新しいトランザクションマネージャーを作成
func NewTransactionManager(db *DB) *TransactionManager {
	return &TransactionManager{db: db, backoff: retryBackoff}
}

// WithTransaction トランザクション内でfnを実行する
// 既にトランザクションを持つコンテキストでは外側に合流する
// デッドロックで巻き戻された場合は最外側でfnごと再実行するため、fnはDB以外の副作用を持たないこと
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = tm.run(ctx, fn)
		if err == nil || !isRetryable(err) || attempt == maxTxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * tm.backoff):
		}
	}
	return err
}

func (tm *TransactionManager) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := tm.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// isRetryable トランザクション全体を再実行すれば解消しうるエラーか
func isRetryable(err error) bool {
	var mysqlErr *mysqldriver.MySQLError
	if !errors.As(err, &mysqlErr) {
		return false
	}
	return mysqlErr.Number == errLockDeadlock || mysqlErr.Number == errLockWaitTimeout
}
