package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"flower-server/internal/domain/ledger"
)

// LedgerService フラワー残高を変更する唯一の入口となるドメインサービス
// 残高の変更とエントリの追記は必ず同一トランザクションで行う
type LedgerService struct {
	accountRepo ledger.AccountRepository
	entryRepo   ledger.EntryRepository
	txManager   ledger.TransactionManager
	newID       func() string
}

// NewLedgerService 新しいLedgerServiceを作成
func NewLedgerService(
	accountRepo ledger.AccountRepository,
	entryRepo ledger.EntryRepository,
	txManager ledger.TransactionManager,
) *LedgerService {
	return &LedgerService{
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		txManager:   txManager,
		newID:       uuid.NewString,
	}
}

// TransferResult 送金結果
type TransferResult struct {
	DebitEntry  *ledger.Entry
	CreditEntry *ledger.Entry
}

// GetBalance 現在の残高を取得（アカウント未作成の場合は0）
func (s *LedgerService) GetBalance(ctx context.Context, userID string) (int64, error) {
	if err := ledger.ValidateUserID(userID); err != nil {
		return 0, err
	}
	account, err := s.accountRepo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return account.Balance(), nil
}

// Credit 残高を増やしエントリを1件追記する
func (s *LedgerService) Credit(ctx context.Context, userID string, amount int64, reason ledger.Reason, referenceID string) (*ledger.Entry, error) {
	if err := validate(userID, amount); err != nil {
		return nil, err
	}

	var entry *ledger.Entry
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		account, err := s.lockOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		entry, err = s.apply(ctx, account, ledger.DirectionCredit, amount, reason, referenceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Debit 残高を減らしエントリを1件追記する
// アカウントが未作成の場合は残高0として扱う
func (s *LedgerService) Debit(ctx context.Context, userID string, amount int64, reason ledger.Reason, referenceID string) (*ledger.Entry, error) {
	if err := validate(userID, amount); err != nil {
		return nil, err
	}

	var entry *ledger.Entry
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		account, err := s.lockExisting(ctx, userID)
		if err != nil {
			return err
		}
		entry, err = s.apply(ctx, account, ledger.DirectionDebit, amount, reason, referenceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Transfer 送金元から送金先へ原子的に移動する
// デッドロック回避のため行ロックは常にユーザーIDの昇順で獲得する
func (s *LedgerService) Transfer(
	ctx context.Context,
	fromUserID string,
	toUserID string,
	amount int64,
	debitReason ledger.Reason,
	creditReason ledger.Reason,
	referenceID string,
) (*TransferResult, error) {
	if err := validate(fromUserID, amount); err != nil {
		return nil, err
	}
	if err := ledger.ValidateUserID(toUserID); err != nil {
		return nil, err
	}
	if fromUserID == toUserID {
		return nil, ledger.ErrSameAccount
	}

	result := &TransferResult{}
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		var from, to *ledger.Account
		var err error
		if fromUserID < toUserID {
			if from, err = s.lockExisting(ctx, fromUserID); err != nil {
				return err
			}
			if to, err = s.lockOrCreate(ctx, toUserID); err != nil {
				return err
			}
		} else {
			if to, err = s.lockOrCreate(ctx, toUserID); err != nil {
				return err
			}
			if from, err = s.lockExisting(ctx, fromUserID); err != nil {
				return err
			}
		}

		if result.DebitEntry, err = s.apply(ctx, from, ledger.DirectionDebit, amount, debitReason, referenceID); err != nil {
			return err
		}
		result.CreditEntry, err = s.apply(ctx, to, ledger.DirectionCredit, amount, creditReason, referenceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// lockExisting 既存アカウントをロックする。未作成なら残高不足として扱う
func (s *LedgerService) lockExisting(ctx context.Context, userID string) (*ledger.Account, error) {
	account, err := s.accountRepo.FindByUserIDForUpdate(ctx, userID)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return nil, ledger.ErrInsufficientBalance
		}
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	return account, nil
}

// lockOrCreate アカウントをロックする。未作成なら残高0で作成してからロックする
func (s *LedgerService) lockOrCreate(ctx context.Context, userID string) (*ledger.Account, error) {
	account, err := s.accountRepo.FindByUserIDForUpdate(ctx, userID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ledger.ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}

	newAccount, err := ledger.NewAccount(userID, 0)
	if err != nil {
		return nil, err
	}
	if err := s.accountRepo.Create(ctx, newAccount); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	account, err = s.accountRepo.FindByUserIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	return account, nil
}

func (s *LedgerService) apply(
	ctx context.Context,
	account *ledger.Account,
	direction ledger.Direction,
	amount int64,
	reason ledger.Reason,
	referenceID string,
) (*ledger.Entry, error) {
	var err error
	if direction == ledger.DirectionCredit {
		err = account.Credit(amount)
	} else {
		err = account.Debit(amount)
	}
	if err != nil {
		return nil, err
	}

	if err := s.accountRepo.UpdateBalance(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	entry, err := ledger.NewEntry(s.newID(), account.UserID(), direction, amount, reason, referenceID, account.Balance())
	if err != nil {
		return nil, err
	}
	if err := s.entryRepo.Save(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to save ledger entry: %w", err)
	}
	return entry, nil
}

func validate(userID string, amount int64) error {
	if err := ledger.ValidateUserID(userID); err != nil {
		return err
	}
	if amount <= 0 {
		return ledger.ErrInvalidAmount
	}
	if amount > ledger.MaxAmount {
		return ledger.ErrAmountTooLarge
	}
	return nil
}
