package memory

import (
	"context"
	"sort"
	"time"

	"flower-server/internal/domain/catalog"
	"flower-server/internal/domain/donation"
	"flower-server/internal/domain/gift"
	"flower-server/internal/domain/ledger"
	"flower-server/internal/domain/payment"
	"flower-server/internal/domain/topup"
	"flower-server/internal/domain/withdrawal"
)

// AccountRepository インメモリ実装のledger.AccountRepository
type AccountRepository struct{ s *Store }

// FindByUserID ユーザーIDでアカウントを取得
func (r *AccountRepository) FindByUserID(ctx context.Context, userID string) (*ledger.Account, error) {
	var a *ledger.Account
	r.s.read(ctx, func(st *state) {
		if rec, ok := st.accounts[userID]; ok {
			a = ledger.RestoreAccount(userID, rec.balance, rec.createdAt, rec.updatedAt)
		}
	})
	if a == nil {
		return nil, ledger.ErrAccountNotFound
	}
	return a, nil
}

// FindByUserIDForUpdate トランザクションがストア全体を直列化するためFindByUserIDと同じ
func (r *AccountRepository) FindByUserIDForUpdate(ctx context.Context, userID string) (*ledger.Account, error) {
	return r.FindByUserID(ctx, userID)
}

// Create アカウントを作成（既に存在する場合は何もしない）
func (r *AccountRepository) Create(ctx context.Context, a *ledger.Account) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.accounts[a.UserID()]; !ok {
			st.accounts[a.UserID()] = accountRecord{balance: a.Balance(), createdAt: a.CreatedAt(), updatedAt: a.UpdatedAt()}
		}
		return nil
	})
}

// UpdateBalance 残高を更新
func (r *AccountRepository) UpdateBalance(ctx context.Context, a *ledger.Account) error {
	return r.s.write(ctx, func(st *state) error {
		rec, ok := st.accounts[a.UserID()]
		if !ok {
			return ledger.ErrAccountNotFound
		}
		if a.Balance() < 0 {
			return ledger.ErrBalanceOutOfRange
		}
		rec.balance = a.Balance()
		rec.updatedAt = a.UpdatedAt()
		st.accounts[a.UserID()] = rec
		return nil
	})
}

// EntryRepository インメモリ実装のledger.EntryRepository
type EntryRepository struct{ s *Store }

// Save エントリを追記
func (r *EntryRepository) Save(ctx context.Context, e *ledger.Entry) error {
	return r.s.write(ctx, func(st *state) error {
		st.entries = append(st.entries, entryRecord{
			id:           e.EntryID(),
			userID:       e.UserID(),
			direction:    e.Direction().String(),
			amount:       e.Amount(),
			reason:       e.Reason().String(),
			referenceID:  e.ReferenceID(),
			balanceAfter: e.BalanceAfter(),
			createdAt:    e.CreatedAt(),
		})
		return nil
	})
}

// FindByUserID ユーザーIDでエントリ一覧を新しい順に取得
func (r *EntryRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*ledger.Entry, error) {
	var matched []entryRecord
	r.s.read(ctx, func(st *state) {
		for i := len(st.entries) - 1; i >= 0; i-- {
			if st.entries[i].userID == userID {
				matched = append(matched, st.entries[i])
			}
		}
	})

	var entries []*ledger.Entry
	for _, rec := range page(matched, limit, offset) {
		entries = append(entries, ledger.RestoreEntry(
			rec.id, rec.userID, ledger.Direction(rec.direction), rec.amount,
			ledger.Reason(rec.reason), rec.referenceID, rec.balanceAfter, rec.createdAt,
		))
	}
	return entries, nil
}

// CountByUserID ユーザーIDのエントリ件数を取得
func (r *EntryRepository) CountByUserID(ctx context.Context, userID string) (int, error) {
	n := 0
	r.s.read(ctx, func(st *state) {
		for _, e := range st.entries {
			if e.userID == userID {
				n++
			}
		}
	})
	return n, nil
}

// CatalogRepository インメモリ実装のcatalog.Repository
type CatalogRepository struct{ s *Store }

// FindGiftKind 有効なギフト種別を取得
func (r *CatalogRepository) FindGiftKind(ctx context.Context, id string) (*catalog.GiftKind, error) {
	var k catalog.GiftKind
	var ok bool
	r.s.read(ctx, func(st *state) { k, ok = st.giftKinds[id] })
	if !ok || !k.Active {
		return nil, catalog.ErrGiftKindNotFound
	}
	return &k, nil
}

// FindTopUpPackage 有効なチャージパッケージを取得
func (r *CatalogRepository) FindTopUpPackage(ctx context.Context, id string) (*catalog.TopUpPackage, error) {
	var p catalog.TopUpPackage
	var ok bool
	r.s.read(ctx, func(st *state) { p, ok = st.packages[id] })
	if !ok || !p.Active {
		return nil, catalog.ErrPackageNotFound
	}
	return &p, nil
}

// FindWithdrawalMethod 有効な出金方法を取得
func (r *CatalogRepository) FindWithdrawalMethod(ctx context.Context, id string) (*catalog.WithdrawalMethod, error) {
	var m catalog.WithdrawalMethod
	var ok bool
	r.s.read(ctx, func(st *state) { m, ok = st.methods[id] })
	if !ok || !m.Active {
		return nil, catalog.ErrMethodNotFound
	}
	return &m, nil
}

// IsGiftingEnabled ユーザーのギフト送信が有効か（設定がなければ有効）
func (r *CatalogRepository) IsGiftingEnabled(ctx context.Context, userID string) (bool, error) {
	enabled := true
	r.s.read(ctx, func(st *state) {
		if v, ok := st.capabilities[userID]; ok {
			enabled = v
		}
	})
	return enabled, nil
}

// GiftRepository インメモリ実装のgift.Repository
type GiftRepository struct{ s *Store }

// Save ギフト記録を保存
func (r *GiftRepository) Save(ctx context.Context, t *gift.Transfer) error {
	return r.s.write(ctx, func(st *state) error {
		st.gifts[t.ID()] = giftRecord{
			id:               t.ID(),
			senderID:         t.SenderID(),
			receiverID:       t.ReceiverID(),
			giftKindID:       t.GiftKindID(),
			cost:             t.Cost(),
			relatedContentID: t.RelatedContentID(),
			message:          t.Message(),
			createdAt:        t.CreatedAt(),
		}
		return nil
	})
}

// FindByID IDで取得
func (r *GiftRepository) FindByID(ctx context.Context, id string) (*gift.Transfer, error) {
	var rec giftRecord
	var ok bool
	r.s.read(ctx, func(st *state) { rec, ok = st.gifts[id] })
	if !ok {
		return nil, gift.ErrTransferNotFound
	}
	return gift.RestoreTransfer(rec.id, rec.senderID, rec.receiverID, rec.giftKindID, rec.cost,
		rec.relatedContentID, rec.message, rec.createdAt), nil
}

// TopUpRepository インメモリ実装のtopup.Repository
type TopUpRepository struct{ s *Store }

// Save 新しいリクエストを保存
func (r *TopUpRepository) Save(ctx context.Context, req *topup.Request) error {
	return r.s.write(ctx, func(st *state) error {
		st.topups[req.ID()] = req.Snapshot()
		return nil
	})
}

// FindByID IDで取得
func (r *TopUpRepository) FindByID(ctx context.Context, id string) (*topup.Request, error) {
	var snap topup.Snapshot
	var ok bool
	r.s.read(ctx, func(st *state) { snap, ok = st.topups[id] })
	if !ok {
		return nil, topup.ErrTopUpNotFound
	}
	return topup.Restore(snap), nil
}

// FindByInvoiceID 請求IDで取得
func (r *TopUpRepository) FindByInvoiceID(ctx context.Context, invoiceID string) (*topup.Request, error) {
	var found *topup.Request
	r.s.read(ctx, func(st *state) {
		for _, snap := range st.topups {
			if snap.InvoiceID != nil && *snap.InvoiceID == invoiceID {
				found = topup.Restore(snap)
				return
			}
		}
	})
	if found == nil {
		return nil, topup.ErrTopUpNotFound
	}
	return found, nil
}

// TransitionStatus 現在のステータスがfromの場合のみtoへ更新する条件付き更新
func (r *TopUpRepository) TransitionStatus(ctx context.Context, id string, from, to topup.Status, adminNote *string) (bool, error) {
	won := false
	err := r.s.write(ctx, func(st *state) error {
		snap, ok := st.topups[id]
		if !ok || snap.Status != from {
			return nil
		}
		snap.Status = to
		if adminNote != nil {
			snap.AdminNote = adminNote
		}
		snap.UpdatedAt = time.Now()
		st.topups[id] = snap
		won = true
		return nil
	})
	return won, err
}

// UpdateAdminNote 管理者メモのみ更新
func (r *TopUpRepository) UpdateAdminNote(ctx context.Context, id string, adminNote string) error {
	return r.s.write(ctx, func(st *state) error {
		snap, ok := st.topups[id]
		if !ok {
			return topup.ErrTopUpNotFound
		}
		snap.AdminNote = &adminNote
		snap.UpdatedAt = time.Now()
		st.topups[id] = snap
		return nil
	})
}

// FindPending pendingのリクエストを古い順に取得
func (r *TopUpRepository) FindPending(ctx context.Context, limit, offset int) ([]*topup.Request, error) {
	return r.filter(ctx, func(s topup.Snapshot) bool { return s.Status == topup.StatusPending }, limit, offset), nil
}

// FindPendingWithInvoice 請求IDを持つpendingのリクエストを古い順に取得
func (r *TopUpRepository) FindPendingWithInvoice(ctx context.Context, expiresAfter time.Time, after *payment.SweepCursor, limit int) ([]*topup.Request, error) {
	return r.filter(ctx, func(s topup.Snapshot) bool {
		return s.Status == topup.StatusPending && s.InvoiceID != nil &&
			sweepable(s.ExpiresAt, expiresAfter) && !after.Before(s.CreatedAt, s.ID)
	}, limit, 0), nil
}

func (r *TopUpRepository) filter(ctx context.Context, keep func(topup.Snapshot) bool, limit, offset int) []*topup.Request {
	var matched []topup.Snapshot
	r.s.read(ctx, func(st *state) {
		for _, snap := range st.topups {
			if keep(snap) {
				matched = append(matched, snap)
			}
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	var out []*topup.Request
	for _, snap := range page(matched, limit, offset) {
		out = append(out, topup.Restore(snap))
	}
	return out
}

// WithdrawalRepository インメモリ実装のwithdrawal.Repository
type WithdrawalRepository struct{ s *Store }

// Save 新しいリクエストを保存
func (r *WithdrawalRepository) Save(ctx context.Context, req *withdrawal.Request) error {
	return r.s.write(ctx, func(st *state) error {
		st.withdrawals[req.ID()] = req.Snapshot()
		return nil
	})
}

// FindByID IDで取得
func (r *WithdrawalRepository) FindByID(ctx context.Context, id string) (*withdrawal.Request, error) {
	var snap withdrawal.Snapshot
	var ok bool
	r.s.read(ctx, func(st *state) { snap, ok = st.withdrawals[id] })
	if !ok {
		return nil, withdrawal.ErrWithdrawalNotFound
	}
	return withdrawal.Restore(snap), nil
}

// FindByUserID ユーザーのリクエストを新しい順に取得
func (r *WithdrawalRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*withdrawal.Request, error) {
	out := r.filter(ctx, func(s withdrawal.Snapshot) bool { return s.UserID == userID })
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return restoreWithdrawals(page(out, limit, offset)), nil
}

// FindOpen 未完了（pending・approved）のリクエストを古い順に取得
func (r *WithdrawalRepository) FindOpen(ctx context.Context, limit, offset int) ([]*withdrawal.Request, error) {
	out := r.filter(ctx, func(s withdrawal.Snapshot) bool {
		return s.Status == withdrawal.StatusPending || s.Status == withdrawal.StatusApproved
	})
	return restoreWithdrawals(page(out, limit, offset)), nil
}

// TransitionStatus 現在のステータスがfromのいずれかの場合のみtoへ更新する条件付き更新
func (r *WithdrawalRepository) TransitionStatus(ctx context.Context, id string, from []withdrawal.Status, to withdrawal.Status, adminNote *string) (bool, error) {
	won := false
	err := r.s.write(ctx, func(st *state) error {
		snap, ok := st.withdrawals[id]
		if !ok {
			return nil
		}
		for _, f := range from {
			if snap.Status == f {
				snap.Status = to
				if adminNote != nil {
					snap.AdminNote = adminNote
				}
				snap.UpdatedAt = time.Now()
				st.withdrawals[id] = snap
				won = true
				return nil
			}
		}
		return nil
	})
	return won, err
}

// UpdateAdminNote 管理者メモのみ更新
func (r *WithdrawalRepository) UpdateAdminNote(ctx context.Context, id string, adminNote string) error {
	return r.s.write(ctx, func(st *state) error {
		snap, ok := st.withdrawals[id]
		if !ok {
			return withdrawal.ErrWithdrawalNotFound
		}
		snap.AdminNote = &adminNote
		snap.UpdatedAt = time.Now()
		st.withdrawals[id] = snap
		return nil
	})
}

func (r *WithdrawalRepository) filter(ctx context.Context, keep func(withdrawal.Snapshot) bool) []withdrawal.Snapshot {
	var matched []withdrawal.Snapshot
	r.s.read(ctx, func(st *state) {
		for _, snap := range st.withdrawals {
			if keep(snap) {
				matched = append(matched, snap)
			}
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched
}

func restoreWithdrawals(snaps []withdrawal.Snapshot) []*withdrawal.Request {
	var out []*withdrawal.Request
	for _, snap := range snaps {
		out = append(out, withdrawal.Restore(snap))
	}
	return out
}

// DonationRepository インメモリ実装のdonation.Repository
type DonationRepository struct{ s *Store }

// Save 新しい寄付を保存
func (r *DonationRepository) Save(ctx context.Context, d *donation.Donation) error {
	return r.s.write(ctx, func(st *state) error {
		st.donations[d.ID()] = d.Snapshot()
		return nil
	})
}

// FindByID IDで取得
func (r *DonationRepository) FindByID(ctx context.Context, id string) (*donation.Donation, error) {
	var snap donation.Snapshot
	var ok bool
	r.s.read(ctx, func(st *state) { snap, ok = st.donations[id] })
	if !ok {
		return nil, donation.ErrDonationNotFound
	}
	return donation.Restore(snap), nil
}

// FindByInvoiceID 請求IDで取得
func (r *DonationRepository) FindByInvoiceID(ctx context.Context, invoiceID string) (*donation.Donation, error) {
	var found *donation.Donation
	r.s.read(ctx, func(st *state) {
		for _, snap := range st.donations {
			if snap.InvoiceID != nil && *snap.InvoiceID == invoiceID {
				found = donation.Restore(snap)
				return
			}
		}
	})
	if found == nil {
		return nil, donation.ErrDonationNotFound
	}
	return found, nil
}

// TransitionStatus 現在のステータスがfromの場合のみtoへ更新する条件付き更新
func (r *DonationRepository) TransitionStatus(ctx context.Context, id string, from, to donation.Status, paidAt *time.Time) (bool, error) {
	won := false
	err := r.s.write(ctx, func(st *state) error {
		snap, ok := st.donations[id]
		if !ok || snap.Status != from {
			return nil
		}
		snap.Status = to
		if paidAt != nil {
			snap.PaidAt = paidAt
		}
		snap.UpdatedAt = time.Now()
		st.donations[id] = snap
		won = true
		return nil
	})
	return won, err
}

// FindRecentPaid 支払い済みの寄付を新しい順に取得
func (r *DonationRepository) FindRecentPaid(ctx context.Context, limit int) ([]*donation.Donation, error) {
	var matched []donation.Snapshot
	r.s.read(ctx, func(st *state) {
		for _, snap := range st.donations {
			if snap.Status == donation.StatusPaid {
				matched = append(matched, snap)
			}
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		pi, pj := paidOrCreated(matched[i]), paidOrCreated(matched[j])
		if pi.Equal(pj) {
			return matched[i].ID > matched[j].ID
		}
		return pi.After(pj)
	})

	var out []*donation.Donation
	for _, snap := range page(matched, limit, 0) {
		out = append(out, donation.Restore(snap))
	}
	return out, nil
}

// FindPendingWithInvoice 請求IDを持つpendingの寄付を古い順に取得
func (r *DonationRepository) FindPendingWithInvoice(ctx context.Context, expiresAfter time.Time, after *payment.SweepCursor, limit int) ([]*donation.Donation, error) {
	var matched []donation.Snapshot
	r.s.read(ctx, func(st *state) {
		for _, snap := range st.donations {
			if snap.Status != donation.StatusPending || snap.InvoiceID == nil {
				continue
			}
			if !sweepable(snap.ExpiresAt, expiresAfter) || after.Before(snap.CreatedAt, snap.ID) {
				continue
			}
			matched = append(matched, snap)
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	var out []*donation.Donation
	for _, snap := range page(matched, limit, 0) {
		out = append(out, donation.Restore(snap))
	}
	return out, nil
}

// sweepable 有効期限がないか下限より後であれば照合対象とする
func sweepable(expiresAt *time.Time, expiresAfter time.Time) bool {
	return expiresAt == nil || expiresAt.After(expiresAfter)
}

func paidOrCreated(s donation.Snapshot) time.Time {
	if s.PaidAt != nil {
		return *s.PaidAt
	}
	return s.CreatedAt
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
