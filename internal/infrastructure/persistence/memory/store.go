// Package memory 単一プロセス向けのインメモリ永続化実装
// すべてのトランザクションはストア全体のロックで直列化され、エラー時はスナップショットに巻き戻す
package memory

import (
	"context"
	"sync"
	"time"

	"flower-server/internal/domain/catalog"
	"flower-server/internal/domain/donation"
	"flower-server/internal/domain/topup"
	"flower-server/internal/domain/withdrawal"
)

type accountRecord struct {
	balance   int64
	createdAt time.Time
	updatedAt time.Time
}

type entryRecord struct {
	id           string
	userID       string
	direction    string
	amount       int64
	reason       string
	referenceID  *string
	balanceAfter int64
	createdAt    time.Time
}

type giftRecord struct {
	id               string
	senderID         string
	receiverID       string
	giftKindID       string
	cost             int64
	relatedContentID *string
	message          *string
	createdAt        time.Time
}

type state struct {
	accounts     map[string]accountRecord
	entries      []entryRecord
	gifts        map[string]giftRecord
	topups       map[string]topup.Snapshot
	withdrawals  map[string]withdrawal.Snapshot
	donations    map[string]donation.Snapshot
	giftKinds    map[string]catalog.GiftKind
	packages     map[string]catalog.TopUpPackage
	methods      map[string]catalog.WithdrawalMethod
	capabilities map[string]bool
}

func newState() *state {
	return &state{
		accounts:     map[string]accountRecord{},
		gifts:        map[string]giftRecord{},
		topups:       map[string]topup.Snapshot{},
		withdrawals:  map[string]withdrawal.Snapshot{},
		donations:    map[string]donation.Snapshot{},
		giftKinds:    map[string]catalog.GiftKind{},
		packages:     map[string]catalog.TopUpPackage{},
		methods:      map[string]catalog.WithdrawalMethod{},
		capabilities: map[string]bool{},
	}
}

func (s *state) clone() *state {
	c := &state{
		accounts:     make(map[string]accountRecord, len(s.accounts)),
		entries:      append([]entryRecord(nil), s.entries...),
		gifts:        make(map[string]giftRecord, len(s.gifts)),
		topups:       make(map[string]topup.Snapshot, len(s.topups)),
		withdrawals:  make(map[string]withdrawal.Snapshot, len(s.withdrawals)),
		donations:    make(map[string]donation.Snapshot, len(s.donations)),
		giftKinds:    make(map[string]catalog.GiftKind, len(s.giftKinds)),
		packages:     make(map[string]catalog.TopUpPackage, len(s.packages)),
		methods:      make(map[string]catalog.WithdrawalMethod, len(s.methods)),
		capabilities: make(map[string]bool, len(s.capabilities)),
	}
	copyMap(c.accounts, s.accounts)
	copyMap(c.gifts, s.gifts)
	copyMap(c.topups, s.topups)
	copyMap(c.withdrawals, s.withdrawals)
	copyMap(c.donations, s.donations)
	copyMap(c.giftKinds, s.giftKinds)
	copyMap(c.packages, s.packages)
	copyMap(c.methods, s.methods)
	copyMap(c.capabilities, s.capabilities)
	return c
}

func copyMap[K comparable, V any](dst, src map[K]V) {
	for k, v := range src {
		dst[k] = v
	}
}

type txKey struct{}

// Store インメモリストア
type Store struct {
	mu    sync.Mutex
	state *state
}

// NewStore 空のストアを作成
func NewStore() *Store {
	return &Store{state: newState()}
}

// WithTransaction トランザクション内で関数を実行
// 既にトランザクション内のコンテキストなら外側に合流する
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	defer func() {
		if p := recover(); p != nil {
			s.state = snapshot
			panic(p)
		}
		if err != nil {
			s.state = snapshot
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, true))
}

// read トランザクション外ならロックを取得して状態を参照する
func (s *Store) read(ctx context.Context, fn func(st *state)) {
	if ctx.Value(txKey{}) != nil {
		fn(s.state)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// write トランザクション外なら単独の書き込みとしてロックを取得する
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(s.state)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

// SeedGiftKind ギフト種別を登録
func (s *Store) SeedGiftKind(k catalog.GiftKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.giftKinds[k.ID] = k
}

// SeedTopUpPackage チャージパッケージを登録
func (s *Store) SeedTopUpPackage(p catalog.TopUpPackage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.packages[p.ID] = p
}

// SeedWithdrawalMethod 出金方法を登録
func (s *Store) SeedWithdrawalMethod(m catalog.WithdrawalMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.methods[m.ID] = m
}

// SetGiftingEnabled ユーザーのギフト送信可否を設定
func (s *Store) SetGiftingEnabled(userID string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.capabilities[userID] = enabled
}

// SeedDefaultCatalog 開発用の参照データを登録
func (s *Store) SeedDefaultCatalog() {
	for _, k := range []catalog.GiftKind{
		{ID: "rose", Name: "Rose", Cost: 100, Active: true},
		{ID: "sunflower", Name: "Sunflower", Cost: 500, Active: true},
		{ID: "bouquet", Name: "Bouquet", Cost: 2500, Active: true},
	} {
		s.SeedGiftKind(k)
	}
	for _, p := range []catalog.TopUpPackage{
		{ID: "pkg-100", Name: "100 Flowers", FlowersAmount: 100, PriceAmount: 1000, Active: true},
		{ID: "pkg-1000", Name: "1000 Flowers", FlowersAmount: 1000, PriceAmount: 10000, Active: true},
		{ID: "pkg-5000", Name: "5000 Flowers", FlowersAmount: 5000, PriceAmount: 48000, Active: true},
	} {
		s.SeedTopUpPackage(p)
	}
	for _, m := range []catalog.WithdrawalMethod{
		{ID: "bank-bca", Name: "BCA", Kind: "bank", Active: true},
		{ID: "bank-mandiri", Name: "Mandiri", Kind: "bank", Active: true},
		{ID: "ewallet-gopay", Name: "GoPay", Kind: "ewallet", Active: true},
	} {
		s.SeedWithdrawalMethod(m)
	}
}

// TotalBalance 全アカウントの残高合計
func (s *Store) TotalBalance() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, a := range s.state.accounts {
		total += a.balance
	}
	return total
}

// EntriesFor 指定ユーザーのエントリ件数（参照ID指定時はその参照IDのみ）
func (s *Store) EntriesFor(userID, referenceID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.state.entries {
		if e.userID != userID {
			continue
		}
		if referenceID != "" && (e.referenceID == nil || *e.referenceID != referenceID) {
			continue
		}
		n++
	}
	return n
}

// GiftCount ギフト記録件数
func (s *Store) GiftCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.gifts)
}

// Repositories ストアを共有するリポジトリ一式
type Repositories struct {
	Accounts    *AccountRepository
	Entries     *EntryRepository
	Catalog     *CatalogRepository
	Gifts       *GiftRepository
	TopUps      *TopUpRepository
	Withdrawals *WithdrawalRepository
	Donations   *DonationRepository
}

// NewRepositories ストアからリポジトリ一式を作成
func NewRepositories(s *Store) *Repositories {
	return &Repositories{
		Accounts:    &AccountRepository{s: s},
		Entries:     &EntryRepository{s: s},
		Catalog:     &CatalogRepository{s: s},
		Gifts:       &GiftRepository{s: s},
		TopUps:      &TopUpRepository{s: s},
		Withdrawals: &WithdrawalRepository{s: s},
		Donations:   &DonationRepository{s: s},
	}
}
