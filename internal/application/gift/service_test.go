package gift

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"flower-server/internal/application/notifier"
	"flower-server/internal/domain/catalog"
	"flower-server/internal/domain/event"
	"flower-server/internal/domain/gift"
	"flower-server/internal/domain/ledger"
	"flower-server/internal/domain/service"
	otelinfra "flower-server/internal/infrastructure/observability/otel"
	"flower-server/internal/infrastructure/persistence/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

type testEnv struct {
	store  *memory.Store
	repos  *memory.Repositories
	ledger *service.LedgerService
	pub    *recordingPublisher
	svc    *GiftApplicationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	store.SeedDefaultCatalog()
	repos := memory.NewRepositories(store)
	ledgerService := service.NewLedgerService(repos.Accounts, repos.Entries, store)

	logger := otelinfra.NewLogger(noop.NewTracerProvider().Tracer("test")).WithOutput(io.Discard)
	metrics, err := otelinfra.NewMetrics("test")
	require.NoError(t, err)

	pub := &recordingPublisher{}
	svc := NewGiftApplicationService(repos.Catalog, repos.Gifts, ledgerService, store, notifier.New(pub, logger), logger, metrics)
	return &testEnv{store: store, repos: repos, ledger: ledgerService, pub: pub, svc: svc}
}

func (e *testEnv) fund(t *testing.T, userID string, amount int64) {
	t.Helper()
	_, err := e.ledger.Credit(context.Background(), userID, amount, ledger.ReasonTopUp, "seed-"+userID)
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, userID string) int64 {
	t.Helper()
	b, err := e.ledger.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func strPtr(s string) *string { return &s }

func TestGiftApplicationService_SendGift(t *testing.T) {
	ctx := context.Background()

	t.Run("正常系: 送信者から受信者へ移動しギフト記録が残る", func(t *testing.T) {
		env := newTestEnv(t)
		env.fund(t, "alice", 1000)

		resp, err := env.svc.SendGift(ctx, &SendGiftRequest{
			SenderID:         "alice",
			ReceiverID:       "bob",
			GiftKindID:       "rose",
			RelatedContentID: strPtr("quote-1"),
			Message:          strPtr("thanks!"),
		})
		require.NoError(t, err)

		assert.Equal(t, int64(100), resp.Cost)
		assert.Equal(t, int64(900), resp.SenderBalance)
		assert.Equal(t, int64(900), env.balance(t, "alice"))
		assert.Equal(t, int64(100), env.balance(t, "bob"))
		assert.Equal(t, int64(1000), env.store.TotalBalance())

		record, err := env.repos.Gifts.FindByID(ctx, resp.GiftID)
		require.NoError(t, err)
		assert.Equal(t, "quote-1", *record.RelatedContentID())
		assert.Equal(t, 1, env.store.EntriesFor("alice", resp.GiftID))
		assert.Equal(t, 1, env.store.EntriesFor("bob", resp.GiftID))

		require.Len(t, env.pub.events, 1)
		assert.Equal(t, event.TypeGiftSent, env.pub.events[0].Type)
		assert.Equal(t, resp.GiftID, env.pub.events[0].AggregateID)
	})

	tests := []struct {
		name    string
		setup   func(env *testEnv)
		req     *SendGiftRequest
		wantErr error
	}{
		{
			name:    "異常系: 残高不足",
			setup:   func(env *testEnv) { env.fund(t, "alice", 50) },
			req:     &SendGiftRequest{SenderID: "alice", ReceiverID: "bob", GiftKindID: "rose"},
			wantErr: ledger.ErrInsufficientBalance,
		},
		{
			name:    "異常系: アカウント未作成は残高不足",
			req:     &SendGiftRequest{SenderID: "alice", ReceiverID: "bob", GiftKindID: "rose"},
			wantErr: ledger.ErrInsufficientBalance,
		},
		{
			name:    "異常系: ギフト種別が存在しない",
			setup:   func(env *testEnv) { env.fund(t, "alice", 1000) },
			req:     &SendGiftRequest{SenderID: "alice", ReceiverID: "bob", GiftKindID: "tulip"},
			wantErr: catalog.ErrGiftKindNotFound,
		},
		{
			name: "異常系: 無効化されたギフト種別",
			setup: func(env *testEnv) {
				env.fund(t, "alice", 1000)
				env.store.SeedGiftKind(catalog.GiftKind{ID: "retired", Name: "Retired", Cost: 10, Active: false})
			},
			req:     &SendGiftRequest{SenderID: "alice", ReceiverID: "bob", GiftKindID: "retired"},
			wantErr: catalog.ErrGiftKindNotFound,
		},
		{
			name: "異常系: ギフト機能が無効",
			setup: func(env *testEnv) {
				env.fund(t, "alice", 1000)
				env.store.SetGiftingEnabled("alice", false)
			},
			req:     &SendGiftRequest{SenderID: "alice", ReceiverID: "bob", GiftKindID: "rose"},
			wantErr: gift.ErrCapabilityDisabled,
		},
		{
			name:    "異常系: 自分自身への送信",
			setup:   func(env *testEnv) { env.fund(t, "alice", 1000) },
			req:     &SendGiftRequest{SenderID: "alice", ReceiverID: "alice", GiftKindID: "rose"},
			wantErr: ledger.ErrSameAccount,
		},
		{
			name:    "異常系: メッセージが長すぎる",
			setup:   func(env *testEnv) { env.fund(t, "alice", 1000) },
			req:     &SendGiftRequest{SenderID: "alice", ReceiverID: "bob", GiftKindID: "rose", Message: strPtr(strings.Repeat("あ", 501))},
			wantErr: gift.ErrMessageTooLong,
		},
		{
			name:    "異常系: 受信者IDが空",
			setup:   func(env *testEnv) { env.fund(t, "alice", 1000) },
			req:     &SendGiftRequest{SenderID: "alice", ReceiverID: "", GiftKindID: "rose"},
			wantErr: ledger.ErrInvalidUserID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.setup != nil {
				tt.setup(env)
			}
			before := env.store.TotalBalance()
			aliceBefore := env.balance(t, "alice")

			resp, err := env.svc.SendGift(ctx, tt.req)
			assert.Nil(t, resp)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			assert.Equal(t, before, env.store.TotalBalance())
			assert.Equal(t, aliceBefore, env.balance(t, "alice"))
			assert.Equal(t, 0, env.store.GiftCount())
			assert.Empty(t, env.pub.events)
		})
	}
}

func TestGiftApplicationService_SendGift_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, "alice", 1000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.SendGift(context.Background(), &SendGiftRequest{SenderID: "alice", ReceiverID: "bob", GiftKindID: "rose"})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// 1000フラワーで100フラワーのギフトは10回まで
	assert.Equal(t, 10, succeeded)
	assert.Equal(t, int64(0), env.balance(t, "alice"))
	assert.Equal(t, int64(1000), env.balance(t, "bob"))
	assert.Equal(t, 10, env.store.GiftCount())
}
