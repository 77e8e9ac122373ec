package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"paygate/internal/adapter/storage/memory"
	"paygate/internal/core/domain"
	"paygate/internal/core/ports"
	"paygate/internal/core/ports/mocks"
	"paygate/pkg/apperror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func seedLedger(t *testing.T, balances map[string]int64) *memory.Ledger {
	t.Helper()
	l := memory.NewLedger()
	for id, b := range balances {
		require.NoError(t, l.CreateFundingSource(context.Background(), &domain.FundingSource{ID: id, Balance: decimal.NewFromInt(b)}))
	}
	return l
}

func assertBalance(t *testing.T, l ports.Ledger, id, want string) {
	t.Helper()
	fs, err := l.GetFundingSource(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, fs, "funding source %s", id)
	assert.Equal(t, want, fs.Balance.String(), "balance of %s", id)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.From(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

func payment(key, payer, payee string, amount int64) ports.TransferRequest {
	return ports.TransferRequest{
		PayerID:        payer,
		PayeeID:        payee,
		Operation:      "add",
		Amount:         decimal.NewFromInt(amount),
		IdempotencyKey: key,
	}
}

func newTestSettlement(l ports.Ledger, cfg SettlementConfig) *SettlementServiceImpl {
	return NewSettlementService(l, nil, nil, nil, cfg, newTestLogger())
}

func TestSettlement_Transfer_Commits(t *testing.T) {
	l := seedLedger(t, map[string]int64{"alice": 10, "provider": 0})
	svc := newTestSettlement(l, SettlementConfig{})

	st, err := svc.Transfer(context.Background(), payment("alice:add:r1", "alice", "provider", 3))
	require.NoError(t, err)

	assert.False(t, st.Replayed)
	assert.Equal(t, domain.TransferOutcomeCommitted, st.Record.Outcome)
	assert.Equal(t, domain.TransferKindPayment, st.Record.Kind)
	assert.NotNil(t, st.Record.FinalizedAt)
	assertBalance(t, l, "alice", "7")
	assertBalance(t, l, "provider", "3")
}

func TestSettlement_Transfer_ReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := seedLedger(t, map[string]int64{"alice": 10, "provider": 0})
	svc := newTestSettlement(l, SettlementConfig{})

	first, err := svc.Transfer(ctx, payment("alice:add:r1", "alice", "provider", 3))
	require.NoError(t, err)

	second, err := svc.Transfer(ctx, payment("alice:add:r1", "alice", "provider", 3))
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Record.ID, second.Record.ID)
	assertBalance(t, l, "alice", "7")
	assertBalance(t, l, "provider", "3")

	_, total, err := l.ListTransfers(ctx, ports.TransferListParams{FundingSourceID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestSettlement_Transfer_KeyReuseWithDifferentParameters(t *testing.T) {
	ctx := context.Background()
	l := seedLedger(t, map[string]int64{"alice": 10, "provider": 0})
	svc := newTestSettlement(l, SettlementConfig{})

	_, err := svc.Transfer(ctx, payment("k1", "alice", "provider", 3))
	require.NoError(t, err)

	_, err = svc.Transfer(ctx, payment("k1", "alice", "provider", 4))
	assertCode(t, err, "PAY_003")
	assertBalance(t, l, "alice", "7")
}

func TestSettlement_Transfer_KeyReuseWithDifferentArguments(t *testing.T) {
	ctx := context.Background()
	l := seedLedger(t, map[string]int64{"alice": 10, "provider": 0})
	svc := newTestSettlement(l, SettlementConfig{})

	first := payment("alice:add:r1", "alice", "provider", 1)
	first.ArgumentsDigest = domain.DigestArguments([]byte(`{"a":1,"b":2}`))
	_, err := svc.Transfer(ctx, first)
	require.NoError(t, err)

	same := first
	same.ArgumentsDigest = domain.DigestArguments([]byte(`{ "b": 2, "a": 1 }`))
	st, err := svc.Transfer(ctx, same)
	require.NoError(t, err)
	assert.True(t, st.Replayed)

	other := first
	other.ArgumentsDigest = domain.DigestArguments([]byte(`{"a":5,"b":6}`))
	_, err = svc.Transfer(ctx, other)
	assertCode(t, err, "PAY_003")

	assertBalance(t, l, "alice", "9")
	assertBalance(t, l, "provider", "1")
}

func TestSettlement_Transfer_ReplayOfRefundedPaymentRejected(t *testing.T) {
	ctx := context.Background()
	l := seedLedger(t, map[string]int64{"alice": 10, "provider": 0})
	svc := NewSettlementService(l, memory.NewIdempotencyCache(), nil, nil, SettlementConfig{}, newTestLogger())

	_, err := svc.Transfer(ctx, payment("alice:add:r1", "alice", "provider", 3))
	require.NoError(t, err)

	_, err = svc.Transfer(ctx, ports.TransferRequest{
		Kind:           domain.TransferKindRefund,
		PayerID:        "provider",
		PayeeID:        "alice",
		Operation:      "add",
		Amount:         decimal.NewFromInt(3),
		IdempotencyKey: "alice:add:r1:refund",
	})
	require.NoError(t, err)

	_, err = svc.Transfer(ctx, payment("alice:add:r1", "alice", "provider", 3))
	assertCode(t, err, "PAY_007")

	// The refund itself stays replayable.
	st, err := svc.Transfer(ctx, ports.TransferRequest{
		Kind:           domain.TransferKindRefund,
		PayerID:        "provider",
		PayeeID:        "alice",
		Operation:      "add",
		Amount:         decimal.NewFromInt(3),
		IdempotencyKey: "alice:add:r1:refund",
	})
	require.NoError(t, err)
	assert.True(t, st.Replayed)

	assertBalance(t, l, "alice", "10")
	assertBalance(t, l, "provider", "0")
}

func TestSettlement_Transfer_InsufficientFundsLeavesBalances(t *testing.T) {
	ctx := context.Background()
	l := seedLedger(t, map[string]int64{"alice": 1, "provider": 5})
	svc := newTestSettlement(l, SettlementConfig{})

	_, err := svc.Transfer(ctx, payment("alice:add:r1", "alice", "provider", 3))
	assertCode(t, err, "PAY_001")

	assertBalance(t, l, "alice", "1")
	assertBalance(t, l, "provider", "5")

	outcome := domain.TransferOutcomeInsufficientFunds
	records, total, err := l.ListTransfers(ctx, ports.TransferListParams{Outcome: &outcome})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, "alice:add:r1", records[0].IdempotencyKey)

	committed, err := l.GetCommittedTransfer(ctx, "alice:add:r1")
	require.NoError(t, err)
	assert.Nil(t, committed)
}

func TestSettlement_Transfer_UnknownParty(t *testing.T) {
	ctx := context.Background()
	l := seedLedger(t, map[string]int64{"alice": 10, "provider": 0})
	svc := newTestSettlement(l, SettlementConfig{})

	_, err := svc.Transfer(ctx, payment("k1", "mallory", "provider", 1))
	assertCode(t, err, "PAY_004")
	assert.Contains(t, err.Error(), "mallory")

	_, err = svc.Transfer(ctx, payment("k2", "alice", "nobody", 1))
	assertCode(t, err, "PAY_004")
	assert.Contains(t, err.Error(), "nobody")
	assertBalance(t, l, "alice", "10")

	outcome := domain.TransferOutcomeUnknownParty
	_, total, err := l.ListTransfers(ctx, ports.TransferListParams{Outcome: &outcome})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestSettlement_Transfer_Validation(t *testing.T) {
	l := seedLedger(t, map[string]int64{"alice": 10})
	svc := newTestSettlement(l, SettlementConfig{})

	tests := []struct {
		name string
		req  ports.TransferRequest
		code string
	}{
		{"self payment", payment("k", "alice", "alice", 1), "PAY_005"},
		{"negative amount", payment("k", "alice", "provider", -1), "PAY_002"},
		{"missing key", payment("", "alice", "provider", 1), "REQ_001"},
		{"missing payee", payment("k", "alice", "", 1), "REQ_001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Transfer(context.Background(), tt.req)
			assertCode(t, err, tt.code)
		})
	}
	assertBalance(t, l, "alice", "10")
}

func TestSettlement_Transfer_ZeroAmountIsRecorded(t *testing.T) {
	ctx := context.Background()
	l := seedLedger(t, map[string]int64{"alice": 0, "provider": 0})
	svc := newTestSettlement(l, SettlementConfig{})

	st, err := svc.Transfer(ctx, payment("alice:ping:r1", "alice", "provider", 0))
	require.NoError(t, err)
	assert.True(t, st.Record.Amount.IsZero())

	committed, err := l.GetCommittedTransfer(ctx, "alice:ping:r1")
	require.NoError(t, err)
	require.NotNil(t, committed)
	assertBalance(t, l, "alice", "0")
}

func TestSettlement_Transfer_TimesOutClosed(t *testing.T) {
	ctx := context.Background()
	l := seedLedger(t, map[string]int64{"alice": 10, "provider": 0})
	svc := newTestSettlement(l, SettlementConfig{Timeout: 50 * time.Millisecond})

	holder, err := l.Begin(ctx)
	require.NoError(t, err)
	_, err = holder.LockFundingSources(ctx, "alice")
	require.NoError(t, err)

	_, err = svc.Transfer(ctx, payment("alice:add:r1", "alice", "provider", 3))
	assertCode(t, err, "SYS_002")

	require.NoError(t, holder.Rollback(ctx))
	assertBalance(t, l, "alice", "10")
	assertBalance(t, l, "provider", "0")

	committed, err := l.GetCommittedTransfer(ctx, "alice:add:r1")
	require.NoError(t, err)
	assert.Nil(t, committed)
}

func TestSettlement_Transfer_RetriesVersionConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedger(ctrl)
	conflicted := mocks.NewMockLedgerTx(ctrl)
	clean := mocks.NewMockLedgerTx(ctrl)

	sources := func(context.Context, ...string) (map[string]*domain.FundingSource, error) {
		return map[string]*domain.FundingSource{
			"alice":    {ID: "alice", Balance: decimal.NewFromInt(10), Version: 1},
			"provider": {ID: "provider", Balance: decimal.Zero, Version: 1},
		}, nil
	}

	mockLedger.EXPECT().GetCommittedTransfer(gomock.Any(), "k1").Return(nil, nil)
	gomock.InOrder(
		mockLedger.EXPECT().Begin(gomock.Any()).Return(conflicted, nil),
		mockLedger.EXPECT().Begin(gomock.Any()).Return(clean, nil),
	)

	conflicted.EXPECT().LockFundingSources(gomock.Any(), "provider", "alice").DoAndReturn(sources)
	conflicted.EXPECT().GetCommittedTransfer(gomock.Any(), "k1").Return(nil, nil)
	conflicted.EXPECT().UpdateBalance(gomock.Any(), gomock.Any()).Return(ports.ErrVersionConflict)
	conflicted.EXPECT().Rollback(gomock.Any()).Return(nil)

	clean.EXPECT().LockFundingSources(gomock.Any(), "provider", "alice").DoAndReturn(sources)
	clean.EXPECT().GetCommittedTransfer(gomock.Any(), "k1").Return(nil, nil)
	clean.EXPECT().UpdateBalance(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	clean.EXPECT().AppendTransfer(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, r *domain.TransferRecord) error {
			assert.Equal(t, domain.TransferOutcomeCommitted, r.Outcome)
			return nil
		},
	)
	clean.EXPECT().Commit(gomock.Any()).Return(nil)
	clean.EXPECT().Rollback(gomock.Any()).Return(nil)

	svc := newTestSettlement(mockLedger, SettlementConfig{MaxRetries: 1})
	st, err := svc.Transfer(context.Background(), payment("k1", "alice", "provider", 3))
	require.NoError(t, err)
	assert.Equal(t, "k1", st.Record.IdempotencyKey)
}

func TestSettlement_Transfer_RetriesExhausted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedger(ctrl)
	tx := mocks.NewMockLedgerTx(ctrl)

	mockLedger.EXPECT().GetCommittedTransfer(gomock.Any(), "k1").Return(nil, nil)
	mockLedger.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	tx.EXPECT().LockFundingSources(gomock.Any(), gomock.Any()).Return(map[string]*domain.FundingSource{
		"alice":    {ID: "alice", Balance: decimal.NewFromInt(10)},
		"provider": {ID: "provider", Balance: decimal.Zero},
	}, nil)
	tx.EXPECT().GetCommittedTransfer(gomock.Any(), "k1").Return(nil, nil)
	tx.EXPECT().UpdateBalance(gomock.Any(), gomock.Any()).Return(ports.ErrVersionConflict)
	tx.EXPECT().Rollback(gomock.Any()).Return(nil)

	svc := newTestSettlement(mockLedger, SettlementConfig{MaxRetries: 0})
	_, err := svc.Transfer(context.Background(), payment("k1", "alice", "provider", 3))
	assertCode(t, err, "SYS_001")
}

func TestSettlement_Transfer_LedgerUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedger(ctrl)
	mockLedger.EXPECT().GetCommittedTransfer(gomock.Any(), "k1").Return(nil, fmt.Errorf("connection refused"))

	svc := newTestSettlement(mockLedger, SettlementConfig{})
	_, err := svc.Transfer(context.Background(), payment("k1", "alice", "provider", 3))
	assertCode(t, err, "SYS_001")
}

func TestSettlement_Transfer_ReplayFromCacheTakesNoLocks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedger(ctrl)
	mockCache := mocks.NewMockIdempotencyCache(ctrl)

	record := domain.NewTransferRecord(domain.TransferKindPayment, "k1", "alice", "provider", "add", decimal.NewFromInt(3))
	record.Finalize(domain.TransferOutcomeCommitted)
	data, err := json.Marshal(record)
	require.NoError(t, err)

	mockCache.EXPECT().Get(gomock.Any(), "k1").Return(data, nil)
	mockCache.EXPECT().Get(gomock.Any(), "k1:refund").Return(nil, nil)
	mockLedger.EXPECT().GetCommittedTransfer(gomock.Any(), "k1:refund").Return(nil, nil)

	svc := NewSettlementService(mockLedger, mockCache, nil, nil, SettlementConfig{}, newTestLogger())
	st, err := svc.Transfer(context.Background(), payment("k1", "alice", "provider", 3))
	require.NoError(t, err)
	assert.True(t, st.Replayed)
	assert.Equal(t, record.ID, st.Record.ID)
}

func TestSettlement_Transfer_CacheFailureFallsThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockCache := mocks.NewMockIdempotencyCache(ctrl)
	mockCache.EXPECT().Get(gomock.Any(), "k1").Return(nil, fmt.Errorf("redis down"))
	mockCache.EXPECT().Set(gomock.Any(), "k1", gomock.Any(), 24*time.Hour).Return(fmt.Errorf("redis down"))

	l := seedLedger(t, map[string]int64{"alice": 10, "provider": 0})
	svc := NewSettlementService(l, mockCache, nil, nil, SettlementConfig{}, newTestLogger())

	_, err := svc.Transfer(context.Background(), payment("k1", "alice", "provider", 3))
	require.NoError(t, err)
	assertBalance(t, l, "alice", "7")
}

func TestSettlement_Transfer_NotifiesAndRecordsMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	notifier := mocks.NewMockSettlementNotifier(ctrl)
	collector := mocks.NewMockCollector(ctrl)

	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Do(func(_ context.Context, r *domain.TransferRecord) {
		assert.Equal(t, "k1", r.IdempotencyKey)
	}).Times(1)
	collector.EXPECT().RecordSettlement("COMMITTED", gomock.Any())
	collector.EXPECT().RecordSettlement("REPLAYED", gomock.Any())
	collector.EXPECT().RecordSettlement("PAY_001", gomock.Any())

	l := seedLedger(t, map[string]int64{"alice": 10, "provider": 0})
	svc := NewSettlementService(l, memory.NewIdempotencyCache(), notifier, collector, SettlementConfig{}, newTestLogger())

	ctx := context.Background()
	_, err := svc.Transfer(ctx, payment("k1", "alice", "provider", 3))
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, payment("k1", "alice", "provider", 3))
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, payment("k2", "alice", "provider", 100))
	assertCode(t, err, "PAY_001")
}

func TestSettlement_Transfer_ConcurrentSameKeyCommitsOnce(t *testing.T) {
	l := seedLedger(t, map[string]int64{"alice": 100, "provider": 0})
	svc := newTestSettlement(l, SettlementConfig{MaxRetries: 3})

	const callers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	fresh := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := svc.Transfer(context.Background(), payment("alice:add:same", "alice", "provider", 5))
			if !assert.NoError(t, err) {
				return
			}
			if !st.Replayed {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fresh)
	assertBalance(t, l, "alice", "95")
	assertBalance(t, l, "provider", "5")
}

func TestSettlement_Transfer_ConcurrentConservesTotal(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	balances := make(map[string]int64, len(ids))
	for _, id := range ids {
		balances[id] = 20
	}
	l := seedLedger(t, balances)
	svc := newTestSettlement(l, SettlementConfig{MaxRetries: 5, Timeout: 10 * time.Second})

	const transfers = 200
	var wg sync.WaitGroup
	for i := 0; i < transfers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(int64(i)))
			payer := ids[r.Intn(len(ids))]
			payee := ids[r.Intn(len(ids))]
			if payer == payee {
				return
			}
			_, err := svc.Transfer(context.Background(), payment(fmt.Sprintf("fuzz-%d", i), payer, payee, int64(r.Intn(8))))
			if err != nil {
				appErr, ok := apperror.From(err)
				if assert.True(t, ok) {
					assert.Equal(t, "PAY_001", appErr.Code)
				}
			}
		}(i)
	}
	wg.Wait()

	total := decimal.Zero
	for _, id := range ids {
		fs, err := l.GetFundingSource(context.Background(), id)
		require.NoError(t, err)
		assert.False(t, fs.Balance.IsNegative(), "balance of %s", id)
		total = total.Add(fs.Balance)
	}
	assert.Equal(t, "100", total.String())
}

func TestSettlement_Deposit(t *testing.T) {
	ctx := context.Background()
	l := seedLedger(t, map[string]int64{"alice": 1})
	svc := newTestSettlement(l, SettlementConfig{})

	st, err := svc.Deposit(ctx, "alice", decimal.RequireFromString("2.5"), "deposit:alice:ref-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ExternalPayer, st.Record.PayerID)
	assert.Equal(t, domain.TransferKindDeposit, st.Record.Kind)
	assertBalance(t, l, "alice", "3.5")

	st, err = svc.Deposit(ctx, "alice", decimal.RequireFromString("2.5"), "deposit:alice:ref-1")
	require.NoError(t, err)
	assert.True(t, st.Replayed)
	assertBalance(t, l, "alice", "3.5")

	_, err = svc.Deposit(ctx, "alice", decimal.Zero, "deposit:alice:ref-2")
	assertCode(t, err, "PAY_002")

	_, err = svc.Deposit(ctx, "nobody", decimal.NewFromInt(1), "deposit:nobody:ref-1")
	assertCode(t, err, "PAY_004")
}

func TestSettlement_Transfer_AutoProvision(t *testing.T) {
	l := memory.NewLedger()
	svc := newTestSettlement(l, SettlementConfig{AutoProvision: true, InitialBalance: decimal.NewFromInt(10)})

	_, err := svc.Transfer(context.Background(), payment("newbie:add:r1", "newbie", "provider", 4))
	require.NoError(t, err)

	assertBalance(t, l, "newbie", "6")
	assertBalance(t, l, "provider", "4")
}
