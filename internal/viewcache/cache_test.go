package viewcache

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"budgetbuddy/internal/aggregate"
	"budgetbuddy/internal/models"
	"budgetbuddy/internal/uuid"
)

// mockRemote is a hand-written Remote with overridable behavior.
type mockRemote struct {
	mu       sync.Mutex
	listFn   func(ctx context.Context, r aggregate.DateRange) ([]models.Transaction, error)
	createFn func(ctx context.Context, tx models.Transaction) (*models.Transaction, error)
	updateFn func(ctx context.Context, tx models.Transaction) (*models.Transaction, error)
	deleteFn func(ctx context.Context, id string) error
	created  []models.Transaction
}

func (m *mockRemote) ListTransactions(ctx context.Context, r aggregate.DateRange) ([]models.Transaction, error) {
	if m.listFn != nil {
		return m.listFn(ctx, r)
	}
	return nil, nil
}

func (m *mockRemote) CreateTransaction(ctx context.Context, tx models.Transaction) (*models.Transaction, error) {
	m.mu.Lock()
	m.created = append(m.created, tx)
	m.mu.Unlock()
	if m.createFn != nil {
		return m.createFn(ctx, tx)
	}
	tx.ID = uuid.New()
	return &tx, nil
}

func (m *mockRemote) UpdateTransaction(ctx context.Context, tx models.Transaction) (*models.Transaction, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, tx)
	}
	return &tx, nil
}

func (m *mockRemote) DeleteTransaction(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

var errServer = errors.New("server rejected request")

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// scenario is ordered newest first, as the server lists it.
func scenario() []models.Transaction {
	return []models.Transaction{
		{Base: models.Base{ID: "t3"}, Type: models.TransactionTypeExpense, Amount: 30, Category: "food", Date: day(2024, 2, 1)},
		{Base: models.Base{ID: "t1"}, Type: models.TransactionTypeExpense, Amount: 50, Category: "food", Date: day(2024, 1, 15)},
		{Base: models.Base{ID: "t2"}, Type: models.TransactionTypeIncome, Amount: 1000, Category: "salary", Date: day(2024, 1, 1)},
	}
}

func loadedCache(t *testing.T, remote *mockRemote) *Cache {
	t.Helper()
	if remote.listFn == nil {
		remote.listFn = func(context.Context, aggregate.DateRange) ([]models.Transaction, error) {
			return scenario(), nil
		}
	}
	c := New(remote)
	c.now = func() time.Time { return day(2024, 3, 10) }
	if err := c.Load(context.Background(), aggregate.DateRange{}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func TestViewsMatchServerAggregates(t *testing.T) {
	c := loadedCache(t, &mockRemote{})

	if got, want := c.Balance(), aggregate.NewSummary(1000, 80); got != want {
		t.Errorf("Balance = %+v, want %+v", got, want)
	}
	if got := c.Balance(); got != aggregate.Summarize(scenario()) {
		t.Errorf("Balance = %+v differs from server summary", got)
	}

	wantBreakdown := []aggregate.CategoryTotal{{Category: "food", Total: 80, Count: 2}}
	if got := c.CategoryBreakdown(models.TransactionTypeExpense); !reflect.DeepEqual(got, wantBreakdown) {
		t.Errorf("CategoryBreakdown = %+v, want %+v", got, wantBreakdown)
	}

	wantTrend := []aggregate.MonthlyTotal{
		{Year: 2024, Month: 1, Type: models.TransactionTypeIncome, Total: 1000},
		{Year: 2024, Month: 1, Type: models.TransactionTypeExpense, Total: 50},
		{Year: 2024, Month: 2, Type: models.TransactionTypeExpense, Total: 30},
	}
	if got := c.MonthlyTrend(); !reflect.DeepEqual(got, wantTrend) {
		t.Errorf("MonthlyTrend = %+v, want %+v", got, wantTrend)
	}

	series := c.MonthlySeries(day(2024, 3, 10), 3)
	wantSeries := []aggregate.MonthBucket{
		{Year: 2024, Month: 1, Income: 1000, Expense: 50},
		{Year: 2024, Month: 2, Income: 0, Expense: 30},
		{Year: 2024, Month: 3, Income: 0, Expense: 0},
	}
	if !reflect.DeepEqual(series, wantSeries) {
		t.Errorf("MonthlySeries = %+v, want %+v", series, wantSeries)
	}
}

func TestEmptyCacheYieldsZeroViews(t *testing.T) {
	c := New(&mockRemote{})
	if got := c.Balance(); got != (aggregate.Summary{}) {
		t.Errorf("Balance = %+v, want zero", got)
	}
	if got := c.CategoryBreakdown(models.TransactionTypeExpense); got == nil || len(got) != 0 {
		t.Errorf("CategoryBreakdown = %#v, want empty non-nil", got)
	}
}

func TestAddShowsPendingThenSwapsPlaceholder(t *testing.T) {
	remote := &mockRemote{}
	c := loadedCache(t, remote)

	m, err := c.Apply(context.Background(), KindAdd, models.Transaction{
		Type: models.TransactionTypeExpense, Amount: 20, Category: "  ", Date: day(2024, 2, 10),
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !uuid.IsPlaceholder(m.ID()) {
		t.Fatalf("expected placeholder id, got %q", m.ID())
	}
	if m.State() != StatePending {
		t.Errorf("state = %s, want pending", m.State())
	}
	if got := c.Balance().Expenses; got != 100 {
		t.Errorf("pending expenses = %d, want 100", got)
	}
	if got := c.Transactions()[0].Category; got != aggregate.OtherCategory {
		t.Errorf("category = %q, want %q", got, aggregate.OtherCategory)
	}

	canonical := m.Record()
	canonical.ID = uuid.New()
	if err := m.Commit(&canonical); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	txs := c.Transactions()
	if len(txs) != 4 {
		t.Fatalf("len = %d, want 4", len(txs))
	}
	if txs[0].ID != canonical.ID {
		t.Errorf("txs[0].ID = %q, want canonical %q", txs[0].ID, canonical.ID)
	}
	for _, tx := range txs {
		if uuid.IsPlaceholder(tx.ID) {
			t.Errorf("placeholder %q left in mirror", tx.ID)
		}
	}
	if got := c.Balance().Expenses; got != 100 {
		t.Errorf("committed expenses = %d, want 100", got)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", c.Pending())
	}
}

func TestAddInsertsByDate(t *testing.T) {
	c := loadedCache(t, &mockRemote{})
	m, err := c.Apply(context.Background(), KindAdd, models.Transaction{
		Type: models.TransactionTypeIncome, Amount: 5, Category: "gift", Date: day(2024, 1, 10),
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	txs := c.Transactions()
	if txs[2].ID != m.ID() {
		t.Errorf("placeholder at wrong position: %v", []string{txs[0].ID, txs[1].ID, txs[2].ID, txs[3].ID})
	}
}

func TestAddRollbackRestoresMirror(t *testing.T) {
	remote := &mockRemote{
		createFn: func(context.Context, models.Transaction) (*models.Transaction, error) {
			return nil, errServer
		},
	}
	c := loadedCache(t, remote)
	before := c.Transactions()

	_, err := c.Add(context.Background(), models.Transaction{
		Type: models.TransactionTypeExpense, Amount: 20, Category: "food", Date: day(2024, 2, 10),
	})
	if !errors.Is(err, ErrMutationFailed) {
		t.Fatalf("err = %v, want ErrMutationFailed", err)
	}
	if !errors.Is(err, errServer) {
		t.Errorf("err = %v, want cause to be preserved", err)
	}
	if after := c.Transactions(); !reflect.DeepEqual(before, after) {
		t.Errorf("mirror after rollback = %+v, want %+v", after, before)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", c.Pending())
	}
}

func TestAddCommitsServerRecord(t *testing.T) {
	remote := &mockRemote{}
	c := loadedCache(t, remote)

	got, err := c.Add(context.Background(), models.Transaction{
		Type: models.TransactionTypeIncome, Amount: 200, Category: "bonus", Date: day(2024, 2, 20),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if uuid.IsPlaceholder(got.ID) {
		t.Errorf("returned placeholder id %q", got.ID)
	}
	if len(remote.created) != 1 || !uuid.IsPlaceholder(remote.created[0].ID) {
		t.Errorf("remote saw %+v", remote.created)
	}
	if len(c.Transactions()) != 4 {
		t.Errorf("len = %d, want 4", len(c.Transactions()))
	}
}

func TestUpdateRollbackRestoresPreviousValue(t *testing.T) {
	remote := &mockRemote{
		updateFn: func(context.Context, models.Transaction) (*models.Transaction, error) {
			return nil, errServer
		},
	}
	c := loadedCache(t, remote)
	before := c.Transactions()

	_, err := c.Update(context.Background(), models.Transaction{
		Base: models.Base{ID: "t1"}, Type: models.TransactionTypeExpense, Amount: 500, Category: "rent",
	})
	if !errors.Is(err, ErrMutationFailed) {
		t.Fatalf("err = %v, want ErrMutationFailed", err)
	}
	if after := c.Transactions(); !reflect.DeepEqual(before, after) {
		t.Errorf("mirror after rollback = %+v, want %+v", after, before)
	}
}

func TestUpdateKeepsDateWhenOmitted(t *testing.T) {
	c := loadedCache(t, &mockRemote{})
	got, err := c.Update(context.Background(), models.Transaction{
		Base: models.Base{ID: "t1"}, Type: models.TransactionTypeExpense, Amount: 70, Category: "food",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !got.Date.Equal(day(2024, 1, 15)) {
		t.Errorf("date = %v, want 2024-01-15", got.Date)
	}
	if got := c.Balance().Expenses; got != 100 {
		t.Errorf("expenses = %d, want 100", got)
	}
}

func TestDeleteRollbackRestoresPosition(t *testing.T) {
	remote := &mockRemote{
		deleteFn: func(context.Context, string) error { return errServer },
	}
	c := loadedCache(t, remote)
	before := c.Transactions()

	err := c.Delete(context.Background(), "t1")
	if !errors.Is(err, ErrMutationFailed) {
		t.Fatalf("err = %v, want ErrMutationFailed", err)
	}
	if after := c.Transactions(); !reflect.DeepEqual(before, after) {
		t.Errorf("mirror after rollback = %+v, want %+v", after, before)
	}
}

func TestInterleavedRollbacksKeepOrder(t *testing.T) {
	c := loadedCache(t, &mockRemote{})
	ctx := context.Background()
	before := c.Transactions()

	del, err := c.Apply(ctx, KindDelete, models.Transaction{Base: models.Base{ID: "t2"}})
	if err != nil {
		t.Fatalf("Apply delete: %v", err)
	}
	add, err := c.Apply(ctx, KindAdd, models.Transaction{
		Type: models.TransactionTypeIncome, Amount: 10, Category: "gift", Date: day(2030, 1, 1),
	})
	if err != nil {
		t.Fatalf("Apply add: %v", err)
	}

	if err := del.Rollback(errServer); err != nil {
		t.Fatalf("Rollback delete: %v", err)
	}
	if err := add.Rollback(errServer); err != nil {
		t.Fatalf("Rollback add: %v", err)
	}
	if after := c.Transactions(); !reflect.DeepEqual(before, after) {
		t.Errorf("mirror after rollbacks = %v, want %v", ids(after), ids(before))
	}
}

func TestDeleteRollbackKeepsOrderAmongSameDate(t *testing.T) {
	same := day(2024, 1, 15)
	remote := &mockRemote{
		listFn: func(context.Context, aggregate.DateRange) ([]models.Transaction, error) {
			return []models.Transaction{
				{Base: models.Base{ID: "a"}, Type: models.TransactionTypeExpense, Amount: 1, Date: same},
				{Base: models.Base{ID: "b"}, Type: models.TransactionTypeExpense, Amount: 2, Date: same},
				{Base: models.Base{ID: "c"}, Type: models.TransactionTypeExpense, Amount: 3, Date: same},
			}, nil
		},
	}
	c := loadedCache(t, remote)
	ctx := context.Background()
	before := c.Transactions()

	del, err := c.Apply(ctx, KindDelete, models.Transaction{Base: models.Base{ID: "b"}})
	if err != nil {
		t.Fatalf("Apply delete: %v", err)
	}
	first, err := c.Apply(ctx, KindDelete, models.Transaction{Base: models.Base{ID: "a"}})
	if err != nil {
		t.Fatalf("Apply delete a: %v", err)
	}
	if err := first.Rollback(errServer); err != nil {
		t.Fatalf("Rollback a: %v", err)
	}
	if err := del.Rollback(errServer); err != nil {
		t.Fatalf("Rollback b: %v", err)
	}
	if after := c.Transactions(); !reflect.DeepEqual(before, after) {
		t.Errorf("mirror after rollbacks = %v, want %v", ids(after), ids(before))
	}
}

func ids(txs []models.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}

func TestDeleteCommit(t *testing.T) {
	c := loadedCache(t, &mockRemote{})
	if err := c.Delete(context.Background(), "t2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := c.Balance(); got != aggregate.NewSummary(0, 80) {
		t.Errorf("Balance = %+v", got)
	}
}

func TestUnknownRecord(t *testing.T) {
	c := loadedCache(t, &mockRemote{})
	if _, err := c.Apply(context.Background(), KindUpdate, models.Transaction{Base: models.Base{ID: "missing"}}); !errors.Is(err, ErrNotCached) {
		t.Errorf("update err = %v, want ErrNotCached", err)
	}
	if err := c.Delete(context.Background(), "missing"); !errors.Is(err, ErrNotCached) {
		t.Errorf("delete err = %v, want ErrNotCached", err)
	}
}

func TestSettledMutationIsFinal(t *testing.T) {
	c := loadedCache(t, &mockRemote{})
	ctx := context.Background()

	m, err := c.Apply(ctx, KindDelete, models.Transaction{Base: models.Base{ID: "t3"}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := m.Rollback(errServer); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if m.State() != StateRolledBack || !errors.Is(m.Err(), errServer) {
		t.Errorf("state = %s err = %v", m.State(), m.Err())
	}
	select {
	case <-m.Done():
	default:
		t.Error("Done not closed after rollback")
	}
	if err := m.Commit(nil); !errors.Is(err, ErrMutationSettled) {
		t.Errorf("Commit after rollback = %v, want ErrMutationSettled", err)
	}
	if err := m.Rollback(errServer); !errors.Is(err, ErrMutationSettled) {
		t.Errorf("second Rollback = %v, want ErrMutationSettled", err)
	}
	if len(c.Transactions()) != 3 {
		t.Errorf("len = %d, want 3", len(c.Transactions()))
	}
}

func TestMutationsOnSameRecordAreSerialized(t *testing.T) {
	c := loadedCache(t, &mockRemote{})
	ctx := context.Background()

	first, err := c.Apply(ctx, KindUpdate, models.Transaction{
		Base: models.Base{ID: "t1"}, Type: models.TransactionTypeExpense, Amount: 60, Category: "food",
	})
	if err != nil {
		t.Fatalf("Apply first: %v", err)
	}

	type result struct {
		m   *Mutation
		err error
	}
	second := make(chan result, 1)
	go func() {
		m, err := c.Apply(ctx, KindUpdate, models.Transaction{
			Base: models.Base{ID: "t1"}, Type: models.TransactionTypeExpense, Amount: 90, Category: "food",
		})
		second <- result{m, err}
	}()

	select {
	case <-second:
		t.Fatal("second mutation applied while first was pending")
	case <-time.After(50 * time.Millisecond):
	}

	if err := first.Rollback(errServer); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	var r result
	select {
	case r = <-second:
	case <-time.After(time.Second):
		t.Fatal("second mutation never applied")
	}
	if r.err != nil {
		t.Fatalf("Apply second: %v", r.err)
	}
	if got := c.Balance().Expenses; got != 120 {
		t.Errorf("expenses = %d, want 120", got)
	}

	// Rolling back the second restores the value the first rollback left.
	if err := r.m.Rollback(errServer); err != nil {
		t.Fatalf("Rollback second: %v", err)
	}
	if got := c.Balance().Expenses; got != 80 {
		t.Errorf("expenses = %d, want 80", got)
	}
}

func TestWaitingMutationHonorsContext(t *testing.T) {
	c := loadedCache(t, &mockRemote{})
	if _, err := c.Apply(context.Background(), KindDelete, models.Transaction{Base: models.Base{ID: "t2"}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Apply(ctx, KindUpdate, models.Transaction{Base: models.Base{ID: "t2"}, Amount: 1})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestPlaceholderResolvesAfterCommit(t *testing.T) {
	c := loadedCache(t, &mockRemote{})
	ctx := context.Background()

	m, err := c.Apply(ctx, KindAdd, models.Transaction{
		Type: models.TransactionTypeExpense, Amount: 15, Category: "coffee", Date: day(2024, 2, 5),
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	placeholder := m.ID()
	canonical := m.Record()
	canonical.ID = uuid.New()
	if err := m.Commit(&canonical); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := c.Delete(ctx, placeholder); err != nil {
		t.Fatalf("Delete by placeholder: %v", err)
	}
	for _, tx := range c.Transactions() {
		if tx.ID == canonical.ID {
			t.Errorf("canonical record %q still cached", canonical.ID)
		}
	}
}

func TestLoadRefusedWhilePending(t *testing.T) {
	c := loadedCache(t, &mockRemote{})
	m, err := c.Apply(context.Background(), KindAdd, models.Transaction{Type: models.TransactionTypeIncome, Amount: 1})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := c.Load(context.Background(), aggregate.DateRange{}); !errors.Is(err, ErrPendingMutations) {
		t.Errorf("Load err = %v, want ErrPendingMutations", err)
	}
	if err := m.Rollback(errServer); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if err := c.Load(context.Background(), aggregate.DateRange{}); err != nil {
		t.Errorf("Load after settle: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	c := New(&mockRemote{
		listFn: func(context.Context, aggregate.DateRange) ([]models.Transaction, error) {
			return nil, errServer
		},
	})
	if err := c.Load(context.Background(), aggregate.DateRange{}); !errors.Is(err, errServer) {
		t.Errorf("err = %v, want errServer", err)
	}

	start, end := day(2024, 2, 1), day(2024, 1, 1)
	if err := c.Load(context.Background(), aggregate.DateRange{Start: &start, End: &end}); !errors.Is(err, aggregate.ErrInvalidRange) {
		t.Errorf("err = %v, want ErrInvalidRange", err)
	}
}
