// Package viewcache keeps a local mirror of a user's transactions and derives
// the same aggregates the server computes, so views update immediately after
// a local edit while the server request is still in flight.
package viewcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"budgetbuddy/internal/aggregate"
	"budgetbuddy/internal/models"
	"budgetbuddy/internal/uuid"
)

var (
	// ErrMutationFailed wraps every remote failure that caused a rollback.
	ErrMutationFailed = errors.New("viewcache: mutation failed")
	// ErrMutationSettled is returned when committing or rolling back a
	// mutation that is already committed or rolled back.
	ErrMutationSettled = errors.New("viewcache: mutation already settled")
	// ErrNotCached is returned for updates or deletes of an unknown record.
	ErrNotCached = errors.New("viewcache: transaction not in cache")
	// ErrPendingMutations is returned by Load while mutations are in flight.
	ErrPendingMutations = errors.New("viewcache: mutations pending")
)

// Remote is the server-side transaction store the cache mirrors.
type Remote interface {
	ListTransactions(ctx context.Context, r aggregate.DateRange) ([]models.Transaction, error)
	CreateTransaction(ctx context.Context, tx models.Transaction) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, tx models.Transaction) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
}

// Cache is safe for concurrent use. The mirror is ordered newest first.
type Cache struct {
	remote Remote
	now    func() time.Time

	mu     sync.RWMutex
	mirror []models.Transaction
	// busy holds one channel per record with a pending mutation; it is closed
	// when that mutation settles.
	busy map[string]chan struct{}
	// aliases maps committed placeholder ids to their canonical ids.
	aliases map[string]string
}

// New creates an empty cache backed by remote.
func New(remote Remote) *Cache {
	return &Cache{
		remote:  remote,
		now:     time.Now,
		busy:    make(map[string]chan struct{}),
		aliases: make(map[string]string),
	}
}

// Load replaces the mirror with the server's transactions inside r.
func (c *Cache) Load(ctx context.Context, r aggregate.DateRange) error {
	if err := r.Validate(); err != nil {
		return err
	}
	txs, err := c.remote.ListTransactions(ctx, r)
	if err != nil {
		return fmt.Errorf("loading transactions: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.busy) > 0 {
		return ErrPendingMutations
	}
	c.mirror = append([]models.Transaction(nil), txs...)
	c.aliases = make(map[string]string)
	return nil
}

// Transactions returns a copy of the mirror.
func (c *Cache) Transactions() []models.Transaction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Transaction{}, c.mirror...)
}

// Pending reports how many mutations are in flight.
func (c *Cache) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.busy)
}

// Balance recomputes income, expenses and balance over the mirror.
func (c *Cache) Balance() aggregate.Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return aggregate.Summarize(c.mirror)
}

// CategoryBreakdown recomputes per-category totals for typ over the mirror.
func (c *Cache) CategoryBreakdown(typ models.TransactionType) []aggregate.CategoryTotal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return aggregate.BreakdownByCategory(c.mirror, typ)
}

// MonthlyTrend recomputes the sparse monthly trend over the mirror.
func (c *Cache) MonthlyTrend() []aggregate.MonthlyTotal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return aggregate.MonthlyTrend(c.mirror)
}

// MonthlySeries recomputes the dense series of months buckets ending at now.
func (c *Cache) MonthlySeries(now time.Time, months int) []aggregate.MonthBucket {
	c.mu.RLock()
	defer c.mu.RUnlock()
	window := aggregate.Filter(c.mirror, aggregate.SeriesWindow(now, months))
	return aggregate.DenseSeries(aggregate.MonthlyTrend(window), now, months)
}

// Add creates tx optimistically and confirms it with the server. On success
// the placeholder is replaced by the canonical record, which is returned.
func (c *Cache) Add(ctx context.Context, tx models.Transaction) (*models.Transaction, error) {
	m, err := c.Apply(ctx, KindAdd, tx)
	if err != nil {
		return nil, err
	}
	canonical, err := c.remote.CreateTransaction(ctx, m.Record())
	return c.settle(m, canonical, err)
}

// Update replaces the cached record with tx and confirms it with the server.
func (c *Cache) Update(ctx context.Context, tx models.Transaction) (*models.Transaction, error) {
	m, err := c.Apply(ctx, KindUpdate, tx)
	if err != nil {
		return nil, err
	}
	canonical, err := c.remote.UpdateTransaction(ctx, m.Record())
	return c.settle(m, canonical, err)
}

// Delete removes the record with id and confirms it with the server.
func (c *Cache) Delete(ctx context.Context, id string) error {
	m, err := c.Apply(ctx, KindDelete, models.Transaction{Base: models.Base{ID: id}})
	if err != nil {
		return err
	}
	if err := c.remote.DeleteTransaction(ctx, m.ID()); err != nil {
		_ = m.Rollback(err)
		return fmt.Errorf("%w: %w", ErrMutationFailed, err)
	}
	return m.Commit(nil)
}

func (c *Cache) settle(m *Mutation, canonical *models.Transaction, err error) (*models.Transaction, error) {
	if err == nil && canonical == nil {
		err = errors.New("empty server response")
	}
	if err != nil {
		_ = m.Rollback(err)
		return nil, fmt.Errorf("%w: %w", ErrMutationFailed, err)
	}
	if err := m.Commit(canonical); err != nil {
		return nil, err
	}
	return canonical, nil
}

// Apply performs kind on the mirror immediately and returns the Pending
// mutation. Adds are given a placeholder id. A mutation on a record that
// already has one pending waits until that one settles or ctx is done.
func (c *Cache) Apply(ctx context.Context, kind Kind, tx models.Transaction) (*Mutation, error) {
	switch kind {
	case KindAdd:
		return c.applyAdd(tx)
	case KindUpdate, KindDelete:
		return c.applyExisting(ctx, kind, tx)
	default:
		return nil, fmt.Errorf("viewcache: unknown mutation kind %d", kind)
	}
}

func (c *Cache) applyAdd(tx models.Transaction) (*Mutation, error) {
	tx = c.normalize(tx)
	tx.ID = uuid.NewPlaceholder()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.mirror = insertAt(c.mirror, insertionIndex(c.mirror, tx), tx)
	return c.track(KindAdd, tx.ID, tx, models.Transaction{}), nil
}

func (c *Cache) applyExisting(ctx context.Context, kind Kind, tx models.Transaction) (*Mutation, error) {
	c.mu.Lock()
	for {
		id := c.resolve(tx.ID)
		wait, busy := c.busy[id]
		if !busy {
			tx.ID = id
			break
		}
		c.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		c.mu.Lock()
	}
	defer c.mu.Unlock()

	i := indexOf(c.mirror, tx.ID)
	if i < 0 {
		return nil, ErrNotCached
	}
	prev := c.mirror[i]

	if kind == KindDelete {
		ahead := make(map[string]struct{})
		for _, other := range c.mirror[:i] {
			if other.Date.Equal(prev.Date) {
				ahead[other.ID] = struct{}{}
			}
		}
		c.mirror = append(c.mirror[:i:i], c.mirror[i+1:]...)
		m := c.track(KindDelete, prev.ID, prev, prev)
		m.ahead = ahead
		return m, nil
	}

	if tx.Date.IsZero() {
		tx.Date = prev.Date
	}
	next := c.normalize(tx)
	next.UserID = prev.UserID
	next.CreatedAt = prev.CreatedAt
	c.mirror[i] = next
	return c.track(KindUpdate, next.ID, next, prev), nil
}

// track registers a pending mutation. The caller holds c.mu.
func (c *Cache) track(kind Kind, id string, record, prev models.Transaction) *Mutation {
	done := make(chan struct{})
	c.busy[id] = done
	return &Mutation{
		cache:  c,
		kind:   kind,
		id:     id,
		record: record,
		prev:   prev,
		state:  StatePending,
		done:   done,
	}
}

// resolve follows a committed placeholder id to its canonical id.
func (c *Cache) resolve(id string) string {
	if canonical, ok := c.aliases[id]; ok {
		return canonical
	}
	return id
}

// normalize applies the same input rules as the server so local views agree
// with the server before the response arrives.
func (c *Cache) normalize(tx models.Transaction) models.Transaction {
	tx.Category = aggregate.NormalizeCategory(tx.Category)
	if tx.Date.IsZero() {
		tx.Date = c.now().UTC()
	} else {
		tx.Date = tx.Date.UTC()
	}
	return tx
}

func indexOf(txs []models.Transaction, id string) int {
	for i := range txs {
		if txs[i].ID == id {
			return i
		}
	}
	return -1
}

// insertionIndex keeps the mirror newest first; a new record goes ahead of
// existing records with the same date.
func insertionIndex(txs []models.Transaction, tx models.Transaction) int {
	for i := range txs {
		if !txs[i].Date.After(tx.Date) {
			return i
		}
	}
	return len(txs)
}

func insertAt(txs []models.Transaction, i int, tx models.Transaction) []models.Transaction {
	if i > len(txs) {
		i = len(txs)
	}
	out := make([]models.Transaction, 0, len(txs)+1)
	out = append(out, txs[:i]...)
	out = append(out, tx)
	return append(out, txs[i:]...)
}
