package viewcache

import (
	"errors"

	"budgetbuddy/internal/models"
)

// Kind is the type of a local mutation.
type Kind int

const (
	KindAdd Kind = iota
	KindUpdate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	}
	return "unknown"
}

// State is the lifecycle position of a mutation. Pending moves to exactly one
// of Committed or RolledBack and never changes again.
type State int

const (
	StatePending State = iota
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	}
	return "unknown"
}

// Mutation is one optimistic change applied to the mirror.
type Mutation struct {
	cache  *Cache
	kind   Kind
	id     string
	record models.Transaction
	prev   models.Transaction
	// ahead holds the ids dated equal to prev that preceded it when a delete
	// was applied.
	ahead map[string]struct{}

	state State
	cause error
	done  chan struct{}
}

// Kind returns the mutation kind.
func (m *Mutation) Kind() Kind { return m.kind }

// ID returns the id of the affected record. For adds this is the placeholder.
func (m *Mutation) ID() string { return m.id }

// Record returns the optimistic record that was applied.
func (m *Mutation) Record() models.Transaction { return m.record }

// State returns the current state.
func (m *Mutation) State() State {
	m.cache.mu.RLock()
	defer m.cache.mu.RUnlock()
	return m.state
}

// Err returns the cause passed to Rollback, or nil.
func (m *Mutation) Err() error {
	m.cache.mu.RLock()
	defer m.cache.mu.RUnlock()
	return m.cause
}

// Done is closed once the mutation is committed or rolled back.
func (m *Mutation) Done() <-chan struct{} { return m.done }

// Commit confirms the mutation. For adds and updates canonical replaces the
// optimistic record in place; for deletes it is ignored.
func (m *Mutation) Commit(canonical *models.Transaction) error {
	c := m.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	if m.state != StatePending {
		return ErrMutationSettled
	}
	if m.kind != KindDelete {
		if canonical == nil {
			return errors.New("viewcache: commit needs the canonical record")
		}
		if i := indexOf(c.mirror, m.id); i >= 0 {
			c.mirror[i] = *canonical
		}
		if m.kind == KindAdd && canonical.ID != m.id {
			c.aliases[m.id] = canonical.ID
		}
	}
	m.finish(StateCommitted, nil)
	return nil
}

// Rollback undoes the mutation so the mirror matches its state before Apply.
func (m *Mutation) Rollback(cause error) error {
	c := m.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	if m.state != StatePending {
		return ErrMutationSettled
	}
	switch m.kind {
	case KindAdd:
		if i := indexOf(c.mirror, m.id); i >= 0 {
			c.mirror = append(c.mirror[:i:i], c.mirror[i+1:]...)
		}
	case KindUpdate:
		if i := indexOf(c.mirror, m.id); i >= 0 {
			c.mirror[i] = m.prev
		}
	case KindDelete:
		c.mirror = insertAt(c.mirror, restoreIndex(c.mirror, m.prev, m.ahead), m.prev)
	}
	m.finish(StateRolledBack, cause)
	return nil
}

// finish records the terminal state and releases the record. The caller holds
// the cache lock.
func (m *Mutation) finish(state State, cause error) {
	m.state = state
	m.cause = cause
	delete(m.cache.busy, m.id)
	close(m.done)
}

// restoreIndex finds where a deleted record goes back into the current mirror.
// Other mutations may have shifted positions since the delete, so the slot is
// found by date, after the equal-dated records that were ahead of it.
func restoreIndex(txs []models.Transaction, tx models.Transaction, ahead map[string]struct{}) int {
	for i := range txs {
		if txs[i].Date.Before(tx.Date) {
			return i
		}
		if txs[i].Date.Equal(tx.Date) {
			if _, ok := ahead[txs[i].ID]; !ok {
				return i
			}
		}
	}
	return len(txs)
}
