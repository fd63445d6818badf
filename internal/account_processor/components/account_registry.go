package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/trading-account-engine/internal/account_processor/service"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/shared"
	"github.com/trading-account-engine/internal/platform/metrics"
)

// AccountRegistryImpl keeps live accounts in memory and rebuilds missing ones
// from the account event log.
type AccountRegistryImpl struct {
	factory   *account.Factory
	eventRepo account.EventRepository
	clock     service.Clock
	retention time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	accounts map[shared.AccountID]account.Account
	locks    map[shared.AccountID]*sync.Mutex
}

func NewAccountRegistry(
	factory *account.Factory,
	eventRepo account.EventRepository,
	clock service.Clock,
	retention time.Duration,
	logger *slog.Logger,
) *AccountRegistryImpl {
	return &AccountRegistryImpl{
		factory:   factory,
		eventRepo: eventRepo,
		clock:     clock,
		retention: retention,
		logger:    logger,
		accounts:  make(map[shared.AccountID]account.Account),
		locks:     make(map[shared.AccountID]*sync.Mutex),
	}
}

// Lock serializes processing for one account
func (r *AccountRegistryImpl) Lock(accountID shared.AccountID) func() {
	r.mu.Lock()
	l, ok := r.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[accountID] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Get returns the live account, rebuilding it from stored events on first use.
// Callers must hold the account lock.
func (r *AccountRegistryImpl) Get(ctx context.Context, accountID shared.AccountID) (account.Account, error) {
	r.mu.Lock()
	acc, ok := r.accounts[accountID]
	r.mu.Unlock()
	if ok {
		return acc, nil
	}

	events, err := r.eventRepo.ListByAccountID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load events for %s: %w", accountID, err)
	}
	if len(events) == 0 {
		return nil, account.ErrAccountNotFound{AccountID: accountID}
	}

	acc, err = r.factory.Rebuild(events)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild account %s: %w", accountID, err)
	}
	r.purge(acc)

	r.logger.Info("Account rebuilt from event log", "account_id", accountID.String(), "events", len(events))
	r.store(acc)
	return acc, nil
}

// Create builds an account from its genesis state. The state is persisted by the caller.
func (r *AccountRegistryImpl) Create(_ context.Context, state *account.State) (account.Account, error) {
	acc, err := r.factory.Create(state)
	if err != nil {
		return nil, err
	}
	r.logger.Info("Account created",
		"account_id", acc.ID().String(),
		"account_type", acc.Type(),
		"calculated", acc.CalculatedAccountState(),
	)
	r.store(acc)
	return acc, nil
}

// Evict drops the live account so the next Get rebuilds it from committed events
func (r *AccountRegistryImpl) Evict(accountID shared.AccountID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[accountID]; !ok {
		return
	}
	delete(r.accounts, accountID)
	metrics.AccountsLoaded.Set(float64(len(r.accounts)))
	r.logger.Debug("Account evicted", "account_id", accountID.String())
}

// PurgeEvents trims the in-memory event history of every live account to the retention window
func (r *AccountRegistryImpl) PurgeEvents() {
	if r.retention <= 0 {
		return
	}
	r.mu.Lock()
	ids := make([]shared.AccountID, 0, len(r.accounts))
	for id := range r.accounts {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		unlock := r.Lock(id)
		r.mu.Lock()
		acc, ok := r.accounts[id]
		r.mu.Unlock()
		if ok {
			r.purge(acc)
		}
		unlock()
	}
}

// RunPurger calls PurgeEvents every interval until ctx is done
func (r *AccountRegistryImpl) RunPurger(ctx context.Context, interval time.Duration) {
	if r.retention <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.PurgeEvents()
		}
	}
}

// Len returns the number of live accounts
func (r *AccountRegistryImpl) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}

func (r *AccountRegistryImpl) purge(acc account.Account) {
	if r.retention <= 0 {
		return
	}
	now := r.clock.TimestampNs()
	window := uint64(r.retention.Nanoseconds())
	if now <= window {
		return
	}
	acc.PurgeEvents(now - window)
}

func (r *AccountRegistryImpl) store(acc account.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[acc.ID()] = acc
	metrics.AccountsLoaded.Set(float64(len(r.accounts)))
}

var _ service.AccountRegistry = (*AccountRegistryImpl)(nil)
