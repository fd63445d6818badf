// Package postgres provides PostgreSQL implementations of the domain repositories.
// It handles the append-only account event log and the account state outbox
// while keeping both inside the caller's transaction.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/shared"
	"github.com/trading-account-engine/internal/platform/persistence"
)

const uniqueViolation = "23505"

// AccountEventRepository implements the account.EventRepository interface for PostgreSQL
type AccountEventRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewAccountEventRepository creates a new PostgreSQL account event repository
func NewAccountEventRepository(logger *slog.Logger, db *persistence.PostgresDB) account.EventRepository {
	return &AccountEventRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx, so appends commit with the outbox entry
func (r *AccountEventRepository) WithTx(tx pgx.Tx) account.EventRepository {
	return &AccountEventRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Append stores state as the next event of its account.
// Returns ErrDuplicateEvent if the source execution event was already stored.
func (r *AccountEventRepository) Append(ctx context.Context, sourceEventID uuid.UUID, state *account.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode account state: %w", err)
	}

	query := `
		INSERT INTO account_events (event_id, source_event_id, account_id, account_type, payload, ts_event, ts_init)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.querier.Exec(ctx, query,
		state.EventID,
		sourceEventID,
		string(state.AccountID),
		string(state.AccountType),
		payload,
		int64(state.TsEvent),
		int64(state.TsInit),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return account.ErrDuplicateEvent{SourceEventID: sourceEventID}
		}
		r.logger.Error("Failed to append account event",
			"account_id", state.AccountID.String(),
			"event_id", state.EventID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to append account event: %w", err)
	}

	return nil
}

// ListByAccountID retrieves every event of an account in append order
func (r *AccountEventRepository) ListByAccountID(ctx context.Context, accountID shared.AccountID) ([]*account.State, error) {
	query := `
		SELECT payload
		FROM account_events
		WHERE account_id = $1
		ORDER BY id ASC
	`

	rows, err := r.querier.Query(ctx, query, string(accountID))
	if err != nil {
		r.logger.Error("Failed to list account events", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to list account events: %w", err)
	}
	defer rows.Close()

	var states []*account.State
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			r.logger.Error("Failed to scan account event", "account_id", accountID.String(), "error", err)
			return nil, fmt.Errorf("failed to scan account event: %w", err)
		}
		state, err := decodeState(payload)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over account events", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("error iterating over account events: %w", err)
	}

	return states, nil
}

// GetLatest retrieves the most recent event of an account.
// Returns ErrAccountNotFound if the account has no events.
func (r *AccountEventRepository) GetLatest(ctx context.Context, accountID shared.AccountID) (*account.State, error) {
	query := `
		SELECT payload
		FROM account_events
		WHERE account_id = $1
		ORDER BY id DESC
		LIMIT 1
	`

	var payload []byte
	err := r.querier.QueryRow(ctx, query, string(accountID)).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{AccountID: accountID}
		}
		r.logger.Error("Failed to get latest account event", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to get latest account event: %w", err)
	}

	return decodeState(payload)
}

// ListAccountIDs returns every account with at least one event, sorted by id
func (r *AccountEventRepository) ListAccountIDs(ctx context.Context) ([]shared.AccountID, error) {
	query := `
		SELECT DISTINCT account_id
		FROM account_events
		ORDER BY account_id
	`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list account ids", "error", err)
		return nil, fmt.Errorf("failed to list account ids: %w", err)
	}
	defer rows.Close()

	var ids []shared.AccountID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, shared.AccountID(id))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over account ids: %w", err)
	}

	return ids, nil
}

func decodeState(payload []byte) (*account.State, error) {
	var state account.State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("failed to decode account event: %w", err)
	}
	return &state, nil
}
