// Package sqlite writes account state history into a standalone SQLite journal
// for offline inspection.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/trading-account-engine/internal/domain/account"
)

// Exporter appends account states to a SQLite file
type Exporter struct {
	db *sql.DB
}

// NewExporter opens (or creates) the journal at path and applies the schema
func NewExporter(path string) (*Exporter, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Exporter{db: db}, nil
}

// Export writes states in one transaction. States already in the journal are skipped,
// so re-exporting an account only adds its newer events. Returns the number written.
func (e *Exporter) Export(ctx context.Context, states []*account.State) (int, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	written := 0
	for _, s := range states {
		var base sql.NullString
		if s.BaseCurrency != nil {
			base = sql.NullString{String: s.BaseCurrency.Code, Valid: true}
		}

		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO account_events
			(event_id, account_id, account_type, base_currency, reported, ts_event, ts_init)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			s.EventID.String(), s.AccountID.String(), string(s.AccountType), base, s.Reported, s.TsEvent, s.TsInit,
		)
		if err != nil {
			return 0, fmt.Errorf("insert event %s: %w", s.EventID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}

		for _, b := range s.Balances {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO balances (event_id, currency, total, locked, free)
				VALUES (?, ?, ?, ?, ?)`,
				s.EventID.String(), b.Currency().Code, b.Total.Decimal().String(), b.Locked.Decimal().String(), b.Free.Decimal().String(),
			); err != nil {
				return 0, fmt.Errorf("insert balance %s/%s: %w", s.EventID, b.Currency().Code, err)
			}
		}
		for _, m := range s.Margins {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO margins (event_id, instrument_id, currency, initial, maintenance)
				VALUES (?, ?, ?, ?, ?)`,
				s.EventID.String(), m.InstrumentID.String(), m.Currency().Code, m.Initial.Decimal().String(), m.Maintenance.Decimal().String(),
			); err != nil {
				return 0, fmt.Errorf("insert margin %s/%s: %w", s.EventID, m.InstrumentID, err)
			}
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}

// CountEvents returns the number of exported events of an account
func (e *Exporter) CountEvents(ctx context.Context, accountID string) (int, error) {
	var n int
	err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM account_events WHERE account_id = ?`, accountID).Scan(&n)
	return n, err
}

func (e *Exporter) Close() error {
	return e.db.Close()
}
