package sqlite

// Schema is the layout of an exported account journal
const Schema = `
CREATE TABLE IF NOT EXISTS account_events (
	event_id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	account_type TEXT NOT NULL,
	base_currency TEXT,
	reported INTEGER NOT NULL,
	ts_event INTEGER NOT NULL,
	ts_init INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS balances (
	event_id TEXT NOT NULL REFERENCES account_events(event_id),
	currency TEXT NOT NULL,
	total TEXT NOT NULL,
	locked TEXT NOT NULL,
	free TEXT NOT NULL,
	PRIMARY KEY (event_id, currency)
);

CREATE TABLE IF NOT EXISTS margins (
	event_id TEXT NOT NULL REFERENCES account_events(event_id),
	instrument_id TEXT NOT NULL,
	currency TEXT NOT NULL,
	initial TEXT NOT NULL,
	maintenance TEXT NOT NULL,
	PRIMARY KEY (event_id, instrument_id)
);

CREATE INDEX IF NOT EXISTS idx_account_events_account ON account_events(account_id, ts_event);
`
