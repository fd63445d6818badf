package handler

import (
	"github.com/trading-account-engine/internal/domain/trading"
)

// OpenAccountRequest represents a request to open an account from its starting balances
type OpenAccountRequest struct {
	AccountID    string           `json:"account_id" binding:"required"`
	AccountType  string           `json:"account_type" binding:"required,oneof=CASH MARGIN BETTING"`
	BaseCurrency string           `json:"base_currency,omitempty" binding:"omitempty,min=3,max=5"`
	Balances     []BalanceRequest `json:"balances" binding:"required,min=1,dive"`
}

// BalanceRequest is one starting balance. Locked defaults to zero.
type BalanceRequest struct {
	Currency string `json:"currency" binding:"required"`
	Total    string `json:"total" binding:"required"`
	Locked   string `json:"locked,omitempty"`
}

// SubmitExecutionRequest represents an execution event submitted for processing.
// EventID is generated when omitted; a resubmitted id is deduplicated.
type SubmitExecutionRequest struct {
	EventID      string             `json:"event_id,omitempty" binding:"omitempty,uuid"`
	Type         string             `json:"type" binding:"required,oneof=FILL ORDERS POSITIONS"`
	AccountID    string             `json:"account_id" binding:"required"`
	InstrumentID string             `json:"instrument_id" binding:"required"`
	Fill         *trading.Fill      `json:"fill,omitempty"`
	Orders       []trading.Order    `json:"orders,omitempty"`
	Positions    []trading.Position `json:"positions,omitempty"`
	TsEvent      uint64             `json:"ts_event"`
}

// PublishQuoteRequest represents a top of book update
type PublishQuoteRequest struct {
	InstrumentID string `json:"instrument_id" binding:"required"`
	Bid          string `json:"bid" binding:"required"`
	Ask          string `json:"ask" binding:"required"`
	TsEvent      uint64 `json:"ts_event"`
}

// BalanceResponse is one currency balance of an account
type BalanceResponse struct {
	Currency string `json:"currency"`
	Total    string `json:"total"`
	Locked   string `json:"locked"`
	Free     string `json:"free"`
}

// MarginResponse is the margin reserved for one instrument
type MarginResponse struct {
	InstrumentID string `json:"instrument_id"`
	Currency     string `json:"currency"`
	Initial      string `json:"initial"`
	Maintenance  string `json:"maintenance"`
}

// AccountStateResponse represents an account state in API responses
type AccountStateResponse struct {
	AccountID    string            `json:"account_id"`
	AccountType  string            `json:"account_type"`
	BaseCurrency string            `json:"base_currency,omitempty"`
	Balances     []BalanceResponse `json:"balances"`
	Margins      []MarginResponse  `json:"margins"`
	Reported     bool              `json:"reported"`
	EventID      string            `json:"event_id"`
	TsEvent      uint64            `json:"ts_event"`
}

// ExecutionResponse represents the processing outcome of an execution event
type ExecutionResponse struct {
	EventID       string `json:"event_id"`
	AccountID     string `json:"account_id"`
	InstrumentID  string `json:"instrument_id,omitempty"`
	EventType     string `json:"event_type"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	StateEventID  string `json:"state_event_id,omitempty"`
	CreatedAt     string `json:"created_at"`
	ProcessedAt   string `json:"processed_at,omitempty"`
}

// QuoteResponse represents a stored quote
type QuoteResponse struct {
	InstrumentID string `json:"instrument_id"`
	Bid          string `json:"bid"`
	Ask          string `json:"ask"`
	TsEvent      uint64 `json:"ts_event"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

// MarginInitialParams is a what-if order priced against an account
type MarginInitialParams struct {
	InstrumentID string `form:"instrument_id" binding:"required"`
	Quantity     string `form:"quantity" binding:"required"`
	Price        string `form:"price" binding:"required"`
}

// MarginInitialResponse is the balance the order would reserve
type MarginInitialResponse struct {
	AccountID    string `json:"account_id"`
	InstrumentID string `json:"instrument_id"`
	Currency     string `json:"currency"`
	MarginInit   string `json:"margin_init"`
}
