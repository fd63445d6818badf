package shared

// AccountType defines the account variants
type AccountType string

const (
	AccountTypeCash    AccountType = "CASH"
	AccountTypeMargin  AccountType = "MARGIN"
	AccountTypeBetting AccountType = "BETTING"
)

// IsCashFamily reports account types that reserve funds as locked balance instead of margin
func (t AccountType) IsCashFamily() bool {
	return t == AccountTypeCash || t == AccountTypeBetting
}

// OrderSide defines the side of an order or fill
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType defines the order types relevant to balance handling
type OrderType string

const (
	OrderTypeMarket          OrderType = "MARKET"
	OrderTypeLimit           OrderType = "LIMIT"
	OrderTypeStopMarket      OrderType = "STOP_MARKET"
	OrderTypeStopLimit       OrderType = "STOP_LIMIT"
	OrderTypeMarketToLimit   OrderType = "MARKET_TO_LIMIT"
	OrderTypeMarketIfTouched OrderType = "MARKET_IF_TOUCHED"
	OrderTypeLimitIfTouched  OrderType = "LIMIT_IF_TOUCHED"
)

// PositionSide defines the side of a position
type PositionSide string

const (
	PositionSideFlat  PositionSide = "FLAT"
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
)

// PriceType selects which side of a quote a rate is read from
type PriceType string

const (
	PriceTypeBid  PriceType = "BID"
	PriceTypeAsk  PriceType = "ASK"
	PriceTypeMid  PriceType = "MID"
	PriceTypeLast PriceType = "LAST"
)

// ConversionPriceType is BID for sells and ASK for buys
func ConversionPriceType(side OrderSide) PriceType {
	if side == OrderSideSell {
		return PriceTypeBid
	}
	return PriceTypeAsk
}

// LiquiditySide defines whether a fill added or removed liquidity
type LiquiditySide string

const (
	LiquiditySideNone  LiquiditySide = "NO_LIQUIDITY_SIDE"
	LiquiditySideMaker LiquiditySide = "MAKER"
	LiquiditySideTaker LiquiditySide = "TAKER"
)

// InstrumentClass defines the broad instrument class
type InstrumentClass string

const (
	InstrumentClassSpot          InstrumentClass = "SPOT"
	InstrumentClassSwap          InstrumentClass = "SWAP"
	InstrumentClassFuture        InstrumentClass = "FUTURE"
	InstrumentClassSportsBetting InstrumentClass = "SPORTS_BETTING"
)

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)

// ProcessingStatus defines the lifecycle of an execution event in the processing ledger
type ProcessingStatus string

const (
	ProcessingStatusProcessing ProcessingStatus = "PROCESSING"
	ProcessingStatusCompleted  ProcessingStatus = "COMPLETED"
	ProcessingStatusFailed     ProcessingStatus = "FAILED"
	ProcessingStatusSkipped    ProcessingStatus = "SKIPPED"
)

// IsTerminal reports statuses after which an event is never processed again
func (s ProcessingStatus) IsTerminal() bool {
	return s == ProcessingStatusCompleted || s == ProcessingStatusFailed || s == ProcessingStatusSkipped
}

// FailureReason classifies why an execution event was not applied
type FailureReason string

const (
	FailureReasonInvalidEvent         FailureReason = "INVALID_EVENT"
	FailureReasonAccountNotFound      FailureReason = "ACCOUNT_NOT_FOUND"
	FailureReasonInstrumentNotFound   FailureReason = "INSTRUMENT_NOT_FOUND"
	FailureReasonInstrumentMismatch   FailureReason = "INSTRUMENT_MISMATCH"
	FailureReasonInsufficientRateData FailureReason = "INSUFFICIENT_RATE_DATA"
	FailureReasonBalanceViolation     FailureReason = "BALANCE_VIOLATION"
	FailureReasonRejectedState        FailureReason = "REJECTED_STATE"
	FailureReasonNotCalculated        FailureReason = "NOT_CALCULATED"
)
