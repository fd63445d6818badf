package components

import (
	"fmt"
	"log/slog"

	"github.com/trading-account-engine/internal/account_processor/service"
	"github.com/trading-account-engine/internal/config"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/instrument"
	"github.com/trading-account-engine/internal/domain/ledger"
	"github.com/trading-account-engine/internal/domain/margin"
	"github.com/trading-account-engine/internal/domain/outbox"
	"github.com/trading-account-engine/internal/domain/shared"
)

// NewFactoryConfig translates the accounting settings into account factory overrides
func NewFactoryConfig(cfg config.AccountingConfig) (*account.FactoryConfig, error) {
	model, err := margin.NewModel(cfg.MarginModel)
	if err != nil {
		return nil, err
	}

	fc := account.NewFactoryConfig()
	fc.MarginModel = model
	fc.DefaultLeverage = cfg.DefaultLeverage

	for _, issuer := range cfg.CalculatedIssuers {
		if err := fc.RegisterCalculatedAccount(issuer, true); err != nil {
			return nil, err
		}
	}
	for _, issuer := range cfg.BorrowingIssuers {
		if err := fc.RegisterAccountType(issuer, borrowingConstructor(fc)); err != nil {
			return nil, err
		}
	}
	return fc, nil
}

// borrowingConstructor builds cash-family accounts that may go negative
func borrowingConstructor(fc *account.FactoryConfig) account.Constructor {
	return func(state *account.State, calculated bool) (account.Account, error) {
		switch state.AccountType {
		case shared.AccountTypeCash:
			return account.NewCashAccount(state, calculated, account.WithBorrowing(true))
		case shared.AccountTypeBetting:
			return account.NewBettingAccount(state, calculated, account.WithBorrowing(true))
		case shared.AccountTypeMargin:
			return account.NewMarginAccount(state, calculated,
				account.WithMarginModel(fc.MarginModel),
				account.WithDefaultLeverage(fc.DefaultLeverage),
			)
		default:
			return nil, fmt.Errorf("%w: %q", account.ErrUnknownAccountType, state.AccountType)
		}
	}
}

// ProcessingDeps are the stores and market views the processing service is built on
type ProcessingDeps struct {
	DB          service.TxBeginner
	EventRepo   account.EventRepository
	OutboxRepo  outbox.Repository
	LedgerRepo  ledger.Repository
	Instruments instrument.Provider
	Cache       service.Cache
	Positions   service.PositionTracker
	Clock       service.Clock
}

// CreateProcessingService wires the processing service and its account registry.
// The service runs on a worker pool unless the pool cannot be created.
func CreateProcessingService(deps ProcessingDeps, logger *slog.Logger, cfg *config.Config) (service.ProcessingService, *AccountRegistryImpl, error) {
	factoryCfg, err := NewFactoryConfig(cfg.Accounting)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid accounting config: %w", err)
	}

	registry := NewAccountRegistry(
		account.NewFactory(factoryCfg),
		deps.EventRepo,
		deps.Clock,
		cfg.Accounting.EventRetention,
		logger.With("component", "account_registry"),
	)

	baseService := service.NewProcessingService(
		deps.DB,
		NewEventValidator(deps.OutboxRepo, deps.LedgerRepo, logger),
		registry,
		NewAccountsManager(deps.Clock, deps.Cache, logger),
		deps.Instruments,
		deps.Positions,
		NewStateRecorder(deps.EventRepo, deps.OutboxRepo, logger),
		NewFailureRecorder(deps.LedgerRepo, logger),
		logger,
	)

	workerPoolService, err := service.NewWorkerPoolProcessingService(
		baseService,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService, registry, nil
	}

	logger.Info("Created worker pool processing service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService, registry, nil
}
