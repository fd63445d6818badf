package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/trading-account-engine/internal/config"
	"github.com/trading-account-engine/internal/domain/outbox"
	"github.com/trading-account-engine/internal/domain/shared"
)

// Poller processes pending outbox messages
type Poller struct {
	outboxRepo       outbox.Repository
	statePublisher   StatePublisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	statePublisher StatePublisher,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		statePublisher:   statePublisher,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
	}
}

// Start drains the outbox once, then polls every interval until ctx is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting outbox poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		if err := p.processPendingMessages(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("Outbox batch failed", "error", err)
		}
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox poller stopped")
			return
		case <-ticker.C:
		}
	}
}

// processPendingMessages publishes one batch in creation order. Once a message
// of an account fails, later messages of that account wait for the next tick
// so consumers never see its states out of order.
func (p *Poller) processPendingMessages(ctx context.Context) error {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	if len(messages) == 0 {
		return nil
	}

	blocked := make(map[shared.AccountID]struct{})
	published := 0
	for _, msg := range messages {
		if _, ok := blocked[msg.AccountID]; ok {
			continue
		}

		logger := p.logger.With("outbox_id", msg.ID, "account_id", msg.AccountID.String())
		if msg.CorrelationID != "" {
			logger = logger.With("correlation_id", msg.CorrelationID)
		}

		if err := p.statePublisher.Publish(ctx, msg); err != nil {
			blocked[msg.AccountID] = struct{}{}
			p.recordFailure(ctx, logger, msg, err)
			continue
		}
		published++
	}

	p.logger.Debug("Outbox batch done",
		"fetched", len(messages),
		"published", published,
		"blocked_accounts", len(blocked),
	)
	return nil
}

// recordFailure counts the attempt and parks the message once it is out of retries
func (p *Poller) recordFailure(ctx context.Context, logger *slog.Logger, msg *outbox.Message, cause error) {
	attempts := msg.Attempts + 1
	logger.Error("Failed to publish account state", "event_id", msg.EventID.String(), "attempt", attempts, "error", cause)

	if err := p.outboxRepo.IncrementAttempts(ctx, msg.ID); err != nil {
		logger.Error("Failed to increment outbox attempts", "error", err)
		return
	}
	if attempts < p.maxRetryAttempts {
		return
	}

	logger.Warn("Outbox message out of retries, marking FAILED_TO_PUBLISH", "attempts", attempts)
	if err := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); err != nil {
		logger.Error("Failed to mark outbox message FAILED_TO_PUBLISH", "error", err)
	}
}
