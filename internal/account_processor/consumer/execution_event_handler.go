package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/trading-account-engine/internal/account_processor/service"
	"github.com/trading-account-engine/internal/domain/execution"
	"github.com/trading-account-engine/internal/platform/messaging/consumers"
	"github.com/trading-account-engine/internal/platform/messaging/producers"
)

// ExecutionEventHandler handles execution events consumed from Kafka
type ExecutionEventHandler struct {
	processingService service.ProcessingService
	producer          producers.DeadLetterPublisher
	sourceTopic       string
	logger            *slog.Logger
}

// errMissingEventID marks events that cannot be keyed in the ledger
var errMissingEventID = errors.New("execution event has no event_id")

// NewExecutionEventHandler creates a new handler
func NewExecutionEventHandler(
	logger *slog.Logger,
	processingService service.ProcessingService,
	producer producers.DeadLetterPublisher,
	sourceTopic string,
) *ExecutionEventHandler {
	return &ExecutionEventHandler{
		processingService: processingService,
		producer:          producer,
		sourceTopic:       sourceTopic,
		logger:            logger,
	}
}

// HandleMessage decodes and processes one execution event. Messages that cannot be
// decoded or carry no event id go to the dead letter queue and are acknowledged;
// every other rejection is recorded in the ledger by the processing service.
func (h *ExecutionEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event execution.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return h.deadLetter(ctx, producers.DeadLetter{
			SourceTopic: h.sourceTopic,
			Key:         key,
			Value:       value,
			Reason:      producers.ReasonUndecodable,
			Cause:       err,
		})
	}
	if event.EventID == uuid.Nil {
		return h.deadLetter(ctx, producers.DeadLetter{
			SourceTopic: h.sourceTopic,
			Key:         key,
			Value:       value,
			Reason:      producers.ReasonInvalidEvent,
			Cause:       errMissingEventID,
		})
	}

	logger := h.logger
	if event.CorrelationID != "" {
		logger = h.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Debug("Received execution event",
		"event_id", event.EventID.String(),
		"account_id", event.AccountID.String(),
		"instrument_id", event.InstrumentID.String(),
		"type", event.Type,
	)

	if err := h.processingService.ProcessEvent(ctx, &event); err != nil {
		if errors.Is(err, service.ErrInsufficientRateData{}) {
			return fmt.Errorf("processing event %s deferred: %w: %w", event.EventID.String(), consumers.ErrRetryLater, err)
		}
		logger.Error("Failed to process execution event",
			"event_id", event.EventID.String(),
			"account_id", event.AccountID.String(),
			"error", err,
		)
		return fmt.Errorf("processing event %s failed: %w", event.EventID.String(), err)
	}
	return nil
}

func (h *ExecutionEventHandler) deadLetter(ctx context.Context, letter producers.DeadLetter) error {
	key := string(letter.Key)
	h.logger.Error("Unprocessable execution message", "message_key", key, "reason", letter.Reason, "error", letter.Cause)

	err := h.producer.PublishToDLQ(ctx, letter)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, producers.ErrDLQDisabled):
		h.logger.Warn("DLQ disabled, dropping unprocessable message", "message_key", key)
		return nil
	default:
		h.logger.Error("Failed to publish message to DLQ", "dlq_error", err, "message_key", key)
		return fmt.Errorf("failed to dead-letter message %s: %w", key, err)
	}
}
