package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trading-account-engine/internal/domain/ledger"
	"github.com/trading-account-engine/internal/domain/shared"
)

const (
	// LedgerCollectionName is the name of the processing ledger collection in MongoDB
	LedgerCollectionName = "processing_ledger"
)

// LedgerRepository implements the ledger.Repository interface for MongoDB
type LedgerRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewLedgerRepository creates a new MongoDB ledger repository
func NewLedgerRepository(logger *slog.Logger, db *mongo.Database) *LedgerRepository {
	return &LedgerRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the unique event index and the per-account listing index
func (r *LedgerRepository) EnsureIndexes(ctx context.Context) error {
	_, err := collection(r.db, LedgerCollectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "event_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create ledger indexes: %w", err)
	}
	return nil
}

// Create stores a new ledger entry after checking for duplicates.
// Returns ErrDuplicateEntry if an entry with the same event ID exists.
func (r *LedgerRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	coll := collection(r.db, LedgerCollectionName)

	existingEntry, err := r.GetByEventID(ctx, entry.EventID)
	if err != nil && !errors.Is(err, ledger.ErrEntryNotFound{}) {
		r.logger.Error("Failed to check for existing ledger entry",
			"event_id", entry.EventID.String(),
			"error", err)
		return fmt.Errorf("failed to check for existing ledger entry: %w", err)
	}

	if existingEntry != nil {
		return ledger.ErrDuplicateEntry{EventID: entry.EventID}
	}

	_, err = coll.InsertOne(ctx, entry)
	if err != nil {
		// Lost a race with a concurrent insert
		if mongo.IsDuplicateKeyError(err) {
			return ledger.ErrDuplicateEntry{EventID: entry.EventID}
		}
		r.logger.Error("Failed to create ledger entry",
			"event_id", entry.EventID.String(),
			"error", err)
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}

	return nil
}

// GetByEventID retrieves a ledger entry by its execution event ID.
// Returns ErrEntryNotFound if the event was never recorded.
func (r *LedgerRepository) GetByEventID(ctx context.Context, eventID uuid.UUID) (*ledger.Entry, error) {
	coll := collection(r.db, LedgerCollectionName)

	var entry ledger.Entry
	err := coll.FindOne(ctx, bson.M{"event_id": eventID}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ledger.ErrEntryNotFound{EventID: eventID}
		}
		r.logger.Error("Failed to get ledger entry",
			"event_id", eventID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return &entry, nil
}

// GetByAccountID retrieves paginated ledger entries for an account.
// Results are sorted by creation time in descending order (newest first).
func (r *LedgerRepository) GetByAccountID(ctx context.Context, accountID shared.AccountID, limit, offset int) ([]*ledger.Entry, error) {
	coll := collection(r.db, LedgerCollectionName)

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := coll.Find(ctx, bson.M{"account_id": accountID}, opts)
	if err != nil {
		r.logger.Error("Failed to get ledger entries",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*ledger.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode ledger entries",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode ledger entries: %w", err)
	}

	return entries, nil
}

// CountByAccountID counts the ledger entries of an account
func (r *LedgerRepository) CountByAccountID(ctx context.Context, accountID shared.AccountID) (int64, error) {
	count, err := collection(r.db, LedgerCollectionName).CountDocuments(ctx, bson.M{"account_id": accountID})
	if err != nil {
		r.logger.Error("Failed to count ledger entries",
			"account_id", accountID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	return count, nil
}

// UpdateStatus updates the entry's status, failure reason, and processed timestamp.
// Returns ErrEntryNotFound if the entry doesn't exist.
func (r *LedgerRepository) UpdateStatus(ctx context.Context, eventID uuid.UUID, status shared.ProcessingStatus, reason string) error {
	update := bson.M{
		"$set": bson.M{
			"status":         status,
			"failure_reason": reason,
			"processed_at":   time.Now().UTC(),
		},
	}

	result, err := collection(r.db, LedgerCollectionName).UpdateOne(ctx, bson.M{"event_id": eventID}, update)
	if err != nil {
		r.logger.Error("Failed to update ledger entry status",
			"event_id", eventID.String(),
			"status", string(status),
			"error", err)
		return fmt.Errorf("failed to update ledger entry status: %w", err)
	}

	if result.MatchedCount == 0 {
		return ledger.ErrEntryNotFound{EventID: eventID}
	}

	return nil
}

var _ ledger.Repository = (*LedgerRepository)(nil)
