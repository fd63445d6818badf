package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/shared"
)

// SnapshotCollectionName holds one document per account
const SnapshotCollectionName = "account_snapshots"

type snapshotDocument struct {
	AccountID shared.AccountID `bson:"_id"`
	TsEvent   uint64           `bson:"ts_event"`
	State     *account.State   `bson:"state"`
	UpdatedAt time.Time        `bson:"updated_at"`
}

// SnapshotRepository implements account.SnapshotRepository for MongoDB
type SnapshotRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewSnapshotRepository(logger *slog.Logger, db *mongo.Database) *SnapshotRepository {
	return &SnapshotRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert replaces the account's snapshot unless the stored one has a later ts_event.
// A stale state is dropped without error.
func (r *SnapshotRepository) Upsert(ctx context.Context, state *account.State) error {
	doc := snapshotDocument{
		AccountID: state.AccountID,
		TsEvent:   state.TsEvent,
		State:     state,
		UpdatedAt: time.Now().UTC(),
	}
	filter := bson.M{
		"_id":      state.AccountID,
		"ts_event": bson.M{"$lte": state.TsEvent},
	}

	_, err := collection(r.db, SnapshotCollectionName).ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		// The filter missed a newer snapshot and the upsert collided with its _id
		if mongo.IsDuplicateKeyError(err) {
			r.logger.Debug("Skipped stale account snapshot",
				"account_id", state.AccountID.String(),
				"ts_event", state.TsEvent)
			return nil
		}
		r.logger.Error("Failed to upsert account snapshot",
			"account_id", state.AccountID.String(),
			"error", err)
		return fmt.Errorf("failed to upsert account snapshot: %w", err)
	}

	return nil
}

// GetByAccountID returns nil when the account has no snapshot
func (r *SnapshotRepository) GetByAccountID(ctx context.Context, accountID shared.AccountID) (*account.State, error) {
	var doc snapshotDocument
	err := collection(r.db, SnapshotCollectionName).FindOne(ctx, bson.M{"_id": accountID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		r.logger.Error("Failed to get account snapshot",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get account snapshot: %w", err)
	}

	return doc.State, nil
}

// List returns one page of snapshots ordered by account id, with the total count
func (r *SnapshotRepository) List(ctx context.Context, page, perPage int) ([]*account.State, int64, error) {
	coll := collection(r.db, SnapshotCollectionName)

	total, err := coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		r.logger.Error("Failed to count account snapshots", "error", err)
		return nil, 0, fmt.Errorf("failed to count account snapshots: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64((page - 1) * perPage)).
		SetLimit(int64(perPage))

	cursor, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		r.logger.Error("Failed to list account snapshots", "error", err)
		return nil, 0, fmt.Errorf("failed to list account snapshots: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []snapshotDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode account snapshots: %w", err)
	}

	states := make([]*account.State, 0, len(docs))
	for _, d := range docs {
		states = append(states, d.State)
	}
	return states, total, nil
}

var _ account.SnapshotRepository = (*SnapshotRepository)(nil)
