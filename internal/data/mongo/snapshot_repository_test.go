package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
)

func snapshotState(t testing.TB, total string, tsEvent uint64) *account.State {
	t.Helper()
	totalMoney := money.MustParse(total, money.BTC)
	locked := money.MustParse("0.25", money.BTC)
	bal, err := money.NewAccountBalance(totalMoney, locked)
	require.NoError(t, err)

	state, err := account.NewState("BINANCE-001", shared.AccountTypeCash, nil,
		[]money.AccountBalance{bal}, nil, true, tsEvent, tsEvent)
	require.NoError(t, err)
	return state
}

func TestDecimalCodec_RoundTrip(t *testing.T) {
	type wrapper struct {
		Value decimal.Decimal `bson:"value"`
	}
	for _, in := range []string{"0", "1.5", "0.00000001", "-123456789.123456789", "1000000.00"} {
		t.Run(in, func(t *testing.T) {
			raw, err := bson.MarshalWithRegistry(Registry, wrapper{Value: decimal.RequireFromString(in)})
			require.NoError(t, err)

			var generic bson.M
			require.NoError(t, bson.Unmarshal(raw, &generic))
			assert.IsType(t, primitive.Decimal128{}, generic["value"])

			var out wrapper
			require.NoError(t, bson.UnmarshalWithRegistry(Registry, raw, &out))
			assert.True(t, decimal.RequireFromString(in).Equal(out.Value), "got %s", out.Value)
		})
	}

	t.Run("FromString", func(t *testing.T) {
		raw, err := bson.Marshal(bson.M{"value": "42.10"})
		require.NoError(t, err)

		var out wrapper
		require.NoError(t, bson.UnmarshalWithRegistry(Registry, raw, &out))
		assert.Equal(t, "42.1", out.Value.String())
	})
}

func TestSnapshotRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("Upsert", func(mt *mtest.T) {
		repo := NewSnapshotRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		require.NoError(mt, repo.Upsert(ctx, snapshotState(mt, "1.5", 100)))
	})

	mt.Run("UpsertStale", func(mt *mtest.T) {
		repo := NewSnapshotRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key"}))

		assert.NoError(mt, repo.Upsert(ctx, snapshotState(mt, "1.5", 50)))
	})

	mt.Run("UpsertFailure", func(mt *mtest.T) {
		repo := NewSnapshotRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "bad value", Name: "BadValue"}))

		assert.ErrorContains(mt, repo.Upsert(ctx, snapshotState(mt, "1.5", 50)), "failed to upsert account snapshot")
	})

	mt.Run("GetByAccountID", func(mt *mtest.T) {
		repo := NewSnapshotRepository(newTestLogger(), mt.DB)
		state := snapshotState(mt, "1.5", 100)
		doc := toDoc(mt, snapshotDocument{AccountID: state.AccountID, TsEvent: 100, State: state, UpdatedAt: time.Now()})
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, SnapshotCollectionName), mtest.FirstBatch, doc))

		got, err := repo.GetByAccountID(ctx, state.AccountID)
		require.NoError(mt, err)
		require.NotNil(mt, got)
		assert.Equal(mt, state.EventID, got.EventID)
		assert.Nil(mt, got.BaseCurrency)
		bal, ok := got.Balance(money.BTC)
		require.True(mt, ok)
		assert.Equal(mt, "1.50000000 BTC", bal.Total.String())
		assert.Equal(mt, "1.25000000 BTC", bal.Free.String())
	})

	mt.Run("GetByAccountIDMissing", func(mt *mtest.T) {
		repo := NewSnapshotRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, SnapshotCollectionName), mtest.FirstBatch))

		got, err := repo.GetByAccountID(ctx, "BINANCE-002")
		assert.NoError(mt, err)
		assert.Nil(mt, got)
	})

	mt.Run("List", func(mt *mtest.T) {
		repo := NewSnapshotRepository(newTestLogger(), mt.DB)
		state := snapshotState(mt, "2", 100)
		doc := toDoc(mt, snapshotDocument{AccountID: state.AccountID, TsEvent: 100, State: state, UpdatedAt: time.Now()})

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns(mt, SnapshotCollectionName), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(3)}}),
			mtest.CreateCursorResponse(0, ns(mt, SnapshotCollectionName), mtest.FirstBatch, doc),
		)

		states, total, err := repo.List(ctx, 2, 2)
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), total)
		require.Len(mt, states, 1)
		assert.Equal(mt, state.AccountID, states[0].AccountID)
	})
}
