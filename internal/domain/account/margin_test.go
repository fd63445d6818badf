package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trading-account-engine/internal/domain/instrument/instrumenttest"
	"github.com/trading-account-engine/internal/domain/margin"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
	"github.com/trading-account-engine/internal/domain/trading"
)

func newMarginAccount(t *testing.T, base *money.Currency, balances ...money.AccountBalance) *MarginAccount {
	t.Helper()
	acc, err := NewMarginAccount(newState(t, "SIM-001", shared.AccountTypeMargin, base, balances...), true)
	require.NoError(t, err)
	return acc
}

func TestMarginAccount_Leverage(t *testing.T) {
	acc := newMarginAccount(t, ccyPtr(money.USD), bal("1000000", "0", money.USD))
	id := instrumenttest.AUDUSD().ID()

	assert.Empty(t, acc.Leverages())
	assert.True(t, acc.Leverage(id).Equal(d("1")))
	assert.True(t, acc.IsUnleveraged(id))
	assert.Len(t, acc.Leverages(), 1, "default leverage is recorded on first use")

	require.NoError(t, acc.SetLeverage(id, d("50")))
	assert.True(t, acc.Leverage(id).Equal(d("50")))
	assert.False(t, acc.IsUnleveraged(id))

	assert.ErrorIs(t, acc.SetLeverage(id, d("0.5")), margin.ErrInvalidLeverage)
	assert.ErrorIs(t, acc.SetDefaultLeverage(d("0")), margin.ErrInvalidLeverage)

	require.NoError(t, acc.SetDefaultLeverage(d("20")))
	assert.True(t, acc.Leverage("EUR/USD.SIM").Equal(d("20")))
}

func TestMarginAccount_CalculateMargins(t *testing.T) {
	acc := newMarginAccount(t, ccyPtr(money.USD), bal("1000000", "0", money.USD))
	inst := instrumenttest.AUDUSD()
	require.NoError(t, acc.SetLeverage(inst.ID(), d("50")))

	initial, err := acc.CalculateMarginInit(inst, d("100000"), d("0.8"), false)
	require.NoError(t, err)
	assert.Equal(t, "48.00 USD", initial.String())

	maint, err := acc.CalculateMarginMaint(inst, shared.PositionSideLong, d("1000000"), d("1"), false)
	require.NoError(t, err)
	assert.Equal(t, "600.00 USD", maint.String())

	// 48 + 1600 * 2 * 0.00002
	withFees, err := acc.CalculateMarginInitial(inst, d("100000"), d("0.8"), false)
	require.NoError(t, err)
	assert.Equal(t, "48.06 USD", withFees.String())
}

func TestMarginAccount_StandardModel(t *testing.T) {
	acc, err := NewMarginAccount(newState(t, "SIM-001", shared.AccountTypeMargin, ccyPtr(money.USD), bal("1000000", "0", money.USD)), true,
		WithMarginModel(margin.StandardModel{}),
		WithDefaultLeverage(d("50")),
	)
	require.NoError(t, err)
	assert.Equal(t, margin.ModelStandard, acc.MarginModel().Name())

	initial, err := acc.CalculateMarginInit(instrumenttest.AUDUSD(), d("100000"), d("0.8"), false)
	require.NoError(t, err)
	assert.Equal(t, "2400.00 USD", initial.String())
}

func TestMarginAccount_CalculatePnLs(t *testing.T) {
	acc := newMarginAccount(t, nil, bal("100000", "0", money.USDT))
	inst := instrumenttest.BTCUSDT()
	long := &trading.Position{
		ID:           "P-1",
		InstrumentID: inst.ID(),
		EntrySide:    shared.OrderSideBuy,
		Side:         shared.PositionSideLong,
		Quantity:     d("2"),
		AvgPxOpen:    d("50000"),
	}
	sell := trading.Fill{InstrumentID: inst.ID(), OrderSide: shared.OrderSideSell, LastQty: d("1"), LastPx: d("52000"), Currency: money.USDT}
	buy := trading.Fill{InstrumentID: inst.ID(), OrderSide: shared.OrderSideBuy, LastQty: d("1"), LastPx: d("52000"), Currency: money.USDT}

	tests := []struct {
		name     string
		position *trading.Position
		fill     trading.Fill
		expected []string
	}{
		{"NoPosition", nil, sell, []string{}},
		{"FlatPosition", &trading.Position{InstrumentID: inst.ID(), Side: shared.PositionSideFlat}, sell, []string{}},
		{"SameSide", long, buy, []string{}},
		{"Reducing", long, sell, []string{"2000.00000000 USDT"}},
		{"ReversingCapsAtPositionQuantity", long, trading.Fill{InstrumentID: inst.ID(), OrderSide: shared.OrderSideSell, LastQty: d("3"), LastPx: d("49000"), Currency: money.USDT}, []string{"-2000.00000000 USDT"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pnls, err := acc.CalculatePnLs(inst, tt.position, tt.fill)
			require.NoError(t, err)
			require.Len(t, pnls, len(tt.expected))
			for i, exp := range tt.expected {
				assert.Equal(t, exp, pnls[i].String())
			}
		})
	}

	t.Run("InverseShort", func(t *testing.T) {
		xbt := instrumenttest.XBTUSD()
		short := &trading.Position{InstrumentID: xbt.ID(), EntrySide: shared.OrderSideSell, Side: shared.PositionSideShort, Quantity: d("100000"), AvgPxOpen: d("10000")}
		fill := trading.Fill{InstrumentID: xbt.ID(), OrderSide: shared.OrderSideBuy, LastQty: d("100000"), LastPx: d("8000"), Currency: money.USD}

		pnls, err := acc.CalculatePnLs(xbt, short, fill)
		require.NoError(t, err)
		require.Len(t, pnls, 1)
		// 100000 * (1/8000 - 1/10000)
		assert.Equal(t, "2.50000000 BTC", pnls[0].String())
	})
}

func TestMarginAccount_UpdateMargins(t *testing.T) {
	t.Run("RecombinesIntoLocked", func(t *testing.T) {
		acc := newMarginAccount(t, ccyPtr(money.USD), bal("10000", "0", money.USD))
		id := instrumenttest.AUDUSD().ID()

		require.NoError(t, acc.UpdateMarginInit(id, m("500", money.USD)))
		require.NoError(t, acc.UpdateMarginMaint(id, m("250", money.USD)))

		b, ok := acc.Balance(money.USD)
		require.True(t, ok)
		assert.Equal(t, "750.00 USD", b.Locked.String())
		assert.Equal(t, "9250.00 USD", b.Free.String())

		initial, _ := acc.MarginInit(id)
		maint, _ := acc.MarginMaint(id)
		assert.Equal(t, "500.00 USD", initial.String())
		assert.Equal(t, "250.00 USD", maint.String())
		require.Len(t, acc.Margins(), 1)

		require.NoError(t, acc.UpdateMarginInit(id, money.Zero(money.USD)))
		b, _ = acc.Balance(money.USD)
		assert.Equal(t, "250.00 USD", b.Locked.String())

		require.NoError(t, acc.ClearMargin(id))
		b, _ = acc.Balance(money.USD)
		assert.True(t, b.Locked.IsZero())
		assert.Empty(t, acc.Margins())
	})

	t.Run("ExceededMarginLeavesStateUnchanged", func(t *testing.T) {
		acc := newMarginAccount(t, ccyPtr(money.USD), bal("1000", "0", money.USD))
		id := instrumenttest.AUDUSD().ID()
		require.NoError(t, acc.UpdateMarginInit(id, m("400", money.USD)))

		err := acc.UpdateMarginMaint(id, m("700", money.USD))
		var exceeded ErrAccountMarginExceeded
		require.ErrorAs(t, err, &exceeded)
		assert.Equal(t, money.USD, exceeded.Currency)

		maint, _ := acc.MarginMaint(id)
		assert.True(t, maint.IsZero())
		b, _ := acc.Balance(money.USD)
		assert.Equal(t, "600.00 USD", b.Free.String())
	})

	t.Run("NoBalanceForCurrency", func(t *testing.T) {
		acc := newMarginAccount(t, nil, bal("1000", "0", money.USD))

		err := acc.UpdateMarginInit("XBTUSD.BITMEX", m("0.1", money.BTC))
		assert.ErrorIs(t, err, ErrBalanceNotFound{})
		_, ok := acc.Margin("XBTUSD.BITMEX")
		assert.False(t, ok)

		require.NoError(t, acc.UpdateMarginInit("XBTUSD.BITMEX", money.Zero(money.BTC)), "zero margin needs no balance")
	})

	t.Run("ApplyRestoresMargins", func(t *testing.T) {
		acc := newMarginAccount(t, ccyPtr(money.USD), bal("10000", "0", money.USD))
		mb, err := money.NewMarginBalance(m("100", money.USD), m("50", money.USD), "AUD/USD.SIM")
		require.NoError(t, err)

		s, err := NewState("SIM-001", shared.AccountTypeMargin, ccyPtr(money.USD), []money.AccountBalance{bal("10000", "150", money.USD)}, []money.MarginBalance{mb}, false, 2, 2)
		require.NoError(t, err)
		require.NoError(t, acc.Apply(s))

		got, ok := acc.Margin("AUD/USD.SIM")
		require.True(t, ok)
		assert.True(t, got.Equal(mb))
		assert.Equal(t, "MarginAccount(id=SIM-001, type=MARGIN, base=USD)", acc.String())
	})
}
