// Package instrumenttest provides instruments for tests.
package instrumenttest

import (
	"github.com/shopspring/decimal"
	"github.com/trading-account-engine/internal/domain/instrument"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustNew(p instrument.Params) *instrument.Spec {
	s, err := instrument.New(p)
	if err != nil {
		panic(err)
	}
	return s
}

func ccy(c money.Currency) *money.Currency {
	return &c
}

// CurrencyPair is a spot FX pair with 3% margin rates
func CurrencyPair(base, quote money.Currency, venue shared.Venue) *instrument.Spec {
	return mustNew(instrument.Params{
		ID:          shared.NewInstrumentID(base.Code+"/"+quote.Code, venue),
		Class:       shared.InstrumentClassSpot,
		Base:        ccy(base),
		Quote:       quote,
		MakerFee:    dec("0.00002"),
		TakerFee:    dec("0.00002"),
		MarginInit:  dec("0.03"),
		MarginMaint: dec("0.03"),
	})
}

// AUDUSD is AUD/USD.SIM
func AUDUSD() *instrument.Spec {
	return CurrencyPair(money.AUD, money.USD, "SIM")
}

// EURUSD is EUR/USD.SIM
func EURUSD() *instrument.Spec {
	return CurrencyPair(money.EUR, money.USD, "SIM")
}

// CryptoPair is a spot crypto pair with 0.1% fees and no margin rates
func CryptoPair(base, quote money.Currency, venue shared.Venue) *instrument.Spec {
	return mustNew(instrument.Params{
		ID:       shared.NewInstrumentID(base.Code+quote.Code, venue),
		Class:    shared.InstrumentClassSpot,
		Base:     ccy(base),
		Quote:    quote,
		MakerFee: dec("0.001"),
		TakerFee: dec("0.001"),
	})
}

// BTCUSDT is BTCUSDT.BINANCE
func BTCUSDT() *instrument.Spec {
	return CryptoPair(money.BTC, money.USDT, "BINANCE")
}

// ETHUSDT is ETHUSDT.BINANCE
func ETHUSDT() *instrument.Spec {
	return CryptoPair(money.ETH, money.USDT, "BINANCE")
}

// ADABTC is ADABTC.BINANCE
func ADABTC() *instrument.Spec {
	return CryptoPair(money.ADA, money.BTC, "BINANCE")
}

// XBTUSD is the BitMEX inverse perpetual, settled in BTC
func XBTUSD() *instrument.Spec {
	return mustNew(instrument.Params{
		ID:          "XBTUSD.BITMEX",
		Class:       shared.InstrumentClassSwap,
		Base:        ccy(money.BTC),
		Quote:       money.USD,
		Inverse:     true,
		MakerFee:    dec("-0.00025"),
		TakerFee:    dec("0.00075"),
		MarginInit:  dec("0.01"),
		MarginMaint: dec("0.0035"),
	})
}

// Equity is a cash equity with no base currency
func Equity(symbol string, venue shared.Venue, quote money.Currency) *instrument.Spec {
	return mustNew(instrument.Params{
		ID:          shared.NewInstrumentID(symbol, venue),
		Class:       shared.InstrumentClassSpot,
		Quote:       quote,
		MarginInit:  dec("0.1"),
		MarginMaint: dec("0.05"),
	})
}

// BettingSelection is a sports betting selection quoted in decimal odds
func BettingSelection(quote money.Currency) *instrument.Spec {
	return mustNew(instrument.Params{
		ID:    "1-123456789-50214-None.BETFAIR",
		Class: shared.InstrumentClassSportsBetting,
		Quote: quote,
	})
}
