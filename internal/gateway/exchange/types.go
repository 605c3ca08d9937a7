// Package exchange defines the exchange capability used by the purchase runner,
// its error taxonomy and two decorators: a rate/circuit Guard and a Paper exchange.
package exchange

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Pair is a spot market such as BTC/CZK.
type Pair struct {
	Crypto string
	Fiat   string
}

func NewPair(crypto, fiat string) Pair {
	return Pair{
		Crypto: strings.ToUpper(strings.TrimSpace(crypto)),
		Fiat:   strings.ToUpper(strings.TrimSpace(fiat)),
	}
}

// Symbol is the concatenated exchange symbol, e.g. "BTCEUR".
func (p Pair) Symbol() string { return p.Crypto + p.Fiat }

func (p Pair) String() string { return p.Crypto + "/" + p.Fiat }

// Balances are the free amounts of both sides of a pair.
type Balances struct {
	Fiat   decimal.Decimal
	Crypto decimal.Decimal
}

type OrderStatus string

const (
	OrderFilled          OrderStatus = "filled"
	OrderPartiallyFilled OrderStatus = "partially_filled"
	// OrderAccepted means the exchange took the order but reported no fill yet.
	OrderAccepted OrderStatus = "accepted"
)

// OrderResult is what the exchange reported for a market buy.
type OrderResult struct {
	OrderID    string
	Status     OrderStatus
	FilledQty  decimal.Decimal
	QuoteSpent decimal.Decimal
	Fee        decimal.Decimal
	FeeAsset   string
}

// AvgPrice is QuoteSpent / FilledQty, or false when nothing was filled.
func (r OrderResult) AvgPrice() (decimal.Decimal, bool) {
	if !r.FilledQty.IsPositive() {
		return decimal.Zero, false
	}
	return r.QuoteSpent.DivRound(r.FilledQty, 8), true
}

type WithdrawalStatus string

const (
	WithdrawalSubmitted WithdrawalStatus = "submitted"
	WithdrawalCompleted WithdrawalStatus = "completed"
)

type WithdrawalResult struct {
	// TxID may be empty when the exchange only returns an internal id.
	TxID   string
	ID     string
	Status WithdrawalStatus
}
