// Package policy holds the pure go/no-go decisions of a Tick: whether the
// available fiat covers the planned spend, and whether bought crypto may be
// withdrawn.
package policy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// GateDecision is Proceed(Amount) when Proceed is true, otherwise Skip(Reason).
type GateDecision struct {
	Proceed bool
	Amount  decimal.Decimal
	Reason  string
}

// Gate approves planned unchanged when available covers it. It never shrinks
// an order; partial fills are classified later from the exchange response.
func Gate(available, planned decimal.Decimal) GateDecision {
	if !planned.IsPositive() {
		return GateDecision{Reason: fmt.Sprintf("nothing to buy: planned spend %s", planned.String())}
	}
	if available.LessThan(planned) {
		return GateDecision{
			Reason: fmt.Sprintf("insufficient funds: have %s, need %s", available.String(), planned.String()),
		}
	}
	return GateDecision{Proceed: true, Amount: planned}
}
