package runner

import (
	"fmt"
	"time"

	"stacker/internal/gateway/notifier"
	"stacker/internal/ledger"
	"stacker/internal/pkg/money"
	"stacker/internal/pkg/text"

	"github.com/shopspring/decimal"
)

const cryptoPriceDecimals = 2

var hundred = decimal.NewFromInt(100)

func (r *Runner) compose(t *tick, now time.Time) notifier.StructuredMessage {
	msg := notifier.StructuredMessage{Timestamp: now}
	fiat := t.plan.Fiat
	places := t.plan.Decimals()

	switch t.out.Status {
	case StatusCompleted, StatusPartial:
		msg.Severity = notifier.Information
		msg.Title = fmt.Sprintf("Bought %s for %s",
			money.FormatCrypto(t.cryptoGot, t.pair.Crypto), money.FormatAmount(t.fiatSpent, places, fiat))
		if t.out.Status == StatusPartial {
			msg.Title += " (partially filled)"
		}
		msg.Sections = append(msg.Sections, r.orderSection(t))
		if sec, ok := withdrawalSection(t); ok {
			msg.Sections = append(msg.Sections, sec)
		}
	case StatusPersistFailed:
		msg.Severity = notifier.Error
		if t.cryptoGot.IsPositive() {
			msg.Title = fmt.Sprintf("Bought %s for %s, bookkeeping failed",
				money.FormatCrypto(t.cryptoGot, t.pair.Crypto), money.FormatAmount(t.fiatSpent, places, fiat))
		} else {
			msg.Title = fmt.Sprintf("Order for %s accepted, bookkeeping failed",
				money.FormatAmount(t.out.Gate.Amount, places, fiat))
		}
		msg.Sections = append(msg.Sections, r.orderSection(t))
		if sec, ok := withdrawalSection(t); ok {
			msg.Sections = append(msg.Sections, sec)
		}
	case StatusPending:
		msg.Severity = notifier.Warning
		msg.Title = fmt.Sprintf("Order for %s accepted, nothing settled yet",
			money.FormatAmount(t.out.Gate.Amount, places, fiat))
		msg.Sections = append(msg.Sections, r.orderSection(t))
	case StatusSkipped:
		msg.Severity = notifier.Warning
		msg.Title = fmt.Sprintf("not enough money (%s %s)", t.pre.Fiat.String(), fiat)
		msg.Sections = append(msg.Sections, notifier.MessageSection{
			Title: "Plan",
			Lines: []string{
				"needed: " + money.FormatAmount(t.out.Planned, places, fiat),
				"sizing: " + t.out.Sizing.Reason,
			},
		})
	case StatusRetry:
		msg.Severity = notifier.Warning
		msg.Title = "Purchase postponed"
		msg.Sections = append(msg.Sections, notifier.MessageSection{
			Title: "Cause",
			Lines: []string{errText(t.out.Err)},
		})
	default:
		msg.Severity = notifier.Error
		msg.Title = "Purchase failed"
		msg.Sections = append(msg.Sections, notifier.MessageSection{
			Title: "Cause",
			Lines: []string{errText(t.out.Err)},
		})
	}

	if t.persistErr != nil && t.out.Status != StatusFailed {
		msg.Severity = notifier.Error
		msg.Sections = append(msg.Sections, notifier.MessageSection{
			Title: "Persistence failed",
			Lines: []string{t.persistErr.Error()},
		})
	}
	if sec, ok := r.totalsSection(t); ok {
		msg.Sections = append(msg.Sections, sec)
	}

	msg.Footer = "Plan: " + t.plan.ID
	if !t.out.NextExecutionAt.IsZero() {
		msg.Footer += ", next run " + t.out.NextExecutionAt.UTC().Format("2006-01-02 15:04 MST")
	}
	return msg
}

func (r *Runner) orderSection(t *tick) notifier.MessageSection {
	fiat := t.plan.Fiat
	lines := []string{"sizing: " + t.out.Sizing.Reason}
	if t.out.Record != nil && t.out.Record.Price.IsPositive() {
		lines = append(lines, "price: "+money.FormatAmount(t.out.Record.Price, cryptoPriceDecimals, fiat))
	}
	if t.order.Fee.IsPositive() {
		lines = append(lines, "fee: "+money.FormatCrypto(t.order.Fee, t.order.FeeAsset))
	}
	if t.order.OrderID != "" {
		lines = append(lines, "order: "+t.order.OrderID)
	}
	return notifier.MessageSection{Title: "Order", Lines: lines}
}

func withdrawalSection(t *tick) (notifier.MessageSection, bool) {
	d := t.out.Withdrawal
	if d == nil {
		return notifier.MessageSection{}, false
	}
	sec := notifier.MessageSection{Title: "Withdrawal"}
	switch {
	case !d.Approved:
		sec.Lines = []string{"not withdrawn: " + d.Describe()}
	case t.withdrawErr != nil:
		sec.Lines = []string{"failed: " + t.withdrawErr.Error()}
	default:
		sec.Lines = []string{
			fmt.Sprintf("sent %s to %s", money.FormatCrypto(d.Amount, t.pair.Crypto), t.plan.Withdrawal.Address),
			"fee: " + money.FormatCrypto(d.Fee, t.pair.Crypto),
		}
		if rec := t.out.WithdrawalRecord; rec != nil && rec.TxID != "" {
			sec.Lines = append(sec.Lines, "tx: "+rec.TxID)
		}
	}
	return sec, true
}

func (r *Runner) totalsSection(t *tick) (notifier.MessageSection, bool) {
	s := t.out.Summary
	if s == nil || s.BuyCount == 0 {
		return notifier.MessageSection{}, false
	}
	fiat := t.plan.Fiat
	places := t.plan.Decimals()
	lines := []string{
		"invested: " + money.FormatAmount(s.CumulativeFiat, places, fiat),
		"accumulated: " + money.FormatCrypto(s.CumulativeCrypto, t.pair.Crypto),
		fmt.Sprintf("buys: %d", s.BuyCount),
	}
	if avg, ok := ledger.AverageCost(*s); ok {
		lines = append(lines, "average cost: "+money.FormatAmount(avg, cryptoPriceDecimals, fiat))
	}
	if t.price != nil {
		lines = append(lines, "current price: "+money.FormatAmount(*t.price, cryptoPriceDecimals, fiat))
	}
	if frac, ok := ledger.ProfitFraction(*s, t.price); ok {
		abs, _ := ledger.ProfitFiat(*s, t.price)
		lines = append(lines, fmt.Sprintf("profit: %s%% (%s)",
			signed(frac.Mul(hundred).StringFixed(2)), signed(money.FormatAmount(abs, places, fiat))))
	}
	return notifier.MessageSection{Title: "Totals", Lines: lines}, true
}

func signed(s string) string {
	if len(s) > 0 && s[0] != '-' {
		return "+" + s
	}
	return s
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return text.Truncate(err.Error(), maxErrorLen)
}
