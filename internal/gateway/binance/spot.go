package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"stacker/internal/gateway/exchange"
	"stacker/internal/logger"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

// Spot implements exchange.Exchange on the Binance spot and wallet APIs.
type Spot struct {
	cfg    Config
	client *binance.Client
}

var _ exchange.Exchange = (*Spot)(nil)

func New(cfg Config) (*Spot, error) {
	final := cfg.withDefaults()
	client := binance.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = final.RESTBaseURL
	httpClient, err := newHTTPClient(final)
	if err != nil {
		return nil, err
	}
	client.HTTPClient = httpClient
	return &Spot{cfg: final, client: client}, nil
}

func newHTTPClient(cfg Config) (*http.Client, error) {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	if !cfg.ProxyEnabled || cfg.RESTProxyURL == "" {
		return httpClient, nil
	}
	proxyURL, err := url.Parse(cfg.RESTProxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REST proxy url: %w", err)
	}
	baseTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok || baseTransport == nil {
		return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
	}
	transport := baseTransport.Clone()
	transport.Proxy = http.ProxyURL(proxyURL)
	httpClient.Transport = transport
	return httpClient, nil
}

func (s *Spot) Name() string { return exchangeName }

func (s *Spot) GetBalances(ctx context.Context, pair exchange.Pair) (exchange.Balances, error) {
	acct, err := s.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return exchange.Balances{}, classify("balances", err)
	}
	var out exchange.Balances
	for _, b := range acct.Balances {
		switch strings.ToUpper(b.Asset) {
		case pair.Fiat:
			out.Fiat = parseDecimal(b.Free)
		case pair.Crypto:
			out.Crypto = parseDecimal(b.Free)
		}
	}
	return out, nil
}

func (s *Spot) MarketBuy(ctx context.Context, pair exchange.Pair, fiatAmount decimal.Decimal) (exchange.OrderResult, error) {
	res, err := s.client.NewCreateOrderService().
		Symbol(pair.Symbol()).
		Side(binance.SideTypeBuy).
		Type(binance.OrderTypeMarket).
		QuoteOrderQty(fiatAmount.String()).
		NewOrderRespType(binance.NewOrderRespTypeFULL).
		Do(ctx)
	if err != nil {
		return exchange.OrderResult{}, classify("market_buy", err)
	}
	out := exchange.OrderResult{
		OrderID:    fmt.Sprintf("%d", res.OrderID),
		FilledQty:  parseDecimal(res.ExecutedQuantity),
		QuoteSpent: parseDecimal(res.CummulativeQuoteQuantity),
	}
	for _, f := range res.Fills {
		if f == nil {
			continue
		}
		out.Fee = out.Fee.Add(parseDecimal(f.Commission))
		if out.FeeAsset == "" {
			out.FeeAsset = strings.ToUpper(f.CommissionAsset)
		}
	}
	switch res.Status {
	case binance.OrderStatusTypeFilled:
		out.Status = exchange.OrderFilled
	case binance.OrderStatusTypePartiallyFilled:
		out.Status = exchange.OrderPartiallyFilled
	case binance.OrderStatusTypeNew:
		out.Status = exchange.OrderAccepted
	case binance.OrderStatusTypeExpired, binance.OrderStatusTypeCanceled, binance.OrderStatusTypeRejected:
		if out.FilledQty.IsPositive() {
			out.Status = exchange.OrderPartiallyFilled
			break
		}
		return exchange.OrderResult{}, &exchange.RejectedError{
			Exchange: exchangeName,
			Op:       "market_buy",
			Code:     string(res.Status),
			Message:  fmt.Sprintf("order %d ended %s without fill", res.OrderID, res.Status),
		}
	default:
		logger.Warnf("binance: unknown order status %q for order %d", res.Status, res.OrderID)
		out.Status = exchange.OrderAccepted
	}
	return out, nil
}

func (s *Spot) WithdrawalFeeQuote(ctx context.Context, asset string) (decimal.Decimal, error) {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	coins, err := s.client.NewGetAllCoinsInfoService().Do(ctx)
	if err != nil {
		return decimal.Zero, classify("withdraw_fee", err)
	}
	for _, coin := range coins {
		if coin == nil || !strings.EqualFold(coin.Coin, asset) {
			continue
		}
		want := s.cfg.Networks[asset]
		for _, n := range coin.NetworkList {
			if (want != "" && strings.EqualFold(n.Network, want)) || (want == "" && n.IsDefault) {
				if !n.WithdrawEnable {
					return decimal.Zero, &exchange.RejectedError{Exchange: exchangeName, Op: "withdraw_fee",
						Message: fmt.Sprintf("withdrawals of %s on %s are suspended", asset, n.Network)}
				}
				return parseDecimal(n.WithdrawFee), nil
			}
		}
		return decimal.Zero, &exchange.RejectedError{Exchange: exchangeName, Op: "withdraw_fee",
			Message: fmt.Sprintf("no withdrawal network %q for %s", want, asset)}
	}
	return decimal.Zero, &exchange.RejectedError{Exchange: exchangeName, Op: "withdraw_fee", Message: "unknown coin " + asset}
}

func (s *Spot) Withdraw(ctx context.Context, asset string, amount decimal.Decimal, address string) (exchange.WithdrawalResult, error) {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	svc := s.client.NewCreateWithdrawService().
		Coin(asset).
		Address(strings.TrimSpace(address)).
		Amount(amount.String())
	if network := s.cfg.Networks[asset]; network != "" {
		svc = svc.Network(network)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return exchange.WithdrawalResult{}, classify("withdraw", err)
	}
	return exchange.WithdrawalResult{ID: res.ID, Status: exchange.WithdrawalSubmitted}, nil
}

func parseDecimal(v string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero
	}
	return d
}
