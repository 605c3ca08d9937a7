package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const DefaultCoinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGecko reads all-time highs from the /coins/{id} endpoint.
type CoinGecko struct {
	baseURL string
	client  *http.Client
	// coinIDs maps a ticker (BTC) to a CoinGecko id (bitcoin).
	coinIDs map[string]string
}

var defaultCoinIDs = map[string]string{
	"BTC": "bitcoin",
	"ETH": "ethereum",
	"SOL": "solana",
	"LTC": "litecoin",
	"ADA": "cardano",
	"DOT": "polkadot",
}

func NewCoinGecko(baseURL string, coinIDs map[string]string, timeout time.Duration) *CoinGecko {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultCoinGeckoBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ids := make(map[string]string, len(defaultCoinIDs)+len(coinIDs))
	for k, v := range defaultCoinIDs {
		ids[k] = v
	}
	for k, v := range coinIDs {
		ids[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return &CoinGecko{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		coinIDs: ids,
	}
}

func (c *CoinGecko) AllTimeHigh(ctx context.Context, crypto, fiat string) (*decimal.Decimal, error) {
	id, ok := c.coinIDs[strings.ToUpper(strings.TrimSpace(crypto))]
	if !ok {
		return nil, nil
	}
	q := url.Values{}
	q.Set("localization", "false")
	q.Set("tickers", "false")
	q.Set("community_data", "false")
	q.Set("developer_data", "false")
	endpoint := fmt.Sprintf("%s/coins/%s?%s", c.baseURL, url.PathEscape(id), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("coingecko: status %d for %s", resp.StatusCode, id)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("coingecko: invalid json for %s", id)
	}
	ath := gjson.GetBytes(body, "market_data.ath."+strings.ToLower(strings.TrimSpace(fiat)))
	if !ath.Exists() {
		return nil, nil
	}
	v, err := decimal.NewFromString(ath.Raw)
	if err != nil {
		return nil, fmt.Errorf("coingecko: parse ath %q: %w", ath.Raw, err)
	}
	return &v, nil
}
