package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const DefaultFearGreedEndpoint = "https://api.alternative.me/fng/?limit=5"

type FearGreedPoint struct {
	Value          int
	Classification string
	Timestamp      time.Time
}

type FearGreedData struct {
	Value           int
	Classification  string
	Timestamp       time.Time
	TimeUntilUpdate time.Duration
	History         []FearGreedPoint
}

// FearGreedService reads the alternative.me crypto fear & greed index.
type FearGreedService struct {
	endpoint string
	client   *http.Client
}

func NewFearGreedService(endpoint string, timeout time.Duration) *FearGreedService {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultFearGreedEndpoint
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &FearGreedService{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

type fearGreedResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
		Timestamp           string `json:"timestamp"`
		TimeUntilUpdate     string `json:"time_until_update"`
	} `json:"data"`
	Metadata struct {
		Error interface{} `json:"error"`
	} `json:"metadata"`
}

func (s *FearGreedService) Fetch(ctx context.Context) (FearGreedData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return FearGreedData{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return FearGreedData{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return FearGreedData{}, fmt.Errorf("fear & greed: unexpected status %s", resp.Status)
	}

	var payload fearGreedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return FearGreedData{}, fmt.Errorf("fear & greed: decode: %w", err)
	}
	if payload.Metadata.Error != nil {
		return FearGreedData{}, fmt.Errorf("fear & greed: api error: %v", payload.Metadata.Error)
	}

	points := make([]FearGreedPoint, 0, len(payload.Data))
	for _, item := range payload.Data {
		value, err := strconv.Atoi(strings.TrimSpace(item.Value))
		if err != nil || value < 0 || value > 100 {
			continue
		}
		var ts time.Time
		if sec, err := strconv.ParseInt(strings.TrimSpace(item.Timestamp), 10, 64); err == nil {
			ts = time.Unix(sec, 0).UTC()
		}
		points = append(points, FearGreedPoint{
			Value:          value,
			Classification: strings.TrimSpace(item.ValueClassification),
			Timestamp:      ts,
		})
	}
	if len(points) == 0 {
		return FearGreedData{}, fmt.Errorf("fear & greed: no valid data points")
	}

	var until time.Duration
	if secs, err := strconv.ParseInt(strings.TrimSpace(payload.Data[0].TimeUntilUpdate), 10, 64); err == nil && secs > 0 {
		until = time.Duration(secs) * time.Second
	}
	latest := points[0]
	return FearGreedData{
		Value:           latest.Value,
		Classification:  latest.Classification,
		Timestamp:       latest.Timestamp,
		TimeUntilUpdate: until,
		History:         points,
	}, nil
}
