package realtime

import (
	"context"
	"net/url"
	"time"

	"tradewatch/internal/api"
	"tradewatch/internal/types"
)

// APIFetcher implements Fetcher against the tradewatch HTTP API.
type APIFetcher struct {
	client *api.Client
}

func NewAPIFetcher(baseURL string, timeout time.Duration) *APIFetcher {
	return &APIFetcher{
		client: api.NewClient(
			api.WithBaseURL(baseURL),
			api.WithTimeout(timeout),
			api.WithLogging(true),
		),
	}
}

func (f *APIFetcher) AccountsWithHistory(ctx context.Context, startDate, endDate string) ([]types.AccountWithHistory, error) {
	q := url.Values{}
	if startDate != "" {
		q.Set("start_date", startDate)
	}
	if endDate != "" {
		q.Set("end_date", endDate)
	}
	path := "/api/trading/accounts-with-history"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}

	resp, err := f.client.GET(ctx, path)
	if err != nil {
		return nil, err
	}
	var rows []types.AccountWithHistory
	if err := resp.ParseJSON(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (f *APIFetcher) Stats(ctx context.Context) (types.TradeStats, error) {
	resp, err := f.client.GET(ctx, "/api/trading/stats")
	if err != nil {
		return types.TradeStats{}, err
	}
	var stats types.TradeStats
	if err := resp.ParseJSON(&stats); err != nil {
		return types.TradeStats{}, err
	}
	return stats, nil
}
