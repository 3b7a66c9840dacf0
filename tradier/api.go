package tradier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/xhhuango/json"
)

const DefaultBaseURL = "https://api.tradier.com/v1"

var ErrUnexpectedStatus = errors.New("unexpected status")

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client

	// now is the clock used for days-to-expiry.
	now func() time.Time
}

func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		now:     time.Now,
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.BaseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.Token))
	req.Header.Add("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	responseData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response data: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w %d from %s", ErrUnexpectedStatus, resp.StatusCode, path)
	}
	if err := json.Unmarshal(responseData, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s response data: %w", path, err)
	}
	return nil
}

// GetQuotes fetches daily (or weekly/monthly) bars between start and end, both
// formatted as 2006-01-02.
func (c *Client) GetQuotes(ctx context.Context, symbol, start, end, interval string) (*QuoteHistory, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("start", start)
	q.Set("end", end)
	q.Set("session_filter", "all")

	quoteHistory := &QuoteHistory{}
	if err := c.get(ctx, "/markets/history", q, quoteHistory); err != nil {
		return nil, err
	}
	return quoteHistory, nil
}

// GetOptionsChain returns the chains for every expiration whose days to expiry
// fall in [minDTE, maxDTE], keyed by expiration date.
func (c *Client) GetOptionsChain(ctx context.Context, symbol string, minDTE, maxDTE int) (map[string]*OptionChain, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("includeAllRoots", "true")

	expirations := &OptionExpirations{}
	if err := c.get(ctx, "/markets/options/expirations", q, expirations); err != nil {
		return nil, err
	}

	chainMap := make(map[string]*OptionChain)
	today := c.now()
	for _, expiration := range expirations.Expirations.Expiration {
		expirationTime, err := time.Parse("2006-01-02", expiration.Date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse expiration date %q: %w", expiration.Date, err)
		}

		dte := DaysToExpiry(today, expirationTime)
		if dte < minDTE || dte > maxDTE {
			continue
		}

		cq := url.Values{}
		cq.Set("symbol", symbol)
		cq.Set("expiration", expiration.Date)
		cq.Set("greeks", "true")

		chain := &OptionChain{}
		if err := c.get(ctx, "/markets/options/chains", cq, chain); err != nil {
			return nil, err
		}
		chain.ExpirationDate = expiration.Date
		chain.DTE = dte
		chainMap[expiration.Date] = chain
	}

	return chainMap, nil
}

// DaysToExpiry counts whole calendar days from today's date to expiry.
func DaysToExpiry(today, expiry time.Time) int {
	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	y, m, d = expiry.Date()
	end := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}
