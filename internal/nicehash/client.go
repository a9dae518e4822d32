package nicehash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/r1k0/nuxhash/internal/interfaces"
	"github.com/r1k0/nuxhash/internal/lib"
	"github.com/r1k0/nuxhash/internal/mining"
)

const (
	DefaultBaseURL = "https://api.nicehash.com"

	requestTimeout = 20 * time.Second
)

var (
	// ErrNetwork covers transport failures: DNS, TLS, timeouts, refused connections
	ErrNetwork = errors.New("nicehash api network error")
	// ErrBadResponse covers syntactically or structurally invalid payloads
	ErrBadResponse = errors.New("nicehash api bad response")
)

// Client talks to the NiceHash public API: multi-algorithm profitability
// figures and per-address provider stats
type Client struct {
	baseURL *url.URL
	region  string
	http    *http.Client
	log     interfaces.ILogger
}

func NewClient(baseURLStr string, region string, log interfaces.ILogger) (*Client, error) {
	baseURL, err := url.Parse(baseURLStr)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: baseURL,
		region:  region,
		http:    &http.Client{Timeout: requestTimeout},
		log:     log,
	}, nil
}

type multiAlgoResponse struct {
	Result struct {
		SimpleMultiAlgo []struct {
			Name   string `json:"name"`
			Paying string `json:"paying"`
			Port   int    `json:"port"`
		} `json:"simplemultialgo"`
	} `json:"result"`
	Method string `json:"method"`
}

// Fetch returns the current payrates (BTC/day per unit of speed) for every
// sub-algorithm and the stratum endpoint for each one
func (c *Client) Fetch(ctx context.Context) (mining.PayRates, mining.Stratums, error) {
	var parsed multiAlgoResponse
	err := c.get(ctx, url.Values{"method": {"simplemultialgo.info"}}, &parsed)
	if err != nil {
		return nil, nil, err
	}

	if len(parsed.Result.SimpleMultiAlgo) == 0 {
		return nil, nil, lib.WrapError(ErrBadResponse, errors.New("empty simplemultialgo result"))
	}

	payrates := make(mining.PayRates, len(parsed.Result.SimpleMultiAlgo))
	stratums := make(mining.Stratums, len(parsed.Result.SimpleMultiAlgo))
	for _, algo := range parsed.Result.SimpleMultiAlgo {
		paying, err := strconv.ParseFloat(algo.Paying, 64)
		if err != nil {
			return nil, nil, lib.WrapError(ErrBadResponse, fmt.Errorf("algorithm %s: paying %q: %w", algo.Name, algo.Paying, err))
		}
		payrates[algo.Name] = paying
		stratums[algo.Name] = fmt.Sprintf("%s.%s.nicehash.com:%d", algo.Name, c.region, algo.Port)
	}

	return payrates, stratums, nil
}

type providerResponse struct {
	Result struct {
		Stats []struct {
			Balance string `json:"balance"`
		} `json:"stats"`
	} `json:"result"`
}

// UnpaidBalance returns the total unpaid BTC balance of the wallet address
// across all algorithms
func (c *Client) UnpaidBalance(ctx context.Context, addr string) (float64, error) {
	var parsed providerResponse
	err := c.get(ctx, url.Values{"method": {"stats.provider"}, "addr": {addr}}, &parsed)
	if err != nil {
		return 0, err
	}

	total := 0.0
	for _, stat := range parsed.Result.Stats {
		balance, err := strconv.ParseFloat(stat.Balance, 64)
		if err != nil {
			return 0, lib.WrapError(ErrBadResponse, fmt.Errorf("balance %q: %w", stat.Balance, err))
		}
		total += balance
	}
	return total, nil
}

func (c *Client) get(ctx context.Context, query url.Values, out interface{}) error {
	reqURL := c.baseURL.JoinPath("/api")
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return lib.WrapError(ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return lib.WrapError(ErrBadResponse, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return lib.WrapError(ErrNetwork, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return lib.WrapError(ErrBadResponse, err)
	}
	return nil
}
