package burnmonitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/apperr"
	"github.com/marcuspuchalla/truebit-node-monitor-sub001/internal/model"
)

// indexerClient talks to the block explorer's token-transfer endpoint (spec
// §6.3). It uses hashicorp/go-retryablehttp purely as an http.Client with
// sane connection defaults: RetryMax is 0 because spec §6.3 fixes the sync
// cadence itself and forbids an independent client-side backoff schedule
// layered on top of it — a failed page is surfaced to the caller, which
// retries on the next scheduled tick instead.
type indexerClient struct {
	baseURL     string
	truContract string
	http        *retryablehttp.Client
}

func newRetryableClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 0
	c.Logger = nil
	c.HTTPClient.Timeout = 15 * time.Second
	return c
}

// pageParams is the indexer's cursor for the next page (spec §4.6 step 3).
type pageParams struct {
	BlockNumber int64 `json:"block_number"`
	Index       int64 `json:"index"`
	ItemsCount  int64 `json:"items_count"`
}

// transferItem is one row of the indexer's token-transfer list.
type transferItem struct {
	BlockNumber     int64  `json:"block_number"`
	Timestamp       string `json:"timestamp"`
	TransactionHash string `json:"transaction_hash"`
	LogIndex        int64  `json:"log_index"`
	From            struct {
		Hash string `json:"hash"`
	} `json:"from"`
	To struct {
		Hash string `json:"hash"`
	} `json:"to"`
	Total struct {
		Value    string `json:"value"`
		Decimals string `json:"decimals"`
	} `json:"total"`
}

// transferPage is one page of the indexer's response (spec §4.6 step 3:
// "continue paginating while nextPageParams is present").
type transferPage struct {
	Items          []transferItem `json:"items"`
	NextPageParams *pageParams    `json:"next_page_params"`
}

// toBurnEvent converts one indexer row into a model.TruBurn, dividing the
// raw integer value by 10^decimals for the human-readable amount (spec §3
// invariant I6).
func (it transferItem) toBurnEvent(burnType model.BurnType) (model.TruBurn, error) {
	ts, err := time.Parse(time.RFC3339, it.Timestamp)
	if err != nil {
		ts, err = time.Parse("2006-01-02T15:04:05.000000Z", it.Timestamp)
		if err != nil {
			return model.TruBurn{}, fmt.Errorf("parse timestamp %q: %w", it.Timestamp, err)
		}
	}

	amount, ok := new(big.Int).SetString(it.Total.Value, 10)
	if !ok {
		return model.TruBurn{}, fmt.Errorf("invalid transfer value %q", it.Total.Value)
	}

	decimals := 18
	if it.Total.Decimals != "" {
		if d, err := strconv.Atoi(it.Total.Decimals); err == nil {
			decimals = d
		}
	}
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	formatted := new(big.Float).Quo(new(big.Float).SetInt(amount), divisor)
	f, _ := formatted.Float64()

	return model.TruBurn{
		TxHash:          it.TransactionHash,
		LogIndex:        it.LogIndex,
		BlockNumber:     it.BlockNumber,
		Timestamp:       ts.UTC(),
		FromAddress:     it.From.Hash,
		ToAddress:       it.To.Hash,
		Amount:          amount.String(),
		AmountFormatted: f,
		BurnType:        burnType,
	}, nil
}

// fetchTransfers retrieves one page of transfers to addr, optionally
// continuing from a previous page's cursor (spec §4.6 steps 1–3, §6.3).
func (c *indexerClient) fetchTransfers(ctx context.Context, addr string, cursor *pageParams) (*transferPage, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, apperr.TransientIO("invalid indexer base URL", err)
	}
	// §6.3's endpoint is address-scoped, not token-scoped: join it onto
	// whatever path the configured base URL already carries (e.g. a
	// trailing "/api/v2") rather than overwriting it.
	u.Path = path.Join(u.Path, "addresses", addr, "token-transfers")

	q := u.Query()
	q.Set("token", c.truContract)
	q.Set("type", "ERC-20")
	if cursor != nil {
		q.Set("block_number", strconv.FormatInt(cursor.BlockNumber, 10))
		q.Set("index", strconv.FormatInt(cursor.Index, 10))
		q.Set("items_count", strconv.FormatInt(cursor.ItemsCount, 10))
	}
	u.RawQuery = q.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, apperr.TransientIO("failed to build indexer request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.TransientIO("indexer request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.TransientIO(fmt.Sprintf("indexer returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.TransientIO("failed to read indexer response", err)
	}

	var page transferPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, apperr.TransientIO("failed to decode indexer response", err)
	}
	return &page, nil
}
