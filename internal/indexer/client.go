package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"ambientKeeper/internal/model"
)

const DefaultURL = "https://ambindexer.net/scroll-gcgo"

const (
	positionTypeConcentrated = "concentrated"
	changeTypeMint           = "mint"
)

// Options tunes a Client.
type Options struct {
	ChainID      uint64
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// Client reads user positions and transactions from the pool indexer.
type Client struct {
	host       string
	chainID    string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

func NewClient(host string, opts Options) (*Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultURL
	}
	host = strings.TrimRight(host, "/")

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("indexer url parse %q: %w", host, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("indexer url must be http(s), got %q", host)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 12 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		host:       host,
		chainID:    "0x" + strconv.FormatUint(opts.ChainID, 16),
		httpClient: httpClient,
		maxRetries: opts.MaxRetries,
		backoff:    opts.RetryBackoff,
		logger:     logger,
	}, nil
}

// StatusError is a non-200 indexer response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("indexer %s: status=%d body=%q", e.Endpoint, e.StatusCode, e.Body)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IndexedPosition is an open position as the indexer reports it.
type IndexedPosition struct {
	PositionID string
	MintTxHash string
	Range      model.Range
	Liquidity  *uint256.Int
	FirstMint  time.Time
}

// PoolTx is one of the user's pool transactions.
type PoolTx struct {
	TxHash     string
	Time       time.Time
	ChangeType string
	Range      model.Range
}

// IsMint reports whether the transaction minted a concentrated range.
func (tx PoolTx) IsMint() bool {
	return tx.ChangeType == changeTypeMint
}

type positionEntry struct {
	PositionID    string      `json:"positionId"`
	FirstMintTx   string      `json:"firstMintTx"`
	PositionType  string      `json:"positionType"`
	BidTick       int32       `json:"bidTick"`
	AskTick       int32       `json:"askTick"`
	ConcLiq       json.Number `json:"concLiq"`
	TimeFirstMint int64       `json:"timeFirstMint"`
}

type txEntry struct {
	TxHash       string `json:"txHash"`
	TxTime       int64  `json:"txTime"`
	ChangeType   string `json:"changeType"`
	PositionType string `json:"positionType"`
	BidTick      int32  `json:"bidTick"`
	AskTick      int32  `json:"askTick"`
}

// UserPoolPositions lists user's concentrated positions in pool.
func (c *Client) UserPoolPositions(ctx context.Context, user common.Address, pool model.Pool) ([]IndexedPosition, error) {
	if c == nil {
		return nil, fmt.Errorf("indexer client nil")
	}

	var entries []positionEntry
	if err := c.getData(ctx, "/user_pool_positions", c.poolQuery(user, pool), &entries); err != nil {
		return nil, err
	}

	out := make([]IndexedPosition, 0, len(entries))
	for _, e := range entries {
		if e.PositionType != "" && e.PositionType != positionTypeConcentrated {
			continue
		}
		rng, err := model.NewRange(e.BidTick, e.AskTick)
		if err != nil {
			return nil, fmt.Errorf("%w: position %s: %v", model.ErrMalformedPayload, e.PositionID, err)
		}
		liq, err := parseLiquidity(e.ConcLiq)
		if err != nil {
			return nil, fmt.Errorf("%w: position %s: %v", model.ErrMalformedPayload, e.PositionID, err)
		}
		out = append(out, IndexedPosition{
			PositionID: e.PositionID,
			MintTxHash: e.FirstMintTx,
			Range:      rng,
			Liquidity:  liq,
			FirstMint:  time.Unix(e.TimeFirstMint, 0).UTC(),
		})
	}
	return out, nil
}

// UserPoolTxs returns up to n of user's recent pool transactions, oldest first.
func (c *Client) UserPoolTxs(ctx context.Context, user common.Address, pool model.Pool, n int) ([]PoolTx, error) {
	if c == nil {
		return nil, fmt.Errorf("indexer client nil")
	}

	q := c.poolQuery(user, pool)
	if n > 0 {
		q.Set("n", strconv.Itoa(n))
	}

	var entries []txEntry
	if err := c.getData(ctx, "/user_pool_txs", q, &entries); err != nil {
		return nil, err
	}

	out := make([]PoolTx, 0, len(entries))
	for _, e := range entries {
		if e.PositionType != "" && e.PositionType != positionTypeConcentrated {
			continue
		}
		if e.TxHash == "" {
			return nil, fmt.Errorf("%w: transaction without hash", model.ErrMalformedPayload)
		}
		tx := PoolTx{
			TxHash:     e.TxHash,
			Time:       time.Unix(e.TxTime, 0).UTC(),
			ChangeType: e.ChangeType,
		}
		if tx.IsMint() {
			rng, err := model.NewRange(e.BidTick, e.AskTick)
			if err != nil {
				return nil, fmt.Errorf("%w: tx %s: %v", model.ErrMalformedPayload, e.TxHash, err)
			}
			tx.Range = rng
		}
		out = append(out, tx)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out, nil
}

func (c *Client) poolQuery(user common.Address, pool model.Pool) url.Values {
	q := url.Values{}
	q.Set("user", strings.ToLower(user.Hex()))
	q.Set("base", strings.ToLower(pool.Base.Hex()))
	q.Set("quote", strings.ToLower(pool.Quote.Hex()))
	q.Set("poolIdx", strconv.FormatUint(pool.Index, 10))
	q.Set("chainId", c.chainID)
	return q
}

// getData fetches path and decodes the "data" member of the envelope into out.
func (c *Client) getData(ctx context.Context, path string, q url.Values, out interface{}) error {
	endpoint := c.host + path + "?" + q.Encode()

	attempt := 0
	return withRetry(ctx, c.maxRetries, c.backoff, IsTransient, func(ctx context.Context) error {
		attempt++
		err := c.fetch(ctx, endpoint, out)
		if err != nil && IsTransient(err) {
			c.logger.Warn("indexer request failed",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return err
	})
}

func (c *Client) fetch(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       readBodyLimit(resp.Body, 8<<10),
		}
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrMalformedPayload, endpoint, err)
	}
	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("%w: %s: missing data", model.ErrMalformedPayload, endpoint)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrMalformedPayload, endpoint, err)
	}
	return nil
}

func readBodyLimit(r io.Reader, limit int64) string {
	if r == nil {
		return ""
	}
	if limit <= 0 {
		limit = 8 << 10
	}
	b, _ := io.ReadAll(io.LimitReader(r, limit))
	return string(b)
}
