package ton

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

// RetryPolicy is deliberately a separate value so tests can inject zero
// delays. Only rate-limit responses are retried; everything else fails fast.
type RetryPolicy struct {
	Attempts  uint
	BaseDelay time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: 2 * time.Second}
}

// Client talks to a toncenter-style HTTP JSON API. No local state besides
// configuration; callers bound the whole exchange with ctx.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	policy     RetryPolicy
	log        *zap.Logger
}

func NewClient(baseURL, apiKey string, policy RetryPolicy, log *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		policy:     policy,
		log:        log,
	}
}

type apiEnvelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
	Code   int             `json:"code"`
}

// AccountState as reported by getAddressInformation.
type AccountState struct {
	BalanceNano *big.Int
	Status      string // active / uninitialized / frozen
}

func (a *AccountState) Initialized() bool { return a.Status == "active" }

type GetMethodResult struct {
	ExitCode int
	Stack    [][]any
}

type TxInfo struct {
	Hash       string
	Lt         uint64
	AmountNano *big.Int
	Comment    string
}

// do runs one HTTP exchange inside the retry policy. Каждый ретрай — только
// на rate limit, с удвоением базовой задержки.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any) (json.RawMessage, error) {
	var result json.RawMessage

	err := retry.Do(
		func() error {
			raw, err := c.doOnce(ctx, op, method, path, query, body)
			if err != nil {
				return err
			}
			result = raw
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.policy.Attempts),
		retry.Delay(c.policy.BaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(IsRateLimited),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warn("chain call rate limited, retrying",
				zap.String("op", op), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	return result, err
}

func (c *Client) doOnce(ctx context.Context, op, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, chainErr(op, ErrKindMalformed, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, chainErr(op, ErrKindNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, chainErr(op, ErrKindNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, chainErr(op, ErrKindRateLimited, fmt.Errorf("HTTP 429"))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, chainErr(op, ErrKindNetwork, err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, chainErr(op, ErrKindMalformed, fmt.Errorf("HTTP %d: %w", resp.StatusCode, err))
	}
	if !env.OK {
		if env.Code == http.StatusTooManyRequests {
			return nil, chainErr(op, ErrKindRateLimited, fmt.Errorf("%s", env.Error))
		}
		return nil, chainErr(op, ErrKindContractRejected, fmt.Errorf("code %d: %s", env.Code, env.Error))
	}
	return env.Result, nil
}

// SendBOC submits a serialized external message.
func (c *Client) SendBOC(ctx context.Context, boc []byte) error {
	_, err := c.do(ctx, "sendBoc", http.MethodPost, "/sendBoc", nil, map[string]string{
		"boc": base64.StdEncoding.EncodeToString(boc),
	})
	return err
}

// GetAccountState reads balance and init status of an address.
func (c *Client) GetAccountState(ctx context.Context, addr string) (*AccountState, error) {
	q := url.Values{"address": {addr}}
	raw, err := c.do(ctx, "getAddressInformation", http.MethodGet, "/getAddressInformation", q, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Balance json.Number `json:"balance"`
		State   string      `json:"state"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, chainErr("getAddressInformation", ErrKindMalformed, err)
	}

	balance := new(big.Int)
	if s := payload.Balance.String(); s != "" && s != "null" {
		if _, ok := balance.SetString(s, 10); !ok {
			return nil, chainErr("getAddressInformation", ErrKindMalformed, fmt.Errorf("bad balance %q", s))
		}
	}
	state := payload.State
	if state == "" {
		state = "uninitialized"
	}
	return &AccountState{BalanceNano: balance, Status: state}, nil
}

// RunGetMethod invokes a read-only contract method.
func (c *Client) RunGetMethod(ctx context.Context, addr, method string, stack [][]any) (*GetMethodResult, error) {
	if stack == nil {
		stack = [][]any{}
	}
	raw, err := c.do(ctx, "runGetMethod", http.MethodPost, "/runGetMethod", nil, map[string]any{
		"address": addr,
		"method":  method,
		"stack":   stack,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		ExitCode int     `json:"exit_code"`
		Stack    [][]any `json:"stack"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, chainErr("runGetMethod", ErrKindMalformed, err)
	}
	return &GetMethodResult{ExitCode: payload.ExitCode, Stack: payload.Stack}, nil
}

// FirstInt pulls the first numeric stack entry of a get-method result.
// toncenter кодирует числа как ["num", "0x1"].
func (r *GetMethodResult) FirstInt() (int64, error) {
	if len(r.Stack) == 0 || len(r.Stack[0]) < 2 {
		return 0, fmt.Errorf("empty get-method stack")
	}
	s, ok := r.Stack[0][1].(string)
	if !ok {
		return 0, fmt.Errorf("unexpected stack entry %v", r.Stack[0])
	}
	return strconv.ParseInt(strings.TrimPrefix(s, "0x"), 16, 64)
}

// Seqno returns the wallet sequence counter. An uninitialized account is
// seqno 0 by decision — "no transactions yet" is not a failure. Query
// failures still propagate as errors.
func (c *Client) Seqno(ctx context.Context, addr string) (uint32, error) {
	state, err := c.GetAccountState(ctx, addr)
	if err != nil {
		return 0, err
	}
	if !state.Initialized() {
		return 0, nil
	}

	res, err := c.RunGetMethod(ctx, addr, "seqno", nil)
	if err != nil {
		return 0, err
	}
	if res.ExitCode != 0 {
		return 0, chainErr("seqno", ErrKindContractRejected, fmt.Errorf("exit code %d", res.ExitCode))
	}
	n, err := res.FirstInt()
	if err != nil {
		return 0, chainErr("seqno", ErrKindMalformed, err)
	}
	return uint32(n), nil
}

// GetTransactions lists recent transactions for an address — the
// seqno-discovery fallback when the get method is unavailable.
func (c *Client) GetTransactions(ctx context.Context, addr string, limit int) ([]TxInfo, error) {
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{
		"address": {addr},
		"limit":   {strconv.Itoa(limit)},
	}
	raw, err := c.do(ctx, "getTransactions", http.MethodGet, "/getTransactions", q, nil)
	if err != nil {
		return nil, err
	}

	var payload []struct {
		TransactionID struct {
			Hash string      `json:"hash"`
			Lt   json.Number `json:"lt"`
		} `json:"transaction_id"`
		InMsg struct {
			Value   json.Number `json:"value"`
			Message string      `json:"message"`
		} `json:"in_msg"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, chainErr("getTransactions", ErrKindMalformed, err)
	}

	txs := make([]TxInfo, 0, len(payload))
	for _, t := range payload {
		lt, _ := strconv.ParseUint(t.TransactionID.Lt.String(), 10, 64)
		amount := new(big.Int)
		if s := t.InMsg.Value.String(); s != "" && s != "null" {
			amount.SetString(s, 10)
		}
		txs = append(txs, TxInfo{
			Hash:       t.TransactionID.Hash,
			Lt:         lt,
			AmountNano: amount,
			Comment:    t.InMsg.Message,
		})
	}
	return txs, nil
}
