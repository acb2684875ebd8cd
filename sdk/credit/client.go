package credit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	ledger "creditledger/native/credit"
	"creditledger/rpc"
)

// Client wraps the creditd JSON-RPC endpoint.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	nextID     atomic.Uint64
}

// Option mutates the client configuration during construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithToken authenticates every call with the supplied bearer token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// New constructs a client pointed at the supplied JSON-RPC endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("endpoint required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	client := &Client{
		endpoint:   trimmed,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Error is a JSON-RPC error returned by creditd. It unwraps to the matching
// credit engine error so callers can use errors.Is.
type Error struct {
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *Error) Error() string {
	return fmt.Sprintf("creditd error %d: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return rpc.ErrorForCode(e.Code)
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	} `json:"error"`
}

// Call invokes method with params and decodes the result into out, which may
// be nil.
func (c *Client) Call(ctx context.Context, method string, out interface{}, params ...interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var decoded rpcResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("creditd %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if decoded.Error != nil {
		return &Error{Code: decoded.Error.Code, Message: decoded.Error.Message, Data: decoded.Error.Data}
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("creditd %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func (c *Client) IsPaused(ctx context.Context) (bool, error) {
	var paused bool
	err := c.Call(ctx, "credit_isPaused", &paused)
	return paused, err
}

func (c *Client) Pause(ctx context.Context) error {
	return c.Call(ctx, "credit_pause", nil)
}

func (c *Client) Unpause(ctx context.Context) error {
	return c.Call(ctx, "credit_unpause", nil)
}

func (c *Client) HasRole(ctx context.Context, role ledger.Role, account ledger.Identity) (bool, error) {
	var ok bool
	err := c.Call(ctx, "credit_hasRole", &ok, string(role), account.Hex())
	return ok, err
}

func (c *Client) GrantRole(ctx context.Context, role ledger.Role, account ledger.Identity) error {
	return c.Call(ctx, "credit_grantRole", nil, string(role), account.Hex())
}

func (c *Client) RevokeRole(ctx context.Context, role ledger.Role, account ledger.Identity) error {
	return c.Call(ctx, "credit_revokeRole", nil, string(role), account.Hex())
}

func (c *Client) AddLender(ctx context.Context, lender ledger.Identity) error {
	return c.Call(ctx, "credit_addLender", nil, lender.Hex())
}

func (c *Client) RemoveLender(ctx context.Context, lender ledger.Identity) error {
	return c.Call(ctx, "credit_removeLender", nil, lender.Hex())
}

func (c *Client) UpdateLender(ctx context.Context, previous, current ledger.Identity) error {
	return c.Call(ctx, "credit_updateLender", nil, previous.Hex(), current.Hex())
}

func (c *Client) ActiveLenders(ctx context.Context) ([]string, error) {
	var lenders []string
	err := c.Call(ctx, "credit_getActiveLenders", &lenders)
	return lenders, err
}

func (c *Client) NewClient(ctx context.Context, client ledger.Identity) (*rpc.ProfileResult, error) {
	var profile rpc.ProfileResult
	if err := c.Call(ctx, "credit_newClient", &profile, client.Hex()); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Profile fetches the profile of client.
func (c *Client) Profile(ctx context.Context, client ledger.Identity) (*rpc.ProfileResult, error) {
	var profile rpc.ProfileResult
	if err := c.Call(ctx, "credit_getMyProfile", &profile, client.Hex()); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *Client) ApproveLender(ctx context.Context, lender ledger.Identity) error {
	return c.Call(ctx, "credit_approveLender", nil, lender.Hex())
}

// CreatePaymentPlan proposes a plan from the authenticated lender to
// borrower.
func (c *Client) CreatePaymentPlan(ctx context.Context, borrower ledger.Identity, principal *big.Int, duration, installments, ratePercent uint64) (*rpc.PlanResult, error) {
	if principal == nil {
		return nil, fmt.Errorf("principal required")
	}
	var plan rpc.PlanResult
	if err := c.Call(ctx, "credit_createPaymentPlan", &plan, borrower.Hex(), principal.String(), duration, installments, ratePercent); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (c *Client) ApprovePaymentPlan(ctx context.Context, planID uint64) (*rpc.PlanResult, error) {
	var plan rpc.PlanResult
	if err := c.Call(ctx, "credit_approveNewPaymentPlan", &plan, planID); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (c *Client) Payment(ctx context.Context, planID uint64, amount *big.Int) (*rpc.PlanResult, error) {
	if amount == nil {
		return nil, fmt.Errorf("amount required")
	}
	var plan rpc.PlanResult
	if err := c.Call(ctx, "credit_payment", &plan, amount.String(), planID); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (c *Client) PaymentPlan(ctx context.Context, planID uint64) (*rpc.PlanResult, error) {
	var plan rpc.PlanResult
	if err := c.Call(ctx, "credit_getPaymentPlan", &plan, planID); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (c *Client) PaymentPlans(ctx context.Context, client ledger.Identity) (*rpc.PlanColumnsResult, error) {
	var cols rpc.PlanColumnsResult
	if err := c.Call(ctx, "credit_getAllMyPaymentPlans", &cols, client.Hex()); err != nil {
		return nil, err
	}
	return &cols, nil
}

// NextInstallmentAmount returns the amount due on the plan's next
// installment.
func (c *Client) NextInstallmentAmount(ctx context.Context, planID uint64) (*big.Int, error) {
	var raw string
	if err := c.Call(ctx, "credit_getNextInstalmentAmount", &raw, planID); err != nil {
		return nil, err
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", raw)
	}
	return amount, nil
}

func (c *Client) NextInstallmentDeadline(ctx context.Context, planID uint64) (time.Time, error) {
	var deadline int64
	if err := c.Call(ctx, "credit_getNextInstalmentDeadline", &deadline, planID); err != nil {
		return time.Time{}, err
	}
	return time.Unix(deadline, 0).UTC(), nil
}

func (c *Client) CreditScore(ctx context.Context, client, lender ledger.Identity) (uint64, error) {
	var score uint64
	err := c.Call(ctx, "credit_getMyCreditScore", &score, lender.Hex(), client.Hex())
	return score, err
}

func (c *Client) MeanCreditScore(ctx context.Context, client ledger.Identity) (uint64, error) {
	var score uint64
	err := c.Call(ctx, "credit_getMeanCreditScore", &score, client.Hex())
	return score, err
}
