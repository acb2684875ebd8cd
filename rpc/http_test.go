package rpc

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"creditledger/core/state"
	"creditledger/native/credit"
	"creditledger/storage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var (
	adminID    = credit.Identity{0xAD}
	lenderID   = credit.Identity{0x1A}
	borrowerID = credit.Identity{0xB0}
)

type testServer struct {
	t       *testing.T
	engine  *credit.Engine
	server  *Server
	handler http.Handler
	jwt     JWTConfig
}

func newTestServer(t *testing.T, limit RateLimit) *testServer {
	t.Helper()
	engine := credit.NewEngine(state.NewManager(storage.NewMemDB()))
	require.NoError(t, engine.Bootstrap(adminID))
	jwtCfg := JWTConfig{HMACSecret: testSecret, Issuer: "creditd", Audience: "creditledger"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := NewServer(engine, ServerConfig{JWT: jwtCfg, RateLimit: limit}, logger)
	require.NoError(t, err)
	return &testServer{t: t, engine: engine, server: srv, handler: srv.Handler(), jwt: jwtCfg}
}

func (ts *testServer) token(id credit.Identity) string {
	ts.t.Helper()
	token, err := IssueToken(ts.jwt, id, time.Hour)
	require.NoError(ts.t, err)
	return token
}

func (ts *testServer) raw(token string, body []byte) (*httptest.ResponseRecorder, RPCResponse) {
	ts.t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	var resp RPCResponse
	require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func (ts *testServer) call(as *credit.Identity, method string, params ...interface{}) (*httptest.ResponseRecorder, RPCResponse) {
	ts.t.Helper()
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(ts.t, err)
	token := ""
	if as != nil {
		token = ts.token(*as)
	}
	return ts.raw(token, body)
}

func (ts *testServer) ok(as *credit.Identity, method string, params ...interface{}) json.RawMessage {
	ts.t.Helper()
	rec, resp := ts.call(as, method, params...)
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	require.Nil(ts.t, resp.Error)
	return resp.Result
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func requireRPCError(t *testing.T, rec *httptest.ResponseRecorder, resp RPCResponse, status, code int) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	require.NotNil(t, resp.Error)
	require.Equal(t, code, resp.Error.Code)
}

func TestHealthzAndRequestID(t *testing.T) {
	ts := newTestServer(t, RateLimit{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "req-42", rec.Header().Get(requestIDHeader))

	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestMutationsRequireToken(t *testing.T) {
	ts := newTestServer(t, RateLimit{})
	rec, resp := ts.call(nil, "credit_pause")
	requireRPCError(t, rec, resp, http.StatusUnauthorized, CodeUnauthorized)

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"credit_pause","params":[]}`)
	rec, resp = ts.raw("not-a-token", body)
	requireRPCError(t, rec, resp, http.StatusUnauthorized, CodeUnauthorized)

	other := JWTConfig{HMACSecret: strings.Repeat("x", 32), Issuer: "creditd", Audience: "creditledger"}
	forged, err := IssueToken(other, adminID, time.Hour)
	require.NoError(t, err)
	rec, resp = ts.raw(forged, body)
	requireRPCError(t, rec, resp, http.StatusUnauthorized, CodeUnauthorized)

	require.False(t, ts.engine.IsPaused())
}

func TestReadsAllowAnonymousCallers(t *testing.T) {
	ts := newTestServer(t, RateLimit{})
	require.False(t, decode[bool](t, ts.ok(nil, "credit_isPaused")))
	require.True(t, decode[bool](t, ts.ok(nil, "credit_hasRole", "ADMIN_ROLE", adminID.Hex())))

	rec, resp := ts.call(nil, "credit_getMyProfile")
	requireRPCError(t, rec, resp, http.StatusBadRequest, codeInvalidParams)
}

func TestRoleMismatchIsForbidden(t *testing.T) {
	ts := newTestServer(t, RateLimit{})
	rec, resp := ts.call(&borrowerID, "credit_addLender", lenderID.Hex())
	requireRPCError(t, rec, resp, http.StatusForbidden, CodeUnauthorized)
	data, ok := resp.Error.Data.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "Unauthorized", data["kind"])
}

func TestPaymentPlanFlow(t *testing.T) {
	ts := newTestServer(t, RateLimit{})
	ts.ok(&adminID, "credit_addLender", lenderID.Hex())
	require.Equal(t, []string{lenderID.Hex()}, decode[[]string](t, ts.ok(nil, "credit_getActiveLenders")))

	created := decode[PlanResult](t, ts.ok(&lenderID, "credit_createPaymentPlan", borrowerID.Hex(), "1000", 1200, 12, 10))
	require.Equal(t, uint64(1), created.ID)
	require.Equal(t, "1100", created.TotalDebt)
	require.Equal(t, "1100", created.UnPaidDebt)
	require.False(t, created.Approved)

	profile := decode[ProfileResult](t, ts.ok(nil, "credit_getMyProfile", borrowerID.Hex()))
	require.Equal(t, []string{lenderID.Hex()}, profile.Lenders)
	require.Equal(t, []uint64{1}, profile.PaymentPlans)

	rec, resp := ts.call(&borrowerID, "credit_payment", "10", 1)
	requireRPCError(t, rec, resp, http.StatusConflict, CodeInvalidState)

	approved := decode[PlanResult](t, ts.ok(&borrowerID, "credit_approveNewPaymentPlan", 1))
	require.True(t, approved.Approved)
	require.Equal(t, "91", decode[string](t, ts.ok(nil, "credit_getNextInstalmentAmount", 1)))

	paid := decode[PlanResult](t, ts.ok(&borrowerID, "credit_payment", "0x5b", "1"))
	require.Equal(t, "91", paid.PaidDebt)
	require.Equal(t, "1009", paid.UnPaidDebt)
	require.Equal(t, uint64(1), paid.InstallmentsPaid)

	rec, resp = ts.call(&borrowerID, "credit_payment", "5000", 1)
	requireRPCError(t, rec, resp, http.StatusUnprocessableEntity, CodeOverpayment)

	view := decode[PlanResult](t, ts.ok(nil, "credit_getPaymentPlan", 1))
	require.Equal(t, "active", view.Status)
	require.Equal(t, lenderID.Hex(), decode[string](t, ts.ok(nil, "credit_getLenderFromId", 1)))
	require.Equal(t, []uint64{1}, decode[[]uint64](t, ts.ok(nil, "credit_getLenderPlans", lenderID.Hex())))

	cols := decode[PlanColumnsResult](t, ts.ok(&borrowerID, "credit_getAllMyPaymentPlans"))
	require.Equal(t, []uint64{1}, cols.IDs)
	require.Equal(t, []string{"91"}, cols.PaidDebt)
	require.Equal(t, []string{"1009"}, cols.UnPaidDebt)

	ts.ok(&borrowerID, "credit_payment", 1009, 1)
	done := decode[PlanResult](t, ts.ok(nil, "credit_getPaymentPlan", 1))
	require.Equal(t, "completed", done.Status)
	require.False(t, done.Active)

	rec, resp = ts.call(&borrowerID, "credit_payment", "1", 1)
	requireRPCError(t, rec, resp, http.StatusConflict, CodePlanClosed)

	score := decode[uint64](t, ts.ok(nil, "credit_getMyCreditScore", lenderID.Hex(), borrowerID.Hex()))
	require.Equal(t, uint64(credit.MaxCreditScore), score)
	require.Equal(t, score, decode[uint64](t, ts.ok(&borrowerID, "credit_getMeanCreditScore")))
}

func TestPauseBlocksMutationsOverRPC(t *testing.T) {
	ts := newTestServer(t, RateLimit{})
	ts.ok(&adminID, "credit_addLender", lenderID.Hex())
	ts.ok(&adminID, "credit_pause")
	require.True(t, decode[bool](t, ts.ok(nil, "credit_isPaused")))

	rec, resp := ts.call(&lenderID, "credit_createPaymentPlan", borrowerID.Hex(), "1000", 1200, 12, 10)
	requireRPCError(t, rec, resp, http.StatusServiceUnavailable, CodePaused)

	ts.ok(&adminID, "credit_unpause")
	ts.ok(&lenderID, "credit_createPaymentPlan", borrowerID.Hex(), "1000", 1200, 12, 10)
}

func TestInvalidParams(t *testing.T) {
	ts := newTestServer(t, RateLimit{})
	ts.ok(&adminID, "credit_addLender", lenderID.Hex())

	cases := []struct {
		name   string
		method string
		params []interface{}
	}{
		{"arity", "credit_addLender", []interface{}{}},
		{"bad address", "credit_addLender", []interface{}{"0xnope"}},
		{"negative amount", "credit_createPaymentPlan", []interface{}{borrowerID.Hex(), "-1", 10, 1, 0}},
		{"amount beyond 256 bits", "credit_createPaymentPlan", []interface{}{borrowerID.Hex(), "0x1" + strings.Repeat("0", 64), 10, 1, 0}},
		{"bad plan id", "credit_payment", []interface{}{"1", "one"}},
		{"zero installments", "credit_createPaymentPlan", []interface{}{borrowerID.Hex(), "100", 10, 0, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, resp := ts.call(&lenderID, tc.method, tc.params...)
			requireRPCError(t, rec, resp, http.StatusBadRequest, codeInvalidParams)
		})
	}
}

func TestProtocolErrors(t *testing.T) {
	ts := newTestServer(t, RateLimit{})

	rec, resp := ts.raw("", []byte(`{"jsonrpc":"2.0","id":1,"method":`))
	requireRPCError(t, rec, resp, http.StatusBadRequest, codeParseError)

	rec, resp = ts.raw("", []byte(`{"jsonrpc":"1.0","id":1,"method":"credit_isPaused"}`))
	requireRPCError(t, rec, resp, http.StatusBadRequest, codeInvalidRequest)

	rec, resp = ts.call(nil, "credit_mint")
	requireRPCError(t, rec, resp, http.StatusNotFound, codeMethodNotFound)

	rec, resp = ts.call(nil, "credit_getPaymentPlan", 99)
	requireRPCError(t, rec, resp, http.StatusNotFound, CodeNotFound)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, RateLimit{RequestsPerMinute: 1, Burst: 1})
	ts.ok(nil, "credit_isPaused")
	rec, resp := ts.call(nil, "credit_isPaused")
	requireRPCError(t, rec, resp, http.StatusTooManyRequests, codeRateLimited)
}

func TestRateLimitIgnoresSpoofedForwardingHeaders(t *testing.T) {
	send := func(ts *testServer, forwardedFor string) int {
		body := []byte(`{"jsonrpc":"2.0","id":1,"method":"credit_isPaused","params":[]}`)
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		return rec.Code
	}

	direct := newTestServer(t, RateLimit{RequestsPerMinute: 1, Burst: 1})
	require.Equal(t, http.StatusOK, send(direct, "198.51.100.1"))
	require.Equal(t, http.StatusTooManyRequests, send(direct, "198.51.100.2"))

	// httptest requests arrive from 192.0.2.1
	proxied := newTestServer(t, RateLimit{RequestsPerMinute: 1, Burst: 1, TrustedProxies: []string{"192.0.2.0/24"}})
	require.Equal(t, http.StatusOK, send(proxied, "198.51.100.1"))
	require.Equal(t, http.StatusOK, send(proxied, "198.51.100.2, 192.0.2.1"))
	require.Equal(t, http.StatusTooManyRequests, send(proxied, "198.51.100.1"))
}

func TestNewRateLimiterRejectsBadProxies(t *testing.T) {
	_, err := NewRateLimiter(RateLimit{TrustedProxies: []string{"10.0.0.0/33"}}, nil)
	require.Error(t, err)
	_, err = NewRateLimiter(RateLimit{TrustedProxies: []string{"proxy.local"}}, nil)
	require.Error(t, err)
	limiter, err := NewRateLimiter(RateLimit{TrustedProxies: []string{"10.0.0.1", " ", "fd00::/8"}}, nil)
	require.NoError(t, err)
	require.True(t, limiter.trustedPeer("10.0.0.1"))
	require.True(t, limiter.trustedPeer("fd00::5"))
	require.False(t, limiter.trustedPeer("10.0.0.2"))
}

func TestMethodTableCoversLedger(t *testing.T) {
	ts := newTestServer(t, RateLimit{})
	names := ts.server.MethodNames()
	for _, name := range []string{
		"credit_addLender", "credit_removeLender", "credit_updateLender", "credit_getActiveLenders",
		"credit_newClient", "credit_getMyProfile", "credit_isClientActive", "credit_createPaymentPlan",
		"credit_approveNewPaymentPlan", "credit_payment", "credit_getNextInstalmentAmount",
		"credit_getNextInstalmentDeadline", "credit_getLenderFromId", "credit_getAllMyPaymentPlans",
		"credit_getMyCreditScore", "credit_getMeanCreditScore", "credit_pause", "credit_unpause",
	} {
		require.Contains(t, names, name)
	}
}
