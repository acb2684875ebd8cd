package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"creditledger/config"
	"creditledger/native/credit"
	"creditledger/rpc"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testConfig(t *testing.T, inMemory bool) *config.Config {
	return &config.Config{
		DataDir:      t.TempDir(),
		InMemory:     inMemory,
		AdminAddress: "0x00000000000000000000000000000000000000aa",
		Auth:         config.AuthConfig{HMACSecret: testSecret, Issuer: "creditd", Audience: "creditledger", ClockSkewSeconds: 60},
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewNodeServesLedger(t *testing.T) {
	cfg := testConfig(t, true)
	n, err := newNode(cfg, discard())
	require.NoError(t, err)
	defer n.Close()

	admin, err := credit.ParseIdentity(cfg.AdminAddress)
	require.NoError(t, err)
	require.True(t, n.engine.HasRole(credit.RoleAdmin, admin))

	token, err := rpc.IssueToken(rpc.JWTConfig{HMACSecret: testSecret, Issuer: "creditd", Audience: "creditledger"}, admin, time.Minute)
	require.NoError(t, err)
	body := []byte(`{"jsonrpc":"2.0","id":7,"method":"credit_addLender","params":["0x00000000000000000000000000000000000000bb"]}`)
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	n.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp rpc.RPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Nil(t, resp.Error)
	require.JSONEq(t, "7", string(resp.ID))
}

func TestNewNodeHonoursConfiguredPause(t *testing.T) {
	cfg := testConfig(t, true)
	cfg.Pauses.Credit = true
	n, err := newNode(cfg, discard())
	require.NoError(t, err)
	defer n.Close()
	require.True(t, n.engine.IsPaused())
}

func TestNewNodePersistsAcrossRestarts(t *testing.T) {
	cfg := testConfig(t, false)
	lender := credit.Identity{0xBB}
	admin, err := credit.ParseIdentity(cfg.AdminAddress)
	require.NoError(t, err)

	first, err := newNode(cfg, discard())
	require.NoError(t, err)
	require.NoError(t, first.engine.AddLender(admin, lender))
	require.NoError(t, first.Close())

	second, err := newNode(cfg, discard())
	require.NoError(t, err)
	defer second.Close()
	record, err := second.engine.Lender(lender)
	require.NoError(t, err)
	require.True(t, record.Active)
	require.DirExists(t, filepath.Join(cfg.DataDir, "ledger"))
}

func TestNewNodeRejectsBadAdmin(t *testing.T) {
	cfg := testConfig(t, true)
	cfg.AdminAddress = "bogus"
	_, err := newNode(cfg, discard())
	require.Error(t, err)
}
