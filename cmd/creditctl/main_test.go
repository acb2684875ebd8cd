package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"creditledger/core/state"
	"creditledger/crypto"
	"creditledger/native/credit"
	"creditledger/rpc"
	creditsdk "creditledger/sdk/credit"
	"creditledger/storage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestKeygenAndAddressAgree(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runKeygen(&out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	keyHex := strings.TrimSpace(strings.TrimPrefix(lines[0], "private key:"))
	addrHex := strings.TrimSpace(strings.TrimPrefix(lines[1], "address:"))
	require.True(t, strings.HasPrefix(strings.TrimSpace(strings.TrimPrefix(lines[2], "bech32:")), "cred1"))

	keyFile := filepath.Join(t.TempDir(), "admin.key")
	require.NoError(t, os.WriteFile(keyFile, []byte(keyHex+"\n"), 0o600))
	out.Reset()
	require.NoError(t, runAddress([]string{keyFile}, &out))
	require.True(t, strings.HasPrefix(out.String(), addrHex+" "))

	key, err := crypto.PrivateKeyFromHex(keyHex)
	require.NoError(t, err)
	require.Equal(t, addrHex, key.PubKey().Address().Hex())
}

func TestMintTokenVerifies(t *testing.T) {
	cfg := rpc.JWTConfig{HMACSecret: testSecret, Issuer: "creditd", Audience: "creditledger"}
	subject := credit.Identity{0x42}
	var out bytes.Buffer
	require.NoError(t, mintToken(&out, cfg, subject, time.Minute))

	auth, err := rpc.NewAuthenticator(cfg, nil)
	require.NoError(t, err)
	caller, err := auth.Verify(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	require.Equal(t, subject, caller)
}

func TestParseParam(t *testing.T) {
	require.Equal(t, "0xabc", parseParam("0xabc"))
	require.Equal(t, json.RawMessage("12"), parseParam("12"))
	require.Equal(t, json.RawMessage(`"1000"`), parseParam(`"1000"`))
	require.Equal(t, "ADMIN_ROLE", parseParam("ADMIN_ROLE"))
}

func TestInvokePrintsResult(t *testing.T) {
	engine := credit.NewEngine(state.NewManager(storage.NewMemDB()))
	admin := credit.Identity{0xAD}
	require.NoError(t, engine.Bootstrap(admin))
	srv, err := rpc.NewServer(engine, rpc.ServerConfig{JWT: rpc.JWTConfig{HMACSecret: testSecret}}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client, err := creditsdk.New(ts.URL + "/rpc")
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, invoke(context.Background(), client, &out, "hasRole", []string{"ADMIN_ROLE", admin.Hex()}))
	require.Equal(t, "true", strings.TrimSpace(out.String()))
}
