package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"creditledger/cmd/internal/secret"
	"creditledger/config"
	"creditledger/crypto"
	"creditledger/native/credit"
	"creditledger/rpc"
	creditsdk "creditledger/sdk/credit"
)

const (
	defaultEndpoint = "http://127.0.0.1:8545/rpc"
	envToken        = "CREDITD_TOKEN"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case "keygen":
		err = runKeygen(os.Stdout)
	case "address":
		err = runAddress(os.Args[2:], os.Stdout)
	case "token":
		err = runToken(os.Args[2:], os.Stdout)
	case "call":
		err = runCall(os.Args[2:], os.Stdout)
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	default:
		usage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `Usage: creditctl <command> [flags]

Commands:
  keygen                          generate a new identity key
  address <key-file|hex>          print the identity of a private key
  token -subject <address>        mint a bearer token for creditd
  call [-endpoint url] <method> [params...]
                                  invoke a credit_* JSON-RPC method`)
}

func runKeygen(w io.Writer) error {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	addr := key.PubKey().Address()
	fmt.Fprintf(w, "private key: %s\n", hex.EncodeToString(key.Bytes()))
	fmt.Fprintf(w, "address:     %s\n", addr.Hex())
	fmt.Fprintf(w, "bech32:      %s\n", addr.String())
	return nil
}

func runAddress(args []string, w io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("address expects a key file or hex key")
	}
	raw := args[0]
	if data, err := os.ReadFile(raw); err == nil {
		raw = string(data)
	}
	key, err := crypto.PrivateKeyFromHex(raw)
	if err != nil {
		return err
	}
	addr := key.PubKey().Address()
	fmt.Fprintf(w, "%s %s\n", addr.Hex(), addr.String())
	return nil
}

func runToken(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "", "identity the token authenticates (0x or bech32)")
	issuer := fs.String("issuer", "creditd", "token issuer")
	audience := fs.String("audience", "creditledger", "token audience")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	secretEnv := fs.String("secret-env", config.EnvJWTSecret, "environment variable holding the signing secret")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := credit.ParseIdentity(*subject)
	if err != nil {
		return fmt.Errorf("subject: %w", err)
	}
	signingSecret, err := secret.NewSource(*secretEnv, "token signing secret").Get()
	if err != nil {
		return err
	}
	return mintToken(w, rpc.JWTConfig{HMACSecret: signingSecret, Issuer: *issuer, Audience: *audience}, id, *ttl)
}

func mintToken(w io.Writer, cfg rpc.JWTConfig, subject credit.Identity, ttl time.Duration) error {
	token, err := rpc.IssueToken(cfg, subject, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, token)
	return nil
}

func runCall(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	endpoint := fs.String("endpoint", defaultEndpoint, "creditd JSON-RPC endpoint")
	token := fs.String("token", os.Getenv(envToken), "bearer token (defaults to $"+envToken+")")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("call expects a method name")
	}
	client, err := creditsdk.New(*endpoint, creditsdk.WithToken(*token))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	return invoke(ctx, client, w, fs.Arg(0), fs.Args()[1:])
}

func invoke(ctx context.Context, client *creditsdk.Client, w io.Writer, method string, rawParams []string) error {
	if !strings.HasPrefix(method, "credit_") {
		method = "credit_" + method
	}
	params := make([]interface{}, len(rawParams))
	for i, raw := range rawParams {
		params[i] = parseParam(raw)
	}
	var result json.RawMessage
	if err := client.Call(ctx, method, &result, params...); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// parseParam passes JSON literals through and quotes everything else, so
// addresses and decimal amounts can be typed bare.
func parseParam(raw string) interface{} {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "cred1") {
		return trimmed
	}
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	return trimmed
}
