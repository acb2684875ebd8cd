package credit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"creditledger/core/state"
	ledger "creditledger/native/credit"
	"creditledger/rpc"
	"creditledger/storage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var (
	admin    = ledger.Identity{0xAD}
	lender   = ledger.Identity{0x1A}
	borrower = ledger.Identity{0xB0}
)

type fixture struct {
	t      *testing.T
	url    string
	jwtCfg rpc.JWTConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine := ledger.NewEngine(state.NewManager(storage.NewMemDB()))
	require.NoError(t, engine.Bootstrap(admin))
	jwtCfg := rpc.JWTConfig{HMACSecret: testSecret, Issuer: "creditd", Audience: "creditledger"}
	srv, err := rpc.NewServer(engine, rpc.ServerConfig{JWT: jwtCfg}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{t: t, url: ts.URL + "/rpc", jwtCfg: jwtCfg}
}

func (f *fixture) client(as *ledger.Identity) *Client {
	f.t.Helper()
	var opts []Option
	if as != nil {
		token, err := rpc.IssueToken(f.jwtCfg, *as, time.Hour)
		require.NoError(f.t, err)
		opts = append(opts, WithToken(token))
	}
	c, err := New(f.url, opts...)
	require.NoError(f.t, err)
	return c
}

func TestNewValidatesEndpoint(t *testing.T) {
	_, err := New("  ")
	require.Error(t, err)
	_, err = New("not a url")
	require.Error(t, err)
}

func TestClientPlanLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	adminClient := f.client(&admin)
	lenderClient := f.client(&lender)
	borrowerClient := f.client(&borrower)
	anon := f.client(nil)

	require.NoError(t, adminClient.AddLender(ctx, lender))
	lenders, err := anon.ActiveLenders(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{lender.Hex()}, lenders)

	plan, err := lenderClient.CreatePaymentPlan(ctx, borrower, big.NewInt(1000), 1200, 12, 10)
	require.NoError(t, err)
	require.Equal(t, "1100", plan.TotalDebt)

	_, err = borrowerClient.ApprovePaymentPlan(ctx, plan.ID)
	require.NoError(t, err)

	next, err := anon.NextInstallmentAmount(ctx, plan.ID)
	require.NoError(t, err)
	require.Equal(t, int64(91), next.Int64())

	deadline, err := anon.NextInstallmentDeadline(ctx, plan.ID)
	require.NoError(t, err)
	require.True(t, deadline.After(time.Unix(0, 0)))

	_, err = borrowerClient.Payment(ctx, plan.ID, big.NewInt(2000))
	require.ErrorIs(t, err, ledger.ErrOverpayment)
	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, rpc.CodeOverpayment, rpcErr.Code)

	updated, err := borrowerClient.Payment(ctx, plan.ID, big.NewInt(1100))
	require.NoError(t, err)
	require.Equal(t, "0", updated.UnPaidDebt)

	cols, err := anon.PaymentPlans(ctx, borrower)
	require.NoError(t, err)
	require.Equal(t, []uint64{plan.ID}, cols.IDs)

	score, err := anon.CreditScore(ctx, borrower, lender)
	require.NoError(t, err)
	require.Equal(t, uint64(ledger.MaxCreditScore), score)

	profile, err := anon.Profile(ctx, borrower)
	require.NoError(t, err)
	require.Equal(t, uint64(1), profile.NumberOfLoans)
	require.Equal(t, uint64(1), profile.NumberOfCreditScores)
}

func TestClientMapsAccessErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.client(nil).Pause(ctx)
	require.ErrorIs(t, err, ledger.ErrUnauthorized)

	err = f.client(&borrower).Pause(ctx)
	require.ErrorIs(t, err, ledger.ErrUnauthorized)

	err = f.client(&admin).RevokeRole(ctx, ledger.RoleAdmin, admin)
	require.ErrorIs(t, err, ledger.ErrUnauthorized)

	_, err = f.client(nil).PaymentPlan(ctx, 42)
	require.ErrorIs(t, err, ledger.ErrNotFound)

	require.NoError(t, f.client(&admin).Pause(ctx))
	paused, err := f.client(nil).IsPaused(ctx)
	require.NoError(t, err)
	require.True(t, paused)
	err = f.client(&admin).AddLender(ctx, lender)
	require.ErrorIs(t, err, ledger.ErrPaused)
}
