package credit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"creditledger/core/events"
)

func TestNewProfileIsIdempotent(t *testing.T) {
	h := newHarness(t)

	active, err := h.engine.IsClientActive(borrower)
	require.NoError(t, err)
	require.False(t, active)
	_, err = h.engine.Profile(borrower)
	require.ErrorIs(t, err, ErrNotFound)

	created, err := h.engine.NewProfile(borrower, borrower)
	require.NoError(t, err)
	require.True(t, created.Active)
	require.Empty(t, created.Lenders)
	require.Empty(t, created.PaymentPlans)
	require.True(t, h.engine.HasRole(RoleUser, borrower))

	h.clock.Advance(time.Hour)
	again, err := h.engine.NewProfile(borrower, borrower)
	require.NoError(t, err)
	require.Equal(t, created, again)

	active, err = h.engine.IsClientActive(borrower)
	require.NoError(t, err)
	require.True(t, active)

	require.Equal(t, []string{events.TypeCreditRoleGranted, events.TypeCreditProfileCreated}, h.recorder.Types())
}

func TestNewProfileCallers(t *testing.T) {
	h := newHarness(t)
	h.withLenders(t, lenderA)

	_, err := h.engine.NewProfile(stranger, borrower)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = h.engine.NewProfile(lenderA, borrower)
	require.NoError(t, err)
	_, err = h.engine.NewProfile(admin, Identity{0x99})
	require.NoError(t, err)
	_, err = h.engine.NewProfile(admin, Identity{})
	require.ErrorIs(t, err, ErrInvalidArgument)

	require.NoError(t, h.engine.RemoveLender(admin, lenderA))
	_, err = h.engine.NewProfile(lenderA, Identity{0x98})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestApproveLender(t *testing.T) {
	h := newHarness(t)
	h.withLenders(t, lenderA)

	require.ErrorIs(t, h.engine.ApproveLender(borrower, lenderA), ErrNotFound)
	_, err := h.engine.NewProfile(borrower, borrower)
	require.NoError(t, err)
	require.ErrorIs(t, h.engine.ApproveLender(borrower, stranger), ErrNotFound)

	require.NoError(t, h.engine.ApproveLender(borrower, lenderA))
	require.NoError(t, h.engine.ApproveLender(borrower, lenderA))

	profile, err := h.engine.Profile(borrower)
	require.NoError(t, err)
	require.Equal(t, []Identity{lenderA}, profile.Lenders)

	// a plan from an approved lender does not duplicate the entry
	h.proposePlan(t, lenderA, 100, 0, 1, 10)
	profile, err = h.engine.Profile(borrower)
	require.NoError(t, err)
	require.Equal(t, []Identity{lenderA}, profile.Lenders)
	require.Equal(t, []uint64{1}, profile.PaymentPlans)

	approvals := 0
	for _, typ := range h.recorder.Types() {
		if typ == events.TypeCreditLenderApproved {
			approvals++
		}
	}
	require.Equal(t, 1, approvals)
}
