package credit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"creditledger/core/events"
)

func TestLenderRegistry(t *testing.T) {
	h := newHarness(t)

	require.ErrorIs(t, h.engine.AddLender(stranger, lenderA), ErrUnauthorized)
	require.ErrorIs(t, h.engine.AddLender(admin, Identity{}), ErrInvalidArgument)

	h.withLenders(t, lenderA, lenderB)
	require.ErrorIs(t, h.engine.AddLender(admin, lenderA), ErrAlreadyExists)
	require.True(t, h.engine.HasRole(RoleLender, lenderA))

	lenders, err := h.engine.ActiveLenders()
	require.NoError(t, err)
	require.Equal(t, []Identity{lenderA, lenderB}, lenders)

	require.ErrorIs(t, h.engine.RemoveLender(admin, stranger), ErrNotFound)
	require.NoError(t, h.engine.RemoveLender(admin, lenderA))
	require.NoError(t, h.engine.RemoveLender(admin, lenderA))
	require.False(t, h.engine.HasRole(RoleLender, lenderA))

	lenders, err = h.engine.ActiveLenders()
	require.NoError(t, err)
	require.Equal(t, []Identity{lenderB}, lenders)

	record, err := h.engine.Lender(lenderA)
	require.NoError(t, err)
	require.False(t, record.Active)

	// reactivation keeps the original listing position
	require.NoError(t, h.engine.AddLender(admin, lenderA))
	lenders, err = h.engine.ActiveLenders()
	require.NoError(t, err)
	require.Equal(t, []Identity{lenderA, lenderB}, lenders)

	require.Equal(t, []string{
		events.TypeCreditRoleGranted,
		events.TypeCreditLenderAdded,
		events.TypeCreditLenderAdded,
		events.TypeCreditLenderRemoved,
		events.TypeCreditLenderAdded,
	}, h.recorder.Types())
}

func TestRemovedLenderKeepsPlansButCannotIssue(t *testing.T) {
	h := newHarness(t)
	h.withLenders(t, lenderA)
	plan := h.activePlan(t, lenderA, 100, 0, 2, 200)

	require.NoError(t, h.engine.RemoveLender(admin, lenderA))

	owner, err := h.engine.LenderOf(plan.ID)
	require.NoError(t, err)
	require.Equal(t, lenderA, owner)

	_, err = h.engine.CreatePaymentPlan(lenderA, PlanRequest{Borrower: borrower, Principal: amount(100), DurationSeconds: 10, Installments: 1})
	require.ErrorIs(t, err, ErrUnauthorized)

	// the borrower can still settle the plan
	_, err = h.engine.Payment(borrower, plan.ID, amount(100))
	require.NoError(t, err)
}

func TestUpdateLenderRepointsEverything(t *testing.T) {
	h := newHarness(t)
	other := Identity{0x0C}
	replacement := Identity{0x1F}
	h.withLenders(t, lenderA, lenderB)

	first := h.activePlan(t, lenderA, 100, 0, 2, 200)
	second := h.proposePlan(t, lenderA, 300, 5, 3, 300)
	_, err := h.engine.NewProfile(other, other)
	require.NoError(t, err)
	require.NoError(t, h.engine.ApproveLender(other, lenderA))
	require.NoError(t, h.engine.ApproveLender(other, lenderB))

	require.ErrorIs(t, h.engine.UpdateLender(stranger, lenderA, replacement), ErrUnauthorized)
	require.ErrorIs(t, h.engine.UpdateLender(admin, stranger, replacement), ErrNotFound)
	require.ErrorIs(t, h.engine.UpdateLender(admin, lenderA, lenderB), ErrAlreadyExists)
	require.ErrorIs(t, h.engine.UpdateLender(admin, lenderA, lenderA), ErrInvalidArgument)

	require.NoError(t, h.engine.UpdateLender(admin, lenderA, replacement))

	for _, planID := range []uint64{first.ID, second.ID} {
		owner, err := h.engine.LenderOf(planID)
		require.NoError(t, err)
		require.Equal(t, replacement, owner, "plan %d", planID)
	}
	plans, err := h.engine.LenderPlans(replacement)
	require.NoError(t, err)
	require.Equal(t, []uint64{first.ID, second.ID}, plans)
	plans, err = h.engine.LenderPlans(lenderA)
	require.NoError(t, err)
	require.Empty(t, plans)

	lenders, err := h.engine.ActiveLenders()
	require.NoError(t, err)
	require.Equal(t, []Identity{replacement, lenderB}, lenders)

	require.False(t, h.engine.HasRole(RoleLender, lenderA))
	require.True(t, h.engine.HasRole(RoleLender, replacement))
	_, err = h.engine.Lender(lenderA)
	require.ErrorIs(t, err, ErrNotFound)

	for _, client := range []Identity{borrower, other} {
		profile, err := h.engine.Profile(client)
		require.NoError(t, err)
		require.NotContains(t, profile.Lenders, lenderA)
		require.Contains(t, profile.Lenders, replacement)
	}
	profile, err := h.engine.Profile(other)
	require.NoError(t, err)
	require.Equal(t, []Identity{replacement, lenderB}, profile.Lenders)

	// the new identity carries on issuing and collecting
	_, err = h.engine.Payment(replacement, first.ID, amount(50))
	require.NoError(t, err)
	third := h.proposePlan(t, replacement, 100, 0, 1, 10)
	plans, err = h.engine.LenderPlans(replacement)
	require.NoError(t, err)
	require.Equal(t, []uint64{first.ID, second.ID, third.ID}, plans)

	// the old identity can be registered again as a fresh lender
	require.NoError(t, h.engine.AddLender(admin, lenderA))

	evts := h.recorder.Events()
	var updated *events.CreditLenderUpdated
	for _, evt := range evts {
		if u, ok := evt.(events.CreditLenderUpdated); ok {
			updated = &u
		}
	}
	require.NotNil(t, updated)
	require.Equal(t, 2, updated.Plans)
	require.Equal(t, [20]byte(lenderA), updated.Previous)
}
