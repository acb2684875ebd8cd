package events

import (
	"math/big"
	"strconv"

	"creditledger/core/types"
	"creditledger/crypto"
)

const (
	TypeCreditPaused         = "credit.paused"
	TypeCreditUnpaused       = "credit.unpaused"
	TypeCreditRoleGranted    = "credit.roleGranted"
	TypeCreditRoleRevoked    = "credit.roleRevoked"
	TypeCreditLenderAdded    = "credit.lenderAdded"
	TypeCreditLenderRemoved  = "credit.lenderRemoved"
	TypeCreditLenderUpdated  = "credit.lenderUpdated"
	TypeCreditProfileCreated = "credit.profileCreated"
	TypeCreditLenderApproved = "credit.lenderApproved"
	TypeCreditPlanCreated    = "credit.planCreated"
	TypeCreditPlanApproved   = "credit.planApproved"
	TypeCreditPaymentApplied = "credit.paymentApplied"
	TypeCreditPlanCompleted  = "credit.planCompleted"
)

// CreditPauseChanged is emitted when an administrator toggles the ledger pause
// switch.
type CreditPauseChanged struct {
	Paused bool
	By     [20]byte
}

func (e CreditPauseChanged) EventType() string {
	if e.Paused {
		return TypeCreditPaused
	}
	return TypeCreditUnpaused
}

func (e CreditPauseChanged) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{"by": hexAddress(e.By)}}
}

// CreditRoleChanged records a role grant or revocation.
type CreditRoleChanged struct {
	Role    string
	Account [20]byte
	Granted bool
	By      [20]byte
}

func (e CreditRoleChanged) EventType() string {
	if e.Granted {
		return TypeCreditRoleGranted
	}
	return TypeCreditRoleRevoked
}

func (e CreditRoleChanged) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{
		"role":    e.Role,
		"account": hexAddress(e.Account),
		"by":      hexAddress(e.By),
	}}
}

type CreditLenderAdded struct {
	Lender [20]byte
}

func (CreditLenderAdded) EventType() string { return TypeCreditLenderAdded }

func (e CreditLenderAdded) Event() *types.Event {
	return &types.Event{Type: TypeCreditLenderAdded, Attributes: map[string]string{"lender": hexAddress(e.Lender)}}
}

type CreditLenderRemoved struct {
	Lender [20]byte
}

func (CreditLenderRemoved) EventType() string { return TypeCreditLenderRemoved }

func (e CreditLenderRemoved) Event() *types.Event {
	return &types.Event{Type: TypeCreditLenderRemoved, Attributes: map[string]string{"lender": hexAddress(e.Lender)}}
}

// CreditLenderUpdated carries the identity swap performed by updateLender and
// the number of payment plans that were re-pointed.
type CreditLenderUpdated struct {
	Previous [20]byte
	Current  [20]byte
	Plans    int
}

func (CreditLenderUpdated) EventType() string { return TypeCreditLenderUpdated }

func (e CreditLenderUpdated) Event() *types.Event {
	return &types.Event{Type: TypeCreditLenderUpdated, Attributes: map[string]string{
		"previous": hexAddress(e.Previous),
		"current":  hexAddress(e.Current),
		"plans":    strconv.Itoa(e.Plans),
	}}
}

type CreditProfileCreated struct {
	Client [20]byte
}

func (CreditProfileCreated) EventType() string { return TypeCreditProfileCreated }

func (e CreditProfileCreated) Event() *types.Event {
	return &types.Event{Type: TypeCreditProfileCreated, Attributes: map[string]string{"client": hexAddress(e.Client)}}
}

type CreditLenderApproved struct {
	Client [20]byte
	Lender [20]byte
}

func (CreditLenderApproved) EventType() string { return TypeCreditLenderApproved }

func (e CreditLenderApproved) Event() *types.Event {
	return &types.Event{Type: TypeCreditLenderApproved, Attributes: map[string]string{
		"client": hexAddress(e.Client),
		"lender": hexAddress(e.Lender),
	}}
}

type CreditPlanCreated struct {
	PlanID       uint64
	Borrower     [20]byte
	Lender       [20]byte
	Principal    *big.Int
	TotalDebt    *big.Int
	Installments uint64
}

func (CreditPlanCreated) EventType() string { return TypeCreditPlanCreated }

func (e CreditPlanCreated) Event() *types.Event {
	return &types.Event{Type: TypeCreditPlanCreated, Attributes: map[string]string{
		"planId":       strconv.FormatUint(e.PlanID, 10),
		"borrower":     hexAddress(e.Borrower),
		"lender":       hexAddress(e.Lender),
		"principal":    formatAmount(e.Principal),
		"totalDebt":    formatAmount(e.TotalDebt),
		"installments": strconv.FormatUint(e.Installments, 10),
	}}
}

type CreditPlanApproved struct {
	PlanID   uint64
	Borrower [20]byte
}

func (CreditPlanApproved) EventType() string { return TypeCreditPlanApproved }

func (e CreditPlanApproved) Event() *types.Event {
	return &types.Event{Type: TypeCreditPlanApproved, Attributes: map[string]string{
		"planId":   strconv.FormatUint(e.PlanID, 10),
		"borrower": hexAddress(e.Borrower),
	}}
}

type CreditPaymentApplied struct {
	PlanID     uint64
	Payer      [20]byte
	Amount     *big.Int
	UnpaidDebt *big.Int
}

func (CreditPaymentApplied) EventType() string { return TypeCreditPaymentApplied }

func (e CreditPaymentApplied) Event() *types.Event {
	return &types.Event{Type: TypeCreditPaymentApplied, Attributes: map[string]string{
		"planId":     strconv.FormatUint(e.PlanID, 10),
		"payer":      hexAddress(e.Payer),
		"amount":     formatAmount(e.Amount),
		"unpaidDebt": formatAmount(e.UnpaidDebt),
	}}
}

type CreditPlanCompleted struct {
	PlanID    uint64
	Borrower  [20]byte
	Lender    [20]byte
	TotalPaid *big.Int
}

func (CreditPlanCompleted) EventType() string { return TypeCreditPlanCompleted }

func (e CreditPlanCompleted) Event() *types.Event {
	return &types.Event{Type: TypeCreditPlanCompleted, Attributes: map[string]string{
		"planId":    strconv.FormatUint(e.PlanID, 10),
		"borrower":  hexAddress(e.Borrower),
		"lender":    hexAddress(e.Lender),
		"totalPaid": formatAmount(e.TotalPaid),
	}}
}

func hexAddress(raw [20]byte) string {
	return crypto.MustNewAddress(crypto.CreditPrefix, raw[:]).Hex()
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
