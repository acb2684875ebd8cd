package credit

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"creditledger/crypto"
)

// Identity is the opaque 20-byte reference of an actor on the ledger.
type Identity [20]byte

// ParseIdentity decodes a 0x hex or bech32 identity.
func ParseIdentity(raw string) (Identity, error) {
	decoded, err := crypto.ParseAddress(raw)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return Identity(decoded), nil
}

func (id Identity) IsZero() bool { return id == Identity{} }

// Hex returns the checksummed 0x form.
func (id Identity) Hex() string { return common.Address(id).Hex() }

func (id Identity) String() string { return id.Hex() }

func (id Identity) MarshalText() ([]byte, error) { return []byte(id.Hex()), nil }

func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Role names an access-control role. Its on-chain identifier is the keccak256
// hash of the name.
type Role string

const (
	RoleAdmin  Role = "ADMIN_ROLE"
	RoleLender Role = "LENDER_ROLE"
	RoleUser   Role = "USER_ROLE"
)

var knownRoles = []Role{RoleAdmin, RoleLender, RoleUser}

// ID returns the 32-byte role identifier.
func (r Role) ID() common.Hash {
	return common.BytesToHash(ethcrypto.Keccak256([]byte(r)))
}

// ParseRole accepts either a role name or its 0x keccak identifier.
func ParseRole(raw string) (Role, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		decoded, err := hex.DecodeString(trimmed[2:])
		if err != nil || len(decoded) != common.HashLength {
			return "", fmt.Errorf("%w: malformed role id %q", ErrInvalidArgument, raw)
		}
		id := common.BytesToHash(decoded)
		for _, role := range knownRoles {
			if role.ID() == id {
				return role, nil
			}
		}
		return "", fmt.Errorf("%w: unknown role id %s", ErrNotFound, id.Hex())
	}
	upper := strings.ToUpper(trimmed)
	for _, role := range knownRoles {
		if string(role) == upper || strings.TrimSuffix(string(role), "_ROLE") == upper {
			return role, nil
		}
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrNotFound, raw)
}

// LenderRecord tracks a registered lender.
type LenderRecord struct {
	Lender  Identity `json:"lender"`
	Active  bool     `json:"active"`
	AddedAt uint64   `json:"addedAt"`
}

// Profile is the per-client index of lender relationships and payment plans.
type Profile struct {
	Client             Identity   `json:"client"`
	Active             bool       `json:"active"`
	Lenders            []Identity `json:"lenders"`
	PaymentPlans       []uint64   `json:"paymentPlans"`
	CreditScoreSamples uint64     `json:"numberOfCreditScores"`
	Loans              uint64     `json:"numberOfLoans"`
	CreatedAt          uint64     `json:"createdAt"`
}

func (p *Profile) hasLender(lender Identity) bool {
	for _, existing := range p.Lenders {
		if existing == lender {
			return true
		}
	}
	return false
}

func (p *Profile) addLender(lender Identity) bool {
	if p.hasLender(lender) {
		return false
	}
	p.Lenders = append(p.Lenders, lender)
	return true
}

func (p *Profile) replaceLender(previous, current Identity) {
	out := p.Lenders[:0]
	seen := false
	for _, existing := range p.Lenders {
		if existing == previous {
			existing = current
		}
		if existing == current {
			if seen {
				continue
			}
			seen = true
		}
		out = append(out, existing)
	}
	p.Lenders = out
}

// PlanStatus is the lifecycle stage of a payment plan. Overdue is derived from
// the clock and is never stored.
type PlanStatus string

const (
	PlanProposed  PlanStatus = "proposed"
	PlanActive    PlanStatus = "active"
	PlanOverdue   PlanStatus = "overdue"
	PlanCompleted PlanStatus = "completed"
)

// PaymentPlan is a loan agreed between a lender and a borrower. Amounts are in
// minor units; the accounting identity PaidDebt+UnpaidDebt == TotalDebt holds
// for every stored plan.
type PaymentPlan struct {
	ID                  uint64   `json:"id"`
	Borrower            Identity `json:"borrower"`
	Lender              Identity `json:"lender"`
	Principal           *big.Int `json:"principal"`
	DurationSeconds     uint64   `json:"duration"`
	Installments        uint64   `json:"numberOfInstallments"`
	InterestRatePercent uint64   `json:"interestRate"`
	Active              bool     `json:"active"`
	Approved            bool     `json:"approved"`
	TotalDebt           *big.Int `json:"totalDebt"`
	PaidDebt            *big.Int `json:"paidDebt"`
	UnpaidDebt          *big.Int `json:"unPaidDebt"`
	TotalPaid           *big.Int `json:"totalPaid"`
	CreatedAt           uint64   `json:"createdAt"`
	ApprovedAt          uint64   `json:"approvedAt"`
	CompletedAt         uint64   `json:"completedAt"`
	OnTimeInstallments  uint64   `json:"onTimeInstallments"`
	LateInstallments    uint64   `json:"lateInstallments"`
}

// Completed reports whether the plan has been paid off.
func (p *PaymentPlan) Completed() bool {
	return p.Approved && p.UnpaidDebt != nil && p.UnpaidDebt.Sign() == 0
}

// Status derives the lifecycle stage at the supplied unix time.
func (p *PaymentPlan) Status(now uint64) PlanStatus {
	switch {
	case !p.Approved:
		return PlanProposed
	case p.Completed():
		return PlanCompleted
	case now > p.NextDeadline():
		return PlanOverdue
	default:
		return PlanActive
	}
}

// Clone returns a deep copy of the plan.
func (p *PaymentPlan) Clone() *PaymentPlan {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Principal = cloneInt(p.Principal)
	clone.TotalDebt = cloneInt(p.TotalDebt)
	clone.PaidDebt = cloneInt(p.PaidDebt)
	clone.UnpaidDebt = cloneInt(p.UnpaidDebt)
	clone.TotalPaid = cloneInt(p.TotalPaid)
	return &clone
}

func (p *PaymentPlan) ensureDefaults() {
	if p.Principal == nil {
		p.Principal = big.NewInt(0)
	}
	if p.TotalDebt == nil {
		p.TotalDebt = big.NewInt(0)
	}
	if p.PaidDebt == nil {
		p.PaidDebt = big.NewInt(0)
	}
	if p.UnpaidDebt == nil {
		p.UnpaidDebt = big.NewInt(0)
	}
	if p.TotalPaid == nil {
		p.TotalPaid = big.NewInt(0)
	}
}

// PlanView is a plan together with its derived installment schedule.
type PlanView struct {
	*PaymentPlan
	Status           PlanStatus `json:"status"`
	InstallmentsPaid uint64     `json:"installmentsPaid"`
	NextAmount       *big.Int   `json:"nextInstalmentAmount"`
	NextDeadline     uint64     `json:"nextInstalmentDeadline"`
}

// PlanColumns is the column-oriented projection of a client's plans, in the
// order of the client's profile.
type PlanColumns struct {
	IDs           []uint64   `json:"ids"`
	Active        []bool     `json:"active"`
	Durations     []uint64   `json:"durations"`
	PaidDebt      []*big.Int `json:"paidDebt"`
	UnpaidDebt    []*big.Int `json:"unPaidDebt"`
	TotalPaid     []*big.Int `json:"totalPaid"`
	Installments  []uint64   `json:"numberOfInstallments"`
	InterestRates []uint64   `json:"interestRates"`
}

func (c *PlanColumns) append(p *PaymentPlan) {
	c.IDs = append(c.IDs, p.ID)
	c.Active = append(c.Active, p.Active)
	c.Durations = append(c.Durations, p.DurationSeconds)
	c.PaidDebt = append(c.PaidDebt, cloneInt(p.PaidDebt))
	c.UnpaidDebt = append(c.UnpaidDebt, cloneInt(p.UnpaidDebt))
	c.TotalPaid = append(c.TotalPaid, cloneInt(p.TotalPaid))
	c.Installments = append(c.Installments, p.Installments)
	c.InterestRates = append(c.InterestRates, p.InterestRatePercent)
}

func newPlanColumns() *PlanColumns {
	return &PlanColumns{
		IDs:           []uint64{},
		Active:        []bool{},
		Durations:     []uint64{},
		PaidDebt:      []*big.Int{},
		UnpaidDebt:    []*big.Int{},
		TotalPaid:     []*big.Int{},
		Installments:  []uint64{},
		InterestRates: []uint64{},
	}
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
