package rpc

import (
	"math/big"

	"creditledger/native/credit"
)

// Amounts cross the wire as decimal strings so that JavaScript clients do
// not lose precision.

type LenderResult struct {
	Lender  string `json:"lender"`
	Active  bool   `json:"active"`
	AddedAt uint64 `json:"addedAt"`
}

type ProfileResult struct {
	Client               string   `json:"client"`
	Active               bool     `json:"active"`
	Lenders              []string `json:"lenders"`
	PaymentPlans         []uint64 `json:"paymentPlans"`
	NumberOfCreditScores uint64   `json:"numberOfCreditScores"`
	NumberOfLoans        uint64   `json:"numberOfLoans"`
	CreatedAt            uint64   `json:"createdAt"`
}

type PlanResult struct {
	ID                     uint64 `json:"id"`
	Borrower               string `json:"borrower"`
	Lender                 string `json:"lender"`
	Principal              string `json:"principal"`
	Duration               uint64 `json:"duration"`
	NumberOfInstallments   uint64 `json:"numberOfInstallments"`
	InterestRate           uint64 `json:"interestRate"`
	Active                 bool   `json:"active"`
	Approved               bool   `json:"approved"`
	TotalDebt              string `json:"totalDebt"`
	PaidDebt               string `json:"paidDebt"`
	UnPaidDebt             string `json:"unPaidDebt"`
	TotalPaid              string `json:"totalPaid"`
	CreatedAt              uint64 `json:"createdAt"`
	ApprovedAt             uint64 `json:"approvedAt,omitempty"`
	CompletedAt            uint64 `json:"completedAt,omitempty"`
	OnTimeInstallments     uint64 `json:"onTimeInstallments"`
	LateInstallments       uint64 `json:"lateInstallments"`
	Status                 string `json:"status,omitempty"`
	InstallmentsPaid       uint64 `json:"installmentsPaid"`
	NextInstalmentAmount   string `json:"nextInstalmentAmount,omitempty"`
	NextInstalmentDeadline uint64 `json:"nextInstalmentDeadline,omitempty"`
}

// PlanColumnsResult mirrors the tuple returned by getAllMyPaymentPlans.
type PlanColumnsResult struct {
	IDs                  []uint64 `json:"ids"`
	Active               []bool   `json:"active"`
	Durations            []uint64 `json:"durations"`
	PaidDebt             []string `json:"paidDebt"`
	UnPaidDebt           []string `json:"unPaidDebt"`
	TotalPaid            []string `json:"totalPaid"`
	NumberOfInstallments []uint64 `json:"numberOfInstallments"`
	InterestRates        []uint64 `json:"interestRates"`
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAmounts(values []*big.Int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = formatAmount(v)
	}
	return out
}

func formatIdentities(ids []credit.Identity) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}

func lenderResult(record *credit.LenderRecord) *LenderResult {
	return &LenderResult{Lender: record.Lender.Hex(), Active: record.Active, AddedAt: record.AddedAt}
}

func profileResult(profile *credit.Profile) *ProfileResult {
	plans := profile.PaymentPlans
	if plans == nil {
		plans = []uint64{}
	}
	return &ProfileResult{
		Client:               profile.Client.Hex(),
		Active:               profile.Active,
		Lenders:              formatIdentities(profile.Lenders),
		PaymentPlans:         plans,
		NumberOfCreditScores: profile.CreditScoreSamples,
		NumberOfLoans:        profile.Loans,
		CreatedAt:            profile.CreatedAt,
	}
}

func planResult(plan *credit.PaymentPlan) *PlanResult {
	return &PlanResult{
		ID:                   plan.ID,
		Borrower:             plan.Borrower.Hex(),
		Lender:               plan.Lender.Hex(),
		Principal:            formatAmount(plan.Principal),
		Duration:             plan.DurationSeconds,
		NumberOfInstallments: plan.Installments,
		InterestRate:         plan.InterestRatePercent,
		Active:               plan.Active,
		Approved:             plan.Approved,
		TotalDebt:            formatAmount(plan.TotalDebt),
		PaidDebt:             formatAmount(plan.PaidDebt),
		UnPaidDebt:           formatAmount(plan.UnpaidDebt),
		TotalPaid:            formatAmount(plan.TotalPaid),
		CreatedAt:            plan.CreatedAt,
		ApprovedAt:           plan.ApprovedAt,
		CompletedAt:          plan.CompletedAt,
		OnTimeInstallments:   plan.OnTimeInstallments,
		LateInstallments:     plan.LateInstallments,
		InstallmentsPaid:     plan.InstallmentsPaid(),
	}
}

func planViewResult(view *credit.PlanView) *PlanResult {
	out := planResult(view.PaymentPlan)
	out.Status = string(view.Status)
	out.InstallmentsPaid = view.InstallmentsPaid
	out.NextInstalmentAmount = formatAmount(view.NextAmount)
	out.NextInstalmentDeadline = view.NextDeadline
	return out
}

func planColumnsResult(cols *credit.PlanColumns) *PlanColumnsResult {
	return &PlanColumnsResult{
		IDs:                  cols.IDs,
		Active:               cols.Active,
		Durations:            cols.Durations,
		PaidDebt:             formatAmounts(cols.PaidDebt),
		UnPaidDebt:           formatAmounts(cols.UnpaidDebt),
		TotalPaid:            formatAmounts(cols.TotalPaid),
		NumberOfInstallments: cols.Installments,
		InterestRates:        cols.InterestRates,
	}
}
