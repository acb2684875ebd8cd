package credit

import (
	"fmt"
	"math/big"

	"creditledger/core/events"
)

// PlanRequest describes a payment plan proposed by a lender.
type PlanRequest struct {
	Borrower            Identity
	Principal           *big.Int
	DurationSeconds     uint64
	Installments        uint64
	InterestRatePercent uint64
}

func (r PlanRequest) validate(lender Identity) error {
	switch {
	case r.Borrower.IsZero():
		return fmt.Errorf("%w: borrower required", ErrInvalidArgument)
	case r.Borrower == lender:
		return fmt.Errorf("%w: lender cannot borrow from itself", ErrInvalidArgument)
	case r.Principal == nil || r.Principal.Sign() <= 0:
		return fmt.Errorf("%w: principal must be positive", ErrInvalidArgument)
	case r.Installments == 0:
		return fmt.Errorf("%w: installments must be positive", ErrInvalidArgument)
	case r.DurationSeconds == 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalidArgument)
	case r.DurationSeconds > maxDurationSeconds:
		return fmt.Errorf("%w: duration exceeds %d seconds", ErrInvalidArgument, maxDurationSeconds)
	}
	return nil
}

// CreatePaymentPlan stores a proposed plan issued by the calling lender. The
// borrower's profile is created if needed and linked to the lender and the
// plan in the same commit.
func (e *Engine) CreatePaymentPlan(caller Identity, req PlanRequest) (*PaymentPlan, error) {
	if err := req.validate(caller); err != nil {
		return nil, err
	}
	var out *PaymentPlan
	err := e.mutate(func(s *store) ([]events.Event, error) {
		if err := e.guard(s); err != nil {
			return nil, err
		}
		if err := requireRole(s, RoleLender, caller); err != nil {
			return nil, err
		}
		active, err := s.activeLender(caller)
		if err != nil {
			return nil, err
		}
		if !active {
			return nil, fmt.Errorf("%w: %s is not an active lender", ErrUnauthorized, caller)
		}

		var emitted []events.Event
		profile, created, err := e.ensureProfile(s, req.Borrower)
		if err != nil {
			return nil, err
		}
		if created {
			emitted = append(emitted, events.CreditProfileCreated{Client: req.Borrower})
		}

		planID, err := s.nextPlanID()
		if err != nil {
			return nil, err
		}
		debt := totalDebt(req.Principal, req.InterestRatePercent)
		plan := &PaymentPlan{
			ID:                  planID,
			Borrower:            req.Borrower,
			Lender:              caller,
			Principal:           new(big.Int).Set(req.Principal),
			DurationSeconds:     req.DurationSeconds,
			Installments:        req.Installments,
			InterestRatePercent: req.InterestRatePercent,
			TotalDebt:           debt,
			PaidDebt:            zero(),
			UnpaidDebt:          new(big.Int).Set(debt),
			TotalPaid:           zero(),
			CreatedAt:           e.now(),
		}
		if err := s.putPlan(plan); err != nil {
			return nil, err
		}
		if err := s.indexLenderPlan(caller, planID); err != nil {
			return nil, err
		}
		if profile.addLender(caller) {
			if err := s.indexLenderClient(caller, req.Borrower); err != nil {
				return nil, err
			}
		}
		profile.PaymentPlans = append(profile.PaymentPlans, planID)
		if err := s.putProfile(profile); err != nil {
			return nil, err
		}
		out = plan.Clone()
		emitted = append(emitted, events.CreditPlanCreated{
			PlanID:       planID,
			Borrower:     req.Borrower,
			Lender:       caller,
			Principal:    new(big.Int).Set(plan.Principal),
			TotalDebt:    new(big.Int).Set(debt),
			Installments: plan.Installments,
		})
		return emitted, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ApprovePaymentPlan is the borrower's acceptance of a proposed plan.
func (e *Engine) ApprovePaymentPlan(caller Identity, planID uint64) (*PaymentPlan, error) {
	var out *PaymentPlan
	err := e.mutate(func(s *store) ([]events.Event, error) {
		if err := e.guard(s); err != nil {
			return nil, err
		}
		plan, err := s.plan(planID)
		if err != nil {
			return nil, err
		}
		if plan == nil {
			return nil, fmt.Errorf("%w: payment plan %d", ErrNotFound, planID)
		}
		if plan.Borrower != caller {
			return nil, fmt.Errorf("%w: only the borrower may approve plan %d", ErrUnauthorized, planID)
		}
		if plan.Approved {
			return nil, fmt.Errorf("%w: plan %d already approved", ErrInvalidState, planID)
		}
		plan.Approved = true
		plan.Active = true
		plan.ApprovedAt = e.now()
		if err := s.putPlan(plan); err != nil {
			return nil, err
		}
		profile, _, err := e.ensureProfile(s, plan.Borrower)
		if err != nil {
			return nil, err
		}
		profile.Loans++
		if err := s.putProfile(profile); err != nil {
			return nil, err
		}
		out = plan.Clone()
		return []events.Event{events.CreditPlanApproved{PlanID: planID, Borrower: plan.Borrower}}, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Payment applies amount to the plan. Only the borrower or the plan's lender
// may record payments; amounts above the unpaid debt are rejected.
func (e *Engine) Payment(caller Identity, planID uint64, amount *big.Int) (*PaymentPlan, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be positive", ErrInvalidArgument)
	}
	var out *PaymentPlan
	err := e.mutate(func(s *store) ([]events.Event, error) {
		if err := e.guard(s); err != nil {
			return nil, err
		}
		plan, err := s.plan(planID)
		if err != nil {
			return nil, err
		}
		if plan == nil {
			return nil, fmt.Errorf("%w: payment plan %d", ErrNotFound, planID)
		}
		if caller != plan.Borrower && caller != plan.Lender {
			return nil, fmt.Errorf("%w: caller is not a party to plan %d", ErrUnauthorized, planID)
		}
		if plan.Completed() {
			return nil, fmt.Errorf("%w: plan %d", ErrPlanClosed, planID)
		}
		if !plan.Approved || !plan.Active {
			return nil, fmt.Errorf("%w: plan %d is not active", ErrInvalidState, planID)
		}
		if amount.Cmp(plan.UnpaidDebt) > 0 {
			return nil, fmt.Errorf("%w: %s > %s", ErrOverpayment, amount, plan.UnpaidDebt)
		}

		now := e.now()
		before := plan.InstallmentsPaid()
		plan.PaidDebt = new(big.Int).Add(plan.PaidDebt, amount)
		plan.UnpaidDebt = new(big.Int).Sub(plan.UnpaidDebt, amount)
		plan.TotalPaid = new(big.Int).Add(plan.TotalPaid, amount)
		onTime, late := plan.classifyClosed(before, plan.InstallmentsPaid(), now)
		plan.OnTimeInstallments += onTime
		plan.LateInstallments += late

		emitted := []events.Event{events.CreditPaymentApplied{
			PlanID:     planID,
			Payer:      caller,
			Amount:     new(big.Int).Set(amount),
			UnpaidDebt: new(big.Int).Set(plan.UnpaidDebt),
		}}
		if plan.UnpaidDebt.Sign() == 0 {
			plan.Active = false
			plan.CompletedAt = now
			profile, _, err := e.ensureProfile(s, plan.Borrower)
			if err != nil {
				return nil, err
			}
			profile.CreditScoreSamples++
			if err := s.putProfile(profile); err != nil {
				return nil, err
			}
			emitted = append(emitted, events.CreditPlanCompleted{
				PlanID:    planID,
				Borrower:  plan.Borrower,
				Lender:    plan.Lender,
				TotalPaid: new(big.Int).Set(plan.TotalPaid),
			})
		}
		if err := s.putPlan(plan); err != nil {
			return nil, err
		}
		out = plan.Clone()
		return emitted, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) loadPlan(s *store, planID uint64) (*PaymentPlan, error) {
	plan, err := s.plan(planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("%w: payment plan %d", ErrNotFound, planID)
	}
	return plan, nil
}

// NextInstallmentAmount returns the amount due for the plan's next
// installment, zero once the plan is completed.
func (e *Engine) NextInstallmentAmount(planID uint64) (*big.Int, error) {
	var out *big.Int
	err := e.view(func(s *store) error {
		plan, err := e.loadPlan(s, planID)
		if err != nil {
			return err
		}
		out = plan.NextAmount()
		return nil
	})
	return out, err
}

// NextInstallmentDeadline returns the unix time the next installment is due.
func (e *Engine) NextInstallmentDeadline(planID uint64) (uint64, error) {
	var out uint64
	err := e.view(func(s *store) error {
		plan, err := e.loadPlan(s, planID)
		if err != nil {
			return err
		}
		out = plan.NextDeadline()
		return nil
	})
	return out, err
}

// LenderOf returns the lender currently referenced by the plan.
func (e *Engine) LenderOf(planID uint64) (Identity, error) {
	var out Identity
	err := e.view(func(s *store) error {
		plan, err := e.loadPlan(s, planID)
		if err != nil {
			return err
		}
		out = plan.Lender
		return nil
	})
	return out, err
}

// PaymentPlan returns the plan together with its derived schedule.
func (e *Engine) PaymentPlan(planID uint64) (*PlanView, error) {
	var out *PlanView
	err := e.view(func(s *store) error {
		plan, err := e.loadPlan(s, planID)
		if err != nil {
			return err
		}
		out = &PlanView{
			PaymentPlan:      plan,
			Status:           plan.Status(e.now()),
			InstallmentsPaid: plan.InstallmentsPaid(),
			NextAmount:       plan.NextAmount(),
			NextDeadline:     plan.NextDeadline(),
		}
		return nil
	})
	return out, err
}

// PaymentPlans returns the column projection of every plan on the client's
// profile. Clients without a profile get empty columns.
func (e *Engine) PaymentPlans(client Identity) (*PlanColumns, error) {
	out := newPlanColumns()
	err := e.view(func(s *store) error {
		profile, err := s.profile(client)
		if err != nil || profile == nil {
			return err
		}
		for _, planID := range profile.PaymentPlans {
			plan, err := e.loadPlan(s, planID)
			if err != nil {
				return err
			}
			out.append(plan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
