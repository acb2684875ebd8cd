package credit

import "math/big"

const (
	// MaxCreditScore is the upper bound of every credit score.
	MaxCreditScore = 1000

	repaymentWeight   = 600
	completionWeight  = 200
	punctualityWeight = 200
)

// creditScore rates a client's history with one lender at now. Only approved
// plans count. The score combines the paid share of total debt, the share of
// completed plans and the share of installments met by their deadline.
// Unpaid installments past their deadline count as late.
func creditScore(plans []*PaymentPlan, now uint64) uint64 {
	var (
		approved  uint64
		completed uint64
		onTime    uint64
		late      uint64
		paid      = new(big.Int)
		total     = new(big.Int)
	)
	for _, plan := range plans {
		if plan == nil || !plan.Approved {
			continue
		}
		approved++
		if plan.Completed() {
			completed++
		}
		onTime += plan.OnTimeInstallments
		late += plan.LateInstallments + plan.overdueInstallments(now)
		paid.Add(paid, plan.PaidDebt)
		total.Add(total, plan.TotalDebt)
	}
	if approved == 0 {
		return 0
	}

	score := uint64(0)
	if total.Sign() > 0 {
		repayment := new(big.Int).Mul(paid, big.NewInt(repaymentWeight))
		repayment.Quo(repayment, total)
		if repayment.IsUint64() && repayment.Uint64() <= repaymentWeight {
			score += repayment.Uint64()
		} else {
			score += repaymentWeight
		}
	}
	score += completionWeight * completed / approved
	if closed := onTime + late; closed == 0 {
		score += punctualityWeight
	} else {
		score += punctualityWeight * onTime / closed
	}
	if score > MaxCreditScore {
		return MaxCreditScore
	}
	return score
}

func (e *Engine) plansWith(s *store, profile *Profile, lender Identity) ([]*PaymentPlan, error) {
	var out []*PaymentPlan
	for _, planID := range profile.PaymentPlans {
		plan, err := e.loadPlan(s, planID)
		if err != nil {
			return nil, err
		}
		if plan.Lender == lender {
			out = append(out, plan)
		}
	}
	return out, nil
}

// CreditScore returns the client's score with lender in [0, MaxCreditScore].
func (e *Engine) CreditScore(client, lender Identity) (uint64, error) {
	var out uint64
	err := e.view(func(s *store) error {
		profile, err := s.profile(client)
		if err != nil || profile == nil {
			return err
		}
		plans, err := e.plansWith(s, profile, lender)
		if err != nil {
			return err
		}
		out = creditScore(plans, e.now())
		return nil
	})
	return out, err
}

// MeanCreditScore averages the client's score over every lender on its
// profile. Clients without lenders score zero.
func (e *Engine) MeanCreditScore(client Identity) (uint64, error) {
	var out uint64
	err := e.view(func(s *store) error {
		profile, err := s.profile(client)
		if err != nil || profile == nil || len(profile.Lenders) == 0 {
			return err
		}
		var sum uint64
		now := e.now()
		for _, lender := range profile.Lenders {
			plans, err := e.plansWith(s, profile, lender)
			if err != nil {
				return err
			}
			sum += creditScore(plans, now)
		}
		out = sum / uint64(len(profile.Lenders))
		return nil
	})
	return out, err
}
