package credit

import "math/big"

const (
	percentBase = 100
	// maxDurationSeconds bounds plan durations to one hundred years.
	maxDurationSeconds = 100 * 365 * 24 * 60 * 60
)

// totalDebt is principal*(100+rate)/100, truncated.
func totalDebt(principal *big.Int, ratePercent uint64) *big.Int {
	factor := new(big.Int).SetUint64(ratePercent)
	factor.Add(factor, big.NewInt(percentBase))
	out := new(big.Int).Mul(principal, factor)
	return out.Quo(out, big.NewInt(percentBase))
}

func (p *PaymentPlan) period() uint64 {
	if p.Installments == 0 {
		return p.DurationSeconds
	}
	return p.DurationSeconds / p.Installments
}

// InstallmentSize is the nominal installment, TotalDebt/Installments truncated.
func (p *PaymentPlan) InstallmentSize() *big.Int {
	if p.Installments == 0 || p.TotalDebt == nil {
		return zero()
	}
	return new(big.Int).Quo(p.TotalDebt, new(big.Int).SetUint64(p.Installments))
}

// InstallmentsPaid counts the installments covered by the paid debt.
func (p *PaymentPlan) InstallmentsPaid() uint64 {
	if p.Completed() {
		return p.Installments
	}
	size := p.InstallmentSize()
	if size.Sign() == 0 || p.PaidDebt == nil {
		return 0
	}
	count := new(big.Int).Quo(p.PaidDebt, size)
	if !count.IsUint64() || count.Uint64() > p.Installments {
		return p.Installments
	}
	return count.Uint64()
}

// NextAmount is the amount due for the next installment. The final
// installment absorbs the truncation remainder so the installments sum to the
// total debt exactly.
func (p *PaymentPlan) NextAmount() *big.Int {
	if p.UnpaidDebt == nil || p.UnpaidDebt.Sign() == 0 {
		return zero()
	}
	paid := p.InstallmentsPaid()
	remaining := uint64(1)
	if p.Installments > paid {
		remaining = p.Installments - paid
	}
	if remaining == 1 {
		return new(big.Int).Set(p.UnpaidDebt)
	}
	next := new(big.Int).Quo(p.UnpaidDebt, new(big.Int).SetUint64(remaining))
	if next.Sign() == 0 {
		// debts smaller than the installment count are repaid one unit at a time
		next.SetUint64(1)
	}
	return next
}

// deadlineFor returns the due time of installment k, counted from one. The
// final installment is due at the end of the plan's duration.
func (p *PaymentPlan) deadlineFor(k uint64) uint64 {
	if k >= p.Installments {
		return p.finalDeadline()
	}
	return p.CreatedAt + k*p.period()
}

func (p *PaymentPlan) finalDeadline() uint64 {
	return p.CreatedAt + p.DurationSeconds
}

// NextDeadline returns the due time of the next open installment, or the end
// of the plan once it is completed.
func (p *PaymentPlan) NextDeadline() uint64 {
	if p.Completed() {
		return p.finalDeadline()
	}
	return p.deadlineFor(p.InstallmentsPaid() + 1)
}

// classifyClosed splits the installments closed by moving from before to
// after paid installments into those paid by their deadline and those paid
// late, as of now.
func (p *PaymentPlan) classifyClosed(before, after, now uint64) (onTime, late uint64) {
	if after <= before {
		return 0, 0
	}
	elapsed := uint64(0)
	if now > p.CreatedAt {
		elapsed = now - p.CreatedAt
	}
	lo, hi := before+1, after
	if hi >= p.Installments {
		hi = p.Installments
		if elapsed <= p.DurationSeconds {
			onTime++
		} else {
			late++
		}
		hi--
	}
	if lo > hi {
		return onTime, late
	}
	period := p.period()
	if period == 0 {
		if elapsed == 0 {
			return onTime + (hi - lo + 1), late
		}
		return onTime, late + (hi - lo + 1)
	}
	// installment k is on time while elapsed <= k*period
	first := (elapsed + period - 1) / period
	if first < lo {
		first = lo
	}
	inRange := uint64(0)
	if first <= hi {
		inRange = hi - first + 1
	}
	return onTime + inRange, late + (hi - lo + 1 - inRange)
}

// overdueInstallments counts the unpaid installments whose deadline has
// passed at now. Proposed and completed plans have none.
func (p *PaymentPlan) overdueInstallments(now uint64) uint64 {
	if !p.Approved || p.Completed() || p.Installments == 0 {
		return 0
	}
	paid := p.InstallmentsPaid()
	if paid >= p.Installments || now <= p.deadlineFor(paid+1) {
		return 0
	}
	if now > p.finalDeadline() {
		return p.Installments - paid
	}
	// only installments before the final one can be overdue here
	period := p.period()
	if period == 0 {
		return p.Installments - 1 - paid
	}
	last := (now - p.CreatedAt - 1) / period
	if last >= p.Installments {
		last = p.Installments - 1
	}
	if last <= paid {
		return 0
	}
	return last - paid
}
