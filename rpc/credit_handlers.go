package rpc

import (
	"context"
	"sort"

	"creditledger/native/credit"
)

type method struct {
	fn             func(ctx context.Context, c *call) (interface{}, error)
	requiresCaller bool
}

func read(fn func(ctx context.Context, c *call) (interface{}, error)) method {
	return method{fn: fn}
}

func write(fn func(ctx context.Context, c *call) (interface{}, error)) method {
	return method{fn: fn, requiresCaller: true}
}

// creditMethods is the JSON-RPC method table. Mutations run as the token
// subject; reads are open to anonymous callers.
func (s *Server) creditMethods() map[string]method {
	return map[string]method{
		"credit_hasRole":          read(s.handleHasRole),
		"credit_isPaused":         read(s.handleIsPaused),
		"credit_pause":            write(s.handlePause),
		"credit_unpause":          write(s.handleUnpause),
		"credit_grantRole":        write(s.handleGrantRole),
		"credit_revokeRole":       write(s.handleRevokeRole),
		"credit_addLender":        write(s.handleAddLender),
		"credit_removeLender":     write(s.handleRemoveLender),
		"credit_updateLender":     write(s.handleUpdateLender),
		"credit_getActiveLenders": read(s.handleActiveLenders),
		"credit_getLender":        read(s.handleGetLender),
		"credit_getLenderPlans":   read(s.handleLenderPlans),

		"credit_newClient":      write(s.handleNewClient),
		"credit_newProfile":     write(s.handleNewProfile),
		"credit_getMyProfile":   read(s.handleGetProfile),
		"credit_isClientActive": read(s.handleIsClientActive),
		"credit_approveLender":  write(s.handleApproveLender),

		"credit_createPaymentPlan":         write(s.handleCreatePaymentPlan),
		"credit_approveNewPaymentPlan":     write(s.handleApprovePaymentPlan),
		"credit_payment":                   write(s.handlePayment),
		"credit_getNextInstalmentAmount":   read(s.handleNextAmount),
		"credit_getNextInstalmentDeadline": read(s.handleNextDeadline),
		"credit_getLenderFromId":           read(s.handleLenderOf),
		"credit_getAllMyPaymentPlans":      read(s.handlePaymentPlans),
		"credit_getPaymentPlan":            read(s.handleGetPaymentPlan),

		"credit_getMyCreditScore":   read(s.handleCreditScore),
		"credit_getMeanCreditScore": read(s.handleMeanCreditScore),
	}
}

// Access control.

func (s *Server) handleHasRole(_ context.Context, c *call) (interface{}, error) {
	if err := c.expect(1, 2); err != nil {
		return nil, err
	}
	role, err := c.role(0)
	if err != nil {
		return nil, err
	}
	account, err := c.subject(1)
	if err != nil {
		return nil, err
	}
	return s.engine.HasRole(role, account), nil
}

func (s *Server) handleIsPaused(_ context.Context, c *call) (interface{}, error) {
	if err := c.expect(0, 0); err != nil {
		return nil, err
	}
	return s.engine.IsPaused(), nil
}

func (s *Server) handlePause(_ context.Context, c *call) (interface{}, error) {
	if err := c.expect(0, 0); err != nil {
		return nil, err
	}
	if err := s.engine.Pause(c.caller); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Server) handleUnpause(_ context.Context, c *call) (interface{}, error) {
	if err := c.expect(0, 0); err != nil {
		return nil, err
	}
	if err := s.engine.Unpause(c.caller); err != nil {
		return nil, err
	}
	return false, nil
}

func (s *Server) roleChange(c *call, apply func(caller credit.Identity, role credit.Role, account credit.Identity) error) (interface{}, error) {
	if err := c.expect(2, 2); err != nil {
		return nil, err
	}
	role, err := c.role(0)
	if err != nil {
		return nil, err
	}
	account, err := c.identity(1)
	if err != nil {
		return nil, err
	}
	if err := apply(c.caller, role, account); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Server) handleGrantRole(_ context.Context, c *call) (interface{}, error) {
	return s.roleChange(c, s.engine.GrantRole)
}

func (s *Server) handleRevokeRole(_ context.Context, c *call) (interface{}, error) {
	return s.roleChange(c, s.engine.RevokeRole)
}

// Lender registry.

func (s *Server) handleAddLender(_ context.Context, c *call) (interface{}, error) {
	if err := c.expect(1, 1); err != nil {
		return nil, err
	}
	lender, err := c.identity(0)
	if err != nil {
		return nil, err
	}
	if err := s.engine.AddLender(c.caller, lender); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Server) handleRemoveLender(_ context.Context, c *call) (interface{}, error) {
	if err := c.expect(1, 1); err != nil {
		return nil, err
	}
	lender, err := c.identity(0)
	if err != nil {
		return nil, err
	}
	if err := s.engine.RemoveLender(c.caller, lender); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Server) handleUpdateLender(_ context.Context, c *call) (interface{}, error) {
	if err := c.expect(2, 2); err != nil {
		return nil, err
	}
	previous, err := c.identity(0)
	if err != nil {
		return nil, err
	}
	current, err := c.identity(1)
	if err != nil {
		return nil, err
	}
	if err := s.engine.UpdateLender(c.caller, previous, current); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Server) handleActiveLenders(_ context.Context, c *call) (interface{}, error) {
	if err := c.expect(0, 0); err != nil {
		return nil, err
	}
	lenders, err := s.engine.ActiveLenders()
	if err != nil {
		return nil, err
	}
	return formatIdentities(lenders), nil
}

func (s *Server) handleGetLender(_ context.Context, c *call) (interface{}, error) {
	if err := c.expect(1, 1); err != nil {
		return nil, err
	}
	lender, err := c.identity(0)
	if err != nil {
		return nil, err
	}
	record, err := s.engine.Lender(lender)
	if err != nil {
		return nil, err
	}
	return lenderResult(record), nil
}

func (s *Server) handleLenderPlans(_ context.Context, c *call) (interface{}, error) {
	if err := c.expect(0, 1); err != nil {
		return nil, err
	}
	lender, err := c.subject(0)
	if err != nil {
		return nil, err
	}
	plans, err := s.engine.LenderPlans(lender)
	if err != nil {
		return nil, err
	}
	if plans == nil {
		plans = []uint64{}
	}
	return plans, nil
}

// Profiles.

func (s *Server) handleNewClient(_ context.Context, c *call) (interface{}, error) {
	if err := c.expect(1, 1); err != nil {
		return nil, err
	}
	client, err := c.identity(0)
	if err != nil {
		return nil, err
	}
	profile, err := s.engine.NewProfile(c.caller, client)
	if err != nil {
		return nil, err
	}
	return profileResult(profile), nil
}

func (s *Server) handleNewProfile(_ context.Context, c *call) (interface{}, error) {
	if err := c.expect(0, 0); err != nil {
		return nil, err
	}
	profile, err := s.engine.NewProfile(c.caller, c.caller)
	if err != nil {
		return nil, err
	}
	return profileResult(profile), nil
}

func (s *Server) handleGetProfile(_ context.Context, c *call) (interface{}, error) {
	if err := c.expect(0, 1); err != nil {
		return nil, err
	}
	client, err := c.subject(0)
	if err != nil {
		return nil, err
	}
	profile, err := s.engine.Profile(client)
	if err != nil {
		return nil, err
	}
	return profileResult(profile), nil
}

func (s *Server) handleIsClientActive(_ context.Context, c *call) (interface{}, error) {
	if err := c.expect(0, 1); err != nil {
		return nil, err
	}
	client, err := c.subject(0)
	if err != nil {
		return nil, err
	}
	return s.engine.IsClientActive(client)
}

func (s *Server) handleApproveLender(_ context.Context, c *call) (interface{}, error) {
	if err := c.expect(1, 1); err != nil {
		return nil, err
	}
	lender, err := c.identity(0)
	if err != nil {
		return nil, err
	}
	if err := s.engine.ApproveLender(c.caller, lender); err != nil {
		return nil, err
	}
	return true, nil
}

// Payment plans.

func (s *Server) handleCreatePaymentPlan(_ context.Context, c *call) (interface{}, error) {
	if err := c.expect(5, 5); err != nil {
		return nil, err
	}
	borrower, err := c.identity(0)
	if err != nil {
		return nil, err
	}
	principal, err := c.amount(1)
	if err != nil {
		return nil, err
	}
	duration, err := c.uint(2)
	if err != nil {
		return nil, err
	}
	installments, err := c.uint(3)
	if err != nil {
		return nil, err
	}
	rate, err := c.uint(4)
	if err != nil {
		return nil, err
	}
	plan, err := s.engine.CreatePaymentPlan(c.caller, credit.PlanRequest{
		Borrower:            borrower,
		Principal:           principal,
		DurationSeconds:     duration,
		Installments:        installments,
		InterestRatePercent: rate,
	})
	if err != nil {
		return nil, err
	}
	return planResult(plan), nil
}

func (s *Server) handleApprovePaymentPlan(_ context.Context, c *call) (interface{}, error) {
	if err := c.expect(1, 1); err != nil {
		return nil, err
	}
	planID, err := c.uint(0)
	if err != nil {
		return nil, err
	}
	plan, err := s.engine.ApprovePaymentPlan(c.caller, planID)
	if err != nil {
		return nil, err
	}
	return planResult(plan), nil
}

// handlePayment keeps the dashboard's argument order: amount first.
func (s *Server) handlePayment(_ context.Context, c *call) (interface{}, error) {
	if err := c.expect(2, 2); err != nil {
		return nil, err
	}
	amount, err := c.amount(0)
	if err != nil {
		return nil, err
	}
	planID, err := c.uint(1)
	if err != nil {
		return nil, err
	}
	plan, err := s.engine.Payment(c.caller, planID, amount)
	if err != nil {
		return nil, err
	}
	return planResult(plan), nil
}

func (s *Server) planParam(c *call) (uint64, error) {
	if err := c.expect(1, 1); err != nil {
		return 0, err
	}
	return c.uint(0)
}

func (s *Server) handleNextAmount(_ context.Context, c *call) (interface{}, error) {
	planID, err := s.planParam(c)
	if err != nil {
		return nil, err
	}
	next, err := s.engine.NextInstallmentAmount(planID)
	if err != nil {
		return nil, err
	}
	return formatAmount(next), nil
}

func (s *Server) handleNextDeadline(_ context.Context, c *call) (interface{}, error) {
	planID, err := s.planParam(c)
	if err != nil {
		return nil, err
	}
	return s.engine.NextInstallmentDeadline(planID)
}

func (s *Server) handleLenderOf(_ context.Context, c *call) (interface{}, error) {
	planID, err := s.planParam(c)
	if err != nil {
		return nil, err
	}
	lender, err := s.engine.LenderOf(planID)
	if err != nil {
		return nil, err
	}
	return lender.Hex(), nil
}

func (s *Server) handleGetPaymentPlan(_ context.Context, c *call) (interface{}, error) {
	planID, err := s.planParam(c)
	if err != nil {
		return nil, err
	}
	view, err := s.engine.PaymentPlan(planID)
	if err != nil {
		return nil, err
	}
	return planViewResult(view), nil
}

func (s *Server) handlePaymentPlans(_ context.Context, c *call) (interface{}, error) {
	if err := c.expect(0, 1); err != nil {
		return nil, err
	}
	client, err := c.subject(0)
	if err != nil {
		return nil, err
	}
	cols, err := s.engine.PaymentPlans(client)
	if err != nil {
		return nil, err
	}
	return planColumnsResult(cols), nil
}

// Scores.

func (s *Server) handleCreditScore(_ context.Context, c *call) (interface{}, error) {
	if err := c.expect(1, 2); err != nil {
		return nil, err
	}
	lender, err := c.identity(0)
	if err != nil {
		return nil, err
	}
	client, err := c.subject(1)
	if err != nil {
		return nil, err
	}
	return s.engine.CreditScore(client, lender)
}

func (s *Server) handleMeanCreditScore(_ context.Context, c *call) (interface{}, error) {
	if err := c.expect(0, 1); err != nil {
		return nil, err
	}
	client, err := c.subject(0)
	if err != nil {
		return nil, err
	}
	return s.engine.MeanCreditScore(client)
}

// MethodNames lists the served JSON-RPC methods in sorted order.
func (s *Server) MethodNames() []string {
	names := make([]string, 0, len(s.methods))
	for name := range s.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
