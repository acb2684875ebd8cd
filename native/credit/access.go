package credit

import (
	"fmt"

	"creditledger/core/events"
)

// HasRole reports whether id currently holds role. Lookup failures read as
// false.
func (e *Engine) HasRole(role Role, id Identity) bool {
	var held bool
	_ = e.view(func(s *store) error {
		held = s.st.HasRole(string(role), id[:])
		return nil
	})
	return held
}

// IsPaused reports whether ledger mutations are currently rejected.
func (e *Engine) IsPaused() bool {
	var paused bool
	_ = e.view(func(s *store) error {
		paused = e.pauses != nil && e.pauses.IsPaused(moduleName) || s.IsPaused(moduleName)
		return nil
	})
	return paused
}

// Pause stops all ledger mutations except role administration.
func (e *Engine) Pause(caller Identity) error {
	return e.setPaused(caller, true)
}

// Unpause resumes ledger mutations.
func (e *Engine) Unpause(caller Identity) error {
	return e.setPaused(caller, false)
}

func (e *Engine) setPaused(caller Identity, flag bool) error {
	return e.mutate(func(s *store) ([]events.Event, error) {
		if err := requireRole(s, RoleAdmin, caller); err != nil {
			return nil, err
		}
		current, err := s.paused()
		if err != nil {
			return nil, err
		}
		if current == flag {
			return nil, nil
		}
		if err := s.setPaused(flag); err != nil {
			return nil, err
		}
		return []events.Event{events.CreditPauseChanged{Paused: flag, By: caller}}, nil
	})
}

// GrantRole assigns role to account. Admin only.
func (e *Engine) GrantRole(caller Identity, role Role, account Identity) error {
	if account.IsZero() {
		return fmt.Errorf("%w: account required", ErrInvalidArgument)
	}
	return e.mutate(func(s *store) ([]events.Event, error) {
		if err := requireRole(s, RoleAdmin, caller); err != nil {
			return nil, err
		}
		held, err := s.hasRole(role, account)
		if err != nil {
			return nil, err
		}
		if held {
			return nil, nil
		}
		if err := s.grantRole(role, account); err != nil {
			return nil, err
		}
		return []events.Event{events.CreditRoleChanged{Role: string(role), Account: account, Granted: true, By: caller}}, nil
	})
}

// RevokeRole removes role from account. The Admin role cannot be revoked, and
// the Lender role of an active registry lender is only dropped by RemoveLender.
func (e *Engine) RevokeRole(caller Identity, role Role, account Identity) error {
	if role == RoleAdmin {
		return fmt.Errorf("%w: admin role cannot be revoked", ErrUnauthorized)
	}
	return e.mutate(func(s *store) ([]events.Event, error) {
		if err := requireRole(s, RoleAdmin, caller); err != nil {
			return nil, err
		}
		held, err := s.hasRole(role, account)
		if err != nil {
			return nil, err
		}
		if !held {
			return nil, nil
		}
		if role == RoleLender {
			record, err := s.lender(account)
			if err != nil {
				return nil, err
			}
			if record != nil && record.Active {
				return nil, fmt.Errorf("%w: %s is an active lender, remove it instead", ErrInvalidState, account)
			}
		}
		if err := s.revokeRole(role, account); err != nil {
			return nil, err
		}
		return []events.Event{events.CreditRoleChanged{Role: string(role), Account: account, Granted: false, By: caller}}, nil
	})
}
