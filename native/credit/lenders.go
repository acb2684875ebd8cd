package credit

import (
	"fmt"

	"creditledger/core/events"
)

// AddLender registers id as an active lender, reactivating a previously
// removed record in place.
func (e *Engine) AddLender(caller, id Identity) error {
	if id.IsZero() {
		return fmt.Errorf("%w: lender identity required", ErrInvalidArgument)
	}
	return e.mutate(func(s *store) ([]events.Event, error) {
		if err := requireRole(s, RoleAdmin, caller); err != nil {
			return nil, err
		}
		if err := e.guard(s); err != nil {
			return nil, err
		}
		record, err := s.lender(id)
		if err != nil {
			return nil, err
		}
		switch {
		case record != nil && record.Active:
			return nil, fmt.Errorf("%w: lender %s", ErrAlreadyExists, id)
		case record != nil:
			record.Active = true
		default:
			record = &LenderRecord{Lender: id, Active: true, AddedAt: e.now()}
			index, err := s.lenderIndex()
			if err != nil {
				return nil, err
			}
			if err := s.putLenderIndex(append(index, id)); err != nil {
				return nil, err
			}
		}
		if err := s.putLender(record); err != nil {
			return nil, err
		}
		if err := s.grantRole(RoleLender, id); err != nil {
			return nil, err
		}
		return []events.Event{events.CreditLenderAdded{Lender: id}}, nil
	})
}

// RemoveLender deactivates id and revokes its Lender role. Plans that
// reference the lender are left untouched.
func (e *Engine) RemoveLender(caller, id Identity) error {
	return e.mutate(func(s *store) ([]events.Event, error) {
		if err := requireRole(s, RoleAdmin, caller); err != nil {
			return nil, err
		}
		if err := e.guard(s); err != nil {
			return nil, err
		}
		record, err := s.lender(id)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, fmt.Errorf("%w: lender %s", ErrNotFound, id)
		}
		if !record.Active {
			return nil, nil
		}
		record.Active = false
		if err := s.putLender(record); err != nil {
			return nil, err
		}
		if err := s.revokeRole(RoleLender, id); err != nil {
			return nil, err
		}
		return []events.Event{events.CreditLenderRemoved{Lender: id}}, nil
	})
}

// UpdateLender re-keys the lender previous to current. The record keeps its
// listing position, the Lender role moves with it and every plan and profile
// referencing previous is re-pointed in the same commit.
func (e *Engine) UpdateLender(caller, previous, current Identity) error {
	if current.IsZero() {
		return fmt.Errorf("%w: new lender identity required", ErrInvalidArgument)
	}
	if previous == current {
		return fmt.Errorf("%w: lender identities are identical", ErrInvalidArgument)
	}
	return e.mutate(func(s *store) ([]events.Event, error) {
		if err := requireRole(s, RoleAdmin, caller); err != nil {
			return nil, err
		}
		if err := e.guard(s); err != nil {
			return nil, err
		}
		record, err := s.lender(previous)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, fmt.Errorf("%w: lender %s", ErrNotFound, previous)
		}
		existing, err := s.lender(current)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: lender %s", ErrAlreadyExists, current)
		}

		record.Lender = current
		if err := s.putLender(record); err != nil {
			return nil, err
		}
		if err := s.st.KVDelete(lenderKey(previous)); err != nil {
			return nil, err
		}
		index, err := s.lenderIndex()
		if err != nil {
			return nil, err
		}
		for i := range index {
			if index[i] == previous {
				index[i] = current
			}
		}
		if err := s.putLenderIndex(index); err != nil {
			return nil, err
		}

		held, err := s.hasRole(RoleLender, previous)
		if err != nil {
			return nil, err
		}
		if held {
			if err := s.revokeRole(RoleLender, previous); err != nil {
				return nil, err
			}
			if err := s.grantRole(RoleLender, current); err != nil {
				return nil, err
			}
		}

		planIDs, err := s.lenderPlans(previous)
		if err != nil {
			return nil, err
		}
		for _, planID := range planIDs {
			plan, err := s.plan(planID)
			if err != nil {
				return nil, err
			}
			if plan == nil || plan.Lender != previous {
				continue
			}
			plan.Lender = current
			if err := s.putPlan(plan); err != nil {
				return nil, err
			}
		}
		if err := s.moveIndex(lenderPlansKey(previous), lenderPlansKey(current)); err != nil {
			return nil, err
		}

		clients, err := s.lenderClients(previous)
		if err != nil {
			return nil, err
		}
		for _, client := range clients {
			profile, err := s.profile(client)
			if err != nil {
				return nil, err
			}
			if profile == nil {
				continue
			}
			profile.replaceLender(previous, current)
			if err := s.putProfile(profile); err != nil {
				return nil, err
			}
		}
		if err := s.moveIndex(lenderClientsKey(previous), lenderClientsKey(current)); err != nil {
			return nil, err
		}

		return []events.Event{events.CreditLenderUpdated{
			Previous: previous,
			Current:  current,
			Plans:    len(planIDs),
		}}, nil
	})
}

// ActiveLenders lists active lenders in registration order.
func (e *Engine) ActiveLenders() ([]Identity, error) {
	var out []Identity
	err := e.view(func(s *store) error {
		index, err := s.lenderIndex()
		if err != nil {
			return err
		}
		out = make([]Identity, 0, len(index))
		for _, id := range index {
			record, err := s.lender(id)
			if err != nil {
				return err
			}
			if record != nil && record.Active {
				out = append(out, id)
			}
		}
		return nil
	})
	return out, err
}

// Lender returns the registry record for id.
func (e *Engine) Lender(id Identity) (*LenderRecord, error) {
	var out *LenderRecord
	err := e.view(func(s *store) error {
		record, err := s.lender(id)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("%w: lender %s", ErrNotFound, id)
		}
		out = record
		return nil
	})
	return out, err
}

// LenderPlans returns the ids of every plan issued by lender.
func (e *Engine) LenderPlans(lender Identity) ([]uint64, error) {
	var out []uint64
	err := e.view(func(s *store) error {
		ids, err := s.lenderPlans(lender)
		out = ids
		return err
	})
	return out, err
}
