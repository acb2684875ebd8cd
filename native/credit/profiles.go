package credit

import (
	"fmt"

	"creditledger/core/events"
)

// NewProfile creates an empty active profile for client and grants it the
// User role. An existing profile is returned unchanged. The caller must be the
// client itself, an active lender or an administrator.
func (e *Engine) NewProfile(caller, client Identity) (*Profile, error) {
	if client.IsZero() {
		return nil, fmt.Errorf("%w: client identity required", ErrInvalidArgument)
	}
	var out *Profile
	err := e.mutate(func(s *store) ([]events.Event, error) {
		if err := e.guard(s); err != nil {
			return nil, err
		}
		if caller != client {
			lender, err := s.activeLender(caller)
			if err != nil {
				return nil, err
			}
			admin, err := s.hasRole(RoleAdmin, caller)
			if err != nil {
				return nil, err
			}
			if !lender && !admin {
				return nil, fmt.Errorf("%w: cannot create a profile for another identity", ErrUnauthorized)
			}
		}
		profile, created, err := e.ensureProfile(s, client)
		if err != nil {
			return nil, err
		}
		out = profile
		if !created {
			return nil, nil
		}
		return []events.Event{events.CreditProfileCreated{Client: client}}, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ensureProfile loads the profile for client, creating it when absent.
func (e *Engine) ensureProfile(s *store, client Identity) (*Profile, bool, error) {
	profile, err := s.profile(client)
	if err != nil {
		return nil, false, err
	}
	if profile != nil {
		return profile, false, nil
	}
	profile = &Profile{
		Client:       client,
		Active:       true,
		Lenders:      []Identity{},
		PaymentPlans: []uint64{},
		CreatedAt:    e.now(),
	}
	if err := s.putProfile(profile); err != nil {
		return nil, false, err
	}
	if err := s.grantRole(RoleUser, client); err != nil {
		return nil, false, err
	}
	return profile, true, nil
}

// Profile returns the profile of client.
func (e *Engine) Profile(client Identity) (*Profile, error) {
	var out *Profile
	err := e.view(func(s *store) error {
		profile, err := s.profile(client)
		if err != nil {
			return err
		}
		if profile == nil {
			return fmt.Errorf("%w: profile %s", ErrNotFound, client)
		}
		out = profile
		return nil
	})
	return out, err
}

// IsClientActive reports whether client has an active profile.
func (e *Engine) IsClientActive(client Identity) (bool, error) {
	var active bool
	err := e.view(func(s *store) error {
		profile, err := s.profile(client)
		if err != nil {
			return err
		}
		active = profile != nil && profile.Active
		return nil
	})
	return active, err
}

// ApproveLender records the caller's consent to deal with lender. Approving
// the same lender twice has no effect.
func (e *Engine) ApproveLender(caller, lender Identity) error {
	return e.mutate(func(s *store) ([]events.Event, error) {
		if err := e.guard(s); err != nil {
			return nil, err
		}
		profile, err := s.profile(caller)
		if err != nil {
			return nil, err
		}
		if profile == nil {
			return nil, fmt.Errorf("%w: profile %s", ErrNotFound, caller)
		}
		active, err := s.activeLender(lender)
		if err != nil {
			return nil, err
		}
		if !active {
			return nil, fmt.Errorf("%w: active lender %s", ErrNotFound, lender)
		}
		if !profile.addLender(lender) {
			return nil, nil
		}
		if err := s.putProfile(profile); err != nil {
			return nil, err
		}
		if err := s.indexLenderClient(lender, caller); err != nil {
			return nil, err
		}
		return []events.Event{events.CreditLenderApproved{Client: caller, Lender: lender}}, nil
	})
}
