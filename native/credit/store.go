package credit

import (
	"bytes"
	"fmt"
	"math/big"
)

// engineState is the slice of the state manager the credit engine depends on.
type engineState interface {
	HasRole(role string, addr []byte) bool
	RoleMembers(role string) ([][]byte, error)
	SetRole(role string, addr []byte) error
	RemoveRole(role string, addr []byte) error
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

type store struct {
	st engineState
}

func newStore(st engineState) *store { return &store{st: st} }

func (s *store) hasRole(role Role, id Identity) (bool, error) {
	members, err := s.st.RoleMembers(string(role))
	if err != nil {
		return false, err
	}
	for _, member := range members {
		if bytes.Equal(member, id[:]) {
			return true, nil
		}
	}
	return false, nil
}

func (s *store) grantRole(role Role, id Identity) error {
	return s.st.SetRole(string(role), id[:])
}

func (s *store) revokeRole(role Role, id Identity) error {
	return s.st.RemoveRole(string(role), id[:])
}

func (s *store) paused() (bool, error) {
	var flag bool
	ok, err := s.st.KVGet(pausedKey, &flag)
	if err != nil || !ok {
		return false, err
	}
	return flag, nil
}

func (s *store) setPaused(flag bool) error {
	if !flag {
		return s.st.KVDelete(pausedKey)
	}
	return s.st.KVPut(pausedKey, true)
}

// IsPaused lets the store act as the ledger half of the pause view.
func (s *store) IsPaused(string) bool {
	flag, err := s.paused()
	return err == nil && flag
}

func (s *store) lender(id Identity) (*LenderRecord, error) {
	var record LenderRecord
	ok, err := s.st.KVGet(lenderKey(id), &record)
	if err != nil || !ok {
		return nil, err
	}
	return &record, nil
}

func (s *store) putLender(record *LenderRecord) error {
	return s.st.KVPut(lenderKey(record.Lender), record)
}

func (s *store) activeLender(id Identity) (bool, error) {
	record, err := s.lender(id)
	if err != nil || record == nil {
		return false, err
	}
	return record.Active, nil
}

func (s *store) lenderIndex() ([]Identity, error) {
	var raw [][]byte
	if err := s.st.KVGetList(lenderIndexKey, &raw); err != nil {
		return nil, err
	}
	out := make([]Identity, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != len(Identity{}) {
			return nil, fmt.Errorf("credit engine: corrupt lender index entry")
		}
		var id Identity
		copy(id[:], entry)
		out = append(out, id)
	}
	return out, nil
}

func (s *store) putLenderIndex(ids []Identity) error {
	raw := make([][]byte, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, append([]byte(nil), id[:]...))
	}
	return s.st.KVPut(lenderIndexKey, raw)
}

func (s *store) profile(id Identity) (*Profile, error) {
	var profile Profile
	ok, err := s.st.KVGet(profileKey(id), &profile)
	if err != nil || !ok {
		return nil, err
	}
	if profile.Lenders == nil {
		profile.Lenders = []Identity{}
	}
	if profile.PaymentPlans == nil {
		profile.PaymentPlans = []uint64{}
	}
	return &profile, nil
}

func (s *store) putProfile(profile *Profile) error {
	return s.st.KVPut(profileKey(profile.Client), profile)
}

func (s *store) plan(planID uint64) (*PaymentPlan, error) {
	var plan PaymentPlan
	ok, err := s.st.KVGet(planKey(planID), &plan)
	if err != nil || !ok {
		return nil, err
	}
	plan.ensureDefaults()
	return &plan, nil
}

func (s *store) putPlan(plan *PaymentPlan) error {
	plan.ensureDefaults()
	return s.st.KVPut(planKey(plan.ID), plan)
}

// nextPlanID allocates the next plan identifier. Identifiers start at 1.
func (s *store) nextPlanID() (uint64, error) {
	var last uint64
	if _, err := s.st.KVGet(planSeqKey, &last); err != nil {
		return 0, err
	}
	next := last + 1
	if err := s.st.KVPut(planSeqKey, next); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *store) lenderPlans(id Identity) ([]uint64, error) {
	var raw [][]byte
	if err := s.st.KVGetList(lenderPlansKey(id), &raw); err != nil {
		return nil, err
	}
	out := make([]uint64, 0, len(raw))
	for _, entry := range raw {
		planID, ok := decodePlanID(entry)
		if !ok {
			return nil, fmt.Errorf("credit engine: corrupt plan index entry")
		}
		out = append(out, planID)
	}
	return out, nil
}

func (s *store) indexLenderPlan(id Identity, planID uint64) error {
	return s.st.KVAppend(lenderPlansKey(id), encodePlanID(planID))
}

func (s *store) lenderClients(id Identity) ([]Identity, error) {
	var raw [][]byte
	if err := s.st.KVGetList(lenderClientsKey(id), &raw); err != nil {
		return nil, err
	}
	out := make([]Identity, 0, len(raw))
	for _, entry := range raw {
		var client Identity
		copy(client[:], entry)
		out = append(out, client)
	}
	return out, nil
}

func (s *store) indexLenderClient(lender, client Identity) error {
	return s.st.KVAppend(lenderClientsKey(lender), append([]byte(nil), client[:]...))
}

// moveIndex copies the list stored under from to to and removes the source.
func (s *store) moveIndex(from, to []byte) error {
	var raw [][]byte
	if err := s.st.KVGetList(from, &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	for _, entry := range raw {
		if err := s.st.KVAppend(to, entry); err != nil {
			return err
		}
	}
	return s.st.KVDelete(from)
}

func zero() *big.Int { return big.NewInt(0) }
