package state

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"creditledger/storage"
)

var (
	// ErrUnavailable wraps failures of the underlying storage backend. Callers
	// may retry operations that fail with it.
	ErrUnavailable = errors.New("state: storage unavailable")
	// ErrReadOnly is returned when a write is attempted on a committed view.
	ErrReadOnly = errors.New("state: read-only view")
	// ErrFinalised is returned when a staged manager is used after Commit or
	// Discard.
	ErrFinalised = errors.New("state: transaction already finalised")
)

var rolePrefix = []byte("role:")

// Manager reads and writes ledger records. A manager obtained from NewManager
// is a read-only view over committed data; Begin returns a staged manager whose
// writes stay private until Commit applies them as one atomic batch.
type Manager struct {
	db      storage.Database
	journal *journal
}

type journalEntry struct {
	value   []byte
	deleted bool
}

type journal struct {
	entries   map[string]journalEntry
	finalised bool
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin opens a staged manager on top of the committed state.
func (m *Manager) Begin() *Manager {
	return &Manager{db: m.db, journal: &journal{entries: make(map[string]journalEntry)}}
}

// Pending reports the number of staged key writes.
func (m *Manager) Pending() int {
	if m == nil || m.journal == nil {
		return 0
	}
	return len(m.journal.entries)
}

// Commit writes every staged change in a single storage batch.
func (m *Manager) Commit() error {
	if m == nil || m.journal == nil {
		return ErrReadOnly
	}
	if m.journal.finalised {
		return ErrFinalised
	}
	keys := make([]string, 0, len(m.journal.entries))
	for key := range m.journal.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	batch := m.db.NewBatch()
	for _, key := range keys {
		entry := m.journal.entries[key]
		if entry.deleted {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), entry.value)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrUnavailable, err)
	}
	m.journal.finalised = true
	return nil
}

// Discard drops every staged change.
func (m *Manager) Discard() {
	if m == nil || m.journal == nil {
		return
	}
	m.journal.entries = make(map[string]journalEntry)
	m.journal.finalised = true
}

func (m *Manager) get(key []byte) ([]byte, error) {
	if m.journal != nil {
		if m.journal.finalised {
			return nil, ErrFinalised
		}
		if entry, ok := m.journal.entries[string(key)]; ok {
			if entry.deleted {
				return nil, nil
			}
			return entry.value, nil
		}
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, nil
}

func (m *Manager) update(key, value []byte) error {
	if m.journal == nil {
		return ErrReadOnly
	}
	if m.journal.finalised {
		return ErrFinalised
	}
	m.journal.entries[string(key)] = journalEntry{value: append([]byte(nil), value...)}
	return nil
}

func (m *Manager) remove(key []byte) error {
	if m.journal == nil {
		return ErrReadOnly
	}
	if m.journal.finalised {
		return ErrFinalised
	}
	m.journal.entries[string(key)] = journalEntry{deleted: true}
	return nil
}

func roleKey(role string) []byte {
	buf := make([]byte, len(rolePrefix)+len(role))
	copy(buf, rolePrefix)
	copy(buf[len(rolePrefix):], role)
	return ethcrypto.Keccak256(buf)
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) loadMembers(role string) ([][]byte, error) {
	data, err := m.get(roleKey(role))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return [][]byte{}, nil
	}
	var members [][]byte
	if err := rlp.DecodeBytes(data, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (m *Manager) writeMembers(role string, members [][]byte) error {
	if len(members) == 0 {
		return m.remove(roleKey(role))
	}
	encoded, err := rlp.EncodeToBytes(members)
	if err != nil {
		return err
	}
	return m.update(roleKey(role), encoded)
}

// SetRole associates an address with the specified role. Duplicate assignments
// are ignored while the stored list remains sorted for determinism.
func (m *Manager) SetRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	members, err := m.loadMembers(trimmed)
	if err != nil {
		return err
	}
	for _, existing := range members {
		if bytes.Equal(existing, addr) {
			return nil
		}
	}
	members = append(members, append([]byte(nil), addr...))
	sort.Slice(members, func(i, j int) bool {
		return hex.EncodeToString(members[i]) < hex.EncodeToString(members[j])
	})
	return m.writeMembers(trimmed, members)
}

// RemoveRole dissociates an address from the role. Removing an absent member
// is a no-op.
func (m *Manager) RemoveRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	members, err := m.loadMembers(trimmed)
	if err != nil {
		return err
	}
	kept := members[:0]
	removed := false
	for _, existing := range members {
		if bytes.Equal(existing, addr) {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	if !removed {
		return nil
	}
	return m.writeMembers(trimmed, kept)
}

// RoleMembers returns all addresses assigned to the provided role.
func (m *Manager) RoleMembers(role string) ([][]byte, error) {
	return m.loadMembers(strings.TrimSpace(role))
}

// HasRole reports whether the provided address is associated with the
// specified role. Errors while reading the underlying state result in a false
// return.
func (m *Manager) HasRole(role string, addr []byte) bool {
	if len(addr) == 0 {
		return false
	}
	members, err := m.loadMembers(strings.TrimSpace(role))
	if err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr) {
			return true
		}
	}
	return false
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.update(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under the supplied key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.remove(kvKey(key))
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	var list [][]byte
	if err := m.KVGetList(key, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return m.KVPut(key, list)
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}
