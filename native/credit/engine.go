package credit

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"creditledger/core/events"
	"creditledger/core/state"
	nativecommon "creditledger/native/common"
)

const moduleName = "credit"

// ModuleName is the pause key of the credit ledger.
const ModuleName = moduleName

// Engine is the credit ledger. Mutations are serialised and applied as one
// storage batch; reads observe committed state only and may run in parallel.
type Engine struct {
	mu      sync.RWMutex
	state   *state.Manager
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() time.Time
	logger  *slog.Logger
}

// NewEngine constructs a credit engine over the supplied committed view.
func NewEngine(manager *state.Manager) *Engine {
	return &Engine{
		state:   manager,
		emitter: events.NoopEmitter{},
		nowFn:   time.Now,
		logger:  slog.Default(),
	}
}

// SetEmitter configures the sink for committed ledger events.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses installs an operator pause view consulted alongside the ledger's
// own pause flag.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauses = p
}

// SetNowFunc overrides the clock used for timestamps and deadlines.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil || logger == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger = logger
}

func (e *Engine) now() uint64 {
	ts := e.nowFn().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// Bootstrap seeds the Admin role on first start. It is a no-op once any admin
// exists.
func (e *Engine) Bootstrap(admin Identity) error {
	if admin.IsZero() {
		return fmt.Errorf("%w: admin identity required", ErrInvalidArgument)
	}
	return e.mutate(func(s *store) ([]events.Event, error) {
		members, err := s.st.RoleMembers(string(RoleAdmin))
		if err != nil {
			return nil, err
		}
		if len(members) > 0 {
			return nil, nil
		}
		if err := s.grantRole(RoleAdmin, admin); err != nil {
			return nil, err
		}
		return []events.Event{events.CreditRoleChanged{
			Role:    string(RoleAdmin),
			Account: admin,
			Granted: true,
			By:      admin,
		}}, nil
	})
}

// mutate runs fn against a staged view and commits its writes atomically.
// Events are emitted in order once the commit succeeded.
func (e *Engine) mutate(fn func(s *store) ([]events.Event, error)) error {
	if e == nil || e.state == nil {
		return errors.New("credit engine not initialised")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := e.state.Begin()
	emitted, err := fn(newStore(tx))
	if err != nil {
		tx.Discard()
		return err
	}
	if err := tx.Commit(); err != nil {
		e.logger.Error("credit ledger commit failed", slog.Any("error", err))
		return err
	}
	for _, evt := range emitted {
		if evt == nil {
			continue
		}
		e.emitter.Emit(evt)
	}
	return nil
}

func (e *Engine) view(fn func(s *store) error) error {
	if e == nil || e.state == nil {
		return errors.New("credit engine not initialised")
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn(newStore(e.state))
}

// guard fails when either the operator or the ledger has paused the module.
func (e *Engine) guard(s *store) error {
	if _, err := s.paused(); err != nil {
		return err
	}
	return nativecommon.Guard(nativecommon.AnyPaused{e.pauses, s}, moduleName)
}

// requireRole reads role membership from the staged view so the check and
// the mutation it gates observe the same state.
func requireRole(s *store, role Role, caller Identity) error {
	ok, err := s.hasRole(role, caller)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s required", ErrUnauthorized, role)
	}
	return nil
}
